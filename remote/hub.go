package remote

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mixer-link/control"
	"mixer-link/state"
)

const (
	SEND_QUEUE    = 16
	WRITE_TIMEOUT = 5 * time.Second
	PING_PERIOD   = 30 * time.Second
)

// StateMessage is the JSON form of the device state pushed to clients and
// returned by GET /v1/state.
type StateMessage struct {
	Object       string `json:"object"`
	MusicVolume  int    `json:"musicVolume"`
	MicVolume    int    `json:"micVolume"`
	MainFader    int    `json:"mainFader"`
	MusicRelay   bool   `json:"musicRelay"`
	MicRelay     bool   `json:"micRelay"`
	PowerSensing bool   `json:"powerSensing"`
}

func NewStateMessage(s state.DeviceState) StateMessage {
	return StateMessage{
		Object:       "state",
		MusicVolume:  s.MusicVolume,
		MicVolume:    s.MicVolume,
		MainFader:    s.MainFader,
		MusicRelay:   s.MusicRelay,
		MicRelay:     s.MicRelay,
		PowerSensing: s.PowerSensing,
	}
}

type eventMessage struct {
	Object string `json:"object"`
	On     *bool  `json:"on,omitempty"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// Hub is a control.View that mirrors the state to every connected
// websocket client. Slow clients lose messages rather than stall the loop.
type Hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[string]*client
	latest  state.DeviceState
}

var _ control.View = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:     logger,
		clients: make(map[string]*client),
		latest:  state.Defaults(),
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

func (h *Hub) broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.log.Error("error encoding push", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn("client too slow, dropping push", "client", id)
		}
	}
}

func (h *Hub) sendTo(id string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		select {
		case c.send <- data:
		default:
		}
	}
}

func (h *Hub) SetSlider(ch control.Channel, v int) {
	h.mu.Lock()
	switch ch {
	case control.CHANNEL_MUSIC:
		h.latest.MusicVolume = v
	case control.CHANNEL_MIC:
		h.latest.MicVolume = v
	}
	s := h.latest
	h.mu.Unlock()
	h.broadcast(NewStateMessage(s))
}

func (h *Hub) Sync(s state.DeviceState) {
	h.mu.Lock()
	h.latest = s
	h.mu.Unlock()
	h.broadcast(NewStateMessage(s))
}

func (h *Hub) Backlight(on bool) {
	h.broadcast(eventMessage{Object: "backlight", On: &on})
}

func (h *Hub) ShowWaking() {
	h.broadcast(eventMessage{Object: "waking"})
}

// writeLoop owns all writes to the connection.
func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(PING_PERIOD)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.log.Debug("error writing to client", "client", c.id, "err", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WRITE_TIMEOUT))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*client)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}
