// Package remote exposes the controller over HTTP: the current state, a
// command endpoint and a websocket that pushes every change.
package remote

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mixer-link/control"
	"mixer-link/state"
)

const MAX_COMMAND_BYTES = 4096

var ErrUnavailable = errors.New("controller busy")

// Submitter hands a command to the control loop. It must not block.
type Submitter func(cmd control.Command) error

// Snapshotter returns the current state.
type Snapshotter func() state.DeviceState

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Server struct {
	hub      *Hub
	snapshot Snapshotter
	submit   Submitter
	log      *slog.Logger
}

func NewServer(hub *Hub, snapshot Snapshotter, submit Submitter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{hub: hub, snapshot: snapshot, submit: submit, log: logger}
}

type errorBody struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type commandResponse struct {
	Object  string          `json:"object"`
	ID      string          `json:"id"`
	Command control.Command `json:"command"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	_ = writeJSON(w, status, errorResponse{Error: errorBody{Message: err.Error()}})
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)
	router.Use(middleware.Recoverer)

	router.Get("/v1/state", s.getState)
	router.Post("/v1/commands", s.postCommand)
	router.HandleFunc("/v1/ws", s.serveWS)
	return router
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusOK, NewStateMessage(s.snapshot()))
}

func (s *Server) postCommand(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MAX_COMMAND_BYTES))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cmd, err := control.ParseCommand(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.submit(cmd); err != nil {
		s.log.Warn("command rejected", "cmd", cmd.String(), "err", err)
		writeError(w, http.StatusServiceUnavailable, ErrUnavailable)
		return
	}

	id := uuid.NewString()
	s.log.Info("command accepted", "id", id, "cmd", cmd.String())
	_ = writeJSON(w, http.StatusAccepted, commandResponse{Object: "command", ID: id, Command: cmd})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// error already written to response
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, SEND_QUEUE),
	}
	if data, err := json.Marshal(NewStateMessage(s.snapshot())); err == nil {
		c.send <- data
	}
	s.hub.add(c)
	s.log.Info("remote client connected", "client", c.id, "addr", r.RemoteAddr)

	go s.hub.writeLoop(c)
	s.readLoop(c)
}

// readLoop turns incoming text frames into commands until the client goes
// away. Bad frames get an error push and are otherwise ignored.
func (s *Server) readLoop(c *client) {
	defer func() {
		s.hub.remove(c.id)
		s.log.Info("remote client disconnected", "client", c.id)
	}()

	c.conn.SetReadLimit(MAX_COMMAND_BYTES)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		cmd, err := control.ParseCommand(data)
		if err == nil {
			err = s.submit(cmd)
		}
		if err != nil {
			s.log.Debug("bad websocket command", "client", c.id, "err", err)
			msg, _ := json.Marshal(errorResponse{Error: errorBody{Message: err.Error()}})
			s.hub.sendTo(c.id, msg)
		}
	}
}
