// Package reliableserial keeps a newline-framed serial link open across
// unplugs and port renumbering. Outgoing lines are written in the order they
// were queued; incoming lines are delivered without the delimiter.
package reliableserial

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

var (
	ErrClosed     = errors.New("serial link closed")
	ErrNoDevice   = errors.New("no matching serial device")
	ErrQueueFull  = errors.New("send queue full")
	ErrLineTooBig = errors.New("line exceeds maximum length")
)

const (
	DefaultBaudRate       = 115200
	DefaultReconnectDelay = 2 * time.Second
	DefaultQueueLen       = 64
	MaxLineLen            = 512
)

// DeviceInfo describes one serial port found by enumeration.
type DeviceInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

type DeviceMatcher interface {
	Match(info DeviceInfo) bool
}

// NameMatcher matches a port by its exact OS name (COM3, /dev/ttyUSB0).
type NameMatcher string

func (n NameMatcher) Match(info DeviceInfo) bool {
	return info.Name == string(n)
}

// USBMatcher matches a USB serial adapter by vendor and product id. An empty
// PID matches any product of the vendor.
type USBMatcher struct {
	VID string
	PID string
}

func (u USBMatcher) Match(info DeviceInfo) bool {
	if !info.IsUSB || !strings.EqualFold(info.VID, u.VID) {
		return false
	}
	return u.PID == "" || strings.EqualFold(info.PID, u.PID)
}

type SerialConfig struct {
	BaudRate       int
	ReconnectDelay time.Duration
	QueueLen       int
}

// Opener opens a port by name. serial.Open in production.
type Opener func(name string, mode *serial.Mode) (serial.Port, error)

// Lister enumerates candidate ports.
type Lister func() ([]DeviceInfo, error)

// ListPorts enumerates the host's serial ports with USB details when available.
func ListPorts() ([]DeviceInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("enumerate ports: %w", err)
	}
	infos := make([]DeviceInfo, 0, len(ports))
	for _, p := range ports {
		infos = append(infos, DeviceInfo{
			Name:         p.Name,
			IsUSB:        p.IsUSB,
			VID:          p.VID,
			PID:          p.PID,
			SerialNumber: p.SerialNumber,
			Product:      p.Product,
		})
	}
	return infos, nil
}

type ReliableSerial struct {
	matcher DeviceMatcher
	config  SerialConfig
	log     *slog.Logger
	open    Opener
	list    Lister

	// greeting returns the lines written right after every (re)connect.
	greeting func() [][]byte

	sendCh chan []byte
	recvCh chan []byte

	mu        sync.Mutex
	connected bool
	closed    bool
	done      chan struct{}
	wg        sync.WaitGroup
}

type Option func(*ReliableSerial)

func WithOpener(o Opener) Option { return func(r *ReliableSerial) { r.open = o } }
func WithLister(l Lister) Option { return func(r *ReliableSerial) { r.list = l } }

// WithGreeting sets the lines sent each time the port is (re)opened.
func WithGreeting(f func() [][]byte) Option { return func(r *ReliableSerial) { r.greeting = f } }

// NewReliableSerial starts connecting in the background and returns
// immediately.
func NewReliableSerial(matcher DeviceMatcher, config SerialConfig, logger *slog.Logger, opts ...Option) *ReliableSerial {
	if logger == nil {
		logger = slog.Default()
	}
	if config.BaudRate <= 0 {
		config.BaudRate = DefaultBaudRate
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultReconnectDelay
	}
	if config.QueueLen <= 0 {
		config.QueueLen = DefaultQueueLen
	}

	r := &ReliableSerial{
		matcher: matcher,
		config:  config,
		log:     logger,
		open:    serial.Open,
		list:    ListPorts,
		sendCh:  make(chan []byte, config.QueueLen),
		recvCh:  make(chan []byte, config.QueueLen),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(r)
	}

	r.wg.Add(1)
	go r.run()
	return r
}

// Send queues one line. A missing delimiter is appended. It never blocks:
// the protocol resends full state on every heartbeat, so a full queue drops
// the line instead of stalling the caller.
func (r *ReliableSerial) Send(line []byte) error {
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line = append(append([]byte(nil), line...), '\n')
	}
	if len(line) > MaxLineLen {
		return ErrLineTooBig
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	select {
	case r.sendCh <- line:
		return nil
	default:
		return ErrQueueFull
	}
}

// Lines delivers received lines with surrounding whitespace trimmed. Closed
// after Close.
func (r *ReliableSerial) Lines() <-chan []byte {
	return r.recvCh
}

func (r *ReliableSerial) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func (r *ReliableSerial) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	close(r.recvCh)
	return nil
}

func (r *ReliableSerial) setConnected(c bool) {
	r.mu.Lock()
	r.connected = c
	r.mu.Unlock()
}

func (r *ReliableSerial) run() {
	defer r.wg.Done()

	for {
		port, name, err := r.connect()
		if err != nil {
			r.log.Warn("serial connect failed", "err", err)
		} else {
			r.log.Info("serial connected", "port", name)
			r.serve(port)
			r.setConnected(false)
			port.Close()
			r.log.Warn("serial disconnected", "port", name)
		}

		select {
		case <-r.done:
			return
		case <-time.After(r.config.ReconnectDelay):
		}
	}
}

func (r *ReliableSerial) connect() (serial.Port, string, error) {
	infos, err := r.list()
	if err != nil {
		return nil, "", err
	}
	for _, info := range infos {
		if !r.matcher.Match(info) {
			continue
		}
		port, err := r.open(info.Name, &serial.Mode{BaudRate: r.config.BaudRate})
		if err != nil {
			return nil, "", fmt.Errorf("open %s: %w", info.Name, err)
		}
		return port, info.Name, nil
	}
	return nil, "", ErrNoDevice
}

// serve pumps lines in both directions until the port fails or the link is
// closed.
func (r *ReliableSerial) serve(port serial.Port) {
	readErr := make(chan error, 1)
	go func() {
		readErr <- r.readLoop(port)
	}()

	if r.greeting != nil {
		// The greeting is built now, so whatever queued up while the port
		// was down is older than it.
		if n := r.drain(); n > 0 {
			r.log.Debug("dropped stale lines", "count", n)
		}
		for _, line := range r.greeting() {
			if _, err := port.Write(line); err != nil {
				r.log.Error("error writing greeting", "err", err)
				port.Close()
				<-readErr
				return
			}
		}
	}

	r.setConnected(true)

	for {
		select {
		case line := <-r.sendCh:
			if _, err := port.Write(line); err != nil {
				r.log.Error("error writing serial", "err", err)
				port.Close()
				<-readErr
				return
			}
		case err := <-readErr:
			r.log.Warn("serial read ended", "err", err)
			return
		case <-r.done:
			port.Close()
			<-readErr
			return
		}
	}
}

func (r *ReliableSerial) drain() int {
	n := 0
	for {
		select {
		case <-r.sendCh:
			n++
		default:
			return n
		}
	}
}

func (r *ReliableSerial) readLoop(port serial.Port) error {
	br := bufio.NewReaderSize(port, MaxLineLen)
	for {
		line, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			r.log.Warn("dropping oversized line", "len", len(line))
			// Discard the rest of the oversized line.
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = br.ReadSlice('\n')
			}
			if err != nil {
				return err
			}
			continue
		}
		if err != nil {
			return err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		out := append([]byte(nil), line...)
		select {
		case r.recvCh <- out:
		case <-r.done:
			return ErrClosed
		}
	}
}
