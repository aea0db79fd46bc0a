// Package panel renders the controller's status screen: one bar per channel
// plus the main fader, labelled with the current routing.
package panel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"

	"mixer-link/control"
	"mixer-link/state"
)

const (
	LABEL_WIDTH = 30
	ROW_HEIGHT  = 21
	BAR_RADIUS  = 4
	TEXT_HEIGHT = 14
)

// Panel is a control.View. View calls only update the model and wake the
// render loop; a burst of calls collapses into one redraw.
type Panel struct {
	fb  *Framebuffer
	log *slog.Logger

	mu     sync.Mutex
	s      state.DeviceState
	lit    bool
	waking bool

	wake chan struct{}
}

var _ control.View = (*Panel)(nil)

func New(sink Sink, logger *slog.Logger) *Panel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Panel{
		fb:   NewFramebuffer(sink),
		log:  logger,
		s:    state.Defaults(),
		lit:  true,
		wake: make(chan struct{}, 1),
	}
}

// Open drives an SSD1306 at its default address on bus.
func Open(bus i2c.Bus, logger *slog.Logger) (*Panel, error) {
	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return nil, fmt.Errorf("opening ssd1306: %w", err)
	}
	return New(dev, logger), nil
}

func (p *Panel) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Panel) SetSlider(ch control.Channel, v int) {
	p.mu.Lock()
	switch ch {
	case control.CHANNEL_MUSIC:
		p.s.MusicVolume = v
	case control.CHANNEL_MIC:
		p.s.MicVolume = v
	}
	p.mu.Unlock()
	p.signal()
}

func (p *Panel) Sync(s state.DeviceState) {
	p.mu.Lock()
	p.s = s
	p.waking = false
	p.mu.Unlock()
	p.signal()
}

func (p *Panel) Backlight(on bool) {
	p.mu.Lock()
	p.lit = on
	p.mu.Unlock()
	p.signal()
}

// ShowWaking shows the waking screen until the next Sync.
func (p *Panel) ShowWaking() {
	p.mu.Lock()
	p.waking = true
	p.mu.Unlock()
	p.signal()
}

// Render draws the current model and pushes it to the display.
func (p *Panel) Render() error {
	p.mu.Lock()
	s, lit, waking := p.s, p.lit, p.waking
	p.mu.Unlock()

	p.fb.Clear()
	switch {
	case !lit:
	case waking:
		_, h := p.fb.Size()
		centerText(p.fb, &freemono.Regular9pt7b, "waking", h/2+TEXT_HEIGHT/2)
	default:
		p.row(0, musicLabel(s.MusicRelay), s.MusicVolume)
		p.row(1, micLabel(s.MicRelay), s.MicVolume)
		p.row(2, "FD", s.MainFader)
	}
	return p.fb.Display()
}

func (p *Panel) row(i int16, label string, value int) {
	w, _ := p.fb.Size()
	top := i * ROW_HEIGHT
	tinyfont.WriteLine(p.fb, &freemono.Regular9pt7b, 0, top+TEXT_HEIGHT, label, drawColor)
	bar(p.fb, box{
		leftX:   LABEL_WIDTH,
		topY:    top + 2,
		rightX:  w - 1,
		bottomY: top + ROW_HEIGHT - 3,
		radius:  BAR_RADIUS,
	}, value)
}

// Run redraws whenever the model changes until ctx is done, then blanks the
// display.
func (p *Panel) Run(ctx context.Context) error {
	if err := p.Render(); err != nil {
		p.log.Warn("error drawing panel", "err", err)
	}
	for {
		select {
		case <-ctx.Done():
			p.fb.Clear()
			p.fb.Display()
			return ctx.Err()
		case <-p.wake:
			if err := p.Render(); err != nil {
				p.log.Warn("error drawing panel", "err", err)
			}
		}
	}
}

func musicLabel(bluetooth bool) string {
	if bluetooth {
		return "BT"
	}
	return "LN"
}

func micLabel(wireless bool) string {
	if wireless {
		return "WL"
	}
	return "WD"
}

// Close turns the display off.
func (p *Panel) Close() error {
	return p.fb.sink.Halt()
}
