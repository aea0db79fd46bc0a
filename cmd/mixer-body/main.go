// mixer-body follows the controller: it applies every state line to the
// source relays and the volume chips, and mutes if the controller goes quiet.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"mixer-link/attenuator"
	"mixer-link/body"
	"mixer-link/config"
	"mixer-link/internal/logx"
	"mixer-link/link"
	"mixer-link/pkg/reliableserial"
	"mixer-link/protocol"
	"mixer-link/state"
)

func matcher(cfg config.Config) reliableserial.DeviceMatcher {
	if cfg.PortName != "" {
		return reliableserial.NameMatcher(cfg.PortName)
	}
	vid, pid := cfg.SplitMatch()
	return reliableserial.USBMatcher{VID: vid, PID: pid}
}

func pin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("no gpio named %q", name)
	}
	return p, nil
}

func relays(cfg config.Config) (body.Relays, error) {
	var r body.Relays
	music, err := pin(cfg.RelayPins.Music)
	if err != nil {
		return r, err
	}
	mic, err := pin(cfg.RelayPins.Mic)
	if err != nil {
		return r, err
	}
	if music != nil {
		r.Music = music
	}
	if mic != nil {
		r.Mic = mic
	}
	return r, nil
}

func m62429(pins config.PinPair) (attenuator.Attenuator, error) {
	data, err := pin(pins.Data)
	if err != nil {
		return nil, err
	}
	clk, err := pin(pins.Clock)
	if err != nil {
		return nil, err
	}
	if data == nil || clk == nil {
		return attenuator.Nop{}, nil
	}
	chip := attenuator.NewM62429(data, clk)
	if err := chip.Init(); err != nil {
		return nil, err
	}
	return chip, nil
}

// volumes builds the attenuator pair for the configured backend. The
// returned func releases whatever the backend holds.
func volumes(cfg config.Config, logger *slog.Logger) (body.Volumes, func(), error) {
	switch cfg.AttenuatorBackend {
	case config.BACKEND_M62429:
		music, err := m62429(cfg.AttenuatorPins.Music)
		if err != nil {
			return body.Volumes{}, nil, fmt.Errorf("music attenuator: %w", err)
		}
		mic, err := m62429(cfg.AttenuatorPins.Mic)
		if err != nil {
			return body.Volumes{}, nil, fmt.Errorf("mic attenuator: %w", err)
		}
		return body.Volumes{Music: music, Mic: mic}, func() {}, nil
	case config.BACKEND_WCA:
		music, err := attenuator.NewEndpoint(cfg.WCADevices.Music, logger)
		if err != nil {
			return body.Volumes{}, nil, fmt.Errorf("music endpoint: %w", err)
		}
		mic, err := attenuator.NewEndpoint(cfg.WCADevices.Mic, logger)
		if err != nil {
			music.Close()
			return body.Volumes{}, nil, fmt.Errorf("mic endpoint: %w", err)
		}
		return body.Volumes{Music: music, Mic: mic}, func() {
			music.Close()
			mic.Close()
		}, nil
	default:
		return body.Volumes{}, func() {}, nil
	}
}

// console feeds single-character debug commands from r into the loop.
func console(r io.Reader, lnk *link.Link, b *body.Body) {
	in := bufio.NewReader(r)
	for {
		c, err := in.ReadByte()
		if err != nil {
			return
		}
		if c == '\n' || c == '\r' || c == ' ' {
			continue
		}
		lnk.Post(func() {
			if reply, ok := b.Console(c); ok {
				fmt.Println(reply)
			}
		})
	}
}

func main() {
	level := new(slog.LevelVar)
	logger := logx.New("mixb", level)
	slog.SetDefault(logger)

	configFile := flag.String("config", "config.yaml", "Path to the config file")
	portName := flag.String("port", "", "Serial port name (e.g., /dev/ttyUSB0)")
	noConsole := flag.Bool("no-console", false, "Do not read debug commands from stdin")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *portName != "" {
		cfg.PortName = *portName
	}
	cfg.Role = config.ROLE_BODY
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	if l, err := cfg.Level(); err == nil {
		level.Set(l)
	}

	shutdownChan := make(chan struct{})
	reloader := config.NewReloader(*configFile, cfg, logger)
	reloader.OnChange(func(old, next config.Config) {
		if l, err := next.Level(); err == nil && old.LogLevel != next.LogLevel {
			level.Set(l)
			logger.Info("log level changed", "level", l.String())
		}
	})
	go reloader.Run(shutdownChan)

	if cfg.AttenuatorBackend == config.BACKEND_M62429 || cfg.RelayPins.Music != "" || cfg.RelayPins.Mic != "" {
		if _, err := host.Init(); err != nil {
			log.Fatalf("Failed to init host drivers: %v", err)
		}
	}

	rl, err := relays(cfg)
	if err != nil {
		log.Fatalf("Failed to open relays: %v", err)
	}
	vols, release, err := volumes(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open attenuators: %v", err)
	}
	defer release()

	store := state.NewStore(logger)
	b := body.New(store, rl, vols, logger)
	if cfg.FailsafeTimeout > 0 {
		b.Timeout = cfg.FailsafeTimeout
	}
	if err := b.Init(time.Now()); err != nil {
		logger.Error("error setting power-up state", "err", err)
	}

	// Ask for the full state on every (re)connect.
	rs := reliableserial.NewReliableSerial(
		matcher(cfg),
		reliableserial.SerialConfig{BaudRate: cfg.BaudRate},
		logger,
		reliableserial.WithGreeting(func() [][]byte {
			return [][]byte{protocol.EncodeQuery()}
		}),
	)
	defer rs.Close()

	lnk := link.New(store, rs, link.RoleFollower, logger)
	lnk.OnUpdate(b.Apply)
	lnk.OnPoll(b.Check)

	if !*noConsole {
		go console(os.Stdin, lnk, b)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- lnk.Run(ctx) }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	slog.Info("application is running. press Ctrl+C to exit", "status", b.Status())
	select {
	case <-sigs:
		slog.Info("interrupt signal received. initiating shutdown")
		cancel()
		<-done
	case err := <-done:
		slog.Error("link loop stopped", "err", err)
	}
	close(shutdownChan)

	// leave the outputs silent
	b.Apply(protocol.Update{Shutdown: true}, store.Snapshot())
	slog.Info("application terminated gracefully")
}
