// mixer-controller is the authoritative end of the link: it owns the mixer
// state, drives the local panel and knobs, watches the power switch and
// streams the state to the mixer body.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mixer-link/config"
	"mixer-link/control"
	"mixer-link/internal/logx"
	"mixer-link/link"
	"mixer-link/nvs"
	"mixer-link/pkg/reliableserial"
	"mixer-link/power"
	"mixer-link/remote"
	"mixer-link/state"
)

func matcher(cfg config.Config) reliableserial.DeviceMatcher {
	if cfg.PortName != "" {
		return reliableserial.NameMatcher(cfg.PortName)
	}
	vid, pid := cfg.SplitMatch()
	return reliableserial.USBMatcher{VID: vid, PID: pid}
}

func openStore(cfg config.Config, logger *slog.Logger) (nvs.Store, func()) {
	kv, err := nvs.OpenSQLite(cfg.StorePath, cfg.Namespace)
	if err != nil {
		logger.Error("persistent storage unavailable, running on defaults", "path", cfg.StorePath, "err", err)
		return nvs.NewMemory(), func() {}
	}
	return kv, func() { kv.Close() }
}

func main() {
	level := new(slog.LevelVar)
	logger := logx.New("mixc", level)
	slog.SetDefault(logger)

	configFile := flag.String("config", "config.yaml", "Path to the config file")
	portName := flag.String("port", "", "Serial port name (e.g., /dev/ttyUSB0)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *portName != "" {
		cfg.PortName = *portName
	}
	cfg.Role = config.ROLE_CONTROLLER
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

	kv, closeStore := openStore(cfg, logger)
	defer closeStore()

	store := state.NewStore(logger)
	store.Load(kv)
	logger.Info("state loaded", "state", store.Snapshot().String())

	rs := reliableserial.NewReliableSerial(
		matcher(cfg),
		reliableserial.SerialConfig{BaudRate: cfg.BaudRate},
		logger,
		reliableserial.WithGreeting(func() [][]byte {
			return [][]byte{store.Encode()}
		}),
	)
	defer rs.Close()

	lnk := link.New(store, rs, link.RoleController, logger)

	hw, err := openHardware(cfg, store, logger)
	if err != nil {
		log.Fatalf("Failed to open hardware: %v", err)
	}
	defer hw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var views control.Views
	if hw.panel != nil {
		views = append(views, hw.panel)
		go hw.panel.Run(ctx)
	}
	if hw.expander != nil {
		views = append(views, backlight{ex: hw.expander, log: logger})
	}
	hub := remote.NewHub(logger)
	defer hub.Close()
	if cfg.RemoteAddr != "" {
		views = append(views, hub)
	}

	gate := state.NewGate(store, kv, time.Now(), logger)
	dispatcher := control.NewDispatcher(store, lnk, views, logger)
	dispatcher.SetGate(gate)

	if hw.expander != nil {
		strategy, err := power.ParseStrategy(cfg.Debounce, cfg.CounterThreshold)
		if err != nil {
			log.Fatalf("Invalid debounce: %v", err)
		}
		monitor := power.NewMonitor(hw.expander, store, power.Bundle{View: views, Wire: lnk}, strategy, logger)
		monitor.NotifyShutdown = true
		monitor.Toggles = dispatcher
		lnk.OnTick(monitor.Poll)
		logger.Info("power sensing ready", "strategy", strategy.Name())
	}

	lnk.OnPoll(dispatcher.Tick)
	lnk.OnPoll(func(now time.Time) { gate.Tick(now) })
	if len(hw.knobs) > 0 {
		lnk.OnPoll(pollKnobs(hw.knobs, dispatcher, logger))
	}

	var server *http.Server
	if cfg.RemoteAddr != "" {
		submit := func(cmd control.Command) error {
			return lnk.Post(func() {
				if err := dispatcher.Dispatch(cmd, time.Now()); err != nil {
					logger.Warn("remote command failed", "cmd", cmd.String(), "err", err)
				}
			})
		}
		srv := remote.NewServer(hub, store.Snapshot, submit, logger)
		server = &http.Server{Addr: cfg.RemoteAddr, Handler: srv.Routes()}
		go func() {
			logger.Info("remote listening", "addr", cfg.RemoteAddr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("remote server failed", "err", err)
			}
		}()
	}

	views.Sync(store.Snapshot())

	done := make(chan error, 1)
	go func() { done <- lnk.Run(ctx) }()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	slog.Info("application is running. press Ctrl+C to exit")
	select {
	case <-sigs:
		slog.Info("interrupt signal received. initiating shutdown")
		cancel()
		<-done
	case err := <-done:
		slog.Error("link loop stopped", "err", err)
	}

	close(shutdownChan)
	if server != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), time.Second)
		server.Shutdown(shutdownCtx)
		stop()
	}

	// The loop has stopped, so the store is ours again.
	if store.Snapshot().Dirty {
		gate.Flush(time.Now())
	}
	slog.Info("application terminated gracefully")
}
