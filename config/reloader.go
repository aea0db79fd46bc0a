package config

import (
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Reloader re-reads the config file on a fixed period and reports changes.
type Reloader struct {
	path string
	log  *slog.Logger

	mu       sync.RWMutex
	current  Config
	onChange []func(old, new Config)
}

func NewReloader(path string, initial Config, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reloader{path: path, current: initial, log: logger}
}

func (r *Reloader) Current() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Reloader) OnChange(f func(old, new Config)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, f)
}

// Reload reads the file once. Unreadable or invalid files keep the current
// config. It reports whether anything changed.
func (r *Reloader) Reload() bool {
	next, err := Load(r.path)
	if err != nil {
		r.log.Warn("error reloading config", "err", err)
		return false
	}

	r.mu.Lock()
	old := r.current
	// flag overrides survive reloads
	if next.PortName == "" {
		next.PortName = old.PortName
	}
	// the role is fixed by the binary
	next.Role = old.Role
	if err := next.Validate(); err != nil {
		r.mu.Unlock()
		r.log.Warn("ignoring invalid config", "err", err)
		return false
	}
	if reflect.DeepEqual(old, next) {
		r.mu.Unlock()
		return false
	}
	r.current = next
	hooks := append([]func(old, new Config){}, r.onChange...)
	r.mu.Unlock()

	r.log.Info("configuration reloaded")
	for _, f := range hooks {
		f(old, next)
	}
	return true
}

// Run reloads every ConfigReloadPeriod until shutdown is closed. A zero
// period disables reloading.
func (r *Reloader) Run(shutdown <-chan struct{}) {
	period := r.Current().ConfigReloadPeriod
	if period <= 0 {
		return
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Reload()
		case <-shutdown:
			r.log.Info("configuration reloader shutting down")
			return
		}
	}
}
