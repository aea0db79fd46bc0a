//go:build !windows

package attenuator

import (
	"errors"
	"log/slog"
)

var ErrEndpointUnsupported = errors.New("endpoint volume is only available on windows")

// Endpoint is unavailable off windows; NewEndpoint always fails.
type Endpoint struct {
	DeviceID string
}

func NewEndpoint(deviceID string, logger *slog.Logger) (*Endpoint, error) {
	return nil, ErrEndpointUnsupported
}

func (e *Endpoint) SetVolume(int) error { return ErrEndpointUnsupported }
func (e *Endpoint) Close() error { return nil }
