//go:build windows

package attenuator

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"

	"mixer-link/internal/mathx"
)

type endpointRequest struct {
	level float32
	reply chan endpointReply
}

type endpointReply struct {
	level float32
	err   error
}

// Endpoint drives the master volume of a Windows audio endpoint, letting a
// desktop stand in for the body's attenuator chip. COM calls are made from a
// single goroutine locked to its OS thread.
type Endpoint struct {
	DeviceID string

	log  *slog.Logger
	reqs chan endpointRequest
	done chan struct{}
}

func NewEndpoint(deviceID string, logger *slog.Logger) (*Endpoint, error) {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Endpoint{
		DeviceID: deviceID,
		log:      logger,
		reqs:     make(chan endpointRequest),
		done:     make(chan struct{}),
	}

	ready := make(chan error, 1)
	go e.run(ready)
	if err := <-ready; err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Endpoint) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		ready <- fmt.Errorf("initializing COM: %w", err)
		return
	}
	defer ole.CoUninitialize()

	var mmde *wca.IMMDeviceEnumerator
	if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL, wca.IID_IMMDeviceEnumerator, &mmde); err != nil {
		ready <- fmt.Errorf("creating IMMDeviceEnumerator: %w", err)
		return
	}
	defer mmde.Release()
	ready <- nil

	for {
		select {
		case req := <-e.reqs:
			level, err := e.invoke(mmde, req)
			req.reply <- endpointReply{level: level, err: err}
		case <-e.done:
			e.log.Info("endpoint worker shutting down", "deviceID", e.DeviceID)
			return
		}
	}
}

func (e *Endpoint) invoke(mmde *wca.IMMDeviceEnumerator, req endpointRequest) (float32, error) {
	var mmd *wca.IMMDevice
	if err := mmde.GetDevice(e.DeviceID, &mmd); err != nil {
		return 0, fmt.Errorf("GetDevice failed: %w", err)
	}
	defer mmd.Release()

	var aev *wca.IAudioEndpointVolume
	if err := mmd.Activate(wca.IID_IAudioEndpointVolume, wca.CLSCTX_ALL, nil, &aev); err != nil {
		return 0, fmt.Errorf("Activate IAudioEndpointVolume failed: %w", err)
	}
	defer aev.Release()

	if err := aev.SetMasterVolumeLevelScalar(req.level, nil); err != nil {
		return 0, fmt.Errorf("SetMasterVolumeLevelScalar failed: %w", err)
	}
	return req.level, nil
}

func (e *Endpoint) do(req endpointRequest) (float32, error) {
	req.reply = make(chan endpointReply, 1)
	select {
	case e.reqs <- req:
	case <-e.done:
		return 0, fmt.Errorf("endpoint %s closed", e.DeviceID)
	}
	r := <-req.reply
	return r.level, r.err
}

func (e *Endpoint) SetVolume(percent int) error {
	percent = mathx.Clamp(percent, 0, 100)
	if _, err := e.do(endpointRequest{level: float32(percent) / 100.0}); err != nil {
		return err
	}
	e.log.Debug("set volume", "state", percent, "deviceID", e.DeviceID)
	return nil
}

func (e *Endpoint) Close() error {
	close(e.done)
	return nil
}
