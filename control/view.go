package control

import "mixer-link/state"

// View is anything that mirrors the device state to a user: the panel, the
// websocket clients. Calls must not block the loop.
type View interface {
	SetSlider(ch Channel, v int)
	Sync(s state.DeviceState)
	Backlight(on bool)
	ShowWaking()
}

// Views fans every call out to each view in order. A nil Views is a no-op.
type Views []View

func (vs Views) SetSlider(ch Channel, value int) {
	for _, v := range vs {
		v.SetSlider(ch, value)
	}
}

func (vs Views) Sync(s state.DeviceState) {
	for _, v := range vs {
		v.Sync(s)
	}
}

func (vs Views) Backlight(on bool) {
	for _, v := range vs {
		v.Backlight(on)
	}
}

func (vs Views) ShowWaking() {
	for _, v := range vs {
		v.ShowWaking()
	}
}
