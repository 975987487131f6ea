package httpapi

import "github.com/argus-dev/argus/internal/model"

// emulationPatch is the wire shape of POST /emulation's "state" field
// (spec.md §4.6 "emulation {set,clear,status}"); a nil UserAgent means
// "leave the current desired UA alone", not "clear it" — clearing goes
// through the separate aspects-based Clear op.
type emulationPatch struct {
	Viewport  *model.ViewportState `json:"viewport"`
	Touch     *model.TouchState    `json:"touch"`
	UserAgent *string              `json:"userAgent"`
}

func (p emulationPatch) toModel() model.EmulationState {
	state := model.EmulationState{Viewport: p.Viewport, Touch: p.Touch}
	if p.UserAgent != nil {
		state.UserAgent = &model.UAState{Value: p.UserAgent}
	}
	return state
}

func cpuThrottleOf(rate float64) model.CPUThrottle {
	return model.CPUThrottle{Rate: rate}
}
