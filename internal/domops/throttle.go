package domops

import (
	"context"
	"sync"

	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/model"
)

// ThrottleStatus is the `/throttle` response shape, mirroring
// EmulationStatus's {attached, applied, state, error?} contract (spec.md
// §4.6 "Emulation & throttle ... each is a small persistent-desired
// state machine").
type ThrottleStatus struct {
	Attached bool                `json:"attached"`
	Applied  bool                `json:"applied"`
	State    model.ThrottleState `json:"state"`
	Error    string              `json:"error,omitempty"`
}

// ThrottleController owns the persistent desired CPU throttle rate a
// watcher reapplies on every attach until cleared (spec.md §4.6, §4.8
// "onAttach"). Unlike emulation's UA override, CDP's CPU throttle has a
// natural "off" value (rate 1), so clearing needs no captured baseline.
type ThrottleController struct {
	mu       sync.Mutex
	desired  model.ThrottleState
	attached bool
	applied  bool
	lastErr  error
	session  *cdp.Session
}

// NewThrottleController returns a controller with throttling off.
func NewThrottleController() *ThrottleController {
	return &ThrottleController{}
}

// Set merges cpu into the desired state and applies immediately if attached.
func (c *ThrottleController) Set(ctx context.Context, cpu model.CPUThrottle) ThrottleStatus {
	c.mu.Lock()
	c.desired.CPU = &cpu
	session := c.session
	c.mu.Unlock()

	if session != nil {
		c.apply(ctx, session)
	}
	return c.Status()
}

// Clear drops the desired throttle rate back to unthrottled (rate 1)
// and applies that on the live session.
func (c *ThrottleController) Clear(ctx context.Context) ThrottleStatus {
	c.mu.Lock()
	c.desired.CPU = nil
	session := c.session
	c.mu.Unlock()

	if session != nil {
		c.apply(ctx, session)
	}
	return c.Status()
}

// Status returns the current {attached, applied, state, error} view.
func (c *ThrottleController) Status() ThrottleStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := ThrottleStatus{Attached: c.attached, Applied: c.applied, State: c.desired}
	if c.lastErr != nil {
		status.Error = c.lastErr.Error()
	}
	return status
}

// OnAttach reapplies the current desired throttle rate on every new session.
func (c *ThrottleController) OnAttach(ctx context.Context, session *cdp.Session) {
	c.mu.Lock()
	c.session = session
	c.attached = true
	c.mu.Unlock()

	c.apply(ctx, session)
}

// OnDetach marks the controller detached.
func (c *ThrottleController) OnDetach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = false
	c.session = nil
}

func (c *ThrottleController) apply(ctx context.Context, session *cdp.Session) {
	c.mu.Lock()
	desired := c.desired
	c.mu.Unlock()

	rate := 1.0
	if desired.CPU != nil {
		rate = desired.CPU.Rate
	}
	_, err := session.SendAndWait(ctx, "Emulation.setCPUThrottlingRate", map[string]any{
		"rate": rate,
	}, cdp.DefaultTimeout)

	c.mu.Lock()
	c.applied = err == nil
	c.lastErr = err
	c.mu.Unlock()
}
