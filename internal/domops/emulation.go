package domops

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/model"
)

// EmulationStatus is the `/emulation` response shape (spec.md §4.6 "each
// is a small persistent-desired state machine ... reports {attached,
// applied, state, error?}"; spec.md §9 "the distinction between
// 'attached but apply failed' and 'not attached' ... must be preserved").
type EmulationStatus struct {
	Attached bool                 `json:"attached"`
	Applied  bool                 `json:"applied"`
	State    model.EmulationState `json:"state"`
	Error    string               `json:"error,omitempty"`
}

// EmulationController owns the persistent desired emulation state a
// watcher reapplies on every attach until explicitly cleared (spec.md
// §3 "EmulationState", §4.6 "Emulation & throttle", §4.8 "onAttach").
// baselineUA is captured once, from navigator.userAgent at first attach,
// because CDP has no primitive "forget UA override" (spec.md §4.6).
type EmulationController struct {
	mu         sync.Mutex
	desired    model.EmulationState
	attached   bool
	applied    bool
	lastErr    error
	session    *cdp.Session
	baselineUA string
}

// NewEmulationController returns a controller with no desired state.
func NewEmulationController() *EmulationController {
	return &EmulationController{}
}

// Set merges patch into the desired state and applies immediately if
// attached (spec.md §4.6 "set(state) merges ... and applies immediately
// if attached").
func (c *EmulationController) Set(ctx context.Context, patch model.EmulationState) EmulationStatus {
	c.mu.Lock()
	if patch.Viewport != nil {
		c.desired.Viewport = patch.Viewport
	}
	if patch.Touch != nil {
		c.desired.Touch = patch.Touch
	}
	if patch.UserAgent != nil {
		c.desired.UserAgent = patch.UserAgent
	}
	session := c.session
	c.mu.Unlock()

	if session != nil {
		c.apply(ctx, session)
	}
	return c.Status()
}

// Clear drops the desired state, or just the named aspects, then
// re-applies the remainder on the live session (spec.md §4.6 "clear(
// aspects?) drops the desired state ... then re-applies the
// remainder"). aspects is a subset of {"viewport","touch","userAgent"};
// empty means "all".
func (c *EmulationController) Clear(ctx context.Context, aspects []string) EmulationStatus {
	c.mu.Lock()
	if len(aspects) == 0 {
		c.desired = model.EmulationState{}
	} else {
		for _, a := range aspects {
			switch a {
			case "viewport":
				c.desired.Viewport = nil
			case "touch":
				c.desired.Touch = nil
			case "userAgent":
				c.desired.UserAgent = nil
			}
		}
	}
	session := c.session
	c.mu.Unlock()

	if session != nil {
		c.applyClear(ctx, session)
	}
	return c.Status()
}

// Status returns the current {attached, applied, state, error} view
// (spec.md §4.6, §9 — attached/applied are never collapsed to one bool).
func (c *EmulationController) Status() EmulationStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := EmulationStatus{Attached: c.attached, Applied: c.applied, State: c.desired}
	if c.lastErr != nil {
		status.Error = c.lastErr.Error()
	}
	return status
}

// OnAttach captures the UA baseline on first attach and reapplies the
// current desired state on every new session (spec.md §4.8 "onAttach
// hook re-applies the current desired state on every new session;
// failures surface via lastError in status").
func (c *EmulationController) OnAttach(ctx context.Context, session *cdp.Session) {
	c.mu.Lock()
	c.session = session
	c.attached = true
	needBaseline := c.baselineUA == ""
	c.mu.Unlock()

	if needBaseline {
		if ua, err := currentUserAgent(ctx, session); err == nil {
			c.mu.Lock()
			c.baselineUA = ua
			c.mu.Unlock()
		}
	}
	c.apply(ctx, session)
}

// OnDetach marks the controller detached; Applied state is left as-is
// since it describes the last session's outcome, not this one.
func (c *EmulationController) OnDetach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attached = false
	c.session = nil
}

func (c *EmulationController) apply(ctx context.Context, session *cdp.Session) {
	c.mu.Lock()
	desired := c.desired
	c.mu.Unlock()

	err := applyEmulation(ctx, session, desired)

	c.mu.Lock()
	c.applied = err == nil
	c.lastErr = err
	c.mu.Unlock()
}

// applyClear reapplies the desired state, additionally restoring the UA
// baseline when UserAgent is no longer desired (spec.md §4.6 "UA clear
// restores a baseline captured from navigator.userAgent at first
// attach").
func (c *EmulationController) applyClear(ctx context.Context, session *cdp.Session) {
	c.mu.Lock()
	desired := c.desired
	baseline := c.baselineUA
	c.mu.Unlock()

	var err error
	if desired.UserAgent == nil && baseline != "" {
		_, err = session.SendAndWait(ctx, "Emulation.setUserAgentOverride", map[string]any{"userAgent": baseline}, cdp.DefaultTimeout)
	}
	if err == nil {
		err = applyEmulation(ctx, session, desired)
	}

	c.mu.Lock()
	c.applied = err == nil
	c.lastErr = err
	c.mu.Unlock()
}

func applyEmulation(ctx context.Context, session *cdp.Session, state model.EmulationState) error {
	if state.Viewport != nil {
		v := state.Viewport
		if _, err := session.SendAndWait(ctx, "Emulation.setDeviceMetricsOverride", map[string]any{
			"width":             v.Width,
			"height":            v.Height,
			"deviceScaleFactor": v.DPR,
			"mobile":            v.Mobile,
		}, cdp.DefaultTimeout); err != nil {
			return err
		}
	}
	if state.Touch != nil {
		if _, err := session.SendAndWait(ctx, "Emulation.setTouchEmulationEnabled", map[string]any{
			"enabled": state.Touch.Enabled,
		}, cdp.DefaultTimeout); err != nil {
			return err
		}
	}
	if state.UserAgent != nil && state.UserAgent.Value != nil {
		if _, err := session.SendAndWait(ctx, "Emulation.setUserAgentOverride", map[string]any{
			"userAgent": *state.UserAgent.Value,
		}, cdp.DefaultTimeout); err != nil {
			return err
		}
	}
	return nil
}

func currentUserAgent(ctx context.Context, session *cdp.Session) (string, error) {
	raw, err := session.SendAndWait(ctx, "Runtime.evaluate", map[string]any{
		"expression":    "navigator.userAgent",
		"returnByValue": true,
	}, cdp.DefaultTimeout)
	if err != nil {
		return "", err
	}
	var result struct {
		Result struct {
			Value string `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode navigator.userAgent result")
	}
	return result.Result.Value, nil
}
