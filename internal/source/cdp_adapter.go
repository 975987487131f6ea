package source

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/model"
	"github.com/argus-dev/argus/internal/util"
)

// CDPAdapter drives a direct CDP connection: target discovery/matching,
// attach sequence, and a reconnect loop with exponential backoff (spec.md
// §4.3, §4.4).
type CDPAdapter struct {
	host  string
	port  int
	hooks Hooks

	mu        sync.Mutex
	session   *cdp.Session
	match     *model.TargetMatch
	target    cdp.TargetInfo
	stopped   bool
	cancelRun context.CancelFunc
}

// NewCDPAdapter constructs an adapter bound to the given browser-level
// CDP endpoint (Chrome's --remote-debugging-port host/port).
func NewCDPAdapter(host string, port int, hooks Hooks) *CDPAdapter {
	return &CDPAdapter{host: host, port: port, hooks: hooks}
}

// Session returns the current live session, or nil if not attached.
func (a *CDPAdapter) Session() *cdp.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// ListTargets fetches the browser's `/json` target list (spec.md §4.3).
func (a *CDPAdapter) ListTargets(ctx context.Context) ([]cdp.TargetInfo, error) {
	return cdp.ListTargets(ctx, a.host, a.port)
}

// AttachTarget matches a target and runs the attach sequence, then keeps
// a background goroutine alive that reconnects with backoff whenever the
// session drops (spec.md §4.3 "reconnect policy").
func (a *CDPAdapter) AttachTarget(ctx context.Context, m *model.TargetMatch) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return apierr.New(apierr.CodeCDPClosed, "adapter is stopped")
	}
	if a.cancelRun != nil {
		a.cancelRun()
	}
	a.match = m
	runCtx, cancel := context.WithCancel(context.Background())
	a.cancelRun = cancel
	a.mu.Unlock()

	if err := a.connectOnce(ctx, m); err != nil {
		return err
	}

	util.SafeGo(func() { a.reconnectLoop(runCtx) })
	return nil
}

// DetachTarget closes the current session without stopping the reconnect loop.
func (a *CDPAdapter) DetachTarget(ctx context.Context) error {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.mu.Unlock()
	if s == nil {
		return nil
	}
	err := s.Close()
	if a.hooks.OnDetach != nil {
		a.hooks.OnDetach(nil)
	}
	return err
}

// Stop tears the adapter down permanently; idempotent.
func (a *CDPAdapter) Stop() error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	if a.cancelRun != nil {
		a.cancelRun()
	}
	s := a.session
	a.session = nil
	a.mu.Unlock()

	if s != nil {
		return s.Close()
	}
	return nil
}

// reconnectLoop watches the live session and, when it ends, waits out the
// backoff schedule and runs the attach sequence again (spec.md §4.3).
func (a *CDPAdapter) reconnectLoop(ctx context.Context) {
	backoff := &cdp.Backoff{}
	for {
		a.mu.Lock()
		s := a.session
		match := a.match
		a.mu.Unlock()
		if s == nil {
			return
		}

		select {
		case <-s.ClosedCh():
		case <-ctx.Done():
			return
		}

		if a.hooks.OnStatus != nil {
			a.hooks.OnStatus("reconnecting")
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff.Next()):
			}
			if err := a.connectOnce(ctx, match); err != nil {
				log.Warn().Err(err).Msg("cdp reconnect attempt failed")
				continue
			}
			backoff.Reset()
			break
		}
	}
}

// connectOnce runs the full attach sequence once: target discovery,
// filter, websocket, Runtime.enable, Page.enable, resolve navigator
// language/timezone, fire onAttach, announce attached (spec.md §4.3).
func (a *CDPAdapter) connectOnce(ctx context.Context, m *model.TargetMatch) error {
	targets, err := a.ListTargets(ctx)
	if err != nil {
		return err
	}
	target, err := cdp.MatchTarget(targets, m)
	if err != nil {
		return err
	}
	if target.WebSocketDebuggerURL == "" {
		return apierr.New(apierr.CodeNoMatch, "matched target has no webSocketDebuggerUrl")
	}

	session, err := cdp.Dial(ctx, target.WebSocketDebuggerURL)
	if err != nil {
		return err
	}

	if _, err := session.SendAndWait(ctx, "Runtime.enable", nil, cdp.DefaultTimeout); err != nil {
		session.Close()
		return err
	}
	if _, err := session.SendAndWait(ctx, "Page.enable", nil, cdp.DefaultTimeout); err != nil {
		session.Close()
		return err
	}

	language, timezone := resolveIntl(ctx, session)

	a.registerEventForwarding(session)

	a.mu.Lock()
	a.session = session
	a.target = target
	a.mu.Unlock()

	if a.hooks.OnAttach != nil {
		a.hooks.OnAttach(session)
	}
	if a.hooks.OnPageIntl != nil {
		a.hooks.OnPageIntl(language, timezone)
	}
	if a.hooks.OnStatus != nil {
		a.hooks.OnStatus("attached")
	}
	return nil
}

// registerEventForwarding wires Page.frameNavigated (top frame only) and
// Page.loadEventFired to the adapter's hooks, and forwards every other
// event verbatim via OnLog so the capture pipeline (C5) can normalize it
// (spec.md §4.3, §4.5).
func (a *CDPAdapter) registerEventForwarding(session *cdp.Session) {
	session.OnEvent("Page.frameNavigated", func(params json.RawMessage) {
		var evt struct {
			Frame struct {
				ParentID string `json:"parentId,omitempty"`
			} `json:"frame"`
		}
		if err := json.Unmarshal(params, &evt); err == nil && evt.Frame.ParentID == "" {
			if a.hooks.OnPageNavigation != nil {
				a.hooks.OnPageNavigation()
			}
		}
	})
	session.OnEvent("Page.loadEventFired", func(json.RawMessage) {
		if a.hooks.OnPageLoad != nil {
			a.hooks.OnPageLoad()
		}
	})

	for _, method := range []string{
		"Runtime.consoleAPICalled", "Runtime.exceptionThrown",
		"Network.requestWillBeSent", "Network.responseReceived",
		"Network.loadingFinished", "Network.loadingFailed",
	} {
		method := method
		session.OnEvent(method, func(params json.RawMessage) {
			if a.hooks.OnLog != nil {
				a.hooks.OnLog(method, params)
			}
		})
	}
}

func resolveIntl(ctx context.Context, session *cdp.Session) (language, timezone string) {
	raw, err := session.SendAndWait(ctx, "Runtime.evaluate", map[string]any{
		"expression":    "JSON.stringify({language: navigator.language, timezone: Intl.DateTimeFormat().resolvedOptions().timeZone})",
		"returnByValue": true,
	}, cdp.DefaultTimeout)
	if err != nil {
		return "", ""
	}
	var result struct {
		Result struct {
			Value string `json:"value"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", ""
	}
	var intl struct {
		Language string `json:"language"`
		Timezone string `json:"timezone"`
	}
	if err := json.Unmarshal([]byte(result.Result.Value), &intl); err != nil {
		return "", ""
	}
	return intl.Language, intl.Timezone
}

var _ Adapter = (*CDPAdapter)(nil)
