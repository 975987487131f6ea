package source

import (
	"context"
	"io"
	"sync"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/model"
)

// ExtensionAdapter drives a browser extension over Chrome's
// Native-Messaging stdio protocol instead of a direct WebSocket (spec.md
// §4.4). From the watcher's perspective it exposes the same
// {session, listTargets, attachTarget, detachTarget, stop} + Hooks
// surface as CDPAdapter; the difference is that the set of attachable
// "targets" is whatever tabs the extension reports, and attaching is
// driven by the extension's own tab-lifecycle frames rather than a
// predicate match run by this process.
type ExtensionAdapter struct {
	hooks Hooks

	mu      sync.Mutex
	session *cdp.Session
	conn    *nmConn
	tabs    []nmTabInfo
	stopped bool
}

// NewExtensionAdapter wraps the given Native-Messaging stdio pipe (in is
// normally os.Stdin, out os.Stdout when this process was launched by
// Chrome as the Native-Messaging host; tests pass in-memory pipes).
func NewExtensionAdapter(in io.Reader, out io.Writer, hooks Hooks) *ExtensionAdapter {
	a := &ExtensionAdapter{hooks: hooks}
	conn := newNMConn(in, out, a.onTabFrame)
	a.conn = conn
	a.session = cdp.NewSession(conn)
	return a
}

// Session returns the live session. Unlike CDPAdapter, this is non-nil
// from construction: the Native-Messaging pipe carries both tab
// lifecycle and CDP traffic on one connection, so there is no separate
// "dial" step.
func (a *ExtensionAdapter) Session() *cdp.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.session
}

// ListTargets returns the tabs the extension has most recently reported
// via a tab_list frame (spec.md §4.4 "listTargets ... user-driven in the
// browser UI rather than predicate-matched").
func (a *ExtensionAdapter) ListTargets(ctx context.Context) ([]cdp.TargetInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]cdp.TargetInfo, 0, len(a.tabs))
	for _, t := range a.tabs {
		out = append(out, cdp.TargetInfo{ID: t.ID, Type: "page", Title: t.Title, URL: t.URL})
	}
	return out, nil
}

// AttachTarget is a no-op confirming a tab the extension has already
// attached: the extension decides which tab to proxy in the browser UI,
// this process only records which one is live and fires onAttach (spec.md
// §4.4). m is accepted for interface parity with CDPAdapter but is
// otherwise unused: there is nothing here to predicate-match against.
func (a *ExtensionAdapter) AttachTarget(ctx context.Context, m *model.TargetMatch) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return apierr.New(apierr.CodeCDPClosed, "adapter is stopped")
	}
	session := a.session
	a.mu.Unlock()

	if a.hooks.OnAttach != nil {
		a.hooks.OnAttach(session)
	}
	if a.hooks.OnStatus != nil {
		a.hooks.OnStatus("attached")
	}
	return nil
}

// DetachTarget tells the caller's hooks the session ended; the
// underlying Native-Messaging pipe is left open since the extension, not
// this process, owns the tab-level detach decision.
func (a *ExtensionAdapter) DetachTarget(ctx context.Context) error {
	if a.hooks.OnDetach != nil {
		a.hooks.OnDetach(nil)
	}
	return nil
}

// Stop tears the adapter down permanently; idempotent.
func (a *ExtensionAdapter) Stop() error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	session := a.session
	a.mu.Unlock()
	if session != nil {
		return session.Close()
	}
	return nil
}

// onTabFrame handles a tab_list/tab_attached/tab_detached frame read off
// the Native-Messaging pipe (nmtransport.go), updating the known tab set
// and firing the relevant hook.
func (a *ExtensionAdapter) onTabFrame(f nmFrame) {
	switch f.Type {
	case "tab_list":
		a.mu.Lock()
		a.tabs = f.Tabs
		a.mu.Unlock()
	case "tab_attached":
		if a.hooks.OnStatus != nil {
			a.hooks.OnStatus("attached")
		}
	case "tab_detached":
		if a.hooks.OnDetach != nil {
			a.hooks.OnDetach(nil)
		}
	}
}

var _ Adapter = (*ExtensionAdapter)(nil)
