// Package source implements the uniform abstraction over either a
// direct CDP session or a Native-Messaging extension bridge (spec.md
// §4.4, C4): both expose {session, listTargets, attach, detach} plus a
// common set of hooks so the watcher orchestrator (C8) never needs to
// know which kind of source it is driving.
package source

import (
	"context"

	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/model"
)

// Hooks are the events an Adapter fires; every field is optional. They
// are called synchronously from the adapter's own goroutine, so a hook
// body must not block (spec.md §4.4 "emit onLog, onStatus,
// onPageNavigation, onPageLoad, onPageIntl, onAttach, onDetach").
type Hooks struct {
	OnLog            func(method string, params []byte)
	OnStatus         func(status string)
	OnPageNavigation func()
	OnPageLoad       func()
	OnPageIntl       func(language, timezone string)
	OnAttach         func(session *cdp.Session)
	OnDetach         func(reason error)
}

// Adapter is the uniform handle over a CDP-backed or extension-backed
// source (spec.md §4.4). From the watcher's perspective the two are
// indistinguishable except that the extension adapter's listTargets/
// attachTarget are user-driven in the browser UI rather than
// predicate-matched.
type Adapter interface {
	// Session returns the current live CDP session, or nil if not
	// currently attached.
	Session() *cdp.Session

	// ListTargets returns the attachable targets known to this source.
	ListTargets(ctx context.Context) ([]cdp.TargetInfo, error)

	// AttachTarget attaches (or reattaches) to the target matching m,
	// running the full attach sequence (spec.md §4.3).
	AttachTarget(ctx context.Context, m *model.TargetMatch) error

	// DetachTarget detaches the current session without stopping the adapter.
	DetachTarget(ctx context.Context) error

	// Stop tears the adapter down permanently.
	Stop() error
}
