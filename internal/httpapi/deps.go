// Package httpapi implements the watcher's loopback HTTP API (spec.md
// §4.7, C7): a chi router over the session, ring buffers, and domops
// controllers a single watcher process owns.
package httpapi

import (
	"time"

	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/domops"
	"github.com/argus-dev/argus/internal/model"
	"github.com/argus-dev/argus/internal/ring"
)

// MaxRequestBody bounds POST bodies (spec.md §4.7 "Request bodies are
// size-bounded").
const MaxRequestBody = 1 << 20 // 1 MiB

// Deps bundles everything a watcher's HTTP handlers need. Fields are
// read through accessor funcs where the underlying value can change
// across a reattach (Session, Record), and held directly where the
// object itself is stable for the watcher's lifetime (buffers,
// controllers).
type Deps struct {
	Session func() *cdp.Session
	Record  func() model.WatcherRecord

	Logs *ring.LogBuffer
	Net  *ring.NetBuffer

	Emulation *domops.EmulationController
	Throttle  *domops.ThrottleController
	Tracer    *domops.Tracer

	// NetEnabled reports whether network capture is active for this
	// watcher; /net and /net/tail answer net_disabled when false
	// (spec.md §4.7, §7 "net_disabled").
	NetEnabled func() bool

	// RequestShutdown triggers the watcher's graceful shutdown sequence
	// (spec.md §4.8); /shutdown replies {ok:true} before it's called.
	RequestShutdown func()

	// OnHTTPRequest is the "HttpRequestEvent" observability hook every
	// handler emits (spec.md §4.7); nil is a valid no-op.
	OnHTTPRequest func(method, path string, status int, dur time.Duration)
}
