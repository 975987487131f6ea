package ring

import (
	"context"
	"strings"
	"time"

	"github.com/argus-dev/argus/internal/model"
)

// NetFilter narrows a NetBuffer read (spec.md §4.2, §4.5): URLContains and
// Method are substring/exact matches, Status is an allow-list of exact
// HTTP status codes (empty means "all", including in-flight requests with
// no status yet), and SinceTs is an inclusive lower bound on Ts.
type NetFilter struct {
	URLContains string
	Method      string
	Status      []int
	SinceTs     int64
}

func (f NetFilter) match(e model.NetworkRequestSummary) bool {
	if f.SinceTs > 0 && e.Ts < f.SinceTs {
		return false
	}
	if f.URLContains != "" && !strings.Contains(e.URL, f.URLContains) {
		return false
	}
	if f.Method != "" && !strings.EqualFold(f.Method, e.Method) {
		return false
	}
	if len(f.Status) > 0 {
		ok := false
		for _, s := range f.Status {
			if s == e.Status {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// NetBuffer is the ring buffer of NetworkRequestSummary records a
// watcher's network capture pipeline (C5) appends to and its HTTP API
// (C7) reads/long-polls from. Entries are mutated in place as a request
// transitions requestWillBeSent → responseReceived → loadingFinished/
// loadingFailed (spec.md §4.5); Update re-finds the entry by requestId
// rather than appending a new one.
type NetBuffer struct {
	buf *Buffer[model.NetworkRequestSummary]
}

// NewNetBuffer creates a NetBuffer with the given capacity (spec.md §3
// default 5000).
func NewNetBuffer(capacity int) *NetBuffer {
	return &NetBuffer{buf: NewBuffer[model.NetworkRequestSummary](capacity)}
}

// Add records a new in-flight request on Network.requestWillBeSent.
func (n *NetBuffer) Add(entry model.NetworkRequestSummary) model.NetworkRequestSummary {
	return n.buf.Add(func(id int64) model.NetworkRequestSummary {
		entry.ID = id
		return entry
	})
}

// Update applies mutate to the most recent retained entry whose RequestID
// matches, for responseReceived/loadingFinished/loadingFailed transitions.
// It reports whether a matching entry was found (false if it has already
// been evicted, in which case the caller has nothing left to update).
func (n *NetBuffer) Update(requestID string, mutate func(*model.NetworkRequestSummary)) bool {
	n.buf.mu.Lock()
	defer n.buf.mu.Unlock()

	for i := len(n.buf.entries) - 1; i >= 0; i-- {
		if n.buf.entries[i].RequestID == requestID {
			mutate(&n.buf.entries[i])
			n.buf.cond.Broadcast()
			return true
		}
	}
	return false
}

// Snapshot returns up to limit matching requests with id > after, oldest first.
func (n *NetBuffer) Snapshot(after int64, filter NetFilter, limit int) []model.NetworkRequestSummary {
	return n.buf.Snapshot(after, filter.match, limit)
}

// WaitForAfter blocks for up to timeout for a matching request (spec.md §4.2, §8.2).
func (n *NetBuffer) WaitForAfter(ctx context.Context, after int64, filter NetFilter, limit int, timeout time.Duration) []model.NetworkRequestSummary {
	return n.buf.WaitForAfter(ctx, after, filter.match, limit, timeout)
}

// NextAfter returns the current high-water mark id.
func (n *NetBuffer) NextAfter() int64 { return n.buf.NextID() }

// Len returns the number of retained requests.
func (n *NetBuffer) Len() int { return n.buf.Len() }

// Clear discards all retained requests.
func (n *NetBuffer) Clear() { n.buf.Clear() }
