package ring

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/argus-dev/argus/internal/model"
)

// LogFilter narrows a LogBuffer read (spec.md §4.2 "snapshot"): Levels is
// an allow-list (empty means "all"), Matches holds regexes that must all
// match Text (case sensitivity per MatchCase), Source is a substring
// match, and SinceTs is an inclusive lower bound on Ts.
type LogFilter struct {
	Levels    []string
	Matches   []*regexp.Regexp
	MatchCase bool
	Source    string
	SinceTs   int64
}

func (f LogFilter) match(e model.LogEvent) bool {
	if len(f.Levels) > 0 {
		ok := false
		for _, lvl := range f.Levels {
			if lvl == e.Level {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.SinceTs > 0 && e.Ts < f.SinceTs {
		return false
	}
	if f.Source != "" && !strings.Contains(e.Source, f.Source) {
		return false
	}
	// Every supplied regex must match Text (spec.md §4.2); case-folding, if
	// requested via !MatchCase, is baked into the compiled pattern by the
	// caller (an "(?i)" prefix) rather than decided here.
	for _, re := range f.Matches {
		if !re.MatchString(e.Text) {
			return false
		}
	}
	return true
}

// LogBuffer is the ring buffer of LogEvent records a watcher's capture
// pipeline (C5) appends to and its HTTP API (C7) reads/long-polls from.
type LogBuffer struct {
	buf *Buffer[model.LogEvent]
}

// NewLogBuffer creates a LogBuffer with the given capacity (spec.md §3
// default 50000).
func NewLogBuffer(capacity int) *LogBuffer {
	return &LogBuffer{buf: NewBuffer[model.LogEvent](capacity)}
}

// Add assigns the next id to event and appends it (spec.md §4.2 "add").
func (l *LogBuffer) Add(event model.LogEvent) model.LogEvent {
	return l.buf.Add(func(id int64) model.LogEvent {
		event.ID = id
		return event
	})
}

// Snapshot returns up to limit matching events with id > after, oldest first.
func (l *LogBuffer) Snapshot(after int64, filter LogFilter, limit int) []model.LogEvent {
	return l.buf.Snapshot(after, filter.match, limit)
}

// WaitForAfter blocks for up to timeout for a matching event (spec.md §4.2, §8.2).
func (l *LogBuffer) WaitForAfter(ctx context.Context, after int64, filter LogFilter, limit int, timeout time.Duration) []model.LogEvent {
	return l.buf.WaitForAfter(ctx, after, filter.match, limit, timeout)
}

// NextAfter returns the current high-water mark id.
func (l *LogBuffer) NextAfter() int64 { return l.buf.NextID() }

// Len returns the number of retained events.
func (l *LogBuffer) Len() int { return l.buf.Len() }

// Clear discards all retained events.
func (l *LogBuffer) Clear() { l.buf.Clear() }
