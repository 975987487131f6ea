package ring

import (
	"regexp"
	"testing"

	"github.com/argus-dev/argus/internal/model"
)

func TestLogBufferFiltersByLevel(t *testing.T) {
	b := NewLogBuffer(100)
	b.Add(model.LogEvent{Level: "info", Text: "hello"})
	b.Add(model.LogEvent{Level: "error", Text: "boom"})

	got := b.Snapshot(-1, LogFilter{Levels: []string{"error"}}, 0)
	if len(got) != 1 || got[0].Text != "boom" {
		t.Fatalf("got %+v, want one error event", got)
	}
}

func TestLogBufferFiltersByRegexAndCase(t *testing.T) {
	b := NewLogBuffer(100)
	b.Add(model.LogEvent{Level: "log", Text: "Hello World"})
	b.Add(model.LogEvent{Level: "log", Text: "goodbye"})

	caseSensitive := LogFilter{Matches: []*regexp.Regexp{regexp.MustCompile("^Hello")}}
	got := b.Snapshot(-1, caseSensitive, 0)
	if len(got) != 1 || got[0].Text != "Hello World" {
		t.Fatalf("got %+v, want one match for ^Hello", got)
	}

	caseInsensitive := LogFilter{Matches: []*regexp.Regexp{regexp.MustCompile("(?i)^hello")}}
	got = b.Snapshot(-1, caseInsensitive, 0)
	if len(got) != 1 || got[0].Text != "Hello World" {
		t.Fatalf("got %+v, want one case-insensitive match", got)
	}
}

func TestLogBufferFiltersBySourceAndSinceTs(t *testing.T) {
	b := NewLogBuffer(100)
	b.Add(model.LogEvent{Level: "log", Text: "a", Source: "console", Ts: 100})
	b.Add(model.LogEvent{Level: "log", Text: "b", Source: "exception", Ts: 200})

	got := b.Snapshot(-1, LogFilter{Source: "console"}, 0)
	if len(got) != 1 || got[0].Text != "a" {
		t.Fatalf("got %+v, want one console event", got)
	}

	got = b.Snapshot(-1, LogFilter{SinceTs: 150}, 0)
	if len(got) != 1 || got[0].Text != "b" {
		t.Fatalf("got %+v, want one event at or after ts=150", got)
	}
}

func TestLogBufferAddAssignsIncreasingIDs(t *testing.T) {
	b := NewLogBuffer(100)
	first := b.Add(model.LogEvent{Text: "one"})
	second := b.Add(model.LogEvent{Text: "two"})
	if second.ID <= first.ID {
		t.Fatalf("second id %d not greater than first id %d", second.ID, first.ID)
	}
	if b.NextAfter() != second.ID {
		t.Fatalf("NextAfter() = %d, want %d", b.NextAfter(), second.ID)
	}
}
