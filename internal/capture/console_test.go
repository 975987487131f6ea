package capture

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/argus-dev/argus/internal/redaction"
	"github.com/argus-dev/argus/internal/ring"
)

func mustEngine(t *testing.T) *redaction.Engine {
	t.Helper()
	return redaction.NewEngine()
}

func TestHandleConsoleAPICalledNormalizesLevelAndText(t *testing.T) {
	buf := ring.NewLogBuffer(10)
	p := &ConsolePipeline{Buffer: buf}

	params := json.RawMessage(`{
		"type": "warning",
		"args": [{"type":"string","value":"disk space low"}],
		"timestamp": 1.0
	}`)
	p.HandleConsoleAPICalled(context.Background(), nil, params)

	got := buf.Snapshot(-1, ring.LogFilter{}, 0)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Level != "warning" {
		t.Fatalf("got level %q, want warning", got[0].Level)
	}
	if got[0].Text != `"disk space low"` {
		t.Fatalf("got text %q, want the JSON-encoded string value", got[0].Text)
	}
	if got[0].Source != "console" {
		t.Fatalf("got source %q, want console", got[0].Source)
	}
}

func TestHandleConsoleAPICalledMapsAssertToError(t *testing.T) {
	buf := ring.NewLogBuffer(10)
	p := &ConsolePipeline{Buffer: buf}

	p.HandleConsoleAPICalled(context.Background(), nil, json.RawMessage(`{"type":"assert","args":[]}`))

	got := buf.Snapshot(-1, ring.LogFilter{}, 0)
	if len(got) != 1 || got[0].Level != "error" {
		t.Fatalf("got %+v, want level=error for console.assert", got)
	}
}

func TestHandleConsoleAPICalledRedactsText(t *testing.T) {
	buf := ring.NewLogBuffer(10)
	p := &ConsolePipeline{Buffer: buf, Redactor: mustEngine(t)}

	params := json.RawMessage(`{"type":"log","args":[{"type":"string","value":"Bearer sk-live-abcdef1234567890abcdef1234567890"}]}`)
	p.HandleConsoleAPICalled(context.Background(), nil, params)

	got := buf.Snapshot(-1, ring.LogFilter{}, 0)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if strings.Contains(got[0].Text, "sk-live-abcdef1234567890abcdef1234567890") {
		t.Fatalf("expected the bearer token to be redacted, got %q", got[0].Text)
	}
}

func TestHandleExceptionThrownAugmentsGenericUncaught(t *testing.T) {
	buf := ring.NewLogBuffer(10)
	p := &ConsolePipeline{Buffer: buf}

	params := json.RawMessage(`{
		"exceptionDetails": {
			"text": "Uncaught",
			"exception": {"type":"object","description":"TypeError: x is not a function"}
		}
	}`)
	p.HandleExceptionThrown(context.Background(), nil, params)

	got := buf.Snapshot(-1, ring.LogFilter{}, 0)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Level != "exception" {
		t.Fatalf("got level %q, want exception", got[0].Level)
	}
	want := "Uncaught: TypeError: x is not a function"
	if got[0].Text != want {
		t.Fatalf("got text %q, want %q", got[0].Text, want)
	}
}

func TestHandleExceptionThrownPrefersNonGenericDescription(t *testing.T) {
	buf := ring.NewLogBuffer(10)
	p := &ConsolePipeline{Buffer: buf}

	params := json.RawMessage(`{
		"exceptionDetails": {
			"text": "custom message",
			"exception": {"type":"object","description":"ReferenceError: y is not defined"}
		}
	}`)
	p.HandleExceptionThrown(context.Background(), nil, params)

	got := buf.Snapshot(-1, ring.LogFilter{}, 0)
	if got[0].Text != "ReferenceError: y is not defined" {
		t.Fatalf("got text %q, want the bare description to replace non-generic text", got[0].Text)
	}
}
