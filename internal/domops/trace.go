package domops

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/config"
	"github.com/google/uuid"
)

// TraceStartResult is the `trace start` response.
type TraceStartResult struct {
	TraceID string `json:"traceId"`
}

// TraceStopResult is the `trace stop` response.
type TraceStopResult struct {
	TraceID  string `json:"traceId"`
	Path     string `json:"path"`
	Events   int    `json:"events"`
	Aborted  bool   `json:"aborted,omitempty"`
}

// Tracer manages at most one in-flight Tracing.start/end capture per
// watcher, streaming Tracing.dataCollected events to disk so captures
// of arbitrary length don't accumulate unboundedly in memory (spec.md
// §4.6 "trace start/stop ... writes the collected trace events to
// <artifacts>/traces/<id>.json").
type Tracer struct {
	mu      sync.Mutex
	active  *traceRun
}

type traceRun struct {
	id                  string
	file                *os.File
	enc                 *json.Encoder
	count               int
	unregister          func()
	unregisterComplete  func()
	done                chan struct{}
}

// NewTracer returns an idle Tracer.
func NewTracer() *Tracer {
	return &Tracer{}
}

// Start begins a trace capture (spec.md §4.6 "trace start"). Only one
// capture may be active per watcher at a time.
func (t *Tracer) Start(ctx context.Context, session *cdp.Session, categories []string) (TraceStartResult, error) {
	if session == nil {
		return TraceStartResult{}, notAttached()
	}
	t.mu.Lock()
	if t.active != nil {
		t.mu.Unlock()
		return TraceStartResult{}, apierr.New(apierr.CodeOperatorError, "a trace is already in progress")
	}
	t.mu.Unlock()

	dir, err := config.TracesDir()
	if err != nil {
		return TraceStartResult{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot resolve traces directory")
	}
	if err := config.EnsureDir(dir); err != nil {
		return TraceStartResult{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot create traces directory")
	}

	id := uuid.NewString()
	path := filepath.Join(dir, id+".json")
	f, err := os.Create(path)
	if err != nil {
		return TraceStartResult{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot create trace file")
	}

	if _, err := f.WriteString("["); err != nil {
		f.Close()
		return TraceStartResult{}, apierr.Wrap(err, apierr.CodeOperatorError, "cannot write trace file")
	}

	run := &traceRun{id: id, file: f, enc: json.NewEncoder(f), done: make(chan struct{})}

	unregister := session.OnEvent("Tracing.dataCollected", func(params json.RawMessage) {
		var payload struct {
			Value []json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(params, &payload); err != nil {
			return
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if t.active != run {
			return
		}
		for _, ev := range payload.Value {
			if run.count > 0 {
				f.WriteString(",")
			}
			f.Write(ev)
			run.count++
		}
	})
	run.unregister = unregister

	run.unregisterComplete = session.OnEvent("Tracing.tracingComplete", func(params json.RawMessage) {
		t.mu.Lock()
		if t.active == run {
			close(run.done)
		}
		t.mu.Unlock()
	})

	t.mu.Lock()
	t.active = run
	t.mu.Unlock()

	params := map[string]any{}
	if len(categories) > 0 {
		params["categories"] = strings.Join(categories, ",")
	} else {
		params["categories"] = "devtools.timeline,v8,blink"
	}
	if _, err := session.SendAndWait(ctx, "Tracing.start", params, cdp.DefaultTimeout); err != nil {
		t.mu.Lock()
		t.active = nil
		t.mu.Unlock()
		run.unregister()
		run.unregisterComplete()
		f.Close()
		os.Remove(path)
		return TraceStartResult{}, err
	}

	return TraceStartResult{TraceID: id}, nil
}

// Stop ends the in-flight trace capture, waits for Tracing.tracingComplete,
// and finalizes the output file (spec.md §4.6 "trace stop").
func (t *Tracer) Stop(ctx context.Context, session *cdp.Session) (TraceStopResult, error) {
	if session == nil {
		return TraceStopResult{}, notAttached()
	}
	t.mu.Lock()
	run := t.active
	t.mu.Unlock()
	if run == nil {
		return TraceStopResult{}, apierr.New(apierr.CodeOperatorError, "no trace is in progress")
	}

	if _, err := session.SendAndWait(ctx, "Tracing.end", nil, cdp.DefaultTimeout); err != nil {
		return TraceStopResult{}, err
	}

	aborted := false
	select {
	case <-run.done:
	case <-ctx.Done():
		aborted = true
	case <-session.ClosedCh():
		aborted = true
	}

	t.mu.Lock()
	t.active = nil
	t.mu.Unlock()
	run.unregister()
	run.unregisterComplete()
	run.file.WriteString("]")
	path := run.file.Name()
	run.file.Close()

	return TraceStopResult{TraceID: run.id, Path: path, Events: run.count, Aborted: aborted}, nil
}

// Abort discards any in-flight trace without waiting on the browser,
// used when a target detaches mid-capture (spec.md §4.8 "onDetach ...
// aborts in-flight traces").
func (t *Tracer) Abort() {
	t.mu.Lock()
	run := t.active
	t.active = nil
	t.mu.Unlock()
	if run == nil {
		return
	}
	run.unregister()
	run.unregisterComplete()
	run.file.WriteString("]")
	run.file.Close()
}
