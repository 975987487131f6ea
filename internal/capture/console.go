// Package capture normalizes raw CDP events (forwarded verbatim by a
// source.Adapter's onLog hook) into the LogEvent/NetworkRequestSummary
// shapes the ring buffers store (spec.md §4.5). The general shape —
// decode a payload, normalize it, append it to a buffer — follows the
// teacher's own extension-ingest handlers (internal/capture/handlers.go,
// e.g. HandleNetworkBodies: decode JSON, call an Add* method); here the
// payload arrives as a CDP event instead of an extension HTTP POST.
package capture

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/model"
	"github.com/argus-dev/argus/internal/redaction"
	"github.com/argus-dev/argus/internal/ring"
)

// consoleAPICalledEvent mirrors the subset of CDP's
// Runtime.consoleAPICalled this pipeline consumes.
type consoleAPICalledEvent struct {
	Type               string            `json:"type"`
	Args               []cdp.RemoteObject `json:"args"`
	StackTrace         *stackTrace       `json:"stackTrace,omitempty"`
	Timestamp          float64           `json:"timestamp"`
}

type stackTrace struct {
	CallFrames []cdp.CallFrame `json:"callFrames"`
}

// exceptionThrownEvent mirrors Runtime.exceptionThrown.
type exceptionThrownEvent struct {
	Timestamp       float64         `json:"timestamp"`
	ExceptionDetails exceptionDetails `json:"exceptionDetails"`
}

type exceptionDetails struct {
	Text       string          `json:"text"`
	URL        string          `json:"url"`
	LineNumber int             `json:"lineNumber"`
	ColumnNumber int           `json:"columnNumber"`
	StackTrace *stackTrace     `json:"stackTrace,omitempty"`
	Exception  *cdp.RemoteObject `json:"exception,omitempty"`
}

// ConsolePipeline normalizes Runtime.consoleAPICalled and
// Runtime.exceptionThrown events into LogEvents and appends them to a
// LogBuffer (spec.md §4.5).
type ConsolePipeline struct {
	Buffer    *ring.LogBuffer
	Redactor  *redaction.Engine
	Ignore    []*regexp.Regexp // stack frames to skip when selecting the "best" frame
	PageURL   func() string
	PageTitle func() string
}

// levelForConsoleType maps CDP's console.<method> `type` to the LogEvent
// `level` enum (spec.md §4.5 "warn→warning, assert→error, dir/table/
// trace/etc.→log with info/debug preserved").
func levelForConsoleType(t string) string {
	switch t {
	case "warning", "warn":
		return "warning"
	case "assert", "error":
		return "error"
	case "info":
		return "info"
	case "debug":
		return "debug"
	default:
		return "log"
	}
}

// HandleConsoleAPICalled normalizes one Runtime.consoleAPICalled event
// (spec.md §4.5).
func (p *ConsolePipeline) HandleConsoleAPICalled(ctx context.Context, session *cdp.Session, params json.RawMessage) {
	var evt consoleAPICalledEvent
	if err := json.Unmarshal(params, &evt); err != nil {
		return
	}

	previews := make([]model.ArgPreview, 0, len(evt.Args))
	texts := make([]string, 0, len(evt.Args))
	for _, arg := range evt.Args {
		preview := cdp.PreviewValue(ctx, session, arg)
		previews = append(previews, preview)
		texts = append(texts, previewText(preview))
	}

	event := model.LogEvent{
		Ts:     time.Now().UnixMilli(),
		Level:  levelForConsoleType(evt.Type),
		Text:   p.redact(strings.Join(texts, " ")),
		Args:   previews,
		Source: "console",
	}
	p.attachFrame(&event, evt.StackTrace)
	p.attachPage(&event)
	p.Buffer.Add(event)
}

// HandleExceptionThrown normalizes one Runtime.exceptionThrown event
// (spec.md §4.5 "text prefers exception.description, else
// exceptionDetails.text; generic 'Uncaught'/'Uncaught (in promise)' is
// augmented with the description").
func (p *ConsolePipeline) HandleExceptionThrown(ctx context.Context, session *cdp.Session, params json.RawMessage) {
	var evt exceptionThrownEvent
	if err := json.Unmarshal(params, &evt); err != nil {
		return
	}

	text := evt.ExceptionDetails.Text
	if evt.ExceptionDetails.Exception != nil {
		preview := cdp.PreviewValue(ctx, session, *evt.ExceptionDetails.Exception)
		if preview.Description != "" {
			if isGenericUncaught(text) {
				text = text + ": " + preview.Description
			} else {
				text = preview.Description
			}
		}
	}

	event := model.LogEvent{
		Ts:     time.Now().UnixMilli(),
		Level:  "exception",
		Text:   p.redact(text),
		Source: "exception",
	}
	if evt.ExceptionDetails.StackTrace != nil {
		p.attachFrame(&event, evt.ExceptionDetails.StackTrace)
	} else {
		event.File = evt.ExceptionDetails.URL
		event.Line = evt.ExceptionDetails.LineNumber + 1
		event.Column = evt.ExceptionDetails.ColumnNumber + 1
	}
	p.attachPage(&event)
	p.Buffer.Add(event)
}

func isGenericUncaught(text string) bool {
	return text == "Uncaught" || text == "Uncaught (in promise)"
}

func (p *ConsolePipeline) attachFrame(event *model.LogEvent, st *stackTrace) {
	if st == nil || len(st.CallFrames) == 0 {
		return
	}
	frame, ok := cdp.SelectFrame(st.CallFrames, p.Ignore)
	if !ok {
		return
	}
	event.File = frame.File
	event.Line = frame.Line
	event.Column = frame.Column
}

func (p *ConsolePipeline) attachPage(event *model.LogEvent) {
	if p.PageURL != nil {
		event.PageURL = p.PageURL()
	}
	if p.PageTitle != nil {
		event.PageTitle = p.PageTitle()
	}
}

func (p *ConsolePipeline) redact(text string) string {
	if p.Redactor == nil {
		return text
	}
	return p.Redactor.Redact(text)
}

func previewText(p model.ArgPreview) string {
	if p.Value != nil {
		if s, ok := p.Value.(string); ok {
			return s
		}
		data, err := json.Marshal(p.Value)
		if err == nil {
			return string(data)
		}
	}
	if p.Description != "" {
		return p.Description
	}
	return p.Type
}
