package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
	"github.com/argus-dev/argus/internal/domops"
	"github.com/argus-dev/argus/internal/ring"
	"github.com/argus-dev/argus/internal/util"
)

type handler struct {
	deps *Deps
}

// decodeBody reads a size-bounded JSON body into dst; a malformed or
// oversized body renders invalid_body directly and returns false
// (spec.md §4.7 "malformed JSON ⇒ 400 invalid_body").
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	body := io.LimitReader(r.Body, MaxRequestBody+1)
	raw, err := io.ReadAll(body)
	if err != nil {
		apierr.WriteError(w, apierr.New(apierr.CodeInvalidBody, "cannot read request body"))
		return false
	}
	if int64(len(raw)) > MaxRequestBody {
		apierr.WriteError(w, apierr.New(apierr.CodeInvalidBody, "request body too large"))
		return false
	}
	if len(raw) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		apierr.WriteError(w, apierr.New(apierr.CodeInvalidBody, "malformed JSON body"))
		return false
	}
	return true
}

func (h *handler) session() *cdp.Session {
	if h.deps.Session == nil {
		return nil
	}
	return h.deps.Session()
}

// selectorBody is embedded in request bodies that parameterize a DOM
// operator over a selector match (spec.md §4.6 "Selector resolution").
type selectorBody struct {
	Selector string `json:"selector"`
	All      bool   `json:"all"`
	Text     string `json:"text"`
}

func (s selectorBody) toSelector() domops.Selector {
	return domops.Selector{Selector: s.Selector, All: s.All, Text: s.Text}
}

// --- /status ---------------------------------------------------------

type statusResponse struct {
	Attached  bool           `json:"attached"`
	Record    any            `json:"record"`
	LogCount  int            `json:"logCount"`
	NetCount  int            `json:"netCount"`
	Emulation domops.EmulationStatus `json:"emulation"`
	Throttle  domops.ThrottleStatus  `json:"throttle"`
}

// status never blocks (spec.md §4.7 "GET /status ... never blocks").
func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Attached: h.session() != nil,
		LogCount: h.deps.Logs.Len(),
	}
	if h.deps.Record != nil {
		resp.Record = h.deps.Record()
	}
	if h.deps.Net != nil {
		resp.NetCount = h.deps.Net.Len()
	}
	if h.deps.Emulation != nil {
		resp.Emulation = h.deps.Emulation.Status()
	}
	if h.deps.Throttle != nil {
		resp.Throttle = h.deps.Throttle.Status()
	}
	apierr.WriteOK(w, resp)
}

// --- /logs, /tail ------------------------------------------------------

func parseLogFilter(q map[string][]string) (ring.LogFilter, error) {
	var f ring.LogFilter
	if v := first(q, "levels"); v != "" {
		f.Levels = strings.Split(v, ",")
	}
	f.Source = first(q, "source")
	f.MatchCase = first(q, "matchCase") == "true"
	if v := first(q, "sinceTs"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, apierr.New(apierr.CodeInvalidBody, "invalid sinceTs")
		}
		f.SinceTs = ts
	}
	for _, pattern := range q["match"] {
		expr := pattern
		if !f.MatchCase {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return f, apierr.New(apierr.CodeInvalidMatch, "invalid match regex: "+pattern)
		}
		f.Matches = append(f.Matches, re)
	}
	return f, nil
}

func first(q map[string][]string, key string) string {
	if v, ok := q[key]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}

func parseAfterLimit(q map[string][]string) (int64, int) {
	after := int64(0)
	if v := first(q, "after"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			after = n
		}
	}
	limit := 0
	if v := first(q, "limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	return after, limit
}

func parseTimeoutMs(q map[string][]string) time.Duration {
	const (
		minMs     = 1000
		maxMs     = 120000
		defaultMs = 25000
	)
	ms := defaultMs
	if v := first(q, "timeoutMs"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			ms = n
		}
	}
	if ms < minMs {
		ms = minMs
	}
	if ms > maxMs {
		ms = maxMs
	}
	return time.Duration(ms) * time.Millisecond
}

func (h *handler) logs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLogFilter(r.URL.Query())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	after, limit := parseAfterLimit(r.URL.Query())
	events := h.deps.Logs.Snapshot(after, filter, limit)
	apierr.WriteOK(w, map[string]any{"events": events, "nextAfter": h.deps.Logs.NextAfter()})
}

func (h *handler) tail(w http.ResponseWriter, r *http.Request) {
	filter, err := parseLogFilter(r.URL.Query())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	after, limit := parseAfterLimit(r.URL.Query())
	timeout := parseTimeoutMs(r.URL.Query())
	events := h.deps.Logs.WaitForAfter(r.Context(), after, filter, limit, timeout)
	apierr.WriteOK(w, map[string]any{
		"events":    events,
		"nextAfter": h.deps.Logs.NextAfter(),
		"timedOut":  len(events) == 0,
	})
}

// --- /net, /net/tail -----------------------------------------------------

func parseNetFilter(q map[string][]string) (ring.NetFilter, error) {
	var f ring.NetFilter
	f.URLContains = first(q, "urlContains")
	f.Method = first(q, "method")
	if v := first(q, "sinceTs"); v != "" {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, apierr.New(apierr.CodeInvalidBody, "invalid sinceTs")
		}
		f.SinceTs = ts
	}
	if v := first(q, "status"); v != "" {
		for _, part := range strings.Split(v, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return f, apierr.New(apierr.CodeInvalidBody, "invalid status filter")
			}
			f.Status = append(f.Status, n)
		}
	}
	return f, nil
}

func (h *handler) net(w http.ResponseWriter, r *http.Request) {
	if h.deps.NetEnabled != nil && !h.deps.NetEnabled() {
		apierr.WriteError(w, apierr.New(apierr.CodeNetDisabled, "network capture is disabled for this watcher"))
		return
	}
	filter, err := parseNetFilter(r.URL.Query())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	after, limit := parseAfterLimit(r.URL.Query())
	reqs := h.deps.Net.Snapshot(after, filter, limit)
	apierr.WriteOK(w, map[string]any{"requests": reqs, "nextAfter": h.deps.Net.NextAfter()})
}

func (h *handler) netTail(w http.ResponseWriter, r *http.Request) {
	if h.deps.NetEnabled != nil && !h.deps.NetEnabled() {
		apierr.WriteError(w, apierr.New(apierr.CodeNetDisabled, "network capture is disabled for this watcher"))
		return
	}
	filter, err := parseNetFilter(r.URL.Query())
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	after, limit := parseAfterLimit(r.URL.Query())
	timeout := parseTimeoutMs(r.URL.Query())
	reqs := h.deps.Net.WaitForAfter(r.Context(), after, filter, limit, timeout)
	apierr.WriteOK(w, map[string]any{
		"requests":  reqs,
		"nextAfter": h.deps.Net.NextAfter(),
		"timedOut":  len(reqs) == 0,
	})
}

// --- /shutdown, /reload, /eval ------------------------------------------

// shutdown replies immediately and schedules the graceful close (spec.md
// §4.7 "POST /shutdown replies {ok:true} immediately and schedules
// graceful close").
func (h *handler) shutdown(w http.ResponseWriter, r *http.Request) {
	apierr.WriteOK(w, nil)
	if h.deps.RequestShutdown != nil {
		util.SafeGo(h.deps.RequestShutdown)
	}
}

func (h *handler) reload(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	if session == nil {
		apierr.WriteError(w, apierr.New(apierr.CodeCDPNotAttached, "watcher is not attached to a target"))
		return
	}
	var body struct {
		IgnoreCache bool `json:"ignoreCache"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if _, err := session.SendAndWait(r.Context(), "Page.reload", map[string]any{
		"ignoreCache": body.IgnoreCache,
	}, cdp.DefaultTimeout); err != nil {
		apierr.WriteError(w, err)
		return
	}
	apierr.WriteOK(w, nil)
}

func (h *handler) eval(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	if session == nil {
		apierr.WriteError(w, apierr.New(apierr.CodeCDPNotAttached, "watcher is not attached to a target"))
		return
	}
	var body struct {
		Expression    string `json:"expression"`
		AwaitPromise  *bool  `json:"awaitPromise"`
		ReturnByValue *bool  `json:"returnByValue"`
		TimeoutMs     int    `json:"timeoutMs"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	awaitPromise := true
	if body.AwaitPromise != nil {
		awaitPromise = *body.AwaitPromise
	}
	returnByValue := true
	if body.ReturnByValue != nil {
		returnByValue = *body.ReturnByValue
	}
	timeout := cdp.DefaultTimeout
	if body.TimeoutMs > 0 {
		timeout = time.Duration(body.TimeoutMs) * time.Millisecond
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	raw, err := session.SendAndWait(ctx, "Runtime.evaluate", map[string]any{
		"expression":    body.Expression,
		"awaitPromise":  awaitPromise,
		"returnByValue": returnByValue,
	}, timeout)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	// Exceptions populate `exception` while the envelope stays ok:true
	// (spec.md §4.7 "POST /eval ... exceptions populate exception:{text,
	// details?} while the envelope remains ok:true").
	var parsed struct {
		Result           json.RawMessage `json:"result"`
		ExceptionDetails *struct {
			Text string          `json:"text"`
			Raw  json.RawMessage `json:"-"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		apierr.WriteError(w, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode Runtime.evaluate result"))
		return
	}
	var resp map[string]any
	if parsed.ExceptionDetails != nil {
		resp = map[string]any{
			"result":    nil,
			"exception": map[string]any{"text": parsed.ExceptionDetails.Text},
		}
	} else {
		resp = map[string]any{"result": parsed.Result}
	}
	apierr.WriteOK(w, resp)
}

// --- /dom/* --------------------------------------------------------------

func (h *handler) domTree(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		Depth    int `json:"depth"`
		MaxNodes int `json:"maxNodes"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.Tree(r.Context(), session, domops.TreeRequest{
		Selector: body.toSelector(), Depth: body.Depth, MaxNodes: body.MaxNodes,
	})
	writeResult(w, result, err)
}

func (h *handler) domInfo(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		OuterHTMLMaxChars int `json:"outerHtmlMaxChars"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.Info(r.Context(), session, domops.InfoRequest{
		Selector: body.toSelector(), OuterHTMLMaxChars: body.OuterHTMLMaxChars,
	})
	writeResult(w, result, err)
}

func (h *handler) domHover(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		Offset *domops.Point `json:"offset"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.Hover(r.Context(), session, body.toSelector(), body.Offset)
	writeResult(w, result, err)
}

func (h *handler) domClick(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		Offset *domops.Point `json:"offset"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.Click(r.Context(), session, body.toSelector(), body.Offset)
	writeResult(w, result, err)
}

func (h *handler) domFocus(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body selectorBody
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.Focus(r.Context(), session, body.toSelector())
	writeResult(w, result, err)
}

func (h *handler) domKeyDown(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		Key       string `json:"key"`
		Modifiers string `json:"modifiers"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.KeyDown(r.Context(), session, domops.KeyDownRequest{
		Selector: body.toSelector(), Key: body.Key, Modifiers: body.Modifiers,
	})
	writeResult(w, result, err)
}

func (h *handler) domAdd(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		Nth      *int   `json:"nth"`
		First    bool   `json:"first"`
		Position string `json:"position"`
		HTML     string `json:"html"`
		Text     string `json:"text"`
		Expect   *int   `json:"expect"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.Add(r.Context(), session, domops.AddRequest{
		Selector: body.toSelector(), Nth: body.Nth, First: body.First,
		Position: body.Position, HTML: body.HTML, Text: body.Text, Expect: body.Expect,
	})
	writeResult(w, result, err)
}

// domAddScript injects a boot script via
// Page.addScriptToEvaluateOnNewDocument (spec.md §4.8 "optionally inject
// a user-provided boot script"); exposed here so the CLI can manage it
// without a watcher restart.
func (h *handler) domAddScript(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	if session == nil {
		apierr.WriteError(w, apierr.New(apierr.CodeCDPNotAttached, "watcher is not attached to a target"))
		return
	}
	var body struct {
		Source string `json:"source"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	raw, err := session.SendAndWait(r.Context(), "Page.addScriptToEvaluateOnNewDocument", map[string]any{
		"source": body.Source,
	}, cdp.DefaultTimeout)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	var result struct {
		Identifier string `json:"identifier"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		apierr.WriteError(w, apierr.Wrap(err, apierr.CodeOperatorError, "cannot decode addScriptToEvaluateOnNewDocument result"))
		return
	}
	apierr.WriteOK(w, map[string]any{"identifier": result.Identifier})
}

func (h *handler) domRemove(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body selectorBody
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.Remove(r.Context(), session, body.toSelector())
	writeResult(w, result, err)
}

func (h *handler) domScroll(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		DX float64 `json:"dx"`
		DY float64 `json:"dy"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.Scroll(r.Context(), session, domops.ScrollRequest{
		Selector: body.toSelector(), DX: body.DX, DY: body.DY,
	})
	writeResult(w, result, err)
}

func (h *handler) domScrollTo(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		X        float64 `json:"x"`
		Y        float64 `json:"y"`
		Relative bool    `json:"relative"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.ScrollTo(r.Context(), session, domops.ScrollToRequest{
		Selector: body.toSelector(), X: body.X, Y: body.Y, Relative: body.Relative,
	})
	writeResult(w, result, err)
}

func (h *handler) domFill(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		Value string `json:"value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.Fill(r.Context(), session, body.toSelector(), body.Value)
	writeResult(w, result, err)
}

func (h *handler) domSetFile(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		Paths []string `json:"paths"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.SetFile(r.Context(), session, body.toSelector(), body.Paths)
	writeResult(w, result, err)
}

func (h *handler) domModify(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		Attr  *domops.ModifyAttr  `json:"attr"`
		Class *domops.ModifyClass `json:"class"`
		Style *domops.ModifyStyle `json:"style"`
		Text  *domops.ModifyText  `json:"text"`
		HTML  *domops.ModifyHTML  `json:"html"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.Modify(r.Context(), session, domops.ModifyRequest{
		Selector: body.toSelector(),
		Attr:     body.Attr, Class: body.Class, Style: body.Style, Text: body.Text, HTML: body.HTML,
	})
	writeResult(w, result, err)
}

// --- /storage/local --------------------------------------------------

func (h *handler) storageLocal(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		Op     string `json:"op"`
		Origin string `json:"origin"`
		Key    string `json:"key"`
		Value  string `json:"value"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	switch body.Op {
	case "get":
		result, err := domops.StorageGet(r.Context(), session, body.Origin, body.Key)
		writeResult(w, result, err)
	case "set":
		err := domops.StorageSet(r.Context(), session, body.Origin, body.Key, body.Value)
		writeResult(w, nil, err)
	case "remove":
		err := domops.StorageRemove(r.Context(), session, body.Origin, body.Key)
		writeResult(w, nil, err)
	case "list":
		result, err := domops.StorageList(r.Context(), session, body.Origin)
		writeResult(w, result, err)
	case "clear":
		err := domops.StorageClear(r.Context(), session, body.Origin)
		writeResult(w, nil, err)
	default:
		apierr.WriteError(w, apierr.New(apierr.CodeInvalidBody, "unknown storage op: "+body.Op))
	}
}

// --- /emulation, /throttle --------------------------------------------

func (h *handler) emulation(w http.ResponseWriter, r *http.Request) {
	if h.deps.Emulation == nil {
		apierr.WriteError(w, apierr.New(apierr.CodeOperatorError, "emulation controller unavailable"))
		return
	}
	var body struct {
		Op      string                `json:"op"`
		State   json.RawMessage       `json:"state"`
		Aspects []string              `json:"aspects"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	switch body.Op {
	case "set":
		var state emulationPatch
		if len(body.State) > 0 {
			if err := json.Unmarshal(body.State, &state); err != nil {
				apierr.WriteError(w, apierr.New(apierr.CodeInvalidBody, "malformed emulation state"))
				return
			}
		}
		apierr.WriteOK(w, h.deps.Emulation.Set(r.Context(), state.toModel()))
	case "clear":
		apierr.WriteOK(w, h.deps.Emulation.Clear(r.Context(), body.Aspects))
	case "status", "":
		apierr.WriteOK(w, h.deps.Emulation.Status())
	default:
		apierr.WriteError(w, apierr.New(apierr.CodeInvalidBody, "unknown emulation op: "+body.Op))
	}
}

func (h *handler) throttle(w http.ResponseWriter, r *http.Request) {
	if h.deps.Throttle == nil {
		apierr.WriteError(w, apierr.New(apierr.CodeOperatorError, "throttle controller unavailable"))
		return
	}
	var body struct {
		Op   string  `json:"op"`
		Rate float64 `json:"rate"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	switch body.Op {
	case "set":
		apierr.WriteOK(w, h.deps.Throttle.Set(r.Context(), cpuThrottleOf(body.Rate)))
	case "clear":
		apierr.WriteOK(w, h.deps.Throttle.Clear(r.Context()))
	case "status", "":
		apierr.WriteOK(w, h.deps.Throttle.Status())
	default:
		apierr.WriteError(w, apierr.New(apierr.CodeInvalidBody, "unknown throttle op: "+body.Op))
	}
}

// --- /trace/*, /screenshot ---------------------------------------------

func (h *handler) traceStart(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		Categories []string `json:"categories"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := h.deps.Tracer.Start(r.Context(), session, body.Categories)
	writeResult(w, result, err)
}

func (h *handler) traceStop(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	result, err := h.deps.Tracer.Stop(r.Context(), session)
	writeResult(w, result, err)
}

func (h *handler) screenshot(w http.ResponseWriter, r *http.Request) {
	session := h.session()
	var body struct {
		selectorBody
		Format string `json:"format"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := domops.Screenshot(r.Context(), session, domops.ScreenshotRequest{
		Selector: body.toSelector(), Format: body.Format,
	})
	writeResult(w, result, err)
}

// writeResult is the uniform "ok result, or ok:false error" funnel every
// operator handler goes through (spec.md §7 policy, §4.4 envelope).
func writeResult(w http.ResponseWriter, result any, err error) {
	if err != nil {
		apierr.WriteError(w, err)
		return
	}
	apierr.WriteOK(w, result)
}
