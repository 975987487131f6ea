package cliapp

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/argus-dev/argus/internal/model"
)

func (m *Manager) handleList(ctx *orpheus.Context) error {
	store, err := m.ensureStore()
	if err != nil {
		return err
	}
	all, err := store.List()
	if err != nil {
		return err
	}
	byCwd := ctx.GetFlagString("by-cwd")
	var filtered []model.WatcherRecord
	for _, rec := range all {
		if byCwd != "" && !strings.Contains(rec.Cwd, byCwd) {
			continue
		}
		filtered = append(filtered, rec)
	}
	printResult(map[string]any{"watchers": filtered}, ctx.GetFlagBool("json"), func(v any) {
		if len(filtered) == 0 {
			fmt.Println("no watchers registered")
			return
		}
		for _, rec := range filtered {
			fmt.Printf("%s\t%s:%d\t%s\tpid=%d\n", rec.ID, rec.Host, rec.Port, rec.Cwd, rec.PID)
		}
	})
	return nil
}

func logQuery(ctx *orpheus.Context) url.Values {
	q := url.Values{}
	if v := ctx.GetFlagString("levels"); v != "" {
		q.Set("levels", v)
	}
	if v := ctx.GetFlagString("source"); v != "" {
		q.Set("source", v)
	}
	if v := ctx.GetFlagString("match"); v != "" {
		q.Add("match", v)
	}
	q.Set("matchCase", strconv.FormatBool(ctx.GetFlagBool("case-sensitive")))
	if n := ctx.GetFlagInt("limit"); n > 0 {
		q.Set("limit", strconv.Itoa(n))
	}
	return q
}

func (m *Manager) handleLogs(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var resp struct {
		Events    []model.LogEvent `json:"events"`
		NextAfter int64             `json:"nextAfter"`
	}
	if err := client.get(context.Background(), "/logs", logQuery(ctx), &resp); err != nil {
		return err
	}
	printLogEvents(resp.Events, ctx.GetFlagBool("json"))
	return nil
}

func (m *Manager) handleTail(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	asJSON := ctx.GetFlagBool("json")
	var after int64
	for {
		q := logQuery(ctx)
		q.Set("after", strconv.FormatInt(after, 10))
		q.Set("timeoutMs", "25000")
		var resp struct {
			Events    []model.LogEvent `json:"events"`
			NextAfter int64             `json:"nextAfter"`
			TimedOut  bool              `json:"timedOut"`
		}
		if err := client.get(context.Background(), "/tail", q, &resp); err != nil {
			return err
		}
		printLogEvents(resp.Events, asJSON)
		after = resp.NextAfter
	}
}

func printLogEvents(events []model.LogEvent, asJSON bool) {
	for _, ev := range events {
		printResult(ev, asJSON, func(v any) {
			fmt.Printf("[%s] %-7s %s\n", ev.Source, ev.Level, ev.Text)
		})
	}
}

func netQuery(ctx *orpheus.Context) url.Values {
	q := url.Values{}
	if v := ctx.GetFlagString("url-contains"); v != "" {
		q.Set("urlContains", v)
	}
	if v := ctx.GetFlagString("method"); v != "" {
		q.Set("method", v)
	}
	if v := ctx.GetFlagString("status"); v != "" {
		q.Set("status", v)
	}
	if n := ctx.GetFlagInt("limit"); n > 0 {
		q.Set("limit", strconv.Itoa(n))
	}
	return q
}

func (m *Manager) handleNetList(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var resp struct {
		Requests  []model.NetworkRequestSummary `json:"requests"`
		NextAfter int64                          `json:"nextAfter"`
	}
	if err := client.get(context.Background(), "/net", netQuery(ctx), &resp); err != nil {
		return err
	}
	printNetRequests(resp.Requests, ctx.GetFlagBool("json"))
	return nil
}

func (m *Manager) handleNetTail(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	asJSON := ctx.GetFlagBool("json")
	var after int64
	for {
		q := netQuery(ctx)
		q.Set("after", strconv.FormatInt(after, 10))
		q.Set("timeoutMs", "25000")
		var resp struct {
			Requests  []model.NetworkRequestSummary `json:"requests"`
			NextAfter int64                          `json:"nextAfter"`
			TimedOut  bool                            `json:"timedOut"`
		}
		if err := client.get(context.Background(), "/net/tail", q, &resp); err != nil {
			return err
		}
		printNetRequests(resp.Requests, asJSON)
		after = resp.NextAfter
	}
}

func printNetRequests(reqs []model.NetworkRequestSummary, asJSON bool) {
	for _, r := range reqs {
		printResult(r, asJSON, func(v any) {
			fmt.Printf("%-6s %d %s\n", r.Method, r.Status, r.URL)
		})
	}
}

func (m *Manager) handleEval(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 1)
	if len(rest) != 1 || rest[0] == "" {
		return usageError("eval requires an expression")
	}
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	awaitPromise := !ctx.GetFlagBool("no-await")
	body := map[string]any{
		"expression":   rest[0],
		"awaitPromise": awaitPromise,
	}
	if ms := ctx.GetFlagInt("timeout"); ms > 0 {
		body["timeoutMs"] = ms
	}
	var resp struct {
		Result    any `json:"result"`
		Exception *struct {
			Text string `json:"text"`
		} `json:"exception"`
	}
	if err := client.post(context.Background(), "/eval", body, &resp); err != nil {
		return err
	}
	printResult(resp, ctx.GetFlagBool("json"), func(v any) {
		if resp.Exception != nil {
			fmt.Printf("exception: %s\n", resp.Exception.Text)
			return
		}
		fmt.Printf("%v\n", resp.Result)
	})
	return nil
}
