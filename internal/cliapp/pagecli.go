package cliapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/cdp"
)

// defaultChromeHost/Port match Chrome's own --remote-debugging-port
// default, used when `chrome`/`page` subcommands aren't given --host/
// --port explicitly.
const (
	defaultChromeHost = "localhost"
	defaultChromePort = 9222
)

func addChromeAddrFlags(cmd *orpheus.Command) {
	cmd.AddFlag("host", "", defaultChromeHost, "Chrome remote-debugging host")
	cmd.AddIntFlag("port", "", defaultChromePort, "Chrome remote-debugging port")
}

func chromeAddrFrom(ctx *orpheus.Context) (string, int) {
	host := ctx.GetFlagString("host")
	if host == "" {
		host = defaultChromeHost
	}
	port := ctx.GetFlagInt("port")
	if port == 0 {
		port = defaultChromePort
	}
	return host, port
}

func (m *Manager) setupPageCommands() {
	pageCmd := orpheus.NewCommand("page", "Manage browser pages/tabs directly against Chrome's debugging endpoint")

	targetsCmd := pageCmd.Subcommand("targets", "List Chrome's attachable targets", m.handlePageTargets)
	addChromeAddrFlags(targetsCmd)
	targetsCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	openCmd := pageCmd.Subcommand("open", "Open a new tab at a URL", m.handlePageOpen)
	addChromeAddrFlags(openCmd)
	openCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	activateCmd := pageCmd.Subcommand("activate", "Bring a target to the front", m.handlePageActivate)
	addChromeAddrFlags(activateCmd)
	activateCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	closeCmd := pageCmd.Subcommand("close", "Close a target", m.handlePageClose)
	addChromeAddrFlags(closeCmd)
	closeCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	reloadCmd := pageCmd.Subcommand("reload", "Reload a target directly over CDP", m.handlePageReload)
	addChromeAddrFlags(reloadCmd)
	reloadCmd.AddBoolFlag("ignore-cache", "", false, "Bypass the cache on reload")
	reloadCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	m.app.AddCommand(pageCmd)
}

func (m *Manager) handlePageTargets(ctx *orpheus.Context) error {
	host, port := chromeAddrFrom(ctx)
	targets, err := cdp.ListTargets(context.Background(), host, port)
	if err != nil {
		return err
	}
	printResult(targets, ctx.GetFlagBool("json"), func(v any) {
		for _, t := range targets {
			fmt.Printf("%s  %-8s %-40s %s\n", t.ID, t.Type, t.Title, t.URL)
		}
	})
	return nil
}

func (m *Manager) handlePageOpen(ctx *orpheus.Context) error {
	host, port := chromeAddrFrom(ctx)
	id, rest := splitID(ctx, 1)
	_ = id
	target := ""
	if len(rest) == 1 {
		target = rest[0]
	}
	var info cdp.TargetInfo
	endpoint := fmt.Sprintf("http://%s:%d/json/new", host, port)
	if target != "" {
		endpoint += "?" + url.QueryEscape(target)
	}
	if err := browserJSON(context.Background(), http.MethodPut, endpoint, &info); err != nil {
		return err
	}
	printResult(info, ctx.GetFlagBool("json"), func(v any) {
		t := v.(cdp.TargetInfo)
		fmt.Println(t.ID)
	})
	return nil
}

func (m *Manager) handlePageActivate(ctx *orpheus.Context) error {
	return pageTargetAction(ctx, "activate")
}

func (m *Manager) handlePageClose(ctx *orpheus.Context) error {
	return pageTargetAction(ctx, "close")
}

func pageTargetAction(ctx *orpheus.Context, verb string) error {
	host, port := chromeAddrFrom(ctx)
	_, rest := splitID(ctx, 1)
	if len(rest) != 1 {
		return usageError("page " + verb + " requires a target id")
	}
	endpoint := fmt.Sprintf("http://%s:%d/json/%s/%s", host, port, verb, rest[0])
	if err := browserJSON(context.Background(), http.MethodGet, endpoint, nil); err != nil {
		return err
	}
	printResult(map[string]any{"ok": true}, ctx.GetFlagBool("json"), func(v any) { fmt.Println("ok") })
	return nil
}

func (m *Manager) handlePageReload(ctx *orpheus.Context) error {
	host, port := chromeAddrFrom(ctx)
	_, rest := splitID(ctx, 1)
	if len(rest) != 1 {
		return usageError("page reload requires a target id")
	}
	targets, err := cdp.ListTargets(context.Background(), host, port)
	if err != nil {
		return err
	}
	var wsURL string
	for _, t := range targets {
		if t.ID == rest[0] {
			wsURL = t.WebSocketDebuggerURL
			break
		}
	}
	if wsURL == "" {
		return apierr.New(apierr.CodeNotFound, "no target with that id")
	}
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	session, err := cdp.Dial(ctxTimeout, wsURL)
	if err != nil {
		return err
	}
	defer session.Close()
	if _, err := session.SendAndWait(ctxTimeout, "Page.reload", map[string]any{
		"ignoreCache": ctx.GetFlagBool("ignore-cache"),
	}, cdp.DefaultTimeout); err != nil {
		return err
	}
	printResult(map[string]any{"ok": true}, ctx.GetFlagBool("json"), func(v any) { fmt.Println("ok") })
	return nil
}

// browserJSON performs a request against one of Chrome's /json/* browser-
// level endpoints and decodes the JSON response into out, if non-nil.
func browserJSON(ctx context.Context, method, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return apierr.Wrap(err, apierr.CodeConnectFailed, "cannot build chrome request")
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return apierr.Wrap(err, apierr.CodeConnectFailed, "cannot reach chrome").WithContext("url", endpoint)
	}
	defer resp.Body.Close()
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierr.Wrap(err, apierr.CodeConnectFailed, "cannot decode chrome response")
	}
	return nil
}
