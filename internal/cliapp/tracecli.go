package cliapp

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/argus-dev/argus/internal/domops"
)

func (m *Manager) setupTraceCommands() {
	traceCmd := orpheus.NewCommand("trace", "Capture a CDP performance trace")

	startCmd := traceCmd.Subcommand("start", "Begin a trace capture", m.handleTraceStart)
	startCmd.AddFlag("categories", "", "", "Comma list of trace categories (default: a standard rendering/js set)")
	startCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	stopCmd := traceCmd.Subcommand("stop", "Stop the in-flight trace and write it to disk", m.handleTraceStop)
	stopCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	m.app.AddCommand(traceCmd)
}

func (m *Manager) handleTraceStart(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var categories []string
	if v := ctx.GetFlagString("categories"); v != "" {
		categories = splitCSV(v)
	}
	var result domops.TraceStartResult
	if err := client.post(context.Background(), "/trace/start", map[string]any{"categories": categories}, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) {
		fmt.Println(v.(domops.TraceStartResult).TraceID)
	})
	return nil
}

func (m *Manager) handleTraceStop(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var result domops.TraceStopResult
	if err := client.post(context.Background(), "/trace/stop", nil, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) {
		r := v.(domops.TraceStopResult)
		fmt.Printf("%s events=%d aborted=%v\n", r.Path, r.Events, r.Aborted)
	})
	return nil
}

func (m *Manager) setupScreenshotCommand() {
	cmd := orpheus.NewCommand("screenshot", "Capture a PNG/JPEG screenshot of the page or a matched element")
	addSelectorFlags(cmd)
	cmd.AddFlag("format", "", "png", "Image format: png or jpeg")
	cmd.AddFlag("out", "o", "", "Copy the captured file to this path instead of printing its watcher-side path")
	cmd.AddBoolFlag("json", "j", false, "Emit JSON")
	cmd.SetHandler(m.handleScreenshot)
	m.app.AddCommand(cmd)
}

func (m *Manager) handleScreenshot(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	body := selectorBody(ctx)
	body["format"] = ctx.GetFlagString("format")
	var result domops.ScreenshotResult
	if err := client.post(context.Background(), "/screenshot", body, &result); err != nil {
		return err
	}
	if out := ctx.GetFlagString("out"); out != "" {
		if err := copyFile(result.Path, out); err != nil {
			return err
		}
		result.Path = out
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) {
		r := v.(domops.ScreenshotResult)
		fmt.Printf("%s clipped=%v\n", r.Path, r.Clipped)
	})
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
