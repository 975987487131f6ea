package cliapp

import (
	"context"
	"fmt"
	"strings"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/argus-dev/argus/internal/domops"
	"github.com/argus-dev/argus/internal/model"
)

// devicePresets covers the handful of emulated devices this CLI names
// directly; anything else is composed from --width/--height/--dpr/
// --mobile (spec.md §6 "--device name|--width w --height h").
var devicePresets = map[string]model.ViewportState{
	"iphone":        {Width: 390, Height: 844, DPR: 3, Mobile: true},
	"iphone-se":     {Width: 375, Height: 667, DPR: 2, Mobile: true},
	"pixel":         {Width: 412, Height: 915, DPR: 2.625, Mobile: true},
	"ipad":          {Width: 820, Height: 1180, DPR: 2, Mobile: true},
	"desktop":       {Width: 1280, Height: 800, DPR: 1, Mobile: false},
	"desktop-large": {Width: 1920, Height: 1080, DPR: 1, Mobile: false},
}

func (m *Manager) setupEmulationCommands() {
	emCmd := orpheus.NewCommand("emulation", "Device emulation (viewport, touch, user agent)")

	setCmd := emCmd.Subcommand("set", "Apply a device emulation state", m.handleEmulationSet)
	setCmd.AddFlag("device", "", "", "Named device preset: "+presetNames())
	setCmd.AddIntFlag("width", "", 0, "Viewport width")
	setCmd.AddIntFlag("height", "", 0, "Viewport height")
	setCmd.AddFlag("dpr", "", "", "Device pixel ratio")
	setCmd.AddBoolFlag("mobile", "", false, "Report as a mobile viewport")
	setCmd.AddBoolFlag("touch", "", false, "Enable touch emulation")
	setCmd.AddFlag("ua", "", "", "Override navigator.userAgent")
	setCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	clearCmd := emCmd.Subcommand("clear", "Clear emulation state", m.handleEmulationClear)
	clearCmd.AddFlag("aspects", "", "", "Comma list of aspects to clear (viewport,touch,userAgent); empty clears all")
	clearCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	statusCmd := emCmd.Subcommand("status", "Print the current emulation state", m.handleEmulationStatus)
	statusCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	m.app.AddCommand(emCmd)
}

func presetNames() string {
	s := ""
	for name := range devicePresets {
		if s != "" {
			s += ","
		}
		s += name
	}
	return s
}

func (m *Manager) handleEmulationSet(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}

	state := map[string]any{}
	if device := ctx.GetFlagString("device"); device != "" {
		preset, ok := devicePresets[device]
		if !ok {
			return usageError("unknown device preset: " + device)
		}
		if dpr, ok := parseFloatFlag(ctx, "dpr"); ok {
			preset.DPR = dpr
		}
		state["viewport"] = preset
	} else if w, h := ctx.GetFlagInt("width"), ctx.GetFlagInt("height"); w > 0 && h > 0 {
		dpr := 1.0
		if v, ok := parseFloatFlag(ctx, "dpr"); ok {
			dpr = v
		}
		state["viewport"] = model.ViewportState{Width: w, Height: h, DPR: dpr, Mobile: ctx.GetFlagBool("mobile")}
	}
	if ctx.GetFlagBool("touch") {
		state["touch"] = model.TouchState{Enabled: true}
	}
	if ua := ctx.GetFlagString("ua"); ua != "" {
		state["userAgent"] = ua
	}

	var result domops.EmulationStatus
	body := map[string]any{"op": "set", "state": state}
	if err := client.post(context.Background(), "/emulation", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), printEmulationStatus)
	return nil
}

func (m *Manager) handleEmulationClear(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var aspects []string
	if v := ctx.GetFlagString("aspects"); v != "" {
		aspects = splitCSV(v)
	}
	var result domops.EmulationStatus
	body := map[string]any{"op": "clear", "aspects": aspects}
	if err := client.post(context.Background(), "/emulation", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), printEmulationStatus)
	return nil
}

func (m *Manager) handleEmulationStatus(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var result domops.EmulationStatus
	if err := client.post(context.Background(), "/emulation", map[string]any{"op": "status"}, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), printEmulationStatus)
	return nil
}

func printEmulationStatus(v any) {
	r := v.(domops.EmulationStatus)
	fmt.Printf("attached=%v applied=%v", r.Attached, r.Applied)
	if r.State.Viewport != nil {
		fmt.Printf(" viewport=%dx%d@%.2gx mobile=%v", r.State.Viewport.Width, r.State.Viewport.Height, r.State.Viewport.DPR, r.State.Viewport.Mobile)
	}
	if r.State.Touch != nil {
		fmt.Printf(" touch=%v", r.State.Touch.Enabled)
	}
	if r.State.UserAgent != nil && r.State.UserAgent.Value != nil {
		fmt.Printf(" ua=%q", *r.State.UserAgent.Value)
	}
	if r.Error != "" {
		fmt.Printf(" error=%s", r.Error)
	}
	fmt.Println()
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
