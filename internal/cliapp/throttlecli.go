package cliapp

import (
	"context"
	"fmt"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/argus-dev/argus/internal/domops"
)

func (m *Manager) setupThrottleCommands() {
	thCmd := orpheus.NewCommand("throttle", "CPU throttling")

	setCmd := thCmd.Subcommand("set", "Set the CPU throttling rate", m.handleThrottleSet)
	setCmd.AddFlag("rate", "r", "1", "Slowdown multiplier (1 = unthrottled, 4 = 4x slower)")
	setCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	clearCmd := thCmd.Subcommand("clear", "Reset CPU throttling to unthrottled", m.handleThrottleClear)
	clearCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	statusCmd := thCmd.Subcommand("status", "Print the current throttle state", m.handleThrottleStatus)
	statusCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	m.app.AddCommand(thCmd)
}

func (m *Manager) handleThrottleSet(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	rate, _ := parseFloatFlag(ctx, "rate")
	if rate <= 0 {
		rate = 1
	}
	var result domops.ThrottleStatus
	if err := client.post(context.Background(), "/throttle", map[string]any{"op": "set", "rate": rate}, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), printThrottleStatus)
	return nil
}

func (m *Manager) handleThrottleClear(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var result domops.ThrottleStatus
	if err := client.post(context.Background(), "/throttle", map[string]any{"op": "clear"}, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), printThrottleStatus)
	return nil
}

func (m *Manager) handleThrottleStatus(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var result domops.ThrottleStatus
	if err := client.post(context.Background(), "/throttle", map[string]any{"op": "status"}, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), printThrottleStatus)
	return nil
}

func printThrottleStatus(v any) {
	r := v.(domops.ThrottleStatus)
	fmt.Printf("attached=%v applied=%v", r.Attached, r.Applied)
	if r.State.CPU != nil {
		fmt.Printf(" rate=%g", r.State.CPU.Rate)
	}
	if r.Error != "" {
		fmt.Printf(" error=%s", r.Error)
	}
	fmt.Println()
}
