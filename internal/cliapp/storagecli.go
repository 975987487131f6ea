package cliapp

import (
	"context"
	"fmt"
	"strings"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/argus-dev/argus/internal/domops"
)

func addOriginFlag(cmd *orpheus.Command) {
	cmd.AddFlag("origin", "o", "", "Page origin the key lives under (defaults to the attached page's origin)")
	cmd.AddBoolFlag("json", "j", false, "Emit JSON")
}

func (m *Manager) setupStorageCommands() {
	storageCmd := orpheus.NewCommand("storage", "Inspect and edit the attached page's Web Storage")
	localCmd := orpheus.NewCommand("local", "localStorage operations")

	getCmd := localCmd.Subcommand("get", "Get a localStorage key", m.handleStorageGet)
	addOriginFlag(getCmd)
	setCmd := localCmd.Subcommand("set", "Set a localStorage key", m.handleStorageSet)
	addOriginFlag(setCmd)
	removeCmd := localCmd.Subcommand("remove", "Remove a localStorage key", m.handleStorageRemove)
	addOriginFlag(removeCmd)
	listCmd := localCmd.Subcommand("list", "List all localStorage keys", m.handleStorageList)
	addOriginFlag(listCmd)
	clearCmd := localCmd.Subcommand("clear", "Clear localStorage", m.handleStorageClear)
	addOriginFlag(clearCmd)

	storageCmd.AddSubcommand(localCmd)
	m.app.AddCommand(storageCmd)
}

func (m *Manager) handleStorageGet(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 1)
	if len(rest) != 1 {
		return usageError("storage local get requires a key")
	}
	client, rec, err := m.client(id)
	if err != nil {
		return err
	}
	origin := ctx.GetFlagString("origin")
	if origin == "" && rec.Match != nil {
		origin = rec.Match.URLContains
	}
	var result domops.StorageGetResult
	body := map[string]any{"op": "get", "origin": origin, "key": rest[0]}
	if err := client.post(context.Background(), "/storage/local", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) {
		if !result.Found {
			fmt.Println("(not set)")
			return
		}
		fmt.Println(result.Value)
	})
	return nil
}

func (m *Manager) handleStorageSet(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 2)
	if len(rest) != 2 {
		return usageError("storage local set requires a key and a value")
	}
	client, rec, err := m.client(id)
	if err != nil {
		return err
	}
	origin := ctx.GetFlagString("origin")
	if origin == "" && rec.Match != nil {
		origin = rec.Match.URLContains
	}
	body := map[string]any{"op": "set", "origin": origin, "key": rest[0], "value": rest[1]}
	if err := client.post(context.Background(), "/storage/local", body, nil); err != nil {
		return err
	}
	printResult(map[string]any{"ok": true}, ctx.GetFlagBool("json"), func(v any) { fmt.Println("ok") })
	return nil
}

func (m *Manager) handleStorageRemove(ctx *orpheus.Context) error {
	id, rest := splitID(ctx, 1)
	if len(rest) != 1 {
		return usageError("storage local remove requires a key")
	}
	client, rec, err := m.client(id)
	if err != nil {
		return err
	}
	origin := ctx.GetFlagString("origin")
	if origin == "" && rec.Match != nil {
		origin = rec.Match.URLContains
	}
	body := map[string]any{"op": "remove", "origin": origin, "key": rest[0]}
	if err := client.post(context.Background(), "/storage/local", body, nil); err != nil {
		return err
	}
	printResult(map[string]any{"ok": true}, ctx.GetFlagBool("json"), func(v any) { fmt.Println("ok") })
	return nil
}

func (m *Manager) handleStorageList(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, rec, err := m.client(id)
	if err != nil {
		return err
	}
	origin := ctx.GetFlagString("origin")
	if origin == "" && rec.Match != nil {
		origin = rec.Match.URLContains
	}
	var result domops.StorageListResult
	body := map[string]any{"op": "list", "origin": origin}
	if err := client.post(context.Background(), "/storage/local", body, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) { fmt.Println(strings.Join(result.Keys, "\n")) })
	return nil
}

func (m *Manager) handleStorageClear(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, rec, err := m.client(id)
	if err != nil {
		return err
	}
	origin := ctx.GetFlagString("origin")
	if origin == "" && rec.Match != nil {
		origin = rec.Match.URLContains
	}
	body := map[string]any{"op": "clear", "origin": origin}
	if err := client.post(context.Background(), "/storage/local", body, nil); err != nil {
		return err
	}
	printResult(map[string]any{"ok": true}, ctx.GetFlagBool("json"), func(v any) { fmt.Println("ok") })
	return nil
}
