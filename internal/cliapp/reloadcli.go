package cliapp

import (
	"context"
	"fmt"

	"github.com/agilira/orpheus/pkg/orpheus"
)

func (m *Manager) setupReloadCommand() {
	cmd := orpheus.NewCommand("reload", "Reload the attached page")
	cmd.AddBoolFlag("ignore-cache", "", false, "Bypass the cache on reload")
	cmd.AddBoolFlag("json", "j", false, "Emit JSON")
	cmd.SetHandler(m.handleReload)
	m.app.AddCommand(cmd)
}

func (m *Manager) handleReload(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	body := map[string]any{"ignoreCache": ctx.GetFlagBool("ignore-cache")}
	if err := client.post(context.Background(), "/reload", body, nil); err != nil {
		return err
	}
	printResult(map[string]any{"ok": true}, ctx.GetFlagBool("json"), func(v any) { fmt.Println("ok") })
	return nil
}
