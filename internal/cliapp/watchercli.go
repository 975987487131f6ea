package cliapp

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agilira/orpheus/pkg/orpheus"
	"github.com/rs/zerolog/log"

	"github.com/argus-dev/argus/internal/model"
	"github.com/argus-dev/argus/internal/resolver"
	"github.com/argus-dev/argus/internal/watcherproc"
)

func (m *Manager) setupWatcherCommands() {
	watcherCmd := orpheus.NewCommand("watcher", "Manage watcher processes")

	startCmd := watcherCmd.Subcommand("start", "Attach to a target and block, serving the loopback API until signaled", m.handleWatcherStart)
	addChromeAddrFlags(startCmd)
	addTargetMatchFlags(startCmd)
	startCmd.AddFlag("listen-host", "", "127.0.0.1", "Loopback API bind host")
	startCmd.AddIntFlag("listen-port", "", 0, "Loopback API bind port (0 = ephemeral)")
	startCmd.AddBoolFlag("net", "", false, "Capture network requests in addition to console/exception events")
	startCmd.AddIntFlag("log-capacity", "", 0, "Console/exception ring buffer capacity")
	startCmd.AddIntFlag("net-capacity", "", 0, "Network ring buffer capacity")
	startCmd.AddFlag("boot-script", "", "", "JavaScript source injected on every new document")
	startCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	stopCmd := watcherCmd.Subcommand("stop", "Shut down a running watcher", m.handleWatcherStop)
	stopCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	statusCmd := watcherCmd.Subcommand("status", "Print a single watcher's status", m.handleWatcherStatus)
	statusCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	listCmd := watcherCmd.Subcommand("list", "List registered watchers", m.handleList)
	listCmd.AddFlag("by-cwd", "", "", "Only list watchers started under this working directory")
	listCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	pruneCmd := watcherCmd.Subcommand("prune", "Remove unreachable entries from the registry", m.handleWatcherPrune)
	pruneCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	nativeHostCmd := watcherCmd.Subcommand("native-host", "Run as a Chrome Native-Messaging host over stdio", m.handleWatcherNativeHost)
	addTargetMatchFlags(nativeHostCmd)
	nativeHostCmd.AddFlag("listen-host", "", "127.0.0.1", "Loopback API bind host")
	nativeHostCmd.AddIntFlag("listen-port", "", 0, "Loopback API bind port (0 = ephemeral)")
	nativeHostCmd.AddBoolFlag("net", "", false, "Capture network requests in addition to console/exception events")

	m.app.AddCommand(watcherCmd)
}

func addTargetMatchFlags(cmd *orpheus.Command) {
	cmd.AddFlag("url-contains", "", "", "Target URL must contain this substring")
	cmd.AddFlag("title-contains", "", "", "Target title must contain this substring")
	cmd.AddFlag("url-regex", "", "", "Target URL must match this regex")
	cmd.AddFlag("title-regex", "", "", "Target title must match this regex")
	cmd.AddFlag("type", "", "", "Target type, e.g. page")
	cmd.AddFlag("origin", "", "", "Target URL origin must start with this value")
	cmd.AddFlag("target-id", "", "", "Exact CDP targetId; bypasses every other predicate")
	cmd.AddFlag("parent-url-contains", "", "", "Parent target's URL must contain this substring")
}

func targetMatchFrom(ctx *orpheus.Context) *model.TargetMatch {
	m := &model.TargetMatch{
		URLContains:       ctx.GetFlagString("url-contains"),
		TitleContains:     ctx.GetFlagString("title-contains"),
		URLRegex:          ctx.GetFlagString("url-regex"),
		TitleRegex:        ctx.GetFlagString("title-regex"),
		Type:              ctx.GetFlagString("type"),
		Origin:            ctx.GetFlagString("origin"),
		TargetID:          ctx.GetFlagString("target-id"),
		ParentURLContains: ctx.GetFlagString("parent-url-contains"),
	}
	if m.IsZero() {
		return nil
	}
	return m
}

func (m *Manager) handleWatcherStart(ctx *orpheus.Context) error {
	store, err := m.ensureStore()
	if err != nil {
		return err
	}
	host, port := chromeAddrFrom(ctx)
	opts := watcherproc.Options{
		Source:      "cdp",
		ChromeHost:  host,
		ChromePort:  port,
		Match:       targetMatchFrom(ctx),
		ListenHost:  ctx.GetFlagString("listen-host"),
		ListenPort:  ctx.GetFlagInt("listen-port"),
		NetEnabled:  ctx.GetFlagBool("net"),
		LogCapacity: ctx.GetFlagInt("log-capacity"),
		NetCapacity: ctx.GetFlagInt("net-capacity"),
		BootScript:  ctx.GetFlagString("boot-script"),
	}
	cwd, _ := os.Getwd()
	opts.Cwd = cwd

	orch := watcherproc.New(opts, store)
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := orch.Start(runCtx); err != nil {
		return err
	}

	log.Info().Str("id", orch.ID()).Msg("watcher started")
	fmt.Println(orch.ID())

	awaitShutdownSignal()
	return orch.Shutdown(context.Background())
}

func awaitShutdownSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	<-sigCh
}

func (m *Manager) handleWatcherStop(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	if err := client.post(context.Background(), "/shutdown", nil, nil); err != nil {
		return err
	}
	printResult(map[string]any{"ok": true}, ctx.GetFlagBool("json"), func(v any) { fmt.Println("ok") })
	return nil
}

func (m *Manager) handleWatcherStatus(ctx *orpheus.Context) error {
	id, _ := splitID(ctx, 0)
	client, _, err := m.client(id)
	if err != nil {
		return err
	}
	var result map[string]any
	if err := client.get(context.Background(), "/status", nil, &result); err != nil {
		return err
	}
	printResult(result, ctx.GetFlagBool("json"), func(v any) {
		for k, val := range result {
			fmt.Printf("%s: %v\n", k, val)
		}
	})
	return nil
}

func (m *Manager) handleWatcherPrune(ctx *orpheus.Context) error {
	store, err := m.ensureStore()
	if err != nil {
		return err
	}
	removed, err := resolver.PruneDead(store, nil)
	if err != nil {
		return err
	}
	printResult(removed, ctx.GetFlagBool("json"), func(v any) {
		for _, id := range removed {
			fmt.Println(id)
		}
	})
	return nil
}

func (m *Manager) handleWatcherNativeHost(ctx *orpheus.Context) error {
	store, err := m.ensureStore()
	if err != nil {
		return err
	}
	cwd, _ := os.Getwd()
	opts := watcherproc.Options{
		Source:      "extension",
		Match:       targetMatchFrom(ctx),
		ListenHost:  ctx.GetFlagString("listen-host"),
		ListenPort:  ctx.GetFlagInt("listen-port"),
		NetEnabled:  ctx.GetFlagBool("net"),
		Cwd:         cwd,
	}
	orch := watcherproc.New(opts, store)
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := orch.Start(runCtx); err != nil {
		return err
	}
	awaitShutdownSignal()
	return orch.Shutdown(context.Background())
}

