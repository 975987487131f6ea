// Package cliapp implements the argus CLI (spec.md §6 "CLI surface"): an
// Orpheus-powered command tree that resolves a target watcher through
// internal/resolver and drives it through the loopback HTTP API in
// internal/httpapi, plus the watcher/chrome process-management commands
// that don't address an existing watcher at all. Grounded on
// agilira-argus/cmd/cli's Manager: a fluent Orpheus command tree built in
// setup*Commands methods, handlers as Manager methods.
package cliapp

import (
	"os"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/argus-dev/argus/internal/registry"
)

// Manager owns the Orpheus app and the registry store every command
// resolves watchers against.
type Manager struct {
	app   *orpheus.App
	store *registry.Store
}

// NewManager builds the CLI command tree. store is lazily opened on
// first use by commands that need it (registry access touches the
// filesystem, which a bare `argus --help` shouldn't require).
func NewManager() *Manager {
	app := orpheus.New("argus").
		SetDescription("Attach to a browser target, capture its console/network activity, and drive it over CDP").
		SetVersion("0.1.0")

	m := &Manager{app: app}

	m.setupInspectionCommands()
	m.setupDomCommands()
	m.setupStorageCommands()
	m.setupEmulationCommands()
	m.setupThrottleCommands()
	m.setupTraceCommands()
	m.setupScreenshotCommand()
	m.setupReloadCommand()
	m.setupPageCommands()
	m.setupWatcherCommands()
	m.setupChromeCommands()

	return m
}

// Run executes the CLI with args (normally os.Args[1:]).
func (m *Manager) Run(args []string) error {
	return m.app.Run(args)
}

// Main is cmd/argus's entire body: run, map the error to an exit code,
// and print it (spec.md §6 "Exit codes: 0 success; 1 operational
// failure; 2 user-input error").
func Main() int {
	m := NewManager()
	if err := m.Run(os.Args[1:]); err != nil {
		printErr(err)
		return exitCodeFor(err)
	}
	return exitOK
}

// ensureStore opens the registry store on first use.
func (m *Manager) ensureStore() (*registry.Store, error) {
	if m.store != nil {
		return m.store, nil
	}
	store, err := registry.NewStore()
	if err != nil {
		return nil, err
	}
	m.store = store
	return store, nil
}

func (m *Manager) setupInspectionCommands() {
	listCmd := orpheus.NewCommand("list", "List registered watchers").SetHandler(m.handleList)
	listCmd.AddFlag("by-cwd", "", "", "Only list watchers started under this working directory")
	listCmd.AddBoolFlag("json", "j", false, "Emit JSON")
	m.app.AddCommand(listCmd)

	logsCmd := orpheus.NewCommand("logs", "Print captured console/exception events").SetHandler(m.handleLogs)
	addLogFilterFlags(logsCmd)
	m.app.AddCommand(logsCmd)

	tailCmd := orpheus.NewCommand("tail", "Stream new console/exception events").SetHandler(m.handleTail)
	addLogFilterFlags(tailCmd)
	m.app.AddCommand(tailCmd)

	netCmd := orpheus.NewCommand("net", "Inspect captured network requests").SetHandler(m.handleNetList)
	addNetFilterFlags(netCmd)
	tailSub := netCmd.Subcommand("tail", "Stream new network requests", m.handleNetTail)
	addNetFilterFlags(tailSub)
	m.app.AddCommand(netCmd)

	evalCmd := orpheus.NewCommand("eval", "Evaluate a JavaScript expression in the attached page").SetHandler(m.handleEval)
	evalCmd.AddBoolFlag("no-await", "", false, "Do not await a returned promise")
	evalCmd.AddIntFlag("timeout", "t", 0, "Evaluation timeout in milliseconds")
	evalCmd.AddBoolFlag("json", "j", false, "Emit JSON")
	m.app.AddCommand(evalCmd)
}

func addLogFilterFlags(cmd *orpheus.Command) {
	cmd.AddFlag("levels", "", "", "Comma-separated level filter (log,info,warning,error,debug)")
	cmd.AddFlag("match", "m", "", "Regex the message text must match")
	cmd.AddFlag("source", "", "", "Filter by log source (console|exception|system)")
	cmd.AddBoolFlag("ignore-case", "", true, "Case-insensitive --match")
	cmd.AddBoolFlag("case-sensitive", "", false, "Case-sensitive --match")
	cmd.AddIntFlag("limit", "n", 0, "Maximum events to return")
	cmd.AddBoolFlag("json", "j", false, "Emit JSON")
}

func addNetFilterFlags(cmd *orpheus.Command) {
	cmd.AddFlag("url-contains", "", "", "Filter by URL substring")
	cmd.AddFlag("method", "", "", "Filter by HTTP method")
	cmd.AddFlag("status", "", "", "Comma-separated status code filter")
	cmd.AddIntFlag("limit", "n", 0, "Maximum requests to return")
	cmd.AddBoolFlag("json", "j", false, "Emit JSON")
}
