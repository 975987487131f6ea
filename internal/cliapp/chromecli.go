package cliapp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/agilira/orpheus/pkg/orpheus"

	"github.com/argus-dev/argus/internal/apierr"
	"github.com/argus-dev/argus/internal/config"
	"github.com/argus-dev/argus/internal/util"
)

// chromeVersionInfo mirrors Chrome's /json/version response.
type chromeVersionInfo struct {
	Browser              string `json:"Browser"`
	ProtocolVersion       string `json:"Protocol-Version"`
	UserAgent             string `json:"User-Agent"`
	WebKitVersion         string `json:"WebKit-Version"`
	WebSocketDebuggerURL  string `json:"webSocketDebuggerUrl"`
}

func (m *Manager) setupChromeCommands() {
	chromeCmd := orpheus.NewCommand("chrome", "Launch and inspect a local Chrome instance")

	startCmd := chromeCmd.Subcommand("start", "Launch Chrome with remote debugging enabled", m.handleChromeStart)
	addChromeAddrFlags(startCmd)
	startCmd.AddFlag("user-data-dir", "", "", "Override the profile directory (defaults to a fresh one under the runtime root)")
	startCmd.AddBoolFlag("headless", "", false, "Launch headless")
	startCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	statusCmd := chromeCmd.Subcommand("status", "Report whether Chrome's debugging endpoint is reachable", m.handleChromeStatus)
	addChromeAddrFlags(statusCmd)
	statusCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	versionCmd := chromeCmd.Subcommand("version", "Print Chrome's /json/version payload", m.handleChromeVersion)
	addChromeAddrFlags(versionCmd)
	versionCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	stopCmd := chromeCmd.Subcommand("stop", "Terminate the Chrome instance this CLI launched", m.handleChromeStop)
	stopCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	listCmd := chromeCmd.Subcommand("list", "List Chrome's attachable targets", m.handlePageTargets)
	addChromeAddrFlags(listCmd)
	listCmd.AddBoolFlag("json", "j", false, "Emit JSON")

	m.app.AddCommand(chromeCmd)
}

// chromePIDFile tracks the process this CLI itself launched via `chrome
// start`, so `chrome stop` only ever terminates a process Argus started
// (spec.md §6 Non-goals: Argus doesn't manage arbitrary Chrome installs,
// just the one it launched).
func chromePIDFile() (string, error) {
	return config.InRoot("chrome.pid")
}

func (m *Manager) handleChromeStart(ctx *orpheus.Context) error {
	bin := os.Getenv(config.ChromeBinEnv)
	if bin == "" {
		bin = "google-chrome"
	}
	host, port := chromeAddrFrom(ctx)

	userDataDir := ctx.GetFlagString("user-data-dir")
	if userDataDir == "" {
		userDataDir = os.Getenv(config.ChromeUserDataDirEnv)
	}
	if userDataDir == "" {
		dir, err := config.InRoot("chrome-profile")
		if err != nil {
			return err
		}
		if err := config.EnsureDir(dir); err != nil {
			return err
		}
		userDataDir = dir
	}

	args := []string{
		fmt.Sprintf("--remote-debugging-port=%d", port),
		fmt.Sprintf("--remote-debugging-address=%s", host),
		"--user-data-dir=" + userDataDir,
		"--no-first-run",
		"--no-default-browser-check",
	}
	if ctx.GetFlagBool("headless") {
		args = append(args, "--headless=new")
	}

	cmd := exec.Command(bin, args...)
	util.SetDetachedProcess(cmd)
	if err := cmd.Start(); err != nil {
		return apierr.Wrap(err, apierr.CodeOperatorError, "cannot launch chrome").WithContext("bin", bin)
	}
	go cmd.Wait()

	pidFile, err := chromePIDFile()
	if err != nil {
		return err
	}
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(cmd.Process.Pid)), 0o600); err != nil {
		return apierr.Wrap(err, apierr.CodeOperatorError, "cannot persist chrome pid")
	}

	result := map[string]any{"pid": cmd.Process.Pid, "host": host, "port": port}
	printResult(result, ctx.GetFlagBool("json"), func(v any) {
		fmt.Printf("pid=%d host=%s port=%d\n", cmd.Process.Pid, host, port)
	})
	return nil
}

func (m *Manager) handleChromeStatus(ctx *orpheus.Context) error {
	host, port := chromeAddrFrom(ctx)
	var info chromeVersionInfo
	err := browserJSON(context.Background(), "GET", fmt.Sprintf("http://%s:%d/json/version", host, port), &info)
	reachable := err == nil
	printResult(map[string]any{"reachable": reachable}, ctx.GetFlagBool("json"), func(v any) {
		fmt.Printf("reachable=%v\n", reachable)
	})
	return nil
}

func (m *Manager) handleChromeVersion(ctx *orpheus.Context) error {
	host, port := chromeAddrFrom(ctx)
	var info chromeVersionInfo
	if err := browserJSON(context.Background(), "GET", fmt.Sprintf("http://%s:%d/json/version", host, port), &info); err != nil {
		return err
	}
	printResult(info, ctx.GetFlagBool("json"), func(v any) {
		r := v.(chromeVersionInfo)
		fmt.Printf("%s  protocol=%s\n%s\n", r.Browser, r.ProtocolVersion, r.UserAgent)
	})
	return nil
}

func (m *Manager) handleChromeStop(ctx *orpheus.Context) error {
	pidFile, err := chromePIDFile()
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(pidFile)
	if err != nil {
		return apierr.Wrap(err, apierr.CodeNotFound, "no chrome instance tracked; did you launch it with `chrome start`?")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return apierr.Wrap(err, apierr.CodeOperatorError, "malformed chrome pid file")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return apierr.Wrap(err, apierr.CodeOperatorError, "cannot locate chrome process")
	}
	if err := proc.Signal(os.Interrupt); err != nil {
		return apierr.Wrap(err, apierr.CodeOperatorError, "cannot signal chrome process")
	}
	os.Remove(pidFile)
	printResult(map[string]any{"ok": true}, ctx.GetFlagBool("json"), func(v any) { fmt.Println("ok") })
	return nil
}

