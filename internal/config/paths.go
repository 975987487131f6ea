// Package config centralizes filesystem locations for Argus runtime
// artifacts: the registry file, its lock, and per-watcher log/trace/
// screenshot output.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// HomeEnv overrides the default runtime root (spec.md §6).
	HomeEnv = "ARGUS_HOME"

	xdgStateHomeEnv = "XDG_STATE_HOME"
	appName         = "argus"

	// ChromeBinEnv and ChromeUserDataDirEnv are passthrough environment
	// variables consumed only by the out-of-scope Chrome-launch
	// collaborator (spec.md §6); Argus never reads their values itself
	// beyond exposing them to that collaborator.
	ChromeBinEnv          = "ARGUS_CHROME_BIN"
	ChromeUserDataDirEnv  = "ARGUS_CHROME_USER_DATA_DIR"
)

// RootDir returns the runtime root for Argus. Resolution order:
//  1. ARGUS_HOME, if set
//  2. XDG_STATE_HOME/argus, if XDG_STATE_HOME is set
//  3. os.UserConfigDir()/argus, cross-platform fallback
func RootDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv(HomeEnv)); override != "" {
		return normalizePath(override)
	}

	if xdg := strings.TrimSpace(os.Getenv(xdgStateHomeEnv)); xdg != "" {
		root, err := normalizePath(xdg)
		if err != nil {
			return "", err
		}
		return filepath.Join(root, appName), nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config directory: %w", err)
	}
	root, err := normalizePath(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(root, appName), nil
}

// RegistryFile returns the path to the registry JSON file (spec.md §3, §4.1, §6).
func RegistryFile() (string, error) {
	return InRoot("registry.json")
}

// RegistryLockFile returns the sibling advisory-lock path for the registry (spec.md §4.1).
func RegistryLockFile() (string, error) {
	return InRoot("registry.json.lock")
}

// LogsDir returns the directory holding per-watcher rotated log files (spec.md §6).
func LogsDir() (string, error) {
	return InRoot("logs")
}

// TracesDir returns the directory holding captured trace JSON (spec.md §6).
func TracesDir() (string, error) {
	return InRoot("traces")
}

// ScreenshotsDir returns the directory holding captured screenshots (spec.md §6).
func ScreenshotsDir() (string, error) {
	return InRoot("screenshots")
}

// InRoot returns a path rooted under RootDir with additional path elements.
func InRoot(parts ...string) (string, error) {
	root, err := RootDir()
	if err != nil {
		return "", err
	}
	all := make([]string, 0, len(parts)+1)
	all = append(all, root)
	all = append(all, parts...)
	return filepath.Join(all...), nil
}

// EnsureDir creates dir (and parents) if it does not already exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o750)
}

func normalizePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path %q: %w", path, err)
	}
	return filepath.Clean(absPath), nil
}
