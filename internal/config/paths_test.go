package config

import (
	"path/filepath"
	"testing"
)

func TestRootDirHonorsArgusHome(t *testing.T) {
	t.Setenv(HomeEnv, "/tmp/argus-test-home")
	t.Setenv(xdgStateHomeEnv, "")

	root, err := RootDir()
	if err != nil {
		t.Fatalf("RootDir: %v", err)
	}
	if root != "/tmp/argus-test-home" {
		t.Errorf("RootDir = %q, want /tmp/argus-test-home", root)
	}
}

func TestRootDirFallsBackToXDG(t *testing.T) {
	t.Setenv(HomeEnv, "")
	t.Setenv(xdgStateHomeEnv, "/tmp/xdg-state")

	root, err := RootDir()
	if err != nil {
		t.Fatalf("RootDir: %v", err)
	}
	want := filepath.Join("/tmp/xdg-state", appName)
	if root != want {
		t.Errorf("RootDir = %q, want %q", root, want)
	}
}

func TestInRootJoinsRoot(t *testing.T) {
	t.Setenv(HomeEnv, "/tmp/argus-test-home")

	got, err := InRoot("logs", "watcher-1.log")
	if err != nil {
		t.Fatalf("InRoot: %v", err)
	}
	want := filepath.Join("/tmp/argus-test-home", "logs", "watcher-1.log")
	if got != want {
		t.Errorf("InRoot = %q, want %q", got, want)
	}
}

func TestRegistryFileAndLockAreSiblings(t *testing.T) {
	t.Setenv(HomeEnv, "/tmp/argus-test-home")

	reg, err := RegistryFile()
	if err != nil {
		t.Fatalf("RegistryFile: %v", err)
	}
	lock, err := RegistryLockFile()
	if err != nil {
		t.Fatalf("RegistryLockFile: %v", err)
	}
	if filepath.Dir(reg) != filepath.Dir(lock) {
		t.Errorf("registry file and lock file are not siblings: %q vs %q", reg, lock)
	}
}
