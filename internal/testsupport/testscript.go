// Package testsupport builds the todoku binary and prepares testscript
// environments around a stand-in gateway.
package testsupport

import (
	"fmt"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rogpeppe/go-internal/testscript"

	"github.com/Makepad-fr/todoku/internal/config"
	"github.com/Makepad-fr/todoku/internal/devgateway"
	"github.com/Makepad-fr/todoku/internal/session"
)

// AnonKey is the apikey the script gateway expects.
const AnonKey = "anon-script-key"

var (
	buildOnce  sync.Once
	todokuPath string
	buildErr   error
)

// BuildTodoku builds the todoku binary once and returns its path.
func BuildTodoku(t testing.TB) string {
	t.Helper()

	buildOnce.Do(func() {
		moduleRoot, err := findModuleRoot()
		if err != nil {
			buildErr = err
			return
		}

		binDir, err := os.MkdirTemp("", "todoku-bin-")
		if err != nil {
			buildErr = err
			return
		}

		todokuPath = filepath.Join(binDir, "todoku")
		cmd := exec.Command("go", "build", "-o", todokuPath, "./cmd/todoku")
		cmd.Dir = moduleRoot
		output, err := cmd.CombinedOutput()
		if err != nil {
			buildErr = fmt.Errorf("build todoku: %w: %s", err, strings.TrimSpace(string(output)))
		}
	})

	if buildErr != nil {
		t.Fatalf("%v", buildErr)
	}

	return todokuPath
}

// SetupScriptEnv starts a fresh in-memory gateway for the script and points
// the binary at it with a private home directory.
func SetupScriptEnv(t testing.TB, env *testscript.Env) error {
	t.Helper()

	env.Setenv("TODOKU", BuildTodoku(t))

	gw := devgateway.New(devgateway.NewMemoryStore(), devgateway.Options{AnonKey: AnonKey})
	ts := httptest.NewServer(gw)
	env.Defer(ts.Close)

	homeDir := filepath.Join(env.WorkDir, "home")
	stateDir := filepath.Join(homeDir, ".todoku")
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return err
	}
	env.Setenv("HOME", homeDir)
	env.Setenv(session.HomeEnv, stateDir)
	env.Setenv(session.TokenEnv, "")
	env.Setenv(config.EnvConfig, filepath.Join(homeDir, ".config", "todoku", "config.toml"))
	env.Setenv(config.EnvURL, ts.URL)
	env.Setenv(config.EnvAnonKey, AnonKey)
	return nil
}

func findModuleRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find module root (go.mod)")
		}
		dir = parent
	}
}
