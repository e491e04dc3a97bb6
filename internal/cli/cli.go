// Package cli implements the todoku command line on cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Makepad-fr/todoku/internal/config"
	"github.com/Makepad-fr/todoku/internal/gateway"
	"github.com/Makepad-fr/todoku/internal/profile"
	"github.com/Makepad-fr/todoku/internal/session"
	"github.com/Makepad-fr/todoku/internal/todos"
	"github.com/Makepad-fr/todoku/internal/ui"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitRuntime = 1
	ExitUsage   = 2
)

// LogFileName is the default log file inside the state directory.
const LogFileName = "todoku.log"

// usageError is a mistake on the command line. It exits with ExitUsage and
// may carry a hint for the next command to run.
type usageError struct {
	msg  string
	hint string
}

func (e *usageError) Error() string { return e.msg }

// ExitCode implements the interface main checks with errors.As.
func (e *usageError) ExitCode() int { return ExitUsage }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// IO bundles the standard streams of one invocation.
type IO struct {
	In     io.Reader
	Out    io.Writer
	ErrOut io.Writer
}

// app holds everything a command needs once config is loaded.
type app struct {
	io       IO
	cfg      *config.Config
	logger   *log.Logger
	logFile  io.Closer
	client   *gateway.Client
	sessions *session.Service
	todos    *todos.Manager
	profile  *profile.Editor
}

// Run executes one command line and returns its exit code.
func Run(ctx context.Context, args []string, streams IO) int {
	a := &app{io: streams}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(streams.In)
	root.SetOut(streams.Out)
	root.SetErr(streams.ErrOut)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	ui.Fail(streams.ErrOut, err.Error())

	var ue *usageError
	if errors.As(err, &ue) && ue.hint != "" {
		ui.Hint(streams.ErrOut, ue.hint)
	}
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return ExitRuntime
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "todoku",
		Short:         "todoku - todos on a hosted data service",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErrorf("unknown subcommand: %s", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return &usageError{msg: "missing subcommand"}
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error(), hint: "Run: " + cmd.CommandPath() + " --help"}
	})

	root.AddCommand(
		newAuthCmd(a),
		newListCmd(a),
		newAddCmd(a),
		newDoneCmd(a),
		newEditCmd(a),
		newRemoveCmd(a),
		newProfileCmd(a),
		newUICmd(a),
		newDevServerCmd(a),
	)
	return root
}

// setup loads config and wires the components. It runs before every
// subcommand.
func (a *app) setup() error {
	if a.cfg != nil {
		return nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}
	cfg, err := config.Load(cwd)
	if err != nil {
		return err
	}
	a.cfg = cfg
	ui.SetTheme(cfg.UI.Theme)

	if err := a.openLog(); err != nil {
		return err
	}

	creds, err := session.NewCredentialStore("")
	if err != nil {
		return err
	}
	a.client = gateway.New(gateway.Options{
		URL:     cfg.Gateway.URL,
		AnonKey: cfg.Gateway.AnonKey,
		Timeout: cfg.Gateway.Timeout.Duration,
	})
	a.sessions = session.NewService(a.client, profile.NewRemoteStore(a.client), creds, a.logger)
	a.todos = todos.NewManager(todos.NewRemoteStore(a.client), a.logger)
	a.profile = profile.NewEditor(profile.NewRemoteStore(a.client), a.logger)
	return nil
}

// openLog appends to the configured log file. "-" discards.
func (a *app) openLog() error {
	path := a.cfg.Log.File
	if path == "-" {
		a.logger = log.New(io.Discard, "", 0)
		return nil
	}
	if path == "" {
		dir, err := session.StateDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, LogFileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	a.logFile = f
	a.logger = log.New(f, "", log.LstdFlags)
	return nil
}

func (a *app) close() {
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("usage: %s", usage)
		}
		return nil
	}
}

func minArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return usageErrorf("usage: %s", usage)
		}
		return nil
	}
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

var categoryFlagAliases = map[string]string{
	"category": "kategori",
}

func setFlagAliases(flags *pflag.FlagSet, aliases map[string]string) {
	if len(aliases) == 0 {
		return
	}

	normalize := flags.GetNormalizeFunc()
	flags.SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		if alias, ok := aliases[name]; ok {
			name = alias
		}
		return normalize(f, name)
	})
}
