package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Makepad-fr/todoku/internal/model"
	"github.com/Makepad-fr/todoku/internal/session"
	"github.com/Makepad-fr/todoku/internal/ui"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Register, log in and out",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErrorf("unknown auth subcommand: %s", args[0])
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return usageErrorf("usage: todoku auth <register|login|logout|status|whoami>")
		},
	}
	cmd.AddCommand(
		newRegisterCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newWhoAmICmd(a),
	)
	return cmd
}

func newRegisterCmd(a *app) *cobra.Command {
	var email, name string
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "register --email E --name N",
		Short: "Create an account and its profile",
		Args:  exactArgs(0, "todoku auth register --email E --name N"),
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return usageErrorf("register: --email is required")
			}
			password, err := a.readPassword(fromStdin)
			if err != nil {
				return err
			}
			sess, err := a.sessions.SignUp(cmd.Context(), email, password, strings.TrimSpace(name))
			if errors.Is(err, session.ErrConfirmationPending) {
				ui.OK(a.io.Out, err.Error())
				return nil
			}
			if err != nil {
				return err
			}
			ui.OK(a.io.Out, "registered as "+sess.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email string
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "login --email E",
		Short: "Log in with e-mail and password",
		Args:  exactArgs(0, "todoku auth login --email E"),
		RunE: func(cmd *cobra.Command, args []string) error {
			email = strings.TrimSpace(email)
			if email == "" {
				return usageErrorf("login: --email is required")
			}
			password, err := a.readPassword(fromStdin)
			if err != nil {
				return err
			}
			sess, err := a.sessions.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			ui.OK(a.io.Out, "logged in as "+sess.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account e-mail")
	cmd.Flags().BoolVar(&fromStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the stored session",
		Args:  exactArgs(0, "todoku auth logout"),
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.sessions.SignOut(cmd.Context())
			if errors.Is(err, session.ErrTokenFromEnv) {
				ui.OK(a.io.Out, err.Error())
				return nil
			}
			if err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			a.todos.Reset()
			a.profile.Reset()
			ui.OK(a.io.Out, "logged out")
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Args:  exactArgs(0, "todoku auth status"),
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := a.sessions.Status()
			if err != nil {
				return err
			}
			out := a.io.Out
			if creds == nil {
				ui.Hint(out, "not logged in")
				fmt.Fprintln(out, "Run: todoku auth login")
				return nil
			}
			if creds.Email != "" {
				fmt.Fprintf(out, "email: %s\n", creds.Email)
			}
			fmt.Fprintf(out, "source: %s\n", creds.Source)
			if creds.ExpiresAt != nil {
				state := ""
				if !creds.ExpiresAt.After(time.Now()) {
					state = " (expired)"
				}
				fmt.Fprintf(out, "expires: %s%s\n", creds.ExpiresAt.UTC().Format(time.RFC3339), state)
			} else {
				fmt.Fprintln(out, "expires: (unknown)")
			}
			fmt.Fprintf(out, "env override: %s\n", session.TokenEnv)
			return nil
		},
	}
}

func newWhoAmICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Ask the service who the session belongs to",
		Args:  exactArgs(0, "todoku auth whoami"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.requireSession(); err != nil {
				return err
			}
			user, err := a.sessions.WhoAmI(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.io.Out, "id: %s\nemail: %s\n", user.ID, user.Email)
			return nil
		},
	}
}

// requireSession returns the stored session or a usage error pointing at
// `todoku auth login`.
func (a *app) requireSession() (model.Session, error) {
	sess, err := a.sessions.Current()
	if errors.Is(err, session.ErrNotSignedIn) || errors.Is(err, session.ErrSessionExpired) {
		return model.Session{}, &usageError{
			msg:  err.Error(),
			hint: "Run: todoku auth login (or set " + session.TokenEnv + ")",
		}
	}
	return sess, err
}

// readPassword prompts without echo on a terminal and otherwise reads one
// line from stdin.
func (a *app) readPassword(fromStdin bool) (string, error) {
	if f, ok := a.io.In.(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(a.io.ErrOut, "Password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.io.ErrOut)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return checkPassword(string(b))
	}
	if a.io.In == nil {
		return "", usageErrorf("password required")
	}
	line, err := bufio.NewReader(a.io.In).ReadString('\n')
	if err != nil && line == "" {
		return "", &usageError{msg: "password required", hint: "Pipe it in with --password-stdin"}
	}
	return checkPassword(strings.TrimRight(line, "\r\n"))
}

func checkPassword(p string) (string, error) {
	if p == "" {
		return "", usageErrorf("password required")
	}
	return p, nil
}
