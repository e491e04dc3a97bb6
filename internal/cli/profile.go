package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/todoku/internal/profile"
	"github.com/Makepad-fr/todoku/internal/ui"
)

func newProfileCmd(a *app) *cobra.Command {
	show := func(cmd *cobra.Command, args []string) error {
		sess, err := a.requireSession()
		if err != nil {
			return err
		}
		if err := a.profile.Load(cmd.Context(), sess); err != nil {
			return err
		}
		t := ui.Current()
		name := a.profile.Name()
		if name == "" {
			name = t.Muted.Render("(belum diatur)")
		}
		fmt.Fprintln(a.io.Out, ui.Panel([]string{
			t.Title.Render("Profil"),
			"",
			t.Muted.Render("Email") + "  " + a.profile.Email(),
			t.Muted.Render("Nama") + "   " + name,
		}))
		return nil
	}

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change the display name",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageErrorf("unknown profile subcommand: %s", args[0])
			}
			return nil
		},
		RunE: show,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Show the profile",
			Args:  exactArgs(0, "todoku profile show"),
			RunE:  show,
		},
		&cobra.Command{
			Use:   "set-name <name...>",
			Short: "Change the display name",
			Args:  minArgs(1, "todoku profile set-name <name...>"),
			RunE: func(cmd *cobra.Command, args []string) error {
				sess, err := a.requireSession()
				if err != nil {
					return err
				}
				if err := a.profile.Load(cmd.Context(), sess); err != nil {
					return err
				}
				a.profile.BeginEdit()
				err = a.profile.Save(cmd.Context(), sess, joinArgs(args))
				if errors.Is(err, profile.ErrEmptyName) {
					return usageErrorf("set-name: %v", err)
				}
				if err != nil {
					return err
				}
				ui.OK(a.io.Out, profile.SavedMessage)
				return nil
			},
		},
	)
	return cmd
}
