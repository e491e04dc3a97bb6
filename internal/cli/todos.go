package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Makepad-fr/todoku/internal/model"
	"github.com/Makepad-fr/todoku/internal/todos"
	"github.com/Makepad-fr/todoku/internal/ui"
)

func newListCmd(a *app) *cobra.Command {
	var filter model.Filter
	var group bool
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List todos, newest first",
		Args:  exactArgs(0, "todoku ls [--kategori K|all] [--group]"),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.requireSession()
			if err != nil {
				return err
			}
			if err := a.todos.Load(cmd.Context(), sess); err != nil {
				return err
			}
			if !cmd.Flags().Changed("group") {
				group = a.cfg.UI.Group
			}
			a.todos.SetFilter(filter)
			fmt.Fprintln(a.io.Out, a.renderList(group))
			return nil
		},
	}
	cmd.Flags().Var(newFilterValue(&filter), "kategori", "show only this kategori (or all)")
	cmd.Flags().BoolVar(&group, "group", false, "group output by pending/done")
	setFlagAliases(cmd.Flags(), categoryFlagAliases)
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var category model.Category
	cmd := &cobra.Command{
		Use:   "add [--kategori K] <title...>",
		Short: "Add a todo (title can be multiple words)",
		Args:  minArgs(1, "todoku add [--kategori K] <title...>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.requireSession()
			if err != nil {
				return err
			}
			t, err := a.todos.Add(cmd.Context(), sess, joinArgs(args), category)
			if err != nil {
				return usageFor("add", err)
			}
			ui.OK(a.io.Out, fmt.Sprintf("added %q %s", t.Title, ui.CategoryBadge(t.Kategori)))
			return nil
		},
	}
	cmd.Flags().Var(newCategoryValue(&category), "kategori", "kategori of the new todo")
	setFlagAliases(cmd.Flags(), categoryFlagAliases)
	return cmd
}

func newDoneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "done <index>",
		Short: "Toggle completion of the todo at a 1-based index",
		Args:  exactArgs(1, "todoku done <index>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, t, err := a.todoAt(cmd, "done", args[0])
			if err != nil {
				return err
			}
			updated, err := a.todos.Toggle(cmd.Context(), sess, t.ID)
			if err != nil {
				return err
			}
			msg := "marked pending"
			if updated.IsDone {
				msg = "marked done"
			}
			ui.OK(a.io.Out, msg+": "+updated.Title)
			return nil
		},
	}
}

func newEditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <index> <title...>",
		Short: "Change the title of the todo at a 1-based index",
		Args:  minArgs(2, "todoku edit <index> <title...>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, t, err := a.todoAt(cmd, "edit", args[0])
			if err != nil {
				return err
			}
			if err := a.todos.BeginEdit(t.ID); err != nil {
				return err
			}
			a.todos.SetDraft(joinArgs(args[1:]))
			if err := a.todos.CommitEdit(cmd.Context(), sess); err != nil {
				return usageFor("edit", err)
			}
			updated, _ := a.todos.Get(t.ID)
			ui.OK(a.io.Out, "updated: "+updated.Title)
			return nil
		},
	}
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <index>",
		Short: "Remove the todo at a 1-based index",
		Args:  exactArgs(1, "todoku rm <index>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, t, err := a.todoAt(cmd, "rm", args[0])
			if err != nil {
				return err
			}
			if err := a.todos.Remove(cmd.Context(), sess, t.ID); err != nil {
				return err
			}
			ui.OK(a.io.Out, "removed: "+t.Title)
			return nil
		},
	}
}

// todoAt loads the list and resolves a 1-based index as shown by ls.
func (a *app) todoAt(cmd *cobra.Command, verb, arg string) (model.Session, model.Todo, error) {
	n, err := strconv.Atoi(arg)
	if err != nil {
		return model.Session{}, model.Todo{}, usageErrorf("%s: not a number: %s", verb, arg)
	}
	sess, err := a.requireSession()
	if err != nil {
		return model.Session{}, model.Todo{}, err
	}
	if err := a.todos.Load(cmd.Context(), sess); err != nil {
		return model.Session{}, model.Todo{}, err
	}
	items := a.todos.Items()
	if n < 1 || n > len(items) {
		return model.Session{}, model.Todo{}, &usageError{
			msg:  fmt.Sprintf("index out of range: have %d, got %d", len(items), n),
			hint: "Hint: run `todoku ls` to see valid indexes",
		}
	}
	return sess, items[n-1], nil
}

// usageFor reports input the manager refused as a usage error.
func usageFor(verb string, err error) error {
	if errors.Is(err, todos.ErrEmptyTitle) || errors.Is(err, todos.ErrInvalidCategory) {
		return usageErrorf("%s: %v", verb, err)
	}
	return err
}

// entry is a todo with its index in the full list, so filtered and grouped
// views keep the numbers done/edit/rm expect.
type entry struct {
	index int
	todo  model.Todo
}

func (a *app) renderList(group bool) string {
	filter := a.todos.Filter()
	var entries []entry
	for i, t := range a.todos.Items() {
		if filter.Matches(t) {
			entries = append(entries, entry{index: i + 1, todo: t})
		}
	}
	done, pending := stats(entries)

	t := ui.Current()
	var lines []string
	lines = append(lines, ui.Header(done, pending, filter))
	lines = append(lines, t.Muted.Render(ui.ProgressBar(done, done+pending, 28)))
	lines = append(lines, "")
	if group {
		lines = append(lines, groupLines(entries)...)
	} else {
		lines = append(lines, flatLines(entries)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Muted.Render("Tip: add with `todoku add \"Beli susu\"`"))
	return ui.Panel(lines)
}

func stats(entries []entry) (done, pending int) {
	for _, e := range entries {
		if e.todo.IsDone {
			done++
		} else {
			pending++
		}
	}
	return
}

func flatLines(entries []entry) []string {
	if len(entries) == 0 {
		return []string{ui.Current().Muted.Render("no todos")}
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, ui.TodoLine(e.index, e.todo))
	}
	return out
}

func groupLines(entries []entry) []string {
	var pend, done []entry
	for _, e := range entries {
		if e.todo.IsDone {
			done = append(done, e)
		} else {
			pend = append(pend, e)
		}
	}
	t := ui.Current()
	var lines []string
	lines = append(lines, t.Accent.Render("Pending"))
	if len(pend) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(pend)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Accent.Render("Done"))
	if len(done) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(done)...)
	}
	return lines
}
