package ui

import (
	"fmt"

	"github.com/Makepad-fr/todoku/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

// MaxTitleWidth is where list titles get cut.
const MaxTitleWidth = 80

var categoryColors = map[model.Category]lipgloss.Color{
	model.CategoryBiasa:         lipgloss.Color("#eeeeee"),
	model.CategoryPenting:       lipgloss.Color("#FFD700"),
	model.CategoryPentingBanget: lipgloss.Color("#FF6347"),
}

// CategoryBadge renders c as a small colored tag.
func CategoryBadge(c model.Category) string {
	if !current.Colored {
		return "[" + string(c) + "]"
	}
	color, ok := categoryColors[c]
	if !ok {
		return "[" + string(c) + "]"
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("0")).
		Background(color).
		Padding(0, 1).
		Render(string(c))
}

// Checkbox renders the done marker.
func Checkbox(done bool) string {
	if done {
		return current.Success.Render(current.BoxChecked)
	}
	return current.Muted.Render(current.BoxUnchecked)
}

// Title truncates and styles a todo title.
func Title(t model.Todo, width int) string {
	if width <= 0 {
		width = MaxTitleWidth
	}
	title := truncate.StringWithTail(t.Title, uint(width), "...")
	if t.IsDone {
		return current.Done.Render(title)
	}
	return title
}

// TodoLine is one numbered row of a list.
func TodoLine(index int, t model.Todo) string {
	return fmt.Sprintf("%s %s %s %s",
		current.Muted.Render(fmt.Sprintf("%2d.", index)),
		Checkbox(t.IsDone),
		Title(t, MaxTitleWidth),
		CategoryBadge(t.Kategori),
	)
}

// Header is the list header with live counts.
func Header(done, pending int, filter model.Filter) string {
	return fmt.Sprintf("%s  %s %d  %s %d  %s %d  %s",
		current.Title.Render("Todos"),
		current.Success.Render(current.SymDone), done,
		current.Pending.Render(current.SymPending), pending,
		current.Accent.Render("Total"), done+pending,
		current.Muted.Render("("+filter.Label()+")"),
	)
}
