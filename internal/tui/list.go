package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/todoku/internal/model"
	"github.com/Makepad-fr/todoku/internal/todos"
	"github.com/Makepad-fr/todoku/internal/ui"
)

// listItem adapts a todo to bubbles/list.Item.
type listItem struct {
	todo model.Todo
}

func (i listItem) Title() string       { return i.todo.Title }
func (i listItem) Description() string { return string(i.todo.Kategori) }
func (i listItem) FilterValue() string { return i.todo.Title }

// itemDelegate renders one todo per line.
type itemDelegate struct{}

func (d itemDelegate) Height() int                         { return 1 }
func (d itemDelegate) Spacing() int                        { return 0 }
func (d itemDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	width := m.Width() - 24
	if width < 10 {
		width = 10
	}
	line := fmt.Sprintf("%s %s %s", ui.Checkbox(it.todo.IsDone), ui.Title(it.todo, width), ui.CategoryBadge(it.todo.Kategori))
	prefix := "  "
	if index == m.Index() {
		prefix = ui.Current().Selected.Render("> ")
	}
	fmt.Fprintln(w, prefix+line)
}

type inputMode int

const (
	modeBrowse inputMode = iota
	modeAdd
	modeEdit
)

type listScreen struct {
	list     list.Model
	ti       textinput.Model
	mode     inputMode
	category model.Category
	busy     bool
	err      string
	notice   string
}

var (
	addKey     = key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "tambah"))
	editKey    = key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "ubah"))
	toggleKey  = key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "selesai"))
	deleteKey  = key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "hapus"))
	filterKey  = key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "kategori"))
	profileKey = key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "profil"))
	reloadKey  = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "muat ulang"))
)

func newListScreen() listScreen {
	l := list.New(nil, itemDelegate{}, 78, 18)
	t := ui.Current()
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = t.Title
	l.Styles.HelpStyle = t.Help
	l.Styles.PaginationStyle = t.Help
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("todo", "todo")
	// f and d are taken by filter and delete.
	l.KeyMap.NextPage = key.NewBinding(key.WithKeys("right", "l", "pgdown"), key.WithHelp("→/l/pgdn", "next page"))
	extra := func() []key.Binding {
		return []key.Binding{addKey, editKey, toggleKey, deleteKey, filterKey, profileKey, reloadKey}
	}
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 200

	return listScreen{list: l, ti: ti, category: model.DefaultCategory}
}

func (s *listScreen) reset() {
	s.mode = modeBrowse
	s.ti.Blur()
	s.ti.SetValue("")
	s.category = model.DefaultCategory
	s.busy = false
	s.err, s.notice = "", ""
}

func (s *listScreen) resize(w, h int) {
	listHeight := h - 4
	if s.mode != modeBrowse {
		listHeight = h - 7
	}
	if listHeight < 3 {
		listHeight = 3
	}
	s.list.SetSize(w-4, listHeight)
}

// syncItems re-renders the list from the manager's visible todos.
func (s *listScreen) syncItems(mgr *todos.Manager) {
	visible := mgr.Visible()
	items := make([]list.Item, 0, len(visible))
	for _, t := range visible {
		items = append(items, listItem{todo: t})
	}
	s.list.SetItems(items)
	done, pending := mgr.Stats()
	s.list.Title = ui.Header(done, pending, mgr.Filter())
}

func (s listScreen) selected() (model.Todo, bool) {
	it, ok := s.list.SelectedItem().(listItem)
	return it.todo, ok
}

// todosMsg answers any list operation. notice is shown on success.
type todosMsg struct {
	stamp
	err    error
	notice string
	// closeInput ends add/edit mode on success.
	closeInput bool
}

func (m Model) loadTodos() tea.Cmd {
	ctx, mgr, sess, gen := m.ctx, m.deps.Todos, m.sess, m.gen
	return func() tea.Msg {
		return todosMsg{stamp: stamp{gen}, err: mgr.Load(ctx, sess)}
	}
}

func (m Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	s := &m.list
	mgr := m.deps.Todos

	switch msg := msg.(type) {
	case todosMsg:
		s.busy = false
		if msg.err != nil {
			s.err = msg.err.Error()
			s.notice = ""
			// The todo vanished on the server; there is nothing left to edit.
			if _, open := mgr.PendingEdit(); s.mode == modeEdit && !open {
				s.closeInput()
				m.list.resize(m.width, m.height)
			}
		} else {
			s.err, s.notice = "", msg.notice
			if msg.closeInput {
				s.closeInput()
				m.list.resize(m.width, m.height)
			}
		}
		s.syncItems(mgr)
		return m, nil

	case tea.KeyMsg:
		if s.mode != modeBrowse {
			return m.updateListInput(msg)
		}
		if s.list.FilterState() == list.Filtering {
			break
		}
		if s.busy {
			if msg.String() == "q" {
				return m, tea.Quit
			}
			return m, nil
		}
		switch {
		case msg.String() == "q":
			return m, tea.Quit
		case key.Matches(msg, profileKey):
			return m.navigate(screenProfile)
		case key.Matches(msg, reloadKey):
			s.busy = true
			return m, m.loadTodos()
		case key.Matches(msg, filterKey):
			mgr.SetFilter(mgr.Filter().Next())
			s.syncItems(mgr)
			return m, nil
		case key.Matches(msg, addKey):
			s.openInput(modeAdd, "")
			m.list.resize(m.width, m.height)
			return m, textinput.Blink
		case key.Matches(msg, editKey):
			t, ok := s.selected()
			if !ok {
				return m, nil
			}
			if err := mgr.BeginEdit(t.ID); err != nil {
				s.err = err.Error()
				return m, nil
			}
			s.openInput(modeEdit, t.Title)
			m.list.resize(m.width, m.height)
			return m, textinput.Blink
		case key.Matches(msg, toggleKey):
			t, ok := s.selected()
			if !ok {
				return m, nil
			}
			s.busy = true
			return m, m.todoCmd(func() (string, error) {
				_, err := mgr.Toggle(m.ctx, m.sess, t.ID)
				return "", err
			}, false)
		case key.Matches(msg, deleteKey):
			t, ok := s.selected()
			if !ok {
				return m, nil
			}
			s.busy = true
			return m, m.todoCmd(func() (string, error) {
				return "Todo dihapus", mgr.Remove(m.ctx, m.sess, t.ID)
			}, false)
		}
	}

	var cmd tea.Cmd
	s.list, cmd = s.list.Update(msg)
	return m, cmd
}

func (m Model) updateListInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := &m.list
	mgr := m.deps.Todos
	if s.busy {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		if s.mode == modeEdit {
			mgr.CancelEdit()
		}
		s.closeInput()
		s.err = ""
		m.list.resize(m.width, m.height)
		return m, nil
	case "tab":
		if s.mode == modeAdd {
			s.category = s.category.Next()
		}
		return m, nil
	case "enter":
		value := s.ti.Value()
		if strings.TrimSpace(value) == "" {
			s.err = todos.ErrEmptyTitle.Error()
			return m, nil
		}
		s.busy = true
		if s.mode == modeAdd {
			category := s.category
			return m, m.todoCmd(func() (string, error) {
				_, err := mgr.Add(m.ctx, m.sess, value, category)
				return "Todo ditambahkan", err
			}, true)
		}
		mgr.SetDraft(value)
		return m, m.todoCmd(func() (string, error) {
			return "Todo diubah", mgr.CommitEdit(m.ctx, m.sess)
		}, true)
	}

	var cmd tea.Cmd
	s.ti, cmd = s.ti.Update(msg)
	return m, cmd
}

// todoCmd runs op off the update loop and reports it as a todosMsg.
func (m Model) todoCmd(op func() (string, error), closeInput bool) tea.Cmd {
	gen := m.gen
	return func() tea.Msg {
		notice, err := op()
		return todosMsg{stamp: stamp{gen}, err: err, notice: notice, closeInput: closeInput}
	}
}

func (s *listScreen) openInput(mode inputMode, value string) {
	s.mode = mode
	s.err, s.notice = "", ""
	s.ti.SetValue(value)
	s.ti.CursorEnd()
	if mode == modeAdd {
		s.ti.Placeholder = "Judul todo baru..."
	} else {
		s.ti.Placeholder = "Ubah judul..."
	}
	s.ti.Focus()
}

func (s *listScreen) closeInput() {
	if s.mode == modeAdd {
		s.category = model.DefaultCategory
	}
	s.mode = modeBrowse
	s.ti.SetValue("")
	s.ti.Blur()
}

func (s listScreen) view(mgr *todos.Manager) string {
	t := ui.Current()
	content := s.list.View()

	if s.mode != modeBrowse {
		bar := lipgloss.NewStyle().Border(t.Border).BorderForeground(t.BorderColor).Padding(0, 1)
		title := "Tambah todo  " + ui.CategoryBadge(s.category) + t.Help.Render("  (tab: ganti kategori)")
		if s.mode == modeEdit {
			title = "Ubah todo"
		}
		if s.err != "" {
			title += "  " + t.Error.Render(s.err)
		}
		content += "\n" + bar.Render(title+"\n"+s.ti.View())
	}

	done, pending := mgr.Stats()
	status := ui.ProgressBar(done, done+pending, 20)
	switch {
	case s.busy:
		status += "  " + t.Muted.Render("...")
	case s.err != "" && s.mode == modeBrowse:
		status += "  " + t.Error.Render(s.err)
	case s.notice != "":
		status += "  " + t.Success.Render(s.notice)
	}
	return content + "\n" + status
}
