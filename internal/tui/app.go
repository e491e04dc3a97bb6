// Package tui is the interactive front end: a login/register screen, the
// todo list and the profile screen, all on one Bubble Tea program.
//
// Remote calls run as tea.Cmds. Every result carries the screen generation
// it was started in; results from a screen the user already left are
// dropped.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/todoku/internal/model"
	"github.com/Makepad-fr/todoku/internal/profile"
	"github.com/Makepad-fr/todoku/internal/session"
	"github.com/Makepad-fr/todoku/internal/todos"
	"github.com/Makepad-fr/todoku/internal/ui"
)

// Sessions is the part of the session service the screens use.
type Sessions interface {
	SignIn(ctx context.Context, email, password string) (model.Session, error)
	SignUp(ctx context.Context, email, password, name string) (model.Session, error)
	SignOut(ctx context.Context) error
	Current() (model.Session, error)
}

// Deps are the components the screens drive.
type Deps struct {
	Sessions Sessions
	Todos    *todos.Manager
	Profile  *profile.Editor
}

type screen int

const (
	screenAuth screen = iota
	screenList
	screenProfile
)

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	deps   Deps
	screen screen
	gen    int
	sess   model.Session

	width, height int

	auth    authScreen
	list    listScreen
	profile profileScreen
}

// New builds the root model. A stored, unexpired session opens the list
// directly; otherwise the login screen comes first.
func New(ctx context.Context, deps Deps) Model {
	m := Model{
		ctx:     ctx,
		deps:    deps,
		width:   80,
		height:  24,
		auth:    newAuthScreen(),
		list:    newListScreen(),
		profile: newProfileScreen(),
	}
	if sess, err := deps.Sessions.Current(); err == nil {
		m.sess = sess
		m.screen = screenList
	} else if errors.Is(err, session.ErrSessionExpired) {
		m.auth.err = err.Error()
	}
	return m
}

// Run starts the program on the alternate screen and blocks until quit.
func Run(ctx context.Context, deps Deps) error {
	p := tea.NewProgram(New(ctx, deps), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	switch m.screen {
	case screenList:
		return m.loadTodos()
	}
	return m.auth.focusCmd()
}

// navigate switches screens and invalidates results still in flight.
func (m Model) navigate(to screen) (Model, tea.Cmd) {
	m.gen++
	m.screen = to
	switch to {
	case screenAuth:
		m.auth = newAuthScreen()
		return m, m.auth.focusCmd()
	case screenList:
		m.list.reset()
		m.list.syncItems(m.deps.Todos)
		return m, m.loadTodos()
	case screenProfile:
		m.profile = newProfileScreen()
		return m, m.loadProfile()
	}
	return m, nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.list.resize(m.width, m.height)
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case resultMsg:
		if msg.resultGen() != m.gen {
			return m, nil
		}
	}

	switch m.screen {
	case screenAuth:
		return m.updateAuth(msg)
	case screenList:
		return m.updateList(msg)
	case screenProfile:
		return m.updateProfile(msg)
	}
	return m, nil
}

func (m Model) View() string {
	var body string
	switch m.screen {
	case screenAuth:
		body = m.auth.view()
	case screenList:
		body = m.list.view(m.deps.Todos)
	case screenProfile:
		body = m.profile.view(m.deps.Profile)
	}
	return ui.Frame(body)
}

// resultMsg is implemented by every message that answers a remote call.
type resultMsg interface {
	resultGen() int
}

type stamp struct{ gen int }

func (s stamp) resultGen() int { return s.gen }
