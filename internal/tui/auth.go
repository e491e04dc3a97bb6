package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/todoku/internal/model"
	"github.com/Makepad-fr/todoku/internal/session"
	"github.com/Makepad-fr/todoku/internal/ui"
)

const (
	fieldName = iota
	fieldEmail
	fieldPassword
)

type authScreen struct {
	register bool
	inputs   []textinput.Model
	focus    int
	busy     bool
	err      string
	notice   string
}

func newAuthScreen() authScreen {
	inputs := make([]textinput.Model, 3)
	for i := range inputs {
		ti := textinput.New()
		ti.Prompt = "> "
		ti.CharLimit = 200
		inputs[i] = ti
	}
	inputs[fieldName].Placeholder = "Nama"
	inputs[fieldEmail].Placeholder = "Email"
	inputs[fieldPassword].Placeholder = "Password"
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '•'

	a := authScreen{inputs: inputs, focus: fieldEmail}
	a.inputs[a.focus].Focus()
	return a
}

func (a authScreen) fields() []int {
	if a.register {
		return []int{fieldName, fieldEmail, fieldPassword}
	}
	return []int{fieldEmail, fieldPassword}
}

func (a authScreen) focusCmd() tea.Cmd { return textinput.Blink }

func (a *authScreen) move(delta int) {
	fields := a.fields()
	pos := 0
	for i, f := range fields {
		if f == a.focus {
			pos = i
		}
	}
	pos = (pos + delta + len(fields)) % len(fields)
	a.inputs[a.focus].Blur()
	a.focus = fields[pos]
	a.inputs[a.focus].Focus()
}

func (a *authScreen) toggleMode() {
	a.register = !a.register
	a.err, a.notice = "", ""
	a.inputs[a.focus].Blur()
	a.focus = a.fields()[0]
	a.inputs[a.focus].Focus()
}

func (a authScreen) value(field int) string {
	return strings.TrimSpace(a.inputs[field].Value())
}

type signedInMsg struct {
	stamp
	sess    model.Session
	err     error
	pending bool
}

func (m Model) updateAuth(msg tea.Msg) (tea.Model, tea.Cmd) {
	a := &m.auth
	switch msg := msg.(type) {
	case signedInMsg:
		a.busy = false
		switch {
		case msg.pending:
			a.toggleMode()
			a.notice = msg.err.Error()
			return m, nil
		case msg.err != nil:
			a.err = msg.err.Error()
			return m, nil
		}
		m.sess = msg.sess
		return m.navigate(screenList)

	case tea.KeyMsg:
		if a.busy {
			return m, nil
		}
		switch msg.String() {
		case "esc":
			return m, tea.Quit
		case "ctrl+r":
			a.toggleMode()
			return m, nil
		case "tab", "down":
			a.move(1)
			return m, nil
		case "shift+tab", "up":
			a.move(-1)
			return m, nil
		case "enter":
			fields := a.fields()
			if a.focus != fields[len(fields)-1] {
				a.move(1)
				return m, nil
			}
			return m.submitAuth()
		}
	}

	var cmd tea.Cmd
	a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
	return m, cmd
}

func (m Model) submitAuth() (tea.Model, tea.Cmd) {
	a := &m.auth
	email := a.value(fieldEmail)
	password := a.inputs[fieldPassword].Value()
	name := a.value(fieldName)
	if email == "" || password == "" {
		a.err = "Email dan password wajib diisi"
		return m, nil
	}
	a.busy, a.err, a.notice = true, "", ""

	ctx, svc, gen, register := m.ctx, m.deps.Sessions, m.gen, a.register
	return m, func() tea.Msg {
		if register {
			sess, err := svc.SignUp(ctx, email, password, name)
			return signedInMsg{stamp: stamp{gen}, sess: sess, err: err, pending: errors.Is(err, session.ErrConfirmationPending)}
		}
		sess, err := svc.SignIn(ctx, email, password)
		return signedInMsg{stamp: stamp{gen}, sess: sess, err: err}
	}
}

func (a authScreen) view() string {
	title := "Masuk"
	hint := "ctrl+r: daftar akun baru"
	if a.register {
		title = "Daftar"
		hint = "ctrl+r: sudah punya akun? masuk"
	}
	t := ui.Current()
	lines := []string{t.Title.Render(title), ""}
	for _, f := range a.fields() {
		lines = append(lines, a.inputs[f].View())
	}
	lines = append(lines, "")
	switch {
	case a.busy:
		lines = append(lines, t.Muted.Render("..."))
	case a.err != "":
		lines = append(lines, t.Error.Render(a.err))
	case a.notice != "":
		lines = append(lines, t.Success.Render(a.notice))
	}
	lines = append(lines, t.Help.Render("enter: lanjut • tab: pindah • "+hint+" • esc: keluar"))
	return strings.Join(lines, "\n")
}
