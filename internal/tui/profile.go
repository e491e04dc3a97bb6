package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/todoku/internal/model"
	"github.com/Makepad-fr/todoku/internal/profile"
	"github.com/Makepad-fr/todoku/internal/ui"
)

type profileScreen struct {
	ti     textinput.Model
	busy   bool
	err    string
	notice string
}

func newProfileScreen() profileScreen {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Nama"
	ti.CharLimit = 100
	return profileScreen{ti: ti, busy: true}
}

type profileMsg struct {
	stamp
	err   error
	saved bool
}

type signedOutMsg struct {
	stamp
	err error
}

func (m Model) loadProfile() tea.Cmd {
	ctx, ed, sess, gen := m.ctx, m.deps.Profile, m.sess, m.gen
	return func() tea.Msg {
		return profileMsg{stamp: stamp{gen}, err: ed.Load(ctx, sess)}
	}
}

func (m Model) updateProfile(msg tea.Msg) (tea.Model, tea.Cmd) {
	p := &m.profile
	ed := m.deps.Profile

	switch msg := msg.(type) {
	case profileMsg:
		p.busy = false
		if msg.err != nil {
			p.err, p.notice = msg.err.Error(), ""
			return m, nil
		}
		p.err = ""
		if msg.saved {
			p.notice = profile.SavedMessage
			p.ti.Blur()
		}
		return m, nil

	case signedOutMsg:
		p.busy = false
		if msg.err != nil {
			p.err = msg.err.Error()
			return m, nil
		}
		m.sess = model.Session{}
		m.deps.Todos.Reset()
		ed.Reset()
		return m.navigate(screenAuth)

	case tea.KeyMsg:
		if p.busy {
			return m, nil
		}
		if ed.Editing() {
			return m.updateProfileInput(msg)
		}
		switch msg.String() {
		case "esc", "b":
			return m.navigate(screenList)
		case "q":
			return m, tea.Quit
		case "e":
			ed.BeginEdit()
			p.err, p.notice = "", ""
			p.ti.SetValue(ed.Name())
			p.ti.CursorEnd()
			p.ti.Focus()
			return m, textinput.Blink
		case "l":
			p.busy = true
			ctx, svc, gen := m.ctx, m.deps.Sessions, m.gen
			return m, func() tea.Msg {
				return signedOutMsg{stamp: stamp{gen}, err: svc.SignOut(ctx)}
			}
		}
	}
	return m, nil
}

func (m Model) updateProfileInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := &m.profile
	ed := m.deps.Profile
	switch msg.String() {
	case "esc":
		ed.CancelEdit()
		p.ti.Blur()
		p.err = ""
		return m, nil
	case "enter":
		name := strings.TrimSpace(p.ti.Value())
		p.busy = true
		ctx, sess, gen := m.ctx, m.sess, m.gen
		return m, func() tea.Msg {
			return profileMsg{stamp: stamp{gen}, err: ed.Save(ctx, sess, name), saved: true}
		}
	}
	var cmd tea.Cmd
	p.ti, cmd = p.ti.Update(msg)
	return m, cmd
}

func (p profileScreen) view(ed *profile.Editor) string {
	t := ui.Current()
	name := ed.Name()
	if name == "" {
		name = t.Muted.Render("(belum diatur)")
	}
	lines := []string{
		t.Title.Render("Profil"),
		"",
		t.Muted.Render("Email") + "  " + ed.Email(),
	}
	if ed.Editing() {
		lines = append(lines, t.Muted.Render("Nama"), p.ti.View())
	} else {
		lines = append(lines, t.Muted.Render("Nama")+"   "+name)
	}
	lines = append(lines, "")
	switch {
	case p.busy:
		lines = append(lines, t.Muted.Render("..."))
	case p.err != "":
		lines = append(lines, t.Error.Render(p.err))
	case p.notice != "":
		lines = append(lines, t.Success.Render(p.notice))
	}
	help := "e: ubah nama • l: keluar akun • esc: kembali"
	if ed.Editing() {
		help = "enter: simpan • esc: batal"
	}
	lines = append(lines, t.Help.Render(help))
	return strings.Join(lines, "\n")
}
