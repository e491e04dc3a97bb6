// Package todos keeps the signed-in user's todo list in memory and applies
// add, toggle, edit and delete through a remote Store.
//
// The local list is the only render source. After a successful write the
// list is patched from the server's answer; it is never re-queried.
package todos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/Makepad-fr/todoku/internal/model"
)

// Edit is an in-progress title edit.
type Edit struct {
	ID    string
	Draft string
}

// Manager is the in-memory projection of one user's todos.
// The mutex is never held across a Store call.
type Manager struct {
	store  Store
	logger *log.Logger

	mu      sync.Mutex
	items   []model.Todo
	filter  model.Filter
	pending *Edit
}

// NewManager creates an empty manager. A nil logger discards.
func NewManager(store Store, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{store: store, logger: logger, filter: model.FilterAll}
}

func checkSession(sess model.Session) error {
	if !sess.Valid() {
		return ErrNoSession
	}
	return nil
}

// Load replaces the list with the user's rows, newest first.
// On failure the current list is kept.
func (m *Manager) Load(ctx context.Context, sess model.Session) error {
	if err := checkSession(sess); err != nil {
		return err
	}
	rows, err := m.store.List(ctx, sess)
	if err != nil {
		m.logger.Printf("load todos: %v", err)
		return fmt.Errorf("load todos: %w", err)
	}
	m.mu.Lock()
	m.items = append([]model.Todo(nil), rows...)
	m.mu.Unlock()
	return nil
}

// Add creates a todo and puts the created row at the head of the list.
func (m *Manager) Add(ctx context.Context, sess model.Session, title string, category model.Category) (model.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.Todo{}, ErrEmptyTitle
	}
	if !category.IsValid() {
		return model.Todo{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if err := checkSession(sess); err != nil {
		return model.Todo{}, err
	}

	created, err := m.store.Create(ctx, sess, model.NewTodo{
		Title:    title,
		IsDone:   false,
		Kategori: category,
		UserID:   sess.UserID,
	})
	if err != nil {
		m.logger.Printf("add todo %q: %v", title, err)
		return model.Todo{}, fmt.Errorf("add todo: %w", err)
	}

	m.mu.Lock()
	m.items = append([]model.Todo{created}, m.items...)
	m.mu.Unlock()
	return created, nil
}

// Toggle flips the completion of id. The server's echoed row wins over the
// local guess; the local flip is used only when nothing was echoed.
func (m *Manager) Toggle(ctx context.Context, sess model.Session, id string) (model.Todo, error) {
	if err := checkSession(sess); err != nil {
		return model.Todo{}, err
	}
	current, ok := m.Get(id)
	if !ok {
		return model.Todo{}, fmt.Errorf("%w: %s", ErrTodoNotFound, id)
	}

	want := !current.IsDone
	echoed, err := m.store.SetDone(ctx, sess, id, want)
	if err != nil {
		m.logger.Printf("toggle todo %s: %v", id, err)
		m.forgetIfGone(id, err)
		return model.Todo{}, fmt.Errorf("toggle todo: %w", err)
	}

	return m.patch(id, func(t *model.Todo) {
		if echoed != nil {
			*t = *echoed
			return
		}
		t.IsDone = want
	}), nil
}

// BeginEdit opens an edit of id with its current title as the draft.
func (m *Manager) BeginEdit(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTodoNotFound, id)
	}
	m.pending = &Edit{ID: id, Draft: m.items[i].Title}
	return nil
}

// SetDraft replaces the draft title of the open edit. No-op without one.
func (m *Manager) SetDraft(draft string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending != nil {
		m.pending.Draft = draft
	}
}

// CancelEdit drops the open edit.
func (m *Manager) CancelEdit() {
	m.mu.Lock()
	m.pending = nil
	m.mu.Unlock()
}

// PendingEdit returns the open edit, if any.
func (m *Manager) PendingEdit() (Edit, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Edit{}, false
	}
	return *m.pending, true
}

// CommitEdit saves the open edit. Without an open edit it does nothing.
// An empty draft or a failed write leaves the edit open.
func (m *Manager) CommitEdit(ctx context.Context, sess model.Session) error {
	edit, ok := m.PendingEdit()
	if !ok {
		return nil
	}
	title := strings.TrimSpace(edit.Draft)
	if title == "" {
		return ErrEmptyTitle
	}
	if err := checkSession(sess); err != nil {
		return err
	}

	echoed, err := m.store.SetTitle(ctx, sess, edit.ID, title)
	if err != nil {
		m.logger.Printf("edit todo %s: %v", edit.ID, err)
		m.forgetIfGone(edit.ID, err)
		return fmt.Errorf("edit todo: %w", err)
	}

	m.patch(edit.ID, func(t *model.Todo) {
		if echoed != nil {
			*t = *echoed
			return
		}
		t.Title = title
	})

	m.mu.Lock()
	if m.pending != nil && m.pending.ID == edit.ID {
		m.pending = nil
	}
	m.mu.Unlock()
	return nil
}

// Remove deletes id. An id that is not in the list is a no-op.
func (m *Manager) Remove(ctx context.Context, sess model.Session, id string) error {
	if _, ok := m.Get(id); !ok {
		return nil
	}
	if err := checkSession(sess); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, sess, id); err != nil {
		m.logger.Printf("remove todo %s: %v", id, err)
		return fmt.Errorf("remove todo: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(id); i >= 0 {
		m.items = append(m.items[:i], m.items[i+1:]...)
	}
	if m.pending != nil && m.pending.ID == id {
		m.pending = nil
	}
	return nil
}

// SetFilter changes which todos Visible returns.
func (m *Manager) SetFilter(f model.Filter) {
	if f == "" {
		f = model.FilterAll
	}
	m.mu.Lock()
	m.filter = f
	m.mu.Unlock()
}

// Filter returns the active filter.
func (m *Manager) Filter() model.Filter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter
}

// Visible returns the list under the active filter, order preserved.
func (m *Manager) Visible() []model.Todo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Todo, 0, len(m.items))
	for _, t := range m.items {
		if m.filter.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

// Items returns a copy of the full list.
func (m *Manager) Items() []model.Todo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Todo(nil), m.items...)
}

// Get returns the todo with id.
func (m *Manager) Get(id string) (model.Todo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(id); i >= 0 {
		return m.items[i], true
	}
	return model.Todo{}, false
}

// Stats counts done and pending todos in the full list.
func (m *Manager) Stats() (done, pending int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.items {
		if t.IsDone {
			done++
		} else {
			pending++
		}
	}
	return
}

// Reset empties the list, e.g. after sign-out.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.items = nil
	m.pending = nil
	m.filter = model.FilterAll
	m.mu.Unlock()
}

func (m *Manager) indexLocked(id string) int {
	for i := range m.items {
		if m.items[i].ID == id {
			return i
		}
	}
	return -1
}

// forgetIfGone drops id from the list, and closes its edit, when err says
// the server no longer has the row.
func (m *Manager) forgetIfGone(id string, err error) {
	if !errors.Is(err, ErrTodoNotFound) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexLocked(id); i >= 0 {
		m.items = append(m.items[:i], m.items[i+1:]...)
	}
	if m.pending != nil && m.pending.ID == id {
		m.pending = nil
	}
}

// patch applies fn to id if it is still in the list and returns the result.
func (m *Manager) patch(id string, fn func(*model.Todo)) model.Todo {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexLocked(id)
	if i < 0 {
		return model.Todo{}
	}
	fn(&m.items[i])
	return m.items[i]
}
