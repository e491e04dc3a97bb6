package todos

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Makepad-fr/todoku/internal/model"
)

var testSession = model.Session{UserID: "user-1", Email: "a@example.com", AccessToken: "token"}

// fakeStore is an in-memory Store that records calls and can be told to fail.
type fakeStore struct {
	rows   []model.Todo
	nextID int
	now    time.Time
	err    error
	noEcho bool
	calls  []string
}

func newFakeStore(rows ...model.Todo) *fakeStore {
	return &fakeStore{rows: rows, now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *fakeStore) index(id string) int {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *fakeStore) List(_ context.Context, sess model.Session) ([]model.Todo, error) {
	s.calls = append(s.calls, "list")
	if s.err != nil {
		return nil, s.err
	}
	var out []model.Todo
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].UserID == sess.UserID {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

func (s *fakeStore) Create(_ context.Context, _ model.Session, t model.NewTodo) (model.Todo, error) {
	s.calls = append(s.calls, "create")
	if s.err != nil {
		return model.Todo{}, s.err
	}
	s.nextID++
	s.now = s.now.Add(time.Minute)
	row := model.Todo{
		ID:        fmt.Sprintf("todo-%d", s.nextID),
		Title:     t.Title,
		IsDone:    t.IsDone,
		Kategori:  t.Kategori,
		UserID:    t.UserID,
		CreatedAt: s.now,
	}
	s.rows = append(s.rows, row)
	return row, nil
}

func (s *fakeStore) SetDone(_ context.Context, _ model.Session, id string, done bool) (*model.Todo, error) {
	s.calls = append(s.calls, "set-done")
	if s.err != nil {
		return nil, s.err
	}
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTodoNotFound, id)
	}
	s.rows[i].IsDone = done
	if s.noEcho {
		return nil, nil
	}
	row := s.rows[i]
	return &row, nil
}

func (s *fakeStore) SetTitle(_ context.Context, _ model.Session, id, title string) (*model.Todo, error) {
	s.calls = append(s.calls, "set-title")
	if s.err != nil {
		return nil, s.err
	}
	i := s.index(id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrTodoNotFound, id)
	}
	s.rows[i].Title = title
	if s.noEcho {
		return nil, nil
	}
	row := s.rows[i]
	return &row, nil
}

func (s *fakeStore) Delete(_ context.Context, _ model.Session, id string) error {
	s.calls = append(s.calls, "delete")
	if s.err != nil {
		return s.err
	}
	if i := s.index(id); i >= 0 {
		s.rows = append(s.rows[:i], s.rows[i+1:]...)
	}
	return nil
}

func loadedManager(t *testing.T, store *fakeStore) *Manager {
	t.Helper()
	m := NewManager(store, nil)
	if err := m.Load(context.Background(), testSession); err != nil {
		t.Fatalf("load: %v", err)
	}
	return m
}

func TestManager_LoadNewestFirst(t *testing.T) {
	store := newFakeStore(
		model.Todo{ID: "1", Title: "old", Kategori: model.CategoryBiasa, UserID: "user-1"},
		model.Todo{ID: "x", Title: "someone else", Kategori: model.CategoryBiasa, UserID: "user-2"},
		model.Todo{ID: "2", Title: "new", Kategori: model.CategoryPenting, UserID: "user-1"},
	)
	m := loadedManager(t, store)

	items := m.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].ID != "2" || items[1].ID != "1" {
		t.Errorf("expected order [2 1], got [%s %s]", items[0].ID, items[1].ID)
	}
}

func TestManager_LoadFailureKeepsItems(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "keep", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)

	store.err = errors.New("network down")
	err := m.Load(context.Background(), testSession)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, store.err) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
	if len(m.Items()) != 1 {
		t.Errorf("expected items to be kept, got %d", len(m.Items()))
	}
}

func TestManager_LoadRequiresSession(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, nil)

	err := m.Load(context.Background(), model.Session{})
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if len(store.calls) != 0 {
		t.Errorf("expected no store calls, got %v", store.calls)
	}
}

func TestManager_AddPrependsCreatedRow(t *testing.T) {
	store := newFakeStore()
	m := loadedManager(t, store)

	created, err := m.Add(context.Background(), testSession, "Clean house", model.CategoryPentingBanget)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	items := m.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	got := items[0]
	if got.Title != "Clean house" {
		t.Errorf("expected title 'Clean house', got %q", got.Title)
	}
	if got.Kategori != model.CategoryPentingBanget {
		t.Errorf("expected kategori 'Penting banget', got %q", got.Kategori)
	}
	if got.IsDone {
		t.Error("expected is_done false")
	}
	if got.ID == "" || got.ID != created.ID {
		t.Errorf("expected store-assigned id, got %q (returned %q)", got.ID, created.ID)
	}
	if got.UserID != "user-1" {
		t.Errorf("expected user_id 'user-1', got %q", got.UserID)
	}
}

func TestManager_AddGoesToHead(t *testing.T) {
	store := newFakeStore()
	m := loadedManager(t, store)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		if _, err := m.Add(ctx, testSession, title, model.CategoryBiasa); err != nil {
			t.Fatalf("add %q: %v", title, err)
		}
		if head := m.Items()[0].Title; head != title {
			t.Errorf("expected %q at head, got %q", title, head)
		}
	}
	if n := len(m.Items()); n != 3 {
		t.Errorf("expected 3 items, got %d", n)
	}
}

func TestManager_AddTrimsTitle(t *testing.T) {
	m := loadedManager(t, newFakeStore())

	created, err := m.Add(context.Background(), testSession, "  Buy milk \n", model.CategoryBiasa)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if created.Title != "Buy milk" {
		t.Errorf("expected trimmed title, got %q", created.Title)
	}
}

func TestManager_AddEmptyTitleIsNoOp(t *testing.T) {
	for _, title := range []string{"", "   ", "\t\n"} {
		store := newFakeStore()
		m := loadedManager(t, store)

		_, err := m.Add(context.Background(), testSession, title, model.CategoryPenting)
		if !errors.Is(err, ErrEmptyTitle) {
			t.Errorf("title %q: expected ErrEmptyTitle, got %v", title, err)
		}
		if n := len(m.Items()); n != 0 {
			t.Errorf("title %q: expected empty list, got %d", title, n)
		}
		for _, call := range store.calls {
			if call == "create" {
				t.Errorf("title %q: expected no create call", title)
			}
		}
	}
}

func TestManager_AddInvalidCategory(t *testing.T) {
	store := newFakeStore()
	m := loadedManager(t, store)

	_, err := m.Add(context.Background(), testSession, "task", model.Category("Urgent"))
	if !errors.Is(err, ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	if len(m.Items()) != 0 {
		t.Error("expected list unchanged")
	}
}

func TestManager_AddFailureLeavesList(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "a", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)
	store.err = errors.New("insert failed")

	if _, err := m.Add(context.Background(), testSession, "b", model.CategoryBiasa); err == nil {
		t.Fatal("expected error")
	}
	if n := len(m.Items()); n != 1 {
		t.Errorf("expected 1 item, got %d", n)
	}
}

func TestManager_ToggleTwiceRestores(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "Buy milk", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)
	ctx := context.Background()

	if _, err := m.Toggle(ctx, testSession, "1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !m.Items()[0].IsDone {
		t.Fatal("expected is_done true after first toggle")
	}

	if _, err := m.Toggle(ctx, testSession, "1"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if m.Items()[0].IsDone {
		t.Fatal("expected is_done false after second toggle")
	}
}

func TestManager_ToggleStaleClientFollowsServer(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "Buy milk", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)

	// Another device completed the todo and also renamed it.
	store.rows[0].IsDone = true
	store.rows[0].Title = "Buy oat milk"

	got, err := m.Toggle(context.Background(), testSession, "1")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !got.IsDone || !m.Items()[0].IsDone {
		t.Errorf("expected local is_done to match server (true)")
	}
	if m.Items()[0].Title != "Buy oat milk" {
		t.Errorf("expected server row to replace local entry, got title %q", m.Items()[0].Title)
	}
	if m.Items()[0].IsDone != store.rows[0].IsDone {
		t.Errorf("local %v disagrees with server %v", m.Items()[0].IsDone, store.rows[0].IsDone)
	}
}

func TestManager_ToggleWithoutEchoFlipsLocally(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "a", Kategori: model.CategoryBiasa, UserID: "user-1"})
	store.noEcho = true
	m := loadedManager(t, store)

	got, err := m.Toggle(context.Background(), testSession, "1")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !got.IsDone {
		t.Error("expected local flip to true")
	}
}

func TestManager_ToggleFailureNoChange(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "a", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)
	store.err = errors.New("update failed")

	if _, err := m.Toggle(context.Background(), testSession, "1"); err == nil {
		t.Fatal("expected error")
	}
	if m.Items()[0].IsDone {
		t.Error("expected is_done unchanged")
	}
}

func TestManager_ToggleUnknownID(t *testing.T) {
	store := newFakeStore()
	m := loadedManager(t, store)

	_, err := m.Toggle(context.Background(), testSession, "missing")
	if !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound, got %v", err)
	}
}

func TestManager_EditCommit(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "old", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)

	if err := m.BeginEdit("1"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	edit, ok := m.PendingEdit()
	if !ok || edit.Draft != "old" {
		t.Fatalf("expected draft 'old', got %+v (ok=%v)", edit, ok)
	}

	m.SetDraft("new title")
	if err := m.CommitEdit(context.Background(), testSession); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got := m.Items()[0].Title; got != "new title" {
		t.Errorf("expected title 'new title', got %q", got)
	}
	if _, ok := m.PendingEdit(); ok {
		t.Error("expected edit mode to be closed")
	}
}

func TestManager_EditCommitEmptyDraftKeepsEdit(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "old", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)

	if err := m.BeginEdit("1"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	m.SetDraft("   ")

	err := m.CommitEdit(context.Background(), testSession)
	if !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if got := m.Items()[0].Title; got != "old" {
		t.Errorf("expected title unchanged, got %q", got)
	}
	edit, ok := m.PendingEdit()
	if !ok {
		t.Fatal("expected edit to stay open")
	}
	if edit.ID != "1" || edit.Draft != "   " {
		t.Errorf("expected in-progress edit preserved, got %+v", edit)
	}
	for _, call := range store.calls {
		if call == "set-title" {
			t.Error("expected no remote call")
		}
	}
}

func TestManager_EditCommitWithoutEditIsNoOp(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "old", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)

	if err := m.CommitEdit(context.Background(), testSession); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(store.calls) != 1 {
		t.Errorf("expected only the load call, got %v", store.calls)
	}
}

func TestManager_EditCommitFailureKeepsEdit(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "old", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)
	if err := m.BeginEdit("1"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	m.SetDraft("new")
	store.err = errors.New("update failed")

	if err := m.CommitEdit(context.Background(), testSession); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := m.PendingEdit(); !ok {
		t.Error("expected edit to stay open")
	}
	if got := m.Items()[0].Title; got != "old" {
		t.Errorf("expected title unchanged, got %q", got)
	}
}

func TestManager_EditCancel(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "old", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)
	if err := m.BeginEdit("1"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	m.SetDraft("discarded")
	m.CancelEdit()

	if _, ok := m.PendingEdit(); ok {
		t.Error("expected no pending edit")
	}
	if got := m.Items()[0].Title; got != "old" {
		t.Errorf("expected title unchanged, got %q", got)
	}
}

func TestManager_BeginEditUnknownID(t *testing.T) {
	m := loadedManager(t, newFakeStore())
	if err := m.BeginEdit("nope"); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound, got %v", err)
	}
}

func TestManager_RemoveExactlyOne(t *testing.T) {
	store := newFakeStore(
		model.Todo{ID: "1", Title: "a", Kategori: model.CategoryBiasa, UserID: "user-1"},
		model.Todo{ID: "2", Title: "b", Kategori: model.CategoryBiasa, UserID: "user-1"},
		model.Todo{ID: "3", Title: "c", Kategori: model.CategoryBiasa, UserID: "user-1"},
	)
	m := loadedManager(t, store)

	if err := m.Remove(context.Background(), testSession, "2"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	items := m.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, it := range items {
		if it.ID == "2" {
			t.Error("expected todo 2 to be gone")
		}
	}
}

func TestManager_RemoveUnknownIsNoOp(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "a", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)

	if err := m.Remove(context.Background(), testSession, "missing"); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if n := len(m.Items()); n != 1 {
		t.Errorf("expected 1 item, got %d", n)
	}
	for _, call := range store.calls {
		if call == "delete" {
			t.Error("expected no delete call")
		}
	}
}

func TestManager_RemoveFailureLeavesList(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "a", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)
	store.err = errors.New("delete failed")

	if err := m.Remove(context.Background(), testSession, "1"); err == nil {
		t.Fatal("expected error")
	}
	if n := len(m.Items()); n != 1 {
		t.Errorf("expected 1 item, got %d", n)
	}
}

func TestManager_RemoveClosesEditOfRemovedTodo(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "a", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)
	if err := m.BeginEdit("1"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	if err := m.Remove(context.Background(), testSession, "1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := m.PendingEdit(); ok {
		t.Error("expected edit of removed todo to be dropped")
	}
}

func TestManager_Filter(t *testing.T) {
	store := newFakeStore(
		model.Todo{ID: "1", Title: "a", Kategori: model.CategoryBiasa, UserID: "user-1"},
		model.Todo{ID: "2", Title: "b", Kategori: model.CategoryPenting, UserID: "user-1"},
		model.Todo{ID: "3", Title: "c", Kategori: model.CategoryPenting, UserID: "user-1"},
		model.Todo{ID: "4", Title: "d", Kategori: model.CategoryPentingBanget, UserID: "user-1"},
	)
	m := loadedManager(t, store)

	m.SetFilter(model.Filter(model.CategoryPenting))
	visible := m.Visible()
	if len(visible) != 2 {
		t.Fatalf("expected 2 visible, got %d", len(visible))
	}
	for _, v := range visible {
		if v.Kategori != model.CategoryPenting {
			t.Errorf("unexpected kategori %q in filtered view", v.Kategori)
		}
	}
	if visible[0].ID != "3" || visible[1].ID != "2" {
		t.Errorf("expected order [3 2], got [%s %s]", visible[0].ID, visible[1].ID)
	}

	m.SetFilter(model.FilterAll)
	all := m.Visible()
	items := m.Items()
	if len(all) != len(items) {
		t.Fatalf("expected full list, got %d of %d", len(all), len(items))
	}
	for i := range all {
		if all[i].ID != items[i].ID {
			t.Errorf("position %d: expected %s, got %s", i, items[i].ID, all[i].ID)
		}
	}
}

func TestManager_Stats(t *testing.T) {
	store := newFakeStore(
		model.Todo{ID: "1", Title: "a", IsDone: true, Kategori: model.CategoryBiasa, UserID: "user-1"},
		model.Todo{ID: "2", Title: "b", Kategori: model.CategoryBiasa, UserID: "user-1"},
		model.Todo{ID: "3", Title: "c", Kategori: model.CategoryBiasa, UserID: "user-1"},
	)
	m := loadedManager(t, store)

	done, pending := m.Stats()
	if done != 1 || pending != 2 {
		t.Errorf("expected 1 done / 2 pending, got %d / %d", done, pending)
	}
}

func TestManager_ToggleVanishedRowReportsAndDrops(t *testing.T) {
	store := newFakeStore(
		model.Todo{ID: "1", Title: "a", Kategori: model.CategoryBiasa, UserID: "user-1"},
		model.Todo{ID: "2", Title: "b", Kategori: model.CategoryBiasa, UserID: "user-1"},
	)
	m := loadedManager(t, store)
	store.rows = store.rows[1:] // deleted elsewhere

	_, err := m.Toggle(context.Background(), testSession, "1")
	if !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound, got %v", err)
	}
	if _, ok := m.Get("1"); ok {
		t.Error("expected vanished todo dropped from the list")
	}
	if len(m.Items()) != 1 {
		t.Errorf("expected the other todo kept, got %v", m.Items())
	}
}

func TestManager_EditVanishedRowReportsAndCloses(t *testing.T) {
	store := newFakeStore(model.Todo{ID: "1", Title: "old", Kategori: model.CategoryBiasa, UserID: "user-1"})
	m := loadedManager(t, store)
	if err := m.BeginEdit("1"); err != nil {
		t.Fatalf("begin edit: %v", err)
	}
	m.SetDraft("new")
	store.rows = nil

	if err := m.CommitEdit(context.Background(), testSession); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound, got %v", err)
	}
	if _, ok := m.PendingEdit(); ok {
		t.Error("expected edit of a vanished todo to close")
	}
	if len(m.Items()) != 0 {
		t.Errorf("expected vanished todo dropped, got %v", m.Items())
	}
}
