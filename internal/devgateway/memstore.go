package devgateway

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Makepad-fr/todoku/internal/model"
)

// MemoryStore keeps everything in maps. It is the default driver.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]Account
	byEmail  map[string]string
	profiles map[string]model.Profile
	todos    []model.Todo
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: map[string]Account{},
		byEmail:  map[string]string{},
		profiles: map[string]model.Profile{},
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *MemoryStore) CreateAccount(_ context.Context, a Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[a.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := s.byEmail[emailKey(a.Email)]; ok {
		return ErrDuplicate
	}
	s.accounts[a.ID] = a
	s.byEmail[emailKey(a.Email)] = a.ID
	return nil
}

func (s *MemoryStore) AccountByEmail(_ context.Context, email string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[emailKey(email)]
	if !ok {
		return Account{}, ErrNotFound
	}
	return s.accounts[id], nil
}

func (s *MemoryStore) AccountByID(_ context.Context, id string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.accounts, id)
	delete(s.byEmail, emailKey(a.Email))
	delete(s.profiles, id)
	kept := s.todos[:0]
	for _, t := range s.todos {
		if t.UserID != id {
			kept = append(kept, t)
		}
	}
	s.todos = kept
	return nil
}

func (s *MemoryStore) ListProfiles(_ context.Context, f ProfileFilter) ([]model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Profile{}
	for _, p := range s.profiles {
		if f.ID == "" || p.ID == f.ID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) InsertProfile(_ context.Context, p model.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := s.accounts[p.ID]; !ok {
		return ErrNotFound
	}
	s.profiles[p.ID] = p
	return nil
}

func (s *MemoryStore) UpdateProfiles(_ context.Context, f ProfileFilter, name string) ([]model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Profile{}
	for id, p := range s.profiles {
		if f.ID == "" || id == f.ID {
			p.Name = name
			s.profiles[id] = p
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteProfiles(_ context.Context, f ProfileFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.profiles {
		if f.ID == "" || id == f.ID {
			delete(s.profiles, id)
		}
	}
	return nil
}

func (s *MemoryStore) ListTodos(_ context.Context, f TodoFilter) ([]model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Todo{}
	for _, t := range s.todos {
		if f.Matches(t) {
			out = append(out, t)
		}
	}
	// s.todos is in insertion order, which is created_at order.
	sort.SliceStable(out, func(i, j int) bool {
		if f.Ascending {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) InsertTodo(_ context.Context, t model.Todo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.todos {
		if existing.ID == t.ID {
			return ErrDuplicate
		}
	}
	if _, ok := s.accounts[t.UserID]; !ok {
		return ErrNotFound
	}
	s.todos = append(s.todos, t)
	return nil
}

func (s *MemoryStore) UpdateTodos(_ context.Context, f TodoFilter, p TodoPatch) ([]model.Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Todo{}
	for i := range s.todos {
		if f.Matches(s.todos[i]) {
			p.Apply(&s.todos[i])
			out = append(out, s.todos[i])
		}
	}
	return out, nil
}

func (s *MemoryStore) DeleteTodos(_ context.Context, f TodoFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.todos[:0]
	for _, t := range s.todos {
		if !f.Matches(t) {
			kept = append(kept, t)
		}
	}
	s.todos = kept
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// snapshot is the serializable content of a MemoryStore.
type snapshot struct {
	Accounts []Account      `json:"accounts"`
	Profiles []model.Profile `json:"profiles"`
	Todos    []model.Todo    `json:"todos"`
}

func (s *MemoryStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		Accounts: make([]Account, 0, len(s.accounts)),
		Profiles: make([]model.Profile, 0, len(s.profiles)),
		Todos:    append([]model.Todo{}, s.todos...),
	}
	for _, a := range s.accounts {
		snap.Accounts = append(snap.Accounts, a)
	}
	for _, p := range s.profiles {
		snap.Profiles = append(snap.Profiles, p)
	}
	sort.Slice(snap.Accounts, func(i, j int) bool { return snap.Accounts[i].ID < snap.Accounts[j].ID })
	sort.Slice(snap.Profiles, func(i, j int) bool { return snap.Profiles[i].ID < snap.Profiles[j].ID })
	return snap
}

func (s *MemoryStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = map[string]Account{}
	s.byEmail = map[string]string{}
	s.profiles = map[string]model.Profile{}
	for _, a := range snap.Accounts {
		s.accounts[a.ID] = a
		s.byEmail[emailKey(a.Email)] = a.ID
	}
	for _, p := range snap.Profiles {
		s.profiles[p.ID] = p
	}
	s.todos = append([]model.Todo{}, snap.Todos...)
}
