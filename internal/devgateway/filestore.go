package devgateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Makepad-fr/todoku/internal/model"
)

// FileStore is a MemoryStore that rewrites a JSON file after every change.
// Single file, human-readable, fine for one local dev server.
type FileStore struct {
	*MemoryStore
	path string
	wmu  sync.Mutex
}

// DefaultDataFile is used when the file driver gets no path.
const DefaultDataFile = "todoku-dev.json"

// OpenFileStore loads path if it exists.
func OpenFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultDataFile
	}
	fs := &FileStore{MemoryStore: NewMemoryStore(), path: path}
	if err := fs.load(); err != nil {
		return nil, err
	}
	return fs, nil
}

func (f *FileStore) load() error {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read file: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	f.restore(snap)
	return nil
}

func (f *FileStore) save() error {
	f.wmu.Lock()
	defer f.wmu.Unlock()

	b, err := json.MarshalIndent(f.snapshot(), "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

func (f *FileStore) then(err error) error {
	if err != nil {
		return err
	}
	return f.save()
}

func (f *FileStore) CreateAccount(ctx context.Context, a Account) error {
	return f.then(f.MemoryStore.CreateAccount(ctx, a))
}

func (f *FileStore) DeleteAccount(ctx context.Context, id string) error {
	return f.then(f.MemoryStore.DeleteAccount(ctx, id))
}

func (f *FileStore) InsertProfile(ctx context.Context, p model.Profile) error {
	return f.then(f.MemoryStore.InsertProfile(ctx, p))
}

func (f *FileStore) UpdateProfiles(ctx context.Context, pf ProfileFilter, name string) ([]model.Profile, error) {
	rows, err := f.MemoryStore.UpdateProfiles(ctx, pf, name)
	if err := f.then(err); err != nil {
		return nil, err
	}
	return rows, nil
}

func (f *FileStore) DeleteProfiles(ctx context.Context, pf ProfileFilter) error {
	return f.then(f.MemoryStore.DeleteProfiles(ctx, pf))
}

func (f *FileStore) InsertTodo(ctx context.Context, t model.Todo) error {
	return f.then(f.MemoryStore.InsertTodo(ctx, t))
}

func (f *FileStore) UpdateTodos(ctx context.Context, tf TodoFilter, p TodoPatch) ([]model.Todo, error) {
	rows, err := f.MemoryStore.UpdateTodos(ctx, tf, p)
	if err := f.then(err); err != nil {
		return nil, err
	}
	return rows, nil
}

func (f *FileStore) DeleteTodos(ctx context.Context, tf TodoFilter) error {
	return f.then(f.MemoryStore.DeleteTodos(ctx, tf))
}
