// Package profile loads and renames the signed-in user's profile.
package profile

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

var (
	// ErrAmbiguousProfile is returned when more than one row matches.
	ErrAmbiguousProfile = errors.New("more than one profile for user")

	// ErrNoSession is returned when the editor is used signed out.
	ErrNoSession = errors.New("not signed in")

	// ErrEmptyName is returned by Save when the name is empty after trimming.
	ErrEmptyName = errors.New("name cannot be empty")
)

// SavedMessage is the notice shown after a successful rename.
const SavedMessage = "Nama berhasil diubah"

// Editor holds the displayed profile and the edit-mode flag.
type Editor struct {
	store  Store
	logger *log.Logger

	mu      sync.Mutex
	name    string
	email   string
	editing bool
	loaded  bool
}

// NewEditor creates an editor. A nil logger discards.
func NewEditor(store Store, logger *log.Logger) *Editor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Editor{store: store, logger: logger}
}

// Load fetches the profile of the session's user. A missing row is not an
// error: the name is simply not set yet.
func (e *Editor) Load(ctx context.Context, sess model.Session) error {
	if !sess.Valid() {
		return ErrNoSession
	}
	e.mu.Lock()
	e.email = sess.Email
	e.mu.Unlock()

	rows, err := e.store.Find(ctx, sess)
	if err != nil {
		e.logger.Printf("load profile %s: %v", sess.UserID, err)
		return fmt.Errorf("load profile: %w", err)
	}
	if len(rows) > 1 {
		return fmt.Errorf("%w: %d rows", ErrAmbiguousProfile, len(rows))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.name = ""
	if len(rows) == 1 {
		e.name = rows[0].Name
	}
	e.loaded = true
	return nil
}

// Save renames the profile to the trimmed name. On success edit mode ends;
// on failure it stays on. A missing row is created.
func (e *Editor) Save(ctx context.Context, sess model.Session, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if !sess.Valid() {
		return ErrNoSession
	}
	n, err := e.store.Rename(ctx, sess, name)
	if err == nil && n == 0 {
		_, err = e.store.Create(ctx, sess, name)
	}
	if err != nil {
		e.logger.Printf("save profile %s: %v", sess.UserID, err)
		return fmt.Errorf("save profile: %w", err)
	}

	e.mu.Lock()
	e.name = name
	e.editing = false
	e.mu.Unlock()
	return nil
}

// BeginEdit enters edit mode.
func (e *Editor) BeginEdit() {
	e.mu.Lock()
	e.editing = true
	e.mu.Unlock()
}

// CancelEdit leaves edit mode without saving.
func (e *Editor) CancelEdit() {
	e.mu.Lock()
	e.editing = false
	e.mu.Unlock()
}

// Editing reports whether edit mode is on.
func (e *Editor) Editing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.editing
}

// Name is the loaded or last saved display name.
func (e *Editor) Name() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.name
}

// Email is the session's e-mail, shown read only.
func (e *Editor) Email() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.email
}

// Loaded reports whether Load has succeeded at least once.
func (e *Editor) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Reset forgets the loaded profile, e.g. after sign-out.
func (e *Editor) Reset() {
	e.mu.Lock()
	e.name, e.email = "", ""
	e.editing, e.loaded = false, false
	e.mu.Unlock()
}
