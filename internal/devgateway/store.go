package devgateway

import (
	"context"
	"errors"
	"time"

	"github.com/Makepad-fr/todoku/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate key")
)

// Account is an identity with its password hash.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProfileFilter narrows profile rows. Empty fields do not constrain.
type ProfileFilter struct {
	ID string
}

// TodoFilter narrows todo rows. Empty fields do not constrain.
type TodoFilter struct {
	ID       string
	UserID   string
	Kategori string
	Done     *bool
	// Ascending orders by created_at oldest first; the default is newest
	// first.
	Ascending bool
}

// Matches reports whether t passes the filter.
func (f TodoFilter) Matches(t model.Todo) bool {
	if f.ID != "" && t.ID != f.ID {
		return false
	}
	if f.UserID != "" && t.UserID != f.UserID {
		return false
	}
	if f.Kategori != "" && string(t.Kategori) != f.Kategori {
		return false
	}
	if f.Done != nil && t.IsDone != *f.Done {
		return false
	}
	return true
}

// TodoPatch lists the columns an update sets. Nil fields are left alone.
type TodoPatch struct {
	Title    *string
	IsDone   *bool
	Kategori *model.Category
}

// Apply writes the patch onto t.
func (p TodoPatch) Apply(t *model.Todo) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.IsDone != nil {
		t.IsDone = *p.IsDone
	}
	if p.Kategori != nil {
		t.Kategori = *p.Kategori
	}
}

// Store persists accounts, profiles and todos for the stand-in gateway.
type Store interface {
	CreateAccount(ctx context.Context, a Account) error
	AccountByEmail(ctx context.Context, email string) (Account, error)
	AccountByID(ctx context.Context, id string) (Account, error)
	// DeleteAccount removes the account and every row that belongs to it.
	DeleteAccount(ctx context.Context, id string) error

	ListProfiles(ctx context.Context, f ProfileFilter) ([]model.Profile, error)
	InsertProfile(ctx context.Context, p model.Profile) error
	UpdateProfiles(ctx context.Context, f ProfileFilter, name string) ([]model.Profile, error)
	DeleteProfiles(ctx context.Context, f ProfileFilter) error

	ListTodos(ctx context.Context, f TodoFilter) ([]model.Todo, error)
	InsertTodo(ctx context.Context, t model.Todo) error
	UpdateTodos(ctx context.Context, f TodoFilter, p TodoPatch) ([]model.Todo, error)
	DeleteTodos(ctx context.Context, f TodoFilter) error

	Close() error
}
