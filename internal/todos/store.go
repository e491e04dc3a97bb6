package todos

import (
	"context"
	"fmt"

	"github.com/Makepad-fr/todoku/internal/gateway"
	"github.com/Makepad-fr/todoku/internal/model"
)

// Table is the remote table holding todos.
const Table = "todos"

// Store is the remote side of the collection. Update methods return the row
// as the server holds it after the write, or nil when the server did not
// echo one. An update that matched no row returns ErrTodoNotFound.
type Store interface {
	List(ctx context.Context, sess model.Session) ([]model.Todo, error)
	Create(ctx context.Context, sess model.Session, t model.NewTodo) (model.Todo, error)
	SetDone(ctx context.Context, sess model.Session, id string, done bool) (*model.Todo, error)
	SetTitle(ctx context.Context, sess model.Session, id, title string) (*model.Todo, error)
	Delete(ctx context.Context, sess model.Session, id string) error
}

// RemoteStore implements Store over the gateway row API.
type RemoteStore struct {
	client *gateway.Client
}

// NewRemoteStore returns a Store backed by client.
func NewRemoteStore(client *gateway.Client) *RemoteStore {
	return &RemoteStore{client: client}
}

func (s *RemoteStore) List(ctx context.Context, sess model.Session) ([]model.Todo, error) {
	var rows []model.Todo
	err := s.client.From(Table, sess.AccessToken).
		Eq("user_id", sess.UserID).
		Order("created_at", false).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []model.Todo{}
	}
	return rows, nil
}

func (s *RemoteStore) Create(ctx context.Context, sess model.Session, t model.NewTodo) (model.Todo, error) {
	var rows []model.Todo
	if err := s.client.From(Table, sess.AccessToken).Insert(ctx, []model.NewTodo{t}, &rows); err != nil {
		return model.Todo{}, err
	}
	if len(rows) == 0 {
		return model.Todo{}, fmt.Errorf("insert returned no row")
	}
	return rows[0], nil
}

func (s *RemoteStore) SetDone(ctx context.Context, sess model.Session, id string, done bool) (*model.Todo, error) {
	return s.update(ctx, sess, id, map[string]any{"is_done": done})
}

func (s *RemoteStore) SetTitle(ctx context.Context, sess model.Session, id, title string) (*model.Todo, error) {
	return s.update(ctx, sess, id, map[string]any{"title": title})
}

func (s *RemoteStore) update(ctx context.Context, sess model.Session, id string, patch map[string]any) (*model.Todo, error) {
	var rows []model.Todo
	if err := s.client.From(Table, sess.AccessToken).Eq("id", id).Update(ctx, patch, &rows); err != nil {
		return nil, err
	}
	// return=representation answers an unmatched filter with [].
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTodoNotFound, id)
	}
	return &rows[0], nil
}

func (s *RemoteStore) Delete(ctx context.Context, sess model.Session, id string) error {
	return s.client.From(Table, sess.AccessToken).Eq("id", id).Delete(ctx)
}
