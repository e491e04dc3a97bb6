package profile

import (
	"context"

	"github.com/Makepad-fr/todoku/internal/gateway"
	"github.com/Makepad-fr/todoku/internal/model"
)

// Table is the remote table holding profiles.
const Table = "profiles"

// Store is the remote side of the editor.
type Store interface {
	// Find returns every profile row with the session's id; zero or one is
	// expected.
	Find(ctx context.Context, sess model.Session) ([]model.Profile, error)
	// Create inserts the session's profile row.
	Create(ctx context.Context, sess model.Session, name string) (model.Profile, error)
	// Rename updates the name and reports how many rows changed.
	Rename(ctx context.Context, sess model.Session, name string) (int, error)
}

// RemoteStore implements Store over the gateway row API.
type RemoteStore struct {
	client *gateway.Client
}

// NewRemoteStore returns a Store backed by client.
func NewRemoteStore(client *gateway.Client) *RemoteStore {
	return &RemoteStore{client: client}
}

func (s *RemoteStore) Find(ctx context.Context, sess model.Session) ([]model.Profile, error) {
	var rows []model.Profile
	err := s.client.From(Table, sess.AccessToken).
		Select("id,name").
		Eq("id", sess.UserID).
		Get(ctx, &rows)
	return rows, err
}

func (s *RemoteStore) Create(ctx context.Context, sess model.Session, name string) (model.Profile, error) {
	var rows []model.Profile
	row := model.Profile{ID: sess.UserID, Name: name}
	if err := s.client.From(Table, sess.AccessToken).Insert(ctx, []model.Profile{row}, &rows); err != nil {
		return model.Profile{}, err
	}
	if len(rows) > 0 {
		return rows[0], nil
	}
	return row, nil
}

func (s *RemoteStore) Rename(ctx context.Context, sess model.Session, name string) (int, error) {
	var rows []model.Profile
	err := s.client.From(Table, sess.AccessToken).
		Eq("id", sess.UserID).
		Update(ctx, map[string]string{"name": name}, &rows)
	return len(rows), err
}
