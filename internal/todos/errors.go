package todos

import "errors"

var (
	// ErrEmptyTitle is returned when a title is empty after trimming.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrInvalidCategory is returned for a category outside the known set.
	ErrInvalidCategory = errors.New("invalid kategori")

	// ErrTodoNotFound is returned when an id is not in the loaded list.
	ErrTodoNotFound = errors.New("todo not found")

	// ErrNoSession is returned when an operation needs a signed-in user.
	ErrNoSession = errors.New("not signed in")
)
