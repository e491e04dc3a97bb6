package model

import (
	"strings"
	"time"
)

// Todo is the domain model for a todo entry.
// JSON names are the column names of the remote `todos` table.
type Todo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	IsDone    bool      `json:"is_done"`
	Kategori  Category  `json:"kategori"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewTodo is the insert payload for a todo; the store assigns id and created_at.
type NewTodo struct {
	Title    string   `json:"title"`
	IsDone   bool     `json:"is_done"`
	Kategori Category `json:"kategori"`
	UserID   string   `json:"user_id"`
}

// Category is the priority label of a todo. The set is closed.
type Category string

const (
	CategoryBiasa         Category = "Biasa aja"
	CategoryPenting       Category = "Penting"
	CategoryPentingBanget Category = "Penting banget"

	// DefaultCategory is preselected for new todos.
	DefaultCategory = CategoryBiasa
)

// Categories returns the categories in display order.
func Categories() []Category {
	return []Category{CategoryBiasa, CategoryPenting, CategoryPentingBanget}
}

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Next cycles through the categories in display order.
func (c Category) Next() Category {
	all := Categories()
	for i, known := range all {
		if c == known {
			return all[(i+1)%len(all)]
		}
	}
	return DefaultCategory
}

// ParseCategory matches s against the known categories, ignoring case and
// surrounding whitespace.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, known := range Categories() {
		if strings.EqualFold(s, string(known)) {
			return known, true
		}
	}
	return "", false
}

// Filter selects which todos are visible: a category, or FilterAll.
type Filter string

// FilterAll shows every todo.
const FilterAll Filter = "all"

// FilterLabelAll is how the all-filter is labelled on screen.
const FilterLabelAll = "Semua"

// Filters returns FilterAll followed by one filter per category.
func Filters() []Filter {
	out := []Filter{FilterAll}
	for _, c := range Categories() {
		out = append(out, Filter(c))
	}
	return out
}

// ParseFilter accepts "all", "Semua" or a category name.
func ParseFilter(s string) (Filter, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(FilterAll)) || strings.EqualFold(s, FilterLabelAll) {
		return FilterAll, true
	}
	if c, ok := ParseCategory(s); ok {
		return Filter(c), true
	}
	return "", false
}

// Matches reports whether t is visible under f.
func (f Filter) Matches(t Todo) bool {
	return f == FilterAll || f == "" || Category(f) == t.Kategori
}

// Next cycles FilterAll -> categories -> FilterAll.
func (f Filter) Next() Filter {
	all := Filters()
	for i, known := range all {
		if f == known {
			return all[(i+1)%len(all)]
		}
	}
	return FilterAll
}

// Label is the on-screen name of the filter.
func (f Filter) Label() string {
	if f == FilterAll || f == "" {
		return FilterLabelAll
	}
	return string(f)
}
