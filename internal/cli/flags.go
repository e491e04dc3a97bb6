package cli

import (
	"fmt"
	"strings"

	"github.com/Makepad-fr/todoku/internal/model"
)

// categoryValue is a pflag.Value accepting one of the known categories.
type categoryValue struct {
	c *model.Category
}

func newCategoryValue(c *model.Category) *categoryValue {
	*c = model.DefaultCategory
	return &categoryValue{c: c}
}

func (v *categoryValue) String() string { return string(*v.c) }

func (v *categoryValue) Set(s string) error {
	c, ok := model.ParseCategory(s)
	if !ok {
		return fmt.Errorf("must be one of %s", categoryNames())
	}
	*v.c = c
	return nil
}

func (v *categoryValue) Type() string { return "kategori" }

// filterValue is a pflag.Value accepting "all" or a category.
type filterValue struct {
	f *model.Filter
}

func newFilterValue(f *model.Filter) *filterValue {
	*f = model.FilterAll
	return &filterValue{f: f}
}

func (v *filterValue) String() string { return string(*v.f) }

func (v *filterValue) Set(s string) error {
	f, ok := model.ParseFilter(s)
	if !ok {
		return fmt.Errorf("must be all or one of %s", categoryNames())
	}
	*v.f = f
	return nil
}

func (v *filterValue) Type() string { return "kategori" }

func categoryNames() string {
	names := make([]string, 0, len(model.Categories()))
	for _, c := range model.Categories() {
		names = append(names, fmt.Sprintf("%q", string(c)))
	}
	return strings.Join(names, ", ")
}
