package devgateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/Makepad-fr/todoku/internal/model"
)

const (
	tableTodos    = "todos"
	tableProfiles = "profiles"
)

var tableColumns = map[string][]string{
	tableTodos:    {"id", "title", "is_done", "kategori", "user_id", "created_at"},
	tableProfiles: {"id", "name"},
}

// restError is a row API failure with a PostgREST-style code.
type restError struct {
	status  int
	code    string
	message string
}

func (e *restError) Error() string { return e.message }

func badRequest(code, format string, args ...any) *restError {
	return &restError{status: http.StatusBadRequest, code: code, message: fmt.Sprintf(format, args...)}
}

func rlsViolation(table string) *restError {
	return &restError{
		status:  http.StatusForbidden,
		code:    "42501",
		message: fmt.Sprintf("new row violates row-level security policy for table %q", table),
	}
}

func (s *Server) writeRestError(w http.ResponseWriter, err error) {
	var re *restError
	if errors.As(err, &re) {
		writeJSON(w, re.status, apiError{Message: re.message, Code: re.code})
		return
	}
	s.logger.Printf("row api: %v", err)
	writeJSON(w, http.StatusInternalServerError, apiError{Message: "internal error", Code: "XX000"})
}

// rowQuery is the parsed query string of a row request.
type rowQuery struct {
	table     string
	eq        map[string]string
	columns   []string
	ascending bool
}

func parseRowQuery(table string, values url.Values) (rowQuery, error) {
	cols, ok := tableColumns[table]
	if !ok {
		return rowQuery{}, &restError{
			status:  http.StatusNotFound,
			code:    "42P01",
			message: fmt.Sprintf("relation \"public.%s\" does not exist", table),
		}
	}
	q := rowQuery{table: table, eq: map[string]string{}}
	for key, vs := range values {
		v := vs[len(vs)-1]
		switch key {
		case "select":
			if v == "" || v == "*" {
				continue
			}
			for _, c := range strings.Split(v, ",") {
				c = strings.TrimSpace(c)
				if !hasColumn(cols, c) {
					return q, badRequest("42703", "column %s.%s does not exist", table, c)
				}
				q.columns = append(q.columns, c)
			}
		case "order":
			col, dir, _ := strings.Cut(v, ".")
			if !hasColumn(cols, col) {
				return q, badRequest("42703", "column %s.%s does not exist", table, col)
			}
			switch dir {
			case "", "asc":
				q.ascending = true
			case "desc":
			default:
				return q, badRequest("PGRST100", "unexpected order direction %q", dir)
			}
		default:
			if !hasColumn(cols, key) {
				return q, badRequest("42703", "column %s.%s does not exist", table, key)
			}
			op, operand, found := strings.Cut(v, ".")
			if !found || op != "eq" {
				return q, badRequest("PGRST100", "unsupported filter %q on %s", v, key)
			}
			q.eq[key] = operand
		}
	}
	return q, nil
}

func hasColumn(cols []string, c string) bool {
	for _, col := range cols {
		if col == c {
			return true
		}
	}
	return false
}

// todoFilter turns the query into a store filter scoped to the caller.
// ok is false when the query can match nothing for this caller.
func (q rowQuery) todoFilter(c caller) (f TodoFilter, ok bool, err error) {
	f = TodoFilter{ID: q.eq["id"], UserID: c.ID, Kategori: q.eq["kategori"], Ascending: q.ascending}
	if uid, set := q.eq["user_id"]; set && uid != c.ID {
		return f, false, nil
	}
	if v, set := q.eq["is_done"]; set {
		done, perr := strconv.ParseBool(v)
		if perr != nil {
			return f, false, badRequest("22P02", "invalid input syntax for type boolean: %q", v)
		}
		f.Done = &done
	}
	if _, set := q.eq["created_at"]; set {
		return f, false, badRequest("PGRST100", "filtering on created_at is not supported")
	}
	return f, true, nil
}

func (q rowQuery) matchesTitle(t model.Todo) bool {
	v, set := q.eq["title"]
	return !set || t.Title == v
}

func (q rowQuery) profileFilter(c caller) (ProfileFilter, bool) {
	if id, set := q.eq["id"]; set && id != c.ID {
		return ProfileFilter{}, false
	}
	return ProfileFilter{ID: c.ID}, true
}

func (q rowQuery) matchesName(p model.Profile) bool {
	v, set := q.eq["name"]
	return !set || p.Name == v
}

// project keeps only the selected columns of each row.
func project(rows any, columns []string) (any, error) {
	if len(columns) == 0 {
		return rows, nil
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	var full []map[string]json.RawMessage
	if err := json.Unmarshal(b, &full); err != nil {
		return nil, err
	}
	out := make([]map[string]json.RawMessage, len(full))
	for i, row := range full {
		out[i] = make(map[string]json.RawMessage, len(columns))
		for _, c := range columns {
			out[i][c] = row[c]
		}
	}
	return out, nil
}

func wantsRepresentation(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Prefer"), "return=representation")
}

func (s *Server) query(r *http.Request) (rowQuery, error) {
	return parseRowQuery(mux.Vars(r)["table"], r.URL.Query())
}

func (s *Server) selectRows(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r)
	if err != nil {
		s.writeRestError(w, err)
		return
	}
	rows, err := s.list(r, q)
	if err != nil {
		s.writeRestError(w, err)
		return
	}
	s.writeRows(w, http.StatusOK, rows, q.columns)
}

func (s *Server) list(r *http.Request, q rowQuery) (any, error) {
	c := callerFrom(r.Context())
	switch q.table {
	case tableTodos:
		f, ok, err := q.todoFilter(c)
		if err != nil || !ok {
			return []model.Todo{}, err
		}
		all, err := s.store.ListTodos(r.Context(), f)
		if err != nil {
			return nil, err
		}
		out := []model.Todo{}
		for _, t := range all {
			if q.matchesTitle(t) {
				out = append(out, t)
			}
		}
		return out, nil
	default:
		f, ok := q.profileFilter(c)
		if !ok {
			return []model.Profile{}, nil
		}
		all, err := s.store.ListProfiles(r.Context(), f)
		if err != nil {
			return nil, err
		}
		out := []model.Profile{}
		for _, p := range all {
			if q.matchesName(p) {
				out = append(out, p)
			}
		}
		return out, nil
	}
}

func (s *Server) writeRows(w http.ResponseWriter, status int, rows any, columns []string) {
	body, err := project(rows, columns)
	if err != nil {
		s.writeRestError(w, err)
		return
	}
	writeJSON(w, status, body)
}

// decodeRows accepts a JSON array of objects or a single object.
func decodeRows(r *http.Request) ([]map[string]json.RawMessage, error) {
	defer r.Body.Close()
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return nil, badRequest("PGRST102", "invalid JSON body: %v", err)
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		raw = json.RawMessage("[" + trimmed + "]")
	}
	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, badRequest("PGRST102", "body must be an object or an array of objects")
	}
	return rows, nil
}

func checkColumns(table string, row map[string]json.RawMessage, allowed ...string) error {
	for k := range row {
		if !hasColumn(allowed, k) {
			if hasColumn(tableColumns[table], k) {
				return badRequest("428C9", "column %q of %s can not be written", k, table)
			}
			return badRequest("PGRST204", "Could not find the '%s' column of '%s' in the schema cache", k, table)
		}
	}
	return nil
}

func field[T any](row map[string]json.RawMessage, key string, dst *T) error {
	v, ok := row[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(v, dst); err != nil {
		return badRequest("22P02", "invalid value for %s: %s", key, string(v))
	}
	return nil
}

func checkTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return badRequest("23514", "new row for relation \"todos\" violates check constraint \"todos_title_check\"")
	}
	return nil
}

func checkCategory(c model.Category) error {
	if !c.IsValid() {
		return badRequest("23514", "new row for relation \"todos\" violates check constraint \"todos_kategori_check\"")
	}
	return nil
}

func (s *Server) insertRows(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r)
	if err != nil {
		s.writeRestError(w, err)
		return
	}
	rows, err := decodeRows(r)
	if err != nil {
		s.writeRestError(w, err)
		return
	}
	c := callerFrom(r.Context())

	var created any
	switch q.table {
	case tableTodos:
		created, err = s.insertTodos(r, c, rows)
	default:
		created, err = s.insertProfiles(r, c, rows)
	}
	if err != nil {
		s.writeRestError(w, err)
		return
	}
	if !wantsRepresentation(r) {
		w.WriteHeader(http.StatusCreated)
		return
	}
	s.writeRows(w, http.StatusCreated, created, q.columns)
}

func (s *Server) insertTodos(r *http.Request, c caller, rows []map[string]json.RawMessage) ([]model.Todo, error) {
	todos := make([]model.Todo, 0, len(rows))
	for _, row := range rows {
		if err := checkColumns(tableTodos, row, "title", "is_done", "kategori", "user_id"); err != nil {
			return nil, err
		}
		t := model.Todo{UserID: c.ID, Kategori: model.DefaultCategory}
		if err := errors.Join(
			field(row, "title", &t.Title),
			field(row, "is_done", &t.IsDone),
			field(row, "kategori", &t.Kategori),
			field(row, "user_id", &t.UserID),
		); err != nil {
			return nil, err
		}
		if t.UserID != c.ID {
			return nil, rlsViolation(tableTodos)
		}
		if err := checkTitle(t.Title); err != nil {
			return nil, err
		}
		if err := checkCategory(t.Kategori); err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}

	for i := range todos {
		todos[i].ID = uuid.NewString()
		todos[i].CreatedAt = s.stamp()
		if err := s.store.InsertTodo(r.Context(), todos[i]); err != nil {
			return nil, err
		}
	}
	return todos, nil
}

func (s *Server) insertProfiles(r *http.Request, c caller, rows []map[string]json.RawMessage) ([]model.Profile, error) {
	profiles := make([]model.Profile, 0, len(rows))
	for _, row := range rows {
		if err := checkColumns(tableProfiles, row, "id", "name"); err != nil {
			return nil, err
		}
		p := model.Profile{ID: c.ID}
		if err := field(row, "id", &p.ID); err != nil {
			return nil, err
		}
		if err := field(row, "name", &p.Name); err != nil {
			return nil, err
		}
		if p.ID != c.ID {
			return nil, rlsViolation(tableProfiles)
		}
		profiles = append(profiles, p)
	}
	for _, p := range profiles {
		if err := s.store.InsertProfile(r.Context(), p); err != nil {
			if errors.Is(err, ErrDuplicate) {
				return nil, &restError{
					status:  http.StatusConflict,
					code:    "23505",
					message: "duplicate key value violates unique constraint \"profiles_pkey\"",
				}
			}
			if errors.Is(err, ErrNotFound) {
				return nil, &restError{
					status:  http.StatusConflict,
					code:    "23503",
					message: "insert or update on table \"profiles\" violates foreign key constraint \"profiles_id_fkey\"",
				}
			}
			return nil, err
		}
	}
	return profiles, nil
}

func (s *Server) updateRows(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r)
	if err != nil {
		s.writeRestError(w, err)
		return
	}
	rows, err := decodeRows(r)
	if err != nil {
		s.writeRestError(w, err)
		return
	}
	if len(rows) != 1 {
		s.writeRestError(w, badRequest("PGRST102", "PATCH takes a single object"))
		return
	}
	patch := rows[0]
	c := callerFrom(r.Context())

	var updated any
	switch q.table {
	case tableTodos:
		updated, err = s.updateTodos(r, c, q, patch)
	default:
		updated, err = s.updateProfiles(r, c, q, patch)
	}
	if err != nil {
		s.writeRestError(w, err)
		return
	}
	if !wantsRepresentation(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeRows(w, http.StatusOK, updated, q.columns)
}

var errEmptyPatch = badRequest("PGRST102", "PATCH body sets no column")

func (s *Server) updateTodos(r *http.Request, c caller, q rowQuery, row map[string]json.RawMessage) ([]model.Todo, error) {
	if err := checkColumns(tableTodos, row, "title", "is_done", "kategori"); err != nil {
		return nil, err
	}
	var p TodoPatch
	if _, ok := row["title"]; ok {
		var title string
		if err := field(row, "title", &title); err != nil {
			return nil, err
		}
		if err := checkTitle(title); err != nil {
			return nil, err
		}
		p.Title = &title
	}
	if _, ok := row["is_done"]; ok {
		var done bool
		if err := field(row, "is_done", &done); err != nil {
			return nil, err
		}
		p.IsDone = &done
	}
	if _, ok := row["kategori"]; ok {
		var cat model.Category
		if err := field(row, "kategori", &cat); err != nil {
			return nil, err
		}
		if err := checkCategory(cat); err != nil {
			return nil, err
		}
		p.Kategori = &cat
	}

	if p.Title == nil && p.IsDone == nil && p.Kategori == nil {
		return nil, errEmptyPatch
	}

	f, ok, err := q.todoFilter(c)
	if err != nil || !ok {
		return []model.Todo{}, err
	}
	if _, set := q.eq["title"]; set {
		return nil, badRequest("PGRST100", "updates cannot filter on title")
	}
	return s.store.UpdateTodos(r.Context(), f, p)
}

func (s *Server) updateProfiles(r *http.Request, c caller, q rowQuery, row map[string]json.RawMessage) ([]model.Profile, error) {
	if err := checkColumns(tableProfiles, row, "name"); err != nil {
		return nil, err
	}
	if _, set := row["name"]; !set {
		return nil, errEmptyPatch
	}
	var name string
	if err := field(row, "name", &name); err != nil {
		return nil, err
	}
	f, ok := q.profileFilter(c)
	if !ok {
		return []model.Profile{}, nil
	}
	if _, set := q.eq["name"]; set {
		return nil, badRequest("PGRST100", "updates cannot filter on name")
	}
	return s.store.UpdateProfiles(r.Context(), f, name)
}

func (s *Server) deleteRows(w http.ResponseWriter, r *http.Request) {
	q, err := s.query(r)
	if err != nil {
		s.writeRestError(w, err)
		return
	}
	c := callerFrom(r.Context())
	switch q.table {
	case tableTodos:
		f, ok, ferr := q.todoFilter(c)
		if ferr != nil {
			s.writeRestError(w, ferr)
			return
		}
		if _, set := q.eq["title"]; set {
			s.writeRestError(w, badRequest("PGRST100", "deletes cannot filter on title"))
			return
		}
		if ok {
			err = s.store.DeleteTodos(r.Context(), f)
		}
	default:
		if _, set := q.eq["name"]; set {
			s.writeRestError(w, badRequest("PGRST100", "deletes cannot filter on name"))
			return
		}
		if f, ok := q.profileFilter(c); ok {
			err = s.store.DeleteProfiles(r.Context(), f)
		}
	}
	if err != nil {
		s.writeRestError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
