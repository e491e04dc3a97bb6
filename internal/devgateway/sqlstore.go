package devgateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Makepad-fr/todoku/internal/model"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// dialect covers what differs between the SQL drivers.
type dialect struct {
	name        string
	schema      []string
	placeholder func(n int) string
	isDuplicate func(err error) bool
}

var postgresDialect = dialect{
	name: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
			name TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS todos (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			is_done BOOLEAN NOT NULL DEFAULT FALSE,
			kategori TEXT NOT NULL,
			user_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS todos_user_created ON todos (user_id, created_at)`,
	},
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	isDuplicate: func(err error) bool {
		var pqErr *pq.Error
		return errors.As(err, &pqErr) && pqErr.Code == "23505"
	},
}

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			created_at DATETIME(6) NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			FOREIGN KEY (id) REFERENCES accounts(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS todos (
			id VARCHAR(36) PRIMARY KEY,
			title TEXT NOT NULL,
			is_done BOOLEAN NOT NULL DEFAULT FALSE,
			kategori VARCHAR(32) NOT NULL,
			user_id VARCHAR(36) NOT NULL,
			created_at DATETIME(6) NOT NULL,
			INDEX todos_user_created (user_id, created_at),
			FOREIGN KEY (user_id) REFERENCES accounts(id) ON DELETE CASCADE
		)`,
	},
	placeholder: func(int) string { return "?" },
	isDuplicate: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == 1062
	},
}

// SQLStore keeps the data in PostgreSQL or MySQL.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// OpenSQLStore connects with driver ("postgres" or "mysql"), pings, and
// creates the tables if they do not exist.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	var d dialect
	switch driver {
	case "postgres":
		d = postgresDialect
	case "mysql":
		d = mysqlDialect
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", err)
		}
		// DATETIME columns must scan into time.Time.
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		dsn = cfg.FormatDSN()
	default:
		return nil, fmt.Errorf("unknown sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	for _, stmt := range d.schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create schema: %w", err)
		}
	}
	return &SQLStore{db: db, d: d}, nil
}

// where accumulates AND-ed equality predicates with dialect placeholders.
type where struct {
	d       dialect
	clauses []string
	args    []any
}

func (w *where) eq(column string, value any) {
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, column+" = "+w.d.placeholder(len(w.args)))
}

func (w *where) in(column string, values []string) {
	marks := make([]string, len(values))
	for i, v := range values {
		w.args = append(w.args, v)
		marks[i] = w.d.placeholder(len(w.args))
	}
	w.clauses = append(w.clauses, column+" IN ("+strings.Join(marks, ", ")+")")
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (s *SQLStore) todoWhere(f TodoFilter) *where {
	w := &where{d: s.d}
	if f.ID != "" {
		w.eq("id", f.ID)
	}
	if f.UserID != "" {
		w.eq("user_id", f.UserID)
	}
	if f.Kategori != "" {
		w.eq("kategori", f.Kategori)
	}
	if f.Done != nil {
		w.eq("is_done", *f.Done)
	}
	return w
}

func (s *SQLStore) CreateAccount(ctx context.Context, a Account) error {
	w := &where{d: s.d}
	q := fmt.Sprintf("INSERT INTO accounts (id, email, password_hash, created_at) VALUES (%s, %s, %s, %s)",
		w.d.placeholder(1), w.d.placeholder(2), w.d.placeholder(3), w.d.placeholder(4))
	_, err := s.db.ExecContext(ctx, q, a.ID, strings.ToLower(strings.TrimSpace(a.Email)), a.PasswordHash, a.CreatedAt.UTC())
	if s.d.isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func (s *SQLStore) account(ctx context.Context, column, value string) (Account, error) {
	w := &where{d: s.d}
	w.eq(column, value)
	var a Account
	err := s.db.QueryRowContext(ctx, "SELECT id, email, password_hash, created_at FROM accounts"+w.String(), w.args...).
		Scan(&a.ID, &a.Email, &a.PasswordHash, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	return a, err
}

func (s *SQLStore) AccountByEmail(ctx context.Context, email string) (Account, error) {
	return s.account(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (s *SQLStore) AccountByID(ctx context.Context, id string) (Account, error) {
	return s.account(ctx, "id", id)
}

func (s *SQLStore) DeleteAccount(ctx context.Context, id string) error {
	w := &where{d: s.d}
	w.eq("id", id)
	res, err := s.db.ExecContext(ctx, "DELETE FROM accounts"+w.String(), w.args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) ListProfiles(ctx context.Context, f ProfileFilter) ([]model.Profile, error) {
	w := &where{d: s.d}
	if f.ID != "" {
		w.eq("id", f.ID)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM profiles"+w.String()+" ORDER BY id", w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Profile{}
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertProfile(ctx context.Context, p model.Profile) error {
	q := fmt.Sprintf("INSERT INTO profiles (id, name) VALUES (%s, %s)", s.d.placeholder(1), s.d.placeholder(2))
	_, err := s.db.ExecContext(ctx, q, p.ID, p.Name)
	if s.d.isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

func (s *SQLStore) UpdateProfiles(ctx context.Context, f ProfileFilter, name string) ([]model.Profile, error) {
	w := &where{d: s.d}
	w.args = append(w.args, name)
	set := "UPDATE profiles SET name = " + s.d.placeholder(1)
	if f.ID != "" {
		w.eq("id", f.ID)
	}
	if _, err := s.db.ExecContext(ctx, set+w.String(), w.args...); err != nil {
		return nil, err
	}
	return s.ListProfiles(ctx, f)
}

func (s *SQLStore) DeleteProfiles(ctx context.Context, f ProfileFilter) error {
	w := &where{d: s.d}
	if f.ID != "" {
		w.eq("id", f.ID)
	}
	_, err := s.db.ExecContext(ctx, "DELETE FROM profiles"+w.String(), w.args...)
	return err
}

const todoColumns = "id, title, is_done, kategori, user_id, created_at"

func scanTodos(rows *sql.Rows) ([]model.Todo, error) {
	defer rows.Close()
	out := []model.Todo{}
	for rows.Next() {
		var t model.Todo
		var kategori string
		if err := rows.Scan(&t.ID, &t.Title, &t.IsDone, &kategori, &t.UserID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Kategori = model.Category(kategori)
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListTodos(ctx context.Context, f TodoFilter) ([]model.Todo, error) {
	w := s.todoWhere(f)
	order := " ORDER BY created_at DESC, id DESC"
	if f.Ascending {
		order = " ORDER BY created_at ASC, id ASC"
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+todoColumns+" FROM todos"+w.String()+order, w.args...)
	if err != nil {
		return nil, err
	}
	return scanTodos(rows)
}

func (s *SQLStore) InsertTodo(ctx context.Context, t model.Todo) error {
	marks := make([]string, 6)
	for i := range marks {
		marks[i] = s.d.placeholder(i + 1)
	}
	q := "INSERT INTO todos (" + todoColumns + ") VALUES (" + strings.Join(marks, ", ") + ")"
	_, err := s.db.ExecContext(ctx, q, t.ID, t.Title, t.IsDone, string(t.Kategori), t.UserID, t.CreatedAt.UTC())
	if s.d.isDuplicate(err) {
		return ErrDuplicate
	}
	return err
}

// UpdateTodos resolves the matching ids first so the returned rows are the
// updated ones even when the patch changes a filtered column.
func (s *SQLStore) UpdateTodos(ctx context.Context, f TodoFilter, p TodoPatch) ([]model.Todo, error) {
	matched, err := s.ListTodos(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return []model.Todo{}, nil
	}
	ids := make([]string, len(matched))
	for i, t := range matched {
		ids[i] = t.ID
	}

	w := &where{d: s.d}
	var sets []string
	if p.Title != nil {
		w.args = append(w.args, *p.Title)
		sets = append(sets, "title = "+s.d.placeholder(len(w.args)))
	}
	if p.IsDone != nil {
		w.args = append(w.args, *p.IsDone)
		sets = append(sets, "is_done = "+s.d.placeholder(len(w.args)))
	}
	if p.Kategori != nil {
		w.args = append(w.args, string(*p.Kategori))
		sets = append(sets, "kategori = "+s.d.placeholder(len(w.args)))
	}
	if len(sets) > 0 {
		w.in("id", ids)
		if _, err := s.db.ExecContext(ctx, "UPDATE todos SET "+strings.Join(sets, ", ")+w.String(), w.args...); err != nil {
			return nil, err
		}
	}

	after := &where{d: s.d}
	after.in("id", ids)
	order := " ORDER BY created_at DESC, id DESC"
	if f.Ascending {
		order = " ORDER BY created_at ASC, id ASC"
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+todoColumns+" FROM todos"+after.String()+order, after.args...)
	if err != nil {
		return nil, err
	}
	return scanTodos(rows)
}

func (s *SQLStore) DeleteTodos(ctx context.Context, f TodoFilter) error {
	w := s.todoWhere(f)
	_, err := s.db.ExecContext(ctx, "DELETE FROM todos"+w.String(), w.args...)
	return err
}

func (s *SQLStore) Close() error { return s.db.Close() }
