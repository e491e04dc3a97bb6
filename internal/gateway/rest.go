package gateway

import (
	"context"
	"net/http"
	"net/url"
)

// Query addresses rows of one table. Build it with From, narrow it with Eq
// and Order, then run one of Get, Insert, Update or Delete.
type Query struct {
	c       *Client
	table   string
	token   string
	columns string
	params  url.Values
}

// From starts a query against table, authenticated with the user's token.
func (c *Client) From(table, token string) *Query {
	return &Query{c: c, table: table, token: token, params: url.Values{}}
}

// Select restricts the returned columns ("*" when unset).
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

// Eq adds an equality predicate on column.
func (q *Query) Eq(column, value string) *Query {
	q.params.Add(column, "eq."+value)
	return q
}

// Order sorts the result by column.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.params.Set("order", column+"."+dir)
	return q
}

func (q *Query) path(withSelect bool) string {
	params := url.Values{}
	for k, vs := range q.params {
		params[k] = append([]string(nil), vs...)
	}
	if withSelect {
		cols := q.columns
		if cols == "" {
			cols = "*"
		}
		params.Set("select", cols)
	}
	p := "/rest/v1/" + url.PathEscape(q.table)
	if enc := params.Encode(); enc != "" {
		p += "?" + enc
	}
	return p
}

var returnRepresentation = http.Header{"Prefer": []string{"return=representation"}}

// Get decodes the matching rows into dest (a pointer to a slice).
func (q *Query) Get(ctx context.Context, dest any) error {
	return q.c.do(ctx, request{method: http.MethodGet, path: q.path(true), token: q.token}, dest)
}

// Insert creates rows (a slice of structs) and decodes the created rows into
// dest.
func (q *Query) Insert(ctx context.Context, rows any, dest any) error {
	return q.c.do(ctx, request{
		method: http.MethodPost,
		path:   q.path(true),
		token:  q.token,
		body:   rows,
		header: returnRepresentation,
	}, dest)
}

// Update applies patch to the matching rows and decodes the updated rows into
// dest. An empty result means nothing matched.
func (q *Query) Update(ctx context.Context, patch any, dest any) error {
	return q.c.do(ctx, request{
		method: http.MethodPatch,
		path:   q.path(true),
		token:  q.token,
		body:   patch,
		header: returnRepresentation,
	}, dest)
}

// Delete removes the matching rows.
func (q *Query) Delete(ctx context.Context) error {
	return q.c.do(ctx, request{method: http.MethodDelete, path: q.path(false), token: q.token}, nil)
}
