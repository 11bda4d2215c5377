// Package paging pages through tabular data product rows with keyset cursors.
package paging

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/kbase/collections/pkg/columns"
	kpool "github.com/kbase/collections/pkg/conn/db/postgres/pool"
	"github.com/kbase/collections/pkg/conn/db/postgres/scanner"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	xe "github.com/kbase/collections/pkg/errors"
)

const (
	DefaultLimit = 1000
	MaxLimit     = 10000
	MaxSkip      = 10000
)

// Token is the decoded form of a cursor.
type Token struct {
	// sort value of the last row, as text.
	V string `json:"v"`

	// key of the last row.
	K string `json:"k"`
}

func (t Token) Encode() string {
	buf, _ := json.Marshal(t)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// DecodeToken parses an opaque cursor.
func DecodeToken(s string) (Token, error) {
	buf, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Token{}, domerr.NewInputError(domerr.ErrInvalidFilter, "malformed cursor")
	}
	t := Token{}
	if err := json.Unmarshal(buf, &t); err != nil {
		return Token{}, domerr.NewInputError(domerr.ErrInvalidFilter, "malformed cursor")
	}
	return t, nil
}

// Row is a row which can be a cursor.
//
// Page selects two extra columns, "sort_value" and "sort_key" (both text),
// so row types should have fields for them.
type Row interface {
	Cursor() Token
}

// Query is a base query to be paged.
type Query struct {
	// SELECT statement. Its result should have column Key and "attrs" (jsonb).
	SQL  string
	Args []any

	// the column name of row keys. Rows are unique by this column.
	Key string
}

type Request struct {
	// column key to sort by. Empty means the row key.
	Sort       string
	Descending bool

	// cursor returned as Result.Next. Empty for the first page.
	Cursor string

	// max rows in a page. 0 means DefaultLimit.
	Limit int

	// rows to skip.
	Skip int
}

type Result[T any] struct {
	Rows []T

	// cursor for the next page. Empty when there are no more rows.
	Next string
}

// Limit validates and normalizes limit.
//
// 0 means DefaultLimit. A limit over MaxLimit is clamped.
func Limit(limit int) (int, error) {
	switch {
	case limit < 0:
		return 0, domerr.NewInputError(domerr.ErrInvalidInput, "limit must be >= 0: %d", limit)
	case limit == 0:
		return DefaultLimit, nil
	case MaxLimit < limit:
		return MaxLimit, nil
	}
	return limit, nil
}

// SortExpr returns SQL expression of sort values for the sort column,
// and the type cast for cursor values.
//
// The returned expression refers bind parameter at `param` (the column key) and
// columns in `table`.
//
// NULLs are replaced with a sentinel so that rows are totally ordered.
func SortExpr(specs columns.Specs, sortBy string, key string, table string, param string) (expr string, cast string, err error) {
	if sortBy == "" || sortBy == key {
		return fmt.Sprintf(`("%s"."%s")::text collate "C"`, table, key), `::text collate "C"`, nil
	}
	spec, ok := specs.Get(sortBy)
	if !ok || !spec.Sortable() {
		return "", "", domerr.NewInputError(domerr.ErrInvalidSortColumn, "column %s is not sortable", sortBy)
	}

	attr := fmt.Sprintf(`("%s"."attrs" ->> %s::text)`, table, param)
	switch spec.Type {
	case columns.Int, columns.Float:
		return fmt.Sprintf(`coalesce(%s::double precision, 'Infinity'::double precision)`, attr), `::double precision`, nil
	case columns.Date:
		return fmt.Sprintf(`coalesce(%s::timestamptz, 'infinity'::timestamptz)`, attr), `::timestamptz`, nil
	case columns.Bool:
		return fmt.Sprintf(`coalesce(%s::boolean, false)`, attr), `::boolean`, nil
	default:
		return fmt.Sprintf(`coalesce(%s, '') collate "C"`, attr), `::text collate "C"`, nil
	}
}

// Build makes a paged query from q.
//
// The returned query fetches up to `limit + 1` rows to know that more rows exist.
func Build(specs columns.Specs, q Query, req Request) (sql string, args []any, limit int, err error) {
	limit, err = Limit(req.Limit)
	if err != nil {
		return "", nil, 0, err
	}
	if req.Skip < 0 || MaxSkip < req.Skip {
		return "", nil, 0, domerr.NewInputError(
			domerr.ErrInvalidInput, "skip must be in [0, %d]: %d", MaxSkip, req.Skip,
		)
	}

	args = append([]any{}, q.Args...)
	bind := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	byKey := req.Sort == "" || req.Sort == q.Key
	sortParam := ""
	if !byKey {
		sortParam = bind(req.Sort)
	}
	sortExpr, cast, err := SortExpr(specs, req.Sort, q.Key, "page", sortParam)
	if err != nil {
		return "", nil, 0, err
	}
	keyExpr := fmt.Sprintf(`("page"."%s")::text collate "C"`, q.Key)

	cmp, dir := ">", "asc"
	if req.Descending {
		cmp, dir = "<", "desc"
	}

	where := ""
	if req.Cursor != "" {
		tok, err := DecodeToken(req.Cursor)
		if err != nil {
			return "", nil, 0, err
		}
		if byKey {
			where = fmt.Sprintf("where %s %s %s%s", keyExpr, cmp, bind(tok.K), cast)
		} else {
			where = fmt.Sprintf(
				"where (%s, %s) %s (%s%s, %s::text collate \"C\")",
				sortExpr, keyExpr, cmp, bind(tok.V), cast, bind(tok.K),
			)
		}
	}

	order := fmt.Sprintf("%s %s", sortExpr, dir)
	if !byKey {
		order = fmt.Sprintf("%s %s, %s %s", sortExpr, dir, keyExpr, dir)
	}

	sql = fmt.Sprintf(
		`select "page".*, (%s)::text as "sort_value", ("page"."%s")::text as "sort_key"
from (%s) as "page"
%s
order by %s
limit %s offset %s`,
		sortExpr, q.Key, q.SQL, where, order, bind(limit+1), bind(req.Skip),
	)
	return sql, args, limit, nil
}

// Page runs a paged query.
func Page[T Row](ctx context.Context, conn kpool.Queryer, specs columns.Specs, q Query, req Request) (Result[T], error) {
	sql, args, limit, err := Build(specs, q, req)
	if err != nil {
		return Result[T]{}, err
	}
	rows, err := scanner.New[T]().QueryAll(ctx, conn, sql, args...)
	if err != nil {
		return Result[T]{}, xe.Wrap(err)
	}
	if len(rows) <= limit {
		return Result[T]{Rows: rows}, nil
	}
	rows = rows[:limit]
	return Result[T]{Rows: rows, Next: rows[len(rows)-1].Cursor().Encode()}, nil
}
