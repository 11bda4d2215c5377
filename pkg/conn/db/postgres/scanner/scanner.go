package scanner

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/jackc/pgx/v4"
)

type Queryer interface {
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
}

// type-safe scanner for pgx.Rows
//
// # example
//
//	type matchRow struct {
//		MatchID string    `sql:"match_id"`
//		Created time.Time `sql:"created"`
//	}
//
//	func ListMatches(ctx context.Context, conn pool.Queryer) ([]matchRow, error) {
//		return scanner.New[matchRow]().QueryAll(ctx, conn, `select "match_id", "created" from "match"`)
//	}
//
// # mapping rule
//
// columns are mapped into
//
//  1. field with tag `sql:"column_name"`
//  2. or, field which has a name in CamelCase version of column name ("match_id" -> "MatchId").
//
// T should be a struct.
type Scanner[T any] interface {
	// scan all rows in pgx.Rows and convert to []T
	ScanAll(pgx.Rows) ([]T, error)

	// scan all rows in response of query.
	QueryAll(context.Context, Queryer, string, ...interface{}) ([]T, error)
}

type scanner[T any] struct {
	byTag  map[string]int
	byName map[string]int
}

func New[T any]() Scanner[T] {
	byTag := map[string]int{}
	byName := map[string]int{}

	typ := reflect.TypeOf(*new(T))
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		byName[f.Name] = i
		if tag, ok := f.Tag.Lookup("sql"); ok {
			byTag[tag] = i
		}
	}

	return &scanner[T]{byTag: byTag, byName: byName}
}

func camel(s string) string {
	b := &strings.Builder{}
	for _, ss := range strings.Split(s, "_") {
		if len(ss) == 0 {
			b.WriteString("_")
			continue
		}
		b.WriteString(strings.ToUpper(ss[0:1]))
		b.WriteString(ss[1:])
	}
	return b.String()
}

func (s *scanner[T]) fields(rows pgx.Rows) ([]int, error) {
	cols := rows.FieldDescriptions()
	indices := make([]int, 0, len(cols))
	for _, fd := range cols {
		col := string(fd.Name)
		if i, ok := s.byTag[col]; ok {
			indices = append(indices, i)
		} else if i, ok := s.byName[camel(col)]; ok {
			indices = append(indices, i)
		} else {
			return nil, fmt.Errorf(
				`field for column "%s" is not found in type "%T"`, col, *new(T),
			)
		}
	}
	return indices, nil
}

func (s *scanner[T]) ScanAll(rows pgx.Rows) ([]T, error) {
	indices, err := s.fields(rows)
	if err != nil {
		return nil, err
	}

	ret := []T{}
	dest := make([]any, len(indices))
	for rows.Next() {
		elem := new(T)
		v := reflect.ValueOf(elem).Elem()
		for nth, i := range indices {
			dest[nth] = v.Field(i).Addr().Interface()
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		ret = append(ret, *elem)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *scanner[T]) QueryAll(ctx context.Context, conn Queryer, q string, params ...interface{}) ([]T, error) {
	rows, err := conn.Query(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.ScanAll(rows)
}
