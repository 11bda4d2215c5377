// Package filter translates user filters on data product columns into SQL predicates.
//
// Filters are pairs of a column key and a filter string.
// Syntax of the filter string depends on the column:
//
//   - int, float, date: range like "[1,10)", "(5,", ",2024-01-01]".
//     "[" and "]" are inclusive bounds, "(" and ")" (or nothing) are exclusive.
//   - bool: "true" or "false".
//   - string: a query string, interpreted by the filter strategy of the column.
//
// Column keys never appear in SQL text. They are bound as parameters.
package filter

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kbase/collections/pkg/columns"
	domerr "github.com/kbase/collections/pkg/domain/errors"
)

// Param is a filter on a column.
type Param struct {
	Key   string
	Value string
}

type Conjunction string

const (
	And Conjunction = "and"
	Or  Conjunction = "or"
)

// AsConjunction parses conjunction. Empty string is And.
func AsConjunction(s string) (Conjunction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(And):
		return And, nil
	case string(Or):
		return Or, nil
	}
	return "", domerr.NewInputError(domerr.ErrInvalidFilter, "unknown conjunction: %s", s)
}

type Options struct {
	// how search filters (prefix, ngram, fulltext) are combined each other.
	//
	// Default is And.
	Conjunction Conjunction

	// count of bind arguments already in the query.
	// Placeholders of the predicate starts from $(ArgOffset+1).
	ArgOffset int

	// SQL expression of the jsonb object holding columns. Default is "attrs".
	Attributes string
}

// Predicate is a SQL boolean expression with its bind arguments.
type Predicate struct {
	SQL  string
	Args []any
}

// Empty reports the predicate does not filter anything.
func (p Predicate) Empty() bool {
	return p.SQL == ""
}

// Range is a parsed range filter.
//
// Min and Max are float64 or time.Time. nil means unbounded.
type Range struct {
	Min          any
	Max          any
	MinInclusive bool
	MaxInclusive bool
}

type builder struct {
	offset int
	args   []any
	attrs  string
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", b.offset+len(b.args))
}

func (b *builder) column(key string) string {
	return fmt.Sprintf("(%s ->> %s::text)", b.attrs, b.bind(key))
}

// Translate builds a predicate from filters.
//
// Errors
//
// - ErrUnknownColumn: a key is not in specs.
//
// - ErrNonFilterableColumn: a key is a hidden column.
//
// - ErrInvalidFilter: a filter string is malformed, or a key is given twice.
func Translate(specs columns.Specs, params []Param, opts Options) (Predicate, error) {
	conj := opts.Conjunction
	if conj == "" {
		conj = And
	}
	attrs := opts.Attributes
	if attrs == "" {
		attrs = `"attrs"`
	}

	sorted := slices.Clone(params)
	slices.SortStableFunc(sorted, func(a, b Param) int { return strings.Compare(a.Key, b.Key) })

	b := &builder{offset: opts.ArgOffset, attrs: attrs}
	conds := []string{}
	searches := []string{}
	for i, p := range sorted {
		if 0 < i && sorted[i-1].Key == p.Key {
			return Predicate{}, domerr.NewInputError(
				domerr.ErrInvalidFilter, "more than one filter for column %s", p.Key,
			)
		}
		spec, ok := specs.Get(p.Key)
		if !ok {
			return Predicate{}, domerr.NewInputError(domerr.ErrUnknownColumn, "no such column: %s", p.Key)
		}
		if spec.NonVisible {
			return Predicate{}, domerr.NewInputError(
				domerr.ErrNonFilterableColumn, "column %s can not be filtered", p.Key,
			)
		}

		switch {
		case spec.Type.IsRange():
			r, err := ParseRange(spec.Type, p.Value)
			if err != nil {
				return Predicate{}, err
			}
			conds = append(conds, b.rangeSQL(spec, r))
		case spec.Type == columns.Bool:
			v, err := parseBool(p.Value)
			if err != nil {
				return Predicate{}, err
			}
			conds = append(conds, fmt.Sprintf("%s::boolean = %s", b.column(spec.Key), b.bind(v)))
		case spec.Type == columns.String:
			sql, err := b.stringSQL(spec, p.Value)
			if err != nil {
				return Predicate{}, err
			}
			if spec.FilterStrategy.IsSearch() {
				searches = append(searches, sql)
			} else {
				conds = append(conds, sql)
			}
		default:
			return Predicate{}, domerr.NewInputError(
				domerr.ErrNonFilterableColumn, "column %s can not be filtered", p.Key,
			)
		}
	}

	switch len(searches) {
	case 0:
	case 1:
		conds = append(conds, searches[0])
	default:
		sep := " AND "
		if conj == Or {
			sep = " OR "
		}
		conds = append(conds, "("+strings.Join(searches, sep)+")")
	}

	if len(conds) == 0 {
		return Predicate{}, nil
	}
	return Predicate{SQL: strings.Join(conds, " AND "), Args: b.args}, nil
}

func (b *builder) rangeSQL(spec columns.ColumnSpec, r Range) string {
	cast := "::double precision"
	if spec.Type == columns.Date {
		cast = "::timestamptz"
	}
	col := b.column(spec.Key) + cast

	conds := []string{}
	if r.Min != nil {
		op := ">"
		if r.MinInclusive {
			op = ">="
		}
		conds = append(conds, fmt.Sprintf("%s %s %s", col, op, b.bind(r.Min)))
	}
	if r.Max != nil {
		op := "<"
		if r.MaxInclusive {
			op = "<="
		}
		conds = append(conds, fmt.Sprintf("%s %s %s", col, op, b.bind(r.Max)))
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return "(" + strings.Join(conds, " AND ") + ")"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes wildcards of LIKE patterns.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (b *builder) stringSQL(spec columns.ColumnSpec, value string) (string, error) {
	q := strings.TrimSpace(value)
	if least := spec.FilterStrategy.MinQueryLength(); utf8.RuneCountInString(q) < least {
		return "", domerr.NewInputError(
			domerr.ErrInvalidFilter,
			"filter on %s requires at least %d characters", spec.Key, least,
		)
	}

	switch spec.FilterStrategy {
	case columns.Identity:
		return fmt.Sprintf("%s = %s", b.column(spec.Key), b.bind(q)), nil
	case columns.Prefix:
		return fmt.Sprintf("%s LIKE %s", b.column(spec.Key), b.bind(EscapeLike(q)+"%")), nil
	case columns.Ngram:
		return fmt.Sprintf("%s ILIKE %s", b.column(spec.Key), b.bind("%"+EscapeLike(q)+"%")), nil
	case columns.FullText:
		return fmt.Sprintf(
			"to_tsvector('simple', %s) @@ plainto_tsquery('simple', %s)",
			b.column(spec.Key), b.bind(q),
		), nil
	}
	return "", domerr.NewInputError(
		domerr.ErrNonFilterableColumn, "column %s has no filter strategy", spec.Key,
	)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, domerr.NewInputError(
		domerr.ErrInvalidFilter, "invalid boolean; expected true or false: %s", s,
	)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseDate parses ISO-8601 date or datetime. Values without zone are UTC.
func ParseDate(s string) (time.Time, error) {
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an ISO8601 date: %s", s)
}

// ParseRange parses range syntax for a column type.
func ParseRange(typ columns.ColumnType, s string) (Range, error) {
	invalid := func(format string, args ...any) (Range, error) {
		return Range{}, domerr.NewInputError(domerr.ErrInvalidFilter, format, args...)
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return invalid("missing range")
	}
	low, high, ok := strings.Cut(s, ",")
	if !ok || strings.Contains(high, ",") {
		return invalid("invalid range; expected exactly one comma: %s", s)
	}

	r := Range{}
	low = strings.TrimSpace(low)
	if strings.HasPrefix(low, "[") {
		r.MinInclusive = true
		low = low[1:]
	} else {
		low = strings.TrimPrefix(low, "(")
	}
	high = strings.TrimSpace(high)
	if strings.HasSuffix(high, "]") {
		r.MaxInclusive = true
		high = high[:len(high)-1]
	} else {
		high = strings.TrimSuffix(high, ")")
	}

	parse := func(v string, name string) (any, error) {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil, nil
		}
		if typ == columns.Date {
			t, err := ParseDate(v)
			if err != nil {
				return nil, domerr.NewInputError(domerr.ErrInvalidFilter, "%s: %s", name, err)
			}
			return t, nil
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, domerr.NewInputError(domerr.ErrInvalidFilter, "%s is not a number: %s", name, v)
		}
		return f, nil
	}

	var err error
	if r.Min, err = parse(low, "low range endpoint"); err != nil {
		return Range{}, err
	}
	if r.Max, err = parse(high, "high range endpoint"); err != nil {
		return Range{}, err
	}
	if r.Min == nil && r.Max == nil {
		return invalid("at least one of range endpoints is required: %s", s)
	}
	if r.Min != nil && r.Max != nil {
		c := compare(r.Min, r.Max)
		if 0 < c || (c == 0 && !(r.MinInclusive && r.MaxInclusive)) {
			return invalid("the range %s excludes all values", s)
		}
	}
	return r, nil
}

func compare(a, b any) int {
	switch a := a.(type) {
	case float64:
		bf := b.(float64)
		switch {
		case a < bf:
			return -1
		case a > bf:
			return 1
		}
		return 0
	case time.Time:
		return a.Compare(b.(time.Time))
	}
	return 0
}
