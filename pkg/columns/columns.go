// Package columns loads column specifications of tabular data products.
//
// Specs are YAML files placed as
//
//	<DIR>/<data_product>/<collection>.yml
//
// and each file has a list of columns:
//
//	columns:
//	  - key: kbase_id
//	    type: string
//	    filter_strategy: identity
//	    display_name: KBase ID
//	    category: Identifiers
//	  - key: checkm_completeness
//	    type: float
//
// A registry is loaded once at start-up and never changes after that.
package columns

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	domerr "github.com/kbase/collections/pkg/domain/errors"
	"gopkg.in/yaml.v3"
)

type ColumnType string

const (
	String ColumnType = "string"
	Int    ColumnType = "int"
	Float  ColumnType = "float"
	Date   ColumnType = "date"
	Bool   ColumnType = "bool"
)

func (t ColumnType) known() bool {
	switch t {
	case String, Int, Float, Date, Bool:
		return true
	}
	return false
}

// IsRange reports that the column is filtered with range syntax.
func (t ColumnType) IsRange() bool {
	return t == Int || t == Float || t == Date
}

type FilterStrategy string

const (
	Identity FilterStrategy = "identity"
	Prefix   FilterStrategy = "prefix"
	Ngram    FilterStrategy = "ngram"
	FullText FilterStrategy = "fulltext"
)

func (s FilterStrategy) known() bool {
	switch s {
	case Identity, Prefix, Ngram, FullText:
		return true
	}
	return false
}

// IsSearch reports that the strategy is a text search, not an exact match.
func (s FilterStrategy) IsSearch() bool {
	return s == Prefix || s == Ngram || s == FullText
}

// MinQueryLength is the shortest query string accepted by the strategy.
func (s FilterStrategy) MinQueryLength() int {
	switch s {
	case Ngram:
		return 3
	default:
		return 1
	}
}

type ColumnSpec struct {
	Key            string         `yaml:"key" json:"key"`
	Type           ColumnType     `yaml:"type" json:"type"`
	FilterStrategy FilterStrategy `yaml:"filter_strategy,omitempty" json:"filter_strategy,omitempty"`

	// hidden from users. It can not be filtered nor sorted.
	NonVisible bool `yaml:"non_visible,omitempty" json:"non_visible,omitempty"`

	// values are loaded without type conversion.
	NoCast bool `yaml:"no_cast,omitempty" json:"no_cast,omitempty"`

	DisplayName string `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Sortable reports the column can be used as a sort key.
//
// Hidden columns and text-searched strings are not sortable.
func (c ColumnSpec) Sortable() bool {
	if c.NonVisible {
		return false
	}
	return !(c.Type == String && (c.FilterStrategy == Ngram || c.FilterStrategy == FullText))
}

func (c ColumnSpec) validate() error {
	if c.Key == "" {
		return errors.New("column without key")
	}
	if !c.Type.known() {
		return fmt.Errorf("column %s: unknown type: %q", c.Key, c.Type)
	}
	if c.Type == String {
		if c.FilterStrategy == "" {
			return fmt.Errorf("column %s: string column requires filter_strategy", c.Key)
		}
		if !c.FilterStrategy.known() {
			return fmt.Errorf("column %s: unknown filter_strategy: %q", c.Key, c.FilterStrategy)
		}
	} else if c.FilterStrategy != "" {
		return fmt.Errorf("column %s: filter_strategy is only for string columns", c.Key)
	}
	return nil
}

// Specs is an ordered set of columns.
type Specs []ColumnSpec

// Get returns the column with the key.
func (s Specs) Get(key string) (ColumnSpec, bool) {
	for _, c := range s {
		if c.Key == key {
			return c, true
		}
	}
	return ColumnSpec{}, false
}

// Visible returns columns which are not hidden.
func (s Specs) Visible() Specs {
	ret := Specs{}
	for _, c := range s {
		if !c.NonVisible {
			ret = append(ret, c)
		}
	}
	return ret
}

func (s Specs) Keys() []string {
	ret := make([]string, len(s))
	for i, c := range s {
		ret[i] = c.Key
	}
	return ret
}

// ConfigurationError is an error in column spec files.
type ConfigurationError struct {
	// spec file, or collection names which are merged
	Source string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("column spec %s: %s", e.Source, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return domerr.ErrConfiguration
}

func configErr(source string, format string, args ...any) error {
	return &ConfigurationError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

type specFile struct {
	Columns Specs `yaml:"columns"`
}

// Parse reads a spec file.
func Parse(name string, r io.Reader) (Specs, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	sf := specFile{}
	if err := dec.Decode(&sf); err != nil && !errors.Is(err, io.EOF) {
		return nil, configErr(name, "%s", err.Error())
	}

	seen := map[string]struct{}{}
	for _, c := range sf.Columns {
		if err := c.validate(); err != nil {
			return nil, configErr(name, "%s", err.Error())
		}
		if _, ok := seen[c.Key]; ok {
			return nil, configErr(name, "duplicated key: %s", c.Key)
		}
		seen[c.Key] = struct{}{}
	}
	return sf.Columns, nil
}

// Merge combines specs of collections.
//
// Columns appear in order of first declaration, visiting collections in name order.
// A key declared in different ways causes ConfigurationError.
func Merge(byCollection map[string]Specs) (Specs, error) {
	colls := make([]string, 0, len(byCollection))
	for c := range byCollection {
		colls = append(colls, c)
	}
	slices.Sort(colls)

	ret := Specs{}
	declaredIn := map[string]string{}
	for _, coll := range colls {
		for _, c := range byCollection[coll] {
			first, ok := ret.Get(c.Key)
			if !ok {
				ret = append(ret, c)
				declaredIn[c.Key] = coll
				continue
			}
			if first != c {
				return nil, configErr(
					strings.Join([]string{declaredIn[c.Key], coll}, ", "),
					"conflicting definitions of key %s", c.Key,
				)
			}
		}
	}
	return ret, nil
}

// Registry holds column specs per data product and collection.
type Registry struct {
	specs    map[string]map[string]Specs
	defaults map[string]Specs
}

// Load reads spec files under dir.
func Load(dir string) (*Registry, error) {
	return LoadFS(os.DirFS(dir))
}

// LoadFS reads spec files in fsys. See package doc for its layout.
func LoadFS(fsys fs.FS) (*Registry, error) {
	r := &Registry{
		specs:    map[string]map[string]Specs{},
		defaults: map[string]Specs{},
	}

	products, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, configErr(".", "%s", err.Error())
	}
	for _, p := range products {
		if !p.IsDir() {
			continue
		}
		product := p.Name()
		files, err := fs.ReadDir(fsys, product)
		if err != nil {
			return nil, configErr(product, "%s", err.Error())
		}
		byColl := map[string]Specs{}
		for _, f := range files {
			if f.IsDir() || path.Ext(f.Name()) != ".yml" {
				continue
			}
			name := path.Join(product, f.Name())
			specs, err := parseFile(fsys, name)
			if err != nil {
				return nil, err
			}
			byColl[strings.TrimSuffix(f.Name(), ".yml")] = specs
		}
		if len(byColl) == 0 {
			continue
		}
		merged, err := Merge(byColl)
		if err != nil {
			return nil, err
		}
		r.specs[product] = byColl
		r.defaults[product] = merged
	}
	return r, nil
}

func parseFile(fsys fs.FS, name string) (Specs, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, configErr(name, "%s", err.Error())
	}
	defer f.Close()
	return Parse(name, f)
}

// Spec returns columns of the data product for the collection.
//
// When collection is empty or has no own spec file, the product default
// (merged specs over all collections) is returned.
func (r *Registry) Spec(product string, collection string) (Specs, error) {
	byColl, ok := r.specs[product]
	if !ok {
		return nil, domerr.NewInputError(
			domerr.ErrNoSuchDataProduct, "no column specs for data product %s", product,
		)
	}
	if s, ok := byColl[collection]; ok && collection != "" {
		return s, nil
	}
	return r.defaults[product], nil
}

// Products returns names of data products which have specs.
func (r *Registry) Products() []string {
	ret := make([]string, 0, len(r.specs))
	for p := range r.specs {
		ret = append(ret, p)
	}
	slices.Sort(ret)
	return ret
}
