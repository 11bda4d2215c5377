package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	domerr "github.com/kbase/collections/pkg/domain/errors"
)

var (
	patternCollectionID  = regexp.MustCompile(`^\w{1,20}$`)
	patternNoWhitespace  = regexp.MustCompile(`^[^\s]{1,50}$`)
	patternProductID     = regexp.MustCompile(`^[a-z_]{1,20}$`)
	patternLoadVersion   = regexp.MustCompile(`^[\w.-]{1,20}$`)
	maxCollectionNameLen = 50
	maxCollectionDescLen = 1000
)

// DataProductSpec binds a data product and its load version to a collection version.
type DataProductSpec struct {
	Product string `json:"product"`

	// load version of the data product.
	Version string `json:"version"`

	// name of the view which the data product is searched on.
	// When empty, the data product table itself is searched.
	SearchView string `json:"search_view,omitempty"`
}

// MatcherSpec binds a matcher to a collection version,
// with parameters given by the collection (not by users).
type MatcherSpec struct {
	Matcher    string         `json:"matcher"`
	Parameters map[string]any `json:"parameters"`
}

// CollectionBody is the part of a collection given by the collection administrators.
type CollectionBody struct {
	Name string
	// version of the collection at the data source.
	VerSrc        string
	Desc          string
	DataProducts  []DataProductSpec
	Matchers      []MatcherSpec
	DefaultSelect string
}

// Collection is a saved collection version.
type Collection struct {
	ID     string
	VerTag string
	VerNum int

	CollectionBody

	Created    time.Time
	UserCreate string

	// When this version is the active one, these are set.
	Activated    *time.Time
	UserActivate string
}

func (c *Collection) String() string {
	return fmt.Sprintf("%s (ver: %s, num: %d)", c.ID, c.VerTag, c.VerNum)
}

// IsActive reports this collection version is active.
func (c *Collection) IsActive() bool {
	return c.Activated != nil
}

// DataProduct returns the binding of the data product.
func (c *Collection) DataProduct(product string) (DataProductSpec, bool) {
	for _, dp := range c.DataProducts {
		if dp.Product == product {
			return dp, true
		}
	}
	return DataProductSpec{}, false
}

// Matcher returns the binding of the matcher.
func (c *Collection) Matcher(matcher string) (MatcherSpec, bool) {
	for _, m := range c.Matchers {
		if m.Matcher == matcher {
			return m, true
		}
	}
	return MatcherSpec{}, false
}

// LoadVersion returns the load version of the data product on this collection version.
//
// If the data product is not bound, it returns ErrNoRegisteredDataProduct.
func (c *Collection) LoadVersion(product string) (string, error) {
	dp, ok := c.DataProduct(product)
	if !ok {
		return "", domerr.NewInputError(
			domerr.ErrNoRegisteredDataProduct,
			"collection %s version %d does not have data product %s", c.ID, c.VerNum, product,
		)
	}
	return dp.Version, nil
}

// ValidateCollectionID checks the format of a collection id.
func ValidateCollectionID(id string) error {
	if !patternCollectionID.MatchString(id) {
		return domerr.NewInputError(
			domerr.ErrInvalidInput,
			"collection id should be 1 to 20 word characters: %q", id,
		)
	}
	return nil
}

// ValidateVerTag checks the format of a collection version tag.
func ValidateVerTag(tag string) error {
	if !patternNoWhitespace.MatchString(tag) {
		return domerr.NewInputError(
			domerr.ErrInvalidInput,
			"version tag should be 1 to 50 characters without whitespaces: %q", tag,
		)
	}
	if pos := controlCharacterAt(tag, false); 0 <= pos {
		return domerr.NewInputError(
			domerr.ErrInvalidInput,
			"version tag contains a control character at position %d", pos,
		)
	}
	return nil
}

// Normalize trims fields and validates the body.
//
// It returns a new CollectionBody. The receiver is not modified.
func (b CollectionBody) Normalize() (CollectionBody, error) {
	ret := b
	ret.Name = strings.TrimSpace(b.Name)
	ret.VerSrc = strings.TrimSpace(b.VerSrc)
	ret.Desc = strings.TrimSpace(b.Desc)
	ret.DefaultSelect = strings.TrimSpace(b.DefaultSelect)

	invalid := func(format string, args ...any) (CollectionBody, error) {
		return CollectionBody{}, domerr.NewInputError(domerr.ErrInvalidInput, format, args...)
	}

	if l := len([]rune(ret.Name)); l < 1 || maxCollectionNameLen < l {
		return invalid("name should be 1 to %d characters", maxCollectionNameLen)
	}
	if pos := controlCharacterAt(ret.Name, false); 0 <= pos {
		return invalid("name contains a control character at position %d", pos)
	}
	if !patternNoWhitespace.MatchString(ret.VerSrc) {
		return invalid("ver_src should be 1 to 50 characters without whitespaces")
	}
	if pos := controlCharacterAt(ret.VerSrc, false); 0 <= pos {
		return invalid("ver_src contains a control character at position %d", pos)
	}
	if maxCollectionDescLen < len([]rune(ret.Desc)) {
		return invalid("desc should be at most %d characters", maxCollectionDescLen)
	}
	if pos := controlCharacterAt(ret.Desc, true); 0 <= pos {
		return invalid("desc contains a non tab or newline control character at position %d", pos)
	}

	ret.DataProducts = make([]DataProductSpec, 0, len(b.DataProducts))
	seenProducts := map[string]struct{}{}
	for _, dp := range b.DataProducts {
		dp.Product = strings.TrimSpace(dp.Product)
		dp.Version = strings.TrimSpace(dp.Version)
		dp.SearchView = strings.TrimSpace(dp.SearchView)
		if !patternProductID.MatchString(dp.Product) {
			return invalid("illegal data product id: %q", dp.Product)
		}
		if !patternLoadVersion.MatchString(dp.Version) {
			return invalid("illegal load version for data product %s: %q", dp.Product, dp.Version)
		}
		if _, ok := seenProducts[dp.Product]; ok {
			return invalid("duplicate data product: %s", dp.Product)
		}
		seenProducts[dp.Product] = struct{}{}
		ret.DataProducts = append(ret.DataProducts, dp)
	}

	ret.Matchers = make([]MatcherSpec, 0, len(b.Matchers))
	seenMatchers := map[string]struct{}{}
	for _, m := range b.Matchers {
		m.Matcher = strings.TrimSpace(m.Matcher)
		if !patternProductID.MatchString(m.Matcher) {
			return invalid("illegal matcher id: %q", m.Matcher)
		}
		if _, ok := seenMatchers[m.Matcher]; ok {
			return invalid("duplicate matcher: %s", m.Matcher)
		}
		seenMatchers[m.Matcher] = struct{}{}
		if m.Parameters == nil {
			m.Parameters = map[string]any{}
		}
		ret.Matchers = append(ret.Matchers, m)
	}

	if ret.DefaultSelect != "" {
		if _, ok := seenProducts[ret.DefaultSelect]; !ok {
			return invalid("default_select %s is not a data product of the collection", ret.DefaultSelect)
		}
	}

	return ret, nil
}

// controlCharacterAt returns the position of the first control character in s,
// or -1 when s has none.
func controlCharacterAt(s string, allowTabNewline bool) int {
	for i, r := range []rune(s) {
		if allowTabNewline && (r == '\t' || r == '\n') {
			continue
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			return i
		}
	}
	return -1
}
