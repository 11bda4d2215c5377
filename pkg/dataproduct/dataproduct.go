// Package dataproduct defines data product adapters and their registry.
//
// A data product implements some of optional capabilities (MatchApplier, SelectionDeleter, ...).
// Capabilities are looked up once at registration, and callers use only what a product has.
package dataproduct

import (
	"context"
	"fmt"
	"slices"

	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
)

// Product is a data product.
type Product interface {
	// ID is the data product id, like "genome_attribs".
	ID() string
}

// MatchDeleter removes artifacts of a match.
type MatchDeleter interface {
	DeleteMatch(ctx context.Context, internalMatchID string) error
}

// SelectionDeleter removes artifacts of a selection.
type SelectionDeleter interface {
	DeleteSelection(ctx context.Context, internalSelectionID string) error
}

// MatchApplier records a match (the matched row ids) in the data product.
type MatchApplier interface {
	ApplyMatch(ctx context.Context, coll domain.Collection, internalMatchID string, ids []string) error
}

// SelectionApplier records a selection in the data product.
type SelectionApplier interface {
	ApplySelection(ctx context.Context, coll domain.Collection, sel domain.Selection) error
}

// SelectionExporter lists external data of a selection.
type SelectionExporter interface {
	// GetIDsForSelection returns workspace type to UPAs of selected rows,
	// and the count of processed rows.
	GetIDsForSelection(ctx context.Context, coll domain.Collection, internalSelectionID string) (map[string][]string, int, error)
}

// IDResolver tells which ids exist in the data product.
type IDResolver interface {
	// ResolveIDs returns ids which are found, in the order of ids.
	ResolveIDs(ctx context.Context, coll domain.Collection, ids []string) ([]string, error)
}

// LoadChecker tells whether data is loaded for a collection.
type LoadChecker interface {
	HasLoad(ctx context.Context, collectionID string, loadVersion string) (bool, error)
}

// Capabilities of a product. Unimplemented capabilities are nil.
type Capabilities struct {
	MatchDeleter      MatchDeleter
	SelectionDeleter  SelectionDeleter
	MatchApplier      MatchApplier
	SelectionApplier  SelectionApplier
	SelectionExporter SelectionExporter
	IDResolver        IDResolver
	LoadChecker       LoadChecker
}

// CapabilitiesOf inspects p.
func CapabilitiesOf(p Product) Capabilities {
	c := Capabilities{}
	c.MatchDeleter, _ = p.(MatchDeleter)
	c.SelectionDeleter, _ = p.(SelectionDeleter)
	c.MatchApplier, _ = p.(MatchApplier)
	c.SelectionApplier, _ = p.(SelectionApplier)
	c.SelectionExporter, _ = p.(SelectionExporter)
	c.IDResolver, _ = p.(IDResolver)
	c.LoadChecker, _ = p.(LoadChecker)
	return c
}

// Names returns names of implemented capabilities.
func (c Capabilities) Names() []string {
	ret := []string{}
	for name, ok := range map[string]bool{
		"MatchDeleter":      c.MatchDeleter != nil,
		"SelectionDeleter":  c.SelectionDeleter != nil,
		"MatchApplier":      c.MatchApplier != nil,
		"SelectionApplier":  c.SelectionApplier != nil,
		"SelectionExporter": c.SelectionExporter != nil,
		"IDResolver":        c.IDResolver != nil,
		"LoadChecker":       c.LoadChecker != nil,
	} {
		if ok {
			ret = append(ret, name)
		}
	}
	slices.Sort(ret)
	return ret
}

type entry struct {
	product Product
	caps    Capabilities
}

// Registry holds data products installed in the service.
//
// Registration happens at start-up. It is not safe to Register concurrently with lookups.
type Registry struct {
	products map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{products: map[string]entry{}}
}

// Register installs a product.
//
// Registering the same id twice is a configuration error.
func (r *Registry) Register(p Product) error {
	id := p.ID()
	if _, ok := r.products[id]; ok {
		return fmt.Errorf("%w: data product %s is registered twice", domerr.ErrConfiguration, id)
	}
	r.products[id] = entry{product: p, caps: CapabilitiesOf(p)}
	return nil
}

// Get returns the product.
//
// If the product is not installed, it returns ErrNoSuchDataProduct.
func (r *Registry) Get(id string) (Product, error) {
	e, ok := r.products[id]
	if !ok {
		return nil, domerr.NewInputError(domerr.ErrNoSuchDataProduct, "no such data product: %s", id)
	}
	return e.product, nil
}

// Capabilities returns capabilities of the product.
func (r *Registry) Capabilities(id string) (Capabilities, bool) {
	e, ok := r.products[id]
	return e.caps, ok
}

// IDs returns installed product ids in order.
func (r *Registry) IDs() []string {
	ret := make([]string, 0, len(r.products))
	for id := range r.products {
		ret = append(ret, id)
	}
	slices.Sort(ret)
	return ret
}

// ForCollection returns capabilities of products bound to the collection version,
// in the order of the binding.
//
// Products not installed in this service are skipped.
func (r *Registry) ForCollection(coll domain.Collection) []Bound {
	ret := []Bound{}
	for _, dp := range coll.DataProducts {
		e, ok := r.products[dp.Product]
		if !ok {
			continue
		}
		ret = append(ret, Bound{Spec: dp, Capabilities: e.caps})
	}
	return ret
}

// Bound is a product bound to a collection version.
type Bound struct {
	Spec domain.DataProductSpec
	Capabilities
}

// Validate checks that every product bound to the collection is installed.
func (r *Registry) Validate(body domain.CollectionBody) error {
	for _, dp := range body.DataProducts {
		if _, ok := r.products[dp.Product]; !ok {
			return domerr.NewInputError(domerr.ErrNoSuchDataProduct, "no such data product: %s", dp.Product)
		}
	}
	return nil
}
