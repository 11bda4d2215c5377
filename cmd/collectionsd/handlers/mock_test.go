package handlers_test

import (
	"context"
	"errors"

	"github.com/kbase/collections/pkg/dataproduct/genomeattribs"
	"github.com/kbase/collections/pkg/dataproduct/taxacount"
	"github.com/kbase/collections/pkg/domain"
	domerr "github.com/kbase/collections/pkg/domain/errors"
	"github.com/kbase/collections/pkg/engine/match"
	"github.com/kbase/collections/pkg/engine/selection"
)

var errNotImplemented = errors.New("[MOCK] not implemented")

type mockCollections struct {
	Impl struct {
		Get           func(ctx context.Context, id string) (*domain.Collection, error)
		GetByTag      func(ctx context.Context, id string, verTag string) (*domain.Collection, error)
		GetByNum      func(ctx context.Context, id string, verNum int) (*domain.Collection, error)
		List          func(ctx context.Context) ([]domain.Collection, error)
		Versions      func(ctx context.Context, id string, maxVer int, limit int) ([]domain.Collection, error)
		Save          func(ctx context.Context, id string, verTag string, body domain.CollectionBody, user string) (*domain.Collection, error)
		Activate      func(ctx context.Context, id string, verNum int, user string) (*domain.Collection, error)
		ActivateByTag func(ctx context.Context, id string, verTag string, user string) (*domain.Collection, error)
	}
}

func (m *mockCollections) Get(ctx context.Context, id string) (*domain.Collection, error) {
	if m.Impl.Get == nil {
		return nil, errNotImplemented
	}
	return m.Impl.Get(ctx, id)
}

func (m *mockCollections) GetByTag(ctx context.Context, id string, verTag string) (*domain.Collection, error) {
	if m.Impl.GetByTag == nil {
		return nil, errNotImplemented
	}
	return m.Impl.GetByTag(ctx, id, verTag)
}

func (m *mockCollections) GetByNum(ctx context.Context, id string, verNum int) (*domain.Collection, error) {
	if m.Impl.GetByNum == nil {
		return nil, errNotImplemented
	}
	return m.Impl.GetByNum(ctx, id, verNum)
}

func (m *mockCollections) List(ctx context.Context) ([]domain.Collection, error) {
	if m.Impl.List == nil {
		return nil, errNotImplemented
	}
	return m.Impl.List(ctx)
}

func (m *mockCollections) Versions(ctx context.Context, id string, maxVer int, limit int) ([]domain.Collection, error) {
	if m.Impl.Versions == nil {
		return nil, errNotImplemented
	}
	return m.Impl.Versions(ctx, id, maxVer, limit)
}

func (m *mockCollections) Save(ctx context.Context, id string, verTag string, body domain.CollectionBody, user string) (*domain.Collection, error) {
	if m.Impl.Save == nil {
		return nil, errNotImplemented
	}
	return m.Impl.Save(ctx, id, verTag, body, user)
}

func (m *mockCollections) Activate(ctx context.Context, id string, verNum int, user string) (*domain.Collection, error) {
	if m.Impl.Activate == nil {
		return nil, errNotImplemented
	}
	return m.Impl.Activate(ctx, id, verNum, user)
}

func (m *mockCollections) ActivateByTag(ctx context.Context, id string, verTag string, user string) (*domain.Collection, error) {
	if m.Impl.ActivateByTag == nil {
		return nil, errNotImplemented
	}
	return m.Impl.ActivateByTag(ctx, id, verTag, user)
}

type mockMatches struct {
	Impl struct {
		CreateOrGet func(ctx context.Context, req match.CreateRequest) (*domain.Match, error)
		Get         func(ctx context.Context, coll domain.Collection, id string, token string) (domain.MatchView, error)
		Complete    func(ctx context.Context, coll domain.Collection, id string, token string) (domain.MatchView, error)
		Set         func(ctx context.Context, coll domain.Collection, matchIDs []string, token string) (domain.MatchView, error)
		Delete      func(ctx context.Context, matchID string, force bool) (bool, error)
		Apply       func(ctx context.Context, coll domain.Collection, id string, product string, token string) ([]domain.DataProductProcess, error)
	}
}

func (m *mockMatches) CreateOrGet(ctx context.Context, req match.CreateRequest) (*domain.Match, error) {
	if m.Impl.CreateOrGet == nil {
		return nil, errNotImplemented
	}
	return m.Impl.CreateOrGet(ctx, req)
}

func (m *mockMatches) Get(ctx context.Context, coll domain.Collection, id string, token string) (domain.MatchView, error) {
	if m.Impl.Get == nil {
		return domain.MatchView{}, errNotImplemented
	}
	return m.Impl.Get(ctx, coll, id, token)
}

func (m *mockMatches) Complete(ctx context.Context, coll domain.Collection, id string, token string) (domain.MatchView, error) {
	if m.Impl.Complete == nil {
		return domain.MatchView{}, errNotImplemented
	}
	return m.Impl.Complete(ctx, coll, id, token)
}

func (m *mockMatches) Set(ctx context.Context, coll domain.Collection, matchIDs []string, token string) (domain.MatchView, error) {
	if m.Impl.Set == nil {
		return domain.MatchView{}, errNotImplemented
	}
	return m.Impl.Set(ctx, coll, matchIDs, token)
}

func (m *mockMatches) Delete(ctx context.Context, matchID string, force bool) (bool, error) {
	if m.Impl.Delete == nil {
		return false, errNotImplemented
	}
	return m.Impl.Delete(ctx, matchID, force)
}

func (m *mockMatches) Apply(ctx context.Context, coll domain.Collection, id string, product string, token string) ([]domain.DataProductProcess, error) {
	if m.Impl.Apply == nil {
		return nil, errNotImplemented
	}
	return m.Impl.Apply(ctx, coll, id, product, token)
}

type mockSelections struct {
	Impl struct {
		CreateOrGet func(ctx context.Context, req selection.CreateRequest) (*domain.Selection, error)
		Get         func(ctx context.Context, coll domain.Collection, selectionID string) (*domain.Selection, error)
		Complete    func(ctx context.Context, coll domain.Collection, selectionID string) (*domain.Selection, error)
		Delete      func(ctx context.Context, selectionID string, force bool) (bool, error)
		Apply       func(ctx context.Context, coll domain.Collection, selectionID string, product string) (*domain.DataProductProcess, error)
		Export      func(ctx context.Context, coll domain.Collection, selectionID string) (map[string][]string, int, error)
	}
}

func (m *mockSelections) CreateOrGet(ctx context.Context, req selection.CreateRequest) (*domain.Selection, error) {
	if m.Impl.CreateOrGet == nil {
		return nil, errNotImplemented
	}
	return m.Impl.CreateOrGet(ctx, req)
}

func (m *mockSelections) Get(ctx context.Context, coll domain.Collection, selectionID string) (*domain.Selection, error) {
	if m.Impl.Get == nil {
		return nil, errNotImplemented
	}
	return m.Impl.Get(ctx, coll, selectionID)
}

func (m *mockSelections) Complete(ctx context.Context, coll domain.Collection, selectionID string) (*domain.Selection, error) {
	if m.Impl.Complete == nil {
		return nil, errNotImplemented
	}
	return m.Impl.Complete(ctx, coll, selectionID)
}

func (m *mockSelections) Delete(ctx context.Context, selectionID string, force bool) (bool, error) {
	if m.Impl.Delete == nil {
		return false, errNotImplemented
	}
	return m.Impl.Delete(ctx, selectionID, force)
}

func (m *mockSelections) Apply(ctx context.Context, coll domain.Collection, selectionID string, product string) (*domain.DataProductProcess, error) {
	if m.Impl.Apply == nil {
		return nil, errNotImplemented
	}
	return m.Impl.Apply(ctx, coll, selectionID, product)
}

func (m *mockSelections) Export(ctx context.Context, coll domain.Collection, selectionID string) (map[string][]string, int, error) {
	if m.Impl.Export == nil {
		return nil, 0, errNotImplemented
	}
	return m.Impl.Export(ctx, coll, selectionID)
}

type mockGenomeAttribs struct {
	Impl struct {
		List func(ctx context.Context, coll domain.Collection, req genomeattribs.ListRequest) (genomeattribs.ListResult, error)
	}
}

func (m *mockGenomeAttribs) List(ctx context.Context, coll domain.Collection, req genomeattribs.ListRequest) (genomeattribs.ListResult, error) {
	if m.Impl.List == nil {
		return genomeattribs.ListResult{}, errNotImplemented
	}
	return m.Impl.List(ctx, coll, req)
}

type mockTaxaCount struct {
	Impl struct {
		Ranks  func(ctx context.Context, coll domain.Collection) ([]domain.GTDBRank, error)
		Counts func(ctx context.Context, coll domain.Collection, req taxacount.CountRequest) ([]taxacount.Count, error)
	}
}

func (m *mockTaxaCount) Ranks(ctx context.Context, coll domain.Collection) ([]domain.GTDBRank, error) {
	if m.Impl.Ranks == nil {
		return nil, errNotImplemented
	}
	return m.Impl.Ranks(ctx, coll)
}

func (m *mockTaxaCount) Counts(ctx context.Context, coll domain.Collection, req taxacount.CountRequest) ([]taxacount.Count, error) {
	if m.Impl.Counts == nil {
		return nil, errNotImplemented
	}
	return m.Impl.Counts(ctx, coll, req)
}

func gtdb() *domain.Collection {
	return &domain.Collection{
		ID: "GTDB", VerTag: "r207", VerNum: 2,
		CollectionBody: domain.CollectionBody{
			Name: "GTDB", VerSrc: "207",
			DataProducts: []domain.DataProductSpec{
				{Product: "genome_attribs", Version: "r207.kbase.1"},
				{Product: "taxa_count", Version: "r207.kbase.1"},
			},
			DefaultSelect: "genome_attribs",
		},
	}
}

// activeGTDB returns a mock which has the active version of GTDB.
func activeGTDB() *mockCollections {
	m := &mockCollections{}
	m.Impl.Get = func(_ context.Context, id string) (*domain.Collection, error) {
		if id != "GTDB" {
			return nil, domerr.NewInputError(domerr.ErrNoSuchCollection, "no such collection: %s", id)
		}
		return gtdb(), nil
	}
	return m
}
