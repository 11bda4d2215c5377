// this package provide "mock" implementation of database for testing.
package mock

import (
	"context"
	"errors"
	"time"

	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/domain/collection/db"
)

type MockCollectionInterface struct {
	Impl struct {
		Save         func(ctx context.Context, id string, verTag string, body domain.CollectionBody, user string, now time.Time) (*domain.Collection, error)
		GetByTag     func(ctx context.Context, id string, verTag string) (*domain.Collection, error)
		GetByNum     func(ctx context.Context, id string, verNum int) (*domain.Collection, error)
		GetActive    func(ctx context.Context, id string) (*domain.Collection, error)
		ListActive   func(ctx context.Context) ([]domain.Collection, error)
		ListVersions func(ctx context.Context, id string, maxVer int, limit int) ([]domain.Collection, error)
		Activate     func(ctx context.Context, id string, verNum int, user string, now time.Time) (*domain.Collection, error)
	}
}

var _ db.CollectionInterface = &MockCollectionInterface{}

func NewMockCollectionInterface() *MockCollectionInterface {
	return &MockCollectionInterface{}
}

func (m *MockCollectionInterface) Save(ctx context.Context, id string, verTag string, body domain.CollectionBody, user string, now time.Time) (*domain.Collection, error) {
	if m.Impl.Save == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Save(ctx, id, verTag, body, user, now)
}

func (m *MockCollectionInterface) GetByTag(ctx context.Context, id string, verTag string) (*domain.Collection, error) {
	if m.Impl.GetByTag == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetByTag(ctx, id, verTag)
}

func (m *MockCollectionInterface) GetByNum(ctx context.Context, id string, verNum int) (*domain.Collection, error) {
	if m.Impl.GetByNum == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetByNum(ctx, id, verNum)
}

func (m *MockCollectionInterface) GetActive(ctx context.Context, id string) (*domain.Collection, error) {
	if m.Impl.GetActive == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetActive(ctx, id)
}

func (m *MockCollectionInterface) ListActive(ctx context.Context) ([]domain.Collection, error) {
	if m.Impl.ListActive == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.ListActive(ctx)
}

func (m *MockCollectionInterface) ListVersions(ctx context.Context, id string, maxVer int, limit int) ([]domain.Collection, error) {
	if m.Impl.ListVersions == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.ListVersions(ctx, id, maxVer, limit)
}

func (m *MockCollectionInterface) Activate(ctx context.Context, id string, verNum int, user string, now time.Time) (*domain.Collection, error) {
	if m.Impl.Activate == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Activate(ctx, id, verNum, user, now)
}
