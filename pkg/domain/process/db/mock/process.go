package mock

import (
	"context"
	"errors"
	"time"

	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/domain/process/db"
)

type MockProcessInterface struct {
	Impl struct {
		Get       func(ctx context.Context, key domain.ProcessKey) (*domain.DataProductProcess, error)
		Insert    func(ctx context.Context, key domain.ProcessKey, now time.Time) (*domain.DataProductProcess, bool, error)
		Heartbeat func(ctx context.Context, key domain.ProcessKey, now time.Time) error
		Complete  func(ctx context.Context, key domain.ProcessKey, now time.Time) error
		Fail      func(ctx context.Context, key domain.ProcessKey, cause string, now time.Time) error
		Delete    func(ctx context.Context, key domain.ProcessKey) error
		DeleteFor func(ctx context.Context, internalID string, typ domain.SubsetType) (int, error)
		FailStale func(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.DataProductProcess, error)
	}
}

var _ db.ProcessInterface = &MockProcessInterface{}

func NewMockProcessInterface() *MockProcessInterface {
	return &MockProcessInterface{}
}

func (m *MockProcessInterface) Get(ctx context.Context, key domain.ProcessKey) (*domain.DataProductProcess, error) {
	if m.Impl.Get == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Get(ctx, key)
}

func (m *MockProcessInterface) Insert(ctx context.Context, key domain.ProcessKey, now time.Time) (*domain.DataProductProcess, bool, error) {
	if m.Impl.Insert == nil {
		return nil, false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Insert(ctx, key, now)
}

func (m *MockProcessInterface) Heartbeat(ctx context.Context, key domain.ProcessKey, now time.Time) error {
	if m.Impl.Heartbeat == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Heartbeat(ctx, key, now)
}

func (m *MockProcessInterface) Complete(ctx context.Context, key domain.ProcessKey, now time.Time) error {
	if m.Impl.Complete == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Complete(ctx, key, now)
}

func (m *MockProcessInterface) Fail(ctx context.Context, key domain.ProcessKey, cause string, now time.Time) error {
	if m.Impl.Fail == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Fail(ctx, key, cause, now)
}

func (m *MockProcessInterface) Delete(ctx context.Context, key domain.ProcessKey) error {
	if m.Impl.Delete == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Delete(ctx, key)
}

func (m *MockProcessInterface) DeleteFor(ctx context.Context, internalID string, typ domain.SubsetType) (int, error) {
	if m.Impl.DeleteFor == nil {
		return 0, errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeleteFor(ctx, internalID, typ)
}

func (m *MockProcessInterface) FailStale(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.DataProductProcess, error) {
	if m.Impl.FailStale == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FailStale(ctx, staleBefore, createdBefore, now)
}
