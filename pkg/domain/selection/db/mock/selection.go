// this package provide "mock" implementation of database for testing.
package mock

import (
	"context"
	"errors"
	"time"

	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/domain/selection/db"
)

type MockSelectionInterface struct {
	Impl struct {
		Get           func(ctx context.Context, selectionID string) (*domain.Selection, error)
		Touch         func(ctx context.Context, selectionID string, now time.Time) (*domain.Selection, error)
		Insert        func(ctx context.Context, selection domain.Selection) (*domain.Selection, bool, error)
		Heartbeat     func(ctx context.Context, internalSelectionID string, now time.Time) error
		Complete      func(ctx context.Context, internalSelectionID string, unmatchedIDs []string, resolvedCount int, now time.Time) error
		Fail          func(ctx context.Context, internalSelectionID string, cause string, now time.Time) error
		MoveToDeleted func(ctx context.Context, internalSelectionID string, force bool, now time.Time) (bool, error)
		FailStale     func(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.Selection, error)
		PopExpired    func(ctx context.Context, before time.Time, now time.Time) (*domain.Selection, error)
		PopDeleted    func(ctx context.Context, callback func(domain.Selection) error) (bool, error)
		GetDeleted    func(ctx context.Context, internalSelectionID string) (*domain.Selection, error)
		RemoveDeleted func(ctx context.Context, internalSelectionID string) error
	}
}

var _ db.SelectionInterface = &MockSelectionInterface{}

func NewMockSelectionInterface() *MockSelectionInterface {
	return &MockSelectionInterface{}
}

func (m *MockSelectionInterface) Get(ctx context.Context, selectionID string) (*domain.Selection, error) {
	if m.Impl.Get == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Get(ctx, selectionID)
}

func (m *MockSelectionInterface) Touch(ctx context.Context, selectionID string, now time.Time) (*domain.Selection, error) {
	if m.Impl.Touch == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Touch(ctx, selectionID, now)
}

func (m *MockSelectionInterface) Insert(ctx context.Context, selection domain.Selection) (*domain.Selection, bool, error) {
	if m.Impl.Insert == nil {
		return nil, false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Insert(ctx, selection)
}

func (m *MockSelectionInterface) Heartbeat(ctx context.Context, internalSelectionID string, now time.Time) error {
	if m.Impl.Heartbeat == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Heartbeat(ctx, internalSelectionID, now)
}

func (m *MockSelectionInterface) Complete(ctx context.Context, internalSelectionID string, unmatchedIDs []string, resolvedCount int, now time.Time) error {
	if m.Impl.Complete == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Complete(ctx, internalSelectionID, unmatchedIDs, resolvedCount, now)
}

func (m *MockSelectionInterface) Fail(ctx context.Context, internalSelectionID string, cause string, now time.Time) error {
	if m.Impl.Fail == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Fail(ctx, internalSelectionID, cause, now)
}

func (m *MockSelectionInterface) MoveToDeleted(ctx context.Context, internalSelectionID string, force bool, now time.Time) (bool, error) {
	if m.Impl.MoveToDeleted == nil {
		return false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.MoveToDeleted(ctx, internalSelectionID, force, now)
}

func (m *MockSelectionInterface) FailStale(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.Selection, error) {
	if m.Impl.FailStale == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FailStale(ctx, staleBefore, createdBefore, now)
}

func (m *MockSelectionInterface) PopExpired(ctx context.Context, before time.Time, now time.Time) (*domain.Selection, error) {
	if m.Impl.PopExpired == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.PopExpired(ctx, before, now)
}

func (m *MockSelectionInterface) PopDeleted(ctx context.Context, callback func(domain.Selection) error) (bool, error) {
	if m.Impl.PopDeleted == nil {
		return false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.PopDeleted(ctx, callback)
}

func (m *MockSelectionInterface) GetDeleted(ctx context.Context, internalSelectionID string) (*domain.Selection, error) {
	if m.Impl.GetDeleted == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetDeleted(ctx, internalSelectionID)
}

func (m *MockSelectionInterface) RemoveDeleted(ctx context.Context, internalSelectionID string) error {
	if m.Impl.RemoveDeleted == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.RemoveDeleted(ctx, internalSelectionID)
}
