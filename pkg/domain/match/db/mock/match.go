// this package provide "mock" implementation of database for testing.
package mock

import (
	"context"
	"errors"
	"time"

	"github.com/kbase/collections/pkg/domain"
	"github.com/kbase/collections/pkg/domain/match/db"
)

type MockMatchInterface struct {
	Impl struct {
		Get               func(ctx context.Context, matchID string) (*domain.Match, error)
		Touch             func(ctx context.Context, matchID string, now time.Time) (*domain.Match, error)
		Insert            func(ctx context.Context, match domain.Match) (*domain.Match, bool, error)
		Heartbeat         func(ctx context.Context, internalMatchID string, now time.Time) error
		Complete          func(ctx context.Context, internalMatchID string, matchedIDs []string, now time.Time) error
		Fail              func(ctx context.Context, internalMatchID string, cause string, now time.Time) error
		MoveToDeleted     func(ctx context.Context, internalMatchID string, force bool, now time.Time) (bool, error)
		FailStale         func(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.Match, error)
		PopExpired        func(ctx context.Context, before time.Time, now time.Time) (*domain.Match, error)
		PopDeleted        func(ctx context.Context, callback func(domain.Match) error) (bool, error)
		GetDeleted        func(ctx context.Context, internalMatchID string) (*domain.Match, error)
		RemoveDeleted     func(ctx context.Context, internalMatchID string) error
		InsertSet         func(ctx context.Context, set domain.MatchSet) (*domain.MatchSet, error)
		TouchSet          func(ctx context.Context, matchSetID string, now time.Time) (*domain.MatchSet, error)
		DeleteExpiredSets func(ctx context.Context, before time.Time) (int, error)
	}
}

var _ db.MatchInterface = &MockMatchInterface{}

func NewMockMatchInterface() *MockMatchInterface {
	return &MockMatchInterface{}
}

func (m *MockMatchInterface) Get(ctx context.Context, matchID string) (*domain.Match, error) {
	if m.Impl.Get == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Get(ctx, matchID)
}

func (m *MockMatchInterface) Touch(ctx context.Context, matchID string, now time.Time) (*domain.Match, error) {
	if m.Impl.Touch == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Touch(ctx, matchID, now)
}

func (m *MockMatchInterface) Insert(ctx context.Context, match domain.Match) (*domain.Match, bool, error) {
	if m.Impl.Insert == nil {
		return nil, false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Insert(ctx, match)
}

func (m *MockMatchInterface) Heartbeat(ctx context.Context, internalMatchID string, now time.Time) error {
	if m.Impl.Heartbeat == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Heartbeat(ctx, internalMatchID, now)
}

func (m *MockMatchInterface) Complete(ctx context.Context, internalMatchID string, matchedIDs []string, now time.Time) error {
	if m.Impl.Complete == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Complete(ctx, internalMatchID, matchedIDs, now)
}

func (m *MockMatchInterface) Fail(ctx context.Context, internalMatchID string, cause string, now time.Time) error {
	if m.Impl.Fail == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Fail(ctx, internalMatchID, cause, now)
}

func (m *MockMatchInterface) MoveToDeleted(ctx context.Context, internalMatchID string, force bool, now time.Time) (bool, error) {
	if m.Impl.MoveToDeleted == nil {
		return false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.MoveToDeleted(ctx, internalMatchID, force, now)
}

func (m *MockMatchInterface) FailStale(ctx context.Context, staleBefore time.Time, createdBefore time.Time, now time.Time) (*domain.Match, error) {
	if m.Impl.FailStale == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FailStale(ctx, staleBefore, createdBefore, now)
}

func (m *MockMatchInterface) PopExpired(ctx context.Context, before time.Time, now time.Time) (*domain.Match, error) {
	if m.Impl.PopExpired == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.PopExpired(ctx, before, now)
}

func (m *MockMatchInterface) PopDeleted(ctx context.Context, callback func(domain.Match) error) (bool, error) {
	if m.Impl.PopDeleted == nil {
		return false, errors.New("[MOCK] not implemented")
	}
	return m.Impl.PopDeleted(ctx, callback)
}

func (m *MockMatchInterface) GetDeleted(ctx context.Context, internalMatchID string) (*domain.Match, error) {
	if m.Impl.GetDeleted == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetDeleted(ctx, internalMatchID)
}

func (m *MockMatchInterface) RemoveDeleted(ctx context.Context, internalMatchID string) error {
	if m.Impl.RemoveDeleted == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.RemoveDeleted(ctx, internalMatchID)
}

func (m *MockMatchInterface) InsertSet(ctx context.Context, set domain.MatchSet) (*domain.MatchSet, error) {
	if m.Impl.InsertSet == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.InsertSet(ctx, set)
}

func (m *MockMatchInterface) TouchSet(ctx context.Context, matchSetID string, now time.Time) (*domain.MatchSet, error) {
	if m.Impl.TouchSet == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.TouchSet(ctx, matchSetID, now)
}

func (m *MockMatchInterface) DeleteExpiredSets(ctx context.Context, before time.Time) (int, error) {
	if m.Impl.DeleteExpiredSets == nil {
		return 0, errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeleteExpiredSets(ctx, before)
}
