// Package mocks provides test doubles for the attempt store.
package mocks

import (
	"context"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/chapter-cli/internal/model"
	store "github.com/sells-group/chapter-cli/internal/store"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

// CreateRun provides a mock function with given fields: ctx, locator
func (_m *MockStore) CreateRun(ctx context.Context, locator string) (*model.Run, error) {
	ret := _m.Called(ctx, locator)

	if len(ret) == 0 {
		panic("no return value specified for CreateRun")
	}

	var r0 *model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}
	return r0, ret.Error(1)
}

// UpdateRunStatus provides a mock function with given fields: ctx, runID, status
func (_m *MockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	ret := _m.Called(ctx, runID, status)

	if len(ret) == 0 {
		panic("no return value specified for UpdateRunStatus")
	}
	return ret.Error(0)
}

// UpdateRunResult provides a mock function with given fields: ctx, runID, status, result
func (_m *MockStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	ret := _m.Called(ctx, runID, status, result)

	if len(ret) == 0 {
		panic("no return value specified for UpdateRunResult")
	}
	return ret.Error(0)
}

// GetRun provides a mock function with given fields: ctx, runID
func (_m *MockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for GetRun")
	}

	var r0 *model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Run)
	}
	return r0, ret.Error(1)
}

// ListRuns provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	ret := _m.Called(ctx, filter)

	if len(ret) == 0 {
		panic("no return value specified for ListRuns")
	}

	var r0 []model.Run
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Run)
	}
	return r0, ret.Error(1)
}

// CreateStage provides a mock function with given fields: ctx, runID, stage
func (_m *MockStore) CreateStage(ctx context.Context, runID string, stage model.Stage) (*model.RunStage, error) {
	ret := _m.Called(ctx, runID, stage)

	if len(ret) == 0 {
		panic("no return value specified for CreateStage")
	}

	var r0 *model.RunStage
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.RunStage)
	}
	return r0, ret.Error(1)
}

// CompleteStage provides a mock function with given fields: ctx, stageID, result
func (_m *MockStore) CompleteStage(ctx context.Context, stageID string, result *model.StageResult) error {
	ret := _m.Called(ctx, stageID, result)

	if len(ret) == 0 {
		panic("no return value specified for CompleteStage")
	}
	return ret.Error(0)
}

// ListStages provides a mock function with given fields: ctx, runID
func (_m *MockStore) ListStages(ctx context.Context, runID string) ([]model.RunStage, error) {
	ret := _m.Called(ctx, runID)

	if len(ret) == 0 {
		panic("no return value specified for ListStages")
	}

	var r0 []model.RunStage
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.RunStage)
	}
	return r0, ret.Error(1)
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)

	if len(ret) == 0 {
		panic("no return value specified for Migrate")
	}
	return ret.Error(0)
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()

	if len(ret) == 0 {
		panic("no return value specified for Close")
	}
	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ store.Store = (*MockStore)(nil)
