// Package enginemock provides hand-written gomock test doubles for the
// engine package's CommitBitmapStore and Broadcaster interfaces, in the
// shape go.uber.org/mock/mockgen emits.
package enginemock

import (
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/Basalt-Foundation/basalt-consensus/bitmap"
)

// MockCommitBitmapStore is a mock of the engine.CommitBitmapStore interface.
type MockCommitBitmapStore struct {
	ctrl     *gomock.Controller
	recorder *MockCommitBitmapStoreMockRecorder
}

// MockCommitBitmapStoreMockRecorder is the mock recorder for MockCommitBitmapStore.
type MockCommitBitmapStoreMockRecorder struct {
	mock *MockCommitBitmapStore
}

// NewMockCommitBitmapStore creates a new mock instance.
func NewMockCommitBitmapStore(ctrl *gomock.Controller) *MockCommitBitmapStore {
	mock := &MockCommitBitmapStore{ctrl: ctrl}
	mock.recorder = &MockCommitBitmapStoreMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockCommitBitmapStore) EXPECT() *MockCommitBitmapStoreMockRecorder {
	return m.recorder
}

// PersistCommitBitmap mocks base method.
func (m *MockCommitBitmapStore) PersistCommitBitmap(height uint64, bm bitmap.CommitBitmap) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "PersistCommitBitmap", height, bm)
}

// PersistCommitBitmap indicates an expected call of PersistCommitBitmap.
func (mr *MockCommitBitmapStoreMockRecorder) PersistCommitBitmap(height, bm any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PersistCommitBitmap", reflect.TypeOf((*MockCommitBitmapStore)(nil).PersistCommitBitmap), height, bm)
}

// MockBroadcaster is a mock of the engine.Broadcaster interface.
type MockBroadcaster struct {
	ctrl     *gomock.Controller
	recorder *MockBroadcasterMockRecorder
}

// MockBroadcasterMockRecorder is the mock recorder for MockBroadcaster.
type MockBroadcasterMockRecorder struct {
	mock *MockBroadcaster
}

// NewMockBroadcaster creates a new mock instance.
func NewMockBroadcaster(ctrl *gomock.Controller) *MockBroadcaster {
	mock := &MockBroadcaster{ctrl: ctrl}
	mock.recorder = &MockBroadcasterMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockBroadcaster) EXPECT() *MockBroadcasterMockRecorder {
	return m.recorder
}

// Broadcast mocks base method.
func (m *MockBroadcaster) Broadcast(msg interface{}) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Broadcast", msg)
}

// Broadcast indicates an expected call of Broadcast.
func (mr *MockBroadcasterMockRecorder) Broadcast(msg any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Broadcast", reflect.TypeOf((*MockBroadcaster)(nil).Broadcast), msg)
}
