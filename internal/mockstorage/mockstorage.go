// Package mockstorage provides a testify-based mock implementation
// of the storage interface used by the service and router packages.
// It is used for unit testing handlers by simulating storage behavior.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/qrvault/internal/record"
	"github.com/patric-chuzhbe/qrvault/internal/user"
)

// StorageMock is a testify mock that implements the storage interface.
//
// Use it in service and router tests to simulate database behavior.
type StorageMock struct {
	mock.Mock
}

// FindUser mocks the credential lookup.
func (m *StorageMock) FindUser(ctx context.Context, username string) (*user.User, bool, error) {
	args := m.Called(ctx, username)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Bool(1), args.Error(2)
}

// CreateUser mocks the credential creation.
func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

// CreateRecord mocks persisting a new QR record.
func (m *StorageMock) CreateRecord(ctx context.Context, rec *record.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// FindRecordsByOwner mocks the per-owner listing.
func (m *StorageMock) FindRecordsByOwner(ctx context.Context, owner string) ([]record.Record, error) {
	args := m.Called(ctx, owner)
	records, _ := args.Get(0).([]record.Record)
	return records, args.Error(1)
}

// FindRecord mocks the owner-scoped lookup.
func (m *StorageMock) FindRecord(ctx context.Context, id, owner string) (*record.Record, bool, error) {
	args := m.Called(ctx, id, owner)
	rec, _ := args.Get(0).(*record.Record)
	return rec, args.Bool(1), args.Error(2)
}

// FindRecordByID mocks the unscoped lookup used by the inline image route.
func (m *StorageMock) FindRecordByID(ctx context.Context, id string) (*record.Record, bool, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*record.Record)
	return rec, args.Bool(1), args.Error(2)
}

// DeleteRecord mocks the owner-scoped deletion.
func (m *StorageMock) DeleteRecord(ctx context.Context, id, owner string) (*record.Record, bool, error) {
	args := m.Called(ctx, id, owner)
	rec, _ := args.Get(0).(*record.Record)
	return rec, args.Bool(1), args.Error(2)
}

// GetNumberOfUsers mocks the user counter.
func (m *StorageMock) GetNumberOfUsers(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// GetNumberOfRecords mocks the record counter.
func (m *StorageMock) GetNumberOfRecords(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// Ping mocks the health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// Close mocks resource release.
func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}
