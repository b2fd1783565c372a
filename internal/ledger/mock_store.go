package ledger

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore is a testify mock of Store.
type MockStore struct {
	mock.Mock
}

var _ Store = (*MockStore)(nil)

// Exists is the mock implementation of the Exists method.
func (m *MockStore) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1) //nolint:wrapcheck
}

// Insert is the mock implementation of the Insert method.
func (m *MockStore) Insert(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0) //nolint:wrapcheck
}

// DeleteBefore is the mock implementation of the DeleteBefore method.
func (m *MockStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1) //nolint:wrapcheck
}

// Close is the mock implementation of the Close method.
func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0) //nolint:wrapcheck
}
