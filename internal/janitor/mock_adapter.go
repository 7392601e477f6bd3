package janitor

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jradxl/idrived2backend/internal/parser"
	"github.com/jradxl/idrived2backend/internal/storage"
)

var _ storage.Adapter = (*MockAdapter)(nil) // Ensure MockAdapter implements storage.Adapter

type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Connect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAdapter) Put(ctx context.Context, localPath, remoteName string) error {
	args := m.Called(ctx, localPath, remoteName)
	return args.Error(0)
}

func (m *MockAdapter) Get(ctx context.Context, remoteName, localPath string) error {
	args := m.Called(ctx, remoteName, localPath)
	return args.Error(0)
}

func (m *MockAdapter) List(ctx context.Context) ([]parser.Entry, error) {
	args := m.Called(ctx)
	return args.Get(0).([]parser.Entry), args.Error(1)
}

func (m *MockAdapter) Delete(ctx context.Context, remoteName string) error {
	args := m.Called(ctx, remoteName)
	return args.Error(0)
}

func (m *MockAdapter) DeleteMany(ctx context.Context, remoteNames []string) error {
	args := m.Called(ctx, remoteNames)
	return args.Error(0)
}

func (m *MockAdapter) PurgeTrash(ctx context.Context, remoteName string) error {
	args := m.Called(ctx, remoteName)
	return args.Error(0)
}

func (m *MockAdapter) Query(ctx context.Context, remoteName string) (int64, error) {
	args := m.Called(ctx, remoteName)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdapter) QueryMany(ctx context.Context, remoteNames []string) (map[string]int64, error) {
	args := m.Called(ctx, remoteNames)
	return args.Get(0).(map[string]int64), args.Error(1)
}

func (m *MockAdapter) Close() error {
	args := m.Called()
	return args.Error(0)
}
