package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-curriculum/internal/curriculum"
	"github.com/phrazzld/scry-curriculum/internal/domain"
	"github.com/phrazzld/scry-curriculum/internal/service"
	"github.com/stretchr/testify/mock"
)

// MockWorkspaceManager is a testify mock of service.WorkspaceManager.
type MockWorkspaceManager struct {
	mock.Mock
}

var _ service.WorkspaceManager = (*MockWorkspaceManager)(nil)

func (m *MockWorkspaceManager) Get(ctx context.Context, key domain.WorkspaceKey) (*curriculum.QueueService, error) {
	args := m.Called(ctx, key)
	svc, _ := args.Get(0).(*curriculum.QueueService)
	return svc, args.Error(1)
}

func (m *MockWorkspaceManager) Clear(ctx context.Context, key domain.WorkspaceKey) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockWorkspaceManager) GetNote(
	ctx context.Context,
	key domain.WorkspaceKey,
	itemID uuid.UUID,
) (*domain.Note, error) {
	args := m.Called(ctx, key, itemID)
	note, _ := args.Get(0).(*domain.Note)
	return note, args.Error(1)
}

func (m *MockWorkspaceManager) Workspaces(ctx context.Context, ownerID uuid.UUID) ([]domain.WorkspaceKey, error) {
	args := m.Called(ctx, ownerID)
	keys, _ := args.Get(0).([]domain.WorkspaceKey)
	return keys, args.Error(1)
}

func (m *MockWorkspaceManager) Shutdown(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
