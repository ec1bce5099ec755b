package mentions

import (
	"context"

	"github.com/stretchr/testify/mock"

	"mentionguard/models"
)

// MockMentionsUseCase is a mock implementation of the mentions use case for handler tests
type MockMentionsUseCase struct {
	mock.Mock
}

func (m *MockMentionsUseCase) Diagnose(ctx context.Context, req DiagnoseRequest) (*models.Diagnosis, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Diagnosis), args.Error(1)
}

func (m *MockMentionsUseCase) ProposeFixes(ctx context.Context, guildID string, issues []models.Issue) (models.Plan, error) {
	args := m.Called(ctx, guildID, issues)
	return args.Get(0).(models.Plan), args.Error(1)
}

func (m *MockMentionsUseCase) ApplyFixes(
	ctx context.Context,
	guildID, actorID string,
	actions []models.FixAction,
) (models.BatchResult, error) {
	args := m.Called(ctx, guildID, actorID, actions)
	return args.Get(0).(models.BatchResult), args.Error(1)
}

func (m *MockMentionsUseCase) StartFixSession(ctx context.Context, req DiagnoseRequest) (*models.FixSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FixSession), args.Error(1)
}

func (m *MockMentionsUseCase) ConfirmFixSession(
	ctx context.Context,
	operationID, actorID string,
) (models.GateOperation, error) {
	args := m.Called(ctx, operationID, actorID)
	return args.Get(0).(models.GateOperation), args.Error(1)
}

func (m *MockMentionsUseCase) CancelFixSession(
	ctx context.Context,
	operationID, actorID string,
) (models.GateOperation, error) {
	args := m.Called(ctx, operationID, actorID)
	return args.Get(0).(models.GateOperation), args.Error(1)
}

func (m *MockMentionsUseCase) PendingFixSessions(guildID string) []models.GateOperation {
	args := m.Called(guildID)
	return args.Get(0).([]models.GateOperation)
}

func (m *MockMentionsUseCase) ConfigureMonitoring(
	ctx context.Context,
	guildID string,
	update models.MonitoringUpdate,
) (*models.GuildMonitoringConfig, error) {
	args := m.Called(ctx, guildID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuildMonitoringConfig), args.Error(1)
}

func (m *MockMentionsUseCase) GetMonitoringStatus(ctx context.Context, guildID string) (*models.MonitoringStatus, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.MonitoringStatus), args.Error(1)
}

func (m *MockMentionsUseCase) GetAuditStats(ctx context.Context, guildID string) (*models.AuditStats, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuditStats), args.Error(1)
}

func (m *MockMentionsUseCase) ForceCheck(ctx context.Context, guildID, actorID string) (*models.CheckResult, error) {
	args := m.Called(ctx, guildID, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CheckResult), args.Error(1)
}

func (m *MockMentionsUseCase) RemoveGuild(ctx context.Context, guildID string) error {
	args := m.Called(ctx, guildID)
	return args.Error(0)
}
