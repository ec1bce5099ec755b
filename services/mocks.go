package services

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"mentionguard/models"
)

// MockMonitoringConfigsService is a mock implementation of MonitoringConfigsService
type MockMonitoringConfigsService struct {
	mock.Mock
}

func (m *MockMonitoringConfigsService) GetMonitoringConfig(
	ctx context.Context,
	guildID string,
) (mo.Option[*models.GuildMonitoringConfig], error) {
	args := m.Called(ctx, guildID)
	return args.Get(0).(mo.Option[*models.GuildMonitoringConfig]), args.Error(1)
}

func (m *MockMonitoringConfigsService) ConfigureMonitoring(
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

func (m *MockMonitoringConfigsService) GetMonitoredConfigs(ctx context.Context) ([]*models.GuildMonitoringConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.GuildMonitoringConfig), args.Error(1)
}

func (m *MockMonitoringConfigsService) DeleteMonitoringConfig(ctx context.Context, guildID string) error {
	args := m.Called(ctx, guildID)
	return args.Error(0)
}

// MockAuditService is a mock implementation of AuditService
type MockAuditService struct {
	mock.Mock
}

func (m *MockAuditService) RecordCycle(ctx context.Context, record *models.AuditRecord) (*models.AuditRecord, error) {
	args := m.Called(ctx, record)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuditRecord), args.Error(1)
}

func (m *MockAuditService) GetLatestFullScan(ctx context.Context, guildID string) (mo.Option[*models.AuditRecord], error) {
	args := m.Called(ctx, guildID)
	return args.Get(0).(mo.Option[*models.AuditRecord]), args.Error(1)
}

func (m *MockAuditService) GetStats(ctx context.Context, guildID string) (*models.AuditStats, error) {
	args := m.Called(ctx, guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuditStats), args.Error(1)
}
