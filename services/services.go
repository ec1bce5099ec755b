package services

import (
	"context"

	"github.com/samber/mo"

	"mentionguard/models"
)

// MonitoringConfigsService defines the per-guild monitoring configuration operations
type MonitoringConfigsService interface {
	GetMonitoringConfig(ctx context.Context, guildID string) (mo.Option[*models.GuildMonitoringConfig], error)
	ConfigureMonitoring(
		ctx context.Context,
		guildID string,
		update models.MonitoringUpdate,
	) (*models.GuildMonitoringConfig, error)
	GetMonitoredConfigs(ctx context.Context) ([]*models.GuildMonitoringConfig, error)
	DeleteMonitoringConfig(ctx context.Context, guildID string) error
}

// AuditService defines the append-only audit trail operations
type AuditService interface {
	RecordCycle(ctx context.Context, record *models.AuditRecord) (*models.AuditRecord, error)
	GetLatestFullScan(ctx context.Context, guildID string) (mo.Option[*models.AuditRecord], error)
	GetStats(ctx context.Context, guildID string) (*models.AuditStats, error)
}
