package monitoringconfigs

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	"mentionguard/core"
	"mentionguard/db"
	dbtx "mentionguard/db/tx"
	"mentionguard/models"
)

type MonitoringConfigsService struct {
	dbConn                *sqlx.DB
	monitoringConfigsRepo *db.PostgresMonitoringConfigsRepository
}

func NewMonitoringConfigsService(
	dbConn *sqlx.DB,
	repo *db.PostgresMonitoringConfigsRepository,
) *MonitoringConfigsService {
	return &MonitoringConfigsService{dbConn: dbConn, monitoringConfigsRepo: repo}
}

func (s *MonitoringConfigsService) GetMonitoringConfig(
	ctx context.Context,
	guildID string,
) (mo.Option[*models.GuildMonitoringConfig], error) {
	maybeCfg, err := s.monitoringConfigsRepo.GetMonitoringConfigByGuildID(ctx, guildID)
	if err != nil {
		return mo.None[*models.GuildMonitoringConfig](), fmt.Errorf("failed to get monitoring config: %w", err)
	}
	return maybeCfg, nil
}

// ConfigureMonitoring merges the partial update into the guild's config, creating it if needed
func (s *MonitoringConfigsService) ConfigureMonitoring(
	ctx context.Context,
	guildID string,
	update models.MonitoringUpdate,
) (*models.GuildMonitoringConfig, error) {
	log.Printf("📋 Starting to configure monitoring for guild %s", guildID)
	if err := ValidateUpdate(update); err != nil {
		return nil, err
	}

	var stored *models.GuildMonitoringConfig
	err := dbtx.RunInTransaction(ctx, s.dbConn, func(ctx context.Context) error {
		maybeCfg, err := s.monitoringConfigsRepo.GetMonitoringConfigByGuildID(ctx, guildID)
		if err != nil {
			return fmt.Errorf("failed to get monitoring config: %w", err)
		}
		cfg := maybeCfg.OrElse(&models.GuildMonitoringConfig{GuildID: guildID})
		ApplyUpdate(cfg, update)

		stored, err = s.monitoringConfigsRepo.UpsertMonitoringConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to store monitoring config: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf(
		"📋 Completed successfully - configured monitoring for guild %s (monitored=%t, autoFix=%t)",
		guildID,
		stored.IsMonitored,
		stored.AutoFixEnabled,
	)
	return stored, nil
}

func (s *MonitoringConfigsService) GetMonitoredConfigs(ctx context.Context) ([]*models.GuildMonitoringConfig, error) {
	configs, err := s.monitoringConfigsRepo.GetMonitoredConfigs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get monitored configs: %w", err)
	}
	return configs, nil
}

func (s *MonitoringConfigsService) DeleteMonitoringConfig(ctx context.Context, guildID string) error {
	log.Printf("📋 Starting to delete monitoring config for guild %s", guildID)
	deleted, err := s.monitoringConfigsRepo.DeleteMonitoringConfig(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to delete monitoring config: %w", err)
	}
	if !deleted {
		log.Printf("📋 No monitoring config stored for guild %s", guildID)
		return nil
	}

	log.Printf("📋 Completed successfully - deleted monitoring config for guild %s", guildID)
	return nil
}

// ValidateUpdate rejects updates the scheduler could not honour
func ValidateUpdate(update models.MonitoringUpdate) error {
	if update.CheckInterval != nil && *update.CheckInterval < models.MinCheckInterval {
		return fmt.Errorf(
			"%w: check interval must be at least %s",
			core.ErrInvalidArgument,
			models.MinCheckInterval,
		)
	}
	return nil
}

// ApplyUpdate copies every set field of the update onto cfg
func ApplyUpdate(cfg *models.GuildMonitoringConfig, update models.MonitoringUpdate) {
	if update.IsMonitored != nil {
		cfg.IsMonitored = *update.IsMonitored
	}
	if update.AutoFixEnabled != nil {
		cfg.AutoFixEnabled = *update.AutoFixEnabled
	}
	if update.NotifyAdmins != nil {
		cfg.NotifyAdmins = *update.NotifyAdmins
	}
	if update.LogChannelID != nil {
		cfg.LogChannelID = sql.NullString{String: *update.LogChannelID, Valid: *update.LogChannelID != ""}
	}
	if update.CheckInterval != nil {
		cfg.CheckIntervalMs = update.CheckInterval.Milliseconds()
	}
}
