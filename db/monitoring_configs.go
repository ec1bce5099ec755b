package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	"mentionguard/core"
	dbtx "mentionguard/db/tx"
	"mentionguard/models"
)

type PostgresMonitoringConfigsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for monitoring_configs table
var monitoringConfigsColumns = []string{
	"id",
	"guild_id",
	"is_monitored",
	"auto_fix_enabled",
	"log_channel_id",
	"notify_admins",
	"check_interval_ms",
	"created_at",
	"updated_at",
}

func NewPostgresMonitoringConfigsRepository(db *sqlx.DB, schema string) *PostgresMonitoringConfigsRepository {
	return &PostgresMonitoringConfigsRepository{db: db, schema: schema}
}

func (r *PostgresMonitoringConfigsRepository) GetMonitoringConfigByGuildID(
	ctx context.Context,
	guildID string,
) (mo.Option[*models.GuildMonitoringConfig], error) {
	if guildID == "" {
		return mo.None[*models.GuildMonitoringConfig](), fmt.Errorf("guild ID cannot be empty")
	}

	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(monitoringConfigsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.monitoring_configs
		WHERE guild_id = $1`, columnsStr, r.schema)

	var cfg models.GuildMonitoringConfig
	err := db.GetContext(ctx, &cfg, query, guildID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.GuildMonitoringConfig](), nil
		}
		return mo.None[*models.GuildMonitoringConfig](), fmt.Errorf("failed to get monitoring config: %w", err)
	}

	return mo.Some(&cfg), nil
}

// UpsertMonitoringConfig stores the full config for a guild, keyed by guild ID
func (r *PostgresMonitoringConfigsRepository) UpsertMonitoringConfig(
	ctx context.Context,
	cfg *models.GuildMonitoringConfig,
) (*models.GuildMonitoringConfig, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	id := cfg.ID
	if id == "" {
		id = core.NewID("mcfg")
	}
	returningStr := strings.Join(monitoringConfigsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.monitoring_configs (
			id, guild_id, is_monitored, auto_fix_enabled, log_channel_id, notify_admins, check_interval_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (guild_id)
		DO UPDATE SET
			is_monitored = EXCLUDED.is_monitored,
			auto_fix_enabled = EXCLUDED.auto_fix_enabled,
			log_channel_id = EXCLUDED.log_channel_id,
			notify_admins = EXCLUDED.notify_admins,
			check_interval_ms = EXCLUDED.check_interval_ms,
			updated_at = NOW()
		RETURNING %s
	`, r.schema, returningStr)

	var stored models.GuildMonitoringConfig
	err := db.QueryRowxContext(
		ctx,
		query,
		id,
		cfg.GuildID,
		cfg.IsMonitored,
		cfg.AutoFixEnabled,
		cfg.LogChannelID,
		cfg.NotifyAdmins,
		cfg.CheckIntervalMs,
	).StructScan(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert monitoring config: %w", err)
	}

	return &stored, nil
}

func (r *PostgresMonitoringConfigsRepository) GetMonitoredConfigs(
	ctx context.Context,
) ([]*models.GuildMonitoringConfig, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(monitoringConfigsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.monitoring_configs
		WHERE is_monitored = TRUE
		ORDER BY guild_id`, columnsStr, r.schema)

	var configs []*models.GuildMonitoringConfig
	if err := db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("failed to get monitored configs: %w", err)
	}

	return configs, nil
}

func (r *PostgresMonitoringConfigsRepository) DeleteMonitoringConfig(ctx context.Context, guildID string) (bool, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	query := fmt.Sprintf(`DELETE FROM %s.monitoring_configs WHERE guild_id = $1`, r.schema)

	result, err := db.ExecContext(ctx, query, guildID)
	if err != nil {
		return false, fmt.Errorf("failed to delete monitoring config: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
