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

type PostgresAuditRecordsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for audit_records table
var auditRecordsColumns = []string{
	"id",
	"guild_id",
	"actor_id",
	"trigger",
	"issues_found",
	"severity",
	"fixes_applied",
	"fixes_failed",
	"failure_reasons",
	"fix_details",
	"fingerprint",
	"full_scan",
	"created_at",
}

func NewPostgresAuditRecordsRepository(db *sqlx.DB, schema string) *PostgresAuditRecordsRepository {
	return &PostgresAuditRecordsRepository{db: db, schema: schema}
}

// CreateAuditRecord appends a record; records are never updated
func (r *PostgresAuditRecordsRepository) CreateAuditRecord(
	ctx context.Context,
	record *models.AuditRecord,
) (*models.AuditRecord, error) {
	db := dbtx.GetTransactional(ctx, r.db)

	record.ID = core.NewID("aud")
	if record.FailureReasons == nil {
		record.FailureReasons = []string{}
	}
	if record.FixDetails == nil {
		record.FixDetails = []string{}
	}
	returningStr := strings.Join(auditRecordsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.audit_records (
			id, guild_id, actor_id, trigger, issues_found, severity,
			fixes_applied, fixes_failed, failure_reasons, fix_details, fingerprint, full_scan
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING %s
	`, r.schema, returningStr)

	var stored models.AuditRecord
	err := db.QueryRowxContext(
		ctx,
		query,
		record.ID,
		record.GuildID,
		record.ActorID,
		record.Trigger,
		record.IssuesFound,
		record.Severity,
		record.FixesApplied,
		record.FixesFailed,
		record.FailureReasons,
		record.FixDetails,
		record.Fingerprint,
		record.FullScan,
	).StructScan(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to create audit record: %w", err)
	}

	return &stored, nil
}

// GetRecentAuditRecords returns up to limit records, newest first
func (r *PostgresAuditRecordsRepository) GetRecentAuditRecords(
	ctx context.Context,
	guildID string,
	limit int,
) ([]*models.AuditRecord, error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(auditRecordsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.audit_records
		WHERE guild_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, columnsStr, r.schema)

	records := []*models.AuditRecord{}
	if err := db.SelectContext(ctx, &records, query, guildID, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent audit records: %w", err)
	}

	return records, nil
}

// GetLatestFullScanRecord returns the newest unfiltered detection record
func (r *PostgresAuditRecordsRepository) GetLatestFullScanRecord(
	ctx context.Context,
	guildID string,
) (mo.Option[*models.AuditRecord], error) {
	db := dbtx.GetTransactional(ctx, r.db)
	columnsStr := strings.Join(auditRecordsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.audit_records
		WHERE guild_id = $1 AND full_scan
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, columnsStr, r.schema)

	var record models.AuditRecord
	err := db.GetContext(ctx, &record, query, guildID)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.AuditRecord](), nil
		}
		return mo.None[*models.AuditRecord](), fmt.Errorf("failed to get latest full scan record: %w", err)
	}

	return mo.Some(&record), nil
}
