package audit

import (
	"context"
	"fmt"
	"log"

	"github.com/samber/mo"

	"mentionguard/db"
	"mentionguard/models"
)

// StatsWindow is the number of most recent records the stats query looks at
const StatsWindow = 20

type AuditService struct {
	auditRecordsRepo *db.PostgresAuditRecordsRepository
}

func NewAuditService(repo *db.PostgresAuditRecordsRepository) *AuditService {
	return &AuditService{auditRecordsRepo: repo}
}

// RecordCycle appends one record for a detection cycle
func (s *AuditService) RecordCycle(ctx context.Context, record *models.AuditRecord) (*models.AuditRecord, error) {
	stored, err := s.auditRecordsRepo.CreateAuditRecord(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to record audit entry: %w", err)
	}

	log.Printf(
		"📋 Audit %s: guild %s, trigger %s, %d issues (%s), %d fixes applied, %d failed",
		stored.ID,
		stored.GuildID,
		stored.Trigger,
		stored.IssuesFound,
		stored.Severity,
		stored.FixesApplied,
		stored.FixesFailed,
	)
	return stored, nil
}

// GetLatestFullScan returns the newest unfiltered detection record, the source of the monitoring status
func (s *AuditService) GetLatestFullScan(ctx context.Context, guildID string) (mo.Option[*models.AuditRecord], error) {
	maybeRecord, err := s.auditRecordsRepo.GetLatestFullScanRecord(ctx, guildID)
	if err != nil {
		return mo.None[*models.AuditRecord](), fmt.Errorf("failed to get latest full scan record: %w", err)
	}
	return maybeRecord, nil
}

func (s *AuditService) GetStats(ctx context.Context, guildID string) (*models.AuditStats, error) {
	records, err := s.auditRecordsRepo.GetRecentAuditRecords(ctx, guildID, StatsWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit records: %w", err)
	}
	return ComputeStats(guildID, records), nil
}

// ComputeStats summarises records ordered newest first. Fix totals count every record;
// checks, severities and the trend only count full scans.
func ComputeStats(guildID string, records []*models.AuditRecord) *models.AuditStats {
	scans := fullScans(records)
	stats := &models.AuditStats{
		GuildID:          guildID,
		TotalChecks:      len(scans),
		CountsBySeverity: map[string]int{},
		Trend:            TrendOf(scans),
	}
	for _, sev := range []models.Severity{
		models.SeverityNone,
		models.SeverityLow,
		models.SeverityMedium,
		models.SeverityHigh,
	} {
		stats.CountsBySeverity[sev.String()] = 0
	}

	for _, r := range records {
		stats.TotalFixesApplied += r.FixesApplied
		stats.TotalFixesFailed += r.FixesFailed
	}
	for _, r := range scans {
		stats.CountsBySeverity[models.ParseSeverity(r.Severity).String()]++
	}

	if len(scans) > 0 {
		latest := scans[0]
		stats.LastCheck = &latest.CreatedAt
		stats.LastIssuesFound = latest.IssuesFound
	}
	return stats
}

func fullScans(records []*models.AuditRecord) []*models.AuditRecord {
	scans := make([]*models.AuditRecord, 0, len(records))
	for _, r := range records {
		if r.FullScan {
			scans = append(scans, r)
		}
	}
	return scans
}

// TrendOf compares the latest issue count with the mean of the earlier records
func TrendOf(records []*models.AuditRecord) models.Trend {
	if len(records) < 2 {
		return models.TrendUnknown
	}

	previous := records[1:]
	total := 0
	for _, r := range previous {
		total += r.IssuesFound
	}

	// compare latest*n with the sum to stay in integers
	latest := records[0].IssuesFound * len(previous)
	switch {
	case latest < total:
		return models.TrendImproving
	case latest > total:
		return models.TrendWorsening
	default:
		return models.TrendStable
	}
}
