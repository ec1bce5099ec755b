package models

import (
	"time"

	"github.com/lib/pq"
)

// SystemActor is the actor recorded for scheduler-triggered cycles
const SystemActor = "system"

type AuditTrigger string

const (
	AuditTriggerManual     AuditTrigger = "manual"
	AuditTriggerScheduled  AuditTrigger = "scheduled"
	AuditTriggerForceCheck AuditTrigger = "force_check"
	AuditTriggerAutoFix    AuditTrigger = "auto_fix"
)

// AuditRecord is append-only: one per detection/fix cycle
type AuditRecord struct {
	ID             string         `json:"id"              db:"id"`
	GuildID        string         `json:"guild_id"        db:"guild_id"`
	ActorID        string         `json:"actor_id"        db:"actor_id"`
	Trigger        AuditTrigger   `json:"trigger"         db:"trigger"`
	IssuesFound    int            `json:"issues_found"    db:"issues_found"`
	Severity       string         `json:"severity"        db:"severity"`
	FixesApplied   int            `json:"fixes_applied"   db:"fixes_applied"`
	FixesFailed    int            `json:"fixes_failed"    db:"fixes_failed"`
	FailureReasons pq.StringArray `json:"failure_reasons" db:"failure_reasons"`
	// FixDetails holds one "kind: before -> after" line per applied fix
	FixDetails pq.StringArray `json:"fix_details" db:"fix_details"`
	// Fingerprint identifies the detected issue set; empty when nothing was found
	Fingerprint string `json:"fingerprint" db:"fingerprint"`
	// FullScan marks an unfiltered detection pass. Fix batches and role/channel
	// scoped diagnoses leave it unset and never feed the status or the trend.
	FullScan  bool      `json:"full_scan"  db:"full_scan"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Trend string

const (
	TrendImproving Trend = "improving"
	TrendWorsening Trend = "worsening"
	TrendStable    Trend = "stable"
	TrendUnknown   Trend = "unknown"
)

// AuditStats is the stats view over a guild's recent audit records
type AuditStats struct {
	GuildID           string         `json:"guild_id"`
	TotalChecks       int            `json:"total_checks"`
	CountsBySeverity  map[string]int `json:"counts_by_severity"`
	LastCheck         *time.Time     `json:"last_check,omitempty"`
	LastIssuesFound   int            `json:"last_issues_found"`
	TotalFixesApplied int            `json:"total_fixes_applied"`
	TotalFixesFailed  int            `json:"total_fixes_failed"`
	Trend             Trend          `json:"trend"`
}
