package models

import (
	"database/sql"
	"time"
)

// GuildMonitoringConfig lives as long as the bot is a member of the guild
type GuildMonitoringConfig struct {
	ID              string         `json:"id"                db:"id"`
	GuildID         string         `json:"guild_id"          db:"guild_id"`
	IsMonitored     bool           `json:"is_monitored"      db:"is_monitored"`
	AutoFixEnabled  bool           `json:"auto_fix_enabled"  db:"auto_fix_enabled"`
	LogChannelID    sql.NullString `json:"log_channel_id"    db:"log_channel_id"`
	NotifyAdmins    bool           `json:"notify_admins"     db:"notify_admins"`
	CheckIntervalMs int64          `json:"check_interval_ms" db:"check_interval_ms"`
	CreatedAt       time.Time      `json:"created_at"        db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"        db:"updated_at"`
}

// CheckInterval returns the configured interval, or fallback when unset
func (c *GuildMonitoringConfig) CheckInterval(fallback time.Duration) time.Duration {
	if c.CheckIntervalMs <= 0 {
		return fallback
	}
	return time.Duration(c.CheckIntervalMs) * time.Millisecond
}

// MinCheckInterval protects the Discord API from overly aggressive schedules
const MinCheckInterval = time.Minute

// MonitoringUpdate is a partial update applied by configureMonitoring; nil fields are left unchanged
type MonitoringUpdate struct {
	IsMonitored    *bool
	AutoFixEnabled *bool
	// LogChannelID set to an empty string clears the log channel
	LogChannelID  *string
	NotifyAdmins  *bool
	CheckInterval *time.Duration
}

// MonitoringStatus is the answer to getMonitoringStatus
type MonitoringStatus struct {
	Config     *GuildMonitoringConfig `json:"config"`
	LastCheck  *time.Time             `json:"last_check,omitempty"`
	IssueCount int                    `json:"issue_count"`
	Severity   Severity               `json:"severity"`
	Running    bool                   `json:"running"`
}
