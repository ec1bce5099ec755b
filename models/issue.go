package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

type IssueType string

const (
	IssueTypeNonMentionableRole        IssueType = "NonMentionableRole"
	IssueTypeChannelBlocksMentions     IssueType = "ChannelBlocksMentions"
	IssueTypeChannelBlocksRoleMentions IssueType = "ChannelBlocksRoleMentions"
	IssueTypeNoMentionRole             IssueType = "NoMentionRole"
)

// IssueTypeOrder is the stable grouping order of a detection pass
var IssueTypeOrder = []IssueType{
	IssueTypeNonMentionableRole,
	IssueTypeChannelBlocksMentions,
	IssueTypeChannelBlocksRoleMentions,
	IssueTypeNoMentionRole,
}

type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	default:
		return "NONE"
	}
}

// ParseSeverity is the inverse of Severity.String; unknown values map to NONE
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(s) {
	case "LOW":
		return SeverityLow
	case "MEDIUM":
		return SeverityMedium
	case "HIGH":
		return SeverityHigh
	default:
		return SeverityNone
	}
}

// SeverityOf returns the fixed severity of an issue type
func SeverityOf(t IssueType) Severity {
	switch t {
	case IssueTypeChannelBlocksMentions:
		return SeverityHigh
	case IssueTypeNonMentionableRole, IssueTypeChannelBlocksRoleMentions:
		return SeverityMedium
	case IssueTypeNoMentionRole:
		return SeverityLow
	default:
		return SeverityNone
	}
}

// IssueTarget points at the role and/or channel an issue concerns
type IssueTarget struct {
	RoleID      string `json:"role_id,omitempty"`
	RoleName    string `json:"role_name,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
	ChannelName string `json:"channel_name,omitempty"`
	// ManualReason is set when the target is reported for information only and cannot be auto-fixed
	ManualReason string `json:"manual_reason,omitempty"`
}

// Informational reports whether the target must be handled manually
func (t IssueTarget) Informational() bool {
	return t.ManualReason != ""
}

// Issue is recomputed on every detection pass and never persisted
type Issue struct {
	Type     IssueType     `json:"type"`
	Targets  []IssueTarget `json:"targets"`
	Severity Severity      `json:"severity"`
}

// MaxSeverity returns the highest severity across issues, NONE when empty
func MaxSeverity(issues []Issue) Severity {
	max := SeverityNone
	for _, issue := range issues {
		if issue.Severity > max {
			max = issue.Severity
		}
	}
	return max
}

// CountFindings returns the number of findings across issues.
// An issue without targets (NoMentionRole) counts once.
func CountFindings(issues []Issue) int {
	total := 0
	for _, issue := range issues {
		total += max(1, len(issue.Targets))
	}
	return total
}

// Fingerprint identifies an issue list by type and target identity.
// Equal fingerprints mean nothing changed since the last pass.
func Fingerprint(issues []Issue) string {
	if len(issues) == 0 {
		return ""
	}

	h := sha256.New()
	for _, issue := range issues {
		h.Write([]byte(issue.Type))
		for _, target := range issue.Targets {
			h.Write([]byte{0})
			h.Write([]byte(target.RoleID))
			h.Write([]byte{1})
			h.Write([]byte(target.ChannelID))
			h.Write([]byte{2})
			h.Write([]byte(target.ManualReason))
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Diagnosis is the structured output of a detection pass
type Diagnosis struct {
	GuildID  string         `json:"guild_id"`
	Issues   []Issue        `json:"issues"`
	Severity Severity       `json:"severity"`
	Snapshot *GuildSnapshot `json:"-"`
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	*s = ParseSeverity(string(text))
	return nil
}
