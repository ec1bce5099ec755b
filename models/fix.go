package models

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strings"
)

type FixKind string

const (
	FixKindSetRoleMentionable FixKind = "set_role_mentionable"
	FixKindClearEveryoneDeny  FixKind = "clear_everyone_mention_deny"
	FixKindClearRoleDeny      FixKind = "clear_role_mention_deny"
	FixKindCreateMentionRole  FixKind = "create_mention_role"
)

type FixRisk string

const (
	FixRiskVeryLow FixRisk = "VERY_LOW"
	FixRiskLow     FixRisk = "LOW"
	FixRiskMedium  FixRisk = "MEDIUM"
)

// FixAction is a proposed, reversible change produced by the remediation planner
type FixAction struct {
	ID           string    `json:"id"`
	IssueType    IssueType `json:"issue_type"`
	Kind         FixKind   `json:"kind"`
	Description  string    `json:"description"`
	Risk         FixRisk   `json:"risk"`
	Reversible   bool      `json:"reversible"`
	ReversalNote string    `json:"reversal_note"`

	GuildID     string `json:"guild_id"`
	RoleID      string `json:"role_id,omitempty"`
	RoleName    string `json:"role_name,omitempty"`
	ChannelID   string `json:"channel_id,omitempty"`
	ChannelName string `json:"channel_name,omitempty"`
	// SubjectID is the overwrite subject for channel fixes (@everyone is the guild ID)
	SubjectID string `json:"subject_id,omitempty"`
}

// ManualAction is an issue target the engine will not touch
type ManualAction struct {
	IssueType   IssueType `json:"issue_type"`
	RoleName    string    `json:"role_name,omitempty"`
	ChannelName string    `json:"channel_name,omitempty"`
	Reason      string    `json:"reason"`
}

// Plan is the planner output for a set of issues
type Plan struct {
	GuildID       string         `json:"guild_id"`
	Actions       []FixAction    `json:"actions"`
	ManualActions []ManualAction `json:"manual_actions"`
}

// FixResult is the outcome of executing one FixAction
type FixResult struct {
	ActionID string    `json:"action_id"`
	Type     IssueType `json:"type"`
	Kind     FixKind   `json:"kind"`
	Success  bool      `json:"success"`
	// Error is a short user-safe reason, never a raw internal error
	Error          string `json:"error,omitempty"`
	ManualRequired bool   `json:"manual_required,omitempty"`
	Before         string `json:"before,omitempty"`
	After          string `json:"after,omitempty"`
}

// BatchResult summarises a best-effort batch: failures never abort the batch
type BatchResult struct {
	SuccessCount int         `json:"success_count"`
	ErrorCount   int         `json:"error_count"`
	Results      []FixResult `json:"results"`
}

// MaxReportedReasons bounds the failure reasons surfaced to users
const MaxReportedReasons = 5

// FailureReasons returns a bounded list of failure reasons
func (b *BatchResult) FailureReasons() []string {
	reasons := []string{}
	for _, r := range b.Results {
		if r.Success {
			continue
		}
		if len(reasons) == MaxReportedReasons {
			break
		}
		reasons = append(reasons, r.Error)
	}
	return reasons
}

// FailureFingerprint identifies the failed part of a batch by what each action targeted and why it
// failed. Action IDs are fresh per plan, so the same failure on two cycles yields the same value.
// Empty when nothing failed.
func FailureFingerprint(actions []FixAction, batch BatchResult) string {
	byID := make(map[string]FixAction, len(actions))
	for _, action := range actions {
		byID[action.ID] = action
	}

	failures := []string{}
	for _, r := range batch.Results {
		if r.Success {
			continue
		}
		action := byID[r.ActionID]
		failures = append(failures, strings.Join(
			[]string{string(r.Kind), action.RoleID, action.ChannelID, action.SubjectID, r.Error},
			"\x00",
		))
	}
	if len(failures) == 0 {
		return ""
	}
	slices.Sort(failures)

	h := sha256.New()
	for _, failure := range failures {
		h.Write([]byte(failure))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
