package models

import "time"

type GateState string

const (
	GateStateProposed               GateState = "proposed"
	GateStateAwaitingInitialConfirm GateState = "awaiting_initial_confirm"
	GateStateAwaitingFinalConfirm   GateState = "awaiting_final_confirm"
	GateStateApplied                GateState = "applied"
	GateStateCancelled              GateState = "cancelled"
	GateStateExpired                GateState = "expired"
)

// IsTerminal reports whether no further transition is possible
func (s GateState) IsTerminal() bool {
	return s == GateStateApplied || s == GateStateCancelled || s == GateStateExpired
}

// GateOperation is a read-only view of a pending confirmation
type GateOperation struct {
	ID        string    `json:"id"`
	GuildID   string    `json:"guild_id"`
	ActorID   string    `json:"actor_id"`
	State     GateState `json:"state"`
	Plan      Plan      `json:"plan"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	// Result is set once the operation reached Applied
	Result *BatchResult `json:"result,omitempty"`
}

// CheckResult is the outcome of one detect/(auto-fix) cycle
type CheckResult struct {
	GuildID   string       `json:"guild_id"`
	Trigger   AuditTrigger `json:"trigger"`
	Diagnosis *Diagnosis   `json:"diagnosis"`
	Plan      *Plan        `json:"plan,omitempty"`
	Fixes     *BatchResult `json:"fixes,omitempty"`
	// Changed is false when the detected issues match what the previous cycle left behind
	Changed bool `json:"changed"`
}
