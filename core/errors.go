package core

import (
	"errors"
	"regexp"
)

// ErrNotFound is a sentinel error for "not found" cases
var ErrNotFound = errors.New("not found")

var (
	// ErrSnapshotUnavailable is returned when the guild's role/channel cache has not been populated yet.
	// Callers may retry once the cache is warm.
	ErrSnapshotUnavailable = errors.New("guild snapshot unavailable")
	// ErrTargetNotFound is returned when a role or channel vanished between detection and fix
	ErrTargetNotFound = errors.New("fix target not found")
	// ErrPermissionDenied is returned when the bot lacks the rights to perform a mutation
	ErrPermissionDenied = errors.New("permission denied")
	// ErrRateLimited is returned when the platform rate limited a mutation
	ErrRateLimited = errors.New("rate limited")

	ErrGateExpired        = errors.New("confirmation expired")
	ErrGateCancelled      = errors.New("confirmation cancelled")
	ErrGateNotFound       = errors.New("confirmation not found")
	ErrUnauthorizedActor  = errors.New("only the actor who started this operation can confirm or cancel it")
	ErrInvalidTransition  = errors.New("invalid confirmation transition")
	ErrCheckInProgress    = errors.New("check already running")
	ErrMonitoringDisabled = errors.New("monitoring is not configured for this guild")
	// ErrInvalidArgument wraps caller input that failed validation; its message is safe to show
	ErrInvalidArgument = errors.New("invalid argument")
)

// IsNotFoundError checks if an error is a "not found" error
// This function handles both the new ErrNotFound sentinel error and legacy string-based errors
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTargetNotFound) {
		return true
	}
	return notFoundRegex.MatchString(err.Error())
}

var notFoundRegex = regexp.MustCompile(`(?i)not found`)

// UserFacingReason maps an error to a short reason that is safe to show to a guild member.
// Raw internal errors never leave the engine.
func UserFacingReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTargetNotFound):
		return "target no longer exists"
	case errors.Is(err, ErrPermissionDenied):
		return "bot lacks permission - manual action required"
	case errors.Is(err, ErrRateLimited):
		return "rate limited by Discord"
	case errors.Is(err, ErrSnapshotUnavailable):
		return "guild data is still loading, try again shortly"
	case errors.Is(err, ErrGateExpired):
		return "confirmation expired, no changes were made"
	case errors.Is(err, ErrGateCancelled):
		return "operation cancelled, no changes were made"
	case errors.Is(err, ErrCheckInProgress):
		return "a check is already running for this server"
	case errors.Is(err, ErrMonitoringDisabled):
		return "monitoring is not enabled for this server"
	case errors.Is(err, ErrUnauthorizedActor):
		return "only the member who started this fix can confirm or cancel it"
	case errors.Is(err, ErrGateNotFound):
		return "this confirmation is no longer available"
	case errors.Is(err, ErrInvalidArgument):
		return err.Error()
	default:
		return "unexpected error"
	}
}
