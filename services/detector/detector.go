// Package detector turns a permission snapshot into a typed, ordered list of mention issues.
//
// Detection is deterministic and read-only: an unchanged snapshot always yields the same
// issues, grouped by type in models.IssueTypeOrder, with targets in a stable order.
package detector

import (
	"cmp"
	"slices"

	"github.com/samber/mo"

	"mentionguard/models"
)

const ReasonAboveActor = "role is at or above your highest role"

// Options scopes a detection pass
type Options struct {
	// RoleID limits role-scoped findings to a single role
	RoleID mo.Option[string]
	// ActorTopPosition is the invoking actor's highest role position; absent for system runs
	ActorTopPosition mo.Option[int]
	// ActorIsOwner lifts the position restriction
	ActorIsOwner bool
}

type checkFunc func(
	snap *models.GuildSnapshot,
	roles []models.RoleRef,
	channels []models.ChannelRef,
	opts Options,
) []models.IssueTarget

type check struct {
	issueType models.IssueType
	run       checkFunc
}

var checks = []check{
	{models.IssueTypeNonMentionableRole, nonMentionableRoles},
	{models.IssueTypeChannelBlocksMentions, channelsBlockingMentions},
	{models.IssueTypeChannelBlocksRoleMentions, channelsBlockingRoleMentions},
}

// Detect runs every check over the snapshot
func Detect(snap *models.GuildSnapshot, opts Options) []models.Issue {
	roles := sortedRoles(snap.Roles)
	channels := sortedChannels(snap.Channels)

	issues := []models.Issue{}
	for _, c := range checks {
		targets := c.run(snap, roles, channels, opts)
		if len(targets) == 0 {
			continue
		}
		issues = append(issues, models.Issue{
			Type:     c.issueType,
			Targets:  targets,
			Severity: models.SeverityOf(c.issueType),
		})
	}

	// guild-wide: role and channel filters do not apply
	if !anyRoleHoldsMentionPermission(snap) {
		issues = append(issues, models.Issue{
			Type:     models.IssueTypeNoMentionRole,
			Targets:  []models.IssueTarget{},
			Severity: models.SeverityOf(models.IssueTypeNoMentionRole),
		})
	}

	return issues
}

func nonMentionableRoles(
	_ *models.GuildSnapshot,
	roles []models.RoleRef,
	_ []models.ChannelRef,
	opts Options,
) []models.IssueTarget {
	var targets []models.IssueTarget
	for _, role := range roles {
		if role.Managed || role.Mentionable || !inScope(role.ID, opts) {
			continue
		}
		targets = append(targets, models.IssueTarget{
			RoleID:       role.ID,
			RoleName:     role.Name,
			ManualReason: actorReason(role, opts),
		})
	}
	return targets
}

func channelsBlockingMentions(
	snap *models.GuildSnapshot,
	_ []models.RoleRef,
	channels []models.ChannelRef,
	_ Options,
) []models.IssueTarget {
	var targets []models.IssueTarget
	for _, ch := range channels {
		ow, ok := ch.FindOverwrite(snap.Everyone.ID)
		if !ok || !ow.DeniesMentions() {
			continue
		}
		targets = append(targets, models.IssueTarget{
			ChannelID:   ch.ID,
			ChannelName: ch.Name,
		})
	}
	return targets
}

func channelsBlockingRoleMentions(
	snap *models.GuildSnapshot,
	roles []models.RoleRef,
	channels []models.ChannelRef,
	opts Options,
) []models.IssueTarget {
	rank := make(map[string]int, len(roles))
	for i, role := range roles {
		rank[role.ID] = i
	}

	var targets []models.IssueTarget
	for _, ch := range channels {
		var blocking []models.ChannelOverwrite
		for _, ow := range ch.Overwrites {
			if ow.SubjectType != models.SubjectTypeRole || ow.SubjectID == snap.Everyone.ID || !ow.DeniesMentions() {
				continue
			}
			if !inScope(ow.SubjectID, opts) {
				continue
			}
			blocking = append(blocking, ow)
		}

		// roles first in role order, overwrites of deleted roles last by id
		slices.SortFunc(blocking, func(a, b models.ChannelOverwrite) int {
			ra, okA := rank[a.SubjectID]
			rb, okB := rank[b.SubjectID]
			switch {
			case okA && okB:
				return cmp.Compare(ra, rb)
			case okA:
				return -1
			case okB:
				return 1
			default:
				return cmp.Compare(a.SubjectID, b.SubjectID)
			}
		})

		for _, ow := range blocking {
			target := models.IssueTarget{
				RoleID:      ow.SubjectID,
				RoleName:    ow.SubjectID,
				ChannelID:   ch.ID,
				ChannelName: ch.Name,
			}
			if role, ok := snap.FindRole(ow.SubjectID); ok {
				if role.Managed {
					continue
				}
				target.RoleName = role.Name
				target.ManualReason = actorReason(role, opts)
			}
			targets = append(targets, target)
		}
	}
	return targets
}

func anyRoleHoldsMentionPermission(snap *models.GuildSnapshot) bool {
	if snap.Everyone.HoldsMentionPermission() {
		return true
	}
	for _, role := range snap.Roles {
		if role.HoldsMentionPermission() {
			return true
		}
	}
	return false
}

func inScope(roleID string, opts Options) bool {
	return !opts.RoleID.IsPresent() || opts.RoleID.MustGet() == roleID
}

// actorReason marks roles positioned at or above the actor's highest role as manual-only
func actorReason(role models.RoleRef, opts Options) string {
	if opts.ActorIsOwner || !opts.ActorTopPosition.IsPresent() {
		return ""
	}
	if role.Position >= opts.ActorTopPosition.MustGet() {
		return ReasonAboveActor
	}
	return ""
}

func sortedRoles(roles []models.RoleRef) []models.RoleRef {
	sorted := slices.Clone(roles)
	slices.SortFunc(sorted, func(a, b models.RoleRef) int {
		if c := cmp.Compare(b.Position, a.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}

func sortedChannels(channels []models.ChannelRef) []models.ChannelRef {
	sorted := slices.Clone(channels)
	slices.SortFunc(sorted, func(a, b models.ChannelRef) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}
