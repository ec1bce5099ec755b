package remediation

import (
	"fmt"
	"log"

	"mentionguard/core"
	"mentionguard/models"
)

const (
	ReasonManagedRole       = "role is managed by an integration"
	ReasonAboveBot          = "role is at or above the bot's highest role"
	ReasonBotCannotManage   = "bot lacks Manage Roles permission"
	ReasonChannelNotManaged = "bot cannot manage this channel's permissions"
	ReasonTargetGone        = "target no longer exists"
)

const (
	noteRevertMentionable = "set the role back to non-mentionable"
	noteReAddDeny         = "can only be reverted by manually re-adding the mention deny rule"
	noteDeleteRole        = "delete the created role"
)

// Planner maps detected issues to reversible fix actions.
// It never proposes a fix touching a managed role or a channel the bot cannot manage.
type Planner struct {
	mentionRoleName string
}

func NewPlanner(mentionRoleName string) *Planner {
	return &Planner{mentionRoleName: mentionRoleName}
}

// Plan builds the fix list for the given issues against the snapshot they were detected on
func (p *Planner) Plan(snap *models.GuildSnapshot, issues []models.Issue) models.Plan {
	plan := models.Plan{
		GuildID:       snap.GuildID,
		Actions:       []models.FixAction{},
		ManualActions: []models.ManualAction{},
	}

	for _, issue := range issues {
		switch issue.Type {
		case models.IssueTypeNonMentionableRole:
			for _, target := range issue.Targets {
				p.planRoleMentionable(snap, issue.Type, target, &plan)
			}
		case models.IssueTypeChannelBlocksMentions, models.IssueTypeChannelBlocksRoleMentions:
			for _, target := range issue.Targets {
				p.planChannelOverwrite(snap, issue.Type, target, &plan)
			}
		case models.IssueTypeNoMentionRole:
			p.planMentionRole(snap, &plan)
		default:
			log.Printf("⚠️ No remediation known for issue type %s", issue.Type)
		}
	}

	return plan
}

func (p *Planner) planRoleMentionable(
	snap *models.GuildSnapshot,
	issueType models.IssueType,
	target models.IssueTarget,
	plan *models.Plan,
) {
	manual := func(reason string) {
		plan.ManualActions = append(plan.ManualActions, models.ManualAction{
			IssueType: issueType,
			RoleName:  target.RoleName,
			Reason:    reason,
		})
	}

	if target.Informational() {
		manual(target.ManualReason)
		return
	}

	role, ok := snap.FindRole(target.RoleID)
	if !ok {
		manual(ReasonTargetGone)
		return
	}
	if reason := roleBlocker(snap, role); reason != "" {
		manual(reason)
		return
	}

	plan.Actions = append(plan.Actions, models.FixAction{
		ID:           core.NewID("fix"),
		IssueType:    issueType,
		Kind:         models.FixKindSetRoleMentionable,
		Description:  fmt.Sprintf("Make role @%s mentionable", role.Name),
		Risk:         models.FixRiskVeryLow,
		Reversible:   true,
		ReversalNote: noteRevertMentionable,
		GuildID:      snap.GuildID,
		RoleID:       role.ID,
		RoleName:     role.Name,
	})
}

func (p *Planner) planChannelOverwrite(
	snap *models.GuildSnapshot,
	issueType models.IssueType,
	target models.IssueTarget,
	plan *models.Plan,
) {
	manual := func(reason string) {
		plan.ManualActions = append(plan.ManualActions, models.ManualAction{
			IssueType:   issueType,
			RoleName:    target.RoleName,
			ChannelName: target.ChannelName,
			Reason:      reason,
		})
	}

	if target.Informational() {
		manual(target.ManualReason)
		return
	}

	channel, ok := findChannel(snap, target.ChannelID)
	if !ok {
		manual(ReasonTargetGone)
		return
	}
	if !channel.BotCanManage {
		manual(ReasonChannelNotManaged)
		return
	}

	action := models.FixAction{
		ID:           core.NewID("fix"),
		IssueType:    issueType,
		Risk:         models.FixRiskLow,
		Reversible:   false,
		ReversalNote: noteReAddDeny,
		GuildID:      snap.GuildID,
		ChannelID:    channel.ID,
		ChannelName:  channel.Name,
	}

	if issueType == models.IssueTypeChannelBlocksMentions {
		action.Kind = models.FixKindClearEveryoneDeny
		action.SubjectID = snap.Everyone.ID
		action.Description = fmt.Sprintf("Remove the @everyone mention deny in #%s", channel.Name)
	} else {
		// deleted roles have no position to check; their overwrite is still removable
		if role, ok := snap.FindRole(target.RoleID); ok && role.Managed {
			manual(ReasonManagedRole)
			return
		}
		action.Kind = models.FixKindClearRoleDeny
		action.SubjectID = target.RoleID
		action.RoleID = target.RoleID
		action.RoleName = target.RoleName
		action.Description = fmt.Sprintf("Remove the mention deny for @%s in #%s", target.RoleName, channel.Name)
	}

	plan.Actions = append(plan.Actions, action)
}

func (p *Planner) planMentionRole(snap *models.GuildSnapshot, plan *models.Plan) {
	if !snap.BotCanManageRoles {
		plan.ManualActions = append(plan.ManualActions, models.ManualAction{
			IssueType: models.IssueTypeNoMentionRole,
			Reason:    ReasonBotCannotManage,
		})
		return
	}

	plan.Actions = append(plan.Actions, models.FixAction{
		ID:           core.NewID("fix"),
		IssueType:    models.IssueTypeNoMentionRole,
		Kind:         models.FixKindCreateMentionRole,
		Description:  fmt.Sprintf("Create role @%s with the mention permission", p.mentionRoleName),
		Risk:         models.FixRiskVeryLow,
		Reversible:   true,
		ReversalNote: noteDeleteRole,
		GuildID:      snap.GuildID,
		RoleName:     p.mentionRoleName,
	})
}

func roleBlocker(snap *models.GuildSnapshot, role models.RoleRef) string {
	switch {
	case role.Managed:
		return ReasonManagedRole
	case !snap.BotCanManageRoles:
		return ReasonBotCannotManage
	case role.Position >= snap.BotTopPosition:
		return ReasonAboveBot
	default:
		return ""
	}
}

func findChannel(snap *models.GuildSnapshot, channelID string) (models.ChannelRef, bool) {
	for _, ch := range snap.Channels {
		if ch.ID == channelID {
			return ch, true
		}
	}
	return models.ChannelRef{}, false
}
