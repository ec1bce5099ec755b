package remediation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentionguard/models"
	"mentionguard/services/detector"
)

const testGuildID = "guild-1"

func testSnapshot() *models.GuildSnapshot {
	return &models.GuildSnapshot{
		GuildID:  testGuildID,
		Everyone: models.RoleRef{ID: testGuildID, Name: "@everyone", Permissions: models.MentionPermission},
		Roles: []models.RoleRef{
			{ID: "role-vip", Name: "VIP", Position: 1},
			{ID: "role-staff", Name: "Staff", Position: 12},
			{ID: "role-int", Name: "Integration", Position: 3, Managed: true, Mentionable: true},
		},
		Channels: []models.ChannelRef{
			{
				ID:   "chan-general",
				Name: "general",
				Overwrites: []models.ChannelOverwrite{
					{ChannelID: "chan-general", SubjectID: testGuildID, SubjectType: models.SubjectTypeEveryone, Deny: models.MentionPermission},
					{ChannelID: "chan-general", SubjectID: "role-vip", SubjectType: models.SubjectTypeRole, Deny: models.MentionPermission},
				},
				BotCanManage: true,
			},
			{
				ID:   "chan-locked",
				Name: "locked",
				Overwrites: []models.ChannelOverwrite{
					{ChannelID: "chan-locked", SubjectID: testGuildID, SubjectType: models.SubjectTypeEveryone, Deny: models.MentionPermission},
				},
				BotCanManage: false,
			},
		},
		BotTopPosition:    10,
		BotCanManageRoles: true,
	}
}

func TestPlanner_Plan(t *testing.T) {
	planner := NewPlanner("Mentions")
	snap := testSnapshot()
	issues := detector.Detect(snap, detector.Options{})

	plan := planner.Plan(snap, issues)

	require.Len(t, plan.Actions, 3)

	mentionable := plan.Actions[0]
	assert.Equal(t, models.FixKindSetRoleMentionable, mentionable.Kind)
	assert.Equal(t, "role-vip", mentionable.RoleID)
	assert.Equal(t, models.FixRiskVeryLow, mentionable.Risk)
	assert.True(t, mentionable.Reversible)

	everyoneDeny := plan.Actions[1]
	assert.Equal(t, models.FixKindClearEveryoneDeny, everyoneDeny.Kind)
	assert.Equal(t, "chan-general", everyoneDeny.ChannelID)
	assert.Equal(t, testGuildID, everyoneDeny.SubjectID)
	assert.Equal(t, models.FixRiskLow, everyoneDeny.Risk)
	assert.False(t, everyoneDeny.Reversible)
	assert.Contains(t, everyoneDeny.ReversalNote, "manually re-adding")

	roleDeny := plan.Actions[2]
	assert.Equal(t, models.FixKindClearRoleDeny, roleDeny.Kind)
	assert.Equal(t, "role-vip", roleDeny.SubjectID)
	assert.Equal(t, "Remove the mention deny for @VIP in #general", roleDeny.Description)

	for _, action := range plan.Actions {
		assert.NotEqual(t, "role-int", action.RoleID, "managed roles are never touched")
		assert.NotEqual(t, "chan-locked", action.ChannelID, "unmanageable channels are never touched")
		assert.NotEmpty(t, action.ID)
	}

	require.Len(t, plan.ManualActions, 2)
	assert.Equal(t, "Staff", plan.ManualActions[0].RoleName)
	assert.Equal(t, ReasonAboveBot, plan.ManualActions[0].Reason)
	assert.Equal(t, "locked", plan.ManualActions[1].ChannelName)
	assert.Equal(t, ReasonChannelNotManaged, plan.ManualActions[1].Reason)
}

func TestPlanner_InformationalTargets(t *testing.T) {
	planner := NewPlanner("Mentions")
	snap := testSnapshot()
	issues := []models.Issue{{
		Type:     models.IssueTypeNonMentionableRole,
		Severity: models.SeverityMedium,
		Targets:  []models.IssueTarget{{RoleID: "role-vip", RoleName: "VIP", ManualReason: detector.ReasonAboveActor}},
	}}

	plan := planner.Plan(snap, issues)
	assert.Empty(t, plan.Actions)
	require.Len(t, plan.ManualActions, 1)
	assert.Equal(t, detector.ReasonAboveActor, plan.ManualActions[0].Reason)
}

func TestPlanner_NoMentionRole(t *testing.T) {
	planner := NewPlanner("Pingable")
	issues := []models.Issue{{Type: models.IssueTypeNoMentionRole, Severity: models.SeverityLow, Targets: []models.IssueTarget{}}}

	t.Run("creates a mention role", func(t *testing.T) {
		plan := planner.Plan(testSnapshot(), issues)
		require.Len(t, plan.Actions, 1)
		assert.Equal(t, models.FixKindCreateMentionRole, plan.Actions[0].Kind)
		assert.Equal(t, "Pingable", plan.Actions[0].RoleName)
		assert.Equal(t, models.FixRiskVeryLow, plan.Actions[0].Risk)
		assert.True(t, plan.Actions[0].Reversible)
	})

	t.Run("manual when bot cannot manage roles", func(t *testing.T) {
		snap := testSnapshot()
		snap.BotCanManageRoles = false
		plan := planner.Plan(snap, issues)
		assert.Empty(t, plan.Actions)
		require.Len(t, plan.ManualActions, 1)
		assert.Equal(t, ReasonBotCannotManage, plan.ManualActions[0].Reason)
	})
}

func TestPlanner_VanishedTargets(t *testing.T) {
	planner := NewPlanner("Mentions")
	issues := []models.Issue{
		{Type: models.IssueTypeNonMentionableRole, Targets: []models.IssueTarget{{RoleID: "role-gone", RoleName: "Gone"}}},
		{Type: models.IssueTypeChannelBlocksMentions, Targets: []models.IssueTarget{{ChannelID: "chan-gone", ChannelName: "gone"}}},
	}

	plan := planner.Plan(testSnapshot(), issues)
	assert.Empty(t, plan.Actions)
	require.Len(t, plan.ManualActions, 2)
	for _, manual := range plan.ManualActions {
		assert.Equal(t, ReasonTargetGone, manual.Reason)
	}
}
