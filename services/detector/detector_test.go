package detector

import (
	"fmt"
	"testing"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentionguard/models"
)

const testGuildID = "guild-1"

func everyone(perms int64) models.RoleRef {
	return models.RoleRef{ID: testGuildID, Name: "@everyone", Permissions: perms}
}

// scenarioA: roles [@everyone, VIP(non-mentionable), Mod]; #general denies mentions for @everyone
func scenarioA() *models.GuildSnapshot {
	return &models.GuildSnapshot{
		GuildID:  testGuildID,
		Everyone: everyone(0),
		Roles: []models.RoleRef{
			{ID: "role-vip", Name: "VIP", Position: 1, Mentionable: false},
			{ID: "role-mod", Name: "Mod", Position: 2, Mentionable: true, Permissions: models.MentionPermission},
		},
		Channels: []models.ChannelRef{
			{
				ID:   "chan-general",
				Name: "general",
				Overwrites: []models.ChannelOverwrite{
					{ChannelID: "chan-general", SubjectID: testGuildID, SubjectType: models.SubjectTypeEveryone, Deny: models.MentionPermission},
				},
				BotCanManage: true,
			},
		},
		BotTopPosition:    10,
		BotCanManageRoles: true,
	}
}

func TestDetect_ScenarioA(t *testing.T) {
	issues := Detect(scenarioA(), Options{})

	require.Len(t, issues, 2)
	assert.Equal(t, models.IssueTypeNonMentionableRole, issues[0].Type)
	require.Len(t, issues[0].Targets, 1)
	assert.Equal(t, "VIP", issues[0].Targets[0].RoleName)
	assert.Equal(t, models.SeverityMedium, issues[0].Severity)

	assert.Equal(t, models.IssueTypeChannelBlocksMentions, issues[1].Type)
	require.Len(t, issues[1].Targets, 1)
	assert.Equal(t, "general", issues[1].Targets[0].ChannelName)
	assert.Equal(t, models.SeverityHigh, issues[1].Severity)

	assert.Equal(t, models.SeverityHigh, models.MaxSeverity(issues))
}

func TestDetect_ScenarioB(t *testing.T) {
	for _, roleCount := range []int{0, 1, 25} {
		t.Run(fmt.Sprintf("%d roles", roleCount), func(t *testing.T) {
			snap := &models.GuildSnapshot{GuildID: testGuildID, Everyone: everyone(0)}
			for i := 0; i < roleCount; i++ {
				snap.Roles = append(snap.Roles, models.RoleRef{
					ID:          fmt.Sprintf("role-%d", i),
					Name:        fmt.Sprintf("Role %d", i),
					Position:    i + 1,
					Mentionable: true,
				})
			}
			snap.Channels = []models.ChannelRef{{ID: "chan-a", Name: "a"}, {ID: "chan-b", Name: "b"}}

			issues := Detect(snap, Options{})
			require.Len(t, issues, 1)
			assert.Equal(t, models.IssueTypeNoMentionRole, issues[0].Type)
			assert.Equal(t, models.SeverityLow, issues[0].Severity)
		})
	}
}

func TestDetect_Idempotence(t *testing.T) {
	snap := scenarioA()
	snap.Roles = append(snap.Roles,
		models.RoleRef{ID: "role-b", Name: "B", Position: 1},
		models.RoleRef{ID: "role-a", Name: "A", Position: 1},
	)
	snap.Channels = append(snap.Channels, models.ChannelRef{
		ID:   "chan-news",
		Name: "news",
		Overwrites: []models.ChannelOverwrite{
			{ChannelID: "chan-news", SubjectID: "role-vip", SubjectType: models.SubjectTypeRole, Deny: models.MentionPermission},
			{ChannelID: "chan-news", SubjectID: "role-mod", SubjectType: models.SubjectTypeRole, Deny: models.MentionPermission},
		},
	})

	first := Detect(snap, Options{})
	second := Detect(snap, Options{})
	assert.Equal(t, first, second)
	assert.Equal(t, models.Fingerprint(first), models.Fingerprint(second))

	// same state presented in a different order
	reordered := scenarioA()
	reordered.Roles = []models.RoleRef{snap.Roles[3], snap.Roles[1], snap.Roles[2], snap.Roles[0]}
	reordered.Channels = []models.ChannelRef{snap.Channels[1], snap.Channels[0]}
	reordered.Channels[0].Overwrites = []models.ChannelOverwrite{snap.Channels[1].Overwrites[1], snap.Channels[1].Overwrites[0]}
	assert.Equal(t, first, Detect(reordered, Options{}))
}

func TestDetect_Soundness(t *testing.T) {
	const n = 7
	snap := &models.GuildSnapshot{GuildID: testGuildID, Everyone: everyone(models.MentionPermission)}
	for i := 0; i < n; i++ {
		snap.Roles = append(snap.Roles, models.RoleRef{ID: fmt.Sprintf("role-%d", i), Name: fmt.Sprintf("R%d", i), Position: i + 1})
	}
	snap.Roles = append(snap.Roles,
		models.RoleRef{ID: "role-bot", Name: "SomeBot", Position: 20, Managed: true},
		models.RoleRef{ID: "role-ok", Name: "Ok", Position: 21, Mentionable: true},
	)

	issues := Detect(snap, Options{})
	require.Len(t, issues, 1)
	assert.Len(t, issues[0].Targets, n)

	for i := range snap.Roles {
		snap.Roles[i].Mentionable = true
	}
	assert.Empty(t, Detect(snap, Options{}))
}

func TestDetect_RoleOverwrites(t *testing.T) {
	snap := scenarioA()
	snap.Roles = append(snap.Roles, models.RoleRef{ID: "role-int", Name: "Integration", Position: 4, Managed: true, Mentionable: true})
	snap.Channels[0].Overwrites = append(snap.Channels[0].Overwrites,
		models.ChannelOverwrite{ChannelID: "chan-general", SubjectID: "role-deleted", SubjectType: models.SubjectTypeRole, Deny: models.MentionPermission},
		models.ChannelOverwrite{ChannelID: "chan-general", SubjectID: "role-vip", SubjectType: models.SubjectTypeRole, Deny: models.MentionPermission},
		models.ChannelOverwrite{ChannelID: "chan-general", SubjectID: "role-mod", SubjectType: models.SubjectTypeRole, Allow: models.MentionPermission},
		models.ChannelOverwrite{ChannelID: "chan-general", SubjectID: "role-int", SubjectType: models.SubjectTypeRole, Deny: models.MentionPermission},
	)

	issues := Detect(snap, Options{})
	require.Len(t, issues, 3)
	roleIssue := issues[2]
	assert.Equal(t, models.IssueTypeChannelBlocksRoleMentions, roleIssue.Type)
	require.Len(t, roleIssue.Targets, 2, "allow overwrites and managed roles are not flagged")
	assert.Equal(t, "VIP", roleIssue.Targets[0].RoleName)
	assert.Equal(t, "role-deleted", roleIssue.Targets[1].RoleID)
	assert.Equal(t, "general", roleIssue.Targets[1].ChannelName)
}

func TestDetect_Options(t *testing.T) {
	snap := scenarioA()
	snap.Roles = append(snap.Roles, models.RoleRef{ID: "role-admin", Name: "Admins", Position: 8})

	t.Run("role filter narrows role findings", func(t *testing.T) {
		issues := Detect(snap, Options{RoleID: mo.Some("role-admin")})
		require.Len(t, issues, 2)
		require.Len(t, issues[0].Targets, 1)
		assert.Equal(t, "Admins", issues[0].Targets[0].RoleName)
		assert.Equal(t, models.IssueTypeChannelBlocksMentions, issues[1].Type)
	})

	t.Run("roles above actor are informational", func(t *testing.T) {
		issues := Detect(snap, Options{ActorTopPosition: mo.Some(5)})
		targets := issues[0].Targets
		require.Len(t, targets, 2)
		assert.Equal(t, "Admins", targets[0].RoleName)
		assert.True(t, targets[0].Informational())
		assert.Equal(t, ReasonAboveActor, targets[0].ManualReason)
		assert.False(t, targets[1].Informational())
	})

	t.Run("owner is never restricted", func(t *testing.T) {
		issues := Detect(snap, Options{ActorTopPosition: mo.Some(0), ActorIsOwner: true})
		for _, target := range issues[0].Targets {
			assert.False(t, target.Informational())
		}
	})
}

func TestDetect_AdministratorHoldsMentionPermission(t *testing.T) {
	snap := &models.GuildSnapshot{
		GuildID:  testGuildID,
		Everyone: everyone(0),
		Roles:    []models.RoleRef{{ID: "role-admin", Name: "Admin", Position: 1, Mentionable: true, Permissions: 1 << 3}},
	}
	assert.Empty(t, Detect(snap, Options{}))
}
