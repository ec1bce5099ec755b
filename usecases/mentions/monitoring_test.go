package mentions

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mentionguard/core"
	"mentionguard/models"
	"mentionguard/services"
	"mentionguard/services/audit"
)

// memoryAudit keeps records newest first, the order the repository returns them in
type memoryAudit struct {
	mu      sync.Mutex
	records []*models.AuditRecord
}

func (m *memoryAudit) RecordCycle(_ context.Context, record *models.AuditRecord) (*models.AuditRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *record
	stored.ID = core.NewID("aud")
	stored.CreatedAt = time.Now()
	m.records = append([]*models.AuditRecord{&stored}, m.records...)
	return &stored, nil
}

func (m *memoryAudit) GetLatestFullScan(_ context.Context, _ string) (mo.Option[*models.AuditRecord], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.records {
		if r.FullScan {
			return mo.Some(r), nil
		}
	}
	return mo.None[*models.AuditRecord](), nil
}

func (m *memoryAudit) GetStats(_ context.Context, guildID string) (*models.AuditStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return audit.ComputeStats(guildID, m.records), nil
}

func newMemoryAuditUsecase(t *testing.T) (*MentionsUseCase, *fakeGuild) {
	guild := &fakeGuild{state: scenarioA()}
	configs := &services.MockMonitoringConfigsService{}
	configs.On("GetMonitoringConfig", mock.Anything, testGuildID).Return(mo.None[*models.GuildMonitoringConfig](), nil)

	u := NewMentionsUseCase(guild, configs, &memoryAudit{}, Options{
		GateInitialTimeout:     time.Minute,
		GateFinalTimeout:       time.Minute,
		MonitorDefaultInterval: time.Hour,
		MonitorWorkers:         1,
		RateLimitRetryDelay:    time.Millisecond,
		MentionRoleName:        "Mentions",
	})
	t.Cleanup(u.Close)
	return u, guild
}

func TestRunMonitoringCycle_PersistentFixFailure(t *testing.T) {
	ctx := context.Background()
	deniedRoleEdit := fmt.Errorf("edit role: %w", core.ErrPermissionDenied)

	t.Run("a fix that keeps failing is announced once", func(t *testing.T) {
		f := newUsecaseFixture(t, time.Minute)
		f.guild.failRoleEdits(deniedRoleEdit)
		f.withConfig(&models.GuildMonitoringConfig{
			GuildID:        testGuildID,
			IsMonitored:    true,
			AutoFixEnabled: true,
			LogChannelID:   sql.NullString{String: testLogChanID, Valid: true},
			NotifyAdmins:   true,
		})

		for j := 0; j < 4; j++ {
			require.NoError(t, f.usecase.RunMonitoringCycle(ctx, testGuildID))
		}

		channelMsgs, dms := f.guild.messages()
		assert.Len(t, channelMsgs, 1)
		assert.Len(t, dms, 1)

		diagnosis, err := f.usecase.Diagnose(ctx, DiagnoseRequest{GuildID: testGuildID})
		require.NoError(t, err)
		require.Len(t, diagnosis.Issues, 1, "@VIP stays unmentionable")
		assert.Equal(t, models.IssueTypeNonMentionableRole, diagnosis.Issues[0].Type)
	})

	t.Run("a new failure reason only reaches admins", func(t *testing.T) {
		f := newUsecaseFixture(t, time.Minute)
		f.guild.failRoleEdits(deniedRoleEdit)
		f.withConfig(&models.GuildMonitoringConfig{
			GuildID:        testGuildID,
			IsMonitored:    true,
			AutoFixEnabled: true,
			LogChannelID:   sql.NullString{String: testLogChanID, Valid: true},
			NotifyAdmins:   true,
		})

		require.NoError(t, f.usecase.RunMonitoringCycle(ctx, testGuildID))
		f.guild.failRoleEdits(fmt.Errorf("edit role: %w", core.ErrRateLimited))
		require.NoError(t, f.usecase.RunMonitoringCycle(ctx, testGuildID))
		require.NoError(t, f.usecase.RunMonitoringCycle(ctx, testGuildID))

		channelMsgs, dms := f.guild.messages()
		assert.Len(t, channelMsgs, 1, "the log channel only hears about issue changes")
		require.Len(t, dms, 2)
		assert.Contains(t, dms[1], "rate limited by Discord")
	})

	t.Run("failures stay quiet without notifyAdmins", func(t *testing.T) {
		f := newUsecaseFixture(t, time.Minute)
		f.guild.failRoleEdits(deniedRoleEdit)
		f.withConfig(&models.GuildMonitoringConfig{
			GuildID:        testGuildID,
			IsMonitored:    true,
			AutoFixEnabled: true,
			LogChannelID:   sql.NullString{String: testLogChanID, Valid: true},
		})

		require.NoError(t, f.usecase.RunMonitoringCycle(ctx, testGuildID))
		f.guild.failRoleEdits(fmt.Errorf("edit role: %w", core.ErrRateLimited))
		require.NoError(t, f.usecase.RunMonitoringCycle(ctx, testGuildID))

		channelMsgs, dms := f.guild.messages()
		assert.Len(t, channelMsgs, 1)
		assert.Empty(t, dms)
	})

	t.Run("a successful auto-fix does not announce the clean state", func(t *testing.T) {
		f := newUsecaseFixture(t, time.Minute)
		f.withConfig(&models.GuildMonitoringConfig{
			GuildID:        testGuildID,
			IsMonitored:    true,
			AutoFixEnabled: true,
			LogChannelID:   sql.NullString{String: testLogChanID, Valid: true},
		})

		require.NoError(t, f.usecase.RunMonitoringCycle(ctx, testGuildID))
		require.NoError(t, f.usecase.RunMonitoringCycle(ctx, testGuildID))

		channelMsgs, _ := f.guild.messages()
		assert.Len(t, channelMsgs, 1)
		assert.Equal(t, 2, f.guild.mutationCount())
	})
}

func TestGetMonitoringStatus_AfterApprovedFix(t *testing.T) {
	u, guild := newMemoryAuditUsecase(t)
	ctx := context.Background()

	session, err := u.StartFixSession(ctx, DiagnoseRequest{GuildID: testGuildID, Actor: ownerActor()})
	require.NoError(t, err)
	require.NotNil(t, session.Operation)

	_, err = u.ConfirmFixSession(ctx, session.Operation.ID, testOwnerID)
	require.NoError(t, err)
	op, err := u.ConfirmFixSession(ctx, session.Operation.ID, testOwnerID)
	require.NoError(t, err)
	require.Equal(t, models.GateStateApplied, op.State)
	assert.Equal(t, 2, guild.mutationCount())

	status, err := u.GetMonitoringStatus(ctx, testGuildID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.IssueCount)
	assert.Equal(t, models.SeverityNone, status.Severity)
	require.NotNil(t, status.LastCheck)

	stats, err := u.GetAuditStats(ctx, testGuildID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalChecks, "the pre-fix scan and the post-fix scan")
	assert.Equal(t, 2, stats.TotalFixesApplied)
	assert.Equal(t, 0, stats.LastIssuesFound)
	assert.Equal(t, models.TrendImproving, stats.Trend)
}

func TestGetMonitoringStatus_IgnoresScopedDiagnoses(t *testing.T) {
	u, _ := newMemoryAuditUsecase(t)
	ctx := context.Background()

	_, err := u.Diagnose(ctx, DiagnoseRequest{GuildID: testGuildID})
	require.NoError(t, err)
	_, err = u.Diagnose(ctx, DiagnoseRequest{GuildID: testGuildID, RoleID: mo.Some("role-mod")})
	require.NoError(t, err)
	_, err = u.Diagnose(ctx, DiagnoseRequest{GuildID: testGuildID, ChannelID: mo.Some("chan-random")})
	require.NoError(t, err)

	status, err := u.GetMonitoringStatus(ctx, testGuildID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.IssueCount)
	assert.Equal(t, models.SeverityHigh, status.Severity)

	stats, err := u.GetAuditStats(ctx, testGuildID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalChecks)
	assert.Equal(t, models.TrendUnknown, stats.Trend)
}
