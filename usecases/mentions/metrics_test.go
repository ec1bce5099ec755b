package mentions

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentionguard/metrics"
	"mentionguard/models"
)

func TestMetrics_AutoFixCycle(t *testing.T) {
	f := newUsecaseFixture(t, time.Minute)
	f.withConfig(&models.GuildMonitoringConfig{GuildID: testGuildID, IsMonitored: true, AutoFixEnabled: true})

	_, err := f.usecase.ForceCheck(context.Background(), testGuildID, testActorID)
	require.NoError(t, err)

	m := f.usecase.metrics
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChecksTotal.WithLabelValues("force_check", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IssuesDetectedTotal.WithLabelValues("ChannelBlocksMentions")))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.FixesTotal.WithLabelValues(string(models.FixKindSetRoleMentionable), metrics.FixOutcomeSuccess),
	))
	assert.Equal(t, 1.0, testutil.ToFloat64(
		m.FixesTotal.WithLabelValues(string(models.FixKindClearEveryoneDeny), metrics.FixOutcomeSuccess),
	))
}

func TestMetrics_FixSessionOutcome(t *testing.T) {
	f := newUsecaseFixture(t, time.Minute)
	ctx := context.Background()

	session, err := f.usecase.StartFixSession(ctx, DiagnoseRequest{GuildID: testGuildID, Actor: ownerActor()})
	require.NoError(t, err)
	require.NotNil(t, session.Operation)

	_, err = f.usecase.CancelFixSession(ctx, session.Operation.ID, testOwnerID)
	require.NoError(t, err)

	select {
	case op := <-f.terminalCh:
		assert.Equal(t, models.GateStateCancelled, op.State)
	case <-time.After(time.Second):
		t.Fatal("fix session did not finish")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.usecase.metrics.FixSessionsTotal.WithLabelValues("cancelled")))
}
