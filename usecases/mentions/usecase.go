package mentions

import (
	"context"
	"fmt"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/mo"

	"mentionguard/clients"
	"mentionguard/core"
	"mentionguard/metrics"
	"mentionguard/models"
	"mentionguard/services"
	"mentionguard/services/confirmation"
	"mentionguard/services/detector"
	"mentionguard/services/fixexecutor"
	"mentionguard/services/remediation"
	"mentionguard/services/snapshot"
)

// DiagnoseRequest scopes a detection pass. Actor is absent for scheduler-triggered passes.
type DiagnoseRequest struct {
	GuildID   string
	ChannelID mo.Option[string]
	RoleID    mo.Option[string]
	Actor     mo.Option[models.Actor]
}

// Options configures the engine
type Options struct {
	GateInitialTimeout     time.Duration
	GateFinalTimeout       time.Duration
	MonitorDefaultInterval time.Duration
	MonitorWorkers         int
	RateLimitRetryDelay    time.Duration
	MentionRoleName        string
	BackgroundTaskWrapper  TaskWrapper
	// Metrics defaults to collectors on a private registry
	Metrics *metrics.Metrics
}

// MentionsUseCase is the mention permission engine: detection, guarded remediation,
// monitoring and audit. All mutable state is keyed by guild ID.
type MentionsUseCase struct {
	guildClient              clients.GuildClient
	snapshotService          *snapshot.SnapshotService
	planner                  *remediation.Planner
	executor                 *fixexecutor.FixExecutor
	gate                     *confirmation.Gate
	monitoringConfigsService services.MonitoringConfigsService
	auditService             services.AuditService
	scheduler                *MonitoringScheduler
	metrics                  *metrics.Metrics
	defaultInterval          time.Duration

	onFinishedMu sync.Mutex
	onFinished   func(op models.GateOperation)

	// guards inFlight and fingerprints
	inFlightMu   sync.Mutex
	inFlight     map[string]struct{}
	fingerprints map[string]cycleFingerprint
}

func NewMentionsUseCase(
	guildClient clients.GuildClient,
	monitoringConfigsService services.MonitoringConfigsService,
	auditService services.AuditService,
	opts Options,
) *MentionsUseCase {
	u := &MentionsUseCase{
		guildClient:              guildClient,
		snapshotService:          snapshot.NewSnapshotService(guildClient),
		planner:                  remediation.NewPlanner(opts.MentionRoleName),
		executor:                 fixexecutor.NewFixExecutor(guildClient, opts.MentionRoleName, opts.RateLimitRetryDelay),
		monitoringConfigsService: monitoringConfigsService,
		auditService:             auditService,
		defaultInterval:          opts.MonitorDefaultInterval,
		metrics:                  opts.Metrics,
		inFlight:                 make(map[string]struct{}),
		fingerprints:             make(map[string]cycleFingerprint),
	}
	if u.metrics == nil {
		u.metrics = metrics.NewMetrics(prometheus.NewRegistry())
	}
	u.gate = confirmation.NewGate(opts.GateInitialTimeout, opts.GateFinalTimeout, u.applyApproved)
	u.gate.OnTerminal(u.handleFixSessionFinished)
	u.scheduler = NewMonitoringScheduler(opts.MonitorWorkers, u.RunMonitoringCycle, opts.BackgroundTaskWrapper)
	u.metrics.TrackMonitoredGuilds(u.scheduler.Count)
	return u
}

// OnFixSessionFinished registers a callback for sessions reaching Applied, Cancelled or Expired
func (u *MentionsUseCase) OnFixSessionFinished(fn func(op models.GateOperation)) {
	u.onFinishedMu.Lock()
	defer u.onFinishedMu.Unlock()
	u.onFinished = fn
}

func (u *MentionsUseCase) handleFixSessionFinished(op models.GateOperation) {
	u.metrics.ObserveFixSession(op)

	u.onFinishedMu.Lock()
	fn := u.onFinished
	u.onFinishedMu.Unlock()
	if fn != nil {
		fn(op)
	}
}

// Close stops the scheduler and expires every pending fix session
func (u *MentionsUseCase) Close() {
	u.scheduler.Stop()
	u.gate.Close()
}

// Diagnose runs a read-only detection pass and records it in the audit trail
func (u *MentionsUseCase) Diagnose(ctx context.Context, req DiagnoseRequest) (*models.Diagnosis, error) {
	log.Printf("📋 Starting to diagnose mention permissions for guild %s", req.GuildID)

	diagnosis, err := u.detect(req)
	if err != nil {
		return nil, err
	}

	actorID := models.SystemActor
	if actor, ok := req.Actor.Get(); ok {
		actorID = actor.ID
	}
	fullScan := req.ChannelID.IsAbsent() && req.RoleID.IsAbsent()
	u.recordCycle(ctx, req.GuildID, actorID, models.AuditTriggerManual, diagnosis, nil, fullScan)

	log.Printf(
		"📋 Completed successfully - diagnosed guild %s: %d issues, severity %s",
		req.GuildID,
		len(diagnosis.Issues),
		diagnosis.Severity,
	)
	return diagnosis, nil
}

// ProposeFixes plans fixes for the issues against a fresh snapshot
func (u *MentionsUseCase) ProposeFixes(ctx context.Context, guildID string, issues []models.Issue) (models.Plan, error) {
	snap, err := u.snapshotService.ReadSnapshot(guildID, snapshot.Filter{})
	if err != nil {
		return models.Plan{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return u.planner.Plan(snap, issues), nil
}

// ApplyFixes executes approved actions and records the batch. Callers are responsible for approval.
func (u *MentionsUseCase) ApplyFixes(
	ctx context.Context,
	guildID, actorID string,
	actions []models.FixAction,
) (models.BatchResult, error) {
	for _, action := range actions {
		if action.GuildID != "" && action.GuildID != guildID {
			return models.BatchResult{}, fmt.Errorf(
				"%w: action %s belongs to another guild",
				core.ErrInvalidArgument,
				action.ID,
			)
		}
	}

	batch := u.executor.Execute(ctx, guildID, actions)
	u.recordFixes(ctx, guildID, actorID, models.AuditTriggerManual, &batch)
	u.rescan(ctx, guildID, actorID, models.AuditTriggerManual, "")
	return batch, nil
}

// StartFixSession diagnoses, plans and opens a confirmation operation for the actor.
// No confirmation is opened when nothing can be fixed automatically.
func (u *MentionsUseCase) StartFixSession(ctx context.Context, req DiagnoseRequest) (*models.FixSession, error) {
	actor, ok := req.Actor.Get()
	if !ok {
		return nil, fmt.Errorf("%w: a fix session needs an actor", core.ErrInvalidArgument)
	}

	diagnosis, err := u.Diagnose(ctx, req)
	if err != nil {
		return nil, err
	}

	session := &models.FixSession{
		Diagnosis: diagnosis,
		Plan:      u.planner.Plan(diagnosis.Snapshot, diagnosis.Issues),
	}
	if len(session.Plan.Actions) == 0 {
		log.Printf("📋 Nothing to fix automatically for guild %s", req.GuildID)
		return session, nil
	}

	op := u.gate.Open(req.GuildID, actor.ID, session.Plan)
	session.Operation = &op
	return session, nil
}

func (u *MentionsUseCase) ConfirmFixSession(
	ctx context.Context,
	operationID, actorID string,
) (models.GateOperation, error) {
	op, err := u.gate.Approve(operationID, actorID)
	if err != nil {
		return op, fmt.Errorf("failed to confirm fix session: %w", err)
	}
	return op, nil
}

func (u *MentionsUseCase) CancelFixSession(
	ctx context.Context,
	operationID, actorID string,
) (models.GateOperation, error) {
	op, err := u.gate.Cancel(operationID, actorID)
	if err != nil {
		return op, fmt.Errorf("failed to cancel fix session: %w", err)
	}
	return op, nil
}

func (u *MentionsUseCase) PendingFixSessions(guildID string) []models.GateOperation {
	return u.gate.Pending(guildID)
}

// applyApproved is the gate's only path to mutation
func (u *MentionsUseCase) applyApproved(ctx context.Context, op models.GateOperation) models.BatchResult {
	batch, err := u.ApplyFixes(ctx, op.GuildID, op.ActorID, op.Plan.Actions)
	if err != nil {
		log.Printf("❌ Failed to apply fix session %s: %v", op.ID, err)
		return models.BatchResult{Results: []models.FixResult{}}
	}
	return batch
}

// ConfigureMonitoring stores the guild's monitoring config and (re)schedules it
func (u *MentionsUseCase) ConfigureMonitoring(
	ctx context.Context,
	guildID string,
	update models.MonitoringUpdate,
) (*models.GuildMonitoringConfig, error) {
	cfg, err := u.monitoringConfigsService.ConfigureMonitoring(ctx, guildID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to configure monitoring: %w", err)
	}

	if cfg.IsMonitored {
		u.scheduler.Schedule(guildID, cfg.CheckInterval(u.defaultInterval))
	} else {
		u.scheduler.Unschedule(guildID)
	}
	return cfg, nil
}

func (u *MentionsUseCase) GetMonitoringStatus(ctx context.Context, guildID string) (*models.MonitoringStatus, error) {
	maybeCfg, err := u.monitoringConfigsService.GetMonitoringConfig(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get monitoring config: %w", err)
	}

	status := &models.MonitoringStatus{
		Config:  maybeCfg.OrElse(&models.GuildMonitoringConfig{GuildID: guildID}),
		Running: u.scheduler.IsScheduled(guildID),
	}

	maybeRecord, err := u.auditService.GetLatestFullScan(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest full scan: %w", err)
	}
	if record, ok := maybeRecord.Get(); ok {
		status.LastCheck = &record.CreatedAt
		status.IssueCount = record.IssuesFound
		status.Severity = models.ParseSeverity(record.Severity)
	}
	return status, nil
}

func (u *MentionsUseCase) GetAuditStats(ctx context.Context, guildID string) (*models.AuditStats, error) {
	stats, err := u.auditService.GetStats(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit stats: %w", err)
	}
	return stats, nil
}

// RemoveGuild drops every piece of per-guild state once the bot leaves the guild
func (u *MentionsUseCase) RemoveGuild(ctx context.Context, guildID string) error {
	u.scheduler.Unschedule(guildID)

	u.inFlightMu.Lock()
	delete(u.fingerprints, guildID)
	u.inFlightMu.Unlock()

	if err := u.monitoringConfigsService.DeleteMonitoringConfig(ctx, guildID); err != nil {
		return fmt.Errorf("failed to delete monitoring config: %w", err)
	}
	return nil
}

func (u *MentionsUseCase) detect(req DiagnoseRequest) (*models.Diagnosis, error) {
	snap, err := u.snapshotService.ReadSnapshot(req.GuildID, snapshot.Filter{ChannelID: req.ChannelID})
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	opts := detector.Options{RoleID: req.RoleID}
	if actor, ok := req.Actor.Get(); ok {
		opts.ActorIsOwner = actor.Operator || actor.ID == snap.OwnerID
		opts.ActorTopPosition = actorTopPosition(snap, actor)
	}

	issues := detector.Detect(snap, opts)
	return &models.Diagnosis{
		GuildID:  req.GuildID,
		Issues:   issues,
		Severity: models.MaxSeverity(issues),
		Snapshot: snap,
	}, nil
}

// actorTopPosition is the highest position among the actor's roles; @everyone sits at 0
func actorTopPosition(snap *models.GuildSnapshot, actor models.Actor) mo.Option[int] {
	top := snap.Everyone.Position
	for _, role := range snap.Roles {
		if slices.Contains(actor.RoleIDs, role.ID) && role.Position > top {
			top = role.Position
		}
	}
	return mo.Some(top)
}

func (u *MentionsUseCase) tryAcquire(guildID string) bool {
	u.inFlightMu.Lock()
	defer u.inFlightMu.Unlock()

	if _, running := u.inFlight[guildID]; running {
		return false
	}
	u.inFlight[guildID] = struct{}{}
	return true
}

func (u *MentionsUseCase) release(guildID string) {
	u.inFlightMu.Lock()
	defer u.inFlightMu.Unlock()
	delete(u.inFlight, guildID)
}
