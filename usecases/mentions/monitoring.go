package mentions

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mentionguard/core"
	"mentionguard/models"
)

// StartMonitoring schedules every guild that has monitoring enabled
func (u *MentionsUseCase) StartMonitoring(ctx context.Context) error {
	log.Printf("📋 Starting to schedule monitored guilds")

	configs, err := u.monitoringConfigsService.GetMonitoredConfigs(ctx)
	if err != nil {
		return fmt.Errorf("failed to get monitored configs: %w", err)
	}

	for _, cfg := range configs {
		u.scheduler.Schedule(cfg.GuildID, cfg.CheckInterval(u.defaultInterval))
	}

	log.Printf("📋 Completed successfully - scheduled %d monitored guilds", len(configs))
	return nil
}

// ForceCheck runs the monitoring cycle now. The guild's schedule keeps its own timer.
func (u *MentionsUseCase) ForceCheck(ctx context.Context, guildID, actorID string) (*models.CheckResult, error) {
	log.Printf("📋 Starting force check for guild %s requested by %s", guildID, actorID)

	maybeCfg, err := u.monitoringConfigsService.GetMonitoringConfig(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to get monitoring config: %w", err)
	}
	cfg := maybeCfg.OrElse(&models.GuildMonitoringConfig{GuildID: guildID})

	result, err := u.runCycle(ctx, cfg, actorID, models.AuditTriggerForceCheck)
	if err != nil {
		return nil, err
	}

	log.Printf("📋 Completed successfully - force check for guild %s found %d issues", guildID, len(result.Diagnosis.Issues))
	return result, nil
}

// RunMonitoringCycle is the scheduled entry point. Failures are logged and returned for alerting,
// never surfaced to the guild.
func (u *MentionsUseCase) RunMonitoringCycle(ctx context.Context, guildID string) error {
	maybeCfg, err := u.monitoringConfigsService.GetMonitoringConfig(ctx, guildID)
	if err != nil {
		return fmt.Errorf("failed to get monitoring config for guild %s: %w", guildID, err)
	}

	cfg, ok := maybeCfg.Get()
	if !ok || !cfg.IsMonitored {
		log.Printf("📋 Guild %s is no longer monitored, removing its schedule", guildID)
		u.scheduler.Unschedule(guildID)
		return nil
	}

	_, err = u.runCycle(ctx, cfg, models.SystemActor, models.AuditTriggerScheduled)
	switch {
	case errors.Is(err, core.ErrCheckInProgress):
		log.Printf("⚠️ Skipping scheduled check for guild %s: a check is already running", guildID)
		return nil
	case errors.Is(err, core.ErrSnapshotUnavailable):
		log.Printf("⚠️ Skipping scheduled check for guild %s: guild cache not ready", guildID)
		return nil
	case err != nil:
		return fmt.Errorf("scheduled check failed for guild %s: %w", guildID, err)
	}
	return nil
}

// runCycle is the detect/(auto-fix)/audit/notify cycle shared by scheduled and forced checks.
// At most one cycle runs per guild; overlapping requests fail with core.ErrCheckInProgress.
func (u *MentionsUseCase) runCycle(
	ctx context.Context,
	cfg *models.GuildMonitoringConfig,
	actorID string,
	trigger models.AuditTrigger,
) (result *models.CheckResult, err error) {
	started := time.Now()
	defer func() {
		u.metrics.ObserveCheck(trigger, err, time.Since(started))
	}()

	guildID := cfg.GuildID
	if !u.tryAcquire(guildID) {
		return nil, fmt.Errorf("guild %s: %w", guildID, core.ErrCheckInProgress)
	}
	defer u.release(guildID)

	diagnosis, err := u.detect(DiagnoseRequest{GuildID: guildID})
	if err != nil {
		return nil, err
	}

	u.metrics.ObserveIssues(diagnosis.Issues)

	result = &models.CheckResult{
		GuildID:   guildID,
		Trigger:   trigger,
		Diagnosis: diagnosis,
	}

	var plan models.Plan
	if len(diagnosis.Issues) > 0 && cfg.AutoFixEnabled {
		plan = u.planner.Plan(diagnosis.Snapshot, diagnosis.Issues)
		result.Plan = &plan
		if len(plan.Actions) > 0 {
			log.Printf("🔧 Auto-fix enabled for guild %s, applying %d fixes", guildID, len(plan.Actions))
			batch := u.executor.Execute(ctx, guildID, plan.Actions)
			result.Fixes = &batch
			result.Trigger = models.AuditTriggerAutoFix
		}
	}

	u.recordCycle(ctx, guildID, actorID, result.Trigger, diagnosis, result.Fixes, true)

	next := cycleFingerprint{issues: models.Fingerprint(diagnosis.Issues)}
	if result.Fixes != nil {
		next.issues = u.rescan(ctx, guildID, actorID, result.Trigger, next.issues)
		next.failures = models.FailureFingerprint(plan.Actions, *result.Fixes)
	}

	changed, newFailures := u.swapFingerprint(guildID, models.Fingerprint(diagnosis.Issues), next)
	result.Changed = changed
	switch {
	case changed:
		u.notify(ctx, cfg, result)
	case newFailures:
		log.Printf("⚠️ Auto-fix for guild %s hit new failures, notifying admins only", guildID)
		u.notifyAdmins(ctx, cfg, result)
	}
	return result, nil
}

// cycleFingerprint is the state a guild is expected to be in on its next cycle
type cycleFingerprint struct {
	// issues is the issue fingerprint after this cycle's fixes
	issues string
	// failures identifies this cycle's failed fixes; empty when none failed
	failures string
}

// swapFingerprint stores the state left by this cycle. It reports whether the detected issues differ
// from what the previous cycle left behind, and whether the fix failures are new. The first pass
// after startup only counts as a change when it found something.
func (u *MentionsUseCase) swapFingerprint(guildID, detected string, next cycleFingerprint) (changed, newFailures bool) {
	u.inFlightMu.Lock()
	defer u.inFlightMu.Unlock()

	previous, seen := u.fingerprints[guildID]
	u.fingerprints[guildID] = next
	if !seen {
		changed = detected != ""
	} else {
		changed = previous.issues != detected
	}
	newFailures = next.failures != "" && next.failures != previous.failures
	return changed, newFailures
}

// rescan detects again after a fix batch and records the post-fix state as a full scan.
// On failure the pre-fix fingerprint stands.
func (u *MentionsUseCase) rescan(
	ctx context.Context,
	guildID, actorID string,
	trigger models.AuditTrigger,
	fallback string,
) string {
	diagnosis, err := u.detect(DiagnoseRequest{GuildID: guildID})
	if err != nil {
		log.Printf("⚠️ Failed to re-check guild %s after fixes: %v", guildID, err)
		return fallback
	}

	u.recordCycle(ctx, guildID, actorID, trigger, diagnosis, nil, true)
	return models.Fingerprint(diagnosis.Issues)
}

// notify posts the summary to the log channel and, when configured, to the guild owner
func (u *MentionsUseCase) notify(ctx context.Context, cfg *models.GuildMonitoringConfig, result *models.CheckResult) {
	if cfg.LogChannelID.Valid {
		summary := FormatCheckResult(result)
		if err := u.guildClient.SendChannelMessage(ctx, cfg.LogChannelID.String, summary); err != nil {
			log.Printf("❌ Failed to post check summary to log channel %s: %v", cfg.LogChannelID.String, err)
		}
	}
	u.notifyAdmins(ctx, cfg, result)
}

func (u *MentionsUseCase) notifyAdmins(ctx context.Context, cfg *models.GuildMonitoringConfig, result *models.CheckResult) {
	ownerID := result.Diagnosis.Snapshot.OwnerID
	if !cfg.NotifyAdmins || ownerID == "" {
		return
	}
	if err := u.guildClient.SendDirectMessage(ctx, ownerID, FormatCheckResult(result)); err != nil {
		log.Printf("❌ Failed to notify owner %s of guild %s: %v", ownerID, cfg.GuildID, err)
	}
}

func (u *MentionsUseCase) recordCycle(
	ctx context.Context,
	guildID, actorID string,
	trigger models.AuditTrigger,
	diagnosis *models.Diagnosis,
	batch *models.BatchResult,
	fullScan bool,
) {
	record := &models.AuditRecord{
		GuildID:     guildID,
		ActorID:     actorID,
		Trigger:     trigger,
		IssuesFound: models.CountFindings(diagnosis.Issues),
		Severity:    diagnosis.Severity.String(),
		Fingerprint: models.Fingerprint(diagnosis.Issues),
		FullScan:    fullScan,
	}
	if batch != nil {
		u.metrics.ObserveBatch(*batch)
		fillFixes(record, batch)
	}

	if _, err := u.auditService.RecordCycle(ctx, record); err != nil {
		log.Printf("❌ Failed to record audit entry for guild %s: %v", guildID, err)
	}
}

// recordFixes audits a manually approved batch; the findings are the actions that were attempted.
// The record is not a full scan, so the monitoring status keeps reading the last detection pass.
func (u *MentionsUseCase) recordFixes(
	ctx context.Context,
	guildID, actorID string,
	trigger models.AuditTrigger,
	batch *models.BatchResult,
) {
	severity := models.SeverityNone
	for _, r := range batch.Results {
		severity = max(severity, models.SeverityOf(r.Type))
	}

	record := &models.AuditRecord{
		GuildID:     guildID,
		ActorID:     actorID,
		Trigger:     trigger,
		IssuesFound: len(batch.Results),
		Severity:    severity.String(),
	}
	u.metrics.ObserveBatch(*batch)
	fillFixes(record, batch)

	if _, err := u.auditService.RecordCycle(ctx, record); err != nil {
		log.Printf("❌ Failed to record audit entry for guild %s: %v", guildID, err)
	}
}

func fillFixes(record *models.AuditRecord, batch *models.BatchResult) {
	record.FixesApplied = batch.SuccessCount
	record.FixesFailed = batch.ErrorCount
	record.FailureReasons = batch.FailureReasons()
	record.FixDetails = []string{}
	for _, r := range batch.Results {
		if !r.Success {
			continue
		}
		record.FixDetails = append(record.FixDetails, fmt.Sprintf("%s: %s -> %s", r.Kind, r.Before, r.After))
	}
}
