package usecases

import (
	"context"

	"mentionguard/models"
	"mentionguard/usecases/mentions"
)

// MentionsUseCaseInterface is the engine surface consumed by the command layer
type MentionsUseCaseInterface interface {
	Diagnose(ctx context.Context, req mentions.DiagnoseRequest) (*models.Diagnosis, error)
	ProposeFixes(ctx context.Context, guildID string, issues []models.Issue) (models.Plan, error)
	ApplyFixes(ctx context.Context, guildID, actorID string, actions []models.FixAction) (models.BatchResult, error)

	StartFixSession(ctx context.Context, req mentions.DiagnoseRequest) (*models.FixSession, error)
	ConfirmFixSession(ctx context.Context, operationID, actorID string) (models.GateOperation, error)
	CancelFixSession(ctx context.Context, operationID, actorID string) (models.GateOperation, error)
	PendingFixSessions(guildID string) []models.GateOperation

	ConfigureMonitoring(
		ctx context.Context,
		guildID string,
		update models.MonitoringUpdate,
	) (*models.GuildMonitoringConfig, error)
	GetMonitoringStatus(ctx context.Context, guildID string) (*models.MonitoringStatus, error)
	GetAuditStats(ctx context.Context, guildID string) (*models.AuditStats, error)
	ForceCheck(ctx context.Context, guildID, actorID string) (*models.CheckResult, error)
	RemoveGuild(ctx context.Context, guildID string) error
}

var _ MentionsUseCaseInterface = (*mentions.MentionsUseCase)(nil)
