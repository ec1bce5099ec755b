package fixexecutor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mentionguard/clients"
	"mentionguard/core"
	"mentionguard/models"
)

// FixExecutor applies approved fix actions one at a time.
// A failing action is recorded and the batch moves on.
type FixExecutor struct {
	guildClient     clients.GuildClient
	mentionRoleName string
	retryDelay      time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

func NewFixExecutor(guildClient clients.GuildClient, mentionRoleName string, retryDelay time.Duration) *FixExecutor {
	return &FixExecutor{
		guildClient:     guildClient,
		mentionRoleName: mentionRoleName,
		retryDelay:      retryDelay,
		sleep:           sleepContext,
	}
}

// Execute runs every action sequentially and never aborts early
func (e *FixExecutor) Execute(ctx context.Context, guildID string, actions []models.FixAction) models.BatchResult {
	log.Printf("📋 Starting to execute %d fix actions for guild %s", len(actions), guildID)

	batch := models.BatchResult{Results: make([]models.FixResult, 0, len(actions))}
	for _, action := range actions {
		result := e.executeOne(ctx, guildID, action)
		if result.Success {
			batch.SuccessCount++
		} else {
			batch.ErrorCount++
		}
		batch.Results = append(batch.Results, result)
	}

	log.Printf(
		"📋 Completed successfully - executed fixes for guild %s: %d succeeded, %d failed",
		guildID,
		batch.SuccessCount,
		batch.ErrorCount,
	)
	return batch
}

func (e *FixExecutor) executeOne(ctx context.Context, guildID string, action models.FixAction) models.FixResult {
	result := models.FixResult{
		ActionID: action.ID,
		Type:     action.IssueType,
		Kind:     action.Kind,
	}

	var (
		before, after string
		err           error
	)
	for attempt := 0; attempt < 2; attempt++ {
		before, after, err = e.apply(ctx, guildID, action)
		if !errors.Is(err, core.ErrRateLimited) || attempt == 1 {
			break
		}
		log.Printf("⚠️ Rate limited applying %s on guild %s, retrying in %s", action.Kind, guildID, e.retryDelay)
		if sleepErr := e.sleep(ctx, e.retryDelay); sleepErr != nil {
			err = fmt.Errorf("retry aborted: %w", sleepErr)
			break
		}
	}

	result.Before = before
	result.After = after
	if err != nil {
		log.Printf("❌ Fix %s (%s) failed for guild %s: %v", action.ID, action.Kind, guildID, err)
		result.Error = core.UserFacingReason(err)
		result.ManualRequired = errors.Is(err, core.ErrPermissionDenied)
		return result
	}

	log.Printf("✅ Fix %s (%s) applied for guild %s", action.ID, action.Kind, guildID)
	result.Success = true
	return result
}

// apply re-validates the target live and performs the mutation.
// It returns a short description of the state before and after the change.
func (e *FixExecutor) apply(ctx context.Context, guildID string, action models.FixAction) (string, string, error) {
	switch action.Kind {
	case models.FixKindSetRoleMentionable:
		return e.applyRoleMentionable(ctx, guildID, action)
	case models.FixKindClearEveryoneDeny, models.FixKindClearRoleDeny:
		return e.applyClearDeny(ctx, guildID, action)
	case models.FixKindCreateMentionRole:
		return e.applyCreateRole(ctx, guildID, action)
	default:
		return "", "", fmt.Errorf("unknown fix kind %s", action.Kind)
	}
}

func (e *FixExecutor) applyRoleMentionable(ctx context.Context, guildID string, action models.FixAction) (string, string, error) {
	maybeRole, err := e.guildClient.GetRole(ctx, guildID, action.RoleID)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch role %s: %w", action.RoleID, err)
	}
	role, ok := maybeRole.Get()
	if !ok {
		return "", "", fmt.Errorf("role %s: %w", action.RoleID, core.ErrTargetNotFound)
	}
	if role.Managed {
		return "", "", fmt.Errorf("role %s is managed: %w", role.ID, core.ErrPermissionDenied)
	}

	before := fmt.Sprintf("mentionable=%t", role.Mentionable)
	if role.Mentionable {
		return before, before, nil
	}
	if err := e.guildClient.SetRoleMentionable(ctx, guildID, role.ID, true); err != nil {
		return before, "", fmt.Errorf("failed to make role %s mentionable: %w", role.ID, err)
	}
	return before, "mentionable=true", nil
}

func (e *FixExecutor) applyClearDeny(ctx context.Context, guildID string, action models.FixAction) (string, string, error) {
	maybeChannel, err := e.guildClient.GetChannel(ctx, guildID, action.ChannelID)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch channel %s: %w", action.ChannelID, err)
	}
	channel, ok := maybeChannel.Get()
	if !ok {
		return "", "", fmt.Errorf("channel %s: %w", action.ChannelID, core.ErrTargetNotFound)
	}

	overwrite, ok := channel.FindOverwrite(action.SubjectID)
	if !ok || !overwrite.DeniesMentions() {
		return "no mention deny", "no mention deny", nil
	}

	before := describeOverwrite(overwrite)
	overwrite.Deny &^= models.MentionPermission
	if overwrite.Allow == 0 && overwrite.Deny == 0 {
		if err := e.guildClient.DeleteChannelOverwrite(ctx, channel.ID, overwrite.SubjectID); err != nil {
			return before, "", fmt.Errorf("failed to delete overwrite in channel %s: %w", channel.ID, err)
		}
		return before, "overwrite removed", nil
	}

	if err := e.guildClient.EditChannelOverwrite(ctx, overwrite); err != nil {
		return before, "", fmt.Errorf("failed to edit overwrite in channel %s: %w", channel.ID, err)
	}
	return before, describeOverwrite(overwrite), nil
}

func (e *FixExecutor) applyCreateRole(ctx context.Context, guildID string, action models.FixAction) (string, string, error) {
	name := action.RoleName
	if name == "" {
		name = e.mentionRoleName
	}

	role, err := e.guildClient.CreateRole(ctx, guildID, models.RoleSpec{
		Name:        name,
		Permissions: models.MentionPermission,
		Mentionable: true,
	})
	if err != nil {
		return "no mention role", "", fmt.Errorf("failed to create mention role: %w", err)
	}
	return "no mention role", fmt.Sprintf("created role %s (%s)", role.Name, role.ID), nil
}

func describeOverwrite(ow models.ChannelOverwrite) string {
	return fmt.Sprintf("allow=%d deny=%d", ow.Allow, ow.Deny)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
