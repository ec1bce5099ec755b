package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/mo"

	"mentionguard/core"
	"mentionguard/models"
	"mentionguard/usecases"
	"mentionguard/usecases/mentions"
)

const (
	commandName = "mentions"

	confirmPrefix = "mentions_confirm:"
	cancelPrefix  = "mentions_cancel:"
)

// DiscordEventsHandler routes slash commands, confirmation buttons and guild lifecycle events
// to the mention engine
type DiscordEventsHandler struct {
	session         *discordgo.Session
	appID           string
	mentionsUseCase usecases.MentionsUseCaseInterface

	// original interactions of open fix sessions, used to update their message on expiry
	interactionsMu sync.Mutex
	interactions   map[string]*discordgo.Interaction
}

func NewDiscordEventsHandler(
	session *discordgo.Session,
	appID string,
	mentionsUseCase usecases.MentionsUseCaseInterface,
) *DiscordEventsHandler {
	handler := &DiscordEventsHandler{
		session:         session,
		appID:           appID,
		mentionsUseCase: mentionsUseCase,
		interactions:    make(map[string]*discordgo.Interaction),
	}

	session.AddHandler(handler.handleReady)
	session.AddHandler(handler.handleInteractionCreate)
	session.AddHandler(handler.handleGuildDelete)

	// guild state (roles, channels, members) must be cached for snapshots
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	return handler
}

// StartBot opens the Discord connection and starts listening for events
func (h *DiscordEventsHandler) StartBot() error {
	if err := h.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}

	log.Printf("🤖 Discord bot is now running and listening for events")
	return nil
}

// StopBot gracefully closes the Discord connection
func (h *DiscordEventsHandler) StopBot() {
	if err := h.session.Close(); err != nil {
		log.Printf("⚠️ Failed to close Discord session: %v", err)
	}
}

// HandleFixSessionFinished updates the original fix message when a session ends without a button click
func (h *DiscordEventsHandler) HandleFixSessionFinished(op models.GateOperation) {
	h.interactionsMu.Lock()
	interaction, ok := h.interactions[op.ID]
	delete(h.interactions, op.ID)
	h.interactionsMu.Unlock()

	if !ok || op.State != models.GateStateExpired {
		return
	}
	h.editResponse(interaction, mentions.FormatOperation(op), nil)
}

func (h *DiscordEventsHandler) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("🤖 Logged in as %s, registering slash commands", r.User.Username)
	if _, err := s.ApplicationCommandBulkOverwrite(h.appID, "", Commands()); err != nil {
		log.Printf("❌ Failed to register slash commands: %v", err)
		return
	}
	log.Printf("✅ Registered /%s command", commandName)
}

func (h *DiscordEventsHandler) handleGuildDelete(_ *discordgo.Session, g *discordgo.GuildDelete) {
	if g.Guild == nil || g.Unavailable {
		// outages also emit GuildDelete; only a real removal drops the guild's state
		return
	}

	log.Printf("📋 Bot removed from guild %s, dropping its monitoring state", g.ID)
	if err := h.mentionsUseCase.RemoveGuild(context.Background(), g.ID); err != nil {
		log.Printf("❌ Failed to remove guild %s: %v", g.ID, err)
	}
}

func (h *DiscordEventsHandler) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		if data.Name != commandName || len(data.Options) == 0 {
			return
		}
		h.handleCommand(i.Interaction, data.Options[0])
	case discordgo.InteractionMessageComponent:
		h.handleComponent(i.Interaction, i.MessageComponentData().CustomID)
	}
}

func (h *DiscordEventsHandler) handleCommand(
	interaction *discordgo.Interaction,
	sub *discordgo.ApplicationCommandInteractionDataOption,
) {
	if !h.deferResponse(interaction) {
		return
	}

	ctx := context.Background()
	guildID := interaction.GuildID
	actor := actorFromMember(interaction.Member)
	log.Printf("📨 /%s %s from %s in guild %s", commandName, sub.Name, actor.ID, guildID)

	switch sub.Name {
	case "diagnose":
		req := diagnoseRequestFromOptions(guildID, actor, sub.Options)
		diagnosis, err := h.mentionsUseCase.Diagnose(ctx, req)
		if err != nil {
			h.respondError(interaction, err)
			return
		}
		h.editResponse(interaction, mentions.FormatDiagnosis(diagnosis), nil)

	case "fix":
		req := diagnoseRequestFromOptions(guildID, actor, sub.Options)
		session, err := h.mentionsUseCase.StartFixSession(ctx, req)
		if err != nil {
			h.respondError(interaction, err)
			return
		}
		content := mentions.FormatDiagnosis(session.Diagnosis)
		if session.Operation == nil {
			h.editResponse(interaction, content+"\n\n"+mentions.FormatPlan(session.Plan), nil)
			return
		}

		h.interactionsMu.Lock()
		h.interactions[session.Operation.ID] = interaction
		h.interactionsMu.Unlock()
		h.editResponse(interaction, mentions.FormatOperation(*session.Operation), confirmButtons(*session.Operation))

	case "monitor":
		update := monitoringUpdateFromOptions(sub.Options)
		cfg, err := h.mentionsUseCase.ConfigureMonitoring(ctx, guildID, update)
		if err != nil {
			h.respondError(interaction, err)
			return
		}
		h.editResponse(interaction, formatMonitoringConfig(cfg), nil)

	case "status":
		status, err := h.mentionsUseCase.GetMonitoringStatus(ctx, guildID)
		if err != nil {
			h.respondError(interaction, err)
			return
		}
		h.editResponse(interaction, formatMonitoringStatus(status), nil)

	case "check":
		result, err := h.mentionsUseCase.ForceCheck(ctx, guildID, actor.ID)
		if err != nil {
			h.respondError(interaction, err)
			return
		}
		h.editResponse(interaction, mentions.FormatCheckResult(result), nil)

	default:
		h.editResponse(interaction, "Unknown subcommand.", nil)
	}
}

func (h *DiscordEventsHandler) handleComponent(interaction *discordgo.Interaction, customID string) {
	confirm, operationID, ok := parseComponentID(customID)
	if !ok {
		return
	}

	err := h.session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
	if err != nil {
		log.Printf("❌ Failed to acknowledge button %s: %v", customID, err)
		return
	}

	ctx := context.Background()
	actorID := interaction.Member.User.ID

	var op models.GateOperation
	if confirm {
		op, err = h.mentionsUseCase.ConfirmFixSession(ctx, operationID, actorID)
	} else {
		op, err = h.mentionsUseCase.CancelFixSession(ctx, operationID, actorID)
	}

	if errors.Is(err, core.ErrUnauthorizedActor) {
		// leave the original message untouched for its owner
		h.followup(interaction, core.UserFacingReason(err))
		return
	}
	if err != nil {
		h.editResponse(interaction, core.UserFacingReason(err), []discordgo.MessageComponent{})
		return
	}

	h.editResponse(interaction, mentions.FormatOperation(op), confirmButtons(op))
}

func (h *DiscordEventsHandler) deferResponse(interaction *discordgo.Interaction) bool {
	err := h.session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
	if err != nil {
		log.Printf("❌ Failed to defer interaction response: %v", err)
		return false
	}
	return true
}

func (h *DiscordEventsHandler) editResponse(
	interaction *discordgo.Interaction,
	content string,
	components []discordgo.MessageComponent,
) {
	edit := &discordgo.WebhookEdit{Content: &content}
	if components != nil {
		edit.Components = &components
	}
	if _, err := h.session.InteractionResponseEdit(interaction, edit); err != nil {
		log.Printf("❌ Failed to edit interaction response: %v", err)
	}
}

func (h *DiscordEventsHandler) followup(interaction *discordgo.Interaction, content string) {
	_, err := h.session.FollowupMessageCreate(interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		log.Printf("❌ Failed to send followup message: %v", err)
	}
}

func (h *DiscordEventsHandler) respondError(interaction *discordgo.Interaction, err error) {
	log.Printf("❌ /%s failed in guild %s: %v", commandName, interaction.GuildID, err)
	h.editResponse(interaction, "❌ "+core.UserFacingReason(err), nil)
}

// Commands returns the slash command definitions registered at startup
func Commands() []*discordgo.ApplicationCommand {
	manageGuild := int64(discordgo.PermissionManageGuild)
	dmPermission := false
	minInterval := models.MinCheckInterval.Minutes()

	scopeOptions := []*discordgo.ApplicationCommandOption{
		{
			Type:         discordgo.ApplicationCommandOptionChannel,
			Name:         "channel",
			Description:  "Only inspect this channel",
			ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews},
		},
		{
			Type:        discordgo.ApplicationCommandOptionRole,
			Name:        "role",
			Description: "Only inspect this role",
		},
	}

	return []*discordgo.ApplicationCommand{{
		Name:                     commandName,
		Description:              "Diagnose and fix role mention permissions",
		DefaultMemberPermissions: &manageGuild,
		DMPermission:             &dmPermission,
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "diagnose",
				Description: "Report why role mentions may not work",
				Options:     scopeOptions,
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "fix",
				Description: "Propose fixes and apply them after two confirmations",
				Options:     scopeOptions,
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "monitor",
				Description: "Configure periodic checks",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Run checks periodically"},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "auto_fix", Description: "Apply fixes without confirmation"},
					{Type: discordgo.ApplicationCommandOptionChannel, Name: "log_channel", Description: "Where check summaries are posted"},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "clear_log_channel", Description: "Stop posting summaries"},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "notify_admins", Description: "DM the server owner on changes"},
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "interval_minutes",
						Description: "Minutes between checks",
						MinValue:    &minInterval,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "status",
				Description: "Show monitoring status and the last check",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "check",
				Description: "Run a monitoring check now",
			},
		},
	}}
}

func actorFromMember(member *discordgo.Member) models.Actor {
	return models.Actor{ID: member.User.ID, RoleIDs: member.Roles}
}

func diagnoseRequestFromOptions(
	guildID string,
	actor models.Actor,
	options []*discordgo.ApplicationCommandInteractionDataOption,
) mentions.DiagnoseRequest {
	req := mentions.DiagnoseRequest{GuildID: guildID, Actor: mo.Some(actor)}
	for _, opt := range options {
		switch opt.Name {
		case "channel":
			req.ChannelID = mo.Some(opt.ChannelValue(nil).ID)
		case "role":
			req.RoleID = mo.Some(opt.RoleValue(nil, guildID).ID)
		}
	}
	return req
}

func monitoringUpdateFromOptions(options []*discordgo.ApplicationCommandInteractionDataOption) models.MonitoringUpdate {
	var update models.MonitoringUpdate
	for _, opt := range options {
		switch opt.Name {
		case "enabled":
			v := opt.BoolValue()
			update.IsMonitored = &v
		case "auto_fix":
			v := opt.BoolValue()
			update.AutoFixEnabled = &v
		case "notify_admins":
			v := opt.BoolValue()
			update.NotifyAdmins = &v
		case "log_channel":
			v := opt.ChannelValue(nil).ID
			update.LogChannelID = &v
		case "clear_log_channel":
			if opt.BoolValue() {
				v := ""
				update.LogChannelID = &v
			}
		case "interval_minutes":
			v := time.Duration(opt.IntValue()) * time.Minute
			update.CheckInterval = &v
		}
	}
	return update
}

// parseComponentID extracts the operation from a confirm/cancel button id
func parseComponentID(customID string) (confirm bool, operationID string, ok bool) {
	switch {
	case strings.HasPrefix(customID, confirmPrefix):
		operationID = strings.TrimPrefix(customID, confirmPrefix)
		confirm = true
	case strings.HasPrefix(customID, cancelPrefix):
		operationID = strings.TrimPrefix(customID, cancelPrefix)
	default:
		return false, "", false
	}
	return confirm, operationID, core.IsValidID(operationID, "op")
}

// confirmButtons renders the buttons for the operation's state; terminal states have none
func confirmButtons(op models.GateOperation) []discordgo.MessageComponent {
	label := "Review fixes"
	switch op.State {
	case models.GateStateAwaitingInitialConfirm:
	case models.GateStateAwaitingFinalConfirm:
		label = fmt.Sprintf("Apply %d fixes now", len(op.Plan.Actions))
	default:
		return []discordgo.MessageComponent{}
	}

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: label, Style: discordgo.DangerButton, CustomID: confirmPrefix + op.ID},
			discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: cancelPrefix + op.ID},
		}},
	}
}

func formatMonitoringConfig(cfg *models.GuildMonitoringConfig) string {
	logChannel := "none"
	if cfg.LogChannelID.Valid {
		logChannel = "<#" + cfg.LogChannelID.String + ">"
	}
	interval := "default"
	if cfg.CheckIntervalMs > 0 {
		interval = (time.Duration(cfg.CheckIntervalMs) * time.Millisecond).String()
	}
	return fmt.Sprintf(
		"⚙️ Monitoring: **%t** | auto-fix: **%t** | log channel: %s | notify admins: **%t** | interval: %s",
		cfg.IsMonitored,
		cfg.AutoFixEnabled,
		logChannel,
		cfg.NotifyAdmins,
		interval,
	)
}

func formatMonitoringStatus(status *models.MonitoringStatus) string {
	var b strings.Builder
	b.WriteString(formatMonitoringConfig(status.Config))
	if status.LastCheck == nil {
		b.WriteString("\nNo check has run yet.")
		return b.String()
	}
	fmt.Fprintf(
		&b,
		"\nLast check <t:%d:R>: %d findings, severity **%s**",
		status.LastCheck.Unix(),
		status.IssueCount,
		status.Severity,
	)
	return b.String()
}
