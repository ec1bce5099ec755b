package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/mo"

	"mentionguard/clients"
	"mentionguard/core"
	"mentionguard/models"
)

const manageOverwritesMask = discordgo.PermissionManageRoles | discordgo.PermissionAdministrator

// DiscordClient implements clients.GuildClient on top of a discordgo session.
// Reads come from the session state cache, re-validation and mutations go through REST.
type DiscordClient struct {
	session *discordgo.Session
}

// NewDiscordClient creates a new guild client backed by an existing discordgo session
func NewDiscordClient(session *discordgo.Session) clients.GuildClient {
	return &DiscordClient{session: session}
}

func (c *DiscordClient) GetGuildState(guildID string) (*models.GuildState, error) {
	guild, err := c.session.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("guild %s is not cached: %w", guildID, core.ErrSnapshotUnavailable)
	}

	botID := c.botUserID()
	if botID == "" {
		return nil, fmt.Errorf("bot user is not known yet: %w", core.ErrSnapshotUnavailable)
	}

	botMember, err := c.session.State.Member(guildID, botID)
	if err != nil {
		return nil, fmt.Errorf("bot member of guild %s is not cached: %w", guildID, core.ErrSnapshotUnavailable)
	}

	// Copy under the state lock; permission lookups below take the lock themselves
	c.session.State.RLock()
	ownerID := guild.OwnerID
	roles := make([]models.RoleRef, 0, len(guild.Roles))
	for _, role := range guild.Roles {
		roles = append(roles, mapRole(role))
	}
	channels := make([]*discordgo.Channel, 0, len(guild.Channels))
	for _, ch := range guild.Channels {
		if isTextCapable(ch.Type) {
			channels = append(channels, ch)
		}
	}
	mappedChannels := make([]models.ChannelRef, 0, len(channels))
	for _, ch := range channels {
		mappedChannels = append(mappedChannels, mapChannel(guildID, ch))
	}
	botRoleIDs := append([]string(nil), botMember.Roles...)
	c.session.State.RUnlock()

	if len(roles) == 0 {
		return nil, fmt.Errorf("roles of guild %s are not cached: %w", guildID, core.ErrSnapshotUnavailable)
	}

	state := &models.GuildState{
		GuildID:  guildID,
		OwnerID:  ownerID,
		Roles:    roles,
		Channels: mappedChannels,
	}

	var guildPerms int64
	for _, role := range roles {
		if role.ID == guildID {
			guildPerms |= role.Permissions
		}
		for _, id := range botRoleIDs {
			if role.ID != id {
				continue
			}
			guildPerms |= role.Permissions
			if role.Position > state.BotTopPosition {
				state.BotTopPosition = role.Position
			}
		}
	}
	state.BotCanManageRoles = botID == ownerID || guildPerms&manageOverwritesMask != 0

	for i := range state.Channels {
		perms, err := c.session.State.UserChannelPermissions(botID, state.Channels[i].ID)
		if err != nil {
			continue
		}
		state.Channels[i].BotCanManage = perms&manageOverwritesMask != 0
	}

	return state, nil
}

func (c *DiscordClient) GetRole(ctx context.Context, guildID, roleID string) (mo.Option[*models.RoleRef], error) {
	roles, err := c.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		classified := classifyError(err)
		if errors.Is(classified, core.ErrTargetNotFound) {
			return mo.None[*models.RoleRef](), nil
		}
		return mo.None[*models.RoleRef](), fmt.Errorf("failed to fetch roles: %w", classified)
	}

	for _, role := range roles {
		if role.ID == roleID {
			ref := mapRole(role)
			return mo.Some(&ref), nil
		}
	}

	return mo.None[*models.RoleRef](), nil
}

func (c *DiscordClient) GetChannel(ctx context.Context, guildID, channelID string) (mo.Option[*models.ChannelRef], error) {
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		classified := classifyError(err)
		if errors.Is(classified, core.ErrTargetNotFound) {
			return mo.None[*models.ChannelRef](), nil
		}
		return mo.None[*models.ChannelRef](), fmt.Errorf("failed to fetch channel: %w", classified)
	}
	if ch == nil || ch.GuildID != guildID {
		return mo.None[*models.ChannelRef](), nil
	}

	ref := mapChannel(guildID, ch)
	return mo.Some(&ref), nil
}

func (c *DiscordClient) SetRoleMentionable(ctx context.Context, guildID, roleID string, mentionable bool) error {
	_, err := c.session.GuildRoleEdit(guildID, roleID, &discordgo.RoleParams{
		Mentionable: &mentionable,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to edit role %s: %w", roleID, classifyError(err))
	}
	return nil
}

func (c *DiscordClient) EditChannelOverwrite(ctx context.Context, overwrite models.ChannelOverwrite) error {
	err := c.session.ChannelPermissionSet(
		overwrite.ChannelID,
		overwrite.SubjectID,
		discordgo.PermissionOverwriteTypeRole,
		overwrite.Allow,
		overwrite.Deny,
		discordgo.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to edit overwrite on channel %s: %w", overwrite.ChannelID, classifyError(err))
	}
	return nil
}

func (c *DiscordClient) DeleteChannelOverwrite(ctx context.Context, channelID, subjectID string) error {
	err := c.session.ChannelPermissionDelete(channelID, subjectID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete overwrite on channel %s: %w", channelID, classifyError(err))
	}
	return nil
}

func (c *DiscordClient) CreateRole(ctx context.Context, guildID string, spec models.RoleSpec) (*models.RoleRef, error) {
	permissions := spec.Permissions
	mentionable := spec.Mentionable
	role, err := c.session.GuildRoleCreate(guildID, &discordgo.RoleParams{
		Name:        spec.Name,
		Permissions: &permissions,
		Mentionable: &mentionable,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create role: %w", classifyError(err))
	}

	ref := mapRole(role)
	return &ref, nil
}

func (c *DiscordClient) SendChannelMessage(ctx context.Context, channelID, content string) error {
	if _, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to send message to channel %s: %w", channelID, classifyError(err))
	}
	return nil
}

func (c *DiscordClient) SendDirectMessage(ctx context.Context, userID, content string) error {
	dm, err := c.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to open DM with user %s: %w", userID, classifyError(err))
	}
	return c.SendChannelMessage(ctx, dm.ID, content)
}

func (c *DiscordClient) botUserID() string {
	if c.session.State == nil || c.session.State.User == nil {
		return ""
	}
	return c.session.State.User.ID
}

func mapRole(role *discordgo.Role) models.RoleRef {
	return models.RoleRef{
		ID:          role.ID,
		Name:        role.Name,
		Position:    role.Position,
		Mentionable: role.Mentionable,
		Managed:     role.Managed,
		Permissions: role.Permissions,
	}
}

func mapChannel(guildID string, ch *discordgo.Channel) models.ChannelRef {
	ref := models.ChannelRef{
		ID:       ch.ID,
		Name:     ch.Name,
		Position: ch.Position,
	}
	for _, ow := range ch.PermissionOverwrites {
		// member overwrites cannot block role mentions for everyone
		if ow.Type != discordgo.PermissionOverwriteTypeRole {
			continue
		}
		subjectType := models.SubjectTypeRole
		if ow.ID == guildID {
			subjectType = models.SubjectTypeEveryone
		}
		ref.Overwrites = append(ref.Overwrites, models.ChannelOverwrite{
			ChannelID:   ch.ID,
			SubjectID:   ow.ID,
			SubjectType: subjectType,
			Allow:       ow.Allow,
			Deny:        ow.Deny,
		})
	}
	return ref
}

func isTextCapable(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildForum,
		discordgo.ChannelTypeGuildMedia,
		discordgo.ChannelTypeGuildVoice,
		discordgo.ChannelTypeGuildStageVoice:
		return true
	default:
		return false
	}
}

// classifyError maps discordgo errors onto the engine's error taxonomy
func classifyError(err error) error {
	var rateErr *discordgo.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: %v", core.ErrRateLimited, err)
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", core.ErrTargetNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %v", core.ErrPermissionDenied, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", core.ErrRateLimited, err)
		}
	}

	return err
}
