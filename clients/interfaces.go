package clients

import (
	"context"

	"github.com/samber/mo"

	"mentionguard/models"
)

// GuildReader exposes the cached, read-only view of a guild
type GuildReader interface {
	// GetGuildState returns the cached roles and channels of a guild.
	// Fails with core.ErrSnapshotUnavailable when the cache has not been populated.
	GetGuildState(guildID string) (*models.GuildState, error)
	// GetRole fetches a role live from the platform, bypassing the cache
	GetRole(ctx context.Context, guildID, roleID string) (mo.Option[*models.RoleRef], error)
	// GetChannel fetches a channel live from the platform, bypassing the cache
	GetChannel(ctx context.Context, guildID, channelID string) (mo.Option[*models.ChannelRef], error)
}

// GuildMutator performs the mutations a FixAction may need.
// Errors are wrapped with core.ErrTargetNotFound, core.ErrPermissionDenied or core.ErrRateLimited when applicable.
type GuildMutator interface {
	SetRoleMentionable(ctx context.Context, guildID, roleID string, mentionable bool) error
	EditChannelOverwrite(ctx context.Context, overwrite models.ChannelOverwrite) error
	DeleteChannelOverwrite(ctx context.Context, channelID, subjectID string) error
	CreateRole(ctx context.Context, guildID string, spec models.RoleSpec) (*models.RoleRef, error)
}

// GuildNotifier delivers plain-text notifications
type GuildNotifier interface {
	SendChannelMessage(ctx context.Context, channelID, content string) error
	SendDirectMessage(ctx context.Context, userID, content string) error
}

// GuildClient is everything the engine needs from the chat platform
type GuildClient interface {
	GuildReader
	GuildMutator
	GuildNotifier
}
