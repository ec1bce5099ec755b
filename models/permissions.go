package models

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

// MentionPermission is the permission bit controlling @everyone, @here and role mentions
const MentionPermission int64 = discordgo.PermissionMentionEveryone

// SubjectType identifies who a channel overwrite applies to
type SubjectType string

const (
	SubjectTypeEveryone SubjectType = "everyone"
	SubjectTypeRole     SubjectType = "role"
)

// RoleRef is an immutable snapshot of a guild role
type RoleRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Position    int    `json:"position"`
	Mentionable bool   `json:"mentionable"`
	Managed     bool   `json:"managed"`
	Permissions int64  `json:"permissions"`
}

// HoldsMentionPermission reports whether the role grants the mention permission at guild level
func (r *RoleRef) HoldsMentionPermission() bool {
	return r.Permissions&(MentionPermission|discordgo.PermissionAdministrator) != 0
}

// ChannelOverwrite is a channel-scoped permission delta for one subject
type ChannelOverwrite struct {
	ChannelID   string      `json:"channel_id"`
	SubjectID   string      `json:"subject_id"`
	SubjectType SubjectType `json:"subject_type"`
	Allow       int64       `json:"allow"`
	Deny        int64       `json:"deny"`
}

// DeniesMentions reports whether the overwrite explicitly denies the mention permission
func (o ChannelOverwrite) DeniesMentions() bool {
	return o.Deny&MentionPermission != 0
}

// ChannelRef is a text-capable channel with the overwrites relevant to mention delivery
type ChannelRef struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Position   int                `json:"position"`
	Overwrites []ChannelOverwrite `json:"overwrites"`
	// BotCanManage is true when the bot may edit this channel's overwrites
	BotCanManage bool `json:"bot_can_manage"`
}

// FindOverwrite returns the overwrite for the given subject, if any
func (c *ChannelRef) FindOverwrite(subjectID string) (ChannelOverwrite, bool) {
	for _, ow := range c.Overwrites {
		if ow.SubjectID == subjectID {
			return ow, true
		}
	}
	return ChannelOverwrite{}, false
}

// GuildState is the raw cached view of a guild as exposed by the chat client
type GuildState struct {
	GuildID  string
	OwnerID  string
	Roles    []RoleRef // includes @everyone (ID == GuildID)
	Channels []ChannelRef
	// BotTopPosition is the position of the bot's highest role
	BotTopPosition    int
	BotCanManageRoles bool
}

// GuildSnapshot is the read-only input to issue detection
type GuildSnapshot struct {
	GuildID  string  `json:"guild_id"`
	OwnerID  string  `json:"owner_id"`
	Everyone RoleRef `json:"everyone"`
	// Roles excludes @everyone
	Roles             []RoleRef    `json:"roles"`
	Channels          []ChannelRef `json:"channels"`
	BotTopPosition    int          `json:"bot_top_position"`
	BotCanManageRoles bool         `json:"bot_can_manage_roles"`
	TakenAt           time.Time    `json:"taken_at"`
}

// FindRole returns the role with the given ID, including @everyone
func (s *GuildSnapshot) FindRole(roleID string) (RoleRef, bool) {
	if roleID == s.Everyone.ID {
		return s.Everyone, true
	}
	for _, r := range s.Roles {
		if r.ID == roleID {
			return r, true
		}
	}
	return RoleRef{}, false
}

// RoleSpec describes a role the engine may create
type RoleSpec struct {
	Name        string
	Permissions int64
	Mentionable bool
}
