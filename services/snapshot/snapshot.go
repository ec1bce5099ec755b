package snapshot

import (
	"fmt"
	"log"
	"time"

	"github.com/samber/mo"

	"mentionguard/clients"
	"mentionguard/models"
)

// Filter narrows the inspected channel set. The zero value inspects every text-capable channel.
type Filter struct {
	ChannelID mo.Option[string]
}

// SnapshotService is the read-only permission snapshot reader
type SnapshotService struct {
	guildReader clients.GuildReader
	now         func() time.Time
}

func NewSnapshotService(guildReader clients.GuildReader) *SnapshotService {
	return &SnapshotService{guildReader: guildReader, now: time.Now}
}

// ReadSnapshot returns every non-@everyone role and the overwrites of the inspected channels.
// Fails with core.ErrSnapshotUnavailable when the guild cache is cold.
func (s *SnapshotService) ReadSnapshot(guildID string, filter Filter) (*models.GuildSnapshot, error) {
	state, err := s.guildReader.GetGuildState(guildID)
	if err != nil {
		return nil, fmt.Errorf("failed to read guild state: %w", err)
	}

	snap := &models.GuildSnapshot{
		GuildID:           guildID,
		OwnerID:           state.OwnerID,
		BotTopPosition:    state.BotTopPosition,
		BotCanManageRoles: state.BotCanManageRoles,
		TakenAt:           s.now(),
	}

	for _, role := range state.Roles {
		if role.ID == guildID {
			snap.Everyone = role
			continue
		}
		snap.Roles = append(snap.Roles, role)
	}
	if snap.Everyone.ID == "" {
		// @everyone always exists; synthesise it when the cache omits it
		snap.Everyone = models.RoleRef{ID: guildID, Name: "@everyone"}
	}

	for _, ch := range state.Channels {
		if filter.ChannelID.IsPresent() && ch.ID != filter.ChannelID.MustGet() {
			continue
		}
		snap.Channels = append(snap.Channels, ch)
	}

	if filter.ChannelID.IsPresent() && len(snap.Channels) == 0 {
		log.Printf("⚠️ Channel %s not found among text channels of guild %s", filter.ChannelID.MustGet(), guildID)
	}

	return snap, nil
}
