package mentions

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/mo"

	"mentionguard/core"
	"mentionguard/models"
)

// fakeGuild is an in-memory guild that applies mutations to its own state
type fakeGuild struct {
	mu        sync.Mutex
	state     models.GuildState
	mutations int
	channel   []string
	dms       []string
	// roleEditErr makes every SetRoleMentionable call fail without touching state
	roleEditErr error
}

func (f *fakeGuild) GetGuildState(guildID string) (*models.GuildState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if guildID != f.state.GuildID {
		return nil, core.ErrSnapshotUnavailable
	}
	cp := f.state
	cp.Roles = append([]models.RoleRef(nil), f.state.Roles...)
	cp.Channels = make([]models.ChannelRef, 0, len(f.state.Channels))
	for _, ch := range f.state.Channels {
		ch.Overwrites = append([]models.ChannelOverwrite(nil), ch.Overwrites...)
		cp.Channels = append(cp.Channels, ch)
	}
	return &cp, nil
}

func (f *fakeGuild) GetRole(_ context.Context, _, roleID string) (mo.Option[*models.RoleRef], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.state.Roles {
		if r.ID == roleID {
			return mo.Some(&r), nil
		}
	}
	return mo.None[*models.RoleRef](), nil
}

func (f *fakeGuild) GetChannel(_ context.Context, _, channelID string) (mo.Option[*models.ChannelRef], error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.state.Channels {
		if ch.ID == channelID {
			ch.Overwrites = append([]models.ChannelOverwrite(nil), ch.Overwrites...)
			return mo.Some(&ch), nil
		}
	}
	return mo.None[*models.ChannelRef](), nil
}

func (f *fakeGuild) SetRoleMentionable(_ context.Context, _, roleID string, mentionable bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.roleEditErr != nil {
		return f.roleEditErr
	}

	f.mutations++
	for i := range f.state.Roles {
		if f.state.Roles[i].ID == roleID {
			f.state.Roles[i].Mentionable = mentionable
			return nil
		}
	}
	return fmt.Errorf("role %s: %w", roleID, core.ErrTargetNotFound)
}

func (f *fakeGuild) EditChannelOverwrite(_ context.Context, overwrite models.ChannelOverwrite) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mutations++
	ch := f.findChannel(overwrite.ChannelID)
	if ch == nil {
		return fmt.Errorf("channel %s: %w", overwrite.ChannelID, core.ErrTargetNotFound)
	}
	for i := range ch.Overwrites {
		if ch.Overwrites[i].SubjectID == overwrite.SubjectID {
			ch.Overwrites[i] = overwrite
			return nil
		}
	}
	ch.Overwrites = append(ch.Overwrites, overwrite)
	return nil
}

func (f *fakeGuild) DeleteChannelOverwrite(_ context.Context, channelID, subjectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mutations++
	ch := f.findChannel(channelID)
	if ch == nil {
		return fmt.Errorf("channel %s: %w", channelID, core.ErrTargetNotFound)
	}
	kept := ch.Overwrites[:0]
	for _, ow := range ch.Overwrites {
		if ow.SubjectID != subjectID {
			kept = append(kept, ow)
		}
	}
	ch.Overwrites = kept
	return nil
}

func (f *fakeGuild) CreateRole(_ context.Context, _ string, spec models.RoleSpec) (*models.RoleRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mutations++
	role := models.RoleRef{
		ID:          fmt.Sprintf("created-%d", len(f.state.Roles)),
		Name:        spec.Name,
		Position:    1,
		Mentionable: spec.Mentionable,
		Permissions: spec.Permissions,
	}
	f.state.Roles = append(f.state.Roles, role)
	return &role, nil
}

func (f *fakeGuild) SendChannelMessage(_ context.Context, channelID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = append(f.channel, channelID+": "+content)
	return nil
}

func (f *fakeGuild) SendDirectMessage(_ context.Context, userID, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dms = append(f.dms, userID+": "+content)
	return nil
}

func (f *fakeGuild) failRoleEdits(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roleEditErr = err
}

func (f *fakeGuild) mutationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mutations
}

func (f *fakeGuild) messages() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.channel...), append([]string(nil), f.dms...)
}

func (f *fakeGuild) findChannel(channelID string) *models.ChannelRef {
	for i := range f.state.Channels {
		if f.state.Channels[i].ID == channelID {
			return &f.state.Channels[i]
		}
	}
	return nil
}
