package discord

import (
	"context"

	"github.com/samber/mo"
	"github.com/stretchr/testify/mock"

	"mentionguard/models"
)

// MockDiscordClient implements the clients.GuildClient interface for testing
type MockDiscordClient struct {
	mock.Mock
}

func (m *MockDiscordClient) GetGuildState(guildID string) (*models.GuildState, error) {
	args := m.Called(guildID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GuildState), args.Error(1)
}

func (m *MockDiscordClient) GetRole(ctx context.Context, guildID, roleID string) (mo.Option[*models.RoleRef], error) {
	args := m.Called(ctx, guildID, roleID)
	return args.Get(0).(mo.Option[*models.RoleRef]), args.Error(1)
}

func (m *MockDiscordClient) GetChannel(
	ctx context.Context,
	guildID, channelID string,
) (mo.Option[*models.ChannelRef], error) {
	args := m.Called(ctx, guildID, channelID)
	return args.Get(0).(mo.Option[*models.ChannelRef]), args.Error(1)
}

func (m *MockDiscordClient) SetRoleMentionable(ctx context.Context, guildID, roleID string, mentionable bool) error {
	args := m.Called(ctx, guildID, roleID, mentionable)
	return args.Error(0)
}

func (m *MockDiscordClient) EditChannelOverwrite(ctx context.Context, overwrite models.ChannelOverwrite) error {
	args := m.Called(ctx, overwrite)
	return args.Error(0)
}

func (m *MockDiscordClient) DeleteChannelOverwrite(ctx context.Context, channelID, subjectID string) error {
	args := m.Called(ctx, channelID, subjectID)
	return args.Error(0)
}

func (m *MockDiscordClient) CreateRole(ctx context.Context, guildID string, spec models.RoleSpec) (*models.RoleRef, error) {
	args := m.Called(ctx, guildID, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RoleRef), args.Error(1)
}

func (m *MockDiscordClient) SendChannelMessage(ctx context.Context, channelID, content string) error {
	args := m.Called(ctx, channelID, content)
	return args.Error(0)
}

func (m *MockDiscordClient) SendDirectMessage(ctx context.Context, userID, content string) error {
	args := m.Called(ctx, userID, content)
	return args.Error(0)
}
