package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zephyrtronium/dizzy/command"
	"github.com/zephyrtronium/dizzy/message"
	"github.com/zephyrtronium/dizzy/status"
)

// InitDiscord creates the Discord session and connects the robot to it.
// The session is not opened until the robot runs.
func (robo *Robot) InitDiscord(ctx context.Context, token string) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("couldn't create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds | discordgo.IntentGuildMessages | discordgo.IntentMessageContent
	session.AddHandler(func(s *discordgo.Session, ev *discordgo.Ready) {
		robo.self.Store(&command.Member{ID: ev.User.ID, Name: ev.User.Username})
		slog.InfoContext(ctx, "Discord ready",
			slog.String("user", ev.User.Username),
			slog.Int("guilds", len(ev.Guilds)),
		)
	})
	session.AddHandler(func(s *discordgo.Session, ev *discordgo.MessageCreate) {
		robo.message(ctx, message.FromDiscord(ev.Message))
	})
	session.AddHandler(func(s *discordgo.Session, ev *discordgo.ChannelDelete) {
		robo.channels.Delete(ev.ID)
	})
	chat := &discordChat{s: session}
	robo.chat = chat
	robo.send = chat.send
	robo.permissions = chat.permissions
	robo.counts = chat.counts
	return session, nil
}

// runDiscord opens a session and holds it until the context is done.
func runDiscord(session *discordgo.Session) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := session.Open(); err != nil {
			return fmt.Errorf("couldn't connect to Discord: %w", err)
		}
		<-ctx.Done()
		if err := session.Close(); err != nil {
			slog.ErrorContext(ctx, "couldn't close Discord session", slog.Any("err", err))
		}
		return ctx.Err()
	}
}

// presence updates the bot's displayed status.
func presence(session *discordgo.Session) func(string) error {
	return func(s string) error {
		return session.UpdateGameStatus(0, s)
	}
}

// discordChat is the command view of a Discord session.
type discordChat struct {
	s *discordgo.Session
}

func (c *discordChat) send(ctx context.Context, msg message.Sent) error {
	_, err := c.s.ChannelMessageSendComplex(msg.To, message.ToDiscord(msg), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("couldn't send message: %w", err)
	}
	return nil
}

// permissions gets a user's permissions in a channel. Members missing from
// the state cache are fetched and cached.
func (c *discordChat) permissions(channel, user string) (int64, error) {
	p, err := c.s.State.UserChannelPermissions(user, channel)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, discordgo.ErrStateNotFound) {
		return 0, err
	}
	ch, err := c.s.State.Channel(channel)
	if err != nil {
		return 0, err
	}
	m, err := c.s.GuildMember(ch.GuildID, user)
	if err != nil {
		return 0, fmt.Errorf("couldn't get member: %w", err)
	}
	m.GuildID = ch.GuildID
	if err := c.s.State.MemberAdd(m); err != nil {
		return 0, err
	}
	return c.s.State.UserChannelPermissions(user, channel)
}

func (c *discordChat) counts() status.Counts {
	c.s.State.RLock()
	defer c.s.State.RUnlock()
	r := status.Counts{Guilds: len(c.s.State.Guilds)}
	for _, g := range c.s.State.Guilds {
		r.Users += g.MemberCount
	}
	return r
}

func (c *discordChat) Member(ctx context.Context, guild, user string) (command.Member, error) {
	m, err := c.s.GuildMember(guild, user, discordgo.WithContext(ctx))
	if err != nil {
		return command.Member{}, err
	}
	r := command.Member{ID: user, Name: m.Nick}
	if r.Name == "" && m.User != nil {
		r.Name = m.User.Username
	}
	return r, nil
}

func (c *discordChat) Kick(ctx context.Context, guild, user, reason string) error {
	return c.s.GuildMemberDeleteWithReason(guild, user, reason, discordgo.WithContext(ctx))
}

func (c *discordChat) Ban(ctx context.Context, guild, user, reason string, days int) error {
	return c.s.GuildBanCreateWithReason(guild, user, reason, days, discordgo.WithContext(ctx))
}

func (c *discordChat) Unban(ctx context.Context, guild, user string) error {
	return c.s.GuildBanDelete(guild, user, discordgo.WithContext(ctx))
}

func (c *discordChat) AddRole(ctx context.Context, guild, user, role string) error {
	return c.s.GuildMemberRoleAdd(guild, user, role, discordgo.WithContext(ctx))
}

func (c *discordChat) RemoveRole(ctx context.Context, guild, user, role string) error {
	return c.s.GuildMemberRoleRemove(guild, user, role, discordgo.WithContext(ctx))
}

func (c *discordChat) CreateRole(ctx context.Context, guild, name string) (string, error) {
	r, err := c.s.GuildRoleCreate(guild, &discordgo.RoleParams{Name: name}, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

func (c *discordChat) DeleteRole(ctx context.Context, guild, role string) error {
	return c.s.GuildRoleDelete(guild, role, discordgo.WithContext(ctx))
}

func (c *discordChat) Permissions(ctx context.Context, channel, user string) (int64, error) {
	return c.permissions(channel, user)
}

func (c *discordChat) SetSendMessages(ctx context.Context, channel, user string, allow bool) error {
	var a, d int64
	if allow {
		a = discordgo.PermissionSendMessages
	} else {
		d = discordgo.PermissionSendMessages
	}
	return c.s.ChannelPermissionSet(channel, user, discordgo.PermissionOverwriteTypeMember, a, d, discordgo.WithContext(ctx))
}

func (c *discordChat) SetNickname(ctx context.Context, guild, user, nick string) error {
	return c.s.GuildMemberNickname(guild, user, nick, discordgo.WithContext(ctx))
}

func (c *discordChat) CreateChannel(ctx context.Context, guild, name string) (string, error) {
	ch, err := c.s.GuildChannelCreate(guild, name, discordgo.ChannelTypeGuildText, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return ch.ID, nil
}

func (c *discordChat) DeleteChannel(ctx context.Context, channel string) error {
	_, err := c.s.ChannelDelete(channel, discordgo.WithContext(ctx))
	return err
}

func (c *discordChat) RenameChannel(ctx context.Context, channel, name string) error {
	_, err := c.s.ChannelEdit(channel, &discordgo.ChannelEdit{Name: name}, discordgo.WithContext(ctx))
	return err
}

func (c *discordChat) ChannelInfo(ctx context.Context, channel string) (command.ChannelDetails, error) {
	ch, err := c.s.Channel(channel, discordgo.WithContext(ctx))
	if err != nil {
		return command.ChannelDetails{}, err
	}
	created, err := discordgo.SnowflakeTimestamp(ch.ID)
	if err != nil {
		return command.ChannelDetails{}, err
	}
	return command.ChannelDetails{
		ID:         ch.ID,
		Name:       ch.Name,
		Kind:       channelKind(ch.Type),
		Topic:      ch.Topic,
		Created:    created,
		Restricted: len(ch.PermissionOverwrites) > 0,
	}, nil
}

func channelKind(t discordgo.ChannelType) string {
	switch t {
	case discordgo.ChannelTypeGuildText:
		return "text"
	case discordgo.ChannelTypeGuildVoice:
		return "voice"
	case discordgo.ChannelTypeGuildCategory:
		return "category"
	case discordgo.ChannelTypeGuildNews:
		return "news"
	case discordgo.ChannelTypeGuildStageVoice:
		return "stage"
	case discordgo.ChannelTypeGuildForum:
		return "forum"
	case discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread, discordgo.ChannelTypeGuildNewsThread:
		return "thread"
	case discordgo.ChannelTypeDM, discordgo.ChannelTypeGroupDM:
		return "dm"
	default:
		return "unknown"
	}
}

func (c *discordChat) Messages(ctx context.Context, channel string, n int) ([]*message.Received, error) {
	msgs, err := c.s.ChannelMessages(channel, n, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	r := make([]*message.Received, len(msgs))
	for i, m := range msgs {
		r[i] = message.FromDiscord(m)
	}
	return r, nil
}

// bulkAge is the age past which Discord refuses to bulk delete messages.
const bulkAge = 14 * 24 * time.Hour

func (c *discordChat) DeleteMessages(ctx context.Context, channel string, ids []string) error {
	// Bulk deletion only takes between 2 and 100 recent messages.
	// Anything else is deleted one at a time.
	var bulk, single []string
	for _, id := range ids {
		t, err := discordgo.SnowflakeTimestamp(id)
		if err == nil && time.Since(t) < bulkAge {
			bulk = append(bulk, id)
		} else {
			single = append(single, id)
		}
	}
	for len(bulk) > 0 {
		if len(bulk) == 1 {
			single = append(single, bulk[0])
			break
		}
		k := min(len(bulk), 100)
		if err := c.s.ChannelMessagesBulkDelete(channel, bulk[:k], discordgo.WithContext(ctx)); err != nil {
			return err
		}
		bulk = bulk[k:]
	}
	for _, id := range single {
		if err := c.s.ChannelMessageDelete(channel, id, discordgo.WithContext(ctx)); err != nil {
			return err
		}
	}
	return nil
}
