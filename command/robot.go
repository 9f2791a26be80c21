package command

import (
	"context"
	"log/slog"
	"time"

	"github.com/zephyrtronium/dizzy/audit"
	"github.com/zephyrtronium/dizzy/cooldown"
	"github.com/zephyrtronium/dizzy/message"
)

// Robot is the bot state as is visible to commands.
type Robot struct {
	Log       *slog.Logger
	Chat      Chat
	Cooldowns *cooldown.Tracker
	// Audit is the moderation log. It may be nil.
	Audit *audit.Log
	// Jokes is the joke source. It may be nil.
	Jokes *Jokes
	// Self is the bot's own user.
	Self Member
	// Owner is the user ID of the bot owner.
	Owner string
	// Prefix is the command prefix.
	Prefix string
	// Commands describes the available commands for help.
	Commands []Info
}

// Info describes a command for help.
type Info struct {
	Name        string
	Aliases     []string
	Usage       string
	Description string
	Cooldown    cooldown.Spec
}

// Chat is the subset of the chat service used by commands.
type Chat interface {
	// Member looks up a member of a guild.
	Member(ctx context.Context, guild, user string) (Member, error)
	Kick(ctx context.Context, guild, user, reason string) error
	Ban(ctx context.Context, guild, user, reason string, days int) error
	Unban(ctx context.Context, guild, user string) error
	AddRole(ctx context.Context, guild, user, role string) error
	RemoveRole(ctx context.Context, guild, user, role string) error
	// CreateRole creates a role and returns its ID.
	CreateRole(ctx context.Context, guild, name string) (string, error)
	DeleteRole(ctx context.Context, guild, role string) error
	// Permissions gets a user's permission bits in a channel.
	Permissions(ctx context.Context, channel, user string) (int64, error)
	// SetSendMessages overwrites whether a member may send messages in a
	// channel.
	SetSendMessages(ctx context.Context, channel, user string, allow bool) error
	// SetNickname sets a member's nickname. An empty nickname resets it.
	SetNickname(ctx context.Context, guild, user, nick string) error
	// CreateChannel creates a text channel and returns its ID.
	CreateChannel(ctx context.Context, guild, name string) (string, error)
	DeleteChannel(ctx context.Context, channel string) error
	RenameChannel(ctx context.Context, channel, name string) error
	ChannelInfo(ctx context.Context, channel string) (ChannelDetails, error)
	// Messages fetches up to n of the most recent messages in a channel,
	// newest first.
	Messages(ctx context.Context, channel string, n int) ([]*message.Received, error)
	DeleteMessages(ctx context.Context, channel string, ids []string) error
}

// Member is a user as seen from a guild.
type Member struct {
	ID   string
	Name string
}

// ChannelDetails describes a channel.
type ChannelDetails struct {
	ID      string
	Name    string
	Kind    string
	Topic   string
	Created time.Time
	// Restricted is true when the channel has permission overwrites.
	Restricted bool
}

// record adds an entry to the audit log, if there is one.
func (robo *Robot) record(ctx context.Context, call *Invocation, action, target, reason string) {
	if robo.Audit == nil {
		return
	}
	e := audit.Entry{
		Guild:   call.Message.Guild,
		Channel: call.Message.Channel,
		Actor:   call.Message.Sender,
		Action:  action,
		Target:  target,
		Reason:  reason,
		Time:    call.Message.Time(),
	}
	if err := robo.Audit.Record(ctx, e); err != nil {
		robo.Log.ErrorContext(ctx, "couldn't record audit entry",
			slog.Any("err", err),
			slog.String("action", action),
			slog.String("target", target),
		)
	}
}
