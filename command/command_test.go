package command_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/zephyrtronium/dizzy/channel"
	"github.com/zephyrtronium/dizzy/command"
	"github.com/zephyrtronium/dizzy/cooldown"
	"github.com/zephyrtronium/dizzy/message"
)

// fakeChat records the actions commands take.
type fakeChat struct {
	mu      sync.Mutex
	calls   []string
	members map[string]string
	msgs    []*message.Received
	info    command.ChannelDetails
	// perms is permission bits by user. Users not present can send messages.
	perms   map[string]int64
	fail    error
}

func (c *fakeChat) do(format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
	return c.fail
}

func (c *fakeChat) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *fakeChat) Member(ctx context.Context, guild, user string) (command.Member, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.members[user]
	if !ok {
		return command.Member{}, errors.New("unknown member")
	}
	return command.Member{ID: user, Name: name}, nil
}

func (c *fakeChat) Kick(ctx context.Context, guild, user, reason string) error {
	return c.do("kick %s %s %q", guild, user, reason)
}

func (c *fakeChat) Ban(ctx context.Context, guild, user, reason string, days int) error {
	return c.do("ban %s %s %q %d", guild, user, reason, days)
}

func (c *fakeChat) Unban(ctx context.Context, guild, user string) error {
	return c.do("unban %s %s", guild, user)
}

func (c *fakeChat) AddRole(ctx context.Context, guild, user, role string) error {
	return c.do("addrole %s %s %s", guild, user, role)
}

func (c *fakeChat) RemoveRole(ctx context.Context, guild, user, role string) error {
	return c.do("removerole %s %s %s", guild, user, role)
}

func (c *fakeChat) CreateRole(ctx context.Context, guild, name string) (string, error) {
	return roleID, c.do("createrole %s %q", guild, name)
}

func (c *fakeChat) DeleteRole(ctx context.Context, guild, role string) error {
	return c.do("deleterole %s %s", guild, role)
}

func (c *fakeChat) Permissions(ctx context.Context, channel, user string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.perms[user]
	if !ok {
		return discordgo.PermissionSendMessages, nil
	}
	return p, nil
}

func (c *fakeChat) SetSendMessages(ctx context.Context, channel, user string, allow bool) error {
	return c.do("sendmessages %s %s %t", channel, user, allow)
}

func (c *fakeChat) SetNickname(ctx context.Context, guild, user, nick string) error {
	return c.do("nick %s %s %q", guild, user, nick)
}

func (c *fakeChat) CreateChannel(ctx context.Context, guild, name string) (string, error) {
	return "900000000000000009", c.do("createchannel %s %s", guild, name)
}

func (c *fakeChat) DeleteChannel(ctx context.Context, channel string) error {
	return c.do("deletechannel %s", channel)
}

func (c *fakeChat) RenameChannel(ctx context.Context, channel, name string) error {
	return c.do("renamechannel %s %s", channel, name)
}

func (c *fakeChat) ChannelInfo(ctx context.Context, channel string) (command.ChannelDetails, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return command.ChannelDetails{}, c.fail
	}
	r := c.info
	r.ID = channel
	return r, nil
}

func (c *fakeChat) Messages(ctx context.Context, channel string, n int) ([]*message.Received, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs[:min(n, len(c.msgs))], nil
}

func (c *fakeChat) DeleteMessages(ctx context.Context, channel string, ids []string) error {
	return c.do("delete %s %s", channel, strings.Join(ids, ","))
}

const (
	guild  = "100000000000000001"
	chanID = "200000000000000002"
	sender = "300000000000000003"
	target = "400000000000000004"
	botID  = "500000000000000005"
	roleID = "600000000000000006"
)

func testRobot(chat *fakeChat) *command.Robot {
	return &command.Robot{
		Log:       slog.New(slog.NewTextHandler(&strings.Builder{}, nil)),
		Chat:      chat,
		Cooldowns: cooldown.New(),
		Self:      command.Member{ID: botID, Name: "Dizzy"},
		Owner:     sender,
		Prefix:    "d!",
	}
}

func testMessage(guildID string) *message.Received {
	return &message.Received{
		ID:        "700000000000000007",
		Channel:   chanID,
		Guild:     guildID,
		Sender:    sender,
		Name:      "bocchi",
		Timestamp: 1e12,
	}
}

// invoke runs a command and returns the texts it sent.
func invoke(t *testing.T, robo *command.Robot, f command.Func, msg *message.Received, args map[string]string) ([]string, error) {
	t.Helper()
	var mu sync.Mutex
	var sent []string
	ch := &channel.Channel{
		ID:    msg.Channel,
		Guild: msg.Guild,
		Message: func(ctx context.Context, m message.Sent) error {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, m.Text)
			return nil
		},
	}
	call := &command.Invocation{
		Channel: ch,
		Message: msg,
		Args:    args,
	}
	err := f(context.Background(), robo, call)
	mu.Lock()
	defer mu.Unlock()
	return sent, err
}

func isWarning(err error) bool {
	var w command.Warning
	return errors.As(err, &w)
}
