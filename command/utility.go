package command

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Ping reports how long the bot took to see the invocation.
func Ping(ctx context.Context, robo *Robot, call *Invocation) error {
	d := time.Since(call.Message.Time()).Round(time.Millisecond)
	return call.Channel.Reply(ctx, call.Message.ID, fmt.Sprintf("🏓 Pong! Took %v.", d))
}

// ChannelInfo describes a channel.
//   - channel: Channel link or ID. Defaults to the current channel.
func ChannelInfo(ctx context.Context, robo *Robot, call *Invocation) error {
	id := call.Message.Channel
	if s := strings.TrimSpace(call.Args["channel"]); s != "" {
		var ok bool
		id, ok = ChannelID(s)
		if !ok {
			return Warnf("%q is not a channel.", s)
		}
	}
	info, err := robo.Chat.ChannelInfo(ctx, id)
	if err != nil {
		return fmt.Errorf("couldn't get channel info for %s: %w", id, err)
	}
	everyone := "Yes"
	if info.Restricted {
		everyone = "No"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Channel Info - %s**\n", info.Name)
	fmt.Fprintf(&b, "Channel created at: %s (%s)\n", info.Created.UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"), Since(time.Now(), info.Created))
	fmt.Fprintf(&b, "Channel type: %s\n", info.Kind)
	fmt.Fprintf(&b, "Accessible to everyone: %s\n", everyone)
	if info.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", info.Topic)
	}
	fmt.Fprintf(&b, "ID: %s", info.ID)
	return call.Channel.Say(ctx, b.String())
}

// Help lists commands or describes one.
//   - command: Command name or alias. Optional.
func Help(ctx context.Context, robo *Robot, call *Invocation) error {
	name := strings.ToLower(strings.TrimSpace(call.Args["command"]))
	if name == "" {
		names := make([]string, 0, len(robo.Commands))
		for _, c := range robo.Commands {
			names = append(names, "`"+c.Name+"`")
		}
		s := fmt.Sprintf("Commands: %s\nUse `%shelp <command>` for more about a command.", strings.Join(names, ", "), robo.Prefix)
		return call.Channel.Say(ctx, s)
	}
	i := slices.IndexFunc(robo.Commands, func(c Info) bool {
		return c.Name == name || slices.Contains(c.Aliases, name)
	})
	if i < 0 {
		return Warnf("There is no command named `%s`.", name)
	}
	c := robo.Commands[i]
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** - %s\nUsage: `%s%s`", c.Name, c.Description, robo.Prefix, c.Usage)
	if len(c.Aliases) > 0 {
		fmt.Fprintf(&b, "\nAliases: %s", strings.Join(c.Aliases, ", "))
	}
	if c.Cooldown.Time > 0 {
		fmt.Fprintf(&b, "\nCooldown: %v per %s", c.Cooldown.Time, c.Cooldown.Scope)
	}
	return call.Channel.Say(ctx, b.String())
}
