package main

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"
	"unicode"

	"github.com/zephyrtronium/dizzy/channel"
	"github.com/zephyrtronium/dizzy/command"
	"github.com/zephyrtronium/dizzy/cooldown"
	"github.com/zephyrtronium/dizzy/message"
)

// message processes a message from Discord.
func (robo *Robot) message(ctx context.Context, m *message.Received) {
	robo.metrics.MessagesCount.Observe(1)
	if m.IsBot || m.Sender == robo.me().ID {
		return
	}
	ch := robo.channel(m.Channel, m.Guild)
	if ch.Disabled.Load() {
		return
	}
	// Run the rest in a worker so that we don't block the gateway.
	robo.enqueue(ctx, func(ctx context.Context) { robo.dispatch(ctx, ch, m) })
}

// dispatch runs the command in a message, if it has one.
func (robo *Robot) dispatch(ctx context.Context, ch *channel.Channel, m *message.Received) {
	name, rest, ok := parseCommand(robo.prefix, robo.me().ID, m.Text)
	if !ok {
		return
	}
	log := slog.With(slog.String("trace", m.ID), slog.String("in", m.Channel))
	c, args, ok := findCommand(robo.cmds, name, rest)
	if c == nil {
		log.DebugContext(ctx, "no such command", slog.String("name", name))
		return
	}
	if robo.disabled[c.name] {
		log.DebugContext(ctx, "command disabled", slog.String("name", c.name))
		return
	}
	if !ok {
		robo.warn(ctx, log, ch, "Usage: `"+robo.prefix+c.usage+"`")
		return
	}
	var perms int64
	// Guild commands refuse direct messages themselves. There are no
	// permissions to check there.
	if c.perms != 0 && m.Guild != "" {
		var err error
		perms, err = robo.perms(m)
		if err != nil {
			log.ErrorContext(ctx, "couldn't get permissions", slog.String("user", m.Sender), slog.Any("err", err))
			return
		}
		if perms&c.perms != c.perms {
			robo.warn(ctx, log, ch, "You don't have permission to use this command.")
			return
		}
	}

	call := command.Invocation{
		Channel: ch,
		Message: m,
		Args:    args,
		Perms:   perms,
	}
	ov := robo.overrides[c.name]
	spec := robo.effective(c)
	subject, err := call.Origin().Subject(spec.Scope)
	if err != nil {
		log.ErrorContext(ctx, "bad cooldown scope", slog.String("name", c.name), slog.Any("err", err))
		return
	}
	r := robo.cooldowns.Check(subject, spec.Bucket(c.name))
	if !r.Allowed {
		if !r.Notify {
			robo.metrics.CooldownCount.Observe(1, "suppressed")
			log.DebugContext(ctx, "cooldown suppressed", slog.String("name", c.name), slog.String("subject", subject))
			return
		}
		robo.metrics.CooldownCount.Observe(1, "notified")
		text := cooldown.Notice(rand.Uint32(), r.Remaining, spec.Scope, spec.Name)
		if err := ch.Say(ctx, text); err != nil {
			log.WarnContext(ctx, "couldn't send cooldown notice", slog.Any("err", err))
		}
		return
	}
	robo.metrics.CooldownCount.Observe(1, "allowed")

	log.InfoContext(ctx, "command",
		slog.String("name", c.name),
		slog.String("user", m.Sender),
		slog.Any("args", args),
	)
	cr := robo.commandRobot(log)
	start := time.Now()
	err = c.fn(ctx, cr, &call)
	robo.metrics.CommandLatency.Observe(time.Since(start).Seconds(), c.name)
	var w command.Warning
	switch {
	case err == nil:
		robo.metrics.CommandCount.Observe(1, c.name, "ok")
	case errors.As(err, &w):
		robo.metrics.CommandCount.Observe(1, c.name, "warning")
		robo.warn(ctx, log, ch, string(w))
		return
	default:
		robo.metrics.CommandCount.Observe(1, c.name, "error")
		log.ErrorContext(ctx, "command failed", slog.String("name", c.name), slog.Any("err", err))
		if err := ch.Say(ctx, "Oops! An error has occurred: ```"+err.Error()+"```"); err != nil {
			log.ErrorContext(ctx, "couldn't send error", slog.Any("err", err))
		}
		return
	}
	k, err := robo.cooldowns.Add(call.Origin(), c.name, spec, ov)
	if err != nil {
		log.ErrorContext(ctx, "couldn't add cooldown", slog.String("name", c.name), slog.Any("err", err))
		return
	}
	log.DebugContext(ctx, "cooldown", slog.String("subject", k.Subject), slog.String("bucket", k.Name))
}

// effective gets a command's cooldown with its configured override applied.
func (robo *Robot) effective(c *botCommand) cooldown.Spec {
	ov := robo.overrides[c.name]
	return cooldown.Spec{
		Time:  cmp.Or(ov.Time, c.cooldown.Time),
		Scope: cmp.Or(ov.Scope, c.cooldown.Scope, cooldown.User),
		Name:  cmp.Or(ov.Name, c.cooldown.Name),
	}
}

func (robo *Robot) perms(m *message.Received) (int64, error) {
	if robo.permissions == nil {
		return 0, errors.New("no permission source")
	}
	return robo.permissions(m.Channel, m.Sender)
}

// warn sends a warning to the channel.
func (robo *Robot) warn(ctx context.Context, log *slog.Logger, ch *channel.Channel, text string) {
	if err := ch.Say(ctx, "⚠ "+text); err != nil {
		log.WarnContext(ctx, "couldn't send warning", slog.Any("err", err))
	}
}

func (robo *Robot) enqueue(ctx context.Context, work func(context.Context)) {
	var w chan func(context.Context)
	// Get a worker if one exists. Otherwise, spawn a new one.
	select {
	case w = <-robo.works:
	default:
		w = make(chan func(context.Context), 1)
		go worker(ctx, robo.works, w)
	}
	// Send it work.
	select {
	case <-ctx.Done():
		return
	case w <- work:
	}
}

// worker runs works for a while. The provided context is passed to each work.
func worker(ctx context.Context, works chan chan func(context.Context), ch chan func(context.Context)) {
	for {
		select {
		case <-ctx.Done():
			return
		case work := <-ch:
			work(ctx)
			// Replace ourselves in the pool if it needs additional capacity.
			// Otherwise, we're done.
			select {
			case works <- ch:
			default:
				return
			}
		}
	}
}

// parseCommand splits a command invocation into the command name and the
// rest of the text. An invocation starts with the prefix or a mention of the
// bot.
func parseCommand(prefix, self, text string) (name, rest string, ok bool) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	switch {
	case prefix != "" && len(text) >= len(prefix) && strings.EqualFold(text[:len(prefix)], prefix):
		text = text[len(prefix):]
	case self != "" && strings.HasPrefix(text, "<@"+self+">"):
		text = strings.TrimLeftFunc(text[len(self)+3:], unicode.IsSpace)
	case self != "" && strings.HasPrefix(text, "<@!"+self+">"):
		text = strings.TrimLeftFunc(text[len(self)+4:], unicode.IsSpace)
	default:
		return "", "", false
	}
	k := strings.IndexFunc(text, unicode.IsSpace)
	if k < 0 {
		k = len(text)
	}
	name = text[:k]
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(text[k:]), true
}
