package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zephyrtronium/dizzy/audit"
	"github.com/zephyrtronium/dizzy/channel"
	"github.com/zephyrtronium/dizzy/command"
	"github.com/zephyrtronium/dizzy/cooldown"
	"github.com/zephyrtronium/dizzy/message"
	"github.com/zephyrtronium/dizzy/metrics"
	"github.com/zephyrtronium/dizzy/stats"
	"github.com/zephyrtronium/dizzy/status"
	"github.com/zephyrtronium/dizzy/syncmap"
)

// Robot is the overall state of the bot.
type Robot struct {
	// channels is the cache of channels by Discord channel ID.
	channels *syncmap.Map[string, *channel.Channel]
	// cooldowns is the registry of active cooldowns.
	cooldowns *cooldown.Tracker
	// audit is the moderation log. It may be nil.
	audit *audit.Log
	// jokes is the joke cache.
	jokes *command.Jokes
	// metrics is the collection of metrics.
	metrics *metrics.Metrics
	// works is the worker pool for command execution.
	works chan chan func(context.Context)

	// cmds is the command table.
	cmds []botCommand
	// overrides is the configured cooldown overrides by command name.
	overrides map[string]cooldown.Override
	// disabled is the set of disabled command names.
	disabled map[string]bool
	// prefix is the command prefix.
	prefix string
	// owner is the bot owner.
	owner Owner
	// rate is the rate limit configuration for new channels.
	rate Rate

	// chat is the chat service. It is set when the Discord session starts.
	chat command.Chat
	// self is the bot's own user. It is set when the Discord session becomes
	// ready.
	self atomic.Pointer[command.Member]
	// send sends a message. It is set when the Discord session starts.
	send func(ctx context.Context, msg message.Sent) error
	// permissions gets a user's permissions in a channel.
	permissions func(channel, user string) (int64, error)
	// counts gets the bot's reach.
	counts func() status.Counts
}

// New creates a new robot instance.
func New(poolSize int) *Robot {
	cooldowns := cooldown.New()
	return &Robot{
		channels:  syncmap.New[string, *channel.Channel](),
		cooldowns: cooldowns,
		metrics:   metrics.New(func() float64 { return float64(cooldowns.Active()) }),
		works:     make(chan chan func(context.Context), poolSize),
		cmds:      commands,
		overrides: make(map[string]cooldown.Override),
		disabled:  make(map[string]bool),
		jokes:     &command.Jokes{HTTP: &http.Client{Timeout: 30 * time.Second}, URL: command.JokesURL},
	}
}

// SetCommands applies command configuration: cooldown overrides and
// disabled commands.
func (robo *Robot) SetCommands(cfg *Config) error {
	robo.prefix = cfg.Discord.Prefix
	robo.owner = cfg.Owner
	robo.rate = cfg.Discord.Rate
	if cfg.Discord.Jokes != "" {
		robo.jokes.URL = cfg.Discord.Jokes
	}
	for name, c := range cfg.Cooldowns {
		cmd, _, _ := findCommand(robo.cmds, name, "")
		if cmd == nil || cmd.name != name {
			return fmt.Errorf("cooldown override for unknown command %q", name)
		}
		ov, err := c.override()
		if err != nil {
			return fmt.Errorf("bad cooldown override for %s: %w", name, err)
		}
		robo.overrides[name] = ov
	}
	for _, name := range cfg.Disable {
		cmd, _, _ := findCommand(robo.cmds, name, "")
		if cmd == nil {
			return fmt.Errorf("can't disable unknown command %q", name)
		}
		robo.disabled[cmd.name] = true
	}
	return nil
}

// SetAudit sets the moderation log.
func (robo *Robot) SetAudit(l *audit.Log) {
	robo.audit = l
}

// channel gets or creates the channel state for a Discord channel.
func (robo *Robot) channel(id, guild string) *channel.Channel {
	ch, _ := robo.channels.LoadOrStore(id, func() *channel.Channel {
		every, num := fseconds(robo.rate.Every), robo.rate.Num
		lim := rate.NewLimiter(rate.Inf, 1)
		if every > 0 && num > 0 {
			lim = rate.NewLimiter(rate.Every(every), num)
		}
		return &channel.Channel{
			ID:      id,
			Guild:   guild,
			Message: robo.send,
			Rate:    lim,
		}
	})
	return ch
}

// me gets the bot's own user, or the zero member before the session is ready.
func (robo *Robot) me() command.Member {
	if p := robo.self.Load(); p != nil {
		return *p
	}
	return command.Member{}
}

// commandRobot creates the view of the robot visible to commands.
func (robo *Robot) commandRobot(log *slog.Logger) *command.Robot {
	return &command.Robot{
		Log:       log,
		Chat:      robo.chat,
		Cooldowns: robo.cooldowns,
		Audit:     robo.audit,
		Jokes:     robo.jokes,
		Self:      robo.me(),
		Owner:     robo.owner.ID,
		Prefix:    robo.prefix,
		Commands:  commandInfo(robo.cmds),
	}
}

// Run runs the bot until the context is canceled or a component fails.
// run starts the chat connection and returns when it closes.
func (robo *Robot) Run(ctx context.Context, listen string, run func(context.Context) error, st *status.Rotator, stEvery time.Duration, po *stats.Poster, poEvery time.Duration, presence func(string) error) error {
	defer robo.cooldowns.Close()
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error { return run(ctx) })
	if listen != "" {
		group.Go(func() error { return robo.api(ctx, listen, new(http.ServeMux), robo.metrics.Collectors()) })
	}
	if st != nil && stEvery > 0 {
		group.Go(func() error {
			st.Run(ctx, stEvery, robo.counts, presence)
			return nil
		})
	}
	if po != nil && poEvery > 0 {
		group.Go(func() error {
			po.Run(ctx, poEvery, robo.counts)
			return nil
		})
	}
	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		// If the first error is context canceled, then we are shutting down
		// normally in response to a sigint.
		err = nil
	}
	return err
}
