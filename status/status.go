// Package status rotates the bot's presence text.
package status

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"gitlab.com/zephyrtronium/pick"
)

// Counts is the bot's reach.
type Counts struct {
	Users  int
	Guilds int
}

// Rotator chooses presence text. Between stretches of custom messages, it
// cycles through user count, version, and guild count.
// Its methods are concurrent by way of mutual exclusion.
type Rotator struct {
	mu sync.Mutex
	// custom is the custom messages. It is nil if there are none.
	custom *pick.Dist[string]
	// pos is the position in the cycle.
	pos int
	// streak is the number of consecutive custom messages.
	streak int

	prefix  string
	version string
}

// maxStreak is the most custom messages in a row.
const maxStreak = 2

// New creates a rotator. The prefix is shown before every status.
func New(prefix, version string, custom []string) *Rotator {
	r := &Rotator{prefix: prefix, version: version}
	if len(custom) > 0 {
		m := make(map[string]int, len(custom))
		for _, s := range custom {
			m[s]++
		}
		r.custom = pick.New(pick.FromMap(m))
	}
	return r
}

// Next returns the next status. The high bit of x decides whether to use a
// custom message, and the low bits choose which.
func (r *Rotator) Next(x uint64, c Counts) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var s string
	if r.custom != nil && x>>63 != 0 && r.streak < maxStreak {
		r.streak++
		s = r.custom.Pick(uint32(x))
	} else {
		r.streak = 0
		switch r.pos {
		case 0:
			s = fmt.Sprintf("with %d users", c.Users)
		case 1:
			s = "on version " + r.version
		default:
			s = fmt.Sprintf("with you in %d servers", c.Guilds)
		}
		r.pos = (r.pos + 1) % 3
	}
	return r.prefix + "help | " + s
}

// Run updates the status immediately and then on every tick until the
// context is canceled.
func (r *Rotator) Run(ctx context.Context, every time.Duration, counts func() Counts, update func(string) error) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		s := r.Next(rand.Uint64(), counts())
		if err := update(s); err != nil {
			slog.WarnContext(ctx, "couldn't update status", slog.String("status", s), slog.Any("err", err))
		} else {
			slog.DebugContext(ctx, "status", slog.String("status", s))
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
