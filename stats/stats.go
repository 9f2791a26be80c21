// Package stats reports the bot's reach to logs and to bot list sites.
package stats

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/zephyrtronium/dizzy/metrics"
	"github.com/zephyrtronium/dizzy/status"
)

// Site is a bot list accepting server counts.
type Site struct {
	// Name identifies the site in logs and metrics.
	Name string
	// URL is the endpoint receiving the count.
	URL string
	// Token is the authorization token for the endpoint.
	Token string
}

// Poster posts server counts.
type Poster struct {
	// HTTP is the client used for posting.
	HTTP *http.Client
	// Sites is the list of sites to which to post.
	Sites []Site
	// Posts observes each post with labels site and ok.
	// It may be nil.
	Posts metrics.Observer
}

type serverCount struct {
	ServerCount int `json:"server_count"`
}

// Post sends the server count to every site. Failures at one site don't
// prevent posting to the others.
func (p *Poster) Post(ctx context.Context, servers int) error {
	b, err := json.Marshal(serverCount{ServerCount: servers})
	if err != nil {
		// Should be impossible.
		panic(fmt.Errorf("stats: couldn't marshal server count: %w", err))
	}
	var errs []error
	for _, s := range p.Sites {
		err := p.post(ctx, s, b)
		if p.Posts != nil {
			p.Posts.Observe(1, s.Name, strconv.FormatBool(err == nil))
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("couldn't post stats to %s: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Poster) post(ctx context.Context, s Site, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", s.Token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("request failed with status %s", resp.Status)
	}
	return nil
}

// Tick alternates hourly between logging stats and posting them.
func (p *Poster) Tick(ctx context.Context, now time.Time, c status.Counts) {
	if now.UnixMilli()%(2*time.Hour).Milliseconds() < time.Hour.Milliseconds() {
		slog.InfoContext(ctx, "stats", slog.Int("guilds", c.Guilds), slog.Int("users", c.Users))
		return
	}
	if len(p.Sites) == 0 {
		return
	}
	if err := p.Post(ctx, c.Guilds); err != nil {
		slog.ErrorContext(ctx, "couldn't post stats", slog.Any("err", err))
		return
	}
	slog.InfoContext(ctx, "posted stats", slog.Int("guilds", c.Guilds), slog.Int("sites", len(p.Sites)))
}

// Run calls Tick every interval until the context is canceled.
func (p *Poster) Run(ctx context.Context, every time.Duration, counts func() status.Counts) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			p.Tick(ctx, now, counts())
		}
	}
}
