package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/zephyrtronium/dizzy/cooldown"
)

// Load loads the bot configuration from TOML.
func Load(ctx context.Context, r io.Reader) (*Config, *toml.MetaData, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("couldn't decode config: %w", err)
	}
	if u := md.Undecoded(); len(u) > 0 {
		slog.WarnContext(ctx, "unknown config keys", slog.Any("keys", u))
	}
	expandcfg(&cfg, os.Getenv)
	return &cfg, &md, nil
}

// Config is the marshaled structure of the bot's configuration.
type Config struct {
	// Discord is the configuration for connecting to Discord.
	Discord DiscordCfg `toml:"discord"`
	// Owner identifies the bot owner.
	Owner Owner `toml:"owner"`
	// DB is the table of database connection strings.
	DB DBCfg `toml:"db"`
	// HTTP is the configuration of the API server.
	HTTP HTTPCfg `toml:"http"`
	// Status is the configuration of presence rotation.
	Status StatusCfg `toml:"status"`
	// Stats is the configuration of stats reporting.
	Stats StatsCfg `toml:"stats"`
	// Cooldowns overrides the built-in cooldowns of commands by name.
	Cooldowns map[string]CooldownCfg `toml:"cooldowns"`
	// Disable is the list of commands to disable.
	Disable []string `toml:"disable"`
}

// DiscordCfg is the configuration for connecting to Discord.
type DiscordCfg struct {
	// TokenFile is the path to a file containing the bot token.
	TokenFile string `toml:"token"`
	// Prefix is the command prefix. Mentioning the bot also works.
	Prefix string `toml:"prefix"`
	// Rate is the rate limit for messages per channel.
	Rate Rate `toml:"rate"`
	// Jokes is the URL of the joke listing.
	Jokes string `toml:"jokes"`
}

// Owner is metadata about the bot owner.
type Owner struct {
	// ID is the owner's Discord user ID.
	ID string `toml:"id"`
	// Name is the name of the owner. It does not need to be a username.
	Name string `toml:"name"`
	// Contact describes owner contact information.
	Contact string `toml:"contact"`
}

// DBCfg is the configuration of databases.
type DBCfg struct {
	// Audit is the DSN of the moderation audit log. If empty, moderation
	// actions are not recorded.
	Audit string `toml:"audit"`
}

// HTTPCfg is the configuration of the API server.
type HTTPCfg struct {
	Listen string `toml:"listen"`
}

// StatusCfg is the configuration of presence rotation.
type StatusCfg struct {
	// Every is the seconds between status changes.
	Every float64 `toml:"every"`
	// Messages is the custom status messages.
	Messages []string `toml:"messages"`
}

// StatsCfg is the configuration of stats reporting.
type StatsCfg struct {
	// Every is the seconds between reports.
	Every float64 `toml:"every"`
	// Sites is the bot list sites to which to post server counts.
	Sites []SiteCfg `toml:"sites"`
}

// SiteCfg is a bot list site.
type SiteCfg struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
	// TokenFile is the path to a file containing the site's token.
	TokenFile string `toml:"token"`
}

// CooldownCfg overrides a command's cooldown.
type CooldownCfg struct {
	// Time is the cooldown length in seconds.
	Time float64 `toml:"time"`
	// Scope is user, channel, or guild.
	Scope string `toml:"scope"`
	// Name is the bucket to share with other commands.
	Name string `toml:"name"`
}

// Rate is a rate limit configuration.
type Rate struct {
	Every float64 `toml:"every"`
	Num   int     `toml:"num"`
}

// override converts the configuration to a cooldown override.
func (c CooldownCfg) override() (cooldown.Override, error) {
	r := cooldown.Override{Name: c.Name, Time: fseconds(c.Time)}
	if c.Scope != "" {
		s, err := cooldown.ParseScope(c.Scope)
		if err != nil {
			return cooldown.Override{}, err
		}
		r.Scope = s
	}
	return r, nil
}

func fseconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// readSecret reads a token from a file.
func readSecret(file string) (string, error) {
	b, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("couldn't read secret: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func loadDB(ctx context.Context, dsn string) (*sqlitex.Pool, error) {
	if dsn == "" {
		return nil, nil
	}
	slog.DebugContext(ctx, "audit db", slog.String("path", dsn))
	db, err := sqlitex.NewPool(dsn, sqlitex.PoolOptions{})
	if err != nil {
		return nil, fmt.Errorf("couldn't open audit db: %w", err)
	}
	return db, nil
}

func expandcfg(cfg *Config, expand func(s string) string) {
	fields := []*string{
		&cfg.Discord.TokenFile,
		&cfg.Discord.Prefix,
		&cfg.Discord.Jokes,
		&cfg.Owner.ID,
		&cfg.Owner.Name,
		&cfg.Owner.Contact,
		&cfg.DB.Audit,
		&cfg.HTTP.Listen,
	}
	for _, f := range fields {
		*f = os.Expand(*f, expand)
	}
	for i := range cfg.Stats.Sites {
		s := &cfg.Stats.Sites[i]
		s.URL = os.Expand(s.URL, expand)
		s.TokenFile = os.Expand(s.TokenFile, expand)
	}
}
