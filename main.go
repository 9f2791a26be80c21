package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/zephyrtronium/dizzy/audit"
	"github.com/zephyrtronium/dizzy/cooldown"
	"github.com/zephyrtronium/dizzy/stats"
	"github.com/zephyrtronium/dizzy/status"
)

var app = cli.Command{
	Name:  "dizzy",
	Usage: "Discord command bot",

	Flags: []cli.Flag{
		&flagConfig,
		&flagEnv,
		&flagLog,
		&flagLogFormat,
	},
	Commands: []*cli.Command{
		{
			Name:   "run",
			Usage:  "Connect to Discord and serve commands",
			Action: cliRun,
		},
		{
			Name:   "init",
			Usage:  "Initialize the moderation audit log",
			Action: cliInit,
		},
		{
			Name:    "commands",
			Aliases: []string{"list"},
			Usage:   "List commands with their configured cooldowns",
			Action:  cliCommands,
		},
	},
	Action: cliRun,

	Authors: []any{
		"Branden J Brown  @zephyrtronium",
	},
	Copyright: "Copyright 2024 Branden J Brown",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	go func() {
		<-ctx.Done()
		stop()
	}()
	err := app.Run(ctx, os.Args)
	if err != nil {
		fmt.Println(err)
	}
}

// config loads the configuration named by the command's flags.
func config(ctx context.Context, cmd *cli.Command) (*Config, error) {
	if env := cmd.String("env"); env != "" {
		if err := godotenv.Load(env); err != nil {
			return nil, fmt.Errorf("couldn't load env file: %w", err)
		}
	}
	r, err := os.Open(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("couldn't open config file: %w", err)
	}
	defer r.Close()
	cfg, _, err := Load(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("couldn't load config: %w", err)
	}
	return cfg, nil
}

func cliRun(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := config(ctx, cmd)
	if err != nil {
		return err
	}
	token, err := readSecret(cfg.Discord.TokenFile)
	if err != nil {
		return fmt.Errorf("couldn't read Discord token: %w", err)
	}

	robo := New(runtime.GOMAXPROCS(0))
	if err := robo.SetCommands(cfg); err != nil {
		return err
	}
	db, err := loadDB(ctx, cfg.DB.Audit)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		l, err := audit.Open(ctx, db)
		if err != nil {
			return fmt.Errorf("couldn't open audit log: %w", err)
		}
		robo.SetAudit(l)
	}
	session, err := robo.InitDiscord(ctx, token)
	if err != nil {
		return err
	}

	var st *status.Rotator
	if cfg.Status.Every > 0 {
		st = status.New(cfg.Discord.Prefix, version(), cfg.Status.Messages)
	}
	var po *stats.Poster
	if cfg.Stats.Every > 0 {
		po = &stats.Poster{
			HTTP:  &http.Client{Timeout: 30 * time.Second},
			Posts: robo.metrics.StatsPosts,
		}
		for _, s := range cfg.Stats.Sites {
			tok, err := readSecret(s.TokenFile)
			if err != nil {
				return fmt.Errorf("couldn't read token for %s: %w", s.Name, err)
			}
			po.Sites = append(po.Sites, stats.Site{Name: s.Name, URL: s.URL, Token: tok})
		}
	}

	return robo.Run(ctx, cfg.HTTP.Listen, runDiscord(session),
		st, fseconds(cfg.Status.Every),
		po, fseconds(cfg.Stats.Every),
		presence(session),
	)
}

func cliInit(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := config(ctx, cmd)
	if err != nil {
		return err
	}
	db, err := loadDB(ctx, cfg.DB.Audit)
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("no audit database configured")
	}
	defer db.Close()
	if err := audit.Init(ctx, db); err != nil {
		return err
	}
	slog.InfoContext(ctx, "initialized audit log", slog.String("db", cfg.DB.Audit))
	return nil
}

func cliCommands(ctx context.Context, cmd *cli.Command) error {
	slog.SetDefault(loggerFromFlags(cmd))
	cfg, err := config(ctx, cmd)
	if err != nil {
		return err
	}
	robo := New(1)
	defer robo.cooldowns.Close()
	if err := robo.SetCommands(cfg); err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMMAND\tCOOLDOWN\tSCOPE\tBUCKET\tPERMISSIONS")
	for i := range robo.cmds {
		c := &robo.cmds[i]
		if robo.disabled[c.name] {
			continue
		}
		spec := robo.effective(c)
		scope, bucket := string(spec.Scope), spec.Bucket(c.name)
		cd := "none"
		if spec.Time > 0 {
			cd = cooldown.Seconds(spec.Time) + "s"
		} else {
			scope, bucket = "", ""
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%#x\n", c.name, cd, scope, bucket, c.perms)
	}
	return w.Flush()
}

// version gets the module version from the build.
func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "(devel)"
	}
	return info.Main.Version
}

var (
	flagConfig = cli.StringFlag{
		Name:       "config",
		Required:   true,
		Usage:      "TOML config file",
		Persistent: true,
		Action: func(ctx context.Context, cmd *cli.Command, s string) error {
			i, err := os.Stat(s)
			if err != nil {
				return err
			}
			if !i.Mode().IsRegular() {
				return errors.New("config must be a regular file")
			}
			return nil
		},
	}

	flagEnv = cli.StringFlag{
		Name:       "env",
		Usage:      "File of environment variables to set before expanding the config",
		Persistent: true,
	}

	flagLog = cli.StringFlag{
		Name:       "log",
		Usage:      "Logging level, one of debug, info, warn, error",
		Value:      "info",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			var l slog.Level
			return l.UnmarshalText([]byte(s))
		},
	}

	flagLogFormat = cli.StringFlag{
		Name:       "log-format",
		Usage:      "Logging format, either text or json",
		Value:      "text",
		Persistent: true,
		Action: func(ctx context.Context, c *cli.Command, s string) error {
			switch strings.ToLower(s) {
			case "text", "json":
				return nil
			default:
				return errors.New("unknown logging format")
			}
		},
	}
)

func loggerFromFlags(cmd *cli.Command) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(cmd.String("log"))); err != nil {
		panic(err)
	}
	var h slog.Handler
	switch strings.ToLower(cmd.String("log-format")) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	case "json":
		h = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	}
	return slog.New(h)
}
