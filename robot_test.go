package main

import (
	"errors"
	"testing"
	"time"

	"github.com/zephyrtronium/dizzy/cooldown"
)

func TestSetCommands(t *testing.T) {
	cases := []struct {
		name     string
		cfg      Config
		err      bool
		scopeErr bool
	}{
		{
			name: "ok",
			cfg: Config{
				Cooldowns: map[string]CooldownCfg{"kick": {Time: 5, Scope: "guild", Name: "moderation"}},
				Disable:   []string{"8b"},
			},
		},
		{
			name: "alias override",
			cfg:  Config{Cooldowns: map[string]CooldownCfg{"8b": {Time: 5}}},
			err:  true,
		},
		{
			name: "unknown override",
			cfg:  Config{Cooldowns: map[string]CooldownCfg{"quote": {Time: 5}}},
			err:  true,
		},
		{
			name:     "bad scope",
			cfg:      Config{Cooldowns: map[string]CooldownCfg{"ping": {Scope: "server"}}},
			err:      true,
			scopeErr: true,
		},
		{
			name: "unknown disable",
			cfg:  Config{Disable: []string{"quote"}},
			err:  true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			robo := New(1)
			t.Cleanup(robo.cooldowns.Close)
			err := robo.SetCommands(&c.cfg)
			if (err != nil) != c.err {
				t.Fatalf("wrong error: want error %t, got %v", c.err, err)
			}
			if errors.Is(err, cooldown.ErrInvalidScope) != c.scopeErr {
				t.Errorf("wrong scope error: want %t, got %v", c.scopeErr, err)
			}
			var ise *cooldown.InvalidScopeError
			if c.scopeErr && (!errors.As(err, &ise) || ise.Scope != "server") {
				t.Errorf("scope error not wrapped: %v", err)
			}
		})
	}
}

func TestSetCommandsApplies(t *testing.T) {
	robo := New(1)
	t.Cleanup(robo.cooldowns.Close)
	cfg := Config{
		Cooldowns: map[string]CooldownCfg{"kick": {Time: 5, Scope: "guild", Name: "moderation"}},
		Disable:   []string{"8b"},
	}
	if err := robo.SetCommands(&cfg); err != nil {
		t.Fatal(err)
	}
	if !robo.disabled["8ball"] {
		t.Errorf("8ball not disabled by alias")
	}
	c, _, _ := findCommand(robo.cmds, "kick", "")
	want := cooldown.Spec{Time: 5 * time.Second, Scope: cooldown.Guild, Name: "moderation"}
	if got := robo.effective(c); got != want {
		t.Errorf("wrong effective cooldown: want %+v, got %+v", want, got)
	}
}
