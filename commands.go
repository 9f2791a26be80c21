package main

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zephyrtronium/dizzy/command"
	"github.com/zephyrtronium/dizzy/cooldown"
)

type botCommand struct {
	// name is the command's own name. It is also the cooldown bucket unless
	// the cooldown names another.
	name    string
	aliases []string
	// parse matches the text after the command name. Named groups become
	// arguments.
	parse *regexp.Regexp
	fn    command.Func
	// perms is the permission bits the invoker must have in the channel.
	perms    int64
	cooldown cooldown.Spec
	usage    string
	desc     string
}

// defaultCooldown applies to commands which don't declare their own.
var defaultCooldown = cooldown.Spec{Time: 3 * time.Second, Scope: cooldown.User}

func modCooldown(d time.Duration) cooldown.Spec {
	return cooldown.Spec{Time: d, Scope: cooldown.User}
}

var (
	anyArgs  = regexp.MustCompile(`(?s)^(?<args>.*)$`)
	noArgs   = regexp.MustCompile(`(?s)^.*$`)
	needArgs = regexp.MustCompile(`(?s)^(?<args>\S.*)$`)
)

var commands = []botCommand{
	{
		name:     "8ball",
		aliases:  []string{"8b"},
		parse:    regexp.MustCompile(`(?s)^(?<question>\S.*)$`),
		fn:       command.EightBall,
		cooldown: defaultCooldown,
		usage:    "8ball <question>",
		desc:     "Ask the 8 ball a yes/no question and get an answer!",
	},
	{
		name:     "choose",
		parse:    regexp.MustCompile(`(?s)^(?<choices>.*)$`),
		fn:       command.Choose,
		cooldown: defaultCooldown,
		usage:    "choose <choice 1> <choice 2> [choices...]",
		desc:     "Have the bot choose among a list of items",
	},
	{
		name:     "coin",
		aliases:  []string{"coinflip", "flipcoin"},
		parse:    regexp.MustCompile(`^(?<n>\S*)$`),
		fn:       command.Coin,
		cooldown: defaultCooldown,
		usage:    "coin [1-50]",
		desc:     "Flip a coin. You can specify a number of coins to flip",
	},
	{
		name:     "joke",
		aliases:  []string{"jokes"},
		parse:    noArgs,
		fn:       command.Joke,
		cooldown: cooldown.Spec{Time: 15 * time.Second, Scope: cooldown.Channel},
		usage:    "joke",
		desc:     "Gets some jokes",
	},
	{
		name:     "rate",
		parse:    regexp.MustCompile(`(?s)^(?<thing>\S.*)$`),
		fn:       command.Rate,
		cooldown: defaultCooldown,
		usage:    "rate <someone or something>",
		desc:     "Have the bot rate someone or something for you",
	},
	{
		name:     "say",
		parse:    regexp.MustCompile(`(?s)^(?<msg>\S.*)$`),
		fn:       command.Say,
		cooldown: defaultCooldown,
		usage:    "say <message>",
		desc:     "Have the bot say something for you",
	},
	{
		name:     "ship",
		parse:    needArgs,
		fn:       command.Ship,
		cooldown: defaultCooldown,
		usage:    "ship <user 1> <user 2>",
		desc:     "Ship two users and rate it!",
	},
	{
		name:     "channelinfo",
		aliases:  []string{"channel"},
		parse:    regexp.MustCompile(`^(?<channel>\S*)$`),
		fn:       command.ChannelInfo,
		cooldown: cooldown.Spec{Time: 15 * time.Second, Scope: cooldown.Channel},
		usage:    "channelinfo [channel]",
		desc:     "Get info about a channel",
	},
	{
		name:     "ping",
		parse:    noArgs,
		fn:       command.Ping,
		cooldown: defaultCooldown,
		usage:    "ping",
		desc:     "Check whether the bot is listening",
	},
	{
		name:     "help",
		aliases:  []string{"commands"},
		parse:    regexp.MustCompile(`^(?<command>\S*)$`),
		fn:       command.Help,
		cooldown: defaultCooldown,
		usage:    "help [command]",
		desc:     "List commands or describe one",
	},
	{
		name:     "addrole",
		aliases:  []string{"ar", "giverole", "setrole"},
		parse:    needArgs,
		fn:       command.AddRole,
		perms:    discordgo.PermissionManageRoles,
		cooldown: modCooldown(20 * time.Second),
		usage:    "addrole <user> <role>",
		desc:     "Adds a role to a user",
	},
	{
		name:     "removerole",
		aliases:  []string{"rr", "takerole"},
		parse:    needArgs,
		fn:       command.RemoveRole,
		perms:    discordgo.PermissionManageRoles,
		cooldown: modCooldown(20 * time.Second),
		usage:    "removerole <user> <role>",
		desc:     "Removes a role a user has",
	},
	{
		name:     "createrole",
		aliases:  []string{"crrole"},
		parse:    needArgs,
		fn:       command.CreateRole,
		perms:    discordgo.PermissionManageRoles,
		cooldown: modCooldown(20 * time.Second),
		usage:    "createrole <name>",
		desc:     "Creates a role",
	},
	{
		name:     "deleterole",
		aliases:  []string{"delr", "delrole", "deleter"},
		parse:    needArgs,
		fn:       command.DeleteRole,
		perms:    discordgo.PermissionManageRoles,
		cooldown: modCooldown(30 * time.Second),
		usage:    "deleterole <role>",
		desc:     "Deletes a role",
	},
	{
		name:     "ban",
		parse:    needArgs,
		fn:       command.Ban,
		perms:    discordgo.PermissionBanMembers,
		cooldown: modCooldown(20 * time.Second),
		usage:    "ban <user> [--days <0-7>] [--reason <reason>]",
		desc:     "Bans a user",
	},
	{
		name:     "hackban",
		parse:    needArgs,
		fn:       command.Hackban,
		perms:    discordgo.PermissionBanMembers,
		cooldown: modCooldown(25 * time.Second),
		usage:    "hackban <user id> [--days <0-7>] [--reason <reason>]",
		desc:     "Bans a user even if they are not in this server",
	},
	{
		name:     "softban",
		parse:    needArgs,
		fn:       command.Softban,
		perms:    discordgo.PermissionBanMembers,
		cooldown: modCooldown(20 * time.Second),
		usage:    "softban <user> [--reason <reason>]",
		desc:     "Bans and unbans a user to delete their recent messages",
	},
	{
		name:     "kick",
		parse:    needArgs,
		fn:       command.Kick,
		perms:    discordgo.PermissionKickMembers,
		cooldown: modCooldown(20 * time.Second),
		usage:    "kick <user> [--reason <reason>]",
		desc:     "Kicks a member",
	},
	{
		name:     "mute",
		parse:    needArgs,
		fn:       command.Mute,
		perms:    discordgo.PermissionManageChannels,
		cooldown: modCooldown(20 * time.Second),
		usage:    "mute <user>",
		desc:     "Stops a user from sending messages in this channel",
	},
	{
		name:     "unmute",
		parse:    needArgs,
		fn:       command.Unmute,
		perms:    discordgo.PermissionManageChannels,
		cooldown: modCooldown(20 * time.Second),
		usage:    "unmute <user>",
		desc:     "Allows a muted user to send messages in this channel",
	},
	{
		name:     "unban",
		parse:    needArgs,
		fn:       command.Unban,
		perms:    discordgo.PermissionBanMembers,
		cooldown: modCooldown(25 * time.Second),
		usage:    "unban <user id>",
		desc:     "Lifts a ban",
	},
	{
		name:     "setnickname",
		aliases:  []string{"changenick", "setnick"},
		parse:    needArgs,
		fn:       command.SetNickname,
		perms:    discordgo.PermissionManageNicknames,
		cooldown: modCooldown(20 * time.Second),
		usage:    "setnickname <user> <new nick>",
		desc:     "Changes a member's nickname",
	},
	{
		name:     "resetnickname",
		aliases:  []string{"removenick", "removenickname", "resetnick"},
		parse:    needArgs,
		fn:       command.ResetNickname,
		perms:    discordgo.PermissionManageNicknames,
		cooldown: modCooldown(20 * time.Second),
		usage:    "resetnickname <user>",
		desc:     "Removes a member's nickname",
	},
	{
		name:     "purge",
		aliases:  []string{"clear", "prune"},
		parse:    needArgs,
		fn:       command.Purge,
		perms:    discordgo.PermissionManageMessages,
		cooldown: modCooldown(20 * time.Second),
		usage:    "purge <1-100> [bots] [invites] [links] [mentions] [--user <user>] [--text <text>] [--invert]",
		desc:     "Deletes recent messages from this channel",
	},
	{
		name:     "createchannel",
		aliases:  []string{"addch", "addchannel", "createch"},
		parse:    needArgs,
		fn:       command.CreateChannel,
		perms:    discordgo.PermissionManageChannels,
		cooldown: modCooldown(20 * time.Second),
		usage:    "createchannel <name>",
		desc:     "Creates a text channel",
	},
	{
		name:     "deletechannel",
		aliases:  []string{"delch", "delchannel", "deletech"},
		parse:    needArgs,
		fn:       command.DeleteChannel,
		perms:    discordgo.PermissionManageChannels,
		cooldown: modCooldown(20 * time.Second),
		usage:    "deletechannel <channel>",
		desc:     "Deletes a channel",
	},
	{
		name:     "renamechannel",
		aliases:  []string{"rnch", "renamech", "setchname", "setchannelname"},
		parse:    needArgs,
		fn:       command.RenameChannel,
		perms:    discordgo.PermissionManageChannels,
		cooldown: modCooldown(20 * time.Second),
		usage:    "renamechannel <name>",
		desc:     "Renames this channel",
	},
	{
		name:     "modlog",
		parse:    anyArgs,
		fn:       command.ModLog,
		perms:    discordgo.PermissionViewAuditLogs,
		cooldown: cooldown.Spec{Time: 10 * time.Second, Scope: cooldown.Channel},
		usage:    "modlog [1-25]",
		desc:     "Shows recent moderation actions taken through the bot",
	},
	{
		name:  "cooldown",
		parse: regexp.MustCompile(`(?s)^(?<action>\S+)\s*(?<args>.*)$`),
		fn:    command.Cooldown,
		usage: "cooldown clear [user|channel|guild] [name]",
		desc:  "Clears cooldowns. Owner only",
	},
}

// findCommand finds a command by name or alias in cmds and parses its
// arguments from text. If the command exists but the arguments don't parse,
// the command is returned with ok false.
func findCommand(cmds []botCommand, name, text string) (c *botCommand, args map[string]string, ok bool) {
	name = strings.ToLower(name)
	for i := range cmds {
		c := &cmds[i]
		if c.name != name && !slices.Contains(c.aliases, name) {
			continue
		}
		u := c.parse.FindStringSubmatch(text)
		switch len(u) {
		case 0:
			return c, nil, false
		case 1:
			return c, nil, true
		default:
			m := make(map[string]string, len(u)-1)
			s := c.parse.SubexpNames()
			for k, v := range u[1:] {
				m[s[k+1]] = v
			}
			return c, m, true
		}
	}
	return nil, nil, false
}

// commandInfo describes cmds for help.
func commandInfo(cmds []botCommand) []command.Info {
	r := make([]command.Info, 0, len(cmds))
	for _, c := range cmds {
		r = append(r, command.Info{
			Name:        c.name,
			Aliases:     c.aliases,
			Usage:       c.usage,
			Description: c.desc,
			Cooldown:    c.cooldown,
		})
	}
	return r
}
