package command

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/zephyrtronium/dizzy/message"
)

// Moderation commands take their arguments unparsed in args and split them
// with [Fields] and [Flags].

// name gets a displayable name for a user, falling back to a mention.
func (robo *Robot) name(ctx context.Context, guild, user string) string {
	m, err := robo.Chat.Member(ctx, guild, user)
	if err != nil || m.Name == "" {
		return "<@" + user + ">"
	}
	return m.Name
}

func parseArgs(call *Invocation, bools ...string) ([]string, map[string]string) {
	return Flags(Fields(call.Args["args"]), bools...)
}

func needUser(pos []string, usage string) (string, error) {
	if len(pos) == 0 {
		return "", Warnf("You need to provide a user. Usage: `%s`", usage)
	}
	id, ok := UserID(pos[0])
	if !ok {
		return "", Warnf("%q is not a user.", pos[0])
	}
	return id, nil
}

// AddRole gives a member a role.
func AddRole(ctx context.Context, robo *Robot, call *Invocation) error {
	return changeRole(ctx, robo, call, true)
}

// RemoveRole takes a role from a member.
func RemoveRole(ctx context.Context, robo *Robot, call *Invocation) error {
	return changeRole(ctx, robo, call, false)
}

func changeRole(ctx context.Context, robo *Robot, call *Invocation, add bool) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	pos, _ := parseArgs(call)
	user, err := needUser(pos, "<user> <role>")
	if err != nil {
		return err
	}
	if len(pos) < 2 {
		return Warning("You need to provide a role.")
	}
	role, ok := RoleID(pos[1])
	if !ok {
		return Warnf("%q is not a role.", pos[1])
	}
	g := call.Message.Guild
	who := robo.name(ctx, g, user)
	if add {
		if err := robo.Chat.AddRole(ctx, g, user, role); err != nil {
			return fmt.Errorf("couldn't add role %s to %s: %w", role, user, err)
		}
		robo.record(ctx, call, "addrole", user, role)
		return call.Channel.Say(ctx, fmt.Sprintf("✅ Role <@&%s> has been added to **%s**.", role, who))
	}
	if err := robo.Chat.RemoveRole(ctx, g, user, role); err != nil {
		return fmt.Errorf("couldn't remove role %s from %s: %w", role, user, err)
	}
	robo.record(ctx, call, "removerole", user, role)
	return call.Channel.Say(ctx, fmt.Sprintf("✅ Role <@&%s> has been removed from **%s**.", role, who))
}

// Ban bans a user.
//   - --days: Days of messages to delete, 0 to 7.
//   - --reason: Reason for the audit log.
func Ban(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	pos, flags := parseArgs(call)
	user, err := needUser(pos, "ban <user> [--days <0-7>] [--reason <reason>]")
	if err != nil {
		return err
	}
	days := 0
	if s, ok := flags["days"]; ok {
		days, err = strconv.Atoi(s)
		if err != nil || days < 0 || days > 7 {
			return Warning("The number of days must be between 0 and 7.")
		}
	}
	if user == robo.Self.ID || user == call.Message.Sender {
		return Warning("I can't ban that user.")
	}
	g, reason := call.Message.Guild, flags["reason"]
	who := robo.name(ctx, g, user)
	if err := robo.Chat.Ban(ctx, g, user, reason, days); err != nil {
		return fmt.Errorf("couldn't ban %s: %w", user, err)
	}
	robo.record(ctx, call, "ban", user, reason)
	return call.Channel.Say(ctx, fmt.Sprintf("✅ The user **%s** was banned from the guild.", who))
}

// Hackban bans a user by ID, whether or not they are in the guild.
//   - --days: Days of messages to delete, 0 to 7.
//   - --reason: Reason for the audit log.
func Hackban(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	pos, flags := parseArgs(call)
	user, err := needUser(pos, "hackban <user id> [--days <0-7>] [--reason <reason>]")
	if err != nil {
		return err
	}
	days := 0
	if s, ok := flags["days"]; ok {
		days, err = strconv.Atoi(s)
		if err != nil || days < 0 || days > 7 {
			return Warning("The number of days must be between 0 and 7.")
		}
	}
	if user == robo.Self.ID || user == call.Message.Sender {
		return Warning("I can't ban that user.")
	}
	reason := flags["reason"]
	if err := robo.Chat.Ban(ctx, call.Message.Guild, user, reason, days); err != nil {
		robo.Log.InfoContext(ctx, "hackban failed", slog.String("user", user), slog.Any("err", err))
		return Warning("Could not ban the user with that ID. Make sure to check for typos in the ID and that the user is not already banned.")
	}
	robo.record(ctx, call, "hackban", user, reason)
	return call.Channel.Say(ctx, fmt.Sprintf("✅ The user with ID **%s** was banned from the guild.", user))
}

// Softban bans and immediately unbans a user to delete their recent messages.
//   - --reason: Reason for the audit log.
func Softban(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	pos, flags := parseArgs(call)
	user, err := needUser(pos, "softban <user> [--reason <reason>]")
	if err != nil {
		return err
	}
	if user == robo.Self.ID || user == call.Message.Sender {
		return Warning("I can't softban that user.")
	}
	g, reason := call.Message.Guild, flags["reason"]
	who := robo.name(ctx, g, user)
	if err := robo.Chat.Ban(ctx, g, user, reason, 1); err != nil {
		return fmt.Errorf("couldn't softban %s: %w", user, err)
	}
	if err := robo.Chat.Unban(ctx, g, user); err != nil {
		return fmt.Errorf("couldn't unban %s after softban: %w", user, err)
	}
	robo.record(ctx, call, "softban", user, reason)
	return call.Channel.Say(ctx, fmt.Sprintf("✅ The user **%s** was softbanned.", who))
}

// Kick kicks a member.
//   - --reason: Reason for the audit log.
func Kick(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	pos, flags := parseArgs(call)
	user, err := needUser(pos, "kick <user> [--reason <reason>]")
	if err != nil {
		return err
	}
	if user == robo.Self.ID || user == call.Message.Sender {
		return Warning("I can't kick that user.")
	}
	g, reason := call.Message.Guild, flags["reason"]
	who := robo.name(ctx, g, user)
	if err := robo.Chat.Kick(ctx, g, user, reason); err != nil {
		return fmt.Errorf("couldn't kick %s: %w", user, err)
	}
	robo.record(ctx, call, "kick", user, reason)
	return call.Channel.Say(ctx, fmt.Sprintf("✅ The user **%s** was kicked from the guild.", who))
}

// Unban lifts a ban by user ID.
func Unban(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	pos, _ := parseArgs(call)
	user, err := needUser(pos, "unban <user id>")
	if err != nil {
		return err
	}
	if err := robo.Chat.Unban(ctx, call.Message.Guild, user); err != nil {
		robo.Log.InfoContext(ctx, "unban failed", slog.String("user", user), slog.Any("err", err))
		return Warning("Could not unban the user with that ID. Make sure the ID is correct and that the user is banned.")
	}
	robo.record(ctx, call, "unban", user, "")
	return call.Channel.Say(ctx, fmt.Sprintf("✅ The user with ID **%s** was unbanned.", user))
}

// SetNickname changes a member's nickname.
func SetNickname(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	pos, _ := parseArgs(call)
	user, err := needUser(pos, "setnickname <user> <new nick>")
	if err != nil {
		return err
	}
	nick := strings.Join(pos[1:], " ")
	if nick == "" {
		return Warning("You need to provide a nickname.")
	}
	if len([]rune(nick)) > 32 {
		return Warning("Nicknames can be at most 32 characters.")
	}
	g := call.Message.Guild
	who := robo.name(ctx, g, user)
	if err := robo.Chat.SetNickname(ctx, g, user, nick); err != nil {
		return fmt.Errorf("couldn't set nickname of %s: %w", user, err)
	}
	robo.record(ctx, call, "setnickname", user, nick)
	return call.Channel.Say(ctx, fmt.Sprintf("✅ Nickname of **%s** has been set to **%s**.", who, nick))
}

// ResetNickname removes a member's nickname.
func ResetNickname(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	pos, _ := parseArgs(call)
	user, err := needUser(pos, "resetnickname <user>")
	if err != nil {
		return err
	}
	g := call.Message.Guild
	who := robo.name(ctx, g, user)
	if err := robo.Chat.SetNickname(ctx, g, user, ""); err != nil {
		return fmt.Errorf("couldn't reset nickname of %s: %w", user, err)
	}
	robo.record(ctx, call, "resetnickname", user, "")
	return call.Channel.Say(ctx, fmt.Sprintf("✅ Nickname of **%s** has been reset.", who))
}

// Mute denies a member sending messages in the current channel.
func Mute(ctx context.Context, robo *Robot, call *Invocation) error {
	return setMuted(ctx, robo, call, true)
}

// Unmute lifts a mute in the current channel.
func Unmute(ctx context.Context, robo *Robot, call *Invocation) error {
	return setMuted(ctx, robo, call, false)
}

func setMuted(ctx context.Context, robo *Robot, call *Invocation, mute bool) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	verb := "unmute"
	if mute {
		verb = "mute"
	}
	pos, _ := parseArgs(call)
	user, err := needUser(pos, verb+" <user>")
	if err != nil {
		return err
	}
	if user == robo.Self.ID || user == call.Message.Sender {
		return Warnf("I can't %s that user.", verb)
	}
	g, ch := call.Message.Guild, call.Message.Channel
	who := robo.name(ctx, g, user)
	perms, err := robo.Chat.Permissions(ctx, ch, user)
	if err != nil {
		return fmt.Errorf("couldn't get permissions of %s: %w", user, err)
	}
	canSend := perms&discordgo.PermissionSendMessages != 0
	switch {
	case mute && !canSend:
		return Warnf("**%s** is already muted or cannot send messages in this channel.", who)
	case !mute && canSend:
		return Warnf("**%s** is not muted or is able to send messages in this channel.", who)
	}
	if err := robo.Chat.SetSendMessages(ctx, ch, user, !mute); err != nil {
		return fmt.Errorf("couldn't %s %s: %w", verb, user, err)
	}
	robo.record(ctx, call, verb, user, ch)
	return call.Channel.Say(ctx, fmt.Sprintf("✅ The user **%s** was %sd in this channel.", who, verb))
}

var (
	linkRE   = regexp.MustCompile(`(?i)https?://\S+\.\S+`)
	inviteRE = regexp.MustCompile(`(?i)(www\.)?(discord\.(gg|me|io)|discord(app)?\.com/invite)/[0-9a-z]+`)
)

var purgeFilters = map[string]func(*message.Received) bool{
	"bots":     func(m *message.Received) bool { return m.IsBot },
	"links":    func(m *message.Received) bool { return linkRE.MatchString(m.Text) },
	"invites":  func(m *message.Received) bool { return inviteRE.MatchString(m.Text) },
	"mentions": func(m *message.Received) bool { return m.Mentions > 0 },
}

// Purge deletes recent messages, optionally filtered.
//   - count: 1 to 100.
//   - options: Any of bots, links, invites, mentions.
//   - --user, --text: Match only messages from a user or containing text.
//   - --invert: Delete the messages that don't match instead.
func Purge(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	pos, flags := parseArgs(call, "invert")
	if len(pos) == 0 {
		return Warning("You need to say how many messages to delete, from 1 to 100.")
	}
	n, err := strconv.Atoi(pos[0])
	if err != nil || n < 1 || n > 100 {
		return Warning("You can delete from 1 to 100 messages at a time.")
	}
	var filters []func(*message.Received) bool
	for _, opt := range pos[1:] {
		opt = strings.ToLower(opt)
		f := purgeFilters[opt]
		switch {
		case f != nil:
			filters = append(filters, f)
		case opt == "text" || opt == "user":
			return Warnf("You need to use the flag version of the `%[1]s` option: `--%[1]s <query>`", opt)
		default:
			return Warnf("Invalid option specified: %s. Options are %s.", opt, strings.Join(slices.Sorted(maps.Keys(purgeFilters)), ", "))
		}
	}
	if t, ok := flags["text"]; ok {
		filters = append(filters, func(m *message.Received) bool { return strings.Contains(m.Text, t) })
	}
	if u, ok := flags["user"]; ok {
		id, ok := UserID(u)
		if !ok {
			return Warnf("%q is not a user.", u)
		}
		filters = append(filters, func(m *message.Received) bool { return m.Sender == id })
	}
	_, invert := flags["invert"]

	ch := call.Message.Channel
	// Remove the invocation first so it isn't counted.
	if err := robo.Chat.DeleteMessages(ctx, ch, []string{call.Message.ID}); err != nil {
		return fmt.Errorf("couldn't delete purge message: %w", err)
	}
	msgs, err := robo.Chat.Messages(ctx, ch, n)
	if err != nil {
		robo.Log.ErrorContext(ctx, "couldn't fetch messages to purge", slog.String("channel", ch), slog.Any("err", err))
		return Warning("Failed to fetch messages.")
	}
	var ids []string
	by := make(map[string]int)
	for _, m := range msgs {
		if matchAll(filters, m) == invert {
			continue
		}
		ids = append(ids, m.ID)
		by[author(m)]++
	}
	if len(ids) == 0 {
		return Warning("No messages matched.")
	}
	if err := robo.Chat.DeleteMessages(ctx, ch, ids); err != nil {
		return fmt.Errorf("couldn't purge %d messages: %w", len(ids), err)
	}
	robo.record(ctx, call, "purge", ch, strconv.Itoa(len(ids)))
	var b strings.Builder
	fmt.Fprintf(&b, "🗑 Deleted %d messages from this channel!\n\n__**Breakdown**__:\n", len(ids))
	for _, k := range slices.Sorted(maps.Keys(by)) {
		fmt.Fprintf(&b, " **`%s`** - %d\n", k, by[k])
	}
	return call.Channel.Say(ctx, b.String())
}

func matchAll(filters []func(*message.Received) bool, m *message.Received) bool {
	for _, f := range filters {
		if !f(m) {
			return false
		}
	}
	return true
}

func author(m *message.Received) string {
	if m.Name != "" {
		return m.Name
	}
	return m.Sender
}

var channelNameRE = regexp.MustCompile(`^[0-9a-z_-]{1,100}$`)

// CreateChannel creates a text channel.
func CreateChannel(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	name := strings.ToLower(strings.TrimSpace(call.Args["args"]))
	if !channelNameRE.MatchString(name) {
		return Warning("Channel names can only have numbers, lowercase letters, hyphens, or underscores.")
	}
	id, err := robo.Chat.CreateChannel(ctx, call.Message.Guild, name)
	if err != nil {
		return fmt.Errorf("couldn't create channel %s: %w", name, err)
	}
	robo.record(ctx, call, "createchannel", id, name)
	return call.Channel.Say(ctx, fmt.Sprintf("✅ The channel <#%s> has been created.", id))
}

// DeleteChannel deletes a channel.
func DeleteChannel(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	s := strings.TrimSpace(call.Args["args"])
	id, ok := ChannelID(s)
	if !ok {
		return Warnf("%q is not a channel.", s)
	}
	info, err := robo.Chat.ChannelInfo(ctx, id)
	if err != nil {
		return fmt.Errorf("couldn't get channel %s: %w", id, err)
	}
	if err := robo.Chat.DeleteChannel(ctx, id); err != nil {
		return fmt.Errorf("couldn't delete channel %s: %w", id, err)
	}
	robo.record(ctx, call, "deletechannel", id, info.Name)
	if id == call.Message.Channel {
		return nil
	}
	return call.Channel.Say(ctx, fmt.Sprintf("✅ The channel **%s** has been deleted.", info.Name))
}

// CreateRole creates a role with default permissions.
func CreateRole(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	name := strings.TrimSpace(call.Args["args"])
	if name == "" {
		return Warning("You need to provide a role name.")
	}
	if len([]rune(name)) > 100 {
		return Warning("Role names can be at most 100 characters.")
	}
	id, err := robo.Chat.CreateRole(ctx, call.Message.Guild, name)
	if err != nil {
		return fmt.Errorf("couldn't create role %s: %w", name, err)
	}
	robo.record(ctx, call, "createrole", id, name)
	return call.Channel.Say(ctx, fmt.Sprintf("✅ Role **%s** has been created.", name))
}

// DeleteRole deletes a role.
func DeleteRole(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	s := strings.TrimSpace(call.Args["args"])
	role, ok := RoleID(s)
	if !ok {
		return Warnf("%q is not a role.", s)
	}
	if role == call.Message.Guild {
		return Warning("The @everyone role can't be deleted.")
	}
	if err := robo.Chat.DeleteRole(ctx, call.Message.Guild, role); err != nil {
		return fmt.Errorf("couldn't delete role %s: %w", role, err)
	}
	robo.record(ctx, call, "deleterole", role, "")
	return call.Channel.Say(ctx, fmt.Sprintf("✅ The role with ID **%s** has been deleted.", role))
}

// RenameChannel renames the current channel.
func RenameChannel(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	name := strings.ToLower(strings.TrimSpace(call.Args["args"]))
	if !channelNameRE.MatchString(name) {
		return Warning("Channel names can only have numbers, lowercase letters, hyphens, or underscores.")
	}
	if err := robo.Chat.RenameChannel(ctx, call.Message.Channel, name); err != nil {
		return fmt.Errorf("couldn't rename channel: %w", err)
	}
	robo.record(ctx, call, "renamechannel", call.Message.Channel, name)
	return call.Channel.Say(ctx, fmt.Sprintf("✅ This channel's name has been set to **%s**.", name))
}

// ModLog shows recent moderation actions in the guild.
//   - n: Number of entries, 1 to 25. Defaults to 10.
func ModLog(ctx context.Context, robo *Robot, call *Invocation) error {
	if err := guildOnly(call); err != nil {
		return err
	}
	if robo.Audit == nil {
		return Warning("The moderation log is not enabled.")
	}
	n := 10
	if s := strings.TrimSpace(call.Args["args"]); s != "" {
		var err error
		n, err = strconv.Atoi(s)
		if err != nil || n < 1 || n > 25 {
			return Warning("You can view from 1 to 25 entries.")
		}
	}
	r, err := robo.Audit.Recent(ctx, call.Message.Guild, n)
	if err != nil {
		return fmt.Errorf("couldn't read moderation log: %w", err)
	}
	if len(r) == 0 {
		return call.Channel.Say(ctx, "The moderation log is empty.")
	}
	var b strings.Builder
	b.WriteString("__**Moderation log**__\n")
	now := time.Now()
	for _, e := range r {
		fmt.Fprintf(&b, "`%s` **%s** %s by <@%s>", Since(now, e.Time), e.Action, e.Target, e.Actor)
		if e.Reason != "" {
			fmt.Fprintf(&b, " (%s)", e.Reason)
		}
		b.WriteByte('\n')
	}
	return call.Channel.Say(ctx, b.String())
}
