package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Cooldown administers cooldowns. Only the bot owner may use it.
//   - action: Currently only "clear".
//   - args: Optional subject, then optional cooldown name. The subject is a
//     user, a channel link, or the word channel or guild for the current
//     channel or guild. Without a subject, the invoker's own cooldowns are
//     cleared.
func Cooldown(ctx context.Context, robo *Robot, call *Invocation) error {
	if robo.Owner == "" || call.Message.Sender != robo.Owner {
		return Warning("Only the bot owner can use this command.")
	}
	if a := strings.ToLower(call.Args["action"]); a != "clear" {
		return Warnf("Unknown action %q. Usage: `cooldown clear [user|channel|guild] [name]`", a)
	}
	subject, who := call.Message.Sender, "<@"+call.Message.Sender+">"
	pos := Fields(call.Args["args"])
	if len(pos) > 0 {
		if sub, w, ok := cooldownSubject(call, pos[0]); ok {
			subject, who, pos = sub, w, pos[1:]
		}
	}
	if subject == "" {
		return Warning("There is no guild here.")
	}
	var s string
	if len(pos) > 0 {
		name := strings.ToLower(pos[0])
		if !robo.Cooldowns.Reset(subject, name) {
			return Warnf("%s has no `%s` cooldown.", who, name)
		}
		s = fmt.Sprintf("✅ Cleared the `%s` cooldown for %s.", name, who)
	} else {
		n := robo.Cooldowns.ResetSubject(subject)
		s = fmt.Sprintf("✅ Cleared %d cooldowns for %s.", n, who)
	}
	robo.Log.InfoContext(ctx, "cleared cooldowns",
		slog.String("subject", subject),
		slog.String("by", call.Message.Sender),
	)
	return call.Channel.Say(ctx, s)
}

// cooldownSubject interprets an argument as a cooldown subject and the way to
// display it.
func cooldownSubject(call *Invocation, arg string) (subject, who string, ok bool) {
	switch strings.ToLower(arg) {
	case "channel":
		return call.Message.Channel, "<#" + call.Message.Channel + ">", true
	case "guild", "server":
		return call.Message.Guild, "this server", true
	}
	if id, ok := UserID(arg); ok {
		return id, "<@" + id + ">", true
	}
	if id, ok := ChannelID(arg); ok {
		return id, "<#" + id + ">", true
	}
	return "", "", false
}
