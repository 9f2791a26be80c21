package cooldown

import (
	"strconv"
	"strings"
	"time"

	"gitlab.com/zephyrtronium/pick"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var dizzies = pick.New([]pick.Case[string]{
	{E: "You're calling me fast enough that I'm getting dizzy!", W: 1},
	{E: "Watch out, seems like we might get a speeding ticket at this rate!", W: 1},
	{E: "You have to wait before using the command again...", W: 1},
	{E: "You're calling me a bit too fast, I am getting dizzy!", W: 1},
	{E: "I am busy, try again after a bit", W: 1},
	{E: "Hang in there before using this command again...", W: 1},
	{E: "Wait up, I am not done with my break", W: 1},
})

// Notice formats the message telling a subject that a command is on
// cooldown. r selects the flavor text. bucket is the shared bucket name, or
// empty when the cooldown belongs to a single command.
func Notice(r uint32, remaining time.Duration, scope Scope, bucket string) string {
	var b strings.Builder
	b.WriteString("⛔ **Cooldown:**\n*")
	b.WriteString(dizzies.Pick(r))
	b.WriteString("*\n")
	if bucket != "" {
		b.WriteString(cases.Title(language.English).String(bucket))
		b.WriteString(" commands")
	} else {
		b.WriteString("This command")
	}
	b.WriteString(" is on cooldown for **")
	b.WriteString(Seconds(remaining))
	b.WriteString(" more seconds**")
	switch scope {
	case Channel:
		b.WriteString(" in this channel")
	case Guild:
		b.WriteString(" in this guild")
	}
	b.WriteByte('!')
	return b.String()
}

// Seconds formats a remaining cooldown as seconds to one decimal place.
// Anything under a tenth of a second, including negative durations, is
// displayed as 0.1.
func Seconds(d time.Duration) string {
	if d < 100*time.Millisecond {
		return "0.1"
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 1, 64)
}
