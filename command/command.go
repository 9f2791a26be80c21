package command

import (
	"context"
	"fmt"

	"github.com/zephyrtronium/dizzy/channel"
	"github.com/zephyrtronium/dizzy/cooldown"
	"github.com/zephyrtronium/dizzy/message"
)

// Invocation is a command invocation. An Invocation and its fields must not
// be modified or retained by any command.
type Invocation struct {
	// Channel is the channel where the invocation occurred.
	Channel *channel.Channel
	// Message is the message which triggered the invocation. It is always
	// non-nil, but not all fields are guaranteed to be populated.
	Message *message.Received
	// Args is the parsed arguments to the command.
	Args map[string]string
	// Perms is the invoking user's permission bits in the channel.
	Perms int64
}

// Origin returns where the invocation happened for cooldown purposes.
func (call *Invocation) Origin() cooldown.Origin {
	return cooldown.Origin{
		User:    call.Message.Sender,
		Channel: call.Message.Channel,
		Guild:   call.Message.Guild,
	}
}

// Func executes a command. A command which returns a non-nil error has not
// completed successfully, so it does not start a cooldown.
type Func func(ctx context.Context, robo *Robot, call *Invocation) error

// Warning is an error caused by the invocation rather than the bot.
// Its text is shown to the invoking user.
type Warning string

func (w Warning) Error() string {
	return string(w)
}

// Warnf formats a [Warning].
func Warnf(format string, args ...any) error {
	return Warning(fmt.Sprintf(format, args...))
}

// errGuildOnly is the warning for guild commands used in direct messages.
const errGuildOnly = Warning("This command can only be used in a server.")

func guildOnly(call *Invocation) error {
	if call.Message.Guild == "" {
		return errGuildOnly
	}
	return nil
}
