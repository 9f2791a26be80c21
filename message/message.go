package message

import (
	"fmt"
	"strings"
	"time"
)

// Received is a message received from Discord.
type Received struct {
	// ID is the unique ID of the message.
	ID string
	// Channel is the ID of the channel to which the message was sent.
	Channel string
	// Guild is the ID of the guild containing the channel.
	// It is empty for direct messages.
	Guild string
	// Sender is the user ID of the message sender.
	Sender string
	// Name is the username of the message sender.
	Name string
	// Text is the text of the message.
	Text string
	// Timestamp is the timestamp of the message as milliseconds since the
	// Unix epoch.
	Timestamp int64
	// IsBot indicates whether the sender is a bot account.
	IsBot bool
	// Mentions is the number of users and roles the message mentions.
	Mentions int
}

func (m *Received) Time() time.Time {
	return time.UnixMilli(m.Timestamp)
}

// Sent is a message to be sent to Discord.
type Sent struct {
	// Reply is a message to reply to. If empty, the message is not interpreted
	// as a reply.
	Reply string
	// To is the channel to which the message is sent.
	To string
	// Text is the message text.
	Text string
}

// formatString is a type to prevent misuse of format strings passed to [Format].
type formatString string

// Format constructs a message to send from a format string literal and
// formatting arguments.
func Format(reply, to string, f formatString, args ...any) Sent {
	return Sent{
		Reply: reply,
		To:    to,
		Text:  strings.TrimSpace(fmt.Sprintf(string(f), args...)),
	}
}
