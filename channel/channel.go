package channel

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/zephyrtronium/dizzy/message"
)

type Channel struct {
	// ID is the Discord ID of the channel.
	ID string
	// Guild is the ID of the guild containing the channel.
	// It is empty for direct message channels.
	Guild string
	// Message sends a message to the channel with an optional reply message ID.
	Message func(ctx context.Context, msg message.Sent) error
	// Rate is the rate limiter for messages. Sends in excess of the rate limit
	// wait for a token.
	Rate *rate.Limiter
	// Extra is extra channel data that may be added by commands.
	Extra sync.Map // map[any]any; key is a type
	// Disabled indicates whether commands are ignored in the channel.
	Disabled atomic.Bool
}

// Send waits for the channel's rate limit, then sends a message.
// If the context is canceled while waiting, the message is dropped.
func (ch *Channel) Send(ctx context.Context, msg message.Sent) error {
	if ch.Rate != nil {
		if err := ch.Rate.Wait(ctx); err != nil {
			return err
		}
	}
	msg.To = ch.ID
	return ch.Message(ctx, msg)
}

// Say sends plain text to the channel.
func (ch *Channel) Say(ctx context.Context, text string) error {
	return ch.Send(ctx, message.Sent{Text: text})
}

// Reply sends text in reply to a message in the channel.
func (ch *Channel) Reply(ctx context.Context, reply, text string) error {
	return ch.Send(ctx, message.Sent{Reply: reply, Text: text})
}
