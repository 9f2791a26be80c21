package message

import (
	"github.com/bwmarrin/discordgo"
)

// FromDiscord adapts a Discord message.
func FromDiscord(m *discordgo.Message) *Received {
	r := Received{
		ID:        m.ID,
		Channel:   m.ChannelID,
		Guild:     m.GuildID,
		Text:      m.Content,
		Timestamp: m.Timestamp.UnixMilli(),
		Mentions:  len(m.Mentions) + len(m.MentionRoles),
	}
	if m.MentionEveryone {
		r.Mentions++
	}
	if m.Author != nil {
		r.Sender = m.Author.ID
		r.Name = m.Author.Username
		r.IsBot = m.Author.Bot
	}
	return &r
}

// ToDiscord creates a message to send to Discord. If the message has a reply,
// the result references it.
func ToDiscord(msg Sent) *discordgo.MessageSend {
	r := discordgo.MessageSend{
		Content: msg.Text,
		// Never ping anyone because of text we were asked to send.
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if msg.Reply != "" {
		r.Reference = &discordgo.MessageReference{MessageID: msg.Reply, ChannelID: msg.To}
	}
	return &r
}
