package event

import (
	"time"
)

// Author of a chat message.
type Author struct {
	ID       uint64
	Username string
	Bot      bool
}

// A chat message as delivered by the gateway. Messages with a zero GuildID are direct messages to the bot.
type Message struct {
	ID        uint64
	ChannelID uint64
	GuildID   uint64
	Author    Author
	Content   string
	Timestamp time.Time
}

func (m *Message) IsDirect() bool {
	return m.GuildID == 0
}
