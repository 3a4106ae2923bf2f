package rtc

import "strconv"

// Room key derivation. Every call site, including the HTTP broadcast bridge,
// goes through these so the naming convention cannot drift apart.

// ChatRoom is the room key for a direct chat.
func ChatRoom(chatID int64) string {
	return "chat:" + strconv.FormatInt(chatID, 10)
}

// ServerRoom is the room key for a server's domain events.
func ServerRoom(serverID int64) string {
	return "server:" + strconv.FormatInt(serverID, 10)
}

// ChannelMessagesRoom is the room key for a channel's message stream.
func ChannelMessagesRoom(channelID int64) string {
	return "channelMessages:" + strconv.FormatInt(channelID, 10)
}
