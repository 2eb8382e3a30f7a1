package interfaces

import "github.com/ynotnauk/go-irc/entities"

// UserListAccessor is the per-connection view of the local nick and the
// network-scoped channel user maps.
type UserListAccessor interface {
	CurrentNick() string
	SetCurrentNick(nick string)
	IsSelf(nick string) bool
	IsChannel(target string) bool
	AddChannel(channel string)
	DropChannel(channel string)
	Channels() []string
	AddUser(channel string, user entities.ChannelUser)
	RemoveUser(channel string, nick string) bool
	RenameUser(channel string, oldNick string, newNick string) bool
	ChannelsWithUser(nick string) []string
	Users(channel string) []entities.ChannelUser
}
