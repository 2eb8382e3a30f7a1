package chat

import (
	"sort"
	"strings"
	"sync"

	"github.com/ynotnauk/go-irc/entities"
)

const defaultChanTypes = "#&"

// State is the mutable per-connection protocol state: the local nick,
// network-scoped channel user maps, enabled capabilities, self modes and the
// server's ISUPPORT tokens. Keys are casefolded with the network's
// CASEMAPPING.
type State struct {
	mu         sync.RWMutex
	nick       string
	registered bool
	channels   map[string]*channelEntry
	caps       map[string]bool
	selfModes  map[rune]bool
	isupport   map[string]string
}

type channelEntry struct {
	name  string
	users map[string]*entities.ChannelUser
}

func NewState(nick string) *State {
	return &State{
		nick:      nick,
		channels:  make(map[string]*channelEntry),
		caps:      make(map[string]bool),
		selfModes: make(map[rune]bool),
		isupport:  make(map[string]string),
	}
}

// Reset clears everything learnt from the server, keeping the local nick.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registered = false
	s.channels = make(map[string]*channelEntry)
	s.caps = make(map[string]bool)
	s.selfModes = make(map[rune]bool)
	s.isupport = make(map[string]string)
}

func (s *State) fold(name string) string {
	if s.isupport["CASEMAPPING"] == "ascii" {
		return strings.ToLower(name)
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == '[':
			return '{'
		case r == ']':
			return '}'
		case r == '\\':
			return '|'
		case r == '~':
			return '^'
		}
		return r
	}, name)
}

func (s *State) CurrentNick() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nick
}

func (s *State) SetCurrentNick(nick string) {
	s.mu.Lock()
	s.nick = nick
	s.mu.Unlock()
}

// IsSelf compares nick against the local nick case-insensitively.
func (s *State) IsSelf(nick string) bool {
	if nick == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fold(nick) == s.fold(s.nick)
}

func (s *State) IsChannel(target string) bool {
	if target == "" {
		return false
	}
	s.mu.RLock()
	chanTypes, ok := s.isupport["CHANTYPES"]
	s.mu.RUnlock()
	if !ok {
		chanTypes = defaultChanTypes
	}
	return strings.ContainsRune(chanTypes, rune(target[0]))
}

func (s *State) Registered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registered
}

func (s *State) SetRegistered(registered bool) {
	s.mu.Lock()
	s.registered = registered
	s.mu.Unlock()
}

// AddChannel starts tracking channel with an empty user map. Rejoining a
// tracked channel resets its map.
func (s *State) AddChannel(channel string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels[s.fold(channel)] = &channelEntry{
		name:  channel,
		users: make(map[string]*entities.ChannelUser),
	}
}

func (s *State) DropChannel(channel string) {
	s.mu.Lock()
	delete(s.channels, s.fold(channel))
	s.mu.Unlock()
}

func (s *State) Channels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channels := make([]string, 0, len(s.channels))
	for _, entry := range s.channels {
		channels = append(channels, entry.name)
	}
	sort.Strings(channels)
	return channels
}

// AddUser inserts or replaces user in the channel's map, creating the map
// when the channel is not tracked yet.
func (s *State) AddUser(channel string, user entities.ChannelUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.fold(channel)
	entry, ok := s.channels[key]
	if !ok {
		entry = &channelEntry{name: channel, users: make(map[string]*entities.ChannelUser)}
		s.channels[key] = entry
	}
	userKey := s.fold(user.Nick)
	if existing, ok := entry.users[userKey]; ok {
		if user.Username == "" {
			user.Username = existing.Username
		}
		if user.Host == "" {
			user.Host = existing.Host
		}
		if user.Account == "" {
			user.Account = existing.Account
		}
		if user.Modes == "" {
			user.Modes = existing.Modes
		}
	}
	entry.users[userKey] = &user
}

func (s *State) RemoveUser(channel string, nick string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.channels[s.fold(channel)]
	if !ok {
		return false
	}
	key := s.fold(nick)
	if _, ok := entry.users[key]; !ok {
		return false
	}
	delete(entry.users, key)
	return true
}

// RenameUser moves the entry for oldNick to newNick and updates its Nick
// field.
func (s *State) RenameUser(channel string, oldNick string, newNick string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.channels[s.fold(channel)]
	if !ok {
		return false
	}
	oldKey := s.fold(oldNick)
	user, ok := entry.users[oldKey]
	if !ok {
		return false
	}
	delete(entry.users, oldKey)
	user.Nick = newNick
	entry.users[s.fold(newNick)] = user
	return true
}

func (s *State) ChannelsWithUser(nick string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := s.fold(nick)
	var channels []string
	for _, entry := range s.channels {
		if _, ok := entry.users[key]; ok {
			channels = append(channels, entry.name)
		}
	}
	sort.Strings(channels)
	return channels
}

// Users returns a copy of the channel's user map sorted by nick.
func (s *State) Users(channel string) []entities.ChannelUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.channels[s.fold(channel)]
	if !ok {
		return nil
	}
	users := make([]entities.ChannelUser, 0, len(entry.users))
	for _, user := range entry.users {
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].Nick < users[j].Nick
	})
	return users
}

// SetUserModes replaces the membership prefix characters of nick in channel.
func (s *State) SetUserModes(channel string, nick string, modes string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.channels[s.fold(channel)]
	if !ok {
		return false
	}
	user, ok := entry.users[s.fold(nick)]
	if !ok {
		return false
	}
	user.Modes = modes
	return true
}

func (s *State) HasCap(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.caps[strings.ToLower(name)]
}

func (s *State) SetCap(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if enabled {
		s.caps[strings.ToLower(name)] = true
		return
	}
	delete(s.caps, strings.ToLower(name))
}

func (s *State) Caps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	caps := make([]string, 0, len(s.caps))
	for name := range s.caps {
		caps = append(caps, name)
	}
	sort.Strings(caps)
	return caps
}

// ApplySelfModes folds a user mode string such as "+iw-x" into the tracked
// self modes.
func (s *State) ApplySelfModes(modeString string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	adding := true
	for _, mode := range modeString {
		switch mode {
		case '+':
			adding = true
		case '-':
			adding = false
		default:
			if adding {
				s.selfModes[mode] = true
			} else {
				delete(s.selfModes, mode)
			}
		}
	}
}

func (s *State) SelfModes() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	modes := make([]rune, 0, len(s.selfModes))
	for mode := range s.selfModes {
		modes = append(modes, mode)
	}
	sort.Slice(modes, func(i, j int) bool {
		return modes[i] < modes[j]
	})
	return "+" + string(modes)
}

func (s *State) SetISupport(key string, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key = strings.ToUpper(key)
	if strings.HasPrefix(key, "-") {
		delete(s.isupport, key[1:])
		return
	}
	s.isupport[key] = value
}

func (s *State) ISupport(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.isupport[strings.ToUpper(key)]
	return value, ok
}

// PrefixModes maps membership prefix characters to their mode letters, read
// from the PREFIX token, for example "(ov)@+".
func (s *State) PrefixModes() map[rune]rune {
	value, ok := s.ISupport("PREFIX")
	if !ok || !strings.HasPrefix(value, "(") {
		return map[rune]rune{'~': 'q', '&': 'a', '@': 'o', '%': 'h', '+': 'v'}
	}
	modes, prefixes, found := strings.Cut(value[1:], ")")
	if !found || len(modes) != len(prefixes) {
		return map[rune]rune{'@': 'o', '+': 'v'}
	}
	mapping := make(map[rune]rune, len(modes))
	for i := range modes {
		mapping[rune(prefixes[i])] = rune(modes[i])
	}
	return mapping
}
