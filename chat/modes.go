package chat

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ynotnauk/go-irc/entities"
)

type userModeSetter interface {
	SetUserModes(channel string, nick string, modes string) bool
}

func handleMode(ctx *HandlerContext, message *entities.IrcMessage) {
	target := message.Param(0)
	modeString := message.Param(1)
	if target == "" {
		return
	}
	setter := message.Nick()
	args := paramsFrom(message, 2)
	switch {
	case ctx.Users.IsChannel(target):
		if ctx.Modes != nil && !ctx.replayed(message) {
			applyMembershipModes(ctx, target, ctx.Modes.ParseModes(target, modeString, args))
		}
		text := strings.TrimSpace(fmt.Sprintf("%s sets mode %s %s", setter, modeString, strings.Join(args, " ")))
		ctx.display(entities.DisplayTypeMode, target, setter, text, message)
		ctx.emit(entities.EventChannelModeChange, target, modeString, args)
	case ctx.Users.IsSelf(target):
		if ctx.SelfModes == nil || ctx.replayed(message) {
			return
		}
		ctx.SelfModes.ApplySelfModes(modeString)
		text := fmt.Sprintf("Your modes are now %s", ctx.SelfModes.SelfModes())
		ctx.display(entities.DisplayTypeMode, "", setter, text, message)
		ctx.emit(entities.EventUserModeChange, target, modeString)
	default:
		handleUnknown(ctx, message)
	}
}

// applyMembershipModes keeps the prefix characters in the user map in step
// with +o/+v style changes.
func applyMembershipModes(ctx *HandlerContext, channel string, changes []entities.ModeChange) {
	setter, ok := ctx.Users.(userModeSetter)
	if !ok || len(changes) == 0 {
		return
	}
	prefixFor := make(map[rune]rune)
	for prefix, mode := range prefixModes(ctx) {
		prefixFor[mode] = prefix
	}
	current := make(map[string]string)
	for _, user := range ctx.Users.Users(channel) {
		current[user.Nick] = user.Modes
	}
	for _, change := range changes {
		prefix, ok := prefixFor[change.Mode]
		if !ok || change.Arg == "" {
			continue
		}
		nick := matchNick(current, change.Arg)
		if nick == "" {
			continue
		}
		modes := strings.ReplaceAll(current[nick], string(prefix), "")
		if change.Adding {
			modes += string(prefix)
		}
		current[nick] = orderPrefixes(modes, prefixFor)
		setter.SetUserModes(channel, nick, current[nick])
	}
}

func matchNick(users map[string]string, nick string) string {
	for candidate := range users {
		if strings.EqualFold(candidate, nick) {
			return candidate
		}
	}
	return ""
}

// orderPrefixes sorts prefix characters from highest to lowest rank.
func orderPrefixes(modes string, prefixFor map[rune]rune) string {
	rank := map[rune]int{'q': 0, 'a': 1, 'o': 2, 'h': 3, 'v': 4}
	prefixRank := make(map[rune]int)
	for mode, prefix := range prefixFor {
		if r, ok := rank[mode]; ok {
			prefixRank[prefix] = r
		} else {
			prefixRank[prefix] = len(rank)
		}
	}
	runes := []rune(modes)
	sort.SliceStable(runes, func(i, j int) bool {
		return prefixRank[runes[i]] < prefixRank[runes[j]]
	})
	return string(runes)
}

// handleUserModeIs handles RPL_UMODEIS "<me> <modes>".
func handleUserModeIs(ctx *HandlerContext, message *entities.IrcMessage) {
	if ctx.SelfModes == nil {
		handleNumeric(ctx, message)
		return
	}
	ctx.SelfModes.ApplySelfModes(message.Param(1))
	ctx.display(entities.DisplayTypeMode, "", message.Nick(), fmt.Sprintf("Your modes are now %s", ctx.SelfModes.SelfModes()), message)
}

func handleTopic(ctx *HandlerContext, message *entities.IrcMessage) {
	channel := message.Param(0)
	if channel == "" {
		return
	}
	topic := message.Param(1)
	setter := message.Nick()
	if !ctx.replayed(message) {
		storeTopic(ctx, channel, &entities.TopicInfo{
			Topic: topic,
			SetBy: setter,
			SetAt: ctx.now(),
		})
	}
	text := fmt.Sprintf("%s changed the topic to: %s", setter, topic)
	if topic == "" {
		text = fmt.Sprintf("%s cleared the topic", setter)
	}
	ctx.display(entities.DisplayTypeTopic, channel, setter, text, message)
	ctx.emit(entities.EventTopic, channel, topic, setter)
	if ctx.Hooks.AnnounceChannel != nil {
		ctx.Hooks.AnnounceChannel(channel)
	}
}

// handleTopicReply handles RPL_TOPIC "<me> <channel> :<topic>".
func handleTopicReply(ctx *HandlerContext, message *entities.IrcMessage) {
	channel := message.Param(1)
	if channel == "" {
		return
	}
	topic := message.Param(2)
	info := &entities.TopicInfo{Topic: topic}
	if previous := loadTopic(ctx, channel); previous != nil && previous.Topic == topic {
		info.SetBy = previous.SetBy
		info.SetAt = previous.SetAt
	}
	storeTopic(ctx, channel, info)
	ctx.display(entities.DisplayTypeTopic, channel, "", fmt.Sprintf("Topic for %s: %s", channel, topic), message)
	ctx.emit(entities.EventTopic, channel, topic, info.SetBy)
	if ctx.Hooks.AnnounceChannel != nil {
		ctx.Hooks.AnnounceChannel(channel)
	}
}

// handleTopicWhoTime handles RPL_TOPICWHOTIME "<me> <channel> <setter> <unix>".
func handleTopicWhoTime(ctx *HandlerContext, message *entities.IrcMessage) {
	channel := message.Param(1)
	setter := message.Param(2)
	if channel == "" || setter == "" {
		return
	}
	info := loadTopic(ctx, channel)
	if info == nil {
		info = &entities.TopicInfo{}
	}
	info.SetBy = setter
	info.SetAt = parseUnixSeconds(message.Param(3), ctx.now())
	storeTopic(ctx, channel, info)
	text := fmt.Sprintf("Topic set by %s on %s", setter, info.SetAt.UTC().Format(time.RFC1123))
	ctx.display(entities.DisplayTypeTopic, channel, "", text, message)
}

func storeTopic(ctx *HandlerContext, channel string, info *entities.TopicInfo) {
	if ctx.Topics == nil {
		return
	}
	if err := ctx.Topics.SetTopic(ctx.Network, channel, info); err != nil {
		ctx.logger().Warn("Unable to store topic",
			zap.String("connection", ctx.ConnectionID),
			zap.String("channel", channel),
			zap.Error(err),
		)
	}
}

func loadTopic(ctx *HandlerContext, channel string) *entities.TopicInfo {
	if ctx.Topics == nil {
		return nil
	}
	info, err := ctx.Topics.GetTopic(ctx.Network, channel)
	if err != nil || info == nil {
		return nil
	}
	copied := *info
	return &copied
}
