package chat

import (
	"strings"

	"github.com/ynotnauk/go-irc/entities"
	"github.com/ynotnauk/go-irc/interfaces"
)

const defaultChanModes = "beI,k,l,imnpst"

// ModeParser splits channel mode strings using the CHANMODES and PREFIX
// tokens the server advertised.
type ModeParser struct {
	isupport interfaces.ISupportTracker
}

func NewModeParser(isupport interfaces.ISupportTracker) *ModeParser {
	return &ModeParser{isupport: isupport}
}

// ParseModes pairs each mode letter with its argument. List, key and
// membership modes always take one; limit style modes only when set.
func (p *ModeParser) ParseModes(channel string, modeString string, args []string) []entities.ModeChange {
	withArg, whenAdding := p.argumentModes()
	var changes []entities.ModeChange
	adding := true
	next := 0
	for _, mode := range modeString {
		switch mode {
		case '+':
			adding = true
			continue
		case '-':
			adding = false
			continue
		}
		change := entities.ModeChange{Adding: adding, Mode: mode}
		if strings.ContainsRune(withArg, mode) || (adding && strings.ContainsRune(whenAdding, mode)) {
			if next < len(args) {
				change.Arg = args[next]
				next++
			}
		}
		changes = append(changes, change)
	}
	return changes
}

func (p *ModeParser) argumentModes() (withArg string, whenAdding string) {
	chanModes := defaultChanModes
	prefixModes := "qaohv"
	if p.isupport != nil {
		if value, ok := p.isupport.ISupport("CHANMODES"); ok && value != "" {
			chanModes = value
		}
		if value, ok := p.isupport.ISupport("PREFIX"); ok && strings.HasPrefix(value, "(") {
			if modes, _, found := strings.Cut(value[1:], ")"); found {
				prefixModes = modes
			}
		}
	}
	groups := strings.SplitN(chanModes, ",", 4)
	for len(groups) < 4 {
		groups = append(groups, "")
	}
	return groups[0] + groups[1] + prefixModes, groups[2]
}
