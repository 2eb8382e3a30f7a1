package protection

import (
	"sort"
	"strings"
	"sync"

	"github.com/ynotnauk/go-irc/entities"
)

// IgnoreList matches message sources against nick!user@host masks with "*"
// and "?" wildcards, case-insensitively. A mask may be scoped to one
// network as "network/mask". A bare nick stands for "nick!*@*".
type IgnoreList struct {
	mu    sync.RWMutex
	masks map[string]struct{}
}

func NewIgnoreList(masks ...string) *IgnoreList {
	list := &IgnoreList{masks: make(map[string]struct{})}
	for _, mask := range masks {
		list.Add(mask)
	}
	return list
}

func normalizeMask(mask string) string {
	mask = strings.ToLower(strings.TrimSpace(mask))
	if mask == "" {
		return ""
	}
	network, rest, _ := splitScope(mask)
	if !strings.ContainsAny(rest, "!@") {
		rest += "!*@*"
	}
	if network == "" {
		return rest
	}
	return network + "/" + rest
}

func (l *IgnoreList) Add(mask string) {
	mask = normalizeMask(mask)
	if mask == "" {
		return
	}
	l.mu.Lock()
	l.masks[mask] = struct{}{}
	l.mu.Unlock()
}

func (l *IgnoreList) Remove(mask string) bool {
	mask = normalizeMask(mask)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.masks[mask]; !ok {
		return false
	}
	delete(l.masks, mask)
	return true
}

// Replace swaps the whole list, as after a configuration reload.
func (l *IgnoreList) Replace(masks []string) {
	fresh := make(map[string]struct{}, len(masks))
	for _, mask := range masks {
		if normalized := normalizeMask(mask); normalized != "" {
			fresh[normalized] = struct{}{}
		}
	}
	l.mu.Lock()
	l.masks = fresh
	l.mu.Unlock()
}

func (l *IgnoreList) Masks() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	masks := make([]string, 0, len(l.masks))
	for mask := range l.masks {
		masks = append(masks, mask)
	}
	sort.Strings(masks)
	return masks
}

func (l *IgnoreList) IsIgnored(network string, source *entities.IrcMessageSource) bool {
	if source == nil || source.Nickname == "" {
		return false
	}
	subject := strings.ToLower(source.Nickname + "!" + source.Username + "@" + source.Host)
	network = strings.ToLower(network)
	l.mu.RLock()
	defer l.mu.RUnlock()
	for mask := range l.masks {
		scope, pattern, scoped := splitScope(mask)
		if scoped && scope != network {
			continue
		}
		if wildcardMatch(pattern, subject) {
			return true
		}
	}
	return false
}

// splitScope separates a "network/" prefix. Hosts may contain "/" too, so
// a prefix holding mask characters is not a scope.
func splitScope(mask string) (scope string, pattern string, scoped bool) {
	scope, pattern, found := strings.Cut(mask, "/")
	if !found || scope == "" || strings.ContainsAny(scope, "!@*?") {
		return "", mask, false
	}
	return scope, pattern, true
}

// wildcardMatch matches "*" and "?" only, leaving "[" literal as it is
// common in nicks.
func wildcardMatch(pattern string, subject string) bool {
	p, s := 0, 0
	star, mark := -1, 0
	for s < len(subject) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == subject[s]):
			p++
			s++
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, s
			p++
		case star >= 0:
			p = star + 1
			mark++
			s = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
