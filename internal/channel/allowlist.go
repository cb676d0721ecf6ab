package channel

import "strings"

// Wildcard allows every peer when listed as a user.
const Wildcard = "*"

// AllowList controls which users and groups may reach the relay. An empty
// or nil AllowList denies everyone.
type AllowList struct {
	all    bool
	users  map[string]struct{}
	groups map[string]struct{}
}

// NewAllowList creates an AllowList. Keys are trimmed and lowercased so
// that IsAllowed can use direct map lookups.
func NewAllowList(users, groups []string) *AllowList {
	a := &AllowList{
		users:  make(map[string]struct{}, len(users)),
		groups: make(map[string]struct{}, len(groups)),
	}
	for _, u := range users {
		if strings.TrimSpace(u) == Wildcard {
			a.all = true
			continue
		}
		a.users[normalize(u)] = struct{}{}
	}
	for _, g := range groups {
		a.groups[normalize(g)] = struct{}{}
	}
	return a
}

// IsAllowed reports whether a message from sender in peer is permitted.
// For direct chats peer and sender are the same identifier.
//
// Rules:
//   - A wildcard user entry allows everyone.
//   - If the sender matches a user entry, allow.
//   - If the peer matches a group entry, allow.
//   - Otherwise deny.
func (a *AllowList) IsAllowed(sender, peer string) bool {
	if a == nil {
		return false
	}
	if a.all {
		return true
	}
	if _, ok := a.users[normalize(sender)]; ok {
		return true
	}
	if _, ok := a.groups[normalize(peer)]; ok {
		return true
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
