package channel

import (
	"slices"
	"sync"
	"time"

	"github.com/flemzord/tgrelay/pkg/message"
)

// Kind distinguishes direct chats from group chats. It is either Direct or
// *Group.
type Kind interface {
	kind()
}

// Direct is a one-to-one conversation.
type Direct struct{}

func (Direct) kind() {}

// Group is a multi-party conversation with a roster and a room
// configuration.
type Group struct {
	Roster *Roster
	Room   *Room
}

func (*Group) kind() {}

// NewGroup creates an empty group kind.
func NewGroup() *Group {
	return &Group{Roster: &Roster{}, Room: &Room{}}
}

// Member is one participant of a group.
type Member struct {
	Handle     message.Handle `json:"handle"`
	Identifier string         `json:"identifier"`
}

// Roster is the member list of a group. Safe for concurrent use.
type Roster struct {
	mu      sync.RWMutex
	members []Member
}

// Set replaces the member list.
func (r *Roster) Set(members []Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = slices.Clone(members)
}

// Members returns a copy of the member list.
func (r *Roster) Members() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.members)
}

// Identifier returns the identifier of the member with handle h.
func (r *Roster) Identifier(h message.Handle) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.Handle == h {
			return m.Identifier, true
		}
	}
	return "", false
}

// RoomInfo is a snapshot of a room's configuration.
type RoomInfo struct {
	Title                  string    `json:"title"`
	Created                time.Time `json:"created"`
	ConfigurationRetrieved bool      `json:"configuration_retrieved"`
}

// Room holds a group's configuration. Safe for concurrent use.
type Room struct {
	mu   sync.RWMutex
	info RoomInfo
}

// Snapshot returns the current configuration.
func (r *Room) Snapshot() RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.info
}

func (r *Room) setTitle(title string, created int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info.Title = title
	if created > 0 {
		r.info.Created = time.Unix(created, 0).UTC()
	}
}

func (r *Room) setRetrieved(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.info.ConfigurationRetrieved = v
}
