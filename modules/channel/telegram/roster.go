package telegram

import (
	"slices"
	"sync"

	"github.com/flemzord/tgrelay/internal/protocol"
	"gopkg.in/telebot.v3"
)

// Roster tracks the participants and titles of the group chats the bot has
// seen. The Bot API has no member listing, so the roster is built from
// administrators and from observed senders, joins and leaves.
type Roster struct {
	mu    sync.Mutex
	chats map[int64]*rosterChat
}

type rosterChat struct {
	title   string
	members []string
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{chats: make(map[int64]*rosterChat)}
}

// Observe updates the roster from a group message. It returns the resulting
// chat change event when the participants or the title changed.
func (r *Roster) Observe(m *telebot.Message) (protocol.ChatChangedEvent, bool) {
	if m == nil || !isGroup(m.Chat) {
		return protocol.ChatChangedEvent{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	chat, known := r.chats[m.Chat.ID]
	if !known {
		chat = &rosterChat{title: m.Chat.Title}
		r.chats[m.Chat.ID] = chat
	}

	changed := false
	if m.NewGroupTitle != "" && m.NewGroupTitle != chat.title {
		chat.title = m.NewGroupTitle
		changed = true
	}

	if m.UserLeft != nil {
		changed = chat.remove(protocol.UserIdentifier(m.UserLeft.ID)) || changed
	} else if m.Sender != nil {
		changed = chat.add(protocol.UserIdentifier(m.Sender.ID)) || changed
	}
	if m.UserJoined != nil {
		changed = chat.add(protocol.UserIdentifier(m.UserJoined.ID)) || changed
	}
	for _, u := range m.UsersJoined {
		changed = chat.add(protocol.UserIdentifier(u.ID)) || changed
	}

	if !changed {
		return protocol.ChatChangedEvent{}, false
	}
	return protocol.ChatChangedEvent{ChatID: m.Chat.ID, Participants: slices.Clone(chat.members)}, true
}

// Seed records a chat fetched from the API. Known participants are kept.
func (r *Roster) Seed(chatID int64, title string, members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, ok := r.chats[chatID]
	if !ok {
		chat = &rosterChat{}
		r.chats[chatID] = chat
	}
	if title != "" {
		chat.title = title
	}
	for _, id := range members {
		chat.add(id)
	}
}

// Chat returns the tracked state of chatID.
func (r *Roster) Chat(chatID int64) (protocol.GroupChat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	chat, ok := r.chats[chatID]
	if !ok {
		return protocol.GroupChat{}, false
	}
	return protocol.GroupChat{
		ID:           chatID,
		Title:        chat.title,
		Participants: slices.Clone(chat.members),
	}, true
}

func (c *rosterChat) add(id string) bool {
	if slices.Contains(c.members, id) {
		return false
	}
	c.members = append(c.members, id)
	return true
}

func (c *rosterChat) remove(id string) bool {
	i := slices.Index(c.members, id)
	if i < 0 {
		return false
	}
	c.members = slices.Delete(c.members, i, i+1)
	return true
}
