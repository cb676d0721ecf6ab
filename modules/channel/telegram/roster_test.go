package telegram

import (
	"slices"
	"testing"

	"gopkg.in/telebot.v3"
)

func TestRoster_Observe(t *testing.T) {
	t.Parallel()
	r := NewRoster()

	ev, changed := r.Observe(groupMessage(1, -5, 7, "hi"))
	if !changed || ev.ChatID != -5 || !slices.Equal(ev.Participants, []string{"user7"}) {
		t.Fatalf("first sender: changed=%v ev=%+v", changed, ev)
	}

	if _, changed := r.Observe(groupMessage(2, -5, 7, "again")); changed {
		t.Error("known sender reported as change")
	}

	join := groupMessage(3, -5, 7, "")
	join.UsersJoined = []telebot.User{{ID: 8}, {ID: 9}}
	ev, changed = r.Observe(join)
	if !changed || !slices.Equal(ev.Participants, []string{"user7", "user8", "user9"}) {
		t.Errorf("join: changed=%v participants=%v", changed, ev.Participants)
	}

	leave := groupMessage(4, -5, 8, "")
	leave.UserLeft = &telebot.User{ID: 8}
	ev, changed = r.Observe(leave)
	if !changed || !slices.Equal(ev.Participants, []string{"user7", "user9"}) {
		t.Errorf("leave: changed=%v participants=%v", changed, ev.Participants)
	}

	title := groupMessage(5, -5, 7, "")
	title.NewGroupTitle = "Ops 2"
	if _, changed := r.Observe(title); !changed {
		t.Error("title change not reported")
	}

	info, ok := r.Chat(-5)
	if !ok || info.Title != "Ops 2" || len(info.Participants) != 2 {
		t.Errorf("Chat() = %+v, %v", info, ok)
	}
}

func TestRoster_IgnoresPrivateChats(t *testing.T) {
	t.Parallel()
	r := NewRoster()

	if _, changed := r.Observe(privateMessage(1, 42, "hi")); changed {
		t.Error("private message changed the roster")
	}
	if _, ok := r.Chat(42); ok {
		t.Error("private chat tracked")
	}
}

func TestRoster_Seed(t *testing.T) {
	t.Parallel()
	r := NewRoster()

	r.Observe(groupMessage(1, -5, 7, "hi"))
	r.Seed(-5, "Seeded", []string{"user1", "user7"})

	info, _ := r.Chat(-5)
	if info.Title != "Seeded" {
		t.Errorf("title = %q", info.Title)
	}
	if !slices.Equal(info.Participants, []string{"user7", "user1"}) {
		t.Errorf("participants = %v", info.Participants)
	}
}
