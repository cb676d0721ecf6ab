package channel

import "testing"

func TestAllowList_NilDeniesAll(t *testing.T) {
	t.Parallel()
	var a *AllowList
	if a.IsAllowed("user1", "user1") {
		t.Error("nil AllowList should deny everyone")
	}
}

func TestAllowList_EmptyDeniesAll(t *testing.T) {
	t.Parallel()
	a := NewAllowList(nil, nil)
	if a.IsAllowed("user1", "user1") {
		t.Error("empty AllowList should deny everyone")
	}
}

func TestAllowList_Rules(t *testing.T) {
	t.Parallel()
	a := NewAllowList([]string{"user1", " USER2 "}, []string{"chat-100"})

	tests := []struct {
		name    string
		sender  string
		peer    string
		allowed bool
	}{
		{"direct allowed user", "user1", "user1", true},
		{"normalized user", "user2", "user2", true},
		{"direct unknown user", "user3", "user3", false},
		{"allowed user in any group", "user1", "chat-5", true},
		{"unknown user in allowed group", "user3", "chat-100", true},
		{"unknown user in unknown group", "user3", "chat-5", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := a.IsAllowed(tc.sender, tc.peer); got != tc.allowed {
				t.Errorf("IsAllowed(%q, %q) = %v, want %v", tc.sender, tc.peer, got, tc.allowed)
			}
		})
	}
}

func TestAllowList_Wildcard(t *testing.T) {
	t.Parallel()
	a := NewAllowList([]string{"*"}, nil)
	if !a.IsAllowed("user9", "chat-9") {
		t.Error("wildcard should allow everyone")
	}
}
