package ws

import "testing"

func TestRoomJoinReplacesSameRoleSlot(t *testing.T) {
	r := newRoom(1)
	first := &peer{}
	second := &peer{}

	replaced, _ := r.join("user", first)
	if replaced != nil {
		t.Fatalf("first join replaced %v, want nil", replaced)
	}

	replaced, _ = r.join("user", second)
	if replaced != first {
		t.Fatalf("second join replaced %v, want first peer", replaced)
	}
	if r.slots["user"] != second {
		t.Fatal("slot should hold the newest connection")
	}
}

func TestRoomJoinReturnsOtherParty(t *testing.T) {
	r := newRoom(1)
	user := &peer{}
	consultant := &peer{}

	_, other := r.join("user", user)
	if other != nil {
		t.Fatalf("other = %v, want nil with one slot filled", other)
	}
	_, other = r.join("consultant", consultant)
	if other != user {
		t.Fatalf("other = %v, want the user peer", other)
	}
}

func TestRoomLeaveIgnoresStalePeer(t *testing.T) {
	r := newRoom(1)
	old := &peer{}
	current := &peer{}
	r.join("user", old)
	r.join("user", current)

	// a replaced connection's deferred cleanup must not evict the live one
	_, empty := r.leave("user", old)
	if empty {
		t.Fatal("stale leave should not empty the room")
	}
	if r.slots["user"] != current {
		t.Fatal("live connection was evicted by a stale leave")
	}

	_, empty = r.leave("user", current)
	if !empty {
		t.Fatal("room should be empty after the live connection leaves")
	}
}

func TestHubDropOnlyRemovesEmptyRooms(t *testing.T) {
	h := NewHub()
	r := h.room(7)
	r.join("user", &peer{})

	h.drop(7)
	if h.room(7) != r {
		t.Fatal("occupied room was dropped")
	}

	r.leave("user", r.slots["user"])
	h.drop(7)
	if h.room(7) == r {
		t.Fatal("empty room was not dropped")
	}
}
