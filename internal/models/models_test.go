package models

import "testing"

func TestChannelKeyOrderIndependent(t *testing.T) {
	if ChannelKey(3, 7) != ChannelKey(7, 3) {
		t.Fatalf("channel key should not depend on argument order")
	}
	if got := ChannelKey(7, 3); got != "3_7" {
		t.Fatalf("expected 3_7, got %s", got)
	}
	if got := ChannelKey(12, 1); got != "1_12" {
		t.Fatalf("expected 1_12, got %s", got)
	}
}

func TestChannelKeyNoCollisions(t *testing.T) {
	// Pairs that collide under plain concatenation must stay distinct.
	if ChannelKey(1, 12) == ChannelKey(11, 2) {
		t.Fatalf("distinct pairs must produce distinct keys")
	}
}

func TestEnsureCanonicalOrder(t *testing.T) {
	ch := ChatChannel{UserID1: 9, UserID2: 4}
	ch.EnsureCanonicalOrder()
	if ch.UserID1 != 4 || ch.UserID2 != 9 {
		t.Fatalf("expected swapped ids, got %d/%d", ch.UserID1, ch.UserID2)
	}
	if ch.Key != "4_9" {
		t.Fatalf("expected key 4_9, got %s", ch.Key)
	}
}

func TestNormalizeVisibility(t *testing.T) {
	cases := map[string]PostVisibility{
		"public":       PublicVisibility,
		"Public":       PublicVisibility,
		"friends":      FriendsVisibility,
		"Friends":      FriendsVisibility,
		"Friends Only": FriendsVisibility,
		"friends_only": FriendsVisibility,
		"friendsonly":  FriendsVisibility,
		"":             PublicVisibility,
		"garbage":      PublicVisibility,
		"  friends  ":  FriendsVisibility,
	}
	for in, want := range cases {
		if got := NormalizeVisibility(in); got != want {
			t.Errorf("NormalizeVisibility(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPostVisibleTo(t *testing.T) {
	pub := Post{AuthorID: 1, Visibility: PublicVisibility}
	priv := Post{AuthorID: 1, Visibility: FriendsVisibility}
	friends := map[uint]bool{1: true}
	noFriends := map[uint]bool{}

	if !pub.VisibleTo(0, noFriends) {
		t.Errorf("public post should be visible to anonymous viewers")
	}
	if !priv.VisibleTo(1, noFriends) {
		t.Errorf("friends post should be visible to its author")
	}
	if !priv.VisibleTo(2, friends) {
		t.Errorf("friends post should be visible to the author's friend")
	}
	if priv.VisibleTo(3, noFriends) {
		t.Errorf("friends post should be hidden from strangers")
	}
	if priv.VisibleTo(0, friends) {
		t.Errorf("friends post should be hidden from anonymous viewers")
	}
}

func TestMessageUnreadFor(t *testing.T) {
	m := ChatMessage{UnreadBy: []uint{5}}
	if !m.UnreadFor(5) {
		t.Errorf("expected message unread for user 5")
	}
	if m.UnreadFor(6) {
		t.Errorf("expected message read for user 6")
	}
}

func TestFriendshipOtherParty(t *testing.T) {
	f := Friendship{FromUserID: 2, ToUserID: 8}
	if f.OtherParty(2) != 8 || f.OtherParty(8) != 2 {
		t.Fatalf("OtherParty mismatched")
	}
	if !f.Touches(2) || !f.Touches(8) || f.Touches(5) {
		t.Fatalf("Touches mismatched")
	}
}
