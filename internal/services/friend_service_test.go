package services

import (
	"context"
	"errors"
	"testing"

	"campusconnect/internal/cctypes"
	"campusconnect/internal/models"
)

func newFriendServiceForTest(t *testing.T) (FriendService, *fakeProducer, *testDeps) {
	t.Helper()
	deps := newTestDeps(t)
	producer := &fakeProducer{}
	svc := NewFriendService(deps.db, deps.userRepo, deps.friendshipRepo, producer, testKafkaConfig())
	return svc, producer, deps
}

func TestSendFriendRequest(t *testing.T) {
	svc, producer, deps := newFriendServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")

	edge, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("sending friend request: %v", err)
	}
	if edge.Status != models.FriendshipStatusPending {
		t.Errorf("expected pending status, got %s", edge.Status)
	}

	events := producer.eventsOfType(t, cctypes.FriendRequestEvent)
	if len(events) != 1 || events[0].RecipientID != bob.ID {
		t.Errorf("expected one friend.request event for bob, got %+v", events)
	}
}

func TestSendFriendRequestRejectsDuplicates(t *testing.T) {
	svc, _, deps := newFriendServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")

	if _, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("duplicate request: expected ErrAlreadyConnected, got %v", err)
	}
	// The reverse direction is blocked too.
	if _, err := svc.SendFriendRequest(ctx, bob.ID, alice.ID); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("reverse request: expected ErrAlreadyConnected, got %v", err)
	}
}

func TestSendFriendRequestValidation(t *testing.T) {
	svc, _, deps := newFriendServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")

	if _, err := svc.SendFriendRequest(ctx, alice.ID, alice.ID); !errors.Is(err, ErrSelfRequest) {
		t.Errorf("self request: expected ErrSelfRequest, got %v", err)
	}
	if _, err := svc.SendFriendRequest(ctx, alice.ID, 999); !errors.Is(err, ErrRecipientNotFound) {
		t.Errorf("unknown recipient: expected ErrRecipientNotFound, got %v", err)
	}
	if _, err := svc.SendFriendRequest(ctx, 0, alice.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous caller: expected ErrUnauthenticated, got %v", err)
	}
}

func TestAcceptFriendRequest(t *testing.T) {
	svc, producer, deps := newFriendServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")

	edge, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("sending request: %v", err)
	}

	if err := svc.AcceptFriendRequest(ctx, bob.ID, edge.ID); err != nil {
		t.Fatalf("accepting request: %v", err)
	}

	// Both cached friend lists updated.
	var aliceReloaded, bobReloaded models.User
	if err := deps.db.First(&aliceReloaded, alice.ID).Error; err != nil {
		t.Fatalf("reloading alice: %v", err)
	}
	if err := deps.db.First(&bobReloaded, bob.ID).Error; err != nil {
		t.Fatalf("reloading bob: %v", err)
	}
	if !aliceReloaded.HasFriend(bob.ID) || !bobReloaded.HasFriend(alice.ID) {
		t.Errorf("expected both friend caches updated: alice=%v bob=%v", aliceReloaded.FriendIDs, bobReloaded.FriendIDs)
	}

	// Chat channel created up front.
	if _, err := deps.chatRepo.GetChannelByKey(ctx, models.ChannelKey(alice.ID, bob.ID)); err != nil {
		t.Errorf("expected chat channel to exist after accept: %v", err)
	}

	// Requester notified.
	events := producer.eventsOfType(t, cctypes.FriendAcceptedEvent)
	if len(events) != 1 || events[0].RecipientID != alice.ID {
		t.Errorf("expected one friend.accepted event for alice, got %+v", events)
	}

	ok, err := svc.AreFriends(ctx, alice.ID, bob.ID)
	if err != nil || !ok {
		t.Errorf("expected users to be friends, got %v %v", ok, err)
	}
}

func TestAcceptFriendRequestGuards(t *testing.T) {
	svc, _, deps := newFriendServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")
	carol := mustCreateUser(t, deps.db, "Carol", "carol@iitrpr.ac.in")

	edge, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("sending request: %v", err)
	}

	if err := svc.AcceptFriendRequest(ctx, carol.ID, edge.ID); !errors.Is(err, ErrNotRecipient) {
		t.Errorf("wrong recipient: expected ErrNotRecipient, got %v", err)
	}
	if err := svc.AcceptFriendRequest(ctx, bob.ID, 999); !errors.Is(err, ErrRequestNotFound) {
		t.Errorf("unknown request: expected ErrRequestNotFound, got %v", err)
	}

	if err := svc.AcceptFriendRequest(ctx, bob.ID, edge.ID); err != nil {
		t.Fatalf("accepting request: %v", err)
	}
	if err := svc.AcceptFriendRequest(ctx, bob.ID, edge.ID); !errors.Is(err, ErrRequestNotPending) {
		t.Errorf("double accept: expected ErrRequestNotPending, got %v", err)
	}
}

func TestDeclineFriendRequestAllowsRetry(t *testing.T) {
	svc, _, deps := newFriendServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")

	edge, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("sending request: %v", err)
	}
	if err := svc.DeclineFriendRequest(ctx, bob.ID, edge.ID); err != nil {
		t.Fatalf("declining request: %v", err)
	}

	// Declined edges do not block a new request.
	if _, err := svc.SendFriendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Errorf("expected a new request after decline, got %v", err)
	}
}

func TestUnfriend(t *testing.T) {
	svc, producer, deps := newFriendServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")

	edge, _ := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	if err := svc.AcceptFriendRequest(ctx, bob.ID, edge.ID); err != nil {
		t.Fatalf("accepting: %v", err)
	}

	if err := svc.Unfriend(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("unfriending: %v", err)
	}

	ok, err := svc.AreFriends(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("checking friendship: %v", err)
	}
	if ok {
		t.Errorf("expected friendship removed")
	}

	var aliceReloaded, bobReloaded models.User
	deps.db.First(&aliceReloaded, alice.ID)
	deps.db.First(&bobReloaded, bob.ID)
	if aliceReloaded.HasFriend(bob.ID) || bobReloaded.HasFriend(alice.ID) {
		t.Errorf("expected both friend caches cleared")
	}

	// The pair's channel and its history go with the friendship.
	if _, err := deps.chatRepo.GetChannelByKey(ctx, models.ChannelKey(alice.ID, bob.ID)); err == nil {
		t.Errorf("expected chat channel deleted with the friendship")
	}

	events := producer.eventsOfType(t, cctypes.FriendRemovedEvent)
	if len(events) != 1 || events[0].RecipientID != bob.ID {
		t.Errorf("expected one friend.removed event for bob, got %+v", events)
	}

	if err := svc.Unfriend(ctx, alice.ID, bob.ID); !errors.Is(err, ErrNotFriends) {
		t.Errorf("second unfriend: expected ErrNotFriends, got %v", err)
	}
}

func TestListPendingAndFriends(t *testing.T) {
	svc, _, deps := newFriendServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")
	carol := mustCreateUser(t, deps.db, "Carol", "carol@iitrpr.ac.in")

	if _, err := svc.SendFriendRequest(ctx, alice.ID, carol.ID); err != nil {
		t.Fatalf("alice->carol: %v", err)
	}
	if _, err := svc.SendFriendRequest(ctx, bob.ID, carol.ID); err != nil {
		t.Fatalf("bob->carol: %v", err)
	}

	pending, err := svc.ListPendingRequests(ctx, carol.ID)
	if err != nil {
		t.Fatalf("listing pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending requests, got %d", len(pending))
	}
	for _, p := range pending {
		if p.Requester == nil || p.Requester.Name == "" {
			t.Errorf("expected requester info attached, got %+v", p.Requester)
		}
	}

	if err := svc.AcceptFriendRequest(ctx, carol.ID, pending[0].ID); err != nil {
		t.Fatalf("accepting: %v", err)
	}
	friends, err := svc.GetFriendsList(ctx, carol.ID)
	if err != nil {
		t.Fatalf("listing friends: %v", err)
	}
	if len(friends) != 1 {
		t.Errorf("expected 1 friend, got %d", len(friends))
	}
}

func TestRebuildFriendCache(t *testing.T) {
	svc, _, deps := newFriendServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")

	edge, _ := svc.SendFriendRequest(ctx, alice.ID, bob.ID)
	if err := svc.AcceptFriendRequest(ctx, bob.ID, edge.ID); err != nil {
		t.Fatalf("accepting: %v", err)
	}

	// Corrupt the cache, then rebuild from the edges.
	if err := deps.db.Model(&models.User{}).Where("id = ?", alice.ID).Update("friend_ids", "[]").Error; err != nil {
		t.Fatalf("corrupting cache: %v", err)
	}
	if err := svc.RebuildFriendCache(ctx, alice.ID); err != nil {
		t.Fatalf("rebuilding cache: %v", err)
	}
	var reloaded models.User
	deps.db.First(&reloaded, alice.ID)
	if !reloaded.HasFriend(bob.ID) {
		t.Errorf("expected rebuilt cache to contain bob, got %v", reloaded.FriendIDs)
	}
}
