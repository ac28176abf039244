package services

import (
	"context"
	"errors"
	"testing"

	"campusconnect/internal/cctypes"
	"campusconnect/internal/models"
)

func newFeedServiceForTest(t *testing.T) (FeedService, FriendService, *fakeProducer, *testDeps) {
	t.Helper()
	deps := newTestDeps(t)
	producer := &fakeProducer{}
	feedSvc := NewFeedService(deps.db, deps.postRepo, deps.userRepo, deps.friendshipRepo, producer, testKafkaConfig())
	friendSvc := NewFriendService(deps.db, deps.userRepo, deps.friendshipRepo, producer, testKafkaConfig())
	return feedSvc, friendSvc, producer, deps
}

func makeFriends(t *testing.T, svc FriendService, fromID, toID uint) {
	t.Helper()
	ctx := context.Background()
	edge, err := svc.SendFriendRequest(ctx, fromID, toID)
	if err != nil {
		t.Fatalf("sending request: %v", err)
	}
	if err := svc.AcceptFriendRequest(ctx, toID, edge.ID); err != nil {
		t.Fatalf("accepting request: %v", err)
	}
}

func TestCreatePostSnapshotsAuthor(t *testing.T) {
	feedSvc, _, producer, deps := newFeedServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")

	post, err := feedSvc.CreatePost(ctx, alice.ID, "hello campus", "", "Public")
	if err != nil {
		t.Fatalf("creating post: %v", err)
	}
	if post.AuthorName != "Alice" || post.AuthorDepartment != "CSE" || post.AuthorYear != 2 {
		t.Errorf("expected author snapshot, got %+v", post)
	}
	if post.Visibility != models.PublicVisibility {
		t.Errorf("expected public visibility, got %s", post.Visibility)
	}

	events := producer.eventsOfType(t, cctypes.NewPostEvent)
	if len(events) != 1 || events[0].PostID != post.ID {
		t.Errorf("expected one post.created event, got %+v", events)
	}

	if _, err := feedSvc.CreatePost(ctx, alice.ID, "   ", "", "public"); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("blank content: expected ErrEmptyContent, got %v", err)
	}
}

func TestFriendsPostEventCarriesAudience(t *testing.T) {
	feedSvc, friendSvc, producer, deps := newFeedServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")
	makeFriends(t, friendSvc, alice.ID, bob.ID)

	post, err := feedSvc.CreatePost(ctx, alice.ID, "friends only", "", "Friends Only")
	if err != nil {
		t.Fatalf("creating post: %v", err)
	}
	if post.Visibility != models.FriendsVisibility {
		t.Fatalf("expected friends visibility, got %s", post.Visibility)
	}

	events := producer.eventsOfType(t, cctypes.NewPostEvent)
	if len(events) != 1 {
		t.Fatalf("expected one post.created event, got %d", len(events))
	}
	e := events[0]
	if !e.VisibleTo(bob.ID) {
		t.Errorf("friend should pass the event visibility filter")
	}
	if e.VisibleTo(999) {
		t.Errorf("stranger should not pass the event visibility filter")
	}
}

func TestGetFeedVisibility(t *testing.T) {
	feedSvc, friendSvc, _, deps := newFeedServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")
	carol := mustCreateUser(t, deps.db, "Carol", "carol@iitrpr.ac.in")
	makeFriends(t, friendSvc, alice.ID, bob.ID)

	if _, err := feedSvc.CreatePost(ctx, alice.ID, "public post", "", "public"); err != nil {
		t.Fatalf("public post: %v", err)
	}
	if _, err := feedSvc.CreatePost(ctx, alice.ID, "friends post", "", "friends"); err != nil {
		t.Fatalf("friends post: %v", err)
	}

	bobFeed, err := feedSvc.GetFeed(ctx, bob.ID, 0, 0)
	if err != nil {
		t.Fatalf("bob feed: %v", err)
	}
	if len(bobFeed) != 2 {
		t.Errorf("friend should see both posts, got %d", len(bobFeed))
	}

	carolFeed, err := feedSvc.GetFeed(ctx, carol.ID, 0, 0)
	if err != nil {
		t.Fatalf("carol feed: %v", err)
	}
	if len(carolFeed) != 1 || carolFeed[0].Content != "public post" {
		t.Errorf("stranger should see only the public post, got %+v", carolFeed)
	}

	aliceFeed, err := feedSvc.GetFeed(ctx, alice.ID, 0, 0)
	if err != nil {
		t.Fatalf("alice feed: %v", err)
	}
	if len(aliceFeed) != 2 {
		t.Errorf("author should see both posts, got %d", len(aliceFeed))
	}

	// Paging applies before visibility filtering.
	paged, err := feedSvc.GetFeed(ctx, alice.ID, 1, 1)
	if err != nil {
		t.Fatalf("paged feed: %v", err)
	}
	if len(paged) != 1 || paged[0].Content != "public post" {
		t.Errorf("expected the older post on page 2, got %+v", paged)
	}

	authorPosts, err := feedSvc.GetPostsByAuthor(ctx, bob.ID, alice.ID, 0, 0)
	if err != nil {
		t.Fatalf("author posts: %v", err)
	}
	if len(authorPosts) != 2 {
		t.Errorf("friend should see both author posts, got %d", len(authorPosts))
	}
}

func TestToggleLikeIsIdempotentPerDirection(t *testing.T) {
	feedSvc, _, producer, deps := newFeedServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")

	post, err := feedSvc.CreatePost(ctx, alice.ID, "like me", "", "public")
	if err != nil {
		t.Fatalf("creating post: %v", err)
	}

	liked, err := feedSvc.ToggleLike(ctx, bob.ID, post.ID)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !liked.LikedBy(bob.ID) || len(liked.LikeIDs) != 1 {
		t.Errorf("expected bob in like set, got %v", liked.LikeIDs)
	}

	unliked, err := feedSvc.ToggleLike(ctx, bob.ID, post.ID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if unliked.LikedBy(bob.ID) || len(unliked.LikeIDs) != 0 {
		t.Errorf("expected empty like set after second toggle, got %v", unliked.LikeIDs)
	}

	// Only the like notifies the author, not the unlike.
	events := producer.eventsOfType(t, cctypes.PostLikedEvent)
	if len(events) != 1 || events[0].RecipientID != alice.ID {
		t.Errorf("expected one post.liked event for alice, got %+v", events)
	}

	// Liking one's own post is fine but does not notify.
	if _, err := feedSvc.ToggleLike(ctx, alice.ID, post.ID); err != nil {
		t.Fatalf("self like: %v", err)
	}
	if len(producer.eventsOfType(t, cctypes.PostLikedEvent)) != 1 {
		t.Errorf("self like should not publish a notification")
	}
}

func TestAddCommentBumpsCounter(t *testing.T) {
	feedSvc, _, producer, deps := newFeedServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")

	post, err := feedSvc.CreatePost(ctx, alice.ID, "comment here", "", "public")
	if err != nil {
		t.Fatalf("creating post: %v", err)
	}

	c1, err := feedSvc.AddComment(ctx, bob.ID, post.ID, "first")
	if err != nil {
		t.Fatalf("first comment: %v", err)
	}
	if c1.AuthorName != "Bob" {
		t.Errorf("expected commenter snapshot, got %q", c1.AuthorName)
	}
	if _, err := feedSvc.AddComment(ctx, alice.ID, post.ID, "second"); err != nil {
		t.Fatalf("second comment: %v", err)
	}

	reloaded, err := feedSvc.GetPost(ctx, alice.ID, post.ID)
	if err != nil {
		t.Fatalf("reloading post: %v", err)
	}
	if reloaded.CommentCount != 2 {
		t.Errorf("expected comment count 2, got %d", reloaded.CommentCount)
	}

	comments, err := feedSvc.GetComments(ctx, alice.ID, post.ID)
	if err != nil {
		t.Fatalf("loading comments: %v", err)
	}
	if len(comments) != 2 || comments[0].Text != "first" {
		t.Errorf("expected comments oldest first, got %+v", comments)
	}

	// Bob's comment notified alice; alice's own comment did not.
	events := producer.eventsOfType(t, cctypes.PostCommentedEvent)
	if len(events) != 1 || events[0].RecipientID != alice.ID {
		t.Errorf("expected one post.commented event for alice, got %+v", events)
	}

	if _, err := feedSvc.AddComment(ctx, bob.ID, post.ID, "  "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("blank comment: expected ErrEmptyText, got %v", err)
	}
}

func TestGetPostHidesFriendsScopedFromStrangers(t *testing.T) {
	feedSvc, _, _, deps := newFeedServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	carol := mustCreateUser(t, deps.db, "Carol", "carol@iitrpr.ac.in")

	post, err := feedSvc.CreatePost(ctx, alice.ID, "secret-ish", "", "friends")
	if err != nil {
		t.Fatalf("creating post: %v", err)
	}

	if _, err := feedSvc.GetPost(ctx, carol.ID, post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("stranger read: expected ErrPostNotFound, got %v", err)
	}
	if _, err := feedSvc.GetComments(ctx, carol.ID, post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("stranger comments read: expected ErrPostNotFound, got %v", err)
	}
}

func TestDeletePostAuthorOnly(t *testing.T) {
	feedSvc, _, _, deps := newFeedServiceForTest(t)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")

	post, err := feedSvc.CreatePost(ctx, alice.ID, "temporary", "", "public")
	if err != nil {
		t.Fatalf("creating post: %v", err)
	}

	if err := feedSvc.DeletePost(ctx, bob.ID, post.ID); !errors.Is(err, ErrNotAuthor) {
		t.Errorf("non-author delete: expected ErrNotAuthor, got %v", err)
	}
	if err := feedSvc.DeletePost(ctx, alice.ID, post.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
	if _, err := feedSvc.GetPost(ctx, alice.ID, post.ID); !errors.Is(err, ErrPostNotFound) {
		t.Errorf("deleted post: expected ErrPostNotFound, got %v", err)
	}
}
