package services

import (
	"context"
	"errors"
	"testing"
)

func TestUpdateUserProfilePartialEdit(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewUserService(deps.userRepo, deps.friendshipRepo)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")

	bio := "Third year, robotics club"
	skills := []string{"go", "ml"}
	updated, err := svc.UpdateUserProfile(ctx, alice.ID, ProfileUpdate{
		Bio:         &bio,
		SkillsTeach: &skills,
	})
	if err != nil {
		t.Fatalf("updating profile: %v", err)
	}
	if updated.Bio != bio {
		t.Errorf("expected bio %q, got %q", bio, updated.Bio)
	}
	if len(updated.SkillsTeach) != 2 {
		t.Errorf("expected 2 teach skills, got %v", updated.SkillsTeach)
	}
	// Untouched fields survive a partial edit.
	if updated.Name != "Alice" || updated.Department != "CSE" || updated.Year != 2 {
		t.Errorf("partial edit clobbered other fields: %+v", updated)
	}
	if updated.PasswordHash != "" {
		t.Errorf("password hash leaked from profile update")
	}

	// Sending the empty value clears a field.
	empty := ""
	updated, err = svc.UpdateUserProfile(ctx, alice.ID, ProfileUpdate{Bio: &empty})
	if err != nil {
		t.Fatalf("clearing bio: %v", err)
	}
	if updated.Bio != "" {
		t.Errorf("expected cleared bio, got %q", updated.Bio)
	}

	if _, err := svc.UpdateUserProfile(ctx, 0, ProfileUpdate{}); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("anonymous edit: expected ErrUnauthenticated, got %v", err)
	}
}

func TestGetUserProfile(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewUserService(deps.userRepo, deps.friendshipRepo)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")

	profile, err := svc.GetUserProfile(ctx, alice.ID)
	if err != nil {
		t.Fatalf("loading profile: %v", err)
	}
	if profile.Name != "Alice" || profile.PasswordHash != "" {
		t.Errorf("unexpected profile %+v", profile)
	}

	if _, err := svc.GetUserProfile(ctx, 999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing user: expected ErrUserNotFound, got %v", err)
	}
}

func TestListUsersExcludesCaller(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewUserService(deps.userRepo, deps.friendshipRepo)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")
	mustCreateUser(t, deps.db, "Carol", "carol@iitrpr.ac.in")

	users, err := svc.ListUsers(ctx, alice.ID)
	if err != nil {
		t.Fatalf("listing users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	for _, u := range users {
		if u.ID == alice.ID {
			t.Errorf("directory listing includes the caller")
		}
		if u.PasswordHash != "" {
			t.Errorf("password hash leaked from directory listing")
		}
	}
}

func TestDiscoverUsersSkipsExistingEdges(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewUserService(deps.userRepo, deps.friendshipRepo)
	producer := &fakeProducer{}
	friendSvc := NewFriendService(deps.db, deps.userRepo, deps.friendshipRepo, producer, testKafkaConfig())
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice", "alice@iitrpr.ac.in")
	bob := mustCreateUser(t, deps.db, "Bob", "bob@iitrpr.ac.in")
	carol := mustCreateUser(t, deps.db, "Carol", "carol@iitrpr.ac.in")
	dave := mustCreateUser(t, deps.db, "Dave", "dave@iitrpr.ac.in")

	// Bob is a friend, carol has a pending request from alice.
	makeFriends(t, friendSvc, alice.ID, bob.ID)
	if _, err := friendSvc.SendFriendRequest(ctx, alice.ID, carol.ID); err != nil {
		t.Fatalf("sending request: %v", err)
	}

	candidates, err := svc.DiscoverUsers(ctx, alice.ID)
	if err != nil {
		t.Fatalf("discovering users: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != dave.ID {
		t.Errorf("expected only dave as a candidate, got %+v", candidates)
	}

	// A declined request no longer blocks discovery.
	edge, err := friendSvc.SendFriendRequest(ctx, dave.ID, alice.ID)
	if err != nil {
		t.Fatalf("dave request: %v", err)
	}
	if err := friendSvc.DeclineFriendRequest(ctx, alice.ID, edge.ID); err != nil {
		t.Fatalf("declining: %v", err)
	}
	candidates, err = svc.DiscoverUsers(ctx, alice.ID)
	if err != nil {
		t.Fatalf("re-discovering users: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != dave.ID {
		t.Errorf("expected dave back after decline, got %+v", candidates)
	}
}

func TestSearchUsersMatchesNameAndDepartment(t *testing.T) {
	deps := newTestDeps(t)
	svc := NewUserService(deps.userRepo, deps.friendshipRepo)
	ctx := context.Background()

	alice := mustCreateUser(t, deps.db, "Alice Kumar", "alice@iitrpr.ac.in")
	mustCreateUser(t, deps.db, "Bob Kumar", "bob@iitrpr.ac.in")
	mustCreateUser(t, deps.db, "Carol Singh", "carol@iitrpr.ac.in")

	// Name match, caller excluded even when they match too.
	results, err := svc.SearchUsers(ctx, "kumar", alice.ID)
	if err != nil {
		t.Fatalf("searching: %v", err)
	}
	if len(results) != 1 || results[0].Name != "Bob Kumar" {
		t.Errorf("expected only bob for %q, got %+v", "kumar", results)
	}

	// Department match.
	results, err = svc.SearchUsers(ctx, "cse", alice.ID)
	if err != nil {
		t.Fatalf("searching by department: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 department matches, got %d", len(results))
	}
}
