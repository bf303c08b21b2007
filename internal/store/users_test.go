package store

import (
	"context"
	"errors"
	"testing"

	"github.com/zanvidmar/zahtevek/internal/db"
	"github.com/zanvidmar/zahtevek/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "bojan", "hash", model.RoleFaculty)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Username != "bojan" {
		t.Errorf("expected username 'bojan', got %q", user.Username)
	}
	if user.Role != model.RoleFaculty {
		t.Errorf("expected role faculty, got %q", user.Role)
	}

	byName, err := GetUserByUsername(ctx, database, "bojan")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if byName == nil || byName.ID != user.ID {
		t.Error("expected to find user by username")
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// Free-form role strings must be refused at the boundary.
	if _, err := CreateUser(ctx, database, "someone", "hash", "Admin"); err == nil {
		t.Error("expected error for mis-cased role")
	}
	if _, err := CreateUser(ctx, database, "someone", "hash", "janitor"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestDuplicateUsernameRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "bojan", "hash", model.RoleStaff); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := CreateUser(ctx, database, "bojan", "hash", model.RoleStaff); err == nil {
		t.Error("expected error for duplicate active username")
	}
}

func TestSoftDeleteFreesUsername(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "bojan", "hash", model.RoleStaff)
	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	users, _ := ListUsers(ctx, database)
	if len(users) != 0 {
		t.Errorf("expected 0 users after soft delete, got %d", len(users))
	}

	// Username is reusable once the old account is gone.
	if _, err := CreateUser(ctx, database, "bojan", "hash", model.RoleStaff); err != nil {
		t.Errorf("expected soft-deleted username to be reusable: %v", err)
	}
}

func TestUpdateUserRole(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "bojan", "hash", model.RoleStaff)

	if err := UpdateUserRole(ctx, database, user.ID, model.RoleDirector); err != nil {
		t.Fatalf("UpdateUserRole: %v", err)
	}
	got, _ := GetUser(ctx, database, user.ID)
	if got.Role != model.RoleDirector {
		t.Errorf("expected role director, got %q", got.Role)
	}

	if err := UpdateUserRole(ctx, database, user.ID, "superuser"); err == nil {
		t.Error("expected error for unknown role")
	}
	if err := UpdateUserRole(ctx, database, 999, model.RoleStaff); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
