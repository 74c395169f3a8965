//go:build e2e

package repository

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"weatherapi-server/internal/auth"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/db/dbtest"
	"weatherapi-server/internal/modules/users/types"
)

func TestMongoRepository(t *testing.T) {
	uri := dbtest.StartMongo(t)
	newRepo := func(t *testing.T) AccountRepository {
		return NewMongoRepository(dbtest.NewMongoDatabase(t, uri))
	}
	ctx := context.Background()
	unknownID := primitive.NewObjectID().Hex()

	t.Run("insert and find", func(t *testing.T) {
		repo := newRepo(t)
		inserted := insertAccount(t, repo, "alice", auth.RoleAdmin, base)
		if inserted.ID == "" {
			t.Fatal("Insert did not assign an id")
		}

		got, err := repo.FindByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("FindByUsername: %v", err)
		}
		if got.ID != inserted.ID || got.Role != auth.RoleAdmin || got.PasswordHash != "hash-alice" {
			t.Errorf("account = %+v", got)
		}
		if !got.CreatedAt.Equal(base) {
			t.Errorf("createdAt = %v; want %v", got.CreatedAt, base)
		}

		if _, err := repo.FindByUsername(ctx, "nobody"); !errors.Is(err, db.ErrNotFound) {
			t.Errorf("FindByUsername(nobody) err = %v; want ErrNotFound", err)
		}
	})

	t.Run("duplicate username", func(t *testing.T) {
		repo := newRepo(t)
		insertAccount(t, repo, "bob", auth.RoleStudent, base)
		_, err := repo.Insert(ctx, types.Account{
			Username:     "bob",
			PasswordHash: "other",
			Role:         auth.RoleAdmin,
			CreatedAt:    base,
			UpdatedAt:    base,
			LastSession:  base,
		})
		if !errors.Is(err, db.ErrDuplicateKey) {
			t.Errorf("err = %v; want ErrDuplicateKey", err)
		}
	})

	t.Run("update last session", func(t *testing.T) {
		repo := newRepo(t)
		a := insertAccount(t, repo, "carol", auth.RoleTeacher, base)
		later := base.Add(48 * time.Hour)
		if err := repo.UpdateLastSession(ctx, a.ID, later); err != nil {
			t.Fatalf("UpdateLastSession: %v", err)
		}
		got, err := repo.FindByUsername(ctx, "carol")
		if err != nil {
			t.Fatalf("FindByUsername: %v", err)
		}
		if !got.LastSession.Equal(later) {
			t.Errorf("lastSession = %v; want %v", got.LastSession, later)
		}

		if err := repo.UpdateLastSession(ctx, unknownID, later); !errors.Is(err, db.ErrNotFound) {
			t.Errorf("unknown id err = %v; want ErrNotFound", err)
		}
		if err := repo.UpdateLastSession(ctx, "not-an-id", later); !errors.Is(err, db.ErrInvalidID) {
			t.Errorf("malformed id err = %v; want ErrInvalidID", err)
		}
	})

	t.Run("delete by id", func(t *testing.T) {
		repo := newRepo(t)
		a := insertAccount(t, repo, "dave", auth.RoleStudent, base)

		if _, err := repo.DeleteByID(ctx, "xyz"); !errors.Is(err, db.ErrInvalidID) {
			t.Errorf("malformed id err = %v; want ErrInvalidID", err)
		}
		if _, err := repo.DeleteByID(ctx, unknownID); !errors.Is(err, db.ErrNotFound) {
			t.Errorf("unknown id err = %v; want ErrNotFound", err)
		}

		deleted, err := repo.DeleteByID(ctx, a.ID)
		if err != nil {
			t.Fatalf("DeleteByID: %v", err)
		}
		if deleted.Username != "dave" || deleted.ID != a.ID {
			t.Errorf("deleted = %+v", deleted)
		}
		if _, err := repo.FindByUsername(ctx, "dave"); !errors.Is(err, db.ErrNotFound) {
			t.Errorf("after delete err = %v; want ErrNotFound", err)
		}
	})

	t.Run("student ids by last session are half open", func(t *testing.T) {
		repo := newRepo(t)
		start := base
		end := base.Add(24 * time.Hour)
		atStart := insertAccount(t, repo, "s-start", auth.RoleStudent, start)
		inside := insertAccount(t, repo, "s-inside", auth.RoleStudent, start.Add(time.Hour))
		insertAccount(t, repo, "s-end", auth.RoleStudent, end)
		insertAccount(t, repo, "s-before", auth.RoleStudent, start.Add(-time.Second))
		insertAccount(t, repo, "t-inside", auth.RoleTeacher, start.Add(time.Hour))

		ids, err := repo.FindStudentIDsByLastSession(ctx, db.TimeRange{Start: start, End: end})
		if err != nil {
			t.Fatalf("FindStudentIDsByLastSession: %v", err)
		}
		assertIDs(t, ids, atStart.ID, inside.ID)

		n, err := repo.DeleteByIDs(ctx, ids)
		if err != nil {
			t.Fatalf("DeleteByIDs: %v", err)
		}
		if n != 2 {
			t.Errorf("deleted = %d; want 2", n)
		}
		if _, err := repo.FindByUsername(ctx, "s-end"); err != nil {
			t.Errorf("s-end should survive: %v", err)
		}
	})

	t.Run("ids by created at are half open", func(t *testing.T) {
		repo := newRepo(t)
		start := base
		end := base.Add(time.Hour)
		a := insertAccount(t, repo, "a", auth.RoleAdmin, start)
		b := insertAccount(t, repo, "b", auth.RoleStudent, end.Add(-time.Second))
		insertAccount(t, repo, "c", auth.RoleTeacher, end)

		ids, err := repo.FindIDsByCreatedAt(ctx, db.TimeRange{Start: start, End: end})
		if err != nil {
			t.Fatalf("FindIDsByCreatedAt: %v", err)
		}
		assertIDs(t, ids, a.ID, b.ID)

		none, err := repo.FindIDsByCreatedAt(ctx, db.TimeRange{Start: end.Add(time.Hour), End: end.Add(2 * time.Hour)})
		if err != nil || len(none) != 0 {
			t.Errorf("empty window = %v, %v", none, err)
		}
	})

	t.Run("role change counts only changed accounts", func(t *testing.T) {
		repo := newRepo(t)
		a := insertAccount(t, repo, "a", auth.RoleStudent, base)
		b := insertAccount(t, repo, "b", auth.RoleTeacher, base.Add(time.Minute))

		n, err := repo.UpdateRoleByIDs(ctx, []string{a.ID, b.ID}, auth.RoleTeacher, base.Add(time.Hour))
		if err != nil {
			t.Fatalf("UpdateRoleByIDs: %v", err)
		}
		if n != 1 {
			t.Errorf("first change = %d; want 1", n)
		}

		n, err = repo.UpdateRoleByIDs(ctx, []string{a.ID, b.ID}, auth.RoleTeacher, base.Add(2*time.Hour))
		if err != nil {
			t.Fatalf("UpdateRoleByIDs: %v", err)
		}
		if n != 0 {
			t.Errorf("repeated change = %d; want 0", n)
		}

		got, err := repo.FindByUsername(ctx, "a")
		if err != nil {
			t.Fatalf("FindByUsername: %v", err)
		}
		if got.Role != auth.RoleTeacher || !got.UpdatedAt.Equal(base.Add(time.Hour)) {
			t.Errorf("account = %+v", got)
		}
	})

	t.Run("list by role in creation order", func(t *testing.T) {
		repo := newRepo(t)
		insertAccount(t, repo, "second", auth.RoleAdmin, base.Add(time.Minute))
		insertAccount(t, repo, "first", auth.RoleAdmin, base)
		insertAccount(t, repo, "student", auth.RoleStudent, base)

		all, err := repo.ListByRole(ctx, auth.RoleAdmin, 0)
		if err != nil {
			t.Fatalf("ListByRole: %v", err)
		}
		if len(all) != 2 || all[0].Username != "first" || all[1].Username != "second" {
			t.Errorf("admins = %+v", all)
		}

		limited, err := repo.ListByRole(ctx, auth.RoleAdmin, 1)
		if err != nil {
			t.Fatalf("ListByRole: %v", err)
		}
		if len(limited) != 1 || limited[0].Username != "first" {
			t.Errorf("limited = %+v", limited)
		}

		none, err := repo.ListByRole(ctx, auth.RoleTeacher, 0)
		if err != nil || len(none) != 0 {
			t.Errorf("ListByRole(teacher) = %v, %v", none, err)
		}
	})
}

func assertIDs(t *testing.T, got []string, want ...string) {
	t.Helper()
	got = append([]string(nil), got...)
	want = append([]string(nil), want...)
	sort.Strings(got)
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("ids = %v; want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("ids = %v; want %v", got, want)
		}
	}
}
