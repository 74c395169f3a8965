package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"weatherapi-server/internal/apperr"
	"weatherapi-server/internal/auth"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/users/types"
)

// inRange reports whether t falls in the half-open range [r.Start, r.End).
func inRange(r db.TimeRange, t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// mockRepo keeps accounts in memory and mirrors the store semantics the
// service depends on.
type mockRepo struct {
	accounts []types.Account
	nextID   int
	err      error

	deleteByIDsCalls int
	updateRoleCalls  int
}

func (m *mockRepo) Insert(_ context.Context, a types.Account) (types.Account, error) {
	if m.err != nil {
		return types.Account{}, m.err
	}
	for _, existing := range m.accounts {
		if existing.Username == a.Username {
			return types.Account{}, fmt.Errorf("insert: %w", db.ErrDuplicateKey)
		}
	}
	m.nextID++
	a.ID = fmt.Sprintf("id-%d", m.nextID)
	m.accounts = append(m.accounts, a)
	return a, nil
}

func (m *mockRepo) FindByUsername(_ context.Context, username string) (types.Account, error) {
	if m.err != nil {
		return types.Account{}, m.err
	}
	for _, a := range m.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return types.Account{}, db.ErrNotFound
}

func (m *mockRepo) UpdateLastSession(_ context.Context, id string, at time.Time) error {
	for i := range m.accounts {
		if m.accounts[i].ID == id {
			m.accounts[i].LastSession = at
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *mockRepo) DeleteByID(_ context.Context, id string) (types.Account, error) {
	if id == "bad" {
		return types.Account{}, db.ErrInvalidID
	}
	for i, a := range m.accounts {
		if a.ID == id {
			m.accounts = append(m.accounts[:i], m.accounts[i+1:]...)
			return a, nil
		}
	}
	return types.Account{}, db.ErrNotFound
}

func (m *mockRepo) FindStudentIDsByLastSession(_ context.Context, r db.TimeRange) ([]string, error) {
	var ids []string
	for _, a := range m.accounts {
		if a.Role == auth.RoleStudent && inRange(r, a.LastSession) {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (m *mockRepo) FindIDsByCreatedAt(_ context.Context, r db.TimeRange) ([]string, error) {
	var ids []string
	for _, a := range m.accounts {
		if inRange(r, a.CreatedAt) {
			ids = append(ids, a.ID)
		}
	}
	return ids, nil
}

func (m *mockRepo) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	m.deleteByIDsCalls++
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}
	var kept []types.Account
	for _, a := range m.accounts {
		if !drop[a.ID] {
			kept = append(kept, a)
		}
	}
	n := int64(len(m.accounts) - len(kept))
	m.accounts = kept
	return n, nil
}

func (m *mockRepo) UpdateRoleByIDs(_ context.Context, ids []string, role auth.Role, at time.Time) (int64, error) {
	m.updateRoleCalls++
	var n int64
	for i := range m.accounts {
		for _, id := range ids {
			if m.accounts[i].ID == id && m.accounts[i].Role != role {
				m.accounts[i].Role = role
				m.accounts[i].UpdatedAt = at
				n++
			}
		}
	}
	return n, nil
}

func (m *mockRepo) ListByRole(_ context.Context, role auth.Role, limit int) ([]types.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []types.Account
	for _, a := range m.accounts {
		if a.Role == role {
			out = append(out, a)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var fixedNow = time.Date(2021, 6, 1, 10, 0, 0, 0, time.UTC)

func newTestService(repo *mockRepo) *Service {
	svc := NewService(repo,
		auth.NewTokenService("svc-secret", 5*time.Minute),
		auth.NewPasswordHasher(4),
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("kind = %s (err %v); want %s", got, err, kind)
	}
}

func TestCreate(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	t.Run("lowercases and stores hash", func(t *testing.T) {
		a, err := svc.Create(ctx, types.CreateAccountRequest{Username: "Alice", Password: "pw", Role: "admin"})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if a.Username != "alice" || a.Role != auth.RoleAdmin {
			t.Errorf("account = %+v", a)
		}
		if a.PasswordHash == "" || a.PasswordHash == "pw" {
			t.Errorf("password not hashed: %q", a.PasswordHash)
		}
		if !a.CreatedAt.Equal(fixedNow) || !a.LastSession.Equal(fixedNow) || !a.UpdatedAt.Equal(fixedNow) {
			t.Errorf("timestamps = %v %v %v", a.CreatedAt, a.UpdatedAt, a.LastSession)
		}
	})

	t.Run("case variant is a conflict", func(t *testing.T) {
		_, err := svc.Create(ctx, types.CreateAccountRequest{Username: "ALICE", Password: "pw", Role: "student"})
		wantKind(t, err, apperr.KindConflict)
		var appErr *apperr.Error
		if errors.As(err, &appErr) && appErr.Message != "username 'alice' is already taken" {
			t.Errorf("message = %q", appErr.Message)
		}
	})

	invalid := []struct {
		name string
		req  types.CreateAccountRequest
	}{
		{"missing password", types.CreateAccountRequest{Username: "bob", Role: "student"}},
		{"missing username", types.CreateAccountRequest{Password: "pw", Role: "student"}},
		{"missing role", types.CreateAccountRequest{Username: "bob", Password: "pw"}},
		{"unknown role", types.CreateAccountRequest{Username: "bob", Password: "pw", Role: "janitor"}},
		{"password over 72 bytes", types.CreateAccountRequest{Username: "bob", Password: strings.Repeat("x", 73), Role: "admin"}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.req)
			wantKind(t, err, apperr.KindInvalidInput)
		})
	}
}

func TestLogin(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo)
	ctx := context.Background()
	if _, err := svc.Create(ctx, types.CreateAccountRequest{Username: "bob", Password: "hunter2", Role: "teacher"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	t.Run("success updates session and embeds role", func(t *testing.T) {
		later := fixedNow.Add(time.Hour)
		svc.now = func() time.Time { return later }
		t.Cleanup(func() { svc.now = func() time.Time { return fixedNow } })

		resp, err := svc.Login(ctx, types.LoginRequest{Username: "BOB", Password: "hunter2"})
		if err != nil {
			t.Fatalf("Login: %v", err)
		}
		if resp.Message != "bob successfully logged in" {
			t.Errorf("message = %q", resp.Message)
		}
		id, err := svc.tokens.Verify(resp.AccessToken)
		if err != nil {
			t.Fatalf("Verify: %v", err)
		}
		if id != (auth.Identity{Username: "bob", Role: auth.RoleTeacher}) {
			t.Errorf("identity = %+v", id)
		}
		if !repo.accounts[0].LastSession.Equal(later) {
			t.Errorf("lastSession = %v; want %v", repo.accounts[0].LastSession, later)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		resp, err := svc.Login(ctx, types.LoginRequest{Username: "bob", Password: "nope"})
		wantKind(t, err, apperr.KindInvalidCredentials)
		if resp.AccessToken != "" {
			t.Error("token issued on failure")
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Login(ctx, types.LoginRequest{Username: "ghost", Password: "x"})
		wantKind(t, err, apperr.KindNotFound)
	})

	t.Run("password over 72 bytes", func(t *testing.T) {
		_, err := svc.Login(ctx, types.LoginRequest{Username: "bob", Password: strings.Repeat("x", 73)})
		wantKind(t, err, apperr.KindInvalidInput)
	})

	t.Run("missing fields", func(t *testing.T) {
		_, err := svc.Login(ctx, types.LoginRequest{Username: "bob"})
		wantKind(t, err, apperr.KindInvalidInput)
	})

	t.Run("store failure", func(t *testing.T) {
		failing := newTestService(&mockRepo{err: errors.New("connection reset")})
		_, err := failing.Login(ctx, types.LoginRequest{Username: "bob", Password: "x"})
		wantKind(t, err, apperr.KindInternal)
	})
}

func TestDeleteByID(t *testing.T) {
	repo := &mockRepo{}
	svc := newTestService(repo)
	ctx := context.Background()
	a, err := svc.Create(ctx, types.CreateAccountRequest{Username: "carol", Password: "pw", Role: "student"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = svc.DeleteByID(ctx, "bad")
	wantKind(t, err, apperr.KindInvalidInput)

	_, err = svc.DeleteByID(ctx, "id-999")
	wantKind(t, err, apperr.KindNotFound)

	got, err := svc.DeleteByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}
	if got.Username != "carol" {
		t.Errorf("deleted = %q", got.Username)
	}
}

func TestDeleteStudents(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockRepo{accounts: []types.Account{
		{ID: "1", Username: "s1", Role: auth.RoleStudent, LastSession: start},
		{ID: "2", Username: "s2", Role: auth.RoleStudent, LastSession: end},
		{ID: "3", Username: "t1", Role: auth.RoleTeacher, LastSession: start},
	}}
	svc := newTestService(repo)
	ctx := context.Background()

	n, err := svc.DeleteStudents(ctx, db.TimeRange{Start: start, End: end})
	if err != nil {
		t.Fatalf("DeleteStudents: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d; want 1 (end boundary excluded)", n)
	}

	calls := repo.deleteByIDsCalls
	_, err = svc.DeleteStudents(ctx, db.TimeRange{Start: start, End: end})
	wantKind(t, err, apperr.KindNotFound)
	if repo.deleteByIDsCalls != calls {
		t.Error("empty selection must not reach the delete")
	}
}

func TestChangeRoles(t *testing.T) {
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC)
	repo := &mockRepo{accounts: []types.Account{
		{ID: "1", Username: "a", Role: auth.RoleStudent, CreatedAt: start},
		{ID: "2", Username: "b", Role: auth.RoleTeacher, CreatedAt: start.Add(time.Hour)},
		{ID: "3", Username: "c", Role: auth.RoleStudent, CreatedAt: end},
	}}
	svc := newTestService(repo)
	ctx := context.Background()
	r := db.TimeRange{Start: start, End: end}

	n, role, err := svc.ChangeRoles(ctx, r, "teacher")
	if err != nil {
		t.Fatalf("ChangeRoles: %v", err)
	}
	if n != 1 || role != auth.RoleTeacher {
		t.Errorf("ChangeRoles = %d, %s; want 1, teacher", n, role)
	}

	n, _, err = svc.ChangeRoles(ctx, r, "teacher")
	if err != nil {
		t.Fatalf("second ChangeRoles: %v", err)
	}
	if n != 0 {
		t.Errorf("second ChangeRoles = %d; want 0", n)
	}

	_, _, err = svc.ChangeRoles(ctx, r, "overlord")
	wantKind(t, err, apperr.KindInvalidInput)
	_, _, err = svc.ChangeRoles(ctx, r, "")
	wantKind(t, err, apperr.KindInvalidInput)

	calls := repo.updateRoleCalls
	_, _, err = svc.ChangeRoles(ctx, db.TimeRange{Start: end.Add(time.Hour), End: end.Add(2 * time.Hour)}, "admin")
	wantKind(t, err, apperr.KindNotFound)
	if repo.updateRoleCalls != calls {
		t.Error("empty selection must not reach the update")
	}
}

func TestListAdmins(t *testing.T) {
	repo := &mockRepo{accounts: []types.Account{
		{ID: "1", Username: "root", Role: auth.RoleAdmin},
		{ID: "2", Username: "ops", Role: auth.RoleAdmin},
	}}
	svc := newTestService(repo)
	ctx := context.Background()

	all, err := svc.ListAdmins(ctx, 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListAdmins(0) = %v, %v", all, err)
	}
	one, err := svc.ListAdmins(ctx, 1)
	if err != nil || len(one) != 1 {
		t.Fatalf("ListAdmins(1) = %v, %v", one, err)
	}
	_, err = svc.ListAdmins(ctx, -1)
	wantKind(t, err, apperr.KindInvalidInput)

	_, err = newTestService(&mockRepo{}).ListAdmins(ctx, 0)
	wantKind(t, err, apperr.KindNotFound)
}

func TestResolveIdentity(t *testing.T) {
	repo := &mockRepo{accounts: []types.Account{{ID: "1", Username: "dave", Role: auth.RoleStudent}}}
	svc := newTestService(repo)
	ctx := context.Background()

	id, err := svc.ResolveIdentity(ctx, "dave")
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if id.Role != auth.RoleStudent {
		t.Errorf("role = %s", id.Role)
	}

	_, err = svc.ResolveIdentity(ctx, "erin")
	wantKind(t, err, apperr.KindNotFound)

	boom := errors.New("boom")
	_, err = newTestService(&mockRepo{err: boom}).ResolveIdentity(ctx, "dave")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v; want wrapped store error", err)
	}
}
