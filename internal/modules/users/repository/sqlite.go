package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"weatherapi-server/internal/auth"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/users/types"
)

//go:embed sql/insert-account.sql
var insertAccountSQL string

//go:embed sql/get-account-by-username.sql
var getAccountByUsernameSQL string

//go:embed sql/get-account-by-id.sql
var getAccountByIDSQL string

//go:embed sql/update-last-session.sql
var updateLastSessionSQL string

//go:embed sql/delete-account.sql
var deleteAccountSQL string

//go:embed sql/get-student-ids-by-last-session.sql
var getStudentIDsByLastSessionSQL string

//go:embed sql/get-ids-by-created-at.sql
var getIDsByCreatedAtSQL string

//go:embed sql/delete-accounts-by-ids.sql
var deleteAccountsByIDsSQL string

//go:embed sql/update-role-by-ids.sql
var updateRoleByIDsSQL string

//go:embed sql/get-accounts-by-role.sql
var getAccountsByRoleSQL string

type sqliteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(conn *sql.DB) AccountRepository {
	return &sqliteRepository{db: conn}
}

func (r *sqliteRepository) Insert(ctx context.Context, account types.Account) (types.Account, error) {
	account.ID = db.NewID()
	_, err := r.db.ExecContext(ctx, insertAccountSQL,
		account.ID,
		account.Username,
		account.PasswordHash,
		string(account.Role),
		db.FormatTime(account.CreatedAt),
		db.FormatTime(account.UpdatedAt),
		db.FormatTime(account.LastSession),
	)
	if err != nil {
		return types.Account{}, fmt.Errorf("insert account: %w", db.SQLiteErr(err))
	}
	return account, nil
}

func (r *sqliteRepository) FindByUsername(ctx context.Context, username string) (types.Account, error) {
	account, err := scanAccount(r.db.QueryRowContext(ctx, getAccountByUsernameSQL, username))
	if err != nil {
		return types.Account{}, fmt.Errorf("find account %q: %w", username, db.SQLiteErr(err))
	}
	return account, nil
}

func (r *sqliteRepository) UpdateLastSession(ctx context.Context, id string, at time.Time) error {
	ts := db.FormatTime(at)
	res, err := r.db.ExecContext(ctx, updateLastSessionSQL, ts, ts, id)
	if err != nil {
		return fmt.Errorf("update last session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update last session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update last session %s: %w", id, db.ErrNotFound)
	}
	return nil
}

func (r *sqliteRepository) DeleteByID(ctx context.Context, id string) (types.Account, error) {
	id, err := db.CheckID(id)
	if err != nil {
		return types.Account{}, err
	}
	account, err := scanAccount(r.db.QueryRowContext(ctx, getAccountByIDSQL, id))
	if err != nil {
		return types.Account{}, fmt.Errorf("find account %s: %w", id, db.SQLiteErr(err))
	}
	res, err := r.db.ExecContext(ctx, deleteAccountSQL, id)
	if err != nil {
		return types.Account{}, fmt.Errorf("delete account %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Removed concurrently between the lookup and the delete.
		return types.Account{}, fmt.Errorf("delete account %s: %w", id, db.ErrNotFound)
	}
	return account, nil
}

func (r *sqliteRepository) FindStudentIDsByLastSession(ctx context.Context, tr db.TimeRange) ([]string, error) {
	return r.queryIDs(ctx, getStudentIDsByLastSessionSQL, db.FormatTime(tr.Start), db.FormatTime(tr.End))
}

func (r *sqliteRepository) FindIDsByCreatedAt(ctx context.Context, tr db.TimeRange) ([]string, error) {
	return r.queryIDs(ctx, getIDsByCreatedAtSQL, db.FormatTime(tr.Start), db.FormatTime(tr.End))
}

func (r *sqliteRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(deleteAccountsByIDsSQL, placeholders(len(ids)))
	res, err := r.db.ExecContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return 0, fmt.Errorf("delete accounts: %w", err)
	}
	return res.RowsAffected()
}

func (r *sqliteRepository) UpdateRoleByIDs(ctx context.Context, ids []string, role auth.Role, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := fmt.Sprintf(updateRoleByIDsSQL, placeholders(len(ids)))
	args := append([]any{string(role), db.FormatTime(at), string(role)}, stringArgs(ids)...)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update roles: %w", err)
	}
	return res.RowsAffected()
}

func (r *sqliteRepository) ListByRole(ctx context.Context, role auth.Role, limit int) ([]types.Account, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, getAccountsByRoleSQL, string(role), limit)
	if err != nil {
		return nil, fmt.Errorf("list %s accounts: %w", role, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close account rows", "error", err)
		}
	}()
	var out []types.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

func (r *sqliteRepository) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select account ids: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close id rows", "error", err)
		}
	}()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (types.Account, error) {
	var a types.Account
	var role, created, updated, lastSession string
	if err := row.Scan(&a.ID, &a.Username, &a.PasswordHash, &role, &created, &updated, &lastSession); err != nil {
		return types.Account{}, err
	}
	a.Role = auth.Role(role)
	var err error
	if a.CreatedAt, err = db.ParseTime(created); err != nil {
		return types.Account{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	if a.UpdatedAt, err = db.ParseTime(updated); err != nil {
		return types.Account{}, fmt.Errorf("parse updated_at %q: %w", updated, err)
	}
	if a.LastSession, err = db.ParseTime(lastSession); err != nil {
		return types.Account{}, fmt.Errorf("parse last_session %q: %w", lastSession, err)
	}
	return a, nil
}

func stringArgs(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
