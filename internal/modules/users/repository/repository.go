package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"weatherapi-server/internal/auth"
	"weatherapi-server/internal/config"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/users/types"
)

// AccountRepository persists accounts. Errors wrap db.ErrNotFound,
// db.ErrDuplicateKey or db.ErrInvalidID where they apply.
type AccountRepository interface {
	Insert(ctx context.Context, account types.Account) (types.Account, error)
	FindByUsername(ctx context.Context, username string) (types.Account, error)
	UpdateLastSession(ctx context.Context, id string, at time.Time) error
	// DeleteByID removes the account and returns it as it was stored.
	DeleteByID(ctx context.Context, id string) (types.Account, error)
	FindStudentIDsByLastSession(ctx context.Context, r db.TimeRange) ([]string, error)
	FindIDsByCreatedAt(ctx context.Context, r db.TimeRange) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
	// UpdateRoleByIDs returns the number of accounts whose role changed.
	UpdateRoleByIDs(ctx context.Context, ids []string, role auth.Role, at time.Time) (int64, error)
	// ListByRole returns accounts in creation order. limit <= 0 means no cap.
	ListByRole(ctx context.Context, role auth.Role, limit int) ([]types.Account, error)
}

// NewRepository picks the implementation matching the open store.
func NewRepository(store *db.Store) (AccountRepository, error) {
	switch store.Driver {
	case config.DriverSQLite:
		return NewSQLiteRepository(store.SQL), nil
	case config.DriverMongoDB:
		return NewMongoRepository(store.Mongo), nil
	default:
		return nil, fmt.Errorf("accounts: unsupported driver %q", store.Driver)
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
