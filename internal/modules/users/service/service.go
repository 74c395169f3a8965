package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"weatherapi-server/internal/apperr"
	"weatherapi-server/internal/auth"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/metrics"
	"weatherapi-server/internal/modules/users/repository"
	"weatherapi-server/internal/modules/users/types"
)

type Service struct {
	repository repository.AccountRepository
	tokens     *auth.TokenService
	hasher     *auth.PasswordHasher
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(repo repository.AccountRepository, tokens *auth.TokenService, hasher *auth.PasswordHasher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repository: repo,
		tokens:     tokens,
		hasher:     hasher,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Login checks the password, records the session and issues a token carrying
// the stored role.
func (s *Service) Login(ctx context.Context, req types.LoginRequest) (types.LoginResponse, error) {
	if req.Username == "" || req.Password == "" {
		return types.LoginResponse{}, apperr.InvalidInput("Please provide both a username and password")
	}
	if len(req.Password) > auth.MaxPasswordBytes {
		return types.LoginResponse{}, errPasswordTooLong()
	}
	username := auth.NormalizeUsername(req.Username)

	account, err := s.repository.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			metrics.RecordLogin("unknown_user")
			return types.LoginResponse{}, apperr.NotFound("Account with username %s was not found", username)
		}
		return types.LoginResponse{}, apperr.Internal(err)
	}

	ok, err := s.hasher.Compare(account.PasswordHash, req.Password)
	if err != nil {
		return types.LoginResponse{}, apperr.Internal(err)
	}
	if !ok {
		metrics.RecordLogin("bad_password")
		return types.LoginResponse{}, apperr.New(apperr.KindInvalidCredentials, "Invalid account credentials")
	}

	if err := s.repository.UpdateLastSession(ctx, account.ID, s.now()); err != nil {
		return types.LoginResponse{}, apperr.Internal(err)
	}

	token, err := s.tokens.Issue(auth.Identity{Username: account.Username, Role: account.Role})
	if err != nil {
		return types.LoginResponse{}, apperr.Internal(err)
	}
	metrics.RecordLogin("success")
	s.logger.Info("login", "username", account.Username, "role", account.Role, "token_ttl", s.tokens.TTL())

	return types.LoginResponse{
		Message:     account.Username + " successfully logged in",
		AccessToken: token,
	}, nil
}

func (s *Service) Create(ctx context.Context, req types.CreateAccountRequest) (types.Account, error) {
	if req.Password == "" {
		return types.Account{}, apperr.InvalidInput("Password required!")
	}
	if len(req.Password) > auth.MaxPasswordBytes {
		return types.Account{}, errPasswordTooLong()
	}
	username := auth.NormalizeUsername(req.Username)
	if username == "" {
		return types.Account{}, apperr.InvalidInput("username is required")
	}
	role, err := parseRole(req.Role)
	if err != nil {
		return types.Account{}, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return types.Account{}, apperr.Internal(err)
	}

	now := s.now()
	account, err := s.repository.Insert(ctx, types.Account{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastSession:  now,
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicateKey) {
			return types.Account{}, apperr.Conflict("username '%s' is already taken", username)
		}
		return types.Account{}, apperr.Internal(err)
	}
	s.logger.Info("account created", "username", account.Username, "role", account.Role)
	return account, nil
}

func (s *Service) DeleteByID(ctx context.Context, id string) (types.Account, error) {
	account, err := s.repository.DeleteByID(ctx, id)
	switch {
	case err == nil:
		s.logger.Info("account deleted", "id", id, "username", account.Username)
		return account, nil
	case errors.Is(err, db.ErrInvalidID):
		return types.Account{}, apperr.InvalidInput("The user ID provided is not valid")
	case errors.Is(err, db.ErrNotFound):
		return types.Account{}, apperr.NotFound("User with ID: '%s' was not found", id)
	default:
		return types.Account{}, apperr.Internal(err)
	}
}

// DeleteStudents removes student accounts whose last session falls in r.
func (s *Service) DeleteStudents(ctx context.Context, r db.TimeRange) (int64, error) {
	ids, err := s.repository.FindStudentIDsByLastSession(ctx, r)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	if len(ids) == 0 {
		return 0, apperr.NotFound("No student accounts active in the provided date range")
	}
	n, err := s.repository.DeleteByIDs(ctx, ids)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	s.logger.Info("student accounts deleted", "count", n, "start", r.Start, "end", r.End)
	return n, nil
}

// ChangeRoles sets role on every account created in r and reports how many
// accounts actually changed.
func (s *Service) ChangeRoles(ctx context.Context, r db.TimeRange, rawRole string) (int64, auth.Role, error) {
	role, err := parseRole(rawRole)
	if err != nil {
		return 0, "", err
	}
	ids, err := s.repository.FindIDsByCreatedAt(ctx, r)
	if err != nil {
		return 0, "", apperr.Internal(err)
	}
	if len(ids) == 0 {
		return 0, "", apperr.NotFound("No accounts created in the provided date range")
	}
	n, err := s.repository.UpdateRoleByIDs(ctx, ids, role, s.now())
	if err != nil {
		return 0, "", apperr.Internal(err)
	}
	s.logger.Info("account roles changed", "role", role, "selected", len(ids), "changed", n)
	return n, role, nil
}

// ListAdmins returns admin accounts. limit <= 0 means no cap.
func (s *Service) ListAdmins(ctx context.Context, limit int) ([]types.Account, error) {
	if limit < 0 {
		return nil, apperr.InvalidInput("Limit must be a non-negative integer")
	}
	admins, err := s.repository.ListByRole(ctx, auth.RoleAdmin, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(admins) == 0 {
		return nil, apperr.NotFound("No admin accounts were found")
	}
	return admins, nil
}

// ResolveIdentity implements auth.IdentityResolver.
func (s *Service) ResolveIdentity(ctx context.Context, username string) (auth.Identity, error) {
	account, err := s.repository.FindByUsername(ctx, auth.NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return auth.Identity{}, apperr.NotFound("account %q not found", username)
		}
		return auth.Identity{}, err
	}
	return auth.Identity{Username: account.Username, Role: account.Role}, nil
}

func errPasswordTooLong() error {
	return apperr.InvalidInput("Password must be at most %d bytes", auth.MaxPasswordBytes)
}

func parseRole(raw string) (auth.Role, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", apperr.InvalidInput("Role is required")
	}
	role, ok := auth.ParseRole(raw)
	if !ok {
		return "", apperr.InvalidInput("Invalid Role! Role must be admin, teacher, or student")
	}
	return role, nil
}
