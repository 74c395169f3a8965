package users

import (
	"log/slog"
	"net/http"

	"weatherapi-server/internal/auth"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/users/controller"
	"weatherapi-server/internal/modules/users/repository"
	"weatherapi-server/internal/modules/users/service"
)

// RegisterFeature mounts the account routes and returns the service so the
// caller can hand it to the access gate as its identity resolver.
func RegisterFeature(mux *http.ServeMux, store *db.Store, tokens *auth.TokenService, hasher *auth.PasswordHasher, logger *slog.Logger) (*service.Service, error) {
	accountRepository, err := repository.NewRepository(store)
	if err != nil {
		return nil, err
	}
	accountService := service.NewService(accountRepository, tokens, hasher, logger.With("module", "users"))
	controller.NewAccountsController(accountService).RegisterRoutes(mux)
	return accountService, nil
}
