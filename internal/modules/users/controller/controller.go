package controller

import (
	"context"
	"net/http"

	"weatherapi-server/internal/auth"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/users/types"
)

// AccountService is the part of the account service the handlers use.
type AccountService interface {
	Login(ctx context.Context, req types.LoginRequest) (types.LoginResponse, error)
	Create(ctx context.Context, req types.CreateAccountRequest) (types.Account, error)
	DeleteByID(ctx context.Context, id string) (types.Account, error)
	DeleteStudents(ctx context.Context, r db.TimeRange) (int64, error)
	ChangeRoles(ctx context.Context, r db.TimeRange, role string) (int64, auth.Role, error)
	ListAdmins(ctx context.Context, limit int) ([]types.Account, error)
}

type AccountsController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type accountsControllerImpl struct {
	service AccountService
}

func NewAccountsController(service AccountService) AccountsController {
	return &accountsControllerImpl{service: service}
}

func (c *accountsControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", c.handleLogin)

	mux.HandleFunc("POST /users", auth.Require(auth.OpCreateAccount, c.handleCreate))
	mux.HandleFunc("DELETE /users/delete/{id}", auth.Require(auth.OpDeleteAccount, c.handleDelete))
	mux.HandleFunc("DELETE /users/delete-students", auth.Require(auth.OpDeleteStudents, c.handleDeleteStudents))
	mux.HandleFunc("PUT /users/roles", auth.Require(auth.OpChangeRoles, c.handleChangeRoles))
	mux.HandleFunc("GET /users/admin", auth.Require(auth.OpListAdmins, c.handleListAdmins))
}
