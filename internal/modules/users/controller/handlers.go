package controller

import (
	"net/http"
	"strconv"
	"strings"

	"weatherapi-server/internal/apperr"
	"weatherapi-server/internal/db"
	"weatherapi-server/internal/modules/users/types"
	"weatherapi-server/internal/utils"
)

func (c *accountsControllerImpl) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	resp, err := c.service.Login(r.Context(), req)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func (c *accountsControllerImpl) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req types.CreateAccountRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	account, err := c.service.Create(r.Context(), req)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteMessage(w, "User %s added successfully", account.Username)
}

func (c *accountsControllerImpl) handleDelete(w http.ResponseWriter, r *http.Request) {
	account, err := c.service.DeleteByID(r.Context(), r.PathValue("id"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteMessage(w, "User %s deleted successfully", account.Username)
}

func (c *accountsControllerImpl) handleDeleteStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tr, err := parseRange(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	n, err := c.service.DeleteStudents(r.Context(), tr)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteMessage(w, "%d student accounts deleted successfully", n)
}

func (c *accountsControllerImpl) handleChangeRoles(w http.ResponseWriter, r *http.Request) {
	var req types.ChangeRolesRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	tr, err := parseRange(req.StartDate, req.EndDate)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	n, role, err := c.service.ChangeRoles(r.Context(), tr, req.Role)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteMessage(w, "%d accounts changed to the %s role successfully", n, role)
}

func (c *accountsControllerImpl) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	admins, err := c.service.ListAdmins(r.Context(), limit)
	if err != nil {
		utils.WriteAppError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, admins)
}

func parseRange(rawStart, rawEnd string) (db.TimeRange, error) {
	start, err := utils.ParseDateParam("startDate", rawStart)
	if err != nil {
		return db.TimeRange{}, err
	}
	end, err := utils.ParseDateParam("endDate", rawEnd)
	if err != nil {
		return db.TimeRange{}, err
	}
	return db.TimeRange{Start: start, End: end}, nil
}

// parseLimit returns 0 for an absent limit.
func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidInput("Limit must be an integer")
	}
	return n, nil
}
