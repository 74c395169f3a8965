package auth

import (
	"net/http"
	"slices"

	"weatherapi-server/internal/apperr"
	"weatherapi-server/internal/metrics"
	"weatherapi-server/internal/utils"
)

// Operation names a route-level action checked against the role policy.
type Operation string

const (
	OpCreateAccount      Operation = "account.create"
	OpDeleteAccount      Operation = "account.delete"
	OpDeleteStudents     Operation = "account.deleteStudents"
	OpChangeRoles        Operation = "account.changeRoles"
	OpListAdmins         Operation = "account.listAdmins"
	OpCreateStation      Operation = "station.create"
	OpAppendReadings     Operation = "station.appendReadings"
	OpDeleteReadings     Operation = "station.deleteReadings"
	OpPatchPrecipitation Operation = "station.patchPrecipitation"
	OpMaxPrecipitation   Operation = "station.maxPrecipitation"
	OpReadingAt          Operation = "station.readingAt"
	OpMaxTemperature     Operation = "station.maxTemperature"
)

var anyRole = []Role{RoleAdmin, RoleTeacher, RoleStudent}

var policy = map[Operation][]Role{
	OpCreateAccount:      {RoleAdmin},
	OpDeleteAccount:      {RoleAdmin},
	OpDeleteStudents:     {RoleAdmin},
	OpChangeRoles:        {RoleAdmin},
	OpListAdmins:         {RoleAdmin},
	OpCreateStation:      {RoleAdmin},
	OpAppendReadings:     {RoleAdmin},
	OpDeleteReadings:     {RoleAdmin},
	OpPatchPrecipitation: {RoleAdmin},
	OpMaxPrecipitation:   anyRole,
	OpReadingAt:          anyRole,
	OpMaxTemperature:     anyRole,
}

// Allowed reports whether role may perform op. Unknown operations are denied.
func Allowed(op Operation, role Role) bool {
	return slices.Contains(policy[op], role)
}

// Require wraps next so it only runs for identities permitted to perform op.
func Require(op Operation, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			metrics.RecordAuthRejection("missing_identity")
			utils.WriteAppError(w, r, apperr.New(apperr.KindUnauthenticated, "Access token required"))
			return
		}
		if !Allowed(op, id.Role) {
			metrics.RecordAuthRejection("role_denied")
			utils.WriteAppError(w, r, apperr.New(apperr.KindAuthorizationDenied, "You are not authorised to access this content"))
			return
		}
		next(w, r)
	}
}
