package httpapi

import (
	"net/http"
	"strconv"

	userdomain "genesis-iam/backend/internal/user/domain"
)

func pagination(r *http.Request) (limit, offset int32) {
	limit, offset = 100, 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n > 0 {
			limit = int32(n)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil && n >= 0 {
			offset = int32(n)
		}
	}
	return limit, offset
}

func (a *API) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	users, err := a.users.ListUsers(r.Context(), limit, offset)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (a *API) handleAdminGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	ident, err := a.auth.NativeIdentity(r.Context(), user.ID)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user, ident))
}

type adminUpdateUserRequest struct {
	Role   *string `json:"role"`
	Status *string `json:"status"`
}

func (a *API) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	var req adminUpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var upd userdomain.AdminUpdate
	if req.Role != nil {
		role := userdomain.Role(*req.Role)
		upd.Role = &role
	}
	if req.Status != nil {
		status := userdomain.Status(*req.Status)
		upd.Status = &status
	}
	user, err := a.users.UpdateUser(r.Context(), actor.ID, r.PathValue("id"), upd)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user, nil))
}

func (a *API) handleAdminListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	sessions, err := a.sessions.ListSessions(r.Context(), limit, offset)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, newSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (a *API) handleAdminRevokeSession(w http.ResponseWriter, r *http.Request) {
	actor, _ := UserFromContext(r.Context())
	if err := a.sessions.Revoke(r.Context(), r.PathValue("id"), actor.ID); err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAdminListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	entries, err := a.users.ListAuditLogs(r.Context(), limit, offset)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	out := make([]auditLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newAuditLogResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": out})
}
