package httpapi

import (
	"net/http"

	profiledomain "genesis-iam/backend/internal/profile/domain"
)

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	ident, err := a.auth.NativeIdentity(r.Context(), user.ID)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user, ident))
}

type updateMeRequest struct {
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

func (a *API) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ident, err := a.auth.UpdateContact(r.Context(), user.ID, req.Username, req.Email)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user, ident))
}

func (a *API) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	prof, err := a.profiles.Get(r.Context(), user.ID)
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(prof))
}

type updateProfileRequest struct {
	GivenName  *string `json:"given_name"`
	FamilyName *string `json:"family_name"`
	NickName   *string `json:"nick_name"`
	PictureURL *string `json:"picture_url"`
	Locale     *string `json:"locale"`
}

func (a *API) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prof, err := a.profiles.Update(r.Context(), user.ID, profiledomain.Update{
		GivenName:  req.GivenName,
		FamilyName: req.FamilyName,
		NickName:   req.NickName,
		PictureURL: req.PictureURL,
		Locale:     req.Locale,
	})
	if err != nil {
		a.handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(prof))
}
