package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-plant-market/internal/accounts"
	"github.com/ariefcatur/go-plant-market/internal/apperr"
)

type registerReq struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	IsSeller    bool   `json:"is_seller"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type profileReq struct {
	Email       *string `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Address     *string `json:"address"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	acc, err := a.Accounts.Register(r.Context(), accounts.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		IsSeller: req.IsSeller,
		Profile: accounts.Profile{
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			PhoneNumber: req.PhoneNumber,
			Address:     req.Address,
		},
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.startSession(w, r, acc.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountView(acc))
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	acc, err := a.Accounts.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.startSession(w, r, acc.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(acc))
}

// logout succeeds whether or not a session was open.
func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.End(r.Context(), sessionToken(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	a.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	acc, ok := currentAccount(r.Context())
	if !ok {
		writeError(w, r, apperr.New(apperr.Unauthenticated, "Authentication credentials were not provided."))
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(acc))
}

func (a *API) updateMe(w http.ResponseWriter, r *http.Request) {
	acc, ok := currentAccount(r.Context())
	if !ok {
		writeError(w, r, apperr.New(apperr.Unauthenticated, "Authentication credentials were not provided."))
		return
	}
	var req profileReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := a.Accounts.UpdateProfile(r.Context(), acc.ID, accounts.ProfilePatch{
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(updated))
}

func (a *API) deleteMe(w http.ResponseWriter, r *http.Request) {
	acc, ok := currentAccount(r.Context())
	if !ok {
		writeError(w, r, apperr.New(apperr.Unauthenticated, "Authentication credentials were not provided."))
		return
	}
	if err := a.Accounts.Deactivate(r.Context(), acc.ID); err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.Sessions.End(r.Context(), sessionToken(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	a.clearSession(w)
	w.WriteHeader(http.StatusNoContent)
}
