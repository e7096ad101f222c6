package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JustinTDCT/mediaserver/internal/httputil"
	"github.com/JustinTDCT/mediaserver/internal/store"
)

// Handler exposes register/login/verify, grounded on the teacher's
// internal/auth/handlers.go chi sub-router shape.
type Handler struct {
	store  *store.Store
	issuer *Issuer
}

func NewHandler(st *store.Store, issuer *Issuer) *Handler {
	return &Handler{store: st, issuer: issuer}
}

func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Get("/verify", h.verify)
	return r
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "malformed request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "username and password required")
		return
	}
	if err := ValidatePassword(req.Password, 8, false); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", err.Error())
		return
	}

	count, err := h.store.CountUsers()
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Internal", "failed to hash password")
		return
	}

	// The first registered user becomes admin, matching the teacher's
	// registration flow.
	user, err := h.store.CreateUser(req.Username, hash, count == 0)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	token, err := h.issuer.Issue(user.ID, user.Username)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Internal", "failed to issue token")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, map[string]interface{}{"user": user, "token": token})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "InvalidInput", "malformed request body")
		return
	}

	user, err := h.store.GetUserByUsername(req.Username)
	if err != nil || !CheckPassword(user.PasswordHash, req.Password) {
		// Never reveal which of username/password was wrong, per spec.md §7.
		httputil.WriteError(w, http.StatusUnauthorized, "Unauthorized", "invalid username or password")
		return
	}

	token, err := h.issuer.Issue(user.ID, user.Username)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "Internal", "failed to issue token")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"user": user, "token": token})
}

func (h *Handler) verify(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"valid": false})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"valid": true, "user": user})
}
