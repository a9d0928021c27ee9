package api

import (
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/itemsvc/internal/auth"
	"github.com/erazemk/itemsvc/internal/model"
	"github.com/erazemk/itemsvc/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	DB     *sqlx.DB
	Signer *auth.Signer
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles POST /api/v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		badRequest(w, "username and password required")
		return
	}

	user, err := store.GetUserByUsername(r.Context(), h.DB, req.Username)
	if err != nil {
		internalError(w, r, "failed to look up user", err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication failed", "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "username", req.Username, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication failed", "invalid credentials")
		return
	}

	token, err := h.Signer.Issue(user)
	if err != nil {
		internalError(w, r, "failed to issue token", err)
		return
	}

	slog.Info("user logged in", "user", user.Username, "role", user.Role)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, TokenType: "Bearer"})
}

// Logout handles POST /api/v1/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required", "not authenticated")
		return
	}

	if err := store.RevokeToken(r.Context(), h.DB, claims.ID, claims.ExpiresAt.Time); err != nil {
		internalError(w, r, "failed to revoke token", err)
		return
	}

	slog.Info("user logged out", "user", claims.Username)
	jsonResponse(w, http.StatusOK, messageBody{Message: "Logged out"})
}

// ChangePassword handles PUT /api/v1/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims == nil {
		jsonError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required", "not authenticated")
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		badRequest(w, "current and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusUnprocessableEntity, codeValidation, "Request validation failed",
			[]model.FieldError{{Field: "new_password", Message: err.Error()}})
		return
	}

	user, err := store.GetUser(r.Context(), h.DB, claims.UserID)
	if err != nil {
		internalError(w, r, "failed to load user", err)
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication required", "account no longer exists")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, http.StatusUnauthorized, codeUnauthorized, "Authentication failed", "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		internalError(w, r, "failed to hash password", err)
		return
	}
	if err := store.UpdateUserPassword(r.Context(), h.DB, user.ID, string(hash)); err != nil {
		internalError(w, r, "failed to update password", err)
		return
	}

	slog.Info("user changed own password", "user", user.Username)
	jsonResponse(w, http.StatusOK, messageBody{Message: "Password updated"})
}
