package httpapi

import (
	"errors"
	"net/http"
	"time"

	"sentraumkm.org/internal/audit"
	"sentraumkm.org/internal/identity"
	"sentraumkm.org/internal/obs"
)

type loginRequest struct {
	Username  string `json:"username"`
	Secret    string `json:"secret"`
	Partition string `json:"partition,omitempty"`
}

type loginResponse struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	Principal identity.Principal `json:"principal"`
}

type registerRequest struct {
	Username  string `json:"username"`
	Secret    string `json:"secret"`
	Name      string `json:"name"`
	Partition string `json:"partition"`
}

type changeSecretRequest struct {
	OldSecret string `json:"old_secret"`
	NewSecret string `json:"new_secret"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	p, err := a.identity.Login(req.Username, req.Secret, req.Partition)
	if err != nil {
		obs.LoginAttempt("failure")
		switch {
		case errors.Is(err, identity.ErrPartitionRequired),
			errors.Is(err, identity.ErrUnknownPartition):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrInvalidCredentials):
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	token, expires, err := a.tokens.Issue(p)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	outcome := "success"
	if p.MustRotateSecret {
		outcome = "rotation_required"
	}
	obs.LoginAttempt(outcome)
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"principal_id": p.ID,
		"role":         string(p.Role),
		"partition":    p.Partition,
		"must_rotate":  p.MustRotateSecret,
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expires,
		Principal: p,
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Secret) < 6 {
		writeError(w, r, http.StatusBadRequest, "secret must be at least 6 characters")
		return
	}

	if err := a.identity.Register(req.Username, req.Secret, req.Name, req.Partition); err != nil {
		switch {
		case errors.Is(err, identity.ErrUsernameReserved),
			errors.Is(err, identity.ErrUsernameTaken):
			writeError(w, r, http.StatusConflict, err.Error())
		case errors.Is(err, identity.ErrInvalidCredentials):
			writeError(w, r, http.StatusBadRequest, "username and secret are required")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"username":  req.Username,
		"partition": req.Partition,
	})
	writeJSON(w, http.StatusCreated, map[string]any{"status": "registered"})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}

	if err := a.identity.Logout(); err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"principal_id": p.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleChangeSecret(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := principal(w, r)
	if !ok {
		return
	}

	// The rotation path mutates the device session, so the bearer must be
	// the principal that session belongs to.
	if cur, ok := a.identity.Current(); !ok || cur.ID != p.ID {
		writeError(w, r, http.StatusUnauthorized, "no active session for principal")
		return
	}

	var req changeSecretRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := a.identity.ChangeSecret(req.OldSecret, req.NewSecret)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrSecretTooShort),
			errors.Is(err, identity.ErrSecretUnchanged):
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, identity.ErrInvalidCredentials):
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, identity.ErrPrincipalNotFound):
			writeError(w, r, http.StatusUnauthorized, "no active session")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	token, expires, err := a.tokens.Issue(updated)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.secret_rotated", map[string]any{
		"principal_id": updated.ID,
		"role":         string(updated.Role),
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: expires,
		Principal: updated,
	})
}
