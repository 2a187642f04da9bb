package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nerrad567/sip-mqtt/internal/audit"
	"github.com/nerrad567/sip-mqtt/internal/auth"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleLogin checks the administrator credentials and returns a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.cfg.Auth.Username)) == 1
	passErr := auth.CheckPassword(s.cfg.Auth.Password, req.Password)
	if !userOK || passErr != nil {
		if passErr != nil && !errors.Is(passErr, auth.ErrInvalidCredentials) {
			s.logger.Error("configured API password is unusable", "error", passErr)
		}
		s.logger.Warn("API login failed", "username", req.Username, "remote", r.RemoteAddr)
		s.recordAudit(r, audit.Entry{
			Action:  audit.ActionLoginFailed,
			Subject: req.Username,
			Details: map[string]any{"remote": r.RemoteAddr},
		})
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ttl := time.Duration(s.cfg.Auth.AccessTokenTTL) * time.Minute
	token, expires, err := auth.IssueToken(req.Username, s.cfg.Auth.JWTSecret, ttl)
	if err != nil {
		s.logger.Error("failed to issue API token", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	s.recordAudit(r, audit.Entry{
		Action:  audit.ActionLogin,
		Subject: req.Username,
		Details: map[string]any{"remote": r.RemoteAddr},
	})

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expires).Round(time.Second).Seconds()),
	})
}
