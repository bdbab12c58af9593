package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/auriclabs/goldledger/internal/config"
	"github.com/auriclabs/goldledger/internal/middleware"
	"github.com/auriclabs/goldledger/internal/repository"
	"github.com/auriclabs/goldledger/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints. Accounts are
// provisioned through the admin portal; there is no open registration.
type AuthHandler struct {
	Cfg          config.Config
	Participants *repository.ParticipantRepo
}

func NewAuthHandler(cfg config.Config, p *repository.ParticipantRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Participants: p}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type participantPart struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	Participant participantPart `json:"participant"`
	Access      tokenPart       `json:"access"`
	Refresh     tokenPart       `json:"refresh"`
}

// Login verifies credentials and returns a fresh token pair. Inactive
// accounts are rejected before any token is issued.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Participants.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(p.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !p.Active {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account deactivated"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, p.ID, p.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Participants.StoreRefresh(ctx, p.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		Participant: participantPart{ID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role},
		Access:      tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh:     tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	})
}

// Refresh validates a refresh token by hash, revokes it and issues a new
// pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	stored, err := h.Participants.GetRefresh(ctx, hash)
	if err != nil || stored.RevokedAt != nil || time.Now().After(stored.ExpiresAt) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	_ = h.Participants.RevokeRefresh(ctx, hash)

	p, err := h.Participants.GetByID(ctx, stored.ParticipantID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load participant failed"})
	}
	if !p.Active {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account deactivated"})
	}

	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, p.ID, p.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue access failed"})
	}
	newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue refresh failed"})
	}
	if err := h.Participants.StoreRefresh(ctx, p.ID, utils.HashRefreshRaw(newRef.Raw), newRef.Exp); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save refresh failed"})
	}

	return c.JSON(http.StatusOK, authResp{
		Participant: participantPart{ID: p.ID, Name: p.Name, Email: p.Email, Role: p.Role},
		Access:      tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh:     tokenPart{Token: newRef.Raw, Expires: newRef.Exp},
	})
}

// Logout revokes the presented refresh token. Idempotent: revoking an
// unknown or already-revoked token still returns 204.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	_ = h.Participants.RevokeRefresh(ctx, utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken)))
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated participant's profile including the
// permission overrides, so portals can render the right controls.
func (h *AuthHandler) Me(c echo.Context) error {
	id := middleware.ParticipantID(c)
	if id == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	p, err := h.Participants.GetByID(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load participant failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":        p.ID,
		"name":      p.Name,
		"email":     p.Email,
		"role":      p.Role,
		"overrides": p.Overrides,
		"active":    p.Active,
	})
}
