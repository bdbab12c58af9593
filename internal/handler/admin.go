package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/auriclabs/goldledger/internal/config"
	"github.com/auriclabs/goldledger/internal/ledger"
	"github.com/auriclabs/goldledger/internal/middleware"
	"github.com/auriclabs/goldledger/internal/repository"
)

// AdminHandler exposes participant provisioning, permission overrides
// and the dashboard endpoints.
type AdminHandler struct {
	Cfg          config.Config
	Svc          *ledger.Service
	Participants *repository.ParticipantRepo
	Audit        *repository.AuditRepo
}

func NewAdminHandler(cfg config.Config, svc *ledger.Service, p *repository.ParticipantRepo, a *repository.AuditRepo) *AdminHandler {
	return &AdminHandler{Cfg: cfg, Svc: svc, Participants: p, Audit: a}
}

// ----- DTOs -----

type provisionReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type overridesReq struct {
	Overrides map[string]bool `json:"overrides"`
}

type activeReq struct {
	Active bool `json:"active"`
}

// CreateParticipant provisions an account with a fixed role.
func (h *AdminHandler) CreateParticipant(c echo.Context) error {
	var req provisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	p, err := h.Svc.ProvisionParticipant(c.Request().Context(), ledger.ProvisionRequest{
		ActorID:    middleware.ParticipantID(c),
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       req.Role,
		BcryptCost: h.Cfg.BcryptCost,
		Origin:     c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":    p.ID,
		"name":  p.Name,
		"email": p.Email,
		"role":  p.Role,
	})
}

// ListParticipants returns every account.
func (h *AdminHandler) ListParticipants(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	ps, err := h.Participants.List(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(ps))
	for _, p := range ps {
		out = append(out, echo.Map{
			"id":        p.ID,
			"name":      p.Name,
			"email":     p.Email,
			"role":      p.Role,
			"overrides": p.Overrides,
			"active":    p.Active,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"participants": out})
}

// SetOverrides replaces a participant's permission override map.
func (h *AdminHandler) SetOverrides(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid participant id"})
	}
	var req overridesReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	err := h.Svc.SetOverrides(c.Request().Context(), ledger.OverridesRequest{
		ActorID:       middleware.ParticipantID(c),
		ParticipantID: id,
		Overrides:     req.Overrides,
		Origin:        c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// SetActive enables or disables an account.
func (h *AdminHandler) SetActive(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid participant id"})
	}
	var req activeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Svc.SetParticipantActive(c.Request().Context(), middleware.ParticipantID(c), id, req.Active, c.RealIP()); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Stats returns ledger-wide counters for the dashboard.
func (h *AdminHandler) Stats(c echo.Context) error {
	stats, err := h.Svc.Stats(c.Request().Context(), middleware.ParticipantID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// AuditTail returns the most recent audit entries, newest first. The
// optional ?limit= caps the page size at 500.
func (h *AdminHandler) AuditTail(c echo.Context) error {
	limit := 100
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
		}
		if n > 500 {
			n = 500
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	entries, err := h.Audit.Tail(ctx, limit)
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, echo.Map{
			"id":              e.ID,
			"performed_by_id": e.PerformedByID,
			"action_type":     e.ActionType,
			"resource_type":   e.ResourceType,
			"resource_id":     e.ResourceID,
			"details":         e.Details,
			"origin":          e.Origin,
			"created_at":      e.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"audit_log": out})
}
