package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/auriclabs/goldledger/internal/ledger"
	"github.com/auriclabs/goldledger/internal/middleware"
	"github.com/auriclabs/goldledger/internal/model"
	"github.com/auriclabs/goldledger/internal/queue"
	"github.com/auriclabs/goldledger/internal/repository"
	queue_publisher "github.com/auriclabs/goldledger/internal/service"
)

// WastageHandler exposes the wastage log and threshold endpoints.
type WastageHandler struct {
	Svc          *ledger.Service
	Wastage      *repository.WastageRepo
	Tokens       *repository.TokenRepo
	Participants *repository.ParticipantRepo
}

func NewWastageHandler(svc *ledger.Service, w *repository.WastageRepo, t *repository.TokenRepo, p *repository.ParticipantRepo) *WastageHandler {
	return &WastageHandler{Svc: svc, Wastage: w, Tokens: t, Participants: p}
}

// ----- DTOs -----

type logWastageReq struct {
	TokenID        *uint64         `json:"token_id"`
	OperationType  string          `json:"operation_type"`
	ExpectedWeight decimal.Decimal `json:"expected_weight"`
	ActualWeight   decimal.Decimal `json:"actual_weight"`
}

type decideReq struct {
	Approved bool   `json:"approved"`
	Notes    string `json:"notes"`
}

type thresholdReq struct {
	AutoApproveMax    decimal.Decimal `json:"auto_approve_max"`
	ReviewRequiredMax decimal.Decimal `json:"review_required_max"`
}

func wastageView(w *model.WastageLog) echo.Map {
	return echo.Map{
		"id":                 w.ID,
		"token_id":           w.TokenID,
		"operation_type":     w.OperationType,
		"expected_weight":    w.ExpectedWeight,
		"actual_weight":      w.ActualWeight,
		"wastage_weight":     w.WastageWeight,
		"wastage_percentage": w.WastagePercentage,
		"craftsman_id":       w.CraftsmanID,
		"approval_status":    w.ApprovalStatus,
		"approved_by_id":     w.ApprovedByID,
		"approval_notes":     w.ApprovalNotes,
		"approved_at":        w.ApprovedAt,
		"created_at":         w.CreatedAt,
	}
}

// Log submits a wastage record. Logs that need review are announced on
// the wastage.flagged queue after the response is sent.
func (h *WastageHandler) Log(c echo.Context) error {
	var req logWastageReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	w, err := h.Svc.LogWastage(c.Request().Context(), ledger.LogWastageRequest{
		ActorID:        middleware.ParticipantID(c),
		TokenID:        req.TokenID,
		OperationType:  req.OperationType,
		ExpectedWeight: req.ExpectedWeight,
		ActualWeight:   req.ActualWeight,
		Origin:         c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	if !w.Decided() {
		go h.publishFlagged(w)
	}
	return c.JSON(http.StatusCreated, wastageView(w))
}

func (h *WastageHandler) publishFlagged(w *model.WastageLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev := queue.WastageFlaggedEvent{
		LogID:             w.ID,
		OperationType:     w.OperationType,
		WastagePercentage: w.WastagePercentage.String(),
		ApprovalStatus:    w.ApprovalStatus,
		CraftsmanID:       w.CraftsmanID,
		LoggedAt:          time.Now().UTC().Format(time.RFC3339),
	}
	if p, err := h.Participants.GetByID(ctx, w.CraftsmanID); err == nil {
		ev.CraftsmanName = p.Name
	}
	if w.TokenID != nil {
		if t, err := h.Tokens.GetByID(ctx, *w.TokenID); err == nil {
			ev.TokenCode = t.Code
		}
	}
	_ = queue_publisher.PublishWastageFlagged(ctx, ev)
}

// List returns all wastage logs. Reviewer and auditor roles hold
// view_all; other callers only see their own submissions.
func (h *WastageHandler) List(c echo.Context) error {
	actorID := middleware.ParticipantID(c)
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	logs, err := h.Wastage.List(ctx)
	if err != nil {
		return fail(c, err)
	}
	allowed, err := h.Svc.Authorize(ctx, actorID, ledger.PermViewAll)
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(logs))
	for _, w := range logs {
		if !allowed && w.CraftsmanID != actorID {
			continue
		}
		out = append(out, wastageView(w))
	}
	return c.JSON(http.StatusOK, echo.Map{"wastage_logs": out})
}

// Decide approves or rejects a pending log.
func (h *WastageHandler) Decide(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid log id"})
	}
	var req decideReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	w, err := h.Svc.DecideWastage(c.Request().Context(), ledger.DecideWastageRequest{
		ActorID:  middleware.ParticipantID(c),
		LogID:    id,
		Approved: req.Approved,
		Notes:    req.Notes,
		Origin:   c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, wastageView(w))
}

// Thresholds lists the approval policies per operation type.
func (h *WastageHandler) Thresholds(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	ts, err := h.Wastage.ListThresholds(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(ts))
	for _, t := range ts {
		out = append(out, echo.Map{
			"operation_type":      t.OperationType,
			"auto_approve_max":    t.AutoApproveMax,
			"review_required_max": t.ReviewRequiredMax,
			"updated_by_id":       t.UpdatedByID,
			"updated_at":          t.UpdatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"thresholds": out})
}

// UpdateThreshold replaces the policy for one operation type.
func (h *WastageHandler) UpdateThreshold(c echo.Context) error {
	opType := c.Param("operation_type")
	var req thresholdReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	t, err := h.Svc.UpdateThreshold(c.Request().Context(), ledger.UpdateThresholdRequest{
		ActorID:           middleware.ParticipantID(c),
		OperationType:     opType,
		AutoApproveMax:    req.AutoApproveMax,
		ReviewRequiredMax: req.ReviewRequiredMax,
		Origin:            c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"operation_type":      t.OperationType,
		"auto_approve_max":    t.AutoApproveMax,
		"review_required_max": t.ReviewRequiredMax,
		"updated_at":          t.UpdatedAt,
	})
}
