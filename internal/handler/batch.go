package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/auriclabs/goldledger/internal/ledger"
	"github.com/auriclabs/goldledger/internal/middleware"
	"github.com/auriclabs/goldledger/internal/model"
	"github.com/auriclabs/goldledger/internal/repository"
)

// BatchHandler exposes gold batch registration and custody endpoints.
type BatchHandler struct {
	Svc     *ledger.Service
	Batches *repository.BatchRepo
}

func NewBatchHandler(svc *ledger.Service, b *repository.BatchRepo) *BatchHandler {
	return &BatchHandler{Svc: svc, Batches: b}
}

// ----- DTOs -----

type createBatchReq struct {
	Weight decimal.Decimal `json:"weight"`
	Purity decimal.Decimal `json:"purity"`
	Source string          `json:"source"`
}

type transferBatchReq struct {
	ToParticipantID uint64 `json:"to_participant_id"`
}

func batchView(b *model.GoldBatch) echo.Map {
	return echo.Map{
		"id":               b.ID,
		"batch_code":       b.Code,
		"weight":           b.Weight,
		"purity":           b.Purity,
		"source":           b.Source,
		"refiner_id":       b.RefinerID,
		"current_owner_id": b.CurrentOwnerID,
		"created_at":       b.CreatedAt,
	}
}

// Create registers a new batch under the caller's custody.
func (h *BatchHandler) Create(c echo.Context) error {
	var req createBatchReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	batch, err := h.Svc.CreateBatch(c.Request().Context(), ledger.CreateBatchRequest{
		ActorID: middleware.ParticipantID(c),
		Weight:  req.Weight,
		Purity:  req.Purity,
		Source:  req.Source,
		Origin:  c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, batchView(batch))
}

// List returns all registered batches.
func (h *BatchHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	batches, err := h.Batches.List(ctx)
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(batches))
	for _, b := range batches {
		out = append(out, batchView(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"batches": out})
}

// Get returns one batch with its custody history.
func (h *BatchHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid batch id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	batch, err := h.Batches.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "batch not found"})
		}
		return fail(c, err)
	}
	history, err := h.Batches.History(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	events := make([]echo.Map, 0, len(history))
	for _, e := range history {
		events = append(events, echo.Map{
			"from_party": e.FromParty,
			"to_party":   e.ToParty,
			"action":     e.Action,
			"created_at": e.CreatedAt,
		})
	}
	view := batchView(batch)
	view["history"] = events
	return c.JSON(http.StatusOK, view)
}

// Transfer hands batch custody to another participant.
func (h *BatchHandler) Transfer(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid batch id"})
	}
	var req transferBatchReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	batch, err := h.Svc.TransferBatch(c.Request().Context(), ledger.TransferBatchRequest{
		ActorID:         middleware.ParticipantID(c),
		BatchID:         id,
		ToParticipantID: req.ToParticipantID,
		Origin:          c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, batchView(batch))
}
