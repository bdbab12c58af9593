package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
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

// TokenHandler exposes the token lifecycle endpoints.
type TokenHandler struct {
	Svc          *ledger.Service
	Tokens       *repository.TokenRepo
	Participants *repository.ParticipantRepo
}

func NewTokenHandler(svc *ledger.Service, t *repository.TokenRepo, p *repository.ParticipantRepo) *TokenHandler {
	return &TokenHandler{Svc: svc, Tokens: t, Participants: p}
}

// ----- DTOs -----

type mintReq struct {
	BatchID      uint64          `json:"batch_id"`
	Weight       decimal.Decimal `json:"weight"`
	OwnerID      uint64          `json:"owner_id"`
	ConfirmHuman bool            `json:"confirm_human"`
}

type splitReq struct {
	ChildWeights []decimal.Decimal `json:"child_weights"`
	WastageLogID *uint64           `json:"wastage_log_id"`
}

type mergeReq struct {
	TokenIDs     []uint64 `json:"token_ids"`
	WastageLogID *uint64  `json:"wastage_log_id"`
}

type transferReq struct {
	ToParticipantID uint64 `json:"to_participant_id"`
	Notes           string `json:"notes"`
}

func tokenView(t *model.Token) echo.Map {
	return echo.Map{
		"id":               t.ID,
		"token_code":       t.Code,
		"batch_id":         t.BatchID,
		"weight":           t.Weight,
		"purity":           t.Purity,
		"status":           t.Status,
		"current_owner_id": t.CurrentOwnerID,
		"minted_by_id":     t.MintedByID,
		"parent_token_id":  t.ParentTokenID,
		"created_at":       t.CreatedAt,
	}
}

func tokenViews(ts []*model.Token) []echo.Map {
	out := make([]echo.Map, 0, len(ts))
	for _, t := range ts {
		out = append(out, tokenView(t))
	}
	return out
}

func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}

// Mint creates a token against a batch.
func (h *TokenHandler) Mint(c echo.Context) error {
	var req mintReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	token, err := h.Svc.MintToken(c.Request().Context(), ledger.MintRequest{
		ActorID:      middleware.ParticipantID(c),
		BatchID:      req.BatchID,
		Weight:       req.Weight,
		OwnerID:      req.OwnerID,
		ConfirmHuman: req.ConfirmHuman,
		Origin:       c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, tokenView(token))
}

// Split divides a token into children.
func (h *TokenHandler) Split(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	var req splitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	children, err := h.Svc.SplitToken(c.Request().Context(), ledger.SplitRequest{
		ActorID:      middleware.ParticipantID(c),
		TokenID:      id,
		ChildWeights: req.ChildWeights,
		WastageLogID: req.WastageLogID,
		Origin:       c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"children": tokenViews(children)})
}

// Merge combines tokens into one.
func (h *TokenHandler) Merge(c echo.Context) error {
	var req mergeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	merged, err := h.Svc.MergeTokens(c.Request().Context(), ledger.MergeRequest{
		ActorID:      middleware.ParticipantID(c),
		TokenIDs:     req.TokenIDs,
		WastageLogID: req.WastageLogID,
		Origin:       c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, tokenView(merged))
}

// Transfer hands custody to another participant and publishes a
// token.transferred event. Publish failures are ignored: the transfer
// has already committed.
func (h *TokenHandler) Transfer(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	var req transferReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	actorID := middleware.ParticipantID(c)
	token, err := h.Svc.TransferToken(c.Request().Context(), ledger.TransferRequest{
		ActorID:         actorID,
		TokenID:         id,
		ToParticipantID: req.ToParticipantID,
		Notes:           req.Notes,
		Origin:          c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}

	go h.publishTransferred(token, actorID, req.ToParticipantID)
	return c.JSON(http.StatusOK, tokenView(token))
}

func (h *TokenHandler) publishTransferred(t *model.Token, fromID, toID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ev := queue.TokenTransferredEvent{
		TokenID:       t.ID,
		TokenCode:     t.Code,
		Weight:        t.Weight.String(),
		FromID:        fromID,
		ToID:          toID,
		TransferredAt: time.Now().UTC().Format(time.RFC3339),
	}
	if from, err := h.Participants.GetByID(ctx, fromID); err == nil {
		ev.FromName = from.Name
	}
	if to, err := h.Participants.GetByID(ctx, toID); err == nil {
		ev.ToName = to.Name
	}
	_ = queue_publisher.PublishTokenTransferred(ctx, ev)
}

// List returns the caller's tokens, or every token for callers holding
// view_all and passing ?all=true. An optional ?status= filters by
// lifecycle state.
func (h *TokenHandler) List(c echo.Context) error {
	actorID := middleware.ParticipantID(c)
	status := c.QueryParam("status")
	if status != "" {
		switch status {
		case model.TokenActive, model.TokenConsumed, model.TokenMerged, model.TokenConverted:
		default:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status filter"})
		}
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if c.QueryParam("all") == "true" {
		allowed, err := h.Svc.Authorize(ctx, actorID, ledger.PermViewAll)
		if err != nil {
			return fail(c, err)
		}
		if !allowed {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
		tokens, err := h.Tokens.ListAll(ctx, status)
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, echo.Map{"tokens": tokenViews(tokens)})
	}

	tokens, err := h.Tokens.ListByOwner(ctx, actorID, status)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"tokens": tokenViews(tokens)})
}

// Get returns one token with its custody chain. Owners see their own
// tokens; anyone with view_all sees all.
func (h *TokenHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	token, err := h.Tokens.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "token not found"})
		}
		return fail(c, err)
	}
	actorID := middleware.ParticipantID(c)
	if token.CurrentOwnerID != actorID {
		allowed, err := h.Svc.Authorize(ctx, actorID, ledger.PermViewAll)
		if err != nil {
			return fail(c, err)
		}
		if !allowed {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}
	transfers, err := h.Tokens.TransfersByToken(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	history := make([]echo.Map, 0, len(transfers))
	for _, t := range transfers {
		history = append(history, echo.Map{
			"from_participant_id": t.FromParticipantID,
			"to_participant_id":   t.ToParticipantID,
			"notes":               t.Notes,
			"created_at":          t.CreatedAt,
		})
	}
	view := tokenView(token)
	view["transfers"] = history
	return c.JSON(http.StatusOK, view)
}

// Sources returns only the aggregated origin-batch shares of a token.
// Lighter than Lineage when the caller does not need the tree.
func (h *TokenHandler) Sources(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	sources, err := h.Svc.Lineage().SourceContributions(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"sources": sources})
}

// Transfers returns the custody chain of a token, oldest first.
func (h *TokenHandler) Transfers(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Tokens.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "token not found"})
		}
		return fail(c, err)
	}
	transfers, err := h.Tokens.TransfersByToken(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, echo.Map{
			"from_participant_id": t.FromParticipantID,
			"to_participant_id":   t.ToParticipantID,
			"notes":               t.Notes,
			"created_at":          t.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"transfers": out})
}

// Lineage returns a token's full ancestry tree, origin-batch shares and
// traversal statistics.
func (h *TokenHandler) Lineage(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid token id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tree, err := h.Svc.Lineage().BuildTree(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	sources, err := h.Svc.Lineage().SourceContributions(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"tree":    tree,
		"sources": sources,
		"stats":   ledger.Stats(tree),
	})
}
