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

// ProductHandler exposes product assembly, custody and provenance
// endpoints, including the public QR verification route.
type ProductHandler struct {
	Svc      *ledger.Service
	Products *repository.ProductRepo
}

func NewProductHandler(svc *ledger.Service, p *repository.ProductRepo) *ProductHandler {
	return &ProductHandler{Svc: svc, Products: p}
}

// ----- DTOs -----

type compositionInput struct {
	TokenID    uint64          `json:"token_id"`
	WeightUsed decimal.Decimal `json:"weight_used"`
}

type createProductReq struct {
	Name          string             `json:"name"`
	Type          string             `json:"type"`
	GrossWeight   decimal.Decimal    `json:"gross_weight"`
	NetGoldWeight decimal.Decimal    `json:"net_gold_weight"`
	Purity        *decimal.Decimal   `json:"purity"`
	Composition   []compositionInput `json:"composition"`
	WastageLogID  *uint64            `json:"wastage_log_id"`
}

type transferProductReq struct {
	ToParticipantID uint64 `json:"to_participant_id"`
}

func productView(p *model.Product) echo.Map {
	return echo.Map{
		"id":              p.ID,
		"product_code":    p.Code,
		"name":            p.Name,
		"type":            p.Type,
		"gross_weight":    p.GrossWeight,
		"net_gold_weight": p.NetGoldWeight,
		"purity":          p.Purity,
		"craftsman_id":    p.CraftsmanID,
		"qr_ref":          p.QRRef,
		"created_at":      p.CreatedAt,
	}
}

// Create assembles a product from the caller's tokens.
func (h *ProductHandler) Create(c echo.Context) error {
	var req createProductReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	comp := make([]ledger.CompositionInput, 0, len(req.Composition))
	for _, ci := range req.Composition {
		comp = append(comp, ledger.CompositionInput{TokenID: ci.TokenID, WeightUsed: ci.WeightUsed})
	}
	product, err := h.Svc.CreateProduct(c.Request().Context(), ledger.CreateProductRequest{
		ActorID:       middleware.ParticipantID(c),
		Name:          req.Name,
		Type:          req.Type,
		GrossWeight:   req.GrossWeight,
		NetGoldWeight: req.NetGoldWeight,
		Purity:        req.Purity,
		Composition:   comp,
		WastageLogID:  req.WastageLogID,
		Origin:        c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, productView(product))
}

// List returns the caller's products.
func (h *ProductHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	products, err := h.Products.ListByCraftsman(ctx, middleware.ParticipantID(c))
	if err != nil {
		return fail(c, err)
	}
	out := make([]echo.Map, 0, len(products))
	for _, p := range products {
		out = append(out, productView(p))
	}
	return c.JSON(http.StatusOK, echo.Map{"products": out})
}

// Get returns one product with its token composition.
func (h *ProductHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	product, err := h.Products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return fail(c, err)
	}
	comp, err := h.Products.Composition(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	rows := make([]echo.Map, 0, len(comp))
	for _, r := range comp {
		rows = append(rows, echo.Map{
			"token_id":    r.TokenID,
			"weight_used": r.WeightUsed,
			"percentage":  r.Percentage,
		})
	}
	view := productView(product)
	view["composition"] = rows
	return c.JSON(http.StatusOK, view)
}

// Transfer hands product custody to another participant.
func (h *ProductHandler) Transfer(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	var req transferProductReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	product, err := h.Svc.TransferProduct(c.Request().Context(), ledger.TransferProductRequest{
		ActorID:         middleware.ParticipantID(c),
		ProductID:       id,
		ToParticipantID: req.ToParticipantID,
		Origin:          c.RealIP(),
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, productView(product))
}

// Trace returns the full provenance of a product: every component
// token's ancestry and the aggregated origin-batch shares. Served both
// to authenticated participants and, rate-limited and cached, to
// anonymous consumers scanning a product QR code.
func (h *ProductHandler) Trace(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	result, err := h.Svc.Trace(c.Request().Context(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
