package ledger

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/auriclabs/goldledger/internal/model"
	"github.com/auriclabs/goldledger/internal/utils"
)

// CompositionInput names one token and the grams taken from it.
type CompositionInput struct {
	TokenID    uint64
	WeightUsed decimal.Decimal
}

// CreateProductRequest assembles a finished product out of tokens the
// actor holds.
type CreateProductRequest struct {
	ActorID       uint64
	Name          string
	Type          string
	GrossWeight   decimal.Decimal
	NetGoldWeight decimal.Decimal
	Purity        *decimal.Decimal // nil means inherit from the first token
	Composition   []CompositionInput
	WastageLogID  *uint64
	Origin        string
}

// TransferProductRequest hands custody of a product to another
// participant.
type TransferProductRequest struct {
	ActorID         uint64
	ProductID       uint64
	ToParticipantID uint64
	Origin          string
}

// CreateProduct converts tokens into a finished product. The summed
// weight used plus any approved wastage must equal the net gold weight
// within the tolerance; every composition token becomes
// converted_to_product atomically with the product row.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (*model.Product, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermCreateProduct); err != nil {
		return nil, err
	}
	if req.Name == "" {
		return nil, Validationf("product name is required")
	}
	if !model.ValidProductType(req.Type) {
		return nil, Validationf("unknown product type %q", req.Type)
	}
	if !req.GrossWeight.IsPositive() || !req.NetGoldWeight.IsPositive() {
		return nil, Validationf("gross and net gold weight must be positive")
	}
	if req.NetGoldWeight.GreaterThan(req.GrossWeight) {
		return nil, Validationf("net gold weight %s exceeds gross weight %s", req.NetGoldWeight, req.GrossWeight)
	}
	if len(req.Composition) == 0 {
		return nil, Validationf("product composition must name at least one token")
	}
	ids := make([]uint64, 0, len(req.Composition))
	used := make([]decimal.Decimal, 0, len(req.Composition))
	seen := make(map[uint64]bool, len(req.Composition))
	for _, c := range req.Composition {
		if seen[c.TokenID] {
			return nil, Validationf("token %d listed more than once in composition", c.TokenID)
		}
		seen[c.TokenID] = true
		if !c.WeightUsed.IsPositive() {
			return nil, Validationf("weight used for token %d must be positive, got %s", c.TokenID, c.WeightUsed)
		}
		ids = append(ids, c.TokenID)
		used = append(used, c.WeightUsed)
	}

	var product *model.Product
	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		inputs, err := s.tokens.GetByIDsTx(ctx, tx, ids)
		if err != nil {
			return storeErr(err, "token", 0)
		}
		byID := make(map[uint64]*model.Token, len(inputs))
		for _, t := range inputs {
			if t.CurrentOwnerID != actor.ID {
				return &AuthorizationError{Reason: "only the current custodian may convert a token into a product"}
			}
			if t.Terminal() {
				return ErrConflict
			}
			byID[t.ID] = t
		}
		for _, c := range req.Composition {
			if c.WeightUsed.GreaterThan(byID[c.TokenID].Weight) {
				return Validationf("weight used %s exceeds token %d weight %s", c.WeightUsed, c.TokenID, byID[c.TokenID].Weight)
			}
		}
		wastageWeight := decimal.Zero
		if req.WastageLogID != nil {
			w, err := s.usableWastageTx(ctx, tx, *req.WastageLogID)
			if err != nil {
				return err
			}
			wastageWeight = w.WastageWeight
		}
		if err := CheckBalance(req.NetGoldWeight, used, wastageWeight); err != nil {
			return err
		}
		purity := byID[ids[0]].Purity
		if req.Purity != nil {
			purity = *req.Purity
		}
		product = &model.Product{
			Code:          utils.NewProductCode(),
			Name:          req.Name,
			Type:          req.Type,
			GrossWeight:   req.GrossWeight,
			NetGoldWeight: req.NetGoldWeight,
			Purity:        purity,
			CraftsmanID:   actor.ID,
			QRRef:         utils.NewQRRef(),
		}
		if err := s.products.CreateTx(ctx, tx, product); err != nil {
			return storeErr(err, "product", 0)
		}
		rows := make([]model.ProductComposition, 0, len(req.Composition))
		for _, c := range req.Composition {
			rows = append(rows, model.ProductComposition{
				ProductID:  product.ID,
				TokenID:    c.TokenID,
				WeightUsed: c.WeightUsed,
				Percentage: c.WeightUsed.Div(req.NetGoldWeight).Mul(hundred).Round(2),
			})
		}
		if err := s.products.InsertCompositionBulkTx(ctx, tx, rows); err != nil {
			return storeErr(err, "product", product.ID)
		}
		for _, id := range ids {
			if err := s.tokens.FlipStatusTx(ctx, tx, id, model.TokenActive, model.TokenConverted); err != nil {
				return storeErr(err, "token", id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(actor.ID, "create_product", "product", product.ID, map[string]interface{}{
		"product_code": product.Code,
		"token_ids":    ids,
		"net_gold":     product.NetGoldWeight,
	}, req.Origin)
	return product, nil
}

// TransferProduct hands custody of a finished product to another active
// participant. The composition and lineage of the piece are untouched.
func (s *Service) TransferProduct(ctx context.Context, req TransferProductRequest) (*model.Product, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermTransferToken); err != nil {
		return nil, err
	}
	if req.ToParticipantID == req.ActorID {
		return nil, Validationf("cannot transfer a product to yourself")
	}
	recipient, err := s.participants.GetByID(ctx, req.ToParticipantID)
	if err != nil {
		return nil, storeErr(err, "participant", req.ToParticipantID)
	}
	if !recipient.Active {
		return nil, inactiveParticipant(recipient.ID)
	}
	product, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, storeErr(err, "product", req.ProductID)
	}
	if product.CraftsmanID != actor.ID {
		return nil, &AuthorizationError{Reason: "only the current custodian may transfer a product"}
	}
	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return storeErr(s.products.UpdateOwnerTx(ctx, tx, product.ID, actor.ID, recipient.ID), "product", product.ID)
	})
	if err != nil {
		return nil, err
	}
	product.CraftsmanID = recipient.ID
	s.logAudit(actor.ID, "transfer_product", "product", product.ID, map[string]interface{}{
		"product_code": product.Code,
		"from":         actor.ID,
		"to":           recipient.ID,
	}, req.Origin)
	return product, nil
}

// TraceComponent is one composition token with its full ancestry.
type TraceComponent struct {
	TokenCode       string               `json:"token_code"`
	WeightUsed      decimal.Decimal      `json:"weight_used"`
	Percentage      decimal.Decimal      `json:"percentage"`
	Sources         []SourceContribution `json:"sources"`
	Tree            *TreeNode            `json:"lineage"`
	Generations     int                  `json:"generations"`
	Transformations int                  `json:"transformations"`
}

// TraceResult is the full provenance view of a product, served on the
// public verification endpoint and to authenticated participants.
type TraceResult struct {
	ProductCode   string               `json:"product_code"`
	Name          string               `json:"name"`
	Type          string               `json:"type"`
	GrossWeight   decimal.Decimal      `json:"gross_weight"`
	NetGoldWeight decimal.Decimal      `json:"net_gold_weight"`
	Purity        decimal.Decimal      `json:"purity"`
	Craftsman     string               `json:"craftsman"`
	QRRef         string               `json:"qr_ref"`
	Components    []TraceComponent     `json:"components"`
	Origins       []SourceContribution `json:"origins"`
}

// Trace resolves the complete provenance of a product: every composition
// token's ancestry tree and the aggregated origin-batch shares of the
// piece. Origin percentages are each component's batch shares weighted
// by that component's share of the net gold weight, so they sum to 100
// across batches up to rounding.
func (s *Service) Trace(ctx context.Context, productID uint64) (*TraceResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	product, err := s.products.GetByID(ctx, productID)
	if err != nil {
		return nil, storeErr(err, "product", productID)
	}
	craftsman, err := s.participants.GetByID(ctx, product.CraftsmanID)
	if err != nil {
		return nil, storeErr(err, "participant", product.CraftsmanID)
	}
	comp, err := s.products.Composition(ctx, product.ID)
	if err != nil {
		return nil, storeErr(err, "product", product.ID)
	}

	result := &TraceResult{
		ProductCode:   product.Code,
		Name:          product.Name,
		Type:          product.Type,
		GrossWeight:   product.GrossWeight,
		NetGoldWeight: product.NetGoldWeight,
		Purity:        product.Purity,
		Craftsman:     craftsman.Name,
		QRRef:         product.QRRef,
	}
	type agg struct {
		code   string
		source string
		weight decimal.Decimal
	}
	origins := map[uint64]*agg{}
	for _, c := range comp {
		token, err := s.tokens.GetByID(ctx, c.TokenID)
		if err != nil {
			return nil, storeErr(err, "token", c.TokenID)
		}
		tree, err := s.lineage.BuildTree(ctx, c.TokenID)
		if err != nil {
			return nil, err
		}
		sources, err := s.lineage.SourceContributions(ctx, c.TokenID)
		if err != nil {
			return nil, err
		}
		stats := Stats(tree)
		result.Components = append(result.Components, TraceComponent{
			TokenCode:       token.Code,
			WeightUsed:      c.WeightUsed,
			Percentage:      c.Percentage,
			Sources:         sources,
			Tree:            tree,
			Generations:     stats.DeepestGeneration,
			Transformations: stats.TotalTransformations,
		})
		for _, sc := range sources {
			a, ok := origins[sc.BatchID]
			if !ok {
				a = &agg{code: sc.BatchCode, source: sc.Source}
				origins[sc.BatchID] = a
			}
			a.weight = a.weight.Add(c.WeightUsed.Mul(sc.Percentage).Div(hundred))
		}
	}
	for id, a := range origins {
		result.Origins = append(result.Origins, SourceContribution{
			BatchID:    id,
			BatchCode:  a.code,
			Source:     a.source,
			Weight:     a.weight.Round(2),
			Percentage: a.weight.Div(product.NetGoldWeight).Mul(hundred).Round(2),
		})
	}
	sortContributions(result.Origins)
	return result, nil
}
