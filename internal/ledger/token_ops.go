package ledger

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/auriclabs/goldledger/internal/model"
	"github.com/auriclabs/goldledger/internal/utils"
)

// MintRequest creates the first token of a quantity of batch gold.
type MintRequest struct {
	ActorID      uint64
	BatchID      uint64
	Weight       decimal.Decimal
	OwnerID      uint64 // 0 means the actor keeps custody
	ConfirmHuman bool
	Origin       string
}

// SplitRequest divides one active token into two or more children.
type SplitRequest struct {
	ActorID      uint64
	TokenID      uint64
	ChildWeights []decimal.Decimal
	WastageLogID *uint64
	Origin       string
}

// MergeRequest combines two or more active tokens into one.
type MergeRequest struct {
	ActorID      uint64
	TokenIDs     []uint64
	WastageLogID *uint64
	Origin       string
}

// TransferRequest hands custody of an active token to another
// participant.
type TransferRequest struct {
	ActorID         uint64
	TokenID         uint64
	ToParticipantID uint64
	Notes           string
	Origin          string
}

// MintToken creates a token against a registered batch. The token's
// purity is taken from the batch; the summed weight of all tokens minted
// directly against a batch may never exceed the batch's registered
// weight.
func (s *Service) MintToken(ctx context.Context, req MintRequest) (*model.Token, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermMintToken); err != nil {
		return nil, err
	}
	if !req.ConfirmHuman {
		return nil, Validationf("minting requires explicit human confirmation")
	}
	if !req.Weight.IsPositive() {
		return nil, Validationf("weight must be positive, got %s", req.Weight)
	}
	ownerID := req.ActorID
	if req.OwnerID != 0 && req.OwnerID != req.ActorID {
		owner, err := s.participants.GetByID(ctx, req.OwnerID)
		if err != nil {
			return nil, storeErr(err, "participant", req.OwnerID)
		}
		if !owner.Active {
			return nil, inactiveParticipant(req.OwnerID)
		}
		ownerID = owner.ID
	}

	var token *model.Token
	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		// The row lock serializes concurrent mints against the batch:
		// without it two transactions can both read the old minted sum
		// and together exceed the batch's registered weight.
		batch, err := s.batches.GetByIDForUpdateTx(ctx, tx, req.BatchID)
		if err != nil {
			return storeErr(err, "batch", req.BatchID)
		}
		minted, err := s.tokens.MintedWeightByBatchTx(ctx, tx, batch.ID)
		if err != nil {
			return storeErr(err, "batch", batch.ID)
		}
		if minted.Add(req.Weight).GreaterThan(batch.Weight.Add(Tolerance)) {
			return Validationf("minting %sg would exceed batch %s remaining capacity (%sg of %sg already tokenised)",
				req.Weight, batch.Code, minted, batch.Weight)
		}
		token = &model.Token{
			Code:           utils.NewTokenCode(),
			BatchID:        batch.ID,
			Weight:         req.Weight,
			Purity:         batch.Purity,
			Status:         model.TokenActive,
			CurrentOwnerID: ownerID,
			MintedByID:     actor.ID,
		}
		return storeErr(s.tokens.CreateTx(ctx, tx, token), "token", 0)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(actor.ID, "mint_token", "token", token.ID, map[string]interface{}{
		"token_code": token.Code,
		"batch_id":   token.BatchID,
		"weight":     token.Weight,
		"owner_id":   ownerID,
	}, req.Origin)
	return token, nil
}

// SplitToken divides a token the actor holds into children whose weights
// plus any approved wastage must equal the parent's weight within the
// tolerance. The parent becomes consumed; a concurrent operation that
// already consumed it makes this call fail with ErrConflict and nothing
// is written.
func (s *Service) SplitToken(ctx context.Context, req SplitRequest) ([]*model.Token, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermSplitToken); err != nil {
		return nil, err
	}
	if len(req.ChildWeights) < 2 {
		return nil, Validationf("split requires at least 2 child weights, got %d", len(req.ChildWeights))
	}
	if err := CheckPositiveWeights(req.ChildWeights); err != nil {
		return nil, err
	}

	children := make([]*model.Token, 0, len(req.ChildWeights))
	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		parent, err := s.tokens.GetByIDTx(ctx, tx, req.TokenID)
		if err != nil {
			return storeErr(err, "token", req.TokenID)
		}
		if parent.CurrentOwnerID != actor.ID {
			return &AuthorizationError{Reason: "only the current custodian may split a token"}
		}
		if parent.Terminal() {
			return ErrConflict
		}
		wastageWeight := decimal.Zero
		if req.WastageLogID != nil {
			w, err := s.usableWastageTx(ctx, tx, *req.WastageLogID)
			if err != nil {
				return err
			}
			wastageWeight = w.WastageWeight
		}
		if err := CheckBalance(parent.Weight, req.ChildWeights, wastageWeight); err != nil {
			return err
		}
		for _, weight := range req.ChildWeights {
			parentID := parent.ID
			child := &model.Token{
				Code:           utils.NewTokenCode(),
				BatchID:        parent.BatchID,
				Weight:         weight,
				Purity:         parent.Purity,
				Status:         model.TokenActive,
				CurrentOwnerID: parent.CurrentOwnerID,
				MintedByID:     actor.ID,
				ParentTokenID:  &parentID,
			}
			if err := s.tokens.CreateTx(ctx, tx, child); err != nil {
				return storeErr(err, "token", 0)
			}
			edge := &model.TokenLineage{
				ChildTokenID:      child.ID,
				ParentTokenID:     parent.ID,
				OperationType:     model.LineageSplit,
				WeightTransferred: weight,
				PerformedByID:     actor.ID,
			}
			if err := s.tokens.InsertLineageTx(ctx, tx, edge); err != nil {
				return storeErr(err, "token", 0)
			}
			children = append(children, child)
		}
		return storeErr(s.tokens.FlipStatusTx(ctx, tx, parent.ID, model.TokenActive, model.TokenConsumed), "token", parent.ID)
	})
	if err != nil {
		return nil, err
	}
	codes := make([]string, 0, len(children))
	for _, c := range children {
		codes = append(codes, c.Code)
	}
	s.logAudit(actor.ID, "split_token", "token", req.TokenID, map[string]interface{}{
		"child_codes":    codes,
		"child_count":    len(children),
		"wastage_log_id": req.WastageLogID,
	}, req.Origin)
	return children, nil
}

// MergeTokens combines tokens the actor holds into one. All inputs must
// share the same purity; the merged weight is the summed input weight
// minus any approved wastage. Each input becomes merged; losing the race
// on any input fails the whole call with ErrConflict.
func (s *Service) MergeTokens(ctx context.Context, req MergeRequest) (*model.Token, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermMergeToken); err != nil {
		return nil, err
	}
	if len(req.TokenIDs) < 2 {
		return nil, Validationf("merge requires at least 2 tokens, got %d", len(req.TokenIDs))
	}
	seen := make(map[uint64]bool, len(req.TokenIDs))
	for _, id := range req.TokenIDs {
		if seen[id] {
			return nil, Validationf("token %d listed more than once", id)
		}
		seen[id] = true
	}

	var merged *model.Token
	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		inputs, err := s.tokens.GetByIDsTx(ctx, tx, req.TokenIDs)
		if err != nil {
			return storeErr(err, "token", 0)
		}
		total := decimal.Zero
		purity := inputs[0].Purity
		for _, t := range inputs {
			if t.CurrentOwnerID != actor.ID {
				return &AuthorizationError{Reason: "only the current custodian may merge tokens"}
			}
			if t.Terminal() {
				return ErrConflict
			}
			if !t.Purity.Equal(purity) {
				return Validationf("cannot merge tokens of different purity (%s vs %s)", purity, t.Purity)
			}
			total = total.Add(t.Weight)
		}
		wastageWeight := decimal.Zero
		if req.WastageLogID != nil {
			w, err := s.usableWastageTx(ctx, tx, *req.WastageLogID)
			if err != nil {
				return err
			}
			wastageWeight = w.WastageWeight
		}
		mergedWeight := total.Sub(wastageWeight)
		if !mergedWeight.IsPositive() {
			return Validationf("merged weight must be positive, got %s", mergedWeight)
		}
		merged = &model.Token{
			Code:           utils.NewTokenCode(),
			BatchID:        inputs[0].BatchID,
			Weight:         mergedWeight,
			Purity:         purity,
			Status:         model.TokenActive,
			CurrentOwnerID: actor.ID,
			MintedByID:     actor.ID,
		}
		if err := s.tokens.CreateTx(ctx, tx, merged); err != nil {
			return storeErr(err, "token", 0)
		}
		for _, t := range inputs {
			edge := &model.TokenLineage{
				ChildTokenID:      merged.ID,
				ParentTokenID:     t.ID,
				OperationType:     model.LineageMerge,
				WeightTransferred: t.Weight,
				PerformedByID:     actor.ID,
			}
			if err := s.tokens.InsertLineageTx(ctx, tx, edge); err != nil {
				return storeErr(err, "token", 0)
			}
			if err := s.tokens.FlipStatusTx(ctx, tx, t.ID, model.TokenActive, model.TokenMerged); err != nil {
				return storeErr(err, "token", t.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(actor.ID, "merge_tokens", "token", merged.ID, map[string]interface{}{
		"merged_code":    merged.Code,
		"input_ids":      req.TokenIDs,
		"wastage_log_id": req.WastageLogID,
	}, req.Origin)
	return merged, nil
}

// TransferToken hands custody of an active token to another active
// participant. The token's status and lineage are untouched; only the
// current owner changes, with an immutable transfer record appended.
func (s *Service) TransferToken(ctx context.Context, req TransferRequest) (*model.Token, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermTransferToken); err != nil {
		return nil, err
	}
	if req.ToParticipantID == req.ActorID {
		return nil, Validationf("cannot transfer a token to yourself")
	}
	recipient, err := s.participants.GetByID(ctx, req.ToParticipantID)
	if err != nil {
		return nil, storeErr(err, "participant", req.ToParticipantID)
	}
	if !recipient.Active {
		return nil, inactiveParticipant(recipient.ID)
	}

	var token *model.Token
	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		t, err := s.tokens.GetByIDTx(ctx, tx, req.TokenID)
		if err != nil {
			return storeErr(err, "token", req.TokenID)
		}
		if t.CurrentOwnerID != actor.ID {
			return &AuthorizationError{Reason: "only the current custodian may transfer a token"}
		}
		if t.Terminal() {
			return ErrConflict
		}
		if err := s.tokens.UpdateOwnerTx(ctx, tx, t.ID, actor.ID, recipient.ID); err != nil {
			return storeErr(err, "token", t.ID)
		}
		transfer := &model.TokenTransfer{
			TokenID:           t.ID,
			FromParticipantID: actor.ID,
			ToParticipantID:   recipient.ID,
			Notes:             req.Notes,
		}
		if err := s.tokens.InsertTransferTx(ctx, tx, transfer); err != nil {
			return storeErr(err, "token", t.ID)
		}
		t.CurrentOwnerID = recipient.ID
		token = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(actor.ID, "transfer_token", "token", token.ID, map[string]interface{}{
		"token_code": token.Code,
		"from":       actor.ID,
		"to":         recipient.ID,
	}, req.Origin)
	return token, nil
}
