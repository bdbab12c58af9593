package ledger

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/auriclabs/goldledger/internal/model"
	"github.com/auriclabs/goldledger/internal/utils"
)

// CreateBatchRequest registers a quantity of raw refined gold.
type CreateBatchRequest struct {
	ActorID uint64
	Weight  decimal.Decimal
	Purity  decimal.Decimal
	Source  string
	Origin  string
}

// TransferBatchRequest hands custody of a batch to another participant.
type TransferBatchRequest struct {
	ActorID         uint64
	BatchID         uint64
	ToParticipantID uint64
	Origin          string
}

// CreateBatch registers a gold batch under the actor's custody and
// writes its registration history event.
func (s *Service) CreateBatch(ctx context.Context, req CreateBatchRequest) (*model.GoldBatch, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermCreateBatch); err != nil {
		return nil, err
	}
	if !req.Weight.IsPositive() {
		return nil, Validationf("weight must be positive, got %s", req.Weight)
	}
	if !req.Purity.IsPositive() || req.Purity.GreaterThan(hundred) {
		return nil, Validationf("purity must be in (0, 100], got %s", req.Purity)
	}
	if req.Source == "" {
		return nil, Validationf("source is required")
	}

	batch := &model.GoldBatch{
		Code:           utils.NewBatchCode(),
		Weight:         req.Weight,
		Purity:         req.Purity,
		Source:         req.Source,
		RefinerID:      actor.ID,
		CurrentOwnerID: actor.ID,
	}
	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return storeErr(s.batches.CreateTx(ctx, tx, batch), "batch", 0)
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(actor.ID, "create_batch", "batch", batch.ID, map[string]interface{}{
		"batch_code": batch.Code,
		"weight":     batch.Weight,
		"purity":     batch.Purity,
		"source":     batch.Source,
	}, req.Origin)
	return batch, nil
}

// TransferBatch hands custody of a batch to another active participant
// and appends the matching history event. Tokens already minted against
// the batch keep their own custody.
func (s *Service) TransferBatch(ctx context.Context, req TransferBatchRequest) (*model.GoldBatch, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermTransferToken); err != nil {
		return nil, err
	}
	if req.ToParticipantID == req.ActorID {
		return nil, Validationf("cannot transfer a batch to yourself")
	}
	recipient, err := s.participants.GetByID(ctx, req.ToParticipantID)
	if err != nil {
		return nil, storeErr(err, "participant", req.ToParticipantID)
	}
	if !recipient.Active {
		return nil, inactiveParticipant(recipient.ID)
	}
	batch, err := s.batches.GetByID(ctx, req.BatchID)
	if err != nil {
		return nil, storeErr(err, "batch", req.BatchID)
	}
	if batch.CurrentOwnerID != actor.ID {
		return nil, &AuthorizationError{Reason: "only the current custodian may transfer a batch"}
	}
	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return storeErr(s.batches.TransferTx(ctx, tx, batch.ID, actor.ID, recipient.ID, actor.Name, recipient.Name), "batch", batch.ID)
	})
	if err != nil {
		return nil, err
	}
	batch.CurrentOwnerID = recipient.ID
	s.logAudit(actor.ID, "transfer_batch", "batch", batch.ID, map[string]interface{}{
		"batch_code": batch.Code,
		"from":       actor.ID,
		"to":         recipient.ID,
	}, req.Origin)
	return batch, nil
}
