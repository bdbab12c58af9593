package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auriclabs/goldledger/internal/model"
	"github.com/auriclabs/goldledger/internal/repository"
)

// LogWastageRequest records an expected-vs-actual weight delta for one
// physical operation.
type LogWastageRequest struct {
	ActorID        uint64
	TokenID        *uint64
	OperationType  string
	ExpectedWeight decimal.Decimal
	ActualWeight   decimal.Decimal
	Origin         string
}

// DecideWastageRequest approves or rejects a pending or flagged log.
type DecideWastageRequest struct {
	ActorID  uint64
	LogID    uint64
	Approved bool
	Notes    string
	Origin   string
}

// UpdateThresholdRequest replaces the approval policy for one operation
// type.
type UpdateThresholdRequest struct {
	ActorID           uint64
	OperationType     string
	AutoApproveMax    decimal.Decimal
	ReviewRequiredMax decimal.Decimal
	Origin            string
}

// LogWastage classifies and persists a wastage log. The percentage is
// compared against the operation's threshold policy at submission time
// and the derived values are stored, so later policy changes never
// reclassify the log. Auto-approved logs record the submitter as
// approver with the submission timestamp.
func (s *Service) LogWastage(ctx context.Context, req LogWastageRequest) (*model.WastageLog, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermLogWastage); err != nil {
		return nil, err
	}
	if !model.ValidOperationType(req.OperationType) {
		return nil, Validationf("unknown operation type %q", req.OperationType)
	}
	weight, percentage, err := ComputeWastage(req.ExpectedWeight, req.ActualWeight)
	if err != nil {
		return nil, err
	}
	if weight.IsNegative() {
		return nil, Validationf("actual weight %s exceeds expected %s; mass cannot increase", req.ActualWeight, req.ExpectedWeight)
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if req.TokenID != nil {
		token, err := s.tokens.GetByID(ctx, *req.TokenID)
		if err != nil {
			return nil, storeErr(err, "token", *req.TokenID)
		}
		if token.CurrentOwnerID != actor.ID {
			return nil, &AuthorizationError{Reason: "only the current custodian may log wastage against a token"}
		}
	}
	threshold, err := s.wastage.GetThreshold(ctx, req.OperationType)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Resource: "wastage threshold", ID: req.OperationType}
		}
		return nil, storeErr(err, "wastage threshold", 0)
	}

	w := &model.WastageLog{
		TokenID:           req.TokenID,
		OperationType:     req.OperationType,
		ExpectedWeight:    req.ExpectedWeight,
		ActualWeight:      req.ActualWeight,
		WastageWeight:     weight,
		WastagePercentage: percentage,
		CraftsmanID:       actor.ID,
		ApprovalStatus:    Classify(percentage, threshold),
	}
	if w.ApprovalStatus == model.WastageAutoApproved {
		now := time.Now()
		approver := actor.ID
		w.ApprovedByID = &approver
		w.ApprovedAt = &now
	}
	if err := s.wastage.Insert(ctx, w); err != nil {
		return nil, storeErr(err, "wastage log", 0)
	}
	s.logAudit(actor.ID, "log_wastage", "wastage_log", w.ID, map[string]interface{}{
		"operation_type": w.OperationType,
		"percentage":     w.WastagePercentage,
		"status":         w.ApprovalStatus,
		"token_id":       w.TokenID,
	}, req.Origin)
	return w, nil
}

// DecideWastage records a one-shot approve/reject decision on a pending
// or flagged log. A log already in a terminal state fails with
// ErrAlreadyProcessed, including when two reviewers race: exactly one
// decision wins. Reviewers may not decide their own submissions.
func (s *Service) DecideWastage(ctx context.Context, req DecideWastageRequest) (*model.WastageLog, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermApproveWastage); err != nil {
		return nil, err
	}

	var decided *model.WastageLog
	err = s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		w, err := s.wastage.GetByIDTx(ctx, tx, req.LogID)
		if err != nil {
			return storeErr(err, "wastage log", req.LogID)
		}
		if w.Decided() {
			return ErrAlreadyProcessed
		}
		if w.CraftsmanID == actor.ID {
			return &AuthorizationError{Reason: "cannot decide your own wastage log"}
		}
		status := model.WastageApproved
		if !req.Approved {
			status = model.WastageRejected
		}
		now := time.Now()
		if err := s.wastage.DecideTx(ctx, tx, w.ID, status, actor.ID, req.Notes, now); err != nil {
			if errors.Is(err, repository.ErrStale) {
				return ErrAlreadyProcessed
			}
			return storeErr(err, "wastage log", w.ID)
		}
		approver := actor.ID
		w.ApprovalStatus = status
		w.ApprovedByID = &approver
		w.ApprovalNotes = req.Notes
		w.ApprovedAt = &now
		decided = w
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(actor.ID, "decide_wastage", "wastage_log", decided.ID, map[string]interface{}{
		"status": decided.ApprovalStatus,
		"notes":  req.Notes,
	}, req.Origin)
	return decided, nil
}

// UpdateThreshold replaces the approval policy for an operation type.
// Existing logs keep their stored classification; only future
// submissions see the new bounds.
func (s *Service) UpdateThreshold(ctx context.Context, req UpdateThresholdRequest) (*model.WastageThreshold, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermUpdateThresholds); err != nil {
		return nil, err
	}
	if !model.ValidOperationType(req.OperationType) {
		return nil, Validationf("unknown operation type %q", req.OperationType)
	}
	if err := CheckThresholdBounds(req.AutoApproveMax, req.ReviewRequiredMax); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	t, err := s.wastage.UpsertThreshold(ctx, req.OperationType, req.AutoApproveMax, req.ReviewRequiredMax, actor.ID)
	if err != nil {
		return nil, storeErr(err, "wastage threshold", 0)
	}
	s.logAudit(actor.ID, "update_threshold", "wastage_threshold", t.ID, map[string]interface{}{
		"operation_type":      t.OperationType,
		"auto_approve_max":    t.AutoApproveMax,
		"review_required_max": t.ReviewRequiredMax,
	}, req.Origin)
	return t, nil
}
