package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/auriclabs/goldledger/internal/model"
	"github.com/auriclabs/goldledger/internal/repository"
)

// opTimeout bounds every store call so a stuck database surfaces as
// ErrTimeout instead of hanging the request.
const opTimeout = 5 * time.Second

// The store interfaces below are the write-side views of the repository
// layer the custody core needs, mirroring LineageStore on the read side.
// The concrete repositories satisfy them; tests drive the operations
// with in-memory fakes and a passthrough transaction runner.

type participantStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Participant, error)
	Create(ctx context.Context, name, email, passwordHash, role string) (uint64, error)
	UpdateOverrides(ctx context.Context, id uint64, overrides map[string]bool) error
	SetActive(ctx context.Context, id uint64, active bool) error
	Count(ctx context.Context) (int, error)
}

type tokenStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Token, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Token, error)
	GetByIDsTx(ctx context.Context, tx *sql.Tx, ids []uint64) ([]*model.Token, error)
	CreateTx(ctx context.Context, tx *sql.Tx, t *model.Token) error
	InsertLineageTx(ctx context.Context, tx *sql.Tx, e *model.TokenLineage) error
	InsertTransferTx(ctx context.Context, tx *sql.Tx, t *model.TokenTransfer) error
	FlipStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error
	UpdateOwnerTx(ctx context.Context, tx *sql.Tx, id, fromOwner, toOwner uint64) error
	MintedWeightByBatchTx(ctx context.Context, tx *sql.Tx, batchID uint64) (decimal.Decimal, error)
	CountByStatus(ctx context.Context) (map[string]int, error)
	TotalWeight(ctx context.Context, status string) (string, error)
}

type batchStore interface {
	GetByID(ctx context.Context, id uint64) (*model.GoldBatch, error)
	GetByIDForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.GoldBatch, error)
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.GoldBatch) error
	TransferTx(ctx context.Context, tx *sql.Tx, batchID, fromOwner, toOwner uint64, fromName, toName string) error
}

type wastageStore interface {
	Insert(ctx context.Context, w *model.WastageLog) error
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.WastageLog, error)
	DecideTx(ctx context.Context, tx *sql.Tx, id uint64, status string, approverID uint64, notes string, decidedAt time.Time) error
	GetThreshold(ctx context.Context, operationType string) (*model.WastageThreshold, error)
	UpsertThreshold(ctx context.Context, operationType string, autoMax, reviewMax decimal.Decimal, updatedBy uint64) (*model.WastageThreshold, error)
}

type productStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, p *model.Product) error
	InsertCompositionBulkTx(ctx context.Context, tx *sql.Tx, rows []model.ProductComposition) error
	GetByID(ctx context.Context, id uint64) (*model.Product, error)
	Composition(ctx context.Context, productID uint64) ([]model.ProductComposition, error)
	UpdateOwnerTx(ctx context.Context, tx *sql.Tx, id, fromOwner, toOwner uint64) error
	Stats(ctx context.Context) (count int, totalNetGold string, err error)
}

type auditStore interface {
	Insert(ctx context.Context, e *model.AuditLogEntry) error
}

// txFunc runs fn as one atomic unit. The database-backed runner opens a
// transaction and commits or rolls back; tests substitute a passthrough.
type txFunc func(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error

// Service is the transactional custody core. Each mutating method
// authorizes the actor, runs all writes in one transaction, and appends
// an audit entry after commit. Audit failures are logged and surfaced to
// observability but never fail or roll back the primary operation.
type Service struct {
	run          txFunc
	eval         *Evaluator
	lineage      *Lineage
	participants participantStore
	tokens       tokenStore
	batches      batchStore
	wastage      wastageStore
	products     productStore
	audit        auditStore
}

// NewService wires the custody core. The policy is injected so tests can
// run arbitrary permission matrices.
func NewService(db *sql.DB, policy Policy) *Service {
	return &Service{
		run:          sqlTxRunner(db),
		eval:         NewEvaluator(policy),
		lineage:      NewLineage(repository.NewLineageRepo(db)),
		participants: repository.NewParticipantRepo(db),
		tokens:       repository.NewTokenRepo(db),
		batches:      repository.NewBatchRepo(db),
		wastage:      repository.NewWastageRepo(db),
		products:     repository.NewProductRepo(db),
		audit:        repository.NewAuditRepo(db),
	}
}

// Evaluator exposes the permission evaluator for middleware and
// handlers performing read-path visibility checks.
func (s *Service) Evaluator() *Evaluator { return s.eval }

// Lineage exposes the ancestry engine for read paths.
func (s *Service) Lineage() *Lineage { return s.lineage }

// Authorize resolves whether the given participant may perform the
// named action. It loads the participant fresh on every call so
// override and deactivation changes apply immediately.
func (s *Service) Authorize(ctx context.Context, participantID uint64, permission string) (bool, error) {
	p, err := s.actor(ctx, participantID)
	if err != nil {
		return false, err
	}
	if err := s.eval.Authorize(p, permission); err != nil {
		return false, nil
	}
	return true, nil
}

// actor loads the acting participant, mapping store errors.
func (s *Service) actor(ctx context.Context, id uint64) (*model.Participant, error) {
	p, err := s.participants.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "participant", id)
	}
	return p, nil
}

// storeErr translates repository sentinels and context errors into the
// ledger taxonomy.
func storeErr(err error, resource string, id uint64) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		ref := ""
		if id != 0 {
			ref = strconv.FormatUint(id, 10)
		}
		return &NotFoundError{Resource: resource, ID: ref}
	case errors.Is(err, repository.ErrStale):
		return ErrConflict
	case errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	default:
		return err
	}
}

// inTx runs fn within one transaction bounded by opTimeout. On any error
// the transaction is rolled back and no write becomes visible; the
// commit error itself is also surfaced, so a half-applied mutation is
// impossible from the caller's point of view.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return s.run(ctx, fn)
}

// sqlTxRunner is the database-backed transaction runner.
func sqlTxRunner(db *sql.DB) txFunc {
	return func(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
		ctx, cancel := context.WithTimeout(ctx, opTimeout)
		defer cancel()
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return storeErr(err, "", 0)
		}
		committed := false
		defer func() {
			if !committed {
				_ = tx.Rollback()
			}
		}()
		if err := fn(ctx, tx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return ErrTimeout
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return storeErr(err, "", 0)
		}
		committed = true
		return nil
	}
}

// logAudit appends an audit entry after a successful mutation. The
// details payload is opaque to the ledger. Failures are logged only: the
// primary operation has already committed.
func (s *Service) logAudit(actorID uint64, action, resourceType string, resourceID uint64, details interface{}, origin string) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	raw, err := json.Marshal(details)
	if err != nil {
		log.Printf("audit: marshal details for %s failed: %v", action, err)
		raw = []byte(`{}`)
	}
	entry := &model.AuditLogEntry{
		PerformedByID: actorID,
		ActionType:    action,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Details:       raw,
		Origin:        origin,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		log.Printf("audit: append %s on %s/%d failed: %v", action, resourceType, resourceID, err)
	}
}

// usableWastageTx loads a referenced wastage log inside the transaction
// and verifies it may back a declared mass loss. It returns the approved
// wastage weight.
func (s *Service) usableWastageTx(ctx context.Context, tx *sql.Tx, logID uint64) (*model.WastageLog, error) {
	w, err := s.wastage.GetByIDTx(ctx, tx, logID)
	if err != nil {
		return nil, storeErr(err, "wastage log", logID)
	}
	if err := CheckWastageUsable(w); err != nil {
		return nil, err
	}
	return w, nil
}
