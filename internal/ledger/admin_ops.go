package ledger

import (
	"context"
	"errors"

	"github.com/auriclabs/goldledger/internal/model"
	"github.com/auriclabs/goldledger/internal/repository"
	"github.com/auriclabs/goldledger/internal/utils"
)

// ProvisionRequest creates a supply-chain participant account.
// BcryptCost at or below zero falls back to the bcrypt default.
type ProvisionRequest struct {
	ActorID    uint64
	Name       string
	Email      string
	Password   string
	Role       string
	BcryptCost int
	Origin     string
}

// OverridesRequest replaces a participant's permission override map.
type OverridesRequest struct {
	ActorID       uint64
	ParticipantID uint64
	Overrides     map[string]bool
	Origin        string
}

func validRole(role string) bool {
	switch role {
	case model.RoleRefiner, model.RoleCraftsman, model.RoleLab,
		model.RoleJeweller, model.RoleAdmin, model.RoleAuditor:
		return true
	}
	return false
}

var knownPermissions = map[string]bool{
	PermMintToken: true, PermSplitToken: true, PermMergeToken: true,
	PermTransferToken: true, PermCreateBatch: true, PermLogWastage: true,
	PermApproveWastage: true, PermUpdateThresholds: true, PermCreateProduct: true,
	PermViewAll: true, PermViewOwn: true, PermGenerateReports: true,
	PermManageParticipants: true,
}

// ProvisionParticipant creates an account with the given role. Roles are
// immutable afterwards; only overrides and the active flag may change.
func (s *Service) ProvisionParticipant(ctx context.Context, req ProvisionRequest) (*model.Participant, error) {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermManageParticipants); err != nil {
		return nil, err
	}
	if req.Name == "" || req.Email == "" {
		return nil, Validationf("name and email are required")
	}
	if len(req.Password) < 8 {
		return nil, Validationf("password must be at least 8 characters")
	}
	if !validRole(req.Role) {
		return nil, Validationf("unknown role %q", req.Role)
	}
	hash, err := utils.HashPassword(req.Password, req.BcryptCost)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	id, err := s.participants.Create(ctx, req.Name, req.Email, hash, req.Role)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, Validationf("email %s is already registered", req.Email)
		}
		return nil, storeErr(err, "participant", 0)
	}
	created, err := s.participants.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "participant", id)
	}
	s.logAudit(actor.ID, "provision_participant", "participant", id, map[string]interface{}{
		"name": req.Name,
		"role": req.Role,
	}, req.Origin)
	return created, nil
}

// SetOverrides replaces a participant's permission override map. Every
// key must name a known permission; an explicit true grants it
// regardless of role on the participant's next action.
func (s *Service) SetOverrides(ctx context.Context, req OverridesRequest) error {
	actor, err := s.actor(ctx, req.ActorID)
	if err != nil {
		return err
	}
	if err := s.eval.Authorize(actor, PermManageParticipants); err != nil {
		return err
	}
	for perm := range req.Overrides {
		if !knownPermissions[perm] {
			return Validationf("unknown permission %q", perm)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := s.actor(ctx, req.ParticipantID); err != nil {
		return err
	}
	if err := s.participants.UpdateOverrides(ctx, req.ParticipantID, req.Overrides); err != nil {
		return storeErr(err, "participant", req.ParticipantID)
	}
	s.logAudit(actor.ID, "set_overrides", "participant", req.ParticipantID, req.Overrides, req.Origin)
	return nil
}

// SetParticipantActive enables or disables an account. Deactivation
// takes effect on the participant's next action; custody of their
// resources is unchanged.
func (s *Service) SetParticipantActive(ctx context.Context, actorID, participantID uint64, active bool, origin string) error {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return err
	}
	if err := s.eval.Authorize(actor, PermManageParticipants); err != nil {
		return err
	}
	if actorID == participantID && !active {
		return Validationf("cannot deactivate your own account")
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := s.participants.SetActive(ctx, participantID, active); err != nil {
		return storeErr(err, "participant", participantID)
	}
	s.logAudit(actor.ID, "set_participant_active", "participant", participantID, map[string]interface{}{
		"active": active,
	}, origin)
	return nil
}

// DashboardStats summarises the ledger for the admin dashboard.
type DashboardStats struct {
	TokensByStatus   map[string]int `json:"tokens_by_status"`
	ActiveGoldWeight string         `json:"active_gold_weight"`
	ProductCount     int            `json:"product_count"`
	ProductNetGold   string         `json:"product_net_gold"`
	ParticipantCount int            `json:"participant_count"`
}

// Stats gathers ledger-wide counters. Restricted to participants holding
// the view_all permission.
func (s *Service) Stats(ctx context.Context, actorID uint64) (*DashboardStats, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.eval.Authorize(actor, PermViewAll); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	byStatus, err := s.tokens.CountByStatus(ctx)
	if err != nil {
		return nil, storeErr(err, "token", 0)
	}
	activeWeight, err := s.tokens.TotalWeight(ctx, model.TokenActive)
	if err != nil {
		return nil, storeErr(err, "token", 0)
	}
	productCount, netGold, err := s.products.Stats(ctx)
	if err != nil {
		return nil, storeErr(err, "product", 0)
	}
	participantCount, err := s.participants.Count(ctx)
	if err != nil {
		return nil, storeErr(err, "participant", 0)
	}
	return &DashboardStats{
		TokensByStatus:   byStatus,
		ActiveGoldWeight: activeWeight,
		ProductCount:     productCount,
		ProductNetGold:   netGold,
		ParticipantCount: participantCount,
	}, nil
}
