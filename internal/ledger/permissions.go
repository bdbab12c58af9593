package ledger

import (
	"github.com/auriclabs/goldledger/internal/model"
)

// Permission names gate every mutation and the privileged read paths.
const (
	PermMintToken          = "mint_token"
	PermSplitToken         = "split_token"
	PermMergeToken         = "merge_token"
	PermTransferToken      = "transfer_token"
	PermCreateBatch        = "create_batch"
	PermLogWastage         = "log_wastage"
	PermApproveWastage     = "approve_wastage"
	PermUpdateThresholds   = "update_thresholds"
	PermCreateProduct      = "create_product"
	PermViewAll            = "view_all"
	PermViewOwn            = "view_own"
	PermGenerateReports    = "generate_reports"
	PermManageParticipants = "manage_participants"
)

// Policy is the static role→permission table. It is plain data passed
// into NewEvaluator so tests can inject arbitrary policies; nothing in
// this package mutates it after construction.
type Policy map[string][]string

// DefaultPolicy returns the standard supply-chain permission matrix.
func DefaultPolicy() Policy {
	return Policy{
		model.RoleAdmin: {
			PermMintToken, PermSplitToken, PermMergeToken, PermTransferToken,
			PermCreateBatch, PermApproveWastage, PermUpdateThresholds,
			PermCreateProduct, PermViewAll, PermManageParticipants,
		},
		model.RoleRefiner: {
			PermMintToken, PermMergeToken, PermTransferToken, PermCreateBatch,
			PermViewOwn, PermCreateProduct,
		},
		model.RoleCraftsman: {
			PermSplitToken, PermMergeToken, PermLogWastage, PermTransferToken,
			PermViewOwn, PermCreateProduct,
		},
		model.RoleJeweller: {
			PermTransferToken, PermViewOwn, PermCreateProduct,
		},
		model.RoleLab: {
			PermApproveWastage, PermViewAll,
		},
		model.RoleAuditor: {
			PermViewAll, PermGenerateReports,
		},
	}
}

// Evaluator resolves whether a participant may perform an action. The
// role table is fixed at construction; participant overrides are read
// from the participant record on every call, never cached.
type Evaluator struct {
	roles map[string]map[string]bool
}

// NewEvaluator builds an Evaluator from the given policy.
func NewEvaluator(policy Policy) *Evaluator {
	roles := make(map[string]map[string]bool, len(policy))
	for role, perms := range policy {
		set := make(map[string]bool, len(perms))
		for _, p := range perms {
			set[p] = true
		}
		roles[role] = set
	}
	return &Evaluator{roles: roles}
}

// Authorize checks that the participant may perform the named action.
// Inactive participants are denied everything. An explicit true override
// on the participant grants the action regardless of role; otherwise the
// role table decides. It returns nil on allow and an AuthorizationError
// on deny. Authorize has no side effects.
func (e *Evaluator) Authorize(p *model.Participant, permission string) error {
	if p == nil {
		return &AuthorizationError{Reason: "authentication required"}
	}
	if !p.Active {
		return &AuthorizationError{Reason: "participant account is inactive"}
	}
	if p.Overrides[permission] {
		return nil
	}
	if e.roles[p.Role][permission] {
		return nil
	}
	return &AuthorizationError{
		Reason: "role " + p.Role + " lacks permission " + permission,
	}
}

// CanViewAll reports whether the participant may read resources owned by
// others. Deny here is not an error: callers scope list queries to the
// participant's own resources instead.
func (e *Evaluator) CanViewAll(p *model.Participant) bool {
	return e.Authorize(p, PermViewAll) == nil
}
