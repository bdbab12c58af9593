package model

import "time"

// Roles a participant can hold in the supply chain. The role is fixed at
// provisioning time; only permission overrides may change afterwards.
const (
	RoleRefiner   = "refiner"
	RoleCraftsman = "craftsman"
	RoleLab       = "lab"
	RoleJeweller  = "jeweller"
	RoleAdmin     = "admin"
	RoleAuditor   = "auditor"
)

// Participant represents a supply-chain actor as stored in the
// `participants` table. Participants are never deleted; offboarding is
// done by clearing the Active flag, which denies every action.
//
// Fields:
//  ID           – primary key identifier.
//  Name         – display name of the actor.
//  Email        – unique login email.
//  PasswordHash – bcrypt hashed password.
//  Role         – one of the Role* constants; immutable after creation.
//  Overrides    – per-participant permission overrides. An explicit true
//                 grants the permission regardless of role; absence falls
//                 back to the role table. Stored as JSON in
//                 participants.permissions.
//  Active       – whether the account may act at all.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type Participant struct {
	ID           uint64          // participants.id
	Name         string          // participants.name
	Email        string          // participants.email
	PasswordHash string          // participants.password_hash
	Role         string          // participants.role
	Overrides    map[string]bool // participants.permissions (JSON)
	Active       bool            // participants.active
	CreatedAt    time.Time       // participants.created_at
	UpdatedAt    time.Time       // participants.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table. Each
// refresh token belongs to a participant; only the SHA-256 hash of the
// raw token is stored.
//
// Fields:
//  ID            – primary key identifier.
//  ParticipantID – owner of the token.
//  TokenHash     – SHA-256 hex digest of the token value.
//  ExpiresAt     – expiration timestamp of the token.
//  RevokedAt     – when the token was revoked (null if still active).
//  CreatedAt     – timestamp of creation.
type RefreshToken struct {
	ID            uint64     // refresh_tokens.id
	ParticipantID uint64     // refresh_tokens.participant_id
	TokenHash     string     // refresh_tokens.token_hash
	ExpiresAt     time.Time  // refresh_tokens.expires_at
	RevokedAt     *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt     time.Time  // refresh_tokens.created_at
}
