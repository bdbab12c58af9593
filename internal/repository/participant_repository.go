package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/auriclabs/goldledger/internal/model"
)

// ParticipantRepo provides CRUD operations for supply-chain actors.
// Participants are never deleted; deactivation clears the active flag.
type ParticipantRepo struct {
	db *sql.DB
}

// NewParticipantRepo returns a new ParticipantRepo bound to the given database.
func NewParticipantRepo(db *sql.DB) *ParticipantRepo { return &ParticipantRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *ParticipantRepo) DB() *sql.DB { return r.db }

const participantCols = `id, name, email, password_hash, role, permissions, active, created_at, updated_at`

// scanParticipant reads one participant row, decoding the permissions
// override JSON column into a map.
func scanParticipant(row interface{ Scan(...interface{}) error }) (*model.Participant, error) {
	var p model.Participant
	var perms sql.NullString
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.Role, &perms, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Overrides = map[string]bool{}
	if perms.Valid && perms.String != "" {
		if err := json.Unmarshal([]byte(perms.String), &p.Overrides); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// Create inserts a participant and returns its ID. The email is
// normalized to lower case. ErrDuplicate is returned when the email is
// already registered.
func (r *ParticipantRepo) Create(ctx context.Context, name, email, passwordHash, role string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO participants (name, email, password_hash, role, permissions, active) VALUES (?, ?, ?, ?, '{}', TRUE)`,
		name, email, passwordHash, role)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrDuplicate
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches a participant by id. ErrNotFound when missing.
func (r *ParticipantRepo) GetByID(ctx context.Context, id uint64) (*model.Participant, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+participantCols+` FROM participants WHERE id = ?`, id)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetByEmail fetches a participant by normalized email. ErrNotFound when missing.
func (r *ParticipantRepo) GetByEmail(ctx context.Context, email string) (*model.Participant, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	row := r.db.QueryRowContext(ctx,
		`SELECT `+participantCols+` FROM participants WHERE email = ?`, email)
	p, err := scanParticipant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns all participants ordered by name.
func (r *ParticipantRepo) List(ctx context.Context) ([]*model.Participant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+participantCols+` FROM participants ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*model.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateOverrides replaces the participant's permission override map.
func (r *ParticipantRepo) UpdateOverrides(ctx context.Context, id uint64, overrides map[string]bool) error {
	raw, err := json.Marshal(overrides)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE participants SET permissions = ?, updated_at = ? WHERE id = ?`,
		string(raw), time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetActive flips the participant's active flag. Deactivated accounts
// are denied every action by the permission evaluator.
func (r *ParticipantRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE participants SET active = ?, updated_at = ? WHERE id = ?`,
		active, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Count returns the number of registered participants.
func (r *ParticipantRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants`).Scan(&n)
	return n, err
}

// StoreRefresh persists a hashed refresh token for a participant.
func (r *ParticipantRepo) StoreRefresh(ctx context.Context, participantID uint64, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (participant_id, token_hash, expires_at) VALUES (?, ?, ?)`,
		participantID, tokenHash, expiresAt)
	return err
}

// GetRefresh fetches a refresh token row by hash. ErrNotFound when the
// hash is unknown.
func (r *ParticipantRepo) GetRefresh(ctx context.Context, tokenHash string) (*model.RefreshToken, error) {
	var t model.RefreshToken
	var revoked sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, participant_id, token_hash, expires_at, revoked_at, created_at FROM refresh_tokens WHERE token_hash = ?`,
		tokenHash).Scan(&t.ID, &t.ParticipantID, &t.TokenHash, &t.ExpiresAt, &revoked, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if revoked.Valid {
		rt := revoked.Time
		t.RevokedAt = &rt
	}
	return &t, nil
}

// RevokeRefresh marks a refresh token as revoked.
func (r *ParticipantRepo) RevokeRefresh(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`,
		time.Now().UTC(), tokenHash)
	return err
}
