// Package mirror maintains a read-optimized Postgres projection of the
// ledger. The ledger remains the source of truth; the mirror serves list
// queries that would otherwise require scanning every composite key. Rows are
// upserted after each successful ledger commit, so the mirror may briefly
// trail the ledger but never diverges from it.
package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"veryphy/internal/ledger/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS institutions (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    email        TEXT NOT NULL,
    stake_amount DOUBLE PRECISION NOT NULL,
    status       TEXT NOT NULL,
    joined_at    TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS degrees (
    id             TEXT PRIMARY KEY,
    student_id     TEXT NOT NULL,
    student_name   TEXT NOT NULL,
    degree_name    TEXT NOT NULL,
    institution_id TEXT NOT NULL,
    issue_date     TIMESTAMPTZ NOT NULL,
    degree_hash    TEXT NOT NULL,
    status         TEXT NOT NULL,
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS degrees_institution_idx ON degrees (institution_id);
`

// Store is the pgx-backed projection.
type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Migrate creates the projection tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("mirror migrate: %w", err)
	}
	return nil
}

// UpsertInstitution writes the current institution snapshot.
func (s *Store) UpsertInstitution(ctx context.Context, inst models.Institution) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO institutions(id,name,email,stake_amount,status,joined_at,updated_at)
VALUES($1,$2,$3,$4,$5,$6,now())
ON CONFLICT (id) DO UPDATE SET
  name=EXCLUDED.name,
  email=EXCLUDED.email,
  stake_amount=EXCLUDED.stake_amount,
  status=EXCLUDED.status,
  updated_at=now()
`, inst.ID, inst.Name, inst.Email, inst.StakeAmount, string(inst.Status), inst.JoinedAt)
	if err != nil {
		return fmt.Errorf("mirror upsert institution: %w", err)
	}
	return nil
}

// UpsertDegree writes the current degree snapshot.
func (s *Store) UpsertDegree(ctx context.Context, deg models.Degree) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO degrees(id,student_id,student_name,degree_name,institution_id,issue_date,degree_hash,status,updated_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,now())
ON CONFLICT (id) DO UPDATE SET
  status=EXCLUDED.status,
  updated_at=now()
`, deg.ID, deg.StudentID, deg.StudentName, deg.DegreeName, deg.InstitutionID, deg.IssueDate, deg.Hash, string(deg.Status))
	if err != nil {
		return fmt.Errorf("mirror upsert degree: %w", err)
	}
	return nil
}

// ListInstitutions returns all projected institutions, newest first.
func (s *Store) ListInstitutions(ctx context.Context, limit int) ([]models.Institution, error) {
	rows, err := s.db.Query(ctx, `
SELECT id,name,email,stake_amount,status,joined_at
FROM institutions
ORDER BY joined_at DESC, id ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("mirror list institutions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Institution, 0)
	for rows.Next() {
		var inst models.Institution
		var status string
		var joinedAt time.Time
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.Email, &inst.StakeAmount, &status, &joinedAt); err != nil {
			return nil, err
		}
		inst.Status = models.InstitutionStatus(status)
		inst.JoinedAt = joinedAt
		out = append(out, inst)
	}
	return out, rows.Err()
}

// ListDegrees returns projected degrees, optionally filtered by institution.
func (s *Store) ListDegrees(ctx context.Context, institutionID string, limit int) ([]models.Degree, error) {
	query := `
SELECT id,student_id,student_name,degree_name,institution_id,issue_date,degree_hash,status
FROM degrees
WHERE ($1 = '' OR institution_id = $1)
ORDER BY issue_date DESC, id ASC
LIMIT $2
`
	rows, err := s.db.Query(ctx, query, institutionID, limit)
	if err != nil {
		return nil, fmt.Errorf("mirror list degrees: %w", err)
	}
	defer rows.Close()

	out := make([]models.Degree, 0)
	for rows.Next() {
		var deg models.Degree
		var status string
		if err := rows.Scan(&deg.ID, &deg.StudentID, &deg.StudentName, &deg.DegreeName, &deg.InstitutionID, &deg.IssueDate, &deg.Hash, &status); err != nil {
			return nil, err
		}
		deg.Status = models.DegreeStatus(status)
		out = append(out, deg)
	}
	return out, rows.Err()
}
