// internal/store/diagnosis.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"coaching-workers/internal/models"
)

// ErrNotFound is returned when no diagnosis exists for a follow-up.
var ErrNotFound = errors.New("diagnosis not found")

// DiagnosisRepository loads and stores follow-up diagnoses.
type DiagnosisRepository interface {
	Get(ctx context.Context, followupID string) (*models.DiagnosisRecord, error)
	Save(ctx context.Context, rec *models.DiagnosisRecord) error
}

// PostgresDiagnosisRepository keeps diagnoses as JSONB in followup_diagnoses.
type PostgresDiagnosisRepository struct {
	db *sql.DB
}

func NewPostgresDiagnosisRepository(db *sql.DB) *PostgresDiagnosisRepository {
	return &PostgresDiagnosisRepository{db: db}
}

func (r *PostgresDiagnosisRepository) Get(ctx context.Context, followupID string) (*models.DiagnosisRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT followup_id, user_id, followup_type, diagnosis, created_at
		FROM followup_diagnoses WHERE followup_id = $1`, followupID)

	var rec models.DiagnosisRecord
	var followupType string
	var raw []byte
	if err := row.Scan(&rec.FollowupID, &rec.UserID, &followupType, &raw, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query diagnosis %s: %w", followupID, err)
	}
	rec.FollowupType = models.FollowupCategoryType(followupType)

	// A stored JSON null means the AI service returned nothing usable.
	if err := json.Unmarshal(raw, &rec.Diagnosis); err != nil {
		return nil, fmt.Errorf("decode diagnosis %s: %w", followupID, err)
	}
	return &rec, nil
}

// Save upserts rec by follow-up id and sets rec.CreatedAt from the stored row.
func (r *PostgresDiagnosisRepository) Save(ctx context.Context, rec *models.DiagnosisRecord) error {
	raw, err := json.Marshal(rec.Diagnosis)
	if err != nil {
		return fmt.Errorf("encode diagnosis: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO followup_diagnoses (followup_id, user_id, followup_type, diagnosis, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (followup_id) DO UPDATE
		SET diagnosis = EXCLUDED.diagnosis, followup_type = EXCLUDED.followup_type, updated_at = NOW()
		RETURNING created_at`,
		rec.FollowupID, rec.UserID, string(rec.FollowupType), raw)

	if err := row.Scan(&rec.CreatedAt); err != nil {
		return fmt.Errorf("save diagnosis %s: %w", rec.FollowupID, err)
	}
	return nil
}
