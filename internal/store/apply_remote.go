package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cpted-sync/internal/domain"

	"go.uber.org/zap"
)

// ApplyRemote replaces the local copy of one assessment with the canonical
// remote representation: upsert the assessment row, replace-all zone and
// item rows, and drop the local photo rows (binaries are re-downloaded
// afterwards, one by one, outside this transaction). The whole metadata
// write is atomic; a failure leaves the prior local copy untouched.
func (s *Store) ApplyRemote(ctx context.Context, d *domain.AssessmentDetail) error {
	if d == nil || d.Assessment.ID == "" {
		return fmt.Errorf("assessment id is required")
	}
	id := d.Assessment.ID

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		recs, err := json.Marshal(d.Assessment.Recommendations)
		if err != nil {
			return fmt.Errorf("failed to marshal recommendations: %w", err)
		}

		a := d.Assessment
		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO assessments (
				assessment_id, status, property_name, property_address, property_type,
				assessor_name, assessment_date, overall_score, recommendations,
				sync_version, synced_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.Status, a.PropertyName, a.PropertyAddress, a.PropertyType,
			a.AssessorName, a.AssessmentDate, nullFloat(a.OverallScore), string(recs),
			a.SyncVersion, nullTime(a.SyncedAt), createdAt, a.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert assessment: %w", err)
		}

		// Mirror the push strategy: full replace, no diffing.
		if _, err := tx.ExecContext(ctx, `DELETE FROM zone_scores WHERE assessment_id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear zone scores: %w", err)
		}
		for _, z := range d.ZoneScores {
			z.AssessmentID = id
			if err := insertZoneScore(ctx, tx, z); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM item_scores WHERE assessment_id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear item scores: %w", err)
		}
		for _, it := range d.ItemScores {
			it.AssessmentID = id
			if err := insertItemScore(ctx, tx, it); err != nil {
				return err
			}
		}

		// Photo rows are rebuilt from downloaded binaries after this
		// transaction commits.
		if _, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE assessment_id = ?`, id); err != nil {
			return fmt.Errorf("failed to clear photos: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("remote assessment applied",
		zap.String("assessment_id", id),
		zap.Int("zones", len(d.ZoneScores)),
		zap.Int("items", len(d.ItemScores)),
	)
	return nil
}
