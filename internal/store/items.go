package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cpted-sync/internal/domain"
	"cpted-sync/internal/scoring"
)

// Item edits recompute the owning assessment's rollups inside the same
// transaction, so a reader never observes raw scores and aggregates from
// different moments.

// SetItemScore records a 1-5 score, or clears it with nil.
func (s *Store) SetItemScore(ctx context.Context, itemID string, score *int) error {
	if score != nil && (*score < 1 || *score > 5) {
		return fmt.Errorf("score must be between 1 and 5, got %d", *score)
	}
	return s.updateItem(ctx, itemID,
		`UPDATE item_scores SET score = ? WHERE item_id = ?`, nullInt(score), itemID)
}

// SetItemNA marks an item inapplicable. Any stored score is left in place
// but stops participating in aggregation.
func (s *Store) SetItemNA(ctx context.Context, itemID string, na bool) error {
	return s.updateItem(ctx, itemID,
		`UPDATE item_scores SET is_na = ? WHERE item_id = ?`, na, itemID)
}

// SetItemNotes updates the free-text notes.
func (s *Store) SetItemNotes(ctx context.Context, itemID, notes string) error {
	return s.updateItem(ctx, itemID,
		`UPDATE item_scores SET notes = ? WHERE item_id = ?`, notes, itemID)
}

func (s *Store) updateItem(ctx context.Context, itemID, query string, args ...any) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var assessmentID string
		err := tx.QueryRowContext(ctx,
			`SELECT assessment_id FROM item_scores WHERE item_id = ?`, itemID,
		).Scan(&assessmentID)
		if err == sql.ErrNoRows {
			return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to look up item: %w", err)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update item %s: %w", itemID, err)
		}

		return recomputeTx(ctx, tx, assessmentID)
	})
}

// recomputeTx re-derives zone averages/completion and the overall score
// from the current item rows, all within the caller's transaction.
func recomputeTx(ctx context.Context, tx *sql.Tx, assessmentID string) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT item_id, zone_key, principle_key, score, is_na
		FROM item_scores WHERE assessment_id = ? ORDER BY sort_order`, assessmentID)
	if err != nil {
		return fmt.Errorf("failed to load items for recompute: %w", err)
	}
	defer rows.Close()

	var items []domain.ItemScore
	for rows.Next() {
		var it domain.ItemScore
		var score sql.NullInt64
		if err := rows.Scan(&it.ID, &it.ZoneKey, &it.PrincipleKey, &score, &it.IsNA); err != nil {
			return fmt.Errorf("failed to scan item for recompute: %w", err)
		}
		if score.Valid {
			v := int(score.Int64)
			it.Score = &v
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	zrows, err := tx.QueryContext(ctx,
		`SELECT zone_key FROM zone_scores WHERE assessment_id = ? ORDER BY sort_order`, assessmentID)
	if err != nil {
		return fmt.Errorf("failed to load zones for recompute: %w", err)
	}
	defer zrows.Close()

	var zones []domain.ZoneScore
	for zrows.Next() {
		var z domain.ZoneScore
		if err := zrows.Scan(&z.ZoneKey); err != nil {
			return fmt.Errorf("failed to scan zone for recompute: %w", err)
		}
		zones = append(zones, z)
	}
	if err := zrows.Err(); err != nil {
		return err
	}

	overall := scoring.Recompute(zones, items)

	for _, z := range zones {
		if _, err := tx.ExecContext(ctx, `
			UPDATE zone_scores SET average_score = ?, completed = ?
			WHERE assessment_id = ? AND zone_key = ?`,
			nullFloat(z.AverageScore), z.Completed, assessmentID, z.ZoneKey,
		); err != nil {
			return fmt.Errorf("failed to write recomputed zone %s: %w", z.ZoneKey, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE assessments SET overall_score = ?, updated_at = ? WHERE assessment_id = ?`,
		nullFloat(overall), time.Now().UTC(), assessmentID,
	); err != nil {
		return fmt.Errorf("failed to write recomputed overall score: %w", err)
	}
	return nil
}
