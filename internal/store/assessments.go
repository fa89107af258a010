package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cpted-sync/internal/domain"
	"cpted-sync/internal/template"

	"go.uber.org/zap"
)

// ErrNotFound is returned for unknown local identities.
var ErrNotFound = errors.New("not found")

// CreateAssessment expands the checklist template exactly once into
// concrete zone and item rows. Item identities generated here are final:
// nothing ever regenerates them, which keeps guidance and report lookups
// stable across pushes and pulls.
func (s *Store) CreateAssessment(ctx context.Context, propertyName, propertyAddress, propertyType, assessorName string) (*domain.Assessment, error) {
	now := time.Now().UTC()
	a := template.NewAssessment(now)
	a.PropertyName = propertyName
	a.PropertyAddress = propertyAddress
	a.PropertyType = propertyType
	a.AssessorName = assessorName

	zones, items := s.checklist.Expand(a.ID)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertAssessment(ctx, tx, a); err != nil {
			return err
		}
		for _, z := range zones {
			if err := insertZoneScore(ctx, tx, z); err != nil {
				return err
			}
		}
		for _, it := range items {
			if err := insertItemScore(ctx, tx, it); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("assessment created",
		zap.String("assessment_id", a.ID),
		zap.Int("zones", len(zones)),
		zap.Int("items", len(items)),
	)
	return &a, nil
}

func insertAssessment(ctx context.Context, tx *sql.Tx, a domain.Assessment) error {
	recs, err := json.Marshal(a.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO assessments (
			assessment_id, status, property_name, property_address, property_type,
			assessor_name, assessment_date, overall_score, recommendations,
			sync_version, synced_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Status, a.PropertyName, a.PropertyAddress, a.PropertyType,
		a.AssessorName, a.AssessmentDate, nullFloat(a.OverallScore), string(recs),
		a.SyncVersion, nullTime(a.SyncedAt), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert assessment: %w", err)
	}
	return nil
}

func insertZoneScore(ctx context.Context, tx *sql.Tx, z domain.ZoneScore) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO zone_scores (assessment_id, zone_key, zone_name, sort_order, average_score, completed, findings)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		z.AssessmentID, z.ZoneKey, z.ZoneName, z.SortOrder, nullFloat(z.AverageScore), z.Completed, z.Findings,
	)
	if err != nil {
		return fmt.Errorf("failed to insert zone score %s: %w", z.ZoneKey, err)
	}
	return nil
}

func insertItemScore(ctx context.Context, tx *sql.Tx, it domain.ItemScore) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO item_scores (item_id, assessment_id, zone_key, principle_key, sort_order, item_text, score, is_na, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.AssessmentID, it.ZoneKey, it.PrincipleKey, it.SortOrder,
		it.ItemText, nullInt(it.Score), it.IsNA, it.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item score %s: %w", it.ID, err)
	}
	return nil
}

// GetAssessment returns the full local representation: assessment, zone and
// item rows, and photo metadata with item associations attached.
func (s *Store) GetAssessment(ctx context.Context, id string) (*domain.AssessmentDetail, error) {
	var d domain.AssessmentDetail
	var overall sql.NullFloat64
	var syncedAt sql.NullTime
	var recs string

	err := s.db.QueryRowContext(ctx, `
		SELECT assessment_id, status, property_name, property_address, property_type,
		       assessor_name, assessment_date, overall_score, recommendations,
		       sync_version, synced_at, created_at, updated_at
		FROM assessments WHERE assessment_id = ?`, id,
	).Scan(
		&d.Assessment.ID, &d.Assessment.Status, &d.Assessment.PropertyName,
		&d.Assessment.PropertyAddress, &d.Assessment.PropertyType,
		&d.Assessment.AssessorName, &d.Assessment.AssessmentDate,
		&overall, &recs, &d.Assessment.SyncVersion, &syncedAt,
		&d.Assessment.CreatedAt, &d.Assessment.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment: %w", err)
	}
	if overall.Valid {
		d.Assessment.OverallScore = &overall.Float64
	}
	if syncedAt.Valid {
		t := syncedAt.Time
		d.Assessment.SyncedAt = &t
	}
	if recs != "" {
		if err := json.Unmarshal([]byte(recs), &d.Assessment.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to parse recommendations: %w", err)
		}
	}

	if d.ZoneScores, err = s.zoneScores(ctx, id); err != nil {
		return nil, err
	}
	if d.ItemScores, err = s.itemScores(ctx, id); err != nil {
		return nil, err
	}
	if d.Photos, err = s.photoMetadata(ctx, id); err != nil {
		return nil, err
	}

	byItem := make(map[string][]string)
	for _, p := range d.Photos {
		if p.ItemScoreID != nil {
			byItem[*p.ItemScoreID] = append(byItem[*p.ItemScoreID], p.ID)
		}
	}
	for i := range d.ItemScores {
		d.ItemScores[i].PhotoIDs = byItem[d.ItemScores[i].ID]
	}

	return &d, nil
}

func (s *Store) zoneScores(ctx context.Context, id string) ([]domain.ZoneScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT assessment_id, zone_key, zone_name, sort_order, average_score, completed, findings
		FROM zone_scores WHERE assessment_id = ? ORDER BY sort_order`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query zone scores: %w", err)
	}
	defer rows.Close()

	var zones []domain.ZoneScore
	for rows.Next() {
		var z domain.ZoneScore
		var avg sql.NullFloat64
		if err := rows.Scan(&z.AssessmentID, &z.ZoneKey, &z.ZoneName, &z.SortOrder, &avg, &z.Completed, &z.Findings); err != nil {
			return nil, fmt.Errorf("failed to scan zone score: %w", err)
		}
		if avg.Valid {
			z.AverageScore = &avg.Float64
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func (s *Store) itemScores(ctx context.Context, id string) ([]domain.ItemScore, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, assessment_id, zone_key, principle_key, sort_order, item_text, score, is_na, notes
		FROM item_scores WHERE assessment_id = ? ORDER BY sort_order`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query item scores: %w", err)
	}
	defer rows.Close()

	var items []domain.ItemScore
	for rows.Next() {
		var it domain.ItemScore
		var score sql.NullInt64
		if err := rows.Scan(&it.ID, &it.AssessmentID, &it.ZoneKey, &it.PrincipleKey, &it.SortOrder, &it.ItemText, &score, &it.IsNA, &it.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan item score: %w", err)
		}
		if score.Valid {
			v := int(score.Int64)
			it.Score = &v
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListAssessments returns local summaries, most recently updated first.
func (s *Store) ListAssessments(ctx context.Context) ([]domain.AssessmentSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT assessment_id, status, property_name, property_address,
		       overall_score, synced_at, updated_at
		FROM assessments ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var out []domain.AssessmentSummary
	for rows.Next() {
		var a domain.AssessmentSummary
		var overall sql.NullFloat64
		var syncedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.Status, &a.PropertyName, &a.PropertyAddress, &overall, &syncedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assessment summary: %w", err)
		}
		if overall.Valid {
			a.OverallScore = &overall.Float64
		}
		if syncedAt.Valid {
			t := syncedAt.Time
			a.SyncedAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteAssessment purges the assessment and, via cascading foreign keys,
// every child zone, item and photo row. The sync engine never calls this;
// it is a deliberate user action.
func (s *Store) DeleteAssessment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assessments WHERE assessment_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete assessment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	s.logger.Info("assessment deleted", zap.String("assessment_id", id))
	return nil
}

// SetStatus updates the lifecycle status.
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	switch status {
	case domain.StatusInProgress, domain.StatusCompleted, domain.StatusSynced:
	default:
		return fmt.Errorf("invalid status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE assessments SET status = ?, updated_at = ? WHERE assessment_id = ?`,
		status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetRecommendations replaces the embedded recommendation list.
func (s *Store) SetRecommendations(ctx context.Context, id string, recs []domain.Recommendation) error {
	raw, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("failed to marshal recommendations: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE assessments SET recommendations = ?, updated_at = ? WHERE assessment_id = ?`,
		string(raw), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update recommendations: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetZoneFindings updates the free-text findings of one zone.
func (s *Store) SetZoneFindings(ctx context.Context, assessmentID, zoneKey, findings string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE zone_scores SET findings = ? WHERE assessment_id = ? AND zone_key = ?`,
		findings, assessmentID, zoneKey)
	if err != nil {
		return fmt.Errorf("failed to update zone findings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("zone %s/%s: %w", assessmentID, zoneKey, ErrNotFound)
	}
	return nil
}

// MarkSynced stamps the local row after a successful push with the
// server-issued timestamp and version.
func (s *Store) MarkSynced(ctx context.Context, id string, syncedAt time.Time, version int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE assessments SET synced_at = ?, sync_version = ?, status = ?, updated_at = ?
		WHERE assessment_id = ?`,
		syncedAt, version, domain.StatusSynced, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark assessment synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	return nil
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}
