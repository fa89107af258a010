package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cpted-sync/internal/domain"
	"cpted-sync/internal/scoring"
)

// PostgresAssessmentsRepo is the canonical assessment store.
type PostgresAssessmentsRepo struct {
	db *sql.DB
}

func NewPostgresAssessmentsRepo(db *sql.DB) *PostgresAssessmentsRepo {
	return &PostgresAssessmentsRepo{db: db}
}

var _ AssessmentsRepo = (*PostgresAssessmentsRepo)(nil)

// ApplySync runs the whole metadata write as one transaction:
//
//  1. upsert the assessment row (created_at preserved on update)
//  2. replace-all zone_scores
//  3. replace-all item_scores (item identities are stable, so photo rows
//     referencing them stay valid across the replace; the FK is deferred
//     to commit)
//  4. update metadata of photos the server already knows about
//  5. recompute zone averages/completion and the overall score from the
//     just-written raw item scores; client-submitted aggregates are never
//     trusted
//
// Any failure rolls the whole thing back; the remote tables are left
// exactly as they were.
func (r *PostgresAssessmentsRepo) ApplySync(ctx context.Context, payload *domain.SyncPayload) (*domain.SyncResult, error) {
	a := payload.Assessment
	if a.ID == "" {
		return nil, fmt.Errorf("assessment id is required")
	}

	recs, err := json.Marshal(a.Recommendations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recommendations: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin sync transaction: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	// Optimistic concurrency: lock the row and compare versions before
	// touching anything else.
	var storedVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT sync_version FROM assessments WHERE assessment_id = $1 FOR UPDATE`,
		a.ID,
	).Scan(&storedVersion)
	switch {
	case err == sql.ErrNoRows:
		storedVersion = 0
	case err != nil:
		return nil, fmt.Errorf("failed to read sync version: %w", err)
	default:
		if a.SyncVersion < storedVersion {
			return nil, fmt.Errorf("assessment %s: push carries version %d, server has %d: %w",
				a.ID, a.SyncVersion, storedVersion, ErrVersionConflict)
		}
	}

	now := time.Now().UTC()
	newVersion := storedVersion + 1

	// Step 1: upsert the assessment. created_at stays whatever it was on
	// first insert; overall_score is written in step 5.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO assessments (
			assessment_id, status, property_name, property_address, property_type,
			assessor_name, assessment_date, recommendations, sync_version,
			synced_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (assessment_id) DO UPDATE SET
			status = EXCLUDED.status,
			property_name = EXCLUDED.property_name,
			property_address = EXCLUDED.property_address,
			property_type = EXCLUDED.property_type,
			assessor_name = EXCLUDED.assessor_name,
			assessment_date = EXCLUDED.assessment_date,
			recommendations = EXCLUDED.recommendations,
			sync_version = EXCLUDED.sync_version,
			synced_at = EXCLUDED.synced_at,
			updated_at = EXCLUDED.updated_at`,
		a.ID, a.Status, a.PropertyName, a.PropertyAddress, a.PropertyType,
		a.AssessorName, a.AssessmentDate, recs, newVersion, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert assessment: %w", err)
	}

	// Step 2: replace-all zone rollups. No diffing; the set is small and a
	// full replace has no partial-update ambiguity.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM zone_scores WHERE assessment_id = $1`, a.ID); err != nil {
		return nil, fmt.Errorf("failed to clear zone scores: %w", err)
	}
	for _, z := range payload.ZoneScores {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO zone_scores (assessment_id, zone_key, zone_name, sort_order, findings)
			VALUES ($1, $2, $3, $4, $5)`,
			a.ID, z.ZoneKey, z.ZoneName, z.SortOrder, z.Findings,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert zone score %s: %w", z.ZoneKey, err)
		}
	}

	// Step 3: replace-all item scores by identity.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM item_scores WHERE assessment_id = $1`, a.ID); err != nil {
		return nil, fmt.Errorf("failed to clear item scores: %w", err)
	}
	for _, it := range payload.ItemScores {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO item_scores (
				item_id, assessment_id, zone_key, principle_key, sort_order,
				item_text, score, is_na, notes
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			it.ID, a.ID, it.ZoneKey, it.PrincipleKey, it.SortOrder,
			it.ItemText, nullInt(it.Score), it.IsNA, it.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert item score %s: %w", it.ID, err)
		}
	}

	// Step 4: refresh metadata of photos the server already has. New photos
	// arrive through the photo upload endpoint, never here, so an UPDATE
	// that matches zero rows is the expected case for them.
	for _, p := range payload.Photos {
		_, err := tx.ExecContext(ctx, `
			UPDATE photos SET
				item_score_id = $2,
				zone_key = $3,
				latitude = $4,
				longitude = $5,
				heading = $6,
				annotation = $7
			WHERE photo_id = $1`,
			p.ID, nullStr(p.ItemScoreID), p.ZoneKey,
			nullFloat(p.Latitude), nullFloat(p.Longitude), nullFloat(p.Heading),
			p.Annotation,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update photo metadata %s: %w", p.ID, err)
		}
	}

	// Step 5: recompute rollups from the raw items just written.
	zones := make([]domain.ZoneScore, len(payload.ZoneScores))
	copy(zones, payload.ZoneScores)
	overall := scoring.Recompute(zones, payload.ItemScores)

	for _, z := range zones {
		_, err := tx.ExecContext(ctx, `
			UPDATE zone_scores SET average_score = $3, completed = $4
			WHERE assessment_id = $1 AND zone_key = $2`,
			a.ID, z.ZoneKey, nullFloat(z.AverageScore), z.Completed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to write recomputed zone score %s: %w", z.ZoneKey, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE assessments SET overall_score = $2 WHERE assessment_id = $1`,
		a.ID, nullFloat(overall),
	); err != nil {
		return nil, fmt.Errorf("failed to write recomputed overall score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sync transaction: %w", err)
	}

	return &domain.SyncResult{Success: true, SyncedAt: now, SyncVersion: newVersion}, nil
}

// GetAssessment fetches the full remote representation in one call:
// assessment fields, all zone and item rows, and photo metadata (never
// binaries).
func (r *PostgresAssessmentsRepo) GetAssessment(ctx context.Context, id string) (*domain.AssessmentDetail, error) {
	var d domain.AssessmentDetail
	var overall sql.NullFloat64
	var syncedAt sql.NullTime
	var recs []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT assessment_id, status, property_name, property_address, property_type,
		       assessor_name, assessment_date, overall_score, recommendations,
		       sync_version, synced_at, created_at, updated_at
		FROM assessments WHERE assessment_id = $1`, id,
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
	if len(recs) > 0 {
		if err := json.Unmarshal(recs, &d.Assessment.Recommendations); err != nil {
			return nil, fmt.Errorf("failed to parse recommendations: %w", err)
		}
	}

	if d.ZoneScores, err = r.zoneScores(ctx, id); err != nil {
		return nil, err
	}
	if d.ItemScores, err = r.itemScores(ctx, id); err != nil {
		return nil, err
	}
	if d.Photos, err = r.photoMetadata(ctx, id); err != nil {
		return nil, err
	}

	// Attach photo identities to their items so the device can rebuild the
	// item -> photos association without a second request.
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

func (r *PostgresAssessmentsRepo) zoneScores(ctx context.Context, id string) ([]domain.ZoneScore, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT assessment_id, zone_key, zone_name, sort_order, average_score, completed, findings
		FROM zone_scores WHERE assessment_id = $1 ORDER BY sort_order`, id)
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

func (r *PostgresAssessmentsRepo) itemScores(ctx context.Context, id string) ([]domain.ItemScore, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id, assessment_id, zone_key, principle_key, sort_order, item_text, score, is_na, notes
		FROM item_scores WHERE assessment_id = $1 ORDER BY sort_order`, id)
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
			s := int(score.Int64)
			it.Score = &s
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *PostgresAssessmentsRepo) photoMetadata(ctx context.Context, id string) ([]domain.Photo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT photo_id, assessment_id, item_score_id, zone_key, captured_at,
		       latitude, longitude, heading, annotation, content_type
		FROM photos WHERE assessment_id = $1 ORDER BY captured_at, photo_id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	var photos []domain.Photo
	for rows.Next() {
		var p domain.Photo
		var itemID sql.NullString
		var lat, lng, heading sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.AssessmentID, &itemID, &p.ZoneKey, &p.CapturedAt,
			&lat, &lng, &heading, &p.Annotation, &p.ContentType); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		if itemID.Valid {
			p.ItemScoreID = &itemID.String
		}
		if lat.Valid {
			p.Latitude = &lat.Float64
		}
		if lng.Valid {
			p.Longitude = &lng.Float64
		}
		if heading.Valid {
			p.Heading = &heading.Float64
		}
		p.Synced = true
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// ListAssessments returns lightweight summaries for pull-source browsing,
// most recently updated first.
func (r *PostgresAssessmentsRepo) ListAssessments(ctx context.Context) ([]domain.AssessmentSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT assessment_id, status, property_name, property_address,
		       overall_score, synced_at, updated_at
		FROM assessments ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	var out []domain.AssessmentSummary
	for rows.Next() {
		var s domain.AssessmentSummary
		var overall sql.NullFloat64
		var syncedAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.Status, &s.PropertyName, &s.PropertyAddress, &overall, &syncedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assessment summary: %w", err)
		}
		if overall.Valid {
			s.OverallScore = &overall.Float64
		}
		if syncedAt.Valid {
			t := syncedAt.Time
			s.SyncedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
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

func nullStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
