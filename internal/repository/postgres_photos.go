package repository

import (
	"context"
	"database/sql"
	"fmt"

	"cpted-sync/internal/domain"
)

type PostgresPhotosRepo struct {
	db *sql.DB
}

func NewPostgresPhotosRepo(db *sql.DB) *PostgresPhotosRepo {
	return &PostgresPhotosRepo{db: db}
}

var _ PhotosRepo = (*PostgresPhotosRepo)(nil)

// UpsertPhoto inserts or replaces a photo row keyed by the photo's own
// identity. A retried upload therefore overwrites rather than duplicates.
func (r *PostgresPhotosRepo) UpsertPhoto(ctx context.Context, p domain.Photo, filePath string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO photos (
			photo_id, assessment_id, item_score_id, zone_key, captured_at,
			latitude, longitude, heading, annotation, content_type, file_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (photo_id) DO UPDATE SET
			assessment_id = EXCLUDED.assessment_id,
			item_score_id = EXCLUDED.item_score_id,
			zone_key = EXCLUDED.zone_key,
			captured_at = EXCLUDED.captured_at,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			heading = EXCLUDED.heading,
			annotation = EXCLUDED.annotation,
			content_type = EXCLUDED.content_type,
			file_path = EXCLUDED.file_path`,
		p.ID, p.AssessmentID, nullStr(p.ItemScoreID), p.ZoneKey, p.CapturedAt,
		nullFloat(p.Latitude), nullFloat(p.Longitude), nullFloat(p.Heading),
		p.Annotation, p.ContentType, filePath,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert photo %s: %w", p.ID, err)
	}
	return nil
}

func (r *PostgresPhotosRepo) GetPhoto(ctx context.Context, id string) (*domain.Photo, string, error) {
	var p domain.Photo
	var itemID sql.NullString
	var lat, lng, heading sql.NullFloat64
	var filePath string

	err := r.db.QueryRowContext(ctx, `
		SELECT photo_id, assessment_id, item_score_id, zone_key, captured_at,
		       latitude, longitude, heading, annotation, content_type, file_path
		FROM photos WHERE photo_id = $1`, id,
	).Scan(&p.ID, &p.AssessmentID, &itemID, &p.ZoneKey, &p.CapturedAt,
		&lat, &lng, &heading, &p.Annotation, &p.ContentType, &filePath)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get photo: %w", err)
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
	return &p, filePath, nil
}

func (r *PostgresPhotosRepo) DeletePhoto(ctx context.Context, id string) (string, error) {
	var filePath string
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM photos WHERE photo_id = $1 RETURNING file_path`, id,
	).Scan(&filePath)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to delete photo: %w", err)
	}
	return filePath, nil
}
