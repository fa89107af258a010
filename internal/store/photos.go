package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"strings"

	"cpted-sync/internal/domain"
)

// The device keeps photo binaries inline as data:<type>;base64,<payload>
// strings. The target devices' embedded store has silently corrupted
// detached binary references in the field; an inline self-describing string
// survives every backup/restore path SQLite itself survives.

// EncodeDataURL packs a binary into the inline storage representation.
func EncodeDataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURL unpacks the inline representation back into content type
// and raw bytes.
func DecodeDataURL(s string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URL")
	}
	contentType := strings.TrimSuffix(meta, ";base64")
	if contentType == meta {
		return "", nil, fmt.Errorf("data URL is not base64-encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("failed to decode data URL payload: %w", err)
	}
	return contentType, data, nil
}

// AddPhoto stores a captured photo with its binary inline. Keyed by the
// photo's identity, so re-adding after a failed capture flow overwrites.
func (s *Store) AddPhoto(ctx context.Context, p domain.Photo, data []byte) error {
	if p.ID == "" || p.AssessmentID == "" {
		return fmt.Errorf("photo id and assessment id are required")
	}
	if len(data) == 0 {
		return fmt.Errorf("photo %s: empty binary", p.ID)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO photos (
			photo_id, assessment_id, item_score_id, zone_key, captured_at,
			latitude, longitude, heading, annotation, content_type, data_url, synced
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AssessmentID, nullStrPtr(p.ItemScoreID), p.ZoneKey, p.CapturedAt,
		nullFloat(p.Latitude), nullFloat(p.Longitude), nullFloat(p.Heading),
		p.Annotation, p.ContentType, EncodeDataURL(p.ContentType, data), p.Synced,
	)
	if err != nil {
		return fmt.Errorf("failed to insert photo %s: %w", p.ID, err)
	}
	return nil
}

// GetPhoto returns metadata and decoded binary for one photo.
func (s *Store) GetPhoto(ctx context.Context, id string) (*domain.Photo, []byte, error) {
	p, dataURL, err := s.scanPhoto(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	_, data, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, nil, fmt.Errorf("photo %s: %w", id, err)
	}
	return p, data, nil
}

func (s *Store) scanPhoto(ctx context.Context, id string) (*domain.Photo, string, error) {
	var p domain.Photo
	var itemID sql.NullString
	var lat, lng, heading sql.NullFloat64
	var dataURL string

	err := s.db.QueryRowContext(ctx, `
		SELECT photo_id, assessment_id, item_score_id, zone_key, captured_at,
		       latitude, longitude, heading, annotation, content_type, data_url, synced
		FROM photos WHERE photo_id = ?`, id,
	).Scan(&p.ID, &p.AssessmentID, &itemID, &p.ZoneKey, &p.CapturedAt,
		&lat, &lng, &heading, &p.Annotation, &p.ContentType, &dataURL, &p.Synced)
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
	return &p, dataURL, nil
}

// photoMetadata lists photo metadata for one assessment, binary excluded.
func (s *Store) photoMetadata(ctx context.Context, assessmentID string) ([]domain.Photo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT photo_id, assessment_id, item_score_id, zone_key, captured_at,
		       latitude, longitude, heading, annotation, content_type, synced
		FROM photos WHERE assessment_id = ? ORDER BY captured_at, photo_id`, assessmentID)
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
			&lat, &lng, &heading, &p.Annotation, &p.ContentType, &p.Synced); err != nil {
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
		photos = append(photos, p)
	}
	return photos, rows.Err()
}

// UnsyncedPhotos returns photos whose binary has not been confirmed
// uploaded, with decoded binaries, oldest first.
func (s *Store) UnsyncedPhotos(ctx context.Context, assessmentID string) ([]domain.Photo, [][]byte, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT photo_id FROM photos
		WHERE assessment_id = ? AND synced = 0
		ORDER BY captured_at, photo_id`, assessmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query unsynced photos: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, nil, fmt.Errorf("failed to scan photo id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var photos []domain.Photo
	var blobs [][]byte
	for _, id := range ids {
		p, data, err := s.GetPhoto(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		photos = append(photos, *p)
		blobs = append(blobs, data)
	}
	return photos, blobs, nil
}

// MarkPhotoSynced records confirmed server acceptance of the binary. This
// flag is the entire upload bookkeeping; there is no separate queue.
func (s *Store) MarkPhotoSynced(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE photos SET synced = 1 WHERE photo_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark photo synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	return nil
}

func nullStrPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
