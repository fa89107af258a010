package domain

import "time"

// Photo metadata travels with sync payloads; the binary payload never does.
// On the server the binary lives on disk (ContentType + a path kept in the
// photos table); on the device it is stored inline in SQLite as a
// self-describing data: URL string, because the embedded store has been
// observed to silently corrupt detached binary references.
type Photo struct {
	ID           string     `json:"id"`
	AssessmentID string     `json:"assessment_id"`
	ItemScoreID  *string    `json:"item_score_id,omitempty"`
	ZoneKey      string     `json:"zone_key,omitempty"`
	CapturedAt   time.Time  `json:"captured_at"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	Heading      *float64   `json:"heading,omitempty"`
	Annotation   string     `json:"annotation,omitempty"`
	ContentType  string     `json:"content_type"`
	// Synced is the device's only record of upload progress: set true once
	// the server has confirmed acceptance of the binary.
	Synced bool `json:"synced"`
}
