package domain

import "time"

// Assessment status lifecycle: created in the field as in_progress,
// marked completed by the assessor, stamped synced after a successful push.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusSynced     = "synced"
)

// Assessment is one fieldwork engagement (corresponds to the assessments table
// on the server and the assessments table in the device store).
// The ID is a client-generated UUID so records created offline never collide.
type Assessment struct {
	ID              string           `json:"id"`
	Status          string           `json:"status"`
	PropertyName    string           `json:"property_name"`
	PropertyAddress string           `json:"property_address"`
	PropertyType    string           `json:"property_type,omitempty"`
	AssessorName    string           `json:"assessor_name"`
	AssessmentDate  time.Time        `json:"assessment_date"`
	OverallScore    *float64         `json:"overall_score"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`
	// SyncVersion is an optimistic counter bumped by the server on every
	// accepted push. A push carrying a stale version is rejected with a
	// conflict so two devices cannot silently overwrite each other.
	SyncVersion int        `json:"sync_version"`
	SyncedAt    *time.Time `json:"synced_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Recommendation is embedded in the assessment payload, never synced as a
// first-class entity.
type Recommendation struct {
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Timeline    string `json:"timeline,omitempty"`
}

// ZoneScore is a derived per-zone rollup. One row per template zone is
// created when the assessment is created; averages and completion are
// recomputed from item scores, never edited directly.
type ZoneScore struct {
	AssessmentID string   `json:"assessment_id"`
	ZoneKey      string   `json:"zone_key"`
	ZoneName     string   `json:"zone_name"`
	SortOrder    int      `json:"sort_order"`
	AverageScore *float64 `json:"average_score"`
	Completed    bool     `json:"completed"`
	Findings     string   `json:"findings,omitempty"`
}

// ItemScore is one concrete checklist question for one assessment. The full
// template is expanded once at assessment creation; after that the item's
// identity, zone/principle keys and sort order never change, which is what
// lets guidance and report lookups match an item across syncs.
type ItemScore struct {
	ID           string `json:"id"`
	AssessmentID string `json:"assessment_id"`
	ZoneKey      string `json:"zone_key"`
	PrincipleKey string `json:"principle_key"`
	SortOrder    int    `json:"sort_order"`
	ItemText     string `json:"item_text"`
	// Score is 1..5 or nil (not yet scored). When IsNA is true the stored
	// score, if any, is excluded from all aggregation.
	Score    *int     `json:"score"`
	IsNA     bool     `json:"is_na"`
	Notes    string   `json:"notes,omitempty"`
	PhotoIDs []string `json:"photo_ids,omitempty"`
}
