package domain

import "time"

// SyncPayload is the body of POST /sync: one assessment plus the full child
// sets. Photo entries carry metadata only. Client-submitted aggregate fields
// (zone averages, overall score) are informational; the server recomputes
// them from the raw item scores before committing.
type SyncPayload struct {
	Assessment Assessment  `json:"assessment"`
	ZoneScores []ZoneScore `json:"zone_scores"`
	ItemScores []ItemScore `json:"item_scores"`
	Photos     []Photo     `json:"photos"`
}

// SyncResult is the response to a successful POST /sync.
type SyncResult struct {
	Success     bool      `json:"success"`
	SyncedAt    time.Time `json:"synced_at"`
	SyncVersion int       `json:"sync_version"`
}

// AssessmentDetail is the full remote representation returned by
// GET /assessments/:id, fetched in one request so a pull sees a consistent
// snapshot.
type AssessmentDetail struct {
	Assessment Assessment  `json:"assessment"`
	ZoneScores []ZoneScore `json:"zone_scores"`
	ItemScores []ItemScore `json:"item_scores"`
	Photos     []Photo     `json:"photos"`
}

// AssessmentSummary is the lightweight listing row for GET /assessments.
type AssessmentSummary struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	PropertyName    string     `json:"property_name"`
	PropertyAddress string     `json:"property_address"`
	OverallScore    *float64   `json:"overall_score"`
	SyncedAt        *time.Time `json:"synced_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
