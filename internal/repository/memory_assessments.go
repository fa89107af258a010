package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cpted-sync/internal/domain"
	"cpted-sync/internal/scoring"
)

// MemoryRepo keeps everything in process memory. It backs the server when
// no database is configured (local development) and the HTTP handler tests.
// Semantics mirror the Postgres implementation, including server-side
// recompute and the version check.
type MemoryRepo struct {
	mu          sync.RWMutex
	assessments map[string]*memAssessment
	photos      map[string]*memPhoto
}

type memAssessment struct {
	assessment domain.Assessment
	zones      []domain.ZoneScore
	items      []domain.ItemScore
}

type memPhoto struct {
	photo    domain.Photo
	filePath string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		assessments: make(map[string]*memAssessment),
		photos:      make(map[string]*memPhoto),
	}
}

var (
	_ AssessmentsRepo = (*MemoryRepo)(nil)
	_ PhotosRepo      = (*MemoryRepo)(nil)
)

func (m *MemoryRepo) ApplySync(ctx context.Context, payload *domain.SyncPayload) (*domain.SyncResult, error) {
	if payload.Assessment.ID == "" {
		return nil, fmt.Errorf("assessment id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	a := payload.Assessment
	storedVersion := 0
	if existing, ok := m.assessments[a.ID]; ok {
		storedVersion = existing.assessment.SyncVersion
		if a.SyncVersion < storedVersion {
			return nil, fmt.Errorf("assessment %s: push carries version %d, server has %d: %w",
				a.ID, a.SyncVersion, storedVersion, ErrVersionConflict)
		}
		a.CreatedAt = existing.assessment.CreatedAt
	}

	now := time.Now().UTC()
	a.SyncVersion = storedVersion + 1
	a.SyncedAt = &now
	a.UpdatedAt = now
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}

	zones := make([]domain.ZoneScore, len(payload.ZoneScores))
	copy(zones, payload.ZoneScores)
	items := make([]domain.ItemScore, len(payload.ItemScores))
	copy(items, payload.ItemScores)

	// Never trust client aggregates; recompute from the raw items.
	a.OverallScore = scoring.Recompute(zones, items)

	for _, p := range payload.Photos {
		if existing, ok := m.photos[p.ID]; ok {
			existing.photo.ItemScoreID = p.ItemScoreID
			existing.photo.ZoneKey = p.ZoneKey
			existing.photo.Latitude = p.Latitude
			existing.photo.Longitude = p.Longitude
			existing.photo.Heading = p.Heading
			existing.photo.Annotation = p.Annotation
		}
	}

	m.assessments[a.ID] = &memAssessment{assessment: a, zones: zones, items: items}

	return &domain.SyncResult{Success: true, SyncedAt: now, SyncVersion: a.SyncVersion}, nil
}

func (m *MemoryRepo) GetAssessment(ctx context.Context, id string) (*domain.AssessmentDetail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.assessments[id]
	if !ok {
		return nil, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}

	d := &domain.AssessmentDetail{Assessment: rec.assessment}
	d.ZoneScores = append(d.ZoneScores, rec.zones...)
	d.ItemScores = append(d.ItemScores, rec.items...)

	byItem := make(map[string][]string)
	for _, mp := range m.photos {
		if mp.photo.AssessmentID == id {
			d.Photos = append(d.Photos, mp.photo)
			if mp.photo.ItemScoreID != nil {
				byItem[*mp.photo.ItemScoreID] = append(byItem[*mp.photo.ItemScoreID], mp.photo.ID)
			}
		}
	}
	sort.Slice(d.Photos, func(i, j int) bool {
		if d.Photos[i].CapturedAt.Equal(d.Photos[j].CapturedAt) {
			return d.Photos[i].ID < d.Photos[j].ID
		}
		return d.Photos[i].CapturedAt.Before(d.Photos[j].CapturedAt)
	})
	for i := range d.ItemScores {
		d.ItemScores[i].PhotoIDs = byItem[d.ItemScores[i].ID]
	}

	return d, nil
}

func (m *MemoryRepo) ListAssessments(ctx context.Context) ([]domain.AssessmentSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.AssessmentSummary, 0, len(m.assessments))
	for _, rec := range m.assessments {
		a := rec.assessment
		out = append(out, domain.AssessmentSummary{
			ID:              a.ID,
			Status:          a.Status,
			PropertyName:    a.PropertyName,
			PropertyAddress: a.PropertyAddress,
			OverallScore:    a.OverallScore,
			SyncedAt:        a.SyncedAt,
			UpdatedAt:       a.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *MemoryRepo) UpsertPhoto(ctx context.Context, p domain.Photo, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photos[p.ID] = &memPhoto{photo: p, filePath: filePath}
	return nil
}

func (m *MemoryRepo) GetPhoto(ctx context.Context, id string) (*domain.Photo, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mp, ok := m.photos[id]
	if !ok {
		return nil, "", fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	p := mp.photo
	return &p, mp.filePath, nil
}

func (m *MemoryRepo) DeletePhoto(ctx context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mp, ok := m.photos[id]
	if !ok {
		return "", fmt.Errorf("photo %s: %w", id, ErrNotFound)
	}
	delete(m.photos, id)
	return mp.filePath, nil
}
