package repository

import (
	"context"
	"errors"

	"cpted-sync/internal/domain"
)

// ErrNotFound is returned for unknown assessment or photo identities so
// callers can distinguish "the record is not remote-backed" from transport
// or database failure.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when a sync payload carries a sync_version
// older than the stored one: another device has pushed this assessment since
// the caller last pulled it.
var ErrVersionConflict = errors.New("sync version conflict")

// AssessmentsRepo is the canonical store for assessments and their child
// rollups. ApplySync is the single write path: the whole metadata write is
// one transaction, and derived fields are recomputed server-side from the
// raw item scores before commit.
type AssessmentsRepo interface {
	ApplySync(ctx context.Context, payload *domain.SyncPayload) (*domain.SyncResult, error)
	GetAssessment(ctx context.Context, id string) (*domain.AssessmentDetail, error)
	ListAssessments(ctx context.Context) ([]domain.AssessmentSummary, error)
}

// PhotosRepo stores photo metadata rows. Binary payloads live on disk under
// the configured photos directory; FilePath points at them.
type PhotosRepo interface {
	// UpsertPhoto inserts or fully replaces a photo row keyed by its own
	// identity, so a retried upload overwrites instead of duplicating.
	UpsertPhoto(ctx context.Context, photo domain.Photo, filePath string) error
	GetPhoto(ctx context.Context, id string) (*domain.Photo, string, error)
	// DeletePhoto removes the metadata row and returns the file path so the
	// caller can remove the binary.
	DeletePhoto(ctx context.Context, id string) (string, error)
}
