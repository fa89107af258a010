package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"cpted-sync/internal/domain"
	"cpted-sync/internal/repository"

	"go.uber.org/zap"
)

// PhotoService stores photo binaries on disk, one file per photo UUID, with
// metadata rows in the photos repository. Saves are keyed by the photo's own
// identity, so a retried upload overwrites the previous file and row instead
// of duplicating either.
type PhotoService struct {
	repo   repository.PhotosRepo
	dir    string
	logger *zap.Logger
}

func NewPhotoService(repo repository.PhotosRepo, dir string, logger *zap.Logger) *PhotoService {
	return &PhotoService{repo: repo, dir: dir, logger: logger}
}

func (s *PhotoService) path(id string) string {
	return filepath.Join(s.dir, id)
}

// Save writes the binary then upserts the metadata row. The file write comes
// first so a metadata row never points at a missing binary.
func (s *PhotoService) Save(ctx context.Context, photo domain.Photo, data []byte) error {
	if photo.ID == "" {
		return fmt.Errorf("photo id is required")
	}
	if photo.AssessmentID == "" {
		return fmt.Errorf("photo %s: assessment id is required", photo.ID)
	}
	if len(data) == 0 {
		return fmt.Errorf("photo %s: empty binary", photo.ID)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create photos dir: %w", err)
	}

	p := s.path(photo.ID)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("failed to write photo binary %s: %w", photo.ID, err)
	}

	if err := s.repo.UpsertPhoto(ctx, photo, p); err != nil {
		return err
	}

	s.logger.Info("photo stored",
		zap.String("photo_id", photo.ID),
		zap.String("assessment_id", photo.AssessmentID),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Load returns the metadata and binary for one photo.
func (s *PhotoService) Load(ctx context.Context, id string) (*domain.Photo, []byte, error) {
	photo, filePath, err := s.repo.GetPhoto(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read photo binary %s: %w", id, err)
	}
	return photo, data, nil
}

// Delete removes the metadata row and the binary. A missing file is not an
// error once the row is gone.
func (s *PhotoService) Delete(ctx context.Context, id string) error {
	filePath, err := s.repo.DeletePhoto(ctx, id)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("photo binary removal failed",
			zap.String("photo_id", id),
			zap.Error(err),
		)
	}
	return nil
}
