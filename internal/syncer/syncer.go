// Package syncer moves assessments between the device store and the
// server: push (local to remote), pull (remote to local), and the photo
// transfers around them.
//
// The engine takes no locks. The caller guarantees at most one push or pull
// is in flight per assessment identity; local edits may continue during a
// push, which simply snapshots the current local state at call time.
package syncer

import (
	"context"
	"fmt"
	"time"

	"cpted-sync/internal/domain"
	"cpted-sync/internal/store"

	"go.uber.org/zap"
)

type Syncer struct {
	store  *store.Store
	client *Client
	logger *zap.Logger
}

func New(st *store.Store, client *Client, logger *zap.Logger) *Syncer {
	return &Syncer{store: st, client: client, logger: logger}
}

// PushResult summarizes one push. PhotosFailed counts binaries whose upload
// failed; the metadata sync itself still succeeded and those photos remain
// unsynced locally for the next push to retry.
type PushResult struct {
	SyncedAt       time.Time
	SyncVersion    int
	PhotosUploaded int
	PhotosFailed   int
}

// Push uploads the assessment's current local state. The server applies the
// metadata in one transaction and recomputes scores from the raw items; on
// success the local row is stamped with the server's timestamp and version.
// Photo binaries follow individually and cannot fail the push.
func (s *Syncer) Push(ctx context.Context, assessmentID string) (*PushResult, error) {
	d, err := s.store.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load local assessment: %w", err)
	}

	payload := &domain.SyncPayload{
		Assessment: d.Assessment,
		ZoneScores: d.ZoneScores,
		ItemScores: d.ItemScores,
		Photos:     d.Photos,
	}

	res, err := s.client.Push(ctx, payload)
	if err != nil {
		// Nothing landed remotely and nothing changed locally.
		return nil, fmt.Errorf("push failed for assessment %s: %w", assessmentID, err)
	}

	if err := s.store.MarkSynced(ctx, assessmentID, res.SyncedAt, res.SyncVersion); err != nil {
		return nil, fmt.Errorf("push succeeded but local bookkeeping failed: %w", err)
	}

	result := &PushResult{
		SyncedAt:    res.SyncedAt,
		SyncVersion: res.SyncVersion,
	}

	// Photo phase, outside the metadata transaction: per-photo fault
	// isolation, failures logged and skipped.
	photos, blobs, err := s.store.UnsyncedPhotos(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load unsynced photos: %w", err)
	}
	for i, p := range photos {
		if err := s.client.UploadPhoto(ctx, p, blobs[i]); err != nil {
			s.logger.Warn("photo upload failed, skipping",
				zap.String("assessment_id", assessmentID),
				zap.String("photo_id", p.ID),
				zap.Error(err),
			)
			result.PhotosFailed++
			continue
		}
		if err := s.store.MarkPhotoSynced(ctx, p.ID); err != nil {
			s.logger.Warn("failed to mark photo synced",
				zap.String("photo_id", p.ID),
				zap.Error(err),
			)
		}
		result.PhotosUploaded++
	}

	s.logger.Info("push complete",
		zap.String("assessment_id", assessmentID),
		zap.Int("sync_version", result.SyncVersion),
		zap.Int("photos_uploaded", result.PhotosUploaded),
		zap.Int("photos_failed", result.PhotosFailed),
	)
	return result, nil
}

// PullResult summarizes one pull. PhotosFailed counts binaries that could
// not be downloaded; the pull itself still succeeded.
type PullResult struct {
	AssessmentID     string
	PhotosDownloaded int
	PhotosFailed     int
}

// Pull replaces the local copy of one assessment with the canonical remote
// state. The metadata write is one local transaction; photo binaries are
// then downloaded sequentially with per-photo fault isolation, a progress
// event after each, and a terminal event once all have been attempted.
//
// The caller has already decided that overwriting any existing local copy
// is acceptable; Pull does not ask.
func (s *Syncer) Pull(ctx context.Context, assessmentID string, progress ProgressFunc) (*PullResult, error) {
	progress.emit(Progress{Phase: PhaseFetch, Message: "fetching assessment"})

	d, err := s.client.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, fmt.Errorf("pull failed for assessment %s: %w", assessmentID, err)
	}

	progress.emit(Progress{Phase: PhaseApply, Message: "applying metadata"})
	if err := s.store.ApplyRemote(ctx, d); err != nil {
		// The local transaction rolled back; the prior copy is intact.
		return nil, fmt.Errorf("pull failed for assessment %s: %w", assessmentID, err)
	}

	result := &PullResult{AssessmentID: assessmentID}
	total := len(d.Photos)
	for i, p := range d.Photos {
		data, contentType, err := s.client.DownloadPhoto(ctx, p.ID)
		if err != nil {
			s.logger.Warn("photo download failed, skipping",
				zap.String("assessment_id", assessmentID),
				zap.String("photo_id", p.ID),
				zap.Error(err),
			)
			result.PhotosFailed++
			progress.emit(Progress{
				Phase: PhaseDownload, Current: i + 1, Total: total,
				Message: fmt.Sprintf("photo %d/%d failed", i+1, total),
			})
			continue
		}

		p.ContentType = contentType
		p.Synced = true
		if err := s.store.AddPhoto(ctx, p, data); err != nil {
			s.logger.Warn("failed to store downloaded photo, skipping",
				zap.String("photo_id", p.ID),
				zap.Error(err),
			)
			result.PhotosFailed++
			progress.emit(Progress{
				Phase: PhaseDownload, Current: i + 1, Total: total,
				Message: fmt.Sprintf("photo %d/%d failed", i+1, total),
			})
			continue
		}

		result.PhotosDownloaded++
		progress.emit(Progress{
			Phase: PhaseDownload, Current: i + 1, Total: total,
			Message: fmt.Sprintf("photo %d/%d downloaded", i+1, total),
		})
	}

	progress.emit(Progress{
		Phase: PhaseDone, Current: total, Total: total,
		Message: fmt.Sprintf("pull complete, %d/%d photos", result.PhotosDownloaded, total),
	})

	s.logger.Info("pull complete",
		zap.String("assessment_id", assessmentID),
		zap.Int("photos_downloaded", result.PhotosDownloaded),
		zap.Int("photos_failed", result.PhotosFailed),
	)
	return result, nil
}
