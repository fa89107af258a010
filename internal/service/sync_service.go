package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cpted-sync/internal/cache"
	"cpted-sync/internal/domain"
	"cpted-sync/internal/repository"

	"go.uber.org/zap"
)

const summaryCacheKey = "cpted:assessments:summaries"

// ErrInvalidPayload marks data-shape validation failures so the HTTP layer
// can answer 400 instead of 500.
var ErrInvalidPayload = errors.New("invalid payload")

// SyncService is the server-side sync entry point: it applies pushed
// payloads through the repository's single transaction and serves reads,
// with an optional KV cache in front of the summary listing. The cache is
// best-effort; any cache failure falls through to Postgres.
type SyncService struct {
	repo       repository.AssessmentsRepo
	kv         cache.KV // nil when Redis is disabled
	summaryTTL time.Duration
	logger     *zap.Logger
}

func NewSyncService(repo repository.AssessmentsRepo, kv cache.KV, summaryTTL time.Duration, logger *zap.Logger) *SyncService {
	return &SyncService{repo: repo, kv: kv, summaryTTL: summaryTTL, logger: logger}
}

// ApplySync validates and applies one pushed assessment, then invalidates
// the summary cache. Derived scores in the payload are ignored; the
// repository recomputes them from the raw item scores inside the write
// transaction.
func (s *SyncService) ApplySync(ctx context.Context, payload *domain.SyncPayload) (*domain.SyncResult, error) {
	if err := validatePayload(payload); err != nil {
		return nil, err
	}

	res, err := s.repo.ApplySync(ctx, payload)
	if err != nil {
		s.logger.Error("sync apply failed",
			zap.String("assessment_id", payload.Assessment.ID),
			zap.Error(err),
		)
		return nil, err
	}

	s.invalidateSummaries(ctx)

	s.logger.Info("assessment synced",
		zap.String("assessment_id", payload.Assessment.ID),
		zap.Int("item_count", len(payload.ItemScores)),
		zap.Int("zone_count", len(payload.ZoneScores)),
		zap.Int("sync_version", res.SyncVersion),
	)
	return res, nil
}

func (s *SyncService) GetAssessment(ctx context.Context, id string) (*domain.AssessmentDetail, error) {
	return s.repo.GetAssessment(ctx, id)
}

// ListAssessments serves summaries from the cache when warm, Postgres
// otherwise.
func (s *SyncService) ListAssessments(ctx context.Context) ([]domain.AssessmentSummary, error) {
	if s.kv != nil {
		if raw, err := s.kv.Get(ctx, summaryCacheKey); err == nil {
			var cached []domain.AssessmentSummary
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
			// A corrupt cache entry is dropped, not served.
			_ = s.kv.Del(ctx, summaryCacheKey)
		} else if err != cache.ErrMiss {
			s.logger.Warn("summary cache read failed", zap.Error(err))
		}
	}

	summaries, err := s.repo.ListAssessments(ctx)
	if err != nil {
		return nil, err
	}

	if s.kv != nil {
		if raw, err := json.Marshal(summaries); err == nil {
			if err := s.kv.Set(ctx, summaryCacheKey, string(raw), s.summaryTTL); err != nil {
				s.logger.Warn("summary cache write failed", zap.Error(err))
			}
		}
	}
	return summaries, nil
}

// InvalidateSummaries drops the cached listing; called after any write that
// changes what the listing shows.
func (s *SyncService) InvalidateSummaries(ctx context.Context) {
	s.invalidateSummaries(ctx)
}

func (s *SyncService) invalidateSummaries(ctx context.Context) {
	if s.kv == nil {
		return
	}
	if err := s.kv.Del(ctx, summaryCacheKey); err != nil {
		s.logger.Warn("summary cache invalidation failed", zap.Error(err))
	}
}

// validatePayload checks the data-shape invariants the engine depends on
// before anything touches the database.
func validatePayload(p *domain.SyncPayload) error {
	if p == nil || p.Assessment.ID == "" {
		return fmt.Errorf("%w: assessment id is required", ErrInvalidPayload)
	}
	switch p.Assessment.Status {
	case domain.StatusInProgress, domain.StatusCompleted, domain.StatusSynced:
	default:
		return fmt.Errorf("%w: invalid assessment status %q", ErrInvalidPayload, p.Assessment.Status)
	}

	zoneKeys := make(map[string]bool, len(p.ZoneScores))
	for _, z := range p.ZoneScores {
		if z.ZoneKey == "" {
			return fmt.Errorf("%w: zone score missing zone key", ErrInvalidPayload)
		}
		if zoneKeys[z.ZoneKey] {
			return fmt.Errorf("%w: duplicate zone key %q", ErrInvalidPayload, z.ZoneKey)
		}
		zoneKeys[z.ZoneKey] = true
	}

	itemIDs := make(map[string]bool, len(p.ItemScores))
	for _, it := range p.ItemScores {
		if it.ID == "" {
			return fmt.Errorf("%w: item score missing id", ErrInvalidPayload)
		}
		if itemIDs[it.ID] {
			return fmt.Errorf("%w: duplicate item score id %q", ErrInvalidPayload, it.ID)
		}
		itemIDs[it.ID] = true
		if !zoneKeys[it.ZoneKey] {
			return fmt.Errorf("%w: item %s references unknown zone %q", ErrInvalidPayload, it.ID, it.ZoneKey)
		}
		if it.Score != nil && (*it.Score < 1 || *it.Score > 5) {
			return fmt.Errorf("%w: item %s has out-of-range score %d", ErrInvalidPayload, it.ID, *it.Score)
		}
	}

	for _, ph := range p.Photos {
		if ph.ID == "" {
			return fmt.Errorf("%w: photo missing id", ErrInvalidPayload)
		}
	}
	return nil
}
