package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"cpted-sync/internal/domain"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrNotFound means the server does not know the identity: the record is
// not remote-backed, which callers treat differently from transport
// failure.
var ErrNotFound = errors.New("not found on server")

// ErrConflict means another device pushed this assessment after we last
// pulled it; the user must pull before pushing again.
var ErrConflict = errors.New("sync version conflict")

type errorBody struct {
	Error string `json:"error"`
}

// Client talks to the sync server. Requests are never retried here; retry
// is the caller's policy (typically the user pressing Sync again).
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: c, logger: logger}
}

func statusErr(resp *resty.Response) error {
	var msg string
	if body, ok := resp.Error().(*errorBody); ok && body != nil && body.Error != "" {
		msg = body.Error
	} else {
		msg = resp.Status()
	}
	switch resp.StatusCode() {
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	case http.StatusConflict:
		return fmt.Errorf("%s: %w", msg, ErrConflict)
	default:
		return fmt.Errorf("server rejected request: %s", msg)
	}
}

// Push uploads one assessment's metadata payload via POST /sync.
func (c *Client) Push(ctx context.Context, payload *domain.SyncPayload) (*domain.SyncResult, error) {
	var result domain.SyncResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&result).
		SetError(&errorBody{}).
		Post("/sync")
	if err != nil {
		return nil, fmt.Errorf("sync request failed: %w", err)
	}
	if resp.IsError() {
		return nil, statusErr(resp)
	}
	c.logger.Debug("sync accepted",
		zap.String("assessment_id", payload.Assessment.ID),
		zap.Int("sync_version", result.SyncVersion),
	)
	return &result, nil
}

// ListAssessments fetches the remote summaries for pull-source browsing.
func (c *Client) ListAssessments(ctx context.Context) ([]domain.AssessmentSummary, error) {
	var summaries []domain.AssessmentSummary
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&summaries).
		SetError(&errorBody{}).
		Get("/assessments")
	if err != nil {
		return nil, fmt.Errorf("assessment listing failed: %w", err)
	}
	if resp.IsError() {
		return nil, statusErr(resp)
	}
	return summaries, nil
}

// GetAssessment fetches the full canonical representation in one request.
func (c *Client) GetAssessment(ctx context.Context, id string) (*domain.AssessmentDetail, error) {
	var detail domain.AssessmentDetail
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&detail).
		SetError(&errorBody{}).
		Get("/assessments/" + id)
	if err != nil {
		return nil, fmt.Errorf("assessment fetch failed: %w", err)
	}
	if resp.IsError() {
		return nil, statusErr(resp)
	}
	return &detail, nil
}

// UploadPhoto sends one binary plus metadata as a multipart request, keyed
// by the photo's own identity so retries overwrite rather than duplicate.
func (c *Client) UploadPhoto(ctx context.Context, p domain.Photo, data []byte) error {
	fields := map[string]string{
		"id":          p.ID,
		"zone_key":    p.ZoneKey,
		"annotation":  p.Annotation,
		"captured_at": p.CapturedAt.UTC().Format(time.RFC3339),
	}
	if p.ItemScoreID != nil {
		fields["item_score_id"] = *p.ItemScoreID
	}
	if p.Latitude != nil {
		fields["latitude"] = strconv.FormatFloat(*p.Latitude, 'f', -1, 64)
	}
	if p.Longitude != nil {
		fields["longitude"] = strconv.FormatFloat(*p.Longitude, 'f', -1, 64)
	}
	if p.Heading != nil {
		fields["heading"] = strconv.FormatFloat(*p.Heading, 'f', -1, 64)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetMultipartField("photo", p.ID+".jpg", p.ContentType, bytes.NewReader(data)).
		SetFormData(fields).
		SetError(&errorBody{}).
		Post("/assessments/" + p.AssessmentID + "/photos")
	if err != nil {
		return fmt.Errorf("photo upload failed: %w", err)
	}
	if resp.IsError() {
		return statusErr(resp)
	}
	return nil
}

// DownloadPhoto fetches one raw binary and its content type.
func (c *Client) DownloadPhoto(ctx context.Context, id string) ([]byte, string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get("/photos/" + id)
	if err != nil {
		return nil, "", fmt.Errorf("photo download failed: %w", err)
	}
	if resp.IsError() {
		if resp.StatusCode() == http.StatusNotFound {
			return nil, "", fmt.Errorf("photo %s: %w", id, ErrNotFound)
		}
		return nil, "", fmt.Errorf("photo download failed: %s", resp.Status())
	}
	contentType := resp.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return resp.Body(), contentType, nil
}
