package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/h2non/filetype"
	"github.com/storypilot/scheduler/internal/models"
	"github.com/storypilot/scheduler/internal/transfer"
)

const defaultBaseURL = "https://businessapi.snapchat.com"

const (
	maxImageBytes = 5 * 1024 * 1024
	maxVideoBytes = 32 * 1024 * 1024
)

// Story media must be portrait, nominally 9:16. A small tolerance covers
// encoder rounding.
const (
	minStoryRatio = 0.45
	maxStoryRatio = 0.65
)

// Credentials identify the Snapchat public profile a story is published to.
type Credentials struct {
	ProfileID   string
	AccessToken string
}

type Result struct {
	ExternalPostID string
	RawResponse    string
}

type Publisher interface {
	Publish(ctx context.Context, post *models.ScheduledPost, creds Credentials) (*Result, error)
}

// SnapPublisher uploads media to the Snapchat content API and attaches it to
// the profile's story. Media is validated against platform constraints
// before any network call so bad assets fail fast without retries.
type SnapPublisher struct {
	client  *http.Client
	baseURL string
}

func NewSnapPublisher() *SnapPublisher {
	return &SnapPublisher{
		client:  &http.Client{Timeout: 2 * time.Minute},
		baseURL: defaultBaseURL,
	}
}

// NewSnapPublisherWithBase points the publisher at a different API host.
// Tests use it against httptest servers.
func NewSnapPublisherWithBase(client *http.Client, baseURL string) *SnapPublisher {
	return &SnapPublisher{client: client, baseURL: baseURL}
}

func (p *SnapPublisher) Publish(ctx context.Context, post *models.ScheduledPost, creds Credentials) (*Result, error) {
	if creds.AccessToken == "" || creds.ProfileID == "" {
		return nil, &AuthError{Reason: "account has no usable credentials"}
	}

	media, mime, err := p.fetchMedia(ctx, post)
	if err != nil {
		return nil, err
	}

	if err := validateMedia(post.ContentType, media); err != nil {
		return nil, err
	}

	mediaID, err := p.uploadMedia(ctx, creds, media, mime)
	if err != nil {
		return nil, err
	}

	return p.attachStory(ctx, creds, mediaID, post.Caption)
}

// fetchMedia pulls the asset bytes from the media store. The store only
// hands out URLs; the publisher is the single place bytes flow through.
func (p *SnapPublisher) fetchMedia(ctx context.Context, post *models.ScheduledPost) ([]byte, string, error) {
	limit := int64(maxImageBytes)
	if post.ContentType == models.ContentTypeVideo {
		limit = maxVideoBytes
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, post.MediaURL, nil)
	if err != nil {
		return nil, "", &ValidationError{Reason: fmt.Sprintf("bad media url: %v", err)}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", &ProviderError{Stage: StageUpload, Message: fmt.Sprintf("fetch media: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// A struggling media store is not a bad asset: 5xx and rate limits
		// keep their retry budget. Only semantic 4xx (gone, forbidden) means
		// the asset will never be fetchable.
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, "", &ProviderError{Stage: StageUpload, StatusCode: resp.StatusCode, Message: fmt.Sprintf("media store returned status %d", resp.StatusCode)}
		}
		return nil, "", &ValidationError{Reason: fmt.Sprintf("media url returned status %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", &ProviderError{Stage: StageUpload, Message: fmt.Sprintf("read media: %v", err)}
	}
	if int64(len(data)) > limit {
		return nil, "", &ValidationError{Reason: fmt.Sprintf("media exceeds %d byte limit", limit)}
	}

	return data, resp.Header.Get("Content-Type"), nil
}

func validateMedia(contentType string, data []byte) error {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return &ValidationError{Reason: "unrecognized media format"}
	}

	switch contentType {
	case models.ContentTypeImage:
		if kind.Extension != "jpg" && kind.Extension != "png" {
			return &ValidationError{Reason: fmt.Sprintf("image format %s is not supported", kind.Extension)}
		}
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return &ValidationError{Reason: "image could not be decoded"}
		}
		if cfg.Height == 0 {
			return &ValidationError{Reason: "image has zero height"}
		}
		ratio := float64(cfg.Width) / float64(cfg.Height)
		if ratio < minStoryRatio || ratio > maxStoryRatio {
			return &ValidationError{Reason: fmt.Sprintf("aspect ratio %.2f is not story portrait (9:16)", ratio)}
		}
	case models.ContentTypeVideo:
		if kind.Extension != "mp4" && kind.Extension != "mov" {
			return &ValidationError{Reason: fmt.Sprintf("video format %s is not supported", kind.Extension)}
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown content type %q", contentType)}
	}

	return nil
}

func (p *SnapPublisher) uploadMedia(ctx context.Context, creds Credentials, media []byte, mime string) (string, error) {
	url := fmt.Sprintf("%s/v1/public_profiles/%s/media", p.baseURL, creds.ProfileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(media))
	if err != nil {
		return "", &ProviderError{Stage: StageUpload, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	if mime != "" {
		req.Header.Set("Content-Type", mime)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", &ProviderError{Stage: StageUpload, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if err := checkResponse(resp.StatusCode, body, StageUpload); err != nil {
		return "", err
	}

	var mr transfer.SnapMediaResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return "", &ProviderError{Stage: StageUpload, StatusCode: resp.StatusCode, Message: "undecodable media response", Response: string(body)}
	}
	if mr.Media.ID == "" {
		return "", &ProviderError{Stage: StageUpload, StatusCode: resp.StatusCode, Message: "media response carried no id", Response: string(body)}
	}

	return mr.Media.ID, nil
}

func (p *SnapPublisher) attachStory(ctx context.Context, creds Credentials, mediaID, caption string) (*Result, error) {
	payload, err := json.Marshal(transfer.SnapStoryRequest{MediaID: mediaID, Caption: caption})
	if err != nil {
		return nil, &ProviderError{Stage: StageAttach, Message: err.Error()}
	}

	url := fmt.Sprintf("%s/v1/public_profiles/%s/stories", p.baseURL, creds.ProfileID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &ProviderError{Stage: StageAttach, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := p.client.Do(req)
	if err != nil {
		// Upload already landed; a failed attach is the partial-failure case
		// and stays retryable unless the provider says otherwise.
		return nil, &ProviderError{Stage: StageAttach, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if err := checkResponse(resp.StatusCode, body, StageAttach); err != nil {
		return nil, err
	}

	var sr transfer.SnapStoryResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, &ProviderError{Stage: StageAttach, StatusCode: resp.StatusCode, Message: "undecodable story response", Response: string(body)}
	}
	if sr.Story.ID == "" {
		return nil, &ProviderError{Stage: StageAttach, StatusCode: resp.StatusCode, Message: "story response carried no id", Response: string(body)}
	}

	return &Result{ExternalPostID: sr.Story.ID, RawResponse: string(body)}, nil
}

func checkResponse(status int, body []byte, stage string) error {
	if status == http.StatusOK || status == http.StatusCreated {
		return nil
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return &AuthError{Reason: fmt.Sprintf("provider rejected credentials with status %d", status)}
	}

	var er transfer.SnapErrorResponse
	_ = json.Unmarshal(body, &er)

	msg := er.DebugMessage
	if msg == "" {
		msg = http.StatusText(status)
	}

	return &ProviderError{
		Stage:      stage,
		StatusCode: status,
		Message:    msg,
		Response:   string(body),
		Permanent:  er.Permanent,
	}
}
