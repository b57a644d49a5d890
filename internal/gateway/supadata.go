package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/vault"
)

// minTranscriptLength is the shortest content considered a usable
// transcript. Shorter payloads are treated as provider noise and are
// never cached.
const minTranscriptLength = 50

// TranscriptRequest describes one transcript fetch
type TranscriptRequest struct {
	VideoID   string
	Mode      string // auto, native, or generate
	Lang      string // Optional language hint
	LicenseID string
	ClientIP  string
}

// TranscriptResult is a successful transcript response
type TranscriptResult struct {
	VideoID        string   `json:"video_id"`
	Mode           string   `json:"mode"`
	Lang           string   `json:"lang,omitempty"`
	AvailableLangs []string `json:"available_langs,omitempty"`
	Content        string   `json:"content"`
	Cached         bool     `json:"cached"`
	Attempts       int      `json:"-"`
}

type supadataResponse struct {
	Content        string   `json:"content"`
	Lang           string   `json:"lang"`
	AvailableLangs []string `json:"availableLangs"`
}

type supadataError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// TranscriptClient fetches transcripts from SupaData with key
// fallback, caching, and audit logging
type TranscriptClient struct {
	httpClient *http.Client
	baseURL    string
	keys       KeyProvider
	cache      Cache
	audit      AuditLogger
	logger     zerolog.Logger
	cacheTTL   time.Duration

	// BackoffBase is the unit for exponential backoff between key
	// attempts after transport errors
	BackoffBase time.Duration
}

// NewTranscriptClient creates a SupaData transcript client
func NewTranscriptClient(baseURL string, timeout time.Duration, cacheTTL time.Duration, keys KeyProvider, cache Cache, audit AuditLogger, logger zerolog.Logger) *TranscriptClient {
	if audit == nil {
		audit = NopAudit{}
	}
	return &TranscriptClient{
		httpClient:  &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		keys:        keys,
		cache:       cache,
		audit:       audit,
		logger:      logger.With().Str("component", "supadata").Logger(),
		cacheTTL:    cacheTTL,
		BackoffBase: time.Second,
	}
}

// Fetch retrieves a transcript, serving from cache when a valid entry
// exists. Keys are tried in order: transport errors back off and move
// to the next key, auth and quota rejections move on immediately, and
// any other upstream status is terminal.
func (c *TranscriptClient) Fetch(ctx context.Context, req TranscriptRequest) (*TranscriptResult, error) {
	if req.Mode == "" {
		req.Mode = "auto"
	}

	start := time.Now()
	cacheKey := fmt.Sprintf("ipv:transcript:%s:%s:%s", req.VideoID, req.Mode, langOrDefault(req.Lang))

	if c.cache != nil {
		if content, err := c.cache.Get(ctx, cacheKey); err == nil {
			if len(content) > minTranscriptLength {
				c.auditEntry(req, start, 200, true, "", true)
				return &TranscriptResult{
					VideoID: req.VideoID,
					Mode:    req.Mode,
					Lang:    req.Lang,
					Content: content,
					Cached:  true,
				}, nil
			}
			// Stale junk from a bad upstream response
			_ = c.cache.Delete(ctx, cacheKey)
		}
	}

	keys, err := c.keys.GetProviderKeys(ctx, vault.ProviderSupadata)
	if err != nil || len(keys) == 0 {
		apiErr := NewAPIError(CodeMissingAPIKey, "no transcript provider keys configured", http.StatusInternalServerError, false)
		c.auditEntry(req, start, 0, false, apiErr.Code, false)
		return nil, apiErr
	}

	var lastErr *APIError
	attempts := 0

	for i, key := range keys {
		attempts++
		status, body, reqErr := c.doRequest(ctx, key, req)

		if reqErr != nil {
			c.logger.Warn().Err(reqErr).Int("key_index", i).Msg("transcript request failed")
			lastErr = NewAPIError(CodeTranscriptFailed, "transcript provider unreachable", http.StatusBadGateway, true)
			if i < len(keys)-1 {
				if err := c.backoff(ctx, i); err != nil {
					break
				}
			}
			continue
		}

		switch {
		case status == http.StatusOK:
			var parsed supadataResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				lastErr = NewAPIError(CodeSupadataError, "invalid transcript response", http.StatusBadGateway, false)
				continue
			}

			result := &TranscriptResult{
				VideoID:        req.VideoID,
				Mode:           req.Mode,
				Lang:           parsed.Lang,
				AvailableLangs: parsed.AvailableLangs,
				Content:        parsed.Content,
				Attempts:       attempts,
			}
			if c.cache != nil && len(parsed.Content) > minTranscriptLength {
				if err := c.cache.Set(ctx, cacheKey, parsed.Content, c.cacheTTL); err != nil {
					c.logger.Warn().Err(err).Msg("failed to cache transcript")
				}
			}
			c.auditEntry(req, start, status, true, "", false)
			return result, nil

		case status == http.StatusUnauthorized || status == http.StatusPaymentRequired || status == http.StatusTooManyRequests:
			c.logger.Warn().Int("status", status).Int("key_index", i).Msg("transcript key rejected")
			if i == len(keys)-1 {
				apiErr := NewAPIError(CodeSupadataUnauthorized,
					"all transcript provider keys exhausted", http.StatusBadGateway, false)
				c.auditEntry(req, start, status, false, apiErr.Code, false)
				apiErr.Retry = false
				return nil, apiErr
			}
			lastErr = NewAPIError(CodeSupadataUnauthorized, "transcript key rejected", http.StatusBadGateway, false)

		default:
			apiErr := NewAPIError(CodeSupadataError,
				fmt.Sprintf("transcript provider returned status %d: %s", status, errorMessage(body)),
				http.StatusBadGateway, false)
			c.auditEntry(req, start, status, false, apiErr.Code, false)
			return nil, apiErr
		}
	}

	if lastErr == nil {
		lastErr = NewAPIError(CodeTranscriptFailed, "transcript could not be fetched", http.StatusBadGateway, false)
	}
	c.auditEntry(req, start, 0, false, lastErr.Code, false)
	return nil, lastErr
}

func (c *TranscriptClient) doRequest(ctx context.Context, apiKey string, req TranscriptRequest) (int, []byte, error) {
	params := url.Values{}
	params.Set("url", "https://www.youtube.com/watch?v="+req.VideoID)
	params.Set("text", "true")
	params.Set("mode", req.Mode)
	if req.Lang != "" {
		params.Set("lang", req.Lang)
	}

	endpoint := c.baseURL + "/v1/transcript?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	httpReq.Header.Set("x-api-key", apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// backoff waits 2^attempt backoff units, or returns early when the
// context is done
func (c *TranscriptClient) backoff(ctx context.Context, attempt int) error {
	delay := c.BackoffBase * (1 << attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *TranscriptClient) auditEntry(req TranscriptRequest, start time.Time, status int, success bool, errorCode string, cached bool) {
	c.audit.Log(&database.APILogEntry{
		LicenseID:  req.LicenseID,
		Endpoint:   "transcript",
		VideoID:    req.VideoID,
		Provider:   vault.ProviderSupadata,
		StatusCode: status,
		Success:    success,
		ErrorCode:  errorCode,
		DurationMs: int(time.Since(start).Milliseconds()),
		Cached:     cached,
		ClientIP:   req.ClientIP,
	})
}

func langOrDefault(lang string) string {
	if lang == "" {
		return "default"
	}
	return lang
}

func errorMessage(body []byte) string {
	var e supadataError
	if err := json.Unmarshal(body, &e); err == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
