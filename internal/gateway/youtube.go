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

// VideoData is the metadata subset the plugin consumes
type VideoData struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ChannelTitle string `json:"channel_title"`
	PublishedAt  string `json:"published_at"`
	Duration     string `json:"duration"`
	ViewCount    string `json:"view_count"`
	LikeCount    string `json:"like_count"`
	Thumbnail    string `json:"thumbnail"`
	Cached       bool   `json:"cached"`
}

type youtubeListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
			Thumbnails   struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
			LikeCount string `json:"likeCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// YouTubeClient fetches video metadata from the YouTube Data API.
// Requests are not retried.
type YouTubeClient struct {
	httpClient *http.Client
	baseURL    string
	keys       KeyProvider
	cache      Cache
	audit      AuditLogger
	logger     zerolog.Logger
	cacheTTL   time.Duration
}

// NewYouTubeClient creates a YouTube Data API client
func NewYouTubeClient(baseURL string, timeout time.Duration, cacheTTL time.Duration, keys KeyProvider, cache Cache, audit AuditLogger, logger zerolog.Logger) *YouTubeClient {
	if audit == nil {
		audit = NopAudit{}
	}
	return &YouTubeClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		keys:       keys,
		cache:      cache,
		audit:      audit,
		logger:     logger.With().Str("component", "youtube").Logger(),
		cacheTTL:   cacheTTL,
	}
}

// GetVideoData returns metadata for a video, served from cache when
// available
func (c *YouTubeClient) GetVideoData(ctx context.Context, videoID, licenseID, clientIP string) (*VideoData, error) {
	start := time.Now()
	cacheKey := fmt.Sprintf("ipv:ytdata:%s", videoID)

	if c.cache != nil {
		var cached VideoData
		if data, err := c.cache.Get(ctx, cacheKey); err == nil {
			if err := json.Unmarshal([]byte(data), &cached); err == nil {
				cached.Cached = true
				c.auditLog(videoID, licenseID, clientIP, start, 200, true, "", true)
				return &cached, nil
			}
		}
	}

	keys, err := c.keys.GetProviderKeys(ctx, vault.ProviderYouTube)
	if err != nil || len(keys) == 0 {
		apiErr := NewAPIError(CodeMissingAPIKey, "no YouTube API keys configured", http.StatusInternalServerError, false)
		c.auditLog(videoID, licenseID, clientIP, start, 0, false, apiErr.Code, false)
		return nil, apiErr
	}

	params := url.Values{}
	params.Set("part", "snippet,contentDetails,statistics")
	params.Set("id", videoID)
	params.Set("key", keys[0])

	endpoint := c.baseURL + "/youtube/v3/videos?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		apiErr := NewAPIError(CodeYouTubeError, "YouTube API unreachable", http.StatusBadGateway, true)
		c.auditLog(videoID, licenseID, clientIP, start, 0, false, apiErr.Code, false)
		return nil, apiErr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := NewAPIError(CodeYouTubeError, "failed to read YouTube response", http.StatusBadGateway, false)
		c.auditLog(videoID, licenseID, clientIP, start, resp.StatusCode, false, apiErr.Code, false)
		return nil, apiErr
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := NewAPIError(CodeYouTubeError,
			fmt.Sprintf("YouTube API returned status %d", resp.StatusCode),
			http.StatusBadGateway, false)
		c.auditLog(videoID, licenseID, clientIP, start, resp.StatusCode, false, apiErr.Code, false)
		return nil, apiErr
	}

	var parsed youtubeListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		apiErr := NewAPIError(CodeYouTubeError, "invalid YouTube response", http.StatusBadGateway, false)
		c.auditLog(videoID, licenseID, clientIP, start, resp.StatusCode, false, apiErr.Code, false)
		return nil, apiErr
	}

	if len(parsed.Items) == 0 {
		apiErr := NewAPIError(CodeVideoNotFound, "video not found", http.StatusNotFound, false)
		c.auditLog(videoID, licenseID, clientIP, start, resp.StatusCode, false, apiErr.Code, false)
		return nil, apiErr
	}

	item := parsed.Items[0]
	data := &VideoData{
		VideoID:      item.ID,
		Title:        item.Snippet.Title,
		Description:  item.Snippet.Description,
		ChannelTitle: item.Snippet.ChannelTitle,
		PublishedAt:  item.Snippet.PublishedAt,
		Duration:     item.ContentDetails.Duration,
		ViewCount:    item.Statistics.ViewCount,
		LikeCount:    item.Statistics.LikeCount,
		Thumbnail:    item.Snippet.Thumbnails.High.URL,
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, cacheKey, data, c.cacheTTL); err != nil {
			c.logger.Warn().Err(err).Msg("failed to cache video data")
		}
	}

	c.auditLog(videoID, licenseID, clientIP, start, resp.StatusCode, true, "", false)
	return data, nil
}

func (c *YouTubeClient) auditLog(videoID, licenseID, clientIP string, start time.Time, status int, success bool, errorCode string, cached bool) {
	c.audit.Log(&database.APILogEntry{
		LicenseID:  licenseID,
		Endpoint:   "youtube/video-data",
		VideoID:    videoID,
		Provider:   vault.ProviderYouTube,
		StatusCode: status,
		Success:    success,
		ErrorCode:  errorCode,
		DurationMs: int(time.Since(start).Milliseconds()),
		Cached:     cached,
		ClientIP:   clientIP,
	})
}
