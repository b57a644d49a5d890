package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const youtubeListBody = `{
	"items": [{
		"id": "dQw4w9WgXcQ",
		"snippet": {
			"title": "Test Video",
			"description": "A description",
			"channelTitle": "Test Channel",
			"publishedAt": "2024-01-15T10:00:00Z",
			"thumbnails": {"high": {"url": "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg"}}
		},
		"contentDetails": {"duration": "PT4M13S"},
		"statistics": {"viewCount": "1000000", "likeCount": "50000"}
	}]
}`

func newYouTubeTestClient(baseURL string, cache Cache) *YouTubeClient {
	return NewYouTubeClient(baseURL, 5*time.Second, time.Hour, &staticKeys{keys: []string{"yt-key"}}, cache, nil, zerolog.Nop())
}

func TestGetVideoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/youtube/v3/videos" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("part") != "snippet,contentDetails,statistics" {
			t.Errorf("Unexpected part param %q", q.Get("part"))
		}
		if q.Get("id") != "dQw4w9WgXcQ" || q.Get("key") != "yt-key" {
			t.Errorf("Unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, youtubeListBody)
	}))
	defer server.Close()

	cache := newMemCache()
	client := newYouTubeTestClient(server.URL, cache)

	data, err := client.GetVideoData(context.Background(), "dQw4w9WgXcQ", "lic-1", "1.2.3.4")
	if err != nil {
		t.Fatalf("GetVideoData failed: %v", err)
	}
	if data.Title != "Test Video" {
		t.Errorf("Unexpected title %q", data.Title)
	}
	if data.Duration != "PT4M13S" {
		t.Errorf("Unexpected duration %q", data.Duration)
	}
	if data.ViewCount != "1000000" {
		t.Errorf("Unexpected view count %q", data.ViewCount)
	}
	if data.Cached {
		t.Error("Fresh fetch should not be marked cached")
	}
	if _, ok := cache.entries["ipv:ytdata:dQw4w9WgXcQ"]; !ok {
		t.Error("Expected metadata cached")
	}
}

func TestGetVideoDataServedFromCache(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, youtubeListBody)
	}))
	defer server.Close()

	cache := newMemCache()
	client := newYouTubeTestClient(server.URL, cache)
	ctx := context.Background()

	if _, err := client.GetVideoData(ctx, "dQw4w9WgXcQ", "lic-1", ""); err != nil {
		t.Fatalf("First fetch failed: %v", err)
	}
	data, err := client.GetVideoData(ctx, "dQw4w9WgXcQ", "lic-1", "")
	if err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}
	if !data.Cached {
		t.Error("Second fetch should be served from cache")
	}
	if requests != 1 {
		t.Errorf("Expected a single upstream request, got %d", requests)
	}
}

func TestGetVideoDataNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items": []}`)
	}))
	defer server.Close()

	client := newYouTubeTestClient(server.URL, nil)

	_, err := client.GetVideoData(context.Background(), "missingvid1", "lic-1", "")
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Code != CodeVideoNotFound {
		t.Errorf("Expected %s, got %s", CodeVideoNotFound, apiErr.Code)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Expected 404 status, got %d", apiErr.Status)
	}
}

func TestGetVideoDataUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := newYouTubeTestClient(server.URL, nil)

	_, err := client.GetVideoData(context.Background(), "dQw4w9WgXcQ", "lic-1", "")
	apiErr, ok := AsAPIError(err)
	if !ok {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.Code != CodeYouTubeError {
		t.Errorf("Expected %s, got %s", CodeYouTubeError, apiErr.Code)
	}
}
