package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/vault"
)

// DescriptionRequest describes one AI description generation
type DescriptionRequest struct {
	VideoID      string
	Transcript   string
	UserPrompt   string
	SystemPrompt string // Golden prompt override, empty uses the default
	LicenseID    string
	ClientIP     string
}

// DescriptionResult is a successful generation response
type DescriptionResult struct {
	VideoID     string `json:"video_id"`
	Description string `json:"description"`
	Model       string `json:"model"`
	TokensUsed  int    `json:"tokens_used"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// OpenAIClient generates video descriptions through the chat
// completions API. Requests are not retried.
type OpenAIClient struct {
	httpClient    *http.Client
	baseURL       string
	model         string
	defaultPrompt string
	keys          KeyProvider
	audit         AuditLogger
	logger        zerolog.Logger
}

// NewOpenAIClient creates an OpenAI chat client
func NewOpenAIClient(baseURL string, timeout time.Duration, model, defaultPrompt string, keys KeyProvider, audit AuditLogger, logger zerolog.Logger) *OpenAIClient {
	if audit == nil {
		audit = NopAudit{}
	}
	return &OpenAIClient{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       baseURL,
		model:         model,
		defaultPrompt: defaultPrompt,
		keys:          keys,
		audit:         audit,
		logger:        logger.With().Str("component", "openai").Logger(),
	}
}

// Generate produces a description from the transcript and prompt
func (c *OpenAIClient) Generate(ctx context.Context, req DescriptionRequest) (*DescriptionResult, error) {
	start := time.Now()

	keys, err := c.keys.GetProviderKeys(ctx, vault.ProviderOpenAI)
	if err != nil || len(keys) == 0 {
		apiErr := NewAPIError(CodeMissingAPIKey, "no AI provider keys configured", http.StatusInternalServerError, false)
		c.auditEntry(req, start, 0, false, apiErr.Code)
		return nil, apiErr
	}

	systemPrompt := req.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = c.defaultPrompt
	}

	userContent := req.UserPrompt
	if req.Transcript != "" {
		userContent = fmt.Sprintf("%s\n\nTranscript:\n%s", req.UserPrompt, req.Transcript)
	}

	payload := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+keys[0])
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		apiErr := NewAPIError(CodeOpenAIError, "AI provider unreachable", http.StatusBadGateway, true)
		c.auditEntry(req, start, 0, false, apiErr.Code)
		return nil, apiErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := NewAPIError(CodeOpenAIError, "failed to read AI response", http.StatusBadGateway, false)
		c.auditEntry(req, start, resp.StatusCode, false, apiErr.Code)
		return nil, apiErr
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		apiErr := NewAPIError(CodeOpenAIError, "invalid AI response", http.StatusBadGateway, false)
		c.auditEntry(req, start, resp.StatusCode, false, apiErr.Code)
		return nil, apiErr
	}

	if resp.StatusCode != http.StatusOK || parsed.Error != nil {
		message := fmt.Sprintf("AI provider returned status %d", resp.StatusCode)
		if parsed.Error != nil {
			message = parsed.Error.Message
		}
		apiErr := NewAPIError(CodeOpenAIError, message, http.StatusBadGateway, false)
		c.auditEntry(req, start, resp.StatusCode, false, apiErr.Code)
		return nil, apiErr
	}

	if len(parsed.Choices) == 0 {
		apiErr := NewAPIError(CodeOpenAIError, "AI response contained no choices", http.StatusBadGateway, false)
		c.auditEntry(req, start, resp.StatusCode, false, apiErr.Code)
		return nil, apiErr
	}

	c.auditEntry(req, start, resp.StatusCode, true, "")
	return &DescriptionResult{
		VideoID:     req.VideoID,
		Description: parsed.Choices[0].Message.Content,
		Model:       c.model,
		TokensUsed:  parsed.Usage.TotalTokens,
	}, nil
}

func (c *OpenAIClient) auditEntry(req DescriptionRequest, start time.Time, status int, success bool, errorCode string) {
	c.audit.Log(&database.APILogEntry{
		LicenseID:  req.LicenseID,
		Endpoint:   "ai/description",
		VideoID:    req.VideoID,
		Provider:   vault.ProviderOpenAI,
		StatusCode: status,
		Success:    success,
		ErrorCode:  errorCode,
		DurationMs: int(time.Since(start).Milliseconds()),
		ClientIP:   req.ClientIP,
	})
}
