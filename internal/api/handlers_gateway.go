package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ipv-vendor-gateway/internal/credits"
	"ipv-vendor-gateway/internal/gateway"
)

const transcriptCreditCost = 1

type transcriptRequest struct {
	VideoURL string `json:"video_url"`
	VideoID  string `json:"video_id"`
	Mode     string `json:"mode"`
	Lang     string `json:"lang"`
}

type descriptionRequest struct {
	VideoURL   string `json:"video_url"`
	VideoID    string `json:"video_id"`
	Transcript string `json:"transcript"`
	Prompt     string `json:"prompt"`
}

type videoDataRequest struct {
	VideoURL string `json:"video_url"`
	VideoID  string `json:"video_id"`
}

func resolveVideoID(rawID, rawURL string) string {
	if rawID != "" {
		return gateway.ExtractVideoID(rawID)
	}
	return gateway.ExtractVideoID(rawURL)
}

// handleTranscript fetches a transcript, charging one credit per
// upstream fetch. Cache hits are free.
func (s *Server) handleTranscript(c *gin.Context) {
	lic := currentLicense(c)

	var req transcriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", false)
		return
	}

	videoID := resolveVideoID(req.VideoID, req.VideoURL)
	if videoID == "" {
		respondError(c, http.StatusBadRequest, gateway.CodeInvalidVideoURL, "a valid YouTube video URL or ID is required", false)
		return
	}

	if lic.CreditsRemaining < transcriptCreditCost {
		respondError(c, http.StatusPaymentRequired, "insufficient_credits",
			"not enough credits remaining", false)
		return
	}

	result, err := s.transcripts.Fetch(c.Request.Context(), gateway.TranscriptRequest{
		VideoID:   videoID,
		Mode:      req.Mode,
		Lang:      req.Lang,
		LicenseID: lic.ID,
		ClientIP:  c.ClientIP(),
	})
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	remaining := lic.CreditsRemaining
	if !result.Cached {
		remaining, err = s.credits.Deduct(c.Request.Context(), lic.ID, transcriptCreditCost,
			"transcript", videoID, "transcript fetch")
		if err != nil {
			if errors.Is(err, credits.ErrInsufficientCredits) {
				respondError(c, http.StatusPaymentRequired, "insufficient_credits",
					"not enough credits remaining", false)
				return
			}
			respondError(c, http.StatusInternalServerError, "deduction_failed",
				"transcript fetched but credits could not be deducted", true)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"video_id":          result.VideoID,
		"mode":              result.Mode,
		"lang":              result.Lang,
		"available_langs":   result.AvailableLangs,
		"text":              result.Content,
		"cached":            result.Cached,
		"credits_remaining": remaining,
	})
}

// handleDescription generates an AI description. The credit is
// deducted best effort after a successful generation.
func (s *Server) handleDescription(c *gin.Context) {
	lic := currentLicense(c)

	var req descriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", false)
		return
	}

	if req.Transcript == "" {
		respondError(c, http.StatusBadRequest, "missing_transcript",
			"a transcript is required to generate a description", false)
		return
	}
	videoID := resolveVideoID(req.VideoID, req.VideoURL)

	if lic.CreditsRemaining < transcriptCreditCost {
		respondError(c, http.StatusPaymentRequired, "insufficient_credits",
			"not enough credits remaining", false)
		return
	}

	// Licenses with their own golden prompt get it as the system prompt
	systemPrompt := ""
	if s.prompts != nil {
		if prompt, err := s.prompts.Fetch(c.Request.Context(), lic.ID); err == nil {
			systemPrompt = prompt.Body
		}
	}

	result, err := s.descriptions.Generate(c.Request.Context(), gateway.DescriptionRequest{
		VideoID:      videoID,
		Transcript:   req.Transcript,
		UserPrompt:   req.Prompt,
		SystemPrompt: systemPrompt,
		LicenseID:    lic.ID,
		ClientIP:     c.ClientIP(),
	})
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	remaining, err := s.credits.Deduct(c.Request.Context(), lic.ID, transcriptCreditCost,
		"ai_description", videoID, "description generation")
	if err != nil {
		s.logger.Warn("description generated but deduction failed",
			"license_id", lic.ID, "error", err)
		remaining = lic.CreditsRemaining
	}

	c.JSON(http.StatusOK, gin.H{
		"video_id":          result.VideoID,
		"description":       result.Description,
		"model":             result.Model,
		"tokens_used":       result.TokensUsed,
		"credits_remaining": remaining,
	})
}

// handleVideoData returns video metadata. Metadata lookups do not
// consume credits.
func (s *Server) handleVideoData(c *gin.Context) {
	lic := currentLicense(c)

	var req videoDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "invalid JSON body", false)
		return
	}

	videoID := resolveVideoID(req.VideoID, req.VideoURL)
	if videoID == "" {
		respondError(c, http.StatusBadRequest, gateway.CodeInvalidVideoURL, "a valid YouTube video URL or ID is required", false)
		return
	}

	data, err := s.videoData.GetVideoData(c.Request.Context(), videoID, lic.ID, c.ClientIP())
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, data)
}

type verifyPromptRequest struct {
	Checksum string `json:"checksum"`
}

// handleVerifyPrompt compares the plugin's prompt checksum against the
// stored version
func (s *Server) handleVerifyPrompt(c *gin.Context) {
	lic := currentLicense(c)

	var req verifyPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Checksum == "" {
		respondError(c, http.StatusBadRequest, "invalid_request", "checksum is required", false)
		return
	}

	match, version, err := s.prompts.Verify(c.Request.Context(), lic.ID, req.Checksum)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"match":   match,
		"version": version,
	})
}

// handleFetchPrompt returns the decrypted prompt for the license
func (s *Server) handleFetchPrompt(c *gin.Context) {
	lic := currentLicense(c)

	prompt, err := s.prompts.Fetch(c.Request.Context(), lic.ID)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, prompt)
}
