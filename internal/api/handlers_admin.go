package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ipv-vendor-gateway/internal/auth"
	"ipv-vendor-gateway/internal/license"
)

type adminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// handleAdminLogin authenticates an operator and issues a JWT
func (s *Server) handleAdminLogin(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "username and password are required", false)
		return
	}

	tokens, err := s.authService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if authErr, ok := err.(auth.AuthError); ok {
			respondError(c, http.StatusUnauthorized, authErr.Code, authErr.Message, false)
			return
		}
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokens)
}

type createLicenseRequest struct {
	Plan          string `json:"plan" binding:"required"`
	CustomerEmail string `json:"customer_email"`
	CustomerName  string `json:"customer_name"`
	Notes         string `json:"notes"`
	SiteLockDays  int    `json:"site_lock_days"`
}

// handleCreateLicense provisions a new license
func (s *Server) handleCreateLicense(c *gin.Context) {
	var req createLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "plan is required", false)
		return
	}

	lic, err := s.licenses.Create(c.Request.Context(), license.CreateParams{
		Plan:          req.Plan,
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		Notes:         req.Notes,
		SiteLockDays:  req.SiteLockDays,
	})
	if err != nil {
		if errors.Is(err, license.ErrUnknownPlan) {
			respondError(c, http.StatusBadRequest, "unknown_plan", err.Error(), false)
			return
		}
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusCreated, lic)
}

// handleListLicenses returns licenses, newest first
func (s *Server) handleListLicenses(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	licenses, err := s.repo.ListLicenses(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"licenses": licenses,
		"count":    len(licenses),
	})
}

// handleGetLicense returns one license with its activations
func (s *Server) handleGetLicense(c *gin.Context) {
	id := c.Param("id")

	lic, err := s.repo.GetLicenseByID(c.Request.Context(), id)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}
	if lic == nil {
		respondError(c, http.StatusNotFound, "license_not_found", "license not found", false)
		return
	}

	activations, err := s.repo.ListActivations(c.Request.Context(), id)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"license":     lic,
		"activations": activations,
	})
}

type setStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// handleSetLicenseStatus updates the license status
func (s *Server) handleSetLicenseStatus(c *gin.Context) {
	var req setStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "status is required", false)
		return
	}

	if err := s.licenses.SetStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_status", err.Error(), false)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": true, "status": req.Status})
}

type changePlanRequest struct {
	Plan string `json:"plan" binding:"required"`
}

// handleChangePlan moves a license to a new plan
func (s *Server) handleChangePlan(c *gin.Context) {
	var req changePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "plan is required", false)
		return
	}

	lic, err := s.licenses.ChangePlan(c.Request.Context(), c.Param("id"), req.Plan)
	if err != nil {
		if errors.Is(err, license.ErrUnknownPlan) {
			respondError(c, http.StatusBadRequest, "unknown_plan", err.Error(), false)
			return
		}
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, lic)
}

type adjustCreditsRequest struct {
	Amount int    `json:"amount" binding:"required"`
	Note   string `json:"note"`
}

// handleAdjustCredits applies a signed manual correction
func (s *Server) handleAdjustCredits(c *gin.Context) {
	var req adjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "a non-zero amount is required", false)
		return
	}

	remaining, err := s.credits.Adjust(c.Request.Context(), c.Param("id"), req.Amount, req.Note)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credits_remaining": remaining})
}

type extraCreditsRequest struct {
	Amount int    `json:"amount" binding:"required"`
	RefID  string `json:"ref_id"`
	Note   string `json:"note"`
}

// handleAddExtraCredits grants purchased extra credits
func (s *Server) handleAddExtraCredits(c *gin.Context) {
	var req extraCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
		respondError(c, http.StatusBadRequest, "invalid_request", "a positive amount is required", false)
		return
	}

	remaining, err := s.credits.AddExtra(c.Request.Context(), c.Param("id"), req.Amount, req.RefID, req.Note)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"credits_remaining": remaining})
}

// handleGetLedger returns the credit audit trail for a license
func (s *Server) handleGetLedger(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	entries, err := s.credits.Ledger(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleGetAPILogs returns recent gateway requests for a license
func (s *Server) handleGetAPILogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := s.repo.ListAPILogs(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleLicenseStats returns aggregate license counts
func (s *Server) handleLicenseStats(c *gin.Context) {
	stats, err := s.repo.GetLicenseStats(c.Request.Context())
	if err != nil {
		s.respondAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleAPIStats aggregates gateway traffic for the requested range
func (s *Server) handleAPIStats(c *gin.Context) {
	hours, _ := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if hours <= 0 {
		hours = 24
	}

	stats, err := s.repo.GetAPIStats(c.Request.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		s.respondAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type clearCacheRequest struct {
	Pattern string `json:"pattern"`
}

// handleClearCache flushes cached upstream responses
func (s *Server) handleClearCache(c *gin.Context) {
	if s.cacheService == nil {
		respondError(c, http.StatusServiceUnavailable, "cache_unavailable", "cache is not configured", false)
		return
	}

	var req clearCacheRequest
	_ = c.ShouldBindJSON(&req)

	pattern := req.Pattern
	if pattern == "" {
		pattern = "ipv:transcript:*"
	}

	if err := s.cacheService.DeletePattern(c.Request.Context(), pattern); err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cleared": true, "pattern": pattern})
}

type savePromptRequest struct {
	Prompt string `json:"prompt" binding:"required"`
	Domain string `json:"domain"`
}

// handleSavePrompt stores a golden prompt for a license
func (s *Server) handleSavePrompt(c *gin.Context) {
	var req savePromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "prompt is required", false)
		return
	}

	row, err := s.prompts.Save(c.Request.Context(), c.Param("id"), req.Domain, req.Prompt)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"saved":    true,
		"version":  row.Version,
		"checksum": row.Checksum,
	})
}

type pushMasterRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// handlePushMasterPrompt replaces the master prompt template
func (s *Server) handlePushMasterPrompt(c *gin.Context) {
	var req pushMasterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", "prompt is required", false)
		return
	}

	row, err := s.prompts.PushMaster(c.Request.Context(), req.Prompt)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pushed":   true,
		"version":  row.Version,
		"checksum": row.Checksum,
	})
}
