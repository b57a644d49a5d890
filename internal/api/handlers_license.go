package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ipv-vendor-gateway/internal/database"
)

type licenseRequest struct {
	LicenseKey string `json:"license_key"`
	Domain     string `json:"domain"`
	SiteURL    string `json:"site_url"`
}

// licenseView is the wire shape for a license, hiding internal notes
type licenseView struct {
	Key              string `json:"license_key"`
	Status           string `json:"status"`
	Plan             string `json:"plan"`
	CreditsRemaining int    `json:"credits_remaining"`
	CreditsMonthly   int    `json:"credits_monthly"`
	CreditsUsedMonth int    `json:"credits_used_month"`
	ActivationLimit  int    `json:"activation_limit"`
	ActivationCount  int    `json:"activation_count"`
	ExpiresAt        string `json:"expires_at,omitempty"`
	CreditsResetDate string `json:"credits_reset_date,omitempty"`
}

func toLicenseView(l *database.License) licenseView {
	v := licenseView{
		Key:              l.Key,
		Status:           l.Status,
		Plan:             l.Plan,
		CreditsRemaining: l.CreditsRemaining,
		CreditsMonthly:   l.CreditsMonthly,
		CreditsUsedMonth: l.CreditsUsedMonth,
		ActivationLimit:  l.ActivationLimit,
		ActivationCount:  l.ActivationCount,
	}
	if l.ExpiresAt != nil {
		v.ExpiresAt = l.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z")
	}
	if l.CreditsResetDate != nil {
		v.CreditsResetDate = l.CreditsResetDate.UTC().Format("2006-01-02")
	}
	return v
}

// handleValidateLicense checks a key against its status and domain.
// Missing parameters are a 400, a key that fails validation is a 401.
func (s *Server) handleValidateLicense(c *gin.Context) {
	key, domain := extractCredentials(c)
	if key == "" {
		respondError(c, http.StatusBadRequest, "missing_license", "license key is required", false)
		return
	}
	if domain == "" {
		respondError(c, http.StatusBadRequest, "missing_domain", "domain is required for validation", false)
		return
	}

	lic, err := s.licenses.Validate(c.Request.Context(), key, domain)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":   true,
		"license": toLicenseView(lic),
	})
}

// handleActivateLicense binds the requesting domain to the license
func (s *Server) handleActivateLicense(c *gin.Context) {
	key, domain := extractCredentials(c)
	if key == "" {
		respondError(c, http.StatusBadRequest, "missing_license", "license key is required", false)
		return
	}
	if domain == "" {
		respondError(c, http.StatusBadRequest, "missing_domain", "domain is required for activation", false)
		return
	}

	var req licenseRequest
	_ = c.ShouldBindJSON(&req)

	lic, activation, err := s.licenses.Activate(c.Request.Context(), key, domain, req.SiteURL)
	if err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"activated": true,
		"domain":    activation.Domain,
		"license":   toLicenseView(lic),
	})
}

// handleDeactivateLicense releases the requesting domain
func (s *Server) handleDeactivateLicense(c *gin.Context) {
	key, domain := extractCredentials(c)
	if key == "" {
		respondError(c, http.StatusBadRequest, "missing_license", "license key is required", false)
		return
	}
	if domain == "" {
		respondError(c, http.StatusBadRequest, "missing_domain", "domain is required for deactivation", false)
		return
	}

	if err := s.licenses.Deactivate(c.Request.Context(), key, domain); err != nil {
		s.respondAPIError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deactivated": true,
		"domain":      domain,
	})
}
