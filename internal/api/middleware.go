package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"ipv-vendor-gateway/internal/credits"
	"ipv-vendor-gateway/internal/database"
	"ipv-vendor-gateway/internal/gateway"
	"ipv-vendor-gateway/internal/goldenprompt"
	"ipv-vendor-gateway/internal/license"
	"ipv-vendor-gateway/internal/logging"
)

// Context keys set by the license auth middleware
const (
	ContextKeyLicense = "license"
	ContextKeyDomain  = "request_domain"
)

// blockedAgents are user agent fragments rejected when bot blocking is
// enabled
var blockedAgents = []string{
	"curl/",
	"wget/",
	"python-requests",
	"scrapy",
	"nikto",
	"sqlmap",
	"masscan",
}

// sqlInjectionPattern screens query parameters for obvious injection
// probes. This is a tripwire for scanners, not an escaping layer; all
// queries are parameterized.
var sqlInjectionPattern = regexp.MustCompile(`(?i)(union\s+select|drop\s+table|insert\s+into|information_schema|sleep\s*\(|benchmark\s*\(|;\s*--)`)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

func respondError(c *gin.Context, status int, code, message string, retry bool) {
	c.AbortWithStatusJSON(status, errorBody{Error: code, Message: message, Retry: retry})
}

// respondAPIError maps a gateway or license error to the wire format
func (s *Server) respondAPIError(c *gin.Context, err error) {
	if apiErr, ok := gateway.AsAPIError(err); ok {
		respondError(c, apiErr.Status, apiErr.Code, apiErr.Message, apiErr.Retry)
		return
	}

	switch {
	case errors.Is(err, license.ErrNotFound):
		respondError(c, http.StatusUnauthorized, "license_not_found", "license key not found", false)
	case errors.Is(err, license.ErrInactive):
		respondError(c, http.StatusUnauthorized, "license_inactive", "license is not active", false)
	case errors.Is(err, license.ErrDomainMismatch):
		respondError(c, http.StatusUnauthorized, "domain_mismatch", "domain is not activated for this license", false)
	case errors.Is(err, license.ErrActivationLimit):
		respondError(c, http.StatusUnauthorized, "activation_limit_reached", "activation limit reached for this license", false)
	case errors.Is(err, license.ErrSiteLocked):
		respondError(c, http.StatusUnauthorized, "site_locked", "site changes are locked for this license", false)
	case errors.Is(err, credits.ErrInsufficientCredits):
		respondError(c, http.StatusPaymentRequired, "insufficient_credits", "not enough credits remaining", false)
	case errors.Is(err, goldenprompt.ErrNotFound):
		respondError(c, http.StatusNotFound, "prompt_not_found", "no golden prompt stored", false)
	default:
		s.logger.Error("internal error", "error", err)
		respondError(c, http.StatusInternalServerError, "internal_error", "an internal error occurred", true)
	}
}

// requestLogMiddleware assigns each request a trace ID, echoes it in
// the response, and writes a structured completion log carrying it
func (s *Server) requestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Trace-ID")
		if traceID == "" {
			traceID = logging.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(logging.NewContext(c.Request.Context(), traceID))
		c.Header("X-Trace-ID", traceID)

		start := time.Now()
		c.Next()

		logging.RequestContext(c.Request.Context(), c.Request.Method, c.Request.URL.Path, c.ClientIP()).
			Info("request completed",
				"status", c.Writer.Status(),
				"duration_ms", time.Since(start).Milliseconds())
	}
}

// requestValidationMiddleware caps body size, blocks scraper agents,
// and screens query parameters. Blocked requests are written to the
// security log without failing the request path.
func (s *Server) requestValidationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.config.MaxRequestBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxRequestBytes)
		}

		if s.config.BlockBots {
			ua := strings.ToLower(c.GetHeader("User-Agent"))
			for _, blocked := range blockedAgents {
				if strings.Contains(ua, blocked) {
					s.logSecurityEvent(c, "blocked_agent", ua)
					respondError(c, http.StatusForbidden, "request_blocked", "request blocked", false)
					return
				}
			}
		}

		if raw := c.Request.URL.RawQuery; raw != "" {
			decoded, err := url.QueryUnescape(raw)
			if err != nil {
				decoded = raw
			}
			if sqlInjectionPattern.MatchString(decoded) {
				s.logSecurityEvent(c, "sql_injection_probe", decoded)
				respondError(c, http.StatusBadRequest, "request_blocked", "request blocked", false)
				return
			}
		}

		c.Next()
	}
}

func (s *Server) logSecurityEvent(c *gin.Context, reason, detail string) {
	if s.repo == nil {
		return
	}
	entry := &database.SecurityLogEntry{
		ClientIP:  c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
		Path:      c.Request.URL.Path,
		Reason:    reason,
		Detail:    detail,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.InsertSecurityLog(ctx, entry); err != nil {
			s.logger.Warn("failed to write security log", "error", err)
		}
	}()
}

// authPayload is the subset of the JSON body the auth middleware reads
type authPayload struct {
	LicenseKey string `json:"license_key"`
	Domain     string `json:"domain"`
}

// extractCredentials resolves the license key and domain for a request.
// Key precedence: Authorization Bearer, then X-License-Key, then
// X-API-Key, then the license_key body field. Domain comes from the
// X-Site-URL header's host, falling back to the body domain field.
// The body is restored so handlers can bind it again.
func extractCredentials(c *gin.Context) (key, domain string) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			key = strings.TrimSpace(parts[1])
		}
	}
	if key == "" {
		key = c.GetHeader("X-License-Key")
	}
	if key == "" {
		key = c.GetHeader("X-API-Key")
	}

	if siteURL := c.GetHeader("X-Site-URL"); siteURL != "" {
		if parsed, err := url.Parse(siteURL); err == nil && parsed.Host != "" {
			domain = parsed.Hostname()
		}
	}

	if key != "" && domain != "" {
		return key, domain
	}

	body, err := io.ReadAll(c.Request.Body)
	if err == nil {
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		var payload authPayload
		if json.Unmarshal(body, &payload) == nil {
			if key == "" {
				key = payload.LicenseKey
			}
			if domain == "" {
				domain = payload.Domain
			}
		}
	}

	return key, domain
}

// licenseAuthMiddleware validates the license behind every gateway
// request and stores it on the context
func (s *Server) licenseAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, domain := extractCredentials(c)
		if key == "" {
			respondError(c, http.StatusUnauthorized, "missing_license", "license key is required", false)
			return
		}

		lic, err := s.licenses.Validate(c.Request.Context(), key, domain)
		if err != nil {
			logging.LicenseContext(c.Request.Context(), key, domain).
				Debug("license validation rejected", "error", err)
			s.respondAPIError(c, err)
			return
		}

		c.Set(ContextKeyLicense, lic)
		c.Set(ContextKeyDomain, domain)
		c.Next()
	}
}

// rateLimitMiddleware enforces the fixed-window per-license limit
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		lic := currentLicense(c)
		if lic == nil {
			c.Next()
			return
		}

		result, err := s.limiter.Allow(c.Request.Context(), lic.ID)
		if err != nil {
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			respondError(c, http.StatusTooManyRequests, "rate_limit_exceeded",
				"rate limit exceeded, try again later", true)
			return
		}

		c.Next()
	}
}

// currentLicense returns the validated license from the context
func currentLicense(c *gin.Context) *database.License {
	if v, exists := c.Get(ContextKeyLicense); exists {
		return v.(*database.License)
	}
	return nil
}
