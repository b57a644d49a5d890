package gateway

import "fmt"

// Error codes returned to plugin clients
const (
	CodeSupadataUnauthorized = "supadata_unauthorized"
	CodeSupadataError        = "supadata_error"
	CodeTranscriptFailed     = "transcript_failed"
	CodeOpenAIError          = "openai_error"
	CodeVideoNotFound        = "video_not_found"
	CodeYouTubeError         = "youtube_error"
	CodeInvalidVideoURL      = "invalid_video_url"
	CodeMissingAPIKey        = "missing_api_key"
)

// APIError is a tagged error carrying the code, HTTP status, and retry
// hint that the plugin client acts on
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Retry   bool   `json:"retry"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a tagged gateway error
func NewAPIError(code, message string, status int, retry bool) *APIError {
	return &APIError{Code: code, Message: message, Status: status, Retry: retry}
}

// AsAPIError unwraps an error to an APIError when possible
func AsAPIError(err error) (*APIError, bool) {
	apiErr, ok := err.(*APIError)
	return apiErr, ok
}
