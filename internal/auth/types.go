package auth

// AdminClaims carries the identity embedded in admin tokens
type AdminClaims struct {
	AdminID  string `json:"admin_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// TokenPair is returned on login
type TokenPair struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// AuthError is an authentication error with a stable code
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

var (
	ErrInvalidToken       = AuthError{Code: "invalid_token", Message: "invalid or malformed token"}
	ErrTokenExpired       = AuthError{Code: "token_expired", Message: "token has expired"}
	ErrUnauthorized       = AuthError{Code: "unauthorized", Message: "authentication required"}
	ErrForbidden          = AuthError{Code: "forbidden", Message: "insufficient permissions"}
	ErrInvalidCredentials = AuthError{Code: "invalid_credentials", Message: "invalid username or password"}
)
