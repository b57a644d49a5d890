package license

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

// keyCharset excludes I and O to avoid transcription mistakes
const keyCharset = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

var keyPattern = regexp.MustCompile(`^[0-9A-HJ-NP-Z]{4}-[0-9A-HJ-NP-Z]{4}-[0-9A-HJ-NP-Z]{4}-[0-9A-HJ-NP-Z]{4}$`)

// GenerateKey creates a license key in XXXX-XXXX-XXXX-XXXX format
func GenerateKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	var b strings.Builder
	for i, c := range buf {
		if i > 0 && i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(keyCharset[int(c)%len(keyCharset)])
	}
	return b.String(), nil
}

// NormalizeKey uppercases and trims a submitted license key
func NormalizeKey(key string) string {
	return strings.ToUpper(strings.TrimSpace(key))
}

// ValidKeyFormat reports whether a key matches the expected format
func ValidKeyFormat(key string) bool {
	return keyPattern.MatchString(key)
}
