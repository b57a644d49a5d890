package gateway

import "testing"

func TestExtractVideoID(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"raw id", "dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"watch url with extra params", "https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ&t=10s", "dQw4w9WgXcQ"},
		{"short url", "https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"short url with timestamp", "https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ"},
		{"embed url", "https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"shorts url", "https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"no scheme", "youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"id with underscore and dash", "a_b-c_d-e_f", "a_b-c_d-e_f"},
		{"too short", "abc123", ""},
		{"too long raw id", "dQw4w9WgXcQQ", ""},
		{"unrelated url", "https://example.com/watch?v=notavideo", ""},
		{"empty", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ExtractVideoID(tc.input); got != tc.expected {
				t.Errorf("ExtractVideoID(%q) = %q, expected %q", tc.input, got, tc.expected)
			}
		})
	}
}
