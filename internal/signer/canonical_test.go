package signer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercase scheme and host",
			input:    "HTTPS://API.OpenAI.com/v1/chat",
			expected: "https://api.openai.com/v1/chat",
		},
		{
			name:     "default https port stripped",
			input:    "https://api.openai.com:443/v1/chat",
			expected: "https://api.openai.com/v1/chat",
		},
		{
			name:     "default http port stripped",
			input:    "http://example.com:80/path",
			expected: "http://example.com/path",
		},
		{
			name:     "non-default port preserved",
			input:    "https://example.com:8443/path",
			expected: "https://example.com:8443/path",
		},
		{
			name:     "empty path becomes slash",
			input:    "https://example.com",
			expected: "https://example.com/",
		},
		{
			name:     "query preserved in original order",
			input:    "https://example.com/search?z=1&a=2",
			expected: "https://example.com/search?z=1&a=2",
		},
		{
			name:     "path case preserved",
			input:    "https://example.com/V1/Chat",
			expected: "https://example.com/V1/Chat",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeURL(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeURL_Invalid(t *testing.T) {
	t.Parallel()

	_, err := NormalizeURL("https://exa mple.com/%zz")
	assert.Error(t, err)
}

func TestCanonicalString(t *testing.T) {
	t.Parallel()

	got := canonicalString("post", "https://example.com/v1", "application/json", "hash", "ts", "nonce", "1")
	assert.Equal(t, "POST\nhttps://example.com/v1\napplication/json\nhash\nts\nnonce\n1", got)
}

func TestHashContent(t *testing.T) {
	t.Parallel()

	assert.Empty(t, hashContent(nil))
	assert.Empty(t, hashContent([]byte{}))

	// SHA-256("hello") is stable.
	assert.Equal(t, "LPJNul+wow4m6DsqxbninhsWHlwfp0JecwQzYpOLmCQ=", hashContent([]byte("hello")))
	assert.NotEqual(t, hashContent([]byte("hello")), hashContent([]byte("hello!")))
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "api key redacted",
			input:    "https://example.com/v1?api_key=sk-12345&model=gpt-4",
			expected: "https://example.com/v1?api_key=REDACTED&model=gpt-4",
		},
		{
			name:     "token redacted",
			input:    "https://example.com/v1?access_token=abc",
			expected: "https://example.com/v1?access_token=REDACTED",
		},
		{
			name:     "no sensitive params untouched",
			input:    "https://example.com/v1?model=gpt-4&stream=true",
			expected: "https://example.com/v1?model=gpt-4&stream=true",
		},
		{
			name:     "no query untouched",
			input:    "https://example.com/v1",
			expected: "https://example.com/v1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, RedactURL(tt.input))
		})
	}
}
