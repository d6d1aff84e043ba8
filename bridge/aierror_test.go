package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyAIError(t *testing.T) {
	tests := []struct {
		msg  string
		want AIErrorKind
	}{
		{"error, status code: 401, message: Incorrect API key provided", AIErrInvalidAPIKey},
		{"Unauthorized", AIErrInvalidAPIKey},
		{"Rate limit reached for gpt-4o", AIErrRateLimit},
		{"You exceeded your current quota", AIErrRateLimit},
		{"503 Service Unavailable", AIErrServiceUnavailable},
		{"dial tcp: lookup api.openai.com: no such host", AIErrNetwork},
		{"context deadline exceeded", AIErrNetwork},
		{"something odd", AIErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyAIError(tt.msg))
		})
	}
}

func TestUserMessagesDistinct(t *testing.T) {
	seen := map[string]bool{}
	for _, k := range []AIErrorKind{AIErrInvalidAPIKey, AIErrRateLimit, AIErrServiceUnavailable, AIErrNetwork, AIErrUnknown} {
		msg := k.UserMessage()
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "duplicate message for %s", k)
		seen[msg] = true
	}
}
