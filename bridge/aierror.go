package bridge

import "strings"

// AIErrorKind classifies failures from the AI integration.
type AIErrorKind string

const (
	AIErrInvalidAPIKey      AIErrorKind = "invalid_api_key"
	AIErrRateLimit          AIErrorKind = "rate_limit"
	AIErrServiceUnavailable AIErrorKind = "service_unavailable"
	AIErrNetwork            AIErrorKind = "network_error"
	AIErrUnknown            AIErrorKind = "unknown"
)

var aiErrorPatterns = []struct {
	kind    AIErrorKind
	needles []string
}{
	{AIErrInvalidAPIKey, []string{"api key", "api_key", "apikey", "401", "unauthorized", "invalid key"}},
	{AIErrRateLimit, []string{"rate limit", "rate_limit", "429", "quota", "too many requests"}},
	{AIErrServiceUnavailable, []string{"503", "502", "unavailable", "overloaded"}},
	{AIErrNetwork, []string{"network", "connection", "timeout", "deadline exceeded", "dial", "eof"}},
}

// ClassifyAIError matches an error message against known substrings. The
// match is case-insensitive and the first matching kind wins.
func ClassifyAIError(msg string) AIErrorKind {
	lower := strings.ToLower(msg)
	for _, p := range aiErrorPatterns {
		for _, needle := range p.needles {
			if strings.Contains(lower, needle) {
				return p.kind
			}
		}
	}
	return AIErrUnknown
}

// UserMessage is the text shown to the user for the kind.
func (k AIErrorKind) UserMessage() string {
	switch k {
	case AIErrInvalidAPIKey:
		return "The AI API key is missing or invalid. Check your settings."
	case AIErrRateLimit:
		return "The AI service rate limit was reached. Wait a moment and try again."
	case AIErrServiceUnavailable:
		return "The AI service is temporarily unavailable. Try again later."
	case AIErrNetwork:
		return "Could not reach the AI service. Check your connection."
	}
	return "The AI request failed. Try again."
}
