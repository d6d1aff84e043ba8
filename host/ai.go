package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/odvcencio/meacode/bridge"
)

const (
	DefaultAIModel     = "gpt-4o-mini"
	DefaultAITimeout   = 60 * time.Second
	DefaultAIRateLimit = 2.0
	DefaultAIBurst     = 4

	maxSuggestions = 5
)

// ErrNoAPIKey is returned by calls that need a key when none is set.
var ErrNoAPIKey = errors.New("no API key configured")

const noKeyChatMessage = "No API key configured. Set OPENAI_API_KEY (or ai.api_key in meacode.yaml) to chat with MeaMind."

const assistantPrompt = "You are MeaMind, a programming assistant built into an IDE. Answer concisely. " +
	"When you suggest complete code ready to apply, use a ```suggestion:<language> ...``` block."

// AIConfig configures the OpenAI-compatible backend.
type AIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// RateLimit is requests per second across all AI commands.
	RateLimit float64
	Burst     int
	Timeout   time.Duration
}

type aiService struct {
	cfg     AIConfig
	log     zerolog.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	clients map[string]*openai.Client
}

func newAIService(cfg AIConfig, log zerolog.Logger) *aiService {
	if cfg.Model == "" {
		cfg.Model = DefaultAIModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAITimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultAIRateLimit
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultAIBurst
	}
	return &aiService{
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		clients: make(map[string]*openai.Client),
	}
}

func (s *aiService) client(apiKey string) *openai.Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[apiKey]; ok {
		return c
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if s.cfg.BaseURL != "" {
		clientConfig.BaseURL = s.cfg.BaseURL
	}
	c := openai.NewClientWithConfig(clientConfig)
	s.clients[apiKey] = c
	return c
}

// complete sends one user prompt and returns the first choice.
func (s *aiService) complete(ctx context.Context, apiKey, system, prompt string, temperature float32, maxTokens int) (string, error) {
	if apiKey == "" {
		return "", ErrNoAPIKey
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	start := time.Now()
	resp, err := s.client(apiKey).CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}
	s.log.Debug().Str("model", s.cfg.Model).Dur("took", time.Since(start)).Int("tokens", resp.Usage.TotalTokens).Msg("ai completion")
	return resp.Choices[0].Message.Content, nil
}

func (s *aiService) keyOr(apiKey string) string {
	if apiKey != "" {
		return apiKey
	}
	return s.cfg.APIKey
}

func buildChatPrompt(editorContext, query string) string {
	return "CONTEXT:\n" + editorContext + "\n\nQUESTION:\n" + query
}

func (h *Handler) aiCommands() []Command {
	type codeParams struct {
		APIKey   string `json:"apiKey"`
		Code     string `json:"code"`
		Language string `json:"language"`
		Error    string `json:"error"`
	}
	codeTask := func(name, description string, prompt func(p codeParams) string) Command {
		return Command{
			Name:        name,
			Description: description,
			Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
				p, err := bind[codeParams](params)
				if err != nil {
					return nil, err
				}
				return h.ai.complete(ctx, h.ai.keyOr(p.APIKey), assistantPrompt, prompt(p), 0.2, 0)
			},
		}
	}

	return []Command{
		{
			Name:        bridge.CmdAIChat,
			Description: "Answers a question about the editor context.",
			Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
				p, err := bind[struct {
					Query   string `json:"query"`
					Context string `json:"context"`
				}](params)
				if err != nil {
					return nil, err
				}
				if h.ai.cfg.APIKey == "" {
					return noKeyChatMessage, nil
				}
				return h.ai.complete(ctx, h.ai.cfg.APIKey, assistantPrompt, buildChatPrompt(p.Context, p.Query), 0.7, 0)
			},
		},
		{
			Name:        bridge.CmdAIIntelliSense,
			Description: "Completion suggestions and error detection for a snippet.",
			Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
				p, err := bind[struct {
					CodeSnippet         string `json:"codeSnippet"`
					ProgrammingLanguage string `json:"programmingLanguage"`
					Context             string `json:"context"`
				}](params)
				if err != nil {
					return nil, err
				}
				if h.ai.cfg.APIKey == "" {
					return heuristicIntelliSense(p.CodeSnippet, p.ProgrammingLanguage), nil
				}
				if hit, ok := h.cache.Get(p.CodeSnippet, p.ProgrammingLanguage, p.Context); ok {
					return bridge.IntelliSenseResult{CompletionSuggestions: hit.Suggestions, ErrorDetection: hit.Error}, nil
				}
				prompt := intelliSensePrompt(p.CodeSnippet, p.ProgrammingLanguage, p.Context)
				text, err := h.ai.complete(ctx, h.ai.cfg.APIKey, "", prompt, 0.3, 500)
				if err != nil {
					return nil, err
				}
				res := parseIntelliSense(text, p.CodeSnippet)
				h.cache.Set(p.CodeSnippet, p.ProgrammingLanguage, p.Context, res.CompletionSuggestions, res.ErrorDetection)
				return res, nil
			},
		},
		codeTask(bridge.CmdAIExplain, "Explains a piece of code.", func(p codeParams) string {
			return fmt.Sprintf("Explain what this %s code does:\n\n```%s\n%s\n```", p.Language, p.Language, p.Code)
		}),
		codeTask(bridge.CmdAIFix, "Returns a corrected version of a piece of code.", func(p codeParams) string {
			prompt := fmt.Sprintf("Fix this %s code and return only the corrected code:\n\n```%s\n%s\n```", p.Language, p.Language, p.Code)
			if p.Error != "" {
				prompt += "\n\nError:\n" + p.Error
			}
			return prompt
		}),
		codeTask(bridge.CmdAIRefactor, "Returns a refactored version of a piece of code.", func(p codeParams) string {
			return fmt.Sprintf("Refactor this %s code for readability and return only the new code:\n\n```%s\n%s\n```", p.Language, p.Language, p.Code)
		}),
	}
}

func intelliSensePrompt(code, language, editorContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an AI code assistant. Analyze this %s code snippet and provide:\n"+
		"1. 3-5 intelligent code completion suggestions\n"+
		"2. Any errors or potential issues\n\n"+
		"Code:\n```%s\n%s\n```\n", language, language, code)
	if editorContext != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(editorContext)
	}
	b.WriteString("\n\nRespond in JSON format: {\"suggestions\": [\"suggestion1\", \"suggestion2\"], \"errors\": \"error description\"}")
	return b.String()
}

// heuristicIntelliSense answers without a model.
func heuristicIntelliSense(code, language string) bridge.IntelliSenseResult {
	out := bridge.IntelliSenseResult{CompletionSuggestions: []string{}}
	if strings.TrimSpace(code) == "" {
		out.CompletionSuggestions = append(out.CompletionSuggestions, "// Start typing to get suggestions")
	} else {
		if !strings.HasSuffix(strings.TrimRight(code, " \t\r\n"), ";") && strings.Contains(strings.ToLower(language), "javascript") {
			out.CompletionSuggestions = append(out.CompletionSuggestions, "Add missing semicolon")
		}
		out.CompletionSuggestions = append(out.CompletionSuggestions, "Refactor variables to const/let", "Extract function")
	}
	if strings.Count(code, "(") != strings.Count(code, ")") {
		out.ErrorDetection = "Unbalanced parentheses"
	}
	return out
}

// parseIntelliSense reads the model's answer. JSON is preferred; missing
// fields and plain-text answers fall back to line extraction.
func parseIntelliSense(text, code string) bridge.IntelliSenseResult {
	var parsed map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFence(text)), &parsed); err != nil {
		var suggestions []string
		for _, line := range strings.Split(text, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			if strings.Contains(line, "suggestion") || strings.Contains(line, "complete") || strings.Contains(line, "add") {
				suggestions = append(suggestions, strings.TrimSpace(line))
				if len(suggestions) == maxSuggestions {
					break
				}
			}
		}
		if len(suggestions) == 0 {
			suggestions = []string{"Continue typing..."}
		}
		return bridge.IntelliSenseResult{CompletionSuggestions: suggestions}
	}

	out := bridge.IntelliSenseResult{}
	if err := json.Unmarshal(parsed["suggestions"], &out.CompletionSuggestions); err != nil || out.CompletionSuggestions == nil {
		out.CompletionSuggestions = bulletLines(text)
	}
	if err := json.Unmarshal(parsed["errors"], &out.ErrorDetection); err != nil {
		out.ErrorDetection = balanceError(code)
	}
	return out
}

func bulletLines(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "•") {
			continue
		}
		line = strings.TrimSpace(strings.TrimLeft(line, "-•"))
		out = append(out, line)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}

func balanceError(code string) string {
	switch {
	case strings.Count(code, "(") != strings.Count(code, ")"):
		return "Unbalanced parentheses"
	case strings.Count(code, "{") != strings.Count(code, "}"):
		return "Unbalanced braces"
	case strings.Count(code, "[") != strings.Count(code, "]"):
		return "Unbalanced brackets"
	}
	return ""
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
