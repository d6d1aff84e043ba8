package host

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/intellisense"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

// fakeOpenAI answers chat completions with reply and records requests.
type fakeOpenAI struct {
	mu       sync.Mutex
	reply    string
	requests []chatRequest
	auth     []string
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/chat/completions" {
		http.NotFound(w, r)
		return
	}
	var req chatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	reply := f.reply
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   req.Model,
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": reply},
			"finish_reason": "stop",
		}},
		"usage": map[string]int{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
	})
}

func newAIHandler(t *testing.T, apiKey, reply string, opts ...Option) (*Handler, *fakeOpenAI) {
	t.Helper()
	fake := &fakeOpenAI{reply: reply}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	h := newTestHandler(t, Config{
		Workspace: t.TempDir(),
		AI:        AIConfig{APIKey: apiKey, BaseURL: srv.URL + "/v1", RateLimit: 100},
	}, opts...)
	return h, fake
}

func TestAIChatWithoutKey(t *testing.T) {
	h, fake := newAIHandler(t, "", "unused")
	got, err := bridge.Do[string](context.Background(), h, bridge.CmdAIChat, map[string]string{"query": "hi"})
	require.NoError(t, err)
	assert.Equal(t, noKeyChatMessage, got)
	assert.Empty(t, fake.requests)
}

func TestAIChat(t *testing.T) {
	h, fake := newAIHandler(t, "sk-test", "Use a map.")
	got, err := bridge.Do[string](context.Background(), h, bridge.CmdAIChat, map[string]string{
		"query":   "how do I count words?",
		"context": `{"currentFile":null}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Use a map.", got)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, DefaultAIModel, req.Model)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "MeaMind")
	assert.Equal(t, "CONTEXT:\n{\"currentFile\":null}\n\nQUESTION:\nhow do I count words?", req.Messages[1].Content)
	assert.Equal(t, "Bearer sk-test", fake.auth[0])
}

func TestAIExplainUsesCallKey(t *testing.T) {
	h, fake := newAIHandler(t, "", "It adds numbers.")
	got, err := bridge.Do[string](context.Background(), h, bridge.CmdAIExplain, map[string]string{
		"apiKey": "sk-call", "code": "a + b", "language": "javascript",
	})
	require.NoError(t, err)
	assert.Equal(t, "It adds numbers.", got)
	assert.Equal(t, "Bearer sk-call", fake.auth[0])
	assert.Contains(t, fake.requests[0].Messages[1].Content, "```javascript\na + b\n```")
}

func TestAIRefactorWithoutKey(t *testing.T) {
	h, _ := newAIHandler(t, "", "unused")
	_, err := h.Invoke(context.Background(), bridge.CmdAIRefactor, map[string]string{"code": "x", "language": "go"})
	require.ErrorIs(t, err, ErrNoAPIKey)
	assert.Equal(t, bridge.AIErrInvalidAPIKey, bridge.ClassifyAIError(err.Error()))
}

func TestAIIntelliSenseWithModel(t *testing.T) {
	h, fake := newAIHandler(t, "sk-test", "```json\n{\"suggestions\": [\"return x\"], \"errors\": \"\"}\n```")
	got, err := bridge.Do[bridge.IntelliSenseResult](context.Background(), h, bridge.CmdAIIntelliSense, map[string]string{
		"codeSnippet": "func f() {", "programmingLanguage": "go",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"return x"}, got.CompletionSuggestions)
	assert.Empty(t, got.ErrorDetection)

	prompt := fake.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "Analyze this go code snippet")
	assert.NotContains(t, prompt, "Context:")
	assert.InDelta(t, 0.3, fake.requests[0].Temperature, 0.001)
}

func TestAIIntelliSenseServedFromCache(t *testing.T) {
	cache := intellisense.New()
	h, fake := newAIHandler(t, "sk-test", `{"suggestions": ["return x"], "errors": "missing brace"}`, WithCache(cache))
	payload := map[string]string{"codeSnippet": "func f() {", "programmingLanguage": "go", "context": "main.go"}

	first, err := bridge.Do[bridge.IntelliSenseResult](context.Background(), h, bridge.CmdAIIntelliSense, payload)
	require.NoError(t, err)
	second, err := bridge.Do[bridge.IntelliSenseResult](context.Background(), h, bridge.CmdAIIntelliSense, payload)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"return x"}, second.CompletionSuggestions)
	assert.Equal(t, "missing brace", second.ErrorDetection)
	assert.Len(t, fake.requests, 1, "second identical call must not reach the model")
	assert.Equal(t, 1, cache.Len())

	payload["context"] = "other.go"
	_, err = bridge.Do[bridge.IntelliSenseResult](context.Background(), h, bridge.CmdAIIntelliSense, payload)
	require.NoError(t, err)
	assert.Len(t, fake.requests, 2)
}

func TestHeuristicIntelliSense(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		language string
		want     bridge.IntelliSenseResult
	}{
		{
			name: "empty",
			code: "  \n",
			want: bridge.IntelliSenseResult{CompletionSuggestions: []string{"// Start typing to get suggestions"}},
		},
		{
			name:     "javascript without semicolon",
			code:     "let x = f(1",
			language: "JavaScript",
			want: bridge.IntelliSenseResult{
				CompletionSuggestions: []string{"Add missing semicolon", "Refactor variables to const/let", "Extract function"},
				ErrorDetection:        "Unbalanced parentheses",
			},
		},
		{
			name:     "javascript with semicolon",
			code:     "let x = 1;\n",
			language: "javascript",
			want: bridge.IntelliSenseResult{
				CompletionSuggestions: []string{"Refactor variables to const/let", "Extract function"},
			},
		},
		{
			name:     "other language",
			code:     "x = [1",
			language: "python",
			want: bridge.IntelliSenseResult{
				CompletionSuggestions: []string{"Refactor variables to const/let", "Extract function"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, heuristicIntelliSense(tt.code, tt.language))
		})
	}
}

func TestParseIntelliSense(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		got := parseIntelliSense(`{"suggestions": ["a", "b"], "errors": "missing return"}`, "")
		assert.Equal(t, []string{"a", "b"}, got.CompletionSuggestions)
		assert.Equal(t, "missing return", got.ErrorDetection)
	})
	t.Run("json without errors checks balance", func(t *testing.T) {
		got := parseIntelliSense(`{"suggestions": []}`, "if (a) { b[0")
		assert.Empty(t, got.CompletionSuggestions)
		assert.Equal(t, "Unbalanced braces", got.ErrorDetection)
	})
	t.Run("json without suggestions", func(t *testing.T) {
		got := parseIntelliSense(`{"errors": ["x"]}`, "f()")
		assert.Equal(t, []string{}, got.CompletionSuggestions)
		assert.Equal(t, "", got.ErrorDetection)
	})
	t.Run("plain text", func(t *testing.T) {
		got := parseIntelliSense("Here is a suggestion: close the loop\nnothing\nYou could add a test", "")
		assert.Equal(t, []string{"Here is a suggestion: close the loop", "You could add a test"}, got.CompletionSuggestions)
	})
	t.Run("plain text without hints", func(t *testing.T) {
		got := parseIntelliSense("looks fine", "")
		assert.Equal(t, []string{"Continue typing..."}, got.CompletionSuggestions)
	})
}

func TestBulletLines(t *testing.T) {
	got := bulletLines("intro\n- one\n  • two\n-three\n- 4\n- 5\n- 6")
	assert.Equal(t, []string{"one", "two", "three", "4", "5"}, got)
}
