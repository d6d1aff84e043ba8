package bridge

import (
	"context"

	"github.com/odvcencio/meacode/intellisense"
	"github.com/rs/zerolog"
)

// Client wraps the host commands as total functions: a rejected call or a
// malformed result yields a type-appropriate default instead of an error.
type Client struct {
	inv   Invoker
	host  *Host
	cache *intellisense.Cache
	log   zerolog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used to record swallowed failures.
func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// WithCache enables result caching for AIIntelliSenseCached.
func WithCache(cache *intellisense.Cache) ClientOption {
	return func(c *Client) { c.cache = cache }
}

// NewClient wraps inv.
func NewClient(inv Invoker, opts ...ClientOption) *Client {
	c := &Client{inv: inv, host: NewHost(inv), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Host returns the strict view of the same invoker.
func (c *Client) Host() *Host {
	return c.host
}

func (c *Client) swallow(command string, err error) {
	c.log.Debug().Err(err).Str("command", command).Msg("bridge call failed, using default")
}

// ReadFile returns the file text, or "" on failure.
func (c *Client) ReadFile(ctx context.Context, path string) string {
	text, err := c.host.ReadFile(ctx, path)
	if err != nil {
		c.swallow(CmdReadFile, err)
		return ""
	}
	return text
}

// WriteFile reports whether the write succeeded.
func (c *Client) WriteFile(ctx context.Context, path, contents string) bool {
	if err := c.host.WriteFile(ctx, path, contents); err != nil {
		c.swallow(CmdWriteFile, err)
		return false
	}
	return true
}

// ListDir returns a recursive listing, or an empty one on failure.
func (c *Client) ListDir(ctx context.Context, dir string) []FsTreeItem {
	items, err := c.host.ListDir(ctx, dir)
	if err != nil {
		c.swallow(CmdListDir, err)
		return []FsTreeItem{}
	}
	if items == nil {
		return []FsTreeItem{}
	}
	return items
}

// Cwd returns the host working directory, or "" on failure.
func (c *Client) Cwd(ctx context.Context) string {
	cwd, err := c.host.Cwd(ctx)
	if err != nil {
		c.swallow(CmdGetCwd, err)
		return ""
	}
	return cwd
}

// AppConfigDir returns the configuration directory, or "" on failure.
func (c *Client) AppConfigDir(ctx context.Context) string {
	dir, err := c.host.AppConfigDir(ctx)
	if err != nil {
		c.swallow(CmdAppConfigDir, err)
		return ""
	}
	return dir
}

// LspCompletion returns completions at the document position.
func (c *Client) LspCompletion(ctx context.Context, doc DocumentParams) []CompletionItem {
	items, err := Do[[]CompletionItem](ctx, c.inv, CmdLspCompletion, doc)
	if err != nil {
		c.swallow(CmdLspCompletion, err)
		return []CompletionItem{}
	}
	if items == nil {
		return []CompletionItem{}
	}
	return items
}

// LspHover returns hover text at the document position, or nil.
func (c *Client) LspHover(ctx context.Context, doc DocumentParams) *Hover {
	hover, err := Do[*Hover](ctx, c.inv, CmdLspHover, doc)
	if err != nil {
		c.swallow(CmdLspHover, err)
		return nil
	}
	return hover
}

// LspDiagnostics returns the diagnostics for a document.
func (c *Client) LspDiagnostics(ctx context.Context, path, language, content string) []Diagnostic {
	diags, err := Do[[]Diagnostic](ctx, c.inv, CmdLspDiagnostics, map[string]any{
		"path":     path,
		"language": language,
		"content":  content,
	})
	if err != nil {
		c.swallow(CmdLspDiagnostics, err)
		return []Diagnostic{}
	}
	if diags == nil {
		return []Diagnostic{}
	}
	return diags
}

// GitStatus returns the working-tree summary, or nil when unavailable.
func (c *Client) GitStatus(ctx context.Context, workspace string) *GitStatus {
	status, err := Do[*GitStatus](ctx, c.inv, CmdGitStatus, map[string]any{"workspacePath": workspace})
	if err != nil {
		c.swallow(CmdGitStatus, err)
		return nil
	}
	return status
}

// GitBranches returns local then remote branches.
func (c *Client) GitBranches(ctx context.Context, workspace string) []GitBranch {
	branches, err := Do[[]GitBranch](ctx, c.inv, CmdGitBranches, map[string]any{"workspacePath": workspace})
	if err != nil {
		c.swallow(CmdGitBranches, err)
		return []GitBranch{}
	}
	if branches == nil {
		return []GitBranch{}
	}
	return branches
}

func (c *Client) gitText(ctx context.Context, command string, payload map[string]any) string {
	out, err := Do[string](ctx, c.inv, command, payload)
	if err != nil {
		c.swallow(command, err)
		return ""
	}
	return out
}

// GitAddFiles stages files.
func (c *Client) GitAddFiles(ctx context.Context, workspace string, files []string) string {
	return c.gitText(ctx, CmdGitAddFiles, map[string]any{"workspacePath": workspace, "files": files})
}

// GitCommit commits the index with message.
func (c *Client) GitCommit(ctx context.Context, workspace, message string) string {
	return c.gitText(ctx, CmdGitCommit, map[string]any{"workspacePath": workspace, "message": message})
}

// GitPush pushes branch, or the current branch when empty.
func (c *Client) GitPush(ctx context.Context, workspace, branch string) string {
	payload := map[string]any{"workspacePath": workspace}
	if branch != "" {
		payload["branch"] = branch
	}
	return c.gitText(ctx, CmdGitPush, payload)
}

// GitPull pulls the current branch.
func (c *Client) GitPull(ctx context.Context, workspace string) string {
	return c.gitText(ctx, CmdGitPull, map[string]any{"workspacePath": workspace})
}

// GitCheckoutBranch switches to an existing branch.
func (c *Client) GitCheckoutBranch(ctx context.Context, workspace, branch string) string {
	return c.gitText(ctx, CmdGitCheckoutBranch, map[string]any{"workspacePath": workspace, "branchName": branch})
}

// GitCreateBranch creates and switches to a branch.
func (c *Client) GitCreateBranch(ctx context.Context, workspace, branch string) string {
	return c.gitText(ctx, CmdGitCreateBranch, map[string]any{"workspacePath": workspace, "branchName": branch})
}

// GitDiff returns a unified diff for filePath, or for every change when empty.
func (c *Client) GitDiff(ctx context.Context, workspace, filePath string) string {
	payload := map[string]any{"workspacePath": workspace}
	if filePath != "" {
		payload["filePath"] = filePath
	}
	return c.gitText(ctx, CmdGitGetDiff, payload)
}

func (c *Client) aiText(ctx context.Context, command string, payload map[string]any) string {
	out, err := Do[string](ctx, c.inv, command, payload)
	if err != nil {
		c.swallow(command, err)
		return ClassifyAIError(err.Error()).UserMessage()
	}
	return out
}

// AIChat asks the assistant query with the serialized editor context.
func (c *Client) AIChat(ctx context.Context, query, editorContext string) string {
	return c.aiText(ctx, CmdAIChat, map[string]any{"query": query, "context": editorContext})
}

// AIExplain explains code.
func (c *Client) AIExplain(ctx context.Context, apiKey, code, language string) string {
	return c.aiText(ctx, CmdAIExplain, map[string]any{"apiKey": apiKey, "code": code, "language": language})
}

// AIFix proposes a corrected version of code.
func (c *Client) AIFix(ctx context.Context, apiKey, code, language string) string {
	return c.aiText(ctx, CmdAIFix, map[string]any{"apiKey": apiKey, "code": code, "language": language})
}

// AIRefactor proposes a refactored version of code.
func (c *Client) AIRefactor(ctx context.Context, apiKey, code, language string) string {
	return c.aiText(ctx, CmdAIRefactor, map[string]any{"apiKey": apiKey, "code": code, "language": language})
}

// AIIntelliSense returns completion suggestions and detected errors.
func (c *Client) AIIntelliSense(ctx context.Context, code, language, editorContext string) IntelliSenseResult {
	out, err := Do[IntelliSenseResult](ctx, c.inv, CmdAIIntelliSense, map[string]any{
		"codeSnippet":         code,
		"programmingLanguage": language,
		"context":             editorContext,
	})
	if err != nil {
		c.swallow(CmdAIIntelliSense, err)
		return IntelliSenseResult{CompletionSuggestions: []string{}}
	}
	if out.CompletionSuggestions == nil {
		out.CompletionSuggestions = []string{}
	}
	return out
}

// AIIntelliSenseCached consults the cache before calling the host. Only
// successful calls are stored.
func (c *Client) AIIntelliSenseCached(ctx context.Context, code, language, editorContext string) IntelliSenseResult {
	if c.cache == nil {
		return c.AIIntelliSense(ctx, code, language, editorContext)
	}
	if hit, ok := c.cache.Get(code, language, editorContext); ok {
		return IntelliSenseResult{CompletionSuggestions: hit.Suggestions, ErrorDetection: hit.Error}
	}
	out, err := Do[IntelliSenseResult](ctx, c.inv, CmdAIIntelliSense, map[string]any{
		"codeSnippet":         code,
		"programmingLanguage": language,
		"context":             editorContext,
	})
	if err != nil {
		c.swallow(CmdAIIntelliSense, err)
		return IntelliSenseResult{CompletionSuggestions: []string{}}
	}
	if out.CompletionSuggestions == nil {
		out.CompletionSuggestions = []string{}
	}
	c.cache.Set(code, language, editorContext, out.CompletionSuggestions, out.ErrorDetection)
	return out
}

// GetSubscription returns the user's plan, or status "error".
func (c *Client) GetSubscription(ctx context.Context, userID string) Subscription {
	sub, err := Do[Subscription](ctx, c.inv, CmdGetSubscription, map[string]any{"userId": userID})
	if err != nil {
		c.swallow(CmdGetSubscription, err)
		return Subscription{Status: "error"}
	}
	return sub
}

// CreateCheckoutSession starts a checkout for plan, or returns status "error".
func (c *Client) CreateCheckoutSession(ctx context.Context, userID, plan string) CheckoutSession {
	session, err := Do[CheckoutSession](ctx, c.inv, CmdCreateCheckoutSession, map[string]any{"userId": userID, "plan": plan})
	if err != nil {
		c.swallow(CmdCreateCheckoutSession, err)
		return CheckoutSession{Status: "error"}
	}
	return session
}

// CancelSubscription reports whether the cancellation was accepted.
func (c *Client) CancelSubscription(ctx context.Context, userID string) bool {
	if _, err := Do[any](ctx, c.inv, CmdCancelSubscription, map[string]any{"userId": userID}); err != nil {
		c.swallow(CmdCancelSubscription, err)
		return false
	}
	return true
}

// RunJS runs a script in the host sandbox and returns its console output.
// A failed call is reported as a single error entry.
func (c *Client) RunJS(ctx context.Context, code string) []LogItem {
	logs, err := Do[[]LogItem](ctx, c.inv, CmdRunJS, map[string]any{"code": code})
	if err != nil {
		c.swallow(CmdRunJS, err)
		return []LogItem{{Type: "error", Content: err.Error()}}
	}
	if logs == nil {
		return []LogItem{}
	}
	return logs
}

// GetInfo describes the host, or returns the zero value.
func (c *Client) GetInfo(ctx context.Context) HostInfo {
	info, err := Do[HostInfo](ctx, c.inv, CmdGetInfo, nil)
	if err != nil {
		c.swallow(CmdGetInfo, err)
		return HostInfo{}
	}
	return info
}
