package bridge

// Command names understood by the host.
const (
	CmdReadFile     = "read_file"
	CmdWriteFile    = "write_file"
	CmdListDir      = "list_dir"
	CmdCreateDir    = "create_dir"
	CmdDeletePath   = "delete_path"
	CmdRenamePath   = "rename_path"
	CmdPickFolder   = "pick_folder"
	CmdSaveDialog   = "save_dialog"
	CmdGetCwd       = "get_cwd"
	CmdAppConfigDir = "app_config_dir"

	CmdExecuteCommand = "execute_command"

	CmdLspCompletion  = "lsp_completion"
	CmdLspHover       = "lsp_hover"
	CmdLspDiagnostics = "lsp_diagnostics"

	CmdGitStatus         = "git_status"
	CmdGitBranches       = "git_branches"
	CmdGitAddFiles       = "git_add_files"
	CmdGitCommit         = "git_commit"
	CmdGitPush           = "git_push"
	CmdGitPull           = "git_pull"
	CmdGitCheckoutBranch = "git_checkout_branch"
	CmdGitCreateBranch   = "git_create_branch"
	CmdGitGetDiff        = "git_get_diff"

	CmdAIChat         = "ai_chat"
	CmdAIIntelliSense = "ai_intellisense"
	CmdAIExplain      = "ai_explain"
	CmdAIFix          = "ai_fix"
	CmdAIRefactor     = "ai_refactor"

	CmdGetSubscription       = "get_subscription"
	CmdCreateCheckoutSession = "create_checkout_session"
	CmdCancelSubscription    = "cancel_subscription"

	CmdRunJS   = "run_js"
	CmdGetInfo = "get_info"
)

// FsTreeItem is one node of a recursive directory listing.
type FsTreeItem struct {
	Name     string       `json:"name"`
	Path     string       `json:"path"`
	IsDir    bool         `json:"isDir"`
	Children []FsTreeItem `json:"children,omitempty"`
}

// ExecResult is the outcome of a shell command.
type ExecResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Diagnostic severities.
const (
	SeverityError   = 1
	SeverityWarning = 2
	SeverityInfo    = 3
)

// Diagnostic is a language-server finding in 0-based coordinates.
type Diagnostic struct {
	Message   string `json:"message"`
	Severity  int    `json:"severity"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// CompletionItem is a single language-server completion.
type CompletionItem struct {
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
}

// Hover is language-server hover text.
type Hover struct {
	Contents string `json:"contents"`
}

// DocumentParams addresses a position in an in-memory document.
type DocumentParams struct {
	Path      string `json:"path"`
	Language  string `json:"language"`
	Content   string `json:"content"`
	Line      int    `json:"line"`
	Character int    `json:"character"`
}

// GitStatus summarizes a working tree.
type GitStatus struct {
	Branch         string   `json:"branch"`
	IsClean        bool     `json:"is_clean"`
	ModifiedFiles  []string `json:"modified_files"`
	UntrackedFiles []string `json:"untracked_files"`
	StagedFiles    []string `json:"staged_files"`
}

// GitBranch is a local or remote branch.
type GitBranch struct {
	Name      string `json:"name"`
	IsCurrent bool   `json:"is_current"`
	IsRemote  bool   `json:"is_remote"`
}

// IntelliSenseResult is the AI completion and error-detection outcome.
type IntelliSenseResult struct {
	CompletionSuggestions []string `json:"completionSuggestions"`
	ErrorDetection        string   `json:"errorDetection"`
}

// Subscription describes a billing plan.
type Subscription struct {
	Plan              string  `json:"plan,omitempty"`
	Status            string  `json:"status"`
	CurrentPeriodEnd  *string `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool    `json:"cancelAtPeriodEnd"`
}

// CheckoutSession is the result of starting a checkout.
type CheckoutSession struct {
	URL    string `json:"url,omitempty"`
	Status string `json:"status,omitempty"`
}

// LogItem is one console line captured by the script runner.
type LogItem struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// HostInfo describes the host process.
type HostInfo struct {
	Platform string            `json:"platform"`
	Arch     string            `json:"arch"`
	CPUs     int               `json:"cpus"`
	IsDev    bool              `json:"is_dev"`
	Versions map[string]string `json:"versions"`
}
