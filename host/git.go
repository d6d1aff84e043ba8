package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/odvcencio/meacode/bridge"
)

const (
	defaultBranch      = "main"
	defaultRemote      = "origin"
	defaultAuthorName  = "MeaCode"
	defaultAuthorEmail = "meacode@localhost"
)

type workspaceParams struct {
	WorkspacePath string `json:"workspacePath"`
}

type branchParams struct {
	WorkspacePath string `json:"workspacePath"`
	BranchName    string `json:"branchName"`
}

func (h *Handler) gitCommands() []Command {
	return []Command{
		{
			Name:        bridge.CmdGitStatus,
			Description: "Branch and changed files of the repository containing workspacePath.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[workspaceParams](params)
				if err != nil {
					return nil, err
				}
				return GitStatus(h.resolvePath(p.WorkspacePath))
			},
		},
		{
			Name:        bridge.CmdGitBranches,
			Description: "Local branches, then remote branches.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[workspaceParams](params)
				if err != nil {
					return nil, err
				}
				return GitBranches(h.resolvePath(p.WorkspacePath))
			},
		},
		{
			Name:        bridge.CmdGitAddFiles,
			Description: "Stages files, or everything when files is empty.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[struct {
					WorkspacePath string   `json:"workspacePath"`
					Files         []string `json:"files"`
				}](params)
				if err != nil {
					return nil, err
				}
				return GitAdd(h.resolvePath(p.WorkspacePath), p.Files)
			},
		},
		{
			Name:        bridge.CmdGitCommit,
			Description: "Commits the staged changes.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[struct {
					WorkspacePath string `json:"workspacePath"`
					Message       string `json:"message"`
				}](params)
				if err != nil {
					return nil, err
				}
				if err := required("message", strings.TrimSpace(p.Message)); err != nil {
					return nil, err
				}
				return GitCommit(h.resolvePath(p.WorkspacePath), p.Message)
			},
		},
		{
			Name:        bridge.CmdGitPush,
			Description: "Pushes to origin, optionally a single branch.",
			Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
				p, err := bind[struct {
					WorkspacePath string `json:"workspacePath"`
					Branch        string `json:"branch"`
				}](params)
				if err != nil {
					return nil, err
				}
				return GitPush(ctx, h.resolvePath(p.WorkspacePath), p.Branch)
			},
		},
		{
			Name:        bridge.CmdGitPull,
			Description: "Pulls the current branch from origin.",
			Handler: func(ctx context.Context, params json.RawMessage) (any, error) {
				p, err := bind[workspaceParams](params)
				if err != nil {
					return nil, err
				}
				return GitPull(ctx, h.resolvePath(p.WorkspacePath))
			},
		},
		{
			Name:        bridge.CmdGitCheckoutBranch,
			Description: "Switches to an existing branch, keeping local changes.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[branchParams](params)
				if err != nil {
					return nil, err
				}
				if err := required("branchName", p.BranchName); err != nil {
					return nil, err
				}
				return GitCheckout(h.resolvePath(p.WorkspacePath), p.BranchName, false)
			},
		},
		{
			Name:        bridge.CmdGitCreateBranch,
			Description: "Creates a branch at HEAD and switches to it.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[branchParams](params)
				if err != nil {
					return nil, err
				}
				if err := required("branchName", p.BranchName); err != nil {
					return nil, err
				}
				return GitCheckout(h.resolvePath(p.WorkspacePath), p.BranchName, true)
			},
		},
		{
			Name:        bridge.CmdGitGetDiff,
			Description: "Unified diff of the worktree against HEAD, for one file or all.",
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				p, err := bind[struct {
					WorkspacePath string `json:"workspacePath"`
					FilePath      string `json:"filePath"`
				}](params)
				if err != nil {
					return nil, err
				}
				return GitDiff(h.resolvePath(p.WorkspacePath), p.FilePath)
			},
		},
	}
}

func openRepo(path string) (*git.Repository, *git.Worktree, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, nil, fmt.Errorf("worktree: %w", err)
	}
	return repo, wt, nil
}

// currentBranch resolves HEAD, including on a repository with no commits.
func currentBranch(repo *git.Repository) string {
	if head, err := repo.Head(); err == nil {
		if head.Name().IsBranch() {
			return head.Name().Short()
		}
		return head.Hash().String()[:7]
	}
	if ref, err := repo.Reference(plumbing.HEAD, false); err == nil && ref.Type() == plumbing.SymbolicReference {
		return ref.Target().Short()
	}
	return ""
}

// GitStatus summarizes the repository containing path.
func GitStatus(path string) (bridge.GitStatus, error) {
	repo, wt, err := openRepo(path)
	if err != nil {
		return bridge.GitStatus{}, err
	}
	status, err := wt.Status()
	if err != nil {
		return bridge.GitStatus{}, fmt.Errorf("status: %w", err)
	}

	out := bridge.GitStatus{
		Branch:         currentBranch(repo),
		IsClean:        status.IsClean(),
		ModifiedFiles:  []string{},
		UntrackedFiles: []string{},
		StagedFiles:    []string{},
	}
	if out.Branch == "" {
		out.Branch = defaultBranch
	}

	files := make([]string, 0, len(status))
	for file := range status {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		st := status[file]
		if st.Worktree == git.Untracked {
			out.UntrackedFiles = append(out.UntrackedFiles, file)
			continue
		}
		if st.Worktree == git.Modified {
			out.ModifiedFiles = append(out.ModifiedFiles, file)
		}
		switch st.Staging {
		case git.Added, git.Modified, git.Deleted:
			out.StagedFiles = append(out.StagedFiles, file)
		}
	}
	return out, nil
}

// GitBranches lists local branches, then remote ones without HEAD.
func GitBranches(path string) ([]bridge.GitBranch, error) {
	repo, _, err := openRepo(path)
	if err != nil {
		return nil, err
	}
	current := currentBranch(repo)

	branches := []bridge.GitBranch{}
	locals, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("branches: %w", err)
	}
	err = locals.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		branches = append(branches, bridge.GitBranch{Name: name, IsCurrent: name == current})
		return nil
	})
	if err != nil {
		return nil, err
	}

	refs, err := repo.References()
	if err != nil {
		return branches, nil
	}
	_ = refs.ForEach(func(ref *plumbing.Reference) error {
		if !ref.Name().IsRemote() || strings.HasSuffix(ref.Name().String(), "/HEAD") {
			return nil
		}
		branches = append(branches, bridge.GitBranch{Name: ref.Name().Short(), IsRemote: true})
		return nil
	})
	return branches, nil
}

// GitAdd stages files relative to the worktree root, or everything.
func GitAdd(path string, files []string) (string, error) {
	_, wt, err := openRepo(path)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
			return "", fmt.Errorf("add: %w", err)
		}
		return "staged all changes", nil
	}
	root := wt.Filesystem.Root()
	for _, file := range files {
		rel := relToRoot(root, path, file)
		if _, err := wt.Add(rel); err != nil {
			return "", fmt.Errorf("add %s: %w", file, err)
		}
	}
	return fmt.Sprintf("staged %d file(s)", len(files)), nil
}

// GitCommit commits the index with the configured identity.
func GitCommit(path, message string) (string, error) {
	repo, wt, err := openRepo(path)
	if err != nil {
		return "", err
	}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: signature(repo)})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	subject, _, _ := strings.Cut(message, "\n")
	return fmt.Sprintf("[%s %s] %s", currentBranch(repo), hash.String()[:7], subject), nil
}

func signature(repo *git.Repository) *object.Signature {
	sig := &object.Signature{Name: defaultAuthorName, Email: defaultAuthorEmail, When: time.Now()}
	cfg, err := repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return sig
	}
	if cfg.User.Name != "" {
		sig.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		sig.Email = cfg.User.Email
	}
	return sig
}

// GitPush pushes to origin. With a branch, only that branch is pushed.
func GitPush(ctx context.Context, path, branch string) (string, error) {
	repo, _, err := openRepo(path)
	if err != nil {
		return "", err
	}
	opts := &git.PushOptions{RemoteName: defaultRemote}
	if branch != "" {
		ref := plumbing.NewBranchReferenceName(branch)
		opts.RefSpecs = []config.RefSpec{config.RefSpec(ref.String() + ":" + ref.String())}
	}
	err = repo.PushContext(ctx, opts)
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "Everything up-to-date", nil
	}
	if err != nil {
		return "", fmt.Errorf("push: %w", err)
	}
	if branch == "" {
		return "pushed to " + defaultRemote, nil
	}
	return fmt.Sprintf("pushed %s to %s", branch, defaultRemote), nil
}

// GitPull pulls the current branch from origin.
func GitPull(ctx context.Context, path string) (string, error) {
	_, wt, err := openRepo(path)
	if err != nil {
		return "", err
	}
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: defaultRemote})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "Already up to date.", nil
	}
	if err != nil {
		return "", fmt.Errorf("pull: %w", err)
	}
	return "pulled from " + defaultRemote, nil
}

// GitCheckout switches branches, creating the branch at HEAD when create
// is set. A new branch keeps uncommitted changes; switching to an existing
// branch requires a clean worktree.
func GitCheckout(path, branch string, create bool) (string, error) {
	_, wt, err := openRepo(path)
	if err != nil {
		return "", err
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
		Keep:   create,
	})
	if err != nil {
		return "", fmt.Errorf("checkout %s: %w", branch, err)
	}
	if create {
		return fmt.Sprintf("Switched to a new branch '%s'", branch), nil
	}
	return fmt.Sprintf("Switched to branch '%s'", branch), nil
}

// GitDiff returns a unified diff of worktree files against HEAD. With no
// filePath every modified or deleted tracked file is included.
func GitDiff(path, filePath string) (string, error) {
	repo, wt, err := openRepo(path)
	if err != nil {
		return "", err
	}
	root := wt.Filesystem.Root()

	var files []string
	if filePath != "" {
		files = []string{relToRoot(root, path, filePath)}
	} else {
		status, err := wt.Status()
		if err != nil {
			return "", fmt.Errorf("status: %w", err)
		}
		for file, st := range status {
			if st.Worktree == git.Modified || st.Worktree == git.Deleted {
				files = append(files, file)
			}
		}
		sort.Strings(files)
	}

	var head *object.Commit
	if ref, err := repo.Head(); err == nil {
		head, _ = repo.CommitObject(ref.Hash())
	}

	var b strings.Builder
	for _, file := range files {
		old := ""
		if head != nil {
			if f, err := head.File(filepath.ToSlash(file)); err == nil {
				old, _ = f.Contents()
			}
		}
		current := ""
		if data, err := os.ReadFile(filepath.Join(root, file)); err == nil {
			current = string(data)
		}
		if old == current {
			continue
		}
		diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(old),
			B:        difflib.SplitLines(current),
			FromFile: "a/" + filepath.ToSlash(file),
			ToFile:   "b/" + filepath.ToSlash(file),
			Context:  3,
		})
		if err != nil {
			return "", fmt.Errorf("diff %s: %w", file, err)
		}
		b.WriteString(diff)
	}
	return b.String(), nil
}

// relToRoot converts file, absolute or relative to base, into a path
// relative to the worktree root.
func relToRoot(root, base, file string) string {
	abs := file
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(base, file)
	}
	if rel, err := filepath.Rel(root, abs); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return file
}
