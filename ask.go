package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/lang"
	"github.com/odvcencio/meacode/session"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D00000", Dark: "#FF5555"}).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFAA00"})
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#008000", Dark: "#55FF55"})
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#888888"})
	headerStyle  = lipgloss.NewStyle().Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.AdaptiveColor{Light: "#CCCCCC", Dark: "#444444"})
)

func newSpinner() *pterm.SpinnerPrinter {
	return pterm.DefaultSpinner.
		WithStyle(pterm.NewStyle(pterm.FgLightBlue)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100 * time.Millisecond).
		WithRemoveWhenDone(true)
}

// newStore builds a session store over inv using the configured timings.
func (a *app) newStore(inv bridge.Invoker, client *bridge.Client) *session.Store {
	opts := []session.Option{
		session.WithLogger(a.log),
		session.WithGit(client),
		session.WithConfirmer(ptermConfirmer{}),
		session.WithIntervals(a.cfg.Session.AutosaveInterval, a.cfg.Session.PollInterval, a.cfg.Session.GitPollInterval),
		session.WithDebounce(a.cfg.Session.Debounce),
	}
	if a.cfg.ConfigDir != "" {
		opts = append(opts, session.WithConfigDir(a.cfg.ConfigDir))
	}
	return session.New(bridge.NewHost(inv), opts...)
}

// openContext opens the workspace and files into store.
func openContext(ctx context.Context, store *session.Store, workspace string, files []string) error {
	if workspace != "" {
		if err := store.SetWorkspace(ctx, workspace); err != nil {
			return err
		}
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		if _, err := store.OpenFileFromDisk(ctx, abs); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) askCmd() *cobra.Command {
	var files []string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask MeaMind about the workspace and the given files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inv, closeInv, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer closeInv()

			client := bridge.NewClient(inv, bridge.WithLogger(a.log))
			store := a.newStore(inv, client)
			if err := openContext(ctx, store, a.workspace(), files); err != nil {
				return err
			}
			editorContext, err := store.GetContextForAI()
			if err != nil {
				return err
			}

			spinner, _ := newSpinner().Start("MeaMind is thinking...")
			answer := client.AIChat(ctx, strings.Join(args, " "), editorContext)
			if spinner != nil {
				_ = spinner.Stop()
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&files, "file", "f", nil, "files to open as editor context (the last one is active)")
	return cmd
}

func (a *app) suggestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "suggest <file>",
		Short: "Show language server diagnostics and AI suggestions for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			inv, closeInv, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer closeInv()

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			client := bridge.NewClient(inv, bridge.WithLogger(a.log))
			code, err := client.Host().ReadFile(ctx, path)
			if err != nil {
				return err
			}
			language := lang.Detect(path)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render(filepath.Base(path)+" "+dimStyle.Render(language)))

			spinner, _ := newSpinner().Start("Analyzing...")
			diags := client.LspDiagnostics(ctx, path, language, code)
			result := client.AIIntelliSense(ctx, code, language, "")
			if spinner != nil {
				_ = spinner.Stop()
			}

			for _, d := range diags {
				style := warnStyle
				if d.Severity == bridge.SeverityError {
					style = errorStyle
				}
				fmt.Fprintf(out, "%s %s\n", style.Render(fmt.Sprintf("%d:%d", d.StartLine+1, d.StartCol+1)), d.Message)
			}
			if result.ErrorDetection != "" {
				fmt.Fprintln(out, errorStyle.Render(result.ErrorDetection))
			}
			for _, s := range result.CompletionSuggestions {
				fmt.Fprintln(out, successStyle.Render("•")+" "+s)
			}
			return nil
		},
	}
}
