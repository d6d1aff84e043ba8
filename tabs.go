package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/session"
)

func (a *app) tabsCmd() *cobra.Command {
	var open, closeIDs []string
	var saveAs string
	cmd := &cobra.Command{
		Use:   "tabs",
		Short: "Show and edit the remembered editor tabs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			inv, closeInv, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer closeInv()

			store := a.newStore(inv, bridge.NewClient(inv, bridge.WithLogger(a.log)))
			if err := store.Restore(ctx); err != nil {
				return err
			}
			if store.WorkspaceRoot() == "" && a.cfg.Workspace != "" {
				if err := store.SetWorkspace(ctx, a.workspace()); err != nil {
					return err
				}
			}
			if err := openContext(ctx, store, "", open); err != nil {
				return err
			}
			for _, id := range closeIDs {
				closed, err := store.CloseFile(ctx, id)
				if err != nil {
					return err
				}
				if !closed {
					fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("kept "+id))
				}
			}
			if saveAs != "" {
				if err := store.SaveFileAs(ctx, saveAs); err != nil {
					return err
				}
			}
			if err := store.Persist(ctx); err != nil {
				return err
			}
			renderTabs(cmd.OutOrStdout(), store)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&open, "open", nil, "files to open")
	cmd.Flags().StringSliceVar(&closeIDs, "close", nil, "tab ids to close")
	cmd.Flags().StringVar(&saveAs, "save-as", "", "tab id to save under a new path")
	return cmd
}

func renderTabs(w io.Writer, store *session.Store) {
	root := store.WorkspaceRoot()
	if root == "" {
		root = "(no workspace)"
	}
	fmt.Fprintln(w, headerStyle.Render(root))

	activeID := store.ActiveFileID()
	files := store.Files()
	if len(files) == 0 {
		fmt.Fprintln(w, dimStyle.Render("no open tabs"))
		return
	}
	active := lipgloss.NewStyle().Bold(true)
	for _, f := range files {
		marker := " "
		name := f.Name
		if f.ID == activeID {
			marker = "*"
			name = active.Render(name)
		}
		if f.IsDirty {
			name += warnStyle.Render(" ●")
		}
		fmt.Fprintf(w, "%s %s  %s  %s\n", marker, name, dimStyle.Render(string(f.Language)), dimStyle.Render(f.ID))
	}
}
