package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/odvcencio/meacode/bridge"
)

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show git status and branches of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			inv, closeInv, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer closeInv()

			client := bridge.NewClient(inv, bridge.WithLogger(a.log))
			ws := a.workspace()
			status := client.GitStatus(ctx, ws)
			if status == nil {
				return errors.New("no git repository at " + ws)
			}
			renderStatus(cmd.OutOrStdout(), status, client.GitBranches(ctx, ws))
			return nil
		},
	}
}

func renderStatus(w io.Writer, status *bridge.GitStatus, branches []bridge.GitBranch) {
	fmt.Fprintln(w, headerStyle.Render("On branch "+status.Branch))
	if status.IsClean {
		fmt.Fprintln(w, successStyle.Render("nothing to commit, working tree clean"))
	}
	section := func(title string, files []string, render func(...string) string) {
		if len(files) == 0 {
			return
		}
		fmt.Fprintln(w, title)
		for _, f := range files {
			fmt.Fprintln(w, "  "+render(f))
		}
	}
	section("Staged:", status.StagedFiles, successStyle.Render)
	section("Modified:", status.ModifiedFiles, warnStyle.Render)
	section("Untracked:", status.UntrackedFiles, dimStyle.Render)

	var others []string
	for _, b := range branches {
		if b.IsCurrent {
			continue
		}
		others = append(others, b.Name)
	}
	if len(others) > 0 {
		fmt.Fprintln(w, dimStyle.Render("other branches: "+strings.Join(others, ", ")))
	}
}

func (a *app) infoCmd() *cobra.Command {
	var showErrors bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show host platform details and recent errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			inv, closeInv, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer closeInv()

			out := cmd.OutOrStdout()
			info := bridge.NewClient(inv, bridge.WithLogger(a.log)).GetInfo(ctx)
			fmt.Fprintln(out, headerStyle.Render("MeaCode host"))
			fmt.Fprintf(out, "platform  %s/%s\n", info.Platform, info.Arch)
			fmt.Fprintf(out, "cpus      %d\n", info.CPUs)
			fmt.Fprintf(out, "dev       %t\n", info.IsDev)
			names := make([]string, 0, len(info.Versions))
			for name := range info.Versions {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "%-9s %s\n", name, info.Versions[name])
			}

			if showErrors && a.telemetry != nil {
				entries := a.telemetry.Entries()
				fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Recent errors (%d)", len(entries))))
				for _, e := range entries {
					fmt.Fprintf(out, "%s %s\n", dimStyle.Render(e.Timestamp.Local().Format("2006-01-02 15:04:05")), errorStyle.Render(e.Message))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showErrors, "errors", false, "also list recently recorded errors")
	return cmd
}
