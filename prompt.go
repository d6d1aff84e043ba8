package main

import (
	"context"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"golang.org/x/term"
)

func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// ptermConfirmer asks yes/no questions on the terminal. Without a
// terminal every question is declined.
type ptermConfirmer struct{}

func (ptermConfirmer) Confirm(_ context.Context, message string) (bool, error) {
	if !interactive() {
		return false, nil
	}
	return pterm.DefaultInteractiveConfirm.WithDefaultText(message).WithDefaultValue(false).Show()
}

// ptermDialogs asks for folders and save locations on the terminal. An
// empty answer cancels.
type ptermDialogs struct {
	workspace string
}

func (d ptermDialogs) PickFolder(context.Context) (string, error) {
	answer, err := pterm.DefaultInteractiveTextInput.WithDefaultValue(d.workspace).Show("Open folder")
	return strings.TrimSpace(answer), err
}

func (d ptermDialogs) SaveFile(_ context.Context, defaultPath string) (string, error) {
	answer, err := pterm.DefaultInteractiveTextInput.WithDefaultValue(defaultPath).Show("Save as")
	return strings.TrimSpace(answer), err
}
