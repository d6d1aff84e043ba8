package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/odvcencio/meacode/bridge"
	"github.com/odvcencio/meacode/terminal"
)

const keyEOF = 4

func (a *app) termCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "term",
		Short: "Interactive terminal backed by the host shell (Ctrl-D on an empty line exits)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			fd := int(os.Stdin.Fd())
			if !term.IsTerminal(fd) {
				return errors.New("term needs an interactive terminal")
			}

			inv, closeInv, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer closeInv()

			state, err := term.MakeRaw(fd)
			if err != nil {
				return fmt.Errorf("raw mode: %w", err)
			}
			defer term.Restore(fd, state)

			d := terminal.New(bridge.NewHost(inv), os.Stdout, terminal.WithLogger(a.log))
			d.Start(ctx)

			buf := make([]byte, 4096)
			for ctx.Err() == nil {
				n, err := os.Stdin.Read(buf)
				if err != nil {
					return nil
				}
				chunk := buf[:n]
				if len(chunk) == 1 && chunk[0] == keyEOF && d.Line() == "" {
					fmt.Fprint(os.Stdout, "\r\n")
					return nil
				}
				d.Feed(ctx, string(chunk))
			}
			return nil
		},
	}
}
