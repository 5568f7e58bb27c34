package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"refit/internal/lsp"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Serve proposals as code actions over stdio (Language Server Protocol)",
	Args:  cobra.NoArgs,
	RunE:  runLSP,
}

func runLSP(cmd *cobra.Command, _ []string) error {
	sess, cleanup, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	defer cleanup()

	srv, err := lsp.NewServer(cmd.InOrStdin(), cmd.OutOrStdout(), lsp.ServerOptions{
		Engine:  sess.engine,
		Catalog: sess.catalog,
		Format:  sess.cfg.FormattingOptions(),
		Log:     cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("lsp: %w", err)
	}
	err = srv.Run(cmd.Context())
	if errors.Is(err, lsp.ErrExit) {
		return nil
	}
	return err
}
