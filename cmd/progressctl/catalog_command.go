package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yungbote/coursehub-backend/internal/app"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage catalog content",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Upsert catalog items and their lesson order from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open catalog: %w", err)
			}
			defer f.Close()
			return ctx.withToolkit(cmd, func(tk *app.Toolkit) error {
				n, err := tk.Services.Catalog.Import(cmd.Context(), f)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"imported": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d catalog items\n", n)
				return nil
			})
		},
	})
	return cmd
}
