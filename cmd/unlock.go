package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"pixf/internal/config"
	"pixf/internal/extract"
)

func newUnlockCmd(cfg *config.Config) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "unlock <pdf-file>",
		Short: "Write a decrypted copy of a PDF",
		Long: `Removes the encryption from a PDF and saves the result next to it as
unlocked_<name>.pdf, or to --output.`,
		Example: `  # Unlock a PDF protected by an owner password only
  pixf unlock report.pdf

  # Unlock with a user password
  pixf unlock report.pdf --password secret -o plain.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			out := output
			if out == "" {
				out = filepath.Join(filepath.Dir(in), "unlocked_"+filepath.Base(in))
			}
			if err := extract.Unlock(in, out, cfg.Password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PDF successfully unlocked and saved as", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Path of the decrypted copy")

	return cmd
}
