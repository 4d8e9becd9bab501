package download

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crucial707/labstock/cmd/cli/client"
	"github.com/crucial707/labstock/cmd/cli/config"
)

// InitDownload registers the download command.
func InitDownload(rootCmd *cobra.Command) {
	rootCmd.AddCommand(downloadCmd())
}

func downloadCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:       "download <reagents|log>",
		Short:     "Save the inventory or the audit report as .xlsx (admin)",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"reagents", "log"},
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return err
			}
			data, name, err := client.New(config.APIURL(), token).Download(context.Background(), args[0])
			if err != nil {
				return err
			}
			if out == "" {
				out = name
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Printf("Saved %s (%d bytes).\n", out, len(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (defaults to the server-suggested name)")
	return cmd
}
