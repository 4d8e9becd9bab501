package report

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/crucial707/labstock/cmd/cli/client"
	"github.com/crucial707/labstock/cmd/cli/config"
	"github.com/crucial707/labstock/cmd/cli/output"
	"github.com/crucial707/labstock/internal/models"
	"github.com/crucial707/labstock/internal/report"
)

// InitReport registers the report command.
func InitReport(rootCmd *cobra.Command) {
	rootCmd.AddCommand(reportCmd())
}

func reportCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the grouped audit report (admin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return err
			}
			rep, err := client.New(config.APIURL(), token).Report(context.Background())
			if err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(rep)
			}

			rows := make([][]any, 0)
			for _, r := range rep.Rows() {
				switch r.Kind {
				case report.RowEntry:
					rows = append(rows, []any{
						r.Entry.Timestamp.Format(models.TimestampLayout),
						r.Entry.Role, r.Entry.Action, r.Entry.ItemName, r.Entry.Amount,
					})
				case report.RowSeparator:
					rows = append(rows, []any{"", "", "", "", ""})
				case report.RowBalance:
					rows = append(rows, []any{report.BalanceLabel, "", "", r.Item, r.Total})
				}
			}
			output.RenderTable([]string{"Timestamp", "Role", "Action", "Reagent", "Amount"}, rows, 5)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
