package root

import (
	"github.com/spf13/cobra"

	"github.com/crucial707/labstock/cmd/cli/download"
	"github.com/crucial707/labstock/cmd/cli/items"
	"github.com/crucial707/labstock/cmd/cli/report"
	"github.com/crucial707/labstock/cmd/cli/session"
	"github.com/crucial707/labstock/cmd/cli/stock"
)

// RootCmd is the labstock command tree.
var RootCmd = &cobra.Command{
	Use:           "labstock",
	Short:         "Laboratory reagent inventory CLI",
	Long:          "Command line client for the labstock server. Set LABSTOCK_API_URL to point at it.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	session.InitSession(RootCmd)
	items.InitItems(RootCmd)
	stock.InitStock(RootCmd)
	report.InitReport(RootCmd)
	download.InitDownload(RootCmd)
}

// GetRoot returns the RootCmd.
func GetRoot() *cobra.Command {
	return RootCmd
}
