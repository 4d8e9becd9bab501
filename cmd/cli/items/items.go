package items

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crucial707/labstock/cmd/cli/client"
	"github.com/crucial707/labstock/cmd/cli/config"
	"github.com/crucial707/labstock/cmd/cli/output"
)

// InitItems registers the items command group.
func InitItems(rootCmd *cobra.Command) {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Show the inventory",
	}
	itemsCmd.AddCommand(listItemsCmd())
	rootCmd.AddCommand(itemsCmd)
}

func listItemsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reagents and quantities",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return err
			}
			items, err := client.New(config.APIURL(), token).Items(context.Background())
			if err != nil {
				return err
			}
			if asJSON {
				return output.PrintJSON(items)
			}
			if len(items) == 0 {
				fmt.Println("No reagents in stock.")
				return nil
			}
			rows := make([][]any, 0, len(items))
			for _, it := range items {
				rows = append(rows, []any{it.Name, it.Quantity})
			}
			output.RenderTable([]string{"Reagent", "Quantity"}, rows, 2)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
