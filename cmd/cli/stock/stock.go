package stock

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crucial707/labstock/cmd/cli/client"
	"github.com/crucial707/labstock/cmd/cli/config"
	"github.com/crucial707/labstock/internal/models"
)

// InitStock registers the stock command group.
func InitStock(rootCmd *cobra.Command) {
	stockCmd := &cobra.Command{
		Use:   "stock",
		Short: "Add or withdraw stock",
	}
	stockCmd.AddCommand(addCmd(), withdrawCmd())
	rootCmd.AddCommand(stockCmd)
}

type mutateFunc func(c *client.Client, ctx context.Context, reagent, amount string) (models.Item, error)

func mutateCmd(use, short, verb string, fn mutateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <reagent> <amount>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := config.LoadToken()
			if err != nil {
				return err
			}
			item, err := fn(client.New(config.APIURL(), token), context.Background(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s %s %s. %s now at %d.\n", verb, args[1], item.Name, item.Name, item.Quantity)
			return nil
		},
	}
}

func addCmd() *cobra.Command {
	return mutateCmd("add", "Add stock (admin)", "Added", (*client.Client).Add)
}

func withdrawCmd() *cobra.Command {
	return mutateCmd("withdraw", "Withdraw stock (user)", "Withdrew", (*client.Client).Withdraw)
}
