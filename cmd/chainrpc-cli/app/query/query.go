package query

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/btc-parachain/chainrpc/cmd/chainrpc-cli/app/helper"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

var Cmd = &cobra.Command{
	Use:   "query <pallet> <item> [mapKey]",
	Short: "Read a storage value from the chain",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := helper.LoadConfig()
		if err != nil {
			return err
		}

		c, err := helper.Connect(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer c.Close()

		var keyArgs []any
		if len(args) == 3 {
			arg, err := helper.ParseArg(args[2])
			if err != nil {
				return err
			}
			keyArgs = append(keyArgs, arg)
		}

		value, found, err := c.Get(context.Background(), types.NewStorageKey(args[0], args[1], keyArgs...))
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("<empty>")
			return nil
		}

		fmt.Printf("%v\n", value)
		return nil
	},
}
