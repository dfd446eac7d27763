package nonce

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/btc-parachain/chainrpc/cmd/chainrpc-cli/app/helper"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

var Cmd = &cobra.Command{
	Use:   "nonce <account>",
	Short: "Show the chain's next expected nonce for an account (0x-prefixed hex)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := helper.LoadConfig()
		if err != nil {
			return err
		}

		account, err := types.ParseAccountID(args[0])
		if err != nil {
			return err
		}

		c, err := helper.Connect(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer c.Close()

		n, err := c.AccountNonce(cmd.Context(), account)
		if err != nil {
			return err
		}

		fmt.Println(n)
		return nil
	},
}
