package submit

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/btc-parachain/chainrpc/cmd/chainrpc-cli/app/helper"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

var Cmd = &cobra.Command{
	Use:   "submit <pallet> <method> [args...]",
	Short: "Sign and submit an extrinsic, waiting for finalization",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := helper.LoadConfig()
		if err != nil {
			return err
		}
		logger, err := helper.GetLogger(cfg)
		if err != nil {
			return err
		}

		c, err := helper.Connect(cmd.Context(), cfg, true)
		if err != nil {
			return err
		}
		defer c.Close()

		callArgs := make([]any, 0, len(args)-2)
		for _, raw := range args[2:] {
			arg, err := helper.ParseArg(raw)
			if err != nil {
				return err
			}
			callArgs = append(callArgs, arg)
		}

		call := types.NewCall(args[0], args[1], callArgs...)
		handle, err := c.Submit(cmd.Context(), call)
		if err != nil {
			return err
		}

		for update := range handle.Updates() {
			logger.Info("status",
				slog.String("call", call.String()),
				slog.String("status", update.Status.String()),
				slog.String("block", update.Block.Hash.Hex()))

			if update.Status == types.StatusFailed {
				return update.Err
			}
			if update.Status == types.StatusFinalized {
				fmt.Printf("finalized in %s (height %d)\n", update.Block.Hash.Hex(), update.Block.Number)
				return nil
			}
		}

		return fmt.Errorf("submission stream ended before finalization")
	},
}
