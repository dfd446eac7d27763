package watch

import (
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/btc-parachain/chainrpc/cmd/chainrpc-cli/app/helper"
	"github.com/btc-parachain/chainrpc/pkg/types"
)

var Cmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream finalized chain events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := helper.LoadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c, err := helper.Connect(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer c.Close()

		filter := types.EventFilter{
			Pallet:  viper.GetString("cli.watchPallet"),
			Variant: viper.GetString("cli.watchVariant"),
		}
		watcher, err := c.Watch(filter)
		if err != nil {
			return err
		}
		defer watcher.Cancel()

		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-watcher.Events():
				if !ok {
					return nil
				}
				fmt.Printf("#%d %s::%s %v\n", ev.Block.Number, ev.Pallet, ev.Variant, ev.Fields)
			}
		}
	},
}

func init() {
	var err error

	Cmd.Flags().String("pallet", "", "Only events of this pallet")
	err = viper.BindPFlag("cli.watchPallet", Cmd.Flags().Lookup("pallet"))
	if err != nil {
		log.Fatal(err)
	}

	Cmd.Flags().String("variant", "", "Only events of this variant")
	err = viper.BindPFlag("cli.watchVariant", Cmd.Flags().Lookup("variant"))
	if err != nil {
		log.Fatal(err)
	}
}
