// Package app holds the chainrpc-cli command tree.
package app

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/btc-parachain/chainrpc/cmd/chainrpc-cli/app/nonce"
	"github.com/btc-parachain/chainrpc/cmd/chainrpc-cli/app/query"
	"github.com/btc-parachain/chainrpc/cmd/chainrpc-cli/app/submit"
	"github.com/btc-parachain/chainrpc/cmd/chainrpc-cli/app/watch"
)

var RootCmd = &cobra.Command{
	Use:   "chainrpc-cli",
	Short: "CLI tool to query, watch and submit to a parachain node",
}

func init() {
	var err error

	RootCmd.PersistentFlags().String("config", "", "Directory holding config.yaml")
	err = viper.BindPFlag("cli.configDir", RootCmd.PersistentFlags().Lookup("config"))
	if err != nil {
		log.Fatal(err)
	}

	RootCmd.PersistentFlags().String("url", "", "Websocket URL of the node, overrides the config file")
	err = viper.BindPFlag("cli.url", RootCmd.PersistentFlags().Lookup("url"))
	if err != nil {
		log.Fatal(err)
	}

	RootCmd.AddCommand(query.Cmd)
	RootCmd.AddCommand(submit.Cmd)
	RootCmd.AddCommand(watch.Cmd)
	RootCmd.AddCommand(nonce.Cmd)
}

func Execute() error {
	return RootCmd.Execute()
}
