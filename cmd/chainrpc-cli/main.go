package main

import (
	"log"
	"os"

	"github.com/btc-parachain/chainrpc/cmd/chainrpc-cli/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		log.Fatalf("failed to run chainrpc-cli: %v", err)
	}

	os.Exit(0)
}
