// Package helper builds configured clients for the CLI subcommands.
package helper

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/btc-parachain/chainrpc/config"
	"github.com/btc-parachain/chainrpc/internal/logger"
	"github.com/btc-parachain/chainrpc/pkg/client"
	"github.com/btc-parachain/chainrpc/pkg/keyring"
)

// LoadConfig reads the config directory given with --config, falling back
// to defaults and environment overrides.
func LoadConfig() (*config.ChainConfig, error) {
	return config.Load(viper.GetString("cli.configDir"))
}

func GetLogger(cfg *config.ChainConfig) (*slog.Logger, error) {
	return logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
}

// Connect dials the node from the resolved configuration. When withSigner
// is set the configured keyfile is loaded, enabling submission.
func Connect(ctx context.Context, cfg *config.ChainConfig, withSigner bool) (*client.Client, error) {
	lg, err := GetLogger(cfg)
	if err != nil {
		return nil, err
	}

	url := cfg.RPC.URL
	if flagURL := viper.GetString("cli.url"); flagURL != "" {
		url = flagURL
	}

	opts := []func(*client.Client){
		client.WithLogger(lg),
		client.WithRetryPolicy(cfg.RetryPolicy()),
		client.WithExpectedSpecVersion(cfg.RPC.ExpectedSpecVersion),
		client.WithTip(cfg.Submitter.Tip),
	}
	if cfg.Events.CursorFile != "" {
		opts = append(opts, client.WithEventCursor(cfg.Events.CursorFile))
	}
	if cfg.Events.WatcherBuffer > 0 {
		opts = append(opts, client.WithWatcherBuffer(cfg.Events.WatcherBuffer))
	}
	if withSigner {
		signer, err := keyring.Load(cfg.Keyring.File, cfg.Keyring.Name)
		if err != nil {
			return nil, fmt.Errorf("loading keyfile: %w", err)
		}
		opts = append(opts, client.WithSigner(signer))
	}

	return client.Connect(ctx, url, opts...)
}

// ParseArg turns a CLI argument into a call or key argument: 0x-prefixed
// hex becomes bytes, decimal becomes an unsigned integer, anything else is
// passed through as a string.
func ParseArg(s string) (any, error) {
	if strings.HasPrefix(s, "0x") {
		raw, err := hex.DecodeString(s[2:])
		if err != nil {
			return nil, fmt.Errorf("invalid hex argument %q: %w", s, err)
		}
		return raw, nil
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n, nil
	}
	return s, nil
}
