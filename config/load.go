package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/btc-parachain/chainrpc/internal/retry"
)

var (
	ErrConfigFailedToSetDefaults = errors.New("error occurred while setting defaults")
	ErrConfigPath                = errors.New("config path error")
)

// Load builds the configuration from defaults, then any config.yaml found
// in the given directories, then CHAINRPC_-prefixed environment variables,
// in increasing priority.
func Load(configFileDirs ...string) (*ChainConfig, error) {
	chainConfig := getDefaultChainConfig()

	err := setDefaults(chainConfig)
	if err != nil {
		return nil, err
	}

	err = overrideWithFiles(configFileDirs...)
	if err != nil {
		return nil, err
	}

	viper.SetEnvPrefix("CHAINRPC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err = viper.Unmarshal(chainConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return chainConfig, nil
}

// RetryPolicy converts the configured bounds into a backoff policy.
func (c *ChainConfig) RetryPolicy() retry.Policy {
	policy := retry.DefaultPolicy()
	if c.Retry == nil {
		return policy
	}

	policy.InitialInterval = c.Retry.InitialInterval
	policy.MaxInterval = c.Retry.MaxInterval
	policy.Multiplier = c.Retry.Multiplier
	policy.RandomizationFactor = c.Retry.RandomizationFactor
	policy.MaxRetries = uint64(c.Retry.MaxRetries)
	policy.MaxElapsedTime = c.Retry.MaxElapsedTime
	return policy
}

func setDefaults(defaultConfig *ChainConfig) error {
	defaultsMap := make(map[string]interface{})

	if err := mapstructure.Decode(defaultConfig, &defaultsMap); err != nil {
		err = errors.Join(ErrConfigFailedToSetDefaults, err)
		return err
	}

	for key, value := range defaultsMap {
		viper.SetDefault(key, value)
	}

	return nil
}

func overrideWithFiles(configFileDirs ...string) error {
	if len(configFileDirs) == 0 || configFileDirs[0] == "" {
		return nil
	}

	for _, path := range configFileDirs {
		stat, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				return errors.Join(ErrConfigPath, fmt.Errorf("path: %s does not exist", path))
			}
			return err
		}
		if !stat.IsDir() {
			return errors.Join(ErrConfigPath, fmt.Errorf("path: %s should be a directory", path))
		}

		viper.AddConfigPath(path)
	}

	err := viper.ReadInConfig()
	if err != nil {
		return err
	}

	return nil
}
