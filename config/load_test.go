package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load(t *testing.T) {
	t.Run("default load", func(t *testing.T) {
		// given
		expectedConfig := getDefaultChainConfig()

		// when
		actualConfig, err := Load()
		require.NoError(t, err, "error loading config")

		// then
		assert.Equal(t, expectedConfig, actualConfig)
	})

	t.Run("partial file override", func(t *testing.T) {
		// given
		expectedConfig := getDefaultChainConfig()

		// when
		actualConfig, err := Load("./test_files/")
		require.NoError(t, err, "error loading config")

		// then
		// verify not overridden default example value
		assert.Equal(t, expectedConfig.RPC.CallTimeout, actualConfig.RPC.CallTimeout)
		assert.Equal(t, expectedConfig.Submitter.Tip, actualConfig.Submitter.Tip)

		// verify correct override
		assert.Equal(t, "DEBUG", actualConfig.LogLevel)
		assert.Equal(t, "json", actualConfig.LogFormat)
		assert.Equal(t, "wss://parachain.example:443", actualConfig.RPC.URL)
		assert.Equal(t, uint32(17), actualConfig.RPC.ExpectedSpecVersion)
		assert.Equal(t, "/var/lib/chainrpc/keyfile.json", actualConfig.Keyring.File)
		assert.Equal(t, "vault-1", actualConfig.Keyring.Name)
		assert.Equal(t, 5, actualConfig.Retry.MaxRetries)
		assert.Equal(t, "/var/lib/chainrpc/cursor.db", actualConfig.Events.CursorFile)
	})

	t.Run("retry policy conversion", func(t *testing.T) {
		// given
		cfg := getDefaultChainConfig()
		cfg.Retry.MaxRetries = 3
		cfg.Retry.InitialInterval = 100 * time.Millisecond

		// when
		policy := cfg.RetryPolicy()

		// then
		assert.EqualValues(t, 3, policy.MaxRetries)
		assert.Equal(t, 100*time.Millisecond, policy.InitialInterval)
	})
}
