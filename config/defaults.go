package config

import "time"

func getDefaultChainConfig() *ChainConfig {
	return &ChainConfig{
		LogLevel:       "INFO",
		LogFormat:      "text",
		PrometheusAddr: "",
		RPC:            getDefaultRPCConfig(),
		Retry:          getDefaultRetryConfig(),
		Keyring:        getDefaultKeyringConfig(),
		Submitter:      &SubmitterConfig{Tip: 0},
		Events:         getDefaultEventsConfig(),
	}
}

func getDefaultRPCConfig() *RPCConfig {
	return &RPCConfig{
		URL:                 "ws://localhost:9944",
		CallTimeout:         30 * time.Second,
		ExpectedSpecVersion: 0,
		SubscriptionBuffer:  256,
	}
}

func getDefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		InitialInterval:     500 * time.Millisecond,
		MaxInterval:         30 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.25,
		MaxRetries:          10,
		MaxElapsedTime:      5 * time.Minute,
	}
}

func getDefaultKeyringConfig() *KeyringConfig {
	return &KeyringConfig{
		File:       "keyfile.json",
		Name:       "default",
		SS58Prefix: 42,
	}
}

func getDefaultEventsConfig() *EventsConfig {
	return &EventsConfig{
		CursorFile:    "",
		WatcherBuffer: 128,
	}
}
