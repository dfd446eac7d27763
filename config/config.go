package config

import (
	"time"
)

type ChainConfig struct {
	LogLevel       string           `json:"logLevel" mapstructure:"logLevel"`
	LogFormat      string           `json:"logFormat" mapstructure:"logFormat"`
	PrometheusAddr string           `json:"prometheusAddr" mapstructure:"prometheusAddr"`
	RPC            *RPCConfig       `json:"rpc" mapstructure:"rpc"`
	Retry          *RetryConfig     `json:"retry" mapstructure:"retry"`
	Keyring        *KeyringConfig   `json:"keyring" mapstructure:"keyring"`
	Submitter      *SubmitterConfig `json:"submitter" mapstructure:"submitter"`
	Events         *EventsConfig    `json:"events" mapstructure:"events"`
}

type RPCConfig struct {
	URL         string        `json:"url" mapstructure:"url"`
	CallTimeout time.Duration `json:"callTimeout" mapstructure:"callTimeout"`
	// ExpectedSpecVersion pins the runtime the client was built against.
	// Zero accepts whatever the node reports.
	ExpectedSpecVersion uint32 `json:"expectedSpecVersion" mapstructure:"expectedSpecVersion"`
	SubscriptionBuffer  int    `json:"subscriptionBuffer" mapstructure:"subscriptionBuffer"`
}

type RetryConfig struct {
	InitialInterval     time.Duration `json:"initialInterval" mapstructure:"initialInterval"`
	MaxInterval         time.Duration `json:"maxInterval" mapstructure:"maxInterval"`
	Multiplier          float64       `json:"multiplier" mapstructure:"multiplier"`
	RandomizationFactor float64       `json:"randomizationFactor" mapstructure:"randomizationFactor"`
	MaxRetries          int           `json:"maxRetries" mapstructure:"maxRetries"`
	MaxElapsedTime      time.Duration `json:"maxElapsedTime" mapstructure:"maxElapsedTime"`
}

type KeyringConfig struct {
	File       string `json:"file" mapstructure:"file"`
	Name       string `json:"name" mapstructure:"name"`
	SS58Prefix uint8  `json:"ss58Prefix" mapstructure:"ss58Prefix"`
}

type SubmitterConfig struct {
	Tip uint64 `json:"tip" mapstructure:"tip"`
}

type EventsConfig struct {
	CursorFile    string `json:"cursorFile" mapstructure:"cursorFile"`
	WatcherBuffer int    `json:"watcherBuffer" mapstructure:"watcherBuffer"`
}
