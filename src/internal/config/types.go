package config

import (
	"time"
)

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "/etc/netstate/netstate.toml"

type Config struct {
	// General holds logging settings.
	General *GeneralConfig `toml:"general" json:"general" validate:"required"`
	// Engine holds retrieval and diff settings.
	Engine *EngineConfig `toml:"engine" json:"engine" validate:"required"`
	// Verify holds the post-apply verification schedule.
	Verify *VerifyConfig `toml:"verify" json:"verify" validate:"required"`
	// Daemon holds NetworkManager settings.
	Daemon *DaemonConfig `toml:"daemon" json:"daemon" validate:"required"`
	// Kernel holds netlink settings.
	Kernel *KernelConfig `toml:"kernel" json:"kernel" validate:"required"`
	// DNS holds resolver file settings.
	DNS *DNSConfig `toml:"dns" json:"dns" validate:"required"`
	// API holds the HTTP server settings.
	API *APIConfig `toml:"api" json:"api" validate:"required"`

	_absConfigFilePath string
}

type GeneralConfig struct {
	// LogLevel is the minimum log level (default: info).
	LogLevel string `toml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	// LogFormat is the log output format (default: text).
	LogFormat string `toml:"log_format" json:"log_format" validate:"oneof=text json"`
}

type EngineConfig struct {
	// Kinds lists the entity kinds the engine reads and applies.
	Kinds []string `toml:"kinds" json:"kinds" validate:"required,min=1,unique,dive,entity_kind"`
	// Precedence orders entity kinds when the dependency graph leaves them unordered.
	Precedence []string `toml:"precedence" json:"precedence" validate:"required,unique,dive,entity_kind"`
	// PurgeKinds lists kinds whose unmentioned entities are removed on apply.
	PurgeKinds []string `toml:"purge_kinds" json:"purge_kinds" validate:"unique,dive,entity_kind"`
	// QueryTimeoutMs bounds each per-kind read.
	QueryTimeoutMs int `toml:"query_timeout_ms" json:"query_timeout_ms" validate:"min=1"`
	// OperationTimeoutMs bounds each mutating operation.
	OperationTimeoutMs int `toml:"operation_timeout_ms" json:"operation_timeout_ms" validate:"min=1"`
}

type VerifyConfig struct {
	// IntervalMs is the delay before the first verification retry (default: 500).
	IntervalMs int `toml:"interval_ms" json:"interval_ms" validate:"min=1"`
	// MaxIntervalMs caps the retry delay (default: 2000).
	MaxIntervalMs int `toml:"max_interval_ms" json:"max_interval_ms" validate:"min=1,gtefield=IntervalMs"`
	// Backoff multiplies the delay after every retry (default: 1.5).
	Backoff float64 `toml:"backoff" json:"backoff" validate:"gte=1"`
	// Retries is the number of verification attempts in daemon mode (default: 60).
	Retries int `toml:"retries" json:"retries" validate:"min=1"`
	// KernelRetries is the number of verification attempts in kernel-only mode (default: 6).
	KernelRetries int `toml:"kernel_retries" json:"kernel_retries" validate:"min=1"`
	// DeadlineMs is the overall verification deadline (default: 60000).
	DeadlineMs int `toml:"deadline_ms" json:"deadline_ms" validate:"min=1"`
}

type DaemonConfig struct {
	// Enabled allows talking to NetworkManager when the call is not kernel-only (default: true).
	Enabled bool `toml:"enabled" json:"enabled"`
	// CheckpointTimeoutSec is the NetworkManager checkpoint auto-rollback timeout (default: 60).
	CheckpointTimeoutSec int `toml:"checkpoint_timeout_sec" json:"checkpoint_timeout_sec" validate:"min=0"`
}

type KernelConfig struct {
	// Netns is an optional network namespace path, e.g. /var/run/netns/lab.
	Netns string `toml:"netns" json:"netns" validate:"omitempty,filepath"`
}

type DNSConfig struct {
	// ResolvConf is the resolver configuration file (default: /etc/resolv.conf).
	ResolvConf string `toml:"resolv_conf" json:"resolv_conf" validate:"required"`
}

type APIConfig struct {
	// ListenAddr is the HTTP API listen address (default: 127.0.0.1:8089).
	ListenAddr string `toml:"listen_addr" json:"listen_addr" validate:"required,hostname_port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		General: &GeneralConfig{
			LogLevel:  "info",
			LogFormat: "text",
		},
		Engine: &EngineConfig{
			Kinds:              []string{"interfaces", "routes", "route-rules", "dns-resolver"},
			Precedence:         []string{"interfaces", "route-rules", "routes", "dns-resolver"},
			PurgeKinds:         []string{},
			QueryTimeoutMs:     5000,
			OperationTimeoutMs: 10000,
		},
		Verify: &VerifyConfig{
			IntervalMs:    500,
			MaxIntervalMs: 2000,
			Backoff:       1.5,
			Retries:       60,
			KernelRetries: 6,
			DeadlineMs:    60000,
		},
		Daemon: &DaemonConfig{
			Enabled:              true,
			CheckpointTimeoutSec: 60,
		},
		Kernel: &KernelConfig{},
		DNS: &DNSConfig{
			ResolvConf: "/etc/resolv.conf",
		},
		API: &APIConfig{
			ListenAddr: "127.0.0.1:8089",
		},
	}
}

func (e *EngineConfig) QueryTimeout() time.Duration {
	return time.Duration(e.QueryTimeoutMs) * time.Millisecond
}

func (e *EngineConfig) OperationTimeout() time.Duration {
	return time.Duration(e.OperationTimeoutMs) * time.Millisecond
}

func (v *VerifyConfig) Interval() time.Duration {
	return time.Duration(v.IntervalMs) * time.Millisecond
}

func (v *VerifyConfig) MaxInterval() time.Duration {
	return time.Duration(v.MaxIntervalMs) * time.Millisecond
}

func (v *VerifyConfig) Deadline() time.Duration {
	return time.Duration(v.DeadlineMs) * time.Millisecond
}

// Attempts returns the verification attempt count for the given mode.
func (v *VerifyConfig) Attempts(kernelOnly bool) int {
	if kernelOnly {
		return v.KernelRetries
	}
	return v.Retries
}

func (c *Config) GetConfigFilePath() string {
	return c._absConfigFilePath
}
