// Package config handles configuration file parsing and validation for netstate.
//
// The engine reads an optional TOML file. Every setting has a built-in default,
// so a missing file yields Default(). Values present in the file override the
// defaults section by section.
//
// # Configuration Structure
//
//   - general: log level and format
//   - engine: enabled entity kinds, kind precedence table, purge-on-apply kinds,
//     per-kind read timeout and per-operation timeout
//   - verify: post-apply verification schedule (interval, backoff, attempts, deadline)
//   - daemon: NetworkManager usage and checkpoint timeout
//   - kernel: optional network namespace for netlink
//   - dns: resolver file path
//   - api: HTTP API listen address
//
// # Example Usage
//
//	cfg, err := config.LoadConfig("/etc/netstate/netstate.toml")
//	if err != nil {
//	    log.Fatalf("%v", err)
//	}
//	timeout := cfg.Engine.QueryTimeout()
//
// Validation errors are returned as ValidationErrors with toml field paths:
//
//	validation failed with 1 error(s):
//	  1. verify.interval_ms: must be >= 1
package config
