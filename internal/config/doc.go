// Package config handles configuration loading for parley.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment
// variable expansion, or from PARLEY_* environment variables alone.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${PARLEY_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_ttl: "24h"
//	server:
//	  shutdown_timeout: "10s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # API and WebSocket endpoint
//	  shutdown_timeout: "10s"
//
// Database:
//
//	database:
//	  path: "/var/lib/parley/parley.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${PARLEY_JWT_SECRET}"  # Required, 16+ characters
//	  token_ttl: "24h"
//	  bcrypt_cost: 10                     # 0 uses the bcrypt default
//
// Broadcast:
//
//	broadcast:
//	  scope: "global"   # global, conversation
//
// Uploads:
//
//	uploads:
//	  max_size_bytes: 10485760   # attachment metadata size cap
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration from a file:
//
//	cfg, err := config.Load("/etc/parley/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Or from the environment:
//
//	cfg, err := config.FromEnv()
package config
