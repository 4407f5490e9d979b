// Package config handles configuration loading for keygate.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${KEYGATE_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  access_ttl: "30m"
//	  refresh_ttl: "168h"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/keygate/keygate.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${KEYGATE_JWT_SECRET}"               # JWT signing secret
//	  encryption_secret: "${KEYGATE_ENCRYPTION_SECRET}" # API key at-rest encryption
//	  api_key_prefix: "kg_live_"
//	  api_key_default_expiry_days: 90
//	  access_ttl: "30m"
//	  refresh_ttl: "168h"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Server address and database path presence
//   - Both secrets meet the minimum length (32 bytes)
//   - Duration format validity
//   - Default key expiry is not negative
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/keygate/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
