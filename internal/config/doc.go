// Package config provides centralized configuration management for the BLP
// estimation tools. It handles loading configuration from multiple sources,
// validation, and provides a type-safe API for accessing configuration values
// throughout the application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern BLP_* for namespacing:
//
//	BLP_LOGGING_LEVEL=debug
//	BLP_PATHS_REPORTS_DIR=/var/blp/reports
//	BLP_ESTIMATION_TOLERANCE=1e-10
//	BLP_DRAWS_COUNT=2000
//
// The configuration file location itself can be overridden with
// BLP_CONFIG_FILE; otherwise config.yaml and configs/config.yaml are tried
// in order.
//
// # Validation
//
// All configuration is validated at load time to ensure:
//
//	- Solver settings are numerically sane (positive tolerances, a
//	  non-negative iteration budget, a share floor inside (0, 1))
//	- The draws block describes at least one integration node
//	- Logging level, format, and output are recognized values
//
// # Usage
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
