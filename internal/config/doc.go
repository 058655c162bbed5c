// Package config handles configuration loading for the waypoints CLI.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file with environment variable
// expansion. Missing fields fall back to defaults and the result is validated.
//
// # Configuration File
//
// Location, first match wins:
//
//  1. Path from the WAYPOINTS_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/waypoints/config.yaml (~/.config when unset)
//
// A missing file is not an error; LoadOrDefault returns Default().
// Files ending in .toml are decoded as TOML.
//
// # Environment Variable Expansion
//
//	auth:
//	  token_secret: "${WAYPOINTS_TOKEN_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Environment Overrides
//
// After the file is read, WAYPOINTS_* variables override individual fields:
// WAYPOINTS_DATABASE_PATH, WAYPOINTS_DATABASE_DRIVER,
// WAYPOINTS_DATABASE_BUSY_TIMEOUT, WAYPOINTS_DATABASE_MAX_OPEN_CONNS,
// WAYPOINTS_FOLDER_DELETE_POLICY, WAYPOINTS_TOKEN_SECRET,
// WAYPOINTS_LOG_LEVEL and WAYPOINTS_LOG_FORMAT.
//
// # Configuration Sections
//
//	database:
//	  path: "~/.local/share/waypoints/waypoints.db"
//	  driver: "sqlite"        # or sqlite3 when built with cgo
//	  busy_timeout: "5s"
//	  max_open_conns: 0
//
//	holders:
//	  folder_delete_policy: "detach"   # or delete
//
//	auth:
//	  token_secret: "${WAYPOINTS_TOKEN_SECRET}"
//
//	logging:
//	  level: "info"           # debug, info, warn, error
//	  format: "text"          # text or json
package config
