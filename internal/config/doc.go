// Package config provides configuration management for actibook-downloader.
//
// This package handles:
//   - Loading and saving settings from JSON or TOML files
//   - Overriding settings from ACTIBOOK_* environment variables (and .env)
//   - Default configuration values
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// Archives are saved to ~/Downloads/ActiBook
//	// Page fetches are not capped
//	// An archive with zero pages is treated as a failure
//
// # Loading from File
//
//	settings, err := config.Load("/path/to/config.toml")
//	if err != nil {
//	    // Uses defaults if file doesn't exist
//	}
//	if err := settings.ApplyEnv(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Configuration Options
//
// Settings includes options for:
//   - Output directory and run history location
//   - HTTP timeout, User-Agent and proxy
//   - Page fetch concurrency
//   - Empty archive policy
//   - Optional page downscaling
package config
