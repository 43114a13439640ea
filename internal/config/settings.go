package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Proxy modes accepted by Settings.ProxyType.
const (
	ProxyNone   = "none"
	ProxySystem = "system"
	ProxyManual = "manual"
)

// Settings holds all configuration options.
type Settings struct {
	// Output settings
	OutputDir   string `json:"output_dir" toml:"output_dir"`
	HistoryPath string `json:"history_path" toml:"history_path"`

	// Network settings
	UserAgent          string `json:"user_agent" toml:"user_agent"`
	TimeoutSeconds     int    `json:"timeout_seconds" toml:"timeout_seconds"`
	MaxConcurrentPages int    `json:"max_concurrent_pages" toml:"max_concurrent_pages"` // <= 0 means unlimited

	// Archive settings
	AllowEmptyArchive bool `json:"allow_empty_archive" toml:"allow_empty_archive"`
	ResizePages       bool `json:"resize_pages" toml:"resize_pages"`
	MaxPageSize       int  `json:"max_page_size" toml:"max_page_size"`

	// Proxy settings
	ProxyType    string `json:"proxy_type" toml:"proxy_type"` // none, system, manual
	ProxyAddress string `json:"proxy_address" toml:"proxy_address"`
	ProxyPort    int    `json:"proxy_port" toml:"proxy_port"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	homeDir, _ := os.UserHomeDir()
	return &Settings{
		OutputDir:   filepath.Join(homeDir, "Downloads", "ActiBook"),
		HistoryPath: filepath.Join(homeDir, ".config", "actibook-downloader", "history.db"),

		UserAgent:          "ActiBookDownloader",
		TimeoutSeconds:     60,
		MaxConcurrentPages: 0,

		AllowEmptyArchive: false,
		ResizePages:       false,
		MaxPageSize:       2000,

		ProxyType: ProxySystem,
	}
}

// Timeout returns the HTTP timeout as a duration.
func (s *Settings) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// ProxyURL returns the manual proxy address as host:port.
func (s *Settings) ProxyURL() string {
	if s.ProxyPort <= 0 {
		return s.ProxyAddress
	}
	return fmt.Sprintf("%s:%d", s.ProxyAddress, s.ProxyPort)
}

// Validate reports settings that cannot be used.
func (s *Settings) Validate() error {
	switch s.ProxyType {
	case ProxyNone, ProxySystem:
	case ProxyManual:
		if strings.TrimSpace(s.ProxyAddress) == "" {
			return fmt.Errorf("proxy_address is required when proxy_type is %q", ProxyManual)
		}
	default:
		return fmt.Errorf("proxy_type: unsupported value %q", s.ProxyType)
	}
	if s.ResizePages && s.MaxPageSize <= 0 {
		return fmt.Errorf("max_page_size must be positive when resize_pages is enabled")
	}
	return nil
}

// Load reads settings from a JSON or TOML file.
//
// The format is chosen by extension: ".toml" is decoded as TOML, anything
// else as JSON. A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if isTOML(path) {
		if err := toml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save writes settings to a JSON or TOML file, chosen by extension.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides settings from ACTIBOOK_* environment variables.
//
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence over it.
//
// Recognised variables:
//   - ACTIBOOK_OUTPUT_DIR, ACTIBOOK_HISTORY_PATH, ACTIBOOK_USER_AGENT
//   - ACTIBOOK_TIMEOUT_SECONDS, ACTIBOOK_MAX_CONCURRENT_PAGES
//   - ACTIBOOK_ALLOW_EMPTY_ARCHIVE
//   - ACTIBOOK_PROXY_TYPE, ACTIBOOK_PROXY_ADDRESS, ACTIBOOK_PROXY_PORT
func (s *Settings) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	setString(&s.OutputDir, "ACTIBOOK_OUTPUT_DIR")
	setString(&s.HistoryPath, "ACTIBOOK_HISTORY_PATH")
	setString(&s.UserAgent, "ACTIBOOK_USER_AGENT")
	setString(&s.ProxyType, "ACTIBOOK_PROXY_TYPE")
	setString(&s.ProxyAddress, "ACTIBOOK_PROXY_ADDRESS")

	if err := setInt(&s.TimeoutSeconds, "ACTIBOOK_TIMEOUT_SECONDS"); err != nil {
		return err
	}
	if err := setInt(&s.MaxConcurrentPages, "ACTIBOOK_MAX_CONCURRENT_PAGES"); err != nil {
		return err
	}
	if err := setInt(&s.ProxyPort, "ACTIBOOK_PROXY_PORT"); err != nil {
		return err
	}
	if err := setBool(&s.AllowEmptyArchive, "ACTIBOOK_ALLOW_EMPTY_ARCHIVE"); err != nil {
		return err
	}

	return s.Validate()
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}
