// Package yaml provides YAML-based scanner configuration loading.
package yaml

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

// Defaults applied when a key is absent
const (
	DefaultDotNetScanner         = "dotnet-sonarscanner"
	DefaultMSBuildPath           = "msbuild"
	DefaultDotNetPath            = "dotnet"
	DefaultMavenPath             = "mvn"
	DefaultGradlePath            = "gradle"
	DefaultCommandTimeoutMinutes = 30
	DefaultUploadDir             = "uploads"
	DefaultMaxUploadMB           = 100
	DefaultListenAddr            = ":5000"
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"

	maxCommandTimeoutMinutes = 24 * 60
	maxUploadMB              = 1 << 20
)

const parseOp = "config.parse"

// yamlConfig represents the raw YAML structure
type yamlConfig struct {
	SonarQubeURL     string `yaml:"sonarqube_url"`
	SonarQubeToken   string `yaml:"sonarqube_token"`
	SonarScannerPath string `yaml:"sonarscanner_path"`

	DotNetScanner string `yaml:"dotnet_scanner"`
	MSBuildPath   string `yaml:"msbuild_path"`
	DotNetPath    string `yaml:"dotnet_path"`
	MavenPath     string `yaml:"maven_path"`
	GradlePath    string `yaml:"gradle_path"`

	CommandTimeoutMinutes *int `yaml:"command_timeout_minutes"`

	UploadDir        string `yaml:"upload_dir"`
	MaxUploadMB      *int64 `yaml:"max_upload_mb"`
	ListenAddr       string `yaml:"listen_addr"`
	TrustedKeysFile  string `yaml:"trusted_keys_file"`
	RequireSignature bool   `yaml:"require_signature"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ConfigParser parses YAML scanner configuration
type ConfigParser struct{}

// NewConfigParser creates a new YAML parser
func NewConfigParser() *ConfigParser {
	return &ConfigParser{}
}

// Parse parses YAML bytes into a ScannerConfig entity. overrides (keyed by
// YAML key) replace file values before validation.
func (p *ConfigParser) Parse(data []byte, overrides map[string]string) (*entities.ScannerConfig, error) {
	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, scanerr.ConfigError(parseOp, "failed to parse YAML", err)
	}

	applyOverrides(&raw, overrides)

	// Validate required fields
	if strings.TrimSpace(raw.SonarQubeURL) == "" {
		return nil, scanerr.ConfigError(parseOp, "missing required key: sonarqube_url", nil)
	}
	if strings.TrimSpace(raw.SonarScannerPath) == "" {
		return nil, scanerr.ConfigError(parseOp, "missing required key: sonarscanner_path", nil)
	}
	hostURL, err := validateHostURL(raw.SonarQubeURL)
	if err != nil {
		return nil, err
	}

	timeoutMinutes := DefaultCommandTimeoutMinutes
	if raw.CommandTimeoutMinutes != nil {
		if *raw.CommandTimeoutMinutes <= 0 || *raw.CommandTimeoutMinutes > maxCommandTimeoutMinutes {
			return nil, scanerr.ConfigError(parseOp,
				fmt.Sprintf("command_timeout_minutes must be between 1 and %d", maxCommandTimeoutMinutes), nil)
		}
		timeoutMinutes = *raw.CommandTimeoutMinutes
	}

	maxUploadMB := int64(DefaultMaxUploadMB)
	if raw.MaxUploadMB != nil {
		if *raw.MaxUploadMB <= 0 || *raw.MaxUploadMB > maxUploadMB {
			return nil, scanerr.ConfigError(parseOp,
				fmt.Sprintf("max_upload_mb must be between 1 and %d", maxUploadMB), nil)
		}
		maxUploadMB = *raw.MaxUploadMB
	}

	logFormat := strings.ToLower(orDefault(raw.LogFormat, DefaultLogFormat))
	if logFormat != "text" && logFormat != "json" {
		return nil, scanerr.ConfigError(parseOp, fmt.Sprintf("log_format must be text or json, got %q", raw.LogFormat), nil)
	}

	// Convert to domain entity
	return &entities.ScannerConfig{
		HostURL:          hostURL,
		ScannerPath:      strings.TrimSpace(raw.SonarScannerPath),
		Token:            strings.TrimSpace(raw.SonarQubeToken),
		DotNetScanner:    orDefault(raw.DotNetScanner, DefaultDotNetScanner),
		MSBuildPath:      orDefault(raw.MSBuildPath, DefaultMSBuildPath),
		DotNetPath:       orDefault(raw.DotNetPath, DefaultDotNetPath),
		MavenPath:        orDefault(raw.MavenPath, DefaultMavenPath),
		GradlePath:       orDefault(raw.GradlePath, DefaultGradlePath),
		CommandTimeout:   time.Duration(timeoutMinutes) * time.Minute,
		UploadDir:        orDefault(raw.UploadDir, DefaultUploadDir),
		MaxUploadBytes:   maxUploadMB << 20,
		ListenAddr:       orDefault(raw.ListenAddr, DefaultListenAddr),
		TrustedKeysFile:  strings.TrimSpace(raw.TrustedKeysFile),
		RequireSignature: raw.RequireSignature,
		LogLevel:         strings.ToLower(orDefault(raw.LogLevel, DefaultLogLevel)),
		LogFormat:        logFormat,
	}, nil
}

// applyOverrides replaces the keys that may come from the environment
func applyOverrides(raw *yamlConfig, overrides map[string]string) {
	for key, value := range overrides {
		if value == "" {
			continue
		}
		switch key {
		case "sonarqube_url":
			raw.SonarQubeURL = value
		case "sonarqube_token":
			raw.SonarQubeToken = value
		case "sonarscanner_path":
			raw.SonarScannerPath = value
		}
	}
}

// validateHostURL requires an absolute http(s) URL and drops a trailing slash
func validateHostURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", scanerr.ConfigError(parseOp, "sonarqube_url is not a valid URL", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", scanerr.ConfigError(parseOp, "sonarqube_url must be an absolute http(s) URL", nil)
	}
	return strings.TrimRight(trimmed, "/"), nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
