package entities

import (
	"time"

	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

// ScannerConfig is the immutable configuration shared by all requests
type ScannerConfig struct {
	HostURL     string // SonarQube server URL
	ScannerPath string // sonar-scanner CLI used by the generic toolchain
	Token       string // SonarQube authentication token

	// Build tool binaries
	DotNetScanner string
	MSBuildPath   string
	DotNetPath    string
	MavenPath     string
	GradlePath    string

	CommandTimeout time.Duration

	// Upload service
	UploadDir        string
	MaxUploadBytes   int64
	ListenAddr       string
	TrustedKeysFile  string
	RequireSignature bool

	LogLevel  string
	LogFormat string
}

// WithToken returns a copy of the configuration using the given token
func (c ScannerConfig) WithToken(token string) *ScannerConfig {
	c.Token = token
	return &c
}

// ValidateForService checks the settings only the upload service needs.
// The CLI supplies its token per invocation instead.
func (c *ScannerConfig) ValidateForService() error {
	const op = "config.validate"

	if c.Token == "" {
		return scanerr.ConfigError(op, "missing required key: sonarqube_token", nil)
	}
	if c.MaxUploadBytes <= 0 {
		return scanerr.ConfigError(op, "max_upload_mb must be positive", nil)
	}
	if c.RequireSignature && c.TrustedKeysFile == "" {
		return scanerr.ConfigError(op, "require_signature needs trusted_keys_file", nil)
	}
	return nil
}
