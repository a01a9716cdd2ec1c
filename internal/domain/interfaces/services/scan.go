// Package services defines interfaces for domain service contracts.
package services

import (
	"context"

	"github.com/ochairo/sonarscan/internal/domain/entities"
)

// ToolchainInfo describes a supported toolchain and the labels that select it
type ToolchainInfo struct {
	Toolchain   entities.Toolchain
	Aliases     []string
	Description string
}

// ScanService defines toolchain dispatch and the input rules around it
type ScanService interface {
	// ResolvePlan selects the ordered command plan for a toolchain label
	ResolvePlan(ctx context.Context, label, codebaseRoot, projectKey string, cfg *entities.ScannerConfig) (*entities.ToolchainPlan, error)

	// NormalizeToolchain maps a label to its canonical toolchain
	NormalizeToolchain(label string) (entities.Toolchain, error)

	// DeriveProjectKey validates a user supplied key or derives one from the archive name
	DeriveProjectKey(userKey, archiveName string) (string, error)

	// ValidateToken checks a token against the allowed alphabet
	ValidateToken(token string) error

	// Toolchains lists the supported toolchains
	Toolchains() []ToolchainInfo
}
