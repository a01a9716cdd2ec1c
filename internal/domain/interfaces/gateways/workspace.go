// Package gateways defines interfaces for external service adapters.
package gateways

import (
	"context"
	"io"

	"github.com/ochairo/sonarscan/internal/domain/entities"
)

// WorkspaceGateway stages uploaded archives into per-request working
// directories and removes them afterwards
type WorkspaceGateway interface {
	// ValidateExtension reports whether filename has an accepted archive extension
	ValidateExtension(filename string) bool

	// Stage creates a uniquely named workspace and writes the archive into it
	Stage(ctx context.Context, archive io.Reader, filename string) (*entities.Workspace, error)

	// Extract unpacks the staged archive into the workspace extraction directory
	Extract(ctx context.Context, ws *entities.Workspace) error

	// Cleanup removes the workspace and everything in it
	Cleanup(ws *entities.Workspace) error
}

// SolutionFinder locates .NET solution descriptors below a codebase root
type SolutionFinder interface {
	// FindSolutions returns every .sln file under root in lexical walk order
	FindSolutions(ctx context.Context, root string) ([]string, error)
}

// IntegrityVerifier checks uploaded archives before they are extracted
type IntegrityVerifier interface {
	VerifyChecksum(ctx context.Context, filePath, expectedSum string) error
	VerifySignature(ctx context.Context, filePath string, signature []byte) error

	// HasTrustedKeys reports whether signature verification is possible
	HasTrustedKeys() bool
}
