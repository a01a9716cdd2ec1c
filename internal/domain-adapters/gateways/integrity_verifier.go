package gateways

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ochairo/sonarscan/internal/domain/interfaces"
	"github.com/ochairo/sonarscan/internal/domain/scanerr"
	"github.com/ochairo/sonarscan/internal/external-adapters/gpg"
)

// integrityVerifier checks staged archives with SHA-256 checksums and
// detached OpenPGP signatures
type integrityVerifier struct {
	signatures *gpg.Verifier
	logger     interfaces.Logger
}

// NewIntegrityVerifier creates a verifier. trustedKeysFile may be empty, in
// which case only checksums can be verified.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewIntegrityVerifier(trustedKeysFile string, logger interfaces.Logger) (*integrityVerifier, error) {
	v := &integrityVerifier{
		signatures: gpg.NewVerifier(),
		logger:     interfaces.OrNoOp(logger),
	}
	if trustedKeysFile != "" {
		if err := v.signatures.ImportKeyFromFile(trustedKeysFile); err != nil {
			return nil, scanerr.ConfigError("integrity.keys", "failed to load trusted keys", err)
		}
		v.logger.Info("trusted keys loaded",
			interfaces.F("file", trustedKeysFile),
			interfaces.F("keys", v.signatures.GetKeyringSize()),
		)
	}
	return v, nil
}

// HasTrustedKeys reports whether signature verification is possible
func (v *integrityVerifier) HasTrustedKeys() bool {
	return v.signatures.GetKeyringSize() > 0
}

// VerifyChecksum verifies a file's SHA256 checksum (hex, case-insensitive)
func (v *integrityVerifier) VerifyChecksum(_ context.Context, filePath, expectedSum string) error {
	const op = "integrity.checksum"

	expected := strings.ToLower(strings.TrimSpace(expectedSum))
	if len(expected) != sha256.Size*2 {
		return scanerr.ValidationError(op, "sha256 must be 64 hexadecimal characters")
	}
	if _, err := hex.DecodeString(expected); err != nil {
		return scanerr.ValidationError(op, "sha256 must be 64 hexadecimal characters")
	}

	actual, err := CalculateChecksum(filePath)
	if err != nil {
		return err
	}
	if actual != expected {
		return scanerr.Newf(scanerr.CodeSignatureInvalid, op,
			"checksum mismatch: expected %s, got %s", expected, actual)
	}
	return nil
}

// VerifySignature verifies a detached signature over the staged archive
func (v *integrityVerifier) VerifySignature(_ context.Context, filePath string, signature []byte) error {
	const op = "integrity.signature"

	if !v.HasTrustedKeys() {
		return scanerr.ConfigError(op, "signature supplied but no trusted keys are configured", nil)
	}
	if err := v.signatures.VerifyFile(filePath, signature); err != nil {
		return scanerr.Wrap(err, scanerr.CodeSignatureInvalid, op, "archive signature rejected")
	}
	return nil
}

// CalculateChecksum calculates the SHA256 checksum of a file
func CalculateChecksum(filePath string) (string, error) {
	//nolint:gosec // G304: filePath is a staged archive inside a workspace
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
