// Package entities defines core domain models and data structures.
package entities

import "io"

// MaxSignatureBytes bounds a detached signature; real ones are well under 1KB
const MaxSignatureBytes = 10 * 1024

// ScanRequest describes one uploaded archive to be scanned
type ScanRequest struct {
	Archive     io.Reader
	ArchiveName string
	Toolchain   string // label as supplied by the caller, e.g. ".NET Core"
	ProjectKey  string // optional; derived from ArchiveName when empty

	// Optional integrity material supplied alongside the archive
	Signature []byte // detached OpenPGP signature (armored or binary)
	Checksum  string // hex SHA-256 of the archive
}
