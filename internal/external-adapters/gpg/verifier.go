// Package gpg provides OpenPGP detached signature verification for uploaded archives.
package gpg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/ochairo/sonarscan/internal/domain/entities"
)

// maxKeyringBytes bounds a trusted keyring file
const maxKeyringBytes = 10 * 1024 * 1024

// armoredSignaturePrefix starts every ASCII-armored signature
var armoredSignaturePrefix = []byte("-----BEGIN PGP SIGNATURE-----")

// ErrNoKeys is returned when verification is attempted without a trusted key
var ErrNoKeys = errors.New("no trusted OpenPGP keys loaded")

// Verifier checks detached signatures against a trusted keyring using
// ProtonMail's go-crypto. The keyring is read-only after loading and safe
// for concurrent verification.
type Verifier struct {
	mu      sync.RWMutex
	keyring openpgp.EntityList
}

// NewVerifier creates a verifier with an empty keyring
func NewVerifier() *Verifier {
	return &Verifier{keyring: make(openpgp.EntityList, 0)}
}

// ImportKeyFromFile adds the keys of an armored or binary keyring file
func (v *Verifier) ImportKeyFromFile(keyPath string) error {
	//nolint:gosec // G304: keyPath comes from the operator's configuration
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return fmt.Errorf("failed to read key file: %w", err)
	}
	if len(data) > maxKeyringBytes {
		return fmt.Errorf("key file exceeds %d bytes", maxKeyringBytes)
	}
	return v.ImportKeys(bytes.NewReader(data))
}

// ImportKeys adds the keys read from r (armored first, then binary)
func (v *Verifier) ImportKeys(r io.Reader) error {
	data, err := io.ReadAll(io.LimitReader(r, maxKeyringBytes))
	if err != nil {
		return fmt.Errorf("failed to read keys: %w", err)
	}

	keys, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keys, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to read key: %w", err)
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("no keys found")
	}

	v.mu.Lock()
	v.keyring = append(v.keyring, keys...)
	v.mu.Unlock()
	return nil
}

// VerifyDetached checks that signature is a valid detached signature of
// signed made by one of the trusted keys. Armored and binary signatures
// are both accepted.
func (v *Verifier) VerifyDetached(signed io.Reader, signature []byte) error {
	v.mu.RLock()
	keyring := v.keyring
	v.mu.RUnlock()

	if len(keyring) == 0 {
		return ErrNoKeys
	}
	if len(signature) > entities.MaxSignatureBytes {
		return fmt.Errorf("signature exceeds %d bytes", entities.MaxSignatureBytes)
	}
	if len(signature) < 10 {
		return fmt.Errorf("signature too small to be a valid OpenPGP signature")
	}

	sig := bytes.NewReader(signature)
	var err error
	if bytes.HasPrefix(bytes.TrimSpace(signature), armoredSignaturePrefix) {
		_, err = openpgp.CheckArmoredDetachedSignature(keyring, signed, sig, nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(keyring, signed, sig, nil)
	}
	if err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// VerifyFile verifies a detached signature over the contents of filePath
func (v *Verifier) VerifyFile(filePath string, signature []byte) error {
	//nolint:gosec // G304: filePath is a staged archive inside a workspace
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	return v.VerifyDetached(f, signature)
}

// GetKeyringSize returns the number of keys in the keyring
func (v *Verifier) GetKeyringSize() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keyring)
}
