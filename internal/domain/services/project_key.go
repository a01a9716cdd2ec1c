package services

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

// maxProjectKeyLength matches the SonarQube server limit
const maxProjectKeyLength = 400

var (
	projectKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.:-]+$`)
	tokenPattern      = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	digitsOnly        = regexp.MustCompile(`^[0-9]+$`)
)

// archiveSuffixes are stripped from archive names before deriving a key
var archiveSuffixes = []string{".tar.gz", ".tgz", ".zip"}

// ValidateProjectKey checks that a key is safe to embed in command arguments
// and acceptable to the scanner: non-empty, at most 400 characters from
// [A-Za-z0-9_.:-], and not made of digits only.
func ValidateProjectKey(key string) error {
	const op = "projectkey.validate"

	switch {
	case key == "":
		return scanerr.ValidationError(op, "project key is empty")
	case len(key) > maxProjectKeyLength:
		return scanerr.Newf(scanerr.CodeInvalidInput, op, "project key exceeds %d characters", maxProjectKeyLength)
	case !projectKeyPattern.MatchString(key):
		return scanerr.Newf(scanerr.CodeInvalidInput, op,
			"project key %q may only contain letters, digits, '-', '_', '.' and ':'", key)
	case digitsOnly.MatchString(key):
		return scanerr.Newf(scanerr.CodeInvalidInput, op, "project key %q must contain at least one non-digit", key)
	}
	return nil
}

// DeriveProjectKey returns the trimmed user key when one is given, otherwise
// a key derived from the archive file name with every non-alphanumeric
// character replaced by '_'.
func (s *scanService) DeriveProjectKey(userKey, archiveName string) (string, error) {
	if key := strings.TrimSpace(userKey); key != "" {
		if err := ValidateProjectKey(key); err != nil {
			return "", err
		}
		return key, nil
	}

	key := ProjectKeyFromFilename(archiveName)
	if err := ValidateProjectKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ProjectKeyFromFilename sanitizes an archive file name into a project key
func ProjectKeyFromFilename(archiveName string) string {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(archiveName), `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}

	lower := strings.ToLower(base)
	for _, suffix := range archiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			base = base[:len(base)-len(suffix)]
			break
		}
	}

	var b strings.Builder
	for _, r := range base {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	key := b.String()
	if digitsOnly.MatchString(key) {
		key = "project_" + key
	}
	return key
}

// ValidateToken checks that the scanner token is present and uses only
// characters that SonarQube issues in tokens
func (s *scanService) ValidateToken(token string) error {
	const op = "token.validate"

	if token == "" {
		return scanerr.ValidationError(op, "scanner token is required")
	}
	if !tokenPattern.MatchString(token) {
		// Never echo the token itself.
		return scanerr.ValidationError(op, "scanner token contains characters outside [A-Za-z0-9_.-]")
	}
	return nil
}
