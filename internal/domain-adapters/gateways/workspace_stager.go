package gateways

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ochairo/sonarscan/internal/domain/entities"
	"github.com/ochairo/sonarscan/internal/domain/interfaces"
	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

const (
	// defaultMaxUploadBytes caps a staged archive when no limit is configured
	defaultMaxUploadBytes = 100 << 20

	// extractDirName is the workspace subdirectory holding the unpacked codebase
	extractDirName = "extracted"

	workspaceTimeLayout = "20060102T150405Z"
)

// acceptedExtensions lists the archive formats the stager can unpack
var acceptedExtensions = []string{".zip", ".tar.gz", ".tgz"}

// WorkspaceStager creates per-request working directories under a base
// directory, saves the uploaded archive there and unpacks it.
type WorkspaceStager struct {
	baseDir        string
	maxUploadBytes int64
	extractor      *ArchiveExtractor
	logger         interfaces.Logger
	now            func() time.Time
}

// WorkspaceStagerConfig contains configuration for the workspace stager
type WorkspaceStagerConfig struct {
	BaseDir        string
	MaxUploadBytes int64
	MaxEntryBytes  int64
	Logger         interfaces.Logger
}

// NewWorkspaceStager creates a new workspace stager
func NewWorkspaceStager(config WorkspaceStagerConfig) *WorkspaceStager {
	maxUpload := config.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	baseDir := config.BaseDir
	if baseDir == "" {
		baseDir = "uploads"
	}
	logger := interfaces.OrNoOp(config.Logger)
	return &WorkspaceStager{
		baseDir:        baseDir,
		maxUploadBytes: maxUpload,
		extractor:      NewArchiveExtractor(config.MaxEntryBytes, logger),
		logger:         logger,
		now:            time.Now,
	}
}

// ValidateExtension reports whether filename ends with an accepted archive
// extension (case-insensitive)
func (s *WorkspaceStager) ValidateExtension(filename string) bool {
	return archiveFormat(filename) != ""
}

// Stage creates a uniquely named workspace and writes the archive into it.
// The workspace is removed again when staging fails.
func (s *WorkspaceStager) Stage(ctx context.Context, archive io.Reader, filename string) (*entities.Workspace, error) {
	const op = "workspace.stage"

	if archive == nil {
		return nil, scanerr.ValidationError(op, "no file part")
	}
	name := sanitizeFilename(filename)
	if name == "" {
		return nil, scanerr.ValidationError(op, "no selected file")
	}
	if !s.ValidateExtension(name) {
		return nil, scanerr.Newf(scanerr.CodeInvalidInput, op,
			"invalid file type: %s (accepted: %s)", name, strings.Join(acceptedExtensions, ", "))
	}

	createdAt := s.now().UTC()
	id := createdAt.Format(workspaceTimeLayout) + "-" + uuid.NewString()
	root := filepath.Join(s.baseDir, id)

	if err := os.MkdirAll(s.baseDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	// Mkdir (not MkdirAll) so an existing directory is never shared.
	if err := os.Mkdir(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	ws := &entities.Workspace{
		ID:          id,
		Root:        root,
		ArchivePath: filepath.Join(root, name),
		ExtractDir:  filepath.Join(root, extractDirName),
		CreatedAt:   createdAt,
	}

	if err := s.writeArchive(ctx, archive, ws.ArchivePath); err != nil {
		_ = os.RemoveAll(root)
		return nil, err
	}

	s.logger.Info("workspace staged",
		interfaces.F("workspace", ws.ID),
		interfaces.F("archive", name),
	)
	return ws, nil
}

// writeArchive copies at most maxUploadBytes into dest
func (s *WorkspaceStager) writeArchive(ctx context.Context, archive io.Reader, dest string) error {
	const op = "workspace.stage"

	//nolint:gosec // G304: dest is inside a freshly created workspace
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	limited := io.LimitReader(&contextReader{ctx: ctx, r: archive}, s.maxUploadBytes+1)
	written, err := io.Copy(out, limited)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("upload interrupted: %w", ctxErr)
		}
		return fmt.Errorf("failed to save archive: %w", err)
	}
	if written > s.maxUploadBytes {
		return scanerr.Newf(scanerr.CodeTooLarge, op,
			"archive exceeds the maximum upload size of %d bytes", s.maxUploadBytes)
	}
	return nil
}

// Extract unpacks the staged archive into the workspace extraction directory
func (s *WorkspaceStager) Extract(ctx context.Context, ws *entities.Workspace) error {
	if ws == nil {
		return scanerr.New(scanerr.CodeInternal, "workspace.extract", "workspace is nil")
	}
	return s.extractor.Extract(ctx, ws.ArchivePath, ws.ExtractDir)
}

// Cleanup removes the workspace and everything in it
func (s *WorkspaceStager) Cleanup(ws *entities.Workspace) error {
	if ws == nil || ws.Root == "" {
		return nil
	}
	if err := os.RemoveAll(ws.Root); err != nil {
		return scanerr.Wrap(err, scanerr.CodeCleanupFailed, "workspace.cleanup",
			"failed to remove workspace").With("workspace", ws.ID)
	}
	s.logger.Debug("workspace removed", interfaces.F("workspace", ws.ID))
	return nil
}

// sanitizeFilename keeps only the base name of a client supplied path
func sanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/"))
	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}

// archiveFormat returns the accepted extension of filename, or ""
func archiveFormat(filename string) string {
	lower := strings.ToLower(filename)
	for _, ext := range acceptedExtensions {
		if strings.HasSuffix(lower, ext) && len(lower) > len(ext) {
			return ext
		}
	}
	return ""
}

// contextReader stops a copy once the request context is done
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
