package gateways

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/ochairo/sonarscan/internal/domain/interfaces"
	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

// defaultMaxEntryBytes caps a single extracted file (decompression bombs)
const defaultMaxEntryBytes = 1 << 30

const extractOp = "workspace.extract"

// ArchiveExtractor unpacks .zip and .tar.gz archives. Every entry must stay
// inside the destination directory, and so must every symlink target after
// all links have been followed.
type ArchiveExtractor struct {
	maxEntryBytes int64
	logger        interfaces.Logger
}

// NewArchiveExtractor creates a new archive extractor
func NewArchiveExtractor(maxEntryBytes int64, logger interfaces.Logger) *ArchiveExtractor {
	if maxEntryBytes <= 0 {
		maxEntryBytes = defaultMaxEntryBytes
	}
	return &ArchiveExtractor{
		maxEntryBytes: maxEntryBytes,
		logger:        interfaces.OrNoOp(logger),
	}
}

// symlinkInfo is a link deferred until all regular files exist
type symlinkInfo struct {
	target   string
	linkname string
}

// Extract unpacks archivePath into destDir, choosing the format by extension
func (e *ArchiveExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0750); err != nil {
		return scanerr.ExtractionError(extractOp, "failed to create destination directory", err)
	}

	var (
		links []symlinkInfo
		err   error
	)
	switch archiveFormat(archivePath) {
	case ".zip":
		links, err = e.extractZip(ctx, archivePath, destDir)
	case ".tar.gz", ".tgz":
		links, err = e.extractTarGz(ctx, archivePath, destDir)
	default:
		return scanerr.Newf(scanerr.CodeInvalidInput, extractOp,
			"unsupported archive format: %s", filepath.Base(archivePath))
	}
	if err != nil {
		return err
	}

	if err := e.createSymlinks(destDir, links); err != nil {
		return err
	}

	e.logger.Debug("archive extracted",
		interfaces.F("archive", filepath.Base(archivePath)),
		interfaces.F("dest", destDir),
	)
	return nil
}

// extractZip extracts a .zip file to destination directory
func (e *ArchiveExtractor) extractZip(ctx context.Context, archivePath, destDir string) ([]symlinkInfo, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, scanerr.ExtractionError(extractOp, "invalid zip archive", err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer zr.Close()

	var links []symlinkInfo
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extraction interrupted: %w", err)
		}

		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return nil, err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0750); err != nil {
				return nil, scanerr.ExtractionError(extractOp, "failed to create directory", err)
			}

		case mode&fs.ModeSymlink != 0:
			linkname, err := readZipLink(f)
			if err != nil {
				return nil, err
			}
			links = append(links, symlinkInfo{target: target, linkname: linkname})

		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return nil, scanerr.ExtractionError(extractOp, "failed to read zip entry "+f.Name, err)
			}
			err = e.writeFile(target, rc, mode.Perm())
			_ = rc.Close()
			if err != nil {
				return nil, err
			}

		default:
			e.logger.Warn("ignoring unsupported zip entry", interfaces.F("entry", f.Name))
		}
	}
	return links, nil
}

// extractTarGz extracts a .tar.gz file to destination directory
func (e *ArchiveExtractor) extractTarGz(ctx context.Context, archivePath, destDir string) ([]symlinkInfo, error) {
	//nolint:gosec // G304: archive path is inside the request workspace
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, scanerr.ExtractionError(extractOp, "failed to open archive", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return nil, scanerr.ExtractionError(extractOp, "invalid gzip stream", err)
	}
	//nolint:errcheck // Defer close on gzip reader
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	var links []symlinkInfo
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extraction interrupted: %w", err)
		}

		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, scanerr.ExtractionError(extractOp, "tar read error", err)
		}

		target, err := safeJoin(destDir, header.Name)
		if err != nil {
			return nil, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0750); err != nil {
				return nil, scanerr.ExtractionError(extractOp, "failed to create directory", err)
			}

		case tar.TypeReg:
			if err := e.writeFile(target, tr, header.FileInfo().Mode().Perm()); err != nil {
				return nil, err
			}

		case tar.TypeSymlink:
			links = append(links, symlinkInfo{target: target, linkname: header.Linkname})

		default:
			// Hard links, devices and FIFOs are never needed to build a codebase.
			e.logger.Warn("ignoring unsupported tar entry",
				interfaces.F("entry", header.Name),
				interfaces.F("type", string(header.Typeflag)),
			)
		}
	}
	return links, nil
}

// writeFile copies one entry to target, failing when it exceeds the per-entry cap
func (e *ArchiveExtractor) writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0750); err != nil {
		return scanerr.ExtractionError(extractOp, "failed to create parent directory", err)
	}

	//nolint:gosec // G304: target validated by safeJoin
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, (perm&0o755)|0o600)
	if err != nil {
		return scanerr.ExtractionError(extractOp, "failed to create file", err)
	}

	written, err := io.Copy(out, io.LimitReader(r, e.maxEntryBytes+1))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return scanerr.ExtractionError(extractOp, "failed to write file", err)
	}
	if written > e.maxEntryBytes {
		return scanerr.Newf(scanerr.CodeExtractionFailed, extractOp,
			"archive entry exceeds %d bytes", e.maxEntryBytes).With("entry", filepath.Base(target))
	}
	return nil
}

// createSymlinks creates links after all regular files exist. Each link is
// placed under the real location of its parent directory, and its target
// must resolve inside destDir both when it is created and once every link
// exists, since later links can change how earlier targets resolve.
func (e *ArchiveExtractor) createSymlinks(destDir string, links []symlinkInfo) error {
	if len(links) == 0 {
		return nil
	}

	realDest, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return scanerr.ExtractionError(extractOp, "failed to resolve destination", err)
	}

	created := make([]symlinkInfo, 0, len(links))
	for _, link := range links {
		if filepath.IsAbs(link.linkname) || filepath.VolumeName(link.linkname) != "" {
			return symlinkEscape(link.linkname)
		}

		relParent, err := filepath.Rel(destDir, filepath.Dir(link.target))
		if err != nil {
			return scanerr.ExtractionError(extractOp, "invalid symlink location", err)
		}
		parent, err := securejoin.SecureJoin(realDest, relParent)
		if err != nil {
			return scanerr.ExtractionError(extractOp, "failed to resolve symlink directory", err)
		}
		relRealParent, err := filepath.Rel(realDest, parent)
		if err != nil {
			return scanerr.ExtractionError(extractOp, "failed to resolve symlink directory", err)
		}

		if _, err := resolveInside(realDest, relRealParent+"/"+filepath.ToSlash(link.linkname)); err != nil {
			return symlinkEscape(link.linkname)
		}

		if err := os.MkdirAll(parent, 0750); err != nil {
			return scanerr.ExtractionError(extractOp, "failed to create directory for symlink", err)
		}
		linkPath := filepath.Join(parent, filepath.Base(link.target))
		if err := os.Symlink(link.linkname, linkPath); err != nil {
			return scanerr.ExtractionError(extractOp, "failed to create symlink", err)
		}
		created = append(created, symlinkInfo{target: linkPath, linkname: link.linkname})
	}

	for _, link := range created {
		rel, err := filepath.Rel(realDest, link.target)
		if err != nil {
			return symlinkEscape(link.linkname)
		}
		if _, err := resolveInside(realDest, rel); err != nil {
			return symlinkEscape(link.linkname)
		}
	}
	return nil
}

func symlinkEscape(linkname string) error {
	return scanerr.ExtractionError(extractOp, "symlink target escapes destination: "+linkname, nil)
}

// maxLinkHops bounds symlink chains during resolution
const maxLinkHops = 40

var errOutsideRoot = errors.New("path resolves outside root")

// resolveInside walks rel below root one component at a time, following
// symlinks, and fails as soon as a step leaves root. Components that do not
// exist are resolved lexically, so dangling links are checked as well.
func resolveInside(root, rel string) (string, error) {
	pending := strings.Split(filepath.ToSlash(rel), "/")
	var current []string
	hops := 0

	for len(pending) > 0 {
		part := pending[0]
		pending = pending[1:]

		switch part {
		case "", ".":
			continue
		case "..":
			if len(current) == 0 {
				return "", errOutsideRoot
			}
			current = current[:len(current)-1]
			continue
		}

		current = append(current, part)
		path := filepath.Join(append([]string{root}, current...)...)
		info, err := os.Lstat(path)
		if err != nil || info.Mode()&fs.ModeSymlink == 0 {
			continue
		}

		hops++
		if hops > maxLinkHops {
			return "", fmt.Errorf("too many levels of symbolic links: %s", path)
		}
		target, err := os.Readlink(path)
		if err != nil {
			return "", fmt.Errorf("failed to read symlink: %w", err)
		}
		if filepath.IsAbs(target) || filepath.VolumeName(target) != "" {
			return "", errOutsideRoot
		}
		current = current[:len(current)-1]
		pending = append(strings.Split(filepath.ToSlash(target), "/"), pending...)
	}
	return filepath.Join(append([]string{root}, current...)...), nil
}

// safeJoin joins an archive entry name onto destDir, rejecting absolute
// names and any name that would land outside destDir
func safeJoin(destDir, name string) (string, error) {
	clean := strings.ReplaceAll(name, `\`, "/")
	if clean == "" || strings.HasPrefix(clean, "/") || filepath.IsAbs(clean) || filepath.VolumeName(clean) != "" {
		return "", scanerr.ExtractionError(extractOp, "invalid file path in archive: "+name, nil)
	}
	//nolint:gosec // G305: traversal checked by withinDir below
	target := filepath.Join(destDir, filepath.FromSlash(clean))
	if !withinDir(destDir, target) {
		return "", scanerr.ExtractionError(extractOp, "invalid file path in archive: "+name, nil)
	}
	return target, nil
}

// withinDir reports whether path is dir or lies below it
func withinDir(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}

// readZipLink reads the link target stored as the content of a zip symlink entry
func readZipLink(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", scanerr.ExtractionError(extractOp, "failed to read zip symlink "+f.Name, err)
	}
	//nolint:errcheck // Defer close on read-only entry
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", scanerr.ExtractionError(extractOp, "failed to read zip symlink "+f.Name, err)
	}
	return string(data), nil
}
