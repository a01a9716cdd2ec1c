package gateways

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ochairo/sonarscan/internal/domain/scanerr"
)

type archiveEntry struct {
	name     string
	body     string
	linkname string // non-empty for symlinks
	dir      bool
}

func buildZip(t *testing.T, entries ...archiveEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		header := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		body := e.body
		switch {
		case e.dir:
			header.SetMode(os.ModeDir | 0755)
		case e.linkname != "":
			header.SetMode(os.ModeSymlink | 0777)
			body = e.linkname
		default:
			header.SetMode(0644)
		}
		w, err := zw.CreateHeader(header)
		require.NoError(t, err)
		if !e.dir {
			_, err = w.Write([]byte(body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildTarGz(t *testing.T, entries ...archiveEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		header := &tar.Header{Name: e.name, Mode: 0644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		switch {
		case e.dir:
			header.Typeflag, header.Mode, header.Size = tar.TypeDir, 0755, 0
		case e.linkname != "":
			header.Typeflag, header.Linkname, header.Size = tar.TypeSymlink, e.linkname, 0
		}
		require.NoError(t, tw.WriteHeader(header))
		if header.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func newTestStager(t *testing.T) (*WorkspaceStager, string) {
	t.Helper()
	base := filepath.Join(t.TempDir(), "uploads")
	return NewWorkspaceStager(WorkspaceStagerConfig{BaseDir: base}), base
}

func TestWorkspaceStager_ValidateExtension(t *testing.T) {
	s, _ := newTestStager(t)

	tests := []struct {
		filename string
		want     bool
	}{
		{"demo.zip", true},
		{"DEMO.ZIP", true},
		{"service.tar.gz", true},
		{"service.TGZ", true},
		{"notes.txt", false},
		{"archive.rar", false},
		{"archive.gz", false},
		{".zip", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ValidateExtension(tt.filename))
		})
	}
}

func TestWorkspaceStager_StageExtractCleanup_Zip(t *testing.T) {
	s, base := newTestStager(t)
	ctx := context.Background()

	data := buildZip(t,
		archiveEntry{name: "src/", dir: true},
		archiveEntry{name: "src/main.py", body: "print('hi')\n"},
		archiveEntry{name: "README.md", body: "# demo"},
	)

	ws, err := s.Stage(ctx, bytes.NewReader(data), "demo.zip")
	require.NoError(t, err)
	assert.Equal(t, base, filepath.Dir(ws.Root))
	assert.Equal(t, filepath.Join(ws.Root, "demo.zip"), ws.ArchivePath)
	assert.FileExists(t, ws.ArchivePath)

	require.NoError(t, s.Extract(ctx, ws))
	got, err := os.ReadFile(filepath.Join(ws.ExtractDir, "src", "main.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(got))
	assert.FileExists(t, filepath.Join(ws.ExtractDir, "README.md"))

	require.NoError(t, s.Cleanup(ws))
	assert.NoDirExists(t, ws.Root)
	assert.NoError(t, s.Cleanup(ws), "second cleanup of a removed workspace is a no-op")
}

func TestWorkspaceStager_StageExtract_TarGz(t *testing.T) {
	s, _ := newTestStager(t)
	ctx := context.Background()

	data := buildTarGz(t,
		archiveEntry{name: "app/", dir: true},
		archiveEntry{name: "app/pom.xml", body: "<project/>"},
		archiveEntry{name: "app/current", linkname: "pom.xml"},
	)

	ws, err := s.Stage(ctx, bytes.NewReader(data), "service.tar.gz")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Cleanup(ws) })

	require.NoError(t, s.Extract(ctx, ws))
	got, err := os.ReadFile(filepath.Join(ws.ExtractDir, "app", "current"))
	require.NoError(t, err)
	assert.Equal(t, "<project/>", string(got))
}

func TestWorkspaceStager_TwoWorkspacesAreIndependent(t *testing.T) {
	s, _ := newTestStager(t)
	ctx := context.Background()

	first, err := s.Stage(ctx, bytes.NewReader(buildZip(t, archiveEntry{name: "a.txt", body: "first"})), "demo.zip")
	require.NoError(t, err)
	second, err := s.Stage(ctx, bytes.NewReader(buildZip(t, archiveEntry{name: "a.txt", body: "second"})), "demo.zip")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.NotEqual(t, first.Root, second.Root)

	require.NoError(t, s.Extract(ctx, first))
	require.NoError(t, s.Extract(ctx, second))

	require.NoError(t, s.Cleanup(first))
	got, err := os.ReadFile(filepath.Join(second.ExtractDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	require.NoError(t, s.Cleanup(second))
}

func TestWorkspaceStager_Extract_RejectsTraversal(t *testing.T) {
	tests := []struct {
		name    string
		archive string
		data    func(t *testing.T) []byte
	}{
		{"zip parent traversal", "evil.zip", func(t *testing.T) []byte {
			return buildZip(t, archiveEntry{name: "../../evil.txt", body: "pwned"})
		}},
		{"zip nested traversal", "evil.zip", func(t *testing.T) []byte {
			return buildZip(t, archiveEntry{name: "src/../../evil.txt", body: "pwned"})
		}},
		{"zip absolute path", "evil.zip", func(t *testing.T) []byte {
			return buildZip(t, archiveEntry{name: "/tmp/evil.txt", body: "pwned"})
		}},
		{"zip symlink escape", "evil.zip", func(t *testing.T) []byte {
			return buildZip(t, archiveEntry{name: "link", linkname: "../../../etc"})
		}},
		{"tar parent traversal", "evil.tar.gz", func(t *testing.T) []byte {
			return buildTarGz(t, archiveEntry{name: "../evil.txt", body: "pwned"})
		}},
		{"tar absolute symlink", "evil.tgz", func(t *testing.T) []byte {
			return buildTarGz(t, archiveEntry{name: "etc", linkname: "/etc"})
		}},
		{"tar symlink chain escape", "evil.tgz", func(t *testing.T) []byte {
			return buildTarGz(t,
				archiveEntry{name: "a/", dir: true},
				archiveEntry{name: "a/up", linkname: ".."},
				archiveEntry{name: "a/out", linkname: "up/.."},
			)
		}},
		{"tar link placed through a parent link", "evil.tgz", func(t *testing.T) []byte {
			return buildTarGz(t,
				archiveEntry{name: "d/", dir: true},
				archiveEntry{name: "d/s", linkname: ".."},
				archiveEntry{name: "d/s/e", linkname: "../../evil.txt"},
			)
		}},
		{"zip dangling link redirected by a later link", "evil.zip", func(t *testing.T) []byte {
			return buildZip(t,
				archiveEntry{name: "l1", linkname: "m/../evil.txt"},
				archiveEntry{name: "m", linkname: "."},
			)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, base := newTestStager(t)
			ctx := context.Background()

			ws, err := s.Stage(ctx, bytes.NewReader(tt.data(t)), tt.archive)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Cleanup(ws) })

			err = s.Extract(ctx, ws)
			require.Error(t, err)
			assert.True(t, scanerr.HasCode(err, scanerr.CodeExtractionFailed), "code = %s", scanerr.CodeOf(err))

			assert.NoFileExists(t, filepath.Join(base, "evil.txt"))
			assert.NoFileExists(t, filepath.Join(filepath.Dir(base), "evil.txt"))
		})
	}
}

func TestWorkspaceStager_Extract_LinkThroughLinkedDirectory(t *testing.T) {
	s, _ := newTestStager(t)
	ctx := context.Background()

	data := buildTarGz(t,
		archiveEntry{name: "src/main.py", body: "print('hi')"},
		archiveEntry{name: "lib", linkname: "src"},
		archiveEntry{name: "lib/alias.py", linkname: "main.py"},
	)
	ws, err := s.Stage(ctx, bytes.NewReader(data), "linked.tgz")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Cleanup(ws) })

	require.NoError(t, s.Extract(ctx, ws))

	// The second link lands in the real directory behind lib.
	target, err := os.Readlink(filepath.Join(ws.ExtractDir, "src", "alias.py"))
	require.NoError(t, err)
	assert.Equal(t, "main.py", target)

	content, err := os.ReadFile(filepath.Join(ws.ExtractDir, "lib", "alias.py"))
	require.NoError(t, err)
	assert.Equal(t, "print('hi')", string(content))
}

func TestResolveInside(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "d"), 0750))
	require.NoError(t, os.Symlink("..", filepath.Join(root, "d", "up")))
	require.NoError(t, os.Symlink("loop", filepath.Join(root, "loop")))

	tests := []struct {
		rel     string
		want    string
		wantErr bool
	}{
		{"d/file", filepath.Join(root, "d", "file"), false},
		{"d/up/other", filepath.Join(root, "other"), false},
		{"missing/../d", filepath.Join(root, "d"), false},
		{"d/up/..", "", true},
		{"d/../../x", "", true},
		{"loop", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.rel, func(t *testing.T) {
			got, err := resolveInside(root, tt.rel)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWorkspaceStager_Extract_CorruptArchive(t *testing.T) {
	for _, name := range []string{"broken.zip", "broken.tar.gz"} {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestStager(t)
			ctx := context.Background()

			ws, err := s.Stage(ctx, strings.NewReader("definitely not an archive"), name)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Cleanup(ws) })

			err = s.Extract(ctx, ws)
			assert.True(t, scanerr.HasCode(err, scanerr.CodeExtractionFailed), "err = %v", err)
		})
	}
}

func TestWorkspaceStager_Extract_EntrySizeCap(t *testing.T) {
	base := filepath.Join(t.TempDir(), "uploads")
	s := NewWorkspaceStager(WorkspaceStagerConfig{BaseDir: base, MaxEntryBytes: 16})
	ctx := context.Background()

	data := buildZip(t, archiveEntry{name: "big.txt", body: strings.Repeat("x", 1024)})
	ws, err := s.Stage(ctx, bytes.NewReader(data), "bomb.zip")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Cleanup(ws) })

	err = s.Extract(ctx, ws)
	assert.True(t, scanerr.HasCode(err, scanerr.CodeExtractionFailed), "err = %v", err)
}

func TestWorkspaceStager_Stage_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		reader   *strings.Reader
		want     scanerr.Code
	}{
		{"bad extension", "notes.txt", strings.NewReader("x"), scanerr.CodeInvalidInput},
		{"empty name", "", strings.NewReader("x"), scanerr.CodeInvalidInput},
		{"dot dot name", "..", strings.NewReader("x"), scanerr.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, base := newTestStager(t)

			ws, err := s.Stage(context.Background(), tt.reader, tt.filename)
			assert.Nil(t, ws)
			assert.True(t, scanerr.HasCode(err, tt.want), "code = %s", scanerr.CodeOf(err))
			assert.NoDirExists(t, base, "no workspace is created for a rejected upload")
		})
	}
}

func TestWorkspaceStager_Stage_NilReader(t *testing.T) {
	s, _ := newTestStager(t)

	_, err := s.Stage(context.Background(), nil, "demo.zip")
	assert.True(t, scanerr.HasCode(err, scanerr.CodeInvalidInput))
}

func TestWorkspaceStager_Stage_TooLarge(t *testing.T) {
	base := filepath.Join(t.TempDir(), "uploads")
	s := NewWorkspaceStager(WorkspaceStagerConfig{BaseDir: base, MaxUploadBytes: 8})

	_, err := s.Stage(context.Background(), strings.NewReader(strings.Repeat("x", 64)), "big.zip")
	assert.True(t, scanerr.HasCode(err, scanerr.CodeTooLarge), "code = %s", scanerr.CodeOf(err))

	entries, readErr := os.ReadDir(base)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "oversized upload must not leave a workspace behind")
}

func TestWorkspaceStager_Stage_StripsClientPath(t *testing.T) {
	s, _ := newTestStager(t)

	ws, err := s.Stage(context.Background(), bytes.NewReader(buildZip(t)), `C:\Users\dev\..\legacy.zip`)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Cleanup(ws) })

	assert.Equal(t, filepath.Join(ws.Root, "legacy.zip"), ws.ArchivePath)
}

func TestWorkspaceStager_Stage_CanceledContext(t *testing.T) {
	s, base := newTestStager(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Stage(ctx, strings.NewReader("data"), "demo.zip")
	require.Error(t, err)

	entries, readErr := os.ReadDir(base)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}
