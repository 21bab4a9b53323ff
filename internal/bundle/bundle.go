// Package bundle exports a tour as a self-contained static site and imports
// such bundles back.
package bundle

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"

	"tour-service/internal/models"
)

// ManifestName is the bundle file holding the serialized tour.
const ManifestName = "config.json"

var ErrInvalidBundle = errors.New("invalid bundle")

// ErrUnsafePath is returned when a bundle file would land outside the
// directory it is written to.
var ErrUnsafePath = errors.New("bundle path escapes the target directory")

//go:embed player
var playerFiles embed.FS

// Manifest is the content of config.json. Every asset ref in it is either a
// bundle-relative path or a remote URL.
type Manifest struct {
	*models.SceneDocument
	Styles     *models.StyleConfig `json:"styles,omitempty"`
	Generator  string              `json:"generator,omitempty"`
	ExportedAt string              `json:"exportedAt,omitempty"`
}

// Bundle is an exported tour held in memory: the manifest plus every other
// file keyed by its slash-separated path.
type Bundle struct {
	Manifest Manifest
	Files    map[string][]byte
	Warnings []string
}

// Paths lists every file of the bundle, manifest included, sorted.
func (b *Bundle) Paths() []string {
	out := []string{ManifestName}
	for p := range b.Files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (b *Bundle) manifestBytes() ([]byte, error) {
	data, err := json.MarshalIndent(b.Manifest, "", "  ")
	return data, errors.Wrap(err, "encode manifest")
}

// WriteDir writes the bundle as a static site under dir.
func (b *Bundle) WriteDir(dir string) error {
	manifest, err := b.manifestBytes()
	if err != nil {
		return err
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	write := func(rel string, data []byte) error {
		dst := filepath.Join(root, filepath.FromSlash(rel))
		if !strings.HasPrefix(dst, root+string(os.PathSeparator)) {
			return errors.Wrap(ErrUnsafePath, rel)
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return os.WriteFile(dst, data, 0o644)
	}
	if err := write(ManifestName, manifest); err != nil {
		return errors.Wrap(err, "write manifest")
	}
	for rel, data := range b.Files {
		if err := write(rel, data); err != nil {
			return errors.Wrapf(err, "write %s", rel)
		}
	}
	return nil
}

// WriteZip writes the bundle as a zip archive to w and returns the number
// of bytes written.
func (b *Bundle) WriteZip(ctx context.Context, w io.Writer) (int64, error) {
	staging, err := os.MkdirTemp("", "tour-bundle-*")
	if err != nil {
		return 0, errors.Wrap(err, "create staging dir")
	}
	defer os.RemoveAll(staging)

	if err := b.WriteDir(staging); err != nil {
		return 0, err
	}
	// a trailing separator puts the folder's contents at the archive root
	files, err := archives.FilesFromDisk(ctx, nil, map[string]string{
		staging + string(os.PathSeparator): "",
	})
	if err != nil {
		return 0, errors.Wrap(err, "collect bundle files")
	}
	cw := &countingWriter{w: w}
	if err := (archives.Zip{}).Archive(ctx, cw, files); err != nil {
		return cw.n, errors.Wrap(err, "write zip")
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// OpenArchive exposes zip bytes as a file system.
func OpenArchive(ctx context.Context, data []byte) (fs.FS, error) {
	fsys, err := archives.FileSystem(ctx, "bundle.zip", bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidBundle, err.Error())
	}
	if _, ok := fsys.(*archives.ArchiveFS); !ok {
		return nil, errors.Wrap(ErrInvalidBundle, "not an archive")
	}
	return fsys, nil
}

// OpenPath exposes a bundle directory or archive file as a file system.
func OpenPath(ctx context.Context, p string) (fs.FS, error) {
	fsys, err := archives.FileSystem(ctx, p, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open bundle %s", p)
	}
	return fsys, nil
}

// bundleRoot returns the directory of fsys holding the manifest. Bundles
// zipped together with their folder keep the manifest one level down.
func bundleRoot(fsys fs.FS) (fs.FS, error) {
	if _, err := fs.Stat(fsys, ManifestName); err == nil {
		return fsys, nil
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, errors.Wrap(ErrInvalidBundle, err.Error())
	}
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), "__MACOSX") {
			continue
		}
		if _, err := fs.Stat(fsys, path.Join(e.Name(), ManifestName)); err == nil {
			return fs.Sub(fsys, e.Name())
		}
	}
	return nil, errors.Wrapf(ErrInvalidBundle, "%s not found", ManifestName)
}

// cleanBundlePath validates a manifest path and returns its canonical form.
func cleanBundlePath(p string) (string, bool) {
	p = strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/")
	p = path.Clean(p)
	if !fs.ValidPath(p) || p == "." || p == ManifestName {
		return "", false
	}
	return p, true
}
