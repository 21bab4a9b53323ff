package extraction

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
)

// ErrUnsafePath is returned when an archive entry would land outside the
// destination directory.
var ErrUnsafePath = errors.New("archive entry escapes destination")

// shouldIgnoreFile reports whether an entry is OS metadata that is never
// restored.
func shouldIgnoreFile(p string) bool {
	base := baseName(p)
	if strings.HasPrefix(p, "__MACOSX/") || strings.HasPrefix(base, "._") {
		return true
	}
	return base == ".DS_Store" || strings.EqualFold(base, "thumbs.db")
}

func baseName(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

// ExtractArchive extracts the contents of a ZIP, TAR or RAR archive into
// destDir, overwriting existing files, and returns the written paths.
func ExtractArchive(ctx context.Context, archivePath, destDir string) ([]string, error) {
	fsys, err := archives.FileSystem(ctx, archivePath, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "open archive %s", archivePath)
	}
	if _, ok := fsys.(*archives.ArchiveFS); !ok {
		return nil, errors.Errorf("%s is not an archive", filepath.Base(archivePath))
	}
	return extractFS(ctx, fsys, destDir)
}

// ExtractToTemp extracts an archive into a fresh temporary directory. The
// caller removes the directory.
func ExtractToTemp(ctx context.Context, archivePath string) ([]string, string, error) {
	destDir, err := os.MkdirTemp("", "extract-*")
	if err != nil {
		return nil, "", err
	}
	files, err := ExtractArchive(ctx, archivePath, destDir)
	if err != nil {
		os.RemoveAll(destDir)
		return nil, "", err
	}
	return files, destDir, nil
}

func extractFS(ctx context.Context, fsys fs.FS, destDir string) ([]string, error) {
	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, err
	}
	var files []string
	err = fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || shouldIgnoreFile(p) {
			return nil
		}

		destPath := filepath.Join(root, filepath.FromSlash(p))
		if destPath != root && !strings.HasPrefix(destPath, root+string(os.PathSeparator)) {
			return errors.Wrap(ErrUnsafePath, p)
		}
		if err := copyEntry(fsys, p, destPath); err != nil {
			return errors.Wrapf(err, "extract %s", p)
		}
		files = append(files, destPath)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func copyEntry(fsys fs.FS, p, destPath string) error {
	reader, err := fsys.Open(p)
	if err != nil {
		return err
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}
	outFile, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	_, err = io.Copy(outFile, reader)
	return err
}
