package bundle

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tour-service/internal/assets"
	"tour-service/internal/logging"
	"tour-service/internal/models"
)

const generator = "tour-service"

// Packager is the Export Packager.
type Packager struct {
	resolver *assets.Resolver
	logger   *zap.Logger
	now      func() time.Time
}

func NewPackager(resolver *assets.Resolver, logger *zap.Logger) *Packager {
	return &Packager{resolver: resolver, logger: logging.OrNop(logger), now: time.Now}
}

// Export builds a bundle from doc. Every asset with local bytes becomes a
// file under images/, audio/ or videos/; remote URLs are kept as they are.
// Assets whose bytes cannot be found are left out and reported in
// Bundle.Warnings. doc is not modified.
func (p *Packager) Export(ctx context.Context, doc *models.SceneDocument, styles *models.StyleConfig) (*Bundle, error) {
	if doc == nil {
		return nil, errors.New("no document to export")
	}
	out := doc.Clone()
	b := &Bundle{Files: make(map[string][]byte)}

	out.WalkAssets(func(slot models.AssetSlot, ref **models.AssetRef) {
		r := *ref
		if r.IsZero() {
			*ref = nil
			return
		}
		if r.Kind() == models.AssetRemote {
			return
		}
		content, ok := p.resolver.Bytes(ctx, slot.Namespace(), r)
		if !ok {
			msg := fmt.Sprintf("%s: asset %s is not available and was left out", slot, r)
			b.Warnings = append(b.Warnings, msg)
			p.logger.Warn("export skipped asset", zap.String("slot", slot.String()), zap.String("ref", r.String()))
			*ref = nil
			return
		}
		rel, ok := cleanBundlePath(path.Join(slot.Namespace().BundleDir(), slot.StorageKey()+extensionFor(content.Name, content.MimeType)))
		if !ok {
			msg := fmt.Sprintf("%s: scene id cannot be used as a file name; asset left out", slot)
			b.Warnings = append(b.Warnings, msg)
			p.logger.Warn("export skipped asset", zap.String("slot", slot.String()), zap.String("reason", "unsafe path"))
			*ref = nil
			return
		}
		b.Files[rel] = content.Data
		*ref = models.Bundled(rel)
	})

	if err := addPlayer(b); err != nil {
		return nil, err
	}
	b.Manifest = Manifest{
		SceneDocument: out,
		Styles:        styles,
		Generator:     generator,
		ExportedAt:    p.now().UTC().Format(time.RFC3339),
	}
	return b, nil
}

func addPlayer(b *Bundle) error {
	return fs.WalkDir(playerFiles, "player", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := playerFiles.ReadFile(p)
		if err != nil {
			return errors.Wrapf(err, "read player file %s", p)
		}
		b.Files[strings.TrimPrefix(p, "player/")] = data
		return nil
	})
}

var preferredExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"audio/mpeg": ".mp3",
	"audio/ogg":  ".ogg",
	"audio/wav":  ".wav",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

func extensionFor(name, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" && len(ext) <= 6 {
		return ext
	}
	if ext, ok := preferredExtensions[mimeType]; ok {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
