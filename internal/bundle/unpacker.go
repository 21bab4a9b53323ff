package bundle

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"mime"
	"path"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tour-service/internal/assets"
	"tour-service/internal/logging"
	"tour-service/internal/models"
	"tour-service/internal/scenegraph"
)

// Unpacker is the Import Unpacker.
type Unpacker struct {
	resolver       *assets.Resolver
	defaultSceneID string
	logger         *zap.Logger
}

func NewUnpacker(resolver *assets.Resolver, defaultSceneID string, logger *zap.Logger) *Unpacker {
	return &Unpacker{resolver: resolver, defaultSceneID: defaultSceneID, logger: logging.OrNop(logger)}
}

// ImportReport describes what an import changed or could not use.
type ImportReport struct {
	scenegraph.Report
	AssetsStored int      `json:"assetsStored"`
	Warnings     []string `json:"warnings"`
}

// Load reads the manifest and every file it references from fsys. Nothing
// is written anywhere, so a bad bundle can be rejected before the current
// tour is touched.
func (u *Unpacker) Load(fsys fs.FS) (*Bundle, error) {
	root, err := bundleRoot(fsys)
	if err != nil {
		return nil, err
	}
	raw, err := fs.ReadFile(root, ManifestName)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidBundle, err.Error())
	}
	// styles missing from the manifest keep their defaults
	defaults := scenegraph.DefaultStyles()
	m := Manifest{Styles: &defaults}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrapf(ErrInvalidBundle, "decode %s: %v", ManifestName, err)
	}
	if m.SceneDocument == nil || m.Scenes == nil {
		return nil, errors.Wrapf(ErrInvalidBundle, "%s has no scenes", ManifestName)
	}

	b := &Bundle{Manifest: m, Files: make(map[string][]byte)}
	m.WalkAssets(func(slot models.AssetSlot, ref **models.AssetRef) {
		if (*ref).Kind() != models.AssetBundled {
			return
		}
		rel, ok := cleanBundlePath((*ref).Path())
		if !ok {
			b.Warnings = append(b.Warnings, fmt.Sprintf("%s: unsafe path %q ignored", slot, (*ref).Path()))
			*ref = nil
			return
		}
		if _, seen := b.Files[rel]; seen {
			*ref = models.Bundled(rel)
			return
		}
		data, err := fs.ReadFile(root, rel)
		if err != nil {
			b.Warnings = append(b.Warnings, fmt.Sprintf("%s: %s missing from bundle", slot, rel))
			*ref = nil
			return
		}
		b.Files[rel] = data
		*ref = models.Bundled(rel)
	})
	return b, nil
}

// Unpack turns a loaded bundle into a document ready for the editor. The
// document goes through the full normalization pipeline first; then every
// bundled file is written to the Blob Store under its slot's storage key
// and attached through a fresh transient handle.
func (u *Unpacker) Unpack(ctx context.Context, b *Bundle) (*models.SceneDocument, *models.StyleConfig, ImportReport) {
	doc := b.Manifest.SceneDocument.Clone()
	report := ImportReport{Warnings: append([]string(nil), b.Warnings...)}
	report.Report = scenegraph.Normalize(doc, u.defaultSceneID)

	doc.WalkAssets(func(slot models.AssetSlot, ref **models.AssetRef) {
		r := *ref
		switch r.Kind() {
		case models.AssetBundled:
			data, ok := b.Files[r.Path()]
			if !ok {
				*ref = nil
				return
			}
			name := path.Base(r.Path())
			mimeType := assets.SniffMimeType(mime.TypeByExtension(path.Ext(name)), data)
			*ref = u.resolver.Store(ctx, slot, data, models.BlobMeta{Name: name, MimeType: mimeType})
			report.AssetsStored++
		case models.AssetTransient:
			if !r.HasStorageKey() {
				report.Warnings = append(report.Warnings, fmt.Sprintf("%s: session handle dropped", slot))
				*ref = nil
			}
		}
	})

	styles := scenegraph.DefaultStyles()
	if b.Manifest.Styles != nil {
		styles = *b.Manifest.Styles
	}
	for _, w := range report.Warnings {
		u.logger.Warn("import warning", zap.String("detail", w))
	}
	return doc, &styles, report
}

// Import loads and unpacks fsys in one step.
func (u *Unpacker) Import(ctx context.Context, fsys fs.FS) (*models.SceneDocument, *models.StyleConfig, ImportReport, error) {
	b, err := u.Load(fsys)
	if err != nil {
		return nil, nil, ImportReport{}, err
	}
	doc, styles, report := u.Unpack(ctx, b)
	return doc, styles, report, nil
}
