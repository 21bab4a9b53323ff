package services

import (
	"context"
	"io"
	"io/fs"

	"go.uber.org/zap"

	"tour-service/internal/blobstore"
	"tour-service/internal/bundle"
	"tour-service/internal/scenegraph"
)

// ExportBundle packages the current tour. The tour is copied under the lock
// and packaged without holding it.
func (s *EditorService) ExportBundle(ctx context.Context) (*bundle.Bundle, error) {
	s.mu.Lock()
	s.resolver.Rehydrate(ctx, s.doc)
	doc := s.doc.Clone()
	styles := s.styles
	s.mu.Unlock()

	b, err := s.packager.Export(ctx, doc, &styles)
	if err != nil {
		s.metrics.ObserveBundle("export", false, 0)
		return nil, err
	}
	if len(b.Warnings) > 0 {
		s.logger.Warn("export left out unavailable assets", zap.Strings("warnings", b.Warnings))
	}
	return b, nil
}

// ExportZip writes the tour as a zip archive to w.
func (s *EditorService) ExportZip(ctx context.Context, w io.Writer) ([]string, error) {
	b, err := s.ExportBundle(ctx)
	if err != nil {
		return nil, err
	}
	n, err := b.WriteZip(ctx, w)
	s.metrics.ObserveBundle("export", err == nil, n)
	if err != nil {
		return nil, err
	}
	s.logger.Info("tour exported", zap.Int64("bytes", n), zap.Int("files", len(b.Files)+1))
	return b.Warnings, nil
}

// Import replaces the current tour with the bundle in fsys. The bundle is
// read and checked before anything is changed, so a bad bundle leaves the
// current tour as it was.
func (s *EditorService) Import(ctx context.Context, fsys fs.FS) (bundle.ImportReport, error) {
	b, err := s.unpacker.Load(fsys)
	if err != nil {
		s.metrics.ObserveBundle("import", false, 0)
		return bundle.ImportReport{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolver.Registry().Clear()
	if !blobstore.ClearEverything(ctx, s.blobs) {
		s.logger.Warn("previous assets could not be cleared before import")
	}
	doc, styles, report := s.unpacker.Unpack(ctx, b)
	s.doc = doc
	s.styles = *styles
	s.commit(ctx)
	s.docs.SaveStyles(ctx, &s.styles)

	s.metrics.ObserveBundle("import", true, 0)
	s.logger.Info("tour imported",
		zap.Int("scenes", len(doc.Scenes)),
		zap.Int("assets", report.AssetsStored),
		zap.Int("warnings", len(report.Warnings)))
	return report, nil
}

// ImportZip imports a bundle from zip bytes.
func (s *EditorService) ImportZip(ctx context.Context, data []byte) (bundle.ImportReport, error) {
	fsys, err := bundle.OpenArchive(ctx, data)
	if err != nil {
		s.metrics.ObserveBundle("import", false, 0)
		return bundle.ImportReport{}, err
	}
	return s.Import(ctx, fsys)
}

// ClearAll resets the editor to a new tour and deletes every stored asset
// and both persisted records. It reports whether all stores were cleared.
func (s *EditorService) ClearAll(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resolver.Registry().Clear()
	ok := blobstore.ClearEverything(ctx, s.blobs)
	ok = s.docs.Clear(ctx) && ok

	s.doc = scenegraph.NewDocument(s.defaultSceneID)
	s.styles = scenegraph.DefaultStyles()
	s.commit(ctx)
	s.docs.SaveStyles(ctx, &s.styles)
	s.logger.Info("tour cleared", zap.Bool("complete", ok))
	return ok
}
