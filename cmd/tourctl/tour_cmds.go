package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tour-service/internal/assets"
	"tour-service/internal/blobstore"
	"tour-service/internal/bootstrap"
	"tour-service/internal/bundle"
	"tour-service/internal/docstore"
	"tour-service/internal/services"
)

var (
	exportOut string
	exportDir string
	clearYes  bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored tour as a zip or a site directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		if exportDir != "" {
			b, err := rt.Editor.ExportBundle(ctx)
			if err != nil {
				return err
			}
			if err := b.WriteDir(exportDir); err != nil {
				return err
			}
			printWarnings(cmd, b.Warnings)
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d files to %s\n", len(b.Paths()), exportDir)
			return nil
		}

		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		w := bufio.NewWriter(f)
		warnings, err := rt.Editor.ExportZip(ctx, w)
		if err == nil {
			err = w.Flush()
		}
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(exportOut)
			return err
		}
		printWarnings(cmd, warnings)
		fmt.Fprintf(cmd.OutOrStdout(), "Exported tour to %s\n", exportOut)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <bundle.zip|dir>",
	Short: "Replace the stored tour with an exported bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fsys, err := bundle.OpenPath(ctx, args[0])
		if err != nil {
			return err
		}
		rt, err := openRuntime(ctx, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		report, err := rt.Editor.Import(ctx, fsys)
		if err != nil {
			return err
		}
		printWarnings(cmd, report.Warnings)
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %s: %d assets stored\n", args[0], report.AssetsStored)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <bundle.zip|dir>",
	Short: "Check a bundle without touching the stored tour",
	Long: `Imports the bundle into throwaway in-memory stores and prints what the
import pipeline repaired, migrated or could not resolve.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fsys, err := bundle.OpenPath(ctx, args[0])
		if err != nil {
			return err
		}
		editor := scratchEditor(ctx)
		report, err := editor.Import(ctx, fsys)
		if err != nil {
			return err
		}
		view := editor.Document(ctx)

		out := struct {
			bundle.ImportReport
			Scenes        int `json:"scenes"`
			MissingAssets int `json:"missingAssets"`
		}{report, len(view.Document.Scenes), len(view.MissingAssets)}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored tour and every stored asset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("refusing to clear without --yes")
		}
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, true)
		if err != nil {
			return err
		}
		defer rt.Close()

		if !rt.Editor.ClearAll(ctx) {
			return fmt.Errorf("some stores could not be cleared, see the log")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Tour cleared")
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "tour.zip", "zip file to write")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "write the site to this directory instead of a zip")
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deletion")
}

// scratchEditor returns an editor on in-memory stores.
func scratchEditor(ctx context.Context) *services.EditorService {
	blobs := blobstore.NewMemoryStore()
	resolver := assets.NewResolver(blobs, assets.NewTransientRegistry(cfg.TransientCapacity, logger, nil), logger, nil)
	editor := services.NewEditorService(docstore.New(docstore.NewMemoryKV(), logger, nil), blobs, resolver, bootstrap.NewFetcher(cfg, logger, nil),
		cfg.DefaultSceneID, logger, nil)
	editor.Open(ctx)
	return editor
}

func printWarnings(cmd *cobra.Command, warnings []string) {
	for _, w := range warnings {
		logger.Warn("bundle warning", zap.String("detail", w))
	}
	if len(warnings) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%d warnings\n", len(warnings))
	}
}
