package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/wgdzlh/gridset"
	"github.com/wgdzlh/gridset/config"
	"github.com/wgdzlh/gridset/gdalio"
	"github.com/wgdzlh/gridset/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"
)

var (
	cfgPath  string
	basePath string
	cfg      *config.Config

	// 由标签栅格计算格网时读入，split阶段复用
	label    *gridset.LabelLayer
	labelRef gdalio.Georef
)

func init() {
	Root.PersistentFlags().StringVar(&cfgPath, "config", "gridset.toml", "path to the TOML configuration file")
	assembleCmd.Flags().StringVar(&basePath, "base", "", "label raster the results are written into (default: parcel_path, then label_path)")
	Root.AddCommand(splitCmd, fuseCmd, sliceCmd, generateCmd, assembleCmd)
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "gridset",
	Short: "Grid patch dataset builder for parcel/crop classification.",
	Long: `gridset tiles a label raster and its co-registered raster sources into
fixed-size patches, fuses multi-resolution sources per grid cell, slices the
patches into one training sample per qualifying class, and writes per-cell
predictions back into a full-extent label raster.

Every stage reads and writes patches keyed by grid code, so stages can run
independently against the same output root or bucket.`,
	SilenceUsage: true,
	PersistentPreRunE: func(*cobra.Command, []string) (err error) {
		if cfg, err = config.Load(cfgPath); err != nil {
			return
		}
		return log.SetLevel(cfg.LogLevel)
	},
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split the label and raster sources into grid patches.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPipeline(cmd, true, split)
	},
}

var fuseCmd = &cobra.Command{
	Use:   "fuse",
	Short: "Fuse the per-source patches of every grid cell into one patch.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPipeline(cmd, false, fuse)
	},
}

var sliceCmd = &cobra.Command{
	Use:   "slice",
	Short: "Slice label (and fused raster) patches into per-class samples.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPipeline(cmd, false, slice)
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Run split, fuse and slice in sequence.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withPipeline(cmd, true, func(ctx context.Context, p *gridset.Pipeline) (err error) {
			if err = split(ctx, p); err != nil {
				return
			}
			if err = fuse(ctx, p); err != nil {
				return
			}
			return slice(ctx, p)
		})
	},
}

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Write the predicted results back into a full-extent label raster.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.ResultPath == "" {
			return fmt.Errorf("%w: result_path is required", gridset.ErrConfiguration)
		}
		return withPipeline(cmd, false, assemble)
	},
}

func openStore(ctx context.Context) (s gridset.Store, closer func() error, err error) {
	closer = func() error { return nil }
	if cfg.StoreURL != "" {
		var bs *gridset.BlobStore
		if bs, err = gridset.OpenBlobStore(ctx, cfg.StoreURL); err != nil {
			return
		}
		s, closer = bs, bs.Close
	} else if s, err = gridset.NewLocalStore(cfg.OutputRoot); err != nil {
		return
	}
	s = gridset.WithRetry(s, cfg.Retries)
	return
}

// 初始化存储与格网后执行fn。fromLabel为true时由标签栅格计算格网，否则读取已保存的格网描述
func withPipeline(cmd *cobra.Command, fromLabel bool, fn func(ctx context.Context, p *gridset.Pipeline) error) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	store, closer, err := openStore(ctx)
	if err != nil {
		return
	}
	defer closer()
	var grid *gridset.Grid
	if fromLabel {
		if label, labelRef, err = toolbox().ReadLabel(cfg.LabelPath); err != nil {
			return
		}
		if grid, err = gridset.ComputeGrid(label.Extent(), cfg.PatchSize, cfg.Policy()); err != nil {
			return
		}
	} else if grid, err = gridset.LoadManifest(ctx, store); err != nil {
		if errors.Is(err, gridset.ErrNotFound) {
			err = fmt.Errorf("%w: no grid manifest in the store, run split first", gridset.ErrConfiguration)
		}
		return
	}
	slicer, err := gridset.NewSlicer(cfg.MinPixelPercent)
	if err != nil {
		return
	}
	p := gridset.NewPipeline(grid, store, slicer, cfg.Workers)
	if err = p.CheckManifest(ctx); err != nil {
		return
	}
	log.Info("gridset:run "+cmd.Name(), zap.String("config", cfg.Name), zap.String("store", store.Type()), zap.Int("cells", grid.Len()))
	return fn(ctx, p)
}

func toolbox() *gdalio.GdalToolbox {
	return gdalio.NewGdalToolbox(gdalio.WithNoData(cfg.NoData), gdalio.WithCompression(cfg.Compress))
}

func split(ctx context.Context, p *gridset.Pipeline) (err error) {
	g, ref := toolbox(), labelRef
	if err = p.SplitLabel(ctx, label); err != nil {
		return
	}
	if cfg.ParcelPath != "" {
		parcels, pRef, e := g.ReadLabel(cfg.ParcelPath)
		if e != nil {
			return e
		}
		if err = g.CheckAligned(ref, pRef, 1); err != nil {
			return
		}
		if err = p.SplitParcels(ctx, parcels); err != nil {
			return
		}
	}
	for _, r := range cfg.Rasters {
		layer, rRef, e := g.ReadRasterList(r.Paths)
		if e != nil {
			return e
		}
		if err = g.CheckAligned(ref, rRef, r.Scale); err != nil {
			return
		}
		if err = p.SplitRaster(ctx, r.Name, layer, r.Scale); err != nil {
			return
		}
	}
	return
}

func fuse(ctx context.Context, p *gridset.Pipeline) error {
	if len(cfg.Rasters) == 0 {
		log.Info("gridset:no raster sources, skip fusing")
		return nil
	}
	_, err := p.FuseAll(ctx, cfg.RasterNames())
	return err
}

func slice(ctx context.Context, p *gridset.Pipeline) (err error) {
	raster := ""
	if len(cfg.Rasters) > 0 {
		raster = gridset.FUSED_LAYER
	}
	if _, _, err = p.SliceAll(ctx, raster); err != nil {
		return
	}
	if cfg.ParcelPath != "" {
		_, err = p.SliceParcels(ctx)
	}
	return
}

func assemble(ctx context.Context, p *gridset.Pipeline) (err error) {
	base := basePath
	if base == "" {
		base = cfg.ParcelPath
	}
	if base == "" {
		base = cfg.LabelPath
	}
	g := toolbox()
	layer, ref, err := g.ReadLabel(base)
	if err != nil {
		return
	}
	if layer.Extent() != p.Grid.Extent {
		return fmt.Errorf("%w: base raster %dx%d does not match grid extent %dx%d", gridset.ErrConfiguration,
			layer.Rows, layer.Cols, p.Grid.Extent.Rows, p.Grid.Extent.Cols)
	}
	asm, err := gridset.NewAssembler(layer)
	if err != nil {
		return
	}
	if _, err = p.AssembleAll(ctx, asm); err != nil {
		return
	}
	return asm.Finalize(ctx, g.ResultWriter(ref), cfg.ResultPath)
}
