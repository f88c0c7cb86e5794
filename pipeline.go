package gridset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/wgdzlh/gridset/log"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 各阶段的处理统计；缺失的切片逐个记录，不静默跳过
type Report struct {
	Stage   string
	Cells   int
	Done    atomic.Int64 // 已处理的单元数
	Written atomic.Int64 // 写出的切片/样本数
	Changed atomic.Int64 // 结果回写时修改的像元数

	lk      sync.Mutex
	missing []string
}

func newReport(stage string, cells int) *Report {
	return &Report{Stage: stage, Cells: cells}
}

func (r *Report) miss(layer string, cell GridCell) {
	r.lk.Lock()
	defer r.lk.Unlock()
	r.missing = append(r.missing, layer+"/"+string(cell.Code()))
}

// 缺失的切片，形如{图层}/{格网编码}，已排序
func (r *Report) Missing() []string {
	r.lk.Lock()
	defer r.lk.Unlock()
	ret := append([]string(nil), r.missing...)
	sort.Strings(ret)
	return ret
}

func (r *Report) log(tag string) {
	missing := r.Missing()
	fields := []zap.Field{
		zap.String("stage", r.Stage), zap.Int("cells", r.Cells), zap.Int64("done", r.Done.Load()),
		zap.Int64("written", r.Written.Load()), zap.Int("missing", len(missing)),
	}
	if r.Changed.Load() > 0 {
		fields = append(fields, zap.Int64("changed", r.Changed.Load()))
	}
	if len(missing) > 0 {
		log.Warn(tag+"stage finished with missing patches", append(fields, zap.Strings("keys", missing))...)
		return
	}
	log.Info(tag+"stage finished", fields...)
}

// 在有限的并发数下执行n个任务，任一任务出错即取消其余任务
func runTasks(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	if workers <= 0 {
		workers = DEFAULT_WORKERS
	}
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		eg.Go(func() error {
			return fn(gctx, i)
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	// Wait总会取消gctx，这里只检查调用方的ctx
	return ctx.Err()
}

func forEachCell(ctx context.Context, grid *Grid, workers int, fn func(ctx context.Context, i int, cell GridCell) error) error {
	return runTasks(ctx, workers, grid.Len(), func(ctx context.Context, i int) error {
		return fn(ctx, i, grid.Cells[i])
	})
}

// 按阶段组织的切片处理流程，各阶段之间只通过存储中的格网编码关联
type Pipeline struct {
	Grid    *Grid
	Store   Store
	Slicer  *Slicer
	Workers int
	logTag  string
}

func NewPipeline(grid *Grid, store Store, slicer *Slicer, workers int) *Pipeline {
	if workers <= 0 {
		workers = DEFAULT_WORKERS
	}
	return &Pipeline{
		Grid:    grid,
		Store:   store,
		Slicer:  slicer,
		Workers: workers,
		logTag:  "Pipeline:",
	}
}

func (p *Pipeline) Layer(name string) *PatchStore {
	return NewPatchStore(p.Store, name, p.Grid)
}

// 写出格网描述，供其他阶段校验是否使用同一格网
func (p *Pipeline) SaveManifest(ctx context.Context) error {
	var buf bytes.Buffer
	if err := p.Grid.Encode(&buf); err != nil {
		return err
	}
	return p.Store.Put(ctx, GRID_MANIFEST, &buf)
}

func LoadManifest(ctx context.Context, s Store) (g *Grid, err error) {
	rc, err := s.Get(ctx, GRID_MANIFEST)
	if err != nil {
		return
	}
	defer rc.Close()
	return DecodeGrid(rc)
}

// 校验存储中的格网描述与当前格网一致；不存在时写入
func (p *Pipeline) CheckManifest(ctx context.Context) error {
	g, err := LoadManifest(ctx, p.Store)
	if errors.Is(err, ErrNotFound) {
		return p.SaveManifest(ctx)
	}
	if err != nil {
		return err
	}
	if !g.Equal(p.Grid) {
		return fmt.Errorf("%w: stored grid %dx%d/%d differs from %dx%d/%d", ErrConfiguration,
			g.Extent.Rows, g.Extent.Cols, g.PatchSize, p.Grid.Extent.Rows, p.Grid.Extent.Cols, p.Grid.PatchSize)
	}
	return nil
}

func (p *Pipeline) SplitLabel(ctx context.Context, layer *LabelLayer) error {
	return p.Layer(LABEL_LAYER).SplitLabel(ctx, layer, p.Workers)
}

// 拆分地块编号栅格，供SliceParcels使用
func (p *Pipeline) SplitParcels(ctx context.Context, layer *LabelLayer) error {
	return p.Layer(PARCEL_GRID).SplitLabel(ctx, layer, p.Workers)
}

// 拆分名为name的栅格源；scale为该源像元边长与标签像元边长之比
func (p *Pipeline) SplitRaster(ctx context.Context, name string, layer *RasterLayer, scale int) error {
	if name == "" || ReservedLayer(name) {
		return fmt.Errorf("%w: raster source name %q", ErrConfiguration, name)
	}
	return p.Layer(name).SplitScaled(ctx, layer, scale, p.Workers)
}

// 将各栅格源的同一格网切片按sources顺序融合后写入FUSED_LAYER
func (p *Pipeline) FuseAll(ctx context.Context, sources []string) (r *Report, err error) {
	if len(sources) == 0 {
		err = fmt.Errorf("%w: no raster sources to fuse", ErrConfiguration)
		return
	}
	stores := make([]*PatchStore, len(sources))
	for i, s := range sources {
		stores[i] = p.Layer(s)
	}
	out := p.Layer(FUSED_LAYER)
	r = newReport("fuse", p.Grid.Len())
	log.Info(p.logTag+"start fusing", zap.Strings("sources", sources), zap.Int("cells", r.Cells))
	err = forEachCell(ctx, p.Grid, p.Workers, func(ctx context.Context, _ int, cell GridCell) error {
		defer r.Done.Add(1)
		patches := make([]*RasterPatch, len(stores))
		for i, s := range stores {
			patch, err := s.LoadRaster(ctx, cell)
			if errors.Is(err, ErrNotFound) {
				r.miss(s.Layer(), cell)
				return nil
			}
			if err != nil {
				return err
			}
			patches[i] = patch
		}
		fused, err := Fuse(patches, p.Grid.PatchSize)
		if err != nil {
			return fmt.Errorf("fuse %s: %w", cell, err)
		}
		if err = out.PutRaster(ctx, cell, fused); err != nil {
			return err
		}
		r.Written.Add(1)
		return nil
	})
	r.log(p.logTag)
	return
}

// 由标签切片与rasterLayer中的同格网切片生成单类别样本；rasterLayer为空时只按标签分层。
// 样本统计写入STATS_FILE
func (p *Pipeline) SliceAll(ctx context.Context, rasterLayer string) (r *Report, stats *DatasetStats, err error) {
	if p.Slicer == nil {
		err = fmt.Errorf("%w: no slicer configured", ErrConfiguration)
		return
	}
	labels := p.Layer(LABEL_LAYER)
	var rasters *PatchStore
	if rasterLayer != "" {
		rasters = p.Layer(rasterLayer)
	}
	out := p.Layer(SAMPLE_LAYER)
	acc := NewStatsAccumulator()
	r = newReport("slice", p.Grid.Len())
	log.Info(p.logTag+"start slicing", zap.String("raster", rasterLayer), zap.Float64("minPixelPercent", p.Slicer.MinPixelPercent))
	err = forEachCell(ctx, p.Grid, p.Workers, func(ctx context.Context, _ int, cell GridCell) error {
		defer r.Done.Add(1)
		label, err := labels.LoadLabel(ctx, cell)
		if errors.Is(err, ErrNotFound) {
			r.miss(LABEL_LAYER, cell)
			return nil
		}
		if err != nil {
			return err
		}
		var raster *RasterPatch
		if rasters != nil {
			raster, err = rasters.LoadRaster(ctx, cell)
			if errors.Is(err, ErrNotFound) {
				r.miss(rasterLayer, cell)
				return nil
			}
			if err != nil {
				return err
			}
		}
		samples, err := p.Slicer.Slice(cell, label, raster)
		if err != nil {
			return err
		}
		for _, s := range samples {
			if err = out.PutSample(ctx, s); err != nil {
				return err
			}
			acc.Add(s, label)
			r.Written.Add(1)
		}
		return nil
	})
	r.log(p.logTag)
	if err != nil {
		return
	}
	stats = acc.Stats()
	var buf bytes.Buffer
	if err = stats.Encode(&buf); err != nil {
		return
	}
	err = p.Store.Put(ctx, STATS_FILE, &buf)
	return
}

// 按地块编号分层PARCEL_GRID中的切片，写入PARCEL_LAYER，键为00_{地块编号}_{格网编码}
func (p *Pipeline) SliceParcels(ctx context.Context) (r *Report, err error) {
	if p.Slicer == nil {
		err = fmt.Errorf("%w: no slicer configured", ErrConfiguration)
		return
	}
	parcels := p.Layer(PARCEL_GRID)
	out := p.Layer(PARCEL_LAYER)
	r = newReport("parcel", p.Grid.Len())
	err = forEachCell(ctx, p.Grid, p.Workers, func(ctx context.Context, _ int, cell GridCell) error {
		defer r.Done.Add(1)
		patch, err := parcels.LoadLabel(ctx, cell)
		if errors.Is(err, ErrNotFound) {
			r.miss(PARCEL_GRID, cell)
			return nil
		}
		if err != nil {
			return err
		}
		samples, err := p.Slicer.SliceParcels(cell, patch)
		if err != nil {
			return err
		}
		for _, s := range samples {
			if err = out.PutParcel(ctx, s); err != nil {
				return err
			}
			r.Written.Add(1)
		}
		return nil
	})
	r.log(p.logTag)
	return
}

// 把RESULT_LAYER中的预测结果回写到asm。同一单元的结果在一个任务内顺序处理
func (p *Pipeline) AssembleAll(ctx context.Context, asm *Assembler) (r *Report, err error) {
	results := p.Layer(RESULT_LAYER)
	refs, err := results.ListResults(ctx)
	if err != nil {
		return
	}
	var cells []GridCell
	groups := map[GridCell][]ResultRef{}
	for _, ref := range refs {
		if _, ok := groups[ref.Cell]; !ok {
			cells = append(cells, ref.Cell)
		}
		groups[ref.Cell] = append(groups[ref.Cell], ref)
	}
	r = newReport("assemble", len(cells))
	log.Info(p.logTag+"start assembling", zap.Int("results", len(refs)), zap.Int("cells", len(cells)))
	err = runTasks(ctx, p.Workers, len(cells), func(ctx context.Context, i int) error {
		defer r.Done.Add(1)
		for _, ref := range groups[cells[i]] {
			pred, err := results.LoadResult(ctx, ref)
			if errors.Is(err, ErrNotFound) {
				r.miss(RESULT_LAYER, ref.Cell)
				continue
			}
			if err != nil {
				return err
			}
			n, err := asm.Apply(ref.Cell, ref.Label, ref.Class, pred)
			if err != nil {
				return err
			}
			r.Written.Add(1)
			r.Changed.Add(int64(n))
		}
		return nil
	})
	r.log(p.logTag)
	return
}
