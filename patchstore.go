package gridset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/wgdzlh/gridset/log"
	"github.com/wgdzlh/gridset/utils"

	"go.uber.org/zap"
)

// 按格网编码存取某一图层的切片。键为{图层}/[{子目录}/]{名称}.patch，
// 子目录只影响存储布局，不影响逻辑编码
type PatchStore struct {
	store  Store
	layer  string
	grid   *Grid
	logTag string
}

func NewPatchStore(s Store, layer string, grid *Grid) *PatchStore {
	return &PatchStore{
		store:  s,
		layer:  layer,
		grid:   grid,
		logTag: "PatchStore[" + layer + "]:",
	}
}

func (p *PatchStore) Layer() string {
	return p.layer
}

func (p *PatchStore) Grid() *Grid {
	return p.grid
}

func (p *PatchStore) key(cell GridCell, name string) (string, error) {
	i, ok := p.grid.Index(cell)
	if !ok {
		return "", fmt.Errorf("%w: cell %s is not part of the grid", ErrNotFound, cell)
	}
	dir := p.layer
	if bucket, sharded := p.grid.Bucket(i); sharded {
		dir += "/" + strings.TrimSuffix(BucketPrefix(bucket), "/")
	}
	return path.Join(dir, name+PATCH_EXT), nil
}

func (p *PatchStore) put(ctx context.Context, cell GridCell, name string, data []byte) error {
	key, err := p.key(cell, name)
	if err != nil {
		return err
	}
	if err = p.store.Put(ctx, key, bytes.NewReader(data)); err != nil {
		log.Error(p.logTag+"put patch failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

func (p *PatchStore) get(ctx context.Context, cell GridCell, name string) (data []byte, err error) {
	key, err := p.key(cell, name)
	if err != nil {
		return
	}
	rc, err := p.store.Get(ctx, key)
	if err != nil {
		return
	}
	defer rc.Close()
	data, err = io.ReadAll(rc)
	return
}

func (p *PatchStore) PutRaster(ctx context.Context, cell GridCell, patch *RasterPatch) error {
	data, err := EncodeRasterPatch(patch)
	if err != nil {
		return err
	}
	return p.put(ctx, cell, string(cell.Code()), data)
}

func (p *PatchStore) LoadRaster(ctx context.Context, cell GridCell) (*RasterPatch, error) {
	data, err := p.get(ctx, cell, string(cell.Code()))
	if err != nil {
		return nil, err
	}
	return DecodeRasterPatch(data)
}

func (p *PatchStore) PutLabel(ctx context.Context, cell GridCell, patch *LabelPatch) error {
	data, err := EncodeLabelPatch(patch)
	if err != nil {
		return err
	}
	return p.put(ctx, cell, string(cell.Code()), data)
}

func (p *PatchStore) LoadLabel(ctx context.Context, cell GridCell) (*LabelPatch, error) {
	data, err := p.get(ctx, cell, string(cell.Code()))
	if err != nil {
		return nil, err
	}
	return DecodeLabelPatch(data)
}

// 写入单类别样本，栅格样本与纯标签样本共用同一编码
func (p *PatchStore) PutSample(ctx context.Context, s TypeSample) (err error) {
	var data []byte
	switch {
	case s.Raster != nil:
		data, err = EncodeRasterPatch(s.Raster)
	case s.Label != nil:
		data, err = EncodeLabelPatch(s.Label)
	default:
		err = fmt.Errorf("%w: empty sample %s", ErrShape, s.Key())
	}
	if err != nil {
		return
	}
	return p.put(ctx, s.Cell, s.Key(), data)
}

func (p *PatchStore) PutParcel(ctx context.Context, s ParcelSample) error {
	data, err := EncodeLabelPatch(s.Label)
	if err != nil {
		return err
	}
	return p.put(ctx, s.Cell, s.Key(), data)
}

func (p *PatchStore) LoadRasterSample(ctx context.Context, class int32, cell GridCell) (*RasterPatch, error) {
	data, err := p.get(ctx, cell, SampleKey(class, cell))
	if err != nil {
		return nil, err
	}
	return DecodeRasterPatch(data)
}

func (p *PatchStore) LoadLabelSample(ctx context.Context, class int32, cell GridCell) (*LabelPatch, error) {
	data, err := p.get(ctx, cell, SampleKey(class, cell))
	if err != nil {
		return nil, err
	}
	return DecodeLabelPatch(data)
}

// 预测结果引用
type ResultRef struct {
	Class int32
	Label int32
	Cell  GridCell
	Key   string
}

// 写入预测结果；pred为nil时只写入空掩膜占位，表示整格替换
func (p *PatchStore) PutResult(ctx context.Context, class, label int32, cell GridCell, pred *LabelPatch) error {
	if pred != nil && (pred.Rows != cell.Rows() || pred.Cols != cell.Cols()) {
		return fmt.Errorf("%w: prediction %dx%d for cell %s", ErrShape, pred.Rows, pred.Cols, cell)
	}
	data, err := EncodeMask(pred)
	if err != nil {
		return err
	}
	return p.put(ctx, cell, ResultKey(class, label, cell), data)
}

// 读取预测掩膜；空掩膜返回nil
func (p *PatchStore) LoadResult(ctx context.Context, ref ResultRef) (*LabelPatch, error) {
	data, err := p.get(ctx, ref.Cell, ResultKey(ref.Class, ref.Label, ref.Cell))
	if err != nil {
		return nil, err
	}
	return DecodeMask(data)
}

// 列出本图层下的全部预测结果，忽略不属于当前格网或命名不规范的键
func (p *PatchStore) ListResults(ctx context.Context) (refs []ResultRef, err error) {
	keys, err := p.store.List(ctx, p.layer+"/")
	if err != nil {
		return
	}
	for _, key := range keys {
		name, ok := utils.TrimExt(path.Base(key), PATCH_EXT)
		if !ok {
			continue
		}
		class, label, cell, e := ParseResultKey(name)
		if e != nil {
			log.Warn(p.logTag+"skip malformed result key", zap.String("key", key))
			continue
		}
		if _, ok = p.grid.Index(cell); !ok {
			log.Warn(p.logTag+"skip result outside grid", zap.String("key", key))
			continue
		}
		refs = append(refs, ResultRef{Class: class, Label: label, Cell: cell, Key: key})
	}
	log.Info(p.logTag+"listed results", zap.Int("keys", len(keys)), zap.Int("results", len(refs)))
	return
}

// 按格网拆分多波段图层
func (p *PatchStore) SplitRaster(ctx context.Context, layer *RasterLayer, workers int) error {
	return p.SplitScaled(ctx, layer, 1, workers)
}

// 拆分低分辨率图层：目标格网中的单元按scale换算后截取，仍以目标格网编码存储
func (p *PatchStore) SplitScaled(ctx context.Context, layer *RasterLayer, scale, workers int) error {
	if err := layer.check(); err != nil {
		return err
	}
	if scale < 1 || p.grid.PatchSize%scale != 0 {
		return fmt.Errorf("%w: scale %d does not divide patch size %d", ErrConfiguration, scale, p.grid.PatchSize)
	}
	if !scaledDim(layer.Rows, p.grid.Extent.Rows, scale) || !scaledDim(layer.Cols, p.grid.Extent.Cols, scale) {
		return fmt.Errorf("%w: raster %dx%d at scale %d does not match grid extent %dx%d",
			ErrConfiguration, layer.Rows, layer.Cols, scale, p.grid.Extent.Rows, p.grid.Extent.Cols)
	}
	log.Info(p.logTag+"start split raster", zap.Int("bands", layer.Bands), zap.Int("scale", scale), zap.Int("cells", p.grid.Len()))
	err := forEachCell(ctx, p.grid, workers, func(ctx context.Context, _ int, cell GridCell) error {
		return p.PutRaster(ctx, cell, layer.ExtractScaled(cell, scale))
	})
	if err == nil {
		log.Info(p.logTag+"split raster done", zap.Int("cells", p.grid.Len()))
	}
	return err
}

func (p *PatchStore) SplitLabel(ctx context.Context, layer *LabelLayer, workers int) error {
	if err := layer.check(); err != nil {
		return err
	}
	if layer.Extent() != p.grid.Extent {
		return fmt.Errorf("%w: label %dx%d does not match grid extent %dx%d",
			ErrConfiguration, layer.Rows, layer.Cols, p.grid.Extent.Rows, p.grid.Extent.Cols)
	}
	log.Info(p.logTag+"start split label", zap.Int("cells", p.grid.Len()))
	err := forEachCell(ctx, p.grid, workers, func(ctx context.Context, _ int, cell GridCell) error {
		return p.PutLabel(ctx, cell, layer.Extract(cell))
	})
	if err == nil {
		log.Info(p.logTag+"split label done", zap.Int("cells", p.grid.Len()))
	}
	return err
}

// 低分辨率图层边长可为目标边长按scale向下或向上取整
func scaledDim(n, dim, scale int) bool {
	return n == dim/scale || n == (dim+scale-1)/scale
}
