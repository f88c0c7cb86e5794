package gridset

import (
	"context"
	"fmt"
	"sync"

	"github.com/wgdzlh/gridset/log"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"go.uber.org/zap"
)

// 结果栅格的写出方（带原始地理参考）
type ResultWriter interface {
	WriteLabel(ctx context.Context, path string, layer *LabelLayer) error
}

// 已登记的结果单元，以像元坐标下的矩形登记到rtree
type appliedCell struct {
	geom.Polygon
	cell GridCell
}

// 将逐格网预测结果回写到全幅标签栅格。不同单元的Apply可并发执行，同一单元的多次Apply须串行；
// 全部Apply完成后调用一次Finalize写出
type Assembler struct {
	layer *LabelLayer

	rw        sync.RWMutex // Apply持读锁，Finalize持写锁
	finalized bool

	regLock sync.Mutex
	tree    *rtree.Rtree
	applied map[GridCell]struct{}

	logTag string
}

// base会被原地修改
func NewAssembler(base *LabelLayer) (*Assembler, error) {
	if err := base.check(); err != nil {
		return nil, err
	}
	return &Assembler{
		layer:   base,
		tree:    rtree.NewTree(25, 50),
		applied: map[GridCell]struct{}{},
		logTag:  "Assembler:",
	}, nil
}

func (a *Assembler) Layer() *LabelLayer {
	return a.layer
}

// 已登记的单元数
func (a *Assembler) Cells() int {
	a.regLock.Lock()
	defer a.regLock.Unlock()
	return len(a.applied)
}

// 登记单元；与已登记的其他单元有公共像元时报错，同一单元可重复登记
func (a *Assembler) register(cell GridCell) error {
	a.regLock.Lock()
	defer a.regLock.Unlock()
	if _, ok := a.applied[cell]; ok {
		return nil
	}
	b := &geom.Bounds{
		Min: geom.Point{X: float64(cell.ColStart), Y: float64(cell.RowStart)},
		Max: geom.Point{X: float64(cell.ColEnd), Y: float64(cell.RowEnd)},
	}
	// rtree的相交判断包含边界相接的情况，需再按左闭右开区间过滤
	for _, o := range a.tree.SearchIntersect(b) {
		if other := o.(appliedCell).cell; other.Overlaps(cell) {
			return fmt.Errorf("%w: %s and %s", ErrOverlap, cell, other)
		}
	}
	a.tree.Insert(appliedCell{Polygon: b.Polygons()[0], cell: cell})
	a.applied[cell] = struct{}{}
	return nil
}

// 在单元范围内（裁剪到栅格范围）把值为label且预测为class的像元改为class；pred为nil时替换该单元内全部label像元。
// 返回被修改的像元数
func (a *Assembler) Apply(cell GridCell, label, class int32, pred *LabelPatch) (changed int, err error) {
	a.rw.RLock()
	defer a.rw.RUnlock()
	if a.finalized {
		err = ErrFinalized
		return
	}
	if cell.Rows() <= 0 || cell.Cols() <= 0 || cell.RowStart < 0 || cell.ColStart < 0 {
		err = fmt.Errorf("%w: cell %s", ErrShape, cell)
		return
	}
	if pred != nil && (pred.Rows != cell.Rows() || pred.Cols != cell.Cols() || len(pred.Data) != pred.Rows*pred.Cols) {
		err = fmt.Errorf("%w: prediction %dx%d for cell %s", ErrShape, pred.Rows, pred.Cols, cell)
		return
	}
	if err = a.register(cell); err != nil {
		log.Error(a.logTag+"overlapping result cell", zap.Error(err))
		return
	}
	rowEnd := min(cell.RowEnd, a.layer.Rows)
	colEnd := min(cell.ColEnd, a.layer.Cols)
	for r := cell.RowStart; r < rowEnd; r++ {
		row := a.layer.Data[r*a.layer.Cols : (r+1)*a.layer.Cols]
		for c := cell.ColStart; c < colEnd; c++ {
			if pred != nil && pred.At(r-cell.RowStart, c-cell.ColStart) != class {
				continue
			}
			if row[c] == label {
				row[c] = class
				changed++
			}
		}
	}
	return
}

// 写出合成后的结果栅格，只能成功执行一次；写出失败时可重试
func (a *Assembler) Finalize(ctx context.Context, w ResultWriter, path string) (err error) {
	a.rw.Lock()
	defer a.rw.Unlock()
	if a.finalized {
		return ErrFinalized
	}
	if err = ctx.Err(); err != nil {
		return
	}
	if err = w.WriteLabel(ctx, path, a.layer); err != nil {
		log.Error(a.logTag+"write result failed", zap.String("path", path), zap.Error(err))
		return
	}
	a.finalized = true
	log.Info(a.logTag+"result finalized", zap.String("path", path), zap.Int("cells", a.Cells()))
	return
}
