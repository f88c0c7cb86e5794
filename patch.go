package gridset

import "fmt"

func NewRasterLayer(bands, rows, cols int) *RasterLayer {
	return &RasterLayer{
		Bands: bands,
		Rows:  rows,
		Cols:  cols,
		Data:  make([]float32, bands*rows*cols),
	}
}

func (l *RasterLayer) Extent() Extent {
	return Extent{Rows: l.Rows, Cols: l.Cols}
}

func (l *RasterLayer) At(b, r, c int) float32 {
	return l.Data[(b*l.Rows+r)*l.Cols+c]
}

func (l *RasterLayer) Set(b, r, c int, v float32) {
	l.Data[(b*l.Rows+r)*l.Cols+c] = v
}

func (l *RasterLayer) check() error {
	if l.Bands <= 0 || l.Rows <= 0 || l.Cols <= 0 || len(l.Data) != l.Bands*l.Rows*l.Cols {
		return fmt.Errorf("%w: raster layer %dx%dx%d with %d values", ErrShape, l.Bands, l.Rows, l.Cols, len(l.Data))
	}
	return nil
}

// 按格网截取切片，超出范围的填充区域为0
func (l *RasterLayer) Extract(cell GridCell) *RasterPatch {
	return l.ExtractScaled(cell, 1)
}

// 截取低分辨率图层中与目标格网对应的切片，scale为目标像元与本图层像元的边长比
func (l *RasterLayer) ExtractScaled(cell GridCell, scale int) *RasterPatch {
	src := cell.Scale(scale)
	p := NewRasterPatch(l.Bands, src.Rows(), src.Cols())
	rowEnd := min(src.RowEnd, l.Rows)
	colEnd := min(src.ColEnd, l.Cols)
	if rowEnd <= src.RowStart || colEnd <= src.ColStart {
		return p
	}
	n := colEnd - src.ColStart
	for b := 0; b < l.Bands; b++ {
		for r := src.RowStart; r < rowEnd; r++ {
			from := (b*l.Rows+r)*l.Cols + src.ColStart
			to := (b*p.Rows + r - src.RowStart) * p.Cols
			copy(p.Data[to:to+n], l.Data[from:from+n])
		}
	}
	return p
}

func NewLabelLayer(rows, cols int) *LabelLayer {
	return &LabelLayer{
		Rows: rows,
		Cols: cols,
		Data: make([]int32, rows*cols),
	}
}

func (l *LabelLayer) Extent() Extent {
	return Extent{Rows: l.Rows, Cols: l.Cols}
}

func (l *LabelLayer) At(r, c int) int32 {
	return l.Data[r*l.Cols+c]
}

func (l *LabelLayer) Set(r, c int, v int32) {
	l.Data[r*l.Cols+c] = v
}

func (l *LabelLayer) check() error {
	if l.Rows <= 0 || l.Cols <= 0 || len(l.Data) != l.Rows*l.Cols {
		return fmt.Errorf("%w: label layer %dx%d with %d values", ErrShape, l.Rows, l.Cols, len(l.Data))
	}
	return nil
}

// 按格网截取标签切片，填充区域为0（背景）
func (l *LabelLayer) Extract(cell GridCell) *LabelPatch {
	p := NewLabelPatch(cell.Rows(), cell.Cols())
	rowEnd := min(cell.RowEnd, l.Rows)
	colEnd := min(cell.ColEnd, l.Cols)
	if rowEnd <= cell.RowStart || colEnd <= cell.ColStart {
		return p
	}
	n := colEnd - cell.ColStart
	for r := cell.RowStart; r < rowEnd; r++ {
		from := r*l.Cols + cell.ColStart
		to := (r - cell.RowStart) * p.Cols
		copy(p.Data[to:to+n], l.Data[from:from+n])
	}
	return p
}

func NewRasterPatch(bands, rows, cols int) *RasterPatch {
	return &RasterPatch{
		Bands: bands,
		Rows:  rows,
		Cols:  cols,
		Data:  make([]float32, bands*rows*cols),
	}
}

func (p *RasterPatch) At(b, r, c int) float32 {
	return p.Data[(b*p.Rows+r)*p.Cols+c]
}

func (p *RasterPatch) Area() int {
	return p.Rows * p.Cols
}

func (p *RasterPatch) Clone() *RasterPatch {
	c := *p
	c.Data = append([]float32(nil), p.Data...)
	return &c
}

func (p *RasterPatch) check() error {
	if p.Bands <= 0 || p.Rows <= 0 || p.Cols <= 0 || len(p.Data) != p.Bands*p.Rows*p.Cols {
		return fmt.Errorf("%w: raster patch %dx%dx%d with %d values", ErrShape, p.Bands, p.Rows, p.Cols, len(p.Data))
	}
	return nil
}

func NewLabelPatch(rows, cols int) *LabelPatch {
	return &LabelPatch{
		Rows: rows,
		Cols: cols,
		Data: make([]int32, rows*cols),
	}
}

func (p *LabelPatch) At(r, c int) int32 {
	return p.Data[r*p.Cols+c]
}

func (p *LabelPatch) Area() int {
	return p.Rows * p.Cols
}

func (p *LabelPatch) Clone() *LabelPatch {
	c := *p
	c.Data = append([]int32(nil), p.Data...)
	return &c
}

func (p *LabelPatch) check() error {
	if p.Rows <= 0 || p.Cols <= 0 || len(p.Data) != p.Rows*p.Cols {
		return fmt.Errorf("%w: label patch %dx%d with %d values", ErrShape, p.Rows, p.Cols, len(p.Data))
	}
	return nil
}
