package gridset

import "fmt"

// 按调用方给定的顺序叠加同一格网的多源切片。低分辨率切片按整数倍最近邻复制放大到targetSize，
// 输出波段数为各源波段数之和
func Fuse(patches []*RasterPatch, targetSize int) (fused *RasterPatch, err error) {
	if len(patches) == 0 {
		err = fmt.Errorf("%w: no patches to fuse", ErrConfiguration)
		return
	}
	if targetSize <= 0 {
		err = fmt.Errorf("%w: target size %d", ErrConfiguration, targetSize)
		return
	}
	bands := 0
	for i, p := range patches {
		if p == nil {
			err = fmt.Errorf("%w: source %d is empty", ErrConfiguration, i)
			return
		}
		if err = p.check(); err != nil {
			return
		}
		if p.Rows != p.Cols {
			err = fmt.Errorf("%w: source %d is not square (%dx%d)", ErrConfiguration, i, p.Rows, p.Cols)
			return
		}
		if p.Rows > targetSize || targetSize%p.Rows != 0 {
			err = fmt.Errorf("%w: source %d size %d does not divide target size %d", ErrConfiguration, i, p.Rows, targetSize)
			return
		}
		if p.Bands != patches[0].Bands {
			err = fmt.Errorf("%w: source %d has %d bands, source 0 has %d", ErrConfiguration, i, p.Bands, patches[0].Bands)
			return
		}
		bands += p.Bands
	}
	fused = NewRasterPatch(bands, targetSize, targetSize)
	offset := 0
	for _, p := range patches {
		up := p
		if p.Rows != targetSize {
			up = Upsample(p, targetSize/p.Rows)
		}
		offset += copy(fused.Data[offset:], up.Data)
	}
	return
}

// 最近邻整数倍放大：每个像元复制为factor*factor的块
func Upsample(p *RasterPatch, factor int) *RasterPatch {
	if factor <= 1 {
		return p.Clone()
	}
	out := NewRasterPatch(p.Bands, p.Rows*factor, p.Cols*factor)
	for b := 0; b < p.Bands; b++ {
		for r := 0; r < out.Rows; r++ {
			src := (b*p.Rows + r/factor) * p.Cols
			dst := (b*out.Rows + r) * out.Cols
			for c := 0; c < out.Cols; c++ {
				out.Data[dst+c] = p.Data[src+c/factor]
			}
		}
	}
	return out
}

// 叠加同范围的完整图层
func StackLayers(layers ...*RasterLayer) (stacked *RasterLayer, err error) {
	if len(layers) == 0 {
		err = fmt.Errorf("%w: no layers to stack", ErrConfiguration)
		return
	}
	bands := 0
	for i, l := range layers {
		if err = l.check(); err != nil {
			return
		}
		if l.Extent() != layers[0].Extent() {
			err = fmt.Errorf("%w: layer %d extent %dx%d, layer 0 extent %dx%d",
				ErrConfiguration, i, l.Rows, l.Cols, layers[0].Rows, layers[0].Cols)
			return
		}
		bands += l.Bands
	}
	stacked = NewRasterLayer(bands, layers[0].Rows, layers[0].Cols)
	offset := 0
	for _, l := range layers {
		offset += copy(stacked.Data[offset:], l.Data)
	}
	return
}
