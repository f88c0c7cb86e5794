package gridset

import (
	"fmt"
	"sort"

	"github.com/wgdzlh/gridset/log"

	"go.uber.org/zap"
)

// 类别像元统计
type ClassCount struct {
	Class   int32
	Count   int
	Percent float64
}

// 统计切片中各像元值的个数与占比，按值升序
func Occupancy(label *LabelPatch) []ClassCount {
	counts := map[int32]int{}
	for _, v := range label.Data {
		counts[v]++
	}
	area := float64(label.Area())
	ret := make([]ClassCount, 0, len(counts))
	for v, n := range counts {
		ret = append(ret, ClassCount{Class: v, Count: n, Percent: float64(n) / area})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Class < ret[j].Class })
	return ret
}

// 按类别分层切片：每个占比超过阈值的非背景类别生成一个样本
type Slicer struct {
	MinPixelPercent float64
	logTag          string
}

func NewSlicer(minPixelPercent float64) (*Slicer, error) {
	if !(minPixelPercent > 0 && minPixelPercent < 1) {
		return nil, fmt.Errorf("%w: min pixel percent %v not in (0,1)", ErrConfiguration, minPixelPercent)
	}
	return &Slicer{
		MinPixelPercent: minPixelPercent,
		logTag:          "Slicer:",
	}, nil
}

// 负值视为无效值，与背景0一样不参与分层
func (s *Slicer) Qualifies(c ClassCount) bool {
	return c.Class > 0 && c.Percent > s.MinPixelPercent
}

func (s *Slicer) classes(label *LabelPatch) (ret []ClassCount) {
	for _, c := range Occupancy(label) {
		if s.Qualifies(c) {
			ret = append(ret, c)
		}
	}
	return
}

// 生成单类别样本；raster为nil时只输出掩膜后的标签切片
func (s *Slicer) Slice(cell GridCell, label *LabelPatch, raster *RasterPatch) (samples []TypeSample, err error) {
	if err = label.check(); err != nil {
		return
	}
	if raster != nil {
		if err = raster.check(); err != nil {
			return
		}
		if raster.Rows != label.Rows || raster.Cols != label.Cols {
			err = fmt.Errorf("%w: raster %dx%d vs label %dx%d at %s", ErrShape, raster.Rows, raster.Cols, label.Rows, label.Cols, cell)
			return
		}
	}
	for _, c := range s.classes(label) {
		sample := TypeSample{Class: c.Class, Cell: cell, Pixels: c.Count}
		if raster != nil {
			sample.Raster = maskRaster(raster, label, c.Class)
		} else {
			sample.Label = maskLabel(label, c.Class)
		}
		samples = append(samples, sample)
	}
	log.Debug(s.logTag+"sliced cell", zap.Stringer("cell", cell), zap.Int("samples", len(samples)))
	return
}

// 按地块编号分层，每个地块生成一个只保留该编号像元的切片
func (s *Slicer) SliceParcels(cell GridCell, parcels *LabelPatch) (samples []ParcelSample, err error) {
	if err = parcels.check(); err != nil {
		return
	}
	for _, c := range s.classes(parcels) {
		samples = append(samples, ParcelSample{
			Parcel: c.Class,
			Cell:   cell,
			Pixels: c.Count,
			Label:  maskLabel(parcels, c.Class),
		})
	}
	log.Debug(s.logTag+"sliced parcels", zap.Stringer("cell", cell), zap.Int("parcels", len(samples)))
	return
}

func maskRaster(raster *RasterPatch, label *LabelPatch, class int32) *RasterPatch {
	out := NewRasterPatch(raster.Bands, raster.Rows, raster.Cols)
	area := raster.Rows * raster.Cols
	for p, v := range label.Data {
		if v != class {
			continue
		}
		for b := 0; b < raster.Bands; b++ {
			out.Data[b*area+p] = raster.Data[b*area+p]
		}
	}
	return out
}

func maskLabel(label *LabelPatch, class int32) *LabelPatch {
	out := NewLabelPatch(label.Rows, label.Cols)
	for p, v := range label.Data {
		if v == class {
			out.Data[p] = v
		}
	}
	return out
}
