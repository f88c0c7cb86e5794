package gdalio

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wgdzlh/gridset/log"

	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

// 栅格的地理参考：仿射变换参数与坐标系WKT
type Georef struct {
	GeoTransform [6]float64
	Projection   string
}

// 像元尺寸（x方向、y方向，取绝对值）
func (r Georef) PixelSize() (x, y float64) {
	return math.Abs(r.GeoTransform[1]), math.Abs(r.GeoTransform[5])
}

func (r Georef) Origin() (x, y float64) {
	return r.GeoTransform[0], r.GeoTransform[3]
}

// 基于GDAL的栅格读写工具。无效值、压缩方式在构造时给定，不依赖全局环境
type GdalToolbox struct {
	noData   float64
	compress string
	logTag   string
}

type Option func(*GdalToolbox)

// 写出标签栅格时使用的无效值（默认0）
func WithNoData(v float64) Option {
	return func(g *GdalToolbox) {
		g.noData = v
	}
}

// 写出GTiff的压缩方式，空串表示不压缩
func WithCompression(c string) Option {
	return func(g *GdalToolbox) {
		g.compress = c
	}
}

func NewGdalToolbox(opts ...Option) *GdalToolbox {
	g := &GdalToolbox{
		compress: DEFAULT_COMPRESS,
		logTag:   "GdalToolbox:",
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *GdalToolbox) createOptions() (opts []string) {
	if g.compress != "" {
		opts = append(opts, "COMPRESS="+g.compress)
	}
	opts = append(opts, "BIGTIFF=IF_SAFER")
	return
}

// 由坐标系WKT获取srid
func (g *GdalToolbox) GetSrid(ref Georef) (srid int, err error) {
	if ref.Projection == "" {
		err = ErrVoidSrid
		return
	}
	sp := gdal.CreateSpatialReference(ref.Projection)
	defer sp.Destroy()
	rawId, ok := sp.AttrValue("AUTHORITY", 1)
	if !ok {
		if strings.Contains(ref.Projection, "CGCS_2000") || strings.Contains(ref.Projection, "CGCS2000") {
			srid = CGCS2000_SRID
			return
		}
		err = ErrVoidSrid
		return
	}
	srid, err = strconv.Atoi(rawId)
	log.Debug(g.logTag+"got srid from projection", zap.String("id", rawId))
	return
}

// 检查低分辨率栅格与参考栅格是否对齐：坐标系相同、左上角重合、像元尺寸为scale倍
func (g *GdalToolbox) CheckAligned(ref, other Georef, scale int) (err error) {
	if ref.Projection != "" && other.Projection != "" {
		srid, e1 := g.GetSrid(ref)
		oSrid, e2 := g.GetSrid(other)
		if e1 == nil && e2 == nil && srid != oSrid {
			err = fmt.Errorf("%w: srid %d vs %d", ErrNotAligned, srid, oSrid)
			return
		}
	}
	rx, ry := ref.PixelSize()
	ox, oy := other.PixelSize()
	if !near(rx*float64(scale), ox) || !near(ry*float64(scale), oy) {
		err = fmt.Errorf("%w: pixel size %gx%g at scale %d vs %gx%g", ErrNotAligned, rx, ry, scale, ox, oy)
		return
	}
	x0, y0 := ref.Origin()
	x1, y1 := other.Origin()
	if math.Abs(x0-x1) > rx/2 || math.Abs(y0-y1) > ry/2 {
		err = fmt.Errorf("%w: origin (%g,%g) vs (%g,%g)", ErrNotAligned, x0, y0, x1, y1)
	}
	return
}

func near(a, b float64) bool {
	return math.Abs(a-b) <= ALIGN_TOLERANCE*math.Max(math.Abs(a), math.Abs(b))
}
