package gdalio

import (
	"context"
	"math"
	"os"
	"path/filepath"

	"github.com/wgdzlh/gridset"
	"github.com/wgdzlh/gridset/log"
	"github.com/wgdzlh/gridset/utils"

	"github.com/google/uuid"
	"github.com/lukeroth/gdal"
	"go.uber.org/zap"
)

func (g *GdalToolbox) open(tif string) (ds gdal.Dataset, ref Georef, err error) {
	ds, err = gdal.Open(tif, gdal.ReadOnly)
	if err != nil {
		log.Error(g.logTag+"open tif failed", zap.String("tif", tif), zap.Error(err))
		err = ErrInvalidTif
		return
	}
	if ds.RasterCount() == 0 || ds.RasterXSize() == 0 || ds.RasterYSize() == 0 {
		ds.Close()
		err = ErrEmptyTif
		return
	}
	ref = Georef{
		GeoTransform: ds.GeoTransform(),
		Projection:   ds.Projection(),
	}
	return
}

// 读取多波段Tif，按(波段,行,列)排列，无效值转为NaN
func (g *GdalToolbox) ReadRaster(tif string) (layer *gridset.RasterLayer, ref Georef, err error) {
	ds, ref, err := g.open(tif)
	if err != nil {
		return
	}
	defer ds.Close()
	x, y, bc := ds.RasterXSize(), ds.RasterYSize(), ds.RasterCount()
	log.Info(g.logTag+"start read tif", zap.String("tif", tif), zap.Int("bands", bc), zap.Int("width", x), zap.Int("height", y))
	layer = gridset.NewRasterLayer(bc, y, x)
	area := x * y
	nan := float32(math.NaN())
	for i := 0; i < bc; i++ {
		band := ds.RasterBand(i + 1)
		buf := layer.Data[i*area : (i+1)*area]
		if err = band.IO(gdal.GF_Read, 0, 0, x, y, buf, x, y, 0, 0); err != nil {
			log.Error(g.logTag+"read tif band failed", zap.Int("band", i), zap.Error(err))
			err = ErrTifReadFailed
			return
		}
		if nd, ok := band.NoDataValue(); ok {
			ndv := float32(nd)
			for p, v := range buf {
				if v == ndv {
					buf[p] = nan
				}
			}
		}
	}
	return
}

// 读取多个同范围Tif并按顺序叠加波段
func (g *GdalToolbox) ReadRasterList(tifs []string) (layer *gridset.RasterLayer, ref Georef, err error) {
	layers := make([]*gridset.RasterLayer, len(tifs))
	for i, tif := range tifs {
		var r Georef
		if layers[i], r, err = g.ReadRaster(tif); err != nil {
			return
		}
		if i == 0 {
			ref = r
		} else if err = g.CheckAligned(ref, r, 1); err != nil {
			log.Error(g.logTag+"tif not aligned with the first one", zap.String("tif", tif), zap.Error(err))
			return
		}
	}
	layer, err = gridset.StackLayers(layers...)
	return
}

// 读取单波段标签Tif，无效值转为0
func (g *GdalToolbox) ReadLabel(tif string) (layer *gridset.LabelLayer, ref Georef, err error) {
	ds, ref, err := g.open(tif)
	if err != nil {
		return
	}
	defer ds.Close()
	x, y := ds.RasterXSize(), ds.RasterYSize()
	log.Info(g.logTag+"start read label tif", zap.String("tif", tif), zap.Int("width", x), zap.Int("height", y))
	layer = gridset.NewLabelLayer(y, x)
	band := ds.RasterBand(1)
	if err = band.IO(gdal.GF_Read, 0, 0, x, y, layer.Data, x, y, 0, 0); err != nil {
		log.Error(g.logTag+"read label band failed", zap.Error(err))
		err = ErrTifReadFailed
		return
	}
	if nd, ok := band.NoDataValue(); ok && nd == math.Trunc(nd) {
		ndv := int32(nd)
		for p, v := range layer.Data {
			if v == ndv {
				layer.Data[p] = 0
			}
		}
	}
	return
}

// 先写入同目录下的临时文件，完成后重命名为目标文件
func (g *GdalToolbox) writeAtomic(tif string, fn func(tmp string) error) (err error) {
	dir := filepath.Dir(tif)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return
	}
	tmp := filepath.Join(dir, utils.TMP_PREFIX+uuid.NewString()+filepath.Ext(tif))
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	if err = fn(tmp); err != nil {
		return
	}
	err = os.Rename(tmp, tif)
	return
}

func (g *GdalToolbox) create(tif string, x, y, bands int, dt gdal.DataType, ref Georef) (ds gdal.Dataset, err error) {
	driver, err := gdal.GetDriverByName(GTIFF_DRIVER_NAME)
	if err != nil {
		log.Error(g.logTag+"get tif driver failed", zap.Error(err))
		err = ErrGdalDriverCreate
		return
	}
	ds = driver.Create(tif, x, y, bands, dt, g.createOptions())
	if err = ds.SetGeoTransform(ref.GeoTransform); err != nil {
		ds.Close()
		return
	}
	if ref.Projection != "" {
		if err = ds.SetProjection(ref.Projection); err != nil {
			ds.Close()
		}
	}
	return
}

// 使用参考地理信息写出标签栅格
func (g *GdalToolbox) WriteLabel(tif string, layer *gridset.LabelLayer, ref Georef) error {
	return g.writeAtomic(tif, func(tmp string) (err error) {
		ds, err := g.create(tmp, layer.Cols, layer.Rows, 1, gdal.Int32, ref)
		if err != nil {
			return
		}
		defer ds.Close()
		band := ds.RasterBand(1)
		if err = band.SetNoDataValue(g.noData); err != nil {
			return
		}
		if err = band.IO(gdal.GF_Write, 0, 0, layer.Cols, layer.Rows, layer.Data, layer.Cols, layer.Rows, 0, 0); err != nil {
			log.Error(g.logTag+"write label band failed", zap.Error(err))
			err = ErrTifWriteFailed
			return
		}
		ds.FlushCache()
		log.Info(g.logTag+"label tif written", zap.String("tif", tif), zap.Int("width", layer.Cols), zap.Int("height", layer.Rows))
		return
	})
}

// 使用参考地理信息写出多波段栅格，NaN作为无效值
func (g *GdalToolbox) WriteRaster(tif string, layer *gridset.RasterLayer, ref Georef) error {
	return g.writeAtomic(tif, func(tmp string) (err error) {
		ds, err := g.create(tmp, layer.Cols, layer.Rows, layer.Bands, gdal.Float32, ref)
		if err != nil {
			return
		}
		defer ds.Close()
		area := layer.Rows * layer.Cols
		for i := 0; i < layer.Bands; i++ {
			band := ds.RasterBand(i + 1)
			if err = band.SetNoDataValue(math.NaN()); err != nil {
				return
			}
			buf := layer.Data[i*area : (i+1)*area]
			if err = band.IO(gdal.GF_Write, 0, 0, layer.Cols, layer.Rows, buf, layer.Cols, layer.Rows, 0, 0); err != nil {
				log.Error(g.logTag+"write tif band failed", zap.Int("band", i), zap.Error(err))
				err = ErrTifWriteFailed
				return
			}
		}
		ds.FlushCache()
		log.Info(g.logTag+"tif written", zap.String("tif", tif), zap.Int("bands", layer.Bands))
		return
	})
}

type resultWriter struct {
	g   *GdalToolbox
	ref Georef
}

func (w resultWriter) WriteLabel(ctx context.Context, path string, layer *gridset.LabelLayer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.g.WriteLabel(path, layer, w.ref)
}

// 以ref为地理参考的结果写出方
func (g *GdalToolbox) ResultWriter(ref Georef) gridset.ResultWriter {
	return resultWriter{g: g, ref: ref}
}
