package gdalio

const (
	GTIFF_DRIVER_NAME = "GTiff"
	DEFAULT_COMPRESS  = "LZW"
	CGCS2000_SRID     = 4490

	// 像元尺寸比较的容差（相对值）
	ALIGN_TOLERANCE = 1e-6
)
