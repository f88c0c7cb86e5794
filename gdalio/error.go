package gdalio

import "errors"

var (
	ErrGdalDriverCreate = errors.New("gdal driver create err")
	ErrInvalidTif       = errors.New("invalid tif")
	ErrEmptyTif         = errors.New("empty tif")
	ErrTifReadFailed    = errors.New("tif read failed")
	ErrTifWriteFailed   = errors.New("tif write failed")
	ErrVoidSrid         = errors.New("raster with void srid")
	ErrNotAligned       = errors.New("rasters are not aligned")
)
