package gridset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCell = GridCell{0, 32, 0, 32}

// 前n个像元为class，其余为0
func labelWith(class int32, n int) *LabelPatch {
	p := NewLabelPatch(32, 32)
	for i := 0; i < n; i++ {
		p.Data[i] = class
	}
	return p
}

func TestNewSlicer(t *testing.T) {
	for _, p := range []float64{0, 1, -0.2, 1.5} {
		_, err := NewSlicer(p)
		assert.ErrorIs(t, err, ErrConfiguration, "%v", p)
	}
}

func TestSliceSingleClass(t *testing.T) {
	s, err := NewSlicer(0.5)
	require.NoError(t, err)
	label := labelWith(5, 600)
	raster := NewRasterPatch(3, 32, 32)
	for i := range raster.Data {
		raster.Data[i] = 1
	}
	samples, err := s.Slice(testCell, label, raster)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	sample := samples[0]
	assert.Equal(t, int32(5), sample.Class)
	assert.Equal(t, 600, sample.Pixels)
	assert.Equal(t, "05_00000_00032_00000_00032", sample.Key())
	assert.Nil(t, sample.Label)
	for b := 0; b < 3; b++ {
		assert.Equal(t, float32(1), sample.Raster.At(b, 0, 0))
		assert.Equal(t, float32(1), sample.Raster.At(b, 18, 23)) // 第599个像元
		assert.Equal(t, float32(0), sample.Raster.At(b, 18, 24))
		assert.Equal(t, float32(0), sample.Raster.At(b, 31, 31))
	}
	// 原切片不被修改
	assert.Equal(t, float32(1), raster.At(2, 31, 31))
}

func TestSliceThresholdBoundary(t *testing.T) {
	s, err := NewSlicer(0.5)
	require.NoError(t, err)
	samples, err := s.Slice(testCell, labelWith(3, 512), nil)
	require.NoError(t, err)
	assert.Empty(t, samples, "exactly at threshold")

	samples, err = s.Slice(testCell, labelWith(3, 513), nil)
	require.NoError(t, err)
	assert.Len(t, samples, 1)
}

func TestSliceBackgroundOnly(t *testing.T) {
	s, err := NewSlicer(0.01)
	require.NoError(t, err)
	samples, err := s.Slice(testCell, NewLabelPatch(32, 32), NewRasterPatch(1, 32, 32))
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestSliceMultiClassLabelOnly(t *testing.T) {
	s, err := NewSlicer(0.1)
	require.NoError(t, err)
	label := NewLabelPatch(32, 32)
	for i := range label.Data {
		switch {
		case i < 300:
			label.Data[i] = 9
		case i < 600:
			label.Data[i] = 2
		case i < 650:
			label.Data[i] = 4 // 占比不足
		case i < 700:
			label.Data[i] = -1 // 无效值
		}
	}
	samples, err := s.Slice(testCell, label, nil)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, int32(2), samples[0].Class)
	assert.Equal(t, int32(9), samples[1].Class)
	assert.Nil(t, samples[0].Raster)
	for i, v := range samples[0].Label.Data {
		if i >= 300 && i < 600 {
			assert.Equal(t, int32(2), v)
		} else {
			assert.Equal(t, int32(0), v)
		}
	}

	again, err := s.Slice(testCell, label, nil)
	require.NoError(t, err)
	assert.Equal(t, samples, again)
}

func TestSliceShapeMismatch(t *testing.T) {
	s, err := NewSlicer(0.5)
	require.NoError(t, err)
	_, err = s.Slice(testCell, labelWith(1, 600), NewRasterPatch(1, 16, 16))
	assert.ErrorIs(t, err, ErrShape)
}

func TestSliceParcels(t *testing.T) {
	s, err := NewSlicer(0.01)
	require.NoError(t, err)
	parcels := NewLabelPatch(32, 32)
	for i := 0; i < 100; i++ {
		parcels.Data[i] = 20001
		parcels.Data[500+i] = 3
	}
	parcels.Data[1000] = 777 // 单像元，占比不足
	samples, err := s.SliceParcels(testCell, parcels)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, "00_00000003_00000_00032_00000_00032", samples[0].Key())
	assert.Equal(t, int32(20001), samples[1].Parcel)
	assert.Equal(t, 100, samples[1].Pixels)
	assert.Equal(t, int32(0), samples[1].Label.Data[500])
}

func TestOccupancy(t *testing.T) {
	counts := Occupancy(labelWith(5, 256))
	require.Len(t, counts, 2)
	assert.Equal(t, ClassCount{Class: 0, Count: 768, Percent: 0.75}, counts[0])
	assert.Equal(t, ClassCount{Class: 5, Count: 256, Percent: 0.25}, counts[1])
}
