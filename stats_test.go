package gridset

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsAccumulator(t *testing.T) {
	label := NewLabelPatch(2, 2)
	copy(label.Data, []int32{1, 1, 2, 0})
	raster := NewRasterPatch(2, 2, 2)
	copy(raster.Data, []float32{
		1, 3, 10, 99,
		float32(math.NaN()), 4, 20, 99,
	})
	s, err := NewSlicer(0.1)
	require.NoError(t, err)
	samples, err := s.Slice(GridCell{0, 2, 0, 2}, label, raster)
	require.NoError(t, err)
	require.Len(t, samples, 2)

	acc := NewStatsAccumulator()
	for _, sample := range samples {
		acc.Add(sample, label)
	}
	st := acc.Stats()
	assert.Equal(t, 2, st.Samples)
	assert.Equal(t, map[int32]int{1: 1, 2: 1}, st.Classes)
	assert.Equal(t, map[int32]int64{1: 2, 2: 1}, st.Pixels)
	require.Len(t, st.Bands, 2)

	// 波段0：{1,3,10}；波段1：{4,20}（NaN不计）
	assert.Equal(t, int64(3), st.Bands[0].Count)
	assert.InDelta(t, 14.0/3, st.Bands[0].Mean, 1e-9)
	assert.InDelta(t, math.Sqrt((math.Pow(1-14.0/3, 2)+math.Pow(3-14.0/3, 2)+math.Pow(10-14.0/3, 2))/2), st.Bands[0].Std, 1e-9)
	assert.Equal(t, int64(2), st.Bands[1].Count)
	assert.InDelta(t, 12.0, st.Bands[1].Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(128), st.Bands[1].Std, 1e-9)

	var buf bytes.Buffer
	require.NoError(t, st.Encode(&buf))
	got, err := DecodeStats(&buf)
	require.NoError(t, err)
	assert.Equal(t, st, got)
}

func TestStatsLabelOnly(t *testing.T) {
	acc := NewStatsAccumulator()
	acc.Add(TypeSample{Class: 4, Pixels: 10, Label: NewLabelPatch(2, 2)}, nil)
	st := acc.Stats()
	assert.Equal(t, 1, st.Samples)
	assert.Empty(t, st.Bands)
}
