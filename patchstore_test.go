package gridset

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitLabelRoundTrip(t *testing.T) {
	ctx := context.Background()
	layer := seqLabel(70, 45)
	g, err := ComputeGrid(layer.Extent(), 16, AlwaysPad())
	require.NoError(t, err)
	s := NewMemoryStore()
	ps := NewPatchStore(s, LABEL_LAYER, g)
	require.NoError(t, ps.SplitLabel(ctx, layer, 3))
	assert.Equal(t, g.Len(), s.Len())

	// 逐格读回，拼成填充后的完整图层
	padded := NewLabelLayer(g.Padded.Rows, g.Padded.Cols)
	for _, cell := range g.Cells {
		p, err := ps.LoadLabel(ctx, cell)
		require.NoError(t, err)
		require.Equal(t, 16, p.Rows)
		for r := 0; r < p.Rows; r++ {
			copy(padded.Data[(cell.RowStart+r)*padded.Cols+cell.ColStart:], p.Data[r*p.Cols:(r+1)*p.Cols])
		}
	}
	for r := 0; r < padded.Rows; r++ {
		for c := 0; c < padded.Cols; c++ {
			want := int32(0)
			if r < layer.Rows && c < layer.Cols {
				want = layer.At(r, c)
			}
			require.Equal(t, want, padded.At(r, c), "pixel (%d,%d)", r, c)
		}
	}
}

func TestSplitRaster(t *testing.T) {
	ctx := context.Background()
	layer := seqRaster(2, 40, 40)
	g, err := ComputeGrid(layer.Extent(), 32, AlwaysPad())
	require.NoError(t, err)
	ps := NewPatchStore(NewMemoryStore(), "s2", g)
	require.NoError(t, ps.SplitRaster(ctx, layer, 2))

	p, err := ps.LoadRaster(ctx, GridCell{32, 64, 0, 32})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Bands)
	assert.Equal(t, layer.At(1, 39, 5), p.At(1, 7, 5))
	assert.Equal(t, float32(0), p.At(1, 8, 5), "padding")
}

func TestSplitScaled(t *testing.T) {
	ctx := context.Background()
	g, err := ComputeGrid(Extent{64, 64}, 32, AlwaysPad())
	require.NoError(t, err)
	coarse := seqRaster(1, 32, 32)
	ps := NewPatchStore(NewMemoryStore(), "s1", g)
	require.NoError(t, ps.SplitScaled(ctx, coarse, 2, 2))

	cell := GridCell{32, 64, 32, 64}
	p, err := ps.LoadRaster(ctx, cell)
	require.NoError(t, err)
	assert.Equal(t, 16, p.Rows)
	assert.Equal(t, coarse.At(0, 16, 16), p.At(0, 0, 0))
	assert.Equal(t, coarse.At(0, 31, 31), p.At(0, 15, 15))

	assert.ErrorIs(t, ps.SplitScaled(ctx, coarse, 3, 2), ErrConfiguration)
	assert.ErrorIs(t, ps.SplitScaled(ctx, seqRaster(1, 20, 32), 2, 2), ErrConfiguration)
}

func TestSplitExtentMismatch(t *testing.T) {
	g, err := ComputeGrid(Extent{64, 64}, 32, AlwaysPad())
	require.NoError(t, err)
	ps := NewPatchStore(NewMemoryStore(), LABEL_LAYER, g)
	assert.ErrorIs(t, ps.SplitLabel(context.Background(), seqLabel(64, 63), 1), ErrConfiguration)
	assert.ErrorIs(t, ps.SplitLabel(context.Background(), &LabelLayer{Rows: 64, Cols: 64}, 1), ErrShape)
}

func TestPatchStoreNotFound(t *testing.T) {
	ctx := context.Background()
	g, err := ComputeGrid(Extent{64, 64}, 32, AlwaysPad())
	require.NoError(t, err)
	ps := NewPatchStore(NewMemoryStore(), LABEL_LAYER, g)
	_, err = ps.LoadLabel(ctx, GridCell{0, 32, 0, 32})
	assert.ErrorIs(t, err, ErrNotFound)
	// 不属于格网的单元
	_, err = ps.LoadLabel(ctx, GridCell{16, 48, 0, 32})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPatchStoreSharding(t *testing.T) {
	ctx := context.Background()
	g, err := ComputeGrid(Extent{101, 100}, 1, AlwaysPad())
	require.NoError(t, err)
	s := NewMemoryStore()
	ps := NewPatchStore(s, LABEL_LAYER, g)
	first, last := g.Cells[0], g.Cells[g.Len()-1]
	require.NoError(t, ps.PutLabel(ctx, first, NewLabelPatch(1, 1)))
	require.NoError(t, ps.PutLabel(ctx, last, NewLabelPatch(1, 1)))

	keys, err := s.List(ctx, LABEL_LAYER+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"label/00/" + string(first.Code()) + PATCH_EXT,
		"label/01/" + string(last.Code()) + PATCH_EXT,
	}, keys)
	_, err = ps.LoadLabel(ctx, last)
	assert.NoError(t, err)
}

func TestPutSampleKeys(t *testing.T) {
	ctx := context.Background()
	g, err := ComputeGrid(Extent{32, 32}, 32, AlwaysPad())
	require.NoError(t, err)
	s := NewMemoryStore()
	ps := NewPatchStore(s, SAMPLE_LAYER, g)
	cell := g.Cells[0]
	raster := NewRasterPatch(2, 32, 32)
	raster.Data[0] = 1.5
	require.NoError(t, ps.PutSample(ctx, TypeSample{Class: 5, Cell: cell, Raster: raster}))
	require.NoError(t, ps.PutSample(ctx, TypeSample{Class: 7, Cell: cell, Label: NewLabelPatch(32, 32)}))
	assert.ErrorIs(t, ps.PutSample(ctx, TypeSample{Class: 9, Cell: cell}), ErrShape)

	keys, err := s.List(ctx, SAMPLE_LAYER+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"samples/05_00000_00032_00000_00032.patch",
		"samples/07_00000_00032_00000_00032.patch",
	}, keys)
	got, err := ps.LoadRasterSample(ctx, 5, cell)
	require.NoError(t, err)
	assert.Equal(t, raster, got)
	_, err = ps.LoadLabelSample(ctx, 7, cell)
	assert.NoError(t, err)
}

func TestResults(t *testing.T) {
	ctx := context.Background()
	g, err := ComputeGrid(Extent{64, 64}, 32, AlwaysPad())
	require.NoError(t, err)
	s := NewMemoryStore()
	ps := NewPatchStore(s, RESULT_LAYER, g)
	pred := NewLabelPatch(32, 32)
	pred.Data[10] = 3
	require.NoError(t, ps.PutResult(ctx, 3, 1001, g.Cells[1], pred))
	require.NoError(t, ps.PutResult(ctx, 4, 1002, g.Cells[2], nil))
	assert.ErrorIs(t, ps.PutResult(ctx, 4, 1002, g.Cells[2], NewLabelPatch(16, 16)), ErrShape)
	// 不规范的键与格网外的单元被忽略
	require.NoError(t, s.Put(ctx, "results/readme.txt", strings.NewReader("x")))
	require.NoError(t, s.Put(ctx, "results/3_1_00000_00032_00000_00032.patch", strings.NewReader("x")))
	require.NoError(t, s.Put(ctx, "results/03_00000001_00016_00048_00000_00032.patch", strings.NewReader("x")))

	refs, err := ps.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, ResultRef{Class: 3, Label: 1001, Cell: g.Cells[1], Key: "results/" + ResultKey(3, 1001, g.Cells[1]) + PATCH_EXT}, refs[0])
	assert.Equal(t, int32(4), refs[1].Class)

	got, err := ps.LoadResult(ctx, refs[0])
	require.NoError(t, err)
	assert.Equal(t, pred, got)
	got, err = ps.LoadResult(ctx, refs[1])
	require.NoError(t, err)
	assert.Nil(t, got)
}
