package config

import (
	"strings"
	"testing"

	"github.com/wgdzlh/gridset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

const sample = `
name = "france-2020"
patch_size = 32
min_pixel_percent = 0.5
remainder_policy = "threshold"
label_path = "/data/label.tif"
output_root = "/data/out"
workers = 8

[[rasters]]
name = "s2"
paths = ["/data/s2_b1.tif", "/data/s2_b2.tif"]

[[rasters]]
name = "s1"
paths = ["/data/s1.tif"]
scale = 2
`

func TestParse(t *testing.T) {
	c, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, 32, c.PatchSize)
	assert.Equal(t, gridset.PadThreshold, c.Remainder)
	assert.Equal(t, gridset.DEFAULT_PAD_FRACTION, c.PadFraction)
	assert.Equal(t, gridset.ThresholdPad(0.6), c.Policy())
	assert.Equal(t, []string{"s2", "s1"}, c.RasterNames())
	assert.Equal(t, 1, c.Rasters[0].Scale)
	assert.Equal(t, 2, c.Rasters[1].Scale)
	assert.Equal(t, "info", c.LogLevel)
}

func TestParseExplicitZeroFraction(t *testing.T) {
	src := strings.Replace(sample, `remainder_policy = "threshold"`, "remainder_policy = \"threshold\"\npad_fraction = 0.0", 1)
	c, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.PadFraction)
}

func TestDefaultPolicy(t *testing.T) {
	src := strings.Replace(sample, `remainder_policy = "threshold"`, "", 1)
	c, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, gridset.AlwaysPad(), c.Policy())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	src := `
patch_size = 0
min_pixel_percent = 1.5

[[rasters]]
name = "label"
scale = 3
`
	_, err := Parse(strings.NewReader(src))
	require.ErrorIs(t, err, gridset.ErrConfiguration)
	// patch_size, min_pixel_percent, output_root, paths, reserved name
	assert.Len(t, multierr.Errors(err), 5)
}

func TestUnknownKey(t *testing.T) {
	_, err := Parse(strings.NewReader(sample + "\npatchsize = 16\n"))
	assert.ErrorIs(t, err, gridset.ErrConfiguration)
}

func TestBadPolicy(t *testing.T) {
	src := strings.Replace(sample, `"threshold"`, `"sometimes"`, 1)
	_, err := Parse(strings.NewReader(src))
	assert.ErrorIs(t, err, gridset.ErrConfiguration)
}

func TestLoadExample(t *testing.T) {
	c, err := Load("../gridset.example.toml")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2", "s1"}, c.RasterNames())
	assert.Equal(t, 1, c.Rasters[0].Scale)
	assert.Equal(t, gridset.ThresholdPad(0.6), c.Policy())
	assert.Equal(t, uint64(3), c.Retries)
}

func TestReservedRasterName(t *testing.T) {
	_, err := Parse(strings.NewReader(`
patch_size = 32
min_pixel_percent = 0.1
output_root = "/tmp/x"
[[rasters]]
name = "results"
paths = ["a.tif"]
`))
	assert.ErrorIs(t, err, gridset.ErrConfiguration)
	assert.Len(t, multierr.Errors(err), 1)
}
