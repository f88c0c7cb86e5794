package config

import (
	"fmt"
	"io"
	"os"

	"github.com/wgdzlh/gridset"

	"github.com/BurntSushi/toml"
	"go.uber.org/multierr"
)

// 栅格源；多个路径按顺序叠加为一个源
type Raster struct {
	Name  string   `toml:"name"`
	Paths []string `toml:"paths"`
	Scale int      `toml:"scale"` // 像元边长与标签像元边长之比
}

type Config struct {
	Name            string          `toml:"name"`
	PatchSize       int             `toml:"patch_size"`
	MinPixelPercent float64         `toml:"min_pixel_percent"`
	Remainder       gridset.PadMode `toml:"remainder_policy"`
	PadFraction     float64         `toml:"pad_fraction"`

	LabelPath  string   `toml:"label_path"`
	ParcelPath string   `toml:"parcel_path"`
	Rasters    []Raster `toml:"rasters"`
	ResultPath string   `toml:"result_path"`

	OutputRoot string `toml:"output_root"`
	StoreURL   string `toml:"store_url"` // 非空时使用对象存储，如s3://bucket?region=...
	Workers    int    `toml:"workers"`
	Retries    uint64 `toml:"retries"`

	NoData   float64 `toml:"nodata"`
	Compress string  `toml:"compress"`
	LogLevel string  `toml:"log_level"`
}

func Load(path string) (c *Config, err error) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (c *Config, err error) {
	c = &Config{}
	md, err := toml.NewDecoder(r).Decode(c)
	if err != nil {
		err = fmt.Errorf("%w: %v", gridset.ErrConfiguration, err)
		return
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		err = fmt.Errorf("%w: unknown keys %v", gridset.ErrConfiguration, undecoded)
		return
	}
	c.SetDefaults(md.IsDefined("pad_fraction"))
	err = c.Validate()
	return
}

// padFractionSet为false时使用默认的补齐阈值
func (c *Config) SetDefaults(padFractionSet bool) {
	if !padFractionSet {
		c.PadFraction = gridset.DEFAULT_PAD_FRACTION
	}
	if c.Workers <= 0 {
		c.Workers = gridset.DEFAULT_WORKERS
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for i := range c.Rasters {
		r := &c.Rasters[i]
		if r.Scale == 0 {
			r.Scale = 1
		}
		if r.Name == "" {
			r.Name = fmt.Sprintf("raster%02d", i)
		}
	}
}

// 汇总全部配置错误
func (c *Config) Validate() (err error) {
	if c.PatchSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("%w: patch_size must be positive, got %d", gridset.ErrConfiguration, c.PatchSize))
	}
	if !(c.MinPixelPercent > 0 && c.MinPixelPercent < 1) {
		err = multierr.Append(err, fmt.Errorf("%w: min_pixel_percent must be in (0,1), got %v", gridset.ErrConfiguration, c.MinPixelPercent))
	}
	if c.Remainder == gridset.PadThreshold && (c.PadFraction < 0 || c.PadFraction >= 1) {
		err = multierr.Append(err, fmt.Errorf("%w: pad_fraction must be in [0,1), got %v", gridset.ErrConfiguration, c.PadFraction))
	}
	if c.OutputRoot == "" && c.StoreURL == "" {
		err = multierr.Append(err, fmt.Errorf("%w: one of output_root and store_url is required", gridset.ErrConfiguration))
	}
	names := map[string]bool{}
	for i, r := range c.Rasters {
		if len(r.Paths) == 0 {
			err = multierr.Append(err, fmt.Errorf("%w: rasters[%d] has no paths", gridset.ErrConfiguration, i))
		}
		if r.Scale < 1 || (c.PatchSize > 0 && c.PatchSize%r.Scale != 0) {
			err = multierr.Append(err, fmt.Errorf("%w: rasters[%d] scale %d does not divide patch_size %d", gridset.ErrConfiguration, i, r.Scale, c.PatchSize))
		}
		switch {
		case names[r.Name]:
			err = multierr.Append(err, fmt.Errorf("%w: duplicate raster name %q", gridset.ErrConfiguration, r.Name))
		case gridset.ReservedLayer(r.Name):
			err = multierr.Append(err, fmt.Errorf("%w: raster name %q is reserved", gridset.ErrConfiguration, r.Name))
		}
		names[r.Name] = true
	}
	return
}

func (c *Config) Policy() gridset.RemainderPolicy {
	if c.Remainder == gridset.PadThreshold {
		return gridset.ThresholdPad(c.PadFraction)
	}
	return gridset.AlwaysPad()
}

// 栅格源名称，按配置顺序
func (c *Config) RasterNames() []string {
	names := make([]string, len(c.Rasters))
	for i, r := range c.Rasters {
		names[i] = r.Name
	}
	return names
}
