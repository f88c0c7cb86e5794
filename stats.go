package gridset

import (
	"encoding/json"
	"io"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"
)

type BandStats struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
}

// 样本集统计，用于训练时的归一化
type DatasetStats struct {
	Samples int             `json:"samples"`
	Classes map[int32]int   `json:"classes"`
	Pixels  map[int32]int64 `json:"pixels"`
	Bands   []BandStats     `json:"bands,omitempty"`
}

func (s *DatasetStats) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

func DecodeStats(r io.Reader) (s *DatasetStats, err error) {
	s = &DatasetStats{}
	err = json.NewDecoder(r).Decode(s)
	return
}

type bandMoments struct {
	n    float64
	mean float64
	m2   float64
}

// 合并两组样本的均值与二阶中心矩
func (b *bandMoments) merge(n, mean, variance float64) {
	if n == 0 {
		return
	}
	m2 := variance * (n - 1)
	total := b.n + n
	delta := mean - b.mean
	b.mean += delta * n / total
	b.m2 += m2 + delta*delta*b.n*n/total
	b.n = total
}

// 并发安全的样本统计累加器；只统计属于样本类别且非NaN的像元
type StatsAccumulator struct {
	lk      sync.Mutex
	samples int
	classes map[int32]int
	pixels  map[int32]int64
	bands   []bandMoments
}

func NewStatsAccumulator() *StatsAccumulator {
	return &StatsAccumulator{
		classes: map[int32]int{},
		pixels:  map[int32]int64{},
	}
}

// label为样本所在格网的原始标签切片
func (a *StatsAccumulator) Add(s TypeSample, label *LabelPatch) {
	type moments struct{ n, mean, variance float64 }
	var per []moments
	if s.Raster != nil && label != nil {
		area := s.Raster.Rows * s.Raster.Cols
		per = make([]moments, s.Raster.Bands)
		x := make([]float64, 0, s.Pixels)
		for b := range per {
			x = x[:0]
			band := s.Raster.Data[b*area : (b+1)*area]
			for p, v := range label.Data {
				if v == s.Class && !math.IsNaN(float64(band[p])) {
					x = append(x, float64(band[p]))
				}
			}
			if len(x) == 0 {
				continue
			}
			mean, variance := stat.MeanVariance(x, nil)
			if len(x) == 1 {
				variance = 0
			}
			per[b] = moments{n: float64(len(x)), mean: mean, variance: variance}
		}
	}

	a.lk.Lock()
	defer a.lk.Unlock()
	a.samples++
	a.classes[s.Class]++
	a.pixels[s.Class] += int64(s.Pixels)
	if len(per) > len(a.bands) {
		a.bands = append(a.bands, make([]bandMoments, len(per)-len(a.bands))...)
	}
	for b, m := range per {
		a.bands[b].merge(m.n, m.mean, m.variance)
	}
}

func (a *StatsAccumulator) Stats() *DatasetStats {
	a.lk.Lock()
	defer a.lk.Unlock()
	s := &DatasetStats{
		Samples: a.samples,
		Classes: make(map[int32]int, len(a.classes)),
		Pixels:  make(map[int32]int64, len(a.pixels)),
	}
	for k, v := range a.classes {
		s.Classes[k] = v
	}
	for k, v := range a.pixels {
		s.Pixels[k] = v
	}
	for _, b := range a.bands {
		bs := BandStats{Count: int64(b.n), Mean: b.mean}
		if b.n > 1 {
			bs.Std = math.Sqrt(b.m2 / (b.n - 1))
		}
		s.Bands = append(s.Bands, bs)
	}
	return s
}
