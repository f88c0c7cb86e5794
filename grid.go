package gridset

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/wgdzlh/gridset/log"

	"go.uber.org/zap"
)

// 余数像元的处理方式
type PadMode int

const (
	PadAlways    PadMode = iota // 总是向上补齐到整块
	PadThreshold                // 余数超过Fraction*patchSize才补齐，否则截断
)

func (m PadMode) String() string {
	switch m {
	case PadAlways:
		return "always"
	case PadThreshold:
		return "threshold"
	}
	return fmt.Sprintf("PadMode(%d)", int(m))
}

func ParsePadMode(s string) (m PadMode, err error) {
	switch strings.ToLower(s) {
	case "always", "":
		m = PadAlways
	case "threshold":
		m = PadThreshold
	default:
		err = fmt.Errorf("%w: unknown remainder policy %q", ErrConfiguration, s)
	}
	return
}

func (m PadMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *PadMode) UnmarshalText(b []byte) (err error) {
	*m, err = ParsePadMode(string(b))
	return
}

type RemainderPolicy struct {
	Mode     PadMode `json:"mode"`
	Fraction float64 `json:"fraction,omitempty"`
}

func AlwaysPad() RemainderPolicy {
	return RemainderPolicy{Mode: PadAlways}
}

func ThresholdPad(fraction float64) RemainderPolicy {
	return RemainderPolicy{Mode: PadThreshold, Fraction: fraction}
}

// 计算补齐/截断后的边长
func (p RemainderPolicy) pad(dim, patchSize int) int {
	n := dim / patchSize
	rem := dim % patchSize
	switch p.Mode {
	case PadThreshold:
		if float64(rem) > p.Fraction*float64(patchSize) {
			n++
		}
	default:
		if rem > 0 {
			n++
		}
	}
	return n * patchSize
}

// 研究区的规则格网划分，生成后不可修改
type Grid struct {
	Extent    Extent          `json:"extent"`
	Padded    Extent          `json:"padded"`
	PatchSize int             `json:"patch_size"`
	Policy    RemainderPolicy `json:"policy"`
	Cells     []GridCell      `json:"-"`

	rowBands int
	colBands int
	index    map[GridCell]int
}

// 按行优先顺序生成格网，填充区域在截取切片时以0补齐
func ComputeGrid(extent Extent, patchSize int, policy RemainderPolicy) (g *Grid, err error) {
	if !extent.Valid() {
		err = fmt.Errorf("%w: extent %dx%d", ErrConfiguration, extent.Rows, extent.Cols)
		return
	}
	if patchSize <= 0 || patchSize > extent.Rows || patchSize > extent.Cols {
		err = fmt.Errorf("%w: patch size %d for extent %dx%d", ErrConfiguration, patchSize, extent.Rows, extent.Cols)
		return
	}
	if policy.Mode == PadThreshold && (policy.Fraction < 0 || policy.Fraction >= 1) {
		err = fmt.Errorf("%w: pad fraction %v", ErrConfiguration, policy.Fraction)
		return
	}
	padded := Extent{
		Rows: policy.pad(extent.Rows, patchSize),
		Cols: policy.pad(extent.Cols, patchSize),
	}
	if padded.Rows > MAX_KEY_BOUND || padded.Cols > MAX_KEY_BOUND {
		err = fmt.Errorf("%w: padded extent %dx%d exceeds %d-digit grid codes", ErrConfiguration, padded.Rows, padded.Cols, KEY_DIGITS)
		return
	}
	g = &Grid{
		Extent:    extent,
		Padded:    padded,
		PatchSize: patchSize,
		Policy:    policy,
		rowBands:  padded.Rows / patchSize,
		colBands:  padded.Cols / patchSize,
	}
	n := g.rowBands * g.colBands
	g.Cells = make([]GridCell, 0, n)
	g.index = make(map[GridCell]int, n)
	for rr := 0; rr < g.rowBands; rr++ {
		for cc := 0; cc < g.colBands; cc++ {
			cell := GridCell{
				RowStart: rr * patchSize,
				RowEnd:   (rr + 1) * patchSize,
				ColStart: cc * patchSize,
				ColEnd:   (cc + 1) * patchSize,
			}
			g.index[cell] = len(g.Cells)
			g.Cells = append(g.Cells, cell)
		}
	}
	log.Info("Grid:computed grid", zap.Int("rows", extent.Rows), zap.Int("cols", extent.Cols),
		zap.Int("patchSize", patchSize), zap.Stringer("policy", policy.Mode),
		zap.Int("paddedRows", padded.Rows), zap.Int("paddedCols", padded.Cols), zap.Int("cells", n))
	return
}

func (g *Grid) Len() int {
	return len(g.Cells)
}

// 行、列方向的格网数
func (g *Grid) Shape() (rows, cols int) {
	return g.rowBands, g.colBands
}

func (g *Grid) Index(cell GridCell) (i int, ok bool) {
	i, ok = g.index[cell]
	return
}

func (g *Grid) Lookup(code GridCode) (cell GridCell, i int, err error) {
	if cell, err = ParseGridCode(string(code)); err != nil {
		return
	}
	i, ok := g.index[cell]
	if !ok {
		err = fmt.Errorf("%w: cell %s is not part of the grid", ErrNotFound, code)
	}
	return
}

// 切片数超过BUCKET_SIZE时，按枚举顺序分组存放
func (g *Grid) Sharded() bool {
	return len(g.Cells) > BUCKET_SIZE
}

func (g *Grid) Bucket(i int) (bucket int, sharded bool) {
	if !g.Sharded() {
		return
	}
	return i / BUCKET_SIZE, true
}

func (g *Grid) Equal(o *Grid) bool {
	return o != nil && g.Extent == o.Extent && g.PatchSize == o.PatchSize && g.Padded == o.Padded
}

func (g *Grid) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(g)
}

// 读取格网描述，并按相同参数重新生成单元表
func DecodeGrid(r io.Reader) (g *Grid, err error) {
	var m Grid
	if err = json.NewDecoder(r).Decode(&m); err != nil {
		err = fmt.Errorf("%w: grid manifest: %v", ErrConfiguration, err)
		return
	}
	if g, err = ComputeGrid(m.Extent, m.PatchSize, m.Policy); err != nil {
		return
	}
	if g.Padded != m.Padded {
		err = fmt.Errorf("%w: grid manifest padded extent %dx%d, recomputed %dx%d",
			ErrConfiguration, m.Padded.Rows, m.Padded.Cols, g.Padded.Rows, g.Padded.Cols)
	}
	return
}
