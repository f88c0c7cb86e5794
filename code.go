package gridset

import (
	"fmt"
	"strings"

	"github.com/wgdzlh/gridset/utils"
)

// 格网编码：{起始行}_{终止行}_{起始列}_{终止列}，各五位补零
type GridCode string

// 格网单元，左闭右开
type GridCell struct {
	RowStart int `json:"row_start"`
	RowEnd   int `json:"row_end"`
	ColStart int `json:"col_start"`
	ColEnd   int `json:"col_end"`
}

func (c GridCell) Code() GridCode {
	return GridCode(fmt.Sprintf("%05d_%05d_%05d_%05d", c.RowStart, c.RowEnd, c.ColStart, c.ColEnd))
}

func (c GridCell) String() string {
	return string(c.Code())
}

func (c GridCell) Rows() int {
	return c.RowEnd - c.RowStart
}

func (c GridCell) Cols() int {
	return c.ColEnd - c.ColStart
}

// 两个单元是否有公共像元（仅边界相接不算）
func (c GridCell) Overlaps(o GridCell) bool {
	return c.RowStart < o.RowEnd && o.RowStart < c.RowEnd &&
		c.ColStart < o.ColEnd && o.ColStart < c.ColEnd
}

// 换算到分辨率更低（像元边长为scale倍）的图层坐标
func (c GridCell) Scale(scale int) GridCell {
	if scale <= 1 {
		return c
	}
	return GridCell{
		RowStart: c.RowStart / scale,
		RowEnd:   c.RowEnd / scale,
		ColStart: c.ColStart / scale,
		ColEnd:   c.ColEnd / scale,
	}
}

func ParseGridCode(s string) (cell GridCell, err error) {
	parts := strings.Split(s, "_")
	if len(parts) != 4 {
		err = fmt.Errorf("%w: grid code %q", ErrInvalidKey, s)
		return
	}
	cell, err = parseBounds(parts)
	if err != nil {
		err = fmt.Errorf("%w: grid code %q", ErrInvalidKey, s)
	}
	return
}

func parseBounds(parts []string) (cell GridCell, err error) {
	var b [4]int
	for i, p := range parts {
		v, ok := utils.ParseFixedInt(p, KEY_DIGITS)
		if !ok || len(p) != KEY_DIGITS {
			err = ErrInvalidKey
			return
		}
		b[i] = v
	}
	cell = GridCell{RowStart: b[0], RowEnd: b[1], ColStart: b[2], ColEnd: b[3]}
	if cell.Rows() <= 0 || cell.Cols() <= 0 {
		err = ErrInvalidKey
	}
	return
}

// 样本编码：{类别}_{格网编码}
func SampleKey(class int32, cell GridCell) string {
	return fmt.Sprintf("%02d_%s", class, cell.Code())
}

func ParseSampleKey(s string) (class int32, cell GridCell, err error) {
	parts := strings.Split(s, "_")
	if len(parts) != 5 {
		err = fmt.Errorf("%w: sample key %q", ErrInvalidKey, s)
		return
	}
	v, ok := utils.ParseFixedInt(parts[0], CLASS_DIGITS)
	if !ok {
		err = fmt.Errorf("%w: sample key %q", ErrInvalidKey, s)
		return
	}
	if cell, err = parseBounds(parts[1:]); err != nil {
		err = fmt.Errorf("%w: sample key %q", ErrInvalidKey, s)
		return
	}
	class = int32(v)
	return
}

// 预测结果编码：{类别}_{待替换标签}_{格网编码}
func ResultKey(class, label int32, cell GridCell) string {
	return fmt.Sprintf("%02d_%08d_%s", class, label, cell.Code())
}

func ParseResultKey(s string) (class, label int32, cell GridCell, err error) {
	parts := strings.Split(s, "_")
	if len(parts) != 6 {
		err = fmt.Errorf("%w: result key %q", ErrInvalidKey, s)
		return
	}
	c, ok := utils.ParseFixedInt(parts[0], CLASS_DIGITS)
	if !ok {
		err = fmt.Errorf("%w: result key %q", ErrInvalidKey, s)
		return
	}
	l, ok := utils.ParseFixedInt(parts[1], LABEL_DIGITS)
	if !ok {
		err = fmt.Errorf("%w: result key %q", ErrInvalidKey, s)
		return
	}
	if cell, err = parseBounds(parts[2:]); err != nil {
		err = fmt.Errorf("%w: result key %q", ErrInvalidKey, s)
		return
	}
	class, label = int32(c), int32(l)
	return
}

// 子目录前缀：{编号}/
func BucketPrefix(bucket int) string {
	return fmt.Sprintf("%02d/", bucket)
}
