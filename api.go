package gridset

// 栅格范围（行数、列数）
type Extent struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

func (e Extent) Valid() bool {
	return e.Rows > 0 && e.Cols > 0
}

// 多波段栅格，按(波段,行,列)顺序存储，无效值已转为NaN
type RasterLayer struct {
	Bands int
	Rows  int
	Cols  int
	Data  []float32
}

// 单波段标签栅格，无效值已转为0
type LabelLayer struct {
	Rows int
	Cols int
	Data []int32
}

// 栅格切片，形状(Bands, Rows, Cols)
type RasterPatch struct {
	Bands int
	Rows  int
	Cols  int
	Data  []float32
}

// 标签切片，形状(Rows, Cols)，0为背景
type LabelPatch struct {
	Rows int
	Cols int
	Data []int32
}

// 单类别样本：非该类别像元在所有波段上置0
type TypeSample struct {
	Class  int32
	Cell   GridCell
	Pixels int          // 该类别像元数
	Raster *RasterPatch // 栅格样本；仅标签切分时为nil
	Label  *LabelPatch  // 仅标签切分时的掩膜标签
}

func (s TypeSample) Key() string {
	return SampleKey(s.Class, s.Cell)
}

// 单地块样本：只保留该地块编号的像元，类别待预测（编码中类别位为00）
type ParcelSample struct {
	Parcel int32
	Cell   GridCell
	Pixels int
	Label  *LabelPatch
}

func (s ParcelSample) Key() string {
	return ResultKey(0, s.Parcel, s.Cell)
}
