package gridset

const (
	BUCKET_SIZE   = 10000 // 单个子目录中的最大切片数
	KEY_DIGITS    = 5     // 格网编码中每个边界的位数
	MAX_KEY_BOUND = 99999 // 五位编码可表示的最大边界
	CLASS_DIGITS  = 2
	LABEL_DIGITS  = 8

	PATCH_EXT     = ".patch"
	GRID_MANIFEST = "grid.json"
	STATS_FILE    = "stats.json"

	LABEL_LAYER  = "label"
	FUSED_LAYER  = "fused"
	SAMPLE_LAYER = "samples"
	PARCEL_GRID  = "parcel_grid" // 按格网拆分的地块编号栅格
	PARCEL_LAYER = "parcels"
	RESULT_LAYER = "results"

	DEFAULT_PAD_FRACTION = 0.6
	DEFAULT_WORKERS      = 4

	MemoryStoreType = "MemoryStore"
	LocalStoreType  = "LocalStore"
	BlobStoreType   = "BlobStore"

	dirPermissionBits = 0755
)

// 流程内部使用的图层名，栅格源不可重名
func ReservedLayer(name string) bool {
	switch name {
	case LABEL_LAYER, FUSED_LAYER, SAMPLE_LAYER, PARCEL_GRID, PARCEL_LAYER, RESULT_LAYER:
		return true
	}
	return false
}
