package utils

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	TMP_PREFIX = ".tmp-"

	dirPermissionBits = 0755
)

func IsTempFile(path string) bool {
	return strings.HasPrefix(filepath.Base(path), TMP_PREFIX)
}

// 先写入同目录下的临时文件再重命名，保证目标文件要么完整要么不存在
func WriteFileAtomic(path string, r io.Reader) (err error) {
	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, dirPermissionBits); err != nil {
		return
	}
	tmp := filepath.Join(dir, TMP_PREFIX+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	if _, err = io.Copy(f, r); err != nil {
		f.Close()
		return
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return
	}
	if err = f.Close(); err != nil {
		return
	}
	err = os.Rename(tmp, path)
	return
}
