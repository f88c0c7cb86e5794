package utils

import (
	"strconv"
	"strings"
)

// 解析至少minWidth位的纯数字串（允许前导0，不允许符号）
func ParseFixedInt(s string, minWidth int) (v int, ok bool) {
	if len(s) < minWidth || len(s) == 0 {
		return
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return
		}
	}
	v, err := strconv.Atoi(s)
	ok = err == nil
	return
}

func TrimExt(name, ext string) (string, bool) {
	if !strings.HasSuffix(name, ext) {
		return name, false
	}
	return strings.TrimSuffix(name, ext), true
}
