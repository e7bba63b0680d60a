// Package goid 解析当前 goroutine 编号，供日志字段使用。
package goid

import (
	"bytes"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// GetGID 当前 goroutine 的 ID，解析失败返回 0
func GetGID() uint64 {
	var buf [64]byte
	// 栈首行形如 "goroutine 123 [running]:"
	head := buf[:runtime.Stack(buf[:], false)]
	return parseGID(head)
}

func parseGID(head []byte) uint64 {
	rest, ok := bytes.CutPrefix(head, goroutinePrefix)
	if !ok {
		return 0
	}
	if i := bytes.IndexByte(rest, ' '); i >= 0 {
		rest = rest[:i]
	}
	id, err := strconv.ParseUint(string(rest), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
