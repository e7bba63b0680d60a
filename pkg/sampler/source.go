package sampler

import (
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostSource 负载取自操作系统，内存取自 Go 运行时。
//
// 已用内存为运行时向系统申请且未归还的部分（Sys - HeapReleased），即 GOMEMLIMIT 约束的量。
// 上限优先取 GOMEMLIMIT，未设置时取主机总内存。
type HostSource struct{}

// NewHostSource 创建主机信号源
func NewHostSource() *HostSource { return &HostSource{} }

// LoadAverage 读取 1 分钟负载
func (HostSource) LoadAverage() (float64, error) {
	avg, err := load.Avg()
	if err != nil {
		return 0, loadError(err)
	}
	return avg.Load1, nil
}

// loadError gopsutil 以 "not implemented yet" 表示平台不支持
func loadError(err error) error {
	if strings.Contains(err.Error(), "not implemented") {
		return fmt.Errorf("read load average: %v: %w", err, ErrUnsupported)
	}
	return fmt.Errorf("read load average: %w", err)
}

// MemoryUsage 读取运行时内存占用及上限
func (HostSource) MemoryUsage() (uint64, uint64, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	used := ms.Sys - ms.HeapReleased
	// 负数参数只读取当前限制
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit != math.MaxInt64 {
		return used, uint64(limit), nil
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return used, 0, fmt.Errorf("read host memory: %w", err)
	}
	return used, vm.Total, nil
}
