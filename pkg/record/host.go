package record

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// DetectHost host 标签取值：优先 gopsutil 主机名，其次 os.Hostname，最后为操作系统名
func DetectHost() string {
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return runtime.GOOS
}
