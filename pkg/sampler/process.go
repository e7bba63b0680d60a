package sampler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStat 单个进程快照
type ProcessStat struct {
	PID        int32
	Name       string
	CPUPercent float64
	MemoryMB   float64
	Status     string
}

// ProcessLister 列出占用最高的进程
type ProcessLister interface {
	Top(ctx context.Context, limit int) ([]ProcessStat, error)
}

// HostProcesses 基于 gopsutil process 读取主机进程表
type HostProcesses struct{}

// NewHostProcesses 创建主机进程读取器
func NewHostProcesses() *HostProcesses { return &HostProcesses{} }

// Top 按 cpu 降序（内存次之）返回前 limit 个进程；读取期间退出的进程被跳过
func (HostProcesses) Top(ctx context.Context, limit int) ([]ProcessStat, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", wrapUnavailable(err))
	}

	stats := make([]ProcessStat, 0, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		st := ProcessStat{PID: p.Pid, Name: name}
		if v, err := p.CPUPercentWithContext(ctx); err == nil {
			st.CPUPercent = v
		}
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil && mi != nil {
			st.MemoryMB = float64(mi.RSS) / 1024 / 1024
		}
		if s, err := p.StatusWithContext(ctx); err == nil {
			st.Status = strings.Join(s, ",")
		}
		stats = append(stats, st)
	}
	return TopN(stats, limit), nil
}

// TopN 排序并截断，limit<=0 返回全部
func TopN(stats []ProcessStat, limit int) []ProcessStat {
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].CPUPercent != stats[j].CPUPercent {
			return stats[i].CPUPercent > stats[j].CPUPercent
		}
		return stats[i].MemoryMB > stats[j].MemoryMB
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}
	return stats
}
