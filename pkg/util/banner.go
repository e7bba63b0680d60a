package util

import (
	"fmt"
	"io"

	"github.com/common-nighthawk/go-figure"
)

// Color ANSI 颜色码
type Color string

const (
	ColorReset  Color = "\x1b[0m"
	ColorRed    Color = "\x1b[1;31m"
	ColorGreen  Color = "\x1b[1;32m"
	ColorYellow Color = "\x1b[1;33m"
	ColorBlue   Color = "\x1b[1;34m"
	ColorCyan   Color = "\x1b[1;36m"
)

// BannerInfo 启动横幅下方展示的运行信息
type BannerInfo struct {
	Version  string
	AgentID  string
	Ingest   string
	HTTPAddr string
}

// PrintBanner 以 go-figure 渲染 ASCII 标题，整体使用同一颜色，下方逐行输出运行信息
func PrintBanner(w io.Writer, title string, color Color, info BannerInfo) {
	for _, line := range figure.NewFigure(title, "", true).Slicify() {
		_, _ = fmt.Fprintf(w, "%s%s%s\n", color, line, ColorReset)
	}
	for _, kv := range [][2]string{
		{"version", info.Version},
		{"agent", info.AgentID},
		{"ingest", info.Ingest},
		{"http", info.HTTPAddr},
	} {
		if kv[1] == "" {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s  %-8s %s%s\n", color, kv[0]+":", kv[1], ColorReset)
	}
}
