package version

// Version 由构建时 -ldflags "-X github.com/telemetry-agent/pkg/version.Version=..." 覆盖
var Version = "1.0.0"

// UserAgent 上报请求使用的 User-Agent
func UserAgent() string {
	return "telemetry-agent/" + Version
}
