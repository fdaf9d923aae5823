// Package version 提供构建信息, 通过 -ldflags 在构建时注入:
//
//	go build -ldflags "-X github.com/lgc202/openai-kit/version.gitVersion=v1.2.0"
package version

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"
)

var (
	// gitVersion 格式为 vMAJOR.MINOR.PATCH[-PRERELEASE][+BUILD]
	gitVersion = "v0.0.0-master+$Format:%h$"
	// buildDate 是 ISO8601 格式的构建时间
	buildDate = "1970-01-01T00:00:00Z"
	// gitCommit 是 $(git rev-parse HEAD) 的输出
	gitCommit = "$Format:%H$"
	// gitTreeState 为 clean 或 dirty
	gitTreeState = ""
)

// Info 描述当前二进制由哪个版本的代码构建
type Info struct {
	GitVersion   string `json:"gitVersion" yaml:"gitVersion"`
	GitCommit    string `json:"gitCommit" yaml:"gitCommit"`
	GitTreeState string `json:"gitTreeState,omitempty" yaml:"gitTreeState,omitempty"`
	BuildDate    string `json:"buildDate" yaml:"buildDate"`
	GoVersion    string `json:"goVersion" yaml:"goVersion"`
	Compiler     string `json:"compiler" yaml:"compiler"`
	Platform     string `json:"platform" yaml:"platform"`
}

func (info Info) String() string {
	if info.GitTreeState == "dirty" {
		return info.GitVersion + "-dirty"
	}
	return info.GitVersion
}

// UserAgent 返回请求上游 API 时使用的 User-Agent, 例如 "oaictl/v1.0.0 (go1.24.0; linux/amd64)"
func (info Info) UserAgent(product string) string {
	return fmt.Sprintf("%s/%s (%s; %s)", product, info.String(), info.GoVersion, info.Platform)
}

func (info Info) ToJSON() (string, error) {
	s, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal version info: %w", err)
	}
	return string(s), nil
}

func (info Info) ToYAML() (string, error) {
	s, err := yaml.Marshal(info)
	if err != nil {
		return "", fmt.Errorf("failed to marshal version info: %w", err)
	}
	return string(s), nil
}

// Text 以对齐的表格形式输出
func (info Info) Text() string {
	table := uitable.New()
	table.RightAlign(0)
	table.MaxColWidth = 80
	table.Separator = " "
	table.AddRow("gitVersion:", info.GitVersion)
	table.AddRow("gitCommit:", info.GitCommit)
	if info.GitTreeState != "" {
		table.AddRow("gitTreeState:", info.GitTreeState)
	}
	table.AddRow("buildDate:", info.BuildDate)
	table.AddRow("goVersion:", info.GoVersion)
	table.AddRow("compiler:", info.Compiler)
	table.AddRow("platform:", info.Platform)
	return table.String()
}

// Render 按 format 输出: text, json, yaml 或 short
func (info Info) Render(format string) (string, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return info.Text(), nil
	case "json":
		return info.ToJSON()
	case "yaml", "yml":
		return info.ToYAML()
	case "short":
		return info.GitVersion, nil
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
}

func Get() Info {
	return Info{
		GitVersion:   gitVersion,
		GitCommit:    gitCommit,
		GitTreeState: gitTreeState,
		BuildDate:    buildDate,
		GoVersion:    runtime.Version(),
		Compiler:     runtime.Compiler,
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
