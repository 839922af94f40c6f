// Package docker 实现基于 docker CLI 与 Docker Engine API 的镜像引擎。
package docker

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/chiwei-platform/app-bundler/internal/domain"
)

const (
	loadedImagePrefix   = "Loaded image: "
	loadedImageIDPrefix = "Loaded image ID: "
)

// ParseLoadReport 从 docker load 的输出中解析已加载的镜像名。
// 没有任何 "Loaded image" 行时视为加载失败。
func ParseLoadReport(output string) ([]string, error) {
	var loaded []string
	sc := bufio.NewScanner(strings.NewReader(output))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, loadedImageIDPrefix):
			loaded = append(loaded, strings.TrimSpace(strings.TrimPrefix(line, loadedImageIDPrefix)))
		case strings.HasPrefix(line, loadedImagePrefix):
			loaded = append(loaded, strings.TrimSpace(strings.TrimPrefix(line, loadedImagePrefix)))
		}
	}
	if len(loaded) == 0 {
		return nil, fmt.Errorf("%w: load did not report a loaded image: %s", domain.ErrExternalCommand, strings.TrimSpace(output))
	}
	return loaded, nil
}
