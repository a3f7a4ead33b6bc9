package config

import (
	"strings"
	"sync"
)

// pathSegmentCache 缓存已解析的配置路径，键查找在热路径上。
var pathSegmentCache sync.Map // path -> []string

// pathSegments 把配置路径拆成层级片段。":" 与 "." 都是分隔符，
// "server:http.port" 与 "server.http.port" 等价。
func pathSegments(path string) []string {
	if cached, ok := pathSegmentCache.Load(path); ok {
		return cached.([]string)
	}
	segments := strings.Split(strings.ReplaceAll(path, ":", "."), ".")
	pathSegmentCache.Store(path, segments)
	return segments
}
