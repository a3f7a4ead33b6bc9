package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"gopkg.in/yaml.v3"
)

// Configuration 配置接口（类似于 .NET Core IConfiguration）
type Configuration interface {
	// Get 获取配置值
	Get(key string) string
	// GetWithDefault 获取配置值，如果不存在则返回默认值
	GetWithDefault(key, defaultValue string) string
	// GetInt 获取整数配置值
	GetInt(key string) (int, error)
	// GetBool 获取布尔配置值
	GetBool(key string) (bool, error)
	// GetSection 获取配置节
	GetSection(key string) Configuration
	// Bind 绑定配置到结构体
	Bind(key string, target any) error
	// GetAll 获取所有配置
	GetAll() map[string]any
}

// ConfigurationSource 配置源接口
type ConfigurationSource interface {
	Load() (map[string]any, error)
	Name() string
}

// WatchableSource 支持变更监听的配置源
// StartWatch 启动后台监听，配置变更时调用 onChange；StopWatch 释放监听资源
type WatchableSource interface {
	ConfigurationSource
	StartWatch(ctx context.Context, onChange func()) error
	StopWatch() error
}

// ConfigurationBuilder 配置构建器
type ConfigurationBuilder struct {
	sources []ConfigurationSource
	mu      sync.RWMutex
}

// NewConfigurationBuilder 创建配置构建器
func NewConfigurationBuilder() *ConfigurationBuilder {
	return &ConfigurationBuilder{
		sources: make([]ConfigurationSource, 0),
	}
}

// Add 添加配置源
func (b *ConfigurationBuilder) Add(source ConfigurationSource) *ConfigurationBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sources = append(b.sources, source)
	return b
}

// AddJsonFile 添加 JSON 文件配置源
func (b *ConfigurationBuilder) AddJsonFile(path string, optional ...bool) *ConfigurationBuilder {
	isOptional := len(optional) > 0 && optional[0]
	return b.Add(&JsonFileSource{Path: path, Optional: isOptional})
}

// AddYamlFile 添加 YAML 文件配置源
func (b *ConfigurationBuilder) AddYamlFile(path string, optional ...bool) *ConfigurationBuilder {
	isOptional := len(optional) > 0 && optional[0]
	return b.Add(&YamlFileSource{Path: path, Optional: isOptional})
}

// AddEnvironmentVariables 添加环境变量配置源
func (b *ConfigurationBuilder) AddEnvironmentVariables(prefix string) *ConfigurationBuilder {
	return b.Add(&EnvironmentVariableSource{Prefix: prefix})
}

// AddInMemory 添加内存配置源
func (b *ConfigurationBuilder) AddInMemory(data map[string]any) *ConfigurationBuilder {
	return b.Add(&InMemorySource{Data: data})
}

// EtcdOptions etcd 配置选项
type EtcdOptions struct {
	Endpoints   []string      // etcd 服务器地址列表
	Username    string        // 用户名（可选）
	Password    string        // 密码（可选）
	Prefix      string        // 键前缀（可选）
	Timeout     time.Duration // 单次读取超时时间（默认 5 秒）
	DialTimeout time.Duration // 拨号超时时间（默认 5 秒）
}

// AddEtcd 添加 etcd 配置源
func (b *ConfigurationBuilder) AddEtcd(opts EtcdOptions) *ConfigurationBuilder {
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	return b.Add(&EtcdSource{Options: opts})
}

// Sources 返回已注册的配置源快照
func (b *ConfigurationBuilder) Sources() []ConfigurationSource {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]ConfigurationSource, len(b.sources))
	copy(out, b.sources)
	return out
}

// loadAll 按顺序加载所有配置源并合并（后面的覆盖前面的）
func loadAll(sources []ConfigurationSource) (map[string]any, error) {
	merged := make(map[string]any)
	for _, source := range sources {
		data, err := source.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load config source %s: %w", source.Name(), err)
		}
		mergeMaps(merged, data)
	}
	return merged, nil
}

// Build 构建一次性配置（加载后不再变化）
func (b *ConfigurationBuilder) Build() (Configuration, error) {
	data, err := loadAll(b.Sources())
	if err != nil {
		return nil, err
	}
	return newSnapshot(data), nil
}

// configuration 不可变配置快照
type configuration struct {
	data map[string]any
}

func newSnapshot(data map[string]any) *configuration {
	if data == nil {
		data = make(map[string]any)
	}
	return &configuration{data: data}
}

// Get 获取配置值
func (c *configuration) Get(key string) string {
	return valueToString(lookupPath(c.data, key))
}

// GetWithDefault 获取配置值，如果不存在则返回默认值
func (c *configuration) GetWithDefault(key, defaultValue string) string {
	value := c.Get(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetInt 获取整数配置值
func (c *configuration) GetInt(key string) (int, error) {
	return valueToInt(key, lookupPath(c.data, key))
}

// GetBool 获取布尔配置值
func (c *configuration) GetBool(key string) (bool, error) {
	return valueToBool(key, lookupPath(c.data, key))
}

// GetSection 获取配置节
func (c *configuration) GetSection(key string) Configuration {
	return sectionOf(c.data, key)
}

// Bind 绑定配置到结构体
func (c *configuration) Bind(key string, target any) error {
	return bindPath(c.data, key, target)
}

// GetAll 获取所有配置
func (c *configuration) GetAll() map[string]any {
	result := make(map[string]any)
	mergeMaps(result, c.data)
	return result
}

// lookupPath 通过路径获取值（支持 "a:b:c" 或 "a.b.c"）
func lookupPath(data map[string]any, path string) any {
	if path == "" {
		return data
	}

	current := any(data)
	for _, part := range pathSegments(path) {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func sectionOf(data map[string]any, key string) Configuration {
	if m, ok := lookupPath(data, key).(map[string]any); ok {
		return newSnapshot(m)
	}
	return newSnapshot(nil)
}

// bindPath 使用 JSON 序列化/反序列化把配置节绑定到结构体
func bindPath(data map[string]any, key string, target any) error {
	var section any
	if key == "" {
		section = data
	} else {
		section = lookupPath(data, key)
	}

	if section == nil {
		return fmt.Errorf("key %s not found", key)
	}

	jsonData, err := json.Marshal(section)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}
	if err := json.Unmarshal(jsonData, target); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}

func valueToString(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func valueToInt(key string, value any) (int, error) {
	if value == nil {
		return 0, fmt.Errorf("key %s not found", key)
	}
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, fmt.Errorf("cannot convert %v to int", value)
	}
}

func valueToBool(key string, value any) (bool, error) {
	if value == nil {
		return false, fmt.Errorf("key %s not found", key)
	}
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, fmt.Errorf("cannot convert %v to bool", value)
	}
}

// mergeMaps 合并两个 map，嵌套节递归合并
func mergeMaps(dst, src map[string]any) {
	for k, v := range src {
		if dstMap, ok := dst[k].(map[string]any); ok {
			if srcMap, ok := v.(map[string]any); ok {
				mergeMaps(dstMap, srcMap)
				continue
			}
		}
		dst[k] = v
	}
}

// JsonFileSource JSON 文件配置源
type JsonFileSource struct {
	Path     string
	Optional bool
}

func (s *JsonFileSource) Name() string {
	return fmt.Sprintf("JsonFile(%s)", s.Path)
}

func (s *JsonFileSource) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if s.Optional && os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	return result, nil
}

// YamlFileSource YAML 文件配置源
type YamlFileSource struct {
	Path     string
	Optional bool
}

func (s *YamlFileSource) Name() string {
	return fmt.Sprintf("YamlFile(%s)", s.Path)
}

func (s *YamlFileSource) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if s.Optional && os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, err
	}

	var result map[string]any
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return result, nil
}

// EnvironmentVariableSource 环境变量配置源
// 变量名去掉前缀后转小写，_ 作为层级分隔符
type EnvironmentVariableSource struct {
	Prefix string
}

func (s *EnvironmentVariableSource) Name() string {
	return fmt.Sprintf("EnvironmentVariables(%s)", s.Prefix)
}

func (s *EnvironmentVariableSource) Load() (map[string]any, error) {
	result := make(map[string]any)

	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key, value := parts[0], parts[1]
		if s.Prefix != "" {
			if !strings.HasPrefix(key, s.Prefix) {
				continue
			}
			key = strings.TrimPrefix(key, s.Prefix)
		}

		key = strings.ToLower(key)
		key = strings.ReplaceAll(key, "_", ":")
		setNestedValue(result, key, value)
	}

	return result, nil
}

// InMemorySource 内存配置源
type InMemorySource struct {
	Data map[string]any
}

func (s *InMemorySource) Name() string {
	return "InMemory"
}

func (s *InMemorySource) Load() (map[string]any, error) {
	result := make(map[string]any)
	mergeMaps(result, s.Data)
	return result, nil
}

// setNestedValue 按 : 分隔的路径设置嵌套值，字符串值尽量转为 int/float/bool
func setNestedValue(data map[string]any, path string, value any) {
	parts := strings.Split(path, ":")
	current := data

	for i := 0; i < len(parts)-1; i++ {
		part := parts[i]
		if _, exists := current[part]; !exists {
			current[part] = make(map[string]any)
		}
		if m, ok := current[part].(map[string]any); ok {
			current = m
		} else {
			return
		}
	}

	if strValue, ok := value.(string); ok {
		if intValue, err := strconv.Atoi(strValue); err == nil {
			value = intValue
		} else if floatValue, err := strconv.ParseFloat(strValue, 64); err == nil {
			value = floatValue
		} else if boolValue, err := strconv.ParseBool(strValue); err == nil {
			value = boolValue
		}
	}

	current[parts[len(parts)-1]] = value
}

// EtcdSource etcd 配置源，支持按前缀读取与变更监听
type EtcdSource struct {
	Options EtcdOptions

	watchMu     sync.Mutex
	watchClient *clientv3.Client
	watchCancel context.CancelFunc
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints)
}

func (s *EtcdSource) newClient() (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   s.Options.Endpoints,
		Username:    s.Options.Username,
		Password:    s.Options.Password,
		DialTimeout: s.Options.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}
	return cli, nil
}

func (s *EtcdSource) prefix() string {
	if s.Options.Prefix == "" {
		return "/"
	}
	return s.Options.Prefix
}

func (s *EtcdSource) Load() (map[string]any, error) {
	cli, err := s.newClient()
	if err != nil {
		return nil, err
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.Options.Timeout)
	defer cancel()

	resp, err := cli.Get(ctx, s.prefix(), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to get config from etcd: %w", err)
	}

	result := make(map[string]any)
	for _, kv := range resp.Kvs {
		key := string(kv.Key)
		value := string(kv.Value)

		if s.Options.Prefix != "" {
			key = strings.TrimPrefix(key, s.Options.Prefix)
		}
		key = strings.TrimPrefix(key, "/")
		if key == "" {
			continue
		}

		// 路径分隔符 / 转换为 :
		key = strings.ReplaceAll(key, "/", ":")
		setNestedValue(result, key, parseEtcdValue(value))
	}

	return result, nil
}

// parseEtcdValue 依次尝试 JSON、YAML，都失败则保持字符串
func parseEtcdValue(value string) any {
	var jsonValue any
	if err := json.Unmarshal([]byte(value), &jsonValue); err == nil {
		return jsonValue
	}
	var yamlValue any
	if err := yaml.Unmarshal([]byte(value), &yamlValue); err == nil {
		return yamlValue
	}
	return value
}

// StartWatch 启动 etcd 前缀监听，任何键变更时触发 onChange
func (s *EtcdSource) StartWatch(ctx context.Context, onChange func()) error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchClient != nil {
		return nil
	}

	cli, err := s.newClient()
	if err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchClient = cli
	s.watchCancel = cancel

	go func() {
		ch := cli.Watch(watchCtx, s.prefix(), clientv3.WithPrefix())
		for resp := range ch {
			if resp.Canceled {
				return
			}
			if len(resp.Events) > 0 {
				onChange()
			}
		}
	}()

	return nil
}

// StopWatch 停止监听并关闭客户端
func (s *EtcdSource) StopWatch() error {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchClient == nil {
		return nil
	}

	s.watchCancel()
	err := s.watchClient.Close()
	s.watchClient = nil
	s.watchCancel = nil
	return err
}
