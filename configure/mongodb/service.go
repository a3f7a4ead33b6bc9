package mongodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoOptions MongoDB 客户端配置选项
type MongoOptions struct {
	Name        string        // 客户端名称
	Uri         string        // 连接字符串
	Username    string        // 用户名（可选）
	Password    string        // 密码（可选）
	MaxPoolSize uint64        // 最大连接池大小
	MinPoolSize uint64        // 最小连接池大小
	Timeout     time.Duration // 连接超时时间
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(name string) *MongoOptions {
	return &MongoOptions{
		Name:        name,
		Uri:         "mongodb://localhost:27017",
		MaxPoolSize: 100,
		MinPoolSize: 0,
		Timeout:     10 * time.Second,
	}
}

// Validate 验证配置
func (o *MongoOptions) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("mongodb client name is required")
	}
	if o.Uri == "" {
		return fmt.Errorf("mongodb uri is required")
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("mongodb timeout must be positive")
	}
	return nil
}

// MongoClientFactory MongoDB 客户端工厂
type MongoClientFactory struct {
	clients map[string]*mongo.Client
	mu      sync.RWMutex
}

// NewMongoClientFactory 创建客户端工厂
func NewMongoClientFactory() *MongoClientFactory {
	return &MongoClientFactory{
		clients: make(map[string]*mongo.Client),
	}
}

// Register 注册 MongoDB 客户端
func (f *MongoClientFactory) Register(opts MongoOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.clients[opts.Name]; exists {
		return fmt.Errorf("mongodb client '%s' already registered", opts.Name)
	}

	clientOpts := options.Client().
		ApplyURI(opts.Uri).
		SetMaxPoolSize(opts.MaxPoolSize).
		SetMinPoolSize(opts.MinPoolSize).
		SetConnectTimeout(opts.Timeout)

	if opts.Username != "" {
		clientOpts.SetAuth(options.Credential{
			Username: opts.Username,
			Password: opts.Password,
		})
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return fmt.Errorf("failed to create mongodb client: %w", err)
	}

	f.clients[opts.Name] = client
	return nil
}

// Get 获取指定名称的客户端
func (f *MongoClientFactory) Get(name string) (*mongo.Client, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	client, exists := f.clients[name]
	if !exists {
		return nil, fmt.Errorf("mongodb client '%s' not found", name)
	}
	return client, nil
}

// Each 遍历所有客户端
func (f *MongoClientFactory) Each(fn func(name string, client *mongo.Client)) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for name, client := range f.clients {
		fn(name, client)
	}
}

// Close 断开所有 MongoDB 客户端连接
func (f *MongoClientFactory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	for name, client := range f.clients {
		if err := client.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect client '%s': %w", name, err))
		}
	}

	f.clients = make(map[string]*mongo.Client)

	if len(errs) > 0 {
		return fmt.Errorf("errors disconnecting mongodb clients: %v", errs)
	}

	return nil
}
