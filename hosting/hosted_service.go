package hosting

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gobeans/beans/logging"
)

// HostedService 托管服务接口（类似于 .NET Core IHostedService）
// 框架会自动在 goroutine 中调用 Start，用户无需自己启动 goroutine
type HostedService interface {
	// Start 启动服务。该方法应阻塞执行，直到 context 被取消或发生错误。
	// 框架会在独立的 goroutine 中调用此方法。
	Start(ctx context.Context) error

	// Stop 执行优雅关闭逻辑。
	// 注意：当 Start 的 context 被取消时，服务应自动停止。
	// Stop 方法用于执行额外的清理工作（可选）。
	Stop(ctx context.Context) error
}

type hostedEntry struct {
	name    string
	service HostedService
}

// HostedServiceManager 托管服务管理器
type HostedServiceManager struct {
	entries []hostedEntry
	logger  logging.Logger
	mu      sync.RWMutex
	wg      sync.WaitGroup
}

// NewHostedServiceManager 创建托管服务管理器
func NewHostedServiceManager(logger logging.Logger) *HostedServiceManager {
	return &HostedServiceManager{
		entries: make([]hostedEntry, 0),
		logger:  logger,
	}
}

// Add 添加托管服务
func (m *HostedServiceManager) Add(service HostedService) {
	m.AddNamed(fmt.Sprintf("%T", service), service)
}

// AddNamed 以名称添加托管服务，名称用于日志标识
func (m *HostedServiceManager) AddNamed(name string, service HostedService) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, hostedEntry{name: name, service: service})
}

// StartAll 启动所有托管服务
// 每个服务在独立的 goroutine 中启动，启动失败通过返回的通道上报
func (m *HostedServiceManager) StartAll(ctx context.Context) <-chan error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errCh := make(chan error, len(m.entries))

	m.logger.Info(fmt.Sprintf("Starting %d hosted services", len(m.entries)))

	for _, entry := range m.entries {
		m.wg.Add(1)
		go func(e hostedEntry) {
			defer m.wg.Done()

			m.logger.Debug("Starting hosted service",
				logging.Field{Key: "service", Value: e.name})

			if err := e.service.Start(ctx); err != nil {
				// 区分正常的 context 取消和真正的错误
				if err == context.Canceled || err == context.DeadlineExceeded {
					m.logger.Debug("Hosted service stopped (context done)",
						logging.Field{Key: "service", Value: e.name})
				} else {
					m.logger.Error("Hosted service error",
						logging.Field{Key: "service", Value: e.name},
						logging.Field{Key: "error", Value: err.Error()})
					select {
					case errCh <- err:
					default:
					}
				}
				return
			}

			m.logger.Info("Hosted service completed",
				logging.Field{Key: "service", Value: e.name})
		}(entry)
	}

	return errCh
}

// StopAll 并发停止所有托管服务，后注册的先收到停止请求
func (m *HostedServiceManager) StopAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.logger.Info(fmt.Sprintf("Stopping %d hosted services", len(m.entries)))

	var wg sync.WaitGroup
	for i := len(m.entries) - 1; i >= 0; i-- {
		entry := m.entries[i]

		wg.Add(1)
		go func(e hostedEntry) {
			defer wg.Done()

			if err := e.service.Stop(ctx); err != nil {
				m.logger.Error("Failed to stop hosted service",
					logging.Field{Key: "service", Value: e.name},
					logging.Field{Key: "error", Value: err.Error()})
			} else {
				m.logger.Debug("Hosted service stopped",
					logging.Field{Key: "service", Value: e.name})
			}
		}(entry)
	}

	wg.Wait()
	m.logger.Info("All hosted services stopped")
	return nil
}

// Wait 等待所有服务的 Start goroutine 退出
func (m *HostedServiceManager) Wait() {
	m.wg.Wait()
}

// BackgroundService 后台服务基类
type BackgroundService struct {
	name   string
	logger logging.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBackgroundService 创建后台服务
func NewBackgroundService(name string, logger logging.Logger) *BackgroundService {
	return &BackgroundService{
		name:   name,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start 启动后台服务，阻塞直到停止信号或上下文取消
func (s *BackgroundService) Start(ctx context.Context) error {
	s.logger.Info(fmt.Sprintf("BackgroundService '%s' starting", s.name))

	select {
	case <-s.stopCh:
		s.logger.Info(fmt.Sprintf("BackgroundService '%s' stopped by signal", s.name))
	case <-ctx.Done():
		s.logger.Info(fmt.Sprintf("BackgroundService '%s' context cancelled", s.name))
	}

	s.Done()
	return nil
}

// Stop 停止后台服务
func (s *BackgroundService) Stop(ctx context.Context) error {
	close(s.stopCh)

	select {
	case <-s.doneCh:
		s.logger.Info(fmt.Sprintf("BackgroundService '%s' stopped gracefully", s.name))
	case <-ctx.Done():
		s.logger.Warn(fmt.Sprintf("BackgroundService '%s' stop timeout", s.name))
		return ctx.Err()
	}

	return nil
}

// ShouldStop 检查是否应该停止
func (s *BackgroundService) ShouldStop() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

// StopChan 返回停止通道，用于在 select 中监听
func (s *BackgroundService) StopChan() <-chan struct{} {
	return s.stopCh
}

// Done 标记服务完成
func (s *BackgroundService) Done() {
	select {
	case <-s.doneCh:
		return
	default:
		close(s.doneCh)
	}
}

// TimedHostedService 定时托管服务
type TimedHostedService struct {
	*BackgroundService
	interval time.Duration
	task     func(ctx context.Context) error
}

// NewTimedHostedService 创建定时托管服务
func NewTimedHostedService(name string, interval time.Duration, task func(ctx context.Context) error, logger logging.Logger) *TimedHostedService {
	return &TimedHostedService{
		BackgroundService: NewBackgroundService(name, logger),
		interval:          interval,
		task:              task,
	}
}

// Start 启动定时服务
func (s *TimedHostedService) Start(ctx context.Context) error {
	s.logger.Info(fmt.Sprintf("TimedHostedService '%s' running with interval %v", s.name, s.interval))
	return s.run(ctx)
}

func (s *TimedHostedService) run(ctx context.Context) error {
	defer s.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.task(ctx); err != nil {
				s.logger.Error(fmt.Sprintf("TimedHostedService '%s' task failed", s.name),
					logging.Field{Key: "error", Value: err.Error()})
			}
		case <-s.stopCh:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
