package lifecycle

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	kratoslog "github.com/go-kratos/kratos/v2/log"
)

// Priority分级，数字越小越先启动、越后停止
const (
	PriorityInfra   = 0   // Redis、Kafka、MongoDB、Tracing
	PriorityServer  = 100 // HTTP、gRPC
	PriorityWorker  = 200 // Kafka消费者等后台任务
	defaultStopWait = 30 * time.Second
)

// Hook 生命周期钩子
type Hook struct {
	Name     string
	OnStart  func(context.Context) error
	OnStop   func(context.Context) error
	Priority int
}

// Manager 生命周期管理器
type Manager struct {
	logger   kratoslog.Logger
	hooks    []Hook
	started  int
	stopWait time.Duration
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// NewManager 创建生命周期管理器
func NewManager(logger kratoslog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		logger:   logger,
		stopWait: defaultStopWait,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// AddHook 添加钩子，同优先级按添加顺序
func (m *Manager) AddHook(hook Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
	sort.SliceStable(m.hooks, func(i, j int) bool { return m.hooks[i].Priority < m.hooks[j].Priority })
}

// Start 按优先级启动。任一钩子失败时，已启动的钩子逆序停止
func (m *Manager) Start() error {
	m.mu.Lock()
	hooks := append([]Hook(nil), m.hooks...)
	m.mu.Unlock()

	m.logger.Log(kratoslog.LevelInfo, "msg", "Starting lifecycle hooks", "count", len(hooks))
	for i, hook := range hooks {
		if hook.OnStart != nil {
			if err := hook.OnStart(m.ctx); err != nil {
				m.logger.Log(kratoslog.LevelError, "msg", "Hook start failed", "name", hook.Name, "error", err)
				m.setStarted(i)
				_ = m.Stop()
				return fmt.Errorf("start %s: %w", hook.Name, err)
			}
			m.logger.Log(kratoslog.LevelInfo, "msg", "Hook started", "name", hook.Name)
		}
	}
	m.setStarted(len(hooks))
	return nil
}

func (m *Manager) setStarted(n int) {
	m.mu.Lock()
	m.started = n
	m.mu.Unlock()
}

// Stop 逆序停止已启动的钩子，只执行一次，返回第一个错误
func (m *Manager) Stop() error {
	var stopErr error
	m.stopOnce.Do(func() {
		m.mu.Lock()
		hooks := append([]Hook(nil), m.hooks[:m.started]...)
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.stopWait)
		defer cancel()

		for i := len(hooks) - 1; i >= 0; i-- {
			hook := hooks[i]
			if hook.OnStop == nil {
				continue
			}
			if err := hook.OnStop(ctx); err != nil {
				m.logger.Log(kratoslog.LevelError, "msg", "Hook stop failed", "name", hook.Name, "error", err)
				if stopErr == nil {
					stopErr = err
				}
				continue
			}
			m.logger.Log(kratoslog.LevelInfo, "msg", "Hook stopped", "name", hook.Name)
		}

		m.cancel()
		close(m.done)
	})
	return stopErr
}

// Wait 阻塞直到收到退出信号或 Stop 被调用
func (m *Manager) Wait() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		m.logger.Log(kratoslog.LevelInfo, "msg", "Received signal", "signal", sig.String())
		return m.Stop()
	case <-m.done:
		return nil
	}
}

// Context 随 Stop 取消
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Done 停止完成后关闭
func (m *Manager) Done() <-chan struct{} {
	return m.done
}
