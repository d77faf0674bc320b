package server

import (
	"context"
	"errors"
	"fmt"
)

// Server 通用服务器接口：Start 不阻塞
type Server interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Manager 统一管理服务器启停
type Manager struct {
	servers []Server
	started []Server
}

// Add 加入管理列表
func (m *Manager) Add(s Server) {
	m.servers = append(m.servers, s)
}

// StartAll 依次启动，失败时关闭已启动的
func (m *Manager) StartAll(ctx context.Context) error {
	for _, s := range m.servers {
		if err := s.Start(ctx); err != nil {
			_ = m.StopAll(ctx)
			return fmt.Errorf("start server: %w", err)
		}
		m.started = append(m.started, s)
	}
	return nil
}

// StopAll 逆序停止已启动的服务器
func (m *Manager) StopAll(ctx context.Context) error {
	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		if err := m.started[i].Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	m.started = nil
	return errors.Join(errs...)
}
