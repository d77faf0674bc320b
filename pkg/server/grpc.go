package server

import (
	"context"
	"net"

	kratoslog "github.com/go-kratos/kratos/v2/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"goim-chat/pkg/config"
)

// GRPCServer gRPC服务器，默认注册标准健康检查服务
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	addr   string
	logger kratoslog.Logger
}

// NewGRPCServer 创建gRPC服务器
func NewGRPCServer(c config.GRPCConfig, logger kratoslog.Logger, opts ...grpc.ServerOption) *GRPCServer {
	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &GRPCServer{server: srv, health: hs, addr: c.Addr, logger: logger}
}

// Server 获取底层gRPC服务器
func (s *GRPCServer) Server() *grpc.Server {
	return s.server
}

// SetServing 更新某个服务的健康状态，空名称表示整体
func (s *GRPCServer) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, status)
}

// Start 监听端口后在后台处理请求
func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.logger.Log(kratoslog.LevelInfo, "msg", "gRPC server listening", "addr", lis.Addr().String())
	go func() {
		if err := s.server.Serve(lis); err != nil {
			s.logger.Log(kratoslog.LevelError, "msg", "gRPC server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Stop 先标记不可用再优雅关闭
func (s *GRPCServer) Stop(ctx context.Context) error {
	s.logger.Log(kratoslog.LevelInfo, "msg", "gRPC server stopping")
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}
	return nil
}
