package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"

	"goim-chat/pkg/config"
)

// NewGinEngine 创建Gin引擎，只带健康检查
func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Unix(),
		})
	})
	return r
}

// HTTPServer Gin HTTP服务器
type HTTPServer struct {
	engine *gin.Engine
	server *http.Server
	logger kratoslog.Logger
}

// NewHTTPServer 创建HTTP服务器。WriteTimeout 不设置，WebSocket长连接自行管理超时
func NewHTTPServer(c config.HTTPConfig, logger kratoslog.Logger) *HTTPServer {
	engine := NewGinEngine()
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPServer{
		engine: engine,
		server: &http.Server{
			Addr:              c.Addr,
			Handler:           engine,
			ReadHeaderTimeout: timeout,
		},
		logger: logger,
	}
}

// Engine 获取Gin引擎
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// Start 监听端口后在后台处理请求
func (s *HTTPServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.logger.Log(kratoslog.LevelInfo, "msg", "HTTP server listening", "addr", lis.Addr().String())
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Log(kratoslog.LevelError, "msg", "HTTP server stopped unexpectedly", "error", err)
		}
	}()
	return nil
}

// Stop 优雅关闭
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Log(kratoslog.LevelInfo, "msg", "HTTP server stopping")
	return s.server.Shutdown(ctx)
}
