package server

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	kratoslog "github.com/go-kratos/kratos/v2/log"
	"google.golang.org/grpc"

	"goim-chat/pkg/config"
	"goim-chat/pkg/database"
	"goim-chat/pkg/kafka"
	"goim-chat/pkg/lifecycle"
	"goim-chat/pkg/logger"
	"goim-chat/pkg/middleware"
	"goim-chat/pkg/redis"
	"goim-chat/pkg/telemetry"
)

// Option 按需启用的基础设施
type Option func(*Application)

// WithRedis 连接Redis（存储与实时总线）
func WithRedis() Option {
	return func(app *Application) { app.useRedis = true }
}

// WithMongoDB 连接MongoDB
func WithMongoDB() Option {
	return func(app *Application) { app.useMongo = true }
}

// WithKafkaProducer kafka.enabled 为 true 时创建生产者
func WithKafkaProducer() Option {
	return func(app *Application) { app.useProducer = true }
}

// Application 应用程序框架
type Application struct {
	serviceName string
	config      *config.Config
	log         logger.Logger
	klog        kratoslog.Logger
	lifecycle   *lifecycle.Manager
	servers     Manager

	useRedis    bool
	useMongo    bool
	useProducer bool

	// 基础设施组件
	redisClient   *redis.RedisClient
	mongoDB       *database.MongoDB
	kafkaProducer *kafka.Producer
	tracer        *telemetry.Provider

	httpServer *HTTPServer
	grpcServer *GRPCServer
}

// NewApplication 加载配置并初始化基础设施
func NewApplication(serviceName string, opts ...Option) (*Application, error) {
	cfg, err := config.LoadConfig(serviceName)
	if err != nil {
		return nil, err
	}

	log, err := logger.NewLogger(cfg.App.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	klog := logger.NewKratosLogger(log, cfg.App.Name, cfg.App.Version)

	app := &Application{
		serviceName: serviceName,
		config:      cfg,
		log:         log,
		klog:        klog,
		lifecycle:   lifecycle.NewManager(klog),
	}
	for _, opt := range opts {
		opt(app)
	}

	if err := app.initInfrastructure(); err != nil {
		return nil, err
	}
	return app, nil
}

// initInfrastructure 初始化基础设施并注册关闭钩子
func (app *Application) initInfrastructure() error {
	ctx := context.Background()

	if app.config.Telemetry.Enabled {
		tp, err := telemetry.NewProvider(app.config.App, app.config.Telemetry)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		app.tracer = tp
		app.addInfraHook("tracing", tp.Shutdown)
	}

	if app.useRedis {
		app.redisClient = redis.NewRedisClient(app.config.Redis)
		if err := app.redisClient.Ping(ctx); err != nil {
			app.klog.Log(kratoslog.LevelWarn, "msg", "Redis not reachable at startup", "addr", app.config.Redis.Addr, "error", err)
		}
		app.addInfraHook("redis", func(context.Context) error { return app.redisClient.Close() })
	}

	if app.useMongo {
		mongoDB, err := database.NewMongoDB(ctx, app.config.MongoDB)
		if err != nil {
			return err
		}
		app.mongoDB = mongoDB
		app.addInfraHook("mongodb", mongoDB.Close)
	}

	if app.useProducer && app.config.Kafka.Enabled {
		producer, err := kafka.InitProducer(app.config.Kafka.Brokers, app.log)
		if err != nil {
			return fmt.Errorf("init kafka producer: %w", err)
		}
		app.kafkaProducer = producer
		app.addInfraHook("kafka-producer", func(context.Context) error { return producer.Close() })
	}
	return nil
}

func (app *Application) addInfraHook(name string, stop func(context.Context) error) {
	app.lifecycle.AddHook(lifecycle.Hook{Name: name, Priority: lifecycle.PriorityInfra, OnStop: stop})
}

// EnableHTTP 启用HTTP服务器并挂载公共中间件
func (app *Application) EnableHTTP() *HTTPServer {
	if app.httpServer != nil {
		return app.httpServer
	}
	app.httpServer = NewHTTPServer(app.config.Server.HTTP, app.klog)

	lm := middleware.NewLoggingMiddleware(app.klog)
	am := middleware.NewAuthMiddleware(app.klog, app.config.App.JWTSecret)
	app.httpServer.Engine().Use(
		middleware.Tracing(app.serviceName),
		middleware.RequestID(),
		lm.GinLogging(),
		lm.GinRecovery(),
		am.GinAuth(),
	)
	app.servers.Add(app.httpServer)
	return app.httpServer
}

// EnableGRPC 启用gRPC服务器（server.grpc.enabled 为 false 时返回 nil）
func (app *Application) EnableGRPC() *GRPCServer {
	if !app.config.Server.GRPC.Enabled {
		return nil
	}
	if app.grpcServer != nil {
		return app.grpcServer
	}
	lm := middleware.NewLoggingMiddleware(app.klog)
	app.grpcServer = NewGRPCServer(app.config.Server.GRPC, app.klog,
		grpc.ChainUnaryInterceptor(lm.GRPCRecovery(), lm.GRPCLogging()))
	app.servers.Add(app.grpcServer)
	return app.grpcServer
}

// RegisterHTTPRoutes 注册HTTP路由
func (app *Application) RegisterHTTPRoutes(registerFunc func(*gin.Engine)) {
	registerFunc(app.EnableHTTP().Engine())
}

// AddWorker 注册后台任务，run 在独立goroutine中执行直到 ctx 取消
func (app *Application) AddWorker(name string, run func(ctx context.Context) error, stop func(ctx context.Context) error) {
	app.lifecycle.AddHook(lifecycle.Hook{
		Name:     name,
		Priority: lifecycle.PriorityWorker,
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := run(ctx); err != nil && ctx.Err() == nil {
					app.klog.Log(kratoslog.LevelError, "msg", "Worker exited", "name", name, "error", err)
				}
			}()
			return nil
		},
		OnStop: stop,
	})
}

// GetRedisClient 获取Redis客户端
func (app *Application) GetRedisClient() *redis.RedisClient {
	return app.redisClient
}

// GetMongoDB 获取MongoDB连接
func (app *Application) GetMongoDB() *database.MongoDB {
	return app.mongoDB
}

// GetKafkaProducer 获取Kafka生产者，未启用时为 nil
func (app *Application) GetKafkaProducer() *kafka.Producer {
	return app.kafkaProducer
}

// GetLogger 获取日志器
func (app *Application) GetLogger() logger.Logger {
	return app.log
}

// GetConfig 获取配置
func (app *Application) GetConfig() *config.Config {
	return app.config
}

// Run 启动全部组件并阻塞到退出信号
func (app *Application) Run() error {
	app.lifecycle.AddHook(lifecycle.Hook{
		Name:     "servers",
		Priority: lifecycle.PriorityServer,
		OnStart: func(ctx context.Context) error {
			if err := app.servers.StartAll(ctx); err != nil {
				return err
			}
			if app.grpcServer != nil {
				app.grpcServer.SetServing("", true)
			}
			return nil
		},
		OnStop: app.servers.StopAll,
	})

	if err := app.lifecycle.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", app.serviceName, err)
	}
	app.log.Info(context.Background(), "Service started", logger.F("service", app.serviceName))
	return app.lifecycle.Wait()
}
