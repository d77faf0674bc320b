package main

import (
	"github.com/gin-gonic/gin"

	"goim-chat/apps/chat-service/dao"
	"goim-chat/apps/chat-service/handler"
	"goim-chat/apps/chat-service/service"
	"goim-chat/pkg/pubsub"
	"goim-chat/pkg/server"
)

func main() {
	// 创建应用程序
	app, err := server.NewApplication("chat-service", server.WithRedis(), server.WithKafkaProducer())
	if err != nil {
		panic("Failed to create chat service: " + err.Error())
	}
	cfg := app.GetConfig()
	log := app.GetLogger()

	app.EnableHTTP()
	app.EnableGRPC()

	// 实时总线走Redis，开启Kafka时镜像一份给归档服务
	var opts []pubsub.Option
	if producer := app.GetKafkaProducer(); producer != nil {
		opts = append(opts, pubsub.WithStream(producer, cfg.Kafka.Topic))
	}
	broadcaster := pubsub.NewBroadcaster(app.GetRedisClient(), log, opts...)

	store := dao.NewRedisStore(app.GetRedisClient(), cfg.Redis.Timeout)
	svc := service.NewService(store, broadcaster, log, cfg.Chat)

	httpHandler := handler.NewHTTPHandler(svc, log)
	wsHandler := handler.NewWSHandler(svc, app.GetRedisClient(), log)
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler.RegisterRoutes(engine)
		wsHandler.RegisterRoutes(engine)
	})

	// 运行应用程序
	if err := app.Run(); err != nil {
		panic(err)
	}
}
