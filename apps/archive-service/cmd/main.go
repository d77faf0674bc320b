package main

import (
	"context"

	"github.com/gin-gonic/gin"

	"goim-chat/apps/archive-service/consumer"
	"goim-chat/apps/archive-service/dao"
	"goim-chat/apps/archive-service/handler"
	"goim-chat/pkg/kafka"
	"goim-chat/pkg/server"
)

func main() {
	app, err := server.NewApplication("archive-service", server.WithMongoDB())
	if err != nil {
		panic("Failed to create archive service: " + err.Error())
	}
	cfg := app.GetConfig()
	log := app.GetLogger()

	archiveDAO, err := dao.NewMongoDAO(context.Background(), app.GetMongoDB())
	if err != nil {
		panic(err)
	}

	app.EnableHTTP()
	app.EnableGRPC()

	httpHandler := handler.NewHTTPHandler(archiveDAO, log)
	app.RegisterHTTPRoutes(func(engine *gin.Engine) {
		httpHandler.RegisterRoutes(engine)
	})

	// 消费 chat-service 镜像到Kafka的事件流
	archiver := consumer.NewArchiveConsumer(archiveDAO, log)
	app.AddWorker("archive-consumer", func(ctx context.Context) error {
		return archiver.Start(ctx, kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			GroupID: cfg.Kafka.GroupID,
			Topics:  []string{cfg.Kafka.Topic},
		})
	}, archiver.Stop)

	if err := app.Run(); err != nil {
		panic(err)
	}
}
