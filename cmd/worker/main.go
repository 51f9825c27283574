package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AronAlan/buyi-picture/internal/kafka"
	"github.com/AronAlan/buyi-picture/internal/quota"
	"github.com/AronAlan/buyi-picture/internal/repository"
	"github.com/AronAlan/buyi-picture/internal/service"
	"github.com/AronAlan/buyi-picture/internal/source"
	"github.com/AronAlan/buyi-picture/internal/storage"
	"github.com/AronAlan/buyi-picture/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// config / envs
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// logger
	zlog.InitConsole()
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// DB + storage
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	strg := storage.NewPictureStorage(appConfig, 10*time.Second)

	// repositories
	pictureRepo := repository.NewPostgresPictureRepo(dbConn)
	spaceRepo := repository.NewPostgresSpaceRepo(dbConn)
	taskRepo := repository.NewPostgresBatchTaskRepo(dbConn)

	// services; the worker never publishes, so the queue side is a stub
	ledger := quota.NewLedger(spaceRepo, quota.DefaultReservationTTL)
	pictureSvc := service.NewPictureService(pictureRepo, spaceRepo, ledger, strg)
	batchSvc := service.NewBatchService(taskRepo, spaceRepo, pictureSvc, source.NewClient(appConfig), NoopPublisher{})

	// wait for kafka and attach as consumer
	broker := appConfig.GetString("KAFKA_BROKER")
	kafka.WaitReady(broker, 5*time.Second)
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	topic := appConfig.GetString("KAFKA_TOPIC")
	groupID := appConfig.GetString("KAFKA_GROUPID")
	cons := wbfkafka.NewConsumer([]string{broker}, topic, groupID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cons.StartConsuming(ctx, queue, retryStrategy)

	go worker.NewWorkerInstance(batchSvc, queue, cons).StartWorker(ctx)

	// holds are swept lazily on every ledger call; this catches spaces no
	// running batch touches anymore
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ledger.Sweep()
			}
		}
	}()

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()

	shutdown(cons, dbConn)
	log.Println("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-reader:", err)
	}
	log.Println("Kafka-consumer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
