// Package main (in api-subfolder) provides launch of the whole application except worker
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AronAlan/buyi-picture/internal/kafka"
	"github.com/AronAlan/buyi-picture/internal/mwlogger"
	"github.com/AronAlan/buyi-picture/internal/quota"
	"github.com/AronAlan/buyi-picture/internal/repository"
	"github.com/AronAlan/buyi-picture/internal/service"
	"github.com/AronAlan/buyi-picture/internal/source"
	"github.com/AronAlan/buyi-picture/internal/storage"
	"github.com/AronAlan/buyi-picture/internal/transport"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
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

	// app-wide interruption listener
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB + migrations
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)

	// object storage
	strg := storage.NewPictureStorage(appConfig, 10*time.Second)

	// repositories
	pictureRepo := repository.NewPostgresPictureRepo(dbConn)
	spaceRepo := repository.NewPostgresSpaceRepo(dbConn)
	userRepo := repository.NewPostgresUserRepo(dbConn)
	taskRepo := repository.NewPostgresBatchTaskRepo(dbConn)

	// kafka producer for batch tasks
	broker := appConfig.GetString("KAFKA_BROKER")
	kafka.WaitReady(broker, 5*time.Second)
	topic := appConfig.GetString("KAFKA_TOPIC")
	kafka.EnsureTopics(ctx, broker, 10*time.Second, topic)
	pub := wbfkafka.NewProducer([]string{broker}, topic)

	// services
	ledger := quota.NewLedger(spaceRepo, quota.DefaultReservationTTL)
	pictureSvc := service.NewPictureService(pictureRepo, spaceRepo, ledger, strg)
	spaceSvc := service.NewSpaceService(spaceRepo, pictureRepo)
	userSvc := service.NewUserService(userRepo)
	batchSvc := service.NewBatchService(taskRepo, spaceRepo, pictureSvc, source.NewClient(appConfig), pub)

	// HTTP surface
	handlers := transport.NewHandler(pictureSvc, spaceSvc, userSvc, batchSvc)
	engine := ginext.New(appConfig.GetString("GIN_MODE"))
	handlers.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// background maintenance: stuck tasks and abandoned quota holds
	go recoveryLoop(ctx, batchSvc, ledger)

	// wait for interruption to close kafka/db connections gracefully
	<-ctx.Done()

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Println("Failed to shut HTTP-server down:", err)
	}
	shutdown(pub, dbConn)
	log.Println("Exiting api...")
}

func recoveryLoop(ctx context.Context, svc BatchMaintenance, ledger *quota.Ledger) {
	defer func() {
		if r := recover(); r != nil {
			log.Println("Recovery loop crashed:", r)
		}
	}()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.ReviveOrphans(context.Background(), 20)
			ledger.Sweep()
		}
	}
}

func shutdown(pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-producer:", err)
	}
	log.Println("Kafka-producer connection closed.")

	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
