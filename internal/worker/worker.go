// Package worker consumes the batch-task queue and drives tasks through
// the ingestion pipeline.
package worker

import (
	"context"
	"errors"
	"log"

	"github.com/AronAlan/buyi-picture/internal/model"
	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
)

// BatchRunner - the slice of the batch service the worker needs
type BatchRunner interface {
	RunTask(ctx context.Context, id string) error
}

type Worker struct {
	service  BatchRunner
	queue    <-chan kafkago.Message
	consumer *wbfkafka.Consumer
}

func NewWorkerInstance(svc BatchRunner, q <-chan kafkago.Message, cons *wbfkafka.Consumer) *Worker {
	return &Worker{service: svc, queue: q, consumer: cons}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return
			}
			id := string(msg.Key)
			if err := w.service.RunTask(ctx, id); err != nil && !errors.Is(err, model.ErrTaskNotFound) {
				log.Printf("Task %s failed: %v", id, err)
				continue
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit queue-message: %v", err)
			}
		}
	}
}
