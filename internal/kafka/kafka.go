// Package kafka bootstraps the batch-task queue: broker readiness probing
// and topic creation on startup.
package kafka

import (
	"context"
	"errors"
	"log"
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// The queue carries task ids only; a single partition keeps delivery order
// trivial, and the compose setup runs one broker.
const (
	taskTopicPartitions  = 1
	taskTopicReplication = 1
)

// EnsureTopics keeps issuing the creation request until every topic exists.
// A topic that is already there counts as created.
func EnsureTopics(ctx context.Context, brokerAddr string, delay time.Duration, topics ...string) {
	client := &kafkago.Client{
		Addr:    kafkago.TCP(brokerAddr),
		Timeout: 10 * time.Second,
	}

	configs := make([]kafkago.TopicConfig, 0, len(topics))
	for _, name := range topics {
		configs = append(configs, kafkago.TopicConfig{
			Topic:             name,
			NumPartitions:     taskTopicPartitions,
			ReplicationFactor: taskTopicReplication,
		})
	}

	for {
		if ctx.Err() != nil {
			log.Println("Topic bootstrap canceled")
			return
		}

		resp, err := client.CreateTopics(ctx, &kafkago.CreateTopicsRequest{Topics: configs})
		if err != nil {
			log.Printf("Topic creation request failed: %v. Next try in %v...", err, delay)
			time.Sleep(delay)
			continue
		}

		pending := 0
		for name, topicErr := range resp.Errors {
			if topicErr == nil || errors.Is(topicErr, kafkago.TopicAlreadyExists) {
				continue
			}
			log.Printf("Topic %q not created yet: %v", name, topicErr)
			pending++
		}
		if pending == 0 {
			log.Println("Task-queue topics are in place")
			return
		}

		time.Sleep(delay)
	}
}

// WaitReady blocks until the broker accepts connections, so producers and
// consumers don't start against a broker that is still booting.
func WaitReady(brokerAddr string, delay time.Duration) {
	for {
		conn, err := kafkago.Dial("tcp", brokerAddr)
		if err == nil {
			if cErr := conn.Close(); cErr != nil {
				log.Println("Failed to close Kafka probe connection:", cErr)
			}
			log.Println("Kafka is ready!")
			return
		}
		log.Printf("Kafka not ready, retrying in %v...", delay)
		time.Sleep(delay)
	}
}
