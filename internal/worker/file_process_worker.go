package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"docspace/internal/platform/rabbitmq"
)

// Pipeline is the per-file processing entrypoint the worker drives.
type Pipeline interface {
	Process(ctx context.Context, fileID uint) error
}

// FileProcessWorker consumes file-processing jobs and runs the
// extract/chunk/embed/store pipeline. Each delivery is one file; a
// failed run nacks without requeue since the failure is already
// recorded on the file's status.
type FileProcessWorker struct {
	conn      *amqp.Connection
	pipeline  Pipeline
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewFileProcessWorker(conn *amqp.Connection, pipeline Pipeline, queueName string) *FileProcessWorker {
	return &FileProcessWorker{
		conn:      conn,
		pipeline:  pipeline,
		queueName: queueName,
	}
}

func (w *FileProcessWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var job rabbitmq.FileProcessJob
				if err := json.Unmarshal(d.Body, &job); err != nil {
					log.Printf("worker decode job failed: %v", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.pipeline.Process(workerCtx, job.FileID); err != nil {
					log.Printf("worker process file %d failed: %v", job.FileID, err)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *FileProcessWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
