package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"errors"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"hiring-backend/internal/bootstrap"
	"hiring-backend/internal/shared/config"
	"hiring-backend/internal/shared/metrics"
	"hiring-backend/internal/shared/telemetry"
	"hiring-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp(ctx context.Context) {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	telemetry.SetLogger(telemetry.New(cfg.LogLevel, cfg.LogFormat))
	app, initErr = bootstrap.Build(ctx, cfg)
}

func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(func() { initApp(ctx) })
	if initErr != nil {
		telemetry.Error("lambda_worker.bootstrap_failed", map[string]any{"error": initErr.Error()})
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}
	return events.SQSEventResponse{BatchItemFailures: processRecords(ctx, app.Dispatcher, event.Records)}, nil
}

// processRecords reports only transient failures back to SQS. Unreadable
// bodies and permanent processing errors are logged and dropped.
func processRecords(ctx context.Context, proc workerproc.Processor, records []events.SQSMessage) []events.SQSBatchItemFailure {
	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range records {
		msg, _, err := workerproc.ParseMessage(record.Body)
		if err != nil {
			telemetry.Error("lambda_worker.message.unreadable", map[string]any{
				"sqs_message_id": record.MessageId,
				"error":          err.Error(),
			})
			continue
		}
		fields := map[string]any{
			"sqs_message_id": record.MessageId,
			"application_id": msg.ApplicationID,
			"kind":           string(msg.Kind),
		}
		err = workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, msg), proc, record.Body)
		if err == nil {
			metrics.WorkerMessages.WithLabelValues(string(msg.Kind), "completed").Inc()
			continue
		}
		fields["error"] = err.Error()
		var procErr workerproc.ErrProcess
		if errors.As(err, &procErr) && procErr.Permanent {
			telemetry.Warn("lambda_worker.message.discarded", fields)
			metrics.WorkerMessages.WithLabelValues(string(msg.Kind), "dropped").Inc()
			continue
		}
		telemetry.Error("lambda_worker.message.failed", fields)
		metrics.WorkerMessages.WithLabelValues(string(msg.Kind), "failed").Inc()
		failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
	}
	return failures
}

func main() {
	lambda.Start(handler)
}
