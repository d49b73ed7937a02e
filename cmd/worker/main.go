package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"hiring-backend/internal/bootstrap"
	"hiring-backend/internal/queue"
	"hiring-backend/internal/shared/config"
	"hiring-backend/internal/shared/metrics"
	"hiring-backend/internal/shared/telemetry"
	"hiring-backend/internal/workerproc"
)

const (
	defaultVisibilitySeconds  = 300
	defaultShutdownTimeoutSec = 30
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	telemetry.SetLogger(telemetry.New(cfg.LogLevel, cfg.LogFormat))
	defer telemetry.Sync()

	if cfg.QueueURL == "" {
		log.Fatal("QUEUE_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	visibilitySeconds := envInt("WORKER_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)
	shutdownTimeout := time.Duration(envInt("WORKER_SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second
	concurrency := max(1, cfg.WorkerConcurrency)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("load aws config: %v", err)
	}
	var sqsClient sqsAPI = sqs.NewFromConfig(awsCfg)

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runExpirySweep(ctx, app.ApplicationsService, cfg.ExpirySweepInterval, cfg.InterviewStartTTL, time.Now)
	}()

	sem := make(chan struct{}, concurrency)

	telemetry.Info("worker.started", map[string]any{
		"queue_url":          cfg.QueueURL,
		"concurrency":        concurrency,
		"visibility_seconds": visibilitySeconds,
	})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(cfg.QueueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleMessage(ctx, sqsClient, cfg.QueueURL, app.Dispatcher, m)
			}(msg)
		}
	}

	telemetry.Info("worker.shutdown", map[string]any{"timeout": shutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"timeout": shutdownTimeout.String()})
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// handleMessage deletes the message once it is processed or can never be.
// Transient failures are left for SQS to redeliver after the visibility
// timeout.
func handleMessage(ctx context.Context, client sqsAPI, queueURL string, proc workerproc.Processor, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, decoded)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.message.unreadable", fields)
		if deleteMessage(ctx, client, queueURL, msg, decoded) {
			metrics.WorkerMessages.WithLabelValues(kindLabel(decoded.Kind), "dropped").Inc()
		}
		return
	}

	telemetry.Info("worker.message.received", baseFields(msg, decoded))

	ctxWithParsed := workerproc.WithParsedMessage(ctx, decoded)
	if err := workerproc.HandleMessage(ctxWithParsed, proc, body); err != nil {
		fields := baseFields(msg, decoded)
		fields["error"] = err.Error()

		var procErr workerproc.ErrProcess
		if errors.As(err, &procErr) && procErr.Permanent {
			telemetry.Warn("worker.message.discarded", fields)
			if deleteMessage(ctx, client, queueURL, msg, decoded) {
				metrics.WorkerMessages.WithLabelValues(kindLabel(decoded.Kind), "dropped").Inc()
			}
			return
		}
		telemetry.Error("worker.message.failed", fields)
		metrics.WorkerMessages.WithLabelValues(kindLabel(decoded.Kind), "failed").Inc()
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded) {
		telemetry.Info("worker.message.completed", baseFields(msg, decoded))
		metrics.WorkerMessages.WithLabelValues(kindLabel(decoded.Kind), "completed").Inc()
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, decoded queue.Message) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, decoded)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.message.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, decoded)
		fields["error"] = err.Error()
		telemetry.Error("worker.message.delete_failed", fields)
		return false
	}
	return true
}

// expirer is the slice of the application service the sweep needs.
type expirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int, error)
}

// runExpirySweep expires applications that never reached an interview
// within ttl, once per interval until ctx ends.
func runExpirySweep(ctx context.Context, svc expirer, interval, ttl time.Duration, now func() time.Time) {
	if svc == nil || interval <= 0 || ttl <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, svc, ttl, now)
		}
	}
}

func sweepOnce(ctx context.Context, svc expirer, ttl time.Duration, now func() time.Time) int {
	cutoff := now().UTC().Add(-ttl)
	n, err := svc.ExpireStale(ctx, cutoff)
	fields := map[string]any{"cutoff": cutoff.Format(time.RFC3339), "expired": n}
	if err != nil {
		fields["error"] = err.Error()
		telemetry.Error("worker.expiry_sweep_failed", fields)
		return n
	}
	if n > 0 {
		telemetry.Info("worker.expiry_sweep", fields)
	}
	return n
}

func baseFields(msg sqstypes.Message, decoded queue.Message) map[string]any {
	fields := map[string]any{
		"application_id": decoded.ApplicationID,
		"kind":           string(decoded.Kind),
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(decoded.RequestID) != "" {
		fields["request_id"] = decoded.RequestID
	}
	return fields
}

func kindLabel(k queue.Kind) string {
	if k.Valid() {
		return string(k)
	}
	return "unknown"
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
