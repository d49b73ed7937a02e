package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=arm64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"

	"hiring-backend/internal/bootstrap"
	"hiring-backend/internal/shared/config"
	"hiring-backend/internal/shared/telemetry"
)

var (
	initOnce  sync.Once
	initErr   error
	ginLambda *ginadapter.GinLambdaV2
)

func initApp(ctx context.Context) {
	cfg, err := config.Load()
	if err != nil {
		initErr = err
		return
	}
	telemetry.SetLogger(telemetry.New(cfg.LogLevel, cfg.LogFormat))
	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		initErr = err
		return
	}
	ginLambda = ginadapter.NewV2(app.Router)
}

func handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	initOnce.Do(func() { initApp(ctx) })
	if initErr != nil || ginLambda == nil {
		if initErr != nil {
			telemetry.Error("lambda_http.bootstrap_failed", map[string]any{"error": initErr.Error()})
		}
		body, _ := json.Marshal(map[string]any{"error": map[string]string{
			"code":    "internal_error",
			"message": "Unexpected server error",
		}})
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusInternalServerError,
			Body:       string(body),
			Headers:    map[string]string{"Content-Type": "application/json"},
		}, nil
	}
	return ginLambda.ProxyWithContext(ctx, req)
}

func main() {
	lambda.Start(handler)
}
