// Scheduled-reset entrypoint: one Lambda invocation performs one full reset
// synchronously and reports the run summary. Credentials come from SSM rather
// than the environment.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"diplomacy-reset/internal/integrations/paramstore"
	"diplomacy-reset/internal/integrations/slack"
	"diplomacy-reset/internal/usecase"
)

type Response struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
	Body       string            `json:"body"`
}

type runReport struct {
	RunID      string `json:"runId"`
	Dispatched int    `json:"dispatched"`
	Failed     int    `json:"failed"`
	Announced  bool   `json:"announced"`
}

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	paramPrefix := mustEnv("PARAM_PREFIX")
	maxInFlight := envInt("MAX_IN_FLIGHT", 64)
	maxPages := envInt("MAX_PAGES", 1000)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	secrets, err := paramstore.New(awsssm.NewFromConfig(cfg), paramPrefix)
	if err != nil {
		slog.Error("failed to create secrets resolver", "err", err)
		os.Exit(1)
	}
	slackToken, err := secrets.SlackToken(ctx)
	if err != nil {
		slog.Error("failed to resolve slack token", "err", err)
		os.Exit(1)
	}
	hookURL, err := secrets.WebhookURL(ctx)
	if err != nil {
		slog.Error("failed to resolve webhook URL", "err", err)
		os.Exit(1)
	}

	slackClient, err := slack.NewClient(slackToken, slack.WithMaxPages(maxPages))
	if err != nil {
		slog.Error("failed to create slack client", "err", err)
		os.Exit(1)
	}
	hook, err := slack.NewWebhook(hookURL)
	if err != nil {
		slog.Error("failed to create webhook client", "err", err)
		os.Exit(1)
	}

	resetService, err := usecase.NewResetService(slackClient, hook, slog.Default(), int64(maxInFlight))
	if err != nil {
		slog.Error("failed to create reset service", "err", err)
		os.Exit(1)
	}

	lambda.Start(func(ctx context.Context) (Response, error) {
		summary := resetService.Run(ctx)
		body, err := json.Marshal(runReport{
			RunID:      summary.RunID,
			Dispatched: summary.Dispatched(),
			Failed:     summary.Failed(),
			Announced:  summary.Announced(),
		})
		if err != nil {
			return Response{}, err
		}
		return Response{
			StatusCode: 200,
			Headers:    map[string]string{"content-type": "application/json"},
			Body:       string(body),
		}, nil
	})
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
