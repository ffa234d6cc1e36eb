package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"diplomacy-reset/handler"
	"diplomacy-reset/internal/integrations/slack"
	"diplomacy-reset/internal/usecase"
)

func main() {
	// ---- Configuration (read only here) ----
	_ = godotenv.Load()

	slackToken := mustEnv("SLACK_TOKEN")
	hookURL := mustEnv("SLACK_HOOK_URL")
	port := envInt("HTTP_PORT", 8080)
	maxInFlight := envInt("MAX_IN_FLIGHT", 64)
	maxPages := envInt("MAX_PAGES", 1000)

	// ---- Clients ----
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

	// ---- Handler ----
	resetService, err := usecase.NewResetService(slackClient, hook, slog.Default(), int64(maxInFlight))
	if err != nil {
		slog.Error("failed to create reset service", "err", err)
		os.Exit(1)
	}
	h, err := handler.NewHandler(resetService, slog.Default())
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	h.Register(router)

	addr := fmt.Sprintf(":%d", port)
	slog.Info("listening", "addr", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
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
