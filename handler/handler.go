package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"diplomacy-reset/internal/domain"
)

// ResetRunner runs one full workspace reset. *usecase.ResetService satisfies
// this interface.
type ResetRunner interface {
	Run(ctx context.Context) domain.Summary
}

// Handler exposes the reset trigger. The trigger is fire-and-forget: the HTTP
// response is written before any reset work starts, so callers never observe
// reset failures.
type Handler struct {
	reset ResetRunner
	log   *slog.Logger
}

func NewHandler(reset ResetRunner, log *slog.Logger) (*Handler, error) {
	if reset == nil {
		return nil, errors.New("handler: reset runner must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{reset: reset, log: log}, nil
}

// Register mounts the trigger routes. GET and POST behave identically.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/slack/reset", h.TriggerReset)
	r.POST("/slack/reset", h.TriggerReset)
}

func (h *Handler) TriggerReset(c *gin.Context) {
	c.Status(http.StatusOK)

	// Detached from the request context: dispatched work runs to completion
	// even though the response is long gone.
	go func() {
		summary := h.reset.Run(context.Background())
		h.log.Info("reset run complete",
			"run_id", summary.RunID,
			"dispatched", summary.Dispatched(),
			"failed", summary.Failed(),
			"announced", summary.Announced(),
		)
	}()
}
