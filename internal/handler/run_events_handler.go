package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jantenpas/llm-eval-studio/internal/dto"
	"github.com/jantenpas/llm-eval-studio/internal/middleware"
	"github.com/jantenpas/llm-eval-studio/internal/service"
)

// RunEventsHandler streams terminal run statuses to dashboards over SSE.
type RunEventsHandler struct {
	events    service.RunEventsService
	logger    zerolog.Logger
	keepAlive time.Duration
}

// NewRunEventsHandler constructs a handler instance.
func NewRunEventsHandler(events service.RunEventsService, logger zerolog.Logger, keepAlive time.Duration) *RunEventsHandler {
	return &RunEventsHandler{
		events:    events,
		logger:    logger.With().Str("component", "run_events_handler").Logger(),
		keepAlive: keepAlive,
	}
}

// Register binds the event stream endpoint into the router group.
func (h *RunEventsHandler) Register(router fiber.Router) {
	router.Get("/events", h.stream)
}

func (h *RunEventsHandler) stream(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
	ctx, cancel := context.WithCancel(ctx)

	stream, cleanup := h.events.Subscribe()

	keepAliveInterval := h.keepAlive
	if keepAliveInterval <= 0 {
		keepAliveInterval = 30 * time.Second
	}

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer func() {
			cleanup()
			cancel()
		}()

		ticker := time.NewTicker(keepAliveInterval / 2)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-stream:
				if !ok {
					return
				}
				if err := writeRunEvent(w, event); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write run event")
					return
				}
			case <-ticker.C:
				if err := writeKeepAlive(w); err != nil {
					h.logger.Debug().Err(err).Msg("failed to write keepalive")
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})

	return nil
}

func writeRunEvent(w *bufio.Writer, event dto.RunEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: run\n"); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeKeepAlive(w *bufio.Writer) error {
	if _, err := fmt.Fprintf(w, ": keep-alive %s\n\n", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	return w.Flush()
}
