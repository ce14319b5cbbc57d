package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cultivatehq/backend/internal/middleware"
	"github.com/cultivatehq/backend/internal/services"
	"github.com/cultivatehq/backend/pkg/logger"
	"github.com/cultivatehq/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const sseHeartbeatInterval = 25 * time.Second

// EventsHandler streams change notifications to the client over SSE so it
// can refetch the named resource instead of polling.
type EventsHandler struct {
	Notifier *services.Notifier
}

func NewEventsHandler(notifier *services.Notifier) *EventsHandler {
	return &EventsHandler{Notifier: notifier}
}

func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "authentication required")
	}

	userID := user.ID
	events, cancel := h.Notifier.Subscribe(userID)

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		logger.InfoWithUser(userID.String(), "sse_stream_opened", nil)

		heartbeat := time.NewTicker(sseHeartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: invalidate\ndata: %s\n\n", payload)
			case <-heartbeat.C:
				fmt.Fprint(w, ": heartbeat\n\n")
			}

			if err := w.Flush(); err != nil {
				logger.InfoWithUser(userID.String(), "sse_stream_closed", nil)
				return
			}
		}
	}))

	return nil
}
