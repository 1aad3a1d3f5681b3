package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"daily-challenge-service/utils"

	"github.com/gofiber/fiber/v2"
)

// EventStream serves the event bus to one client as Server-Sent Events.
type EventStream struct {
	Bus       *EventBus
	Log       *utils.Logger
	Heartbeat time.Duration
	Buffer    int
}

func NewEventStream(bus *EventBus, log *utils.Logger) *EventStream {
	return &EventStream{Bus: bus, Log: log, Heartbeat: 15 * time.Second, Buffer: 32}
}

// writeEvent emits one SSE frame: "event: <kind>\ndata: <json>\n\n".
func writeEvent(w *bufio.Writer, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Kind, payload); err != nil {
		return err
	}
	return w.Flush()
}

// StreamUserEventsSSE pushes the authenticated user's events until the client goes away.
// Expects "user_id" in Locals (set by UserContext or SSEAuth middleware).
func (s *EventStream) StreamUserEventsSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": ErrNotAuthenticated.Error()})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	events, cancel := s.Bus.Subscribe(userID, s.Buffer)
	done := c.Context().Done()
	s.Log.Debug("[SSE] subscribed", "user_id", userID)

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		ticker := time.NewTicker(s.Heartbeat)
		defer ticker.Stop()

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case e, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, e); err != nil {
					s.Log.Debug("[SSE] client gone", "user_id", userID, "error", err)
					return
				}
			case <-ticker.C:
				w.WriteString(": ping\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}
