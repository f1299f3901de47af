// services/ledger_stream.go
package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

const ledgerStreamInterval = 2 * time.Second

// StreamUserEntriesSSE streams the authenticated user's new ledger entries as
// server-sent events.
func (l *Ledger) StreamUserEntriesSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(ledgerStreamInterval)
		defer ticker.Stop()

		cursor := time.Now().UTC()

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				entries, err := l.UserEntriesSince(userID, cursor)
				if err != nil {
					l.log.Warn().Err(err).Str("user_id", userID).Msg("ledger stream query failed")
					continue
				}
				if len(entries) == 0 {
					// keepalive
					w.WriteString(":\n\n")
				} else {
					cursor = entries[len(entries)-1].CreatedAt
					for _, e := range entries {
						payload, _ := json.Marshal(e)
						fmt.Fprintf(w, "event: ledger\nid: %s\ndata: %s\n\n", e.ID, payload)
					}
				}
				if err := w.Flush(); err != nil {
					// client gone
					return
				}
			case <-done:
				return
			}
		}
	})
	return nil
}
