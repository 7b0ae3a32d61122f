package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/digmaps/groundcontrol/internal/core/domain"
	"github.com/digmaps/groundcontrol/internal/pkg/metrics"
)

// wsMessage is sent from client to narrow or widen its event feed.
type wsMessage struct {
	Action    string `json:"action"`    // "subscribe" | "unsubscribe"
	Reference string `json:"reference"` // georeference ID filter (optional, "" = all)
	Event     string `json:"event"`     // "created" | "updated" | "deleted" (optional, "" = all)
}

// wsSubject maps a client filter onto the georef.reference.<event>.<id>
// subject hierarchy.
func wsSubject(m wsMessage) (string, bool) {
	event := m.Event
	switch event {
	case "":
		event = "*"
	case domain.ReferenceCreated, domain.ReferenceUpdated, domain.ReferenceDeleted:
	default:
		return "", false
	}

	if m.Reference == "" {
		if event == "*" {
			return "georef.reference.>", true
		}
		return "georef.reference." + event + ".>", true
	}
	return "georef.reference." + event + "." + m.Reference, true
}

// WebSocketHandler returns a handler that upgrades to WebSocket and relays
// georeference change events from NATS to connected clients.
// Clients send JSON: {"action":"subscribe","reference":"<id>","event":"updated"}.
// An empty reference means all records; an empty event means all actions.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		if nc == nil {
			_ = c.WriteMessage(websocket.TextMessage, []byte(`{"error":"event stream not available"}`))
			return
		}

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Every change event by default; clients narrow from there.
		defaultSubject := "georef.reference.>"
		sub, err := nc.Subscribe(defaultSubject, func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		})
		if err != nil {
			slog.Warn("ws default subscribe", "error", err)
			return
		}
		subs[defaultSubject] = sub

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject, ok := wsSubject(m)
			if !ok {
				_ = writeJSON(map[string]string{"error": "unknown event: " + m.Event})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, func(msg *nats.Msg) {
					_ = writeJSON(json.RawMessage(msg.Data))
				})
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
