// Package ws bridges a live connection to race rooms: inbound verbs are
// translated into coordinator calls, and one outbox channel per
// connection carries every subscribed room's broadcasts to a single
// writer goroutine.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mwhited/typerace-backend/internal/coordinator"
	"github.com/mwhited/typerace-backend/internal/types"
)

const writeTimeout = 3 * time.Second

func Handler(c *coordinator.Coordinator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Identity comes pre-authenticated from the upstream layer.
		userID := r.URL.Query().Get("user_id")
		username := r.URL.Query().Get("username")
		if userID == "" || username == "" {
			http.Error(w, "missing identity", http.StatusUnauthorized)
			return
		}
		user := types.UserRef{UserID: userID, Username: username}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		out := make(chan types.ServerEvent, 16)
		subscribed := make(map[string]bool)

		log.Info("connection opened", zap.String("conn_id", connID), zap.String("user_id", userID))

		// A dropped connection only releases its room subscriptions;
		// race and participant state are untouched.
		defer func() {
			for raceID := range subscribed {
				c.Unsubscribe(raceID, connID)
			}
			log.Info("connection closed", zap.String("conn_id", connID), zap.String("user_id", userID))
		}()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for {
				select {
				case <-writeCtx.Done():
					return
				case evt := <-out:
					payload, err := json.Marshal(evt)
					if err != nil {
						continue
					}
					ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
					_ = conn.Write(ctx, websocket.MessageText, payload)
					cancel()
				}
			}
		}()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				push(out, errorEvent("bad json"))
				continue
			}

			switch cm.Type {
			case "join-race":
				spectator, err := c.Subscribe(cm.RaceID, connID, userID, out)
				if err != nil {
					push(out, errorEvent(publicMessage(err)))
					continue
				}
				subscribed[cm.RaceID] = true
				push(out, types.ServerEvent{
					Event: types.EventJoinedRace,
					Data:  types.JoinedRaceData{RaceID: cm.RaceID, Spectator: spectator},
				})

			case "keystroke":
				err := c.SubmitKeystroke(r.Context(), cm.RaceID, user, cm.Position, cm.Timestamp, cm.Errors)
				if err != nil {
					push(out, errorEvent(publicMessage(err)))
				}

			case "leave-race":
				c.Unsubscribe(cm.RaceID, connID)
				delete(subscribed, cm.RaceID)

			default:
				push(out, errorEvent("unknown message type"))
			}
		}
	}
}

// push queues a connection-local event without ever blocking the read
// loop. A full outbox means the client is not draining; dropping the
// event matches what rooms do to slow subscribers.
func push(out chan types.ServerEvent, evt types.ServerEvent) bool {
	select {
	case out <- evt:
		return true
	default:
		return false
	}
}

func errorEvent(msg string) types.ServerEvent {
	return types.ServerEvent{
		Event: types.EventRaceError,
		Data:  types.RaceErrorData{Message: msg},
	}
}

// publicMessage keeps internal failures opaque; validation errors carry
// their own message.
func publicMessage(err error) string {
	if errors.Is(err, coordinator.ErrInternal) {
		return "internal error"
	}
	return err.Error()
}
