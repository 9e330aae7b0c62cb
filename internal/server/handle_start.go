package server

import (
	"errors"
	"net/http"
)

type StartResponse struct {
	Status    string `json:"status"`
	StartedAt int64  `json:"startedAt"`
}

// handleStart flips the room to active. The UI only shows the start control
// once both participants are present, but the mutation itself is unguarded:
// calling it again just resets the start time.
func handleStart(store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := participantFromRequest(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		now := nowMillis()
		err = store.StartRoom(r.Context(), sess.RoomCode, now)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		broker.Publish(sess.RoomCode, RoomEvent{Type: eventPactStarted})

		writeJSON(w, http.StatusOK, StartResponse{
			Status:    "active",
			StartedAt: now,
		})
	}
}
