package server

import (
	"errors"
	"net/http"

	"github.com/voidwhisper/whisperpact/internal/whisperpact"
)

type FeedResponse struct {
	Shared  []EntryInfo `json:"shared"`
	Private []EntryInfo `json:"private"`
}

// handleFeed returns the caller's partition of the room's entries: everything
// shared by either participant, plus the caller's own private journal.
func handleFeed(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := participantFromRequest(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		entries, err := store.Entries(r.Context(), sess.RoomCode)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		feed := whisperpact.DeriveFeed(entries, sess.ParticipantID)

		resp := FeedResponse{Shared: []EntryInfo{}, Private: []EntryInfo{}}
		for _, e := range feed.Shared {
			resp.Shared = append(resp.Shared, entryInfo(e))
		}
		for _, e := range feed.Private {
			resp.Private = append(resp.Private, entryInfo(e))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
