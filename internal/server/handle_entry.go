package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/voidwhisper/whisperpact/internal/whisperpact"
)

type EntryRequest struct {
	Text             string `json:"text"`
	ShareWithPartner bool   `json:"shareWithPartner"`
}

type EntryInfo struct {
	ID               string `json:"id"`
	AuthorID         string `json:"authorId"`
	AuthorName       string `json:"authorName"`
	Text             string `json:"text"`
	ShareWithPartner bool   `json:"shareWithPartner"`
	CreatedAt        int64  `json:"createdAt"`
	Day              int    `json:"day"`
}

type EntryResponse struct {
	Entry    EntryInfo `json:"entry"`
	NextTask *TaskInfo `json:"nextTask"`
	Finished bool      `json:"finished"`
}

func handleSubmitEntry(store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := participantFromRequest(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		var req EntryRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Text = strings.TrimSpace(req.Text)
		if req.Text == "" {
			writeError(w, http.StatusBadRequest, "text is required")
			return
		}

		entry, err := store.SubmitEntry(r.Context(), sess.RoomCode, sess.ParticipantID, sess.Name, req.Text, req.ShareWithPartner, nowMillis())
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		if errors.Is(err, ErrNotActive) {
			writeError(w, http.StatusConflict, "pact is not active")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		broker.Publish(sess.RoomCode, RoomEvent{
			Type:       eventEntryAdded,
			AuthorName: entry.AuthorName,
			Shared:     entry.ShareWithPartner,
			Day:        entry.Day,
		})

		resp := EntryResponse{Entry: entryInfo(entry)}

		// Re-read the room: the submit may have closed the pact, and the
		// caller wants its next prompt either way.
		data, err := store.RoomState(r.Context(), sess.RoomCode)
		if err == nil {
			if data.Status == whisperpact.RoomStatusFinished {
				resp.Finished = true
				broker.Publish(sess.RoomCode, RoomEvent{Type: eventPactFinished})
			} else {
				task := whisperpact.TaskAt(data.Progress[sess.ParticipantID].CurrentTaskIndex)
				resp.NextTask = &TaskInfo{
					Index:  task.ID,
					Title:  task.Title,
					Prompt: task.Prompt,
				}
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func entryInfo(e whisperpact.Entry) EntryInfo {
	return EntryInfo{
		ID:               e.ID,
		AuthorID:         e.AuthorID,
		AuthorName:       e.AuthorName,
		Text:             e.Text,
		ShareWithPartner: e.ShareWithPartner,
		CreatedAt:        e.CreatedAt,
		Day:              e.Day,
	}
}
