package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voidwhisper/whisperpact/internal/whisperpact"
)

type JoinRequest struct {
	DisplayName string `json:"displayName"`
}

type JoinResponse struct {
	Code          string `json:"code"`
	ParticipantID string `json:"participantId"`
	Token         string `json:"token"`
	Rejoined      bool   `json:"rejoined"`
}

func handleJoin(store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if req.DisplayName == "" {
			writeError(w, http.StatusBadRequest, "displayName is required")
			return
		}

		code := normalizeCode(chi.URLParam(r, "code"))
		if len(code) != whisperpact.RoomCodeLength {
			writeError(w, http.StatusBadRequest, "invalid room code")
			return
		}

		res, err := store.JoinRoom(r.Context(), code, req.DisplayName, nowMillis())
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		if errors.Is(err, ErrRoomFull) {
			writeError(w, http.StatusConflict, "room already has 2 participants")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if !res.Rejoined {
			broker.Publish(code, RoomEvent{
				Type:       eventParticipantJoined,
				AuthorName: req.DisplayName,
			})
		}

		writeJSON(w, http.StatusOK, JoinResponse{
			Code:          code,
			ParticipantID: res.ParticipantID,
			Token:         res.SessionID,
			Rejoined:      res.Rejoined,
		})
	}
}
