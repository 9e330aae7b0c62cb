package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/voidwhisper/whisperpact/internal/whisperpact"
)

type CreateRoomRequest struct {
	DisplayName string `json:"displayName"`
}

type CreateRoomResponse struct {
	Code          string `json:"code"`
	ParticipantID string `json:"participantId"`
	Token         string `json:"token"`
}

type ParticipantInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RoomLookupResponse struct {
	Code         string            `json:"code"`
	Status       string            `json:"status"`
	CreatedAt    int64             `json:"createdAt"`
	Participants []ParticipantInfo `json:"participants"`
}

func handleCreateRoom(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if req.DisplayName == "" {
			writeError(w, http.StatusBadRequest, "displayName is required")
			return
		}

		code, participantID, token, err := store.CreateRoom(r.Context(), req.DisplayName, nowMillis())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusCreated, CreateRoomResponse{
			Code:          code,
			ParticipantID: participantID,
			Token:         token,
		})
	}
}

func handleRoomLookup(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := normalizeCode(chi.URLParam(r, "code"))
		if len(code) != whisperpact.RoomCodeLength {
			writeError(w, http.StatusBadRequest, "invalid room code")
			return
		}

		data, err := store.RoomState(r.Context(), code)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp := RoomLookupResponse{
			Code:         data.Code,
			Status:       string(data.Status),
			CreatedAt:    data.CreatedAt,
			Participants: participantInfos(data.Participants),
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func participantInfos(participants []whisperpact.Participant) []ParticipantInfo {
	infos := make([]ParticipantInfo, 0, len(participants))
	for _, p := range participants {
		infos = append(infos, ParticipantInfo{ID: p.ID, Name: p.Name})
	}
	return infos
}
