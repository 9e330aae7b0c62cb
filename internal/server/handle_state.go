package server

import (
	"errors"
	"net/http"

	"github.com/voidwhisper/whisperpact/internal/whisperpact"
)

type RoomInfo struct {
	Code       string `json:"code"`
	Status     string `json:"status"`
	CreatedAt  int64  `json:"createdAt"`
	StartedAt  *int64 `json:"startedAt"`
	Day        int    `json:"day"`
	TotalTasks int    `json:"totalTasks"`
}

type TaskInfo struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

type ProgressInfo struct {
	ParticipantID    string `json:"participantId"`
	CurrentTaskIndex int    `json:"currentTaskIndex"`
}

type RoomStateResponse struct {
	Room         RoomInfo          `json:"room"`
	You          ParticipantInfo   `json:"you"`
	Participants []ParticipantInfo `json:"participants"`
	CurrentTask  *TaskInfo         `json:"currentTask"`
	Progress     []ProgressInfo    `json:"progress"`
}

func handleRoomState(store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := participantFromRequest(r, store)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing session token")
			return
		}

		data, err := store.RoomState(r.Context(), sess.RoomCode)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		resp := RoomStateResponse{
			Room: RoomInfo{
				Code:       data.Code,
				Status:     string(data.Status),
				CreatedAt:  data.CreatedAt,
				StartedAt:  data.StartedAt,
				Day:        whisperpact.Day(data.StartedAt, nowMillis()),
				TotalTasks: len(whisperpact.Tasks),
			},
			You:          ParticipantInfo{ID: sess.ParticipantID, Name: sess.Name},
			Participants: participantInfos(data.Participants),
			Progress:     []ProgressInfo{},
		}

		for _, p := range data.Participants {
			resp.Progress = append(resp.Progress, ProgressInfo{
				ParticipantID:    p.ID,
				CurrentTaskIndex: data.Progress[p.ID].CurrentTaskIndex,
			})
		}

		// The caller's prompt, clamped so an overrun index still renders the
		// final one.
		if data.Status == whisperpact.RoomStatusActive {
			task := whisperpact.TaskAt(data.Progress[sess.ParticipantID].CurrentTaskIndex)
			resp.CurrentTask = &TaskInfo{
				Index:  task.ID,
				Title:  task.Title,
				Prompt: task.Prompt,
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
