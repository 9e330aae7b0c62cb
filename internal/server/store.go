package server

import (
	"context"
	"errors"

	"github.com/voidwhisper/whisperpact/internal/whisperpact"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrRoomFull  = errors.New("room full")
	ErrNotActive = errors.New("room not active")
)

// participantSession ties a bearer token to a participant in one room.
type participantSession struct {
	ParticipantID string
	RoomCode      string
	Name          string
}

// roomData is the store's snapshot of a room, minus entries.
type roomData struct {
	Code         string
	Status       whisperpact.RoomStatus
	CreatedAt    int64
	StartedAt    *int64
	Participants []whisperpact.Participant
	Progress     map[string]whisperpact.Progress
}

type joinResult struct {
	ParticipantID string
	SessionID     string
	Rejoined      bool
}

type Store interface {
	ParticipantFromToken(ctx context.Context, token string) (participantSession, error)

	// CreateRoom writes a new waiting room with the caller as sole participant
	// and returns the room code plus a session for the creator.
	CreateRoom(ctx context.Context, displayName string, now int64) (code, participantID, sessionID string, err error)

	// JoinRoom adds a participant, or resumes an existing identity when the
	// display name is already in the room's identity map. Returns ErrNotFound
	// for an unknown code and ErrRoomFull when both slots are taken. The count
	// check and the insert happen in one transaction, so two devices racing
	// for the second slot cannot both win.
	JoinRoom(ctx context.Context, code, displayName string, now int64) (joinResult, error)

	// StartRoom moves the room to active and stamps startedAt. Deliberately
	// unguarded: calling it again just resets the start time.
	StartRoom(ctx context.Context, code string, now int64) error

	// SubmitEntry appends an entry and advances the author's task index in a
	// single transaction. Returns ErrNotActive unless the room is active.
	SubmitEntry(ctx context.Context, code, participantID, authorName, text string, shareWithPartner bool, now int64) (whisperpact.Entry, error)

	RoomState(ctx context.Context, code string) (roomData, error)
	Entries(ctx context.Context, code string) ([]whisperpact.Entry, error)
}
