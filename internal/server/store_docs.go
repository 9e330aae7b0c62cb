package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/voidwhisper/whisperpact/internal/whisperpact"
)

// Document types stored as JSONB. The room document carries the whole
// per-room tree: participants, identity map, progress, and entries.

type participantDoc struct {
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
}

type progressDoc struct {
	CurrentTaskIndex int   `json:"currentTaskIndex"`
	UpdatedAt        int64 `json:"updatedAt"`
}

type entryDoc struct {
	ID               string `json:"id"`
	AuthorID         string `json:"authorId"`
	AuthorName       string `json:"authorName"`
	Text             string `json:"text"`
	ShareWithPartner bool   `json:"shareWithPartner"`
	CreatedAt        int64  `json:"createdAt"`
	Day              int    `json:"day"`
}

type roomDoc struct {
	RoomID       string                    `json:"roomId"`
	Status       string                    `json:"status"`
	CreatedAt    int64                     `json:"createdAt"`
	StartedAt    *int64                    `json:"startedAt"`
	Participants map[string]participantDoc `json:"participants"`
	IdentityMap  map[string]string         `json:"identityMap"`
	Progress     map[string]progressDoc    `json:"progress"`
	Entries      map[string]entryDoc       `json:"entries"`
}

type participantSessionDoc struct {
	ParticipantID string `json:"participantId"`
	RoomCode      string `json:"roomCode"`
	Name          string `json:"name"`
}

// DocStore implements Store and AdminStore over per-model tables with JSONB
// data columns.
type DocStore struct {
	db *sql.DB
}

func NewDocStore(ctx context.Context, db *sql.DB) (*DocStore, error) {
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS rooms (
			id     TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			data   JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS participant_sessions (
			id   TEXT PRIMARY KEY,
			data JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			id    TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			data  JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS admin_sessions (
			id   TEXT PRIMARY KEY,
			data JSONB NOT NULL
		)`,
	} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("creating table: %w", err)
		}
	}

	return &DocStore{db: db}, nil
}

// Generic helpers.

func (s *DocStore) get(ctx context.Context, table, id string, dest any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE id = ?`, table), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (s *DocStore) del(ctx context.Context, table, id string) error {
	result, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DocStore) putSession(ctx context.Context, table, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT OR REPLACE INTO %s (id, data) VALUES (?, jsonb(?))`, table),
		id, string(data),
	)
	return err
}

// putRoom is an upsert: a colliding room code silently overwrites, matching
// the original client's accepted risk over the 32^6 code space.
func (s *DocStore) putRoom(ctx context.Context, room roomDoc) error {
	data, err := json.Marshal(room)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, status, data) VALUES (?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET status = excluded.status, data = excluded.data`,
		room.RoomID, room.Status, string(data),
	)
	return err
}

func (s *DocStore) getRoom(ctx context.Context, code string) (roomDoc, error) {
	var room roomDoc
	err := s.get(ctx, "rooms", code, &room)
	return room, err
}

// modifyRoom loads a room, applies fn, and saves it in one transaction. An
// error from fn aborts the write and is returned unchanged.
func (s *DocStore) modifyRoom(ctx context.Context, code string, fn func(*roomDoc) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT json(data) FROM rooms WHERE id = ?`, code,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var room roomDoc
	if err := json.Unmarshal([]byte(data), &room); err != nil {
		return err
	}

	if err := fn(&room); err != nil {
		return err
	}

	jsonData, err := json.Marshal(room)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE rooms SET status = ?, data = jsonb(?) WHERE id = ?`,
		room.Status, string(jsonData), room.RoomID,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func newID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Participant auth

func (s *DocStore) ParticipantFromToken(ctx context.Context, token string) (participantSession, error) {
	var doc participantSessionDoc
	err := s.get(ctx, "participant_sessions", token, &doc)
	if errors.Is(err, ErrNotFound) {
		return participantSession{}, errNoSession
	}
	if err != nil {
		return participantSession{}, err
	}
	return participantSession{
		ParticipantID: doc.ParticipantID,
		RoomCode:      doc.RoomCode,
		Name:          doc.Name,
	}, nil
}

func (s *DocStore) mintSession(ctx context.Context, participantID, code, name string) (string, error) {
	sessionID := newID()
	err := s.putSession(ctx, "participant_sessions", sessionID, participantSessionDoc{
		ParticipantID: participantID,
		RoomCode:      code,
		Name:          name,
	})
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

// Room flow

func (s *DocStore) CreateRoom(ctx context.Context, displayName string, now int64) (string, string, string, error) {
	code := whisperpact.NewRoomCode()
	participantID := newID()

	room := roomDoc{
		RoomID:    code,
		Status:    string(whisperpact.RoomStatusWaiting),
		CreatedAt: now,
		StartedAt: nil,
		Participants: map[string]participantDoc{
			participantID: {Name: displayName, CreatedAt: now},
		},
		IdentityMap: map[string]string{
			displayName: participantID,
		},
		Progress: map[string]progressDoc{},
		Entries:  map[string]entryDoc{},
	}

	if err := s.putRoom(ctx, room); err != nil {
		return "", "", "", err
	}

	sessionID, err := s.mintSession(ctx, participantID, code, displayName)
	if err != nil {
		return "", "", "", err
	}
	return code, participantID, sessionID, nil
}

func (s *DocStore) JoinRoom(ctx context.Context, code, displayName string, now int64) (joinResult, error) {
	var res joinResult

	err := s.modifyRoom(ctx, code, func(room *roomDoc) error {
		// Same display name means the same participant: the identity map is
		// the rejoin mechanism, and also the documented name-collision hazard.
		if pid, ok := room.IdentityMap[displayName]; ok {
			res.ParticipantID = pid
			res.Rejoined = true
			return nil
		}

		if len(room.Participants) >= whisperpact.MaxParticipants {
			return ErrRoomFull
		}

		pid := newID()
		if room.Participants == nil {
			room.Participants = map[string]participantDoc{}
		}
		if room.IdentityMap == nil {
			room.IdentityMap = map[string]string{}
		}
		room.Participants[pid] = participantDoc{Name: displayName, CreatedAt: now}
		room.IdentityMap[displayName] = pid
		res.ParticipantID = pid
		return nil
	})
	if err != nil {
		return joinResult{}, err
	}

	sessionID, err := s.mintSession(ctx, res.ParticipantID, code, displayName)
	if err != nil {
		return joinResult{}, err
	}
	res.SessionID = sessionID
	return res, nil
}

func (s *DocStore) StartRoom(ctx context.Context, code string, now int64) error {
	return s.modifyRoom(ctx, code, func(room *roomDoc) error {
		room.Status = string(whisperpact.RoomStatusActive)
		room.StartedAt = &now
		return nil
	})
}

func (s *DocStore) SubmitEntry(ctx context.Context, code, participantID, authorName, text string, shareWithPartner bool, now int64) (whisperpact.Entry, error) {
	entry := whisperpact.Entry{
		ID:               newID(),
		AuthorID:         participantID,
		AuthorName:       authorName,
		Text:             text,
		ShareWithPartner: shareWithPartner,
		CreatedAt:        now,
	}

	err := s.modifyRoom(ctx, code, func(room *roomDoc) error {
		if room.Status != string(whisperpact.RoomStatusActive) {
			return ErrNotActive
		}

		entry.Day = whisperpact.Day(room.StartedAt, now)

		if room.Entries == nil {
			room.Entries = map[string]entryDoc{}
		}
		room.Entries[entry.ID] = entryDoc{
			ID:               entry.ID,
			AuthorID:         entry.AuthorID,
			AuthorName:       entry.AuthorName,
			Text:             entry.Text,
			ShareWithPartner: entry.ShareWithPartner,
			CreatedAt:        entry.CreatedAt,
			Day:              entry.Day,
		}

		if room.Progress == nil {
			room.Progress = map[string]progressDoc{}
		}
		prog := room.Progress[participantID]
		prog.CurrentTaskIndex++
		prog.UpdatedAt = now
		room.Progress[participantID] = prog

		// Close the pact once both participants have answered every prompt.
		if len(room.Participants) == whisperpact.MaxParticipants {
			done := 0
			for pid := range room.Participants {
				if room.Progress[pid].CurrentTaskIndex >= len(whisperpact.Tasks) {
					done++
				}
			}
			if done == len(room.Participants) {
				room.Status = string(whisperpact.RoomStatusFinished)
			}
		}
		return nil
	})
	if err != nil {
		return whisperpact.Entry{}, err
	}
	return entry, nil
}

func (s *DocStore) RoomState(ctx context.Context, code string) (roomData, error) {
	room, err := s.getRoom(ctx, code)
	if err != nil {
		return roomData{}, err
	}
	return docToRoomData(room), nil
}

func (s *DocStore) Entries(ctx context.Context, code string) ([]whisperpact.Entry, error) {
	room, err := s.getRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	entries := make([]whisperpact.Entry, 0, len(room.Entries))
	for _, e := range room.Entries {
		entries = append(entries, whisperpact.Entry{
			ID:               e.ID,
			AuthorID:         e.AuthorID,
			AuthorName:       e.AuthorName,
			Text:             e.Text,
			ShareWithPartner: e.ShareWithPartner,
			CreatedAt:        e.CreatedAt,
			Day:              e.Day,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt < entries[j].CreatedAt })
	return entries, nil
}

func docToRoomData(room roomDoc) roomData {
	d := roomData{
		Code:      room.RoomID,
		Status:    whisperpact.RoomStatus(room.Status),
		CreatedAt: room.CreatedAt,
		StartedAt: room.StartedAt,
		Progress:  map[string]whisperpact.Progress{},
	}
	for pid, p := range room.Participants {
		d.Participants = append(d.Participants, whisperpact.Participant{
			ID:       pid,
			Name:     p.Name,
			JoinedAt: p.CreatedAt,
		})
	}
	sort.Slice(d.Participants, func(i, j int) bool {
		return d.Participants[i].JoinedAt < d.Participants[j].JoinedAt
	})
	for pid, p := range room.Progress {
		d.Progress[pid] = whisperpact.Progress{
			CurrentTaskIndex: p.CurrentTaskIndex,
			UpdatedAt:        p.UpdatedAt,
		}
	}
	return d
}
