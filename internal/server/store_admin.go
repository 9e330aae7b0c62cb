package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"

	"golang.org/x/crypto/bcrypt"
)

type AdminStore interface {
	AdminByEmail(ctx context.Context, email string) (adminID, passwordHash string, err error)
	CreateAdminSession(ctx context.Context, adminID string) (sessionID string, err error)
	DeleteAdminSession(ctx context.Context, sessionID string) error
	AdminFromSession(ctx context.Context, sessionID string) (adminSession, error)

	ListRooms(ctx context.Context) ([]AdminRoomSummary, error)
	AdminRoom(ctx context.Context, code string) (AdminRoomDetail, error)
	// DeleteRoom removes the room document. Participant sessions pointing at
	// the deleted room are left behind; requests carrying them fail with
	// not-found.
	DeleteRoom(ctx context.Context, code string) error
}

type adminDoc struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
}

type adminSessionDoc struct {
	ID      string `json:"id"`
	AdminID string `json:"adminId"`
	Email   string `json:"email"`
}

// AdminRoomSummary is one row of the admin room list.
type AdminRoomSummary struct {
	Code             string `json:"code"`
	Status           string `json:"status"`
	ParticipantCount int    `json:"participantCount"`
	EntryCount       int    `json:"entryCount"`
	CreatedAt        int64  `json:"createdAt"`
	StartedAt        *int64 `json:"startedAt"`
}

// AdminParticipant is a participant with progress, as shown to admins.
type AdminParticipant struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	JoinedAt         int64  `json:"joinedAt"`
	CurrentTaskIndex int    `json:"currentTaskIndex"`
}

// AdminRoomDetail describes a room without exposing entry texts.
type AdminRoomDetail struct {
	Code         string             `json:"code"`
	Status       string             `json:"status"`
	CreatedAt    int64              `json:"createdAt"`
	StartedAt    *int64             `json:"startedAt"`
	Participants []AdminParticipant `json:"participants"`
	EntryCount   int                `json:"entryCount"`
	SharedCount  int                `json:"sharedCount"`
}

// EnsureAdmin seeds the admin account on first boot. Idempotent: does
// nothing once any admin exists.
func (s *DocStore) EnsureAdmin(ctx context.Context, email, password string) error {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := adminDoc{
		ID:           newID(),
		Email:        email,
		PasswordHash: string(hash),
	}
	data, err := json.Marshal(admin)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO admins (id, email, data) VALUES (?, ?, jsonb(?))`,
		admin.ID, admin.Email, string(data),
	)
	return err
}

func (s *DocStore) AdminByEmail(ctx context.Context, email string) (string, string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM admins WHERE email = ?`, email,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", ErrNotFound
	}
	if err != nil {
		return "", "", err
	}
	var a adminDoc
	if err := json.Unmarshal([]byte(data), &a); err != nil {
		return "", "", err
	}
	return a.ID, a.PasswordHash, nil
}

func (s *DocStore) CreateAdminSession(ctx context.Context, adminID string) (string, error) {
	var a adminDoc
	if err := s.get(ctx, "admins", adminID, &a); err != nil {
		return "", err
	}

	sessionID := newID()
	err := s.putSession(ctx, "admin_sessions", sessionID, adminSessionDoc{
		ID:      sessionID,
		AdminID: adminID,
		Email:   a.Email,
	})
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

func (s *DocStore) DeleteAdminSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM admin_sessions WHERE id = ?`, sessionID,
	)
	return err
}

func (s *DocStore) AdminFromSession(ctx context.Context, sessionID string) (adminSession, error) {
	var doc adminSessionDoc
	err := s.get(ctx, "admin_sessions", sessionID, &doc)
	if errors.Is(err, ErrNotFound) {
		return adminSession{}, errNoAdminSession
	}
	if err != nil {
		return adminSession{}, err
	}
	return adminSession{AdminID: doc.AdminID, Email: doc.Email}, nil
}

// Admin room management

func (s *DocStore) ListRooms(ctx context.Context) ([]AdminRoomSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT json(data) FROM rooms ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []AdminRoomSummary
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var room roomDoc
		if err := json.Unmarshal([]byte(data), &room); err != nil {
			return nil, err
		}
		summaries = append(summaries, AdminRoomSummary{
			Code:             room.RoomID,
			Status:           room.Status,
			ParticipantCount: len(room.Participants),
			EntryCount:       len(room.Entries),
			CreatedAt:        room.CreatedAt,
			StartedAt:        room.StartedAt,
		})
	}
	return summaries, rows.Err()
}

func (s *DocStore) AdminRoom(ctx context.Context, code string) (AdminRoomDetail, error) {
	room, err := s.getRoom(ctx, code)
	if err != nil {
		return AdminRoomDetail{}, err
	}

	detail := AdminRoomDetail{
		Code:         room.RoomID,
		Status:       room.Status,
		CreatedAt:    room.CreatedAt,
		StartedAt:    room.StartedAt,
		Participants: []AdminParticipant{},
		EntryCount:   len(room.Entries),
	}
	for pid, p := range room.Participants {
		detail.Participants = append(detail.Participants, AdminParticipant{
			ID:               pid,
			Name:             p.Name,
			JoinedAt:         p.CreatedAt,
			CurrentTaskIndex: room.Progress[pid].CurrentTaskIndex,
		})
	}
	sort.Slice(detail.Participants, func(i, j int) bool {
		return detail.Participants[i].JoinedAt < detail.Participants[j].JoinedAt
	})
	for _, e := range room.Entries {
		if e.ShareWithPartner {
			detail.SharedCount++
		}
	}
	return detail, nil
}

func (s *DocStore) DeleteRoom(ctx context.Context, code string) error {
	return s.del(ctx, "rooms", code)
}
