// Package whisperpact defines the core domain types and pure logic of the
// pact: the fixed prompt sequence, day arithmetic, feed partitioning, and
// room-code generation. It has zero external dependencies.
package whisperpact

import (
	"crypto/rand"
	"sort"
)

type RoomStatus string

const (
	RoomStatusWaiting  RoomStatus = "waiting"
	RoomStatusActive   RoomStatus = "active"
	RoomStatusFinished RoomStatus = "finished"
)

// MaxParticipants is the hard cap on participants per room.
const MaxParticipants = 2

// Identity is a stable per-device participant identity. The ID is opaque and
// distinct from the display name; the display name doubles as the rejoin key.
type Identity struct {
	ID   string
	Name string
}

type Participant struct {
	ID       string
	Name     string
	JoinedAt int64
}

type Room struct {
	Code         string
	Status       RoomStatus
	CreatedAt    int64
	StartedAt    *int64
	Participants []Participant
}

// Progress is a participant's pointer into the prompt sequence. The stored
// index may overrun the prompt count; rendering clamps it.
type Progress struct {
	CurrentTaskIndex int
	UpdatedAt        int64
}

type Entry struct {
	ID               string
	AuthorID         string
	AuthorName       string
	Text             string
	ShareWithPartner bool
	CreatedAt        int64
	Day              int
}

type Task struct {
	ID     int
	Title  string
	Prompt string
}

// Tasks is the fixed seven-day prompt sequence.
var Tasks = []Task{
	{0, "The First Impulse", "Think of the last time you wanted to text or call them but stopped. What did you stop yourself from saying?"},
	{1, "Underneath the Message", "Pick any recent message you sent them. What did your heart actually want to say behind those words?"},
	{2, "The Unsent Version", "Write the unsent version of something you softened or joked about. How would it sound if you were 10% more honest?"},
	{3, "The Hidden Fear", "What is a small fear you feel in this connection that you rarely put into words?"},
	{4, "The Quiet Gratitude", "Write about something they did that meant a lot to you, but you never fully acknowledged out loud."},
	{5, "The Version of You With Them", "Describe the version of you that appears when you are with them. What do you like and dislike about that version?"},
	{6, "If This Was the Last Whisper", "If you could send them one message that you knew they would truly hear, what would you say?"},
}

// TaskAt returns the task at index, clamped to the valid range.
func TaskAt(index int) Task {
	if index < 0 {
		index = 0
	}
	if index >= len(Tasks) {
		index = len(Tasks) - 1
	}
	return Tasks[index]
}

const dayMillis = 86_400_000

// Day computes the 1-based pact day from the start timestamp, clamped to
// [1, len(Tasks)]. A room that has not started is on day 1.
func Day(startedAt *int64, now int64) int {
	if startedAt == nil {
		return 1
	}
	day := int((now-*startedAt)/dayMillis) + 1
	if day < 1 {
		return 1
	}
	if day > len(Tasks) {
		return len(Tasks)
	}
	return day
}

// Feed is one viewer's partition of a room's entries.
type Feed struct {
	Shared  []Entry
	Private []Entry
}

// DeriveFeed partitions entries for a viewer: Shared holds every entry either
// participant chose to share, Private holds the viewer's own unshared entries.
// Both are ordered by creation time ascending. The partition is a display
// convention, not access control — every client holds the full entry set.
func DeriveFeed(entries []Entry, viewerID string) Feed {
	feed := Feed{Shared: []Entry{}, Private: []Entry{}}
	for _, e := range entries {
		switch {
		case e.ShareWithPartner:
			feed.Shared = append(feed.Shared, e)
		case e.AuthorID == viewerID:
			feed.Private = append(feed.Private, e)
		}
	}
	byCreatedAt := func(s []Entry) func(i, j int) bool {
		return func(i, j int) bool { return s[i].CreatedAt < s[j].CreatedAt }
	}
	sort.SliceStable(feed.Shared, byCreatedAt(feed.Shared))
	sort.SliceStable(feed.Private, byCreatedAt(feed.Private))
	return feed
}

// RoomCodeAlphabet excludes visually ambiguous characters (I, O, 0, 1).
const (
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	RoomCodeLength   = 6
)

// NewRoomCode returns a 6-character code drawn from RoomCodeAlphabet.
func NewRoomCode() string {
	b := make([]byte, RoomCodeLength)
	rand.Read(b)
	for i := range b {
		b[i] = RoomCodeAlphabet[int(b[i])%len(RoomCodeAlphabet)]
	}
	return string(b)
}
