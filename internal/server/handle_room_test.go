package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/voidwhisper/whisperpact/internal/database"
	"github.com/voidwhisper/whisperpact/internal/whisperpact"
)

func setupStore(t *testing.T) *DocStore {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store, err := NewDocStore(ctx, db)
	if err != nil {
		t.Fatalf("init doc store: %v", err)
	}
	return store
}

func testRouter(t *testing.T) (*chi.Mux, *DocStore) {
	t.Helper()
	store := setupStore(t)
	broker := NewBroker()

	r := chi.NewRouter()
	r.Post("/api/rooms", handleCreateRoom(store))
	r.Get("/api/rooms/{code}", handleRoomLookup(store))
	r.Post("/api/rooms/{code}/join", handleJoin(store, broker))
	r.Post("/api/room/start", handleStart(store, broker))
	r.Get("/api/room/state", handleRoomState(store))
	r.Post("/api/room/entries", handleSubmitEntry(store, broker))
	r.Get("/api/room/feed", handleFeed(store))
	return r, store
}

func createRoom(t *testing.T, r http.Handler, name string) CreateRoomResponse {
	t.Helper()
	body, _ := json.Marshal(CreateRoomRequest{DisplayName: name})
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create room: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp CreateRoomResponse
	json.NewDecoder(w.Body).Decode(&resp)
	return resp
}

func joinRoom(t *testing.T, r http.Handler, code, name string) (JoinResponse, int) {
	t.Helper()
	body, _ := json.Marshal(JoinRequest{DisplayName: name})
	req := httptest.NewRequest(http.MethodPost, "/api/rooms/"+code+"/join", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp JoinResponse
	json.NewDecoder(w.Body).Decode(&resp)
	return resp, w.Code
}

func TestCreateRoom(t *testing.T) {
	r, _ := testRouter(t)

	resp := createRoom(t, r, "Alice")

	if len(resp.Code) != whisperpact.RoomCodeLength {
		t.Fatalf("code %q length = %d, want %d", resp.Code, len(resp.Code), whisperpact.RoomCodeLength)
	}
	for _, c := range resp.Code {
		if !strings.ContainsRune(whisperpact.RoomCodeAlphabet, c) {
			t.Errorf("code %q contains %q, not in alphabet", resp.Code, c)
		}
	}
	if resp.ParticipantID == "" || resp.Token == "" {
		t.Fatal("expected participant id and session token")
	}

	// The creator is the sole participant of a waiting room.
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+resp.Code, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("lookup: expected 200, got %d", w.Code)
	}
	var lookup RoomLookupResponse
	json.NewDecoder(w.Body).Decode(&lookup)

	if lookup.Status != "waiting" {
		t.Errorf("status = %q, want waiting", lookup.Status)
	}
	if len(lookup.Participants) != 1 || lookup.Participants[0].Name != "Alice" {
		t.Errorf("participants = %v, want only Alice", lookup.Participants)
	}
}

func TestCreateRoomEmptyName(t *testing.T) {
	r, _ := testRouter(t)

	body, _ := json.Marshal(CreateRoomRequest{DisplayName: "   "})
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRoomLookupNotFound(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/ZZZZZZ", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestJoinRoom(t *testing.T) {
	r, _ := testRouter(t)
	created := createRoom(t, r, "Alice")

	resp, code := joinRoom(t, r, created.Code, "Bob")
	if code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", code)
	}
	if resp.Rejoined {
		t.Error("fresh join reported as rejoin")
	}
	if resp.ParticipantID == "" || resp.Token == "" {
		t.Fatal("expected participant id and session token")
	}
	if resp.ParticipantID == created.ParticipantID {
		t.Error("second participant got the creator's id")
	}

	// Lowercase codes are accepted.
	resp2, code2 := joinRoom(t, r, strings.ToLower(created.Code), "Bob")
	if code2 != http.StatusOK {
		t.Fatalf("lowercase join: expected 200, got %d", code2)
	}
	if !resp2.Rejoined {
		t.Error("same name should rejoin, not add a participant")
	}
}

func TestJoinRoomNotFound(t *testing.T) {
	r, _ := testRouter(t)

	_, code := joinRoom(t, r, "AB23CD", "Bob")
	if code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestJoinRoomInvalidCode(t *testing.T) {
	r, _ := testRouter(t)

	_, code := joinRoom(t, r, "AB2", "Bob")
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
}

func TestJoinRoomFull(t *testing.T) {
	r, _ := testRouter(t)
	created := createRoom(t, r, "Alice")

	if _, code := joinRoom(t, r, created.Code, "Bob"); code != http.StatusOK {
		t.Fatalf("second join: expected 200, got %d", code)
	}

	// A third, unrecognized name is rejected and the room is unchanged.
	if _, code := joinRoom(t, r, created.Code, "Mallory"); code != http.StatusConflict {
		t.Fatalf("third join: expected 409, got %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+created.Code, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var lookup RoomLookupResponse
	json.NewDecoder(w.Body).Decode(&lookup)
	if len(lookup.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(lookup.Participants))
	}
}

func TestRejoinIdempotent(t *testing.T) {
	r, _ := testRouter(t)
	created := createRoom(t, r, "Alice")

	first, code := joinRoom(t, r, created.Code, "Bob")
	if code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", code)
	}
	second, code := joinRoom(t, r, created.Code, "Bob")
	if code != http.StatusOK {
		t.Fatalf("rejoin: expected 200, got %d", code)
	}

	if first.ParticipantID != second.ParticipantID {
		t.Errorf("rejoin changed participant id: %q vs %q", first.ParticipantID, second.ParticipantID)
	}
	if !second.Rejoined {
		t.Error("rejoin not flagged")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+created.Code, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var lookup RoomLookupResponse
	json.NewDecoder(w.Body).Decode(&lookup)
	if len(lookup.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(lookup.Participants))
	}
}

// Two different people entering the same name are treated as the same
// participant. This documents the name-as-identity hazard rather than
// endorsing it.
func TestJoinWithCreatorName(t *testing.T) {
	r, _ := testRouter(t)
	created := createRoom(t, r, "Alice")

	resp, code := joinRoom(t, r, created.Code, "Alice")
	if code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", code)
	}
	if !resp.Rejoined {
		t.Error("creator's name should resolve to the existing identity")
	}
	if resp.ParticipantID != created.ParticipantID {
		t.Errorf("participant id = %q, want creator's %q", resp.ParticipantID, created.ParticipantID)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/rooms/"+created.Code, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var lookup RoomLookupResponse
	json.NewDecoder(w.Body).Decode(&lookup)
	if len(lookup.Participants) != 1 {
		t.Fatalf("participants = %d, want 1", len(lookup.Participants))
	}
}
