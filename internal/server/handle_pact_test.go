package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voidwhisper/whisperpact/internal/whisperpact"
)

func startPact(t *testing.T, r http.Handler, token string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/room/start", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func submitEntry(t *testing.T, r http.Handler, token, text string, share bool) (EntryResponse, int) {
	t.Helper()
	body, _ := json.Marshal(EntryRequest{Text: text, ShareWithPartner: share})
	req := httptest.NewRequest(http.MethodPost, "/api/room/entries", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp EntryResponse
	json.NewDecoder(w.Body).Decode(&resp)
	return resp, w.Code
}

func fetchState(t *testing.T, r http.Handler, token string) RoomStateResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/room/state", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("state: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var state RoomStateResponse
	json.NewDecoder(w.Body).Decode(&state)
	return state
}

func fetchFeed(t *testing.T, r http.Handler, token string) FeedResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/room/feed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("feed: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var feed FeedResponse
	json.NewDecoder(w.Body).Decode(&feed)
	return feed
}

func TestStartAndState(t *testing.T) {
	r, _ := testRouter(t)
	created := createRoom(t, r, "Alice")
	joined, _ := joinRoom(t, r, created.Code, "Bob")

	state := fetchState(t, r, created.Token)
	if state.Room.Status != "waiting" {
		t.Errorf("status = %q, want waiting", state.Room.Status)
	}
	if state.CurrentTask != nil {
		t.Error("waiting room should have no current task")
	}

	startPact(t, r, created.Token)

	state = fetchState(t, r, created.Token)
	if state.Room.Status != "active" {
		t.Errorf("status = %q, want active", state.Room.Status)
	}
	if state.Room.StartedAt == nil {
		t.Fatal("active room missing startedAt")
	}
	if state.Room.Day != 1 {
		t.Errorf("day = %d, want 1", state.Room.Day)
	}
	if state.Room.TotalTasks != len(whisperpact.Tasks) {
		t.Errorf("totalTasks = %d, want %d", state.Room.TotalTasks, len(whisperpact.Tasks))
	}
	if state.CurrentTask == nil || state.CurrentTask.Index != 0 {
		t.Fatalf("currentTask = %+v, want task 0", state.CurrentTask)
	}
	if len(state.Participants) != 2 {
		t.Errorf("participants = %d, want 2", len(state.Participants))
	}
	if state.You.ID != created.ParticipantID {
		t.Errorf("you = %q, want %q", state.You.ID, created.ParticipantID)
	}

	// The partner sees the same room through their own session.
	partnerState := fetchState(t, r, joined.Token)
	if partnerState.You.ID != joined.ParticipantID {
		t.Errorf("partner you = %q, want %q", partnerState.You.ID, joined.ParticipantID)
	}
	if partnerState.Room.Code != created.Code {
		t.Errorf("partner room = %q, want %q", partnerState.Room.Code, created.Code)
	}
}

func TestStateUnauthorized(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/room/state", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestSubmitBeforeStart(t *testing.T) {
	r, _ := testRouter(t)
	created := createRoom(t, r, "Alice")

	_, code := submitEntry(t, r, created.Token, "too eager", false)
	if code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", code)
	}
}

func TestSubmitEmptyText(t *testing.T) {
	r, _ := testRouter(t)
	created := createRoom(t, r, "Alice")
	joinRoom(t, r, created.Code, "Bob")
	startPact(t, r, created.Token)

	_, code := submitEntry(t, r, created.Token, "   ", false)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}

	// Rejected submissions leave progress untouched.
	state := fetchState(t, r, created.Token)
	for _, p := range state.Progress {
		if p.CurrentTaskIndex != 0 {
			t.Errorf("progress advanced on rejected submission: %+v", p)
		}
	}
}

func TestSubmitAdvancesProgress(t *testing.T) {
	r, _ := testRouter(t)
	created := createRoom(t, r, "Alice")
	joined, _ := joinRoom(t, r, created.Code, "Bob")
	startPact(t, r, created.Token)

	resp, code := submitEntry(t, r, created.Token, "hello", true)
	if code != http.StatusOK {
		t.Fatalf("submit: expected 200, got %d", code)
	}
	if resp.Entry.Day != 1 {
		t.Errorf("entry day = %d, want 1", resp.Entry.Day)
	}
	if resp.NextTask == nil || resp.NextTask.Index != 1 {
		t.Fatalf("nextTask = %+v, want task 1", resp.NextTask)
	}

	state := fetchState(t, r, created.Token)
	for _, p := range state.Progress {
		want := 0
		if p.ParticipantID == created.ParticipantID {
			want = 1
		}
		if p.CurrentTaskIndex != want {
			t.Errorf("progress[%s] = %d, want %d", p.ParticipantID, p.CurrentTaskIndex, want)
		}
	}

	// Partner's own pointer is independent.
	partnerState := fetchState(t, r, joined.Token)
	if partnerState.CurrentTask.Index != 0 {
		t.Errorf("partner task = %d, want 0", partnerState.CurrentTask.Index)
	}
}

func TestFeedVisibility(t *testing.T) {
	r, _ := testRouter(t)
	created := createRoom(t, r, "Alice")
	joined, _ := joinRoom(t, r, created.Code, "Bob")
	startPact(t, r, created.Token)

	if _, code := submitEntry(t, r, created.Token, "shared thought", true); code != http.StatusOK {
		t.Fatalf("shared submit: got %d", code)
	}
	if _, code := submitEntry(t, r, created.Token, "private thought", false); code != http.StatusOK {
		t.Fatalf("private submit: got %d", code)
	}

	// Author sees the shared entry in shared and the private one in private.
	mine := fetchFeed(t, r, created.Token)
	if len(mine.Shared) != 1 || mine.Shared[0].Text != "shared thought" {
		t.Fatalf("author shared = %+v, want the shared entry", mine.Shared)
	}
	if len(mine.Private) != 1 || mine.Private[0].Text != "private thought" {
		t.Fatalf("author private = %+v, want the private entry", mine.Private)
	}

	// Partner sees the shared entry, and never the private one.
	partner := fetchFeed(t, r, joined.Token)
	if len(partner.Shared) != 1 || partner.Shared[0].Text != "shared thought" {
		t.Fatalf("partner shared = %+v, want the shared entry", partner.Shared)
	}
	if len(partner.Private) != 0 {
		t.Fatalf("partner private = %+v, want empty", partner.Private)
	}
}

func TestFeedOrdering(t *testing.T) {
	r, _ := testRouter(t)
	created := createRoom(t, r, "Alice")
	joined, _ := joinRoom(t, r, created.Code, "Bob")
	startPact(t, r, created.Token)

	texts := []string{"first", "second", "third"}
	for i, text := range texts {
		token := created.Token
		if i%2 == 1 {
			token = joined.Token
		}
		if _, code := submitEntry(t, r, token, text, true); code != http.StatusOK {
			t.Fatalf("submit %q: got %d", text, code)
		}
	}

	feed := fetchFeed(t, r, created.Token)
	if len(feed.Shared) != len(texts) {
		t.Fatalf("shared = %d entries, want %d", len(feed.Shared), len(texts))
	}
	for i := 1; i < len(feed.Shared); i++ {
		if feed.Shared[i].CreatedAt < feed.Shared[i-1].CreatedAt {
			t.Fatalf("shared feed out of order at %d", i)
		}
	}
}

func TestPactFinishes(t *testing.T) {
	r, _ := testRouter(t)
	created := createRoom(t, r, "Alice")
	joined, _ := joinRoom(t, r, created.Code, "Bob")
	startPact(t, r, created.Token)

	for i := 0; i < len(whisperpact.Tasks); i++ {
		if _, code := submitEntry(t, r, created.Token, "alice answer", i%2 == 0); code != http.StatusOK {
			t.Fatalf("alice submit %d: got %d", i, code)
		}
	}

	// One participant finishing does not close the pact.
	state := fetchState(t, r, created.Token)
	if state.Room.Status != "active" {
		t.Fatalf("status = %q, want active while partner is behind", state.Room.Status)
	}
	// The stored index may overrun; rendering clamps to the last prompt.
	if state.CurrentTask.Index != len(whisperpact.Tasks)-1 {
		t.Errorf("task index = %d, want clamped to %d", state.CurrentTask.Index, len(whisperpact.Tasks)-1)
	}

	var last EntryResponse
	for i := 0; i < len(whisperpact.Tasks); i++ {
		resp, code := submitEntry(t, r, joined.Token, "bob answer", false)
		if code != http.StatusOK {
			t.Fatalf("bob submit %d: got %d", i, code)
		}
		last = resp
	}

	if !last.Finished {
		t.Error("final submission should report the pact finished")
	}
	state = fetchState(t, r, joined.Token)
	if state.Room.Status != "finished" {
		t.Fatalf("status = %q, want finished", state.Room.Status)
	}

	// A finished pact accepts no more entries.
	if _, code := submitEntry(t, r, created.Token, "one more", false); code != http.StatusConflict {
		t.Fatalf("post-finish submit: expected 409, got %d", code)
	}
}
