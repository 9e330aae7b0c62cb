package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Whisper Pact API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the Whisper Pact two-person journaling game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/rooms
	postRoom, _ := r.NewOperationContext(http.MethodPost, "/api/rooms")
	postRoom.SetSummary("Create room")
	postRoom.SetDescription("Creates a new waiting room with the caller as sole participant. Returns the room code and a session token.")
	postRoom.AddReqStructure(CreateRoomRequest{})
	postRoom.AddRespStructure(CreateRoomResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	postRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postRoom)

	// GET /api/rooms/{code}
	getRoom, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}")
	getRoom.SetSummary("Look up room")
	getRoom.SetDescription("Look up a room by code before joining.")
	getRoom.AddReqStructure(struct {
		Code string `path:"code"`
	}{})
	getRoom.AddRespStructure(RoomLookupResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getRoom)

	// POST /api/rooms/{code}/join
	postJoin, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/join")
	postJoin.SetSummary("Join a room")
	postJoin.SetDescription("Joins a room by code, or resumes an existing identity when the display name is already known. Returns a session token.")
	postJoin.AddReqStructure(struct {
		Code string `path:"code"`
	}{})
	postJoin.AddReqStructure(JoinRequest{})
	postJoin.AddRespStructure(JoinResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postJoin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postJoin)

	// POST /api/room/start
	postStart, _ := r.NewOperationContext(http.MethodPost, "/api/room/start")
	postStart.SetSummary("Start the pact")
	postStart.SetDescription("Moves the room to active and stamps the start time. Requires Bearer token.")
	postStart.AddRespStructure(StartResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postStart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postStart)

	// GET /api/room/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/room/state")
	getState.SetSummary("Get room state")
	getState.SetDescription("Returns participants, status, current day, and the caller's current prompt. Requires Bearer token.")
	getState.AddRespStructure(RoomStateResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getState)

	// POST /api/room/entries
	postEntry, _ := r.NewOperationContext(http.MethodPost, "/api/room/entries")
	postEntry.SetSummary("Submit an entry")
	postEntry.SetDescription("Appends a journal entry and advances the caller's task index. Requires Bearer token.")
	postEntry.AddReqStructure(EntryRequest{})
	postEntry.AddRespStructure(EntryResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postEntry.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postEntry.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	postEntry.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(postEntry)

	// GET /api/room/feed
	getFeed, _ := r.NewOperationContext(http.MethodGet, "/api/room/feed")
	getFeed.SetSummary("Get entry feed")
	getFeed.SetDescription("Returns the caller's shared and private entry feeds. Requires Bearer token.")
	getFeed.AddRespStructure(FeedResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getFeed.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getFeed)

	// GET /api/room/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/room/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream for room updates. Pass the session token as a query parameter.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// POST /api/admin/login
	postLogin, _ := r.NewOperationContext(http.MethodPost, "/api/admin/login")
	postLogin.SetSummary("Admin login")
	postLogin.SetDescription("Authenticate with email and password. Sets admin_session cookie.")
	postLogin.AddReqStructure(AdminLoginRequest{})
	postLogin.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postLogin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postLogin)

	// POST /api/admin/logout
	postLogout, _ := r.NewOperationContext(http.MethodPost, "/api/admin/logout")
	postLogout.SetSummary("Admin logout")
	postLogout.SetDescription("Clears admin session and cookie.")
	postLogout.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(postLogout)

	// GET /api/admin/me
	getMe, _ := r.NewOperationContext(http.MethodGet, "/api/admin/me")
	getMe.SetSummary("Current admin")
	getMe.SetDescription("Returns the currently authenticated admin. Requires admin_session cookie.")
	getMe.AddRespStructure(AdminMeResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getMe.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getMe)

	// GET /api/admin/rooms
	listRooms, _ := r.NewOperationContext(http.MethodGet, "/api/admin/rooms")
	listRooms.SetSummary("List rooms")
	listRooms.SetDescription("Returns all rooms with participant and entry counts. Requires admin_session cookie.")
	listRooms.AddRespStructure([]AdminRoomSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	listRooms.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(listRooms)

	// GET /api/admin/rooms/{code}
	getAdminRoom, _ := r.NewOperationContext(http.MethodGet, "/api/admin/rooms/{code}")
	getAdminRoom.SetSummary("Get room")
	getAdminRoom.SetDescription("Returns room metadata and participant progress, without entry texts. Requires admin_session cookie.")
	getAdminRoom.AddReqStructure(struct {
		Code string `path:"code"`
	}{})
	getAdminRoom.AddRespStructure(AdminRoomDetail{}, openapi.WithHTTPStatus(http.StatusOK))
	getAdminRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	getAdminRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(getAdminRoom)

	// DELETE /api/admin/rooms/{code}
	deleteRoom, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/rooms/{code}")
	deleteRoom.SetSummary("Delete room")
	deleteRoom.SetDescription("Deletes a room and everything inside it. Outstanding participant sessions are not cascaded. Requires admin_session cookie.")
	deleteRoom.AddReqStructure(struct {
		Code string `path:"code"`
	}{})
	deleteRoom.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	deleteRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	deleteRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(deleteRoom)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
