package server

import (
	"database/sql"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, store Store, admin AdminStore, db *sql.DB, spaDir string) {
	broker := NewBroker()

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Whisper Pact API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, db))

	// Room setup — no session yet.
	r.Post("/api/rooms", handleCreateRoom(store))
	r.Get("/api/rooms/{code}", handleRoomLookup(store))
	r.Post("/api/rooms/{code}/join", handleJoin(store, broker))

	// Pact flow — Bearer session required.
	r.Post("/api/room/start", handleStart(store, broker))
	r.Get("/api/room/state", handleRoomState(store))
	r.Post("/api/room/entries", handleSubmitEntry(store, broker))
	r.Get("/api/room/feed", handleFeed(store))
	r.Get("/api/room/events", handleEvents(store, broker))

	// Admin auth.
	r.Post("/api/admin/login", handleAdminLogin(admin))
	r.Post("/api/admin/logout", handleAdminLogout(admin))
	r.Get("/api/admin/me", handleAdminMe(admin))

	// Admin room management.
	r.Route("/api/admin/rooms", func(r chi.Router) {
		r.Use(adminAuthMiddleware(admin))
		r.Get("/", handleAdminListRooms(admin))
		r.Get("/{code}", handleAdminGetRoom(admin))
		r.Delete("/{code}", handleAdminDeleteRoom(admin))
	})

	if spaDir != "" {
		if info, err := os.Stat(spaDir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", spaDir)
			r.NotFound(handleSPA(spaDir))
		}
	}
}
