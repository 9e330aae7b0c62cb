package server

import (
	"errors"
	"net/http"
	"strings"
)

var errNoSession = errors.New("no valid session")

// participantFromRequest resolves the Bearer token to a participant session.
func participantFromRequest(r *http.Request, store Store) (participantSession, error) {
	auth := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(auth, "Bearer ")
	if !found || token == "" {
		return participantSession{}, errNoSession
	}
	return store.ParticipantFromToken(r.Context(), token)
}
