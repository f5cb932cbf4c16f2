package auth

import (
	"context"
	"fmt"
	"log"
)

// LogoutHandler ends the local session.
type LogoutHandler struct {
	backend Backend
	store   SessionStore
}

func NewLogoutHandler(backend Backend, store SessionStore) *LogoutHandler {
	return &LogoutHandler{backend: backend, store: store}
}

// Logout notifies the backend and then clears the local session whether or
// not the notification succeeded. The returned error only reports a failure
// to clear local state; the caller navigates to login in every case.
func (h *LogoutHandler) Logout(ctx context.Context) error {
	sess, _, err := h.store.Load()
	if err != nil {
		log.Printf("[auth] reading session before logout: %v", err)
	}

	if err := h.backend.Logout(ctx, sess.Username); err != nil {
		log.Printf("[auth] logout notification for %q failed: %v", sess.Username, err)
	}

	if err := h.store.Clear(); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
