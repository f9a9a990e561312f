package testsupport

import (
	"testing"

	"slate/internal/commons"
	"slate/internal/config"
	"slate/internal/logging"
	"slate/internal/session"
)

// MustOpenStore opens a commons.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *commons.Store {
	t.Helper()

	store, err := commons.Open(cfg.Paths.CommonsDir)
	if err != nil {
		t.Fatalf("commons.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

// NewSession builds a standalone session with a silent logger.
func NewSession(t testing.TB) *session.Session {
	t.Helper()
	return session.New("standalone", logging.NewNop())
}

// AuthenticatedSession builds a session pre-authenticated at the given
// permission level, bypassing the commons user list.
func AuthenticatedSession(t testing.TB, name string, level int) *session.Session {
	t.Helper()

	sess := session.New("standalone", logging.NewNop())
	sess.SetUser(name, name+"@test.local", level)
	sess.SetAuthenticated(true)
	return sess
}
