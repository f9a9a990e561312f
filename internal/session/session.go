package session

import (
	"log/slog"

	"slate/internal/config"
	"slate/internal/logging"
	"slate/internal/status"
)

// Permission levels, lowest to highest.
const (
	LevelObserver    = 0
	LevelGeneric     = 1
	LevelExperienced = 2
	LevelAdmin       = 3
)

// Session is the per-process context shared by every core component. It
// replaces hidden global state with an explicit object passed by reference
// into constructors, so several sessions can coexist in one process (tests,
// batch tools). Mutation happens only through the narrow setters below.
type Session struct {
	dcc             string
	user            string
	email           string
	permissionLevel int
	authenticated   bool

	projectRoot  string
	databaseRoot string

	localize config.Localize

	logger      *slog.Logger
	lastMessage string
}

// New creates a session for the named DCC. An empty dcc means standalone.
func New(dcc string, logger *slog.Logger) *Session {
	if logger == nil {
		logger = logging.NewNop()
	}
	if dcc == "" {
		dcc = "standalone"
	}
	return &Session{dcc: dcc, logger: logger}
}

// DCC returns the active DCC name.
func (s *Session) DCC() string { return s.dcc }

// User returns the active user name. Empty until a user is set.
func (s *Session) User() string { return s.user }

// Email returns the active user's email address.
func (s *Session) Email() string { return s.email }

// PermissionLevel returns the active user's permission level.
func (s *Session) PermissionLevel() int { return s.permissionLevel }

// IsAuthenticated reports whether the active user has proven their password.
func (s *Session) IsAuthenticated() bool { return s.authenticated }

// ProjectRoot returns the scene-file root of the active project.
func (s *Session) ProjectRoot() string { return s.projectRoot }

// DatabaseRoot returns the shadow database root of the active project.
func (s *Session) DatabaseRoot() string { return s.databaseRoot }

// Localize returns the localization settings bound to the session.
func (s *Session) Localize() config.Localize { return s.localize }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// SetUser binds the active user identity and permission level.
func (s *Session) SetUser(name, email string, level int) {
	s.user = name
	s.email = email
	s.permissionLevel = clampLevel(level)
}

// SetAuthenticated flips the authentication flag.
func (s *Session) SetAuthenticated(state bool) {
	s.authenticated = state
}

// SetRoots binds the session to a project's scene and database roots.
func (s *Session) SetRoots(projectRoot, databaseRoot string) {
	s.projectRoot = projectRoot
	s.databaseRoot = databaseRoot
}

// SetLocalize binds localization settings to the session.
func (s *Session) SetLocalize(localize config.Localize) {
	s.localize = localize
}

// CheckPermissions gates every mutating operation. The level check runs
// before the authentication check so the caller can distinguish "not allowed"
// from "not logged in".
func (s *Session) CheckPermissions(level int) status.Status {
	if s.permissionLevel < level {
		return s.Record(status.Fail(status.PermissionDenied, "This user does not have permissions for this action"))
	}
	if !s.authenticated {
		return s.Record(status.Fail(status.NotAuthenticated, "User is not authenticated"))
	}
	return status.Success
}

// Record logs a failed status and keeps it as the last message so UI layers
// can surface it without plumbing every return value. Successful statuses
// pass through untouched.
func (s *Session) Record(st status.Status) status.Status {
	if st.OK() {
		return st
	}
	s.lastMessage = st.Message
	s.logger.Warn(st.Message,
		logging.String("kind", st.Kind.String()),
		logging.String(logging.FieldUser, s.user))
	return st
}

// LastMessage returns the message of the most recently recorded failure.
func (s *Session) LastMessage() string {
	return s.lastMessage
}

func clampLevel(level int) int {
	if level < LevelObserver {
		return LevelObserver
	}
	if level > LevelAdmin {
		return LevelAdmin
	}
	return level
}

// ClampLevel bounds a permission level to the valid 0..3 range.
func ClampLevel(level int) int {
	return clampLevel(level)
}
