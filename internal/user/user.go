package user

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"

	"slate/internal/commons"
	"slate/internal/session"
	"slate/internal/status"
)

const maxRecentProjects = 10

// Manager drives the active-user session: authentication against the commons
// database, user administration, bookmarks and resume state.
type Manager struct {
	store   *commons.Store
	session *session.Session

	dir       string
	bookmarks bookmarksState
	resume    resumeState
}

// New builds a Manager over the commons store and restores per-user state
// from the user directory. The previously active user is re-set without
// authentication; when none is recorded the built-in Generic user is used.
func New(store *commons.Store, sess *session.Session, userDir string) (*Manager, error) {
	if store == nil || sess == nil {
		return nil, errors.New("user manager requires a commons store and a session")
	}
	m := &Manager{store: store, session: sess, dir: userDir}
	if err := loadState(m.bookmarksPath(), &m.bookmarks); err != nil {
		return nil, err
	}
	if err := loadState(m.resumePath(), &m.resume); err != nil {
		return nil, err
	}

	active := m.resume.User
	if active == "" {
		active = commons.GenericUser
	}
	if st := m.Set(active, "", false); !st.OK() {
		if st = m.Set(commons.GenericUser, "", false); !st.OK() {
			return nil, fmt.Errorf("activate fallback user: %s", st.Message)
		}
	}
	return m, nil
}

func (m *Manager) bookmarksPath() string {
	return filepath.Join(m.dir, "bookmarks.json")
}

func (m *Manager) resumePath() string {
	return filepath.Join(m.dir, "resume.json")
}

// Name returns the active user name.
func (m *Manager) Name() string {
	return m.session.User()
}

// Set makes the named user active. When password is given, authentication is
// attempted immediately. With saveToDB, a digest is stored so the user stays
// logged in across sessions on this machine.
func (m *Manager) Set(name, password string, saveToDB bool) status.Status {
	ctx := context.Background()
	stored, err := m.store.GetUser(ctx, name)
	if errors.Is(err, commons.ErrUserNotFound) {
		return m.session.Record(status.Fail(status.NotFound,
			"User %s cannot be set because it does not exist in commons database", name))
	}
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "look up user %s", name))
	}

	if password != "" {
		ok, err := m.store.CheckPassword(ctx, name, password)
		if err != nil {
			return m.session.Record(status.Wrap(status.Internal, err, "check password for %s", name))
		}
		if !ok {
			m.session.SetAuthenticated(false)
			return m.session.Record(status.Fail(status.NotAuthenticated,
				"Wrong password provided for user %s", name))
		}
		m.session.SetAuthenticated(true)
	} else if m.resume.UserDigest != "" && m.resume.UserDigest == loginDigest(name, stored.PasswordHash) {
		m.session.SetAuthenticated(true)
	} else {
		m.session.SetAuthenticated(false)
	}

	m.session.SetUser(stored.Name, stored.Email, stored.PermissionLevel)
	m.resume.User = stored.Name
	if saveToDB {
		m.resume.UserDigest = loginDigest(stored.Name, stored.PasswordHash)
	}
	if err := saveState(m.resumePath(), &m.resume); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "persist resume state"))
	}
	return status.Success
}

// ClearSavedLogin drops the auto-login digest for this machine.
func (m *Manager) ClearSavedLogin() error {
	m.resume.UserDigest = ""
	return saveState(m.resumePath(), &m.resume)
}

// Authenticate proves the active user's password.
func (m *Manager) Authenticate(password string) status.Status {
	name := m.session.User()
	ok, err := m.store.CheckPassword(context.Background(), name, password)
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "check password for %s", name))
	}
	if !ok {
		m.session.SetAuthenticated(false)
		return m.session.Record(status.Fail(status.NotAuthenticated,
			"Wrong password provided for user %s", name))
	}
	m.session.SetAuthenticated(true)
	return status.Success
}

// requireAdmin reports the two admin preconditions independently so callers
// can distinguish "not allowed" from "not logged in". When
// activeUserPassword is supplied it re-authenticates first.
func (m *Manager) requireAdmin(action, activeUserPassword string) status.Status {
	if m.session.PermissionLevel() < session.LevelAdmin {
		return m.session.Record(status.Fail(status.PermissionDenied,
			"User %s has no permission to %s", m.session.User(), action))
	}
	if activeUserPassword != "" {
		m.Authenticate(activeUserPassword)
	}
	if !m.session.IsAuthenticated() {
		return m.session.Record(status.Fail(status.NotAuthenticated,
			"Active user is not authenticated or the password is wrong"))
	}
	return status.Success
}

// CreateUser adds a user to the commons database. Requires an authenticated
// admin-level active user.
func (m *Manager) CreateUser(name, initials, password string, permissionLevel int, activeUserPassword, email string) status.Status {
	if st := m.requireAdmin("create new users", activeUserPassword); !st.OK() {
		return st
	}
	ctx := context.Background()
	exists, err := m.store.HasUser(ctx, name)
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "look up user %s", name))
	}
	if exists {
		return m.session.Record(status.Fail(status.NameConflict, "User %s already exists. Aborting", name))
	}
	hash, err := commons.HashPassword(password)
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "hash password"))
	}
	if err := m.store.CreateUser(ctx, commons.User{
		Name:            name,
		Initials:        initials,
		PasswordHash:    hash,
		PermissionLevel: session.ClampLevel(permissionLevel),
		Email:           email,
	}); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "create user %s", name))
	}
	return status.Success
}

// DeleteUser removes a user. The built-in Admin and Generic users are
// protected.
func (m *Manager) DeleteUser(name, activeUserPassword string) status.Status {
	if st := m.requireAdmin("delete users", activeUserPassword); !st.OK() {
		return st
	}
	switch name {
	case commons.AdminUser:
		return m.session.Record(status.Fail(status.PermissionDenied, "Admin User cannot be deleted"))
	case commons.GenericUser:
		return m.session.Record(status.Fail(status.PermissionDenied, "Generic User cannot be deleted"))
	}
	ctx := context.Background()
	exists, err := m.store.HasUser(ctx, name)
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "look up user %s", name))
	}
	if !exists {
		return m.session.Record(status.Fail(status.NotFound, "User %s does not exist. Aborting", name))
	}
	if err := m.store.DeleteUser(ctx, name); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "delete user %s", name))
	}
	return status.Success
}

// ChangePermissionLevel updates another user's level. Admin and Generic
// levels can never be altered.
func (m *Manager) ChangePermissionLevel(name string, newLevel int, activeUserPassword string) status.Status {
	if st := m.requireAdmin("change permission level of other users", activeUserPassword); !st.OK() {
		return st
	}
	switch name {
	case commons.AdminUser:
		return m.session.Record(status.Fail(status.PermissionDenied, "Admin permission levels cannot be altered"))
	case commons.GenericUser:
		return m.session.Record(status.Fail(status.PermissionDenied, "Generic User permission levels cannot be altered"))
	}
	ctx := context.Background()
	exists, err := m.store.HasUser(ctx, name)
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "look up user %s", name))
	}
	if !exists {
		return m.session.Record(status.Fail(status.NotFound, "User %s does not exist. Aborting", name))
	}
	if err := m.store.SetPermissionLevel(ctx, name, session.ClampLevel(newLevel)); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "change permission level for %s", name))
	}
	return status.Success
}

// ChangePassword replaces a password after verifying the old one. Changing
// another user's password additionally requires the active user to be an
// independently authenticated admin.
func (m *Manager) ChangePassword(oldPassword, newPassword, userName, activeUserPassword string) status.Status {
	if userName == "" {
		userName = m.session.User()
	}
	if userName != m.session.User() {
		if st := m.requireAdmin("change other users' passwords", activeUserPassword); !st.OK() {
			return st
		}
	}
	ctx := context.Background()
	ok, err := m.store.CheckPassword(ctx, userName, oldPassword)
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "check password for %s", userName))
	}
	if !ok {
		return m.session.Record(status.Fail(status.NotAuthenticated, "Old password for %s does not match", userName))
	}
	hash, err := commons.HashPassword(newPassword)
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "hash password"))
	}
	if err := m.store.SetPasswordHash(ctx, userName, hash); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "store password for %s", userName))
	}
	// Saved auto-logins against the old hash are now stale.
	if userName == m.resume.User && m.resume.UserDigest != "" {
		stored, err := m.store.GetUser(ctx, userName)
		if err == nil {
			m.resume.UserDigest = loginDigest(userName, stored.PasswordHash)
			_ = saveState(m.resumePath(), &m.resume)
		}
	}
	return status.Success
}

func loginDigest(name, passwordHash string) string {
	sum := sha256.Sum256([]byte(name + passwordHash))
	return hex.EncodeToString(sum[:])
}
