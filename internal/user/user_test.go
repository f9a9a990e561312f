package user

import (
	"path/filepath"
	"testing"

	"slate/internal/commons"
	"slate/internal/logging"
	"slate/internal/session"
	"slate/internal/status"
)

func newTestManager(t *testing.T) (*Manager, *session.Session, *commons.Store) {
	t.Helper()
	root := t.TempDir()
	store, err := commons.Open(filepath.Join(root, "commons"))
	if err != nil {
		t.Fatalf("open commons store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	sess := session.New("standalone", logging.NewNop())
	manager, err := New(store, sess, filepath.Join(root, "user"))
	if err != nil {
		t.Fatalf("create user manager: %v", err)
	}
	return manager, sess, store
}

func asAdmin(t *testing.T, m *Manager) {
	t.Helper()
	if st := m.Set(commons.AdminUser, "admin", false); !st.OK() {
		t.Fatalf("set admin: %s", st.Message)
	}
}

func TestDefaultUserIsGeneric(t *testing.T) {
	m, sess, _ := newTestManager(t)
	if m.Name() != commons.GenericUser {
		t.Fatalf("default user = %q, want %q", m.Name(), commons.GenericUser)
	}
	if sess.IsAuthenticated() {
		t.Fatal("fresh session must not be authenticated")
	}
	if sess.PermissionLevel() != session.LevelObserver {
		t.Fatalf("generic level = %d, want %d", sess.PermissionLevel(), session.LevelObserver)
	}
}

func TestSetUser(t *testing.T) {
	m, sess, _ := newTestManager(t)

	if st := m.Set("nosuch", "", false); st.Kind != status.NotFound {
		t.Fatalf("unknown user kind = %v, want NotFound", st.Kind)
	}
	if st := m.Set(commons.AdminUser, "wrong", false); st.Kind != status.NotAuthenticated {
		t.Fatalf("wrong password kind = %v, want NotAuthenticated", st.Kind)
	}
	if sess.IsAuthenticated() {
		t.Fatal("failed login must leave session unauthenticated")
	}
	if st := m.Set(commons.AdminUser, "admin", false); !st.OK() {
		t.Fatalf("admin login: %s", st.Message)
	}
	if !sess.IsAuthenticated() {
		t.Fatal("admin login must authenticate")
	}
	if sess.PermissionLevel() != session.LevelAdmin {
		t.Fatalf("admin level = %d, want %d", sess.PermissionLevel(), session.LevelAdmin)
	}

	// Switching users without a password drops authentication.
	if st := m.Set(commons.GenericUser, "", false); !st.OK() {
		t.Fatalf("switch to generic: %s", st.Message)
	}
	if sess.IsAuthenticated() {
		t.Fatal("password-less switch must not stay authenticated")
	}
}

func TestAuthenticate(t *testing.T) {
	m, sess, _ := newTestManager(t)

	if st := m.Authenticate("nope"); st.Kind != status.NotAuthenticated {
		t.Fatalf("wrong password kind = %v", st.Kind)
	}
	if st := m.Authenticate("1234"); !st.OK() {
		t.Fatalf("generic password: %s", st.Message)
	}
	if !sess.IsAuthenticated() {
		t.Fatal("session must be authenticated after Authenticate")
	}
}

func TestSavedLoginSurvivesRestart(t *testing.T) {
	root := t.TempDir()
	store, err := commons.Open(filepath.Join(root, "commons"))
	if err != nil {
		t.Fatalf("open commons store: %v", err)
	}
	defer store.Close()
	userDir := filepath.Join(root, "user")

	m, err := New(store, session.New("standalone", logging.NewNop()), userDir)
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	if st := m.Set(commons.AdminUser, "admin", true); !st.OK() {
		t.Fatalf("admin login: %s", st.Message)
	}

	sess := session.New("standalone", logging.NewNop())
	m2, err := New(store, sess, userDir)
	if err != nil {
		t.Fatalf("recreate manager: %v", err)
	}
	if m2.Name() != commons.AdminUser {
		t.Fatalf("restored user = %q, want %q", m2.Name(), commons.AdminUser)
	}
	if !sess.IsAuthenticated() {
		t.Fatal("saved login must restore authentication")
	}

	if err := m2.ClearSavedLogin(); err != nil {
		t.Fatalf("clear saved login: %v", err)
	}
	sess3 := session.New("standalone", logging.NewNop())
	m3, err := New(store, sess3, userDir)
	if err != nil {
		t.Fatalf("recreate manager: %v", err)
	}
	if sess3.IsAuthenticated() {
		t.Fatal("cleared login must not restore authentication")
	}
	_ = m3
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	m, _, _ := newTestManager(t)

	st := m.CreateUser("alice", "ali", "pw", session.LevelGeneric, "", "")
	if st.Kind != status.PermissionDenied {
		t.Fatalf("kind = %v, want PermissionDenied", st.Kind)
	}
	want := "User Generic has no permission to create new users"
	if st.Message != want {
		t.Fatalf("message = %q, want %q", st.Message, want)
	}
}

func TestCreateUserRequiresAuthentication(t *testing.T) {
	m, sess, _ := newTestManager(t)
	asAdmin(t, m)
	sess.SetAuthenticated(false)

	st := m.CreateUser("alice", "ali", "pw", session.LevelGeneric, "", "")
	if st.Kind != status.NotAuthenticated {
		t.Fatalf("kind = %v, want NotAuthenticated", st.Kind)
	}
	if st.Message != "Active user is not authenticated or the password is wrong" {
		t.Fatalf("message = %q", st.Message)
	}

	// Supplying the active user's password authenticates inline.
	if st := m.CreateUser("alice", "ali", "pw", session.LevelGeneric, "admin", ""); !st.OK() {
		t.Fatalf("create with inline password: %s", st.Message)
	}
}

func TestUserAdministration(t *testing.T) {
	m, _, store := newTestManager(t)
	asAdmin(t, m)

	if st := m.CreateUser("alice", "ali", "pw", session.LevelExperienced, "", "alice@studio.test"); !st.OK() {
		t.Fatalf("create alice: %s", st.Message)
	}
	if st := m.CreateUser("alice", "ali", "pw", session.LevelGeneric, "", ""); st.Kind != status.NameConflict {
		t.Fatalf("duplicate kind = %v, want NameConflict", st.Kind)
	} else if st.Message != "User alice already exists. Aborting" {
		t.Fatalf("duplicate message = %q", st.Message)
	}

	if st := m.ChangePermissionLevel("alice", session.LevelAdmin, ""); !st.OK() {
		t.Fatalf("promote alice: %s", st.Message)
	}
	level, err := store.PermissionLevel(t.Context(), "alice")
	if err != nil || level != session.LevelAdmin {
		t.Fatalf("alice level = %d (%v), want %d", level, err, session.LevelAdmin)
	}
	if st := m.ChangePermissionLevel("ghost", session.LevelGeneric, ""); st.Message != "User ghost does not exist. Aborting" {
		t.Fatalf("missing user message = %q", st.Message)
	}

	if st := m.DeleteUser("ghost", ""); st.Kind != status.NotFound {
		t.Fatalf("delete ghost kind = %v, want NotFound", st.Kind)
	}
	if st := m.DeleteUser("alice", ""); !st.OK() {
		t.Fatalf("delete alice: %s", st.Message)
	}
	exists, err := store.HasUser(t.Context(), "alice")
	if err != nil {
		t.Fatalf("has alice: %v", err)
	}
	if exists {
		t.Fatal("alice must be gone")
	}
}

func TestBuiltInUsersAreProtected(t *testing.T) {
	m, _, _ := newTestManager(t)
	asAdmin(t, m)

	tests := []struct {
		name string
		st   status.Status
		want string
	}{
		{"delete admin", m.DeleteUser(commons.AdminUser, ""), "Admin User cannot be deleted"},
		{"delete generic", m.DeleteUser(commons.GenericUser, ""), "Generic User cannot be deleted"},
		{"alter admin", m.ChangePermissionLevel(commons.AdminUser, 0, ""), "Admin permission levels cannot be altered"},
		{"alter generic", m.ChangePermissionLevel(commons.GenericUser, 3, ""), "Generic User permission levels cannot be altered"},
	}
	for _, tt := range tests {
		if tt.st.Kind != status.PermissionDenied {
			t.Errorf("%s: kind = %v, want PermissionDenied", tt.name, tt.st.Kind)
		}
		if tt.st.Message != tt.want {
			t.Errorf("%s: message = %q, want %q", tt.name, tt.st.Message, tt.want)
		}
	}
}

func TestChangePassword(t *testing.T) {
	m, _, store := newTestManager(t)

	if st := m.ChangePassword("wrong", "new", "", ""); st.Message != "Old password for Generic does not match" {
		t.Fatalf("wrong old password message = %q", st.Message)
	}
	if st := m.ChangePassword("1234", "sesame", "", ""); !st.OK() {
		t.Fatalf("change own password: %s", st.Message)
	}
	ok, err := store.CheckPassword(t.Context(), commons.GenericUser, "sesame")
	if err != nil || !ok {
		t.Fatalf("new password check = %v, %v", ok, err)
	}

	// Changing someone else's password needs an authenticated admin.
	if st := m.ChangePassword("admin", "other", commons.AdminUser, ""); st.Kind != status.PermissionDenied {
		t.Fatalf("non-admin change kind = %v, want PermissionDenied", st.Kind)
	}
	asAdmin(t, m)
	if st := m.ChangePassword("sesame", "opened", commons.GenericUser, ""); !st.OK() {
		t.Fatalf("admin change generic password: %s", st.Message)
	}
	ok, err = store.CheckPassword(t.Context(), commons.GenericUser, "opened")
	if err != nil || !ok {
		t.Fatalf("generic password check = %v, %v", ok, err)
	}
}

func TestBookmarks(t *testing.T) {
	m, _, _ := newTestManager(t)

	if st := m.AddBookmark("/projects/alpha"); !st.OK() {
		t.Fatalf("add bookmark: %s", st.Message)
	}
	if st := m.AddBookmark("/projects/alpha"); st.Message != "Project /projects/alpha already exists in bookmarks" {
		t.Fatalf("duplicate message = %q", st.Message)
	}
	if st := m.RemoveBookmark("/projects/beta"); st.Message != "Project /projects/beta doesn't exist in bookmarks" {
		t.Fatalf("missing message = %q", st.Message)
	}
	if st := m.AddBookmark("/projects/beta"); !st.OK() {
		t.Fatalf("add second bookmark: %s", st.Message)
	}
	if st := m.RemoveBookmark("/projects/alpha"); !st.OK() {
		t.Fatalf("remove bookmark: %s", st.Message)
	}
	got := m.Bookmarks()
	if len(got) != 1 || got[0] != "/projects/beta" {
		t.Fatalf("bookmarks = %v, want [/projects/beta]", got)
	}
}

func TestRecentProjects(t *testing.T) {
	m, _, _ := newTestManager(t)

	for i := 0; i < 12; i++ {
		path := filepath.Join("/projects", string(rune('a'+i)))
		if err := m.AddRecentProject(path); err != nil {
			t.Fatalf("add recent %s: %v", path, err)
		}
	}
	got := m.RecentProjects()
	if len(got) != maxRecentProjects {
		t.Fatalf("recents length = %d, want %d", len(got), maxRecentProjects)
	}
	if got[0] != "/projects/l" {
		t.Fatalf("newest recent = %q, want /projects/l", got[0])
	}

	// Re-opening an older project moves it to the front without duplication.
	if err := m.AddRecentProject("/projects/f"); err != nil {
		t.Fatalf("re-add recent: %v", err)
	}
	got = m.RecentProjects()
	if got[0] != "/projects/f" {
		t.Fatalf("front = %q, want /projects/f", got[0])
	}
	count := 0
	for _, p := range got {
		if p == "/projects/f" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("/projects/f appears %d times, want 1", count)
	}
}

func TestResumeStatePersists(t *testing.T) {
	root := t.TempDir()
	store, err := commons.Open(filepath.Join(root, "commons"))
	if err != nil {
		t.Fatalf("open commons store: %v", err)
	}
	defer store.Close()
	userDir := filepath.Join(root, "user")

	m, err := New(store, session.New("standalone", logging.NewNop()), userDir)
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	want := Resume{Project: "/projects/alpha", Sub: "Assets/Props", Task: "barrel", Cat: "Model", Work: "barrel_model", Version: 3}
	if err := m.SetResume(want); err != nil {
		t.Fatalf("set resume: %v", err)
	}

	m2, err := New(store, session.New("standalone", logging.NewNop()), userDir)
	if err != nil {
		t.Fatalf("recreate manager: %v", err)
	}
	if got := m2.Resume(); got != want {
		t.Fatalf("resume = %+v, want %+v", got, want)
	}
	if m2.LastProject() != want.Project {
		t.Fatalf("last project = %q, want %q", m2.LastProject(), want.Project)
	}
}
