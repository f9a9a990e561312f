package session

import (
	"testing"

	"slate/internal/status"
)

func TestCheckPermissionsOrdersLevelBeforeAuth(t *testing.T) {
	s := New("standalone", nil)
	s.SetUser("Generic", "", LevelGeneric)

	// Below the required level: permission failure wins even though the
	// user is also unauthenticated.
	st := s.CheckPermissions(LevelAdmin)
	if st.Kind != status.PermissionDenied {
		t.Fatalf("kind = %v, want PermissionDenied", st.Kind)
	}

	st = s.CheckPermissions(LevelGeneric)
	if st.Kind != status.NotAuthenticated {
		t.Fatalf("kind = %v, want NotAuthenticated", st.Kind)
	}

	s.SetAuthenticated(true)
	if st := s.CheckPermissions(LevelGeneric); !st.OK() {
		t.Fatalf("CheckPermissions: %v", st)
	}
}

func TestRecordKeepsLastFailure(t *testing.T) {
	s := New("", nil)
	if s.DCC() != "standalone" {
		t.Fatalf("DCC = %q, want standalone fallback", s.DCC())
	}

	ok := s.Record(status.Success)
	if !ok.OK() || s.LastMessage() != "" {
		t.Fatalf("successful status must pass through unrecorded")
	}

	s.Record(status.Fail(status.NotFound, "no such task"))
	if s.LastMessage() != "no such task" {
		t.Fatalf("LastMessage = %q", s.LastMessage())
	}
}

func TestSetUserClampsLevel(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, LevelObserver},
		{LevelExperienced, LevelExperienced},
		{99, LevelAdmin},
	}
	for _, tt := range tests {
		s := New("standalone", nil)
		s.SetUser("u", "", tt.in)
		if got := s.PermissionLevel(); got != tt.want {
			t.Fatalf("SetUser(%d): level = %d, want %d", tt.in, got, tt.want)
		}
	}
}
