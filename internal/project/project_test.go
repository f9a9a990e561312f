package project

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slate/internal/commons"
	"slate/internal/session"
	"slate/internal/status"
	"slate/internal/testsupport"
)

var testDefaults = map[string]commons.MetadataDefault{
	"fps":        {Key: "fps", Default: 24.0},
	"resolution": {Key: "resolution", Default: "1920x1080"},
	"mode":       {Key: "mode", Default: "", Enum: []string{"", "asset", "shot"}},
}

func newTestProject(t *testing.T) *Project {
	t.Helper()
	sess := testsupport.AuthenticatedSession(t, "Admin", session.LevelAdmin)
	p, st := Create(sess, filepath.Join(t.TempDir(), "atlas"), testDefaults, nil)
	if !st.OK() {
		t.Fatalf("create project: %s", st.Message)
	}
	return p
}

func TestCreateRequiresAdmin(t *testing.T) {
	sess := testsupport.AuthenticatedSession(t, "artist", session.LevelExperienced)
	_, st := Create(sess, filepath.Join(t.TempDir(), "atlas"), testDefaults, nil)
	if st.Kind != status.PermissionDenied {
		t.Fatalf("kind = %v, want PermissionDenied", st.Kind)
	}
}

func TestCreateRefusesExistingProject(t *testing.T) {
	sess := testsupport.AuthenticatedSession(t, "Admin", session.LevelAdmin)
	dir := filepath.Join(t.TempDir(), "atlas")
	if _, st := Create(sess, dir, testDefaults, nil); !st.OK() {
		t.Fatalf("first create: %s", st.Message)
	}
	if _, st := Create(sess, dir, testDefaults, nil); st.Kind != status.NameConflict {
		t.Fatalf("second create kind = %v, want NameConflict", st.Kind)
	}
}

func TestCreateWithStructureTemplate(t *testing.T) {
	sess := testsupport.AuthenticatedSession(t, "Admin", session.LevelAdmin)
	template := &commons.StructureTemplate{Subprojects: []commons.StructureNode{
		{Path: "Assets", Mode: "asset"},
		{Path: "Assets/Characters"},
		{Path: "Shots", Mode: "shot"},
	}}
	p, st := Create(sess, filepath.Join(t.TempDir(), "atlas"), testDefaults, template)
	if !st.OK() {
		t.Fatalf("create project: %s", st.Message)
	}

	chars := p.FindSubByPath("Assets/Characters")
	if chars == nil {
		t.Fatal("template node Assets/Characters missing")
	}
	if mode := p.EffectiveMode(chars); mode != ModeAsset {
		t.Fatalf("inherited mode = %q, want asset", mode)
	}
	for _, rel := range []string{"Assets/Characters", "Shots"} {
		if _, err := os.Stat(p.AbsProjectPath(rel)); err != nil {
			t.Fatalf("scene folder %s: %v", rel, err)
		}
		if _, err := os.Stat(p.AbsDatabasePath(rel)); err != nil {
			t.Fatalf("database folder %s: %v", rel, err)
		}
	}
}

func TestCreateSubProject(t *testing.T) {
	p := newTestProject(t)

	sub, st := p.CreateSubProject("Assets", "", map[string]any{"mode": "asset"})
	if !st.OK() {
		t.Fatalf("create sub: %s", st.Message)
	}
	if sub.Path != "Assets" {
		t.Fatalf("path = %q, want Assets", sub.Path)
	}

	if _, st := p.CreateSubProject("Assets", "", nil); st.Kind != status.NameConflict {
		t.Fatalf("sibling conflict kind = %v, want NameConflict", st.Kind)
	}
	if _, st := p.CreateSubProject("Props", "NoSuch", nil); st.Kind != status.NotFound {
		t.Fatalf("missing parent kind = %v, want NotFound", st.Kind)
	}

	nested, st := p.CreateSubProject("Props", "Assets", nil)
	if !st.OK() {
		t.Fatalf("create nested: %s", st.Message)
	}
	if nested.Path != "Assets/Props" {
		t.Fatalf("nested path = %q", nested.Path)
	}
}

func TestCreateSubProjectPermission(t *testing.T) {
	p := newTestProject(t)
	observer := testsupport.NewSession(t)
	observer.SetUser("Generic", "", session.LevelObserver)
	p.session = observer

	_, st := p.CreateSubProject("Characters", "", nil)
	if st.Kind != status.PermissionDenied {
		t.Fatalf("kind = %v, want PermissionDenied", st.Kind)
	}
	if st.Message != "This user does not have permissions for this action" {
		t.Fatalf("message = %q", st.Message)
	}
}

func TestEffectiveMetadataInheritance(t *testing.T) {
	p := newTestProject(t)
	assets, _ := p.CreateSubProject("Assets", "", map[string]any{"fps": 25.0})
	props, _ := p.CreateSubProject("Props", "Assets", nil)
	barrels, _ := p.CreateSubProject("Barrels", "Assets/Props", map[string]any{"fps": 30.0})

	tests := []struct {
		name string
		sub  *Subproject
		key  string
		want any
	}{
		{"own override", barrels, "fps", 30.0},
		{"nearest ancestor", props, "fps", 25.0},
		{"ancestor self", assets, "fps", 25.0},
		{"schema default", props, "resolution", "1920x1080"},
		{"root default", p.Root(), "fps", 24.0},
	}
	for _, tt := range tests {
		if got := p.EffectiveMetadata(tt.sub, tt.key); got != tt.want {
			t.Errorf("%s: EffectiveMetadata(%s) = %v, want %v", tt.name, tt.key, got, tt.want)
		}
	}
}

func TestOverrideToggleRestoresStoredValue(t *testing.T) {
	p := newTestProject(t)
	sub, _ := p.CreateSubProject("Seq010", "", map[string]any{"fps": 48.0})

	if st := p.EditSubProject("Seq010", "", nil, map[string]bool{"fps": false}); !st.OK() {
		t.Fatalf("disable override: %s", st.Message)
	}
	if got := p.EffectiveMetadata(sub, "fps"); got != 24.0 {
		t.Fatalf("after disable fps = %v, want schema default 24", got)
	}
	if st := p.EditSubProject("Seq010", "", nil, map[string]bool{"fps": true}); !st.OK() {
		t.Fatalf("re-enable override: %s", st.Message)
	}
	if got := p.EffectiveMetadata(sub, "fps"); got != 48.0 {
		t.Fatalf("after re-enable fps = %v, want stored 48", got)
	}
}

func TestEditSubProjectRename(t *testing.T) {
	p := newTestProject(t)
	p.CreateSubProject("Assets", "", nil)
	p.CreateSubProject("Props", "Assets", nil)
	p.CreateSubProject("Barrels", "Assets/Props", nil)
	p.CreateSubProject("Vehicles", "Assets", nil)

	if st := p.EditSubProject("Assets/Props", "Vehicles", nil, nil); st.Kind != status.NameConflict {
		t.Fatalf("rename conflict kind = %v, want NameConflict", st.Kind)
	}
	if st := p.EditSubProject("Assets/Props", "Setpieces", nil, nil); !st.OK() {
		t.Fatalf("rename: %s", st.Message)
	}
	if p.FindSubByPath("Assets/Setpieces") == nil {
		t.Fatal("renamed node not found at new path")
	}
	if p.FindSubByPath("Assets/Setpieces/Barrels") == nil {
		t.Fatal("descendant path not recomputed")
	}
}

func TestStructureRoundTrip(t *testing.T) {
	p := newTestProject(t)
	p.CreateSubProject("Assets", "", map[string]any{"mode": "asset", "fps": 25.0})
	p.CreateSubProject("Props", "Assets", nil)
	p.EditSubProject("Assets", "", nil, map[string]bool{"fps": false})

	reopened, err := Open(testsupport.AuthenticatedSession(t, "Admin", session.LevelAdmin), p.AbsolutePath(), testDefaults)
	if err != nil {
		t.Fatalf("reopen project: %v", err)
	}
	props := reopened.FindSubByPath("Assets/Props")
	if props == nil {
		t.Fatal("Assets/Props missing after reload")
	}
	if mode := reopened.EffectiveMode(props); mode != ModeAsset {
		t.Fatalf("mode after reload = %q, want asset", mode)
	}
	// Disabled overrides keep their stored value across a reload.
	assets := reopened.FindSubByPath("Assets")
	if got := reopened.EffectiveMetadata(assets, "fps"); got != 24.0 {
		t.Fatalf("disabled override fps = %v, want default 24", got)
	}
	if st := reopened.EditSubProject("Assets", "", nil, map[string]bool{"fps": true}); !st.OK() {
		t.Fatalf("re-enable after reload: %s", st.Message)
	}
	if got := reopened.EffectiveMetadata(assets, "fps"); got != 25.0 {
		t.Fatalf("restored fps = %v, want 25", got)
	}
}

func TestOpenMissingProject(t *testing.T) {
	if _, err := Open(testsupport.NewSession(t), filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Fatal("expected error for missing project")
	}
}

func TestFindSubs(t *testing.T) {
	p := newTestProject(t)
	p.CreateSubProject("Seq010", "", nil)
	p.CreateSubProject("Seq020", "", nil)
	sub, _ := p.CreateSubProject("Assets", "", nil)

	if got := p.FindSubByID(sub.ID); got != sub {
		t.Fatalf("FindSubByID = %v, want %v", got, sub)
	}
	if p.FindSubByPath("") != p.Root() {
		t.Fatal("empty path must resolve to root")
	}
	matches := p.FindSubsByWildcard("Seq*")
	if len(matches) != 2 {
		t.Fatalf("wildcard matches = %d, want 2", len(matches))
	}
	if matches[0].Name != "Seq010" || matches[1].Name != "Seq020" {
		t.Fatalf("wildcard order = %s, %s", matches[0].Name, matches[1].Name)
	}
}

func TestDeleteSubProject(t *testing.T) {
	p := newTestProject(t)
	p.CreateSubProject("Assets", "", nil)
	p.CreateSubProject("Props", "Assets", nil)

	// A node with children needs the cascade confirmation.
	if st := p.DeleteSubProject("Assets", false); st.Kind != status.Conflict {
		t.Fatalf("non-empty delete kind = %v, want Conflict", st.Kind)
	}
	if st := p.DeleteSubProject("Assets", true); !st.OK() {
		t.Fatalf("cascade delete: %s", st.Message)
	}
	if p.FindSubByPath("Assets") != nil {
		t.Fatal("Assets still present after cascade delete")
	}
	if p.FindSubByPath("Assets/Props") != nil {
		t.Fatal("descendant still present after cascade delete")
	}
	if _, err := os.Stat(p.PurgatoryDatabasePath("Assets")); err != nil {
		t.Fatalf("database tree not in purgatory: %v", err)
	}
	if _, err := os.Stat(p.AbsDatabasePath("Assets")); !os.IsNotExist(err) {
		t.Fatal("database tree still in place")
	}

	if st := p.DeleteSubProject("", false); st.Kind != status.Conflict {
		t.Fatalf("root delete kind = %v, want Conflict", st.Kind)
	}
	if st := p.DeleteSubProject("NoSuch", false); st.Kind != status.NotFound {
		t.Fatalf("missing delete kind = %v, want NotFound", st.Kind)
	}
}

func TestDeleteSubProjectDoesNotTouchSiblings(t *testing.T) {
	p := newTestProject(t)
	p.CreateSubProject("Assets", "", nil)
	p.CreateSubProject("Props", "Assets", nil)
	sibling, _ := p.CreateSubProject("Shots", "", nil)

	if st := p.DeleteSubProject("Assets", true); !st.OK() {
		t.Fatalf("cascade delete: %s", st.Message)
	}
	if !p.IsSubprojectEmpty(sibling) {
		t.Fatal("sibling emptiness changed by cascade delete")
	}
}

func TestIsSubprojectEmpty(t *testing.T) {
	p := newTestProject(t)
	sub, _ := p.CreateSubProject("Assets", "", nil)
	if !p.IsSubprojectEmpty(sub) {
		t.Fatal("fresh subproject must be empty")
	}

	// A task manifest on disk makes the node non-empty.
	manifest := p.AbsDatabasePath("Assets", "barrel.task.json")
	if err := os.WriteFile(manifest, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if p.IsSubprojectEmpty(sub) {
		t.Fatal("subproject with a task manifest must not be empty")
	}
}

func TestEditSubProjectRenameMovesTrees(t *testing.T) {
	p := newTestProject(t)
	p.CreateSubProject("Assets", "", nil)
	sub, st := p.CreateSubProject("Characters", "Assets", nil)
	if !st.OK() {
		t.Fatalf("create sub: %s", st.Message)
	}

	// A task manifest plus a work manifest below it, the way the task and
	// work managers lay them out.
	taskManifest := p.AbsDatabasePath("Assets", "Characters", "hero.task.json")
	if err := os.WriteFile(taskManifest, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	workDir := p.AbsDatabasePath("Assets", "Characters", "hero", "Model")
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		t.Fatal(err)
	}
	workManifest := filepath.Join(workDir, "hero_model.work.json")
	payload := `{"name": "hero_model", "path": "Assets/Characters/hero/Model"}`
	if err := os.WriteFile(workManifest, []byte(payload), 0o644); err != nil {
		t.Fatal(err)
	}
	sceneDir := p.AbsProjectPath("Assets", "Characters", "hero", "Model", "hero_model")
	if err := os.MkdirAll(sceneDir, 0o755); err != nil {
		t.Fatal(err)
	}

	if st := p.EditSubProject("Assets/Characters", "Heroes", nil, nil); !st.OK() {
		t.Fatalf("rename: %s", st.Message)
	}

	if _, err := os.Stat(p.AbsDatabasePath("Assets", "Heroes", "hero.task.json")); err != nil {
		t.Fatalf("task manifest not moved: %v", err)
	}
	if _, err := os.Stat(p.AbsDatabasePath("Assets", "Characters")); !os.IsNotExist(err) {
		t.Fatal("old database directory still present")
	}
	if _, err := os.Stat(p.AbsProjectPath("Assets", "Heroes", "hero", "Model", "hero_model")); err != nil {
		t.Fatalf("scene tree not moved: %v", err)
	}
	if p.IsSubprojectEmpty(sub) {
		t.Fatal("renamed node must still see its tasks")
	}

	moved, err := os.ReadFile(p.AbsDatabasePath("Assets", "Heroes", "hero", "Model", "hero_model.work.json"))
	if err != nil {
		t.Fatalf("moved work manifest: %v", err)
	}
	if !strings.Contains(string(moved), `"path": "Assets/Heroes/hero/Model"`) {
		t.Fatalf("work manifest path not rewritten: %s", moved)
	}
}
