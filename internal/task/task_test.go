package task

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"slate/internal/dcc"
	"slate/internal/project"
	"slate/internal/session"
	"slate/internal/status"
	"slate/internal/testsupport"
	"slate/internal/work"
)

func newTestManager(t *testing.T) (*Manager, *project.Project) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sess := testsupport.AuthenticatedSession(t, "Admin", session.LevelAdmin)

	p, st := project.Create(sess, filepath.Join(cfg.Paths.ProjectsDir, "atlas"), nil, nil)
	if !st.OK() {
		t.Fatalf("create project: %s", st.Message)
	}
	if _, st := p.CreateSubProject("Assets", "", map[string]any{"mode": "asset"}); !st.OK() {
		t.Fatalf("create sub: %s", st.Message)
	}
	if _, st := p.CreateSubProject("Shots", "", map[string]any{"mode": "shot"}); !st.OK() {
		t.Fatalf("create sub: %s", st.Message)
	}
	return NewManager(p, store), p
}

func TestCreateTask(t *testing.T) {
	m, _ := newTestManager(t)

	created, st := m.Create("barrel", "Assets", nil)
	if !st.OK() {
		t.Fatalf("create task: %s", st.Message)
	}
	if created.Type != "asset" {
		t.Fatalf("type = %q, want asset (derived from mode)", created.Type)
	}
	if !created.HasCategory("Model") {
		t.Fatalf("asset task missing Model category: %v", created.Categories)
	}
	if slices.Contains(created.Categories, "Animation") {
		t.Fatalf("asset task must not expose shot categories: %v", created.Categories)
	}

	if _, st := m.Create("barrel", "Assets", nil); st.Kind != status.NameConflict {
		t.Fatalf("duplicate kind = %v, want NameConflict", st.Kind)
	}
	if _, st := m.Create("orphan", "NoSuch", nil); st.Kind != status.NotFound {
		t.Fatalf("missing parent kind = %v, want NotFound", st.Kind)
	}
}

func TestCreateTaskCategoryConstraints(t *testing.T) {
	m, _ := newTestManager(t)

	if _, st := m.Create("barrel", "Assets", []string{"Animation"}); st.Kind != status.Conflict {
		t.Fatalf("shot category on asset task kind = %v, want Conflict", st.Kind)
	}
	if _, st := m.Create("barrel", "Assets", []string{"NoSuchCategory"}); st.Kind != status.NotFound {
		t.Fatalf("undefined category kind = %v, want NotFound", st.Kind)
	}
	// Global categories are valid for any mode.
	if _, st := m.Create("barrel", "Assets", []string{"Model", "Fx"}); !st.OK() {
		t.Fatalf("global category rejected: %s", st.Message)
	}

	shot, st := m.Create("sh010", "Shots", nil)
	if !st.OK() {
		t.Fatalf("create shot task: %s", st.Message)
	}
	if !shot.HasCategory("Animation") || shot.HasCategory("Model") {
		t.Fatalf("shot categories wrong: %v", shot.Categories)
	}
}

func TestCreateTaskPermission(t *testing.T) {
	m, p := newTestManager(t)
	sess := p.Session()
	sess.SetUser("artist", "", session.LevelGeneric)

	if _, st := m.Create("barrel", "Assets", nil); st.Kind != status.PermissionDenied {
		t.Fatalf("kind = %v, want PermissionDenied", st.Kind)
	}
}

func TestScanTasks(t *testing.T) {
	m, _ := newTestManager(t)
	m.Create("barrel", "Assets", nil)
	m.Create("anvil", "Assets", nil)

	tasks, err := m.Scan("Assets")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("scanned %d tasks, want 2", len(tasks))
	}
	if tasks[0].Name != "anvil" || tasks[1].Name != "barrel" {
		t.Fatalf("scan order = %s, %s", tasks[0].Name, tasks[1].Name)
	}
}

func TestEditTask(t *testing.T) {
	m, _ := newTestManager(t)
	m.Create("barrel", "Assets", nil)
	m.Create("anvil", "Assets", nil)

	if st := m.Edit("Assets", "barrel", "anvil", "", nil); st.Kind != status.NameConflict {
		t.Fatalf("rename conflict kind = %v, want NameConflict", st.Kind)
	}
	if st := m.Edit("Assets", "barrel", "keg", "", []string{"Model", "Rig"}); !st.OK() {
		t.Fatalf("edit: %s", st.Message)
	}
	renamed, err := m.Load("Assets", "keg")
	if err != nil {
		t.Fatalf("load renamed: %v", err)
	}
	if len(renamed.Categories) != 2 {
		t.Fatalf("categories = %v", renamed.Categories)
	}
	if _, err := m.Load("Assets", "barrel"); err == nil {
		t.Fatal("old manifest still present after rename")
	}
}

func TestDeleteTask(t *testing.T) {
	m, p := newTestManager(t)
	created, _ := m.Create("barrel", "Assets", nil)

	if st := m.Delete("Assets", "nosuch"); st.Kind != status.NotFound {
		t.Fatalf("missing task kind = %v, want NotFound", st.Kind)
	}
	if st := m.Delete("Assets", "barrel"); !st.OK() {
		t.Fatalf("delete empty task: %s", st.Message)
	}
	if _, err := m.Load("Assets", "barrel"); err == nil {
		t.Fatal("manifest still present after delete")
	}

	// Recreate with a work manifest inside: delete needs admin and moves to
	// purgatory.
	created, _ = m.Create("barrel", "Assets", nil)
	workManifest := p.AbsDatabasePath(filepath.FromSlash(created.CategoryPath("Model")), "barrel_model.work.json")
	if err := os.MkdirAll(filepath.Dir(workManifest), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(workManifest, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if m.IsEmpty(created) {
		t.Fatal("task with a work manifest must not be empty")
	}
	if st := m.Delete("Assets", "barrel"); !st.OK() {
		t.Fatalf("delete non-empty task: %s", st.Message)
	}
	if _, err := os.Stat(p.PurgatoryDatabasePath("Assets", "barrel.task.json")); err != nil {
		t.Fatalf("manifest not in purgatory: %v", err)
	}
}

func TestCategoryOperations(t *testing.T) {
	m, _ := newTestManager(t)
	m.Create("barrel", "Assets", []string{"Model", "Rig"})

	if st := m.AddCategory("Assets", "barrel", "Model"); st.Kind != status.Conflict {
		t.Fatalf("duplicate category kind = %v, want Conflict", st.Kind)
	}
	if st := m.AddCategory("Assets", "barrel", "LookDev"); !st.OK() {
		t.Fatalf("add category: %s", st.Message)
	}
	if st := m.AddCategory("Assets", "barrel", "Animation"); st.Kind != status.Conflict {
		t.Fatalf("mode mismatch kind = %v, want Conflict", st.Kind)
	}

	if st := m.OrderCategories("Assets", "barrel", []string{"Rig", "Model"}); st.Kind != status.Conflict {
		t.Fatalf("short order kind = %v, want Conflict", st.Kind)
	}
	if st := m.OrderCategories("Assets", "barrel", []string{"Rig", "Model", "Fx"}); st.Kind != status.Conflict {
		t.Fatalf("foreign order kind = %v, want Conflict", st.Kind)
	}
	if st := m.OrderCategories("Assets", "barrel", []string{"LookDev", "Rig", "Model"}); !st.OK() {
		t.Fatalf("order: %s", st.Message)
	}
	ordered, _ := m.Load("Assets", "barrel")
	if ordered.Categories[0] != "LookDev" {
		t.Fatalf("order not applied: %v", ordered.Categories)
	}

	if st := m.DeleteCategory("Assets", "barrel", "Rig"); !st.OK() {
		t.Fatalf("delete category: %s", st.Message)
	}
	if st := m.DeleteCategory("Assets", "barrel", "Rig"); st.Kind != status.NotFound {
		t.Fatalf("repeat delete kind = %v, want NotFound", st.Kind)
	}
}

func TestEditTaskRenameKeepsWorksResolvable(t *testing.T) {
	m, p := newTestManager(t)
	created, st := m.Create("barrel", "Assets", nil)
	if !st.OK() {
		t.Fatalf("create task: %s", st.Message)
	}

	works := work.NewManager(p.Session(), dcc.NewStandalone())
	w, st := works.Create("barrel_model", created.CategoryPath("Model"), created.ID, created.Name, "Model")
	if !st.OK() {
		t.Fatalf("create work: %s", st.Message)
	}
	if _, st := works.NewVersion(w, ".ma", ""); !st.OK() {
		t.Fatalf("new version: %s", st.Message)
	}

	if st := m.Edit("Assets", "barrel", "keg", "", nil); !st.OK() {
		t.Fatalf("rename: %s", st.Message)
	}

	moved, err := works.Load("Assets/keg/Model", "barrel_model")
	if err != nil {
		t.Fatalf("load work after rename: %v", err)
	}
	if moved.Path != "Assets/keg/Model" {
		t.Fatalf("work path = %q, want Assets/keg/Model", moved.Path)
	}
	if _, err := os.Stat(works.SceneFilePath(moved, moved.Version(1))); err != nil {
		t.Fatalf("scene file unresolvable after rename: %v", err)
	}
}
