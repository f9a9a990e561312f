package publish

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"slate/internal/commons"
	"slate/internal/dcc"
	"slate/internal/project"
	"slate/internal/session"
	"slate/internal/status"
	"slate/internal/task"
	"slate/internal/testsupport"
	"slate/internal/work"
)

type fixture struct {
	project *project.Project
	works   *work.Manager
	store   *commons.Store
	adapter *dcc.Standalone
	sess    *session.Session
	work    *work.Work
}

// newFixture builds a project with one asset task and one work at version 1.
// The adapter is left pointing at the v001 scene file, saved.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := t.Context()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	sess := testsupport.AuthenticatedSession(t, "Admin", session.LevelAdmin)

	defaults, err := store.MetadataDefaults(ctx)
	if err != nil {
		t.Fatalf("metadata defaults: %v", err)
	}
	proj, st := project.Create(sess, filepath.Join(cfg.Paths.ProjectsDir, "atlas"), defaults, nil)
	if !st.OK() {
		t.Fatalf("create project: %s", st.Message)
	}
	if _, st := proj.CreateSubProject("Assets", "", map[string]any{"mode": "asset"}); !st.OK() {
		t.Fatalf("create sub: %s", st.Message)
	}
	tasks := task.NewManager(proj, store)
	barrel, st := tasks.Create("barrel", "Assets", nil)
	if !st.OK() {
		t.Fatalf("create task: %s", st.Message)
	}

	adapter := dcc.NewStandalone()
	works := work.NewManager(sess, adapter)
	w, st := works.Create("barrel_model", barrel.CategoryPath("Model"), barrel.ID, barrel.Name, "Model")
	if !st.OK() {
		t.Fatalf("create work: %s", st.Message)
	}
	if _, st := works.NewVersion(w, ".ma", ""); !st.OK() {
		t.Fatalf("new version: %s", st.Message)
	}
	return &fixture{project: proj, works: works, store: store, adapter: adapter, sess: sess, work: w}
}

func (f *fixture) publisher() *Publisher {
	return New(f.project, f.works, f.store, Builtin())
}

// runToReserved resolves, validates and reserves in one go.
func runToReserved(t *testing.T, p *Publisher) {
	t.Helper()
	if _, st := p.Resolve(t.Context()); !st.OK() {
		t.Fatalf("resolve: %s", st.Message)
	}
	if st := p.Validate(); !st.OK() {
		t.Fatalf("validate: %s", st.Message)
	}
	if st := p.Reserve(t.Context()); !st.OK() {
		t.Fatalf("reserve: %s", st.Message)
	}
}

func TestResolveUntrackedSceneFails(t *testing.T) {
	f := newFixture(t)
	foreign := filepath.Join(t.TempDir(), "loose.ma")
	testsupport.WriteScene(t, foreign, "untracked")
	if err := f.adapter.Open(foreign); err != nil {
		t.Fatalf("open scene: %v", err)
	}

	p := f.publisher()
	if _, st := p.Resolve(t.Context()); st.Kind != status.StaleState {
		t.Fatalf("resolve kind = %v, want StaleState", st.Kind)
	}
	if p.State() != StateFailed {
		t.Fatalf("state = %v, want failed", p.State())
	}
	if st := p.Reserve(t.Context()); st.OK() {
		t.Fatal("reserve succeeded on a failed pipeline")
	}
}

func TestPublishHappyPath(t *testing.T) {
	f := newFixture(t)
	p := f.publisher()

	name, st := p.Resolve(t.Context())
	if !st.OK() {
		t.Fatalf("resolve: %s", st.Message)
	}
	if name != "barrel_model_v001" {
		t.Fatalf("publish name = %q", name)
	}
	if len(p.Validators()) != 1 || p.Validators()[0].Name() != "scene_saved" {
		t.Fatalf("validators = %v", p.Validators())
	}
	if len(p.Extractors()) != 1 || p.Extractors()[0].Name() != "source" {
		t.Fatalf("extractors = %v", p.Extractors())
	}
	if p.WorkVersion() != 1 {
		t.Fatalf("work version = %d", p.WorkVersion())
	}

	if st := p.Validate(); !st.OK() {
		t.Fatalf("validate: %s", st.Message)
	}
	if got := p.Validators()[0].State(); got != ValidationPassed {
		t.Fatalf("scene_saved state = %v", got)
	}
	if st := p.Reserve(t.Context()); !st.OK() {
		t.Fatalf("reserve: %s", st.Message)
	}
	pv := p.Reserved()
	if pv.Number != 1 || pv.State != work.PublishStatePending {
		t.Fatalf("reserved = %+v", pv)
	}

	if st := p.Extract(); !st.OK() {
		t.Fatalf("extract: %s", st.Message)
	}
	published, st := p.Publish("first publish")
	if !st.OK() {
		t.Fatalf("publish: %s", st.Message)
	}
	if p.State() != StatePublished {
		t.Fatalf("state = %v, want published", p.State())
	}
	if published.Notes != "first publish" {
		t.Fatalf("notes = %q", published.Notes)
	}
	if published.Validations["scene_saved"] != "passed" {
		t.Fatalf("validations = %v", published.Validations)
	}
	element, ok := published.Elements["source"]
	if !ok {
		t.Fatalf("elements = %v", published.Elements)
	}
	elementPath := filepath.Join(f.works.PublishElementsDir(f.work, 1), element)
	info, err := os.Stat(elementPath)
	if err != nil {
		t.Fatalf("stat element: %v", err)
	}
	if info.Mode().Perm()&0o222 != 0 {
		t.Fatalf("element is writable: %v", info.Mode())
	}

	// The manifest and the work state must survive a reload.
	onDisk, err := f.works.PublishVersionByNumber(f.work, 1)
	if err != nil || onDisk == nil {
		t.Fatalf("reload publish: %v", err)
	}
	if onDisk.State != work.PublishStatePublished || onDisk.Creator != "Admin" {
		t.Fatalf("on disk = %+v", onDisk)
	}
	reloaded, err := f.works.Load(f.work.Path, f.work.Name)
	if err != nil {
		t.Fatalf("reload work: %v", err)
	}
	if reloaded.State != work.StatePublished {
		t.Fatalf("work state = %q", reloaded.State)
	}
}

func TestSceneModifiedAfterValidationBlocksReserve(t *testing.T) {
	f := newFixture(t)
	p := f.publisher()
	if _, st := p.Resolve(t.Context()); !st.OK() {
		t.Fatalf("resolve: %s", st.Message)
	}
	if st := p.Validate(); !st.OK() {
		t.Fatalf("validate: %s", st.Message)
	}
	f.adapter.Touch()

	st := p.Reserve(t.Context())
	if st.Kind != status.StaleState {
		t.Fatalf("reserve kind = %v, want StaleState", st.Kind)
	}
	if p.State() != StateResolved {
		t.Fatalf("state = %v, want resolved", p.State())
	}
	v := p.Validators()[0]
	if v.State() != ValidationIdle {
		t.Fatalf("validator state = %v, want idle", v.State())
	}

	// Re-validation now fails on the unsaved scene; scene_saved is not
	// ignorable, so Reserve stays blocked until the fix is applied.
	if st := p.Validate(); !st.OK() {
		t.Fatalf("re-validate: %s", st.Message)
	}
	if v.State() != ValidationFailed {
		t.Fatalf("validator state = %v, want failed", v.State())
	}
	if err := v.Ignore(); err == nil {
		t.Fatal("scene_saved accepted Ignore")
	}
	if st := p.Reserve(t.Context()); st.Kind != status.ValidationFailure {
		t.Fatalf("reserve kind = %v, want ValidationFailure", st.Kind)
	}

	if err := v.Fix(f.adapter); err != nil {
		t.Fatalf("fix: %v", err)
	}
	if st := p.Validate(); !st.OK() {
		t.Fatalf("validate after fix: %s", st.Message)
	}
	if st := p.Reserve(t.Context()); !st.OK() {
		t.Fatalf("reserve after fix: %s", st.Message)
	}
}

type alwaysFail struct {
	Validation
}

func (v *alwaysFail) Validate(dcc.SceneAdapter) { v.Failed("synthetic failure") }

func TestIgnorableValidatorCanBeSkipped(t *testing.T) {
	f := newFixture(t)
	p := f.publisher()
	if _, st := p.Resolve(t.Context()); !st.OK() {
		t.Fatalf("resolve: %s", st.Message)
	}
	bad := &alwaysFail{Validation: newValidation("always_fail")}
	p.validators = append(p.validators, bad)

	if st := p.Validate(); !st.OK() {
		t.Fatalf("validate: %s", st.Message)
	}
	st := p.Reserve(t.Context())
	if st.Kind != status.ValidationFailure {
		t.Fatalf("reserve kind = %v, want ValidationFailure", st.Kind)
	}
	if !strings.Contains(st.Message, "ignore it explicitly") {
		t.Fatalf("message = %q", st.Message)
	}

	if err := bad.Ignore(); err != nil {
		t.Fatalf("ignore: %v", err)
	}
	if st := p.Reserve(t.Context()); !st.OK() {
		t.Fatalf("reserve after ignore: %s", st.Message)
	}
	if st := p.Extract(); !st.OK() {
		t.Fatalf("extract: %s", st.Message)
	}
	published, st := p.Publish("")
	if !st.OK() {
		t.Fatalf("publish: %s", st.Message)
	}
	if published.Notes != "[Auto Generated]" {
		t.Fatalf("notes = %q", published.Notes)
	}
	if published.Validations["always_fail"] != "ignored" {
		t.Fatalf("validations = %v", published.Validations)
	}
}

func TestConcurrentReserveNeverSharesANumber(t *testing.T) {
	f := newFixture(t)
	first := f.publisher()
	second := f.publisher()

	// Both pipelines resolve before either reserves, so both computed the
	// same provisional name. The numbers must still diverge because Reserve
	// re-derives from a fresh scan under the lock.
	for _, p := range []*Publisher{first, second} {
		if _, st := p.Resolve(t.Context()); !st.OK() {
			t.Fatalf("resolve: %s", st.Message)
		}
		if st := p.Validate(); !st.OK() {
			t.Fatalf("validate: %s", st.Message)
		}
	}
	if first.PublishName() != second.PublishName() {
		t.Fatalf("provisional names differ: %q vs %q", first.PublishName(), second.PublishName())
	}

	if st := first.Reserve(t.Context()); !st.OK() {
		t.Fatalf("first reserve: %s", st.Message)
	}
	if st := second.Reserve(t.Context()); !st.OK() {
		t.Fatalf("second reserve: %s", st.Message)
	}
	if first.Reserved().Number == second.Reserved().Number {
		t.Fatalf("both reserves claimed %d", first.Reserved().Number)
	}
	if second.Reserved().Number != 2 {
		t.Fatalf("second number = %d, want 2", second.Reserved().Number)
	}
}

type brokenExtractor struct {
	Extraction
}

func (e *brokenExtractor) Extract(dcc.SceneAdapter, Target) error {
	return errors.New("export crashed")
}

func TestExtractFailureNamesTheExtractorAndDiscardCleansUp(t *testing.T) {
	f := newFixture(t)
	p := f.publisher()
	if _, st := p.Resolve(t.Context()); !st.OK() {
		t.Fatalf("resolve: %s", st.Message)
	}
	broken := &brokenExtractor{Extraction: newExtraction("point_cache", "#ffffff", ".abc")}
	p.extractors = append(p.extractors, broken)

	if st := p.Validate(); !st.OK() {
		t.Fatalf("validate: %s", st.Message)
	}
	if st := p.Reserve(t.Context()); !st.OK() {
		t.Fatalf("reserve: %s", st.Message)
	}
	st := p.Extract()
	if st.Kind != status.ExtractionFailure {
		t.Fatalf("extract kind = %v, want ExtractionFailure", st.Kind)
	}
	if !strings.Contains(st.Message, "Point Cache") {
		t.Fatalf("message does not name the extractor: %q", st.Message)
	}
	if p.State() != StateFailed {
		t.Fatalf("state = %v, want failed", p.State())
	}

	// The source element extracted before the failure is left on disk.
	elementsDir := f.works.PublishElementsDir(f.work, 1)
	entries, err := os.ReadDir(elementsDir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("partial elements missing: %v (%d entries)", err, len(entries))
	}

	if st := p.Discard(); !st.OK() {
		t.Fatalf("discard: %s", st.Message)
	}
	if p.State() != StateResolved {
		t.Fatalf("state after discard = %v", p.State())
	}
	if _, err := os.Stat(elementsDir); !os.IsNotExist(err) {
		t.Fatalf("elements dir survived discard: %v", err)
	}
	if pv, err := f.works.PublishVersionByNumber(f.work, 1); err != nil || pv != nil {
		t.Fatalf("manifest survived discard: %v %v", pv, err)
	}

	// The freed number is reusable: nothing on disk claims it anymore.
	runToReserved(t, p)
	if p.Reserved().Number != 1 {
		t.Fatalf("number after discard = %d, want 1", p.Reserved().Number)
	}
}

func TestDiscardWithoutReservation(t *testing.T) {
	f := newFixture(t)
	p := f.publisher()
	if st := p.Discard(); st.Kind != status.Conflict {
		t.Fatalf("kind = %v, want Conflict", st.Kind)
	}
}

func TestPreflightWarnsOnMetadataMismatch(t *testing.T) {
	f := newFixture(t)
	p := f.publisher()
	if _, st := p.Resolve(t.Context()); !st.OK() {
		t.Fatalf("resolve: %s", st.Message)
	}

	if warnings := p.Preflight(); len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	f.adapter.SetSceneFPS(25)
	warnings := p.Preflight()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "fps") {
		t.Fatalf("warnings = %v", warnings)
	}

	// Advisory only: the pipeline still publishes.
	if st := p.Validate(); !st.OK() {
		t.Fatalf("validate: %s", st.Message)
	}
	if st := p.Reserve(t.Context()); !st.OK() {
		t.Fatalf("reserve: %s", st.Message)
	}
}

type warnCounter struct {
	warns int
}

func (h *warnCounter) Enabled(context.Context, slog.Level) bool { return true }
func (h *warnCounter) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelWarn {
		h.warns++
	}
	return nil
}
func (h *warnCounter) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *warnCounter) WithGroup(string) slog.Handler      { return h }

func TestReservePermissionFailureLogsOnce(t *testing.T) {
	ctx := t.Context()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	counter := &warnCounter{}
	sess := session.New("standalone", slog.New(counter))
	sess.SetUser("Admin", "", session.LevelAdmin)
	sess.SetAuthenticated(true)

	defaults, err := store.MetadataDefaults(ctx)
	if err != nil {
		t.Fatalf("metadata defaults: %v", err)
	}
	proj, st := project.Create(sess, filepath.Join(cfg.Paths.ProjectsDir, "atlas"), defaults, nil)
	if !st.OK() {
		t.Fatalf("create project: %s", st.Message)
	}
	if _, st := proj.CreateSubProject("Assets", "", map[string]any{"mode": "asset"}); !st.OK() {
		t.Fatalf("create sub: %s", st.Message)
	}
	tasks := task.NewManager(proj, store)
	barrel, st := tasks.Create("barrel", "Assets", nil)
	if !st.OK() {
		t.Fatalf("create task: %s", st.Message)
	}
	adapter := dcc.NewStandalone()
	works := work.NewManager(sess, adapter)
	w, st := works.Create("barrel_model", barrel.CategoryPath("Model"), barrel.ID, barrel.Name, "Model")
	if !st.OK() {
		t.Fatalf("create work: %s", st.Message)
	}
	if _, st := works.NewVersion(w, ".ma", ""); !st.OK() {
		t.Fatalf("new version: %s", st.Message)
	}

	p := New(proj, works, store, Builtin())
	if _, st := p.Resolve(ctx); !st.OK() {
		t.Fatalf("resolve: %s", st.Message)
	}
	if st := p.Validate(); !st.OK() {
		t.Fatalf("validate: %s", st.Message)
	}

	sess.SetUser("visitor", "", session.LevelObserver)
	counter.warns = 0
	st = p.Reserve(ctx)
	if st.Kind != status.PermissionDenied {
		t.Fatalf("reserve kind = %v, want PermissionDenied", st.Kind)
	}
	if counter.warns != 1 {
		t.Fatalf("permission failure logged %d times, want 1", counter.warns)
	}
}
