package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"slate/internal/commons"
	"slate/internal/fileutil"
	"slate/internal/project"
	"slate/internal/session"
	"slate/internal/status"
	"slate/internal/work"
)

const manifestSuffix = ".task.json"

// Task is a named unit of work under a subproject, persisted as
// <name>.task.json in the database tree. Its type is fixed at creation
// from the parent subproject's effective mode and constrains which
// categories it may carry.
type Task struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Creator    string   `json:"creator"`
	Type       string   `json:"type"`
	Categories []string `json:"categories"`
	Path       string   `json:"path"`
}

// HasCategory reports whether the task carries the named category.
func (t *Task) HasCategory(name string) bool {
	return slices.Contains(t.Categories, name)
}

// CategoryPath returns the category directory relative to the project roots.
func (t *Task) CategoryPath(category string) string {
	return t.Path + "/" + t.Name + "/" + category
}

// Manager runs task operations against one project, with category
// definitions resolved from the commons store.
type Manager struct {
	project *project.Project
	store   *commons.Store
}

// NewManager binds a task manager to a project and the commons store.
func NewManager(p *project.Project, store *commons.Store) *Manager {
	return &Manager{project: p, store: store}
}

func (m *Manager) session() *session.Session { return m.project.Session() }

func (m *Manager) manifestPath(subPath, name string) string {
	return m.project.AbsDatabasePath(filepath.FromSlash(subPath), name+manifestSuffix)
}

// Create adds a task under the subproject at subPath. With nil categories
// the defaults for the subproject's effective mode are used; explicit
// categories are checked against the definitions valid for that mode.
func (m *Manager) Create(name, subPath string, categories []string) (*Task, status.Status) {
	sess := m.session()
	if st := sess.CheckPermissions(session.LevelExperienced); !st.OK() {
		return nil, st
	}
	sub := m.project.FindSubByPath(subPath)
	if sub == nil {
		return nil, sess.Record(status.Fail(status.NotFound, "Parent subproject does not exist"))
	}
	mode := m.project.EffectiveMode(sub)

	if categories == nil {
		names, err := m.store.CategoriesForMode(context.Background(), mode)
		if err != nil {
			return nil, sess.Record(status.Wrap(status.Internal, err, "load category definitions"))
		}
		categories = names
	} else if st := m.validateCategories(categories, mode); !st.OK() {
		return nil, sess.Record(st)
	}

	target := m.manifestPath(subPath, name)
	if _, err := os.Stat(target); err == nil {
		return nil, sess.Record(status.Fail(status.NameConflict,
			"There is a task under this sub-project with the same name => %s", name))
	}
	t := &Task{
		ID:         uuid.NewString(),
		Name:       name,
		Creator:    sess.User(),
		Type:       mode,
		Categories: categories,
		Path:       sub.Path,
	}
	if err := m.save(t); err != nil {
		return nil, sess.Record(status.Wrap(status.Internal, err, "write task %s", name))
	}
	return t, status.Success
}

func (m *Manager) validateCategories(categories []string, mode string) status.Status {
	ctx := context.Background()
	for _, name := range categories {
		def, err := m.store.CategoryDefinition(ctx, name)
		if errors.Is(err, commons.ErrDefinitionNotFound) {
			return status.Fail(status.NotFound,
				"Category '%s' is not defined in category definitions", name)
		}
		if err != nil {
			return status.Wrap(status.Internal, err, "load category definition %s", name)
		}
		if mode != "" && def.Type != commons.TypeGlobal && def.Type != mode {
			return status.Fail(status.Conflict,
				"Category '%s' is not applicable for '%s' type tasks", name, mode)
		}
	}
	return status.Success
}

func (m *Manager) save(t *Task) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	target := m.manifestPath(t.Path, t.Name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("ensure task directory: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write task manifest: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace task manifest: %w", err)
	}
	return nil
}

// Load reads the task manifest under subPath.
func (m *Manager) Load(subPath, name string) (*Task, error) {
	data, err := os.ReadFile(m.manifestPath(subPath, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("task %s not found under %s", name, subPath)
	}
	if err != nil {
		return nil, fmt.Errorf("read task manifest: %w", err)
	}
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse task manifest: %w", err)
	}
	return &t, nil
}

// Scan lists the tasks under the subproject at subPath, ordered by name.
func (m *Manager) Scan(subPath string) ([]*Task, error) {
	pattern := m.project.AbsDatabasePath(filepath.FromSlash(subPath), "*"+manifestSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	sort.Strings(matches)
	tasks := make([]*Task, 0, len(matches))
	for _, match := range matches {
		name := strings.TrimSuffix(filepath.Base(match), manifestSuffix)
		t, err := m.Load(subPath, name)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// IsEmpty reports whether no category of the task holds any work manifest.
func (m *Manager) IsEmpty(t *Task) bool {
	for _, category := range t.Categories {
		pattern := m.project.AbsDatabasePath(filepath.FromSlash(t.CategoryPath(category)), "*.work.json")
		if matches, _ := filepath.Glob(pattern); len(matches) > 0 {
			return false
		}
	}
	return true
}

// Edit renames and/or re-types and/or re-categorizes a task in one step.
// Empty newName / newType and nil categories leave the field untouched.
func (m *Manager) Edit(subPath, name, newName, newType string, categories []string) status.Status {
	sess := m.session()
	if st := sess.CheckPermissions(session.LevelExperienced); !st.OK() {
		return st
	}
	t, err := m.Load(subPath, name)
	if err != nil {
		return sess.Record(status.Fail(status.NotFound, "There is no task with the name => %s", name))
	}
	if newType != "" && newType != t.Type {
		t.Type = newType
	}
	if categories != nil {
		if st := m.validateCategories(categories, t.Type); !st.OK() {
			return sess.Record(st)
		}
		t.Categories = categories
	}
	if newName != "" && newName != t.Name {
		if _, err := os.Stat(m.manifestPath(subPath, newName)); err == nil {
			return sess.Record(status.Fail(status.NameConflict,
				"Task name '%s' already exists in sub '%s'", newName, subPath))
		}
		oldManifest := m.manifestPath(subPath, t.Name)
		oldDirRel := t.Path + "/" + t.Name
		t.Name = newName
		if err := m.save(t); err != nil {
			return sess.Record(status.Wrap(status.Internal, err, "write task %s", newName))
		}
		_ = os.Remove(oldManifest)
		newDirRel := t.Path + "/" + newName
		for _, root := range []string{m.project.DatabasePath(), m.project.AbsolutePath()} {
			oldDir := filepath.Join(root, filepath.FromSlash(oldDirRel))
			if _, statErr := os.Stat(oldDir); statErr == nil {
				newDir := filepath.Join(root, filepath.FromSlash(newDirRel))
				if moveErr := fileutil.Move(oldDir, newDir); moveErr != nil {
					return sess.Record(status.Wrap(status.Internal, moveErr, "rename task folders"))
				}
			}
		}
		// Work manifests under the task record paths through the old task
		// name; without the rewrite their scene files stop resolving.
		newDbDir := m.project.AbsDatabasePath(filepath.FromSlash(newDirRel))
		if err := work.RewriteManifestPaths(newDbDir, oldDirRel, newDirRel); err != nil {
			return sess.Record(status.Wrap(status.Internal, err, "rewrite work manifests under %s", newDirRel))
		}
		return status.Success
	}
	if err := m.save(t); err != nil {
		return sess.Record(status.Wrap(status.Internal, err, "write task %s", t.Name))
	}
	return status.Success
}

// Delete removes a task. An empty task needs level 2 and deletes in place;
// a non-empty task needs level 3 and its trees move to purgatory.
func (m *Manager) Delete(subPath, name string) status.Status {
	sess := m.session()
	if st := sess.CheckPermissions(session.LevelExperienced); !st.OK() {
		return st
	}
	t, err := m.Load(subPath, name)
	if err != nil {
		return sess.Record(status.Fail(status.NotFound, "There is no task with the name => %s", name))
	}
	empty := m.IsEmpty(t)
	if !empty {
		if st := sess.CheckPermissions(session.LevelAdmin); !st.OK() {
			return st
		}
	}
	if empty {
		if err := os.Remove(m.manifestPath(subPath, name)); err != nil {
			return sess.Record(status.Wrap(status.Internal, err, "delete task %s", name))
		}
		return status.Success
	}

	fileName := name + manifestSuffix
	rel := filepath.FromSlash(t.Path)
	moves := [][2]string{
		{m.project.AbsDatabasePath(rel, fileName), m.project.PurgatoryDatabasePath(rel, fileName)},
		{m.project.AbsDatabasePath(rel, name), m.project.PurgatoryDatabasePath(rel, name)},
		{m.project.AbsProjectPath(rel, name), m.project.PurgatoryProjectPath(rel, name)},
	}
	for _, mv := range moves {
		if _, statErr := os.Stat(mv[0]); errors.Is(statErr, fs.ErrNotExist) {
			continue
		}
		if moveErr := fileutil.Move(mv[0], mv[1]); moveErr != nil {
			return sess.Record(status.Wrap(status.Internal, moveErr, "send task %s to purgatory", name))
		}
	}
	return status.Success
}

// AddCategory appends a defined category to the task.
func (m *Manager) AddCategory(subPath, taskName, category string) status.Status {
	sess := m.session()
	if st := sess.CheckPermissions(session.LevelExperienced); !st.OK() {
		return st
	}
	t, err := m.Load(subPath, taskName)
	if err != nil {
		return sess.Record(status.Fail(status.NotFound, "There is no task with the name => %s", taskName))
	}
	if st := m.validateCategories([]string{category}, t.Type); !st.OK() {
		return sess.Record(st)
	}
	if t.HasCategory(category) {
		return sess.Record(status.Fail(status.Conflict,
			"Category '%s' already exists in task '%s'", category, t.Name))
	}
	t.Categories = append(t.Categories, category)
	if err := m.save(t); err != nil {
		return sess.Record(status.Wrap(status.Internal, err, "write task %s", t.Name))
	}
	return status.Success
}

// DeleteCategory removes a category from the task. A non-empty category
// needs admin level and its trees move to purgatory.
func (m *Manager) DeleteCategory(subPath, taskName, category string) status.Status {
	sess := m.session()
	if st := sess.CheckPermissions(session.LevelExperienced); !st.OK() {
		return st
	}
	t, err := m.Load(subPath, taskName)
	if err != nil {
		return sess.Record(status.Fail(status.NotFound, "There is no task with the name => %s", taskName))
	}
	if !t.HasCategory(category) {
		return sess.Record(status.Fail(status.NotFound,
			"Category '%s' does not exist in task '%s'", category, t.Name))
	}
	pattern := m.project.AbsDatabasePath(filepath.FromSlash(t.CategoryPath(category)), "*.work.json")
	matches, _ := filepath.Glob(pattern)
	if len(matches) > 0 {
		if st := sess.CheckPermissions(session.LevelAdmin); !st.OK() {
			return st
		}
		rel := filepath.FromSlash(t.CategoryPath(category))
		moves := [][2]string{
			{m.project.AbsDatabasePath(rel), m.project.PurgatoryDatabasePath(rel)},
			{m.project.AbsProjectPath(rel), m.project.PurgatoryProjectPath(rel)},
		}
		for _, mv := range moves {
			if _, statErr := os.Stat(mv[0]); errors.Is(statErr, fs.ErrNotExist) {
				continue
			}
			if moveErr := fileutil.Move(mv[0], mv[1]); moveErr != nil {
				return sess.Record(status.Wrap(status.Internal, moveErr, "send category %s to purgatory", category))
			}
		}
	}
	idx := slices.Index(t.Categories, category)
	t.Categories = slices.Delete(t.Categories, idx, idx+1)
	if err := m.save(t); err != nil {
		return sess.Record(status.Wrap(status.Internal, err, "write task %s", t.Name))
	}
	return status.Success
}

// OrderCategories replaces the category order. The new order must be a
// permutation of the current categories.
func (m *Manager) OrderCategories(subPath, taskName string, newOrder []string) status.Status {
	sess := m.session()
	if st := sess.CheckPermissions(session.LevelExperienced); !st.OK() {
		return st
	}
	t, err := m.Load(subPath, taskName)
	if err != nil {
		return sess.Record(status.Fail(status.NotFound, "There is no task with the name => %s", taskName))
	}
	if len(newOrder) != len(t.Categories) {
		return sess.Record(status.Fail(status.Conflict,
			"New order list is not the same length as the current categories list"))
	}
	for _, category := range newOrder {
		if !t.HasCategory(category) {
			return sess.Record(status.Fail(status.Conflict,
				"New order list contains a category that is not in the current categories list"))
		}
	}
	t.Categories = slices.Clone(newOrder)
	if err := m.save(t); err != nil {
		return sess.Record(status.Wrap(status.Internal, err, "write task %s", t.Name))
	}
	return status.Success
}
