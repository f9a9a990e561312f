package work

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"slate/internal/dcc"
	"slate/internal/session"
	"slate/internal/status"
)

// Work states.
const (
	StateActive    = "active"
	StateOmitted   = "omitted"
	StatePublished = "published"
)

const (
	manifestSuffix  = ".work.json"
	purgatoryDir    = ".purgatory"
	publishFolder   = "publish"
	thumbnailFolder = "thumbnails"
)

// Work is a continuously versioned scene entity. The manifest lives at
// <path>/<name>.work.json in the database tree; the version files live under
// <path>/<name>/ in the scene tree.
type Work struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Creator  string    `json:"creator"`
	Category string    `json:"category"`
	TaskID   string    `json:"task_id"`
	TaskName string    `json:"task_name"`
	DCC      string    `json:"dcc"`
	Path     string    `json:"path"`
	State    string    `json:"state"`
	Versions []Version `json:"versions"`
}

// Version is one immutable numbered snapshot of a work.
type Version struct {
	Number        int    `json:"version_number"`
	User          string `json:"user"`
	Workstation   string `json:"workstation"`
	Notes         string `json:"notes"`
	Thumbnail     string `json:"thumbnail,omitempty"`
	ScenePath     string `json:"scene_path"`
	FileFormat    string `json:"file_format"`
	DCCVersion    string `json:"dcc_version,omitempty"`
	Localized     bool   `json:"localized,omitempty"`
	LocalizedPath string `json:"localized_path,omitempty"`
	Deleted       bool   `json:"deleted,omitempty"`
}

// Manager runs work and publish-lineage operations. It reads the project
// roots and localization settings from the session, so it works against
// whichever project the session is bound to.
type Manager struct {
	session *session.Session
	adapter dcc.SceneAdapter
}

// NewManager binds a work manager to a session and a scene adapter.
func NewManager(sess *session.Session, adapter dcc.SceneAdapter) *Manager {
	return &Manager{session: sess, adapter: adapter}
}

// Adapter returns the scene adapter the manager saves through.
func (m *Manager) Adapter() dcc.SceneAdapter { return m.adapter }

func (m *Manager) absDatabasePath(elems ...string) string {
	return filepath.Join(append([]string{m.session.DatabaseRoot()}, elems...)...)
}

func (m *Manager) absProjectPath(elems ...string) string {
	return filepath.Join(append([]string{m.session.ProjectRoot()}, elems...)...)
}

func (m *Manager) purgatoryDatabasePath(elems ...string) string {
	base := []string{m.session.ProjectRoot(), purgatoryDir, filepath.Base(m.session.DatabaseRoot())}
	return filepath.Join(append(base, elems...)...)
}

func (m *Manager) purgatoryProjectPath(elems ...string) string {
	return filepath.Join(append([]string{m.session.ProjectRoot(), purgatoryDir}, elems...)...)
}

// localizedPath mirrors a relative path into the local cache directory,
// namespaced by project name.
func (m *Manager) localizedPath(elems ...string) string {
	localize := m.session.Localize()
	base := []string{localize.CacheDir, filepath.Base(m.session.ProjectRoot())}
	return filepath.Join(append(base, elems...)...)
}

func (m *Manager) manifestPath(relDir, name string) string {
	return m.absDatabasePath(filepath.FromSlash(relDir), name+manifestSuffix)
}

// Create registers a new work under the category directory relDir
// (<sub>/<task>/<category>). The first saved version is assigned by
// NewVersion, starting at 1.
func (m *Manager) Create(name, relDir, taskID, taskName, category string) (*Work, status.Status) {
	if st := m.session.CheckPermissions(session.LevelGeneric); !st.OK() {
		return nil, st
	}
	if _, err := os.Stat(m.manifestPath(relDir, name)); err == nil {
		return nil, m.session.Record(status.Fail(status.NameConflict,
			"There is a work under this category with the same name => %s", name))
	}
	w := &Work{
		ID:       uuid.NewString(),
		Name:     name,
		Creator:  m.session.User(),
		Category: category,
		TaskID:   taskID,
		TaskName: taskName,
		DCC:      m.session.DCC(),
		Path:     relDir,
		State:    StateActive,
	}
	if err := m.save(w); err != nil {
		return nil, m.session.Record(status.Wrap(status.Internal, err, "write work %s", name))
	}
	return w, status.Success
}

func (m *Manager) save(w *Work) error {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return fmt.Errorf("encode work: %w", err)
	}
	target := m.manifestPath(w.Path, w.Name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("ensure work directory: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write work manifest: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace work manifest: %w", err)
	}
	return nil
}

// Load reads a work manifest from the category directory relDir.
func (m *Manager) Load(relDir, name string) (*Work, error) {
	data, err := os.ReadFile(m.manifestPath(relDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("work %s not found under %s", name, relDir)
	}
	if err != nil {
		return nil, fmt.Errorf("read work manifest: %w", err)
	}
	var w Work
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse work manifest: %w", err)
	}
	return &w, nil
}

// Scan lists the works in the category directory relDir, ordered by name.
func (m *Manager) Scan(relDir string) ([]*Work, error) {
	pattern := m.absDatabasePath(filepath.FromSlash(relDir), "*"+manifestSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("scan works: %w", err)
	}
	sort.Strings(matches)
	works := make([]*Work, 0, len(matches))
	for _, match := range matches {
		name := strings.TrimSuffix(filepath.Base(match), manifestSuffix)
		w, err := m.Load(relDir, name)
		if err != nil {
			return nil, err
		}
		works = append(works, w)
	}
	return works, nil
}

// FindBySceneFile walks the database tree looking for the work that tracks
// the given scene file. Returns the work and the matching version number, or
// a nil work when the file is not tracked.
func (m *Manager) FindBySceneFile(scene string) (*Work, int, error) {
	target := filepath.Clean(scene)
	var found *Work
	var number int
	err := filepath.WalkDir(m.session.DatabaseRoot(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), manifestSuffix) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var w Work
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("decode work manifest %s: %w", path, err)
		}
		for i := range w.Versions {
			v := &w.Versions[i]
			if v.Deleted {
				continue
			}
			if filepath.Clean(m.SceneFilePath(&w, v)) == target {
				found = &w
				number = v.Number
				return fs.SkipAll
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return found, number, nil
}

// Version returns the version with the given number, or nil. Soft-deleted
// versions are returned too; callers filter on Deleted for display.
func (w *Work) Version(number int) *Version {
	for i := range w.Versions {
		if w.Versions[i].Number == number {
			return &w.Versions[i]
		}
	}
	return nil
}

// LastVersion returns the highest version number ever assigned, including
// soft-deleted versions, or 0 for a fresh work. Numbers are never reused.
func (w *Work) LastVersion() int {
	last := 0
	for i := range w.Versions {
		if w.Versions[i].Number > last {
			last = w.Versions[i].Number
		}
	}
	return last
}

// LiveVersions returns the versions outside purgatory.
func (w *Work) LiveVersions() []Version {
	out := make([]Version, 0, len(w.Versions))
	for _, v := range w.Versions {
		if !v.Deleted {
			out = append(out, v)
		}
	}
	return out
}

// ConstructNames returns the version file name and thumbnail name for a
// version number, e.g. "barrel_model_v003.ma".
func (w *Work) ConstructNames(fileFormat string, number int) (versionName, thumbnailName string) {
	versionName = fmt.Sprintf("%s_v%03d%s", w.Name, number, fileFormat)
	thumbnailName = fmt.Sprintf("%s_v%03d_thumbnail.jpg", w.Name, number)
	return versionName, thumbnailName
}

// SceneFilePath resolves the absolute path of a version's scene file,
// honoring localization.
func (m *Manager) SceneFilePath(w *Work, v *Version) string {
	if v.Localized {
		return v.LocalizedPath
	}
	return m.absProjectPath(filepath.FromSlash(w.Path), filepath.FromSlash(v.ScenePath))
}

// Omit hides the work from default listings without touching versions.
func (m *Manager) Omit(w *Work) status.Status {
	return m.setState(w, StateOmitted)
}

// Revive restores an omitted work.
func (m *Manager) Revive(w *Work) status.Status {
	return m.setState(w, StateActive)
}

// MarkPublished flags the work as having at least one published version.
func (m *Manager) MarkPublished(w *Work) status.Status {
	return m.setState(w, StatePublished)
}

func (m *Manager) setState(w *Work, state string) status.Status {
	if st := m.session.CheckPermissions(session.LevelGeneric); !st.OK() {
		return st
	}
	w.State = state
	if err := m.save(w); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "write work %s", w.Name))
	}
	return status.Success
}

// RewriteManifestPaths updates the recorded path of every work manifest
// below dir after its containing folders moved, replacing oldPrefix with
// newPrefix. Rename operations move the folder trees first and then call
// this so manifests keep resolving their scene files.
func RewriteManifestPaths(dir, oldPrefix, newPrefix string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), manifestSuffix) {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var w Work
		if err := json.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("decode work manifest %s: %w", path, err)
		}
		if w.Path != oldPrefix && !strings.HasPrefix(w.Path, oldPrefix+"/") {
			return nil
		}
		w.Path = newPrefix + strings.TrimPrefix(w.Path, oldPrefix)
		out, err := json.MarshalIndent(&w, "", "  ")
		if err != nil {
			return fmt.Errorf("encode work: %w", err)
		}
		return os.WriteFile(path, out, 0o644)
	})
}
