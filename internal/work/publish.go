package work

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"slate/internal/session"
	"slate/internal/status"
)

// Publish states.
const (
	PublishStatePending   = "pending"
	PublishStatePublished = "published"
)

const publishSuffix = ".pub.json"

// PublishVersion is one numbered production deliverable derived from a work.
// Its manifest lives at <path>/publish/<work>/<work>_v%03d.pub.json; the
// elements live under the matching scene-side folder.
type PublishVersion struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Number      int               `json:"version_number"`
	Creator     string            `json:"creator"`
	WorkID      string            `json:"work_id"`
	WorkVersion int               `json:"work_version,omitempty"`
	TaskName    string            `json:"task_name"`
	Category    string            `json:"category"`
	DCC         string            `json:"dcc"`
	Notes       string            `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	State       string            `json:"state"`
	Elements    map[string]string `json:"element_mapping"`
	Validations map[string]string `json:"validations,omitempty"`
	Promoted    bool              `json:"promoted,omitempty"`
	Deleted     bool              `json:"deleted,omitempty"`
}

func (m *Manager) publishDatabaseDir(w *Work) string {
	return m.absDatabasePath(filepath.FromSlash(w.Path), publishFolder, w.Name)
}

func (m *Manager) publishProjectDir(w *Work) string {
	return m.absProjectPath(filepath.FromSlash(w.Path), publishFolder, w.Name)
}

// PublishElementsDir returns the scene-side folder the elements of one
// publish version are written into.
func (m *Manager) PublishElementsDir(w *Work, number int) string {
	return filepath.Join(m.publishProjectDir(w), fmt.Sprintf("v%03d", number))
}

// PublishLockPath returns the per-work lock file guarding publish
// version-number allocation across processes.
func (m *Manager) PublishLockPath(w *Work) string {
	return filepath.Join(m.publishDatabaseDir(w), w.Name+".lock")
}

func (m *Manager) publishManifestPath(w *Work, number int) string {
	return filepath.Join(m.publishDatabaseDir(w), fmt.Sprintf("%s_v%03d%s", w.Name, number, publishSuffix))
}

// Publishes lists the publish lineage of a work ordered by number,
// soft-deleted versions included.
func (m *Manager) Publishes(w *Work) ([]*PublishVersion, error) {
	pattern := filepath.Join(m.publishDatabaseDir(w), "*"+publishSuffix)
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("scan publishes: %w", err)
	}
	versions := make([]*PublishVersion, 0, len(matches))
	for _, match := range matches {
		data, err := os.ReadFile(match)
		if err != nil {
			return nil, fmt.Errorf("read publish manifest: %w", err)
		}
		var pv PublishVersion
		if err := json.Unmarshal(data, &pv); err != nil {
			return nil, fmt.Errorf("parse publish manifest %s: %w", filepath.Base(match), err)
		}
		versions = append(versions, &pv)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].Number < versions[j].Number })
	return versions, nil
}

// PublishVersionByNumber returns one publish version, or nil.
func (m *Manager) PublishVersionByNumber(w *Work, number int) (*PublishVersion, error) {
	data, err := os.ReadFile(m.publishManifestPath(w, number))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read publish manifest: %w", err)
	}
	var pv PublishVersion
	if err := json.Unmarshal(data, &pv); err != nil {
		return nil, fmt.Errorf("parse publish manifest: %w", err)
	}
	return &pv, nil
}

// NextPublishNumber derives the next free publish number from a fresh
// on-disk scan. Callers that need cross-process exclusion must hold the
// publish lock while calling this and writing the manifest.
func (m *Manager) NextPublishNumber(w *Work) (int, error) {
	versions, err := m.Publishes(w)
	if err != nil {
		return 0, err
	}
	last := 0
	for _, pv := range versions {
		if pv.Number > last {
			last = pv.Number
		}
	}
	return last + 1, nil
}

// WritePublishExclusive creates the manifest for a freshly allocated number.
// The O_EXCL create makes a lost race visible as an error instead of a
// silent overwrite.
func (m *Manager) WritePublishExclusive(w *Work, pv *PublishVersion) error {
	target := m.publishManifestPath(w, pv.Number)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("ensure publish directory: %w", err)
	}
	data, err := json.MarshalIndent(pv, "", "  ")
	if err != nil {
		return fmt.Errorf("encode publish manifest: %w", err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("reserve publish slot %d: %w", pv.Number, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write publish manifest: %w", err)
	}
	return f.Close()
}

// SavePublish rewrites an existing publish manifest.
func (m *Manager) SavePublish(w *Work, pv *PublishVersion) error {
	target := m.publishManifestPath(w, pv.Number)
	data, err := json.MarshalIndent(pv, "", "  ")
	if err != nil {
		return fmt.Errorf("encode publish manifest: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write publish manifest: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace publish manifest: %w", err)
	}
	return nil
}

// Promote marks one publish version as the production-selected one. At most
// one version per lineage is promoted; promoting implicitly un-promotes the
// previous.
func (m *Manager) Promote(w *Work, number int) status.Status {
	if st := m.session.CheckPermissions(session.LevelExperienced); !st.OK() {
		return st
	}
	versions, err := m.Publishes(w)
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "scan publishes of %s", w.Name))
	}
	var target *PublishVersion
	for _, pv := range versions {
		if pv.Number == number {
			target = pv
		}
	}
	if target == nil || target.Deleted {
		return m.session.Record(status.Fail(status.NotFound, "Publish version %d does not exist", number))
	}
	for _, pv := range versions {
		changed := false
		if pv.Number == number && !pv.Promoted {
			pv.Promoted = true
			changed = true
		} else if pv.Number != number && pv.Promoted {
			pv.Promoted = false
			changed = true
		}
		if changed {
			if err := m.SavePublish(w, pv); err != nil {
				return m.session.Record(status.Wrap(status.Internal, err, "update publish %d", pv.Number))
			}
		}
	}
	return status.Success
}

// DeletePublishVersion soft-deletes a publish version. Published
// deliverables are production-facing, so this is admin-only.
func (m *Manager) DeletePublishVersion(w *Work, number int) status.Status {
	if st := m.session.CheckPermissions(session.LevelAdmin); !st.OK() {
		return st
	}
	pv, err := m.PublishVersionByNumber(w, number)
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "load publish %d", number))
	}
	if pv == nil {
		return m.session.Record(status.Fail(status.NotFound, "Publish version %d does not exist", number))
	}
	if pv.Deleted {
		return status.Success
	}
	pv.Deleted = true
	pv.Promoted = false
	if err := m.SavePublish(w, pv); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "update publish %d", number))
	}
	return status.Success
}

// ResurrectPublishVersion restores a soft-deleted publish version. A live
// version is a no-op.
func (m *Manager) ResurrectPublishVersion(w *Work, number int) status.Status {
	if st := m.session.CheckPermissions(session.LevelAdmin); !st.OK() {
		return st
	}
	pv, err := m.PublishVersionByNumber(w, number)
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "load publish %d", number))
	}
	if pv == nil {
		return m.session.Record(status.Fail(status.NotFound, "Publish version %d does not exist", number))
	}
	if !pv.Deleted {
		return status.Success
	}
	pv.Deleted = false
	if err := m.SavePublish(w, pv); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "update publish %d", number))
	}
	return status.Success
}

// DiscardPending removes the manifest and any extracted elements of a
// publish version that never reached the published state. Published slots
// are refused; use DeletePublishVersion for those.
func (m *Manager) DiscardPending(w *Work, number int) error {
	pv, err := m.PublishVersionByNumber(w, number)
	if err != nil {
		return err
	}
	if pv == nil {
		return nil
	}
	if pv.State == PublishStatePublished {
		return fmt.Errorf("publish version %d of %s is already published", number, w.Name)
	}
	if err := os.RemoveAll(m.PublishElementsDir(w, number)); err != nil {
		return err
	}
	return os.Remove(m.publishManifestPath(w, number))
}
