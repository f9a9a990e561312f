package work

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"

	"slate/internal/fileutil"
	"slate/internal/logging"
	"slate/internal/session"
	"slate/internal/status"
)

// NewVersion saves the current scene as the next version of the work.
// Numbers strictly increase and are never reused, even after soft-deleting
// the latest version. With localization enabled the file is written to the
// local cache and must be synced before other users can see it.
func (m *Manager) NewVersion(w *Work, fileFormat, notes string) (*Version, status.Status) {
	if st := m.session.CheckPermissions(session.LevelGeneric); !st.OK() {
		return nil, st
	}
	formats := m.adapter.Formats()
	if fileFormat == "" && len(formats) > 0 {
		fileFormat = formats[0]
	}
	if len(formats) > 0 && !slices.Contains(formats, fileFormat) {
		return nil, m.session.Record(status.Fail(status.Conflict,
			"File format %s is not valid for %s", fileFormat, m.adapter.Name()))
	}

	number := w.LastVersion() + 1
	versionName, _ := w.ConstructNames(fileFormat, number)
	relScene := path.Join(w.Name, versionName)

	localize := m.session.Localize()
	localized := localize.Enabled && localize.CacheWorks
	outputPath := m.absProjectPath(filepath.FromSlash(w.Path), filepath.FromSlash(relScene))
	if localized {
		outputPath = m.localizedPath(filepath.FromSlash(w.Path), filepath.FromSlash(relScene))
	}

	savedPath, err := m.adapter.SaveAs(outputPath)
	if err != nil {
		return nil, m.session.Record(status.Wrap(status.Internal, err, "save version %d of %s", number, w.Name))
	}
	// The host may force another extension; trust what was written.
	if savedPath != outputPath {
		versionName = filepath.Base(savedPath)
		fileFormat = filepath.Ext(savedPath)
		relScene = path.Join(w.Name, versionName)
	}

	hostname, _ := os.Hostname()
	v := Version{
		Number:      number,
		User:        m.session.User(),
		Workstation: hostname,
		Notes:       notes,
		ScenePath:   relScene,
		FileFormat:  fileFormat,
		DCCVersion:  m.adapter.Version(),
	}
	if localized {
		v.Localized = true
		v.LocalizedPath = savedPath
	}
	w.Versions = append(w.Versions, v)
	if err := m.save(w); err != nil {
		return nil, m.session.Record(status.Wrap(status.Internal, err, "write work %s", w.Name))
	}
	m.session.Logger().Info("version saved",
		logging.String(logging.FieldWork, w.Name),
		logging.Int(logging.FieldVersion, number),
		logging.Bool("localized", v.Localized))
	return w.Version(number), status.Success
}

// checkOwnerPermissions allows admins and the version's recorded user.
func (m *Manager) checkOwnerPermissions(v *Version) status.Status {
	if m.session.PermissionLevel() >= session.LevelAdmin {
		return m.session.CheckPermissions(session.LevelAdmin)
	}
	if m.session.User() != v.User {
		return m.session.Record(status.Fail(status.PermissionDenied,
			"You do not have the permissions for this action. Only admins and version owners are allowed"))
	}
	return m.session.CheckPermissions(session.LevelGeneric)
}

// DeleteVersion soft-deletes a version: the scene file moves to purgatory
// and the version stays in the manifest flagged deleted. Deleting an
// already-deleted version is a no-op.
func (m *Manager) DeleteVersion(w *Work, number int) status.Status {
	v := w.Version(number)
	if v == nil {
		return m.session.Record(status.Fail(status.NotFound, "Version %d does not exist", number))
	}
	if st := m.checkOwnerPermissions(v); !st.OK() {
		return st
	}
	if v.Deleted {
		return status.Success
	}
	src := m.SceneFilePath(w, v)
	dst := m.purgatoryProjectPath(filepath.FromSlash(w.Path), filepath.FromSlash(v.ScenePath))
	if _, err := os.Stat(src); err == nil {
		if err := fileutil.Move(src, dst); err != nil {
			return m.session.Record(status.Wrap(status.Internal, err, "move version %d to purgatory", number))
		}
	}
	v.Deleted = true
	if err := m.save(w); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "write work %s", w.Name))
	}
	return status.Success
}

// Resurrect brings a soft-deleted version back. Resurrecting a live version
// is a no-op, not an error, so the operation is safe to retry.
func (m *Manager) Resurrect(w *Work, number int) status.Status {
	v := w.Version(number)
	if v == nil {
		return m.session.Record(status.Fail(status.NotFound, "Version %d does not exist", number))
	}
	if st := m.checkOwnerPermissions(v); !st.OK() {
		return st
	}
	if !v.Deleted {
		return status.Success
	}
	src := m.purgatoryProjectPath(filepath.FromSlash(w.Path), filepath.FromSlash(v.ScenePath))
	dst := m.absProjectPath(filepath.FromSlash(w.Path), filepath.FromSlash(v.ScenePath))
	if v.Localized {
		dst = v.LocalizedPath
	}
	if _, err := os.Stat(src); err == nil {
		if err := fileutil.Move(src, dst); err != nil {
			return m.session.Record(status.Wrap(status.Internal, err, "restore version %d from purgatory", number))
		}
	}
	v.Deleted = false
	if err := m.save(w); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "write work %s", w.Name))
	}
	return status.Success
}

// Sync commits a localized version to the shared origin and clears the
// localized flag. Syncing a version that is not localized is a no-op. A
// vanished local file fails loudly, never silently.
func (m *Manager) Sync(w *Work, number int) status.Status {
	v := w.Version(number)
	if v == nil {
		return m.session.Record(status.Fail(status.NotFound, "Version %d does not exist", number))
	}
	if !v.Localized {
		return status.Success
	}
	origin := m.absProjectPath(filepath.FromSlash(w.Path), filepath.FromSlash(v.ScenePath))
	if _, err := os.Stat(v.LocalizedPath); errors.Is(err, fs.ErrNotExist) {
		return m.session.Record(status.Fail(status.StaleState,
			"Source path does not exist: %s", v.LocalizedPath))
	}
	if _, err := os.Stat(origin); err == nil {
		return m.session.Record(status.Fail(status.Conflict,
			"Target path already exists: %s. Origin cannot be overwritten", origin))
	}
	if err := fileutil.Move(v.LocalizedPath, origin); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "sync version %d of %s", number, w.Name))
	}
	v.Localized = false
	v.LocalizedPath = ""
	if err := m.save(w); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "write work %s", w.Name))
	}
	m.session.Logger().Info("version synced",
		logging.String(logging.FieldWork, w.Name),
		logging.Int(logging.FieldVersion, number))
	return status.Success
}

// DestroyConfirmation returns the confirmation wording for destroying the
// work. The wording escalates when published versions exist.
func (m *Manager) DestroyConfirmation(w *Work) string {
	publishes, _ := m.Publishes(w)
	if len(publishes) > 0 {
		return "This will permanently remove the work, all its versions AND all its published versions. Are you sure?"
	}
	return "This will permanently remove the work and all its versions. Are you sure?"
}

// checkDestroyPermissions enforces the owner-or-admin rules for destroying
// a whole work: admins always may; owners only when every version is their
// own and nothing was published.
func (m *Manager) checkDestroyPermissions(w *Work) status.Status {
	if m.session.PermissionLevel() >= session.LevelAdmin {
		return m.session.CheckPermissions(session.LevelAdmin)
	}
	publishes, err := m.Publishes(w)
	if err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "scan publishes of %s", w.Name))
	}
	if len(publishes) > 0 {
		return m.session.Record(status.Fail(status.PermissionDenied,
			"This work has published versions. Only admins can delete it"))
	}
	if m.session.User() != w.Creator {
		return m.session.Record(status.Fail(status.PermissionDenied,
			"You do not have the permission to delete this work. Only admins can delete other users' works"))
	}
	for i := range w.Versions {
		if w.Versions[i].User != m.session.User() {
			return m.session.Record(status.Fail(status.PermissionDenied,
				"You do not have the permission to delete this work. There are versions created by other user(s). Only admins can delete other users' works"))
		}
	}
	return m.session.CheckPermissions(session.LevelGeneric)
}

// Destroy removes the work, all its versions and its publish lineage into
// purgatory. The caller must pass the confirmation obtained from
// DestroyConfirmation.
func (m *Manager) Destroy(w *Work, confirmed bool) status.Status {
	if st := m.checkDestroyPermissions(w); !st.OK() {
		return st
	}
	if !confirmed {
		return m.session.Record(status.Fail(status.Conflict, "%s", m.DestroyConfirmation(w)))
	}

	rel := filepath.FromSlash(w.Path)
	moves := [][2]string{
		{m.absProjectPath(rel, w.Name), m.purgatoryProjectPath(rel, w.Name)},
		{m.absDatabasePath(rel, w.Name+manifestSuffix), m.purgatoryDatabasePath(rel, w.Name+manifestSuffix)},
		{m.publishDatabaseDir(w), m.purgatoryDatabasePath(rel, publishFolder, w.Name)},
		{m.publishProjectDir(w), m.purgatoryProjectPath(rel, publishFolder, w.Name)},
	}
	for _, mv := range moves {
		if _, err := os.Stat(mv[0]); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := fileutil.Move(mv[0], mv[1]); err != nil {
			return m.session.Record(status.Wrap(status.Internal, err, "send work %s to purgatory", w.Name))
		}
	}
	m.session.Logger().Info("work destroyed", logging.String(logging.FieldWork, w.Name))
	return status.Success
}
