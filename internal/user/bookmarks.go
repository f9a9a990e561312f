package user

import (
	"slices"

	"slate/internal/status"
)

// Bookmarks returns the bookmarked project paths in insertion order.
func (m *Manager) Bookmarks() []string {
	return slices.Clone(m.bookmarks.BookmarkedProjects)
}

// AddBookmark bookmarks a project path. Duplicates are rejected.
func (m *Manager) AddBookmark(projectPath string) status.Status {
	if slices.Contains(m.bookmarks.BookmarkedProjects, projectPath) {
		return m.session.Record(status.Fail(status.Conflict,
			"Project %s already exists in bookmarks", projectPath))
	}
	m.bookmarks.BookmarkedProjects = append(m.bookmarks.BookmarkedProjects, projectPath)
	if err := saveState(m.bookmarksPath(), &m.bookmarks); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "persist bookmarks"))
	}
	return status.Success
}

// RemoveBookmark drops a project path from the bookmarks.
func (m *Manager) RemoveBookmark(projectPath string) status.Status {
	idx := slices.Index(m.bookmarks.BookmarkedProjects, projectPath)
	if idx < 0 {
		return m.session.Record(status.Fail(status.NotFound,
			"Project %s doesn't exist in bookmarks", projectPath))
	}
	m.bookmarks.BookmarkedProjects = slices.Delete(m.bookmarks.BookmarkedProjects, idx, idx+1)
	if err := saveState(m.bookmarksPath(), &m.bookmarks); err != nil {
		return m.session.Record(status.Wrap(status.Internal, err, "persist bookmarks"))
	}
	return status.Success
}

// RecentProjects returns recently opened project paths, most recent first.
func (m *Manager) RecentProjects() []string {
	return slices.Clone(m.bookmarks.RecentProjects)
}

// AddRecentProject records a project open. The list keeps at most ten
// entries; an existing entry moves to the front.
func (m *Manager) AddRecentProject(projectPath string) error {
	recents := m.bookmarks.RecentProjects
	if idx := slices.Index(recents, projectPath); idx >= 0 {
		recents = slices.Delete(recents, idx, idx+1)
	}
	recents = slices.Insert(recents, 0, projectPath)
	if len(recents) > maxRecentProjects {
		recents = recents[:maxRecentProjects]
	}
	m.bookmarks.RecentProjects = recents
	return saveState(m.bookmarksPath(), &m.bookmarks)
}

// Resume is the last-selection state restored at startup so a UI can land
// where the user left off.
type Resume struct {
	Project string
	Sub     string
	Task    string
	Cat     string
	Work    string
	Version int
}

// Resume returns the persisted last selection.
func (m *Manager) Resume() Resume {
	return Resume{
		Project: m.resume.LastProject,
		Sub:     m.resume.LastSub,
		Task:    m.resume.LastTask,
		Cat:     m.resume.LastCat,
		Work:    m.resume.LastWork,
		Version: m.resume.LastVersion,
	}
}

// SetResume persists the last selection.
func (m *Manager) SetResume(r Resume) error {
	m.resume.LastProject = r.Project
	m.resume.LastSub = r.Sub
	m.resume.LastTask = r.Task
	m.resume.LastCat = r.Cat
	m.resume.LastWork = r.Work
	m.resume.LastVersion = r.Version
	return saveState(m.resumePath(), &m.resume)
}

// LastProject returns the last opened project path.
func (m *Manager) LastProject() string { return m.resume.LastProject }

// SetLastProject persists the last opened project path.
func (m *Manager) SetLastProject(path string) error {
	m.resume.LastProject = path
	return saveState(m.resumePath(), &m.resume)
}
