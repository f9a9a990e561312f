package user

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// bookmarksState is the persisted content of bookmarks.json.
type bookmarksState struct {
	BookmarkedProjects []string `json:"bookmarked_projects"`
	RecentProjects     []string `json:"recent_projects"`
}

// resumeState is the persisted content of resume.json. It lets the UI layer
// restore the last selection when a user returns.
type resumeState struct {
	User        string `json:"user"`
	UserDigest  string `json:"user_digest,omitempty"`
	LastProject string `json:"project,omitempty"`
	LastSub     string `json:"subproject,omitempty"`
	LastTask    string `json:"task,omitempty"`
	LastCat     string `json:"category,omitempty"`
	LastWork    string `json:"work,omitempty"`
	LastVersion int    `json:"version,omitempty"`
}

func loadState(path string, target any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func saveState(path string, source any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure state directory: %w", err)
	}
	data, err := json.MarshalIndent(source, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
