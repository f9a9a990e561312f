package dcc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"slate/internal/fileutil"
)

// Ranges is the frame range reported by a scene adapter.
type Ranges struct {
	Start float64
	End   float64
}

// SceneAdapter is the capability set a host application must provide to the
// core. The core never imports a specific DCC; adapters live behind this
// interface.
type SceneAdapter interface {
	// Name identifies the adapter ("standalone", "maya", ...).
	Name() string
	// SceneFile returns the absolute path of the currently open scene, or
	// empty when no scene is open.
	SceneFile() string
	// SaveScene saves the current scene in place.
	SaveScene() error
	// SaveAs writes the current scene to target and returns the path
	// actually written, which may differ when the host forces a format.
	SaveAs(target string) (string, error)
	// IsModified reports unsaved changes in the current scene.
	IsModified() bool
	// SceneFPS returns the scene frame rate, or 0 when unknown.
	SceneFPS() float64
	// SceneRanges returns the scene frame range.
	SceneRanges() Ranges
	// Version returns the host application version, or "NA".
	Version() string
	// Formats lists the file extensions the host can write, preferred
	// first. An empty list accepts any extension.
	Formats() []string
	// PreSaveIssues reports advisory problems to surface before saving.
	PreSaveIssues() []string
}

// ErrNoScene is returned by the standalone adapter when no scene file is
// bound.
var ErrNoScene = errors.New("no scene file is open")

// Standalone is the file-copy adapter used by the CLI and tests. It treats
// an arbitrary file on disk as the "open scene".
type Standalone struct {
	current  string
	modified bool
	fps      float64
	ranges   Ranges
}

// NewStandalone returns a standalone adapter with no scene bound.
func NewStandalone() *Standalone {
	return &Standalone{fps: 24, ranges: Ranges{Start: 1001, End: 1100}}
}

func (s *Standalone) Name() string { return "standalone" }

// Open binds the adapter to an existing file.
func (s *Standalone) Open(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open scene: %w", err)
	}
	s.current = path
	s.modified = false
	return nil
}

// Touch marks the current scene as modified.
func (s *Standalone) Touch() { s.modified = true }

func (s *Standalone) SceneFile() string { return s.current }

func (s *Standalone) SaveScene() error {
	if s.current == "" {
		return ErrNoScene
	}
	s.modified = false
	return nil
}

func (s *Standalone) SaveAs(target string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("ensure scene directory: %w", err)
	}
	// A real host saves the in-memory scene; the previous file on disk may
	// already be gone (soft-deleted to purgatory). Fall back to an empty
	// scene when there is nothing to copy from.
	source := s.current
	if source != "" {
		if _, err := os.Stat(source); err != nil {
			source = ""
		}
	}
	if source == "" {
		if err := os.WriteFile(target, nil, 0o644); err != nil {
			return "", fmt.Errorf("write scene: %w", err)
		}
	} else if err := fileutil.CopyFile(source, target); err != nil {
		return "", fmt.Errorf("copy scene: %w", err)
	}
	s.current = target
	s.modified = false
	return target, nil
}

func (s *Standalone) IsModified() bool { return s.modified }

func (s *Standalone) SceneFPS() float64 { return s.fps }

// SetSceneFPS overrides the reported frame rate, mainly for tests.
func (s *Standalone) SetSceneFPS(fps float64) { s.fps = fps }

func (s *Standalone) SceneRanges() Ranges { return s.ranges }

// SetSceneRanges overrides the reported frame range.
func (s *Standalone) SetSceneRanges(r Ranges) { s.ranges = r }

func (s *Standalone) Version() string { return "NA" }

func (s *Standalone) Formats() []string { return nil }

func (s *Standalone) PreSaveIssues() []string { return nil }
