package dcc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStandaloneOpenAndSave(t *testing.T) {
	dir := t.TempDir()
	scene := filepath.Join(dir, "scene_v001.ma")
	if err := os.WriteFile(scene, []byte("scene"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStandalone()
	if err := s.Open(filepath.Join(dir, "missing.ma")); err == nil {
		t.Fatal("Open accepted a missing file")
	}
	if err := s.Open(scene); err != nil {
		t.Fatalf("Open: %v", err)
	}

	s.Touch()
	if !s.IsModified() {
		t.Fatal("Touch did not mark the scene modified")
	}
	if err := s.SaveScene(); err != nil {
		t.Fatalf("SaveScene: %v", err)
	}
	if s.IsModified() {
		t.Fatal("SaveScene left the scene modified")
	}

	target := filepath.Join(dir, "nested", "scene_v002.ma")
	saved, err := s.SaveAs(target)
	if err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if saved != target || s.SceneFile() != target {
		t.Fatalf("SaveAs bound %q, want %q", s.SceneFile(), target)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "scene" {
		t.Fatalf("saved content = %q", got)
	}
}

func TestStandaloneSaveAsWithVanishedSource(t *testing.T) {
	dir := t.TempDir()
	scene := filepath.Join(dir, "scene_v001.ma")
	if err := os.WriteFile(scene, []byte("scene"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStandalone()
	if err := s.Open(scene); err != nil {
		t.Fatalf("Open: %v", err)
	}
	// The file on disk can disappear underneath an open scene, for example
	// when that version is soft-deleted to purgatory. Saving must still
	// produce a new version.
	if err := os.Remove(scene); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(dir, "scene_v002.ma")
	saved, err := s.SaveAs(target)
	if err != nil {
		t.Fatalf("SaveAs after source vanished: %v", err)
	}
	if _, err := os.Stat(saved); err != nil {
		t.Fatalf("saved scene missing: %v", err)
	}
}
