package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteScene writes a throwaway scene file with the given content, creating
// parent directories as needed.
func WriteScene(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if content == "" {
		content = "scene"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
