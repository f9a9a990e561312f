package publish

import (
	"fmt"
	"os"

	"slate/internal/dcc"
)

// sceneSaved blocks publishing from an unsaved scene. It is not ignorable:
// the extracted elements must come from a file on disk, not from memory.
type sceneSaved struct {
	Validation
}

// NewSceneSaved returns the scene_saved validator.
func NewSceneSaved() Validator {
	v := &sceneSaved{Validation: newValidation("scene_saved")}
	v.ignorable = false
	v.autofixable = true
	return v
}

func (v *sceneSaved) Validate(scene dcc.SceneAdapter) {
	if scene.SceneFile() == "" {
		v.Failed("No scene file is open")
		return
	}
	if scene.IsModified() {
		v.Failed("Scene has unsaved changes")
		return
	}
	v.Passed()
}

func (v *sceneSaved) Fix(scene dcc.SceneAdapter) error {
	return scene.SaveScene()
}

// defaultMaxSceneBytes is the file_size warning threshold. Oversized scenes
// usually mean baked caches that belong in an extract, not the work file.
const defaultMaxSceneBytes = int64(2) << 30

// fileSize warns about oversized scene files. Ignorable on purpose.
type fileSize struct {
	Validation
	maxBytes int64
}

// NewFileSize returns the file_size validator with the default threshold.
func NewFileSize() Validator {
	v := &fileSize{Validation: newValidation("file_size"), maxBytes: defaultMaxSceneBytes}
	return v
}

func (v *fileSize) Validate(scene dcc.SceneAdapter) {
	path := scene.SceneFile()
	if path == "" {
		v.Failed("No scene file is open")
		return
	}
	info, err := os.Stat(path)
	if err != nil {
		v.Failed(fmt.Sprintf("Scene file cannot be checked: %v", err))
		return
	}
	if info.Size() > v.maxBytes {
		v.Failed(fmt.Sprintf("Scene file is %d bytes, above the %d byte limit", info.Size(), v.maxBytes))
		return
	}
	v.Passed()
}

// Configure applies descriptor settings: max_bytes and ignorable.
func (v *fileSize) Configure(settings map[string]any) error {
	if raw, ok := settings["max_bytes"]; ok {
		size, ok := asInt64(raw)
		if !ok {
			return fmt.Errorf("file_size: max_bytes must be a number, got %T", raw)
		}
		if size <= 0 {
			return fmt.Errorf("file_size: max_bytes must be positive, got %d", size)
		}
		v.maxBytes = size
	}
	if raw, ok := settings["ignorable"]; ok {
		flag, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("file_size: ignorable must be a bool, got %T", raw)
		}
		v.ignorable = flag
	}
	return nil
}

func asInt64(value any) (int64, bool) {
	switch n := value.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
