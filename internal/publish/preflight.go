package publish

import (
	"fmt"

	"slate/internal/dcc"
)

// Metadata is the effective metadata snapshot of the subproject owning the
// work, keyed the way the commons defines it (fps, start_frame, ...).
type Metadata map[string]any

// PreflightWarnings compares the open scene against the effective metadata
// and returns advisory warning strings. Warnings never block the pipeline;
// the caller decides whether to surface or override them.
func PreflightWarnings(scene dcc.SceneAdapter, meta Metadata) []string {
	var warnings []string
	if want, ok := asFloat(meta["fps"]); ok {
		if got := scene.SceneFPS(); got != want {
			warnings = append(warnings, fmt.Sprintf("Scene fps %v does not match the expected %v", got, want))
		}
	}
	ranges := scene.SceneRanges()
	if want, ok := asFloat(meta["start_frame"]); ok && ranges.Start != want {
		warnings = append(warnings, fmt.Sprintf("Scene start frame %v does not match the expected %v", ranges.Start, want))
	}
	if want, ok := asFloat(meta["end_frame"]); ok && ranges.End != want {
		warnings = append(warnings, fmt.Sprintf("Scene end frame %v does not match the expected %v", ranges.End, want))
	}
	if want, ok := meta["dcc_version"].(string); ok && want != "" {
		if got := scene.Version(); got != want {
			warnings = append(warnings, fmt.Sprintf("Scene was opened with %s %s, the subproject expects %s", scene.Name(), got, want))
		}
	}
	warnings = append(warnings, scene.PreSaveIssues()...)
	return warnings
}

func asFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
