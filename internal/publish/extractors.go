package publish

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"slate/internal/dcc"
	"slate/internal/fileutil"
)

// source copies the saved scene file verbatim into the publish slot. The
// element keeps the scene's own extension, resolved at extract time.
type source struct {
	Extraction
}

// NewSource returns the source extractor.
func NewSource() Extractor {
	e := &source{Extraction: newExtraction("source", "#22cc88", "")}
	return e
}

func (e *source) Extract(scene dcc.SceneAdapter, target Target) error {
	sceneFile := scene.SceneFile()
	if sceneFile == "" {
		return fmt.Errorf("no scene file is open")
	}
	e.extension = filepath.Ext(sceneFile)
	if err := os.MkdirAll(target.Dir, 0o775); err != nil {
		return err
	}
	return fileutil.CopyFileVerified(sceneFile, e.outputPath(target))
}

// proxyManifest is the lightweight stand-in the proxy extractor writes for
// review tooling that cannot open the source element.
type proxyManifest struct {
	Source string  `json:"source"`
	FPS    float64 `json:"fps"`
	Start  float64 `json:"start_frame"`
	End    float64 `json:"end_frame"`
}

// proxy writes a review sidecar describing the source element. DCC-specific
// registries replace it with a playblast or a decimated cache.
type proxy struct {
	Extraction
}

// NewProxy returns the proxy extractor.
func NewProxy() Extractor {
	e := &proxy{Extraction: newExtraction("proxy", "#8888ff", ".proxy.json")}
	return e
}

func (e *proxy) Extract(scene dcc.SceneAdapter, target Target) error {
	sceneFile := scene.SceneFile()
	if sceneFile == "" {
		return fmt.Errorf("no scene file is open")
	}
	ranges := scene.SceneRanges()
	manifest := proxyManifest{
		Source: filepath.Base(sceneFile),
		FPS:    scene.SceneFPS(),
		Start:  ranges.Start,
		End:    ranges.End,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(target.Dir, 0o775); err != nil {
		return err
	}
	return os.WriteFile(e.outputPath(target), data, 0o664)
}
