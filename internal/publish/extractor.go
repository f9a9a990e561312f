package publish

import (
	"path/filepath"

	"slate/internal/dcc"
)

// Target names the destination of one extract inside a reserved publish
// slot: the elements folder, the work name used as file stem, and the
// version tag ("v007").
type Target struct {
	Dir        string
	Name       string
	VersionTag string
}

// Extractor produces one element of a publish version from the saved scene.
// Extractors are independent of each other and run in category-definition
// order; a failure aborts the publish with the extractor named.
type Extractor interface {
	Name() string
	NiceName() string
	Color() string
	Extension() string
	Enabled() bool
	SetEnabled(bool)
	Extract(scene dcc.SceneAdapter, target Target) error
	// OutputName returns the element file name inside target.Dir.
	OutputName(target Target) string
}

// Extraction carries the shared bookkeeping of an Extractor implementation.
type Extraction struct {
	name      string
	color     string
	extension string
	enabled   bool
}

func newExtraction(name, color, extension string) Extraction {
	return Extraction{name: name, color: color, extension: extension, enabled: true}
}

func (e *Extraction) Name() string { return e.name }

func (e *Extraction) NiceName() string { return niceName(e.name) }

func (e *Extraction) Color() string { return e.color }

func (e *Extraction) Extension() string { return e.extension }

func (e *Extraction) Enabled() bool { return e.enabled }

func (e *Extraction) SetEnabled(enabled bool) { e.enabled = enabled }

// OutputName builds "<name>_<type><ext>", e.g. "barrel_model_source.ma".
func (e *Extraction) OutputName(target Target) string {
	return target.Name + "_" + e.name + e.extension
}

func (e *Extraction) outputPath(target Target) string {
	return filepath.Join(target.Dir, e.OutputName(target))
}
