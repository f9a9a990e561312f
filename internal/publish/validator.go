package publish

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"slate/internal/dcc"
)

// ValidationState tracks one validator through a publish attempt.
type ValidationState string

const (
	ValidationIdle    ValidationState = "idle"
	ValidationPassed  ValidationState = "passed"
	ValidationFailed  ValidationState = "failed"
	ValidationIgnored ValidationState = "ignored"
)

// Validator checks one publishability rule against the open scene. Validate
// is idempotent and safe to re-run at any time. Fix is only meaningful when
// Autofixable reports true and never implies a passing state on its own;
// callers re-run Validate afterwards.
type Validator interface {
	Name() string
	NiceName() string
	State() ValidationState
	FailMessage() string
	Ignorable() bool
	Autofixable() bool
	Selectable() bool
	CheckedByDefault() bool
	Validate(scene dcc.SceneAdapter)
	Fix(scene dcc.SceneAdapter) error
	Ignore() error
	Reset()
}

// Validation carries the shared bookkeeping of a Validator implementation.
// Concrete validators embed it and provide Validate (and Fix when
// autofixable).
type Validation struct {
	name             string
	ignorable        bool
	autofixable      bool
	selectable       bool
	checkedByDefault bool

	state       ValidationState
	failMessage string
}

func newValidation(name string) Validation {
	return Validation{
		name:             name,
		ignorable:        true,
		checkedByDefault: true,
		state:            ValidationIdle,
	}
}

func (v *Validation) Name() string { return v.name }

func (v *Validation) NiceName() string { return niceName(v.name) }

func (v *Validation) State() ValidationState { return v.state }

func (v *Validation) FailMessage() string { return v.failMessage }

func (v *Validation) Ignorable() bool { return v.ignorable }

func (v *Validation) Autofixable() bool { return v.autofixable }

func (v *Validation) Selectable() bool { return v.selectable }

func (v *Validation) CheckedByDefault() bool { return v.checkedByDefault }

// Passed records a successful validation run.
func (v *Validation) Passed() {
	v.state = ValidationPassed
	v.failMessage = ""
}

// Failed records a failed validation run with the reason shown to the user.
func (v *Validation) Failed(msg string) {
	v.state = ValidationFailed
	v.failMessage = msg
}

// Ignore force-skips a failed validator. Only ignorable validators accept it.
func (v *Validation) Ignore() error {
	if !v.ignorable {
		return fmt.Errorf("validation %s is not ignorable", v.name)
	}
	v.state = ValidationIgnored
	return nil
}

// Reset returns the validator to idle so a fresh run is required.
func (v *Validation) Reset() {
	v.state = ValidationIdle
	v.failMessage = ""
}

// Fix is a no-op for validators that are not autofixable.
func (v *Validation) Fix(dcc.SceneAdapter) error {
	return fmt.Errorf("validation %s is not autofixable", v.name)
}

var titleCaser = cases.Title(language.Und)

// niceName turns a stable snake_case key into a display label,
// e.g. "scene_saved" -> "Scene Saved".
func niceName(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}
