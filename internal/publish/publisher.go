package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"slate/internal/commons"
	"slate/internal/fileutil"
	"slate/internal/logging"
	"slate/internal/project"
	"slate/internal/session"
	"slate/internal/status"
	"slate/internal/work"
)

// State is the publish pipeline position. Failed absorbs every step until
// the scene is resolved again; Discard is the only way back out of a
// reserved slot that will not be published.
type State string

const (
	StateIdle       State = "idle"
	StateResolved   State = "resolved"
	StateValidating State = "validating"
	StateReserved   State = "reserved"
	StateExtracting State = "extracting"
	StatePublished  State = "published"
	StateFailed     State = "failed"
)

const autoNotes = "[Auto Generated]"

// Publisher drives one publish attempt over the scene currently open in the
// adapter: resolve, validate, reserve, extract, publish. Resolve and
// Validate are read-only and safe to repeat; Reserve is the single
// mutual-exclusion point and claims the version number on disk immediately,
// before any extractor writes a file.
type Publisher struct {
	project  *project.Project
	works    *work.Manager
	store    *commons.Store
	registry *Registry

	state       State
	work        *work.Work
	workVersion int
	metadata    Metadata
	validators  []Validator
	extractors  []Extractor
	publishName string
	reserved    *work.PublishVersion
}

// New binds a publisher to an open project, its work manager, the commons
// store and a plugin registry.
func New(p *project.Project, works *work.Manager, store *commons.Store, registry *Registry) *Publisher {
	return &Publisher{
		project:  p,
		works:    works,
		store:    store,
		registry: registry,
		state:    StateIdle,
	}
}

// State returns the pipeline position.
func (p *Publisher) State() State { return p.state }

// Work returns the resolved work, or nil before Resolve.
func (p *Publisher) Work() *work.Work { return p.work }

// WorkVersion returns the work version number the open scene belongs to.
func (p *Publisher) WorkVersion() int { return p.workVersion }

// Validators returns the resolved validators in category-definition order.
func (p *Publisher) Validators() []Validator { return p.validators }

// Extractors returns the resolved extractors in category-definition order.
func (p *Publisher) Extractors() []Extractor { return p.extractors }

// PublishName returns the display name computed at resolve time. The real
// version number is allocated at Reserve, not here.
func (p *Publisher) PublishName() string { return p.publishName }

// Reserved returns the claimed publish slot, or nil before Reserve.
func (p *Publisher) Reserved() *work.PublishVersion { return p.reserved }

// Metadata returns the effective metadata snapshot taken at resolve time.
func (p *Publisher) Metadata() Metadata { return p.metadata }

func (p *Publisher) session() *session.Session { return p.project.Session() }

func (p *Publisher) fail(st status.Status) status.Status {
	p.state = StateFailed
	return p.session().Record(st)
}

// Resolve binds the pipeline to the work tracking the open scene, resolves
// the category's validators and extractors, and computes the next publish
// name. It allocates nothing; repeat it freely.
func (p *Publisher) Resolve(ctx context.Context) (string, status.Status) {
	p.work = nil
	p.workVersion = 0
	p.metadata = nil
	p.validators = nil
	p.extractors = nil
	p.publishName = ""
	p.reserved = nil

	scene := p.works.Adapter().SceneFile()
	if scene == "" {
		return "", p.fail(status.Fail(status.StaleState, "No scene file is open. Aborting"))
	}
	w, vnum, err := p.works.FindBySceneFile(scene)
	if err != nil {
		return "", p.fail(status.Wrap(status.Internal, err, "scan works for %s", scene))
	}
	if w == nil {
		return "", p.fail(status.Fail(status.StaleState, "Scene file %s is not tracked by any work", scene))
	}
	p.work = w
	p.workVersion = vnum
	p.metadata = p.snapshotMetadata(ctx, w)

	def, err := p.store.CategoryDefinition(ctx, w.Category)
	if err != nil && !errors.Is(err, commons.ErrDefinitionNotFound) {
		return "", p.fail(status.Wrap(status.Internal, err, "load category definition %s", w.Category))
	}
	for _, name := range def.Validations {
		v, ok := p.registry.Validator(name)
		if !ok {
			p.session().Logger().Debug("validator not registered, skipping",
				logging.String("validator", name))
			continue
		}
		p.validators = append(p.validators, v)
	}
	for _, name := range def.Extracts {
		e, ok := p.registry.Extractor(name)
		if !ok {
			p.session().Logger().Debug("extractor not registered, skipping",
				logging.String("extractor", name))
			continue
		}
		p.extractors = append(p.extractors, e)
	}

	next, err := p.works.NextPublishNumber(w)
	if err != nil {
		return "", p.fail(status.Wrap(status.Internal, err, "scan publishes of %s", w.Name))
	}
	p.publishName = fmt.Sprintf("%s_v%03d", w.Name, next)
	p.state = StateResolved
	return p.publishName, status.Success
}

// snapshotMetadata reads the effective metadata of the subproject owning
// the work. The work path is <sub...>/<task>/<category>.
func (p *Publisher) snapshotMetadata(ctx context.Context, w *work.Work) Metadata {
	parts := strings.Split(w.Path, "/")
	subPath := ""
	if len(parts) > 2 {
		subPath = strings.Join(parts[:len(parts)-2], "/")
	}
	sub := p.project.FindSubByPath(subPath)
	if sub == nil {
		return Metadata{}
	}
	meta := Metadata{}
	defaults, err := p.store.MetadataDefaults(ctx)
	if err != nil {
		p.session().Logger().Warn("metadata defaults unavailable", logging.Error(err))
		return meta
	}
	for key := range defaults {
		if value := p.project.EffectiveMetadata(sub, key); value != nil {
			meta[key] = value
		}
	}
	return meta
}

// Preflight compares the open scene against the effective metadata. The
// warnings are advisory only.
func (p *Publisher) Preflight() []string {
	if p.state == StateIdle || p.state == StateFailed {
		return nil
	}
	return PreflightWarnings(p.works.Adapter(), p.metadata)
}

// Validate runs every resolved validator. The run is idempotent; failed
// validators stay failed until the scene is fixed or they are ignored.
func (p *Publisher) Validate() status.Status {
	if p.state != StateResolved && p.state != StateValidating {
		return p.session().Record(status.Fail(status.Conflict, "Nothing to validate. Resolve the scene first"))
	}
	scene := p.works.Adapter()
	for _, v := range p.validators {
		v.Validate(scene)
	}
	p.state = StateValidating
	return status.Success
}

// blockingValidator returns the first validator that keeps Reserve from
// proceeding, or nil when the set is clean.
func (p *Publisher) blockingValidator() Validator {
	for _, v := range p.validators {
		switch v.State() {
		case ValidationPassed, ValidationIgnored:
		default:
			return v
		}
	}
	return nil
}

// Reserve claims the next publish version number on disk. It takes the
// per-work file lock, re-scans for the freshest number and writes the
// manifest exclusively, so two concurrent publishes of the same work can
// never claim the same slot.
func (p *Publisher) Reserve(ctx context.Context) status.Status {
	sess := p.session()
	switch p.state {
	case StateResolved, StateValidating:
	case StateFailed:
		return sess.Record(status.Fail(status.Conflict, "Publish pipeline has failed. Resolve the scene again"))
	default:
		return sess.Record(status.Fail(status.Conflict, "Resolve the scene before reserving a publish slot"))
	}
	if st := sess.CheckPermissions(session.LevelGeneric); !st.OK() {
		return st
	}
	if len(p.validators) > 0 {
		if p.state != StateValidating {
			return sess.Record(status.Fail(status.ValidationFailure, "Validation has not been run"))
		}
		// A recorded failure wins over staleness: re-validating a modified
		// scene records fresh results, and those must be reported as such.
		if v := p.blockingValidator(); v != nil {
			if v.State() == ValidationFailed && v.Ignorable() {
				return sess.Record(status.Fail(status.ValidationFailure,
					"Validator %s failed: %s. Fix the scene or ignore it explicitly", v.NiceName(), v.FailMessage()))
			}
			if v.State() == ValidationFailed {
				return sess.Record(status.Fail(status.ValidationFailure,
					"Validator %s failed: %s", v.NiceName(), v.FailMessage()))
			}
			return sess.Record(status.Fail(status.ValidationFailure,
				"Validator %s has not been validated", v.NiceName()))
		}
		if p.works.Adapter().IsModified() {
			for _, v := range p.validators {
				if v.State() == ValidationPassed {
					v.Reset()
				}
			}
			p.state = StateResolved
			return sess.Record(status.Fail(status.StaleState, "Scene has been modified after validation. Validate again"))
		}
	}

	lockPath := p.works.PublishLockPath(p.work)
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o775); err != nil {
		return p.fail(status.Wrap(status.Internal, err, "prepare publish folder for %s", p.work.Name))
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return p.fail(status.Wrap(status.Internal, err, "acquire publish lock for %s", p.work.Name))
	}
	if !locked {
		return p.fail(status.Fail(status.Conflict, "Another publish is in flight for %s", p.work.Name))
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			sess.Logger().Warn("failed to release publish lock", logging.Error(err))
		}
	}()

	number, err := p.works.NextPublishNumber(p.work)
	if err != nil {
		return p.fail(status.Wrap(status.Internal, err, "scan publishes of %s", p.work.Name))
	}
	pv := &work.PublishVersion{
		ID:          uuid.NewString(),
		Name:        p.work.Name,
		Number:      number,
		Creator:     sess.User(),
		WorkID:      p.work.ID,
		WorkVersion: p.workVersion,
		TaskName:    p.work.TaskName,
		Category:    p.work.Category,
		DCC:         p.works.Adapter().Name(),
		CreatedAt:   time.Now().UTC(),
		State:       work.PublishStatePending,
		Elements:    map[string]string{},
	}
	if err := p.works.WritePublishExclusive(p.work, pv); err != nil {
		return p.fail(status.Wrap(status.Conflict, err, "reserve publish slot %d of %s", number, p.work.Name))
	}
	p.reserved = pv
	p.publishName = fmt.Sprintf("%s_v%03d", p.work.Name, number)
	p.state = StateReserved
	sess.Logger().Info("publish slot reserved",
		logging.String(logging.FieldWork, p.work.Name),
		logging.Int(logging.FieldVersion, number))
	return status.Success
}

// Extract runs the enabled extractors against the reserved slot, in order.
// The first failure aborts the publish naming the extractor; anything
// already written stays on disk until Discard removes it.
func (p *Publisher) Extract() status.Status {
	if p.state != StateReserved {
		return p.session().Record(status.Fail(status.Conflict, "Reserve a publish slot before extracting"))
	}
	scene := p.works.Adapter()
	if err := scene.SaveScene(); err != nil {
		return p.fail(status.Wrap(status.Internal, err, "save scene before extraction"))
	}
	target := Target{
		Dir:        p.works.PublishElementsDir(p.work, p.reserved.Number),
		Name:       p.work.Name,
		VersionTag: fmt.Sprintf("v%03d", p.reserved.Number),
	}
	started := time.Now()
	for _, e := range p.extractors {
		if !e.Enabled() {
			continue
		}
		if err := e.Extract(scene, target); err != nil {
			return p.fail(status.Wrap(status.ExtractionFailure, err, "Extractor %s failed: %v", e.NiceName(), err))
		}
		p.reserved.Elements[e.Name()] = e.OutputName(target)
	}
	p.session().Logger().Info("elements extracted",
		logging.String(logging.FieldWork, p.work.Name),
		logging.Int("elements", len(p.reserved.Elements)),
		logging.Duration("elapsed", time.Since(started)))
	p.state = StateExtracting
	return status.Success
}

// Publish finalizes the reserved slot: element mapping, validation
// snapshot, notes, creator and timestamp land in the manifest, the elements
// are write-protected and the work is flagged published.
func (p *Publisher) Publish(notes string) (*work.PublishVersion, status.Status) {
	if p.state != StateExtracting {
		return nil, p.session().Record(status.Fail(status.Conflict, "Extract the elements before publishing"))
	}
	if notes == "" {
		notes = autoNotes
	}
	p.reserved.Notes = notes
	p.reserved.State = work.PublishStatePublished
	if len(p.validators) > 0 {
		p.reserved.Validations = make(map[string]string, len(p.validators))
		for _, v := range p.validators {
			p.reserved.Validations[v.Name()] = string(v.State())
		}
	}
	if err := p.works.SavePublish(p.work, p.reserved); err != nil {
		return nil, p.fail(status.Wrap(status.Internal, err, "finalize publish %s", p.publishName))
	}
	if err := protectElements(p.works.PublishElementsDir(p.work, p.reserved.Number)); err != nil {
		p.session().Logger().Warn("element write protection failed", logging.Error(err))
	}
	if st := p.works.MarkPublished(p.work); !st.OK() {
		return nil, p.fail(st)
	}
	p.state = StatePublished
	p.session().Logger().Info("publish complete",
		logging.String(logging.FieldWork, p.work.Name),
		logging.Int(logging.FieldVersion, p.reserved.Number),
		logging.Int("elements", len(p.reserved.Elements)))
	return p.reserved, status.Success
}

// Discard is the manual compensator for an abandoned attempt: it deletes
// the reserved manifest and any partially extracted elements, then drops
// the pipeline back to resolved so the scene can be validated again.
func (p *Publisher) Discard() status.Status {
	if p.reserved == nil {
		return p.session().Record(status.Fail(status.Conflict, "There is no reserved publish slot to discard"))
	}
	if p.state == StatePublished {
		return p.session().Record(status.Fail(status.Conflict, "Publish %s is already finalized", p.publishName))
	}
	if err := p.works.DiscardPending(p.work, p.reserved.Number); err != nil {
		return p.session().Record(status.Wrap(status.Internal, err, "discard publish %s", p.publishName))
	}
	p.session().Logger().Info("publish slot discarded",
		logging.String(logging.FieldWork, p.work.Name),
		logging.Int(logging.FieldVersion, p.reserved.Number))
	p.reserved = nil
	p.state = StateResolved
	return status.Success
}

// protectElements strips the write bits from every extracted file. Folders
// stay writable so Discard and admin deletes keep working.
func protectElements(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if errors.Is(err, fs.ErrNotExist) {
			return fs.SkipAll
		}
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		return fileutil.WriteProtect(path)
	})
}
