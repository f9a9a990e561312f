package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"slate/internal/commons"
	"slate/internal/fileutil"
	"slate/internal/logging"
	"slate/internal/session"
	"slate/internal/status"
	"slate/internal/work"
)

const (
	databaseDirName   = "slateDatabase"
	structureFileName = "project_structure.json"
	purgatoryDirName  = ".purgatory"
)

// Project is the root container bound to a directory pair: the scene root
// holding the artists' files and a shadow database root mirroring the same
// relative paths with JSON manifests. It owns the subproject arena.
type Project struct {
	session *session.Session

	name         string
	absolutePath string
	databasePath string

	tree     *arena
	defaults map[string]any
}

// Create initializes a new project directory pair. Requires an authenticated
// admin. A structure template from commons may pre-populate the tree.
func Create(sess *session.Session, absolutePath string, defaults map[string]commons.MetadataDefault, structure *commons.StructureTemplate) (*Project, status.Status) {
	if st := sess.CheckPermissions(session.LevelAdmin); !st.OK() {
		return nil, st
	}
	structurePath := filepath.Join(absolutePath, databaseDirName, structureFileName)
	if _, err := os.Stat(structurePath); err == nil {
		return nil, sess.Record(status.Fail(status.NameConflict,
			"Project already exists at %s", absolutePath))
	}
	if err := os.MkdirAll(filepath.Join(absolutePath, databaseDirName), 0o755); err != nil {
		return nil, sess.Record(status.Wrap(status.Internal, err, "create project directories"))
	}

	root := &Subproject{ID: uuid.NewString(), Name: filepath.Base(absolutePath), Metadata: Metadata{}}
	p := &Project{
		session:      sess,
		name:         root.Name,
		absolutePath: absolutePath,
		databasePath: filepath.Join(absolutePath, databaseDirName),
		tree:         newArena(root),
		defaults:     defaultsMap(defaults),
	}
	if structure != nil {
		for _, tpl := range structure.Subprojects {
			if st := p.instantiateTemplateNode(tpl); !st.OK() {
				return nil, st
			}
		}
	}
	if err := p.saveStructure(); err != nil {
		return nil, sess.Record(status.Wrap(status.Internal, err, "persist project structure"))
	}
	sess.SetRoots(p.absolutePath, p.databasePath)
	sess.Logger().Info("project created",
		logging.String(logging.FieldProject, p.name),
		logging.String("path", p.absolutePath))
	return p, status.Success
}

func (p *Project) instantiateTemplateNode(tpl commons.StructureNode) status.Status {
	parentPath := filepath.ToSlash(filepath.Dir(tpl.Path))
	if parentPath == "." {
		parentPath = ""
	}
	parent := p.tree.byPath(parentPath)
	if parent == nil {
		return status.Fail(status.NotFound, "Structure template references missing parent %s", parentPath)
	}
	node := &Subproject{ID: uuid.NewString(), Name: filepath.Base(tpl.Path), Metadata: Metadata{}}
	if tpl.Mode != "" {
		node.Metadata.Set("mode", tpl.Mode)
	}
	p.tree.insert(parent, node)
	return status.Success
}

// Open binds to an existing project directory pair and loads its structure.
func Open(sess *session.Session, absolutePath string, defaults map[string]commons.MetadataDefault) (*Project, error) {
	databasePath := filepath.Join(absolutePath, databaseDirName)
	data, err := os.ReadFile(filepath.Join(databasePath, structureFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no project at %s", absolutePath)
	}
	if err != nil {
		return nil, fmt.Errorf("read project structure: %w", err)
	}
	var root structureNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse project structure: %w", err)
	}

	p := &Project{
		session:      sess,
		name:         root.Name,
		absolutePath: absolutePath,
		databasePath: databasePath,
		tree:         importArena(root),
		defaults:     defaultsMap(defaults),
	}
	sess.SetRoots(p.absolutePath, p.databasePath)
	return p, nil
}

func defaultsMap(defaults map[string]commons.MetadataDefault) map[string]any {
	out := make(map[string]any, len(defaults))
	for key, d := range defaults {
		out[key] = d.Default
	}
	return out
}

// Name returns the project name, taken from its directory name.
func (p *Project) Name() string { return p.name }

// AbsolutePath returns the scene root of the project.
func (p *Project) AbsolutePath() string { return p.absolutePath }

// DatabasePath returns the shadow database root of the project.
func (p *Project) DatabasePath() string { return p.databasePath }

// Session returns the session the project is bound to.
func (p *Project) Session() *session.Session { return p.session }

// Root returns the root node of the subproject tree.
func (p *Project) Root() *Subproject { return p.tree.root() }

// Subprojects returns the direct children of the given node.
func (p *Project) Subprojects(sub *Subproject) []*Subproject {
	return p.tree.children(sub.ID)
}

// FindSubByID returns the subproject with the given id, or nil.
func (p *Project) FindSubByID(id string) *Subproject { return p.tree.node(id) }

// FindSubByPath returns the subproject at the given relative path; the empty
// path resolves to the project root.
func (p *Project) FindSubByPath(relPath string) *Subproject { return p.tree.byPath(relPath) }

// FindSubsByWildcard returns the subprojects whose names match the pattern,
// ordered by path.
func (p *Project) FindSubsByWildcard(pattern string) []*Subproject {
	return p.tree.byWildcard(pattern)
}

// AbsDatabasePath joins path elements onto the database root.
func (p *Project) AbsDatabasePath(elems ...string) string {
	return filepath.Join(append([]string{p.databasePath}, elems...)...)
}

// AbsProjectPath joins path elements onto the scene root.
func (p *Project) AbsProjectPath(elems ...string) string {
	return filepath.Join(append([]string{p.absolutePath}, elems...)...)
}

// PurgatoryDatabasePath joins path elements onto the purgatory database tree.
func (p *Project) PurgatoryDatabasePath(elems ...string) string {
	return filepath.Join(append([]string{p.absolutePath, purgatoryDirName, databaseDirName}, elems...)...)
}

// PurgatoryProjectPath joins path elements onto the purgatory scene tree.
func (p *Project) PurgatoryProjectPath(elems ...string) string {
	return filepath.Join(append([]string{p.absolutePath, purgatoryDirName}, elems...)...)
}

// EffectiveMetadata resolves a key for the given node: the nearest node up
// the ancestor chain (including the node itself) with an override wins,
// falling back to the commons schema default. The walk is O(depth).
func (p *Project) EffectiveMetadata(sub *Subproject, key string) any {
	for node := sub; node != nil; node = p.tree.node(node.ParentID) {
		if node.Metadata.IsOverridden(key) {
			value, _ := node.Metadata.Value(key)
			return value
		}
		if node.ID == p.tree.rootID {
			break
		}
	}
	return p.defaults[key]
}

// EffectiveMode resolves the node's mode through the inheritance chain.
func (p *Project) EffectiveMode(sub *Subproject) string {
	mode, _ := p.EffectiveMetadata(sub, "mode").(string)
	return mode
}

// CreateSubProject adds a subproject under the parent path and persists the
// structure. Overrides become overridden metadata on the new node; nil
// values are skipped.
func (p *Project) CreateSubProject(name, parentPath string, overrides map[string]any) (*Subproject, status.Status) {
	if st := p.session.CheckPermissions(session.LevelExperienced); !st.OK() {
		return nil, st
	}
	parent := p.tree.byPath(parentPath)
	if parent == nil {
		return nil, p.session.Record(status.Fail(status.NotFound, "Parent subproject does not exist"))
	}
	if p.tree.child(parent.ID, name) != nil {
		return nil, p.session.Record(status.Fail(status.NameConflict,
			"%s already exist in sub-projects of %s", name, parent.Name))
	}

	node := &Subproject{ID: uuid.NewString(), Name: name, Metadata: Metadata{}}
	for key, value := range overrides {
		if value == nil {
			continue
		}
		node.Metadata.Set(key, value)
	}
	p.tree.insert(parent, node)
	if err := p.saveStructure(); err != nil {
		p.tree.remove(node)
		return nil, p.session.Record(status.Wrap(status.Internal, err, "persist project structure"))
	}
	return node, status.Success
}

// EditSubProject renames a node and/or adjusts its metadata in one step.
// Values in setValues become overridden; entries in overridden toggle the
// flag without touching stored values, so disabling and re-enabling an
// override restores the previous value.
func (p *Project) EditSubProject(relPath, newName string, setValues map[string]any, overridden map[string]bool) status.Status {
	if st := p.session.CheckPermissions(session.LevelExperienced); !st.OK() {
		return st
	}
	sub := p.tree.byPath(relPath)
	if sub == nil {
		return p.session.Record(status.Fail(status.NotFound, "Subproject cannot be found"))
	}
	if newName != "" && newName != sub.Name {
		if sub.ID == p.tree.rootID {
			return p.session.Record(status.Fail(status.Conflict, "Project root cannot be renamed"))
		}
		if p.tree.child(sub.ParentID, newName) != nil {
			return p.session.Record(status.Fail(status.NameConflict,
				"%s already exist in sub-projects of %s", newName, p.tree.node(sub.ParentID).Name))
		}
		oldPath := sub.Path
		sub.Name = newName
		p.recomputePaths(sub)
		if st := p.moveSubTrees(oldPath, sub.Path); !st.OK() {
			return st
		}
	}
	for key, value := range setValues {
		if value == nil {
			continue
		}
		sub.Metadata.Set(key, value)
	}
	for key, flag := range overridden {
		sub.Metadata.SetOverridden(key, flag)
	}
	if err := p.saveStructure(); err != nil {
		return p.session.Record(status.Wrap(status.Internal, err, "persist project structure"))
	}
	return status.Success
}

// moveSubTrees relocates the mirrored database and scene directories of a
// renamed node, then rewrites the paths recorded inside the moved work
// manifests. Without both steps the tasks and works under the node would be
// stranded at the old location.
func (p *Project) moveSubTrees(oldRel, newRel string) status.Status {
	for _, dirs := range [][2]string{
		{p.AbsDatabasePath(filepath.FromSlash(oldRel)), p.AbsDatabasePath(filepath.FromSlash(newRel))},
		{p.AbsProjectPath(filepath.FromSlash(oldRel)), p.AbsProjectPath(filepath.FromSlash(newRel))},
	} {
		if _, err := os.Stat(dirs[0]); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := fileutil.Move(dirs[0], dirs[1]); err != nil {
			return p.session.Record(status.Wrap(status.Internal, err, "rename subproject folders"))
		}
	}
	if err := work.RewriteManifestPaths(p.AbsDatabasePath(filepath.FromSlash(newRel)), oldRel, newRel); err != nil {
		return p.session.Record(status.Wrap(status.Internal, err, "rewrite work manifests under %s", newRel))
	}
	return status.Success
}

func (p *Project) recomputePaths(sub *Subproject) {
	parent := p.tree.node(sub.ParentID)
	base := ""
	if parent != nil {
		base = parent.Path
	}
	p.tree.walk(sub.ID, func(node *Subproject) {
		if node.ID == sub.ID {
			node.Path = joinRel(base, node.Name)
			return
		}
		node.Path = joinRel(p.tree.node(node.ParentID).Path, node.Name)
	})
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// IsSubprojectEmpty reports whether the node has no child subprojects and no
// task manifests on disk.
func (p *Project) IsSubprojectEmpty(sub *Subproject) bool {
	if len(sub.ChildIDs) > 0 {
		return false
	}
	matches, _ := filepath.Glob(filepath.Join(p.AbsDatabasePath(filepath.FromSlash(sub.Path)), "*.task.json"))
	return len(matches) == 0
}

// DeleteSubProject removes a node. A non-empty node needs admin level and an
// explicit cascade confirmation; its disk trees move to purgatory rather
// than being destroyed in place. The delete itself is not reversible.
func (p *Project) DeleteSubProject(relPath string, cascade bool) status.Status {
	if st := p.session.CheckPermissions(session.LevelExperienced); !st.OK() {
		return st
	}
	sub := p.tree.byPath(relPath)
	if sub == nil {
		return p.session.Record(status.Fail(status.NotFound, "Subproject cannot be found"))
	}
	if sub.ID == p.tree.rootID {
		return p.session.Record(status.Fail(status.Conflict, "Project root cannot be deleted"))
	}
	if !p.IsSubprojectEmpty(sub) {
		if st := p.session.CheckPermissions(session.LevelAdmin); !st.OK() {
			return st
		}
		if !cascade {
			return p.session.Record(status.Fail(status.Conflict,
				"Subproject %s is not empty. Cascade confirmation is required to delete it", sub.Name))
		}
	}

	rel := filepath.FromSlash(sub.Path)
	if err := moveToPurgatory(p.AbsDatabasePath(rel), p.PurgatoryDatabasePath(rel)); err != nil {
		return p.session.Record(status.Wrap(status.Internal, err, "move %s database tree to purgatory", sub.Name))
	}
	if err := moveToPurgatory(p.AbsProjectPath(rel), p.PurgatoryProjectPath(rel)); err != nil {
		return p.session.Record(status.Wrap(status.Internal, err, "move %s scene tree to purgatory", sub.Name))
	}

	p.tree.remove(sub)
	if err := p.saveStructure(); err != nil {
		return p.session.Record(status.Wrap(status.Internal, err, "persist project structure"))
	}
	p.session.Logger().Info("subproject deleted",
		logging.String(logging.FieldProject, p.name),
		logging.String("subproject", relPath))
	return status.Success
}

func moveToPurgatory(src, dst string) error {
	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fileutil.Move(src, dst)
}

// saveStructure persists the tree and mirrors its folders under both roots.
func (p *Project) saveStructure() error {
	data, err := json.MarshalIndent(p.tree.export(p.tree.rootID), "", "  ")
	if err != nil {
		return fmt.Errorf("encode project structure: %w", err)
	}
	target := filepath.Join(p.databasePath, structureFileName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write project structure: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace project structure: %w", err)
	}
	return p.createFolders()
}

func (p *Project) createFolders() error {
	var failure error
	p.tree.walk(p.tree.rootID, func(node *Subproject) {
		rel := filepath.FromSlash(node.Path)
		for _, root := range []string{p.databasePath, p.absolutePath} {
			if err := os.MkdirAll(filepath.Join(root, rel), 0o755); err != nil && failure == nil {
				failure = fmt.Errorf("mirror folders for %s: %w", node.Path, err)
			}
		}
	})
	return failure
}
