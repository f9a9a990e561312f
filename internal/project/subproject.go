package project

import (
	"path"
	"slices"
	"sort"
)

// Mode values a subproject can carry through its "mode" metadata key.
const (
	ModeGlobal = ""
	ModeAsset  = "asset"
	ModeShot   = "shot"
)

// Subproject is one node of the project tree. Nodes live in the project's
// arena and reference each other by id, never by pointer, so the tree
// serializes without cycles.
type Subproject struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	ParentID string   `json:"-"`
	ChildIDs []string `json:"-"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Mode returns the node's own mode override, or empty when it inherits.
func (s *Subproject) Mode() string {
	value, ok := s.Metadata.Value("mode")
	if !ok || !s.Metadata.IsOverridden("mode") {
		return ModeGlobal
	}
	mode, _ := value.(string)
	return mode
}

// arena indexes every subproject node by id. The root node represents the
// project itself and has an empty path.
type arena struct {
	nodes  map[string]*Subproject
	rootID string
}

func newArena(root *Subproject) *arena {
	return &arena{nodes: map[string]*Subproject{root.ID: root}, rootID: root.ID}
}

func (a *arena) root() *Subproject {
	return a.nodes[a.rootID]
}

func (a *arena) node(id string) *Subproject {
	return a.nodes[id]
}

func (a *arena) byPath(relPath string) *Subproject {
	if relPath == "" || relPath == "." {
		return a.root()
	}
	for _, node := range a.nodes {
		if node.Path == relPath {
			return node
		}
	}
	return nil
}

func (a *arena) byWildcard(pattern string) []*Subproject {
	var matches []*Subproject
	for _, node := range a.nodes {
		if node.ID == a.rootID {
			continue
		}
		if ok, _ := path.Match(pattern, node.Name); ok {
			matches = append(matches, node)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Path < matches[j].Path })
	return matches
}

func (a *arena) children(id string) []*Subproject {
	parent := a.nodes[id]
	if parent == nil {
		return nil
	}
	out := make([]*Subproject, 0, len(parent.ChildIDs))
	for _, childID := range parent.ChildIDs {
		if child := a.nodes[childID]; child != nil {
			out = append(out, child)
		}
	}
	return out
}

func (a *arena) child(parentID, name string) *Subproject {
	for _, child := range a.children(parentID) {
		if child.Name == name {
			return child
		}
	}
	return nil
}

func (a *arena) insert(parent *Subproject, node *Subproject) {
	node.ParentID = parent.ID
	node.Path = path.Join(parent.Path, node.Name)
	parent.ChildIDs = append(parent.ChildIDs, node.ID)
	a.nodes[node.ID] = node
}

// remove detaches a node and deletes its whole subtree from the arena.
func (a *arena) remove(node *Subproject) {
	if parent := a.nodes[node.ParentID]; parent != nil {
		if idx := slices.Index(parent.ChildIDs, node.ID); idx >= 0 {
			parent.ChildIDs = slices.Delete(parent.ChildIDs, idx, idx+1)
		}
	}
	stack := []string{node.ID}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current := a.nodes[id]; current != nil {
			stack = append(stack, current.ChildIDs...)
			delete(a.nodes, id)
		}
	}
}

// walk visits the subtree rooted at id depth-first, parents before children.
func (a *arena) walk(id string, visit func(*Subproject)) {
	node := a.nodes[id]
	if node == nil {
		return
	}
	visit(node)
	for _, childID := range node.ChildIDs {
		a.walk(childID, visit)
	}
}

// structureNode is the persisted shape of one tree node inside
// project_structure.json.
type structureNode struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Path     string          `json:"path"`
	Metadata Metadata        `json:"metadata,omitempty"`
	Subs     []structureNode `json:"subs"`
}

func (a *arena) export(id string) structureNode {
	node := a.nodes[id]
	out := structureNode{
		ID:       node.ID,
		Name:     node.Name,
		Path:     node.Path,
		Metadata: node.Metadata,
		Subs:     []structureNode{},
	}
	for _, child := range a.children(id) {
		out.Subs = append(out.Subs, a.export(child.ID))
	}
	return out
}

func importArena(root structureNode) *arena {
	rootNode := &Subproject{
		ID:       root.ID,
		Name:     root.Name,
		Path:     "",
		Metadata: ensureMetadata(root.Metadata),
	}
	a := newArena(rootNode)
	var attach func(parent *Subproject, subs []structureNode)
	attach = func(parent *Subproject, subs []structureNode) {
		for _, sub := range subs {
			node := &Subproject{
				ID:       sub.ID,
				Name:     sub.Name,
				Metadata: ensureMetadata(sub.Metadata),
			}
			a.insert(parent, node)
			attach(node, sub.Subs)
		}
	}
	attach(rootNode, root.Subs)
	return a
}

func ensureMetadata(m Metadata) Metadata {
	if m == nil {
		return Metadata{}
	}
	return m
}
