// Package script holds the user-authored automation model: an ordered tree of
// command nodes, the structural edit operations the editor needs, and the
// interpreter that executes a tree against a live bot.
package script

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind identifies a command node type.
type Kind string

const (
	KindMove             Kind = "move"
	KindWait             Kind = "wait"
	KindSay              Kind = "say"
	KindBreakBlock       Kind = "break-block"
	KindOpenNearestChest Kind = "open-nearest-chest"
	KindOpenChestAt      Kind = "open-chest-at"
	KindDepositToChest   Kind = "deposit-to-chest"
	KindFollowPlayer     Kind = "follow-player"

	// KindRepeat is the only container kind: it owns a child sequence and
	// replays it params["times"] times.
	KindRepeat Kind = "repeat"
)

// knownKinds gates imports; an unknown type string is rejected up front
// instead of failing mid-run.
var knownKinds = map[Kind]bool{
	KindMove: true, KindWait: true, KindSay: true, KindBreakBlock: true,
	KindOpenNearestChest: true, KindOpenChestAt: true, KindDepositToChest: true,
	KindFollowPlayer: true, KindRepeat: true,
}

// Params is the kind-specific parameter map of a node.
type Params map[string]any

// Node is the nested serialized form of a command, as exported to and
// imported from script files.
type Node struct {
	ID       string  `json:"id"`
	Type     Kind    `json:"type"`
	Params   Params  `json:"params,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// entry is the arena representation of one node: data plus parent/children
// links. Edits are map operations instead of whole-tree rewrites.
type entry struct {
	id       string
	kind     Kind
	params   Params
	parent   string // "" for top-level nodes
	children []string
}

// Tree is an ordered sequence of command nodes with a repeat container kind.
// Node ids are unique across the entire tree, so every edit operation
// addresses its target directly regardless of nesting depth.
// Not safe for concurrent mutation; the panel edits scripts from one place.
type Tree struct {
	nodes map[string]*entry
	roots []string
}

// NewTree returns an empty script.
func NewTree() *Tree {
	return &Tree{nodes: map[string]*entry{}}
}

// Len returns the total node count, containers included.
func (t *Tree) Len() int { return len(t.nodes) }

// newID returns a fresh node id, unique across the tree.
func newID() string { return uuid.NewString() }

// AddCommand appends a new node to the top-level sequence and returns its id.
func (t *Tree) AddCommand(kind Kind, params Params) (string, error) {
	if !knownKinds[kind] {
		return "", fmt.Errorf("unknown command kind %q", kind)
	}
	id := newID()
	t.nodes[id] = &entry{id: id, kind: kind, params: cloneParams(params)}
	t.roots = append(t.roots, id)
	return id, nil
}

// AddChild appends a new node under an existing repeat node. It is a rejected
// no-op when the parent does not exist or is not a container.
func (t *Tree) AddChild(parentID string, kind Kind, params Params) (string, error) {
	parent, ok := t.nodes[parentID]
	if !ok {
		return "", fmt.Errorf("parent node %s not found", parentID)
	}
	if parent.kind != KindRepeat {
		return "", fmt.Errorf("node %s (%s) cannot hold children", parentID, parent.kind)
	}
	if !knownKinds[kind] {
		return "", fmt.Errorf("unknown command kind %q", kind)
	}
	id := newID()
	t.nodes[id] = &entry{id: id, kind: kind, params: cloneParams(params), parent: parentID}
	parent.children = append(parent.children, id)
	return id, nil
}

// UpdateNode replaces a node's parameters in place. Position in the sequence
// and any children are preserved; only field values change.
func (t *Tree) UpdateNode(id string, params Params) error {
	e, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("node %s not found", id)
	}
	e.params = cloneParams(params)
	return nil
}

// RemoveNode removes a node from wherever it sits in the tree. Removing a
// repeat node discards its entire subtree.
func (t *Tree) RemoveNode(id string) error {
	e, ok := t.nodes[id]
	if !ok {
		return fmt.Errorf("node %s not found", id)
	}

	if e.parent == "" {
		t.roots = removeID(t.roots, id)
	} else if parent, ok := t.nodes[e.parent]; ok {
		parent.children = removeID(parent.children, id)
	}

	t.deleteSubtree(id)
	return nil
}

func (t *Tree) deleteSubtree(id string) {
	e, ok := t.nodes[id]
	if !ok {
		return
	}
	for _, child := range e.children {
		t.deleteSubtree(child)
	}
	delete(t.nodes, id)
}

// Get returns the nested form of one node, or nil if absent.
func (t *Tree) Get(id string) *Node {
	if _, ok := t.nodes[id]; !ok {
		return nil
	}
	return t.export(id)
}

// Export returns the whole tree in nested form, ids and ordering intact.
func (t *Tree) Export() []*Node {
	out := make([]*Node, 0, len(t.roots))
	for _, id := range t.roots {
		out = append(out, t.export(id))
	}
	return out
}

func (t *Tree) export(id string) *Node {
	e := t.nodes[id]
	n := &Node{ID: e.id, Type: e.kind, Params: cloneParams(e.params)}
	for _, child := range e.children {
		n.Children = append(n.Children, t.export(child))
	}
	return n
}

// FromNodes rebuilds a tree from nested form, preserving ids. It rejects
// duplicate ids, unknown kinds, and children on non-container nodes.
func FromNodes(nodes []*Node) (*Tree, error) {
	t := NewTree()
	for _, n := range nodes {
		if err := t.insert(n, ""); err != nil {
			return nil, err
		}
		t.roots = append(t.roots, n.ID)
	}
	return t, nil
}

func (t *Tree) insert(n *Node, parent string) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("node without id")
	}
	if !knownKinds[n.Type] {
		return fmt.Errorf("node %s: unknown kind %q", n.ID, n.Type)
	}
	if _, exists := t.nodes[n.ID]; exists {
		return fmt.Errorf("duplicate node id %s", n.ID)
	}
	if len(n.Children) > 0 && n.Type != KindRepeat {
		return fmt.Errorf("node %s (%s) cannot hold children", n.ID, n.Type)
	}

	e := &entry{id: n.ID, kind: n.Type, params: cloneParams(n.Params), parent: parent}
	t.nodes[n.ID] = e
	for _, child := range n.Children {
		if err := t.insert(child, n.ID); err != nil {
			return err
		}
		e.children = append(e.children, child.ID)
	}
	return nil
}

func cloneParams(p Params) Params {
	if p == nil {
		return nil
	}
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
