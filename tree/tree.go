package tree

import (
	"errors"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/treelock/treelock/types"
)

var (
	// ErrDuplicateName indicates the destination container already has a
	// member with the requested name.
	ErrDuplicateName = errors.New("tree: duplicate name in container")

	// ErrNotAttached indicates the resource does not belong to this tree.
	ErrNotAttached = errors.New("tree: resource not attached")

	// ErrMoveIntoSelf indicates a move that would make a folder its own
	// ancestor.
	ErrMoveIntoSelf = errors.New("tree: cannot move folder into itself")

	// ErrMoveRoot indicates an attempt to move the root folder.
	ErrMoveRoot = errors.New("tree: cannot move the root folder")
)

// Tree is an in-memory resource hierarchy. One mutex guards the whole
// structure; child-added callbacks fire after the mutex is released, so
// observers may walk the tree or take out locks from inside the callback.
type Tree struct {
	mu   sync.Mutex
	root *Folder

	onChildAdded []ChildAddedFunc
}

// NewTree creates a tree with an empty root folder.
func NewTree() *Tree {
	t := &Tree{}
	t.root = &Folder{tree: t, id: newResourceID(), children: make(map[string]Resource)}
	return t
}

// Root returns the root folder.
func (t *Tree) Root() *Folder { return t.root }

// OnChildAdded subscribes fn to child-added events. Events fire for both
// newly created resources and resources moved between folders, after the
// structural change has been committed.
func (t *Tree) OnChildAdded(fn ChildAddedFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChildAdded = append(t.onChildAdded, fn)
}

// AddFolder creates a folder named name inside parent.
func (t *Tree) AddFolder(parent *Folder, name string) (*Folder, error) {
	f := &Folder{tree: t, id: newResourceID(), name: name, children: make(map[string]Resource)}
	if err := t.insert(parent, f); err != nil {
		return nil, err
	}
	return f, nil
}

// AddFile creates a file named name inside parent.
func (t *Tree) AddFile(parent *Folder, name string) (*File, error) {
	f := &File{id: newResourceID(), name: name}
	if err := t.insert(parent, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (t *Tree) insert(parent *Folder, child Resource) error {
	t.mu.Lock()
	if parent.tree != t {
		t.mu.Unlock()
		return ErrNotAttached
	}
	if _, exists := parent.children[child.Name()]; exists {
		t.mu.Unlock()
		return ErrDuplicateName
	}
	parent.children[child.Name()] = child
	switch c := child.(type) {
	case *Folder:
		c.parent = parent
	case *File:
		c.parent = parent
	}
	subs := slices.Clone(t.onChildAdded)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(child, parent)
	}
	return nil
}

// Move relocates a resource into another folder. The resource keeps its
// identity, so any lock taken out on it travels with it; the child-added
// event fires so the destination's locks can absorb the arrival.
func (t *Tree) Move(res Resource, dst *Folder) error {
	t.mu.Lock()
	if dst.tree != t {
		t.mu.Unlock()
		return ErrNotAttached
	}

	var cur *Folder
	switch r := res.(type) {
	case *Folder:
		if r == t.root {
			t.mu.Unlock()
			return ErrMoveRoot
		}
		if r.tree != t {
			t.mu.Unlock()
			return ErrNotAttached
		}
		for p := dst; p != nil; p = p.parent {
			if p == r {
				t.mu.Unlock()
				return ErrMoveIntoSelf
			}
		}
		cur = r.parent
	case *File:
		cur = r.parent
	default:
		t.mu.Unlock()
		return ErrNotAttached
	}
	if cur == nil {
		t.mu.Unlock()
		return ErrNotAttached
	}
	if _, exists := dst.children[res.Name()]; exists {
		t.mu.Unlock()
		return ErrDuplicateName
	}

	delete(cur.children, res.Name())
	dst.children[res.Name()] = res
	switch r := res.(type) {
	case *Folder:
		r.parent = dst
	case *File:
		r.parent = dst
	}
	subs := slices.Clone(t.onChildAdded)
	t.mu.Unlock()

	for _, fn := range subs {
		fn(res, dst)
	}
	return nil
}

func newResourceID() types.ResourceID {
	return types.ResourceID(uuid.NewString())
}

// Folder is a container node.
type Folder struct {
	tree   *Tree
	parent *Folder
	id     types.ResourceID
	name   string

	children map[string]Resource
}

func (f *Folder) ID() types.ResourceID { return f.id }

func (f *Folder) Name() string { return f.name }

// Children returns the folder's direct members sorted by name.
func (f *Folder) Children() []Resource {
	f.tree.mu.Lock()
	defer f.tree.mu.Unlock()
	out := make([]Resource, 0, len(f.children))
	names := make([]string, 0, len(f.children))
	for name := range f.children {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		out = append(out, f.children[name])
	}
	return out
}

// File is a leaf node.
type File struct {
	parent *Folder
	id     types.ResourceID
	name   string
}

func (f *File) ID() types.ResourceID { return f.id }

func (f *File) Name() string { return f.name }
