package tree

import (
	"github.com/treelock/treelock/types"
)

// Resource is anything that can be locked: it carries a stable identity that
// survives renames and moves, plus a human-readable name.
type Resource interface {
	// ID returns the resource's stable identity. It never changes for the
	// lifetime of the resource, no matter where it lives in the hierarchy.
	ID() types.ResourceID

	// Name returns the name of the resource within its parent.
	Name() string
}

// Container is a resource that holds other resources. Locking a container
// with infinite depth covers every resource reachable through Children.
type Container interface {
	Resource

	// Children returns the direct members of the container, in name order.
	Children() []Resource
}

// ChildAddedFunc observes a resource arriving in a container, whether newly
// created or moved in from elsewhere.
type ChildAddedFunc func(child Resource, parent Container)
