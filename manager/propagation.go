package manager

import (
	"context"
	"errors"

	"github.com/treelock/treelock/token"
	"github.com/treelock/treelock/tree"
)

// lockChildren takes out indirect tokens on every descendant of c against
// root. Descendants already covered by the same root are skipped but still
// descended into; a descendant holding a different active lock aborts the
// walk, leaving the tokens acquired so far in place. Callers hold the
// manager mutex.
func (m *lockManager) lockChildren(c tree.Container, root token.Token) error {
	for _, child := range c.Children() {
		if err := m.lockResource(child, root); err != nil {
			return err
		}
	}
	return nil
}

func (m *lockManager) lockResource(res tree.Resource, root token.Token) error {
	cur := m.registry.Get(res.ID())
	switch {
	case cur == nil:
		indirect, err := token.NewIndirectToken(res.ID(), root)
		if err != nil {
			return err
		}
		if _, err := m.registry.Register(indirect); err != nil {
			if errors.Is(err, token.ErrRegistration) {
				return &AlreadyLockedError{Resource: res.ID(), Partial: true}
			}
			return err
		}
		m.metrics.AddIndirect(1)
	case cur.Root() == root.Root():
		// Already part of this lock set, keep walking.
	default:
		return &AlreadyLockedError{Resource: res.ID(), Partial: true}
	}

	if c, ok := res.(tree.Container); ok {
		return m.lockChildren(c, root)
	}
	return nil
}

func (m *lockManager) ResourceAdded(ctx context.Context, child tree.Resource, parent tree.Container) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.registry.Get(parent.ID())
	if cur == nil {
		return nil
	}
	root := cur.Root()
	info := infoFor(root, false)
	if info == nil || !info.hasInfiniteDepth() {
		return nil
	}
	if err := m.lockResource(child, root); err != nil {
		return err
	}
	m.logger.Debugw("child absorbed into lock",
		"resource", child.ID(), "parent", parent.ID(), "root", root.Resource())
	return nil
}

func (m *lockManager) Watch(tr *tree.Tree) {
	tr.OnChildAdded(func(child tree.Resource, parent tree.Container) {
		if err := m.ResourceAdded(context.Background(), child, parent); err != nil {
			m.logger.Warnw("child absorption failed",
				"resource", child.ID(), "parent", parent.ID(), "error", err)
		}
	})
}
