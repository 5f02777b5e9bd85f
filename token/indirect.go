package token

import (
	"fmt"
	"sync"
	"time"

	"github.com/treelock/treelock/types"
)

// indirectIndexKey is the annotation slot on a root token holding the index
// of every indirect token registered against it. The cascade reads this index
// to finalize the whole descendant set when the root ends.
const indirectIndexKey = "treelock.token.indirectindex"

// IndirectToken is a proxy lease: a token taken out on a resource against
// another resource's root token. All principals, timing, annotations and end
// state live on the root; reads delegate and writes mutate the root, making
// them visible to every sibling. Ending any member of the set ends them all.
type IndirectToken struct {
	resource types.ResourceID
	root     *rootToken

	mu       sync.Mutex
	registry *registry
}

// NewIndirectToken creates an unregistered indirect token for a resource,
// proxying to the root of the given token. Passing an indirect token resolves
// to its root, so chains of indirection never form.
func NewIndirectToken(res types.ResourceID, root Token) (*IndirectToken, error) {
	rt, ok := root.Root().(*rootToken)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnknownTokenType, root.Root())
	}
	return &IndirectToken{resource: res, root: rt}, nil
}

func (t *IndirectToken) Resource() types.ResourceID { return t.resource }

func (t *IndirectToken) Scope() types.LockScope { return t.root.Scope() }

func (t *IndirectToken) Principals() []types.PrincipalID { return t.root.Principals() }

func (t *IndirectToken) Started() time.Time { return t.root.Started() }

func (t *IndirectToken) Ended() time.Time { return t.root.Ended() }

func (t *IndirectToken) Expiration() time.Time { return t.root.Expiration() }

func (t *IndirectToken) SetExpiration(e time.Time) error { return t.root.SetExpiration(e) }

func (t *IndirectToken) Duration() (time.Duration, bool) { return t.root.Duration() }

func (t *IndirectToken) SetDuration(d time.Duration) error { return t.root.SetDuration(d) }

func (t *IndirectToken) Remaining() (time.Duration, bool) { return t.root.Remaining() }

// Annotations returns the root's annotation mapping; an indirect token never
// holds a copy.
func (t *IndirectToken) Annotations() *Annotations { return t.root.Annotations() }

func (t *IndirectToken) Add(principals ...types.PrincipalID) error {
	if t.root.Scope() != types.ScopeShared {
		return ErrNotShared
	}
	return t.root.Add(principals...)
}

func (t *IndirectToken) Remove(principals ...types.PrincipalID) error {
	if t.root.Scope() != types.ScopeShared {
		return ErrNotShared
	}
	return t.root.Remove(principals...)
}

func (t *IndirectToken) End() error { return t.root.End() }

func (t *IndirectToken) Root() Token { return t.root }

func (t *IndirectToken) Registry() Registry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.registry == nil {
		return nil
	}
	return t.registry
}

// attach binds the indirect token to a registry and wires it into the root's
// descendant index. Called with the registry mutex held.
func (t *IndirectToken) attach(r *registry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.registry != nil {
		if t.registry != r {
			return ErrRegistryReset
		}
		return nil
	}
	if t.root.registry != r {
		return ErrRegistryMismatch
	}

	index := rootIndex(t.root, true)
	if _, ok := index.get(t.resource); ok {
		return fmt.Errorf("%w: %s", ErrRegistration, t.resource)
	}
	index.put(t.resource, t)
	t.registry = r
	return nil
}

// indirectIndex maps each indirectly locked descendant's identity to its
// token. It lives in the root's annotations so that the cascade can find it
// without any registry lookup.
type indirectIndex struct {
	mu sync.Mutex
	m  map[types.ResourceID]*IndirectToken
}

type indexEntry struct {
	id    types.ResourceID
	token *IndirectToken
}

func (ix *indirectIndex) get(id types.ResourceID) (*IndirectToken, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	t, ok := ix.m[id]
	return t, ok
}

func (ix *indirectIndex) put(id types.ResourceID, t *IndirectToken) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.m[id] = t
}

func (ix *indirectIndex) delete(id types.ResourceID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.m, id)
}

func (ix *indirectIndex) len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.m)
}

// snapshot copies the index entries so callers can iterate while the index is
// mutated underneath them, which is exactly what happens during the cascade.
func (ix *indirectIndex) snapshot() []indexEntry {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	out := make([]indexEntry, 0, len(ix.m))
	for id, t := range ix.m {
		out = append(out, indexEntry{id: id, token: t})
	}
	return out
}

// rootIndex fetches the descendant index from a root's annotations, creating
// it when create is set.
func rootIndex(root *rootToken, create bool) *indirectIndex {
	if v, ok := root.Annotations().Get(indirectIndexKey); ok {
		return v.(*indirectIndex)
	}
	if !create {
		return nil
	}
	index := &indirectIndex{m: make(map[types.ResourceID]*IndirectToken)}
	root.Annotations().Set(indirectIndexKey, index)
	return index
}

// IndirectCount reports how many indirect tokens are currently indexed
// against the root of t.
func IndirectCount(t Token) int {
	rt, ok := t.Root().(*rootToken)
	if !ok {
		return 0
	}
	index := rootIndex(rt, false)
	if index == nil {
		return 0
	}
	return index.len()
}

// removeEndedTokens is the end-event subscriber that performs cascade
// cleanup: when a root ends, every indirect token registered against it is
// evicted from the registry and dropped from the root's descendant index.
//
// The index is snapshotted first because eviction mutates it; entries added
// concurrently with the teardown are left for a later pass.
func removeEndedTokens(r *registry, ended Token) {
	root, ok := ended.(*rootToken)
	if !ok {
		return
	}
	index := rootIndex(root, false)
	if index == nil {
		return
	}
	for _, entry := range index.snapshot() {
		// The token has ended, so re-registering it evicts it.
		if _, err := r.Register(entry.token); err != nil {
			r.logger.Errorw("cascade eviction failed",
				"resource", entry.id, "root", root.Resource(), "error", err)
			continue
		}
		index.delete(entry.id)
	}
}
