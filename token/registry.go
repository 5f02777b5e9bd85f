package token

import (
	"container/heap"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/treelock/treelock/logger"
	"github.com/treelock/treelock/types"
)

// registry provides a concrete implementation of the Registry interface.
// One mutex guards the resource map, the expiry heap and the subscriber
// list; end events are fired after the mutex is released, so subscribers
// may safely call back into the registry.
type registry struct {
	mu sync.Mutex

	tokens  map[types.ResourceID]Token
	expHeap *expirationHeap
	subs    []func(Token)

	clock      Clock
	logger     logger.Logger
	serializer Serializer
}

// RegistryOption defines a function that applies a configuration setting to a
// Registry during initialization.
type RegistryOption func(*registry)

// WithClock sets the clock used for all timing decisions.
func WithClock(clock Clock) RegistryOption {
	return func(r *registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets the logger for internal events.
func WithLogger(l logger.Logger) RegistryOption {
	return func(r *registry) {
		if l != nil {
			r.logger = l.WithComponent("registry")
		}
	}
}

// WithSerializer sets the serializer used by DumpState and RestoreState.
func WithSerializer(s Serializer) RegistryOption {
	return func(r *registry) {
		if s != nil {
			r.serializer = s
		}
	}
}

// NewRegistry creates a new token registry. The cascade-cleanup subscriber is
// installed first, so descendant indirect tokens are always evicted before
// any external end-event subscriber observes the root.
func NewRegistry(opts ...RegistryOption) Registry {
	expHeap := make(expirationHeap, 0)
	heap.Init(&expHeap)

	r := &registry{
		tokens:     make(map[types.ResourceID]Token),
		expHeap:    &expHeap,
		clock:      NewStandardClock(),
		logger:     logger.NewNoOpLogger(),
		serializer: &JSONSerializer{},
	}
	for _, opt := range opts {
		opt(r)
	}

	r.subs = append(r.subs, func(t Token) { removeEndedTokens(r, t) })
	return r
}

func (r *registry) Register(t Token) (Token, error) {
	switch tok := t.(type) {
	case *rootToken:
		return r.registerRoot(tok)
	case *IndirectToken:
		return r.registerIndirect(tok)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownTokenType, t)
	}
}

func (r *registry) registerRoot(tok *rootToken) (Token, error) {
	if !tok.Ended().IsZero() {
		r.evictEnded(tok)
		return tok, nil
	}
	if reg := tok.Registry(); reg != nil && reg != Registry(r) {
		return nil, ErrRegistryReset
	}
	if tok.scope == types.ScopeShared && len(tok.Principals()) == 0 {
		return nil, ErrNoPrincipals
	}

	r.mu.Lock()
	cur := r.tokens[tok.resource]
	if cur == Token(tok) {
		r.mu.Unlock()
		return tok, nil
	}
	evicted, err := r.evictIncumbentLocked(cur, tok.resource)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	tok.attach(r)
	r.tokens[tok.resource] = tok
	if exp := tok.expirationSnapshot(); !exp.IsZero() {
		heap.Push(r.expHeap, &expirationItem{resource: tok.resource, token: tok, expiresAt: exp})
	}
	r.mu.Unlock()

	if evicted != nil {
		r.fanout(evicted)
	}
	r.logger.Debugw("token registered",
		"resource", tok.resource, "scope", tok.scope, "principals", tok.Principals())
	return tok, nil
}

func (r *registry) registerIndirect(tok *IndirectToken) (Token, error) {
	if !tok.Ended().IsZero() {
		r.evictEnded(tok)
		return tok, nil
	}

	r.mu.Lock()
	cur := r.tokens[tok.resource]
	if cur == Token(tok) {
		r.mu.Unlock()
		return tok, nil
	}
	evicted, err := r.evictIncumbentLocked(cur, tok.resource)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	if err := tok.attach(r); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.tokens[tok.resource] = tok
	r.mu.Unlock()

	if evicted != nil {
		r.fanout(evicted)
	}
	r.logger.Debugw("indirect token registered",
		"resource", tok.resource, "root", tok.root.resource)
	return tok, nil
}

// evictEnded removes an ended token's registry entry. Registering an ended
// token routes here: it is the cleanup path the cascade relies on.
func (r *registry) evictEnded(t Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur := r.tokens[t.Resource()]; cur == t {
		delete(r.tokens, t.Resource())
	}
}

// evictIncumbentLocked enforces the uniqueness invariant for a registration:
// an active incumbent rejects the registration, a logically expired one is
// finalized and evicted first. Returns the token whose end event still needs
// to be fired after the registry mutex is released.
func (r *registry) evictIncumbentLocked(cur Token, res types.ResourceID) (Token, error) {
	if cur == nil {
		return nil, nil
	}
	if cur.Ended().IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrRegistration, res)
	}
	delete(r.tokens, res)
	if curRoot, ok := cur.(*rootToken); ok && curRoot.finalizeExpired(r.clock.Now()) {
		return curRoot, nil
	}
	return nil, nil
}

func (r *registry) Get(id types.ResourceID) Token {
	r.mu.Lock()
	t := r.tokens[id]
	r.mu.Unlock()

	if t == nil || !t.Ended().IsZero() {
		return nil
	}
	return t
}

func (r *registry) OnTokenEnded(fn func(Token)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

// notifyEnded evicts the ended token's entry and fires the end event.
// Called by tokens after their end state has been committed.
func (r *registry) notifyEnded(t Token) {
	r.mu.Lock()
	if cur := r.tokens[t.Resource()]; cur == t {
		delete(r.tokens, t.Resource())
	}
	r.mu.Unlock()

	r.fanout(t)
}

func (r *registry) fanout(t Token) {
	r.mu.Lock()
	subs := slices.Clone(r.subs)
	r.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
}

// reindex pushes a fresh expiry-heap entry for a token whose expiration
// changed. Stale entries are detected and dropped when popped.
func (r *registry) reindex(t *rootToken) {
	exp := t.expirationSnapshot()
	r.mu.Lock()
	if cur := r.tokens[t.resource]; cur == Token(t) && !exp.IsZero() {
		heap.Push(r.expHeap, &expirationItem{resource: t.resource, token: t, expiresAt: exp})
	}
	r.mu.Unlock()
}

func (r *registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var fired []Token
	for r.expHeap.Len() > 0 {
		top := (*r.expHeap)[0]
		if top.expiresAt.After(now) {
			break
		}
		heap.Pop(r.expHeap)

		cur, ok := r.tokens[top.resource]
		if !ok || cur != Token(top.token) {
			continue // stale entry, token already gone or replaced
		}
		exp := top.token.expirationSnapshot()
		if exp.IsZero() {
			continue // timeout removed since the entry was pushed
		}
		if exp.After(now) {
			// Refreshed since the entry was pushed; track the new expiry.
			heap.Push(r.expHeap, &expirationItem{resource: top.resource, token: top.token, expiresAt: exp})
			continue
		}
		delete(r.tokens, top.resource)
		if top.token.finalizeExpired(now) {
			fired = append(fired, top.token)
		}
	}
	r.mu.Unlock()

	for _, t := range fired {
		r.fanout(t)
	}
	if len(fired) > 0 {
		r.logger.Infow("sweep finalized expired tokens", "count", len(fired))
	}
	return len(fired)
}

func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}
