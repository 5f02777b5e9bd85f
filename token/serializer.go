package token

import (
	"encoding/json"
	"time"

	"github.com/treelock/treelock/types"
)

// registryState is the serializable form of a registry: the root tokens and,
// per root, the identities of its indirectly locked descendants. Indirect
// tokens carry no state of their own, so they are rebuilt from the identity
// list on restore. Annotation metadata is not serialized.
type registryState struct {
	Roots []rootState `json:"roots"`
}

// rootState captures one root token's durable fields.
type rootState struct {
	Resource   types.ResourceID    `json:"resource"`
	Scope      types.LockScope     `json:"scope"`
	Principals []types.PrincipalID `json:"principals"`
	Started    time.Time           `json:"started"`
	Expiration time.Time           `json:"expiration"`
	Indirect   []types.ResourceID  `json:"indirect,omitempty"`
}

// Serializer defines the interface for encoding and decoding registry state.
type Serializer interface {
	// EncodeState marshals a registry snapshot into a byte slice.
	EncodeState(state registryState) ([]byte, error)

	// DecodeState unmarshals a byte slice into a registry snapshot.
	DecodeState(data []byte) (registryState, error)
}

// JSONSerializer implements the Serializer interface using JSON encoding.
type JSONSerializer struct{}

// EncodeState marshals a registry snapshot.
func (s *JSONSerializer) EncodeState(state registryState) ([]byte, error) {
	return json.Marshal(state)
}

// DecodeState unmarshals a registry snapshot.
func (s *JSONSerializer) DecodeState(data []byte) (registryState, error) {
	var state registryState
	err := json.Unmarshal(data, &state)
	return state, err
}

// DumpState serializes the active root tokens and their descendant sets.
func (r *registry) DumpState() ([]byte, error) {
	r.mu.Lock()
	state := registryState{}
	for _, t := range r.tokens {
		root, ok := t.(*rootToken)
		if !ok {
			continue
		}
		if !root.Ended().IsZero() {
			continue
		}
		rs := rootState{
			Resource:   root.resource,
			Scope:      root.scope,
			Principals: root.Principals(),
			Started:    root.Started(),
			Expiration: root.expirationSnapshot(),
		}
		if index := rootIndex(root, false); index != nil {
			for _, entry := range index.snapshot() {
				rs.Indirect = append(rs.Indirect, entry.id)
			}
		}
		state.Roots = append(state.Roots, rs)
	}
	r.mu.Unlock()

	return r.serializer.EncodeState(state)
}

// RestoreState rebuilds root and indirect tokens from a DumpState payload.
// Restored tokens keep their original started and expiration stamps, so a
// lease that expired while the state was at rest is observed as ended
// immediately after the restore.
func (r *registry) RestoreState(data []byte) error {
	state, err := r.serializer.DecodeState(data)
	if err != nil {
		return err
	}

	for _, rs := range state.Roots {
		root := newRootToken(rs.Resource, rs.Scope, rs.Principals, 0)
		if _, err := r.Register(root); err != nil {
			return err
		}
		root.mu.Lock()
		root.started = rs.Started
		root.expiration = rs.Expiration
		root.hasDuration = !rs.Expiration.IsZero()
		root.mu.Unlock()
		r.reindex(root)

		for _, id := range rs.Indirect {
			indirect, err := NewIndirectToken(id, root)
			if err != nil {
				return err
			}
			if _, err := r.Register(indirect); err != nil {
				return err
			}
		}
	}
	return nil
}
