package token

import "errors"

var (
	// ErrTokenEnded indicates an attempt to mutate or end a token that has already ended.
	ErrTokenEnded = errors.New("token: token has already ended")

	// ErrRegistration indicates that the resource already holds an active token.
	ErrRegistration = errors.New("token: resource already has an active token")

	// ErrNotShared indicates a principal add/remove on a token whose root is not a shared lock.
	ErrNotShared = errors.New("token: cannot modify principals on a non-shared token")

	// ErrRegistryReset indicates an attempt to re-register a token under a different registry.
	ErrRegistryReset = errors.New("token: cannot reset a token's registry")

	// ErrRegistryMismatch indicates an indirect token registered with a registry
	// other than its root token's.
	ErrRegistryMismatch = errors.New("token: indirect token must be registered with its root token's registry")

	// ErrNotRegistered indicates an operation requiring a registered token was
	// attempted on an unregistered one.
	ErrNotRegistered = errors.New("token: token is not registered")

	// ErrNoPrincipals indicates a shared lock created or left without any principal.
	ErrNoPrincipals = errors.New("token: shared lock requires at least one principal")

	// ErrUnknownTokenType indicates a token implementation this registry cannot manage.
	ErrUnknownTokenType = errors.New("token: unknown token type")
)
