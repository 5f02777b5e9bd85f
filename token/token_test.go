package token

import (
	"testing"
	"time"

	"github.com/treelock/treelock/testutil"
	"github.com/treelock/treelock/types"
)

func TestExclusiveLock_RegistrationAssignsTiming(t *testing.T) {
	reg, clock := newTestRegistry(t)

	tok := NewExclusiveLock("res-1", "michael", time.Hour)
	testutil.AssertTrue(t, tok.Started().IsZero(), "started must be zero before registration")

	mustRegister(t, reg, tok)

	testutil.AssertEqual(t, clock.Now(), tok.Started())
	testutil.AssertEqual(t, clock.Now().Add(time.Hour), tok.Expiration())
	testutil.AssertEqual(t, []types.PrincipalID{"michael"}, tok.Principals())
	testutil.AssertEqual(t, types.ScopeExclusive, tok.Scope())
	testutil.AssertTrue(t, tok.Ended().IsZero())
}

func TestExclusiveLock_NoTimeout(t *testing.T) {
	reg, clock := newTestRegistry(t)

	tok := mustRegister(t, reg, NewExclusiveLock("res-1", "michael", 0))

	testutil.AssertTrue(t, tok.Expiration().IsZero())
	_, ok := tok.Duration()
	testutil.AssertFalse(t, ok, "no-timeout token must report no duration")
	_, ok = tok.Remaining()
	testutil.AssertFalse(t, ok, "no-timeout token must report no remaining duration")

	// Without a timeout the token never silently expires.
	clock.Advance(365 * 24 * time.Hour)
	testutil.AssertTrue(t, tok.Ended().IsZero())
}

func TestToken_DurationExpirationDuality(t *testing.T) {
	reg, clock := newTestRegistry(t)
	tok := mustRegister(t, reg, NewExclusiveLock("res-1", "john", 3*time.Hour))

	d, ok := tok.Duration()
	testutil.AssertTrue(t, ok)
	testutil.AssertEqual(t, 3*time.Hour, d)
	testutil.AssertEqual(t, tok.Started().Add(3*time.Hour), tok.Expiration())

	// Setting the expiration recomputes the duration from started.
	testutil.AssertNoError(t, tok.SetExpiration(tok.Started().Add(time.Hour)))
	d, ok = tok.Duration()
	testutil.AssertTrue(t, ok)
	testutil.AssertEqual(t, time.Hour, d)

	// Setting the duration recomputes the expiration from now.
	clock.Advance(30 * time.Minute)
	testutil.AssertNoError(t, tok.SetDuration(4*time.Hour))
	testutil.AssertEqual(t, clock.Now().Add(4*time.Hour), tok.Expiration())
	d, ok = tok.Duration()
	testutil.AssertTrue(t, ok)
	testutil.AssertEqual(t, 4*time.Hour+30*time.Minute, d)
}

func TestToken_RemainingClampsAtZero(t *testing.T) {
	reg, clock := newTestRegistry(t)
	tok := mustRegister(t, reg, NewExclusiveLock("res-1", "john", time.Hour))

	r, ok := tok.Remaining()
	testutil.AssertTrue(t, ok)
	testutil.AssertEqual(t, time.Hour, r)

	clock.Advance(45 * time.Minute)
	r, _ = tok.Remaining()
	testutil.AssertEqual(t, 15*time.Minute, r)

	clock.Advance(30 * time.Minute)
	r, _ = tok.Remaining()
	testutil.AssertEqual(t, time.Duration(0), r, "remaining must never go negative")
}

func TestToken_RemainingZeroAfterEnd(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tok := mustRegister(t, reg, NewExclusiveLock("res-1", "john", time.Hour))

	testutil.AssertNoError(t, tok.End())

	// Ending ahead of the expiry leaves no remaining lease time.
	r, ok := tok.Remaining()
	testutil.AssertTrue(t, ok)
	testutil.AssertEqual(t, time.Duration(0), r)
}

func TestToken_SilentExpiry(t *testing.T) {
	reg, clock := newTestRegistry(t)
	tok := mustRegister(t, reg, NewExclusiveLock("res-1", "john", time.Hour))

	clock.Advance(2 * time.Hour)

	// Past its expiration the token is observed as ended everywhere, even
	// though no sweep has run.
	testutil.AssertEqual(t, tok.Expiration(), tok.Ended())
	testutil.AssertNil(t, reg.Get("res-1"))

	// An expired token can no longer be mutated or ended.
	testutil.AssertErrorIs(t, tok.End(), ErrTokenEnded)
	testutil.AssertErrorIs(t, tok.SetDuration(time.Hour), ErrTokenEnded)
	testutil.AssertErrorIs(t, tok.SetExpiration(clock.Now().Add(time.Hour)), ErrTokenEnded)
}

func TestToken_EndIsTerminal(t *testing.T) {
	reg, clock := newTestRegistry(t)
	tok := mustRegister(t, reg, NewExclusiveLock("res-1", "john", time.Hour))

	testutil.AssertNoError(t, tok.End())
	testutil.AssertEqual(t, clock.Now(), tok.Ended())
	testutil.AssertNil(t, reg.Get("res-1"))

	testutil.AssertErrorIs(t, tok.End(), ErrTokenEnded)
	testutil.AssertErrorIs(t, tok.SetDuration(time.Hour), ErrTokenEnded)
}

func TestToken_EndRequiresRegistration(t *testing.T) {
	tok := NewExclusiveLock("res-1", "john", time.Hour)
	testutil.AssertErrorIs(t, tok.End(), ErrNotRegistered)
}

func TestExclusiveLock_PrincipalMutationRejected(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tok := mustRegister(t, reg, NewExclusiveLock("res-1", "john", 0))

	testutil.AssertErrorIs(t, tok.Add("mary"), ErrNotShared)
	testutil.AssertErrorIs(t, tok.Remove("john"), ErrNotShared)
}

func TestSharedLock_PrincipalLifecycle(t *testing.T) {
	reg, _ := newTestRegistry(t)
	tok := mustRegister(t, reg, NewSharedLock("res-1", []types.PrincipalID{"john", "mary"}, 0))

	testutil.AssertNoError(t, tok.Add("jane"))
	testutil.AssertEqual(t, []types.PrincipalID{"jane", "john", "mary"}, tok.Principals())

	testutil.AssertNoError(t, tok.Remove("mary"))
	testutil.AssertNoError(t, tok.Remove("jane"))
	testutil.AssertEqual(t, []types.PrincipalID{"john"}, tok.Principals())
	testutil.AssertTrue(t, tok.Ended().IsZero(), "token must stay active with one principal left")

	// Removing the last principal ends the token.
	testutil.AssertNoError(t, tok.Remove("john"))
	testutil.AssertFalse(t, tok.Ended().IsZero())
	testutil.AssertNil(t, reg.Get("res-1"))
}

func TestSharedLock_EmptyPrincipalsRejected(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Register(NewSharedLock("res-1", nil, 0))
	testutil.AssertErrorIs(t, err, ErrNoPrincipals)
}

func TestToken_EndEventSubscriber(t *testing.T) {
	reg, _ := newTestRegistry(t)

	var endedTokens []Token
	reg.OnTokenEnded(func(tok Token) { endedTokens = append(endedTokens, tok) })

	tok := mustRegister(t, reg, NewExclusiveLock("res-1", "john", 0))
	testutil.AssertNoError(t, tok.End())

	testutil.AssertLen(t, endedTokens, 1)
	testutil.AssertEqual(t, tok, endedTokens[0])
}
