package statecache

import "errors"

var (
	// ErrUnknownState reports a lookup against a state id the underlying
	// automaton does not contain. This is a programmer error and is surfaced
	// immediately; silently returning a wrong target would corrupt
	// downstream diffing.
	ErrUnknownState = errors.New("statecache: unknown state id")

	// ErrNoTransition reports that the state has no outgoing transition on
	// the requested symbol.
	ErrNoTransition = errors.New("statecache: no transition for symbol")

	// ErrNondeterministic reports an attempt to minimize an automaton with
	// duplicate symbols out of a single state. Signature refinement is only
	// sound for deterministic machines.
	ErrNondeterministic = errors.New("statecache: automaton is not deterministic")
)
