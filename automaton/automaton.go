// Package automaton models parsed document trees as finite-state machines and
// minimizes them by signature-based partition refinement. States are integers
// and must be created using CreateState; state 0 is always the initial state.
// Each state must have all of its transitions added at once; once you start
// adding transitions to another state, or call FinishState, the previous
// state's transitions are sorted by symbol and deduplicated.
package automaton

import (
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"
)

// Automaton is an arena of states and their labeled transitions. Every state
// has a stable integer id (its arena index); external callers key caches and
// side tables on that id instead of object identity.
type Automaton struct {
	states []state

	isAccept *bitset.BitSet

	// Current state we are adding transitions to; the caller must add all
	// transitions for this state before moving onto another state.
	curState int

	// True if no state has two transitions leaving with the same symbol.
	deterministic bool
}

// state is the arena slot for one node. class is -1 until a refinement
// fixpoint assigns an equivalence class; signature is memoized at the same
// time and is meaningless before it. Once minimized is set the transition
// table and signature are immutable.
type state struct {
	kind      Kind
	symbols   []string
	dests     []int
	class     int
	signature string
	minimized bool
	finished  bool
}

func NewAutomaton() *Automaton {
	return NewAutomatonSized(2)
}

func NewAutomatonSized(numStates int) *Automaton {
	return &Automaton{
		curState:      -1,
		deterministic: true,
		states:        make([]state, 0, numStates),
		isAccept:      bitset.New(uint(numStates)),
	}
}

// CreateState creates a new state of the given kind and returns its id.
func (a *Automaton) CreateState(kind Kind) int {
	id := len(a.states)
	a.states = append(a.states, state{kind: kind, class: -1})
	return id
}

// HasState reports whether id names a state in this automaton.
func (a *Automaton) HasState(id int) bool {
	return id >= 0 && id < len(a.states)
}

// SetAccept sets or clears this state as an accept state.
func (a *Automaton) SetAccept(st int, accept bool) {
	a.isAccept.SetTo(uint(st), accept)
}

// IsAccept returns true if this state is an accept state.
func (a *Automaton) IsAccept(st int) bool {
	return a.isAccept.Test(uint(st))
}

// Kind returns the node kind of the state.
func (a *Automaton) Kind(st int) Kind {
	return a.states[st].kind
}

// Class returns the equivalence class of the state, or -1 if no refinement
// fixpoint has assigned one yet.
func (a *Automaton) Class(st int) int {
	return a.states[st].class
}

// Signature returns the state's memoized behavioral signature, computed under
// the most recent refinement's final class assignment. Empty until a
// refinement has run.
func (a *Automaton) Signature(st int) string {
	return a.states[st].signature
}

// IsMinimized returns true once the state has been frozen by the merger.
func (a *Automaton) IsMinimized(st int) bool {
	return a.states[st].minimized
}

// IsDeterministic returns true if no state has two outgoing transitions with
// the same symbol. Minimization requires determinism.
func (a *Automaton) IsDeterministic() bool {
	return a.deterministic
}

// AddTransition adds a new transition from source to dest on symbol. All
// transitions leaving one state must be added consecutively.
func (a *Automaton) AddTransition(source int, symbol string, dest int) error {
	if !a.HasState(source) {
		return fmt.Errorf("source state (%d) does not exist", source)
	}
	if !a.HasState(dest) {
		return fmt.Errorf("dest state (%d) does not exist", dest)
	}
	if a.states[source].minimized {
		return fmt.Errorf("state (%d) is minimized and frozen", source)
	}

	if a.curState != source {
		if a.curState != -1 {
			a.finishCurrentState()
		}
		a.curState = source
		if a.states[source].finished {
			return fmt.Errorf("from state (%d) already had transitions added", source)
		}
	}

	a.states[source].symbols = append(a.states[source].symbols, symbol)
	a.states[source].dests = append(a.states[source].dests, dest)
	return nil
}

// FinishState finishes the current state; call this once you are done adding
// transitions. This is automatically called when you start adding transitions
// to a new source state, but for the last state you need to call it yourself.
func (a *Automaton) FinishState() {
	if a.curState != -1 {
		a.finishCurrentState()
		a.curState = -1
	}
}

// Sorts the current state's transitions by symbol and removes exact
// duplicates. Two transitions sharing a symbol but not a dest make the
// automaton nondeterministic.
func (a *Automaton) finishCurrentState() {
	s := &a.states[a.curState]
	sort.Sort(&symbolDestSorter{symbols: s.symbols, dests: s.dests})

	upto := 0
	for i := 0; i < len(s.symbols); i++ {
		if i > 0 && s.symbols[i] == s.symbols[upto-1] {
			if s.dests[i] == s.dests[upto-1] {
				continue // exact duplicate, reduce
			}
			a.deterministic = false
		}
		s.symbols[upto] = s.symbols[i]
		s.dests[upto] = s.dests[i]
		upto++
	}
	s.symbols = s.symbols[:upto]
	s.dests = s.dests[:upto]
	s.finished = true
}

// NumStates returns how many states this automaton has.
func (a *Automaton) NumStates() int {
	return len(a.states)
}

// NumTransitions returns how many transitions this automaton has.
func (a *Automaton) NumTransitions() int {
	total := 0
	for i := range a.states {
		total += len(a.states[i].symbols)
	}
	return total
}

// NumTransitionsAt returns how many transitions leave the given state.
func (a *Automaton) NumTransitionsAt(st int) int {
	return len(a.states[st].symbols)
}

// TransitionAt returns the index'th transition leaving the state, in
// lexicographic symbol order.
func (a *Automaton) TransitionAt(st, index int) (symbol string, dest int) {
	return a.states[st].symbols[index], a.states[st].dests[index]
}

// Step performs a transition lookup, assuming determinism. Since transitions
// are sorted by symbol it binary searches for the matching one. Returns the
// destination state, or -1 if the state has no outgoing transition on symbol.
func (a *Automaton) Step(st int, symbol string) int {
	s := &a.states[st]
	i := sort.SearchStrings(s.symbols, symbol)
	if i < len(s.symbols) && s.symbols[i] == symbol {
		return s.dests[i]
	}
	return -1
}

// setClass is called by the refiner at fixpoint; the class assignment and
// signature become visible to consumers (the renderer reads Class to decide
// what diffing can skip).
func (a *Automaton) setClass(st, class int, signature string) {
	a.states[st].class = class
	a.states[st].signature = signature
}

// freeze marks a state minimized, making its transitions and signature
// immutable.
func (a *Automaton) freeze(st int) {
	a.states[st].minimized = true
}

// Sorts transitions by symbol, ascending, then dest ascending.
type symbolDestSorter struct {
	symbols []string
	dests   []int
}

func (r *symbolDestSorter) Len() int {
	return len(r.symbols)
}

func (r *symbolDestSorter) Less(i, j int) bool {
	if r.symbols[i] != r.symbols[j] {
		return r.symbols[i] < r.symbols[j]
	}
	return r.dests[i] < r.dests[j]
}

func (r *symbolDestSorter) Swap(i, j int) {
	r.symbols[i], r.symbols[j] = r.symbols[j], r.symbols[i]
	r.dests[i], r.dests[j] = r.dests[j], r.dests[i]
}
