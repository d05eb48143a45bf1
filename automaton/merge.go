package automaton

import (
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

// ErrAbortedPartition is returned when a partition that hit its class bound
// is handed to Merge. Such a tree stays unminimized.
var ErrAbortedPartition = errors.New("partition aborted, tree left unminimized")

// MergeResult is the rewritten automaton plus the side table mapping old
// state ids to their class representatives in the new arena.
type MergeResult struct {
	Automaton *Automaton

	// Remap maps old state id to new state id, -1 for states that were
	// unreachable from the initial state. All members of one equivalence
	// class map to the same new id.
	Remap []int

	// Merged is how many states the rewrite removed.
	Merged int
}

// Merge rewrites the automaton so that every state is replaced by its
// equivalence-class representative, achieving structural sharing. The
// representative of each class is its first member encountered in canonical
// pre-order traversal from state 0 (children visited in lexicographic symbol
// order), so the result is deterministic. Representatives come out minimized
// and frozen, with their class id and fixpoint signature carried over for the
// consumer.
//
// The state count of the result is never larger than the input's. Merging an
// already-minimized automaton is a no-op: every class is a singleton and the
// rebuilt arena is identical.
func Merge(a *Automaton, p *Partition) (*MergeResult, error) {
	if p.Aborted {
		return nil, ErrAbortedPartition
	}
	if len(p.ClassOf) != a.NumStates() {
		return nil, fmt.Errorf("partition covers %d states, automaton has %d", len(p.ClassOf), a.NumStates())
	}
	if a.NumStates() == 0 {
		return &MergeResult{Automaton: NewAutomaton(), Remap: []int{}}, nil
	}

	// Pre-order walk assigning each class its representative and new id in
	// encounter order. State 0's representative is always new state 0.
	newID := make(map[int]int)
	reps := make([]int, 0)
	visited := bitset.New(uint(a.NumStates()))
	stack := []int{0}
	for len(stack) > 0 {
		st := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Test(uint(st)) {
			continue
		}
		visited.Set(uint(st))

		cls := p.ClassOf[st]
		if _, ok := newID[cls]; !ok {
			newID[cls] = len(reps)
			reps = append(reps, st)
		}

		// Push in reverse so the lexicographically first symbol pops first.
		for i := a.NumTransitionsAt(st) - 1; i >= 0; i-- {
			_, dest := a.TransitionAt(st, i)
			if !visited.Test(uint(dest)) {
				stack = append(stack, dest)
			}
		}
	}

	b := NewAutomatonSized(len(reps))
	for _, rep := range reps {
		id := b.CreateState(a.Kind(rep))
		b.SetAccept(id, a.IsAccept(rep))
	}
	for id, rep := range reps {
		count := a.NumTransitionsAt(rep)
		for i := 0; i < count; i++ {
			symbol, dest := a.TransitionAt(rep, i)
			if err := b.AddTransition(id, symbol, newID[p.ClassOf[dest]]); err != nil {
				return nil, err
			}
		}
	}
	b.FinishState()

	// In the merged arena every state is its own class. Memoize signatures
	// under that identity assignment and freeze; re-refining the result
	// reproduces exactly these values.
	identity := make([]int, len(reps))
	for i := range identity {
		identity[i] = i
	}
	for id := range reps {
		b.setClass(id, id, signatureOf(b, id, identity))
		b.freeze(id)
	}

	remap := make([]int, a.NumStates())
	for st := range remap {
		if cls := p.ClassOf[st]; cls >= 0 {
			remap[st] = newID[cls]
		} else {
			remap[st] = -1
		}
	}

	return &MergeResult{
		Automaton: b,
		Remap:     remap,
		Merged:    a.NumStates() - b.NumStates(),
	}, nil
}
