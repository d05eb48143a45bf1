package automaton

import (
	"sort"
	"strconv"
)

// EquivalenceClass is a maximal set of states indistinguishable by their
// transition behavior under the partition that produced it.
type EquivalenceClass struct {
	ID        int
	Signature string
	Members   []int
}

// Partition is the result of one refinement run. Classes cover exactly the
// states reachable from state 0, pairwise disjoint; unreachable states keep
// class -1. A partition is never mutated incrementally; each Refine call
// rebuilds one from scratch.
type Partition struct {
	Classes []EquivalenceClass

	// ClassOf maps state id to class id, -1 for unreachable states.
	ClassOf []int

	// Iterations is how many refinement rounds ran.
	Iterations int

	// Stable is true if a fixpoint was reached before MaxIterations. When
	// false the partition is the last one found: coarser than the true
	// equivalence but still usable for partial minimization.
	Stable bool

	// Aborted is true if the class count exceeded MaxClasses. An aborted
	// partition must not be merged; the tree stays unminimized.
	Aborted bool
}

// Limits bounds refinement so it always terminates, even on cyclic transition
// graphs and degenerate inputs.
type Limits struct {
	// MaxIterations caps refinement rounds. On a DFA with n states a fixpoint
	// is reached within n rounds, so this only matters as a safety bound.
	MaxIterations int

	// MaxClasses aborts refinement once the partition grows past this size.
	MaxClasses int
}

func DefaultLimits() Limits {
	return Limits{MaxIterations: 64, MaxClasses: 100000}
}

// Refine groups the reachable states of a into equivalence classes by
// Moore-style bounded iterative refinement. The initial partition groups
// states by local signature (kind + acceptance) only; each round recomputes
// every state's signature using the previous round's class ids for transition
// targets and splits classes whose members disagree. Refinement stops at a
// fixpoint (no class splits) or after limits.MaxIterations rounds.
//
// Refine never fails: bound conditions are reported through Stable and
// Aborted on the returned partition.
func Refine(a *Automaton, limits Limits) *Partition {
	n := a.NumStates()
	p := &Partition{ClassOf: make([]int, n)}
	for i := range p.ClassOf {
		p.ClassOf[i] = -1
	}
	if n == 0 {
		p.Stable = true
		return p
	}

	reachable := reachableStates(a)

	// Initial partition: local signatures, class ids in first-occurrence
	// order over ascending state ids for determinism.
	count := 0
	seen := make(map[string]int)
	for st := 0; st < n; st++ {
		if !reachable.Test(uint(st)) {
			continue
		}
		key := localSignature(a, st)
		id, ok := seen[key]
		if !ok {
			id = count
			count++
			seen[key] = id
		}
		p.ClassOf[st] = id
	}

	if count > limits.MaxClasses {
		p.Aborted = true
		return p
	}

	sigs := make([]string, n)
	for iter := 1; iter <= limits.MaxIterations; iter++ {
		p.Iterations = iter

		next := make([]int, n)
		for i := range next {
			next[i] = -1
		}
		nextCount := 0
		groups := make(map[string]int, count)
		for st := 0; st < n; st++ {
			if !reachable.Test(uint(st)) {
				continue
			}
			sig := signatureOf(a, st, p.ClassOf)
			sigs[st] = sig
			// Split within the previous class only: two states may only
			// share a refined class if they already shared one.
			key := strconv.Itoa(p.ClassOf[st]) + "\x00" + sig
			id, ok := groups[key]
			if !ok {
				id = nextCount
				nextCount++
				groups[key] = id
			}
			next[st] = id
		}

		if nextCount > limits.MaxClasses {
			// Keep the previous assignment; the caller sees an unbounded
			// partition as "do not minimize".
			p.Aborted = true
			return p
		}

		if nextCount == count {
			// Fixpoint: no class split this round.
			p.ClassOf = next
			p.Stable = true
			break
		}

		p.ClassOf = next
		count = nextCount
	}

	if !p.Stable {
		// Iteration cap: the last round renumbered classes after signatures
		// were computed, so recompute them under the final assignment. At a
		// fixpoint the assignment did not change and the signatures already
		// agree.
		for st := 0; st < n; st++ {
			if reachable.Test(uint(st)) {
				sigs[st] = signatureOf(a, st, p.ClassOf)
			}
		}
	}
	finish(a, p, sigs)
	return p
}

// finish memoizes class ids and signatures onto the states and materializes
// the class list. Called for fixpoint and iteration-capped partitions; both
// are safe to merge (an early stop is merely coarser, i.e. partial
// minimization). At a fixpoint every member of a class shares its signature;
// on an iteration-capped partition members may still disagree, and the class
// carries its lowest-numbered member's.
func finish(a *Automaton, p *Partition, sigs []string) {
	byClass := make(map[int]*EquivalenceClass)
	order := make([]int, 0)
	for st := 0; st < len(p.ClassOf); st++ {
		id := p.ClassOf[st]
		if id < 0 {
			continue
		}
		a.setClass(st, id, sigs[st])
		c, ok := byClass[id]
		if !ok {
			c = &EquivalenceClass{ID: id, Signature: sigs[st]}
			byClass[id] = c
			order = append(order, id)
		}
		c.Members = append(c.Members, st)
	}

	sort.Ints(order)
	p.Classes = make([]EquivalenceClass, 0, len(order))
	for _, id := range order {
		p.Classes = append(p.Classes, *byClass[id])
	}
}
