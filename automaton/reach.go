package automaton

import "github.com/bits-and-blooms/bitset"

// reachableStates returns the set of states reachable from state 0. The
// refiner partitions exactly this set; the merger drops everything outside it.
func reachableStates(a *Automaton) *bitset.BitSet {
	reachable := bitset.New(uint(a.NumStates()))
	if a.NumStates() == 0 {
		return reachable
	}

	workList := make([]int, 0, a.NumStates())
	workList = append(workList, 0)
	reachable.Set(0)

	for len(workList) > 0 {
		st := workList[0]
		workList = workList[1:]

		count := a.NumTransitionsAt(st)
		for i := 0; i < count; i++ {
			_, dest := a.TransitionAt(st, i)
			if !reachable.Test(uint(dest)) {
				reachable.Set(uint(dest))
				workList = append(workList, dest)
			}
		}
	}
	return reachable
}
