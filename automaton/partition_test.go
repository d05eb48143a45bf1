package automaton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A --b--> B, A --c--> C, B --x--> A, C --x--> A. B and C share kind and
// acceptance and transition identically, so they are equivalent.
func buildDiamond(t *testing.T) *Automaton {
	t.Helper()
	a := NewAutomaton()
	stateA := a.CreateState(KindDocument)
	stateB := a.CreateState(KindElement)
	stateC := a.CreateState(KindElement)
	a.SetAccept(stateB, true)
	a.SetAccept(stateC, true)

	require.NoError(t, a.AddTransition(stateA, "b", stateB))
	require.NoError(t, a.AddTransition(stateA, "c", stateC))
	require.NoError(t, a.AddTransition(stateB, "x", stateA))
	require.NoError(t, a.AddTransition(stateC, "x", stateA))
	a.FinishState()
	return a
}

func Test_Refine(t *testing.T) {
	t.Run("testMergesEquivalentStates", func(t *testing.T) {
		a := buildDiamond(t)
		p := Refine(a, DefaultLimits())

		assert.True(t, p.Stable)
		assert.False(t, p.Aborted)
		assert.Equal(t, 2, len(p.Classes))
		assert.Equal(t, p.ClassOf[1], p.ClassOf[2])
		assert.NotEqual(t, p.ClassOf[0], p.ClassOf[1])
	})

	t.Run("testPartitionSoundness", func(t *testing.T) {
		a := buildDiamond(t)
		// Unreachable state: must not appear in any class.
		orphan := a.CreateState(KindComment)
		p := Refine(a, DefaultLimits())

		assert.Equal(t, -1, p.ClassOf[orphan])

		seen := make(map[int]bool)
		covered := 0
		for _, cls := range p.Classes {
			for _, member := range cls.Members {
				assert.False(t, seen[member], "state %d in two classes", member)
				seen[member] = true
				assert.Equal(t, cls.ID, p.ClassOf[member])
				covered++
			}
		}
		assert.Equal(t, 3, covered)
	})

	t.Run("testEquivalenceIffSignature", func(t *testing.T) {
		a := buildDiamond(t)
		p := Refine(a, DefaultLimits())
		require.True(t, p.Stable)

		for s := 0; s < a.NumStates(); s++ {
			for o := 0; o < a.NumStates(); o++ {
				sameClass := p.ClassOf[s] == p.ClassOf[o]
				sameSig := a.Signature(s) == a.Signature(o)
				assert.Equal(t, sameClass, sameSig, "states %d and %d", s, o)
			}
		}
	})

	t.Run("testDistinguishedByAcceptance", func(t *testing.T) {
		a := NewAutomaton()
		s0 := a.CreateState(KindDocument)
		s1 := a.CreateState(KindElement)
		s2 := a.CreateState(KindElement)
		a.SetAccept(s2, true)
		require.NoError(t, a.AddTransition(s0, "a", s1))
		require.NoError(t, a.AddTransition(s0, "b", s2))
		a.FinishState()

		p := Refine(a, DefaultLimits())
		assert.NotEqual(t, p.ClassOf[s1], p.ClassOf[s2])
	})

	t.Run("testDistinguishedByKind", func(t *testing.T) {
		a := NewAutomaton()
		s0 := a.CreateState(KindDocument)
		s1 := a.CreateState(KindText)
		s2 := a.CreateState(KindComment)
		require.NoError(t, a.AddTransition(s0, "a", s1))
		require.NoError(t, a.AddTransition(s0, "b", s2))
		a.FinishState()

		p := Refine(a, DefaultLimits())
		assert.NotEqual(t, p.ClassOf[s1], p.ClassOf[s2])
	})

	t.Run("testCyclicTerminates", func(t *testing.T) {
		a := NewAutomaton()
		s0 := a.CreateState(KindElement)
		s1 := a.CreateState(KindElement)
		require.NoError(t, a.AddTransition(s0, "next", s1))
		require.NoError(t, a.AddTransition(s1, "next", s0))
		a.FinishState()

		p := Refine(a, DefaultLimits())
		assert.True(t, p.Stable)
		// A pure two-cycle of identical states collapses to one class.
		assert.Equal(t, 1, len(p.Classes))
	})

	t.Run("testClassBoundAborts", func(t *testing.T) {
		a := buildDiamond(t)
		p := Refine(a, Limits{MaxIterations: 64, MaxClasses: 1})
		assert.True(t, p.Aborted)
		assert.False(t, p.Stable)
	})

	t.Run("testIterationBoundReturnsPartial", func(t *testing.T) {
		// A chain needs one round per distance-to-accept to stabilize;
		// a single iteration leaves a coarser but usable partition.
		a := NewAutomaton()
		ids := make([]int, 6)
		for i := range ids {
			ids[i] = a.CreateState(KindElement)
		}
		a.SetAccept(ids[5], true)
		for i := 0; i+1 < len(ids); i++ {
			require.NoError(t, a.AddTransition(ids[i], "next", ids[i+1]))
		}
		a.FinishState()

		p := Refine(a, Limits{MaxIterations: 1, MaxClasses: 100})
		assert.False(t, p.Stable)
		assert.False(t, p.Aborted)
		assert.Equal(t, 1, p.Iterations)
		assert.NotEmpty(t, p.Classes)
	})

	t.Run("testIterationBoundSignaturesMatchClasses", func(t *testing.T) {
		// The capped round renumbers classes; the memoized signatures must
		// reference that final numbering, not the previous round's.
		a := NewAutomaton()
		ids := make([]int, 4)
		for i := range ids {
			ids[i] = a.CreateState(KindElement)
		}
		a.SetAccept(ids[3], true)
		for i := 0; i+1 < len(ids); i++ {
			require.NoError(t, a.AddTransition(ids[i], "next", ids[i+1]))
		}
		a.FinishState()

		p := Refine(a, Limits{MaxIterations: 1, MaxClasses: 100})
		require.False(t, p.Stable)
		require.False(t, p.Aborted)

		for st := 0; st < a.NumStates(); st++ {
			assert.Equal(t, p.ClassOf[st], a.Class(st))
			assert.Equal(t, signatureOf(a, st, p.ClassOf), a.Signature(st), "state %d", st)
		}
		for _, cls := range p.Classes {
			assert.Equal(t, a.Signature(cls.Members[0]), cls.Signature)
		}
	})

	t.Run("testEmptyAutomaton", func(t *testing.T) {
		p := Refine(NewAutomaton(), DefaultLimits())
		assert.True(t, p.Stable)
		assert.Empty(t, p.Classes)
	})

	t.Run("testFreshPartitionEachRun", func(t *testing.T) {
		a := buildDiamond(t)
		p1 := Refine(a, DefaultLimits())
		p2 := Refine(a, DefaultLimits())
		assert.Equal(t, p1.ClassOf, p2.ClassOf)
		assert.NotSame(t, p1, p2)
	})
}
