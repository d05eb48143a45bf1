package automaton

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Merge(t *testing.T) {
	t.Run("testMergeReducesByOne", func(t *testing.T) {
		a := buildDiamond(t)
		p := Refine(a, DefaultLimits())
		res, err := Merge(a, p)
		require.NoError(t, err)

		assert.Equal(t, 2, res.Automaton.NumStates())
		assert.Equal(t, 1, res.Merged)
		// Both equivalent states collapse onto one representative.
		assert.Equal(t, res.Remap[1], res.Remap[2])
		assert.Equal(t, 0, res.Remap[0])

		// Behavior is preserved through the rewrite.
		b := res.Automaton
		mid := b.Step(0, "b")
		assert.Equal(t, b.Step(0, "c"), mid)
		assert.Equal(t, 0, b.Step(mid, "x"))
		assert.True(t, b.IsAccept(mid))
	})

	t.Run("testIdempotent", func(t *testing.T) {
		a := buildDiamond(t)
		res1, err := Merge(a, Refine(a, DefaultLimits()))
		require.NoError(t, err)

		first := res1.Automaton
		res2, err := Merge(first, Refine(first, DefaultLimits()))
		require.NoError(t, err)

		assert.Equal(t, 0, res2.Merged)
		assert.Equal(t, first.NumStates(), res2.Automaton.NumStates())

		enc1, err := EncodeJSON(first)
		require.NoError(t, err)
		enc2, err := EncodeJSON(res2.Automaton)
		require.NoError(t, err)
		assert.Equal(t, string(enc1), string(enc2))
	})

	t.Run("testRepresentativesFrozen", func(t *testing.T) {
		a := buildDiamond(t)
		res, err := Merge(a, Refine(a, DefaultLimits()))
		require.NoError(t, err)

		b := res.Automaton
		for st := 0; st < b.NumStates(); st++ {
			assert.True(t, b.IsMinimized(st))
			assert.NotEmpty(t, b.Signature(st))
			assert.Equal(t, st, b.Class(st))
		}
		assert.NotNil(t, b.AddTransition(0, "late", 0))
	})

	t.Run("testUnreachableDropped", func(t *testing.T) {
		a := buildDiamond(t)
		orphan := a.CreateState(KindFragment)
		p := Refine(a, DefaultLimits())
		res, err := Merge(a, p)
		require.NoError(t, err)

		assert.Equal(t, 2, res.Automaton.NumStates())
		assert.Equal(t, -1, res.Remap[orphan])
	})

	t.Run("testAbortedPartitionRejected", func(t *testing.T) {
		a := buildDiamond(t)
		p := Refine(a, Limits{MaxIterations: 64, MaxClasses: 1})
		require.True(t, p.Aborted)

		_, err := Merge(a, p)
		assert.ErrorIs(t, err, ErrAbortedPartition)
	})

	t.Run("testNeverGrows", func(t *testing.T) {
		a := NewAutomaton()
		s0 := a.CreateState(KindDocument)
		s1 := a.CreateState(KindText)
		a.SetAccept(s1, true)
		require.NoError(t, a.AddTransition(s0, "t", s1))
		a.FinishState()

		res, err := Merge(a, Refine(a, DefaultLimits()))
		require.NoError(t, err)
		assert.LessOrEqual(t, res.Automaton.NumStates(), a.NumStates())
	})

	t.Run("testEmpty", func(t *testing.T) {
		a := NewAutomaton()
		res, err := Merge(a, Refine(a, DefaultLimits()))
		require.NoError(t, err)
		assert.Equal(t, 0, res.Automaton.NumStates())
	})
}
