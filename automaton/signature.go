package automaton

import (
	"strconv"
	"strings"
)

// localSignature encodes only the locally observable behavior of a state:
// its node kind and acceptance. Transitions are deliberately ignored; this is
// the key for the initial partition.
func localSignature(a *Automaton, st int) string {
	var b strings.Builder
	b.WriteString(a.Kind(st).String())
	if a.IsAccept(st) {
		b.WriteString(":1")
	} else {
		b.WriteString(":0")
	}
	return b.String()
}

// signatureOf canonicalizes a state's observable behavior under the given
// class assignment: kind, acceptance, and the sorted symbol→class transition
// table. Targets are referenced by the class id classOf assigns them, never by
// their own signatures, so cyclic transition graphs cannot recurse. Two states
// with identical signatures are indistinguishable under classOf.
func signatureOf(a *Automaton, st int, classOf []int) string {
	var b strings.Builder
	b.WriteString(localSignature(a, st))
	b.WriteByte('{')
	count := a.NumTransitionsAt(st)
	for i := 0; i < count; i++ {
		// Symbols are already in lexicographic order.
		symbol, dest := a.TransitionAt(st, i)
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(symbol)
		b.WriteByte('>')
		b.WriteString(strconv.Itoa(classOf[dest]))
	}
	b.WriteByte('}')
	return b.String()
}
