package automaton

import (
	"encoding/json"
	"fmt"
	"sort"
)

// wire format for one state, as produced by the parser/automaton builder and
// consumed by the renderer. Class is only present once refinement assigned
// one; minimized marks states frozen by the merger.
type stateJSON struct {
	ID          int            `json:"id"`
	Kind        string         `json:"kind"`
	Accept      bool           `json:"accept,omitempty"`
	Transitions map[string]int `json:"transitions,omitempty"`
	Class       *int           `json:"class,omitempty"`
	Minimized   bool           `json:"minimized,omitempty"`
}

type automatonJSON struct {
	States []stateJSON `json:"states"`
}

// EncodeJSON serializes the automaton. State ids are their arena indexes;
// transition keys come out in the automaton's lexicographic order (JSON
// object key order is not significant on the wire).
func EncodeJSON(a *Automaton) ([]byte, error) {
	doc := automatonJSON{States: make([]stateJSON, 0, a.NumStates())}
	for st := 0; st < a.NumStates(); st++ {
		sj := stateJSON{
			ID:        st,
			Kind:      a.Kind(st).String(),
			Accept:    a.IsAccept(st),
			Minimized: a.IsMinimized(st),
		}
		if n := a.NumTransitionsAt(st); n > 0 {
			sj.Transitions = make(map[string]int, n)
			for i := 0; i < n; i++ {
				symbol, dest := a.TransitionAt(st, i)
				sj.Transitions[symbol] = dest
			}
		}
		if cls := a.Class(st); cls >= 0 {
			c := cls
			sj.Class = &c
		}
		doc.States = append(doc.States, sj)
	}
	return json.MarshalIndent(doc, "", "  ")
}

// DecodeJSON rebuilds an automaton from its wire form. States may appear in
// any order but ids must be dense, starting at 0 (state 0 is the initial
// state). Transition targets must name existing states.
func DecodeJSON(data []byte) (*Automaton, error) {
	var doc automatonJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode automaton: %w", err)
	}

	byID := make([]*stateJSON, len(doc.States))
	for i := range doc.States {
		sj := &doc.States[i]
		if sj.ID < 0 || sj.ID >= len(doc.States) {
			return nil, fmt.Errorf("state id %d out of range [0,%d)", sj.ID, len(doc.States))
		}
		if byID[sj.ID] != nil {
			return nil, fmt.Errorf("duplicate state id %d", sj.ID)
		}
		byID[sj.ID] = sj
	}

	a := NewAutomatonSized(len(doc.States))
	for id, sj := range byID {
		kind, err := ParseKind(sj.Kind)
		if err != nil {
			return nil, fmt.Errorf("state %d: %w", id, err)
		}
		st := a.CreateState(kind)
		a.SetAccept(st, sj.Accept)
	}
	for id, sj := range byID {
		symbols := make([]string, 0, len(sj.Transitions))
		for symbol := range sj.Transitions {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			dest := sj.Transitions[symbol]
			if dest < 0 || dest >= len(doc.States) {
				return nil, fmt.Errorf("state %d: transition %q targets unknown state %d", id, symbol, dest)
			}
			if err := a.AddTransition(id, symbol, dest); err != nil {
				return nil, err
			}
		}
	}
	a.FinishState()

	// Restore class assignments and frozen markers. Signatures are not on the
	// wire; they are recomputed under the serialized assignment, which yields
	// exactly the values the refiner memoized.
	classOf := make([]int, len(byID))
	restore := false
	for id, sj := range byID {
		if sj.Class == nil {
			classOf[id] = -1
			if sj.Minimized {
				return nil, fmt.Errorf("state %d: minimized but has no class", id)
			}
			continue
		}
		classOf[id] = *sj.Class
		restore = true
	}
	if restore {
		for id, sj := range byID {
			if sj.Class == nil {
				continue
			}
			a.setClass(id, *sj.Class, signatureOf(a, id, classOf))
			if sj.Minimized {
				a.freeze(id)
			}
		}
	}
	return a, nil
}
