package automaton

import "fmt"

// Kind is the closed set of node variants a state can carry. Parsed document
// trees map their heterogeneous node types onto this tagged set so that
// signatures and accessors stay exhaustive and type-safe.
type Kind uint8

const (
	KindDocument Kind = iota
	KindElement
	KindText
	KindComment
	KindFragment
)

var kindNames = [...]string{
	KindDocument: "document",
	KindElement:  "element",
	KindText:     "text",
	KindComment:  "comment",
	KindFragment: "fragment",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps the wire name of a node kind back to its tag.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q", name)
}
