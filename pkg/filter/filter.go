// Package filter implements the boolean filter language that decides which
// catalog entities are mirrored.
//
// A Filter is one of four node types: Predicate, AllOf, AnyOf and Not. The
// set is closed; only this package can add node types. Filters are built once
// from configuration and are immutable afterwards.
package filter

import "strings"

// Filter is a node of a filter expression tree.
type Filter interface {
	// String renders the node for logging.
	String() string

	filterNode()
}

// Predicate matches when the entity value at Key equals one of Values,
// ignoring case.
type Predicate struct {
	// Key is a dotted path into the entity, e.g. "metadata.annotations.team".
	Key    string
	Values []string
}

// AllOf matches when every child matches. An empty AllOf always matches.
type AllOf struct {
	Children []Filter
}

// AnyOf matches when at least one child matches. An empty AnyOf never matches.
type AnyOf struct {
	Children []Filter
}

// Not inverts its child.
type Not struct {
	Child Filter
}

func (Predicate) filterNode() {}
func (AllOf) filterNode()     {}
func (AnyOf) filterNode()     {}
func (Not) filterNode()       {}

func (p Predicate) String() string {
	return p.Key + "=" + strings.Join(p.Values, "|")
}

func (a AllOf) String() string { return "allOf(" + joinChildren(a.Children) + ")" }

func (a AnyOf) String() string { return "anyOf(" + joinChildren(a.Children) + ")" }

func (n Not) String() string {
	if n.Child == nil {
		return "not()"
	}
	return "not(" + n.Child.String() + ")"
}

func joinChildren(children []Filter) string {
	rendered := make([]string, 0, len(children))
	for _, child := range children {
		if child == nil {
			continue
		}
		rendered = append(rendered, child.String())
	}
	return strings.Join(rendered, ", ")
}
