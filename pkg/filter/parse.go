package filter

import (
	"fmt"
	"strings"
)

// ParseError reports a filter clause that could not be parsed.
type ParseError struct {
	Filter string
	Clause string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid filter %q: clause %q %s", e.Filter, e.Clause, e.Reason)
}

// Parse reads a filter string of comma-separated "key=value" clauses that
// must all hold. Clauses sharing a key are merged into one predicate whose
// values are alternatives. A blank string yields a nil Filter.
//
// A single key produces a Predicate; several keys produce an AllOf of
// predicates in first-seen key order.
func Parse(text string) (Filter, error) {
	var keys []string
	values := map[string][]string{}

	for _, rawClause := range strings.Split(text, ",") {
		clause := strings.TrimSpace(rawClause)
		if clause == "" {
			continue
		}

		separator := strings.Index(clause, "=")
		if separator < 0 {
			return nil, &ParseError{Filter: text, Clause: clause, Reason: "is missing '='"}
		}

		key := strings.TrimSpace(clause[:separator])
		if key == "" {
			return nil, &ParseError{Filter: text, Clause: clause, Reason: "has an empty key"}
		}
		value := strings.TrimSpace(clause[separator+1:])

		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = append(values[key], value)
	}

	switch len(keys) {
	case 0:
		return nil, nil
	case 1:
		return Predicate{Key: keys[0], Values: values[keys[0]]}, nil
	}

	children := make([]Filter, 0, len(keys))
	for _, key := range keys {
		children = append(children, Predicate{Key: key, Values: values[key]})
	}
	return AllOf{Children: children}, nil
}

// AnyOfMultipleFilters parses each string and ORs the results. Blank strings
// contribute nothing.
func AnyOfMultipleFilters(texts []string) (AnyOf, error) {
	children, err := parseAll(texts)
	if err != nil {
		return AnyOf{}, err
	}
	return AnyOf{Children: children}, nil
}

// AllOfMultipleFilters parses each string and ANDs the results. Blank strings
// contribute nothing.
func AllOfMultipleFilters(texts []string) (AllOf, error) {
	children, err := parseAll(texts)
	if err != nil {
		return AllOf{}, err
	}
	return AllOf{Children: children}, nil
}

func parseAll(texts []string) ([]Filter, error) {
	children := make([]Filter, 0, len(texts))
	for _, text := range texts {
		parsed, err := Parse(text)
		if err != nil {
			return nil, err
		}
		if parsed != nil {
			children = append(children, parsed)
		}
	}
	return children, nil
}
