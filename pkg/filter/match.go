package filter

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"catalogmirror/pkg/core"
)

// Match reports whether entity satisfies filter. A nil filter never matches.
func Match(entity *core.Entity, filter Filter) bool {
	if filter == nil || entity == nil {
		return false
	}
	object, err := entity.ToUnstructured()
	if err != nil {
		return false
	}
	return MatchObject(object, filter)
}

// MatchObject evaluates filter against an entity already rendered as a
// JSON-compatible map.
func MatchObject(object map[string]interface{}, filter Filter) bool {
	switch node := filter.(type) {
	case Predicate:
		return matchPredicate(object, node)
	case AllOf:
		for _, child := range node.Children {
			if !MatchObject(object, child) {
				return false
			}
		}
		return true
	case AnyOf:
		for _, child := range node.Children {
			if MatchObject(object, child) {
				return true
			}
		}
		return false
	case Not:
		if node.Child == nil {
			return true
		}
		return !MatchObject(object, node.Child)
	default:
		return false
	}
}

func matchPredicate(object map[string]interface{}, predicate Predicate) bool {
	value, found, err := unstructured.NestedFieldNoCopy(object, strings.Split(predicate.Key, ".")...)
	if err != nil || !found || value == nil {
		return false
	}

	var text string
	switch typed := value.(type) {
	case string:
		text = typed
	case bool, int64, float64:
		text = fmt.Sprint(typed)
	default:
		return false
	}

	for _, candidate := range predicate.Values {
		if strings.EqualFold(candidate, text) {
			return true
		}
	}
	return false
}
