// Package mapper turns catalog entities into service model objects.
package mapper

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"catalogmirror/pkg/api/v1alpha1"
	"catalogmirror/pkg/core"
)

// MetadataField is the spec field that carries a copy of the entity metadata.
const MetadataField = "backstageMetadata"

var specLabels = []struct {
	field    string
	label    string
	sanitize bool
}{
	{field: "owner", label: v1alpha1.LabelOwner, sanitize: true},
	{field: "system", label: v1alpha1.LabelSystem, sanitize: true},
	{field: "subcomponentOf", label: v1alpha1.LabelSubcomponentOf, sanitize: true},
	{field: "parent", label: v1alpha1.LabelParent, sanitize: true},
	{field: "type", label: v1alpha1.LabelType},
}

var refReplacer = strings.NewReplacer(":", "..", "/", "__")

// SanitizeRef replaces the characters label values may not contain:
// ':' becomes ".." and '/' becomes "__".
//
// The substitution is not injective; "a..b" and "a:b" map to the same value.
func SanitizeRef(ref string) string {
	return refReplacer.Replace(ref)
}

// Labels derives the service model labels from the entity relations and its
// well-known spec fields. Later relations of the same type win.
func Labels(entity *core.Entity) map[string]string {
	labels := map[string]string{}

	for _, relation := range entity.Relations {
		labels[v1alpha1.RelationLabel(relation.Type)] = SanitizeRef(relation.TargetRef)
	}

	for _, known := range specLabels {
		value, present := entity.StringSpec(known.field)
		if !present {
			continue
		}
		if known.sanitize {
			value = SanitizeRef(value)
		}
		labels[known.label] = value
	}

	return labels
}

// ToRemoteObject builds the service model object for an entity in the target
// namespace at the discovered API version. Entity labels and namespace are not
// carried onto the object; the entity metadata is kept verbatim under
// spec.backstageMetadata and every spec field is merged on top of it.
func ToRemoteObject(entity *core.Entity, namespace, version string) (*unstructured.Unstructured, error) {
	metadata, err := entity.MetadataMap()
	if err != nil {
		return nil, fmt.Errorf("convert metadata of %s: %w", entity.Ref(), err)
	}

	normalized, err := entity.Normalized()
	if err != nil {
		return nil, err
	}
	spec := map[string]interface{}{MetadataField: metadata}
	for field, value := range normalized.Spec {
		spec[field] = value
	}

	object := &unstructured.Unstructured{Object: map[string]interface{}{}}
	object.SetAPIVersion(v1alpha1.GroupVersion(version).String())
	object.SetKind(entity.Kind)
	object.SetName(entity.Metadata.Name)
	object.SetNamespace(namespace)
	object.SetLabels(Labels(entity))
	object.Object["spec"] = spec

	return object, nil
}
