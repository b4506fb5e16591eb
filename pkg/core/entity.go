package core

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/runtime"
)

// DefaultNamespace is the catalog namespace assumed when an entity omits one.
const DefaultNamespace = "default"

// Entity is a catalog record as handed to post-processing.
type Entity struct {
	APIVersion string                 `json:"apiVersion"`
	Kind       string                 `json:"kind"`
	Metadata   EntityMeta             `json:"metadata"`
	Spec       map[string]interface{} `json:"spec,omitempty"`
	Relations  []Relation             `json:"relations,omitempty"`
}

// EntityMeta carries the identifying and descriptive metadata of an entity.
type EntityMeta struct {
	UID         string            `json:"uid,omitempty"`
	Etag        string            `json:"etag,omitempty"`
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace,omitempty"`
	Title       string            `json:"title,omitempty"`
	Description string            `json:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Links       []EntityLink      `json:"links,omitempty"`

	// Extra holds metadata fields without a typed counterpart, such as
	// custom keys allowed by the catalog schema.
	Extra map[string]interface{} `json:"-"`
}

var typedMetadataFields = map[string]bool{
	"uid": true, "etag": true, "name": true, "namespace": true, "title": true,
	"description": true, "labels": true, "annotations": true, "tags": true, "links": true,
}

// ExtraMetadata returns the fields of a raw metadata object that EntityMeta
// has no field for, or nil when there are none.
func ExtraMetadata(raw map[string]interface{}) map[string]interface{} {
	var extra map[string]interface{}
	for field, value := range raw {
		if typedMetadataFields[field] {
			continue
		}
		if extra == nil {
			extra = map[string]interface{}{}
		}
		extra[field] = value
	}
	return copyJSONMap(extra)
}

// EntityLink is an external link attached to an entity.
type EntityLink struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Icon  string `json:"icon,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Relation points from an entity to another entity reference.
type Relation struct {
	Type      string `json:"type"`
	TargetRef string `json:"targetRef"`
}

// LocationSpec describes where an entity was read from.
type LocationSpec struct {
	Type     string `json:"type"`
	Target   string `json:"target"`
	Presence string `json:"presence,omitempty"`
}

// Ref returns the canonical "kind:namespace/name" reference. Kind and
// namespace are lower-cased; the name keeps its case.
func (entity *Entity) Ref() string {
	namespace := entity.Metadata.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return strings.ToLower(entity.Kind) + ":" + strings.ToLower(namespace) + "/" + entity.Metadata.Name
}

// StringSpec returns a spec field as a string. Missing, empty and non-string
// values report false.
func (entity *Entity) StringSpec(field string) (string, bool) {
	value, exists := entity.Spec[field]
	if !exists {
		return "", false
	}
	text, isString := value.(string)
	if !isString || text == "" {
		return "", false
	}
	return text, true
}

// ToUnstructured renders the entity as a JSON-compatible map.
func (entity *Entity) ToUnstructured() (map[string]interface{}, error) {
	object, err := runtime.DefaultUnstructuredConverter.ToUnstructured(entity)
	if err != nil {
		return nil, err
	}
	if len(entity.Metadata.Extra) == 0 {
		return object, nil
	}
	metadata, err := entity.MetadataMap()
	if err != nil {
		return nil, err
	}
	object["metadata"] = metadata
	return object, nil
}

// MetadataMap renders the entity metadata as a JSON-compatible map. Extra
// fields never replace typed ones.
func (entity *Entity) MetadataMap() (map[string]interface{}, error) {
	metadata, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&entity.Metadata)
	if err != nil {
		return nil, err
	}
	extra, err := toJSONMap(entity.Metadata.Extra)
	if err != nil {
		return nil, fmt.Errorf("convert extra metadata: %w", err)
	}
	for field, value := range extra {
		if _, typed := metadata[field]; !typed && !typedMetadataFields[field] {
			metadata[field] = value
		}
	}
	return metadata, nil
}

// Normalized returns a deep copy whose spec and extra metadata hold only
// JSON-compatible values: int becomes int64, []string becomes []interface{}
// and so on. Values with no JSON form, such as channels, are an error.
func (entity *Entity) Normalized() (*Entity, error) {
	spec, err := toJSONMap(entity.Spec)
	if err != nil {
		return nil, fmt.Errorf("convert spec of %s: %w", entity.Ref(), err)
	}
	extra, err := toJSONMap(entity.Metadata.Extra)
	if err != nil {
		return nil, fmt.Errorf("convert metadata of %s: %w", entity.Ref(), err)
	}
	normalized := entity.shallowCopy()
	normalized.Spec = spec
	normalized.Metadata.Extra = extra
	return normalized, nil
}

// DeepCopy returns an independent copy of the entity with JSON-compatible
// spec values. Values with no JSON form are shared with the original.
func (entity *Entity) DeepCopy() *Entity {
	if entity == nil {
		return nil
	}
	copied := entity.shallowCopy()
	copied.Spec = copyJSONMap(entity.Spec)
	copied.Metadata.Extra = copyJSONMap(entity.Metadata.Extra)
	return copied
}

func (entity *Entity) shallowCopy() *Entity {
	copied := &Entity{
		APIVersion: entity.APIVersion,
		Kind:       entity.Kind,
		Metadata:   *entity.Metadata.DeepCopy(),
	}
	if entity.Relations != nil {
		copied.Relations = append([]Relation(nil), entity.Relations...)
	}
	return copied
}

// DeepCopy returns an independent copy of the metadata.
func (meta *EntityMeta) DeepCopy() *EntityMeta {
	copied := *meta
	copied.Labels = copyStringMap(meta.Labels)
	copied.Annotations = copyStringMap(meta.Annotations)
	if meta.Tags != nil {
		copied.Tags = append([]string(nil), meta.Tags...)
	}
	if meta.Links != nil {
		copied.Links = append([]EntityLink(nil), meta.Links...)
	}
	copied.Extra = copyJSONMap(meta.Extra)
	return &copied
}

// toJSONMap converts values into a fresh unstructured JSON map.
func toJSONMap(values map[string]interface{}) (map[string]interface{}, error) {
	if values == nil {
		return nil, nil
	}
	holder := struct {
		Values map[string]interface{} `json:"values"`
	}{Values: values}
	object, err := runtime.DefaultUnstructuredConverter.ToUnstructured(&holder)
	if err != nil {
		return nil, err
	}
	converted, _ := object["values"].(map[string]interface{})
	if converted == nil {
		converted = map[string]interface{}{}
	}
	return converted, nil
}

func copyJSONMap(values map[string]interface{}) map[string]interface{} {
	converted, err := toJSONMap(values)
	if err != nil {
		shallow := make(map[string]interface{}, len(values))
		for key, value := range values {
			shallow[key] = value
		}
		return shallow
	}
	return converted
}

func copyStringMap(source map[string]string) map[string]string {
	if source == nil {
		return nil
	}
	copied := make(map[string]string, len(source))
	for key, value := range source {
		copied[key] = value
	}
	return copied
}
