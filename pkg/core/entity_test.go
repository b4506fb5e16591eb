package core_test

import (
	"testing"

	"k8s.io/apimachinery/pkg/api/equality"

	"catalogmirror/pkg/core"
)

func sampleEntity() *core.Entity {
	return &core.Entity{
		APIVersion: "backstage.io/v1alpha1",
		Kind:       "Component",
		Metadata: core.EntityMeta{
			Name:        "Service1",
			Labels:      map[string]string{"app": "svc"},
			Annotations: map[string]string{"common": "true"},
			Tags:        []string{"go"},
		},
		Spec: map[string]interface{}{
			"type":  "service",
			"owner": "group:default/team-a",
			"ports": []interface{}{int64(80), int64(443)},
		},
		Relations: []core.Relation{{Type: "ownedBy", TargetRef: "group:default/team-a"}},
	}
}

func TestRefDefaultsNamespaceAndKeepsNameCase(t *testing.T) {
	entity := sampleEntity()
	if got := entity.Ref(); got != "component:default/Service1" {
		t.Fatalf("unexpected ref %s", got)
	}
	entity.Metadata.Namespace = "Payments"
	if got := entity.Ref(); got != "component:payments/Service1" {
		t.Fatalf("unexpected ref %s", got)
	}

	other := sampleEntity()
	other.Metadata.Name = "service1"
	if other.Ref() == sampleEntity().Ref() {
		t.Fatalf("names differing in case must not share a reference")
	}
}

func TestDeepCopyIsIndependent(t *testing.T) {
	original := sampleEntity()
	copied := original.DeepCopy()
	if !equality.Semantic.DeepEqual(original, copied) {
		t.Fatalf("copy differs from original")
	}
	copied.Metadata.Annotations["common"] = "false"
	copied.Spec["type"] = "website"
	copied.Spec["ports"].([]interface{})[0] = int64(8080)
	copied.Relations[0].Type = "partOf"
	copied.Metadata.Tags[0] = "rust"

	if original.Metadata.Annotations["common"] != "true" {
		t.Fatalf("annotations shared with copy")
	}
	if original.Spec["type"] != "service" {
		t.Fatalf("spec shared with copy")
	}
	if original.Spec["ports"].([]interface{})[0] != int64(80) {
		t.Fatalf("nested spec shared with copy")
	}
	if original.Relations[0].Type != "ownedBy" || original.Metadata.Tags[0] != "go" {
		t.Fatalf("slices shared with copy")
	}
}

func TestStringSpec(t *testing.T) {
	entity := sampleEntity()
	entity.Spec["empty"] = ""
	if value, ok := entity.StringSpec("owner"); !ok || value != "group:default/team-a" {
		t.Fatalf("expected owner, got %q %v", value, ok)
	}
	for _, field := range []string{"missing", "empty", "ports"} {
		if _, ok := entity.StringSpec(field); ok {
			t.Fatalf("expected %s to be absent", field)
		}
	}
}

func TestToUnstructured(t *testing.T) {
	entity := sampleEntity()
	object, err := entity.ToUnstructured()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if object["kind"] != "Component" {
		t.Fatalf("unexpected kind %v", object["kind"])
	}
	metadata := object["metadata"].(map[string]interface{})
	if metadata["name"] != "Service1" {
		t.Fatalf("unexpected name %v", metadata["name"])
	}
	if _, present := metadata["uid"]; present {
		t.Fatalf("empty uid should be omitted")
	}
}

func TestNormalizedConvertsGoValues(t *testing.T) {
	entity := sampleEntity()
	entity.Spec["replicas"] = 3
	entity.Spec["zones"] = []string{"a", "b"}
	entity.Metadata.Extra = map[string]interface{}{"weight": uint8(7)}

	normalized, err := entity.Normalized()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if normalized.Spec["replicas"] != int64(3) {
		t.Fatalf("expected int64, got %#v", normalized.Spec["replicas"])
	}
	zones, ok := normalized.Spec["zones"].([]interface{})
	if !ok || len(zones) != 2 || zones[0] != "a" {
		t.Fatalf("expected []interface{}, got %#v", normalized.Spec["zones"])
	}
	if normalized.Metadata.Extra["weight"] != int64(7) {
		t.Fatalf("expected extra metadata to be normalized, got %#v", normalized.Metadata.Extra["weight"])
	}
	if _, ok := entity.Spec["zones"].([]string); !ok {
		t.Fatalf("expected the original spec to be untouched")
	}

	again, err := normalized.Normalized()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !equality.Semantic.DeepEqual(normalized, again) {
		t.Fatalf("normalizing twice changed the entity")
	}

	entity.Spec["events"] = make(chan int)
	if _, err := entity.Normalized(); err == nil {
		t.Fatalf("expected an error for a value without JSON form")
	}
}

func TestDeepCopyToleratesGoValues(t *testing.T) {
	entity := sampleEntity()
	entity.Spec["replicas"] = 3
	entity.Spec["zones"] = []string{"a"}

	copied := entity.DeepCopy()
	if copied.Spec["replicas"] != int64(3) {
		t.Fatalf("expected a JSON-compatible copy, got %#v", copied.Spec["replicas"])
	}
	copied.Spec["zones"].([]interface{})[0] = "b"
	if entity.Spec["zones"].([]string)[0] != "a" {
		t.Fatalf("copy shares state with the original")
	}
}

func TestExtraMetadata(t *testing.T) {
	raw := map[string]interface{}{
		"name":           "svc",
		"annotations":    map[string]interface{}{"a": "b"},
		"lifecycleStage": "beta",
		"owners":         []interface{}{"team-a"},
	}
	extra := core.ExtraMetadata(raw)
	if len(extra) != 2 || extra["lifecycleStage"] != "beta" {
		t.Fatalf("unexpected extra metadata %v", extra)
	}
	extra["owners"].([]interface{})[0] = "team-b"
	if raw["owners"].([]interface{})[0] != "team-a" {
		t.Fatalf("extra metadata shares state with the raw object")
	}
	if core.ExtraMetadata(map[string]interface{}{"name": "svc"}) != nil {
		t.Fatalf("expected nil without extra fields")
	}
}

func TestToUnstructuredIncludesExtraMetadata(t *testing.T) {
	entity := sampleEntity()
	entity.Metadata.Extra = map[string]interface{}{"lifecycleStage": "beta", "title": "shadowed"}
	entity.Metadata.Title = "Service One"

	object, err := entity.ToUnstructured()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	metadata := object["metadata"].(map[string]interface{})
	if metadata["lifecycleStage"] != "beta" {
		t.Fatalf("expected extra field, got %v", metadata)
	}
	if metadata["title"] != "Service One" || metadata["name"] != "Service1" {
		t.Fatalf("expected typed fields to win, got %v", metadata)
	}
}
