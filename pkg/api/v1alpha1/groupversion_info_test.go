package v1alpha1_test

import (
	"testing"

	"catalogmirror/pkg/api/v1alpha1"
)

func TestLabelKeysStability(t *testing.T) {
	cases := map[string]string{
		v1alpha1.LabelOwner:          "servicemodel.ext.grafana.com/owner",
		v1alpha1.LabelSystem:         "servicemodel.ext.grafana.com/system",
		v1alpha1.LabelSubcomponentOf: "servicemodel.ext.grafana.com/subcomponentOf",
		v1alpha1.LabelParent:         "servicemodel.ext.grafana.com/parent",
		v1alpha1.LabelType:           "servicemodel.ext.grafana.com/type",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("label changed: got %s want %s", got, want)
		}
	}
	if got := v1alpha1.RelationLabel("ownedBy"); got != "servicemodel.ext.grafana.com/ownedBy" {
		t.Fatalf("unexpected relation label %s", got)
	}
}

func TestGroupVersionResource(t *testing.T) {
	gvr := v1alpha1.GroupVersionResource("v1alpha1", "Component")
	if gvr.Group != v1alpha1.Group || gvr.Version != "v1alpha1" || gvr.Resource != "components" {
		t.Fatalf("unexpected gvr %v", gvr)
	}
	if got := v1alpha1.GroupVersion("v1").String(); got != "servicemodel.ext.grafana.com/v1" {
		t.Fatalf("unexpected group version %s", got)
	}
}

func TestResourceIsNaive(t *testing.T) {
	cases := map[string]string{
		"Group":    "groups",
		"Resource": "resources",
		"Policy":   "policys",
		"API":      "apis",
	}
	for kind, want := range cases {
		if got := v1alpha1.Resource(kind); got != want {
			t.Fatalf("Resource(%q) = %q, want %q", kind, got, want)
		}
	}
}
