// Package v1alpha1 describes the service model API that catalog entities are
// mirrored into.
package v1alpha1

import (
	"strings"

	"k8s.io/apimachinery/pkg/runtime/schema"
)

// Group is the API group served by the service model store.
const Group = "servicemodel.ext.grafana.com"

// Well-known labels raised from entity spec fields.
const (
	LabelOwner          = Group + "/owner"
	LabelSystem         = Group + "/system"
	LabelSubcomponentOf = Group + "/subcomponentOf"
	LabelParent         = Group + "/parent"
	LabelType           = Group + "/type"
)

// RelationLabel returns the label key used for a relation type.
func RelationLabel(relationType string) string {
	return Group + "/" + relationType
}

// GroupVersion returns the group version for a discovered version string.
func GroupVersion(version string) schema.GroupVersion {
	return schema.GroupVersion{Group: Group, Version: version}
}

// Resource maps an entity kind to the collection it is stored in.
// Pluralization is naive: "Component" becomes "components", "Policy" becomes "policys".
func Resource(kind string) string {
	return strings.ToLower(kind) + "s"
}

// GroupVersionResource builds the resource coordinates for a kind at a version.
func GroupVersionResource(version, kind string) schema.GroupVersionResource {
	return GroupVersion(version).WithResource(Resource(kind))
}
