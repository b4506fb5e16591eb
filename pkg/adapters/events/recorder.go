package events

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/kubernetes/scheme"
	typedcorev1 "k8s.io/client-go/kubernetes/typed/core/v1"
	"k8s.io/client-go/tools/record"
)

// Component is the event source reported on emitted events.
const Component = "catalogmirror"

// Event reasons emitted against mirrored service model objects.
const (
	ReasonCreated      = "ServiceModelCreated"
	ReasonUpdated      = "ServiceModelUpdated"
	ReasonConflict     = "ServiceModelConflict"
	ReasonUpdateFailed = "ServiceModelUpdateFailed"
)

// Recorder wraps an EventRecorder with helpers for mirrored objects.
//
// The helper methods guard against nil receivers and nil recorders so
// callers can pass either when event emission is disabled.
type Recorder struct {
	recorder record.EventRecorder
}

// NewRecorder constructs a Recorder around rec, which may be nil.
func NewRecorder(rec record.EventRecorder) *Recorder {
	return &Recorder{recorder: rec}
}

// NewBroadcastRecorder starts an event broadcaster that writes to the
// namespace of the service model store. The returned func stops it.
func NewBroadcastRecorder(clientset kubernetes.Interface, namespace string) (record.EventRecorder, func()) {
	broadcaster := record.NewBroadcaster()
	broadcaster.StartRecordingToSink(&typedcorev1.EventSinkImpl{Interface: clientset.CoreV1().Events(namespace)})
	recorder := broadcaster.NewRecorder(scheme.Scheme, corev1.EventSource{Component: Component})
	return recorder, broadcaster.Shutdown
}

// Created records that a service model object was created for an entity.
func (r *Recorder) Created(obj runtime.Object, entityRef string) {
	if r == nil || r.recorder == nil {
		return
	}
	r.recorder.Eventf(obj, corev1.EventTypeNormal, ReasonCreated, "Mirrored %s", entityRef)
}

// Updated records that a service model object was replaced.
func (r *Recorder) Updated(obj runtime.Object, entityRef string) {
	if r == nil || r.recorder == nil {
		return
	}
	r.recorder.Eventf(obj, corev1.EventTypeNormal, ReasonUpdated, "Updated from %s", entityRef)
}

// Conflict records a stale write that will be retried on the next pass.
func (r *Recorder) Conflict(obj runtime.Object, entityRef string) {
	if r == nil || r.recorder == nil {
		return
	}
	r.recorder.Eventf(obj, corev1.EventTypeWarning, ReasonConflict, "Update from %s conflicted with a concurrent write", entityRef)
}

// UpdateFailed records a failed replace.
func (r *Recorder) UpdateFailed(obj runtime.Object, entityRef string, err error) {
	if r == nil || r.recorder == nil || err == nil {
		return
	}
	r.recorder.Eventf(obj, corev1.EventTypeWarning, ReasonUpdateFailed, "Update from %s failed: %v", entityRef, err)
}
