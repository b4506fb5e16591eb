// Package reconcile brings the service model store in line with catalog
// entities.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/api/equality"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"

	"catalogmirror/pkg/adapters/events"
	"catalogmirror/pkg/api/v1alpha1"
	"catalogmirror/pkg/connection"
	"catalogmirror/pkg/core"
	"catalogmirror/pkg/mapper"
)

// Outcome describes what a reconciliation did.
type Outcome string

const (
	OutcomeUnchanged     Outcome = "unchanged"
	OutcomeCreated       Outcome = "created"
	OutcomeAlreadyExists Outcome = "already_exists"
	OutcomeCreateFailed  Outcome = "create_failed"
	OutcomeUpdated       Outcome = "updated"
	OutcomeConflict      Outcome = "conflict"
	OutcomeUpdateFailed  Outcome = "update_failed"
	OutcomeError         Outcome = "error"
)

// Success reports whether the outcome counts as a successful reconciliation.
// Creation is best effort, so a failed create still succeeds.
func (outcome Outcome) Success() bool {
	switch outcome {
	case OutcomeConflict, OutcomeUpdateFailed, OutcomeError:
		return false
	default:
		return true
	}
}

// Result is the outcome of one reconciliation. Cause carries the error that
// was logged and swallowed for failed creates and updates.
type Result struct {
	Outcome Outcome
	Cause   error
}

// DefaultRequestTimeout bounds each call to the service model store.
const DefaultRequestTimeout = 10 * time.Second

// identityPaths are server-assigned fields ignored when comparing specs.
var identityPaths = [][]string{
	{"spec", "metadata", "uid"},
	{"spec", mapper.MetadataField, "uid"},
}

// Engine performs create-or-update reconciliations.
type Engine struct {
	logger         logr.Logger
	requestTimeout time.Duration
}

// NewEngine constructs an Engine. A non-positive timeout uses DefaultRequestTimeout.
func NewEngine(logger logr.Logger, requestTimeout time.Duration) *Engine {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Engine{logger: logger.WithName("reconcile"), requestTimeout: requestTimeout}
}

// Reconcile mirrors entity into the store reached through session. A missing
// object is created; an existing one is replaced when its spec differs from
// the mapped entity. Conflicts and failed writes are logged and reported
// through the result. Only a failed lookup of the existing object is
// returned as an error.
func (engine *Engine) Reconcile(ctx context.Context, session *connection.Session, entity *core.Entity) (Result, error) {
	if session == nil || session.Client == nil {
		return Result{Outcome: OutcomeError}, core.ErrNotConnected
	}
	if entity == nil {
		return Result{Outcome: OutcomeError}, errors.New("reconcile: nil entity")
	}
	ref := entity.Ref()
	logger := engine.logger.WithValues("entity", ref)
	recorder := events.NewRecorder(session.Events)

	desired, err := mapper.ToRemoteObject(entity, session.Namespace, session.Version)
	if err != nil {
		return Result{Outcome: OutcomeError}, err
	}
	resource := session.Client.
		Resource(v1alpha1.GroupVersionResource(session.Version, entity.Kind)).
		Namespace(session.Namespace)

	existing, err := engine.get(ctx, resource, desired.GetName())
	if apierrors.IsNotFound(err) {
		return engine.create(ctx, logger, recorder, resource, ref, desired), nil
	}
	if err != nil {
		logger.Error(err, "failed to read service model object")
		return Result{Outcome: OutcomeError}, fmt.Errorf("get %s: %w", ref, err)
	}

	// Map again so the object compared and written never shares state with
	// the copy the lookup returned.
	desired, err = mapper.ToRemoteObject(entity, session.Namespace, session.Version)
	if err != nil {
		return Result{Outcome: OutcomeError}, err
	}
	if specsEqual(desired, existing) {
		logger.V(2).Info("service model object up to date")
		return Result{Outcome: OutcomeUnchanged}, nil
	}

	desired.SetResourceVersion(existing.GetResourceVersion())
	callCtx, cancel := context.WithTimeout(ctx, engine.requestTimeout)
	defer cancel()
	updated, err := resource.Update(callCtx, desired, metav1.UpdateOptions{})
	if apierrors.IsConflict(err) {
		logger.V(1).Info("service model object changed concurrently, will retry on next pass", "resourceVersion", existing.GetResourceVersion())
		recorder.Conflict(existing, ref)
		return Result{Outcome: OutcomeConflict, Cause: err}, nil
	}
	if err != nil {
		logger.Error(err, "failed to update service model object")
		recorder.UpdateFailed(existing, ref, err)
		return Result{Outcome: OutcomeUpdateFailed, Cause: err}, nil
	}
	logger.V(1).Info("updated service model object", "resourceVersion", updated.GetResourceVersion())
	recorder.Updated(updated, ref)
	return Result{Outcome: OutcomeUpdated}, nil
}

// create looks the object up once more before posting it, since it may have
// appeared since the first lookup.
func (engine *Engine) create(ctx context.Context, logger logr.Logger, recorder *events.Recorder, resource dynamic.ResourceInterface, ref string, desired *unstructured.Unstructured) Result {
	_, err := engine.get(ctx, resource, desired.GetName())
	if err == nil {
		logger.V(1).Info("service model object appeared concurrently, skipping create")
		return Result{Outcome: OutcomeAlreadyExists}
	}
	if !apierrors.IsNotFound(err) {
		logger.Error(err, "failed to re-check service model object before create")
		return Result{Outcome: OutcomeCreateFailed, Cause: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, engine.requestTimeout)
	defer cancel()
	created, err := resource.Create(callCtx, desired, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		logger.V(1).Info("service model object created concurrently")
		return Result{Outcome: OutcomeAlreadyExists}
	}
	if err != nil {
		logger.Error(err, "failed to create service model object")
		return Result{Outcome: OutcomeCreateFailed, Cause: err}
	}
	logger.V(1).Info("created service model object")
	recorder.Created(created, ref)
	return Result{Outcome: OutcomeCreated}
}

func (engine *Engine) get(ctx context.Context, resource dynamic.ResourceInterface, name string) (*unstructured.Unstructured, error) {
	callCtx, cancel := context.WithTimeout(ctx, engine.requestTimeout)
	defer cancel()
	return resource.Get(callCtx, name, metav1.GetOptions{})
}

// specsEqual compares the specs of both objects without their
// server-assigned identity fields. Neither object is modified.
func specsEqual(desired, stored *unstructured.Unstructured) bool {
	return equality.Semantic.DeepEqual(comparableSpec(desired), comparableSpec(stored))
}

func comparableSpec(object *unstructured.Unstructured) interface{} {
	trimmed := object.DeepCopy()
	for _, path := range identityPaths {
		unstructured.RemoveNestedField(trimmed.Object, path...)
	}
	spec, _, _ := unstructured.NestedFieldNoCopy(trimmed.Object, "spec")
	return spec
}
