// Package processor is the catalog pipeline hook that mirrors entities into
// the service model store.
package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/api/equality"

	"catalogmirror/pkg/connection"
	"catalogmirror/pkg/core"
	"catalogmirror/pkg/filter"
	"catalogmirror/pkg/reconcile"
)

// Decision is what the processor did with one entity.
type Decision string

const (
	DecisionDisabled    Decision = "disabled"
	DecisionUnreachable Decision = "unreachable"
	DecisionSkippedKind Decision = "skipped_kind"
	DecisionFiltered    Decision = "filtered"
	DecisionCached      Decision = "cached"
	DecisionReconciled  Decision = "reconciled"
	DecisionFailed      Decision = "failed"
)

// DefaultSkipKinds are never mirrored.
var DefaultSkipKinds = []string{"Location", "API"}

// Report describes the handling of one entity.
type Report struct {
	EntityRef string
	Decision  Decision
	// Outcome is empty unless a reconciliation ran.
	Outcome reconcile.Outcome
	Err     error
}

// Reporter receives a Report for every processed entity.
type Reporter interface {
	Record(report Report)
}

// Metrics receives processor measurements.
type Metrics interface {
	ObserveDecision(decision string)
	ObserveReconcile(outcome string, duration time.Duration)
}

// Connector gates access to the service model store.
type Connector interface {
	Reachable() bool
	EnsureConnected(ctx context.Context) bool
	Session() (*connection.Session, error)
	Invalidate(cause error)
}

// Reconciler mirrors a single entity.
type Reconciler interface {
	Reconcile(ctx context.Context, session *connection.Session, entity *core.Entity) (reconcile.Result, error)
}

// Emit passes additional output to the catalog pipeline. The processor
// emits nothing.
type Emit func(output interface{})

// Config holds the processor settings.
type Config struct {
	Enabled   bool
	Filter    filter.Filter
	SkipKinds []string
}

// Options carries optional collaborators.
type Options struct {
	Logger   logr.Logger
	Metrics  Metrics
	Reporter Reporter
}

// Processor mirrors catalog entities after processing. It is safe for
// concurrent use.
type Processor struct {
	enabled    bool
	filter     filter.Filter
	skipKinds  []string
	connector  Connector
	reconciler Reconciler
	logger     logr.Logger
	metrics    Metrics
	reporter   Reporter
}

// BuildFilter ORs the configured allow clauses. At least one clause is required.
func BuildFilter(allow []string) (filter.Filter, error) {
	if len(allow) == 0 {
		return nil, &core.ConfigurationError{Field: "allow", Reason: "at least one filter is required"}
	}
	anyOf, err := filter.AnyOfMultipleFilters(allow)
	if err != nil {
		return nil, err
	}
	return anyOf, nil
}

// New constructs a Processor. A missing filter is a ConfigurationError.
func New(config Config, connector Connector, reconciler Reconciler, opts Options) (*Processor, error) {
	if config.Filter == nil {
		return nil, &core.ConfigurationError{Field: "allow", Reason: "no filter configured"}
	}
	if connector == nil || reconciler == nil {
		return nil, fmt.Errorf("processor requires a connector and a reconciler")
	}
	skipKinds := config.SkipKinds
	if skipKinds == nil {
		skipKinds = DefaultSkipKinds
	}
	return &Processor{
		enabled:    config.Enabled,
		filter:     config.Filter,
		skipKinds:  append([]string(nil), skipKinds...),
		connector:  connector,
		reconciler: reconciler,
		logger:     opts.Logger.WithName("processor"),
		metrics:    opts.Metrics,
		reporter:   opts.Reporter,
	}, nil
}

// PostProcessEntity mirrors entity when it qualifies and always returns it
// unchanged. Failures are logged and never returned.
func (processor *Processor) PostProcessEntity(ctx context.Context, entity core.Entity, _ core.LocationSpec, _ Emit, cache Cache) (result core.Entity) {
	result = entity
	report := Report{EntityRef: entity.Ref()}
	logger := processor.logger.WithValues("entity", report.EntityRef)

	defer func() {
		if recovered := recover(); recovered != nil {
			report.Decision = DecisionFailed
			report.Err = fmt.Errorf("panic: %v", recovered)
			logger.Error(report.Err, "mirroring entity panicked")
			result = entity
		}
		processor.record(logger, report)
	}()

	processor.process(ctx, logger, &entity, cache, &report)
	return entity
}

func (processor *Processor) process(ctx context.Context, logger logr.Logger, entity *core.Entity, cache Cache, report *Report) {
	if !processor.enabled {
		report.Decision = DecisionDisabled
		return
	}
	if !processor.connector.Reachable() {
		reachable := processor.connector.EnsureConnected(ctx)
		logger.V(1).Info("service model store not reachable, passing entity through", "reconnected", reachable)
		report.Decision = DecisionUnreachable
		return
	}
	if processor.skipKind(entity.Kind) {
		report.Decision = DecisionSkippedKind
		return
	}
	if !filter.Match(entity, processor.filter) {
		logger.V(2).Info("entity filtered out")
		report.Decision = DecisionFiltered
		return
	}

	// The cache and the store only ever see JSON-compatible values.
	normalized, err := entity.Normalized()
	if err != nil {
		logger.Error(err, "entity cannot be mirrored")
		report.Decision = DecisionFailed
		report.Err = err
		return
	}
	entity = normalized

	if processor.cached(ctx, logger, entity, cache) {
		logger.V(2).Info("entity unchanged since last mirror")
		report.Decision = DecisionCached
	} else {
		processor.reconcile(ctx, logger, entity, report)
	}

	// The snapshot is stored whatever the reconciliation outcome; a failed
	// entity is retried once it changes again.
	if cache != nil {
		if err := cache.Set(ctx, report.EntityRef, entity.DeepCopy()); err != nil {
			logger.Error(err, "failed to cache entity snapshot")
		}
	}
}

func (processor *Processor) cached(ctx context.Context, logger logr.Logger, entity *core.Entity, cache Cache) bool {
	if cache == nil {
		return false
	}
	previous, found, err := cache.Get(ctx, entity.Ref())
	if err != nil {
		logger.V(1).Info("entity cache lookup failed", "error", err.Error())
		return false
	}
	return found && equality.Semantic.DeepEqual(previous, entity)
}

func (processor *Processor) reconcile(ctx context.Context, logger logr.Logger, entity *core.Entity, report *Report) {
	session, err := processor.connector.Session()
	if err != nil {
		report.Decision = DecisionFailed
		report.Err = err
		logger.V(1).Info("connection dropped before reconciling", "error", err.Error())
		return
	}

	started := time.Now()
	result, err := processor.reconciler.Reconcile(ctx, session, entity)
	report.Outcome = result.Outcome
	if processor.metrics != nil {
		processor.metrics.ObserveReconcile(string(result.Outcome), time.Since(started))
	}

	cause := err
	if cause == nil {
		cause = result.Cause
	}
	if core.ClassifyError(cause) == core.ErrorCategoryUnavailable {
		processor.connector.Invalidate(cause)
	}

	switch {
	case err != nil:
		logger.Error(err, "failed to mirror entity")
		report.Decision = DecisionFailed
		report.Err = err
	case !result.Outcome.Success():
		report.Decision = DecisionFailed
		report.Err = result.Cause
	default:
		report.Decision = DecisionReconciled
	}
}

// Selects reports whether entity is of a mirrored kind and passes the filter.
func (processor *Processor) Selects(entity *core.Entity) bool {
	return !processor.skipKind(entity.Kind) && filter.Match(entity, processor.filter)
}

func (processor *Processor) skipKind(kind string) bool {
	for _, skipped := range processor.skipKinds {
		if strings.EqualFold(skipped, kind) {
			return true
		}
	}
	return false
}

func (processor *Processor) record(logger logr.Logger, report Report) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error(fmt.Errorf("panic: %v", recovered), "recording entity report panicked")
		}
	}()
	if processor.metrics != nil {
		processor.metrics.ObserveDecision(string(report.Decision))
	}
	if processor.reporter != nil {
		processor.reporter.Record(report)
	}
}
