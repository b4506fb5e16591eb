package main

import (
	"github.com/go-logr/logr"

	"catalogmirror/pkg/adapters/metrics"
	"catalogmirror/pkg/config"
	"catalogmirror/pkg/connection"
	"catalogmirror/pkg/core"
	"catalogmirror/pkg/processor"
	"catalogmirror/pkg/reconcile"
)

// mirror is the long-lived part of the processor stack, shared across passes.
type mirror struct {
	config  *config.Config
	logger  logr.Logger
	machine *connection.Machine
	engine  *reconcile.Engine
	metrics *metrics.Recorder
}

func newResolver(cfg config.MirrorConfig, logger logr.Logger) connection.Resolver {
	if cfg.InCluster {
		return connection.InClusterResolver{}
	}
	return &connection.GrafanaCloudResolver{
		Endpoint:  cfg.GrafanaEndpoint,
		StackSlug: cfg.StackSlug,
		Token:     cfg.Token,
		Backoff:   core.DefaultBackoff(),
		Logger:    logger.WithName("grafanacloud"),
	}
}

func newMirror(cfg *config.Config, logger logr.Logger, recorder *metrics.Recorder) *mirror {
	machine := connection.NewMachine(
		newResolver(cfg.Mirror, logger),
		connection.NewClientFactory(cfg.Mirror.RecordEvents, cfg.Mirror.RequestTimeout),
		connection.Options{
			Cooldown:       cfg.Mirror.ReconnectCooldown,
			ConnectTimeout: cfg.Mirror.RequestTimeout,
			Logger:         logger,
			Observer:       recorder,
		},
	)
	return &mirror{
		config:  cfg,
		logger:  logger,
		machine: machine,
		engine:  reconcile.NewEngine(logger, cfg.Mirror.RequestTimeout),
		metrics: recorder,
	}
}

// processor builds a processor reporting to reporter. Processors are cheap;
// the connection and engine are shared.
func (m *mirror) processor(reporter processor.Reporter) (*processor.Processor, error) {
	allow, err := processor.BuildFilter(m.config.Mirror.Allow)
	if err != nil {
		return nil, err
	}
	return processor.New(processor.Config{
		Enabled:   m.config.Mirror.Enable,
		Filter:    allow,
		SkipKinds: m.config.Mirror.SkipKinds,
	}, m.machine, m.engine, processor.Options{
		Logger:   m.logger,
		Metrics:  m.metrics,
		Reporter: reporter,
	})
}

// ready reports whether the mirror can do useful work.
func (m *mirror) ready() bool {
	return !m.config.Mirror.Enable || m.machine.Reachable()
}
