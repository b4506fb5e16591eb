package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/util/wait"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
	"sigs.k8s.io/yaml"

	"catalogmirror/pkg/adapters/cache"
	"catalogmirror/pkg/adapters/metrics"
	"catalogmirror/pkg/agents/summary"
	"catalogmirror/pkg/catalog"
	"catalogmirror/pkg/core"
	"catalogmirror/pkg/mapper"
	"catalogmirror/pkg/processor"
)

type runOptions struct {
	workers         int
	interval        time.Duration
	metricsAddress  string
	dryRun          bool
	dryRunVersion   string
	dryRunNamespace string
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run PATH...",
		Short: "Mirror the entities found in catalog descriptor files",
		Long: `Loads catalog entity descriptors from files and directories and passes every
entity through the mirroring processor, printing a summary of what happened.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			entities, err := catalog.LoadPaths(args)
			if err != nil {
				return err
			}
			m := newMirror(cfg, logger, metrics.NewRecorder(nil))
			if opts.dryRun {
				return printMapped(cmd.OutOrStdout(), m, entities, opts.dryRunNamespace, opts.dryRunVersion)
			}
			return opts.run(ctrl.SetupSignalHandler(), cmd.OutOrStdout(), m, entities)
		},
	}
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "Number of entities processed concurrently.")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Reprocess all entities at this interval; 0 runs a single pass.")
	cmd.Flags().StringVar(&opts.metricsAddress, "metrics-bind-address", "", "The address the metrics and health endpoints bind to; empty disables them.")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print the service model objects that would be written and exit.")
	cmd.Flags().StringVar(&opts.dryRunVersion, "dry-run-version", "v1alpha1", "API version used for objects printed by --dry-run.")
	cmd.Flags().StringVar(&opts.dryRunNamespace, "dry-run-namespace", "default", "Namespace used for objects printed by --dry-run.")
	return cmd
}

func (opts *runOptions) run(ctx context.Context, out io.Writer, m *mirror, entities []core.Entity) error {
	if opts.metricsAddress != "" {
		server := newMetricsServer(opts.metricsAddress, m)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				setupLog.Error(err, "metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	entityCache := cache.NewMemory(m.config.Cache.Size, m.config.Cache.TTL)
	if m.config.Mirror.Enable {
		// Entities arriving while disconnected only trigger a connection
		// attempt, so connect before the first pass.
		m.machine.EnsureConnected(ctx)
	}

	var passErr error
	pass := func(ctx context.Context) {
		if err := opts.pass(ctx, out, m, entityCache, entities); err != nil {
			passErr = err
		}
	}
	if opts.interval <= 0 {
		pass(ctx)
		return passErr
	}
	wait.UntilWithContext(ctx, pass, opts.interval)
	return passErr
}

// pass pushes every entity through a fresh processor once and prints the summary.
func (opts *runOptions) pass(ctx context.Context, out io.Writer, m *mirror, entityCache processor.Cache, entities []core.Entity) error {
	report := summary.New()
	proc, err := m.processor(report)
	if err != nil {
		return err
	}

	queue := core.NewWorkQueue[string, core.Entity]()
	for _, entity := range entities {
		queue.Add(entity.Ref(), entity)
	}
	location := core.LocationSpec{Type: "file", Target: "catalogmirror"}

	workers := opts.workers
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, entity, ok := queue.Get()
				if !ok || ctx.Err() != nil {
					return
				}
				proc.PostProcessEntity(ctx, entity, location, nil, entityCache)
			}
		}()
	}
	wg.Wait()
	return report.Write(out)
}

func newMetricsServer(address string, m *mirror) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(ctrlmetrics.Registry, promhttp.HandlerOpts{}))
	handleChecks(mux, "/healthz", map[string]healthz.Checker{"ping": healthz.Ping})
	handleChecks(mux, "/readyz", map[string]healthz.Checker{
		"remote": func(*http.Request) error {
			if !m.ready() {
				return errors.New("service model store not reachable")
			}
			return nil
		},
	})
	return &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}

func handleChecks(mux *http.ServeMux, prefix string, checks map[string]healthz.Checker) {
	handler := http.StripPrefix(prefix, &healthz.Handler{Checks: checks})
	mux.Handle(prefix, handler)
	mux.Handle(prefix+"/", handler)
}

// printMapped writes the objects selected entities would be mirrored as.
func printMapped(out io.Writer, m *mirror, entities []core.Entity, namespace, version string) error {
	proc, err := m.processor(nil)
	if err != nil {
		return err
	}
	for i := range entities {
		entity := &entities[i]
		if !proc.Selects(entity) {
			continue
		}
		object, err := mapper.ToRemoteObject(entity, namespace, version)
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(object.Object)
		if err != nil {
			return fmt.Errorf("render %s: %w", entity.Ref(), err)
		}
		if _, err := fmt.Fprintf(out, "---\n%s", data); err != nil {
			return err
		}
	}
	return nil
}
