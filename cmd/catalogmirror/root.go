package main

import (
	"flag"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"catalogmirror/pkg/config"
)

var setupLog = ctrl.Log.WithName("setup")

type rootOptions struct {
	configPath string
	zap        zap.Options
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "catalogmirror",
		Short: "Mirror software catalog entities into the Grafana service model",
		Long: `catalogmirror drives catalog entities through the mirroring processor,
creating or updating one servicemodel.ext.grafana.com object per entity.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the app-config YAML file.")
	goFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	opts.zap.BindFlags(goFlags)
	cmd.PersistentFlags().AddGoFlagSet(goFlags)

	cmd.AddCommand(newRunCommand(opts), newKubeconfigCommand(opts))
	return cmd
}

// load reads and validates configuration and installs the logger.
func (opts *rootOptions) load() (*config.Config, logr.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, logr.Discard(), fmt.Errorf("load configuration: %w", err)
	}
	logger := opts.logger(cfg.Log)
	ctrl.SetLogger(logger)
	if err := config.Validate(cfg); err != nil {
		return nil, logger, err
	}
	return cfg, logger, nil
}

// logger builds the zap logger. Command-line zap flags win over the
// configuration file.
func (opts *rootOptions) logger(logConfig config.LogConfig) logr.Logger {
	zapOpts := opts.zap
	if zapOpts.Level == nil {
		zapOpts.Level = levelFor(logConfig.Level)
	}
	if logConfig.Development {
		zapOpts.Development = true
	}
	return zap.New(zap.UseFlagOptions(&zapOpts))
}

// levelFor maps a configured level onto zap. Debug enables V(2) output.
func levelFor(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.Level(-2)
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
