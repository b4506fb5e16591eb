package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"catalogmirror/pkg/adapters/kubeconfig"
)

func newKubeconfigCommand(root *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "kubeconfig",
		Short: "Write a kubeconfig for the configured service model store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Mirror.RequestTimeout)
			defer cancel()

			conn, err := newResolver(cfg.Mirror, logger).Resolve(ctx)
			if err != nil {
				return err
			}
			clusterName := kubeconfig.ClusterName(cfg.Mirror.GrafanaEndpoint)
			if cfg.Mirror.InCluster {
				clusterName = kubeconfig.ClusterName(conn.Server)
			}
			if err := kubeconfig.WriteFile(kubeconfig.Build(conn, clusterName), output); err != nil {
				return fmt.Errorf("write kubeconfig: %w", err)
			}
			logger.Info("kubeconfig written", "path", output, "namespace", conn.Namespace)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "kubeconfig.yaml", "Where to write the kubeconfig.")
	return cmd
}
