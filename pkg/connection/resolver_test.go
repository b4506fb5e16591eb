package connection

import (
	"context"
	"errors"
	"testing"

	"k8s.io/client-go/rest"

	"catalogmirror/pkg/core"
)

func TestInClusterResolver(t *testing.T) {
	resolver := InClusterResolver{load: func() (*rest.Config, error) {
		return &rest.Config{Host: "https://10.0.0.1:443", BearerToken: "sa-token"}, nil
	}}
	conn, err := resolver.Resolve(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conn.Namespace != InClusterNamespace || conn.Server != "https://10.0.0.1:443" {
		t.Fatalf("unexpected connection %+v", conn)
	}
	config := conn.RESTConfig()
	if config == conn.Config || config.BearerToken != "sa-token" {
		t.Fatalf("expected a copy of the in-cluster config, got %+v", config)
	}
}

func TestInClusterResolverError(t *testing.T) {
	resolver := InClusterResolver{load: func() (*rest.Config, error) { return nil, rest.ErrNotInCluster }}
	_, err := resolver.Resolve(context.Background())
	var connErr *core.ConnectionError
	if !errors.As(err, &connErr) || !errors.Is(err, rest.ErrNotInCluster) {
		t.Fatalf("expected wrapped not-in-cluster error, got %v", err)
	}
}
