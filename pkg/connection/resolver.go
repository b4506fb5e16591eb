// Package connection resolves, probes and tracks the connection to the
// service model store.
package connection

import (
	"context"
	"fmt"

	"k8s.io/client-go/rest"

	"catalogmirror/pkg/core"
)

// InClusterNamespace is the namespace mirrored into when running in-cluster.
const InClusterNamespace = "default"

// Connection holds what is needed to talk to the service model store.
type Connection struct {
	Server    string
	CAData    []byte
	Token     string
	Namespace string

	// Config, when set, is used as the base client configuration instead of
	// one assembled from Server, CAData and Token.
	Config *rest.Config
}

// RESTConfig builds the client configuration for the connection.
func (conn Connection) RESTConfig() *rest.Config {
	if conn.Config != nil {
		return rest.CopyConfig(conn.Config)
	}
	return &rest.Config{
		Host:            conn.Server,
		BearerToken:     conn.Token,
		TLSClientConfig: rest.TLSClientConfig{CAData: append([]byte(nil), conn.CAData...)},
	}
}

// Resolver looks up where the service model store lives and how to
// authenticate against it.
type Resolver interface {
	Resolve(ctx context.Context) (Connection, error)
}

// ResolverFunc adapts a function to a Resolver.
type ResolverFunc func(ctx context.Context) (Connection, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context) (Connection, error) { return f(ctx) }

// InClusterResolver uses the pod service account and mirrors into the
// default namespace.
type InClusterResolver struct {
	// load defaults to rest.InClusterConfig.
	load func() (*rest.Config, error)
}

// Resolve implements Resolver.
func (resolver InClusterResolver) Resolve(context.Context) (Connection, error) {
	load := resolver.load
	if load == nil {
		load = rest.InClusterConfig
	}
	config, err := load()
	if err != nil {
		return Connection{}, &core.ConnectionError{Stage: "load in-cluster config", Err: err}
	}
	return Connection{
		Server:    config.Host,
		CAData:    config.TLSClientConfig.CAData,
		Token:     config.BearerToken,
		Namespace: InClusterNamespace,
		Config:    config,
	}, nil
}

func (conn Connection) String() string {
	return fmt.Sprintf("%s (namespace %s)", conn.Server, conn.Namespace)
}
