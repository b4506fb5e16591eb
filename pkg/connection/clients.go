package connection

import (
	"fmt"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/record"

	"catalogmirror/pkg/adapters/events"
)

// GroupLister is the slice of API discovery the state machine relies on.
type GroupLister interface {
	ServerGroups() (*metav1.APIGroupList, error)
}

// Clients are the API clients built for one resolved connection.
type Clients struct {
	Dynamic   dynamic.Interface
	Discovery GroupLister
	// Events is nil unless event recording was requested.
	Events record.EventRecorder
	// Close releases resources tied to the clients, if any.
	Close func()
}

// ClientFactory builds clients for a resolved connection.
type ClientFactory func(conn Connection) (*Clients, error)

// NewClientFactory returns the factory used outside of tests. Every request
// made by the clients is bounded by timeout when it is positive. When
// recordEvents is set, a Kubernetes event sink is started in the connection
// namespace.
func NewClientFactory(recordEvents bool, timeout time.Duration) ClientFactory {
	return func(conn Connection) (*Clients, error) {
		config := conn.RESTConfig()
		if timeout > 0 {
			config.Timeout = timeout
		}
		dynamicClient, err := dynamic.NewForConfig(config)
		if err != nil {
			return nil, fmt.Errorf("build dynamic client: %w", err)
		}
		discoveryClient, err := discovery.NewDiscoveryClientForConfig(config)
		if err != nil {
			return nil, fmt.Errorf("build discovery client: %w", err)
		}
		clients := &Clients{Dynamic: dynamicClient, Discovery: discoveryClient}
		if !recordEvents {
			return clients, nil
		}
		clientset, err := kubernetes.NewForConfig(config)
		if err != nil {
			return nil, fmt.Errorf("build event client: %w", err)
		}
		clients.Events, clients.Close = events.NewBroadcastRecorder(clientset, conn.Namespace)
		return clients, nil
	}
}
