// Package kubeconfig renders a kubeconfig for a resolved service model store
// connection.
package kubeconfig

import (
	"net/url"

	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"

	"catalogmirror/pkg/connection"
)

// AuthName names both the user and the context written to the kubeconfig.
const AuthName = "auth"

// ClusterName derives a cluster name from the Grafana endpoint, falling back
// to the endpoint itself when it is not a URL.
func ClusterName(endpoint string) string {
	parsed, err := url.Parse(endpoint)
	if err != nil || parsed.Host == "" {
		return endpoint
	}
	return parsed.Host
}

// Build returns a kubeconfig with a single cluster, user and current context.
func Build(conn connection.Connection, clusterName string) clientcmdapi.Config {
	config := clientcmdapi.NewConfig()
	config.Clusters[clusterName] = &clientcmdapi.Cluster{
		Server:                   conn.Server,
		CertificateAuthorityData: append([]byte(nil), conn.CAData...),
	}
	config.AuthInfos[AuthName] = &clientcmdapi.AuthInfo{Token: conn.Token}
	config.Contexts[AuthName] = &clientcmdapi.Context{
		Cluster:   clusterName,
		AuthInfo:  AuthName,
		Namespace: conn.Namespace,
	}
	config.CurrentContext = AuthName
	return *config
}

// WriteFile writes config to path as YAML.
func WriteFile(config clientcmdapi.Config, path string) error {
	return clientcmd.WriteToFile(config, path)
}
