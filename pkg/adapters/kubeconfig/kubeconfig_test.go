package kubeconfig

import (
	"path/filepath"
	"testing"

	"k8s.io/client-go/tools/clientcmd"

	"catalogmirror/pkg/connection"
)

func TestBuildAndWrite(t *testing.T) {
	conn := connection.Connection{
		Server:    "https://stack.example",
		CAData:    []byte("ca"),
		Token:     "secret",
		Namespace: "stacks-12",
	}
	config := Build(conn, ClusterName("https://grafana.com/"))

	if config.CurrentContext != AuthName {
		t.Fatalf("expected current context %q, got %q", AuthName, config.CurrentContext)
	}
	cluster := config.Clusters["grafana.com"]
	if cluster == nil || cluster.Server != conn.Server || string(cluster.CertificateAuthorityData) != "ca" {
		t.Fatalf("unexpected cluster %+v", cluster)
	}
	if ctx := config.Contexts[AuthName]; ctx.Namespace != "stacks-12" || ctx.Cluster != "grafana.com" {
		t.Fatalf("unexpected context %+v", ctx)
	}

	path := filepath.Join(t.TempDir(), "kubeconfig.yaml")
	if err := WriteFile(config, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loaded, err := clientcmd.LoadFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded.AuthInfos[AuthName].Token != "secret" {
		t.Fatalf("expected token to round trip")
	}

	restConfig, err := clientcmd.NewDefaultClientConfig(*loaded, nil).ClientConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restConfig.Host != conn.Server || restConfig.BearerToken != "secret" {
		t.Fatalf("unexpected rest config %+v", restConfig)
	}
}

func TestClusterNameFallsBack(t *testing.T) {
	if got := ClusterName("not a url"); got != "not a url" {
		t.Fatalf("expected fallback, got %q", got)
	}
}
