package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zapcore"

	"catalogmirror/pkg/adapters/cache"
	"catalogmirror/pkg/adapters/metrics"
	"catalogmirror/pkg/config"
	"catalogmirror/pkg/connection"
	"catalogmirror/pkg/core"
)

func testConfig(enabled bool) *config.Config {
	return &config.Config{
		Mirror: config.MirrorConfig{
			Enable:            enabled,
			Allow:             []string{"kind=Component"},
			StackSlug:         "mystack",
			GrafanaEndpoint:   "https://grafana.invalid",
			Token:             "token",
			SkipKinds:         []string{"Location", "API"},
			ReconnectCooldown: time.Second,
			RequestTimeout:    time.Second,
		},
		Log:   config.LogConfig{Level: "info"},
		Cache: config.CacheConfig{Size: 16, TTL: time.Hour},
	}
}

func testEntities() []core.Entity {
	return []core.Entity{
		{Kind: "Component", Metadata: core.EntityMeta{Name: "svc"}, Spec: map[string]interface{}{"owner": "group:default/team-a"}},
		{Kind: "Location", Metadata: core.EntityMeta{Name: "root"}},
		{Kind: "Component", Metadata: core.EntityMeta{Name: "svc"}},
	}
}

func TestLevelFor(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.Level(-2),
		"info":  zapcore.InfoLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
	}
	for level, want := range cases {
		if got := levelFor(level); got != want {
			t.Fatalf("levelFor(%q) = %v, want %v", level, got, want)
		}
	}
}

func TestNewResolver(t *testing.T) {
	cfg := testConfig(true)
	if _, ok := newResolver(cfg.Mirror, logr.Discard()).(*connection.GrafanaCloudResolver); !ok {
		t.Fatalf("expected the Grafana Cloud resolver")
	}
	cfg.Mirror.InCluster = true
	if _, ok := newResolver(cfg.Mirror, logr.Discard()).(connection.InClusterResolver); !ok {
		t.Fatalf("expected the in-cluster resolver")
	}
}

func TestPassWhenDisabled(t *testing.T) {
	m := newMirror(testConfig(false), logr.Discard(), metrics.NewRecorder(prometheus.NewRegistry()))
	var out bytes.Buffer
	opts := &runOptions{workers: 2}
	if err := opts.pass(context.Background(), &out, m, cache.NewMemory(4, time.Minute), testEntities()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	report := out.String()
	if !strings.Contains(report, "processed 2 entities") || !strings.Contains(report, "disabled") {
		t.Fatalf("unexpected report:\n%s", report)
	}
	if !m.ready() {
		t.Fatalf("expected a disabled mirror to be ready")
	}
}

func TestPrintMapped(t *testing.T) {
	m := newMirror(testConfig(true), logr.Discard(), nil)
	var out bytes.Buffer
	if err := printMapped(&out, m, testEntities(), "stacks-1", "v1alpha1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rendered := out.String()
	if strings.Count(rendered, "---\n") != 2 {
		t.Fatalf("expected two selected components, got:\n%s", rendered)
	}
	for _, want := range []string{
		"apiVersion: servicemodel.ext.grafana.com/v1alpha1",
		"namespace: stacks-1",
		"servicemodel.ext.grafana.com/owner: group..default__team-a",
	} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("expected %q in:\n%s", want, rendered)
		}
	}
	if strings.Contains(rendered, "kind: Location") {
		t.Fatalf("expected Location to be skipped")
	}
}

func TestHealthEndpoints(t *testing.T) {
	m := newMirror(testConfig(true), logr.Discard(), nil)
	handler := newMetricsServer(":0", m).Handler

	cases := map[string]int{
		"/healthz":       http.StatusOK,
		"/healthz/ping":  http.StatusOK,
		"/readyz":        http.StatusInternalServerError,
		"/readyz/remote": http.StatusInternalServerError,
		"/metrics":       http.StatusOK,
	}
	for path, want := range cases {
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
		if recorder.Code != want {
			t.Fatalf("GET %s = %d, want %d", path, recorder.Code, want)
		}
	}
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	names := map[string]bool{}
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	if !names["run"] || !names["kubeconfig"] {
		t.Fatalf("expected run and kubeconfig subcommands, got %v", names)
	}
	if root.PersistentFlags().Lookup("zap-log-level") == nil {
		t.Fatalf("expected zap flags to be bound")
	}
}
