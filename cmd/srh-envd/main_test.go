package main

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tiger/sim-replay-harness/internal/sim/registry"
	"github.com/tiger/sim-replay-harness/internal/sim/remote"
)

func TestRegistryFactoryServesGridworld(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(remote.NewHandler(registryFactory(registry.Builtin())))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?env=gridworld"

	env, err := remote.Dial(wsURL, remote.Options{Frameskip: 1})
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	defer env.Close()

	if env.ActionCount() != 5 {
		t.Fatalf("expected gridworld action count 5, got %d", env.ActionCount())
	}
	obs, err := env.Reset(42)
	if err != nil {
		t.Fatalf("unexpected reset error: %v", err)
	}
	if len(obs.Data) == 0 {
		t.Fatal("expected non-empty initial observation")
	}
	if _, err := env.Step(1); err != nil {
		t.Fatalf("unexpected step error: %v", err)
	}
}

func TestRegistryFactoryRejectsUnknownEnv(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(remote.NewHandler(registryFactory(registry.Builtin())))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?env=no-such-env"

	if _, err := remote.Dial(wsURL, remote.Options{}); err == nil {
		t.Fatal("expected dial to fail for unknown environment")
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	if err := run([]string{"-no-such-flag"}, &bytes.Buffer{}, &stderr); err == nil {
		t.Fatal("expected flag parse error")
	}
}

func TestRunRejectsMissingCatalog(t *testing.T) {
	t.Parallel()

	err := run([]string{"-catalog", "/no/such/catalog.yaml"}, &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected missing catalog to fail startup")
	}
	if !strings.Contains(err.Error(), "catalog") {
		t.Fatalf("expected catalog error, got %v", err)
	}
}
