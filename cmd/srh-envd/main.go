// srh-envd serves the built-in environments over the WebSocket step
// protocol so recordings can run against environments hosted out of
// process. Clients select the environment with the `env` query parameter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tiger/sim-replay-harness/internal/sim"
	"github.com/tiger/sim-replay-harness/internal/sim/registry"
	"github.com/tiger/sim-replay-harness/internal/sim/remote"
)

// registryFactory adapts the registry to the transport's construction hook.
func registryFactory(reg *registry.Registry) remote.EnvFactory {
	return func(key string, frameskip int, repeatActionProbability float64) (sim.Environment, error) {
		_, env, err := reg.Make(key, registry.Options{
			Frameskip:               frameskip,
			RepeatActionProbability: repeatActionProbability,
		})
		return env, err
	}
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "srh-envd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("srh-envd", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", ":8089", "listen address")
	catalog := fs.String("catalog", "", "optional YAML catalog of additional environments")
	if err := fs.Parse(args); err != nil {
		return err
	}

	reg := registry.Builtin()
	if *catalog != "" {
		if err := reg.LoadCatalog(*catalog); err != nil {
			return fmt.Errorf("load environment catalog: %w", err)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/env", remote.NewHandler(registryFactory(reg)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", *addr, err)
	}
	fmt.Fprintf(stdout, "srh-envd: serving %d environments on %s\n", len(reg.Keys()), ln.Addr())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(stderr, "srh-envd: ", log.LstdFlags),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	fmt.Fprintln(stdout, "srh-envd: stopped")
	return nil
}
