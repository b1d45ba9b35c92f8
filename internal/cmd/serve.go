package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose a health check and the Prometheus metrics registry over HTTP",
	Long: `Runs a minimal HTTP front end alongside the CLI: GET /health for a
liveness probe and GET /metrics for the certguard_* Prometheus metrics the
Run Orchestrator, Fleet Sync, and the shared retry helper record during
normal CLI invocations. certguard's core work always happens via "run" and
"fleet sync"; "serve" only exposes the observability surface those
commands already populate, it does not itself drive any pipeline.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "port to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	router := mux.NewRouter()
	router.HandleFunc("/health", handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	})
	router.Use(corsHandler.Handler)

	srv := &http.Server{Addr: ":" + servePort, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("certguard serve: listening on :%s (/health, /metrics)\n", servePort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-sigCh:
	}

	fmt.Println("certguard serve: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "certguard"})
}
