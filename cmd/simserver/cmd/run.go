package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dsimlab/distsim/internal/config"
	"github.com/dsimlab/distsim/internal/corelog"
	"github.com/dsimlab/distsim/internal/metricsexport"
	"github.com/dsimlab/distsim/internal/wsapi/handlers"
	"github.com/dsimlab/distsim/packages/core/id"
	"github.com/dsimlab/distsim/packages/engine"
	"github.com/dsimlab/distsim/packages/session"
	"github.com/dsimlab/distsim/packages/transport/inproc"
	"github.com/dsimlab/distsim/packages/transport/port"
)

var (
	runAddr       string
	runConfigPath string
	runJSONLogs   bool
	runMetrics    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the simulation WebSocket server",
	Run: func(cmd *cobra.Command, args []string) {
		registry := session.NewDefaultRegistry()
		newPort := func() port.MessagingPort { return inproc.New() }

		var controller *session.Controller
		if runJSONLogs {
			structured := corelog.NewStdLogger("session", true, parsedLogLevel())
			controller = session.New(registry, newPort, nil, session.WithStructuredLogging(structured))
		} else {
			controller = session.New(registry, newPort, nil)
		}

		var preloaded id.SessionId
		if runConfigPath != "" {
			cfg, err := config.Load(runConfigPath)
			if err != nil {
				logrus.Fatalf("loading config %s: %v", runConfigPath, err)
			}
			sid, err := controller.LoadConfig(cfg)
			if err != nil {
				logrus.Fatalf("preloading config: %v", err)
			}
			preloaded = sid
			logrus.Infof("preloaded session %s from %s", preloaded.Value(), runConfigPath)
		}

		wsServer := handlers.NewServer(controller)

		mux := http.NewServeMux()
		mux.Handle("/ws", wsServer)
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{"status": "healthy"})
		})

		if runMetrics {
			reg := prometheus.NewRegistry()
			if preloaded != "" {
				sid := preloaded
				reg.MustRegister(metricsexport.NewCollector(func() (engine.Snapshot, error) {
					return controller.GetMetrics(sid)
				}))
			}
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		}

		server := &http.Server{
			Addr:         runAddr,
			Handler:      corsMiddleware(mux),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			logrus.Infof("listening on %s (ws: ws://%s/ws)", runAddr, runAddr)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.Fatalf("server error: %v", err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		logrus.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logrus.Fatalf("forced shutdown: %v", err)
		}
	},
}

func init() {
	runCmd.Flags().StringVar(&runAddr, "addr", ":8080", "Listen address")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Optional SimulationConfig YAML file to preload as a session on startup")
	runCmd.Flags().BoolVar(&runJSONLogs, "json-logs", false, "Emit structured JSON logs instead of plain text")
	runCmd.Flags().BoolVar(&runMetrics, "metrics", false, "Expose a Prometheus /metrics endpoint for the preloaded session")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
