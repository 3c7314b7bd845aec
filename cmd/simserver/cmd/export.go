package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dsimlab/distsim/internal/config"
	"github.com/dsimlab/distsim/internal/corelog"
	"github.com/dsimlab/distsim/packages/session"
	"github.com/dsimlab/distsim/packages/transport/inproc"
	"github.com/dsimlab/distsim/packages/transport/port"
)

const exportPollInterval = 50 * time.Millisecond

var (
	exportConfigPath string
	exportFormat     string
	exportOutPath    string
	exportTimeout    time.Duration
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run a simulation headlessly to completion and export its events and metrics",
	Run: func(cmd *cobra.Command, args []string) {
		if exportConfigPath == "" {
			logrus.Fatal("--config is required")
		}

		cfg, err := config.Load(exportConfigPath)
		if err != nil {
			logrus.Fatalf("loading config: %v", err)
		}

		stdLogger := corelog.NewStdLogger("session", false, parsedLogLevel())
		registry := session.NewDefaultRegistry()
		controller := session.New(registry, func() port.MessagingPort { return inproc.New() }, stdLogger)

		sid, err := controller.LoadConfig(cfg)
		if err != nil {
			logrus.Fatalf("loading session: %v", err)
		}
		if err := controller.StartSimulation(sid, cfg.DefaultParameters); err != nil {
			logrus.Fatalf("starting simulation: %v", err)
		}

		deadline := time.Now().Add(exportTimeout)
		for time.Now().Before(deadline) {
			snap, err := controller.GetMetrics(sid)
			if err != nil {
				logrus.Fatalf("reading metrics: %v", err)
			}
			if snap.Converged {
				break
			}
			time.Sleep(exportPollInterval)
		}

		if err := controller.StopSimulation(sid); err != nil {
			logrus.Fatalf("stopping simulation: %v", err)
		}

		data, err := controller.ExportRunData(sid, exportFormat)
		if err != nil {
			logrus.Fatalf("exporting run data: %v", err)
		}

		if exportOutPath == "" || exportOutPath == "-" {
			os.Stdout.Write(data)
			return
		}
		if err := os.WriteFile(exportOutPath, data, 0o644); err != nil {
			logrus.Fatalf("writing output: %v", err)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportConfigPath, "config", "", "SimulationConfig YAML file to run (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Export format: json or csv")
	exportCmd.Flags().StringVar(&exportOutPath, "out", "-", "Output file path, or - for stdout")
	exportCmd.Flags().DurationVar(&exportTimeout, "timeout", 30*time.Second, "Maximum wall-clock time to wait for convergence before stopping")
}
