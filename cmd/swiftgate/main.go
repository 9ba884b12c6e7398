package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/swiftgate/swiftgate/internal/config"
	"github.com/swiftgate/swiftgate/internal/server"
)

var (
	version = "v0.1.0"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   "swiftgate",
		Short: "SwiftGate - S3 Multi-Object Delete gateway for Swift",
		Long: `SwiftGate translates S3 Multi-Object Delete requests into
per-object deletes against OpenStack Swift or an upstream S3 store.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		RunE:          runServer,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add configuration flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringP("listen", "l", ":8080", "Listen address")
	rootCmd.PersistentFlags().StringP("log-level", "", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("log-format", "", "json", "Log format (json, text)")
	rootCmd.PersistentFlags().BoolP("enable-tls", "", false, "Enable TLS")
	rootCmd.PersistentFlags().StringP("cert-file", "", "", "TLS certificate file")
	rootCmd.PersistentFlags().StringP("key-file", "", "", "TLS key file")
	rootCmd.PersistentFlags().StringP("backend", "b", "swift", "Storage backend (swift, s3, memory)")
	rootCmd.PersistentFlags().StringP("swift-endpoint", "", "", "Swift proxy endpoint, e.g. http://127.0.0.1:8080")

	return rootCmd
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logging
	setupLogging(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logrus.Info("Received shutdown signal")
		cancel()
	}()

	return serve(ctx, cfg)
}

// serve runs the server until ctx is cancelled
func serve(ctx context.Context, cfg *config.Config) error {
	logrus.WithFields(logrus.Fields{
		"version": version,
		"commit":  commit,
		"date":    date,
		"backend": cfg.Storage.Backend,
	}).Info("Starting SwiftGate")

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	logrus.Info("SwiftGate stopped")
	return nil
}

func setupLogging(level, format string) {
	switch format {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		logrus.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	}

	switch level {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}
