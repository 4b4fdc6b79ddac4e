package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/erhlee-bird/vector/config"
	"github.com/erhlee-bird/vector/graphs"
	"github.com/erhlee-bird/vector/telemetry"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	// Register the built-in components via their init() functions.
	_ "github.com/erhlee-bird/vector/components"
)

const (
	serviceName       = "vector"
	serviceVersion    = "v0.1.0"
	defaultConfigPath = "/etc/vector/vector.yaml"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "vector [config.yaml...]",
		Short:         "Collect, transform and route logs and metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	run := runCmd()
	root.RunE = run.RunE
	root.Args = cobra.ArbitraryArgs
	root.Flags().AddFlagSet(run.Flags())

	root.AddCommand(run)
	root.AddCommand(validateCmd())
	root.AddCommand(graphCmd())
	root.AddCommand(listCmd())
	return root
}

// configPaths applies the precedence CONFIG_PATH > arguments > default.
func configPaths(args []string) []string {
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return strings.Split(env, ",")
	}
	if len(args) > 0 {
		return args
	}
	return []string{defaultConfigPath}
}

func loadConfig(args []string) (*config.Config, error) {
	cfg, err := config.LoadFromPaths(configPaths(args))
	if err != nil {
		var errs config.Errors
		if errors.As(err, &errs) {
			for _, msg := range errs {
				slog.Error("config: invalid configuration", "error", msg)
			}
			return nil, fmt.Errorf("configuration has %d error(s)", len(errs))
		}
		return nil, err
	}
	return cfg, nil
}

func runCmd() *cobra.Command {
	var (
		requireHealthy bool
		metricsAddress string
	)
	cmd := &cobra.Command{
		Use:   "run [config.yaml...]",
		Short: "Run the topology described by the configuration",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			shutdown, err := setupLogging(ctx)
			if err != nil {
				return err
			}
			defer shutdown()

			slog.Info("Starting vector", "version", serviceVersion)
			cfg, err := loadConfig(args)
			if err != nil {
				return err
			}
			if metricsAddress != "" {
				serveMetrics(ctx, metricsAddress)
			}

			graph, err := graphs.NewGraph(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to build topology: %w", err)
			}
			if err := graph.Healthcheck(ctx, requireHealthy); err != nil {
				graph.Stop()
				return err
			}
			err = graph.Run()
			slog.Info("Shutting down")
			return err
		},
	}
	cmd.Flags().BoolVar(&requireHealthy, "require-healthy", false, "exit when a sink healthcheck fails")
	cmd.Flags().StringVar(&metricsAddress, "metrics-address", "", "serve prometheus metrics on this address")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [config.yaml...]",
		Short: "Check a configuration without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %d source(s), %d transform(s), %d sink(s)\n",
				cfg.Sources.Len(), cfg.Transforms.Len(), cfg.Sinks.Len())
			return nil
		},
	}
}

func graphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph [config.yaml...]",
		Short: "Print the topology in the graphviz DOT language",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(args)
			if err != nil {
				return err
			}
			dot, err := graphs.Dot(cfg)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), dot)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available component types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, category := range []config.Category{config.CategorySource, config.CategoryTransform, config.CategorySink} {
				fmt.Fprintf(out, "%ss:\n", category)
				for _, tag := range config.Types(category) {
					fmt.Fprintf(out, "  %s\n", tag)
				}
			}
			return nil
		},
	}
}

// setupLogging exports logs over OTLP when OTEL_EXPORTER_OTLP_ENDPOINT is
// set. The returned function flushes the exporter.
func setupLogging(ctx context.Context) (func(), error) {
	logURL := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if logURL == "" {
		return func() {}, nil
	}
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(serviceVersion),
	)
	logExporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpoint(logURL),
		otlploghttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize exporter: %w", err)
	}
	lp := log.NewLoggerProvider(
		log.WithProcessor(log.NewBatchProcessor(logExporter)),
		log.WithResource(res),
	)
	slog.SetDefault(otelslog.NewLogger(serviceName, otelslog.WithLoggerProvider(lp)))
	return func() {
		if err := lp.Shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "failed to shutdown logger provider: %v\n", err)
		}
	}, nil
}

func serveMetrics(ctx context.Context, address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			slog.Error("metrics server: shutdown failed", "error", err)
		}
	}()
}
