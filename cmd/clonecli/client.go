package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/docker/clonekit/clone"
	"github.com/docker/clonekit/ioutils"
	"github.com/docker/clonekit/log"
	"github.com/docker/clonekit/transport/remote"
	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// shutdownSignals interrupt a running client.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

func addClientFlags(flags *pflag.FlagSet) {
	defaults := remote.DefaultEndpoints()
	flags.String("snapshot", defaults.Snapshot, "Snapshot endpoint")
	flags.String("subscribe", defaults.Subscribe, "Subscribe endpoint")
	flags.String("updates", defaults.Updates, "Updates (publish) endpoint")
	flags.Duration("tick", clone.DefaultTickInterval, "Interval between two emitted updates")
	flags.Int("keyspace", clone.DefaultKeySpace, "Emitted keys are drawn from [0, keyspace)")
	flags.Int("bodyspace", clone.DefaultBodySpace, "Emitted bodies are drawn from [0, bodyspace)")
	flags.Bool("expect-loopback", false, "Count emitted updates coming back on the subscribe channel")
	flags.String("metrics-listen", "", "Address to serve Prometheus metrics on, disabled when empty")
	flags.String("summary-file", "", "Write a JSON summary to this file on exit")
}

func parseEndpoints(flags *pflag.FlagSet) (remote.Endpoints, error) {
	var (
		endpoints remote.Endpoints
		err       error
	)
	if endpoints.Snapshot, err = flags.GetString("snapshot"); err != nil {
		return endpoints, err
	}
	if endpoints.Subscribe, err = flags.GetString("subscribe"); err != nil {
		return endpoints, err
	}
	if endpoints.Updates, err = flags.GetString("updates"); err != nil {
		return endpoints, err
	}
	return endpoints, nil
}

func parseConfig(flags *pflag.FlagSet) (clone.Config, error) {
	var (
		config clone.Config
		err    error
	)
	if config.TickInterval, err = flags.GetDuration("tick"); err != nil {
		return config, err
	}
	if config.KeySpace, err = flags.GetInt("keyspace"); err != nil {
		return config, err
	}
	if config.BodySpace, err = flags.GetInt("bodyspace"); err != nil {
		return config, err
	}
	if config.ExpectLoopback, err = flags.GetBool("expect-loopback"); err != nil {
		return config, err
	}
	if config.TickInterval <= 0 {
		return config, errors.Errorf("invalid --tick %v", config.TickInterval)
	}
	if config.KeySpace <= 0 || config.BodySpace <= 0 {
		return config, errors.New("--keyspace and --bodyspace must be positive")
	}
	return config, nil
}

func runClient(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	endpoints, err := parseEndpoints(flags)
	if err != nil {
		return err
	}
	config, err := parseConfig(flags)
	if err != nil {
		return err
	}
	metricsAddr, err := flags.GetString("metrics-listen")
	if err != nil {
		return err
	}
	summaryFile, err := flags.GetString("summary-file")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	if metricsAddr != "" {
		grpc_prometheus.EnableClientHandlingTimeHistogram()
		serveMetrics(ctx, metricsAddr)
	}

	client, err := clone.New(config)
	if err != nil {
		return err
	}
	runErr := client.Run(ctx, remote.NewDialer(endpoints, config.Clock))

	summary := client.Summary()
	out := cmd.OutOrStdout()
	if ctx.Err() != nil {
		fmt.Fprintln(out, " Interrupted")
	}
	fmt.Fprintf(out, "%d messages in\n", summary.Applied)
	fmt.Fprintln(out, summary)

	if summaryFile != "" {
		if err := ioutils.WriteJSONFile(summaryFile, summary, 0o644); err != nil {
			log.G(ctx).WithError(err).Error("failed to write summary")
		}
	}
	return runErr
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		server.Close()
	}()
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.G(ctx).WithError(err).Error("metrics server failed")
		}
	}()
}
