package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/freekieb7/httpsrvdev/cli"
	"github.com/freekieb7/httpsrvdev/http"
	"github.com/freekieb7/httpsrvdev/static"
	"github.com/freekieb7/httpsrvdev/telemetry"
)

func main() {
	if err := run(context.Background(), os.Args, os.Stdin, os.Stdout, os.Stderr); err != nil {
		log.Fatalln(err)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	name := filepath.Base(args[0])

	opts, err := cli.Parse(name, args[1:])
	if err != nil {
		fmt.Fprint(stderr, cli.Usage(name))
		return err
	}
	if opts.Help {
		fmt.Fprint(stdout, cli.Usage(name))
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	export := opts.Otel || telemetry.EnabledFromEnv()
	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     export,
		ServiceName: name,
		Verbose:     opts.Verbose,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Error("telemetry shutdown error", "error", err)
		}
	}()

	logger := telemetry.NewLogger(stderr, telemetry.ScopeName, opts.Verbose, export)
	slog.SetDefault(logger)

	var stdinData []byte
	if slices.Contains(opts.Sources, static.StdinSource) {
		if stdinData, err = static.ReadStdin(stdin); err != nil {
			return err
		}
	}

	reg := telemetry.NewRegistry()
	metrics, err := telemetry.NewMetrics(reg)
	if err != nil {
		return err
	}

	srv, err := static.Start(static.StartConfig{
		HTTP: http.Config{
			Address: opts.Address,
			Port:    opts.Port,
			Logger:  logger,
		},
		Site: static.Config{
			Sources:         opts.Sources,
			DefaultMimeType: opts.DefaultType,
			Stdin:           stdinData,
			StdinMimeType:   opts.StdinType,
			Logger:          logger,
		},
		Middleware: []http.Middleware{telemetry.Middleware(metrics)},
	})
	if err != nil {
		return err
	}
	logger.Info("listening", "url", "http://"+srv.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})

	if opts.MetricsAddr != "" {
		mux := nethttp.NewServeMux()
		mux.Handle("/metrics", telemetry.MetricsHandler(reg))
		metricsServer := &nethttp.Server{
			Addr:              opts.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("serving metrics", "url", "http://"+opts.MetricsAddr+"/metrics")
			if err := metricsServer.ListenAndServe(); !errors.Is(err, nethttp.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info("stopped")
	return err
}
