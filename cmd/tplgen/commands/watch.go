package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/tplgen/internal/engine"
	"git.home.luguber.info/inful/tplgen/internal/metrics"
	"git.home.luguber.info/inful/tplgen/internal/processor/gotemplate"
	"git.home.luguber.info/inful/tplgen/internal/watch"
)

// WatchCmd rebuilds whenever templates, includes or the manifest change.
type WatchCmd struct {
	MetricsAddr string `help:"Serve Prometheus metrics on this address (e.g. :9090)" placeholder:"ADDR"`
}

func (w *WatchCmd) Run(global *Global, cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if w.MetricsAddr != "" {
		prom := metrics.NewPrometheusRecorder(nil)
		recorder = prom
		go serveMetrics(ctx, w.MetricsAddr, prom, global.Logger)
	}

	eng := engine.New(gotemplate.New().WithLogger(global.Logger),
		engine.WithLogger(global.Logger),
		engine.WithRecorder(recorder))

	rebuild := func(ctx context.Context) ([]string, error) {
		project, err := loadProject(cli.Project)
		if err != nil {
			return nil, err
		}
		result, err := eng.Build(ctx, project)
		if err != nil {
			return nil, err
		}
		paths := watchPaths(result)
		if result.Failed {
			return paths, errors.New("one or more templates failed")
		}
		return paths, nil
	}

	watcher, err := watch.NewWatcher(cli.Project, rebuild)
	if err != nil {
		return err
	}
	return watcher.WithLogger(global.Logger).Run(ctx)
}

// watchPaths collects every input and dependency the last build touched.
func watchPaths(result *engine.Result) []string {
	var paths []string
	for _, desc := range result.Transformed {
		paths = append(paths, desc.InputPath)
		paths = append(paths, desc.Dependencies...)
	}
	for _, desc := range result.Preprocessed {
		paths = append(paths, desc.InputPath)
		paths = append(paths, desc.Dependencies...)
	}
	return paths
}

func serveMetrics(ctx context.Context, addr string, prom *metrics.PrometheusRecorder, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(prom.Registry()))

	server := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		server.Close()
	}()

	logger.Info("Serving metrics", "addr", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server stopped", "error", err)
	}
}
