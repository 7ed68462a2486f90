// Package bootstrap wires the pieces every binary needs: environment, config,
// logger, backing clients and a signal-aware run loop.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/angelmondragon/vendorledger/pkg/bigquery"
	"github.com/angelmondragon/vendorledger/pkg/config"
	"github.com/angelmondragon/vendorledger/pkg/db"
	"github.com/angelmondragon/vendorledger/pkg/logger"
	"github.com/angelmondragon/vendorledger/pkg/migrate"
	"github.com/angelmondragon/vendorledger/pkg/pubsub"
	"github.com/angelmondragon/vendorledger/pkg/redis"
)

// Process owns the config, logger and open clients of one binary. Clients
// opened through it are closed in reverse order by Close.
type Process struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger

	closers  []closer
	exit     func(int)
	registry *prometheus.Registry
}

type closer struct {
	name  string
	close func() error
}

// Start loads .env (when present) and the environment config. A config error
// terminates the process.
func Start(name string) *Process {
	p := &Process{
		Name:   name,
		Logger: logger.New(logger.Options{ServiceName: name}),
		exit:   os.Exit,
	}
	if err := godotenv.Load(); err != nil {
		p.Logger.Debug(context.Background(), "no .env file, using process environment")
	}

	cfg, err := config.Load()
	p.Must("config", err)
	cfg.Service.Kind = name

	p.Config = cfg
	p.Logger = logger.New(logger.Options{
		ServiceName: name,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})
	return p
}

// Must stops the process when a required resource failed to come up.
func (p *Process) Must(resource string, err error) {
	if err == nil {
		return
	}
	ctx := p.Logger.WithField(context.Background(), "resource", resource)
	p.Logger.Error(ctx, "bootstrap.failed", err)
	if closeErr := p.Close(); closeErr != nil {
		p.Logger.Error(ctx, "bootstrap.close_failed", closeErr)
	}
	p.exit(1)
}

// OnClose registers fn to run during Close.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, close: fn})
}

// Close releases every registered client, newest first, and reports all
// failures together.
func (p *Process) Close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	p.closers = nil
	return errs
}

// Database opens postgres (or sqlite) and applies embedded migrations when
// dev auto-migrate is enabled.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	p.Must("database", err)
	p.OnClose("database", client.Close)
	p.Must("dev migrations", migrate.MaybeRunDev(ctx, p.Config, p.Logger, client))
	return client
}

func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	p.Must("redis", err)
	p.OnClose("redis", client.Close)
	return client
}

func (p *Process) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	p.Must("pubsub", err)
	p.OnClose("pubsub", client.Close)
	return client
}

func (p *Process) BigQuery(ctx context.Context) *bigquery.Client {
	client, err := bigquery.NewClient(ctx, p.Config.GCP, p.Config.BigQuery, p.Logger)
	p.Must("bigquery", err)
	p.OnClose("bigquery", client.Close)
	return client
}

// Metrics returns the process registry, created on first use with the Go
// runtime and process collectors.
func (p *Process) Metrics() *prometheus.Registry {
	if p.registry == nil {
		p.registry = prometheus.NewRegistry()
		p.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return p.registry
}

// ServeMetrics exposes the registry on VENDORLEDGER_METRICS_PORT for binaries
// that have no HTTP surface of their own and returns the bound address. It
// does nothing when the port is unset.
func (p *Process) ServeMetrics() string {
	port := p.Config.App.MetricsPort
	if port == "" {
		return ""
	}
	listener, err := net.Listen("tcp", ":"+port)
	p.Must("metrics listener", err)
	if err != nil {
		return ""
	}

	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Metrics(), promhttp.HandlerOpts{}))
	server := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.Logger.Error(context.Background(), "metrics.serve_failed", err)
		}
	}()
	p.OnClose("metrics server", server.Close)
	addr := listener.Addr().String()
	p.Logger.Info(p.Logger.WithField(context.Background(), "addr", addr), "metrics.listening")
	return addr
}

// Run executes fn until it returns or the process receives SIGINT/SIGTERM,
// then closes every client. Cancellation counts as a clean stop.
func (p *Process) Run(fn func(context.Context) error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":      p.Config.App.Env,
		"service":  p.Name,
		"instance": InstanceID(),
	})

	p.Logger.Info(ctx, p.Name+".starting")
	runErr := fn(ctx)
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		runErr = nil
	}
	if err := p.Close(); err != nil {
		p.Logger.Error(ctx, p.Name+".close_failed", err)
	}
	if runErr != nil {
		p.Logger.Error(ctx, p.Name+".stopped", runErr)
		p.exit(1)
		return
	}
	p.Logger.Info(ctx, p.Name+".stopped")
}

// InstanceID names the running replica: DYNO on Heroku, WORKER_ID when set,
// otherwise the hostname.
func InstanceID() string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
