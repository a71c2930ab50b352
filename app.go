package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/kwv/coordenv/coordenv"
	"github.com/kwv/coordenv/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App encapsulates the application state and dependencies
type App struct {
	Config     *service.Config
	Finder     *coordenv.LocalGeometryFinder
	Worker     *service.Worker
	MQTTClient *service.MQTTClient
	Publisher  *service.Publisher
	Registry   *prometheus.Registry

	// CLI Flags (effectively dependencies)
	ConfigFile string
	InputFile  string
	Symbols    []string
	Budget     time.Duration
	Workers    int
	JSON       bool
	CN         int
	HttpPort   int
}

// NewApp creates a new App instance
func NewApp() *App {
	return &App{}
}

// ApplyOptions applies CLI options to the App instance
func (a *App) ApplyOptions(opts AppOptions) {
	a.ConfigFile = opts.ConfigFile
	a.InputFile = opts.InputFile
	a.Symbols = opts.Symbols
	a.Budget = opts.Budget
	a.Workers = opts.Workers
	a.JSON = opts.JSON
	a.CN = opts.CN
	a.HttpPort = opts.HttpPort
}

// loadConfig reads the config file, if any, and applies flag overrides.
func (a *App) loadConfig() error {
	config := service.DefaultConfig()
	if a.ConfigFile != "" {
		loaded, err := service.LoadConfig(a.ConfigFile)
		if err != nil {
			return err
		}
		config = loaded
		log.Printf("Loaded config from %s", a.ConfigFile)
	}
	if a.Budget > 0 {
		config.Batch.Budget = a.Budget
	}
	if a.Workers > 0 {
		config.Batch.Workers = a.Workers
	}
	if a.HttpPort > 0 {
		config.HTTP.Port = a.HttpPort
	}
	a.Config = config
	return nil
}

func (a *App) newFinder() error {
	catalog, err := coordenv.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("loading geometry catalog: %w", err)
	}
	a.Finder = coordenv.NewLocalGeometryFinder(catalog, a.Config.Finder)
	return nil
}

// RunMatch matches every site of the input file and prints the rankings.
func (a *App) RunMatch(out io.Writer) error {
	if err := a.loadConfig(); err != nil {
		return err
	}
	if err := a.newFinder(); err != nil {
		return err
	}

	data, err := os.ReadFile(a.InputFile)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}
	queries, err := service.DecodeQueries(data)
	if err != nil {
		return fmt.Errorf("%s: %w", a.InputFile, err)
	}
	if len(a.Symbols) > 0 {
		for i := range queries {
			if len(queries[i].Symbols) == 0 {
				queries[i].Symbols = a.Symbols
			}
		}
	}

	a.Worker = service.NewWorker(a.Finder, a.Config.Batch, nil, nil)
	results, err := a.Worker.Run(context.Background(), queries)
	if err != nil {
		return err
	}

	if a.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printResults(out, results)
	return nil
}

// printResults writes one ranked table per site.
func printResults(out io.Writer, results []service.SiteResult) {
	for _, res := range results {
		fmt.Fprintf(out, "=== %s ===\n", res.ID)
		switch {
		case res.Skipped:
			fmt.Fprintln(out, "skipped (time budget exhausted)")
			fmt.Fprintln(out)
			continue
		case res.Error != "":
			fmt.Fprintf(out, "ERROR: %s\n\n", res.Error)
			continue
		}
		if res.Representative != "" {
			fmt.Fprintf(out, "same as %s\n", res.Representative)
		}

		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SUBSET\tSOURCE\tSYMBOL\tCSM\tALGORITHM\tPERMUTATION")
		for _, env := range res.Environments {
			subset := joinInts(env.Indices)
			for _, m := range env.Ranking {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%s\t%s\n",
					subset, env.Source, m.Symbol, m.CSM, m.Algorithm, joinInts(m.Permutation))
			}
		}
		tw.Flush()
		fmt.Fprintln(out)
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// RunCatalog lists the reference geometries, optionally for one coordination number.
func (a *App) RunCatalog(out io.Writer) error {
	catalog, err := coordenv.DefaultCatalog()
	if err != nil {
		return err
	}

	geoms := catalog.Geometries()
	if a.CN > 0 {
		geoms = catalog.ByCoordination(a.CN)
		if len(geoms) == 0 {
			return fmt.Errorf("no geometries with coordination %d (have %v)", a.CN, catalog.CoordinationNumbers())
		}
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tCN\tNAME\tALGORITHMS\tHINTS")
	for _, g := range geoms {
		algos := make([]string, len(g.Algorithms))
		for i, alg := range g.Algorithms {
			algos[i] = string(alg.Type())
		}
		hints := make([]string, len(g.Hints))
		for i, h := range g.Hints {
			hints[i] = string(h.Type)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\n",
			g.Symbol, g.Coordination, g.Name, strings.Join(algos, ","), strings.Join(hints, ","))
	}
	return tw.Flush()
}

// RunService starts the MQTT worker and the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) RunService(out io.Writer) error {
	fmt.Fprintln(out, "Starting coordenv service...")

	if err := a.loadConfig(); err != nil {
		return err
	}
	if err := a.newFinder(); err != nil {
		return err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := service.NewMetrics(a.Registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Worker = service.NewWorker(a.Finder, a.Config.Batch, metrics, nil)
	a.MQTTClient = service.InitMQTT(a.Config.MQTT, a.Worker.Handler(ctx))
	if a.MQTTClient != nil {
		a.Publisher = service.NewPublisher(a.MQTTClient.Client(), a.MQTTClient.Config().PublishPrefix)
		a.Worker.SetPublisher(a.Publisher)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", a.Config.HTTP.Port),
		Handler:           newHTTPServer(a.Worker, a.Registry),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Printf("[HTTP] Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	fmt.Fprintln(out, "\nService Running")
	fmt.Fprintln(out, "===============")
	if a.MQTTClient != nil {
		cfg := a.MQTTClient.Config()
		fmt.Fprintln(out, "\nMQTT:")
		fmt.Fprintf(out, "  Subscribed: %s\n", cfg.QueryTopic)
		fmt.Fprintf(out, "  Results:    %s/results/{siteID}\n", cfg.PublishPrefix)
		fmt.Fprintf(out, "  Status:     %s/status\n", cfg.PublishPrefix)
	}
	fmt.Fprintf(out, "\nHTTP endpoints (port %d):\n", a.Config.HTTP.Port)
	fmt.Fprintln(out, "  GET  /health         - Health check")
	fmt.Fprintln(out, "  GET  /catalog?cn=N   - Reference geometries")
	fmt.Fprintln(out, "  POST /match          - Match one site query or an array")
	fmt.Fprintln(out, "  GET  /metrics        - Prometheus metrics")
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serverErr:
		log.Printf("[HTTP] Server error: %v", runErr)
	}

	fmt.Fprintln(out, "\nShutting down service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[HTTP] shutdown: %v", err)
	}
	if a.MQTTClient != nil {
		a.MQTTClient.Disconnect()
	}
	fmt.Fprintln(out, "Service stopped")
	return runErr
}
