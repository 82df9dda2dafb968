package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nao1215/linkspider/internal/config"
	"github.com/nao1215/linkspider/internal/crawler"
	"github.com/nao1215/linkspider/internal/database"
	seclog "github.com/nao1215/linkspider/internal/log"
	"github.com/nao1215/linkspider/internal/metrics"
	"github.com/nao1215/linkspider/internal/model"
	"github.com/nao1215/linkspider/internal/report"
	"github.com/nao1215/linkspider/internal/sink"
	"github.com/nao1215/linkspider/internal/transport"
)

// errInvalidHeader is returned for a --header value without "Name: Value" form.
var errInvalidHeader = errors.New(`invalid header: expected "Name: Value"`)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl [seed-url...]",
		Short: "Crawl the web starting from seed URLs",
		Long: `Crawl fetches the seed URLs, extracts every absolute link and follows it.

A URL is fetched at most once per crawl. At most --concurrency fetches run
at the same time, and the crawl stops when the queue is empty and no fetch
is in flight. A line is printed for every fetch:

  Fetched <url> with <n> links
  Failed to fetch <url>: <cause>

Failed fetches are not retried and never stop the crawl. Press Ctrl+C to
stop dispatching; running fetches finish and a partial report is printed.

Examples:
  # Crawl from a single seed with 10 concurrent fetches
  linkspider crawl https://example.com/

  # Crawl with 32 concurrent fetches and a Markdown report
  linkspider crawl -n 32 --markdown -o report.md https://example.com/

  # Crawl through a SOCKS5 proxy
  linkspider crawl --proxy 127.0.0.1:9050 https://example.com/

  # Crawl through an embedded Tor daemon
  linkspider crawl --tor http://exampleonion.onion/

  # Keep history and stream records to Kafka
  linkspider crawl --record --kafka-brokers localhost:9092 https://example.com/`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl behavior
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of fetches in flight")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Extra request header "Name: Value" (repeatable)`)
	cmd.Flags().String("cookie", "",
		"Cookie header sent with every request")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum number of response body bytes read per page")

	// Network
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (host:port)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and crawl through it")
	cmd.Flags().Duration("tor-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .linkspider in current or home directory)")

	// History and metrics
	cmd.Flags().Bool("record", false,
		"Store the crawl in the local history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address (e.g. :9090)")

	// Sinks
	cmd.Flags().StringSlice("kafka-brokers", nil,
		"Kafka brokers that receive fetch records")
	cmd.Flags().String("kafka-topic", config.DefaultKafkaTopic,
		"Kafka topic for fetch records")
	cmd.Flags().String("redis-addr", "",
		"Redis address that receives fetch records")
	cmd.Flags().Int("redis-db", 0,
		"Redis database number")
	cmd.Flags().String("redis-key", config.DefaultRedisKey,
		"Redis list that fetch records are pushed onto")
	cmd.Flags().String("neo4j-uri", "",
		"Neo4j URI that receives the link graph")
	cmd.Flags().String("neo4j-user", "",
		"Neo4j username")
	cmd.Flags().String("neo4j-database", config.DefaultNeo4jDatabase,
		"Neo4j database name")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().Bool("log-json", false,
		"Write logs as JSON")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
}

// getVerboseFlag reads the persistent verbose flag.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig layers defaults, the configuration file and explicitly set
// flags, in that order. Positional arguments replace the file's seeds.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	if path := config.FindConfigFile(cfg.ConfigFilePath); path != "" {
		file, err := config.LoadConfigFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		file.ApplyTo(cfg)
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if len(args) > 0 {
		cfg.Seeds = args
	}

	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("header") {
		values, err := flags.GetStringArray("header")
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			name, value, err := parseHeader(v)
			if err != nil {
				return nil, err
			}
			cfg.Headers[name] = value
		}
	}
	if flags.Changed("cookie") {
		if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}

	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-timeout"); err != nil {
		return nil, err
	}
	if cfg.Record, err = flags.GetBool("record"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.MetricsAddr, err = flags.GetString("metrics-addr"); err != nil {
		return nil, err
	}

	if err := applySinkFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = flags.GetBool("log-json"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// applySinkFlags overrides sink settings with explicitly set flags.
// Passwords come from the configuration file only.
func applySinkFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("kafka-brokers") {
		if cfg.Kafka.Brokers, err = flags.GetStringSlice("kafka-brokers"); err != nil {
			return err
		}
	}
	if flags.Changed("kafka-topic") {
		if cfg.Kafka.Topic, err = flags.GetString("kafka-topic"); err != nil {
			return err
		}
	}
	if flags.Changed("redis-addr") {
		if cfg.Redis.Addr, err = flags.GetString("redis-addr"); err != nil {
			return err
		}
	}
	if flags.Changed("redis-db") {
		if cfg.Redis.DB, err = flags.GetInt("redis-db"); err != nil {
			return err
		}
	}
	if flags.Changed("redis-key") {
		if cfg.Redis.Key, err = flags.GetString("redis-key"); err != nil {
			return err
		}
	}
	if flags.Changed("neo4j-uri") {
		if cfg.Neo4j.URI, err = flags.GetString("neo4j-uri"); err != nil {
			return err
		}
	}
	if flags.Changed("neo4j-user") {
		if cfg.Neo4j.Username, err = flags.GetString("neo4j-user"); err != nil {
			return err
		}
	}
	if flags.Changed("neo4j-database") {
		if cfg.Neo4j.Database, err = flags.GetString("neo4j-database"); err != nil {
			return err
		}
	}
	return nil
}

// parseHeader splits "Name: Value".
func parseHeader(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("%w: %q", errInvalidHeader, s)
	}
	return name, strings.TrimSpace(value), nil
}

// newLogger returns the secure slog logger selected by cfg.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return seclog.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return seclog.NewSecureLogger(w, cfg.Verbose)
}

// runCrawl runs one crawl session and writes its report.
func runCrawl(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer, logger *slog.Logger) error {
	client, stopTor, err := newFetchClient(ctx, cfg, stdout, logger)
	if err != nil {
		return err
	}
	defer stopTor()

	sessionID := uuid.NewString()
	logger.Info("starting crawl session",
		"session", sessionID,
		"seeds", cfg.Seeds,
		"concurrency", cfg.Concurrency,
		"record", cfg.Record,
	)

	sinks, db, err := openSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error("failed to close sinks", "error", err)
		}
	}()

	if db != nil {
		if err := db.StartSession(ctx, sessionID, cfg.Seeds, cfg.Concurrency, time.Now()); err != nil {
			return fmt.Errorf("failed to record session: %w", err)
		}
	}

	var collector *metrics.Collector
	if cfg.MetricsAddr != "" {
		collector = metrics.NewCollector(prometheus.NewRegistry())
		shutdown := serveMetrics(cfg.MetricsAddr, collector, logger)
		defer shutdown()
	}

	opts := []crawler.Option{
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithLogger(logger),
		crawler.WithOutput(stdout, stderr),
		crawler.WithSessionID(sessionID),
		crawler.WithMetrics(collector),
	}
	if len(sinks) > 0 {
		opts = append(opts, crawler.WithRecorder(sinks))
	}

	summary, runErr := crawler.NewScheduler(client, opts...).Run(ctx, cfg.Seeds...)
	if summary == nil {
		return runErr
	}

	if db != nil {
		if err := db.FinishSession(context.WithoutCancel(ctx), summary); err != nil {
			logger.Error("failed to finish session", "session", sessionID, "error", err)
		}
	}

	if err := outputReport(cfg, summary, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("crawl interrupted: %w", runErr)
	}
	return nil
}

// newFetchClient builds the HTTP client, routed through a proxy or an
// embedded Tor daemon when configured. The returned func stops the daemon.
func newFetchClient(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) (*transport.Client, func(), error) {
	opts := []transport.Option{
		transport.WithTimeout(cfg.Timeout),
		transport.WithUserAgent(cfg.UserAgent),
		transport.WithHeaders(cfg.Headers),
		transport.WithCookie(cfg.Cookie),
		transport.WithMaxBodySize(cfg.MaxBodySize),
	}

	if cfg.UseTor {
		return startEmbeddedTor(ctx, cfg, opts, stdout, logger)
	}

	if cfg.ProxyAddress != "" {
		if status := transport.CheckProxy(ctx, cfg.ProxyAddress); status != transport.ProxyStatusOK {
			return nil, nil, fmt.Errorf("proxy check failed for %s: %w", cfg.ProxyAddress, status.Err())
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		opts = append(opts, transport.WithProxy(cfg.ProxyAddress))
	}

	client, err := transport.NewClient(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}
	return client, func() {}, nil
}

// startEmbeddedTor starts a Tor daemon and returns a client routed through it.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, opts []transport.Option, stdout io.Writer, logger *slog.Logger) (*transport.Client, func(), error) {
	fmt.Fprintln(stdout, "Starting embedded Tor daemon...")
	fmt.Fprintf(stdout, "This may take 1-3 minutes while Tor bootstraps and connects to the network.\n\n")

	tor := transport.NewEmbeddedTor(transport.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := tor.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}

	stop := func() {
		logger.Info("stopping embedded Tor daemon")
		if err := tor.Stop(); err != nil {
			logger.Error("failed to stop embedded Tor", "error", err)
		}
	}

	logger.Info("embedded Tor daemon started",
		"socksAddr", tor.SocksAddr(),
		"controlAddr", tor.ControlAddr(),
	)
	fmt.Fprintf(stdout, "SOCKS proxy: %s\n\n", tor.SocksAddr())

	if status := transport.CheckProxy(ctx, tor.SocksAddr()); status != transport.ProxyStatusOK {
		stop()
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
	}

	client, err := tor.NewClient(opts...)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	return client, stop, nil
}

// openSinks creates every enabled sink. The history database is returned
// separately as well, since the session rows are written around the crawl.
func openSinks(cfg *config.Config, logger *slog.Logger) (sink.Multi, *database.CrawlDB, error) {
	var (
		sinks sink.Multi
		db    *database.CrawlDB
	)

	fail := func(err error) (sink.Multi, *database.CrawlDB, error) {
		if cerr := sinks.Close(); cerr != nil {
			logger.Error("failed to close sinks", "error", cerr)
		}
		return nil, nil, err
	}

	if cfg.Record {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fail(fmt.Errorf("failed to open database: %w", err))
		}
		sinks = append(sinks, db)
		logger.Info("history database opened", "path", db.Path())
	}

	if cfg.Kafka.Enabled() {
		sinks = append(sinks, sink.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		logger.Info("kafka sink enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	if cfg.Redis.Enabled() {
		sinks = append(sinks, sink.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Key))
		logger.Info("redis sink enabled", "addr", cfg.Redis.Addr, "key", cfg.Redis.Key)
	}

	if cfg.Neo4j.Enabled() {
		graph, err := sink.NewNeo4j(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
		if err != nil {
			return fail(fmt.Errorf("failed to create neo4j sink: %w", err))
		}
		sinks = append(sinks, graph)
		logger.Info("neo4j sink enabled", "uri", cfg.Neo4j.URI, "database", cfg.Neo4j.Database)
	}

	return sinks, db, nil
}

// serveMetrics exposes collector on addr/metrics and returns a shutdown func.
func serveMetrics(addr string, collector *metrics.Collector, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("failed to stop metrics server", "error", err)
		}
	}
}

// reportFormat maps the report flags to a writer format.
func reportFormat(cfg *config.Config) report.Format {
	switch {
	case cfg.JSONReport:
		return report.FormatJSON
	case cfg.MarkdownReport:
		return report.FormatMarkdown
	default:
		return report.FormatText
	}
}

// outputReport writes the crawl report to cfg.ReportFile, or to stdout.
func outputReport(cfg *config.Config, summary *model.CrawlSummary, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		if dir := filepath.Dir(cfg.ReportFile); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports list every crawled URL, so only the owner may read them.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	if reportFormat(cfg) == report.FormatText {
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	} else {
		w = report.NewWriter(reportFormat(cfg), output, getVersion())
	}
	_, err := w.Write(summary)
	return err
}
