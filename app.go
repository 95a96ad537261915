package portsweep

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/time/rate"
)

// AppVersion represents the application version
const (
	AppVersion = "1.0.0"
)

// Application errors
var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNoTargets     = errors.New("no valid targets found")
	ErrNoPorts       = errors.New("no valid ports specified")
	ErrReportFailed  = errors.New("report generation failed")
)

// App represents the main application with its dependencies
type App struct {
	Config     *Config
	Logger     *zap.Logger
	Metrics    *Metrics
	Scanner    *Scanner
	Expander   *TargetExpander
	MetricsSrv *http.Server

	resolver *ResolverCache
	scanID   string
}

// NewApp creates a new application instance
func NewApp(config *Config, logger *zap.Logger) (*App, error) {
	var resolver *ResolverCache
	if config.EnableCaching {
		var err error
		resolver, err = NewResolverCache(time.Duration(config.CacheTTL)*time.Minute, logger)
		if err != nil {
			return nil, err
		}
	}

	metrics := NewMetrics()
	var scanMetrics *Metrics
	if config.MetricsEnabled {
		scanMetrics = metrics
	}

	return &App{
		Config:   config,
		Logger:   logger,
		Metrics:  metrics,
		Scanner:  NewScanner(config, logger, scanMetrics),
		Expander: NewTargetExpander(logger, resolver),
		resolver: resolver,
		scanID:   uuid.New().String(),
	}, nil
}

// Close releases application resources.
func (a *App) Close() {
	if a.resolver != nil {
		a.resolver.Close()
	}
}

// -------------- Logging Initialization --------------

// SetupLogger configures and initializes the logger
func SetupLogger(config *Config) (*zap.Logger, error) {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}
	timestamp := time.Now().Format("20060102_150405")
	logFile := filepath.Join(config.LogDir, fmt.Sprintf("portsweep_log_%s.log", timestamp))

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig = encoderConfig
	cfg.OutputPaths = []string{logFile}
	cfg.Level = zap.NewAtomicLevelAt(parseLogLevel(config.LogLevel))
	cfg.Development = config.LogLevel == "debug"

	if config.LogLevel != "debug" {
		cfg.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	}

	logger, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	logger = logger.With(
		zap.String("version", AppVersion),
		zap.String("pid", strconv.Itoa(os.Getpid())),
	)

	return logger, nil
}

// parseLogLevel converts a string log level to zapcore.Level
func parseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// -------------- Main --------------

// Run is the entry point for the application
func Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	configPath := flag.String("config", "", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	portsFlag := flag.String("ports", "", `Ports: single (22), comma-separated (22,80), range (1-1024), or "top"`)
	threadsFlag := flag.Int("threads", 0, "Number of concurrent scan workers")
	timeoutFlag := flag.Float64("timeout", 0, "Socket connect timeout in seconds")
	bannerFlag := flag.Int("banner-len", -1, "Bytes to read for banner grabbing (0 disables)")
	jsonFlag := flag.String("json", "", `Write the JSON report to a file, or "-" for stdout`)
	quietFlag := flag.Bool("quiet", false, "Suppress progressive printing and the terminal summary")
	disableCache := flag.Bool("no-cache", false, "Disable resolver caching")
	flag.Parse()

	if *showVersion {
		fmt.Printf("portsweep version %s\n", AppVersion)
		return nil
	}

	var config *Config
	if *configPath != "" {
		var err error
		config, err = LoadConfig(*configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		config = DefaultConfig()
	}

	// Apply command line overrides
	if target := flag.Arg(0); target != "" {
		config.TargetInput = target
	}
	if *portsFlag != "" {
		config.PortsInput = *portsFlag
	}
	if *threadsFlag > 0 {
		config.Threads = *threadsFlag
	}
	if *timeoutFlag > 0 {
		config.TimeoutSeconds = *timeoutFlag
	}
	if *bannerFlag >= 0 {
		config.BannerBytes = *bannerFlag
	}
	if *jsonFlag != "" {
		config.JSONPath = *jsonFlag
	}
	if *quietFlag {
		config.Quiet = true
	}
	if *disableCache {
		config.EnableCaching = false
	}

	if config.TargetInput == "" {
		return fmt.Errorf("%w: target expression is required", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger, err := SetupLogger(config)
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	app, err := NewApp(config, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("portsweep starting",
		zap.String("version", AppVersion),
		zap.String("scan_id", app.scanID),
		zap.String("target_input", config.TargetInput),
		zap.String("ports_input", config.PortsInput),
	)

	if config.MetricsEnabled {
		app.Metrics.Register()
		srv := app.startMetricsServer(config.MetricsPort, config.MetricsTLS)
		app.MetricsSrv = srv
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("Metrics server shutdown error", zap.Error(err))
			}
		}()
	}

	return app.RunScan(ctx)
}

// RunScan expands the configured expressions, executes the scan, and writes
// the reports.
func (a *App) RunScan(ctx context.Context) error {
	targets := a.Expander.Expand(a.Config.TargetInput)
	if len(targets) == 0 {
		fmt.Println("Error: no valid targets found")
		return ErrNoTargets
	}

	ports, skipped := ExpandPorts(a.Config.PortsInput, a.Logger)
	if !a.Config.Quiet {
		for _, token := range skipped {
			fmt.Printf("Warning: invalid port %q, skipping\n", token)
		}
	}
	if len(ports) == 0 {
		fmt.Println("Error: no valid ports specified")
		return ErrNoPorts
	}

	totalScans := len(targets) * len(ports)

	if a.Config.MetricsEnabled {
		a.Metrics.EnumeratedHosts.WithLabelValues(a.Config.TargetInput, a.scanID).Set(float64(len(targets)))
		a.Metrics.ThreadUtilization.WithLabelValues("scan").Set(float64(a.Config.Threads))
	}

	if !a.Config.Quiet {
		fmt.Printf("Targets: %d -> %s\n", len(targets), previewList(targets, 5))
		fmt.Printf("Ports: %d -> %s\n", len(ports), previewPorts(ports, 10))
		fmt.Printf("Total scans: %d, Threads: %d, Timeout: %gs\n",
			totalScans, a.Config.Threads, a.Config.TimeoutSeconds)

		a.Scanner.OnResult = func(out Outcome) {
			if out.Kind != PortOpen {
				return
			}
			if out.Banner != "" {
				fmt.Printf("[OPEN] %s:%d -> %s\n", out.Host, out.Port, out.Banner)
			} else {
				fmt.Printf("[OPEN] %s:%d\n", out.Host, out.Port)
			}
		}
	}

	start := time.Now().UTC()
	outcomes := a.Scanner.Run(ctx, targets, ports)
	end := time.Now().UTC()

	if a.Config.MetricsEnabled {
		a.Metrics.ScanDuration.WithLabelValues("network_scan", a.scanID).Observe(end.Sub(start).Seconds())
		a.Metrics.OperationStatus.WithLabelValues("scan", "success").Inc()
	}

	report := BuildReport(outcomes, RunInfo{
		Start:       start,
		End:         end,
		TargetInput: a.Config.TargetInput,
		PortsInput:  a.Config.PortsInput,
		TargetCount: len(targets),
		PortsCount:  len(ports),
		Threads:     a.Config.Threads,
		Timeout:     a.Config.TimeoutSeconds,
		BannerGrab:  a.Config.BannerGrab(),
	})

	if err := a.writeReports(report); err != nil {
		a.Logger.Error("Report generation failed", zap.Error(err))
		if a.Config.MetricsEnabled {
			a.Metrics.OperationStatus.WithLabelValues("report", "failure").Inc()
		}
		return fmt.Errorf("%w: %v", ErrReportFailed, err)
	}
	if a.Config.MetricsEnabled {
		a.Metrics.OperationStatus.WithLabelValues("report", "success").Inc()
	}

	if a.Config.ConsoleReport && !a.Config.Quiet {
		PrintConsoleReport(report)
	}

	a.Logger.Info("portsweep completed",
		zap.Float64("duration_seconds", report.DurationSeconds),
		zap.Int("open_ports", report.Summary.OpenPortsFound),
	)
	return nil
}

// writeReports writes the JSON report requested on the command line plus
// every configured report format under the report directory.
func (a *App) writeReports(report *Report) error {
	if a.Config.JSONPath != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON report: %w", err)
		}
		if a.Config.JSONPath == "-" {
			fmt.Println(string(data))
		} else {
			if err := os.WriteFile(a.Config.JSONPath, data, 0644); err != nil {
				return fmt.Errorf("failed to write JSON report: %w", err)
			}
			fmt.Printf("[+] Full JSON report saved -> %s\n", a.Config.JSONPath)
		}
	}

	if len(a.Config.ReportFormats) == 0 {
		return nil
	}

	if err := os.MkdirAll(a.Config.ReportDir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	for _, format := range a.Config.ReportFormats {
		var reportFilePath string
		var err error

		switch strings.ToLower(format) {
		case "json":
			reportFilePath = filepath.Join(a.Config.ReportDir, fmt.Sprintf("portsweep_report_%s.json", timestamp))
			err = WriteJSONReport(report, reportFilePath)
		case "csv":
			reportFilePath = filepath.Join(a.Config.ReportDir, fmt.Sprintf("portsweep_report_%s.csv", timestamp))
			err = WriteCSVReport(report, reportFilePath)
		case "pdf":
			reportFilePath = filepath.Join(a.Config.ReportDir, fmt.Sprintf("portsweep_report_%s.pdf", timestamp))
			err = WritePDFReport(report, reportFilePath)
		default:
			a.Logger.Warn("Unsupported report format", zap.String("format", format))
			continue
		}

		if err != nil {
			return err
		}
		a.Logger.Info("Report generated",
			zap.String("format", format),
			zap.String("file", reportFilePath),
		)
	}

	return nil
}

// previewList renders the first n entries of a host list for the pre-scan
// echo line.
func previewList(items []string, n int) string {
	if len(items) <= n {
		return "[" + strings.Join(items, ", ") + "]"
	}
	return "[" + strings.Join(items[:n], ", ") + ", ...]"
}

// previewPorts renders the first n ports for the pre-scan echo line.
func previewPorts(ports []int, n int) string {
	shown := ports
	truncated := false
	if len(ports) > n {
		shown = ports[:n]
		truncated = true
	}
	parts := make([]string, len(shown))
	for i, p := range shown {
		parts[i] = strconv.Itoa(p)
	}
	if truncated {
		return "[" + strings.Join(parts, ", ") + ", ...]"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// -------------- Metrics server --------------

// startMetricsServer initializes and starts the metrics HTTP server
func (a *App) startMetricsServer(port string, useTLS bool) *http.Server {
	mux := http.NewServeMux()

	var handler http.Handler = promhttp.Handler()
	if a.Config.MetricsAuth {
		handler = basicAuthMiddleware(handler, a.Config.MetricsUsername, a.Config.MetricsPassword)
	}
	handler = rateLimitMiddleware(handler, rate.NewLimiter(5, 10))
	handler = loggerMiddleware(handler, a.Logger)

	mux.Handle("/metrics", handler)
	mux.HandleFunc("/health", healthCheckHandler)
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "portsweep version %s\n", AppVersion)
	})

	var srv *http.Server

	if useTLS {
		certManager := autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Cache:      autocert.DirCache("certs"),
			HostPolicy: autocert.HostWhitelist(a.Config.MetricsHostname),
		}

		srv = &http.Server{
			Addr:    ":" + port,
			Handler: mux,
			TLSConfig: &tls.Config{
				GetCertificate: certManager.GetCertificate,
				MinVersion:     tls.VersionTLS12,
			},
		}

		go func() {
			a.Logger.Info("Starting TLS metrics server", zap.String("port", port))
			if err := srv.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				a.Logger.Error("Metrics server listen failed", zap.Error(err))
			}
		}()
	} else {
		srv = &http.Server{
			Addr:    ":" + port,
			Handler: mux,
		}

		go func() {
			a.Logger.Info("Starting metrics server", zap.String("port", port))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.Logger.Error("Metrics server listen failed", zap.Error(err))
			}
		}()
	}

	return srv
}

// basicAuthMiddleware adds basic authentication to an HTTP handler
func basicAuthMiddleware(next http.Handler, username, password string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != username || pass != password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Restricted"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware adds rate limiting to an HTTP handler
func rateLimitMiddleware(next http.Handler, limiter *rate.Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggerMiddleware adds request logging to an HTTP handler
func loggerMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{w, http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote_addr", r.RemoteAddr),
			zap.Int("status", rw.statusCode),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// responseWriter is a custom response writer that captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// healthCheckHandler responds to health check requests
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
