package portsweep

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	// bannerReadTimeout bounds the banner read after a successful connect.
	// It is intentionally short and decoupled from the connect timeout.
	bannerReadTimeout = 500 * time.Millisecond

	// bannerMaxLen is the maximum length of a sanitized banner.
	bannerMaxLen = 80
)

// OutcomeKind discriminates the result of a single probe.
type OutcomeKind int

const (
	// PortClosed means the connect attempt was refused, filtered, or timed
	// out. Indistinguishable from policy refusal at this layer.
	PortClosed OutcomeKind = iota
	// PortOpen means the TCP connection was established.
	PortOpen
	// ProbeError means the probe failed before a connect verdict, e.g. the
	// host could not be resolved.
	ProbeError
)

// Outcome is the result of probing one (host, port) pair. Banner is only
// ever set when Kind is PortOpen; Err only when Kind is ProbeError.
type Outcome struct {
	Host   string
	Port   int
	Kind   OutcomeKind
	Banner string
	Err    string
}

// task is one (host, port) pair awaiting a probe.
type task struct {
	host string
	port int
}

// Scanner probes an address/port cross-product with bounded concurrency.
type Scanner struct {
	config  *Config
	logger  *zap.Logger
	metrics *Metrics
	sem     *semaphore.Weighted

	// OnResult, when set, is invoked for every collected outcome as it
	// completes. It runs on the collector goroutine, in completion order.
	OnResult func(Outcome)
}

// NewScanner creates a Scanner. The metrics handle may be nil.
func NewScanner(config *Config, logger *zap.Logger, metrics *Metrics) *Scanner {
	return &Scanner{
		config:  config,
		logger:  logger.With(zap.String("component", "scanner")),
		metrics: metrics,
		sem:     semaphore.NewWeighted(int64(config.Threads)),
	}
}

// Run builds the full task set (host-major, port-minor), dispatches it over
// a fixed-size worker pool, and collects outcomes in completion order. A
// task failure never aborts or corrupts any other task; a task whose panic
// escapes the worker is logged and treated as lost.
func (s *Scanner) Run(ctx context.Context, targets []string, ports []int) []Outcome {
	tasks := make([]task, 0, len(targets)*len(ports))
	for _, host := range targets {
		for _, port := range ports {
			tasks = append(tasks, task{host: host, port: port})
		}
	}
	total := len(tasks)

	workers := s.config.Threads
	if workers > total {
		workers = total
	}
	if workers < 1 {
		workers = 1
	}

	s.logger.Info("Starting scan",
		zap.Int("targets", len(targets)),
		zap.Int("ports", len(ports)),
		zap.Int("total_tasks", total),
		zap.Int("threads", workers),
	)

	taskChan := make(chan task, total)
	outChan := make(chan Outcome, total)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range taskChan {
				if err := s.sem.Acquire(ctx, 1); err != nil {
					s.logger.Error("Task dispatch failed",
						zap.String("host", t.host),
						zap.Int("port", t.port),
						zap.Error(err))
					continue
				}
				out, ok := s.runTask(ctx, t)
				s.sem.Release(1)
				if ok {
					outChan <- out
				}
			}
		}()
	}

	for _, t := range tasks {
		taskChan <- t
	}
	close(taskChan)

	go func() {
		wg.Wait()
		close(outChan)
	}()

	outcomes := make([]Outcome, 0, total)
	for out := range outChan {
		s.observe(out)
		if s.OnResult != nil {
			s.OnResult(out)
		}
		outcomes = append(outcomes, out)
	}

	s.logger.Info("Scan completed",
		zap.Int("collected", len(outcomes)),
		zap.Int("lost", total-len(outcomes)),
	)
	return outcomes
}

// runTask isolates one probe. A panic escaping the probe is logged here and
// the task is reported lost instead of taking down the worker.
func (s *Scanner) runTask(ctx context.Context, t task) (out Outcome, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Probe panicked, task lost",
				zap.String("host", t.host),
				zap.Int("port", t.port),
				zap.Any("panic", r))
			ok = false
		}
	}()
	return s.probe(ctx, t.host, t.port), true
}

// probe performs one connect attempt and, for open ports, a best-effort
// banner read. It never blocks longer than the connect timeout plus the
// banner read timeout, and never returns an error as control flow.
func (s *Scanner) probe(ctx context.Context, host string, port int) Outcome {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: s.config.Timeout()}

	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		if isSetupError(err) {
			return Outcome{Host: host, Port: port, Kind: ProbeError, Err: err.Error()}
		}
		return Outcome{Host: host, Port: port, Kind: PortClosed}
	}
	defer conn.Close()

	out := Outcome{Host: host, Port: port, Kind: PortOpen}
	if s.config.BannerBytes > 0 {
		out.Banner = readBanner(conn, s.config.BannerBytes)
	}
	return out
}

// isSetupError reports whether a dial error happened before the connect
// verdict. Resolution and addressing failures are errors worth recording;
// refusals, timeouts and unreachable hosts are a normal closed outcome.
func isSetupError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var addrErr *net.AddrError
	if errors.As(err, &addrErr) {
		return true
	}
	var parseErr *net.ParseError
	return errors.As(err, &parseErr)
}

// readBanner reads up to limit bytes under the fixed banner deadline and
// sanitizes them. Read failures are swallowed: they never downgrade an open
// outcome.
func readBanner(conn net.Conn, limit int) string {
	if err := conn.SetReadDeadline(time.Now().Add(bannerReadTimeout)); err != nil {
		return ""
	}
	buf := make([]byte, limit)
	n, _ := conn.Read(buf)
	if n == 0 {
		return ""
	}
	return sanitizeBanner(buf[:n])
}

// sanitizeBanner reduces raw banner bytes to a single printable line:
// non-printable bytes are dropped, the trimmed first line is kept, and the
// result is capped at bannerMaxLen characters. An unprintable banner
// sanitizes to the empty string, which callers record as absent.
func sanitizeBanner(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		if (c >= 32 && c < 127) || c == '\n' {
			b.WriteByte(c)
		}
	}

	line := strings.TrimSpace(b.String())
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if len(line) > bannerMaxLen {
		line = line[:bannerMaxLen]
	}
	return line
}

// observe feeds one outcome into the metrics, when metrics are enabled.
func (s *Scanner) observe(out Outcome) {
	if s.metrics == nil {
		return
	}
	switch out.Kind {
	case PortOpen:
		s.metrics.PortsDiscovered.WithLabelValues(out.Host).Inc()
	case ProbeError:
		s.metrics.ProbeErrors.WithLabelValues(out.Host).Inc()
	}
}
