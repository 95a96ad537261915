package portsweep

import (
	"context"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testScanConfig() *Config {
	config := DefaultConfig()
	config.Threads = 8
	config.TimeoutSeconds = 0.5
	return config
}

// startBannerListener starts a local listener that writes the given banner
// to every accepted connection. Returns the host and port it listens on.
func startBannerListener(t *testing.T, banner string) (string, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			if banner != "" {
				conn.Write([]byte(banner))
			}
			conn.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

// closedPort returns a port on loopback with no listener.
func closedPort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func TestProbeOpenPortCapturesBanner(t *testing.T) {
	host, port := startBannerListener(t, "SSH-2.0-OpenSSH_9.6\r\nsecond line ignored\r\n")
	s := NewScanner(testScanConfig(), zap.NewNop(), nil)

	out := s.probe(context.Background(), host, port)

	require.Equal(t, PortOpen, out.Kind)
	assert.Equal(t, "SSH-2.0-OpenSSH_9.6", out.Banner)
	assert.Empty(t, out.Err)
}

func TestProbeOpenPortWithoutBanner(t *testing.T) {
	host, port := startBannerListener(t, "")
	s := NewScanner(testScanConfig(), zap.NewNop(), nil)

	out := s.probe(context.Background(), host, port)

	require.Equal(t, PortOpen, out.Kind)
	assert.Empty(t, out.Banner)
	assert.Empty(t, out.Err)
}

func TestProbeBannerCaptureDisabled(t *testing.T) {
	host, port := startBannerListener(t, "220 ftp ready\r\n")
	config := testScanConfig()
	config.BannerBytes = 0
	s := NewScanner(config, zap.NewNop(), nil)

	out := s.probe(context.Background(), host, port)

	require.Equal(t, PortOpen, out.Kind)
	assert.Empty(t, out.Banner)
}

func TestProbeClosedPortIsNotAnError(t *testing.T) {
	port := closedPort(t)
	s := NewScanner(testScanConfig(), zap.NewNop(), nil)

	out := s.probe(context.Background(), "127.0.0.1", port)

	require.Equal(t, PortClosed, out.Kind)
	assert.Empty(t, out.Banner)
	assert.Empty(t, out.Err)
}

func TestProbeUnresolvableHostIsAnError(t *testing.T) {
	s := NewScanner(testScanConfig(), zap.NewNop(), nil)

	out := s.probe(context.Background(), "no-such-host.invalid", 80)

	require.Equal(t, ProbeError, out.Kind)
	assert.NotEmpty(t, out.Err)
	assert.Empty(t, out.Banner)
}

func TestSanitizeBanner(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{
			name: "plain line",
			data: []byte("220 mail.example.com ESMTP"),
			want: "220 mail.example.com ESMTP",
		},
		{
			name: "crlf keeps first line",
			data: []byte("HTTP/1.1 400 Bad Request\r\nServer: nginx\r\n"),
			want: "HTTP/1.1 400 Bad Request",
		},
		{
			name: "leading blank lines stripped",
			data: []byte("\r\n\r\n  hello  \nworld"),
			want: "hello",
		},
		{
			name: "control and high bytes dropped",
			data: []byte{0x01, 0x02, 'o', 'k', 0xff, 0x7f},
			want: "ok",
		},
		{
			name: "truncated to eighty characters",
			data: []byte(strings.Repeat("A", 200)),
			want: strings.Repeat("A", 80),
		},
		{
			name: "unprintable only becomes empty",
			data: []byte{0x00, 0x07, 0x1b, 0xfe},
			want: "",
		},
		{
			name: "whitespace only becomes empty",
			data: []byte("   \r\n\t  "),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeBanner(tt.data)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), 80)
			assert.NotContains(t, got, "\n")
		})
	}
}

func TestRunCollectsEveryTask(t *testing.T) {
	openHost, openPort := startBannerListener(t, "hello\n")
	closed := closedPort(t)

	s := NewScanner(testScanConfig(), zap.NewNop(), nil)
	targets := []string{openHost}
	ports := []int{openPort, closed}

	outcomes := s.Run(context.Background(), targets, ports)

	require.Len(t, outcomes, len(targets)*len(ports))

	open := 0
	for _, out := range outcomes {
		if out.Kind == PortOpen {
			open++
			assert.Equal(t, openPort, out.Port)
		}
	}
	assert.Equal(t, 1, open)
}

func TestRunIsolatesFailingTask(t *testing.T) {
	closed := closedPort(t)

	s := NewScanner(testScanConfig(), zap.NewNop(), nil)

	// One target that cannot be resolved among healthy ones; its failure
	// must not prevent the others' outcomes from being collected.
	targets := []string{"127.0.0.1", "no-such-host.invalid", "127.0.0.2"}
	ports := []int{closed}

	outcomes := s.Run(context.Background(), targets, ports)

	require.Len(t, outcomes, len(targets))

	var errored, settled int
	for _, out := range outcomes {
		switch out.Kind {
		case ProbeError:
			errored++
			assert.Equal(t, "no-such-host.invalid", out.Host)
			assert.NotEmpty(t, out.Err)
		default:
			settled++
		}
	}
	assert.Equal(t, 1, errored)
	assert.Equal(t, len(targets)-1, settled)
}

func TestRunNotifiesInCompletionOrder(t *testing.T) {
	closed := closedPort(t)

	s := NewScanner(testScanConfig(), zap.NewNop(), nil)

	var notified []Outcome
	s.OnResult = func(out Outcome) {
		// Runs on the collector goroutine, no locking needed.
		notified = append(notified, out)
	}

	outcomes := s.Run(context.Background(), []string{"127.0.0.1"}, []int{closed})

	assert.Equal(t, outcomes, notified)
}

func TestRunManyPortsBoundedByWorkers(t *testing.T) {
	config := testScanConfig()
	config.Threads = 4

	s := NewScanner(config, zap.NewNop(), nil)

	base := closedPort(t)
	ports := make([]int, 0, 20)
	for i := 0; i < 20; i++ {
		ports = append(ports, (base+i)%65535+1)
	}

	outcomes := s.Run(context.Background(), []string{"127.0.0.1"}, ports)
	assert.Len(t, outcomes, len(ports))
}
