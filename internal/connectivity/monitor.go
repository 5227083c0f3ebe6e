// AngelaMos | 2026
// monitor.go

package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nfphealth/nfp-backend/internal/config"
)

const (
	defaultInterval = 15 * time.Second
	defaultTimeout  = 3 * time.Second
)

// Monitor tracks whether the API is reachable by probing its root route.
type Monitor struct {
	url      string
	client   *http.Client
	interval time.Duration
	logger   *slog.Logger
	online   atomic.Bool
}

func NewMonitor(baseURL string, cfg config.ConnectivityConfig, logger *slog.Logger) *Monitor {
	interval := cfg.ProbeInterval
	if interval <= 0 {
		interval = defaultInterval
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		url: baseURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		interval: interval,
		logger:   logger,
	}
}

func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Probe performs one reachability check and records the result.
func (m *Monitor) Probe(ctx context.Context) error {
	err := m.probe(ctx)
	m.online.Store(err == nil)
	return err
}

func (m *Monitor) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url+"/", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close() //nolint:errcheck // body unused

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe status %d", resp.StatusCode)
	}
	return nil
}

// Watch probes on every interval and sends on the returned channel each
// time the API comes back after being unreachable. Signals coalesce when
// the reader is slow. The channel closes when ctx ends.
func (m *Monitor) Watch(ctx context.Context) <-chan struct{} {
	restored := make(chan struct{}, 1)

	go func() {
		defer close(restored)

		wasOnline := m.Probe(ctx) == nil
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			err := m.Probe(ctx)
			isOnline := err == nil

			switch {
			case isOnline && !wasOnline:
				m.logger.InfoContext(ctx, "api reachable again", "url", m.url)
				select {
				case restored <- struct{}{}:
				default:
				}
			case !isOnline && wasOnline:
				m.logger.WarnContext(ctx, "api unreachable", "url", m.url, "error", err)
			}
			wasOnline = isOnline
		}
	}()

	return restored
}
