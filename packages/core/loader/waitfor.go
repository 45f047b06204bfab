package loader

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// WaitForDoc polls a URL before a group opens until it answers with the
// expected status.
type WaitForDoc struct {
	URL    string `yaml:"url"`
	Status int    `yaml:"status"`
	// Timeout and Interval in milliseconds.
	Timeout  int `yaml:"timeout"`
	Interval int `yaml:"interval"`
}

const (
	defaultWaitTimeout  = 30 * time.Second
	defaultWaitInterval = 500 * time.Millisecond
)

// waitForService polls url until it returns the expected status, the
// timeout elapses or ctx is done.
func waitForService(ctx context.Context, client *http.Client, url string, cfg WaitForDoc, logger *zap.Logger) error {
	expected := cfg.Status
	if expected == 0 {
		expected = http.StatusOK
	}
	timeout, interval := defaultWaitTimeout, defaultWaitInterval
	if cfg.Timeout > 0 {
		timeout = millis(cfg.Timeout)
	}
	if cfg.Interval > 0 {
		interval = millis(cfg.Interval)
	}

	logger.Debug("waiting for service",
		zap.String("url", url),
		zap.Int("status", expected),
		zap.Duration("timeout", timeout),
	)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	lastStatus := 0
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("wait_for: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			lastErr = nil
			lastStatus = resp.StatusCode
			resp.Body.Close()
			if resp.StatusCode == expected {
				logger.Debug("service ready", zap.String("url", url))
				return nil
			}
		}

		if err := sleep(ctx, interval); err != nil {
			if lastErr != nil {
				return fmt.Errorf("service %s not ready after %v: %v", url, timeout, lastErr)
			}
			return fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
				url, timeout, lastStatus, expected)
		}
	}
}
