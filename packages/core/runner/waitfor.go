package runner

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const (
	DefaultWaitTimeout  = 30 * time.Second
	DefaultWaitInterval = 500 * time.Millisecond
)

// WaitFor polls URL until it answers with Status before any row runs.
type WaitFor struct {
	URL      string
	Status   int
	Timeout  time.Duration
	Interval time.Duration
}

// Wait blocks until the service is ready, the timeout elapses or ctx is done.
func (w *WaitFor) Wait(ctx context.Context, logger Logger) error {
	status := w.Status
	if status == 0 {
		status = http.StatusOK
	}
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	interval := w.Interval
	if interval <= 0 {
		interval = DefaultWaitInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger.Printf("waiting for %s to return %d (timeout: %v, interval: %v)", w.URL, status, timeout, interval)

	client := &http.Client{Timeout: 5 * time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	var lastStatus int
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
		if err != nil {
			return fmt.Errorf("wait for %s: %w", w.URL, err)
		}
		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() == nil {
				lastErr = err
			}
		} else {
			lastErr = nil
			lastStatus = resp.StatusCode
			resp.Body.Close()
			if resp.StatusCode == status {
				logger.Printf("service %s is ready (status: %d)", w.URL, resp.StatusCode)
				return nil
			}
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("service %s not ready after %v: %v", w.URL, timeout, lastErr)
			}
			return fmt.Errorf("service %s not ready after %v: got status %d, expected %d",
				w.URL, timeout, lastStatus, status)
		case <-ticker.C:
		}
	}
}
