package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"go.uber.org/atomic"

	"github.com/divs-identity/divs-agent/interfaces"
)

// ChainIDReader is the part of an RPC client needed for the network check.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// CheckNetwork fails with ErrWrongNetwork unless the RPC endpoint serves expected.
func CheckNetwork(ctx context.Context, client ChainIDReader, expected *big.Int) error {
	actual, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chain id: %w", err)
	}
	if actual.Cmp(expected) != 0 {
		return fmt.Errorf("%w: expected chain %s, got %s", interfaces.ErrWrongNetwork, expected, actual)
	}
	return nil
}

// NetworkMonitor periodically repeats CheckNetwork and exposes the result.
// The agent refuses writes and reports not ready while the check fails.
type NetworkMonitor struct {
	client   ChainIDReader
	expected *big.Int
	interval time.Duration
	log      *slog.Logger

	healthy atomic.Bool
	lastErr atomic.Error
}

// NewNetworkMonitor creates a monitor. It reports unhealthy until the first check passes.
func NewNetworkMonitor(client ChainIDReader, expected *big.Int, interval time.Duration, log *slog.Logger) *NetworkMonitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &NetworkMonitor{
		client:   client,
		expected: new(big.Int).Set(expected),
		interval: interval,
		log:      log,
	}
}

// Check runs the network check once and records the result.
func (m *NetworkMonitor) Check(ctx context.Context) error {
	err := CheckNetwork(ctx, m.client, m.expected)
	wasHealthy := m.healthy.Swap(err == nil)
	m.lastErr.Store(err)

	switch {
	case err != nil && wasHealthy:
		m.log.Error("Network check failed", "err", err)
	case err == nil && !wasHealthy:
		m.log.Info("Network check passed", slog.String("chainID", m.expected.String()))
	}
	return err
}

// Healthy reports whether the last check passed.
func (m *NetworkMonitor) Healthy() bool {
	return m.healthy.Load()
}

// Err returns the error of the last check, nil when healthy.
func (m *NetworkMonitor) Err() error {
	return m.lastErr.Load()
}

// Run checks the network every interval until ctx is cancelled.
func (m *NetworkMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		checkCtx, cancel := context.WithTimeout(ctx, m.interval)
		_ = m.Check(checkCtx)
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
