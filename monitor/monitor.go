// Package monitor watches a live portfolio: on a fixed interval it
// recomputes risk metrics, raises alerts for limit breaches and derives a
// position size adjustment factor. Results are pulled by callers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rustyeddy/tradelab/metrics"
	"github.com/rustyeddy/tradelab/risk"
	"go.uber.org/zap"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultHistorySize = 100
	DefaultAlertBuffer = 50
)

type State int

const (
	Stopped State = iota
	Monitoring
)

func (s State) String() string {
	if s == Monitoring {
		return "monitoring"
	}
	return "stopped"
}

type Config struct {
	Interval    time.Duration
	Limits      risk.Limits
	Thresholds  Thresholds
	Risk        metrics.RiskOptions
	HistorySize int
	AlertBuffer int
}

func DefaultConfig() Config {
	return Config{
		Interval:    DefaultInterval,
		Limits:      risk.DefaultLimits(),
		Thresholds:  DefaultThresholds(),
		HistorySize: DefaultHistorySize,
		AlertBuffer: DefaultAlertBuffer,
	}
}

type Option func(*Monitor)

func WithLogger(l *zap.Logger) Option {
	return func(m *Monitor) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock replaces time.Now for alert and snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithAlertHandler is called synchronously with every new alert, after it
// has been stored.
func WithAlertHandler(fn func(Alert)) Option {
	return func(m *Monitor) { m.onAlert = fn }
}

var ErrNoSource = errors.New("monitor: no portfolio source")

// Monitor is safe for concurrent use.
type Monitor struct {
	src     Source
	cfg     Config
	log     *zap.Logger
	now     func() time.Time
	onAlert func(Alert)

	cycle sync.Mutex // held while a cycle runs

	mu      sync.RWMutex
	state   State
	cancel  context.CancelFunc
	done    chan struct{}
	history *ring[metrics.PortfolioRiskMetrics]
	alerts  *ring[Alert]
	params  DynamicRiskParams
}

var _ risk.AdjustmentSource = (*Monitor)(nil)

func New(src Source, cfg Config, opts ...Option) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.AlertBuffer <= 0 {
		cfg.AlertBuffer = DefaultAlertBuffer
	}
	m := &Monitor{
		src:     src,
		cfg:     cfg,
		log:     zap.NewNop(),
		now:     time.Now,
		history: newRing[metrics.PortfolioRiskMetrics](cfg.HistorySize),
		alerts:  newRing[Alert](cfg.AlertBuffer),
		params:  defaultParams(),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Start runs one cycle immediately and then one every Interval until Stop
// is called or ctx is done. Starting a running monitor does nothing.
func (m *Monitor) Start(ctx context.Context) error {
	if m.src == nil {
		return ErrNoSource
	}
	m.mu.Lock()
	if m.state == Monitoring {
		m.mu.Unlock()
		return nil
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.state, m.cancel, m.done = Monitoring, cancel, done
	m.mu.Unlock()

	m.log.Info("monitor started", zap.Duration("interval", m.cfg.Interval))
	m.Refresh(loopCtx)
	go m.loop(loopCtx, done)
	return nil
}

// Stop cancels the schedule and waits for the loop to exit. Stopping a
// stopped monitor does nothing.
func (m *Monitor) Stop() {
	m.mu.RLock()
	cancel, done := m.cancel, m.done
	m.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *Monitor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	t := time.NewTicker(m.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			if m.done == done {
				m.state, m.cancel, m.done = Stopped, nil, nil
			}
			m.mu.Unlock()
			m.log.Info("monitor stopped")
			return
		case <-t.C:
			if !m.Refresh(ctx) {
				m.log.Debug("monitor cycle skipped, previous still running")
			}
		}
	}
}

// Refresh runs one cycle now. It returns false without doing anything when
// another cycle is in progress.
func (m *Monitor) Refresh(ctx context.Context) bool {
	if !m.cycle.TryLock() {
		return false
	}
	defer m.cycle.Unlock()
	m.runCycle(ctx)
	return true
}

func (m *Monitor) runCycle(ctx context.Context) {
	now := m.now()
	defer func() {
		if r := recover(); r != nil {
			m.fail(fmt.Errorf("monitor cycle panic: %v", r), now)
		}
	}()

	if m.src == nil {
		m.fail(ErrNoSource, now)
		return
	}
	snap, err := m.src.Snapshot(ctx)
	if err != nil {
		m.fail(fmt.Errorf("portfolio snapshot: %w", err), now)
		return
	}
	if snap.Time.IsZero() {
		snap.Time = now
	}
	met, err := metrics.PortfolioRisk(snap, m.cfg.Risk)
	if err != nil {
		m.fail(fmt.Errorf("risk metrics: %w", err), now)
		return
	}
	params := DeriveParams(m.cfg.Thresholds, met)
	alerts := CheckLimits(m.cfg.Limits, met, snap.Time)

	m.mu.Lock()
	m.history.push(met)
	m.params = params
	for _, a := range alerts {
		m.alerts.push(a)
	}
	m.mu.Unlock()

	m.log.Debug("monitor cycle",
		zap.Float64("equity", met.Equity),
		zap.Float64("drawdown", met.Drawdown.Current),
		zap.Float64("volatility", met.Volatility),
		zap.String("condition", string(params.Condition)),
		zap.Float64("factor", params.AdjustmentFactor),
		zap.Int("alerts", len(alerts)))
	for _, a := range alerts {
		m.log.Warn("risk alert",
			zap.String("severity", string(a.Severity)),
			zap.String("kind", string(a.Kind)),
			zap.String("message", a.Message))
		m.emit(a)
	}
}

func (m *Monitor) fail(err error, now time.Time) {
	m.log.Error("monitor cycle failed", zap.Error(err))
	a := systemAlert(err, now)
	m.mu.Lock()
	m.alerts.push(a)
	m.mu.Unlock()
	m.emit(a)
}

func (m *Monitor) emit(a Alert) {
	if m.onAlert != nil {
		m.onAlert(a)
	}
}

func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LatestMetrics returns the most recent snapshot, false before the first
// successful cycle.
func (m *Monitor) LatestMetrics() (metrics.PortfolioRiskMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.last()
}

// History returns retained snapshots, oldest first.
func (m *Monitor) History() []metrics.PortfolioRiskMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.items(0)
}

// LatestAlerts returns up to n of the newest alerts, oldest first. n <= 0
// returns every retained alert.
func (m *Monitor) LatestAlerts(n int) []Alert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alerts.items(n)
}

func (m *Monitor) DynamicParams() DynamicRiskParams {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.params
}

// AdjustmentFactor is the current position size multiplier, 1 until the
// first successful cycle.
func (m *Monitor) AdjustmentFactor() float64 {
	return m.DynamicParams().AdjustmentFactor
}
