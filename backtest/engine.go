// Package backtest replays a tick stream through a rule based strategy,
// holding at most one position at a time, and reports the trade ledger,
// the equity curve and the resulting performance metrics.
package backtest

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rustyeddy/tradelab/indicators"
	"github.com/rustyeddy/tradelab/market"
	"github.com/rustyeddy/tradelab/metrics"
	"github.com/rustyeddy/tradelab/risk"
	"github.com/rustyeddy/tradelab/strategy"
	"go.uber.org/zap"
)

type (
	Trade       = metrics.Trade
	EquityPoint = metrics.EquityPoint
)

// Close reasons recorded on trades.
const (
	ReasonStopLoss     = "stop_loss"
	ReasonTakeProfit   = "take_profit"
	ReasonTrailingStop = "trailing_stop"
	ReasonExitSignal   = "exit_signal"
	ReasonEndOfData    = "end_of_data"
)

const DefaultInitialCapital = 100_000

// Sizer decides how many units to buy or sell. *risk.Sizer implements it.
type Sizer interface {
	Size(symbol string, entry, stop float64, p risk.Portfolio) float64
}

// ProgressFunc receives the share of the stream processed, 0 to 100. It is
// called synchronously and must not block.
type ProgressFunc func(pct float64)

// Position is the simulation's single open position.
type Position struct {
	Symbol     string      `json:"symbol"`
	Side       market.Side `json:"side"`
	EntryPrice float64     `json:"entry_price"`
	EntryTime  time.Time   `json:"entry_time"`
	Quantity   float64     `json:"quantity"`
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`

	best    float64 // most favorable price seen, for the trailing stop
	trailed bool    // StopLoss was moved by the trailing stop
}

// Unrealized is the open profit at price.
func (p Position) Unrealized(price float64) float64 {
	return float64(p.Side) * (price - p.EntryPrice) * p.Quantity
}

type Result struct {
	Strategy    strategy.Config     `json:"strategy"`
	Trades      []Trade             `json:"trades"`
	EquityCurve []EquityPoint       `json:"equity_curve"`
	Performance metrics.Performance `json:"performance"`

	Open     *Position `json:"open,omitempty"` // still open at the end of the stream
	Rejected int       `json:"rejected"`       // out of order ticks
	Ticks    int       `json:"ticks"`          // ticks accepted for the strategy's symbol

	InitialCapital float64   `json:"initial_capital"`
	FinalEquity    float64   `json:"final_equity"` // realized
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
}

type Option func(*Engine)

func WithInitialCapital(v float64) Option {
	return func(e *Engine) {
		if v > 0 {
			e.capital = v
		}
	}
}

// WithRiskFraction sets the share of equity risked per trade by the default
// sizer. Ignored when WithSizer is used.
func WithRiskFraction(f float64) Option {
	return func(e *Engine) {
		if f > 0 {
			e.riskFraction = f
		}
	}
}

func WithSizer(s Sizer) Option {
	return func(e *Engine) { e.sizer = s }
}

func WithEvaluator(ev strategy.Evaluator) Option {
	return func(e *Engine) {
		if ev != nil {
			e.evaluator = ev
		}
	}
}

// WithProgress reports progress every n accepted ticks. n <= 0 means every
// 1% of the stream.
func WithProgress(fn ProgressFunc, n int) Option {
	return func(e *Engine) {
		e.progress = fn
		e.progressEvery = n
	}
}

// WithCloseAtEnd closes a position left open at the end of the stream at
// the last price.
func WithCloseAtEnd(v bool) Option {
	return func(e *Engine) { e.closeAtEnd = v }
}

// WithPolicy runs risk.Evaluate before every entry; entries with violations
// are skipped.
func WithPolicy(p risk.Policy) Option {
	return func(e *Engine) { e.policy = &p }
}

func WithMetricsOptions(o metrics.Options) Option {
	return func(e *Engine) { e.metricsOpts = o }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine is immutable after New and may run many simulations concurrently.
type Engine struct {
	capital       float64
	riskFraction  float64
	sizer         Sizer
	evaluator     strategy.Evaluator
	progress      ProgressFunc
	progressEvery int
	closeAtEnd    bool
	policy        *risk.Policy
	metricsOpts   metrics.Options
	log           *zap.Logger
}

func New(opts ...Option) *Engine {
	e := &Engine{
		capital:      DefaultInitialCapital,
		riskFraction: risk.DefaultRiskFraction,
		evaluator:    indicators.NewEvaluator(),
		log:          zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	if e.sizer == nil {
		e.sizer = risk.NewSizer(risk.SizerConfig{BaseRiskFraction: e.riskFraction}, risk.WithSizerLogger(e.log))
	}
	return e
}

func (e *Engine) InitialCapital() float64 { return e.capital }

// Evaluator is the indicator evaluator runs read conditions through.
func (e *Engine) Evaluator() strategy.Evaluator { return e.evaluator }

// Run replays ticks for cfg.Symbol. Ticks for other symbols are ignored and
// ticks older than the previous accepted one are skipped and counted.
//
// On every tick an open position is checked for exits before any entry is
// considered, so a position closed on a tick may be replaced on that same
// tick. An evaluator error aborts the run and no partial result is
// returned.
func (e *Engine) Run(ctx context.Context, cfg strategy.Config, ticks []market.Tick) (*Result, error) {
	cfg = cfg.Clone()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest: invalid strategy %q: %w", cfg.Name, err)
	}

	r := &run{
		Engine:  e,
		cfg:     cfg,
		symbol:  market.NormalizeSymbol(cfg.Symbol),
		equity:  e.capital,
		history: make([]market.Tick, 0, len(ticks)),
	}
	every := e.progressEvery
	if every <= 0 {
		every = max(1, len(ticks)/100)
	}

	for i, tk := range ticks {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := r.step(tk); err != nil {
			e.log.Warn("backtest aborted",
				zap.String("strategy", cfg.Name), zap.Int("tick", i), zap.Error(err))
			return nil, fmt.Errorf("backtest: tick %d: %w", i, err)
		}
		if e.progress != nil && r.accepted > 0 && r.accepted%every == 0 && i < len(ticks)-1 {
			e.progress(100 * float64(i+1) / float64(len(ticks)))
		}
	}

	if r.pos != nil && e.closeAtEnd {
		last := r.history[len(r.history)-1]
		r.close(last, priceOf(last), ReasonEndOfData)
	}
	if len(r.history) == 0 {
		r.curve.Add(time.Time{}, e.capital)
	}
	if e.progress != nil {
		e.progress(100)
	}

	res := &Result{
		Strategy:       cfg,
		Trades:         r.trades,
		EquityCurve:    r.curve.Points(),
		Rejected:       r.rejected,
		Ticks:          r.accepted,
		InitialCapital: e.capital,
		FinalEquity:    r.equity,
	}
	if r.trades == nil {
		res.Trades = []Trade{}
	}
	if r.pos != nil {
		p := *r.pos
		res.Open = &p
	}
	if len(r.history) > 0 {
		res.Start = r.history[0].Time
		res.End = r.history[len(r.history)-1].Time
	}
	res.Performance = metrics.Calculate(res.Trades, res.EquityCurve, e.metricsOpts)

	e.log.Debug("backtest done",
		zap.String("strategy", cfg.Name),
		zap.String("symbol", r.symbol),
		zap.Int("ticks", r.accepted),
		zap.Int("rejected", r.rejected),
		zap.Int("trades", len(res.Trades)),
		zap.Float64("equity", r.equity))
	return res, nil
}

// run is the mutable state of one simulation.
type run struct {
	*Engine
	cfg    strategy.Config
	symbol string

	equity   float64
	pos      *Position
	trades   []Trade
	curve    metrics.CurveBuilder
	history  []market.Tick
	accepted int
	rejected int
}

func (r *run) step(tk market.Tick) error {
	if market.NormalizeSymbol(tk.Symbol) != r.symbol {
		return nil
	}
	price := priceOf(tk)
	if price <= 0 {
		r.rejected++
		return nil
	}
	if n := len(r.history); n > 0 {
		if err := market.CheckOrder(r.history[n-1], tk); err != nil {
			r.rejected++
			r.log.Debug("tick rejected", zap.Time("time", tk.Time), zap.Error(err))
			return nil
		}
	} else {
		r.curve.Add(tk.Time, r.capital)
	}
	r.history = append(r.history, tk)
	r.accepted++

	if r.pos != nil {
		if err := r.checkExit(tk, price); err != nil {
			return err
		}
	}
	if r.pos == nil {
		return r.tryEnter(tk, price)
	}
	return nil
}

func (r *run) checkExit(tk market.Tick, price float64) error {
	p := r.pos
	r.trail(price)

	side := float64(p.Side)
	if p.StopLoss > 0 && side*(price-p.StopLoss) <= 0 {
		reason := ReasonStopLoss
		if p.trailed {
			reason = ReasonTrailingStop
		}
		r.close(tk, p.StopLoss, reason)
		return nil
	}
	if p.TakeProfit > 0 && side*(price-p.TakeProfit) >= 0 {
		r.close(tk, p.TakeProfit, ReasonTakeProfit)
		return nil
	}

	ok, err := strategy.AllHold(r.evaluator, r.cfg.Exit, r.history)
	if err != nil {
		return fmt.Errorf("exit: %w", err)
	}
	if ok {
		r.close(tk, price, ReasonExitSignal)
	}
	return nil
}

// trail moves the stop behind the most favorable price seen.
func (r *run) trail(price float64) {
	pct := r.cfg.Risk.TrailingStopPct
	p := r.pos
	if pct <= 0 {
		return
	}
	side := float64(p.Side)
	if side*(price-p.best) > 0 {
		p.best = price
	}
	level := p.best * (1 - side*pct/100)
	if p.StopLoss == 0 || side*(level-p.StopLoss) > 0 {
		p.StopLoss = level
		p.trailed = true
	}
}

func (r *run) tryEnter(tk market.Tick, price float64) error {
	ok, err := strategy.AllHold(r.evaluator, r.cfg.Entry, r.history)
	if err != nil {
		return fmt.Errorf("entry: %w", err)
	}
	if !ok {
		return nil
	}

	side := r.cfg.TradeSide()
	stop := r.cfg.StopLossPrice(price)
	take := r.cfg.TakeProfitPrice(price)

	sizingStop := stop
	if sizingStop == 0 && r.cfg.Risk.TrailingStopPct > 0 {
		sizingStop = price * (1 - float64(side)*r.cfg.Risk.TrailingStopPct/100)
	}
	port := risk.Portfolio{Time: tk.Time, Equity: r.equity, Baseline: r.capital}
	qty := r.sizer.Size(r.symbol, price, sizingStop, port)
	if limit := r.cfg.Risk.MaxPositionSize; limit > 0 && qty > limit {
		qty = limit
	}
	if qty <= 0 {
		return nil
	}

	if r.policy != nil {
		d := risk.Evaluate(*r.policy, risk.Intent{
			Time: tk.Time, Symbol: r.symbol, Side: side, Quantity: qty,
			Entry: price, Stop: sizingStop, TakeProfit: take,
		}, port)
		if !d.Allowed {
			r.log.Debug("entry blocked by policy",
				zap.Time("time", tk.Time), zap.Any("violations", d.Violations))
			return nil
		}
	}

	r.pos = &Position{
		Symbol:     r.symbol,
		Side:       side,
		EntryPrice: price,
		EntryTime:  tk.Time,
		Quantity:   qty,
		StopLoss:   stop,
		TakeProfit: take,
		best:       price,
	}
	r.trail(price)
	return nil
}

func (r *run) close(tk market.Tick, exit float64, reason string) {
	p := r.pos
	r.pos = nil

	delta := exit - p.EntryPrice
	pl := float64(p.Side) * delta * p.Quantity
	r.equity += pl

	r.trades = append(r.trades, Trade{
		ID:         strconv.Itoa(len(r.trades) + 1),
		Symbol:     p.Symbol,
		Side:       p.Side,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exit,
		EntryTime:  p.EntryTime,
		ExitTime:   tk.Time,
		Quantity:   p.Quantity,
		ProfitLoss: pl,
		Pips:       float64(p.Side) * delta / market.PipSize(p.Symbol),
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		Reason:     reason,
	})
	r.curve.Add(tk.Time, r.equity)
}

func priceOf(tk market.Tick) float64 {
	if tk.Price > 0 {
		return tk.Price
	}
	return tk.Mid()
}
