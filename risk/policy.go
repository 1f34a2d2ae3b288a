package risk

import (
	"errors"
	"fmt"
	"time"

	"github.com/rustyeddy/tradelab/market"
	"github.com/rustyeddy/tradelab/metrics"
)

// Portfolio is the read-only snapshot the sizer and the pre-trade checks
// look at.
type Portfolio = metrics.PortfolioInput

// Limits are the account wide risk limits. A zero value disables the
// corresponding check.
type Limits struct {
	MaxLeverage            float64 `json:"max_leverage" yaml:"max_leverage"`                           // gross notional / equity
	MaxDrawdown            float64 `json:"max_drawdown" yaml:"max_drawdown"`                           // percent
	MaxPositions           int     `json:"max_positions" yaml:"max_positions"`                         // open positions
	MaxDailyLoss           float64 `json:"max_daily_loss" yaml:"max_daily_loss"`                       // percent of equity
	MaxExposurePerCurrency float64 `json:"max_exposure_per_currency" yaml:"max_exposure_per_currency"` // net notional / equity
	MaxCorrelation         float64 `json:"max_correlation" yaml:"max_correlation"`                     // |r|, 0..1
	VolatilityAlert        float64 `json:"volatility_alert" yaml:"volatility_alert"`                   // annualized percent
}

func DefaultLimits() Limits {
	return Limits{
		MaxLeverage:            10,
		MaxDrawdown:            10,
		MaxPositions:           5,
		MaxDailyLoss:           3,
		MaxExposurePerCurrency: 5,
		MaxCorrelation:         0.8,
		VolatilityAlert:        25,
	}
}

func (l Limits) Validate() error {
	var errs []error
	if l.MaxLeverage < 0 {
		errs = append(errs, errors.New("max_leverage must be >= 0"))
	}
	if l.MaxDrawdown < 0 || l.MaxDrawdown > 100 {
		errs = append(errs, errors.New("max_drawdown must be between 0 and 100"))
	}
	if l.MaxPositions < 0 {
		errs = append(errs, errors.New("max_positions must be >= 0"))
	}
	if l.MaxDailyLoss < 0 || l.MaxDailyLoss > 100 {
		errs = append(errs, errors.New("max_daily_loss must be between 0 and 100"))
	}
	if l.MaxExposurePerCurrency < 0 {
		errs = append(errs, errors.New("max_exposure_per_currency must be >= 0"))
	}
	if l.MaxCorrelation < 0 || l.MaxCorrelation > 1 {
		errs = append(errs, errors.New("max_correlation must be between 0 and 1"))
	}
	if l.VolatilityAlert < 0 {
		errs = append(errs, errors.New("volatility_alert must be >= 0"))
	}
	return errors.Join(errs...)
}

// Policy adds per-trade rules on top of the account limits.
type Policy struct {
	Limits

	MaxRiskFraction float64 // per trade, 0.02 = 2% of equity
	MinRR           float64 // 1.5
}

// Intent is a trade about to be placed.
type Intent struct {
	Time       time.Time
	Symbol     string
	Side       market.Side
	Quantity   float64
	Entry      float64
	Stop       float64
	TakeProfit float64

	QuoteToAccount float64 // 0 means 1.0
}

func (i Intent) String() string {
	return fmt.Sprintf("%s %s %.2f @ %.5f stop %.5f", i.Side, i.Symbol, i.Quantity, i.Entry, i.Stop)
}
