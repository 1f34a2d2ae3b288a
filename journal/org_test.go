package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTradeOrg(t *testing.T) {
	t.Parallel()

	result := FormatTradeOrg(sampleTrade("01HRUN", "7", 250))

	assert.True(t, strings.HasPrefix(result, "*** Trade 7: BUY EUR_USD\n"))
	for _, want := range []string{
		":PROPERTIES:",
		":RUN_ID: 01HRUN",
		":TRADE_ID: 7",
		":SYMBOL: EUR_USD",
		":QUANTITY: 1500",
		":ENTRY_PRICE: 1.08500",
		":EXIT_PRICE: 1.08750",
		":OPEN_TIME: 2024-04-10T09:00:00Z",
		":CLOSE_TIME: 2024-04-10T15:00:00Z",
		":REALIZED_PL: 250.00",
		":REASON: take_profit",
		":END:",
		"**** Thesis",
		"**** Execution",
		"**** Review",
	} {
		assert.Contains(t, result, want)
	}
}

func TestFormatTradesOrg(t *testing.T) {
	t.Parallel()

	assert.Empty(t, FormatTradesOrg(nil))

	out := FormatTradesOrg([]TradeRecord{sampleTrade("R", "1", 1), sampleTrade("R", "2", -1)})
	assert.Equal(t, 2, strings.Count(out, ":PROPERTIES:"))
	assert.Less(t, strings.Index(out, "Trade 1:"), strings.Index(out, "Trade 2:"))
	assert.Contains(t, out, ":REALIZED_PL: -1.00")
}

func TestWriteOrg(t *testing.T) {
	t.Parallel()

	run := Run{
		RunID:          "01HRUN",
		Kind:           KindBacktest,
		Created:        time.Date(2024, 3, 15, 14, 20, 0, 0, time.UTC),
		Strategy:       "momentum",
		Symbol:         "EUR_USD",
		Config:         "name: momentum\nsymbol: EUR_USD\n",
		Start:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:            time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Trades:         10,
		Wins:           6,
		Losses:         4,
		InitialCapital: 10_000,
		FinalEquity:    10_500,
		NetProfit:      500,
		TotalReturn:    5,
		WinRate:        60,
		ProfitFactor:   1.8,
		MaxDrawdown:    3.25,
		Notes:          []string{"position still open"},
	}

	var b strings.Builder
	require.NoError(t, WriteOrg(&b, run, []TradeRecord{sampleTrade("01HRUN", "1", 10)}))
	out := b.String()

	for _, want := range []string{
		"* BACKTEST: momentum EUR_USD\n",
		":RUN_ID:      01HRUN",
		":START_DATE:  2024-01-01",
		":END_DATE:    2024-03-01",
		":START_BAL:   10000.00",
		":NET_PL:      500.00",
		":MAX_DD_PCT:  3.25",
		":WIN_RATE:    60.00",
		":CREATED:     [2024-03-15 Fri 14:20]",
		"| Wins    | 6 |",
		"#+begin_src yaml\n  name: momentum\n  symbol: EUR_USD\n#+end_src",
		"** Observations\n- position still open",
		"** Trades\n*** Trade 1: BUY EUR_USD",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, ":BEST_FIT:")
}

func TestWriteOrgOptimizeAndEmpty(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	require.NoError(t, WriteOrg(&b, Run{RunID: "X", Kind: KindOptimize, BestFitness: 1.23456}, nil))
	out := b.String()

	assert.Contains(t, out, "* OPTIMIZE: (strategy?)")
	assert.Contains(t, out, ":BEST_FIT:    1.2346\n:CREATED:")
	assert.Contains(t, out, ":START_DATE:  (none)")
	assert.NotContains(t, out, "** Strategy")
	assert.NotContains(t, out, "** Observations")
	assert.NotContains(t, out, "** Trades")
}

func TestWriteOrgFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.org")
	require.NoError(t, WriteOrgFile(path, Run{RunID: "F", Kind: KindBacktest, Strategy: "s"}, nil))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(b), "* BACKTEST: s "))
}
