package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/algomatic/regime-backtest/pkg/batch"
	"github.com/algomatic/regime-backtest/pkg/engine"
	"github.com/algomatic/regime-backtest/pkg/regime"
	"github.com/algomatic/regime-backtest/pkg/scan"
	"github.com/algomatic/regime-backtest/pkg/types"
)

const (
	rule      = "======================================================================"
	dateOnly  = "2006-01-02"
	rupeeSign = "₹"
)

// WriteSummary prints the results block and regime breakdown for one run.
func WriteSummary(w io.Writer, symbol string, rep *engine.Report) error {
	var b bytes.Buffer

	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(rep.Strategy), symbol)
	fmt.Fprintf(&b, "Period: %s to %s\n", rep.FirstTimestamp.Format(dateOnly), rep.LastTimestamp.Format(dateOnly))
	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "Candles: %d (%d evaluated)\n", rep.Candles, rep.Evaluated)
	fmt.Fprintf(&b, "Buy & Hold: %.1f%%\n", rep.BuyHoldPct)

	fmt.Fprintf(&b, "\nRESULTS:\n")
	fmt.Fprintf(&b, "   Trades: %d\n", rep.Trades)
	fmt.Fprintf(&b, "   Win Rate: %.1f%%\n", rep.WinRatePct)
	fmt.Fprintf(&b, "   Total P&L: %s%s\n", rupeeSign, grouped(rep.NetPnL))
	fmt.Fprintf(&b, "   Costs: %s%s\n", rupeeSign, grouped(rep.Costs))
	fmt.Fprintf(&b, "   Total Return: %.1f%%\n", rep.TotalReturnPct)
	fmt.Fprintf(&b, "   Monthly Return: %.1f%%\n", rep.MonthlyReturnPct)
	fmt.Fprintf(&b, "   Max DD: %.1f%%\n", rep.MaxDrawdownPct)
	fmt.Fprintf(&b, "   Avg R: %.2fR\n", rep.AvgR)

	if len(rep.ExitReasons) > 0 {
		fmt.Fprintf(&b, "\nEXITS:\n")
		for _, r := range []types.ExitReason{types.ExitTrailingStop, types.ExitHorizon, types.ExitEndOfData} {
			if n := rep.ExitReasons[r]; n > 0 {
				fmt.Fprintf(&b, "   %-14s %3d\n", r, n)
			}
		}
	}

	fmt.Fprintf(&b, "\nREGIME BREAKDOWN:\n")
	total := 0
	for _, l := range regime.Labels {
		total += rep.RegimeDays[l]
	}
	for _, l := range regime.Labels {
		days := rep.RegimeDays[l]
		var pct float64
		if total > 0 {
			pct = float64(days) / float64(total) * 100
		}
		fmt.Fprintf(&b, "   %-10s | Days: %3d (%5.1f%%) | Trades: %3d\n", l, days, pct, rep.RegimeTrades[l])
	}

	_, err := w.Write(b.Bytes())
	return err
}

// WriteBatchSummary prints one line per symbol followed by the averages.
func WriteBatchSummary(w io.Writer, results []batch.Result) error {
	var b bytes.Buffer

	fmt.Fprintf(&b, "\n%s\n", rule)
	fmt.Fprintf(&b, "%-12s %7s %9s %14s %10s\n", "SYMBOL", "TRADES", "WIN %", "NET P&L", "MONTHLY %")
	fmt.Fprintf(&b, "%s\n", rule)
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(&b, "%-12s FAILED: %v\n", res.Symbol, res.Err)
			continue
		}
		r := res.Report
		fmt.Fprintf(&b, "%-12s %7d %9.1f %14s %10.1f\n", res.Symbol, r.Trades, r.WinRatePct, grouped(r.NetPnL), r.MonthlyReturnPct)
	}

	s := batch.Summarize(results)
	fmt.Fprintf(&b, "\nSUMMARY (%d ok, %d failed):\n", s.Succeeded, s.Failed)
	fmt.Fprintf(&b, "   Average Monthly Return: %.1f%%\n", s.AvgMonthlyReturnPct)
	fmt.Fprintf(&b, "   Average Trades/Symbol: %.0f\n", s.AvgTrades)
	fmt.Fprintf(&b, "   Average Win Rate: %.1f%%\n", s.AvgWinRatePct)

	_, err := w.Write(b.Bytes())
	return err
}

// WriteScan prints the top strongest periods and the recommended ones.
// A non-zero since adds the strongest period starting on or after it.
func WriteScan(w io.Writer, periods []scan.Period, top int, since time.Time) error {
	var b bytes.Buffer

	fmt.Fprintf(&b, "%s\n", rule)
	fmt.Fprintf(&b, "TOP %d STRONGEST TRENDING PERIODS\n", top)
	fmt.Fprintf(&b, "%s\n", rule)
	for i, p := range periods {
		if i == top {
			break
		}
		fmt.Fprintf(&b, "\n#%d: %s to %s\n", i+1, p.StartDate.Format(dateOnly), p.EndDate.Format(dateOnly))
		writePeriod(&b, p)
	}

	fmt.Fprintf(&b, "\n%s\nRECOMMENDED PERIODS FOR VALIDATION\n%s\n", rule, rule)
	if p, ok := scan.Best(periods, types.Long); ok {
		fmt.Fprintf(&b, "\nBEST UPTREND: %s to %s\n", p.StartDate.Format(dateOnly), p.EndDate.Format(dateOnly))
		writePeriod(&b, p)
	}
	if p, ok := scan.Best(periods, types.Short); ok {
		fmt.Fprintf(&b, "\nBEST DOWNTREND: %s to %s\n", p.StartDate.Format(dateOnly), p.EndDate.Format(dateOnly))
		writePeriod(&b, p)
	}
	if !since.IsZero() {
		if p, ok := scan.BestSince(periods, since); ok {
			fmt.Fprintf(&b, "\nRECENT STRONG TREND (%s+): %s to %s\n", since.Format(dateOnly), p.StartDate.Format(dateOnly), p.EndDate.Format(dateOnly))
			writePeriod(&b, p)
		}
	}

	_, err := w.Write(b.Bytes())
	return err
}

func writePeriod(b *bytes.Buffer, p scan.Period) {
	fmt.Fprintf(b, "   Direction: %s\n", p.Direction)
	fmt.Fprintf(b, "   Price: %s%.2f -> %s%.2f\n", rupeeSign, p.StartPrice, rupeeSign, p.EndPrice)
	fmt.Fprintf(b, "   Change: %+.1f%%\n", p.PriceChangePct)
	fmt.Fprintf(b, "   Volatility: %.2f%%\n", p.VolatilityPct)
	fmt.Fprintf(b, "   Trend Strength: %.2f\n", p.Strength)
}

// grouped rounds v to whole units and inserts thousands separators.
func grouped(v float64) string {
	s := decimal.NewFromFloat(v).Round(0).String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var out strings.Builder
	if neg {
		out.WriteByte('-')
	}
	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}
	out.WriteString(s[:lead])
	for i := lead; i < len(s); i += 3 {
		out.WriteByte(',')
		out.WriteString(s[i : i+3])
	}
	return out.String()
}
