// Package report renders backtest results and optimization studies for terminals.
package report

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
	"github.com/raykavin/walkforward/pkg/core"
	"github.com/raykavin/walkforward/pkg/metric"
	"github.com/raykavin/walkforward/pkg/optimizer"
	"github.com/samber/lo"
)

const (
	histogramBins    = 15
	bootstrapSamples = 10000
	confidence       = 0.95
)

// WriteResult prints the fold table, the round trips of every fold, the
// aggregate table and the distribution of per-period returns
func WriteResult(w io.Writer, result *core.BacktestResult) error {
	fmt.Fprintf(w, "%s (%s) on %s: %s in %s\n\n",
		result.Spec.ID, result.Spec.Family, result.Symbol, result.State, result.Duration.Round(time.Millisecond))

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Fold", "Train", "Test", "From", "To", "Status", "Return", "Sharpe", "Max DD", "Trades", "% Win"})
	table.SetAutoWrapText(false)
	for _, fold := range result.Folds {
		test := fold.Fold.Test
		row := []string{
			strconv.Itoa(fold.Fold.Index),
			strconv.Itoa(fold.Fold.TrainLen()),
			strconv.Itoa(test.Len()),
			date(test.From),
			date(test.To),
			string(fold.Status),
		}
		if fold.Status == core.FoldCompleted {
			row = append(row,
				percent(fold.Metrics.TotalReturn),
				number(fold.Metrics.SharpeRatio, 2),
				percent(fold.Metrics.MaxDrawdown),
				number(fold.Metrics.TradeCount, 0),
				percent(fold.Metrics.WinRate),
			)
		} else {
			row = append(row, fold.Reason, "", "", "", "")
		}
		table.Append(row)
	}
	table.Render()
	fmt.Fprintln(w, buffer.String())

	writeTrades(w, result.Completed())

	buffer = bytes.NewBuffer(nil)
	table = tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Metric", "Mean", "Median", "Std Dev"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT})
	for _, name := range core.MetricNames() {
		table.Append([]string{
			string(name),
			number(result.Aggregate.Mean.Get(name), 4),
			number(result.Aggregate.Median.Get(name), 4),
			number(result.Aggregate.StdDev.Get(name), 4),
		})
	}
	table.Render()
	fmt.Fprintln(w, buffer.String())

	returns := make([]float64, 0)
	for _, fold := range result.Completed() {
		returns = append(returns, fold.Equity.Returns()...)
	}
	return writeReturns(w, returns)
}

func writeTrades(w io.Writer, folds []core.FoldResult) {
	var (
		total  metric.TradeSummary
		volume float64
	)

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Fold", "Trades", "Win", "Loss", "% Win", "Payoff", "Pr Fact.", "SQN", "Profit", "Volume"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)
	for _, fold := range folds {
		summary := metric.NewTradeSummary(fold.Equity, fold.Fills)
		foldVolume := lo.SumBy(fold.Fills, func(fill core.Fill) float64 { return fill.Notional })
		table.Append(tradeRow(strconv.Itoa(fold.Fold.Index), summary, foldVolume))

		total = total.Merge(summary)
		volume += foldVolume
	}
	table.SetFooter(tradeRow("TOTAL", total, volume))
	table.Render()
	fmt.Fprintln(w, buffer.String())
}

func tradeRow(label string, summary metric.TradeSummary, volume float64) []string {
	return []string{
		label,
		strconv.Itoa(len(summary.Profits)),
		strconv.Itoa(len(summary.Win())),
		strconv.Itoa(len(summary.Lose())),
		fmt.Sprintf("%.1f %%", summary.WinPercentage()),
		number(summary.Payoff(), 3),
		number(summary.ProfitFactor(), 3),
		number(summary.SQN(), 1),
		fmt.Sprintf("%.2f", summary.Profit()),
		fmt.Sprintf("%.2f", volume),
	}
}

func writeReturns(w io.Writer, returns []float64) error {
	returns = lo.Filter(returns, func(r float64, _ int) bool { return !math.IsNaN(r) && !math.IsInf(r, 0) })
	if len(returns) < 2 {
		fmt.Fprintln(w, "not enough returns for a distribution")
		return nil
	}

	percents := lo.Map(returns, func(r float64, _ int) float64 { return r * 100 })
	if lo.Min(percents) < lo.Max(percents) {
		fmt.Fprintln(w, "------ RETURN (%) -------")
		hist := histogram.Hist(histogramBins, percents)
		if err := histogram.Fprint(w, hist, histogram.Linear(10)); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	interval := metric.Bootstrap(returns, metric.Mean, bootstrapSamples, confidence, rand.New(rand.NewSource(1)))
	fmt.Fprintf(w, "------ CONFIDENCE INTERVAL (%.0f%%) -------\n", confidence*100)
	fmt.Fprintf(w, "MEAN RETURN: %.4f%% (%.4f%% ~ %.4f%%)\n\n",
		interval.Mean*100, interval.Lower*100, interval.Upper*100)
	return nil
}

// WriteStudy prints the topN ranked trials of a study and its best trial.
// topN <= 0 prints every trial.
func WriteStudy(w io.Writer, study *core.Study, topN int) error {
	direction := "max"
	if !study.Maximize {
		direction = "min"
	}
	fmt.Fprintf(w, "%s study: %d/%d trials, %s %s, seed %d",
		study.Family, len(study.Trials), study.Budget, direction, study.Objective, study.Seed)
	if study.Stopped != "" {
		fmt.Fprintf(w, ", stopped by %s", study.Stopped)
	}
	fmt.Fprintln(w)

	trials := optimizer.Ranked(study)
	if topN > 0 && topN < len(trials) {
		trials = trials[:topN]
	}

	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Rank", "Trial", "Parameters", string(study.Objective), "Return", "Max DD", "Feasible", "Notes"})
	table.SetAutoWrapText(false)
	for i, trial := range trials {
		notes := strings.Join(trial.Violations, "; ")
		if trial.Err != "" {
			notes = trial.Err
		}
		table.Append([]string{
			strconv.Itoa(i + 1),
			strconv.Itoa(trial.Index),
			optimizer.FormatParameterSet(trial.Params),
			number(trial.Metrics.Get(study.Objective), 4),
			percent(trial.Metrics.TotalReturn),
			percent(trial.Metrics.MaxDrawdown),
			strconv.FormatBool(trial.Feasible),
			notes,
		})
	}
	table.Render()
	fmt.Fprintln(w, buffer.String())

	best, ok := study.BestTrial()
	if !ok {
		fmt.Fprintln(w, "no feasible trial")
		return nil
	}
	fmt.Fprintf(w, "best trial %d: %s = %s with %s\n",
		best.Index, study.Objective, number(best.Metrics.Get(study.Objective), 4), optimizer.FormatParameterSet(best.Params))
	return nil
}

// WriteFolds prints the fold layout produced by the splitter
func WriteFolds(w io.Writer, folds []core.Fold) {
	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Fold", "Train", "Test", "Embargo", "Test From", "Test To"})
	table.SetAutoWrapText(false)
	for _, fold := range folds {
		train := lo.Map(fold.Train, func(window core.Window, _ int) string {
			return fmt.Sprintf("[%d,%d)", window.Start, window.End)
		})
		table.Append([]string{
			strconv.Itoa(fold.Index),
			strings.Join(train, " "),
			fmt.Sprintf("[%d,%d)", fold.Test.Start, fold.Test.End),
			strconv.Itoa(fold.Embargo),
			date(fold.Test.From),
			date(fold.Test.To),
		})
	}
	table.Render()
	fmt.Fprintln(w, buffer.String())
}

func number(value float64, precision int) string {
	if math.IsNaN(value) {
		return "n/a"
	}
	return strconv.FormatFloat(value, 'f', precision, 64)
}

func percent(value float64) string {
	if math.IsNaN(value) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f %%", value*100)
}

func date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}
