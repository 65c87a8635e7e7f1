package optimizer

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sort"
	"strconv"
	"time"

	"github.com/raykavin/walkforward/pkg/core"
)

// TrialSorter orders trials best first: feasible before infeasible, then by the
// target metric with undefined values last, then by index
type TrialSorter struct {
	Trials   []core.Trial
	Metric   core.MetricName
	Maximize bool
}

// Len returns the number of trials
func (s TrialSorter) Len() int {
	return len(s.Trials)
}

// Swap swaps two trials
func (s TrialSorter) Swap(i, j int) {
	s.Trials[i], s.Trials[j] = s.Trials[j], s.Trials[i]
}

// Less compares two trials based on feasibility and the target metric
func (s TrialSorter) Less(i, j int) bool {
	a, b := s.Trials[i], s.Trials[j]
	if a.Feasible != b.Feasible {
		return a.Feasible
	}

	valueA, valueB := a.Metrics.Get(s.Metric), b.Metrics.Get(s.Metric)
	switch {
	case math.IsNaN(valueA) && math.IsNaN(valueB):
	case math.IsNaN(valueA):
		return false
	case math.IsNaN(valueB):
		return true
	case valueA != valueB:
		if s.Maximize {
			return valueA > valueB
		}
		return valueA < valueB
	}
	return a.Index < b.Index
}

// Ranked returns a copy of the study trials, best first
func Ranked(study *core.Study) []core.Trial {
	trials := slices.Clone(study.Trials)
	sort.Sort(TrialSorter{Trials: trials, Metric: study.Objective, Maximize: study.Maximize})
	return trials
}

// SaveStudyToCSV saves the ranked trials of a study to a CSV file
func SaveStudyToCSV(study *core.Study, filePath string) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := WriteStudyCSV(file, study); err != nil {
		return err
	}
	return file.Close()
}

// WriteStudyCSV writes the ranked trials of a study as CSV
func WriteStudyCSV(w io.Writer, study *core.Study) error {
	writer := csv.NewWriter(w)

	// Determine all parameter names for consistent ordering
	paramNames := make(map[string]bool)
	for _, trial := range study.Trials {
		for name := range trial.Params {
			paramNames[name] = true
		}
	}
	paramNameSlice := make([]string, 0, len(paramNames))
	for name := range paramNames {
		paramNameSlice = append(paramNameSlice, name)
	}
	sort.Strings(paramNameSlice)

	header := []string{"rank", "trial", "feasible", "duration"}
	header = append(header, paramNameSlice...)
	for _, name := range core.MetricNames() {
		header = append(header, string(name))
	}
	header = append(header, "violations", "error")
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for rank, trial := range Ranked(study) {
		row := []string{
			strconv.Itoa(rank + 1),
			strconv.Itoa(trial.Index),
			strconv.FormatBool(trial.Feasible),
			trial.Duration.String(),
		}

		for _, name := range paramNameSlice {
			value, exists := trial.Params[name]
			if !exists {
				row = append(row, "")
				continue
			}
			row = append(row, formatValue(value))
		}

		for _, name := range core.MetricNames() {
			row = append(row, strconv.FormatFloat(trial.Metrics.Get(name), 'f', 4, 64))
		}
		row = append(row, fmt.Sprint(trial.Violations), trial.Err)

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// PrintStudy prints the top N trials of a study
func PrintStudy(w io.Writer, study *core.Study, topN int) {
	if len(study.Trials) == 0 {
		fmt.Fprintln(w, "No trials to display")
		return
	}

	trials := Ranked(study)
	if topN > 0 && topN < len(trials) {
		trials = trials[:topN]
	}

	fmt.Fprintf(w, "\n=== Top %d Trials (by %s) ===\n\n", len(trials), study.Objective)

	for i, trial := range trials {
		fmt.Fprintf(w, "Rank #%d trial %d (Duration: %s, feasible: %t)\n",
			i+1, trial.Index, trial.Duration.Round(time.Millisecond), trial.Feasible)
		fmt.Fprintf(w, "Parameters: %s\n", FormatParameterSet(trial.Params))

		fmt.Fprintln(w, "Metrics:")
		fmt.Fprintf(w, "  %s: %.4f\n", study.Objective, trial.Metrics.Get(study.Objective))
		for _, name := range core.MetricNames() {
			if name != study.Objective {
				fmt.Fprintf(w, "  %s: %.4f\n", name, trial.Metrics.Get(name))
			}
		}
		if len(trial.Violations) > 0 {
			fmt.Fprintf(w, "Violations: %v\n", trial.Violations)
		}
		if trial.Err != "" {
			fmt.Fprintf(w, "Error: %s\n", trial.Err)
		}
		fmt.Fprintln(w)
	}
}

// FormatParameterSet formats a parameter set as a string
func FormatParameterSet(params core.ParameterSet) string {
	result := "{"
	for i, name := range params.Names() {
		if i > 0 {
			result += ", "
		}
		result += fmt.Sprintf("%s: %s", name, formatValue(params[name]))
	}
	return result + "}"
}

func formatValue(value any) string {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
