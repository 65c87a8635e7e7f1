package optimizer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/raykavin/walkforward/pkg/core"
)

// Operator compares a metric with a bound
type Operator string

const (
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpEqual        Operator = "=="
)

// two character operators first so ">=" is not read as ">"
var operators = []Operator{OpGreaterEqual, OpLessEqual, OpEqual, OpGreater, OpLess}

// Constraint is a feasibility predicate over aggregated metrics
type Constraint struct {
	Metric core.MetricName `json:"metric"`
	Op     Operator        `json:"op"`
	Value  float64         `json:"value"`
}

// ParseConstraint reads expressions such as "max_drawdown >= -0.25"
func ParseConstraint(expr string) (Constraint, error) {
	for _, op := range operators {
		left, right, found := strings.Cut(expr, string(op))
		if !found {
			continue
		}

		metric, err := core.ParseMetricName(strings.TrimSpace(left))
		if err != nil {
			return Constraint{}, fmt.Errorf("constraint %q: %w", expr, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(right), 64)
		if err != nil {
			return Constraint{}, fmt.Errorf("%w: constraint %q has invalid bound", core.ErrInvalidConfiguration, expr)
		}

		constraint := Constraint{Metric: metric, Op: op, Value: value}
		return constraint, constraint.Validate()
	}
	return Constraint{}, fmt.Errorf("%w: constraint %q has no operator", core.ErrInvalidConfiguration, expr)
}

// Validate checks the metric, the operator and the bound
func (c Constraint) Validate() error {
	if _, err := core.ParseMetricName(string(c.Metric)); err != nil {
		return err
	}
	if math.IsNaN(c.Value) {
		return fmt.Errorf("%w: constraint bound is NaN", core.ErrInvalidConfiguration)
	}
	for _, op := range operators {
		if c.Op == op {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown operator %q", core.ErrInvalidConfiguration, c.Op)
}

// Holds reports whether m satisfies the constraint. An undefined metric never does.
func (c Constraint) Holds(m core.Metrics) bool {
	value := m.Get(c.Metric)
	if math.IsNaN(value) {
		return false
	}

	switch c.Op {
	case OpGreaterEqual:
		return value >= c.Value
	case OpLessEqual:
		return value <= c.Value
	case OpGreater:
		return value > c.Value
	case OpLess:
		return value < c.Value
	case OpEqual:
		return value == c.Value
	}
	return false
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s %s %g", c.Metric, c.Op, c.Value)
}
