package core

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Family is the tagged variant that selects a signal rule
type Family string

const (
	FamilyTrendFollowing Family = "trend-following"
	FamilyMeanReversion  Family = "mean-reversion"
	FamilyMomentum       Family = "momentum"
	FamilyHybrid         Family = "hybrid"
)

// Families lists every supported strategy family in a stable order
func Families() []Family {
	return []Family{FamilyTrendFollowing, FamilyMeanReversion, FamilyMomentum, FamilyHybrid}
}

// ParseFamily converts a family tag into a Family
func ParseFamily(tag string) (Family, error) {
	family := Family(strings.ToLower(strings.TrimSpace(tag)))
	if !slices.Contains(Families(), family) {
		return "", fmt.Errorf("%w: unknown strategy family %q", ErrInvalidConfiguration, tag)
	}
	return family, nil
}

// ParameterType defines the data type of a parameter
type ParameterType string

const (
	// TypeInt represents integer parameters
	TypeInt ParameterType = "int"
	// TypeFloat represents floating-point parameters
	TypeFloat ParameterType = "float"
	// TypeBool represents boolean parameters
	TypeBool ParameterType = "bool"
	// TypeCategorical represents categorical parameters with predefined options
	TypeCategorical ParameterType = "categorical"
)

// Parameter declares a tunable strategy parameter and its valid range
type Parameter struct {
	Name        string        // Name of the parameter
	Description string        // Description of what the parameter does
	Type        ParameterType // Type of the parameter
	Default     any           // Default value
	Min         float64       // Minimum value (numeric parameters)
	Max         float64       // Maximum value (numeric parameters)
	Step        float64       // Step size (numeric parameters, grid sampling)
	Options     []any         // Possible values (categorical parameters)
}

// Validate checks that the declaration itself is usable
func (p Parameter) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: parameter without name", ErrInvalidConfiguration)
	}

	switch p.Type {
	case TypeInt, TypeFloat:
		if math.IsNaN(p.Min) || math.IsNaN(p.Max) || p.Min > p.Max {
			return fmt.Errorf("%w: parameter %s has invalid range [%v, %v]", ErrInvalidConfiguration, p.Name, p.Min, p.Max)
		}
		if p.Step < 0 {
			return fmt.Errorf("%w: parameter %s has negative step", ErrInvalidConfiguration, p.Name)
		}
	case TypeCategorical:
		if len(p.Options) == 0 {
			return fmt.Errorf("%w: parameter %s must have options", ErrInvalidConfiguration, p.Name)
		}
	case TypeBool:
	default:
		return fmt.Errorf("%w: parameter %s has unsupported type %q", ErrInvalidConfiguration, p.Name, p.Type)
	}

	return nil
}

// Check validates a single value against the declaration
func (p Parameter) Check(value any) error {
	switch p.Type {
	case TypeInt:
		v, ok := asInt(value)
		if !ok {
			return fmt.Errorf("%w: parameter %s must be an integer", ErrInvalidConfiguration, p.Name)
		}
		if float64(v) < p.Min || float64(v) > p.Max {
			return fmt.Errorf("%w: parameter %s=%d outside [%v, %v]", ErrInvalidConfiguration, p.Name, v, p.Min, p.Max)
		}
	case TypeFloat:
		v, ok := asFloat(value)
		if !ok || math.IsNaN(v) {
			return fmt.Errorf("%w: parameter %s must be a number", ErrInvalidConfiguration, p.Name)
		}
		if v < p.Min || v > p.Max {
			return fmt.Errorf("%w: parameter %s=%v outside [%v, %v]", ErrInvalidConfiguration, p.Name, v, p.Min, p.Max)
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: parameter %s must be a boolean", ErrInvalidConfiguration, p.Name)
		}
	case TypeCategorical:
		if !slices.Contains(p.Options, value) {
			return fmt.Errorf("%w: parameter %s has invalid value %v", ErrInvalidConfiguration, p.Name, value)
		}
	}
	return nil
}

// ParameterSet is a parameter assignment, name to value
type ParameterSet map[string]any

// Clone returns a shallow copy of the set
func (s ParameterSet) Clone() ParameterSet {
	clone := make(ParameterSet, len(s))
	for name, value := range s {
		clone[name] = value
	}
	return clone
}

// Names returns the parameter names in sorted order
func (s ParameterSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Format renders the set as sorted name=value pairs
func (s ParameterSet) Format() string {
	pairs := make([]string, 0, len(s))
	for _, name := range s.Names() {
		pairs = append(pairs, fmt.Sprintf("%s=%v", name, s[name]))
	}
	return strings.Join(pairs, ", ")
}

// Int reads an integer parameter, falling back when missing or mistyped
func (s ParameterSet) Int(name string, fallback int) int {
	if v, ok := asInt(s[name]); ok {
		return v
	}
	return fallback
}

// Float reads a numeric parameter, falling back when missing or mistyped
func (s ParameterSet) Float(name string, fallback float64) float64 {
	if v, ok := asFloat(s[name]); ok {
		return v
	}
	return fallback
}

// Bool reads a boolean parameter, falling back when missing or mistyped
func (s ParameterSet) Bool(name string, fallback bool) bool {
	if v, ok := s[name].(bool); ok {
		return v
	}
	return fallback
}

// String reads a categorical parameter as a string
func (s ParameterSet) String(name string, fallback string) string {
	if v, ok := s[name]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return fallback
}

// ValidateParameterSet checks that a parameter set contains every declared parameter
// with a value of the correct type inside the declared range
func ValidateParameterSet(params ParameterSet, definitions []Parameter) error {
	for _, def := range definitions {
		value, exists := params[def.Name]
		if !exists {
			return fmt.Errorf("%w: missing parameter: %s", ErrInvalidConfiguration, def.Name)
		}
		if err := def.Check(value); err != nil {
			return err
		}
	}
	return nil
}

// WithDefaults returns a copy of params where every missing declared parameter takes its default
func WithDefaults(params ParameterSet, definitions []Parameter) ParameterSet {
	merged := params.Clone()
	for _, def := range definitions {
		if _, ok := merged[def.Name]; !ok {
			merged[def.Name] = def.Default
		}
	}
	return merged
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int(v), true
		}
	}
	return 0, false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
