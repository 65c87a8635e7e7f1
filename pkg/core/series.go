package core

import "golang.org/x/exp/constraints"

// Series is a time series of ordered values
type Series[T constraints.Ordered] []T

// Above reports whether the value at index i is strictly greater than ref at the same index
func (s Series[T]) Above(ref Series[T], i int) bool {
	return s[i] > ref[i]
}

// Crossover detects when this series crosses above the reference series at index i
func (s Series[T]) Crossover(ref Series[T], i int) bool {
	if i < 1 {
		return false
	}
	return s[i] > ref[i] && s[i-1] <= ref[i-1]
}

// Crossunder detects when this series crosses below the reference series at index i
func (s Series[T]) Crossunder(ref Series[T], i int) bool {
	if i < 1 {
		return false
	}
	return s[i] <= ref[i] && s[i-1] > ref[i-1]
}
