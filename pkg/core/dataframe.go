package core

import "time"

// Dataframe is a column oriented view over a bar window.
// Columns are copies; mutating them never touches the source bars.
type Dataframe struct {
	Symbol string

	Close  Series[float64]
	Open   Series[float64]
	High   Series[float64]
	Low    Series[float64]
	Volume Series[float64]

	Time []time.Time

	// Feature columns taken from bar metadata plus indicator output
	Metadata map[string]Series[float64]
}

// NewDataframe builds a dataframe from a time ordered bar window
func NewDataframe(symbol string, bars []Bar) *Dataframe {
	n := len(bars)
	df := &Dataframe{
		Symbol:   symbol,
		Close:    make(Series[float64], n),
		Open:     make(Series[float64], n),
		High:     make(Series[float64], n),
		Low:      make(Series[float64], n),
		Volume:   make(Series[float64], n),
		Time:     make([]time.Time, n),
		Metadata: make(map[string]Series[float64]),
	}

	for i, bar := range bars {
		df.Close[i] = bar.Close
		df.Open[i] = bar.Open
		df.High[i] = bar.High
		df.Low[i] = bar.Low
		df.Volume[i] = bar.Volume
		df.Time[i] = bar.Time

		for key, value := range bar.Metadata {
			column, ok := df.Metadata[key]
			if !ok {
				column = make(Series[float64], n)
				df.Metadata[key] = column
			}
			column[i] = value
		}
	}

	return df
}

// Len returns the number of rows
func (df *Dataframe) Len() int {
	return len(df.Time)
}
