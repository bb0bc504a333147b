package types

import (
	"strconv"
	"strings"
	"time"
)

// Layouts used wherever a reading is written out as text.
const (
	DateLayout = "02-01-2006"
	TimeLayout = "15:04:05"
)

// Reading is a single timestamped temperature measurement
type Reading struct {
	Timestamp time.Time
	Value     float64
}

// NewReading stamps value with the given time
func NewReading(value float64, at time.Time) Reading {
	return Reading{Timestamp: at, Value: value}
}

// Date returns the reading date as DD-MM-YYYY
func (r Reading) Date() string {
	return r.Timestamp.Format(DateLayout)
}

// Clock returns the reading time of day as HH:MM:SS
func (r Reading) Clock() string {
	return r.Timestamp.Format(TimeLayout)
}

// FormattedValue renders the value with at least one decimal place (6 -> "6.0").
func (r Reading) FormattedValue() string {
	return FormatValue(r.Value)
}

// FormatValue renders a temperature the way readings are shown to people
func FormatValue(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
