package types

import "time"

// AlertState is the hysteresis flag of the threshold alert.
// Armed is true from the rising edge until a reading falls below the threshold.
type AlertState struct {
	Armed bool `json:"armed"`
}

// Alert records a fired threshold alert
type Alert struct {
	ID        string    `json:"id"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	FiredAt   time.Time `json:"fired_at"`
	Message   string    `json:"message"`
	Delivered bool      `json:"delivered"`
}
