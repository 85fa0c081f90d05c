package dto

import (
	"encoding/json"
	"time"
)

// PredictionEvent is broadcast to event feed viewers after every prediction.
type PredictionEvent struct {
	RequestID  string        `json:"requestId"`
	Filename   string        `json:"filename"`
	Status     string        `json:"status"`
	Prediction string        `json:"prediction,omitempty"`
	Confidence float64       `json:"confidence"`
	Message    string        `json:"message,omitempty"`
	Timestamp  time.Time     `json:"timestamp"`
	Duration   time.Duration `json:"durationMs"`
}

// MarshalJSON formats the timestamp as RFC 3339 and the duration in milliseconds.
func (e PredictionEvent) MarshalJSON() ([]byte, error) {
	type Alias PredictionEvent
	return json.Marshal(&struct {
		Timestamp string  `json:"timestamp"`
		Duration  float64 `json:"durationMs"`
		Alias
	}{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Duration:  float64(e.Duration.Microseconds()) / 1000,
		Alias:     (Alias)(e),
	})
}
