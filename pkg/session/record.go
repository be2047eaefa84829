package session

import "time"

// TimeLayout is the layout of Record.ObservedAt.
const TimeLayout = "2006-01-02 15:04:05"

// Record is one evaluated calculation. Records are values and are never
// modified after they are appended to a session.
type Record struct {
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	R              float64 `json:"r"`
	InRegion       bool    `json:"isInArea"`
	ObservedAt     string  `json:"currentTime"`
	DurationMillis float64 `json:"executionTime"`
}

// NewRecord builds a Record stamped with observedAt formatted in TimeLayout.
func NewRecord(x, y, r float64, inRegion bool, observedAt time.Time, took time.Duration) Record {
	return Record{
		X:              x,
		Y:              y,
		R:              r,
		InRegion:       inRegion,
		ObservedAt:     observedAt.Format(TimeLayout),
		DurationMillis: float64(took.Nanoseconds()) / 1e6,
	}
}

func reversed(records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	return out
}

func cloned(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	return out
}
