// Package sink forwards acquisition outcomes to external systems.
package sink

import (
	"context"
	"time"

	"github.com/shaunagostinho/dht22/internal/dht"
	"github.com/shaunagostinho/dht22/internal/report"
)

// Sink is the interface every output backend implements.
type Sink interface {
	// Name returns a short identifier used in logs.
	Name() string
	// Connect opens the connection. It blocks until connected, ctx is done
	// or the attempt fails.
	Connect(ctx context.Context) error
	// Publish delivers one event. It fails if the sink is not connected.
	Publish(e Event) error
	Close() error
}

// Event is one finished acquisition.
type Event struct {
	Station  string
	Sequence int
	Time     time.Time
	Outcome  dht.Outcome
}

// Telemetry is the JSON document published for an Event.
type Telemetry struct {
	StationID    string    `json:"station_id"`
	Timestamp    time.Time `json:"timestamp"`
	Temperature  *float64  `json:"temperature_c,omitempty"`
	TemperatureF *float64  `json:"temperature_f,omitempty"`
	Humidity     *float64  `json:"humidity_pct,omitempty"`
	Sequence     int       `json:"sequence"`
	Attempts     int       `json:"attempts"`
	Error        string    `json:"error"`
}

// NewTelemetry converts e. Measurement fields are omitted for failed
// acquisitions.
func NewTelemetry(e Event) Telemetry {
	t := Telemetry{
		StationID: e.Station,
		Timestamp: e.Time,
		Sequence:  e.Sequence,
		Attempts:  e.Outcome.Attempts,
		Error:     report.Code(e.Outcome.Status),
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = time.Now()
	}
	if e.Outcome.OK() {
		r := e.Outcome.Reading
		c, f, h := r.Celsius, r.Fahrenheit(), r.Humidity
		t.Temperature, t.TemperatureF, t.Humidity = &c, &f, &h
	}
	return t
}
