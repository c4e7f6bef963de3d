// Package report renders acquisition outcomes for the command line.
package report

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/shaunagostinho/dht22/internal/dht"
)

// Error codes carried in Record.Error.
const (
	CodeNone           = ""
	CodeNoData         = "NO_DATA"
	CodeGPIOInitFailed = "GPIO_INIT_FAILED"
	CodeInvalidGPIO    = "INVALID_GPIO"
)

// Process exit statuses.
const (
	ExitOK = 0
	// ExitUsage covers malformed invocations and pins that do not resolve.
	ExitUsage = 1
	// ExitGPIOInit is the status a -126 return becomes on POSIX hosts.
	ExitGPIOInit = 130
)

// Fixed2 is a float that always marshals with two decimals.
type Fixed2 float64

func (f Fixed2) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, float64(f), 'f', 2, 64), nil
}

// Record is the JSON object printed once per run.
type Record struct {
	Celsius  Fixed2 `json:"celsius"`
	Humidity Fixed2 `json:"humidity"`
	Error    string `json:"error"`
}

// Code maps a status to its error code.
func Code(s dht.Status) string {
	switch s {
	case dht.StatusSuccess:
		return CodeNone
	case dht.StatusGPIOInitFailed:
		return CodeGPIOInitFailed
	case dht.StatusInvalidPin:
		return CodeInvalidGPIO
	default:
		return CodeNoData
	}
}

// FromOutcome builds the record for o. Failed outcomes carry zero values.
func FromOutcome(o dht.Outcome) Record {
	r := Record{Error: Code(o.Status)}
	if o.OK() {
		r.Celsius = Fixed2(o.Reading.Celsius)
		r.Humidity = Fixed2(o.Reading.Humidity)
	}
	return r
}

// ExitCode is the process status for o.
func ExitCode(o dht.Outcome) int {
	switch o.Status {
	case dht.StatusGPIOInitFailed:
		return ExitGPIOInit
	case dht.StatusInvalidPin:
		return ExitUsage
	default:
		return ExitOK
	}
}

// Write prints r as one JSON line.
func Write(w io.Writer, r Record) error {
	return json.NewEncoder(w).Encode(r)
}
