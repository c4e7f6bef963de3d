// Package dht reads DHT22/AM2302 temperature and humidity sensors over their
// single-wire pulse-width protocol.
//
// An exchange starts with the host holding the line low for 20 ms and then
// releasing it. The sensor answers with two acknowledgement pulses followed
// by 40 data bits, MSB first. Each bit is a high pulse whose width encodes
// its value: short for 0, long for 1. Widths are measured in sampler ticks,
// one tick being one read of the line plus a 1 µs wait while the line is high.
package dht

import (
	"errors"
	"time"
)

// Pulse width thresholds, in ticks.
const (
	zeroMaxTicks = 30 // widths below are a 0 bit
	oneMaxTicks  = 85 // widths below (and >= zeroMaxTicks) are a 1 bit
)

const (
	// DefaultPulseAbortTicks ends sampling once the line has been high this
	// long. After the last bit the sensor releases the line for good.
	DefaultPulseAbortTicks = 200
	// DefaultWatchdogTicks bounds the number of line reads per attempt.
	DefaultWatchdogTicks = 50000
	DefaultMaxRetries    = 3
	DefaultStartLow      = 20 * time.Millisecond
	DefaultRetryDelay    = 2000 * time.Millisecond

	// handshakePulses is the number of leading high pulses that carry no data.
	handshakePulses = 2

	FrameLen  = 5
	frameBits = FrameLen * 8

	// signNegative is the temperature high byte that marks a negative reading.
	signNegative = 0x80
)

var (
	ErrUnclassifiable = errors.New("dht: unclassifiable pulse width")
	ErrOverrun        = errors.New("dht: more than 40 data bits")
	ErrIncomplete     = errors.New("dht: incomplete frame")
	ErrPulseAbort     = errors.New("dht: line held high")
	ErrWatchdog       = errors.New("dht: sampling budget exhausted")
	ErrChecksum       = errors.New("dht: checksum mismatch")
	ErrEmptyFrame     = errors.New("dht: all-zero frame")
	ErrNoData         = errors.New("dht: no valid reading")
)

// Config tunes an acquisition. Zero fields take the package defaults.
type Config struct {
	MaxRetries      int
	StartLow        time.Duration
	RetryDelay      time.Duration
	WatchdogTicks   int
	PulseAbortTicks int
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		StartLow:        DefaultStartLow,
		RetryDelay:      DefaultRetryDelay,
		WatchdogTicks:   DefaultWatchdogTicks,
		PulseAbortTicks: DefaultPulseAbortTicks,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.StartLow <= 0 {
		c.StartLow = d.StartLow
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.WatchdogTicks <= 0 {
		c.WatchdogTicks = d.WatchdogTicks
	}
	if c.PulseAbortTicks <= 0 {
		c.PulseAbortTicks = d.PulseAbortTicks
	}
	return c
}
