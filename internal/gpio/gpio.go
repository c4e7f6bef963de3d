package gpio

import (
	"errors"
	"time"
)

// Level is the logic level of a line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "High"
	}
	return "Low"
}

// Mode is the direction of a line.
type Mode int

const (
	Input Mode = iota
	Output
)

func (m Mode) String() string {
	if m == Output {
		return "Output"
	}
	return "Input"
}

var (
	// ErrInit is returned when the GPIO subsystem cannot be brought up.
	ErrInit = errors.New("gpio: subsystem init failed")
	// ErrInvalidPin is returned for pin identifiers that do not name a usable line.
	ErrInvalidPin = errors.New("gpio: invalid pin")
)

// Line is the capability a sensor driver needs from one resolved pin.
// Implementations are not safe for concurrent use.
type Line interface {
	SetMode(m Mode) error
	Write(l Level) error
	Read() Level
	// SleepMicros blocks for n microseconds. Sub-millisecond waits must be
	// accurate, so implementations spin rather than yield to the scheduler.
	SleepMicros(n int)
	SleepMillis(n int)
}

// Driver is a GPIO backend. Init is idempotent and is called once per
// process; lines returned by Open stay valid until Close.
type Driver interface {
	Name() string
	Init() error
	Open(pin Pin) (Line, error)
	Close() error
}

// SleepMicros spins for n microseconds below one millisecond and sleeps
// otherwise.
func SleepMicros(n int) {
	d := time.Duration(n) * time.Microsecond
	if d <= 0 {
		return
	}
	if d >= time.Millisecond {
		time.Sleep(d)
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}

// SleepMillis sleeps for n milliseconds.
func SleepMillis(n int) {
	if n > 0 {
		time.Sleep(time.Duration(n) * time.Millisecond)
	}
}
