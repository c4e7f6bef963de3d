package dht

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shaunagostinho/dht22/internal/gpio"
)

// Status is the final state of an acquisition.
type Status int

const (
	StatusSuccess Status = iota
	StatusNoData
	StatusGPIOInitFailed
	StatusInvalidPin
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNoData:
		return "no_data"
	case StatusGPIOInitFailed:
		return "gpio_init_failed"
	case StatusInvalidPin:
		return "invalid_pin"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the single result of an acquisition. Reading is only set on
// StatusSuccess. Attempts is zero when the line could not be opened.
type Outcome struct {
	Status   Status
	Reading  Reading
	Attempts int
	Err      error
}

func (o Outcome) OK() bool { return o.Status == StatusSuccess }

// OpenFailure classifies an error returned by Open.
func OpenFailure(err error) Outcome {
	if errors.Is(err, gpio.ErrInit) {
		return Outcome{Status: StatusGPIOInitFailed, Err: err}
	}
	return Outcome{Status: StatusInvalidPin, Err: err}
}

type attemptStatus int

const (
	attemptValid attemptStatus = iota
	attemptInvalid
	attemptTimeout
)

func (s attemptStatus) String() string {
	switch s {
	case attemptValid:
		return "valid"
	case attemptInvalid:
		return "invalid"
	default:
		return "timeout"
	}
}

type attemptResult struct {
	status  attemptStatus
	reading Reading
	err     error
}

// Sensor is a DHT22 on one line. A Sensor serializes its acquisitions.
type Sensor struct {
	mu     sync.Mutex
	pin    gpio.Pin
	line   gpio.Line
	cfg    Config
	logger *slog.Logger

	stop chan struct{}
}

// Open resolves pin, initializes drv and claims the line. Errors wrap
// gpio.ErrInvalidPin or gpio.ErrInit. The pin name is checked before the
// driver is touched.
func Open(drv gpio.Driver, pin string, cfg Config, logger *slog.Logger) (*Sensor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := gpio.ParsePin(pin)
	if err != nil {
		return nil, err
	}
	if err := drv.Init(); err != nil {
		if !errors.Is(err, gpio.ErrInit) {
			err = fmt.Errorf("%w: %v", gpio.ErrInit, err)
		}
		return nil, err
	}
	line, err := drv.Open(p)
	if err != nil {
		if !errors.Is(err, gpio.ErrInvalidPin) {
			err = fmt.Errorf("%w: %v", gpio.ErrInvalidPin, err)
		}
		return nil, err
	}
	return New(line, p, cfg, logger.With("component", "dht", "pin", p.String(), "driver", drv.Name())), nil
}

// New wraps an already opened line.
func New(line gpio.Line, pin gpio.Pin, cfg Config, logger *slog.Logger) *Sensor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sensor{
		pin:    pin,
		line:   line,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Acquire opens the sensor and performs one acquisition. Open failures are
// reported as StatusGPIOInitFailed or StatusInvalidPin.
func Acquire(drv gpio.Driver, pin string, cfg Config, logger *slog.Logger) Outcome {
	s, err := Open(drv, pin, cfg, logger)
	if err != nil {
		return OpenFailure(err)
	}
	return s.Read()
}

// Read performs one acquisition: up to MaxRetries attempts with RetryDelay
// between them, stopping at the first valid frame.
func (s *Sensor) Read() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last error
	for n := 1; n <= s.cfg.MaxRetries; n++ {
		if n > 1 {
			s.line.SleepMillis(int(s.cfg.RetryDelay / time.Millisecond))
		}
		res := s.attempt()
		if res.status == attemptValid {
			s.logger.Debug("reading acquired",
				"attempt", n,
				"celsius", res.reading.Celsius,
				"humidity", res.reading.Humidity,
			)
			return Outcome{Status: StatusSuccess, Reading: res.reading, Attempts: n}
		}
		s.logger.Debug("attempt failed", "attempt", n, "result", res.status, "error", res.err)
		last = res.err
	}

	s.logger.Info("no valid reading", "attempts", s.cfg.MaxRetries, "last_error", last)
	return Outcome{
		Status:   StatusNoData,
		Attempts: s.cfg.MaxRetries,
		Err:      fmt.Errorf("%w after %d attempts: %v", ErrNoData, s.cfg.MaxRetries, last),
	}
}

func (s *Sensor) attempt() attemptResult {
	if err := s.startSignal(); err != nil {
		_ = s.line.SetMode(gpio.Input)
		return attemptResult{status: attemptTimeout, err: fmt.Errorf("start signal: %w", err)}
	}

	var dec decoder
	gc := debug.SetGCPercent(-1)
	err := sample(s.line, s.cfg.WatchdogTicks, s.cfg.PulseAbortTicks, dec.push)
	debug.SetGCPercent(gc)

	if errors.Is(err, ErrUnclassifiable) || errors.Is(err, ErrOverrun) {
		return attemptResult{status: attemptInvalid, err: err}
	}
	if !dec.complete() {
		return attemptResult{
			status: attemptTimeout,
			err:    fmt.Errorf("%w: %d of %d bits: %v", ErrIncomplete, dec.dataBits(), frameBits, err),
		}
	}

	r, err := dec.frame.Validate()
	if err != nil {
		return attemptResult{status: attemptInvalid, err: fmt.Errorf("frame % x: %w", dec.frame[:], err)}
	}
	if dec.frame.strayHighByte() {
		s.logger.Warn("temperature high byte ignored",
			"high_byte", fmt.Sprintf("%#02x", dec.frame[2]),
			"frame", fmt.Sprintf("% x", dec.frame[:]),
		)
	}
	return attemptResult{status: attemptValid, reading: r}
}

// startSignal drives the line low for StartLow and releases it to input.
func (s *Sensor) startSignal() error {
	if err := s.line.SetMode(gpio.Output); err != nil {
		return err
	}
	if err := s.line.Write(gpio.Low); err != nil {
		return err
	}
	s.line.SleepMillis(int(s.cfg.StartLow / time.Millisecond))
	return s.line.SetMode(gpio.Input)
}
