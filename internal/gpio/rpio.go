package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIO drives lines through /dev/gpiomem register access.
type RPIO struct {
	mu     sync.Mutex
	opened bool
}

func NewRPIO() *RPIO { return &RPIO{} }

func (r *RPIO) Name() string { return "rpio" }

func (r *RPIO) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opened {
		return nil
	}
	if err := rpio.Open(); err != nil {
		return fmt.Errorf("%w: rpio: %v", ErrInit, err)
	}
	r.opened = true
	return nil
}

func (r *RPIO) Open(pin Pin) (Line, error) {
	if pin.BCM < 0 || pin.BCM > maxBCM {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPin, pin)
	}
	return &rpioLine{pin: rpio.Pin(pin.BCM)}, nil
}

func (r *RPIO) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.opened {
		return nil
	}
	r.opened = false
	return rpio.Close()
}

type rpioLine struct {
	pin rpio.Pin
}

func (l *rpioLine) SetMode(m Mode) error {
	if m == Output {
		l.pin.Output()
		return nil
	}
	l.pin.Input()
	l.pin.PullUp()
	return nil
}

func (l *rpioLine) Write(v Level) error {
	if v == High {
		l.pin.High()
	} else {
		l.pin.Low()
	}
	return nil
}

func (l *rpioLine) Read() Level       { return l.pin.Read() == rpio.High }
func (l *rpioLine) SleepMicros(n int) { SleepMicros(n) }
func (l *rpioLine) SleepMillis(n int) { SleepMillis(n) }
