package gpio

import (
	"fmt"
	"sync"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Periph drives lines through periph.io's host drivers.
type Periph struct {
	once sync.Once
	err  error
}

func NewPeriph() *Periph { return &Periph{} }

func (p *Periph) Name() string { return "periph" }

func (p *Periph) Init() error {
	p.once.Do(func() {
		if _, err := host.Init(); err != nil {
			p.err = fmt.Errorf("%w: periph host: %v", ErrInit, err)
		}
	})
	return p.err
}

func (p *Periph) Open(pin Pin) (Line, error) {
	io := gpioreg.ByName(fmt.Sprintf("GPIO%d", pin.BCM))
	if io == nil {
		return nil, fmt.Errorf("%w: %s not registered", ErrInvalidPin, pin)
	}
	return &periphLine{pin: io}, nil
}

func (p *Periph) Close() error { return nil }

type periphLine struct {
	pin pgpio.PinIO
}

func (l *periphLine) SetMode(m Mode) error {
	if m == Output {
		return l.pin.Out(pgpio.High)
	}
	return l.pin.In(pgpio.PullUp, pgpio.NoEdge)
}

func (l *periphLine) Write(v Level) error { return l.pin.Out(pgpio.Level(v)) }
func (l *periphLine) Read() Level         { return Level(l.pin.Read()) }
func (l *periphLine) SleepMicros(n int)   { SleepMicros(n) }
func (l *periphLine) SleepMillis(n int)   { SleepMillis(n) }
