package dht

import "github.com/shaunagostinho/dht22/internal/gpio"

// Pulse is one run of constant level on the line.
type Pulse struct {
	Level gpio.Level
	Width int // ticks
}

// sample reads the line until the watchdog budget is spent or a high run
// reaches abort ticks, handing every completed high pulse to emit. Each read
// costs one tick of the budget. A non-nil error from emit stops sampling and
// is returned as is; otherwise the result is ErrPulseAbort or ErrWatchdog.
func sample(line gpio.Line, watchdog, abort int, emit func(Pulse) error) error {
	width := 0
	for ticks := 0; ticks < watchdog; ticks++ {
		if line.Read() == gpio.High {
			width++
			if width >= abort {
				return ErrPulseAbort
			}
			line.SleepMicros(1)
			continue
		}
		if width > 0 {
			if err := emit(Pulse{Level: gpio.High, Width: width}); err != nil {
				return err
			}
			width = 0
		}
	}
	return ErrWatchdog
}
