package dht

import (
	"errors"
	"fmt"
	"math"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
)

// MinInterval is the shortest period the sensor can be sampled at.
const MinInterval = 2 * time.Second

// Sense performs one acquisition and stores the result in env.
func (s *Sensor) Sense(env *physic.Env) error {
	env.Temperature = 0
	env.Pressure = 0
	env.Humidity = 0

	o := s.Read()
	if !o.OK() {
		return o.Err
	}
	env.Temperature = physic.ZeroCelsius + physic.Temperature(math.Round(o.Reading.Celsius*10))*(physic.Celsius/10)
	env.Humidity = physic.RelativeHumidity(math.Round(o.Reading.Humidity*10)) * physic.MilliRH
	return nil
}

// SenseContinuous acquires every interval until Halt. Failed acquisitions
// are skipped.
func (s *Sensor) SenseContinuous(interval time.Duration) (<-chan physic.Env, error) {
	if interval < MinInterval {
		return nil, fmt.Errorf("dht: interval %s below minimum %s", interval, MinInterval)
	}

	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return nil, errors.New("dht: sense continuous already running")
	}
	stop := make(chan struct{})
	s.stop = stop
	s.mu.Unlock()

	ch := make(chan physic.Env, 16)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				var e physic.Env
				if err := s.Sense(&e); err != nil {
					s.logger.Debug("continuous sense skipped", "error", err)
					continue
				}
				select {
				case ch <- e:
				case <-stop:
					return
				}
			}
		}
	}()
	return ch, nil
}

// Precision reports the sensor resolution: 0.1 °C and 0.1 %RH.
func (s *Sensor) Precision(env *physic.Env) {
	env.Temperature = physic.Celsius / 10
	env.Pressure = 0
	env.Humidity = physic.MilliRH
}

// Halt stops SenseContinuous. The line is already released to input after
// every attempt.
func (s *Sensor) Halt() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	return nil
}

func (s *Sensor) String() string {
	return fmt.Sprintf("dht22: %s", s.pin)
}

var _ conn.Resource = &Sensor{}
var _ physic.SenseEnv = &Sensor{}
