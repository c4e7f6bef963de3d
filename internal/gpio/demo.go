package gpio

import (
	"math"
	"math/rand"
	"sync"
)

// Demo simulates a DHT22 on every opened pin for development and testing.
type Demo struct {
	mu  sync.Mutex
	t   float64 // virtual time accumulator
	rng *rand.Rand

	// FailureRate is the probability a response carries a corrupted checksum.
	FailureRate float64
}

func NewDemo(seed int64) *Demo {
	return &Demo{rng: rand.New(rand.NewSource(seed)), FailureRate: 0.05}
}

func (d *Demo) Name() string { return "demo" }
func (d *Demo) Init() error  { return nil }
func (d *Demo) Close() error { return nil }

func (d *Demo) Open(pin Pin) (Line, error) {
	return NewSimLine(d.respond), nil
}

func (d *Demo) respond(int) []Segment {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.t += 1

	// Slow daily-ish swing with a little sensor noise. Temperature stays
	// within what the single-byte temperature field can carry.
	celsius := 21.5 + 3.5*math.Sin(d.t*0.05) + d.rng.Float64()*0.3
	humidity := 45 + 15*math.Sin(d.t*0.02) + d.rng.Float64()*2

	frame := EncodeDHT(humidity, celsius)
	if d.rng.Float64() < d.FailureRate {
		frame[4] ^= 0x01
	}
	return DHTResponse(frame)
}
