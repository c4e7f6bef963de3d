package gpio

import (
	"sync"
	"time"
)

// Segment is a stretch of constant level on a simulated line.
type Segment struct {
	Level  Level
	Micros int
}

// Responder produces the waveform a simulated device drives after the n-th
// start signal (1-based). A nil result leaves the line idle at its pull-up
// level.
type Responder func(n int) []Segment

// DefaultReadCost is the virtual time one Read takes on a SimLine.
const DefaultReadCost = 200 * time.Nanosecond

// minStartLow is how long the host must hold the line low before a
// simulated device treats the release as a start signal.
const minStartLow = time.Millisecond

// SimLine is a Line backed by a virtual clock. Sleeps advance the clock
// instead of blocking, so a full exchange completes instantly while keeping
// the timing relationships a real device would see.
type SimLine struct {
	mu sync.Mutex

	respond  Responder
	readCost time.Duration

	now      time.Duration
	mode     Mode
	driven   Level
	lowSince time.Duration
	train    []Segment
	trainAt  time.Duration

	handshakes int
	reads      int
	pauses     []int
}

func NewSimLine(respond Responder) *SimLine {
	return &SimLine{
		respond:  respond,
		readCost: DefaultReadCost,
		driven:   High,
	}
}

func (s *SimLine) SetMode(m Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m == Input && s.mode == Output && s.driven == Low && s.now-s.lowSince >= minStartLow {
		s.handshakes++
		s.train = nil
		if s.respond != nil {
			s.train = s.respond(s.handshakes)
		}
		s.trainAt = s.now
	}
	if m == Output && s.mode != Output {
		s.driven = High
	}
	s.mode = m
	return nil
}

func (s *SimLine) Write(l Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l == Low && s.driven == High {
		s.lowSince = s.now
	}
	s.driven = l
	return nil
}

func (s *SimLine) Read() Level {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	l := s.levelAt(s.now)
	s.now += s.readCost
	return l
}

func (s *SimLine) levelAt(t time.Duration) Level {
	if s.mode == Output {
		return s.driven
	}
	offset := t - s.trainAt
	for _, seg := range s.train {
		d := time.Duration(seg.Micros) * time.Microsecond
		if offset < d {
			return seg.Level
		}
		offset -= d
	}
	return High
}

func (s *SimLine) SleepMicros(n int) {
	s.mu.Lock()
	s.now += time.Duration(n) * time.Microsecond
	s.mu.Unlock()
}

func (s *SimLine) SleepMillis(n int) {
	s.mu.Lock()
	s.pauses = append(s.pauses, n)
	s.now += time.Duration(n) * time.Millisecond
	s.mu.Unlock()
}

// Handshakes is the number of start signals the line has seen.
func (s *SimLine) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

// Reads is the number of Read calls made so far.
func (s *SimLine) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Pauses lists every SleepMillis argument in call order.
func (s *SimLine) Pauses() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.pauses...)
}

// Mode reports the current direction of the line.
func (s *SimLine) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Elapsed is the virtual time consumed so far.
func (s *SimLine) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// DHT22 response timing in microseconds.
const (
	dhtReleaseHigh = 30
	dhtAckLow      = 80
	dhtAckHigh     = 80
	dhtBitLow      = 50
	dhtZeroHigh    = 26
	dhtOneHigh     = 70
)

// DHTResponse returns the waveform a DHT22 drives for a 5-byte frame: the
// pull-up interval after release, the 80/80 µs acknowledgement, then 40 bits
// MSB-first, each a 50 µs low followed by a 26 µs (0) or 70 µs (1) high.
func DHTResponse(frame [5]byte) []Segment {
	segs := make([]Segment, 0, 3+2*40+1)
	segs = append(segs,
		Segment{High, dhtReleaseHigh},
		Segment{Low, dhtAckLow},
		Segment{High, dhtAckHigh},
	)
	for _, b := range frame {
		for i := 7; i >= 0; i-- {
			high := dhtZeroHigh
			if b&(1<<uint(i)) != 0 {
				high = dhtOneHigh
			}
			segs = append(segs, Segment{Low, dhtBitLow}, Segment{High, high})
		}
	}
	return append(segs, Segment{Low, dhtBitLow})
}

// EncodeDHT packs a humidity/temperature pair the way the sensor does:
// humidity and |temperature| in tenths, 0x80 in the temperature high byte
// for negative values, checksum in the last byte.
func EncodeDHT(humidity, celsius float64) [5]byte {
	var f [5]byte
	h := uint16(humidity*10 + 0.5)
	f[0], f[1] = byte(h>>8), byte(h)
	if celsius < 0 {
		f[2] = 0x80
		celsius = -celsius
	}
	t := int(celsius*10 + 0.5)
	if t > 0xff {
		t = 0xff
	}
	f[3] = byte(t)
	f[4] = f[0] + f[1] + f[2] + f[3]
	return f
}
