package dht

import (
	"fmt"
	"math"
)

// Frame is one sensor transmission:
// humidity high, humidity low, temperature high, temperature low, checksum.
type Frame [FrameLen]byte

// Reading is a validated measurement.
type Reading struct {
	Humidity float64 // %RH
	Celsius  float64
}

// Fahrenheit converts Celsius, rounded to two decimals.
func (r Reading) Fahrenheit() float64 {
	return math.Round((r.Celsius*9/5+32)*100) / 100
}

// Checksum is the low byte of the sum of the four payload bytes.
func (f Frame) Checksum() byte {
	return f[0] + f[1] + f[2] + f[3]
}

// Validate checks the checksum and converts the payload. A frame whose
// checksum is zero is rejected even when it matches, since an idle or
// disconnected line decodes to all zeros.
//
// Temperature comes from the low byte alone; the high byte only carries the
// sign, and only the exact value 0x80 means negative.
func (f Frame) Validate() (Reading, error) {
	sum := f.Checksum()
	if sum != f[4] {
		return Reading{}, fmt.Errorf("%w: computed %#02x, frame %#02x", ErrChecksum, sum, f[4])
	}
	if sum == 0 {
		return Reading{}, ErrEmptyFrame
	}

	r := Reading{
		Humidity: float64(uint16(f[0])<<8|uint16(f[1])) / 10,
		Celsius:  float64(f[3]) / 10,
	}
	if f[2] == signNegative {
		r.Celsius = -r.Celsius
	}
	return r, nil
}

// strayHighByte reports a temperature high byte other than 0x00 or 0x80.
// Such frames are still decoded with the rule above.
func (f Frame) strayHighByte() bool {
	return f[2] != 0 && f[2] != signNegative
}
