package dht

import (
	"errors"
	"math/rand"
	"testing"
)

func TestValidateSign(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		celsius float64
	}{
		{"negative", Frame{0x01, 0x90, 0x80, 0x15, 0x26}, -2.1},
		{"positive", Frame{0x01, 0x90, 0x00, 0x15, 0xa6}, 2.1},
		{"stray high byte ignored", Frame{0x01, 0x90, 0x01, 0x15, 0xa7}, 2.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := tt.frame.Validate()
			if err != nil {
				t.Fatalf("Validate err=%v", err)
			}
			if r.Humidity != 40.0 {
				t.Fatalf("humidity=%v want=40", r.Humidity)
			}
			if r.Celsius != tt.celsius {
				t.Fatalf("celsius=%v want=%v", r.Celsius, tt.celsius)
			}
		})
	}
}

func TestValidateRejectsZeroFrame(t *testing.T) {
	if _, err := (Frame{}).Validate(); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("err=%v want ErrEmptyFrame", err)
	}
	// payload summing to 256 wraps to a zero checksum
	if _, err := (Frame{0x80, 0x80, 0, 0, 0}).Validate(); !errors.Is(err, ErrEmptyFrame) {
		t.Fatalf("wrapped sum err=%v want ErrEmptyFrame", err)
	}
}

func TestValidateChecksumProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	for i := 0; i < 5000; i++ {
		var f Frame
		for j := 0; j < 4; j++ {
			f[j] = byte(rng.Intn(256))
		}
		sum := byte((int(f[0]) + int(f[1]) + int(f[2]) + int(f[3])) % 256)

		f[4] = sum
		r, err := f.Validate()
		if sum == 0 {
			if err == nil {
				t.Fatalf("frame % x accepted with zero checksum", f)
			}
			continue
		}
		if err != nil {
			t.Fatalf("frame % x err=%v", f, err)
		}
		wantH := float64(int(f[0])*256+int(f[1])) / 10
		wantC := float64(f[3]) / 10
		if f[2] == 0x80 {
			wantC = -wantC
		}
		if r.Humidity != wantH || r.Celsius != wantC {
			t.Fatalf("frame % x got=%+v want h=%v c=%v", f, r, wantH, wantC)
		}

		f[4] = sum + byte(1+rng.Intn(255))
		if _, err := f.Validate(); !errors.Is(err, ErrChecksum) {
			t.Fatalf("frame % x err=%v want ErrChecksum", f, err)
		}
	}
}

func TestFahrenheit(t *testing.T) {
	tests := []struct {
		c, f float64
	}{
		{0, 32},
		{-2.1, 28.22},
		{21.3, 70.34},
		{100, 212},
	}
	for _, tt := range tests {
		if got := (Reading{Celsius: tt.c}).Fahrenheit(); got != tt.f {
			t.Fatalf("Fahrenheit(%v)=%v want=%v", tt.c, got, tt.f)
		}
	}
}

func TestStrayHighByte(t *testing.T) {
	for _, b := range []byte{0x00, 0x80} {
		if (Frame{2: b}).strayHighByte() {
			t.Fatalf("%#02x reported as stray", b)
		}
	}
	for _, b := range []byte{0x01, 0x7f, 0x81, 0xff} {
		if !(Frame{2: b}).strayHighByte() {
			t.Fatalf("%#02x not reported as stray", b)
		}
	}
}
