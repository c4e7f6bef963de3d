package dht

import "fmt"

// classify maps a high pulse width to a bit value. ok is false for widths
// too long to be either.
func classify(width int) (bit byte, ok bool) {
	switch {
	case width < zeroMaxTicks:
		return 0, true
	case width < oneMaxTicks:
		return 1, true
	default:
		return 0, false
	}
}

// decoder packs high pulses into a frame for a single attempt.
type decoder struct {
	pulses int // high pulses seen, including the acknowledgement
	acc    byte
	bits   int // bits in acc
	pos    int // next frame byte
	frame  Frame
}

func (d *decoder) push(p Pulse) error {
	d.pulses++
	bit, ok := classify(p.Width)
	if !ok {
		return fmt.Errorf("%w: %d ticks at pulse %d", ErrUnclassifiable, p.Width, d.pulses)
	}
	// Handshake pulses are classified like data bits but never stored.
	if d.pulses <= handshakePulses {
		return nil
	}
	if d.pos >= FrameLen {
		return ErrOverrun
	}

	d.acc = d.acc<<1 | bit
	d.bits++
	if d.bits == 8 {
		d.frame[d.pos] = d.acc
		d.pos++
		d.acc, d.bits = 0, 0
	}
	return nil
}

func (d *decoder) complete() bool { return d.pos == FrameLen }

func (d *decoder) dataBits() int { return d.pos*8 + d.bits }
