package gpio

import (
	"fmt"
	"strconv"
	"strings"
)

// Pin identifies one GPIO line by its position on the 40-pin header and its
// Broadcom (BCM) number.
type Pin struct {
	Header int // physical header position, 0 when addressed by BCM name
	BCM    int
}

func (p Pin) String() string {
	if p.Header > 0 {
		return fmt.Sprintf("GPIO%d (pin %d)", p.BCM, p.Header)
	}
	return fmt.Sprintf("GPIO%d", p.BCM)
}

// maxBCM is the highest line routed to the header.
const maxBCM = 27

// headerToBCM maps physical header positions to BCM lines. Power and ground
// positions are absent.
var headerToBCM = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 27: 0, 28: 1, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19,
	36: 16, 37: 26, 38: 20, 40: 21,
}

// ParsePin resolves a pin identifier. A bare number is a physical header
// position; "GPIO<n>" and "BCM<n>" name a Broadcom line directly.
func ParsePin(s string) (Pin, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	for _, prefix := range []string{"GPIO", "BCM"} {
		if !strings.HasPrefix(upper, prefix) {
			continue
		}
		n, err := strconv.Atoi(upper[len(prefix):])
		if err != nil || n < 0 || n > maxBCM {
			return Pin{}, fmt.Errorf("%w: %q", ErrInvalidPin, s)
		}
		return Pin{BCM: n}, nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return Pin{}, fmt.Errorf("%w: %q", ErrInvalidPin, s)
	}
	bcm, ok := headerToBCM[n]
	if !ok {
		return Pin{}, fmt.Errorf("%w: header pin %d is not a GPIO line", ErrInvalidPin, n)
	}
	return Pin{Header: n, BCM: bcm}, nil
}
