package report

import (
	"bytes"
	"errors"
	"testing"

	"github.com/shaunagostinho/dht22/internal/dht"
)

func TestWriteRecord(t *testing.T) {
	tests := []struct {
		name string
		o    dht.Outcome
		want string
		exit int
	}{
		{
			"success",
			dht.Outcome{Status: dht.StatusSuccess, Reading: dht.Reading{Humidity: 40, Celsius: -2.1}, Attempts: 1},
			`{"celsius":-2.10,"humidity":40.00,"error":""}`,
			ExitOK,
		},
		{
			"no data",
			dht.Outcome{Status: dht.StatusNoData, Attempts: 3, Err: dht.ErrNoData},
			`{"celsius":0.00,"humidity":0.00,"error":"NO_DATA"}`,
			ExitOK,
		},
		{
			"gpio init",
			dht.Outcome{Status: dht.StatusGPIOInitFailed, Err: errors.New("x")},
			`{"celsius":0.00,"humidity":0.00,"error":"GPIO_INIT_FAILED"}`,
			ExitGPIOInit,
		},
		{
			"invalid pin",
			dht.Outcome{Status: dht.StatusInvalidPin},
			`{"celsius":0.00,"humidity":0.00,"error":"INVALID_GPIO"}`,
			ExitUsage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, FromOutcome(tt.o)); err != nil {
				t.Fatalf("Write err=%v", err)
			}
			if got := buf.String(); got != tt.want+"\n" {
				t.Fatalf("got=%q want=%q", got, tt.want)
			}
			if got := ExitCode(tt.o); got != tt.exit {
				t.Fatalf("exit=%d want=%d", got, tt.exit)
			}
		})
	}
}

func TestFixed2Rounding(t *testing.T) {
	b, _ := Fixed2(21.345).MarshalJSON()
	if string(b) != "21.34" && string(b) != "21.35" {
		t.Fatalf("got=%s", b)
	}
	b, _ = Fixed2(65.2).MarshalJSON()
	if string(b) != "65.20" {
		t.Fatalf("got=%s want=65.20", b)
	}
}

func TestErrorCodesAreStable(t *testing.T) {
	codes := map[dht.Status]string{
		dht.StatusSuccess:        "",
		dht.StatusNoData:         "NO_DATA",
		dht.StatusGPIOInitFailed: "GPIO_INIT_FAILED",
		dht.StatusInvalidPin:     "INVALID_GPIO",
	}
	for s, want := range codes {
		if got := Code(s); got != want {
			t.Fatalf("Code(%v)=%q want=%q", s, got, want)
		}
	}
}
