package sink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/shaunagostinho/dht22/internal/dht"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var (
	okOutcome = dht.Outcome{Status: dht.StatusSuccess, Reading: dht.Reading{Humidity: 40.0, Celsius: -2.1}, Attempts: 1}
	noData    = dht.Outcome{Status: dht.StatusNoData, Attempts: 3, Err: dht.ErrNoData}
	stamp     = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
)

func TestNewTelemetrySuccess(t *testing.T) {
	tel := NewTelemetry(Event{Station: "greenhouse", Sequence: 7, Time: stamp, Outcome: okOutcome})
	data, err := json.Marshal(tel)
	if err != nil {
		t.Fatalf("marshal err=%v", err)
	}
	want := `{"station_id":"greenhouse","timestamp":"2026-10-19T12:00:00Z","temperature_c":-2.1,` +
		`"temperature_f":28.22,"humidity_pct":40,"sequence":7,"attempts":1,"error":""}`
	if string(data) != want {
		t.Fatalf("got=%s\nwant=%s", data, want)
	}
}

func TestNewTelemetryFailureOmitsMeasurements(t *testing.T) {
	tel := NewTelemetry(Event{Station: "s1", Time: stamp, Outcome: noData})
	if tel.Temperature != nil || tel.TemperatureF != nil || tel.Humidity != nil {
		t.Fatalf("measurements set on failure: %+v", tel)
	}
	if tel.Error != "NO_DATA" || tel.Attempts != 3 {
		t.Fatalf("telemetry=%+v", tel)
	}
}

func TestTopics(t *testing.T) {
	if got := TelemetryTopic("s1"); got != "stations/s1/telemetry" {
		t.Fatalf("telemetry topic=%q", got)
	}
	if got := HealthTopic("s1"); got != "stations/s1/health" {
		t.Fatalf("health topic=%q", got)
	}
}

func TestMQTTPublishRequiresConnection(t *testing.T) {
	m := NewMQTT(MQTTConfig{Broker: "127.0.0.1", Port: 1, ClientID: "test"}, discard())
	if err := m.Publish(Event{Station: "s1", Outcome: okOutcome}); err == nil {
		t.Fatalf("expected error when not connected")
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close err=%v", err)
	}
	if err := m.Connect(context.Background()); !errors.Is(err, errStopped) {
		t.Fatalf("Connect after Close err=%v want errStopped", err)
	}
}

func TestEncodeSerialLine(t *testing.T) {
	data, err := EncodeSerialLine(Event{Time: stamp, Outcome: okOutcome})
	if err != nil {
		t.Fatalf("encode err=%v", err)
	}
	want := `{"celsius":-2.10,"humidity":40.00,"error":"","stamp":1792411200000}` + "\n"
	if string(data) != want {
		t.Fatalf("got=%q want=%q", data, want)
	}

	data, _ = EncodeSerialLine(Event{Time: stamp, Outcome: noData})
	if !strings.Contains(string(data), `"error":"NO_DATA"`) {
		t.Fatalf("got=%q", data)
	}
}

func TestSerialPublishRequiresConnection(t *testing.T) {
	s := NewSerial(SerialConfig{PortPath: "/dev/null-port"}, discard())
	if err := s.Publish(Event{Outcome: okOutcome}); err == nil {
		t.Fatalf("expected error when not connected")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close err=%v", err)
	}
}

func TestEncodeRegisters(t *testing.T) {
	tests := []struct {
		name string
		in   Snapshot
		want []uint16
	}{
		{"ok positive", Snapshot{Health: HealthOK, Humidity: 65.2, Celsius: 23.4}, []uint16{1, 0, 652, 234, 0}},
		{"ok negative", Snapshot{Health: HealthOK, Humidity: 40, Celsius: -2.1}, []uint16{1, 0, 400, 0xffeb, 0}},
		{"error", Snapshot{Health: HealthError, ErrorCode: ErrCodeNoData, Failures: 2}, []uint16{2, 1, 0, 0, 2}},
		{"saturating", Snapshot{Health: HealthError, Failures: 1 << 20}, []uint16{2, 0, 0, 0, 0xffff}},
		{"unknown", Snapshot{}, []uint16{0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Encode(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Encode=%v want=%v", got, tt.want)
			}
		})
	}
}

type fakeWriter struct {
	addr  uint16
	qty   uint16
	value []byte
	err   error
}

func (f *fakeWriter) WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error) {
	f.addr, f.qty, f.value = address, quantity, append([]byte(nil), value...)
	return nil, f.err
}

func TestModbusPublishKeepsLastGoodReading(t *testing.T) {
	w := &fakeWriter{}
	m := NewModbus(ModbusConfig{Address: 100}, discard())
	m.client = w

	if err := m.Publish(Event{Outcome: okOutcome}); err != nil {
		t.Fatalf("Publish err=%v", err)
	}
	if w.addr != 100 || w.qty != RegisterCount {
		t.Fatalf("addr=%d qty=%d", w.addr, w.qty)
	}
	want := []byte{0, 1, 0, 0, 0x01, 0x90, 0xff, 0xeb, 0, 0}
	if !reflect.DeepEqual(w.value, want) {
		t.Fatalf("payload=% x want=% x", w.value, want)
	}

	if err := m.Publish(Event{Outcome: noData}); err != nil {
		t.Fatalf("Publish err=%v", err)
	}
	if err := m.Publish(Event{Outcome: noData}); err != nil {
		t.Fatalf("Publish err=%v", err)
	}
	want = []byte{0, 2, 0, 1, 0x01, 0x90, 0xff, 0xeb, 0, 2}
	if !reflect.DeepEqual(w.value, want) {
		t.Fatalf("payload=% x want=% x", w.value, want)
	}
}

func TestModbusPublishError(t *testing.T) {
	m := NewModbus(ModbusConfig{}, discard())
	if err := m.Publish(Event{Outcome: okOutcome}); err == nil {
		t.Fatalf("expected error when not connected")
	}
	m.client = &fakeWriter{err: errors.New("exception 2")}
	if err := m.Publish(Event{Outcome: okOutcome}); err == nil {
		t.Fatalf("expected write error")
	}
	if err := m.Connect(context.Background()); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}
