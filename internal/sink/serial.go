package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/shaunagostinho/dht22/internal/report"
)

// SerialConfig selects the UART readings are written to.
type SerialConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	PortPath string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyAMA0
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// SerialLine is one JSON line written per event.
type SerialLine struct {
	report.Record
	Timestamp int64 `json:"stamp"` // Unix ms
}

// Serial writes one JSON line per event to a UART, e.g. for a display
// controller.
type Serial struct {
	portPath string
	baudRate int
	logger   *slog.Logger

	mu   sync.Mutex
	port serial.Port
}

func NewSerial(cfg SerialConfig, logger *slog.Logger) *Serial {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600
	}
	return &Serial{portPath: cfg.PortPath, baudRate: cfg.BaudRate, logger: logger}
}

func (s *Serial) Name() string { return "serial" }

func (s *Serial) Connect(context.Context) error {
	mode := &serial.Mode{
		BaudRate: s.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(s.portPath, mode)
	if err != nil {
		return fmt.Errorf("serial: failed to open %s: %w", s.portPath, err)
	}
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	s.logger.Info("serial connected", "port", s.portPath, "baud", s.baudRate)
	return nil
}

func (s *Serial) Publish(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return fmt.Errorf("serial: not connected")
	}
	data, err := EncodeSerialLine(e)
	if err != nil {
		return err
	}
	if _, err := s.port.Write(data); err != nil {
		return fmt.Errorf("serial: write %s: %w", s.portPath, err)
	}
	return nil
}

// EncodeSerialLine renders e as a newline-terminated JSON object.
func EncodeSerialLine(e Event) ([]byte, error) {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	data, err := json.Marshal(SerialLine{Record: report.FromOutcome(e.Outcome), Timestamp: ts.UnixMilli()})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
