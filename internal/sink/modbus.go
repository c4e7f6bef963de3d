package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/shaunagostinho/dht22/internal/dht"
)

// ModbusConfig selects the holding register block readings are written to.
type ModbusConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"` // host:port
	UnitID    uint8  `yaml:"unit_id" json:"unitId"`
	Address   uint16 `yaml:"address" json:"address"`
	TimeoutMs int    `yaml:"timeout_ms" json:"timeoutMs"`
}

// Register block layout, offsets from ModbusConfig.Address.
//
// These values are part of the external contract. Do not renumber.
const (
	RegHealth = iota
	RegErrorCode
	RegHumidity // %RH x10
	RegCelsius  // °C x10, two's complement
	RegFailures // consecutive failed acquisitions, saturating

	RegisterCount
)

// Health register values.
const (
	HealthUnknown uint16 = 0
	HealthOK      uint16 = 1
	HealthError   uint16 = 2
)

// Error code register values.
const (
	ErrCodeNone           uint16 = 0
	ErrCodeNoData         uint16 = 1
	ErrCodeGPIOInitFailed uint16 = 2
	ErrCodeInvalidPin     uint16 = 3
)

// Snapshot is the state mirrored into the register block. Humidity and
// Celsius hold the last good reading; Health tells whether it is current.
type Snapshot struct {
	Health    uint16
	ErrorCode uint16
	Humidity  float64
	Celsius   float64
	Failures  int
}

// Encode renders s as RegisterCount registers.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, RegisterCount)
	regs[RegHealth] = s.Health
	regs[RegErrorCode] = s.ErrorCode
	regs[RegHumidity] = uint16(math.Round(s.Humidity * 10))
	regs[RegCelsius] = uint16(int16(math.Round(s.Celsius * 10)))
	f := s.Failures
	if f > math.MaxUint16 {
		f = math.MaxUint16
	}
	if f < 0 {
		f = 0
	}
	regs[RegFailures] = uint16(f)
	return regs
}

func errorCode(s dht.Status) uint16 {
	switch s {
	case dht.StatusSuccess:
		return ErrCodeNone
	case dht.StatusGPIOInitFailed:
		return ErrCodeGPIOInitFailed
	case dht.StatusInvalidPin:
		return ErrCodeInvalidPin
	default:
		return ErrCodeNoData
	}
}

// registerWriter is the part of modbus.Client the sink uses.
type registerWriter interface {
	WriteMultipleRegisters(address, quantity uint16, value []byte) ([]byte, error)
}

// Modbus mirrors the latest outcome into holding registers of a Modbus TCP
// server with function code 16.
type Modbus struct {
	cfg    ModbusConfig
	logger *slog.Logger

	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  registerWriter
	state   Snapshot
}

func NewModbus(cfg ModbusConfig, logger *slog.Logger) *Modbus {
	if cfg.TimeoutMs <= 0 {
		cfg.TimeoutMs = 2000
	}
	return &Modbus{cfg: cfg, logger: logger}
}

func (m *Modbus) Name() string { return "modbus" }

func (m *Modbus) Connect(context.Context) error {
	if m.cfg.Endpoint == "" {
		return errors.New("modbus: endpoint required")
	}
	h := modbus.NewTCPClientHandler(m.cfg.Endpoint)
	h.Timeout = time.Duration(m.cfg.TimeoutMs) * time.Millisecond
	h.SlaveId = m.cfg.UnitID
	if err := h.Connect(); err != nil {
		return fmt.Errorf("modbus: connect %s: %w", m.cfg.Endpoint, err)
	}

	m.mu.Lock()
	m.handler = h
	m.client = modbus.NewClient(h)
	m.mu.Unlock()
	m.logger.Info("modbus connected", "endpoint", m.cfg.Endpoint, "unit", m.cfg.UnitID)
	return nil
}

// apply folds o into the snapshot and returns the new state.
func (m *Modbus) apply(o dht.Outcome) Snapshot {
	m.state.ErrorCode = errorCode(o.Status)
	if o.OK() {
		m.state.Health = HealthOK
		m.state.Humidity = o.Reading.Humidity
		m.state.Celsius = o.Reading.Celsius
		m.state.Failures = 0
	} else {
		m.state.Health = HealthError
		m.state.Failures++
	}
	return m.state
}

func (m *Modbus) Publish(e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.apply(e.Outcome)
	if m.client == nil {
		return fmt.Errorf("modbus: not connected")
	}
	regs := Encode(snap)
	if _, err := m.client.WriteMultipleRegisters(m.cfg.Address, uint16(len(regs)), packRegisters(regs)); err != nil {
		return fmt.Errorf("modbus: write registers at %d: %w", m.cfg.Address, err)
	}
	return nil
}

func (m *Modbus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handler == nil {
		return nil
	}
	err := m.handler.Close()
	m.handler, m.client = nil, nil
	return err
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
