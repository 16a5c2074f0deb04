package modbus

import (
	"errors"
	"fmt"
	"math"

	"github.com/goburrow/modbus"
	"github.com/tetragramaton/rc-mission/internal/config"
	modbusIface "github.com/tetragramaton/rc-mission/internal/interface/modbus"
)

var (
	ErrShortResponse    = errors.New("modbus: short response")
	ErrInvalidScale     = errors.New("modbus: register scale must be positive")
	ErrReadOnlyRegister = errors.New("modbus: input registers are read-only")
	ErrOutOfRange       = errors.New("modbus: value out of int16 register range")
)

type handler struct {
	modbusIface.API
	closeFn func() error
}

// NewHandler opens the drive-controller link described by cfg, over TCP or
// a serial RTU line.
func NewHandler(cfg config.ModbusConfig) (modbusIface.Client, error) {
	switch cfg.Mode {
	case "tcp":
		th := modbus.NewTCPClientHandler(cfg.TCPAddr)
		th.Timeout = cfg.Timeout
		th.SlaveId = byte(cfg.SlaveID)
		if err := th.Connect(); err != nil {
			return nil, fmt.Errorf("modbus tcp connect %s: %w", cfg.TCPAddr, err)
		}
		return &handler{
			API:     modbus.NewClient(th),
			closeFn: th.Close,
		}, nil

	case "rtu":
		rh := modbus.NewRTUClientHandler(cfg.Port)
		rh.BaudRate = cfg.Baud
		rh.DataBits = cfg.DataBits
		rh.Parity = cfg.Parity
		rh.StopBits = cfg.StopBits
		rh.SlaveId = byte(cfg.SlaveID)
		rh.Timeout = cfg.Timeout
		if err := rh.Connect(); err != nil {
			return nil, fmt.Errorf("modbus rtu connect %s: %w", cfg.Port, err)
		}
		return &handler{
			API:     modbus.NewClient(rh),
			closeFn: rh.Close,
		}, nil
	}

	return nil, errors.New("modbus mode must be 'rtu' or 'tcp'")
}

func (h *handler) ReadFloat(param modbusIface.RegisterParam) (float64, error) {
	if param.Scale <= 0 {
		return 0, ErrInvalidScale
	}
	var res []byte
	var err error
	if param.Holding {
		res, err = h.API.ReadHoldingRegisters(param.Addr, 1)
	} else {
		res, err = h.API.ReadInputRegisters(param.Addr, 1)
	}
	if err != nil {
		return 0, err
	}
	// 16-bit register, big endian, two's complement
	if len(res) < 2 {
		return 0, ErrShortResponse
	}
	raw := uint16(res[0])<<8 | uint16(res[1])
	return float64(int16(raw)) / param.Scale, nil
}

// WriteFloat stores round(value * Scale) in a holding register.
func (h *handler) WriteFloat(param modbusIface.RegisterParam, value float64) error {
	if param.Scale <= 0 {
		return ErrInvalidScale
	}
	if !param.Holding {
		return fmt.Errorf("%w: 0x%04x", ErrReadOnlyRegister, param.Addr)
	}
	scaled := math.Round(value * param.Scale)
	if math.IsNaN(scaled) || scaled < math.MinInt16 || scaled > math.MaxInt16 {
		return fmt.Errorf("%w: %g", ErrOutOfRange, value)
	}
	_, err := h.API.WriteSingleRegister(param.Addr, uint16(int16(scaled)))
	return err
}

func (h *handler) Close() error {
	if h.closeFn == nil {
		return nil
	}
	return h.closeFn()
}
