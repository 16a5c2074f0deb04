package modbus

//go:generate mockgen -destination=mock/mock_modbus.go -package=mock github.com/tetragramaton/rc-mission/internal/interface/modbus API,Client

// RegisterParam addresses one 16-bit register holding a signed value.
// Engineering values are raw / Scale on read and value * Scale on write.
type RegisterParam struct {
	Addr    uint16  `json:"addr"`
	Scale   float64 `json:"scale"`
	Holding bool    `json:"holding"`
}

type Client interface {
	API
	ReadFloat(param RegisterParam) (float64, error)
	WriteFloat(param RegisterParam, value float64) error
	Close() error
}

type API interface {
	ReadHoldingRegisters(address, quantity uint16) (results []byte, err error)
	ReadInputRegisters(address, quantity uint16) (results []byte, err error)
	WriteSingleRegister(address, value uint16) (results []byte, err error)
}
