package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. RC_MQTT_HOST.
const EnvPrefix = "RC"

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds application-wide configuration
type Config struct {
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Modbus  ModbusConfig  `mapstructure:"modbus"`
	Drive   DriveConfig   `mapstructure:"drive"`
}

type MQTTConfig struct {
	Host               string        `mapstructure:"host"`
	Port               int           `mapstructure:"port"`
	ClientID           string        `mapstructure:"clientID"`
	Password           string        `mapstructure:"password"`
	TLS                bool          `mapstructure:"tls"`
	InsecureSkipVerify bool          `mapstructure:"insecureSkipVerify"`
	KeepAlive          time.Duration `mapstructure:"keepAlive"`
	ConnectTimeout     time.Duration `mapstructure:"connectTimeout"`
	PingTimeout        time.Duration `mapstructure:"pingTimeout"`
	// QueueSize bounds the inbound messages waiting for dispatch.
	QueueSize int `mapstructure:"queueSize"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path"`
}

type ModbusConfig struct {
	Mode string `mapstructure:"mode"` // "rtu" or "tcp"

	// TCP
	TCPAddr string `mapstructure:"tcpAddr"`

	// RTU
	Port     string `mapstructure:"port"`
	Baud     int    `mapstructure:"baud"`
	DataBits int    `mapstructure:"dataBits"`
	Parity   string `mapstructure:"parity"` // "N","E","O"
	StopBits int    `mapstructure:"stopBits"`
	SlaveID  int    `mapstructure:"slaveID"`

	Timeout time.Duration `mapstructure:"timeout"`
}

// Register addresses one 16-bit drive-controller register. Engineering
// values are raw / Scale on read and value * Scale on write.
type Register struct {
	Addr    uint16  `mapstructure:"addr"`
	Scale   float64 `mapstructure:"scale"`
	Holding bool    `mapstructure:"holding"`
}

type DriveConfig struct {
	UnitID        string        `mapstructure:"unitID"`
	Interval      time.Duration `mapstructure:"interval"`
	SteeringCmd   Register      `mapstructure:"steeringCmd"`
	ThrottleCmd   Register      `mapstructure:"throttleCmd"`
	SteeringState Register      `mapstructure:"steeringState"`
	ThrottleState Register      `mapstructure:"throttleState"`
}

// defaults registers every key so that environment overrides resolve even
// without a config file.
func defaults(v *viper.Viper) {
	v.SetDefault("mqtt.host", "localhost")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.clientID", "commander")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.tls", false)
	v.SetDefault("mqtt.insecureSkipVerify", false)
	v.SetDefault("mqtt.keepAlive", 30*time.Second)
	v.SetDefault("mqtt.connectTimeout", 5*time.Second)
	v.SetDefault("mqtt.pingTimeout", 3*time.Second)
	v.SetDefault("mqtt.queueSize", 256)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9100")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("modbus.mode", "rtu")
	v.SetDefault("modbus.tcpAddr", "127.0.0.1:502")
	v.SetDefault("modbus.port", "/dev/ttyUSB0")
	v.SetDefault("modbus.baud", 9600)
	v.SetDefault("modbus.dataBits", 8)
	v.SetDefault("modbus.parity", "N")
	v.SetDefault("modbus.stopBits", 1)
	v.SetDefault("modbus.slaveID", 1)
	v.SetDefault("modbus.timeout", 500*time.Millisecond)

	v.SetDefault("drive.unitID", "")
	v.SetDefault("drive.interval", time.Second)
	v.SetDefault("drive.steeringCmd.addr", 0x1000)
	v.SetDefault("drive.steeringCmd.scale", 1000.0)
	v.SetDefault("drive.steeringCmd.holding", true)
	v.SetDefault("drive.throttleCmd.addr", 0x1001)
	v.SetDefault("drive.throttleCmd.scale", 1000.0)
	v.SetDefault("drive.throttleCmd.holding", true)
	v.SetDefault("drive.steeringState.addr", 0x2000)
	v.SetDefault("drive.steeringState.scale", 1000.0)
	v.SetDefault("drive.steeringState.holding", false)
	v.SetDefault("drive.throttleState.addr", 0x2001)
	v.SetDefault("drive.throttleState.scale", 1000.0)
	v.SetDefault("drive.throttleState.holding", false)
}

// Load reads config from file or environment
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	defaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("rc-mission")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if c.MQTT.ClientID == "" {
		return fmt.Errorf("%w: mqtt.clientID is required", ErrInvalidConfig)
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return fmt.Errorf("%w: mqtt.port %d out of range", ErrInvalidConfig, c.MQTT.Port)
	}
	if c.MQTT.QueueSize < 1 {
		return fmt.Errorf("%w: mqtt.queueSize must be at least 1", ErrInvalidConfig)
	}

	switch c.Modbus.Mode {
	case "rtu", "tcp":
	default:
		return fmt.Errorf("%w: modbus.mode must be 'rtu' or 'tcp', got %q", ErrInvalidConfig, c.Modbus.Mode)
	}

	if c.Drive.Interval <= 0 {
		return fmt.Errorf("%w: drive.interval must be positive", ErrInvalidConfig)
	}
	regs := map[string]Register{
		"steeringCmd":   c.Drive.SteeringCmd,
		"throttleCmd":   c.Drive.ThrottleCmd,
		"steeringState": c.Drive.SteeringState,
		"throttleState": c.Drive.ThrottleState,
	}
	for name, r := range regs {
		if r.Scale <= 0 {
			return fmt.Errorf("%w: drive.%s.scale must be positive", ErrInvalidConfig, name)
		}
	}
	return nil
}

// DriveUnitID returns the unit the driver acts for, defaulting to the MQTT client ID.
func (c *Config) DriveUnitID() string {
	if c.Drive.UnitID != "" {
		return c.Drive.UnitID
	}
	return c.MQTT.ClientID
}
