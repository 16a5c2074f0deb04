package main

import (
	"fmt"

	"github.com/tetragramaton/rc-mission/internal/client/modbus"
	"github.com/tetragramaton/rc-mission/internal/client/mqtt"
	"github.com/tetragramaton/rc-mission/internal/config"
	"github.com/tetragramaton/rc-mission/internal/drive"
	modbusIface "github.com/tetragramaton/rc-mission/internal/interface/modbus"
	mqttIface "github.com/tetragramaton/rc-mission/internal/interface/mqtt"
	"github.com/tetragramaton/rc-mission/internal/logging"
	"go.uber.org/zap"
)

// Flags are the command-line values the injector starts from.
type Flags struct {
	ConfigFile string
	LogLevel   string
}

type MainHandler struct {
	Config       *config.Config
	Log          *zap.Logger
	MQTTClient   mqttIface.Client
	ModbusClient modbusIface.Client
	Bridge       *drive.Bridge
}

func NewMainHandler(
	cfg *config.Config,
	log *zap.Logger,
	mqttClient mqttIface.Client,
	modbusClient modbusIface.Client,
	bridge *drive.Bridge,
) *MainHandler {
	return &MainHandler{
		Config:       cfg,
		Log:          log,
		MQTTClient:   mqttClient,
		ModbusClient: modbusClient,
		Bridge:       bridge,
	}
}

func ProvideConfig(flags Flags) (*config.Config, error) {
	cfg, err := config.Load(flags.ConfigFile)
	if err != nil {
		return nil, err
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log)
}

// ProvideMqttClient returns an initialized connection client for the
// driven unit. The unit ID is the MQTT client ID, so the last will reports
// this unit offline.
func ProvideMqttClient(cfg *config.Config, log *zap.Logger) (mqttIface.Client, error) {
	client := mqtt.NewClient(cfg.MQTT)
	if err := client.Initialize(log, cfg.DriveUnitID(), cfg.MQTT.Password); err != nil {
		return nil, fmt.Errorf("initialize mqtt client: %w", err)
	}
	return client, nil
}

func ProvideModbusClient(cfg *config.Config, log *zap.Logger) (modbusIface.Client, func(), error) {
	client, err := modbus.NewHandler(cfg.Modbus)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := client.Close(); err != nil {
			log.Warn("modbus client close", zap.Error(err))
		}
	}
	return client, cleanup, nil
}

func ProvideBridge(cfg *config.Config, log *zap.Logger, client mqttIface.Client, drv modbusIface.Client) *drive.Bridge {
	return drive.NewBridge(log, client, drv, cfg.DriveUnitID(), cfg.Drive)
}
