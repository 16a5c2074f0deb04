package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tetragramaton/rc-mission/internal/client/mqtt"
	"github.com/tetragramaton/rc-mission/internal/config"
	"github.com/tetragramaton/rc-mission/internal/fleet"
	mqttIface "github.com/tetragramaton/rc-mission/internal/interface/mqtt"
	"github.com/tetragramaton/rc-mission/internal/logging"
	"go.uber.org/zap"
)

// Flags are the command-line values the injector starts from.
type Flags struct {
	ConfigFile string
	LogLevel   string
	// OneShot marks a command that publishes once and disconnects.
	OneShot bool
}

type MainHandler struct {
	Config     *config.Config
	Log        *zap.Logger
	MQTTClient mqttIface.Client
	Registry   *fleet.Registry
}

func NewMainHandler(
	cfg *config.Config,
	log *zap.Logger,
	mqttClient mqttIface.Client,
	registry *fleet.Registry,
) *MainHandler {
	return &MainHandler{
		Config:     cfg,
		Log:        log,
		MQTTClient: mqttClient,
		Registry:   registry,
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

// sessionClientID returns the configured client ID for the monitor, and a
// unique derivative of it for one-shot commands.
func sessionClientID(clientID string, oneShot bool) string {
	if !oneShot {
		return clientID
	}
	return clientID + "-cli-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
}

func ProvideMqttClient(flags Flags, cfg *config.Config, log *zap.Logger) (mqttIface.Client, error) {
	client := mqtt.NewClient(cfg.MQTT)
	if err := client.Initialize(log, sessionClientID(cfg.MQTT.ClientID, flags.OneShot), cfg.MQTT.Password); err != nil {
		return nil, fmt.Errorf("initialize mqtt client: %w", err)
	}
	return client, nil
}
