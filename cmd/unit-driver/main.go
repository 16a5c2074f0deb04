package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tetragramaton/rc-mission/internal/messages"
	"github.com/tetragramaton/rc-mission/internal/metrics"
	"go.uber.org/zap"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:          "unit-driver",
	Short:        "Drive a wheeled unit from MQTT commands",
	Long:         `unit-driver applies wheeled commands to the unit's drive controller over Modbus and publishes the applied state`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		handler, cleanup, err := InitMainHandler(Flags{ConfigFile: cfgFile, LogLevel: logLevel})
		if err != nil {
			return err
		}
		defer cleanup()
		defer func() { _ = handler.Log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return handler.Handle(ctx)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/rc-mission.yaml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "L", "", "override log.level (debug, info, warn, error)")
}

// Handle connects, announces the unit online, then relays commands and
// state until ctx is done. The unit is announced offline before a clean
// disconnect; the last will covers every other exit.
func (h *MainHandler) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	// Runs before wg.Wait so the metrics server stops on every return path.
	defer cancel()
	if h.Config.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, h.Log, &metrics.PromServerOpts{
			Addr: h.Config.Metrics.Addr,
			Path: h.Config.Metrics.Path,
		})
	}

	if err := h.MQTTClient.Connect(ctx, h.Config.MQTT.Host, h.Config.MQTT.Port); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := h.MQTTClient.Disconnect(); err != nil {
			h.Log.Warn("disconnect", zap.Error(err))
		}
	}()

	if err := h.MQTTClient.StartLoop(); err != nil {
		return err
	}
	defer func() {
		if err := h.MQTTClient.StopLoop(); err != nil {
			h.Log.Warn("stop loop", zap.Error(err))
		}
	}()

	if err := h.Bridge.Start(); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}
	unitID := h.Config.DriveUnitID()
	if err := h.publishConnectionState(unitID, true); err != nil {
		return err
	}
	h.Log.Info("unit-driver up", zap.String("unit", unitID))

	err := h.Bridge.Run(ctx)
	if perr := h.publishConnectionState(unitID, false); perr != nil {
		h.Log.Warn("announce offline", zap.Error(perr))
	}
	return err
}

func (h *MainHandler) publishConnectionState(unitID string, online bool) error {
	state, err := messages.NewConnectionState(unitID)
	if err != nil {
		return err
	}
	if online {
		state.SetOnline()
	} else {
		state.SetOffline()
	}
	return h.MQTTClient.Publish(state)
}
