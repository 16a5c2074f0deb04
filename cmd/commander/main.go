package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	mqttIface "github.com/tetragramaton/rc-mission/internal/interface/mqtt"
	"github.com/tetragramaton/rc-mission/internal/messages"
	"github.com/tetragramaton/rc-mission/internal/metrics"
	"go.uber.org/zap"
)

var errNoAxis = errors.New("at least one of --steering or --throttle is required")

var (
	cfgFile  string
	logLevel string
	qos      uint8
	retain   bool
)

var rootCmd = &cobra.Command{
	Use:          "commander",
	Short:        "Command and monitor units over MQTT",
	SilenceUsage: true,
}

var monitorInterval time.Duration

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Track unit connection and wheeled state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, false, func(ctx context.Context, h *MainHandler) error {
			return h.Monitor(ctx, monitorInterval)
		})
	},
}

var (
	driveSteering float64
	driveThrottle float64
)

var driveCmd = &cobra.Command{
	Use:   "drive <unit>",
	Short: "Send a combined steering and throttle command to a wheeled unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var steering, throttle *float64
		if cmd.Flags().Changed("steering") {
			steering = &driveSteering
		}
		if cmd.Flags().Changed("throttle") {
			throttle = &driveThrottle
		}
		msg, err := wheeledCommand(args[0], steering, throttle, qos, retain)
		if err != nil {
			return err
		}
		return run(cmd, true, func(ctx context.Context, h *MainHandler) error {
			return h.Send(ctx, msg)
		})
	},
}

var steerAngle float64

var steerCmd = &cobra.Command{
	Use:   "steer <unit>",
	Short: "Set a unit's steering angle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := messages.NewSteeringCommand(args[0], messages.WithQoS(qos), messages.WithRetain(retain))
		if err != nil {
			return err
		}
		msg.SetAngle(steerAngle)
		return run(cmd, true, func(ctx context.Context, h *MainHandler) error {
			return h.Send(ctx, msg)
		})
	},
}

var throttleAmplitude float64

var throttleCmd = &cobra.Command{
	Use:   "throttle <unit>",
	Short: "Set a unit's throttle (positive) or brake (negative) amplitude",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := messages.NewThrottleCommand(args[0], messages.WithQoS(qos), messages.WithRetain(retain))
		if err != nil {
			return err
		}
		msg.SetAmplitude(throttleAmplitude)
		return run(cmd, true, func(ctx context.Context, h *MainHandler) error {
			return h.Send(ctx, msg)
		})
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

	for _, c := range []*cobra.Command{driveCmd, steerCmd, throttleCmd} {
		c.Flags().Uint8Var(&qos, "qos", 0, "delivery quality (0, 1 or 2)")
		c.Flags().BoolVar(&retain, "retain", false, "ask the broker to retain the command")
	}
	driveCmd.Flags().Float64Var(&driveSteering, "steering", 0, "steering modifier")
	driveCmd.Flags().Float64Var(&driveThrottle, "throttle", 0, "throttle modifier")
	steerCmd.Flags().Float64Var(&steerAngle, "angle", 0, "steering angle")
	_ = steerCmd.MarkFlagRequired("angle")
	throttleCmd.Flags().Float64Var(&throttleAmplitude, "amplitude", 0, "throttle amplitude, negative to brake")
	_ = throttleCmd.MarkFlagRequired("amplitude")
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", 5*time.Second, "how often to log the fleet snapshot")

	rootCmd.AddCommand(monitorCmd, driveCmd, steerCmd, throttleCmd)
}

// run builds the handler and calls fn until interrupted. One-shot commands
// connect under their own client ID so they never take over the monitor's
// session.
func run(cmd *cobra.Command, oneShot bool, fn func(ctx context.Context, h *MainHandler) error) error {
	handler, err := InitMainHandler(Flags{ConfigFile: cfgFile, LogLevel: logLevel, OneShot: oneShot})
	if err != nil {
		return err
	}
	defer func() { _ = handler.Log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, handler)
}

// wheeledCommand builds a WheeledCommand carrying only the axes that were given.
func wheeledCommand(unitID string, steering, throttle *float64, qos byte, retain bool) (*messages.WheeledCommand, error) {
	if steering == nil && throttle == nil {
		return nil, errNoAxis
	}
	msg, err := messages.NewWheeledCommand(unitID, messages.WithQoS(qos), messages.WithRetain(retain))
	if err != nil {
		return nil, err
	}
	if steering != nil {
		msg.SetSteering(*steering)
	}
	if throttle != nil {
		msg.SetThrottle(*throttle)
	}
	return msg, nil
}

// connect opens the session and starts the network loop. The returned func
// undoes both and must be called even when the caller fails later on.
func (h *MainHandler) connect(ctx context.Context) (func(), error) {
	if err := h.MQTTClient.Connect(ctx, h.Config.MQTT.Host, h.Config.MQTT.Port); err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := h.MQTTClient.StartLoop(); err != nil {
		if derr := h.MQTTClient.Disconnect(); derr != nil {
			h.Log.Warn("disconnect", zap.Error(derr))
		}
		return nil, err
	}
	return func() {
		if err := h.MQTTClient.StopLoop(); err != nil {
			h.Log.Warn("stop loop", zap.Error(err))
		}
		if err := h.MQTTClient.Disconnect(); err != nil {
			h.Log.Warn("disconnect", zap.Error(err))
		}
	}, nil
}

// Send publishes a single command and disconnects.
func (h *MainHandler) Send(ctx context.Context, msg mqttIface.Message) error {
	closeFn, err := h.connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := h.MQTTClient.Publish(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Topic(), err)
	}
	h.Log.Info("command sent", zap.String("topic", msg.Topic()))
	return nil
}

// Monitor feeds connection and wheeled state reports into the registry and
// logs a snapshot every interval until ctx is done.
func (h *MainHandler) Monitor(ctx context.Context, interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()
	if h.Config.Metrics.Enabled {
		metrics.StartPrometheusServer(ctx, &wg, h.Log, &metrics.PromServerOpts{
			Addr: h.Config.Metrics.Addr,
			Path: h.Config.Metrics.Path,
		})
	}

	closeFn, err := h.connect(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	topics := messages.Topics{}
	if err := h.MQTTClient.RegisterCallback(topics.AllConnectionStates(), h.Registry.HandleConnectionState); err != nil {
		return err
	}
	if err := h.MQTTClient.RegisterCallback(topics.AllWheeledStates(), h.Registry.HandleWheeledState); err != nil {
		return err
	}
	if err := h.MQTTClient.Subscribe([]mqttIface.Subscription{
		{Topic: topics.AllConnectionStates(), QoS: messages.QoSAtLeastOnce},
		{Topic: topics.AllWheeledStates(), QoS: messages.QoSAtMostOnce},
	}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	if err := h.publishConnectionState(true); err != nil {
		return err
	}
	defer func() {
		if err := h.publishConnectionState(false); err != nil {
			h.Log.Warn("announce offline", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.logSnapshot()
		}
	}
}

func (h *MainHandler) logSnapshot() {
	units := h.Registry.Snapshot()
	h.Log.Info("fleet", zap.Int("units", len(units)), zap.Int("online", h.Registry.OnlineCount()))
	for _, u := range units {
		fields := []zap.Field{
			zap.String("unit", u.ID),
			zap.Bool("online", u.Online),
			zap.Time("last_seen", u.LastSeen),
		}
		if u.Steering != nil {
			fields = append(fields, zap.Float64("steering", *u.Steering))
		}
		if u.Throttle != nil {
			fields = append(fields, zap.Float64("throttle", *u.Throttle))
		}
		h.Log.Info("unit", fields...)
	}
}

func (h *MainHandler) publishConnectionState(online bool) error {
	state, err := messages.NewConnectionState(h.Config.MQTT.ClientID)
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
