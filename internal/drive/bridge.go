// Package drive applies wheeled commands received over MQTT to a unit's
// drive controller and reports the applied values back as wheeled state.
package drive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tetragramaton/rc-mission/internal/config"
	modbusIface "github.com/tetragramaton/rc-mission/internal/interface/modbus"
	mqttIface "github.com/tetragramaton/rc-mission/internal/interface/mqtt"
	"github.com/tetragramaton/rc-mission/internal/messages"
	"github.com/tetragramaton/rc-mission/internal/metrics"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	// ErrEmptyCommand is returned for a command carrying neither steering nor throttle.
	ErrEmptyCommand = errors.New("drive: command has no steering or throttle")

	// ErrUnitMismatch is returned for a command addressed to another unit.
	ErrUnitMismatch = errors.New("drive: command addressed to another unit")
)

type Bridge struct {
	log    *zap.Logger
	client mqttIface.Client
	drive  modbusIface.Client
	unitID string
	cfg    config.DriveConfig
}

func NewBridge(log *zap.Logger, client mqttIface.Client, drive modbusIface.Client, unitID string, cfg config.DriveConfig) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		log:    log.Named("drive").With(zap.String("unit", unitID)),
		client: client,
		drive:  drive,
		unitID: unitID,
		cfg:    cfg,
	}
}

// Start routes the unit's command topics to their handlers and subscribes
// to them: the combined wheeled command and the single-axis steering and
// throttle commands.
func (b *Bridge) Start() error {
	topics := messages.Topics{}
	routes := []struct {
		topic   string
		handler mqttIface.Handler
	}{
		{topics.WheeledCommand(b.unitID), b.HandleCommand},
		{topics.Steering(b.unitID), b.HandleSteering},
		{topics.Throttle(b.unitID), b.HandleThrottle},
	}

	subs := make([]mqttIface.Subscription, 0, len(routes))
	for _, r := range routes {
		if err := b.client.RegisterCallback(r.topic, r.handler); err != nil {
			return fmt.Errorf("register %s: %w", r.topic, err)
		}
		subs = append(subs, mqttIface.Subscription{Topic: r.topic, QoS: messages.QoSAtMostOnce})
	}
	return b.client.Subscribe(subs)
}

// HandleSteering writes a SteeringCommand's angle to the steering register.
func (b *Bridge) HandleSteering(topic string, payload []byte) error {
	cmd, err := messages.NewSteeringCommand(b.unitID)
	if err != nil {
		return err
	}
	if err := b.decode(cmd.Envelope, topic, payload); err != nil {
		return err
	}
	angle, err := cmd.Angle()
	if err != nil {
		return err
	}
	return b.write("steering", b.cfg.SteeringCmd, angle)
}

// HandleThrottle writes a ThrottleCommand's amplitude to the throttle register.
func (b *Bridge) HandleThrottle(topic string, payload []byte) error {
	cmd, err := messages.NewThrottleCommand(b.unitID)
	if err != nil {
		return err
	}
	if err := b.decode(cmd.Envelope, topic, payload); err != nil {
		return err
	}
	amplitude, err := cmd.Amplitude()
	if err != nil {
		return err
	}
	return b.write("throttle", b.cfg.ThrottleCmd, amplitude)
}

func (b *Bridge) decode(env *messages.Envelope, topic string, payload []byte) error {
	if err := env.Deserialize(payload); err != nil {
		return err
	}
	if env.UnitID() != b.unitID {
		return fmt.Errorf("%w: %q on %s", ErrUnitMismatch, env.UnitID(), topic)
	}
	return nil
}

// HandleCommand writes whichever of steering and throttle the command
// carries to its command register.
func (b *Bridge) HandleCommand(topic string, payload []byte) error {
	cmd, err := messages.NewWheeledCommand(b.unitID)
	if err != nil {
		return err
	}
	if err := b.decode(cmd.Envelope, topic, payload); err != nil {
		return err
	}

	var errs error
	applied := 0

	if steering, err := cmd.Steering(); err == nil {
		errs = multierr.Append(errs, b.write("steering", b.cfg.SteeringCmd, steering))
		applied++
	} else if !errors.Is(err, messages.ErrMissingField) {
		errs = multierr.Append(errs, err)
	}

	if throttle, err := cmd.Throttle(); err == nil {
		errs = multierr.Append(errs, b.write("throttle", b.cfg.ThrottleCmd, throttle))
		applied++
	} else if !errors.Is(err, messages.ErrMissingField) {
		errs = multierr.Append(errs, err)
	}

	if applied == 0 && errs == nil {
		return ErrEmptyCommand
	}
	return errs
}

func (b *Bridge) write(name string, reg config.Register, value float64) error {
	if err := b.drive.WriteFloat(modbusIface.RegisterParam(reg), value); err != nil {
		metrics.DriveErrors.WithLabelValues(b.unitID, "write").Inc()
		return fmt.Errorf("write %s: %w", name, err)
	}
	b.log.Debug("applied "+name, zap.Float64("value", value))
	return nil
}

// PublishState reads the applied steering and throttle and publishes them
// as a WheeledState.
func (b *Bridge) PublishState() error {
	steering, err := b.read("steering", b.cfg.SteeringState)
	if err != nil {
		return err
	}
	throttle, err := b.read("throttle", b.cfg.ThrottleState)
	if err != nil {
		return err
	}

	state, err := messages.NewWheeledState(b.unitID)
	if err != nil {
		return err
	}
	state.SetSteering(steering)
	state.SetThrottle(throttle)
	return b.client.Publish(state)
}

func (b *Bridge) read(name string, reg config.Register) (float64, error) {
	v, err := b.drive.ReadFloat(modbusIface.RegisterParam(reg))
	if err != nil {
		metrics.DriveErrors.WithLabelValues(b.unitID, "read").Inc()
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	return v, nil
}

// Run publishes the drive state every interval until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	interval := b.cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := b.PublishState(); err != nil {
				b.log.Error("publish state", zap.Error(err))
			}
		}
	}
}
