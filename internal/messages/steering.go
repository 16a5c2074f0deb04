package messages

// Single-axis command payload keys.
const (
	AngleKey     = "angle"
	AmplitudeKey = "amplitude"
)

// SteeringCommand sets a unit's steering angle on units/{unitID}/steering.
type SteeringCommand struct {
	*Envelope
}

func NewSteeringCommand(unitID string, opts ...Option) (*SteeringCommand, error) {
	env, err := newVariant(RootUnits, SuffixSteering, unitID, nil, opts)
	if err != nil {
		return nil, err
	}
	return &SteeringCommand{Envelope: env}, nil
}

func (m *SteeringCommand) SetAngle(angle float64) { m.setField(AngleKey, angle) }

func (m *SteeringCommand) Angle() (float64, error) { return m.floatField(AngleKey) }

// ThrottleCommand sets a unit's throttle (positive) or brake (negative)
// amplitude on units/{unitID}/throttle.
type ThrottleCommand struct {
	*Envelope
}

func NewThrottleCommand(unitID string, opts ...Option) (*ThrottleCommand, error) {
	env, err := newVariant(RootUnits, SuffixThrottle, unitID, nil, opts)
	if err != nil {
		return nil, err
	}
	return &ThrottleCommand{Envelope: env}, nil
}

func (m *ThrottleCommand) SetAmplitude(amplitude float64) { m.setField(AmplitudeKey, amplitude) }

func (m *ThrottleCommand) Amplitude() (float64, error) { return m.floatField(AmplitudeKey) }
