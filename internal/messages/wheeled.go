package messages

// Wheeled unit payload keys, shared by commands and state reports.
const (
	SteeringKey = "steering"
	ThrottleKey = "throttle"
)

// wheeled carries the steering/throttle pair common to WheeledCommand and
// WheeledState. Each setter merges into the existing payload, so setting
// throttle after steering keeps the steering value.
type wheeled struct {
	*Envelope
}

func (w wheeled) SetSteering(modifier float64) { w.setField(SteeringKey, modifier) }
func (w wheeled) SetThrottle(modifier float64) { w.setField(ThrottleKey, modifier) }

func (w wheeled) Steering() (float64, error) { return w.floatField(SteeringKey) }
func (w wheeled) Throttle() (float64, error) { return w.floatField(ThrottleKey) }

// WheeledCommand is the combined steering+throttle command for a wheeled
// unit, published on units/wheeled/{unitID}/steering.
type WheeledCommand struct {
	wheeled
}

func NewWheeledCommand(unitID string, opts ...Option) (*WheeledCommand, error) {
	env, err := newVariant(RootWheeled, SuffixSteering, unitID, nil, opts)
	if err != nil {
		return nil, err
	}
	return &WheeledCommand{wheeled{Envelope: env}}, nil
}

// WheeledState reports the applied steering+throttle of a wheeled unit on
// units/wheeled/{unitID}/state.
type WheeledState struct {
	wheeled
}

func NewWheeledState(unitID string, opts ...Option) (*WheeledState, error) {
	env, err := newVariant(RootWheeled, SuffixState, unitID, nil, opts)
	if err != nil {
		return nil, err
	}
	return &WheeledState{wheeled{Envelope: env}}, nil
}
