package messages

// Connection state payload key and values.
const (
	StateKey     = "state"
	StateOnline  = "online"
	StateOffline = "offline"
)

// ConnectionState announces whether a unit is online. It is retained at
// QoS 1 so late subscribers learn the last known state; the client's last
// will is an offline ConnectionState.
type ConnectionState struct {
	*Envelope
}

// NewConnectionState builds a ConnectionState for units/connectionState/{unitID}.
func NewConnectionState(unitID string, opts ...Option) (*ConnectionState, error) {
	base := []Option{WithQoS(QoSAtLeastOnce), WithRetain(true)}
	env, err := newVariant(RootConnectionState, "", unitID, base, opts)
	if err != nil {
		return nil, err
	}
	return &ConnectionState{Envelope: env}, nil
}

func (m *ConnectionState) SetOnline()  { m.setField(StateKey, StateOnline) }
func (m *ConnectionState) SetOffline() { m.setField(StateKey, StateOffline) }

// State returns the announced state, ErrMissingField if none was set.
func (m *ConnectionState) State() (string, error) {
	return m.stringField(StateKey)
}

func (m *ConnectionState) IsOnline() bool {
	s, err := m.State()
	return err == nil && s == StateOnline
}

func (m *ConnectionState) IsOffline() bool {
	s, err := m.State()
	return err == nil && s == StateOffline
}

// newVariant applies the variant defaults, then caller options, then pins
// the variant's suffix so callers cannot re-address a typed envelope.
func newVariant(root, suffix, unitID string, base, opts []Option) (*Envelope, error) {
	all := make([]Option, 0, len(base)+len(opts)+1)
	all = append(all, base...)
	all = append(all, opts...)
	all = append(all, WithSuffix(suffix))
	return New(root, unitID, all...)
}
