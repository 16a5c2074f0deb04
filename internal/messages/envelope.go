package messages

import (
	"encoding/json"
	"fmt"
	"maps"
)

// Wire keys of the serialized envelope.
const (
	UnitIDKey  = "unit id"
	PayloadKey = "payload"
)

// QoS levels.
const (
	QoSAtMostOnce  byte = 0
	QoSAtLeastOnce byte = 1
	QoSExactlyOnce byte = 2
)

// Payload is the structured content of an envelope. A nil Payload means
// "absent" and serializes as JSON null, which is distinct from an empty map.
type Payload map[string]any

// Envelope is a unit message: a fixed topic plus the unit ID and payload
// that travel on the wire, and the QoS/retain transport metadata.
//
// The topic is computed once by New and never recomputed, even when
// Deserialize replaces the unit ID.
type Envelope struct {
	topic   string
	unitID  string
	payload Payload
	qos     byte
	retain  bool
}

type options struct {
	suffix  string
	payload Payload
	qos     byte
	retain  bool
}

// Option configures an Envelope at construction time.
type Option func(*options)

// WithSuffix appends a final level to the topic: {root}/{unit}/{suffix}.
func WithSuffix(suffix string) Option {
	return func(o *options) { o.suffix = suffix }
}

// WithPayload sets the initial payload. The map is copied.
func WithPayload(p Payload) Option {
	return func(o *options) { o.payload = p }
}

// WithQoS sets the requested delivery quality.
func WithQoS(qos byte) Option {
	return func(o *options) { o.qos = qos }
}

// WithRetain sets the broker retention flag.
func WithRetain(retain bool) Option {
	return func(o *options) { o.retain = retain }
}

// New builds an envelope addressed to {topicRoot}/{unitID}[/{suffix}].
// Defaults are an absent payload, QoS 0 and no retention.
func New(topicRoot, unitID string, opts ...Option) (*Envelope, error) {
	if unitID == "" {
		return nil, ErrEmptyUnitID
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.qos > QoSExactlyOnce {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQoS, o.qos)
	}

	topic := topicRoot + "/" + unitID
	if o.suffix != "" {
		topic += "/" + o.suffix
	}

	return &Envelope{
		topic:   topic,
		unitID:  unitID,
		payload: maps.Clone(o.payload),
		qos:     o.qos,
		retain:  o.retain,
	}, nil
}

func (e *Envelope) Topic() string  { return e.topic }
func (e *Envelope) UnitID() string { return e.unitID }
func (e *Envelope) QoS() byte      { return e.qos }
func (e *Envelope) Retain() bool   { return e.retain }

// Payload returns a copy of the current payload, nil when absent.
func (e *Envelope) Payload() Payload { return maps.Clone(e.payload) }

// SetPayload replaces the payload wholesale with a copy of p. Typed
// variants merge instead.
func (e *Envelope) SetPayload(p Payload) { e.payload = maps.Clone(p) }

func (e *Envelope) SetQoS(qos byte) error {
	if qos > QoSExactlyOnce {
		return fmt.Errorf("%w: %d", ErrInvalidQoS, qos)
	}
	e.qos = qos
	return nil
}

func (e *Envelope) SetRetain(retain bool) { e.retain = retain }

type wireEnvelope struct {
	UnitID  string  `json:"unit id"`
	Payload Payload `json:"payload"`
}

// Serialize encodes the envelope as {"unit id": ..., "payload": ...}.
// Topic, QoS and retain are transport metadata and are not part of the body.
func (e *Envelope) Serialize() ([]byte, error) {
	data, err := json.Marshal(wireEnvelope{UnitID: e.unitID, Payload: e.payload})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal envelope %s: %w", e.topic, err)
	}
	return data, nil
}

// Deserialize folds the unit ID and payload of a wire document into e.
// Topic, QoS and retain are left untouched. On error e is not modified.
func (e *Envelope) Deserialize(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedEnvelope, err)
	}
	if doc == nil {
		return fmt.Errorf("%w: document is null", ErrMalformedEnvelope)
	}

	rawUnit, ok := doc[UnitIDKey]
	if !ok {
		return fmt.Errorf("%w: missing %q", ErrMalformedEnvelope, UnitIDKey)
	}
	rawPayload, ok := doc[PayloadKey]
	if !ok {
		return fmt.Errorf("%w: missing %q", ErrMalformedEnvelope, PayloadKey)
	}

	var unitID string
	if err := json.Unmarshal(rawUnit, &unitID); err != nil || unitID == "" {
		return fmt.Errorf("%w: %q must be a non-empty string", ErrMalformedEnvelope, UnitIDKey)
	}

	// null decodes to a nil (absent) payload.
	var payload Payload
	if err := json.Unmarshal(rawPayload, &payload); err != nil {
		return fmt.Errorf("%w: %q must be an object or null", ErrMalformedEnvelope, PayloadKey)
	}

	e.unitID = unitID
	e.payload = payload
	return nil
}

// setField writes one payload key, keeping every other key already set.
func (e *Envelope) setField(key string, value any) {
	if e.payload == nil {
		e.payload = Payload{}
	}
	e.payload[key] = value
}

func (e *Envelope) field(key string) (any, error) {
	v, ok := e.payload[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q on %s", ErrMissingField, key, e.topic)
	}
	return v, nil
}

func (e *Envelope) floatField(key string) (float64, error) {
	v, err := e.field(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	default:
		return 0, fmt.Errorf("%w: %q is %T, want number", ErrInvalidField, key, v)
	}
}

func (e *Envelope) stringField(key string) (string, error) {
	v, err := e.field(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q is %T, want string", ErrInvalidField, key, v)
	}
	return s, nil
}
