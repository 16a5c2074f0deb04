package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTopic(t *testing.T) {
	tests := []struct {
		name   string
		root   string
		unitID string
		opts   []Option
		want   string
	}{
		{name: "no suffix", root: "units/connectionState", unitID: "rover-1", want: "units/connectionState/rover-1"},
		{name: "suffix", root: "units", unitID: "rover-1", opts: []Option{WithSuffix("steering")}, want: "units/rover-1/steering"},
		{name: "nested root", root: "units/wheeled", unitID: "r2", opts: []Option{WithSuffix("state")}, want: "units/wheeled/r2/state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := New(tt.root, tt.unitID, tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.Topic())
			assert.Equal(t, tt.unitID, env.UnitID())
		})
	}
}

func TestNewDefaults(t *testing.T) {
	env, err := New("units", "rover-1")
	require.NoError(t, err)

	assert.Nil(t, env.Payload())
	assert.Equal(t, QoSAtMostOnce, env.QoS())
	assert.False(t, env.Retain())
}

func TestNewRejectsEmptyUnitID(t *testing.T) {
	_, err := New("units", "")
	assert.ErrorIs(t, err, ErrEmptyUnitID)
}

func TestNewRejectsInvalidQoS(t *testing.T) {
	_, err := New("units", "rover-1", WithQoS(3))
	assert.ErrorIs(t, err, ErrInvalidQoS)
}

func TestSetQoS(t *testing.T) {
	env, err := New("units", "rover-1")
	require.NoError(t, err)

	require.NoError(t, env.SetQoS(QoSExactlyOnce))
	assert.Equal(t, QoSExactlyOnce, env.QoS())

	assert.ErrorIs(t, env.SetQoS(7), ErrInvalidQoS)
	assert.Equal(t, QoSExactlyOnce, env.QoS())
}

func TestSerialize(t *testing.T) {
	env, err := New("units", "rover-1", WithSuffix("steering"), WithQoS(1), WithRetain(true))
	require.NoError(t, err)
	env.SetPayload(Payload{"angle": -12.5})

	data, err := env.Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, `{"unit id":"rover-1","payload":{"angle":-12.5}}`, string(data))
}

func TestSerializeAbsentPayload(t *testing.T) {
	env, err := New("units", "rover-1")
	require.NoError(t, err)

	data, err := env.Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, `{"unit id":"rover-1","payload":null}`, string(data))

	env.SetPayload(Payload{})
	data, err = env.Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, `{"unit id":"rover-1","payload":{}}`, string(data))
}

func TestRoundTrip(t *testing.T) {
	src, err := New("units", "rover-1", WithSuffix("throttle"))
	require.NoError(t, err)
	src.SetPayload(Payload{"amplitude": 0.75, "note": "forward"})

	data, err := src.Serialize()
	require.NoError(t, err)

	// The shell is addressed to another unit and carries other metadata; only
	// the unit ID and the payload are folded in.
	shell, err := New("units/wheeled", "placeholder", WithSuffix("state"), WithQoS(2), WithRetain(true))
	require.NoError(t, err)
	require.NoError(t, shell.Deserialize(data))

	assert.Equal(t, "rover-1", shell.UnitID())
	assert.Equal(t, src.Payload(), shell.Payload())
	assert.Equal(t, "units/wheeled/placeholder/state", shell.Topic())
	assert.Equal(t, QoSExactlyOnce, shell.QoS())
	assert.True(t, shell.Retain())
}

func TestDeserializeNullPayload(t *testing.T) {
	env, err := New("units", "rover-1", WithPayload(Payload{"angle": 1.0}))
	require.NoError(t, err)

	require.NoError(t, env.Deserialize([]byte(`{"unit id":"rover-2","payload":null}`)))
	assert.Nil(t, env.Payload())
	assert.Equal(t, "rover-2", env.UnitID())

	require.NoError(t, env.Deserialize([]byte(`{"payload":{},"unit id":"rover-3"}`)))
	assert.NotNil(t, env.Payload())
	assert.Empty(t, env.Payload())
}

func TestDeserializeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "invalid json", data: `{"unit id":`},
		{name: "null document", data: `null`},
		{name: "array document", data: `[1,2]`},
		{name: "missing unit id", data: `{"payload":{}}`},
		{name: "missing payload", data: `{"unit id":"rover-1"}`},
		{name: "numeric unit id", data: `{"unit id":7,"payload":{}}`},
		{name: "empty unit id", data: `{"unit id":"","payload":{}}`},
		{name: "scalar payload", data: `{"unit id":"rover-1","payload":3}`},
		{name: "array payload", data: `{"unit id":"rover-1","payload":[1]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := New("units", "rover-1", WithPayload(Payload{"angle": 2.0}))
			require.NoError(t, err)

			err = env.Deserialize([]byte(tt.data))
			require.ErrorIs(t, err, ErrMalformedEnvelope)

			assert.Equal(t, "rover-1", env.UnitID())
			assert.Equal(t, Payload{"angle": 2.0}, env.Payload())
		})
	}
}
