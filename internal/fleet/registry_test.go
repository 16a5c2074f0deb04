package fleet

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetragramaton/rc-mission/internal/messages"
	"github.com/tetragramaton/rc-mission/internal/metrics"
)

func newTestRegistry() *Registry {
	r := NewRegistry()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	return r
}

func TestConnectionState(t *testing.T) {
	r := newTestRegistry()

	require.NoError(t, r.HandleConnectionState("units/connectionState/rover-1",
		[]byte(`{"unit id":"rover-1","payload":{"state":"online"}}`)))
	require.NoError(t, r.HandleConnectionState("units/connectionState/rover-2",
		[]byte(`{"unit id":"rover-2","payload":{"state":"online"}}`)))
	assert.Equal(t, 2, r.OnlineCount())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.UnitsOnline))

	require.NoError(t, r.HandleConnectionState("units/connectionState/rover-1",
		[]byte(`{"unit id":"rover-1","payload":{"state":"offline"}}`)))
	assert.Equal(t, 1, r.OnlineCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.UnitsOnline))

	units := r.Snapshot()
	require.Len(t, units, 2)
	assert.Equal(t, "rover-1", units[0].ID)
	assert.False(t, units[0].Online)
	assert.Equal(t, "rover-2", units[1].ID)
	assert.True(t, units[1].Online)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), units[1].LastSeen)
}

func TestConnectionStateErrors(t *testing.T) {
	r := newTestRegistry()

	err := r.HandleConnectionState("units/rover-1/steering/extra", []byte(`{}`))
	assert.ErrorIs(t, err, messages.ErrUnknownTopic)

	err = r.HandleConnectionState("units/connectionState/rover-1", []byte(`not json`))
	assert.ErrorIs(t, err, messages.ErrMalformedEnvelope)

	err = r.HandleConnectionState("units/connectionState/rover-1", []byte(`{"unit id":"rover-1","payload":{}}`))
	assert.ErrorIs(t, err, messages.ErrMissingField)

	assert.Empty(t, r.Snapshot())
}

func TestWheeledStateMerges(t *testing.T) {
	r := newTestRegistry()

	require.NoError(t, r.HandleWheeledState("units/wheeled/rover-1/state",
		[]byte(`{"unit id":"rover-1","payload":{"steering":0.25,"throttle":0.5}}`)))
	require.NoError(t, r.HandleWheeledState("units/wheeled/rover-1/state",
		[]byte(`{"unit id":"rover-1","payload":{"throttle":-0.1}}`)))

	units := r.Snapshot()
	require.Len(t, units, 1)
	require.NotNil(t, units[0].Steering)
	require.NotNil(t, units[0].Throttle)
	assert.Equal(t, 0.25, *units[0].Steering)
	assert.Equal(t, -0.1, *units[0].Throttle)
	assert.False(t, units[0].Online)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := newTestRegistry()
	require.NoError(t, r.HandleWheeledState("units/wheeled/rover-1/state",
		[]byte(`{"unit id":"rover-1","payload":{"steering":0.25}}`)))

	units := r.Snapshot()
	*units[0].Steering = 9

	again := r.Snapshot()
	assert.Equal(t, 0.25, *again[0].Steering)
	assert.Nil(t, again[0].Throttle)
}
