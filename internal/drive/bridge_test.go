package drive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tetragramaton/rc-mission/internal/config"
	modbusIface "github.com/tetragramaton/rc-mission/internal/interface/modbus"
	modbusMock "github.com/tetragramaton/rc-mission/internal/interface/modbus/mock"
	mqttIface "github.com/tetragramaton/rc-mission/internal/interface/mqtt"
	mqttMock "github.com/tetragramaton/rc-mission/internal/interface/mqtt/mock"
	"github.com/tetragramaton/rc-mission/internal/messages"
	"go.uber.org/zap"
)

var (
	steeringCmd   = config.Register{Addr: 0x1000, Scale: 1000, Holding: true}
	throttleCmd   = config.Register{Addr: 0x1001, Scale: 1000, Holding: true}
	steeringState = config.Register{Addr: 0x2000, Scale: 1000}
	throttleState = config.Register{Addr: 0x2001, Scale: 1000}
)

func testDriveConfig() config.DriveConfig {
	return config.DriveConfig{
		Interval:      10 * time.Millisecond,
		SteeringCmd:   steeringCmd,
		ThrottleCmd:   throttleCmd,
		SteeringState: steeringState,
		ThrottleState: throttleState,
	}
}

func newTestBridge(t *testing.T) (*Bridge, *mqttMock.MockClient, *modbusMock.MockClient) {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mqttMock.NewMockClient(ctrl)
	drive := modbusMock.NewMockClient(ctrl)
	return NewBridge(zap.NewNop(), client, drive, "rover-1", testDriveConfig()), client, drive
}

func TestStart(t *testing.T) {
	b, client, _ := newTestBridge(t)

	gomock.InOrder(
		client.EXPECT().RegisterCallback("units/wheeled/rover-1/steering", gomock.Not(gomock.Nil())).Return(nil),
		client.EXPECT().RegisterCallback("units/rover-1/steering", gomock.Not(gomock.Nil())).Return(nil),
		client.EXPECT().RegisterCallback("units/rover-1/throttle", gomock.Not(gomock.Nil())).Return(nil),
		client.EXPECT().Subscribe([]mqttIface.Subscription{
			{Topic: "units/wheeled/rover-1/steering", QoS: 0},
			{Topic: "units/rover-1/steering", QoS: 0},
			{Topic: "units/rover-1/throttle", QoS: 0},
		}).Return(nil),
	)

	require.NoError(t, b.Start())
}

func TestStartRegisterError(t *testing.T) {
	b, client, _ := newTestBridge(t)
	notInit := errors.New("not initialized")
	client.EXPECT().RegisterCallback(gomock.Any(), gomock.Any()).Return(notInit)

	assert.ErrorIs(t, b.Start(), notInit)
}

func TestHandleCommandWritesBothRegisters(t *testing.T) {
	b, _, drive := newTestBridge(t)

	drive.EXPECT().WriteFloat(modbusIface.RegisterParam(steeringCmd), 0.3).Return(nil)
	drive.EXPECT().WriteFloat(modbusIface.RegisterParam(throttleCmd), -0.5).Return(nil)

	err := b.HandleCommand("units/wheeled/rover-1/steering",
		[]byte(`{"unit id":"rover-1","payload":{"steering":0.3,"throttle":-0.5}}`))
	require.NoError(t, err)
}

func TestHandleCommandPartial(t *testing.T) {
	b, _, drive := newTestBridge(t)

	drive.EXPECT().WriteFloat(modbusIface.RegisterParam(throttleCmd), 0.8).Return(nil)

	err := b.HandleCommand("units/wheeled/rover-1/steering",
		[]byte(`{"unit id":"rover-1","payload":{"throttle":0.8}}`))
	require.NoError(t, err)
}

func TestHandleCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{name: "malformed", payload: `{"payload":{}}`, want: messages.ErrMalformedEnvelope},
		{name: "empty", payload: `{"unit id":"rover-1","payload":{}}`, want: ErrEmptyCommand},
		{name: "null payload", payload: `{"unit id":"rover-1","payload":null}`, want: ErrEmptyCommand},
		{name: "other unit", payload: `{"unit id":"rover-2","payload":{"steering":0.1}}`, want: ErrUnitMismatch},
		{name: "wrong type", payload: `{"unit id":"rover-1","payload":{"steering":"left"}}`, want: messages.ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _, _ := newTestBridge(t)
			err := b.HandleCommand("units/wheeled/rover-1/steering", []byte(tt.payload))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestHandleCommandWriteFailureStillAppliesThrottle(t *testing.T) {
	b, _, drive := newTestBridge(t)
	busy := errors.New("slave device busy")

	drive.EXPECT().WriteFloat(modbusIface.RegisterParam(steeringCmd), 0.3).Return(busy)
	drive.EXPECT().WriteFloat(modbusIface.RegisterParam(throttleCmd), 0.1).Return(nil)

	err := b.HandleCommand("units/wheeled/rover-1/steering",
		[]byte(`{"unit id":"rover-1","payload":{"steering":0.3,"throttle":0.1}}`))
	assert.ErrorIs(t, err, busy)
}

func TestPublishState(t *testing.T) {
	b, client, drive := newTestBridge(t)

	drive.EXPECT().ReadFloat(modbusIface.RegisterParam(steeringState)).Return(0.25, nil)
	drive.EXPECT().ReadFloat(modbusIface.RegisterParam(throttleState)).Return(-0.5, nil)

	var published mqttIface.Message
	client.EXPECT().Publish(gomock.Any()).DoAndReturn(func(m mqttIface.Message) error {
		published = m
		return nil
	})

	require.NoError(t, b.PublishState())
	require.NotNil(t, published)
	assert.Equal(t, "units/wheeled/rover-1/state", published.Topic())

	data, err := published.Serialize()
	require.NoError(t, err)
	assert.JSONEq(t, `{"unit id":"rover-1","payload":{"steering":0.25,"throttle":-0.5}}`, string(data))
}

func TestPublishStateReadError(t *testing.T) {
	b, _, drive := newTestBridge(t)
	timeout := errors.New("timeout")

	drive.EXPECT().ReadFloat(modbusIface.RegisterParam(steeringState)).Return(0.0, timeout)

	assert.ErrorIs(t, b.PublishState(), timeout)
}

func TestRunPublishesUntilCanceled(t *testing.T) {
	b, client, drive := newTestBridge(t)

	drive.EXPECT().ReadFloat(gomock.Any()).Return(0.0, nil).MinTimes(4)
	published := make(chan struct{}, 16)
	client.EXPECT().Publish(gomock.Any()).DoAndReturn(func(mqttIface.Message) error {
		published <- struct{}{}
		return nil
	}).MinTimes(2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	<-published
	<-published
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestHandleSteering(t *testing.T) {
	b, _, drive := newTestBridge(t)

	cmd, err := messages.NewSteeringCommand("rover-1")
	require.NoError(t, err)
	cmd.SetAngle(-12.5)
	data, err := cmd.Serialize()
	require.NoError(t, err)

	drive.EXPECT().WriteFloat(modbusIface.RegisterParam(steeringCmd), -12.5).Return(nil)

	require.NoError(t, b.HandleSteering(cmd.Topic(), data))
}

func TestHandleThrottle(t *testing.T) {
	b, _, drive := newTestBridge(t)

	cmd, err := messages.NewThrottleCommand("rover-1")
	require.NoError(t, err)
	cmd.SetAmplitude(0.75)
	data, err := cmd.Serialize()
	require.NoError(t, err)

	drive.EXPECT().WriteFloat(modbusIface.RegisterParam(throttleCmd), 0.75).Return(nil)

	require.NoError(t, b.HandleThrottle(cmd.Topic(), data))
}

func TestSingleAxisHandlerErrors(t *testing.T) {
	b, _, drive := newTestBridge(t)
	boom := errors.New("bus timeout")

	t.Run("missing angle", func(t *testing.T) {
		err := b.HandleSteering("units/rover-1/steering", []byte(`{"unit id":"rover-1","payload":{}}`))
		assert.ErrorIs(t, err, messages.ErrMissingField)
	})

	t.Run("other unit", func(t *testing.T) {
		err := b.HandleThrottle("units/rover-1/throttle", []byte(`{"unit id":"rover-2","payload":{"amplitude":1}}`))
		assert.ErrorIs(t, err, ErrUnitMismatch)
	})

	t.Run("malformed", func(t *testing.T) {
		err := b.HandleThrottle("units/rover-1/throttle", []byte(`{"payload":{}}`))
		assert.ErrorIs(t, err, messages.ErrMalformedEnvelope)
	})

	t.Run("write failure", func(t *testing.T) {
		drive.EXPECT().WriteFloat(modbusIface.RegisterParam(throttleCmd), 0.5).Return(boom)
		err := b.HandleThrottle("units/rover-1/throttle", []byte(`{"unit id":"rover-1","payload":{"amplitude":0.5}}`))
		assert.ErrorIs(t, err, boom)
	})
}
