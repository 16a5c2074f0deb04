package mqtt

import (
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"
	"github.com/tetragramaton/rc-mission/internal/config"
	mqttIface "github.com/tetragramaton/rc-mission/internal/interface/mqtt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

var _ pahomqtt.Message = fakeMessage{}

type brokenMessage struct{}

func (brokenMessage) Topic() string              { return "units/rover-1/steering" }
func (brokenMessage) QoS() byte                  { return 0 }
func (brokenMessage) Retain() bool               { return false }
func (brokenMessage) Serialize() ([]byte, error) { return nil, errors.New("cannot encode") }

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Host:           "broker.local",
		Port:           1883,
		ClientID:       "rover-1",
		KeepAlive:      30 * time.Second,
		ConnectTimeout: 5 * time.Second,
		PingTimeout:    3 * time.Second,
		QueueSize:      16,
	}
}

func newTestLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// newInitializedClient returns a client initialized as rover-1 whose
// Connect dials api.
func newInitializedClient(t *testing.T, cfg config.MQTTConfig, api mqttIface.API) (*Client, *observer.ObservedLogs) {
	t.Helper()
	logger, logs := newTestLogger()
	c := NewClient(cfg)
	c.dial = func(*pahomqtt.ClientOptions) mqttIface.API { return api }
	require.NoError(t, c.Initialize(logger, cfg.ClientID, "secret"))
	return c, logs
}

func countMessage(logs *observer.ObservedLogs, level zapcore.Level, msg string) int {
	return logs.FilterLevelExact(level).FilterMessage(msg).Len()
}
