package mqtt

//go:generate mockgen -destination=mock/mock_mqtt.go -package=mock github.com/tetragramaton/rc-mission/internal/interface/mqtt API,Client

import (
	"context"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// Subscription is one entry of a Subscribe or Unsubscribe call.
type Subscription struct {
	Topic string `json:"topic"`
	QoS   byte   `json:"qos"`
}

// Handler processes one inbound message. Handlers run on the client's
// dispatch goroutine and must not block; a returned error is logged.
type Handler func(topic string, payload []byte) error

// Message is anything that can be published: an envelope or a typed variant.
type Message interface {
	Topic() string
	QoS() byte
	Retain() bool
	Serialize() ([]byte, error)
}

// Client is the connection client: one broker connection with a last will,
// publish/subscribe and topic-scoped handler registration. Every method
// other than Initialize fails with an error wrapping ErrNotInitialized when
// Initialize has not succeeded yet.
type Client interface {
	Initialize(log *zap.Logger, clientID, password string) error
	Connect(ctx context.Context, host string, port int) error
	Disconnect() error
	StartLoop() error
	StopLoop() error
	Publish(message Message) error
	Subscribe(subscriptions []Subscription) error
	Unsubscribe(subscriptions []Subscription) error
	RegisterCallback(topic string, handler Handler) error
	UnregisterCallback(topic string) error
}

// API is the subset of the paho client the connection client drives.
type API interface {
	IsConnected() bool
	IsConnectionOpen() bool
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	Unsubscribe(topics ...string) pahomqtt.Token
}
