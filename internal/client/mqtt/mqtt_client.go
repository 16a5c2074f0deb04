package mqtt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/tetragramaton/rc-mission/internal/config"
	mqttIface "github.com/tetragramaton/rc-mission/internal/interface/mqtt"
	"github.com/tetragramaton/rc-mission/internal/messages"
	"github.com/tetragramaton/rc-mission/internal/mqtt"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// disconnectQuiesce is the time in milliseconds paho may spend finishing
// in-flight work on Disconnect.
const disconnectQuiesce = 250

// dialer builds the transport handle for one Connect call.
type dialer func(opts *pahomqtt.ClientOptions) mqttIface.API

func pahoDialer(opts *pahomqtt.ClientOptions) mqttIface.API {
	return pahomqtt.NewClient(opts)
}

type inboundMessage struct {
	topic   string
	payload []byte
}

// Client is the paho-backed connection client. Create it with NewClient,
// then call Initialize once before anything else.
type Client struct {
	cfg  config.MQTTConfig
	dial dialer

	mu       sync.RWMutex
	log      *zap.Logger
	clientID string
	opts     *pahomqtt.ClientOptions
	conn     mqttIface.API
	routes   *router
	inbound  chan inboundMessage
	loopStop chan struct{}
	loopDone chan struct{}
}

var _ mqttIface.Client = (*Client)(nil)

func NewClient(cfg config.MQTTConfig) *Client {
	return &Client{cfg: cfg, dial: pahoDialer}
}

// Initialize prepares the connection: a logger named after the client, the
// transport options with an offline ConnectionState as last will, and the
// lifecycle callbacks. A second call logs a warning and changes nothing.
func (c *Client) Initialize(log *zap.Logger, clientID, password string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.log != nil {
		c.log.Warn(fmt.Sprintf("MQTT client %s already initialized", clientID))
		return nil
	}
	if clientID == "" {
		return ErrEmptyClientID
	}
	if log == nil {
		log = zap.NewNop()
	}
	logger := log.Named("MQTT-" + strings.ToUpper(clientID))
	logger.Info(fmt.Sprintf("creating MQTT client %s", clientID))

	will, err := messages.NewConnectionState(clientID)
	if err != nil {
		return err
	}
	will.SetOffline()
	willPayload, err := will.Serialize()
	if err != nil {
		return err
	}

	opts := mqtt.NewOptions(c.cfg).
		SetClientID(clientID).
		SetUsername(clientID).
		SetPassword(password).
		SetBinaryWill(will.Topic(), willPayload, will.QoS(), will.Retain()).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost).
		SetDefaultPublishHandler(c.onMessage)
	bridgePahoLoggers(logger)

	queueSize := c.cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	c.log = logger
	c.clientID = clientID
	c.opts = opts
	c.routes = newRouter()
	c.inbound = make(chan inboundMessage, queueSize)
	return nil
}

// Connect dials host:port and waits until the broker accepts the session or
// ctx is done. Transport errors are returned as they come from paho.
func (c *Client) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	if c.log == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	if c.conn != nil && c.conn.IsConnected() {
		c.log.Warn("already connected", zap.String("host", host), zap.Int("port", port))
		c.mu.Unlock()
		return nil
	}

	opts := *c.opts
	opts.Servers = nil
	opts.AddBroker(mqtt.BrokerURL(host, port, c.cfg.TLS))

	c.log.Info(fmt.Sprintf("trying to connect to broker: %s:%d", host, port))
	conn := c.dial(&opts)
	c.conn = conn
	c.mu.Unlock()

	token := conn.Connect()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		// Abandon the dial so paho stops retrying in the background.
		conn.Disconnect(0)
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		return ctx.Err()
	}
}

func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.log == nil {
		return ErrNotInitialized
	}
	if c.conn == nil {
		return ErrNotConnected
	}
	if c.conn.IsConnectionOpen() {
		c.log.Info("disconnecting from broker")
		c.conn.Disconnect(disconnectQuiesce)
	}
	c.conn = nil
	return nil
}

// StartLoop starts the goroutine that drains inbound messages into the
// registered handlers. Messages arriving before StartLoop wait in the queue.
func (c *Client) StartLoop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.log == nil {
		return ErrNotInitialized
	}
	if c.loopStop != nil {
		c.log.Warn("network loop already running")
		return nil
	}
	c.loopStop = make(chan struct{})
	c.loopDone = make(chan struct{})
	go c.dispatchLoop(c.inbound, c.loopStop, c.loopDone)
	c.log.Info("network loop started")
	return nil
}

// StopLoop stops the dispatch goroutine and waits for the handler in
// progress, if any, to return.
func (c *Client) StopLoop() error {
	c.mu.Lock()
	if c.log == nil {
		c.mu.Unlock()
		return ErrNotInitialized
	}
	if c.loopStop == nil {
		c.log.Warn("network loop not running")
		c.mu.Unlock()
		return nil
	}
	stop, done, log := c.loopStop, c.loopDone, c.log
	c.loopStop, c.loopDone = nil, nil
	c.mu.Unlock()

	close(stop)
	<-done
	log.Info("network loop stopped")
	return nil
}

// Publish sends message.Serialize() to message.Topic(). The broker
// acknowledgement is reported asynchronously to the log.
func (c *Client) Publish(message mqttIface.Message) error {
	log, conn, err := c.session()
	if err != nil {
		return err
	}
	payload, err := message.Serialize()
	if err != nil {
		return err
	}

	token := conn.Publish(message.Topic(), message.QoS(), message.Retain(), payload)
	go c.onPublish(log, token, message.Topic())
	return nil
}

// Subscribe issues one subscribe call per entry, in order. A failing entry
// does not stop the following ones; synchronous failures are combined in
// the returned error, broker-side failures are logged.
func (c *Client) Subscribe(subscriptions []mqttIface.Subscription) error {
	log, conn, err := c.session()
	if err != nil {
		return err
	}

	var errs error
	for _, sub := range subscriptions {
		if err := validateSubscription(sub); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		log.Info("subscribing", zap.String("topic", sub.Topic), zap.Uint8("qos", sub.QoS))
		// nil callback: deliveries reach the default publish handler, which
		// feeds the dispatch table.
		token := conn.Subscribe(sub.Topic, sub.QoS, nil)
		go c.onSubscribe(log, token, sub)
	}
	return errs
}

// Unsubscribe issues one unsubscribe call per entry, in order, with the same
// failure semantics as Subscribe.
func (c *Client) Unsubscribe(subscriptions []mqttIface.Subscription) error {
	log, conn, err := c.session()
	if err != nil {
		return err
	}

	var errs error
	for _, sub := range subscriptions {
		if err := mqtt.ValidateFilter(sub.Topic); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%w %q: %w", ErrInvalidTopic, sub.Topic, err))
			continue
		}
		log.Info("unsubscribing", zap.String("topic", sub.Topic))
		token := conn.Unsubscribe(sub.Topic)
		go c.onUnsubscribe(log, token, sub.Topic)
	}
	return errs
}

// RegisterCallback routes inbound messages matching topic to handler.
// Registering an already registered filter replaces its handler in place.
func (c *Client) RegisterCallback(topic string, handler mqttIface.Handler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.log == nil {
		return ErrNotInitialized
	}
	if handler == nil {
		return ErrNilHandler
	}
	if err := mqtt.ValidateFilter(topic); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidTopic, topic, err)
	}
	c.routes.add(topic, handler)
	c.log.Debug("callback registered", zap.String("topic", topic))
	return nil
}

// UnregisterCallback removes the handler registered for topic. Removing an
// unknown topic is a no-op.
func (c *Client) UnregisterCallback(topic string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.log == nil {
		return ErrNotInitialized
	}
	if c.routes.remove(topic) {
		c.log.Debug("callback unregistered", zap.String("topic", topic))
	}
	return nil
}

// session returns the logger and connection handle for an operation that
// needs both.
func (c *Client) session() (*zap.Logger, mqttIface.API, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.log == nil {
		return nil, nil, ErrNotInitialized
	}
	if c.conn == nil {
		return c.log, nil, ErrNotConnected
	}
	return c.log, c.conn, nil
}

func validateSubscription(sub mqttIface.Subscription) error {
	if err := mqtt.ValidateFilter(sub.Topic); err != nil {
		return fmt.Errorf("%w %q: %w", ErrInvalidTopic, sub.Topic, err)
	}
	if sub.QoS > messages.QoSExactlyOnce {
		return fmt.Errorf("%w: %d for %q", messages.ErrInvalidQoS, sub.QoS, sub.Topic)
	}
	return nil
}
