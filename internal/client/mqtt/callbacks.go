package mqtt

import (
	"fmt"
	"strings"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	mqttIface "github.com/tetragramaton/rc-mission/internal/interface/mqtt"
	"github.com/tetragramaton/rc-mission/internal/metrics"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// subscribeFailure is the granted QoS a broker returns for a refused filter.
const subscribeFailure = 0x80

// logger returns the client logger, a no-op logger before Initialize.
func (c *Client) logger() *zap.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.log == nil {
		return zap.NewNop()
	}
	return c.log
}

func (c *Client) label() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

func (c *Client) onConnect(_ pahomqtt.Client) {
	c.logger().Info("connection result: connected")
}

func (c *Client) onConnectionLost(_ pahomqtt.Client, err error) {
	c.logger().Warn("disconnection result: connection lost", zap.Error(err))
}

// onMessage receives every delivery and queues it for the dispatch loop.
// It runs on paho's router goroutine and never blocks.
func (c *Client) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	c.mu.RLock()
	inbound, log, id := c.inbound, c.log, c.clientID
	c.mu.RUnlock()
	if inbound == nil {
		return
	}

	select {
	case inbound <- inboundMessage{topic: msg.Topic(), payload: msg.Payload()}:
	default:
		log.Warn("inbound queue full, dropping message", zap.String("topic", msg.Topic()))
		metrics.InboundDropped.WithLabelValues(id).Inc()
	}
}

func (c *Client) onPublish(log *zap.Logger, token pahomqtt.Token, topic string) {
	<-token.Done()
	if err := token.Error(); err != nil {
		log.Error("publish failed", zap.String("topic", topic), zap.Error(err))
		metrics.PublishErrors.WithLabelValues(c.label()).Inc()
		return
	}
	var mid uint16
	if pt, ok := token.(*pahomqtt.PublishToken); ok {
		mid = pt.MessageID()
	}
	log.Debug(fmt.Sprintf("message %d published", mid), zap.String("topic", topic))
	metrics.MessagesPublished.WithLabelValues(c.label()).Inc()
}

func (c *Client) onSubscribe(log *zap.Logger, token pahomqtt.Token, sub mqttIface.Subscription) {
	<-token.Done()
	if err := token.Error(); err != nil {
		log.Error("subscribe failed", zap.String("topic", sub.Topic), zap.Error(err))
		return
	}
	granted := sub.QoS
	if st, ok := token.(*pahomqtt.SubscribeToken); ok {
		if g, ok := st.Result()[sub.Topic]; ok {
			granted = g
		}
	}
	if granted == subscribeFailure {
		log.Error("subscription refused by broker", zap.String("topic", sub.Topic))
		return
	}
	log.Debug(fmt.Sprintf("subscribed to %s with QoS: %d", sub.Topic, granted))
}

func (c *Client) onUnsubscribe(log *zap.Logger, token pahomqtt.Token, topic string) {
	<-token.Done()
	if err := token.Error(); err != nil {
		log.Error("unsubscribe failed", zap.String("topic", topic), zap.Error(err))
		return
	}
	log.Debug(fmt.Sprintf("unsubscribed from %s", topic))
}

// pahoLevel names one of paho's package-level diagnostic loggers.
type pahoLevel string

const (
	pahoDebug    pahoLevel = "debug"
	pahoWarn     pahoLevel = "warn"
	pahoError    pahoLevel = "error"
	pahoCritical pahoLevel = "critical"
)

// pahoLogger adapts paho's Println/Printf diagnostics to zap.
type pahoLogger struct {
	log   *zap.Logger
	level pahoLevel
}

// bridgePahoLoggers points paho's diagnostic loggers at log. They are
// package globals, so the most recently initialized client receives them.
func bridgePahoLoggers(log *zap.Logger) {
	pahomqtt.DEBUG = pahoLogger{log: log, level: pahoDebug}
	pahomqtt.WARN = pahoLogger{log: log, level: pahoWarn}
	pahomqtt.ERROR = pahoLogger{log: log, level: pahoError}
	pahomqtt.CRITICAL = pahoLogger{log: log, level: pahoCritical}
}

func (l pahoLogger) Println(v ...interface{}) {
	if l.enabled() {
		l.write(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
	}
}

func (l pahoLogger) Printf(format string, v ...interface{}) {
	if l.enabled() {
		l.write(fmt.Sprintf(format, v...))
	}
}

func (l pahoLogger) zapLevel() zapcore.Level {
	switch l.level {
	case pahoDebug:
		return zapcore.DebugLevel
	case pahoError, pahoCritical:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}

func (l pahoLogger) enabled() bool {
	return l.log.Core().Enabled(l.zapLevel())
}

func (l pahoLogger) write(msg string) {
	switch l.level {
	case pahoDebug:
		l.log.Debug(msg)
	case pahoWarn:
		l.log.Warn(msg)
	case pahoError, pahoCritical:
		l.log.Error(msg)
	default:
		l.log.Warn("unknown level log: " + msg)
	}
}
