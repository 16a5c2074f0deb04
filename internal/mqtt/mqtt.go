package mqtt

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/tetragramaton/rc-mission/internal/config"
)

const tlsMinVersion = tls.VersionTLS12

// NewOptions returns the transport options shared by every connection:
// timeouts, keepalive, TLS and session settings. Brokers, identity, the last
// will and the handlers are filled in by the connection client.
func NewOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(false).
		SetOrderMatters(true)

	if cfg.KeepAlive > 0 {
		opts.SetKeepAlive(cfg.KeepAlive)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	if cfg.PingTimeout > 0 {
		opts.SetPingTimeout(cfg.PingTimeout)
	}
	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion:         tlsMinVersion,
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for lab brokers
		})
	}
	return opts
}

// BrokerURL formats host and port as a paho server URL, tcp:// or ssl://.
func BrokerURL(host string, port int, useTLS bool) string {
	scheme := "tcp"
	if useTLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, strconv.Itoa(port)))
}
