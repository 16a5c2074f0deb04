package mqtt

import (
	"time"

	mqttIface "github.com/tetragramaton/rc-mission/internal/interface/mqtt"
	"github.com/tetragramaton/rc-mission/internal/metrics"
	"github.com/tetragramaton/rc-mission/internal/mqtt"
	"go.uber.org/zap"
)

type route struct {
	filter  string
	handler mqttIface.Handler
}

// router is the dispatch table: topic filters in registration order.
// It is guarded by the client mutex.
type router struct {
	routes []route
}

func newRouter() *router {
	return &router{}
}

func (r *router) add(filter string, handler mqttIface.Handler) {
	for i := range r.routes {
		if r.routes[i].filter == filter {
			r.routes[i].handler = handler
			return
		}
	}
	r.routes = append(r.routes, route{filter: filter, handler: handler})
}

func (r *router) remove(filter string) bool {
	for i := range r.routes {
		if r.routes[i].filter == filter {
			r.routes = append(r.routes[:i], r.routes[i+1:]...)
			return true
		}
	}
	return false
}

func (r *router) match(topic string) []route {
	var matched []route
	for _, rt := range r.routes {
		if mqtt.Match(rt.filter, topic) {
			matched = append(matched, rt)
		}
	}
	return matched
}

func (c *Client) dispatchLoop(inbound <-chan inboundMessage, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case msg := <-inbound:
			c.dispatch(msg)
		}
	}
}

// dispatch runs every handler matching msg.topic in registration order.
// Messages no handler matches are logged as uncaught.
func (c *Client) dispatch(msg inboundMessage) {
	c.mu.RLock()
	log, id := c.log, c.clientID
	routes := c.routes.match(msg.topic)
	c.mu.RUnlock()

	start := time.Now()
	defer func() {
		metrics.DispatchDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
	}()

	if len(routes) == 0 {
		log.Warn("uncaught message", zap.String("topic", msg.topic), zap.ByteString("payload", msg.payload))
		metrics.MessagesReceived.WithLabelValues(id, metrics.RouteUncaught).Inc()
		return
	}

	metrics.MessagesReceived.WithLabelValues(id, metrics.RouteHandled).Inc()
	for _, rt := range routes {
		c.invoke(log, id, rt, msg)
	}
}

func (c *Client) invoke(log *zap.Logger, id string, rt route, msg inboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic recovered",
				zap.String("topic", msg.topic),
				zap.String("filter", rt.filter),
				zap.Any("panic", r),
			)
			metrics.HandlerErrors.WithLabelValues(id).Inc()
		}
	}()

	if err := rt.handler(msg.topic, msg.payload); err != nil {
		log.Warn("handler returned error",
			zap.String("topic", msg.topic),
			zap.String("filter", rt.filter),
			zap.Error(err),
		)
		metrics.HandlerErrors.WithLabelValues(id).Inc()
	}
}
