// Package fleet tracks the last known state of every unit seen on the bus.
package fleet

import (
	"sort"
	"sync"
	"time"

	"github.com/tetragramaton/rc-mission/internal/messages"
	"github.com/tetragramaton/rc-mission/internal/metrics"
)

// Unit is the last known state of one unit. Steering and Throttle are nil
// until a WheeledState carrying them has been received.
type Unit struct {
	ID       string
	Online   bool
	Steering *float64
	Throttle *float64
	LastSeen time.Time
}

type Registry struct {
	mu    sync.RWMutex
	units map[string]*Unit
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		units: make(map[string]*Unit),
		now:   time.Now,
	}
}

// HandleConnectionState records a ConnectionState received on topic.
func (r *Registry) HandleConnectionState(topic string, payload []byte) error {
	unitID, err := messages.UnitFromTopic(topic)
	if err != nil {
		return err
	}
	msg, err := messages.NewConnectionState(unitID)
	if err != nil {
		return err
	}
	if err := msg.Deserialize(payload); err != nil {
		return err
	}
	state, err := msg.State()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.unit(msg.UnitID())
	u.Online = state == messages.StateOnline
	u.LastSeen = r.now()
	metrics.UnitsOnline.Set(float64(r.onlineCount()))
	return nil
}

// HandleWheeledState records a WheeledState received on topic. Keys absent
// from the payload keep their previous value.
func (r *Registry) HandleWheeledState(topic string, payload []byte) error {
	unitID, err := messages.UnitFromTopic(topic)
	if err != nil {
		return err
	}
	msg, err := messages.NewWheeledState(unitID)
	if err != nil {
		return err
	}
	if err := msg.Deserialize(payload); err != nil {
		return err
	}

	steering, steeringErr := msg.Steering()
	throttle, throttleErr := msg.Throttle()

	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.unit(msg.UnitID())
	if steeringErr == nil {
		u.Steering = &steering
	}
	if throttleErr == nil {
		u.Throttle = &throttle
	}
	u.LastSeen = r.now()
	return nil
}

// Snapshot returns a copy of every known unit, sorted by ID.
func (r *Registry) Snapshot() []Unit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Unit, 0, len(r.units))
	for _, u := range r.units {
		c := *u
		if u.Steering != nil {
			v := *u.Steering
			c.Steering = &v
		}
		if u.Throttle != nil {
			v := *u.Throttle
			c.Throttle = &v
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineCount()
}

func (r *Registry) onlineCount() int {
	n := 0
	for _, u := range r.units {
		if u.Online {
			n++
		}
	}
	return n
}

func (r *Registry) unit(id string) *Unit {
	u, ok := r.units[id]
	if !ok {
		u = &Unit{ID: id}
		r.units[id] = u
	}
	return u
}
