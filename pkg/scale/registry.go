package scale

import (
	"fmt"
	"strings"
	"sync"
)

// Advertisement denotes the discovery-time metadata of a BLE device as seen
// by the capability registry
type Advertisement struct {
	Name     string
	Services []string
}

// HasService reports whether the advertisement carries the given service UUID
func (a Advertisement) HasService(uuid string) bool {
	for _, svc := range a.Services {
		if strings.EqualFold(svc, uuid) {
			return true
		}
	}

	return false
}

// Capability denotes a single functional capability a scale handler may offer
type Capability string

const (

	// CapabilityLiveWeight denotes streaming of live weight values
	CapabilityLiveWeight Capability = "live_weight"

	// CapabilityBodyComposition denotes derivation of body composition values
	CapabilityBodyComposition Capability = "body_composition"

	// CapabilityTimeSync denotes synchronization of the device wall clock
	CapabilityTimeSync Capability = "time_sync"

	// CapabilityStoredData denotes retrieval of measurements stored on the device
	CapabilityStoredData Capability = "stored_data"

	// CapabilityMultiUser denotes on-device management of multiple users
	CapabilityMultiUser Capability = "multi_user"
)

// LinkMode denotes the connection strategy required to talk to a device
type LinkMode int

const (

	// LinkModeConnectGATT establishes a connection and binds GATT characteristics
	LinkModeConnectGATT LinkMode = iota

	// LinkModeBroadcast is reserved for scales emitting data in advertisements only
	LinkModeBroadcast
)

// HandlerMatch denotes the outcome of a successful capability negotiation.
// Supported lists what the device family could offer, Implemented what the
// handler actually covers; the difference is purely diagnostic
type HandlerMatch struct {
	DisplayName string       `json:"display_name"`
	Driver      string       `json:"driver"`
	Supported   []Capability `json:"supported"`
	Implemented []Capability `json:"implemented"`
	LinkMode    LinkMode     `json:"link_mode"`

	// PreferAltWireSet records which of the two known wire-layout variants the
	// advertisement hinted at; an initial bias only, confirmed on connection
	PreferAltWireSet bool `json:"-"`
}

// Matcher decides whether a vendor driver serves an advertised device
type Matcher interface {
	Match(adv Advertisement) (HandlerMatch, bool)
}

// MatcherFunc allows plain functions to act as a Matcher
type MatcherFunc func(adv Advertisement) (HandlerMatch, bool)

// Match calls fn
func (fn MatcherFunc) Match(adv Advertisement) (HandlerMatch, bool) {
	return fn(adv)
}

// Registry holds the matchers of all known vendor drivers. Matching
// predicates are mutually exclusive by construction (each requires both a
// vendor service UUID and a vendor name substring), so registration order
// carries no semantics beyond determinism
type Registry struct {
	mu       sync.RWMutex
	names    []string
	matchers map[string]Matcher
}

// NewRegistry instantiates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		matchers: make(map[string]Matcher),
	}
}

// Register adds a vendor driver matcher under a unique name
func (r *Registry) Register(name string, m Matcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.matchers[name]; exists {
		return fmt.Errorf("driver already registered: %s", name)
	}

	r.names = append(r.names, name)
	r.matchers[name] = m

	return nil
}

// Match runs capability negotiation for a discovered device, returning the
// first (and by construction only) handler match, if any
func (r *Registry) Match(adv Advertisement) (HandlerMatch, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.names {
		if match, ok := r.matchers[name].Match(adv); ok {
			return match, true
		}
	}

	return HandlerMatch{}, false
}

// DefaultRegistry holds all drivers registered at package initialization
var DefaultRegistry = NewRegistry()

// Register adds a vendor driver matcher to the default registry
func Register(name string, m Matcher) error {
	return DefaultRegistry.Register(name, m)
}

// MustRegister adds a vendor driver matcher to the default registry and
// panics on conflict (intended for init-time registration)
func MustRegister(name string, m Matcher) {
	if err := Register(name, m); err != nil {
		panic(err)
	}
}

// Match runs capability negotiation for a discovered device against the
// default registry
func Match(adv Advertisement) (HandlerMatch, bool) {
	return DefaultRegistry.Match(adv)
}
