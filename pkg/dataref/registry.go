package dataref

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Registry errors.
var (
	ErrDuplicateName = errors.New("dataref already subscribed")
	ErrNotSubscribed = errors.New("dataref not subscribed")
	ErrRegistryFull  = errors.New("permanent slot range exhausted")
)

// OneShotBase is the first slot id reserved for one-shot synchronous
// queries. Permanent subscriptions never reach it and one-shot queries never
// go below it.
const OneShotBase uint32 = 1 << 20

// Subscription is one permanently streamed dataref.
type Subscription struct {
	// SlotID identifies the dataref in update replies.
	SlotID uint32

	// Name is the dataref path, e.g. "sim/flightmodel/position/y_agl".
	Name string

	// FrequencyHz is the host-driven update rate.
	FrequencyHz uint32
}

// Registry assigns slot ids to permanently subscribed datarefs.
// Slot ids are dense, assigned in subscription order, and never reused
// within an engine lifetime so that a late datagram for a removed slot can
// never alias a new subscription.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Subscription
	bySlot map[uint32]*Subscription
	next   uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Subscription),
		bySlot: make(map[uint32]*Subscription),
	}
}

// Add registers name at the next dense slot id and returns the assigned
// subscription. Duplicate names are rejected.
func (r *Registry) Add(name string, frequencyHz uint32) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[name]; exists {
		return Subscription{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	if r.next >= OneShotBase {
		return Subscription{}, ErrRegistryFull
	}

	sub := &Subscription{SlotID: r.next, Name: name, FrequencyHz: frequencyHz}
	r.next++
	r.byName[name] = sub
	r.bySlot[sub.SlotID] = sub
	return *sub, nil
}

// Remove drops the subscription for name and returns its slot id.
func (r *Registry) Remove(name string) (Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.byName[name]
	if !exists {
		return Subscription{}, fmt.Errorf("%w: %q", ErrNotSubscribed, name)
	}
	delete(r.byName, name)
	delete(r.bySlot, sub.SlotID)
	return *sub, nil
}

// Name resolves a slot id to its dataref name.
func (r *Registry) Name(slotID uint32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, exists := r.bySlot[slotID]
	if !exists {
		return "", false
	}
	return sub.Name, true
}

// Slot resolves a dataref name to its slot id.
func (r *Registry) Slot(name string) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, exists := r.byName[name]
	if !exists {
		return 0, false
	}
	return sub.SlotID, true
}

// Count returns the number of active permanent subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// List returns the active subscriptions ordered by slot id.
func (r *Registry) List() []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := make([]Subscription, 0, len(r.bySlot))
	for _, sub := range r.bySlot {
		subs = append(subs, *sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].SlotID < subs[j].SlotID })
	return subs
}
