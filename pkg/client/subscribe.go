package client

import (
	"github.com/xplane-protocol/xpc-go/pkg/dataref"
	"github.com/xplane-protocol/xpc-go/pkg/wire"
)

// SubscribeDatarefs registers the given datarefs for permanent streaming.
// Slot ids are assigned densely in list order. Cache entries are seeded
// before any request is sent, so Dataref never reports a missing key for a
// subscribed name.
//
// On a send failure the datarefs registered so far stay subscribed; the
// failed and remaining ones are not.
func (c *Client) SubscribeDatarefs(specs ...SubscriptionSpec) error {
	for _, spec := range specs {
		sub, err := c.registry.Add(spec.Name, spec.FrequencyHz)
		if err != nil {
			return err
		}
		c.cache.Seed(spec.Name)

		data, err := wire.EncodeSubscribeRequest(&wire.SubscribeRequest{
			FrequencyHz: int32(spec.FrequencyHz),
			SlotID:      int32(sub.SlotID),
			Name:        spec.Name,
		})
		if err != nil {
			// Undo the registration the host never saw.
			_, _ = c.registry.Remove(spec.Name)
			return err
		}

		slot := sub.SlotID
		if err := c.send(wire.TagRREF, data, &slot, 0); err != nil {
			_, _ = c.registry.Remove(spec.Name)
			return err
		}
	}
	return nil
}

// UnsubscribeDataref cancels streaming for name. The cache entry stays
// readable with its last value (stale-but-available).
func (c *Client) UnsubscribeDataref(name string) error {
	sub, err := c.registry.Remove(name)
	if err != nil {
		return err
	}

	data, err := wire.EncodeSubscribeRequest(&wire.SubscribeRequest{
		FrequencyHz: 0,
		SlotID:      int32(sub.SlotID),
		Name:        name,
	})
	if err != nil {
		return err
	}
	slot := sub.SlotID
	return c.send(wire.TagRREF, data, &slot, 0)
}

// Subscriptions returns the active permanent subscriptions ordered by slot.
func (c *Client) Subscriptions() []dataref.Subscription {
	return c.registry.List()
}

// Dataref returns the latest cached entry for a subscribed dataref.
// The second result is false when the name was never subscribed.
// Entry.Seen is false until the first update arrives; staleness is
// detectable by the caller via Entry.Timestamp, never by the engine.
func (c *Client) Dataref(name string) (dataref.Entry, bool) {
	return c.cache.Get(name)
}

// Snapshot returns a copy of every cached entry.
func (c *Client) Snapshot() map[string]dataref.Entry {
	return c.cache.Snapshot()
}
