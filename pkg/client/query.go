package client

import (
	"context"
	"fmt"
	"time"

	"github.com/xplane-protocol/xpc-go/pkg/dataref"
	"github.com/xplane-protocol/xpc-go/pkg/wire"
)

// positionQueryRateHz is the delivery rate requested for a one-shot
// position query; the stream is cancelled after the first reply.
const positionQueryRateHz = 100

// allocOneShotSlot returns the next slot id in the one-shot partition.
// Ids are never handed out below dataref.OneShotBase, which keeps them
// disjoint from every permanent subscription.
func (c *Client) allocOneShotSlot() uint32 {
	return dataref.OneShotBase + (c.oneShotSeq.Add(1) - 1)
}

// GetDataref synchronously reads one dataref value. It subscribes a
// reserved one-shot slot at the configured query frequency, waits for the
// first reply, and unsubscribes the slot regardless of outcome.
//
// Intended for occasional reads; use SubscribeDatarefs for values needed
// continuously.
func (c *Client) GetDataref(ctx context.Context, name string) (float32, error) {
	select {
	case <-c.shutdown:
		return 0, ErrClientClosed
	default:
	}

	slot := c.allocOneShotSlot()

	// Register the waiter before sending: the reply may beat the return
	// from send.
	ch := make(chan float32, 1)
	c.pendingMu.Lock()
	c.pendingVars[slot] = ch
	c.pendingMu.Unlock()

	// Removal races the receive loop; whichever side runs first wins and
	// the other is a no-op.
	defer func() {
		c.pendingMu.Lock()
		delete(c.pendingVars, slot)
		c.pendingMu.Unlock()
	}()

	req := wire.SubscribeRequest{
		FrequencyHz: c.opts.QueryFrequencyHz,
		SlotID:      int32(slot),
		Name:        name,
	}
	data, err := wire.EncodeSubscribeRequest(&req)
	if err != nil {
		return 0, err
	}
	if err := c.send(wire.TagRREF, data, &slot, 0); err != nil {
		return 0, err
	}

	// The slot stays reserved until this lands; best-effort on the
	// failure paths.
	defer c.cancelOneShot(slot, name)

	timer := time.NewTimer(c.opts.QueryTimeout)
	defer timer.Stop()

	select {
	case value := <-ch:
		return value, nil
	case <-timer.C:
		return 0, fmt.Errorf("%w: dataref %q after %v", ErrQueryTimeout, name, c.opts.QueryTimeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c.shutdown:
		return 0, ErrClientClosed
	}
}

// cancelOneShot sends the frequency-0 unsubscribe that releases a one-shot
// slot on the host.
func (c *Client) cancelOneShot(slot uint32, name string) {
	data, err := wire.EncodeSubscribeRequest(&wire.SubscribeRequest{
		FrequencyHz: 0,
		SlotID:      int32(slot),
		Name:        name,
	})
	if err != nil {
		return
	}
	_ = c.send(wire.TagRREF, data, &slot, 0)
}

// PositionRecord is the synchronous position/attitude/velocity result.
// It aliases the wire reply; the host delivers it on a dedicated message
// kind outside the slot scheme, so it never touches the cache.
type PositionRecord = wire.PositionReply

// GetPosition synchronously fetches the user aircraft's position record.
// It requests the position stream, waits for the first reply, and cancels
// the stream regardless of outcome. Only one position query may be in
// flight at a time.
func (c *Client) GetPosition(ctx context.Context) (*PositionRecord, error) {
	select {
	case <-c.shutdown:
		return nil, ErrClientClosed
	default:
	}

	ch := make(chan *wire.PositionReply, 1)
	c.posMu.Lock()
	if c.posWaiter != nil {
		c.posMu.Unlock()
		return nil, ErrPositionQueryActive
	}
	c.posWaiter = ch
	c.posMu.Unlock()

	defer func() {
		c.posMu.Lock()
		if c.posWaiter == ch {
			c.posWaiter = nil
		}
		c.posMu.Unlock()
	}()

	data, err := wire.EncodePositionRequest(&wire.PositionRequest{RateHz: positionQueryRateHz})
	if err != nil {
		return nil, err
	}
	if err := c.send(wire.TagRPOS, data, nil, 0); err != nil {
		return nil, err
	}

	// Cancel the stream whatever happens below.
	defer func() {
		if data, err := wire.EncodePositionRequest(&wire.PositionRequest{RateHz: 0}); err == nil {
			_ = c.send(wire.TagRPOS, data, nil, 0)
		}
	}()

	timer := time.NewTimer(c.opts.QueryTimeout)
	defer timer.Stop()

	select {
	case reply := <-ch:
		return reply, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: position after %v", ErrQueryTimeout, c.opts.QueryTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.shutdown:
		return nil, ErrClientClosed
	}
}
