package client

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xplane-protocol/xpc-go/pkg/dataref"
	"github.com/xplane-protocol/xpc-go/pkg/wire"
)

// timeoutError satisfies net.Error for the fake transport's receive timeout.
type timeoutError struct{}

func (timeoutError) Error() string   { return "receive timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// fakeConn is an in-memory transport.Conn standing in for the simulator.
type fakeConn struct {
	mu    sync.Mutex
	sent  [][]byte
	inbox chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Send(data []byte) error {
	select {
	case <-f.closed:
		return errors.New("closed")
	default:
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.mu.Lock()
	f.sent = append(f.sent, cp)
	f.mu.Unlock()
	return nil
}

func (f *fakeConn) Receive(timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-f.inbox:
		return data, nil
	case <-f.closed:
		return nil, errors.New("closed")
	case <-timer.C:
		return nil, timeoutError{}
	}
}

func (f *fakeConn) LocalAddr() net.Addr  { return nil }
func (f *fakeConn) RemoteAddr() net.Addr { return nil }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// inject delivers a datagram to the client as if the host sent it.
func (f *fakeConn) inject(t *testing.T, data []byte) {
	t.Helper()
	select {
	case f.inbox <- data:
	case <-time.After(time.Second):
		t.Fatal("inject: inbox full")
	}
}

// sentCount returns how many datagrams the client has sent.
func (f *fakeConn) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// sentAt returns a copy of the i-th sent datagram.
func (f *fakeConn) sentAt(i int) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(f.sent[i]))
	copy(cp, f.sent[i])
	return cp
}

// waitFor polls until cond is true or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func newTestClient(t *testing.T, opts Options) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	if opts.QueryTimeout == 0 {
		opts.QueryTimeout = 200 * time.Millisecond
	}
	c := NewWithConn(conn, opts)
	t.Cleanup(func() { c.Close() })
	return c, conn
}

func encodeUpdate(t *testing.T, records ...wire.UpdateRecord) []byte {
	t.Helper()
	data, err := wire.EncodeUpdateReply(&wire.UpdateReply{Records: records})
	require.NoError(t, err)
	return data
}

func TestSubscribeAssignsDenseSlots(t *testing.T) {
	c, conn := newTestClient(t, Options{})

	err := c.SubscribeDatarefs(
		SubscriptionSpec{Name: "sim/cockpit2/controls/brake_fan_on", FrequencyHz: 2},
		SubscriptionSpec{Name: "sim/flightmodel/position/y_agl", FrequencyHz: 10},
	)
	require.NoError(t, err)
	require.Equal(t, 2, conn.sentCount())

	for i := 0; i < 2; i++ {
		req, err := wire.DecodeSubscribeRequest(conn.sentAt(i))
		require.NoError(t, err)
		assert.Equal(t, int32(i), req.SlotID)
	}

	// Cache is seeded before any update arrives.
	entry, ok := c.Dataref("sim/flightmodel/position/y_agl")
	require.True(t, ok)
	assert.False(t, entry.Seen)
}

func TestStreamUpdatesPopulateCache(t *testing.T) {
	c, conn := newTestClient(t, Options{})

	require.NoError(t, c.SubscribeDatarefs(
		SubscriptionSpec{Name: "ref/zero", FrequencyHz: 10},
		SubscriptionSpec{Name: "ref/one", FrequencyHz: 10},
	))

	conn.inject(t, encodeUpdate(t,
		wire.UpdateRecord{SlotID: 0, Value: 12.5},
		wire.UpdateRecord{SlotID: 1, Value: 3.25},
	))

	waitFor(t, func() bool {
		e, _ := c.Dataref("ref/one")
		return e.Seen
	})

	zero, _ := c.Dataref("ref/zero")
	one, _ := c.Dataref("ref/one")
	assert.Equal(t, float32(12.5), zero.Value)
	assert.Equal(t, float32(3.25), one.Value)
	assert.False(t, one.Timestamp.Before(zero.Timestamp), "timestamps must not decrease across records")

	// A later update only touches its own slot.
	conn.inject(t, encodeUpdate(t, wire.UpdateRecord{SlotID: 0, Value: 13.0}))
	waitFor(t, func() bool {
		e, _ := c.Dataref("ref/zero")
		return e.Value == 13.0
	})
	one2, _ := c.Dataref("ref/one")
	assert.Equal(t, float32(3.25), one2.Value)
	assert.False(t, one2.Timestamp.After(one.Timestamp))
}

func TestGetDataref(t *testing.T) {
	c, conn := newTestClient(t, Options{})

	type result struct {
		value float32
		err   error
	}
	resCh := make(chan result, 1)
	go func() {
		v, err := c.GetDataref(context.Background(), "sim/flightmodel/position/latitude")
		resCh <- result{v, err}
	}()

	// The query subscribes a slot in the one-shot partition.
	waitFor(t, func() bool { return conn.sentCount() >= 1 })
	req, err := wire.DecodeSubscribeRequest(conn.sentAt(0))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, uint32(req.SlotID), dataref.OneShotBase)
	assert.Equal(t, int32(DefaultQueryFrequencyHz), req.FrequencyHz)

	conn.inject(t, encodeUpdate(t, wire.UpdateRecord{SlotID: req.SlotID, Value: 47.3}))

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, float32(47.3), res.value)

	// The slot is unsubscribed regardless of outcome.
	waitFor(t, func() bool { return conn.sentCount() >= 2 })
	unsub, err := wire.DecodeSubscribeRequest(conn.sentAt(1))
	require.NoError(t, err)
	assert.Equal(t, req.SlotID, unsub.SlotID)
	assert.Equal(t, int32(0), unsub.FrequencyHz)

	// No pending query remains for the slot.
	c.pendingMu.Lock()
	_, pending := c.pendingVars[uint32(req.SlotID)]
	c.pendingMu.Unlock()
	assert.False(t, pending)

	// The one-shot value never lands in the cache.
	_, ok := c.Dataref("sim/flightmodel/position/latitude")
	assert.False(t, ok)
}

func TestGetDatarefTimeout(t *testing.T) {
	c, conn := newTestClient(t, Options{QueryTimeout: 50 * time.Millisecond})

	require.NoError(t, c.SubscribeDatarefs(SubscriptionSpec{Name: "ref/zero", FrequencyHz: 10}))

	_, err := c.GetDataref(context.Background(), "sim/weather/rain_percent")
	require.ErrorIs(t, err, ErrQueryTimeout)

	// Timeout cleanup: no pending query leaks.
	c.pendingMu.Lock()
	remaining := len(c.pendingVars)
	c.pendingMu.Unlock()
	assert.Zero(t, remaining)

	// Unsubscribe for the reserved slot was sent.
	waitFor(t, func() bool { return conn.sentCount() >= 3 })
	unsub, err := wire.DecodeSubscribeRequest(conn.sentAt(2))
	require.NoError(t, err)
	assert.Equal(t, int32(0), unsub.FrequencyHz)
	assert.GreaterOrEqual(t, uint32(unsub.SlotID), dataref.OneShotBase)

	// Unrelated subscription traffic still flows normally afterwards.
	conn.inject(t, encodeUpdate(t, wire.UpdateRecord{SlotID: 0, Value: 1.5}))
	waitFor(t, func() bool {
		e, _ := c.Dataref("ref/zero")
		return e.Seen && e.Value == 1.5
	})
}

func TestLateOneShotReplyTolerated(t *testing.T) {
	c, conn := newTestClient(t, Options{QueryTimeout: 20 * time.Millisecond})

	_, err := c.GetDataref(context.Background(), "ref/slow")
	require.ErrorIs(t, err, ErrQueryTimeout)

	// The host keeps streaming until the unsubscribe lands; the late
	// reply is tolerated, not a protocol error.
	conn.inject(t, encodeUpdate(t, wire.UpdateRecord{SlotID: int32(dataref.OneShotBase), Value: 9.0}))
	waitFor(t, func() bool { return c.Stats().LateOneShotReplies >= 1 })
	assert.Zero(t, c.Stats().ProtocolErrors)
}

func TestUnexpectedPermanentSlotReported(t *testing.T) {
	var mu sync.Mutex
	var reported []error
	c, conn := newTestClient(t, Options{
		OnProtocolError: func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		},
	})

	conn.inject(t, encodeUpdate(t, wire.UpdateRecord{SlotID: 7, Value: 1.0}))

	waitFor(t, func() bool { return c.Stats().ProtocolErrors >= 1 })
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	assert.ErrorIs(t, reported[0], ErrUnexpectedSlot)
}

func TestMalformedUpdateReported(t *testing.T) {
	c, conn := newTestClient(t, Options{})
	require.NoError(t, c.SubscribeDatarefs(SubscriptionSpec{Name: "ref/zero", FrequencyHz: 10}))

	// Payload of 11 bytes is not reducible to 8-byte records.
	bad := append([]byte("RREF\x00"), make([]byte, 11)...)
	conn.inject(t, bad)

	waitFor(t, func() bool { return c.Stats().ProtocolErrors >= 1 })

	// No cache entry was touched and the loop is still alive.
	entry, _ := c.Dataref("ref/zero")
	assert.False(t, entry.Seen)

	conn.inject(t, encodeUpdate(t, wire.UpdateRecord{SlotID: 0, Value: 2.5}))
	waitFor(t, func() bool {
		e, _ := c.Dataref("ref/zero")
		return e.Seen
	})
	assert.Nil(t, c.Err())
}

func TestFailFastStopsLoop(t *testing.T) {
	c, conn := newTestClient(t, Options{FailFast: true})

	conn.inject(t, []byte("XXXX\x00junk"))

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
	assert.ErrorIs(t, c.Err(), wire.ErrUnknownTag)

	// Cache contents remain readable after the loop stops.
	_, ok := c.Dataref("never-subscribed")
	assert.False(t, ok)
}

func TestGetPosition(t *testing.T) {
	c, conn := newTestClient(t, Options{})

	type result struct {
		rec *PositionRecord
		err error
	}
	resCh := make(chan result, 1)
	go func() {
		rec, err := c.GetPosition(context.Background())
		resCh <- result{rec, err}
	}()

	waitFor(t, func() bool { return conn.sentCount() >= 1 })
	req, err := wire.DecodePositionRequest(conn.sentAt(0))
	require.NoError(t, err)
	assert.Equal(t, int32(100), req.RateHz)

	reply := wire.PositionReply{
		Longitude: -122.4194, Latitude: 37.7749, Elevation: 100,
		HeightAGL: 2.5, Pitch: 1, Heading: 270, Roll: -1,
		VX: 60, VY: 0, VZ: 1, RollRate: 0.1, PitchRate: 0.2, YawRate: 0.3,
	}
	data, err := wire.EncodePositionReply(&reply)
	require.NoError(t, err)
	conn.inject(t, data)

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, reply, *res.rec)

	// The stream is cancelled after the reply.
	waitFor(t, func() bool { return conn.sentCount() >= 2 })
	cancel, err := wire.DecodePositionRequest(conn.sentAt(1))
	require.NoError(t, err)
	assert.Equal(t, int32(0), cancel.RateHz)
}

func TestGetPositionTimeout(t *testing.T) {
	c, conn := newTestClient(t, Options{QueryTimeout: 30 * time.Millisecond})

	_, err := c.GetPosition(context.Background())
	require.ErrorIs(t, err, ErrQueryTimeout)

	// Cancellation is sent even on timeout.
	waitFor(t, func() bool { return conn.sentCount() >= 2 })
	cancel, decErr := wire.DecodePositionRequest(conn.sentAt(1))
	require.NoError(t, decErr)
	assert.Equal(t, int32(0), cancel.RateHz)

	// A straggling reply after the timeout is tolerated.
	reply, _ := wire.EncodePositionReply(&wire.PositionReply{Latitude: 1})
	conn.inject(t, reply)
	waitFor(t, func() bool { return c.Stats().LateOneShotReplies >= 1 })
	assert.Zero(t, c.Stats().ProtocolErrors)
}

func TestSetPositionSendsTwice(t *testing.T) {
	c, conn := newTestClient(t, Options{})

	pos := wire.PositionSet{
		Latitude: 37.7749, Longitude: -122.4194, Elevation: 100,
		TrueHeading: 90, Pitch: 0, Roll: 0,
	}
	require.NoError(t, c.SetPosition(pos))

	require.Equal(t, 2, conn.sentCount())
	assert.Equal(t, conn.sentAt(0), conn.sentAt(1), "both datagrams must be identical")

	decoded, err := wire.DecodePositionSet(conn.sentAt(0))
	require.NoError(t, err)
	assert.Equal(t, pos, *decoded)
}

func TestConcurrentStreamAndQuery(t *testing.T) {
	c, conn := newTestClient(t, Options{})
	require.NoError(t, c.SubscribeDatarefs(SubscriptionSpec{Name: "ref/zero", FrequencyHz: 50}))

	resCh := make(chan float32, 1)
	go func() {
		v, err := c.GetDataref(context.Background(), "ref/query")
		if err == nil {
			resCh <- v
		}
	}()

	waitFor(t, func() bool { return conn.sentCount() >= 2 })
	req, err := wire.DecodeSubscribeRequest(conn.sentAt(1))
	require.NoError(t, err)

	// Interleave stream updates with the query reply in one payload and
	// around it.
	conn.inject(t, encodeUpdate(t, wire.UpdateRecord{SlotID: 0, Value: 1.0}))
	conn.inject(t, encodeUpdate(t,
		wire.UpdateRecord{SlotID: 0, Value: 2.0},
		wire.UpdateRecord{SlotID: req.SlotID, Value: 99.0},
		wire.UpdateRecord{SlotID: 0, Value: 3.0},
	))

	select {
	case v := <-resCh:
		assert.Equal(t, float32(99.0), v)
	case <-time.After(2 * time.Second):
		t.Fatal("query did not complete")
	}

	waitFor(t, func() bool {
		e, _ := c.Dataref("ref/zero")
		return e.Value == 3.0
	})

	// The query value never leaked into the cache, the stream never
	// leaked into the query.
	_, ok := c.Dataref("ref/query")
	assert.False(t, ok)
}

func TestSendControlWritesAllInputs(t *testing.T) {
	c, conn := newTestClient(t, Options{})

	require.NoError(t, c.SendControl(Controls{
		YokeRoll: -0.2, Rudder: 0.2, Throttle: 0.8,
		Gear: 1, Flaps: 0.5,
	}))

	require.Equal(t, 8, conn.sentCount())
	names := make(map[string]float32)
	for i := 0; i < 8; i++ {
		req, err := wire.DecodeWriteRequest(conn.sentAt(i))
		require.NoError(t, err)
		names[req.Name] = req.Value
	}
	assert.Equal(t, float32(-0.2), names[drefYokeRoll])
	assert.Equal(t, float32(1), names[drefGearHandle])
	assert.Equal(t, float32(0.5), names[drefFlaps])
	assert.Len(t, names, 8)
}

func TestSetPaused(t *testing.T) {
	c, conn := newTestClient(t, Options{})

	require.NoError(t, c.SetPaused(true))
	require.NoError(t, c.SetPaused(false))

	on, err := wire.DecodeCommandRequest(conn.sentAt(0))
	require.NoError(t, err)
	off, err := wire.DecodeCommandRequest(conn.sentAt(1))
	require.NoError(t, err)
	assert.Equal(t, "sim/operation/pause_on", on.Name)
	assert.Equal(t, "sim/operation/pause_off", off.Name)
}

func TestCloseUnsubscribesAndJoinsLoop(t *testing.T) {
	conn := newFakeConn()
	c := NewWithConn(conn, Options{})
	require.NoError(t, c.SubscribeDatarefs(SubscriptionSpec{Name: "ref/zero", FrequencyHz: 10}))

	require.NoError(t, c.Close())

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not join")
	}
	assert.Nil(t, c.Err())

	// Subscribe + best-effort unsubscribe on close.
	require.Equal(t, 2, conn.sentCount())
	unsub, err := wire.DecodeSubscribeRequest(conn.sentAt(1))
	require.NoError(t, err)
	assert.Equal(t, int32(0), unsub.FrequencyHz)

	// Cached values survive shutdown.
	_, ok := c.Dataref("ref/zero")
	assert.True(t, ok)

	// Operations after close fail cleanly.
	_, err = c.GetDataref(context.Background(), "x")
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestUnsubscribeDataref(t *testing.T) {
	c, conn := newTestClient(t, Options{})
	require.NoError(t, c.SubscribeDatarefs(SubscriptionSpec{Name: "ref/zero", FrequencyHz: 10}))

	conn.inject(t, encodeUpdate(t, wire.UpdateRecord{SlotID: 0, Value: 5.0}))
	waitFor(t, func() bool {
		e, _ := c.Dataref("ref/zero")
		return e.Seen
	})

	require.NoError(t, c.UnsubscribeDataref("ref/zero"))
	require.Equal(t, 2, conn.sentCount())

	// Entry stays readable with its last value.
	entry, ok := c.Dataref("ref/zero")
	require.True(t, ok)
	assert.Equal(t, float32(5.0), entry.Value)

	assert.Empty(t, c.Subscriptions())
}
