package client

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/xplane-protocol/xpc-go/pkg/dataref"
	"github.com/xplane-protocol/xpc-go/pkg/log"
	"github.com/xplane-protocol/xpc-go/pkg/transport"
	"github.com/xplane-protocol/xpc-go/pkg/wire"
)

// Client errors.
var (
	ErrClientClosed        = errors.New("client closed")
	ErrQueryTimeout        = errors.New("query timed out")
	ErrUnexpectedSlot      = errors.New("update for unknown slot")
	ErrUnexpectedMessage   = errors.New("unexpected message kind")
	ErrPositionQueryActive = errors.New("position query already in flight")
)

// Defaults applied by New when the corresponding option is zero.
const (
	DefaultQueryTimeout     = 2 * time.Second
	DefaultQueryFrequencyHz = 10

	// recvPollInterval bounds how long the receive loop can be blocked in
	// the socket before it rechecks the shutdown signal.
	recvPollInterval = 100 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	// Host and Port locate the simulator's UDP endpoint.
	Host string
	Port int

	// QueryTimeout bounds GetDataref and GetPosition waits.
	QueryTimeout time.Duration

	// QueryFrequencyHz is the short-lived rate requested for one-shot
	// dataref queries.
	QueryFrequencyHz int32

	// FailFast makes framing errors stop the receive loop instead of
	// skipping the malformed datagram.
	FailFast bool

	// ProtocolLogger receives a machine-readable event trace.
	// Nil disables protocol logging.
	ProtocolLogger log.Logger

	// OnProtocolError is invoked for non-fatal protocol errors (framing
	// errors, unexpected slots). Must not block; called from the receive
	// loop. Nil means errors are only logged.
	OnProtocolError func(error)
}

// Stats are cumulative receive-loop counters.
type Stats struct {
	PacketsReceived    uint64
	RecordsDispatched  uint64
	LateOneShotReplies uint64
	ProtocolErrors     uint64
}

// SubscriptionSpec names one dataref to stream permanently.
type SubscriptionSpec struct {
	Name        string
	FrequencyHz uint32
}

// Client is the protocol engine for one simulator host.
type Client struct {
	opts      Options
	conn      transport.Conn
	registry  *dataref.Registry
	cache     *dataref.Cache
	logger    log.Logger
	sessionID string

	// sendMu serializes writes to the shared transport.
	sendMu sync.Mutex

	// Pending one-shot variable queries by slot id. Insertion happens on
	// the caller's path before the request is sent; removal happens
	// exactly once, by the receive loop on match or by the caller on
	// timeout.
	pendingMu   sync.Mutex
	pendingVars map[uint32]chan float32

	// At most one position query waits at a time; the host streams a
	// single global position feed.
	posMu     sync.Mutex
	posWaiter chan *wire.PositionReply

	oneShotSeq atomic.Uint32

	shutdown  chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	errMu   sync.Mutex
	loopErr error

	packetsReceived    atomic.Uint64
	recordsDispatched  atomic.Uint64
	lateOneShotReplies atomic.Uint64
	protocolErrors     atomic.Uint64
}

// New dials the simulator endpoint and starts the receive loop.
// The caller must Close the client to release the socket and join the loop.
func New(opts Options) (*Client, error) {
	conn, err := transport.Dial(opts.Host, opts.Port)
	if err != nil {
		return nil, err
	}
	return NewWithConn(conn, opts), nil
}

// NewWithConn builds a client on an existing transport connection and starts
// the receive loop. The client takes ownership of conn.
func NewWithConn(conn transport.Conn, opts Options) *Client {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.QueryFrequencyHz <= 0 {
		opts.QueryFrequencyHz = DefaultQueryFrequencyHz
	}
	logger := opts.ProtocolLogger
	if logger == nil {
		logger = log.NoopLogger{}
	}

	c := &Client{
		opts:        opts,
		conn:        conn,
		registry:    dataref.NewRegistry(),
		cache:       dataref.NewCache(),
		logger:      logger,
		sessionID:   uuid.NewString(),
		pendingVars: make(map[uint32]chan float32),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}),
	}

	c.logState("", "LISTENING", "")
	go c.run()
	return c
}

// SessionID returns the UUID identifying this engine session in protocol logs.
func (c *Client) SessionID() string { return c.sessionID }

// Done is closed when the receive loop has terminated.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that stopped the receive loop, or nil while it runs
// or after a clean shutdown.
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.loopErr
}

// Stats returns cumulative receive-loop counters.
func (c *Client) Stats() Stats {
	return Stats{
		PacketsReceived:    c.packetsReceived.Load(),
		RecordsDispatched:  c.recordsDispatched.Load(),
		LateOneShotReplies: c.lateOneShotReplies.Load(),
		ProtocolErrors:     c.protocolErrors.Load(),
	}
}

// Close cancels streaming best-effort, stops the receive loop, joins it and
// closes the transport. Cached values remain readable afterwards.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		// Best-effort stream cancellation while the socket is still up.
		for _, sub := range c.registry.List() {
			if data, err := wire.EncodeSubscribeRequest(&wire.SubscribeRequest{
				FrequencyHz: 0,
				SlotID:      int32(sub.SlotID),
				Name:        sub.Name,
			}); err == nil {
				slot := sub.SlotID
				_ = c.send(wire.TagRREF, data, &slot, 0)
			}
		}

		close(c.shutdown)
		_ = c.conn.Close()
		<-c.done
	})
	return nil
}

// send serializes one datagram onto the shared transport and logs it.
func (c *Client) send(tag wire.Tag, data []byte, slotID *uint32, records int) error {
	c.sendMu.Lock()
	err := c.conn.Send(data)
	c.sendMu.Unlock()
	if err != nil {
		return fmt.Errorf("send %s: %w", tag, err)
	}

	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  c.sessionID,
		Direction:  log.DirectionOut,
		Category:   log.CategoryPacket,
		RemoteAddr: c.remoteAddr(),
		Packet:     &log.PacketEvent{Tag: tag.String(), Size: len(data), Records: records, SlotID: slotID},
	})
	return nil
}

func (c *Client) remoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// run is the receive loop: Listening -> Decode -> Dispatch -> Listening.
// It terminates on Close or on a fatal error, reported exactly once.
func (c *Client) run() {
	defer close(c.done)

	err := c.listen()

	reason := "closed"
	if err != nil {
		reason = err.Error()
		c.errMu.Lock()
		c.loopErr = err
		c.errMu.Unlock()
		c.logError(err, "receive loop stopped")
	}
	c.logState("LISTENING", "STOPPED", reason)
}

func (c *Client) listen() error {
	for {
		select {
		case <-c.shutdown:
			return nil
		default:
		}

		data, err := c.conn.Receive(recvPollInterval)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			select {
			case <-c.shutdown:
				return nil
			default:
			}
			return fmt.Errorf("transport receive: %w", err)
		}

		c.packetsReceived.Add(1)
		if err := c.handleDatagram(data); err != nil {
			return err
		}
	}
}

// handleDatagram decodes and dispatches one inbound datagram. The returned
// error is non-nil only when the loop must stop (FailFast framing policy).
func (c *Client) handleDatagram(data []byte) error {
	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  c.sessionID,
		Direction:  log.DirectionIn,
		Category:   log.CategoryPacket,
		RemoteAddr: c.remoteAddr(),
		Packet:     &log.PacketEvent{Tag: peekTagString(data), Size: len(data)},
	})

	tag, err := wire.PeekTag(data)
	if err != nil {
		return c.framingError(err)
	}

	switch tag {
	case wire.TagRREF:
		reply, err := wire.DecodeUpdateReply(data)
		if err != nil {
			return c.framingError(err)
		}
		for _, rec := range reply.Records {
			c.dispatchRecord(rec)
		}
		return nil

	case wire.TagRPOS:
		reply, err := wire.DecodePositionReply(data)
		if err != nil {
			return c.framingError(err)
		}
		c.dispatchPosition(reply)
		return nil

	default:
		// A valid tag the host never sends to a client socket.
		c.reportProtocolError(fmt.Errorf("%w: %s", ErrUnexpectedMessage, tag))
		return nil
	}
}

// dispatchRecord routes one {slot, value} pair: pending one-shot query
// first, then the permanent subscription cache, then the unknown-slot
// policy.
func (c *Client) dispatchRecord(rec wire.UpdateRecord) {
	c.recordsDispatched.Add(1)
	slot := uint32(rec.SlotID)

	c.pendingMu.Lock()
	if ch, ok := c.pendingVars[slot]; ok {
		delete(c.pendingVars, slot)
		c.pendingMu.Unlock()
		select {
		case ch <- rec.Value:
		default:
		}
		return
	}
	c.pendingMu.Unlock()

	if name, ok := c.registry.Name(slot); ok {
		c.cache.Update(name, rec.Value, time.Now())
		return
	}

	// Unknown slot. Ids in the one-shot range are replies to a query that
	// already timed out; the host keeps streaming until the unsubscribe
	// lands. Ids in the permanent range indicate a real protocol fault.
	if slot >= dataref.OneShotBase {
		c.lateOneShotReplies.Add(1)
		return
	}
	c.reportProtocolError(fmt.Errorf("%w: %d", ErrUnexpectedSlot, slot))
}

func (c *Client) dispatchPosition(reply *wire.PositionReply) {
	c.posMu.Lock()
	ch := c.posWaiter
	c.posWaiter = nil
	c.posMu.Unlock()

	if ch == nil {
		// Position stream still draining after the query was answered
		// or timed out.
		c.lateOneShotReplies.Add(1)
		return
	}
	select {
	case ch <- reply:
	default:
	}
}

// framingError applies the framing policy: report and skip, or stop the
// loop when FailFast is set.
func (c *Client) framingError(err error) error {
	c.reportProtocolError(err)
	if c.opts.FailFast {
		return err
	}
	return nil
}

func (c *Client) reportProtocolError(err error) {
	c.protocolErrors.Add(1)
	c.logError(err, "dispatch")
	if c.opts.OnProtocolError != nil {
		c.opts.OnProtocolError(err)
	}
}

func (c *Client) logError(err error, context string) {
	c.logger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  c.sessionID,
		Direction:  log.DirectionIn,
		Category:   log.CategoryError,
		RemoteAddr: c.remoteAddr(),
		Error:      &log.ErrorEventData{Message: err.Error(), Context: context},
	})
}

func (c *Client) logState(oldState, newState, reason string) {
	c.logger.Log(log.Event{
		Timestamp:   time.Now(),
		SessionID:   c.sessionID,
		Category:    log.CategoryState,
		RemoteAddr:  c.remoteAddr(),
		StateChange: &log.StateChangeEvent{OldState: oldState, NewState: newState, Reason: reason},
	})
}

// peekTagString is a logging aid; malformed datagrams log their first bytes.
func peekTagString(data []byte) string {
	if tag, err := wire.PeekTag(data); err == nil {
		return tag.String()
	}
	if len(data) > 4 {
		data = data[:4]
	}
	return fmt.Sprintf("%q", data)
}
