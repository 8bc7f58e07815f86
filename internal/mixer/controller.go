package mixer

import (
	"context"
	"errors"
	"net"
	"sync"

	"oscmix2mqtt/internal/logger"
	"oscmix2mqtt/internal/protocol"
)

// ErrNotConnected is returned by commands issued outside a session.
var ErrNotConnected = errors.New("not connected")

// Events are the subscriber callbacks at the collaborator boundary. All of
// them are optional. OnStateChanged and OnMeterSamples run on dedicated
// goroutines, never under the store's lock.
type Events struct {
	OnStateChanged func(protocol.Descriptor, protocol.Value)
	OnMeterSamples func([]MeterSample)
	OnConnected    func()
	OnDisconnected func(reason string)
}

// Controller is the facade external callers drive: connect/disconnect the
// session, issue parameter changes, request a full refresh. It owns the
// state store and the transport of the active session.
type Controller struct {
	log    logger.Logger
	table  *protocol.Table
	codec  *protocol.Codec
	state  *State
	events Events

	meterRate int

	mu sync.Mutex
	tr *transport
}

func NewController(log logger.Logger, counts protocol.Counts, meterRateHz int, events Events) *Controller {
	table := protocol.NewTable(counts)
	codec := protocol.NewCodec(table)
	return &Controller{
		log:       log,
		table:     table,
		codec:     codec,
		state:     NewState(log, table, codec),
		events:    events,
		meterRate: meterRateHz,
	}
}

// Table exposes the address table for boundary components (the MQTT bridge
// resolves command topics against it).
func (c *Controller) Table() *protocol.Table { return c.table }

// State exposes read-only access to the cache.
func (c *Controller) State() *State { return c.state }

// Start launches the notification fan-out and the meter aggregator. They
// run for the controller's lifetime, across sessions.
func (c *Controller) Start(ctx context.Context) {
	go c.notifyLoop(ctx)
	go NewAggregator(c.log, c.state, c.meterRate, c.events.OnMeterSamples).Run(ctx)
}

func (c *Controller) notifyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ch := <-c.state.Changes():
			if c.events.OnStateChanged != nil {
				c.events.OnStateChanged(ch.Desc, ch.Value)
			}
		}
	}
}

// Connect opens a session. On success OnConnected fires and the receive
// loop runs until Disconnect or a socket failure; either exit clears the
// state store and fires OnDisconnected exactly once. There is no automatic
// retry; callers may Connect again with new endpoints.
func (c *Controller) Connect(ep Endpoints) error {
	c.mu.Lock()
	if c.tr != nil {
		c.mu.Unlock()
		return errors.New("already connected")
	}
	c.mu.Unlock()

	tr, err := startTransport(c.log, ep, c.handlePacket, c.handleDisconnect)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.tr = tr
	c.mu.Unlock()

	if c.events.OnConnected != nil {
		c.events.OnConnected()
	}
	return nil
}

// ListenAddr returns the bound local address of the active session, or nil
// when disconnected. Useful when the listen port was configured as 0.
func (c *Controller) ListenAddr() net.Addr {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tr == nil {
		return nil
	}
	return c.tr.conn.LocalAddr()
}

// Disconnect stops the receive loop and releases the sockets. Safe to call
// when not connected.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	tr := c.tr
	c.tr = nil
	c.mu.Unlock()

	if tr != nil {
		tr.Stop()
	}
}

// SetParameter issues one parameter change: validated and applied
// optimistically to the store, encoded and transmitted fire-and-forget.
// Returns *RejectedWriteError for refused writes.
func (c *Controller) SetParameter(d protocol.Descriptor, v protocol.Value) error {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()
	if tr == nil {
		return ErrNotConnected
	}

	msg, err := c.state.ApplyOutbound(d, v)
	if err != nil {
		return err
	}
	tr.Send(msg)
	return nil
}

// RequestRefresh asks the device to re-send its full state.
func (c *Controller) RequestRefresh() error {
	c.mu.Lock()
	tr := c.tr
	c.mu.Unlock()
	if tr == nil {
		return ErrNotConnected
	}
	tr.Send(c.codec.EncodeRefresh())
	return nil
}

func (c *Controller) handlePacket(data []byte) {
	updates, err := c.codec.Decode(data)
	if err != nil {
		var unknown *protocol.UnknownAddressError
		if errors.As(err, &unknown) {
			c.log.With(logger.Fields{"module": "mixer"}).Debugf("dropped: %v", err)
		} else {
			c.log.With(logger.Fields{"module": "mixer"}).Warnf("dropped: %v", err)
		}
		return
	}
	for _, u := range updates {
		c.state.ApplyInbound(u)
	}
}

func (c *Controller) handleDisconnect(reason string) {
	c.mu.Lock()
	c.tr = nil
	c.mu.Unlock()

	c.state.Clear()
	c.log.With(logger.Fields{"module": "mixer"}).Infof("session ended: %s", reason)
	if c.events.OnDisconnected != nil {
		c.events.OnDisconnected(reason)
	}
}
