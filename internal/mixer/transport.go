package mixer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"oscmix2mqtt/internal/logger"

	"github.com/chabad360/go-osc/osc"
)

const (
	pollInterval = 100 * time.Millisecond
	stopTimeout  = 1 * time.Second
	maxDatagram  = 65507
)

// Endpoints are the UDP addresses of one control session.
type Endpoints struct {
	DeviceHost string // where the device listens for commands
	DevicePort string
	ListenHost string // local address for device reports
	ListenPort string
}

func (e Endpoints) deviceAddr() string { return net.JoinHostPort(e.DeviceHost, e.DevicePort) }
func (e Endpoints) listenAddr() string { return net.JoinHostPort(e.ListenHost, e.ListenPort) }

// transport owns the socket pair of one session: a fire-and-forget send
// client and a background receive loop. It is created per connect and
// discarded on disconnect; no retry logic lives here.
type transport struct {
	log    logger.Logger
	client *osc.Client
	conn   net.PacketConn
	cancel context.CancelFunc
	done   chan struct{}
}

// startTransport dials the device, binds the listen socket and launches the
// receive loop. A bind failure is announced through onDisconnected with a
// "bind error" reason and no loop is started.
func startTransport(log logger.Logger, ep Endpoints, onPacket func([]byte), onDisconnected func(string)) (*transport, error) {
	port, err := strconv.Atoi(ep.DevicePort)
	if err != nil {
		reason := fmt.Sprintf("dial error: %v", err)
		onDisconnected(reason)
		return nil, fmt.Errorf("dial %s: %w", ep.deviceAddr(), err)
	}
	client := osc.NewClient(ep.DeviceHost, port)

	conn, err := net.ListenPacket("udp", ep.listenAddr())
	if err != nil {
		reason := fmt.Sprintf("bind error: %v", err)
		onDisconnected(reason)
		return nil, fmt.Errorf("bind %s: %w", ep.listenAddr(), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &transport{
		log:    log,
		client: client,
		conn:   conn,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	log.With(logger.Fields{"module": "transport"}).Infof("listening on %s, device at %s", ep.listenAddr(), ep.deviceAddr())
	go t.receiveLoop(ctx, onPacket, onDisconnected)
	return t, nil
}

// Send transmits one message. Errors are transient and logged, never
// propagated; the session continues.
func (t *transport) Send(msg *osc.Message) {
	if err := t.client.Send(msg); err != nil {
		t.log.With(logger.Fields{"module": "transport"}).Warnf("send %s failed: %v", msg.Address, err)
	}
}

// receiveLoop reads datagrams until cancelled or the socket fails. Exactly
// one onDisconnected call is made per loop lifetime, whatever the exit path.
func (t *transport) receiveLoop(ctx context.Context, onPacket func([]byte), onDisconnected func(string)) {
	buf := make([]byte, maxDatagram)
	reason := "stopped"

	defer func() {
		t.conn.Close()
		close(t.done)
		onDisconnected(reason)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := t.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
			reason = fmt.Sprintf("socket error: %v", err)
			return
		}

		n, _, err := t.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			reason = fmt.Sprintf("socket error: %v", err)
			return
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		onPacket(data)
	}
}

// Stop signals the loop, waits up to stopTimeout for it to acknowledge and
// then releases the send socket. Leaking a stuck loop is preferred to
// hanging the caller.
func (t *transport) Stop() {
	t.cancel()
	select {
	case <-t.done:
	case <-time.After(stopTimeout):
		t.log.With(logger.Fields{"module": "transport"}).Warn("receive loop did not stop in time, proceeding")
	}
}
