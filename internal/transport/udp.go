// Package transport adapts an OS UDP socket to the admin client's
// address-tagged frame model. The adapter owns the socket and the read loop;
// the client only ever sees Frame values whose Src is the datagram's peer
// address, and sends by handing the adapter a destination plus payload.
package transport

import (
	"fmt"
	"log"
	"net"
	"net/netip"
	"sync"

	"github.com/furetosan/cjdnsadmin/internal/admin"
)

// readBufferSize is comfortably above any admin frame; oversize responses
// still arrive whole so the client can flag them instead of mis-parsing a
// truncated datagram.
const readBufferSize = 65536

// UDP is a datagram transport bound to an ephemeral local port. It
// implements admin.Transport.
type UDP struct {
	conn   *net.UDPConn
	frames chan admin.Frame
	logger *log.Logger

	closeOnce sync.Once
	closed    chan struct{}
	wg        sync.WaitGroup
}

// New opens a UDP socket on an ephemeral local port and starts the read
// loop. The logger receives read-error diagnostics; nil means log.Default().
func New(logger *log.Logger) (*UDP, error) {
	if logger == nil {
		logger = log.Default()
	}
	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("transport: bind: %w", err)
	}
	u := &UDP{
		conn:   conn,
		frames: make(chan admin.Frame, 16),
		logger: logger,
		closed: make(chan struct{}),
	}
	u.wg.Add(1)
	go u.readLoop()
	return u, nil
}

// Send transmits one datagram to dst.
func (u *UDP) Send(dst netip.AddrPort, payload []byte) error {
	if _, err := u.conn.WriteToUDPAddrPort(payload, dst); err != nil {
		return fmt.Errorf("transport: send to %s: %w", dst, err)
	}
	return nil
}

// Frames returns the inbound frame channel. It is closed when the transport
// shuts down.
func (u *UDP) Frames() <-chan admin.Frame {
	return u.frames
}

// Close stops the read loop and releases the socket. Safe to call twice.
func (u *UDP) Close() error {
	var err error
	u.closeOnce.Do(func() {
		close(u.closed)
		err = u.conn.Close()
		u.wg.Wait()
		close(u.frames)
	})
	return err
}

// LocalAddr reports the bound local address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

func (u *UDP) readLoop() {
	defer u.wg.Done()
	buf := make([]byte, readBufferSize)
	for {
		n, src, err := u.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			select {
			case <-u.closed:
				return
			default:
			}
			u.logger.Printf("[WARN] transport: read: %v", err)
			continue
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		// Dual-stack sockets report IPv4 peers as 4-in-6 mapped addresses;
		// unmap so the client's byte-equality check against its IPv4 target
		// holds.
		src = netip.AddrPortFrom(src.Addr().Unmap(), src.Port())
		select {
		case u.frames <- admin.Frame{Src: src, Payload: payload}:
		case <-u.closed:
			return
		}
	}
}
