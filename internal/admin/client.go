// =============================================================================
// FILE: internal/admin/client.go
// ROLE: Network Layer — The Admin RPC Client State Machine
// =============================================================================
//
// SYSTEM CONTEXT
// ==============
// This file is the system's only point of contact with a cjdns daemon. Every
// admin call — ping, function discovery, generic invocations — flows through
// Client.Call, which runs the two-phase cookie/auth handshake over a datagram
// transport and correlates asynchronous responses with outstanding requests.
//
// ARCHITECTURE POSITION
// =====================
//
//	┌──────────────────────────────────────────┐
//	│  cmd/cjdnsadmin (ping, call, watch, ...) │
//	└─────────────┬────────────────────────────┘
//	              │  Call() / typed wrappers
//	              ▼
//	┌──────────────────────────────────────────┐
//	│  internal/admin (THIS FILE)              │
//	│  handshake, request table, timeouts,     │
//	│  txid demultiplexing                     │
//	└─────────────┬────────────────────────────┘
//	              │  bencoded UDP datagrams
//	              ▼
//	┌──────────────────────────────────────────┐
//	│  cjdns daemon admin socket               │
//	└──────────────────────────────────────────┘
//
// DESIGN DECISIONS
// ================
// 1. SINGLE DISPATCH GOROUTINE: the request table, handles and timers are
//    owned by one goroutine (run). Calls, inbound frames and timer firings
//    arrive over channels, so the table needs no lock and each response is
//    processed atomically: demultiplex, fulfill, cancel timeout, with no
//    interleaved I/O.
//
// 2. PER-PHASE HANDLES: each wire exchange gets a fresh handle, so the txid
//    on the auth frame differs from the cookie frame's. A late cookie reply
//    after the phase transition finds no table entry and is dropped.
//
// 3. EXACTLY-ONCE PROMISES: a request is removed from the table before its
//    promise resolves. Whichever of response and timeout loses the race finds
//    the handle gone and becomes a no-op.
//
// HANDSHAKE
// =========
//
//	Call ──▶ send {"q":"cookie","txid":H}          (awaiting cookie)
//	     ◀── {"cookie":C,"txid":H}
//	     ──▶ send signed {"q":"auth",...,"txid":H'} (awaiting result)
//	     ◀── {...,"txid":H'}                        promise resolves
//
// A cookie reply without a cookie resolves ErrNoCookie; silence in either
// phase resolves ErrTimeout after the configured wait.
// =============================================================================

package admin

import (
	"log"
	"net/netip"
	"sync"
	"time"

	"github.com/furetosan/cjdnsadmin/internal/bencode"
)

const (
	// MaxMessageSize caps every encoded frame in both directions.
	MaxMessageSize = 8192

	// DefaultTimeout is the per-phase wait for a daemon response.
	DefaultTimeout = 5000 * time.Millisecond
)

// Frame is one datagram as seen by the client: the peer source address
// popped off the wire plus the opaque payload.
type Frame struct {
	Src     netip.AddrPort
	Payload []byte
}

// Transport is a duplex datagram pipe. The adapter owns the OS socket and
// the address stanza; the client only sees address-tagged frames.
type Transport interface {
	Send(dst netip.AddrPort, payload []byte) error
	Frames() <-chan Frame
	Close() error
}

// Config carries the constructor inputs for a Client.
type Config struct {
	// Target is the daemon's admin address. An unspecified IPv4 address
	// (0.0.0.0) is rewritten to 127.0.0.1 with the port preserved.
	Target netip.AddrPort

	// Password is the admin credential used by the auth handshake.
	Password string

	// Timeout overrides DefaultTimeout when non-zero.
	Timeout time.Duration

	// Logger receives drop diagnostics. Defaults to log.Default().
	Logger *log.Logger
}

type phase int

const (
	awaitingCookie phase = iota
	awaitingResult
)

// request is one outstanding call's table entry.
type request struct {
	handle  uint32
	phase   phase
	payload *bencode.Dict // caller message, retained across the handshake
	probe   bool          // cookie probe: finish after the cookie phase
	timer   *time.Timer
	promise *Promise
}

type call struct {
	payload *bencode.Dict
	probe   bool
	promise *Promise
}

// Client issues authenticated RPC calls to a single cjdns daemon.
type Client struct {
	transport Transport
	target    netip.AddrPort
	password  []byte
	timeout   time.Duration
	logger    *log.Logger

	calls       chan *call
	expirations chan uint32

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	doneCh       chan struct{}

	// Owned exclusively by the dispatch goroutine.
	outstanding map[uint32]*request
	nextHandle  uint32
}

// New creates a client speaking to the daemon at cfg.Target through tr and
// starts its dispatch goroutine. The client takes ownership of the transport;
// Close tears both down.
func New(tr Transport, cfg Config) *Client {
	// Normalize 4-in-6 mapped targets up front: the transport unmaps frame
	// sources, and the spurious-source check at receive time is a strict
	// byte comparison against this stored value.
	target := netip.AddrPortFrom(cfg.Target.Addr().Unmap(), cfg.Target.Port())
	if addr := target.Addr(); addr.Is4() && addr.IsUnspecified() {
		target = netip.AddrPortFrom(netip.AddrFrom4([4]byte{127, 0, 0, 1}), target.Port())
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	c := &Client{
		transport:   tr,
		target:      target,
		password:    []byte(cfg.Password),
		timeout:     timeout,
		logger:      logger,
		calls:       make(chan *call),
		expirations: make(chan uint32, 16),
		shutdownCh:  make(chan struct{}),
		doneCh:      make(chan struct{}),
		outstanding: make(map[uint32]*request),
	}
	logger.Printf("[DEBUG] admin: connecting to [%s]", target)
	go c.run()
	return c
}

// Target returns the daemon address the client sends to, after any
// unspecified-address rewrite.
func (c *Client) Target() netip.AddrPort {
	return c.target
}

// Call invokes an admin function with the given arguments and returns a
// promise that resolves exactly once. A nil args is treated as empty.
func (c *Client) Call(function string, args *bencode.Dict) *Promise {
	payload := bencode.NewDict().
		Set("q", bencode.String("auth")).
		Set("aq", bencode.String(function)).
		Set("args", args.Clone())
	return c.submit(&call{payload: payload, promise: newPromise()})
}

// Close stops the dispatch goroutine, fails any outstanding calls with
// ErrSocketNotReady and closes the transport.
func (c *Client) Close() error {
	c.shutdownOnce.Do(func() { close(c.shutdownCh) })
	<-c.doneCh
	return c.transport.Close()
}

func (c *Client) submit(cl *call) *Promise {
	select {
	case c.calls <- cl:
	case <-c.shutdownCh:
		cl.promise.resolve(Result{Err: ErrSocketNotReady})
	}
	return cl.promise
}

// run is the dispatch loop. All table mutation happens here.
func (c *Client) run() {
	defer close(c.doneCh)
	frames := c.transport.Frames()
	for {
		select {
		case cl := <-c.calls:
			c.startCall(cl)
		case f, ok := <-frames:
			if !ok {
				// Transport gone; let outstanding requests time out.
				frames = nil
				continue
			}
			c.handleFrame(f)
		case h := <-c.expirations:
			c.expire(h)
		case <-c.shutdownCh:
			c.failAll(ErrSocketNotReady)
			return
		}
	}
}

// insert assigns a fresh handle and stores the request. Handles are
// monotonic; a slot still held after a 32-bit wrap is skipped.
func (c *Client) insert(req *request) {
	for {
		h := c.nextHandle
		c.nextHandle++
		if _, taken := c.outstanding[h]; !taken {
			req.handle = h
			c.outstanding[h] = req
			return
		}
	}
}

// finish removes the request from the table, cancels its timer and then
// resolves the promise — in that order, so a late datagram for the same
// handle is dropped as "no such handle".
func (c *Client) finish(req *request, res Result) {
	if req.timer != nil {
		req.timer.Stop()
	}
	delete(c.outstanding, req.handle)
	req.promise.resolve(res)
}

func (c *Client) failAll(err Error) {
	for _, req := range c.outstanding {
		if req.timer != nil {
			req.timer.Stop()
		}
		req.promise.resolve(Result{Err: err})
	}
	c.outstanding = make(map[uint32]*request)
}

// armTimer starts the per-phase timeout. The callback only posts the handle;
// the expiry itself runs on the dispatch goroutine.
func (c *Client) armTimer(req *request) {
	h := req.handle
	req.timer = time.AfterFunc(c.timeout, func() {
		select {
		case c.expirations <- h:
		case <-c.shutdownCh:
		}
	})
}

func (c *Client) expire(handle uint32) {
	req, ok := c.outstanding[handle]
	if !ok {
		// Resolved between firing and delivery; stale.
		return
	}
	c.finish(req, Result{Err: ErrTimeout})
}

// startCall opens the cookie phase for a new request.
func (c *Client) startCall(cl *call) {
	req := &request{
		phase:   awaitingCookie,
		payload: cl.payload,
		probe:   cl.probe,
		promise: cl.promise,
	}
	c.insert(req)

	msg := bencode.NewDict().
		Set("q", bencode.String("cookie")).
		Set("txid", encodeTxid(req.handle))
	frame, err := bencode.EncodeBounded(msg, MaxMessageSize)
	if err != nil {
		c.finish(req, Result{Err: ErrSerializationFailed})
		return
	}
	c.armTimer(req)
	if err := c.transport.Send(c.target, frame); err != nil {
		c.logger.Printf("[WARN] admin: send failed: %v", err)
		c.finish(req, Result{Err: ErrReadingFromSocket})
	}
}

// advance transitions a request from the cookie phase to the result phase:
// fresh handle, signed auth envelope, new timeout.
func (c *Client) advance(req *request, cookie string) {
	req.timer.Stop()
	delete(c.outstanding, req.handle)
	req.phase = awaitingResult
	c.insert(req)

	msg := req.payload.Clone()
	msg.Set("txid", encodeTxid(req.handle))
	frame, err := signEnvelope(msg, c.password, cookie, MaxMessageSize)
	if err != nil {
		c.finish(req, Result{Err: ErrSerializationFailed})
		return
	}
	c.armTimer(req)
	if err := c.transport.Send(c.target, frame); err != nil {
		c.logger.Printf("[WARN] admin: send failed: %v", err)
		c.finish(req, Result{Err: ErrReadingFromSocket})
	}
}

// handleFrame demultiplexes one inbound datagram. Frames that belong to no
// outstanding request are logged and dropped; they resolve nothing.
func (c *Client) handleFrame(f Frame) {
	if f.Src != c.target {
		c.logger.Printf("[WARN] admin: spurious datagram from [%s], expecting [%s]", f.Src, c.target)
		return
	}

	d, err := bencode.Decode(f.Payload)
	if err != nil {
		c.logger.Printf("[WARN] admin: dropping undecodable datagram: %v", err)
		return
	}

	txid, ok := d.GetString("txid")
	if !ok || len(txid) != txidLen {
		c.logger.Printf("[WARN] admin: dropping datagram with missing or wrong size txid")
		return
	}
	handle, ok := decodeTxid(txid)
	if !ok {
		c.logger.Printf("[WARN] admin: dropping datagram with malformed txid %q", txid)
		return
	}

	req, ok := c.outstanding[handle]
	if !ok {
		c.logger.Printf("[DEBUG] admin: no outstanding request for txid %q", txid)
		return
	}

	switch req.phase {
	case awaitingCookie:
		cookie, ok := d.GetString("cookie")
		if !ok {
			c.finish(req, Result{Err: ErrNoCookie})
			return
		}
		if req.probe {
			c.finish(req, buildResult(d, f.Payload))
			return
		}
		c.advance(req, string(cookie))
	case awaitingResult:
		c.finish(req, buildResult(d, f.Payload))
	default:
		c.finish(req, Result{Err: ErrInternal})
	}
}

// buildResult copies the response payload into the result so it outlives the
// datagram buffer. Payloads past MaxMessageSize are truncated and flagged.
func buildResult(d *bencode.Dict, payload []byte) Result {
	res := Result{Response: d}
	n := len(payload)
	if n > MaxMessageSize {
		res.Err = ErrOverlongResponse
		n = MaxMessageSize
	}
	res.Raw = make([]byte, n)
	copy(res.Raw, payload)
	return res
}
