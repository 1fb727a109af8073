package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/netip"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/furetosan/cjdnsadmin/internal/bencode"
)

var testTarget = netip.MustParseAddrPort("127.0.0.1:11234")

// fakeTransport is an in-memory Transport: outbound frames land on sent,
// inbound frames are injected through frames.
type fakeTransport struct {
	frames chan Frame
	sent   chan sentFrame

	mu     sync.Mutex
	closed bool
}

type sentFrame struct {
	dst     netip.AddrPort
	payload []byte
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames: make(chan Frame, 256),
		sent:   make(chan sentFrame, 256),
	}
}

func (t *fakeTransport) Send(dst netip.AddrPort, payload []byte) error {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	t.sent <- sentFrame{dst: dst, payload: cp}
	return nil
}

func (t *fakeTransport) Frames() <-chan Frame { return t.frames }

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.frames)
	}
	return nil
}

// brokenTransport fails every send.
type brokenTransport struct{ *fakeTransport }

func (t *brokenTransport) Send(netip.AddrPort, []byte) error {
	return errors.New("network unreachable")
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestClient(t *testing.T, tr Transport, timeout time.Duration) *Client {
	t.Helper()
	c := New(tr, Config{
		Target:   testTarget,
		Password: "pw",
		Timeout:  timeout,
		Logger:   quietLogger(),
	})
	t.Cleanup(func() { c.Close() })
	return c
}

func recvSent(t *testing.T, tr *fakeTransport) sentFrame {
	t.Helper()
	select {
	case f := <-tr.sent:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an outgoing frame")
		return sentFrame{}
	}
}

func decodeSent(t *testing.T, f sentFrame) *bencode.Dict {
	t.Helper()
	d, err := bencode.Decode(f.payload)
	if err != nil {
		t.Fatalf("outgoing frame does not decode: %v", err)
	}
	return d
}

func inject(tr *fakeTransport, src netip.AddrPort, d *bencode.Dict) {
	payload, err := bencode.Encode(d)
	if err != nil {
		panic(err)
	}
	tr.frames <- Frame{Src: src, Payload: payload}
}

func awaitResult(t *testing.T, p *Promise) Result {
	t.Helper()
	select {
	case res := <-p.Done():
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("promise never resolved")
		return Result{}
	}
}

// completeCookiePhase reads the cookie request off the wire and answers it,
// returning the txid of the follow-up auth frame and the frame itself.
func completeCookiePhase(t *testing.T, tr *fakeTransport, cookie string) (*bencode.Dict, bencode.String) {
	t.Helper()
	req := decodeSent(t, recvSent(t, tr))
	if q, _ := req.GetString("q"); string(q) != "cookie" {
		t.Fatalf("first frame q = %q, want cookie", q)
	}
	txid, ok := req.GetString("txid")
	if !ok || len(txid) != 8 {
		t.Fatalf("cookie request txid = %q, want 8 hex chars", txid)
	}
	inject(tr, testTarget, bencode.NewDict().
		Set("cookie", bencode.String(cookie)).
		Set("txid", txid))

	auth := decodeSent(t, recvSent(t, tr))
	authTxid, ok := auth.GetString("txid")
	if !ok || len(authTxid) != 8 {
		t.Fatalf("auth frame txid = %q, want 8 hex chars", authTxid)
	}
	return auth, authTxid
}

func TestCallHappyPath(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, time.Second)

	p := c.Call("ping", nil)
	auth, authTxid := completeCookiePhase(t, tr, "42")

	// The auth envelope must carry the full credential set.
	if q, _ := auth.GetString("q"); string(q) != "auth" {
		t.Errorf("auth frame q = %q, want auth", q)
	}
	if aq, _ := auth.GetString("aq"); string(aq) != "ping" {
		t.Errorf("auth frame aq = %q, want ping", aq)
	}
	if cookie, _ := auth.GetString("cookie"); string(cookie) != "42" {
		t.Errorf("auth frame cookie = %q, want 42", cookie)
	}
	if hash, _ := auth.GetString("hash"); len(hash) != 64 {
		t.Errorf("auth frame hash length = %d, want 64", len(hash))
	}
	if _, ok := auth.GetDict("args"); !ok {
		t.Error("auth frame is missing args")
	}

	inject(tr, testTarget, bencode.NewDict().
		Set("q", bencode.String("pong")).
		Set("txid", authTxid))

	res := awaitResult(t, p)
	if res.Err != ErrNone {
		t.Fatalf("Result.Err = %v, want ErrNone", res.Err)
	}
	if q, _ := res.Response.GetString("q"); string(q) != "pong" {
		t.Errorf("response q = %q, want pong", q)
	}
	if len(res.Raw) == 0 {
		t.Error("Result.Raw is empty")
	}
	if len(c.outstanding) != 0 {
		t.Errorf("outstanding requests = %d after resolution, want 0", len(c.outstanding))
	}
}

func TestCallTimeout(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, 30*time.Millisecond)

	p := c.Call("ping", nil)
	recvSent(t, tr) // cookie request goes out, nobody answers

	res := awaitResult(t, p)
	if res.Err != ErrTimeout {
		t.Fatalf("Result.Err = %v, want ErrTimeout", res.Err)
	}
	if len(c.outstanding) != 0 {
		t.Errorf("outstanding requests = %d after timeout, want 0", len(c.outstanding))
	}
}

func TestCookieReplyWithoutCookie(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, time.Second)

	p := c.Call("ping", nil)
	req := decodeSent(t, recvSent(t, tr))
	txid, _ := req.GetString("txid")
	inject(tr, testTarget, bencode.NewDict().Set("txid", txid))

	res := awaitResult(t, p)
	if res.Err != ErrNoCookie {
		t.Errorf("Result.Err = %v, want ErrNoCookie", res.Err)
	}
}

func TestConcurrentCallsResolveIndependently(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, time.Second)

	p1 := c.Call("first", nil)
	auth1, txid1 := completeCookiePhase(t, tr, "1")
	p2 := c.Call("second", nil)
	auth2, txid2 := completeCookiePhase(t, tr, "2")

	if aq, _ := auth1.GetString("aq"); string(aq) != "first" {
		t.Fatalf("first auth frame aq = %q", aq)
	}
	if aq, _ := auth2.GetString("aq"); string(aq) != "second" {
		t.Fatalf("second auth frame aq = %q", aq)
	}
	if string(txid1) == string(txid2) {
		t.Fatal("two in-flight requests share a txid")
	}

	// Responses arrive in reverse order.
	inject(tr, testTarget, bencode.NewDict().
		Set("which", bencode.String("second")).
		Set("txid", txid2))
	inject(tr, testTarget, bencode.NewDict().
		Set("which", bencode.String("first")).
		Set("txid", txid1))

	res1 := awaitResult(t, p1)
	res2 := awaitResult(t, p2)
	if w, _ := res1.Response.GetString("which"); string(w) != "first" {
		t.Errorf("first promise got response %q", w)
	}
	if w, _ := res2.Response.GetString("which"); string(w) != "second" {
		t.Errorf("second promise got response %q", w)
	}
}

func TestSpuriousSourceDropped(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, time.Second)

	p := c.Call("ping", nil)
	req := decodeSent(t, recvSent(t, tr))
	txid, _ := req.GetString("txid")

	// Right txid, wrong peer: must not advance the request.
	other := netip.MustParseAddrPort("10.0.0.9:11234")
	inject(tr, other, bencode.NewDict().
		Set("cookie", bencode.String("42")).
		Set("txid", txid))

	select {
	case <-p.Done():
		t.Fatal("promise resolved from a spurious source")
	case <-time.After(50 * time.Millisecond):
	}

	// The legitimate daemon can still complete the call.
	inject(tr, testTarget, bencode.NewDict().
		Set("cookie", bencode.String("42")).
		Set("txid", txid))
	auth := decodeSent(t, recvSent(t, tr))
	authTxid, _ := auth.GetString("txid")
	inject(tr, testTarget, bencode.NewDict().Set("txid", authTxid))

	if res := awaitResult(t, p); res.Err != ErrNone {
		t.Errorf("Result.Err = %v, want ErrNone", res.Err)
	}
}

func TestMismatchedTxidDropped(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, 50*time.Millisecond)

	p := c.Call("ping", nil)
	recvSent(t, tr)
	inject(tr, testTarget, bencode.NewDict().
		Set("cookie", bencode.String("42")).
		Set("txid", bencode.String("ffffffff")))

	if res := awaitResult(t, p); res.Err != ErrTimeout {
		t.Errorf("Result.Err = %v, want ErrTimeout (mismatched txid must not resolve)", res.Err)
	}
}

func TestLateResponseAfterTimeout(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, 30*time.Millisecond)

	p := c.Call("ping", nil)
	req := decodeSent(t, recvSent(t, tr))
	txid, _ := req.GetString("txid")

	res := awaitResult(t, p)
	if res.Err != ErrTimeout {
		t.Fatalf("Result.Err = %v, want ErrTimeout", res.Err)
	}

	// The response shows up late; the handle is gone, so it is discarded
	// and the promise is not resolved a second time.
	inject(tr, testTarget, bencode.NewDict().
		Set("cookie", bencode.String("42")).
		Set("txid", txid))

	select {
	case res := <-p.Done():
		t.Fatalf("promise resolved twice, second result %v", res.Err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMalformedResponseDropped(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, 50*time.Millisecond)

	p := c.Call("ping", nil)
	recvSent(t, tr)
	tr.frames <- Frame{Src: testTarget, Payload: []byte("not bencode")}

	if res := awaitResult(t, p); res.Err != ErrTimeout {
		t.Errorf("Result.Err = %v, want ErrTimeout (malformed frame must be dropped)", res.Err)
	}
}

func TestOverlongResponse(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, time.Second)

	p := c.Call("dump", nil)
	_, authTxid := completeCookiePhase(t, tr, "42")

	inject(tr, testTarget, bencode.NewDict().
		Set("blob", bencode.String(make([]byte, MaxMessageSize+100))).
		Set("txid", authTxid))

	res := awaitResult(t, p)
	if res.Err != ErrOverlongResponse {
		t.Fatalf("Result.Err = %v, want ErrOverlongResponse", res.Err)
	}
	if len(res.Raw) != MaxMessageSize {
		t.Errorf("len(Raw) = %d, want truncation at %d", len(res.Raw), MaxMessageSize)
	}
	if res.Response == nil {
		t.Error("Response dict missing on overlong response")
	}
}

func TestOversizedRequestFailsSerialization(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, time.Second)

	args := bencode.NewDict().Set("blob", bencode.String(make([]byte, MaxMessageSize)))
	p := c.Call("huge", args)

	// The cookie exchange itself is tiny; the overflow hits when the auth
	// envelope is built.
	req := decodeSent(t, recvSent(t, tr))
	txid, _ := req.GetString("txid")
	inject(tr, testTarget, bencode.NewDict().
		Set("cookie", bencode.String("42")).
		Set("txid", txid))

	if res := awaitResult(t, p); res.Err != ErrSerializationFailed {
		t.Errorf("Result.Err = %v, want ErrSerializationFailed", res.Err)
	}
}

func TestSendFailure(t *testing.T) {
	tr := &brokenTransport{newFakeTransport()}
	c := newTestClient(t, tr, time.Second)

	if res := awaitResult(t, c.Call("ping", nil)); res.Err != ErrReadingFromSocket {
		t.Errorf("Result.Err = %v, want ErrReadingFromSocket", res.Err)
	}
}

func TestCloseFailsOutstanding(t *testing.T) {
	tr := newFakeTransport()
	c := New(tr, Config{Target: testTarget, Password: "pw", Logger: quietLogger()})

	p := c.Call("ping", nil)
	recvSent(t, tr)
	c.Close()

	if res := awaitResult(t, p); res.Err != ErrSocketNotReady {
		t.Errorf("Result.Err = %v, want ErrSocketNotReady", res.Err)
	}
	if res := awaitResult(t, c.Call("ping", nil)); res.Err != ErrSocketNotReady {
		t.Errorf("Call after Close: Result.Err = %v, want ErrSocketNotReady", res.Err)
	}
}

func TestUnspecifiedTargetRewrite(t *testing.T) {
	tr := newFakeTransport()
	c := New(tr, Config{
		Target:   netip.MustParseAddrPort("0.0.0.0:11234"),
		Password: "pw",
		Logger:   quietLogger(),
	})
	t.Cleanup(func() { c.Close() })

	if got := c.Target(); got != testTarget {
		t.Fatalf("Target() = %s, want %s", got, testTarget)
	}

	c.Call("ping", nil)
	if f := recvSent(t, tr); f.dst != testTarget {
		t.Errorf("first frame sent to %s, want %s", f.dst, testTarget)
	}
}

func TestMappedTargetNormalized(t *testing.T) {
	tr := newFakeTransport()
	c := New(tr, Config{
		Target:   netip.AddrPortFrom(netip.MustParseAddr("::ffff:127.0.0.1"), 11234),
		Password: "pw",
		Logger:   quietLogger(),
	})
	t.Cleanup(func() { c.Close() })

	if got := c.Target(); got != testTarget {
		t.Fatalf("Target() = %s, want unmapped %s", got, testTarget)
	}

	// The transport unmaps frame sources, so a reply from the pure-IPv4 peer
	// must match the stored target and advance the handshake.
	p := c.Call("ping", nil)
	req := decodeSent(t, recvSent(t, tr))
	txid, _ := req.GetString("txid")
	inject(tr, testTarget, bencode.NewDict().
		Set("cookie", bencode.String("42")).
		Set("txid", txid))
	auth := decodeSent(t, recvSent(t, tr))
	authTxid, _ := auth.GetString("txid")
	inject(tr, testTarget, bencode.NewDict().Set("txid", authTxid))

	if res := awaitResult(t, p); res.Err != ErrNone {
		t.Errorf("Result.Err = %v, want ErrNone", res.Err)
	}
}

// startDaemon runs a scripted daemon over the fake transport: it answers
// cookie requests with sequential cookies and auth requests through handler.
func startDaemon(tr *fakeTransport, handler func(aq string, args *bencode.Dict) *bencode.Dict) (stop func()) {
	done := make(chan struct{})
	go func() {
		cookie := 100
		for {
			select {
			case <-done:
				return
			case sf := <-tr.sent:
				d, err := bencode.Decode(sf.payload)
				if err != nil {
					continue
				}
				q, _ := d.GetString("q")
				txid, _ := d.GetString("txid")
				switch string(q) {
				case "cookie":
					cookie++
					inject(tr, testTarget, bencode.NewDict().
						Set("cookie", bencode.String(strconv.Itoa(cookie))).
						Set("txid", txid))
				case "auth":
					aq, _ := d.GetString("aq")
					args, _ := d.GetDict("args")
					inject(tr, testTarget, handler(string(aq), args).Set("txid", txid))
				}
			}
		}
	}()
	return func() { close(done) }
}

func TestPing(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, time.Second)
	stop := startDaemon(tr, func(aq string, _ *bencode.Dict) *bencode.Dict {
		return bencode.NewDict().Set("q", bencode.String("pong"))
	})
	defer stop()

	if _, err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestCookieProbe(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, time.Second)
	stop := startDaemon(tr, func(string, *bencode.Dict) *bencode.Dict {
		return bencode.NewDict()
	})
	defer stop()

	cookie, err := c.Cookie(context.Background())
	if err != nil {
		t.Fatalf("Cookie() error = %v", err)
	}
	if cookie != "101" {
		t.Errorf("Cookie() = %q, want %q", cookie, "101")
	}
}

func TestManyCallsDrainTheTable(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, time.Second)
	stop := startDaemon(tr, func(aq string, _ *bencode.Dict) *bencode.Dict {
		return bencode.NewDict().Set("q", bencode.String("pong"))
	})
	defer stop()

	const calls = 50
	promises := make([]*Promise, calls)
	for i := range promises {
		promises[i] = c.Call("ping", nil)
	}

	// Every promise resolves exactly once and the table drains completely.
	for i, p := range promises {
		res := awaitResult(t, p)
		if res.Err != ErrNone {
			t.Fatalf("call %d: Result.Err = %v, want ErrNone", i, res.Err)
		}
		select {
		case res := <-p.Done():
			t.Fatalf("call %d resolved twice, second result %v", i, res.Err)
		default:
		}
	}
	if len(c.outstanding) != 0 {
		t.Errorf("outstanding requests = %d after drain, want 0", len(c.outstanding))
	}
}

func TestAvailableFunctionsPaging(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, time.Second)

	pages := []*bencode.Dict{
		bencode.NewDict().
			Set("availableFunctions", bencode.NewDict().
				Set("ping", bencode.NewDict()).
				Set("Core_exit", bencode.NewDict())).
			Set("more", bencode.Int(1)),
		bencode.NewDict().
			Set("availableFunctions", bencode.NewDict().
				Set("Admin_asyncEnabled", bencode.NewDict().
					Set("page", bencode.NewDict().
						Set("required", bencode.Int(1)).
						Set("type", bencode.String("Int"))))),
	}
	stop := startDaemon(tr, func(aq string, args *bencode.Dict) *bencode.Dict {
		if aq != "Admin_availableFunctions" {
			return bencode.NewDict().Set("error", bencode.String(fmt.Sprintf("unknown function %s", aq)))
		}
		page, _ := args.GetInt("page")
		return pages[page]
	})
	defer stop()

	fns, err := c.AvailableFunctions(context.Background())
	if err != nil {
		t.Fatalf("AvailableFunctions() error = %v", err)
	}
	if len(fns) != 3 {
		t.Fatalf("got %d functions, want 3", len(fns))
	}
	// Sorted by name.
	if fns[0].Name != "Admin_asyncEnabled" || fns[2].Name != "ping" {
		t.Errorf("function order = [%s %s %s]", fns[0].Name, fns[1].Name, fns[2].Name)
	}
	if len(fns[0].Args) != 1 || fns[0].Args[0].Name != "page" || !fns[0].Args[0].Required {
		t.Errorf("Admin_asyncEnabled args = %+v", fns[0].Args)
	}
}
