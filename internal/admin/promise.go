package admin

import (
	"context"

	"github.com/furetosan/cjdnsadmin/internal/bencode"
)

// Result is the outcome of one RPC call.
type Result struct {
	// Err is ErrNone on success.
	Err Error

	// Response is the decoded response dictionary; nil unless the daemon's
	// reply was received and decoded.
	Response *bencode.Dict

	// Raw is a copy of the response payload, truncated at MaxMessageSize.
	// It is owned by the Result and outlives the datagram that carried it.
	Raw []byte
}

// Ok reports whether the call succeeded.
func (r Result) Ok() bool {
	return r.Err == ErrNone
}

// Promise is the caller-visible completion channel for one RPC call. It
// resolves exactly once; the client's dispatch goroutine is the only writer.
type Promise struct {
	ch chan Result
}

func newPromise() *Promise {
	return &Promise{ch: make(chan Result, 1)}
}

// resolve fulfills the promise. The dispatch loop guarantees it is called at
// most once per promise; the buffered channel means it never blocks.
func (p *Promise) resolve(res Result) {
	p.ch <- res
}

// Done returns a channel that receives the Result when the call completes.
func (p *Promise) Done() <-chan Result {
	return p.ch
}

// Wait blocks until the call completes or ctx is cancelled. The call itself
// keeps running on cancellation; it will resolve (and be discarded) when its
// own timeout fires.
func (p *Promise) Wait(ctx context.Context) (Result, error) {
	select {
	case res := <-p.ch:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
