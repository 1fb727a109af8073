// Typed wrappers around Client.Call for the admin functions the CLI uses.
// Everything here is sugar; the handshake and correlation live in client.go.

package admin

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/furetosan/cjdnsadmin/internal/bencode"
)

// Ping round-trips an authenticated ping and returns the measured latency.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	res, err := c.Call("ping", nil).Wait(ctx)
	if err != nil {
		return 0, err
	}
	if !res.Ok() {
		return 0, res.Err
	}
	if q, _ := res.Response.GetString("q"); string(q) != "pong" {
		return 0, fmt.Errorf("unexpected ping reply %q", q)
	}
	return time.Since(start), nil
}

// Cookie fetches a single challenge cookie without following up with an
// authenticated call. Useful as a reachability probe: it proves the daemon
// is answering without needing the password.
func (c *Client) Cookie(ctx context.Context) (string, error) {
	promise := c.submit(&call{probe: true, promise: newPromise()})
	res, err := promise.Wait(ctx)
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		return "", res.Err
	}
	cookie, ok := res.Response.GetString("cookie")
	if !ok {
		return "", ErrNoCookie
	}
	return string(cookie), nil
}

// Function describes one callable admin function as reported by the daemon.
type Function struct {
	Name string
	Args []FunctionArg
}

// FunctionArg is one declared parameter of an admin function.
type FunctionArg struct {
	Name     string
	Type     string
	Required bool
}

// AvailableFunctions pages through Admin_availableFunctions and returns the
// daemon's full function table sorted by name. The daemon reports a page at
// a time and sets "more" while further pages remain.
func (c *Client) AvailableFunctions(ctx context.Context) ([]Function, error) {
	var fns []Function
	for page := 0; ; page++ {
		args := bencode.NewDict().Set("page", bencode.Int(page))
		res, err := c.Call("Admin_availableFunctions", args).Wait(ctx)
		if err != nil {
			return nil, err
		}
		if !res.Ok() {
			return nil, res.Err
		}

		available, ok := res.Response.GetDict("availableFunctions")
		if ok {
			available.Walk(func(name string, v bencode.Value) bool {
				spec, _ := v.(*bencode.Dict)
				fns = append(fns, Function{Name: name, Args: parseArgs(spec)})
				return true
			})
		}

		if more, _ := res.Response.GetInt("more"); more != 1 {
			break
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	return fns, nil
}

func parseArgs(spec *bencode.Dict) []FunctionArg {
	if spec == nil {
		return nil
	}
	args := make([]FunctionArg, 0, spec.Len())
	spec.Walk(func(name string, v bencode.Value) bool {
		arg := FunctionArg{Name: name}
		if d, ok := v.(*bencode.Dict); ok {
			if t, ok := d.GetString("type"); ok {
				arg.Type = string(t)
			}
			if req, _ := d.GetInt("required"); req == 1 {
				arg.Required = true
			}
		}
		args = append(args, arg)
		return true
	})
	// Required parameters first, then alphabetical, the order an operator
	// wants to read them in.
	sort.Slice(args, func(i, j int) bool {
		if args[i].Required != args[j].Required {
			return args[i].Required
		}
		return args[i].Name < args[j].Name
	})
	return args
}
