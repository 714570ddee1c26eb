package calculator

import (
	"context"
	"fmt"
	"net"
	"net/rpc"
	"os"

	"trapezoid.dev/integral/master/shared"
)

// Client calls the master's CalcRPC service.
type Client struct {
	name   string
	client *rpc.Client
}

// Dial connects to the master at addr (host:port).
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to master at %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection to the master.
func NewClient(conn net.Conn) *Client {
	name, _ := os.Hostname()
	return &Client{name: name, client: rpc.NewClient(conn)}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping checks the master is alive.
func (c *Client) Ping(ctx context.Context) (shared.PingReply, error) {
	var reply shared.PingReply
	err := c.call(ctx, "Ping", &shared.PingArgs{Client: c.name}, &reply)
	return reply, err
}

// Integrate asks the master to evaluate one request.
func (c *Client) Integrate(ctx context.Context, args shared.IntegrateArgs) (shared.IntegrateReply, error) {
	args.Client = c.name
	var reply shared.IntegrateReply
	err := c.call(ctx, "Integrate", &args, &reply)
	return reply, err
}

// Functions lists the master's preset functions.
func (c *Client) Functions(ctx context.Context) ([]shared.FunctionInfo, error) {
	var reply shared.FunctionsReply
	if err := c.call(ctx, "Functions", &shared.FunctionsArgs{Client: c.name}, &reply); err != nil {
		return nil, err
	}
	return reply.Functions, nil
}

// ResultFromReply rebuilds the approximation carried by a reply.
func ResultFromReply(r shared.IntegrateReply) Result {
	res := Result{Approx: r.Approx, Grid: r.Grid, Values: r.Values}
	if r.Intervals > 0 {
		res.Step = (r.Upper - r.Lower) / float64(r.Intervals)
	}
	return res
}

func (c *Client) call(ctx context.Context, method string, args, reply any) error {
	call := c.client.Go(shared.ServiceName+"."+method, args, reply, make(chan *rpc.Call, 1))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-call.Done:
		if call.Error != nil {
			return fmt.Errorf("%s.%s: %w", shared.ServiceName, method, call.Error)
		}
		return nil
	}
}
