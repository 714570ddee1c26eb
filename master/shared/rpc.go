// Package shared holds the net/rpc service of the master and the types that
// travel over it.
package shared

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/rpc"
	"time"
)

// ServiceName is the name CalcRPC is registered under.
const ServiceName = "CalcRPC"

// CalcInterface defines the methods required by CalcRPC
type CalcInterface interface {
	Integrate(ctx context.Context, args IntegrateArgs) (IntegrateReply, error)
	Functions() []FunctionInfo
}

// CalcRPC handles RPC calls for the integral calculator
type CalcRPC struct {
	calc   CalcInterface
	logger *slog.Logger
	now    func() time.Time
}

// NewCalcRPC creates a new CalcRPC instance
func NewCalcRPC(calc CalcInterface, logger *slog.Logger) *CalcRPC {
	if logger == nil {
		logger = slog.Default()
	}
	return &CalcRPC{
		calc:   calc,
		logger: logger,
		now:    time.Now,
	}
}

// Integrate runs one evaluation for a remote client
func (c *CalcRPC) Integrate(args *IntegrateArgs, reply *IntegrateReply) error {
	r, err := c.calc.Integrate(context.Background(), *args)
	if err != nil {
		c.logger.Info("rpc integrate rejected",
			slog.String("client", args.Client),
			slog.String("function", args.Function),
			slog.String("error", err.Error()),
		)
		return err
	}
	*reply = r
	return nil
}

// Functions lists the preset functions
func (c *CalcRPC) Functions(args *FunctionsArgs, reply *FunctionsReply) error {
	reply.Functions = c.calc.Functions()
	return nil
}

// Ping handles ping requests from clients
func (c *CalcRPC) Ping(args *PingArgs, reply *PingReply) error {
	c.logger.Debug("rpc ping", slog.String("client", args.Client))
	reply.Time = c.now()
	return nil
}

// NewServer returns an rpc.Server with a CalcRPC registered on it.
func NewServer(calc CalcInterface, logger *slog.Logger) (*rpc.Server, error) {
	server := rpc.NewServer()
	if err := server.RegisterName(ServiceName, NewCalcRPC(calc, logger)); err != nil {
		return nil, err
	}
	return server, nil
}

// Accept errors other than a closed listener are retried with a doubling
// delay between these bounds.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Serve accepts connections on l until it is closed, serving each on its
// own goroutine.
func Serve(l net.Listener, server *rpc.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	var delay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}
			logger.Warn("failed to accept rpc connection",
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay),
			)
			time.Sleep(delay)
			continue
		}
		delay = 0
		logger.Debug("rpc connection accepted", slog.String("remote", conn.RemoteAddr().String()))
		go server.ServeConn(conn)
	}
}
