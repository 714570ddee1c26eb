package shared

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCalc struct {
	err error
}

func (s stubCalc) Integrate(_ context.Context, args IntegrateArgs) (IntegrateReply, error) {
	if s.err != nil {
		return IntegrateReply{}, s.err
	}
	return IntegrateReply{Function: args.Function, Approx: 1.5}, nil
}

func (stubCalc) Functions() []FunctionInfo {
	return []FunctionInfo{{Group: "Trigonometric", Text: "sin(x)"}}
}

func TestCalcRPCMethods(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewCalcRPC(stubCalc{}, nil)
	c.now = func() time.Time { return fixed }

	var reply IntegrateReply
	require.NoError(t, c.Integrate(&IntegrateArgs{Function: "x"}, &reply))
	assert.Equal(t, "x", reply.Function)
	assert.Equal(t, 1.5, reply.Approx)

	var fns FunctionsReply
	require.NoError(t, c.Functions(&FunctionsArgs{}, &fns))
	assert.Equal(t, []FunctionInfo{{Group: "Trigonometric", Text: "sin(x)"}}, fns.Functions)

	var pong PingReply
	require.NoError(t, c.Ping(&PingArgs{Client: "test"}, &pong))
	assert.Equal(t, fixed, pong.Time)

	boom := errors.New("boom")
	c = NewCalcRPC(stubCalc{err: boom}, nil)
	assert.ErrorIs(t, c.Integrate(&IntegrateArgs{}, &reply), boom)
}

func TestServeOverTCP(t *testing.T) {
	server, err := NewServer(stubCalc{}, nil)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- Serve(l, server, nil) }()

	client, err := rpc.Dial("tcp", l.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	var reply IntegrateReply
	require.NoError(t, client.Call(ServiceName+".Integrate", &IntegrateArgs{Function: "cos(x)"}, &reply))
	assert.Equal(t, "cos(x)", reply.Function)

	require.NoError(t, l.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after the listener was closed")
	}
}

// failingListener fails Accept a fixed number of times, then reports closed.
type failingListener struct {
	failures int
	calls    int
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.calls++
	if l.calls <= l.failures {
		return nil, errors.New("accept: too many open files")
	}
	return nil, net.ErrClosed
}

func (l *failingListener) Close() error   { return nil }
func (l *failingListener) Addr() net.Addr { return &net.TCPAddr{} }

func TestServeBacksOffOnAcceptErrors(t *testing.T) {
	server, err := NewServer(stubCalc{}, nil)
	require.NoError(t, err)

	l := &failingListener{failures: 3}
	start := time.Now()
	require.NoError(t, Serve(l, server, nil))

	assert.Equal(t, 4, l.calls)
	// 5ms + 10ms + 20ms between the failed attempts
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}
