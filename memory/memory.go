package memory

import (
	"context"

	"github.com/next-trace/scg-rpc-proxy/adapters/inmemory"
	"github.com/next-trace/scg-rpc-proxy/contract/rpc"
	"github.com/next-trace/scg-rpc-proxy/operations"
	"github.com/next-trace/scg-rpc-proxy/proxy"
)

// New constructs a proxy client backed by an in-memory broker and returns the
// broker, for registering backends, along with a cleanup function that closes
// the client.
func New(opts ...proxy.Option) (*inmemory.Broker, *proxy.Client, func(), error) {
	b := inmemory.NewBroker(nil)

	c, err := proxy.NewClient(context.Background(), b.NewChannel(""), opts...)
	if err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() { _ = c.Close() }

	return b, c, cleanup, nil
}

// Echo answers every request with the data it carried.
func Echo(_ context.Context, req rpc.IncomingRequest) (any, error) {
	if len(req.Data) == 0 {
		return nil, nil
	}

	return req.Data, nil
}

// EchoAll registers Echo on every known destination of b.
func EchoAll(b *inmemory.Broker) {
	for _, d := range operations.Destinations() {
		b.Handle(d.String(), Echo)
	}
}
