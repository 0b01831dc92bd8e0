package operations

import "github.com/next-trace/scg-rpc-proxy/contract/rpc"

// OrderProcessor carries lifecycle notifications; it is emit-only.
type OrderProcessor string

const (
	OrderLifeCycle OrderProcessor = "ORDER_LIFE_CYCLE"
)

// OrderProcessors lists every OrderProcessor operation.
func OrderProcessors() []OrderProcessor {
	return []OrderProcessor{
		OrderLifeCycle,
	}
}

func (o OrderProcessor) String() string { return string(o) }

func (OrderProcessor) Destination() rpc.Destination { return OrderProcessorQueue }

func (o OrderProcessor) Valid() bool { return contains(OrderProcessors(), o) }
