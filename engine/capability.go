package engine

import "context"

// Processor is the pluggable transform executed inside a node. A node asks
// each of its processors, in registration order, whether it can handle the
// incoming event and runs the first one that answers yes.
//
// Process returns the event to fan out to the node's observers, or nil to
// suppress fan-out. Processors must not touch the node's own collections;
// everything they need is provided through the NodeContext snapshot.
type Processor interface {
	// CanHandle reports whether this processor accepts the event.
	CanHandle(event *Event) bool

	// Process transforms the event. Returning (nil, nil) suppresses fan-out;
	// returning an error makes the node emit an ERROR event instead.
	Process(ctx context.Context, event *Event, nodeCtx *NodeContext) (*Event, error)
}

// ProcessorFunc adapts an ordinary function into a Processor that accepts
// every event. Use it for inline transforms in tests and demos.
type ProcessorFunc func(ctx context.Context, event *Event, nodeCtx *NodeContext) (*Event, error)

// CanHandle always returns true.
func (processorFunc ProcessorFunc) CanHandle(*Event) bool { return true }

// Process calls the underlying function, satisfying the Processor interface.
func (processorFunc ProcessorFunc) Process(ctx context.Context, event *Event, nodeCtx *NodeContext) (*Event, error) {
	return processorFunc(ctx, event, nodeCtx)
}

// Middleware is a paired pre/post hook wrapping a node's processor call.
// BeforeProcess hooks run in registration order and may replace the event;
// the (possibly replaced) event is threaded into the next hook and finally
// into the processor. AfterProcess hooks run in the same order and may
// replace, or suppress by returning nil, the processor result.
//
// An error from either hook aborts the pipeline and produces an ERROR event.
type Middleware interface {
	BeforeProcess(ctx context.Context, event *Event, nodeID string) (*Event, error)
	AfterProcess(ctx context.Context, original *Event, result *Event, nodeID string) (*Event, error)
}

// Filter is a predicate evaluated before a node processes an event. If any
// registered filter returns false the event is dropped without side effects.
type Filter func(event *Event) bool

// Lifecycle is implemented by long-lived nodes that hold external resources,
// such as broker connections. Graph.Start and Graph.Stop drive every
// lifecycle-capable node in registration order.
type Lifecycle interface {
	// Start acquires the node's external resources. It must be idempotent.
	Start(ctx context.Context) error

	// Stop cancels in-flight work and releases resources. It must be
	// idempotent and safe to call on a node that never started.
	Stop(ctx context.Context) error

	// IsRunning reports whether the node is currently started.
	IsRunning() bool
}

// Observer is the receiving side of an edge: anything that can be notified
// of an event by an upstream node. Every *Node is an Observer; tests and
// sinks outside the graph can implement it directly.
type Observer interface {
	// ID identifies the observer for routing and logging.
	ID() string

	// Update delivers an event. Errors are logged by the notifying node and
	// never interrupt delivery to sibling observers.
	Update(ctx context.Context, event *Event) error
}
