// Package engine implements an event-driven graph execution runtime for
// data-processing pipelines. A pipeline is a directed graph of nodes; each
// node receives events, transforms them through pluggable processors wrapped
// by pluggable middleware, and fans the result out to its outgoing
// neighbours.
//
// The core types are [Event] (the immutable message), [Node] (the processing
// vertex and its state machine), and [Graph] (the registry and external entry
// point). Capabilities are small interfaces composed onto nodes: [Processor]
// for transforms, [Middleware] for pre/post hooks, [Filter] for admission
// predicates, and [Lifecycle] for long-lived nodes that hold external
// connections.
//
// Delivery is synchronous per edge: a triggering event is pushed depth-first
// through the graph, and each node's observers are notified in insertion
// order. A node converts every pipeline failure into an ERROR event and fans
// it out, so Graph.TriggerEvent never observes an error from processing
// itself. Cycles are permitted; deduplication is the graph author's
// responsibility.
//
// Example:
//
//	graph := engine.NewGraph()
//	double := engine.NewNode("double", engine.WithProcessor(doubleProcessor))
//	sink := engine.NewNode("sink", engine.WithProcessor(collectProcessor))
//	_ = graph.AddNode(double)
//	_ = graph.AddNode(sink)
//	_ = graph.AddEdge("double", "sink")
//	_ = graph.TriggerEvent(ctx, "double", engine.NewEvent(engine.EventDataChange, 5))
//
// Routing variants are built with [NewSwitchNode], which evaluates JsonLogic
// rules and delivers the resulting ROUTING_DECISION event to a single
// selected observer.
package engine
