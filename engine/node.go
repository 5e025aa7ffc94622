package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "engine")

// Metrics is a point-in-time copy of a node's counters.
type Metrics struct {
	// EventsProcessed counts events accepted into the pipeline.
	EventsProcessed uint64 `json:"events_processed"`

	// EventsSent counts events fanned out to observers.
	EventsSent uint64 `json:"events_sent"`

	// Errors counts pipeline failures.
	Errors uint64 `json:"errors"`

	// LastActivity is the time of the last emission or completed pipeline.
	LastActivity time.Time `json:"last_activity"`
}

// NodeContext is the read-only snapshot handed to a processor. It captures
// the node's identity, configuration, neighbourhood, and recent activity at
// the moment the processor runs, so processors stay decoupled from the node's
// mutable collections.
type NodeContext struct {
	NodeID        string
	NodeType      string
	Config        map[string]any
	CurrentData   any
	IncomingNodes []string
	OutgoingNodes []string
	Metrics       Metrics
	RecentEvents  []*Event
}

// NodeInfo is the introspection record returned by Node.Info and aggregated
// by Graph.Summary.
type NodeInfo struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	State      NodeState      `json:"state"`
	Data       any            `json:"data"`
	Config     map[string]any `json:"config"`
	Metrics    Metrics        `json:"metrics"`
	Processors int            `json:"processors"`
	Middleware int            `json:"middleware"`
	Lifecycle  bool           `json:"lifecycle"`
	Running    bool           `json:"running,omitempty"`
}

// fanOutFunc overrides how a node delivers an event to its observers.
// The default broadcasts to every observer in insertion order.
type fanOutFunc func(ctx context.Context, event *Event)

// Node is a processing vertex: it observes upstream nodes and fans processed
// events out to downstream ones. An event entering Update flows through the
// node's filters, middleware before-hooks, the first matching processor, the
// middleware after-hooks, and finally out to every observer.
//
// A node's collections (processors, middleware, filters, edges) are expected
// to be assembled before the graph starts; the per-node mutex only guards the
// state, metrics, and history that concurrent deliveries touch. The mutex is
// never held across middleware, processors, or fan-out, so cyclic graphs and
// reentrant delivery are safe.
type Node struct {
	id        string
	nodeType  string
	config    map[string]any
	createdAt time.Time

	mu      sync.Mutex
	data    any
	state   NodeState
	metrics Metrics
	history *eventRing

	processors []Processor
	middleware []Middleware
	filters    []Filter

	// observers is an ordered, duplicate-free set. For plain nodes it mirrors
	// outgoing; AddObserver also admits external sinks that are not nodes.
	observers []Observer
	outgoing  []*Node
	incoming  []*Node

	lifecycle Lifecycle
	fanOut    fanOutFunc
}

var _ Observer = (*Node)(nil)

// NewNode creates an idle node with the given unique ID. Options attach the
// node's type tag, initial data, configuration, processors, middleware,
// filters, and lifecycle.
func NewNode(id string, opts ...NodeOption) *Node {
	node := &Node{
		id:        id,
		nodeType:  "base",
		config:    make(map[string]any),
		createdAt: time.Now(),
		state:     StateIdle,
		history:   newEventRing(historyCapacity),
	}

	for _, opt := range opts {
		opt(node)
	}

	return node
}

// ID returns the node's unique identifier.
func (node *Node) ID() string { return node.id }

// Type returns the node's free-form type tag.
func (node *Node) Type() string { return node.nodeType }

// Config returns the node's configuration map. Callers must not mutate it
// after the graph has started.
func (node *Node) Config() map[string]any { return node.config }

// State returns the node's current pipeline state.
func (node *Node) State() NodeState {
	node.mu.Lock()
	defer node.mu.Unlock()
	return node.state
}

// Data returns the node's opaque per-node state.
func (node *Node) Data() any {
	node.mu.Lock()
	defer node.mu.Unlock()
	return node.data
}

// SetData replaces the node's opaque per-node state.
func (node *Node) SetData(data any) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.data = data
}

// Metrics returns a copy of the node's counters.
func (node *Node) Metrics() Metrics {
	node.mu.Lock()
	defer node.mu.Unlock()
	return node.metrics
}

// Disable puts the node into the DISABLED state; every subsequent event is
// dropped without side effects until Enable is called.
func (node *Node) Disable() {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.state = StateDisabled
}

// Enable returns a disabled node to IDLE.
func (node *Node) Enable() {
	node.mu.Lock()
	defer node.mu.Unlock()
	if node.state == StateDisabled {
		node.state = StateIdle
	}
}

// AddProcessor appends a processor. Order matters: the first processor whose
// CanHandle returns true wins.
func (node *Node) AddProcessor(processor Processor) {
	node.processors = append(node.processors, processor)
}

// AddMiddleware appends a middleware to the node's chain.
func (node *Node) AddMiddleware(middleware Middleware) {
	node.middleware = append(node.middleware, middleware)
}

// AddFilter appends an event filter predicate.
func (node *Node) AddFilter(filter Filter) {
	node.filters = append(node.filters, filter)
}

// SetLifecycle attaches start/stop behavior to the node. Graph.Start and
// Graph.Stop only touch nodes that carry a lifecycle.
func (node *Node) SetLifecycle(lifecycle Lifecycle) {
	node.lifecycle = lifecycle
}

// Lifecycle returns the node's lifecycle, or nil for plain nodes.
func (node *Node) Lifecycle() Lifecycle { return node.lifecycle }

// AddObserver registers an observer for this node's emissions. Inserting an
// observer twice is a no-op; insertion order is the delivery order.
func (node *Node) AddObserver(observer Observer) {
	for _, existing := range node.observers {
		if existing == observer {
			return
		}
	}
	node.observers = append(node.observers, observer)
}

// RemoveObserver deletes an observer. Unknown observers are ignored.
func (node *Node) RemoveObserver(observer Observer) {
	for i, existing := range node.observers {
		if existing == observer {
			node.observers = append(node.observers[:i], node.observers[i+1:]...)
			return
		}
	}
}

// AddEdgeTo installs the directed edge node→target: target joins the node's
// outgoing set and observer set, and the node joins target's incoming set.
// Installing an existing edge is a no-op.
func (node *Node) AddEdgeTo(target *Node) {
	for _, existing := range node.outgoing {
		if existing == target {
			return
		}
	}
	node.outgoing = append(node.outgoing, target)
	target.incoming = append(target.incoming, node)
	node.AddObserver(target)
}

// RemoveEdgeTo removes the directed edge node→target, reversing everything
// AddEdgeTo installed.
func (node *Node) RemoveEdgeTo(target *Node) {
	for i, existing := range node.outgoing {
		if existing == target {
			node.outgoing = append(node.outgoing[:i], node.outgoing[i+1:]...)
			break
		}
	}
	for i, existing := range target.incoming {
		if existing == node {
			target.incoming = append(target.incoming[:i], target.incoming[i+1:]...)
			break
		}
	}
	node.RemoveObserver(target)
}

// Outgoing returns the IDs of the node's outgoing neighbours in insertion order.
func (node *Node) Outgoing() []string {
	ids := make([]string, 0, len(node.outgoing))
	for _, neighbour := range node.outgoing {
		ids = append(ids, neighbour.id)
	}
	return ids
}

// Incoming returns the IDs of the node's incoming neighbours in insertion order.
func (node *Node) Incoming() []string {
	ids := make([]string, 0, len(node.incoming))
	for _, neighbour := range node.incoming {
		ids = append(ids, neighbour.id)
	}
	return ids
}

// Update is the single entry point through which a node receives an event.
// Disabled nodes and filtered events are dropped silently. Pipeline failures
// never propagate to the caller: they are converted into an ERROR event that
// is fanned out to the node's observers. Update always returns nil; the error
// return exists to satisfy Observer.
func (node *Node) Update(ctx context.Context, event *Event) error {
	if !node.shouldProcess(event) {
		return nil
	}

	node.beginProcessing()

	pipelineErr := node.runPipeline(ctx, event)
	if pipelineErr != nil {
		node.recordFailure()
		log.WithError(pipelineErr).WithField("node", node.id).Error("node pipeline failed")
		node.NotifyObservers(ctx, NewErrorEvent(pipelineErr.Error(), event, node.id))
		return nil
	}

	node.finishProcessing()
	return nil
}

// runPipeline executes steps 4–8 of the processing contract: the middleware
// before-chain, the first matching processor, the middleware after-chain, and
// fan-out of a non-nil result. A panic anywhere in the chain is recovered and
// reported as a pipeline error.
func (node *Node) runPipeline(ctx context.Context, event *Event) (pipelineErr error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			pipelineErr = fmt.Errorf("panic in node %s: %v", node.id, recovered)
		}
	}()

	processed := event
	for _, hook := range node.middleware {
		next, err := hook.BeforeProcess(ctx, processed, node.id)
		if err != nil {
			return err
		}
		if next != nil {
			processed = next
		}
	}

	var result *Event
	nodeCtx := node.buildContext()
	for _, processor := range node.processors {
		if !processor.CanHandle(processed) {
			continue
		}
		produced, err := processor.Process(ctx, processed, nodeCtx)
		if err != nil {
			return err
		}
		result = produced
		break
	}

	for _, hook := range node.middleware {
		next, err := hook.AfterProcess(ctx, processed, result, node.id)
		if err != nil {
			return err
		}
		result = next
	}

	if result != nil {
		node.NotifyObservers(ctx, result)
	}

	return nil
}

// NotifyObservers stamps the event with this node's ID, records it in the
// history ring and metrics, and delivers it. Plain nodes broadcast to every
// observer in insertion order; a failed delivery is logged and does not stop
// delivery to the remaining observers.
func (node *Node) NotifyObservers(ctx context.Context, event *Event) {
	event.SourceID = node.id
	node.recordEmission(event)

	if node.fanOut != nil {
		node.fanOut(ctx, event)
		return
	}
	node.broadcast(ctx, event)
}

func (node *Node) broadcast(ctx context.Context, event *Event) {
	log.WithFields(logrus.Fields{
		"node":      node.id,
		"type":      event.Type,
		"observers": len(node.observers),
	}).Debug("fanning out event")

	for _, observer := range node.observers {
		if err := observer.Update(ctx, event); err != nil {
			log.WithError(err).WithFields(logrus.Fields{
				"node":     node.id,
				"observer": observer.ID(),
			}).Error("observer update failed")
		}
	}
}

// Info returns the node's introspection record.
func (node *Node) Info() NodeInfo {
	node.mu.Lock()
	defer node.mu.Unlock()

	info := NodeInfo{
		ID:         node.id,
		Type:       node.nodeType,
		State:      node.state,
		Data:       node.data,
		Config:     node.config,
		Metrics:    node.metrics,
		Processors: len(node.processors),
		Middleware: len(node.middleware),
	}
	if node.lifecycle != nil {
		info.Lifecycle = true
		info.Running = node.lifecycle.IsRunning()
	}
	return info
}

func (node *Node) shouldProcess(event *Event) bool {
	if node.State() == StateDisabled {
		return false
	}
	for _, filter := range node.filters {
		if !filter(event) {
			return false
		}
	}
	return true
}

func (node *Node) beginProcessing() {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.state = StateProcessing
	node.metrics.EventsProcessed++
}

func (node *Node) finishProcessing() {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.state = StateIdle
	node.metrics.LastActivity = time.Now()
}

func (node *Node) recordFailure() {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.state = StateError
	node.metrics.Errors++
}

func (node *Node) recordEmission(event *Event) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.history.append(event)
	node.metrics.EventsSent++
	node.metrics.LastActivity = time.Now()
}

// buildContext snapshots the node for a processor call.
func (node *Node) buildContext() *NodeContext {
	node.mu.Lock()
	defer node.mu.Unlock()

	return &NodeContext{
		NodeID:        node.id,
		NodeType:      node.nodeType,
		Config:        node.config,
		CurrentData:   node.data,
		IncomingNodes: node.incomingIDsLocked(),
		OutgoingNodes: node.outgoingIDsLocked(),
		Metrics:       node.metrics,
		RecentEvents:  node.history.recent(10),
	}
}

func (node *Node) incomingIDsLocked() []string {
	ids := make([]string, 0, len(node.incoming))
	for _, neighbour := range node.incoming {
		ids = append(ids, neighbour.id)
	}
	return ids
}

func (node *Node) outgoingIDsLocked() []string {
	ids := make([]string, 0, len(node.outgoing))
	for _, neighbour := range node.outgoing {
		ids = append(ids, neighbour.id)
	}
	return ids
}
