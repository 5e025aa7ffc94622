package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

var (
	// ErrDuplicateNode is returned by Graph.AddNode when the node's ID is
	// already registered.
	ErrDuplicateNode = errors.New("node already exists")

	// ErrNodeNotFound is returned when an operation references an
	// unregistered node ID.
	ErrNodeNotFound = errors.New("node not found")
)

// Edge is a directed connection between two registered nodes, reported by
// Graph.Summary.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Summary is the introspection record for a whole graph.
type Summary struct {
	TotalNodes int                 `json:"total_nodes"`
	Nodes      map[string]NodeInfo `json:"nodes"`
	Edges      []Edge              `json:"edges"`
}

// Graph is the node registry and the external entry point for events. It owns
// every node registered with it, installs edges between them, attaches global
// middleware, and drives the lifecycle of long-lived nodes.
//
// The registry is safe for concurrent reads; registration and edge
// installation are expected to happen during assembly, before events flow.
type Graph struct {
	nodes            map[string]*Node
	order            []string
	globalMiddleware []Middleware
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// AddNode registers a node. Every global middleware registered so far is
// appended to the node before insertion, so each node carries each global
// middleware exactly once. Registering a second node with the same ID fails
// with ErrDuplicateNode.
func (graph *Graph) AddNode(node *Node) error {
	if _, exists := graph.nodes[node.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID())
	}

	for _, middleware := range graph.globalMiddleware {
		node.AddMiddleware(middleware)
	}

	graph.nodes[node.ID()] = node
	graph.order = append(graph.order, node.ID())

	log.WithFields(logrus.Fields{
		"node": node.ID(),
		"type": node.Type(),
	}).Info("added node")
	return nil
}

// Node looks up a registered node by ID.
func (graph *Graph) Node(nodeID string) (*Node, bool) {
	node, exists := graph.nodes[nodeID]
	return node, exists
}

// AddEdge installs the directed edge from→to between two registered nodes.
func (graph *Graph) AddEdge(fromID, toID string) error {
	fromNode, fromExists := graph.nodes[fromID]
	toNode, toExists := graph.nodes[toID]
	if !fromExists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, fromID)
	}
	if !toExists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, toID)
	}

	fromNode.AddEdgeTo(toNode)
	log.WithFields(logrus.Fields{"from": fromID, "to": toID}).Info("added edge")
	return nil
}

// RemoveEdge removes the directed edge from→to.
func (graph *Graph) RemoveEdge(fromID, toID string) error {
	fromNode, fromExists := graph.nodes[fromID]
	toNode, toExists := graph.nodes[toID]
	if !fromExists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, fromID)
	}
	if !toExists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, toID)
	}

	fromNode.RemoveEdgeTo(toNode)
	return nil
}

// AddGlobalMiddleware appends a middleware to every currently-registered node
// and records it for nodes registered later.
func (graph *Graph) AddGlobalMiddleware(middleware Middleware) {
	graph.globalMiddleware = append(graph.globalMiddleware, middleware)
	for _, nodeID := range graph.order {
		graph.nodes[nodeID].AddMiddleware(middleware)
	}
}

// TriggerEvent injects an event into the graph at the named node. Pipeline
// failures inside the graph never surface here; they become ERROR events. An
// unknown node ID fails with ErrNodeNotFound.
func (graph *Graph) TriggerEvent(ctx context.Context, nodeID string, event *Event) error {
	node, exists := graph.nodes[nodeID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	return node.Update(ctx, event)
}

// Start starts every lifecycle-capable node in registration order. On
// failure, nodes already started are stopped best-effort and the first error
// is returned.
func (graph *Graph) Start(ctx context.Context) error {
	started := make([]*Node, 0)

	for _, nodeID := range graph.order {
		node := graph.nodes[nodeID]
		lifecycle := node.Lifecycle()
		if lifecycle == nil {
			continue
		}

		if err := lifecycle.Start(ctx); err != nil {
			for _, startedNode := range started {
				if stopErr := startedNode.Lifecycle().Stop(ctx); stopErr != nil {
					log.WithError(stopErr).WithField("node", startedNode.ID()).Warn("rollback stop failed")
				}
			}
			return fmt.Errorf("starting node %s: %w", nodeID, err)
		}
		started = append(started, node)
	}

	return nil
}

// Stop stops every lifecycle-capable node in registration order. All nodes
// are attempted; the errors are joined.
func (graph *Graph) Stop(ctx context.Context) error {
	var stopErrors []error

	for _, nodeID := range graph.order {
		lifecycle := graph.nodes[nodeID].Lifecycle()
		if lifecycle == nil {
			continue
		}
		if err := lifecycle.Stop(ctx); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("stopping node %s: %w", nodeID, err))
		}
	}

	return errors.Join(stopErrors...)
}

// Summary returns the graph's introspection record: per-node info and the
// full edge list in registration order.
func (graph *Graph) Summary() Summary {
	summary := Summary{
		TotalNodes: len(graph.nodes),
		Nodes:      make(map[string]NodeInfo, len(graph.nodes)),
		Edges:      make([]Edge, 0),
	}

	for _, nodeID := range graph.order {
		node := graph.nodes[nodeID]
		summary.Nodes[nodeID] = node.Info()
		for _, targetID := range node.Outgoing() {
			summary.Edges = append(summary.Edges, Edge{From: nodeID, To: targetID})
		}
	}

	return summary
}
