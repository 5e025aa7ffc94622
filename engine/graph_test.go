package engine

import (
	"context"
	"errors"
	"testing"
)

func addTenProcessor() ProcessorFunc {
	return func(_ context.Context, event *Event, _ *NodeContext) (*Event, error) {
		return NewEvent(EventComputationResult, event.Data.(int)+10), nil
	}
}

func passthroughProcessor() ProcessorFunc {
	return func(_ context.Context, event *Event, _ *NodeContext) (*Event, error) {
		return NewEvent(event.Type, event.Data), nil
	}
}

func TestAddNodeRejectsDuplicates(t *testing.T) {
	graph := NewGraph()

	if err := graph.AddNode(NewNode("a")); err != nil {
		t.Fatalf("AddNode() error = %v", err)
	}
	if err := graph.AddNode(NewNode("a")); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("AddNode(duplicate) error = %v, want ErrDuplicateNode", err)
	}
}

func TestTriggerEventUnknownNode(t *testing.T) {
	graph := NewGraph()

	err := graph.TriggerEvent(context.Background(), "ghost", NewEvent(EventDataChange, nil))
	if !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("TriggerEvent(unknown) error = %v, want ErrNodeNotFound", err)
	}
}

func TestAddEdgeRequiresBothNodes(t *testing.T) {
	graph := NewGraph()
	graph.AddNode(NewNode("a"))

	if err := graph.AddEdge("a", "missing"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("AddEdge(missing to) error = %v, want ErrNodeNotFound", err)
	}
	if err := graph.AddEdge("missing", "a"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("AddEdge(missing from) error = %v, want ErrNodeNotFound", err)
	}
}

func TestGlobalMiddlewareAppliedExactlyOnce(t *testing.T) {
	var calls []string
	shared := &recordingMiddleware{name: "global", calls: &calls}

	graph := NewGraph()
	before := NewNode("before", WithProcessor(passthroughProcessor()))
	graph.AddNode(before)
	graph.AddGlobalMiddleware(shared)
	after := NewNode("after", WithProcessor(passthroughProcessor()))
	graph.AddNode(after)

	for _, node := range []*Node{before, after} {
		count := 0
		for _, middleware := range node.middleware {
			if middleware == Middleware(shared) {
				count++
			}
		}
		if count != 1 {
			t.Errorf("node %s carries the global middleware %d times, want 1", node.ID(), count)
		}
	}
}

func TestDoubleAddTenFanOut(t *testing.T) {
	graph := NewGraph()

	double := NewNode("double", WithProcessor(doubleProcessor()))
	addTenA := NewNode("add_ten_a", WithProcessor(addTenProcessor()))
	addTenB := NewNode("add_ten_b", WithProcessor(addTenProcessor()))
	for _, node := range []*Node{double, addTenA, addTenB} {
		if err := graph.AddNode(node); err != nil {
			t.Fatalf("AddNode(%s) error = %v", node.ID(), err)
		}
	}
	graph.AddEdge("double", "add_ten_a")
	graph.AddEdge("double", "add_ten_b")

	sink := newCollector("sink")
	addTenA.AddObserver(sink)
	addTenB.AddObserver(sink)

	err := graph.TriggerEvent(context.Background(), "double", NewEvent(EventDataChange, 5))
	if err != nil {
		t.Fatalf("TriggerEvent() error = %v", err)
	}

	if len(sink.events) != 2 {
		t.Fatalf("collector received %d events, want 2", len(sink.events))
	}
	for index, event := range sink.events {
		if event.Type != EventComputationResult || event.Data != 20 {
			t.Errorf("event %d = {%s %v}, want computation_result 20", index, event.Type, event.Data)
		}
	}
	if sink.events[0].SourceID != "add_ten_a" || sink.events[1].SourceID != "add_ten_b" {
		t.Errorf("delivery order = %s, %s, want add_ten_a then add_ten_b",
			sink.events[0].SourceID, sink.events[1].SourceID)
	}

	if double.Metrics().EventsProcessed != 1 {
		t.Errorf("double processed %d events, want 1", double.Metrics().EventsProcessed)
	}
}

func TestSummaryListsNodesAndEdges(t *testing.T) {
	graph := NewGraph()
	graph.AddNode(NewNode("a", WithType("worker")))
	graph.AddNode(NewNode("b"))
	graph.AddEdge("a", "b")

	summary := graph.Summary()
	if summary.TotalNodes != 2 {
		t.Errorf("total nodes = %d, want 2", summary.TotalNodes)
	}
	if summary.Nodes["a"].Type != "worker" {
		t.Errorf("node a type = %s, want worker", summary.Nodes["a"].Type)
	}
	if len(summary.Edges) != 1 || summary.Edges[0] != (Edge{From: "a", To: "b"}) {
		t.Errorf("edges = %v, want [a->b]", summary.Edges)
	}
}

// countingLifecycle records start/stop calls and can fail on demand.
type countingLifecycle struct {
	started  int
	stopped  int
	startErr error
}

var _ Lifecycle = (*countingLifecycle)(nil)

func (l *countingLifecycle) Start(context.Context) error {
	if l.startErr != nil {
		return l.startErr
	}
	l.started++
	return nil
}

func (l *countingLifecycle) Stop(context.Context) error {
	l.stopped++
	return nil
}

func (l *countingLifecycle) IsRunning() bool { return l.started > l.stopped }

func TestStartStopDrivesLifecycleNodes(t *testing.T) {
	graph := NewGraph()
	first := &countingLifecycle{}
	second := &countingLifecycle{}
	graph.AddNode(NewNode("first", WithLifecycle(first)))
	graph.AddNode(NewNode("plain"))
	graph.AddNode(NewNode("second", WithLifecycle(second)))

	if err := graph.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if first.started != 1 || second.started != 1 {
		t.Errorf("started = %d/%d, want 1/1", first.started, second.started)
	}

	if err := graph.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if first.stopped != 1 || second.stopped != 1 {
		t.Errorf("stopped = %d/%d, want 1/1", first.stopped, second.stopped)
	}
}

func TestStartRollsBackOnFailure(t *testing.T) {
	graph := NewGraph()
	healthy := &countingLifecycle{}
	broken := &countingLifecycle{startErr: errors.New("no broker")}
	graph.AddNode(NewNode("healthy", WithLifecycle(healthy)))
	graph.AddNode(NewNode("broken", WithLifecycle(broken)))

	if err := graph.Start(context.Background()); err == nil {
		t.Fatal("Start() expected error")
	}
	if healthy.stopped != 1 {
		t.Errorf("healthy node stopped %d times, want rollback stop", healthy.stopped)
	}
}
