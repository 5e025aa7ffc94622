package mapper

import (
	"github.com/flowmesh/flowmesh/engine"
	"github.com/flowmesh/flowmesh/middleware"
)

// NewNode creates a mapper node wired with a configured Processor and
// event-logging middleware.
func NewNode(id string, config Config, opts ...engine.NodeOption) (*engine.Node, error) {
	processor, err := NewProcessor(config)
	if err != nil {
		return nil, err
	}

	return engine.NewNode(id, append([]engine.NodeOption{
		engine.WithType("mapper_node"),
		engine.WithConfig(map[string]any{"mode": processor.config.Mode}),
		engine.WithProcessor(processor),
		engine.WithMiddleware(middleware.NewLogging("mapper")),
	}, opts...)...), nil
}
