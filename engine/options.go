package engine

// NodeOption is a functional option applied by NewNode.
type NodeOption func(*Node)

// WithType sets the node's free-form type tag. The default is "base".
func WithType(nodeType string) NodeOption {
	return func(node *Node) {
		node.nodeType = nodeType
	}
}

// WithData sets the node's initial opaque state.
func WithData(data any) NodeOption {
	return func(node *Node) {
		node.data = data
	}
}

// WithConfig sets the node's configuration map. A nil map is replaced with an
// empty one so Config never returns nil.
func WithConfig(config map[string]any) NodeOption {
	return func(node *Node) {
		if config == nil {
			config = make(map[string]any)
		}
		node.config = config
	}
}

// WithProcessor appends a processor during construction. May be repeated;
// registration order is evaluation order.
func WithProcessor(processor Processor) NodeOption {
	return func(node *Node) {
		node.AddProcessor(processor)
	}
}

// WithMiddleware appends a middleware during construction. May be repeated.
func WithMiddleware(middleware Middleware) NodeOption {
	return func(node *Node) {
		node.AddMiddleware(middleware)
	}
}

// WithFilter appends an event filter during construction. May be repeated.
func WithFilter(filter Filter) NodeOption {
	return func(node *Node) {
		node.AddFilter(filter)
	}
}

// WithLifecycle attaches start/stop behavior during construction.
func WithLifecycle(lifecycle Lifecycle) NodeOption {
	return func(node *Node) {
		node.lifecycle = lifecycle
	}
}
