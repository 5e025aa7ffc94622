package httpreq

import (
	"net/http"
	"strings"

	"github.com/flowmesh/flowmesh/engine"
	"github.com/flowmesh/flowmesh/middleware"
)

func newRequestNode(id, method string, config Config, opts []engine.NodeOption) *engine.Node {
	return engine.NewNode(id, append([]engine.NodeOption{
		engine.WithType("http_" + strings.ToLower(method) + "_node"),
		engine.WithProcessor(NewRequestProcessor(method, config)),
		engine.WithMiddleware(middleware.NewLogging("http")),
	}, opts...)...)
}

// NewGetNode creates a node performing retrying GET requests.
func NewGetNode(id string, config Config, opts ...engine.NodeOption) *engine.Node {
	return newRequestNode(id, http.MethodGet, config, opts)
}

// NewPostNode creates a node performing retrying POST requests.
func NewPostNode(id string, config Config, opts ...engine.NodeOption) *engine.Node {
	return newRequestNode(id, http.MethodPost, config, opts)
}

// NewPutNode creates a node performing retrying PUT requests.
func NewPutNode(id string, config Config, opts ...engine.NodeOption) *engine.Node {
	return newRequestNode(id, http.MethodPut, config, opts)
}

// NewPatchNode creates a node performing retrying PATCH requests.
func NewPatchNode(id string, config Config, opts ...engine.NodeOption) *engine.Node {
	return newRequestNode(id, http.MethodPatch, config, opts)
}

// NewDeleteNode creates a node performing retrying DELETE requests.
func NewDeleteNode(id string, config Config, opts ...engine.NodeOption) *engine.Node {
	return newRequestNode(id, http.MethodDelete, config, opts)
}
