package mcp

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"zohobooks-mcp/server/internal/apperrors"
	"zohobooks-mcp/server/internal/jsonrpc"
	"zohobooks-mcp/server/internal/middleware"
	"zohobooks-mcp/server/internal/modules"
	"zohobooks-mcp/server/internal/observability"
)

// ServerName is reported in the initialize result.
const ServerName = "zoho-books-mcp"

type Handler struct {
	version string
}

func NewHandler(version string) *Handler {
	if version == "" {
		version = "dev"
	}
	return &Handler{version: version}
}

// ProcessRequest routes a JSON-RPC request to the appropriate handler.
// Called by the transport middleware.
func (h *Handler) ProcessRequest(ctx context.Context, req *jsonrpc.Request) (any, *jsonrpc.Error) {
	switch req.Method {
	case "initialize":
		return h.handleInitialize(req), nil
	case "initialized", "notifications/initialized":
		return nil, nil
	case "ping":
		return struct{}{}, nil
	case "tools/list":
		return &ToolsListResult{Tools: modules.AllTools()}, nil
	case "tools/call":
		return h.handleToolCall(ctx, req)
	case "resources/list":
		return h.handleResourcesList(), nil
	case "resources/read":
		return h.handleResourcesRead(ctx, req)
	default:
		return nil, &jsonrpc.Error{Code: MethodNotFound, Message: "Method not found"}
	}
}

func (h *Handler) handleInitialize(req *jsonrpc.Request) *InitializeResult {
	var params InitializeParams
	if err := decodeParams(req, &params); err == nil && params.ClientInfo.Name != "" {
		observability.Logger().Named("mcp").Info("client connected",
			zap.String("client", params.ClientInfo.Name),
			zap.String("client_version", params.ClientInfo.Version),
			zap.String("protocol_version", params.ProtocolVersion),
		)
	}
	return &InitializeResult{
		ProtocolVersion: ProtocolVersion,
		Capabilities: ServerCapabilities{
			Tools:     &ToolsCapability{},
			Resources: &ResourcesCapability{},
		},
		ServerInfo: ServerInfo{
			Name:    ServerName,
			Version: h.version,
		},
	}
}

// handleToolCall never returns a protocol error for business failures:
// unknown tools, bad arguments and upstream errors come back as result data.
func (h *Handler) handleToolCall(ctx context.Context, req *jsonrpc.Request) (*ToolCallResult, *jsonrpc.Error) {
	var params ToolCallParams
	if err := decodeParams(req, &params); err != nil {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Invalid params structure"}
	}
	if params.Name == "" {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "name is required"}
	}
	if params.Arguments == nil {
		params.Arguments = make(map[string]any)
	}
	return modules.Run(ctx, params.Name, params.Arguments), nil
}

func (h *Handler) handleResourcesList() *ResourcesListResult {
	resources := modules.AllResources()
	if resources == nil {
		resources = []modules.Resource{}
	}
	return &ResourcesListResult{Resources: resources}
}

func (h *Handler) handleResourcesRead(ctx context.Context, req *jsonrpc.Request) (*ResourcesReadResult, *jsonrpc.Error) {
	var params ResourcesReadParams
	if err := decodeParams(req, &params); err != nil {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "Invalid params structure"}
	}
	if params.URI == "" {
		return nil, &jsonrpc.Error{Code: InvalidParams, Message: "uri is required"}
	}

	res, content, err := modules.ReadResource(ctx, params.URI)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, &jsonrpc.Error{Code: ErrResourceNotFound, Message: err.Error(), Data: map[string]string{"uri": params.URI}}
		}
		observability.LogError("resources/read "+params.URI+" (request "+middleware.GetRequestID(ctx)+")", err)
		return nil, &jsonrpc.Error{Code: InternalError, Message: err.Error()}
	}
	return &ResourcesReadResult{
		Contents: []ResourceContent{{URI: res.URI, MimeType: res.MimeType, Text: content}},
	}, nil
}

// decodeParams re-encodes the loosely typed params into dst.
func decodeParams(req *jsonrpc.Request, dst any) error {
	if req.Params == nil {
		return nil
	}
	b, err := json.Marshal(req.Params)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
