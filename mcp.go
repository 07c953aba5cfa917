package domreview

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domreview/agentapi"
	"github.com/hazyhaar/domreview/kit"
	"github.com/hazyhaar/domreview/review"
)

// ToolPrefix prefixes every MCP tool name.
const ToolPrefix = "domreview_"

// MCPServer returns a new MCP server carrying the session's tools.
func (s *Session) MCPServer() *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "domreview", Version: "0.1.0"}, nil)
	s.RegisterMCP(srv)
	return srv
}

// RegisterMCP registers one tool per agent method on srv. Tools call the
// handler through the agent bridge, like any other caller.
func (s *Session) RegisterMCP(srv *mcp.Server) {
	api := agentapi.Descriptor()
	for _, method := range agentapi.Methods {
		tool := &mcp.Tool{
			Name:        ToolPrefix + method,
			Description: api.Methods[method].Description,
			InputSchema: toolSchema(method),
		}
		kit.RegisterMCPTool(srv, tool, s.callEndpoint(method), kit.DecodeArgs[agentapi.Params]())
	}
}

// callEndpoint issues method over the bridge. A failed call becomes a tool
// error carrying the handler's message.
func (s *Session) callEndpoint(method string) kit.Endpoint {
	return func(ctx context.Context, req any) (any, error) {
		var params any
		if p := req.(agentapi.Params); p != (agentapi.Params{}) {
			params = p
		}
		resp := s.client.Call(ctx, method, params)
		if !resp.Success {
			return nil, agentapi.Error(resp.Error)
		}
		if len(resp.Data) == 0 {
			return map[string]bool{"success": true}, nil
		}
		return json.RawMessage(resp.Data), nil
	}
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func toolSchema(method string) map[string]any {
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	enum := func(desc string, vals []string) map[string]any {
		e := make([]any, len(vals))
		for i, v := range vals {
			e[i] = v
		}
		return map[string]any{"type": "string", "enum": e, "description": desc}
	}
	priorities := make([]string, len(review.Priorities))
	for i, p := range review.Priorities {
		priorities[i] = string(p)
	}
	categories := make([]string, len(review.Categories))
	for i, c := range review.Categories {
		categories[i] = string(c)
	}

	reviewID := str("Review id (r_<millis>)")
	switch method {
	case agentapi.GetReview, agentapi.ResolveReview, agentapi.UnresolveReview, agentapi.DeleteReview:
		return inputSchema(map[string]any{"reviewId": reviewID}, []string{"reviewId"})
	case agentapi.AddComment:
		return inputSchema(map[string]any{
			"selector": str("CSS selector of the element to review"),
			"comment":  str("Review text"),
			"priority": enum("Default medium", priorities),
			"category": enum("Default style", categories),
		}, []string{"selector", "comment"})
	case agentapi.AddReply:
		return inputSchema(map[string]any{
			"reviewId": reviewID,
			"comment":  str("Reply text"),
			"author":   str("Default agent"),
		}, []string{"reviewId", "comment"})
	case agentapi.UpdateComment:
		return inputSchema(map[string]any{
			"reviewId": reviewID,
			"comment":  str("New review text"),
			"priority": enum("New priority", priorities),
			"category": enum("New category", categories),
		}, []string{"reviewId"})
	}
	return inputSchema(map[string]any{}, nil)
}
