package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/bnbbuilders/tbnb-faucet/internal/core/domain"
	"github.com/bnbbuilders/tbnb-faucet/internal/log"
)

// MCPVersion is the protocol revision reported on /health
const MCPVersion = "2024-11-05"

// JSON-RPC 2.0 error codes
const (
	codeParseError     = -32700
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

const (
	methodToolsList = "tools/list"
	methodToolsCall = "tools/call"
)

const maxBodySize = 1 << 16

// RPCRequest is a JSON-RPC 2.0 request
type RPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// RPCResponse is a JSON-RPC 2.0 response. ID is always present, null when unknown.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a JSON-RPC response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ToolCallParams are the params of tools/call, also accepted as a bare body
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolResult is the result of tools/call
type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError"`
}

// ToolContent is one content block of a tool result
type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var nullID = json.RawMessage("null")

func rpcResult(id json.RawMessage, result any) RPCResponse {
	return RPCResponse{JSONRPC: "2.0", ID: orNull(id), Result: result}
}

func rpcError(id json.RawMessage, code int, msg string, data any) RPCResponse {
	return RPCResponse{JSONRPC: "2.0", ID: orNull(id), Error: &RPCError{Code: code, Message: msg, Data: data}}
}

func orNull(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return nullID
	}
	return id
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}

// parseRPC returns the request when body is a JSON-RPC call, identified by its method member
func parseRPC(body []byte) (*RPCRequest, bool) {
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil || req.Method == "" {
		return nil, false
	}
	return &req, true
}

// ListTools handles POST /mcp/v1/tools. Anything that isn't a JSON-RPC call gets the bare tool list.
func (s *Server) ListTools(w http.ResponseWriter, r *http.Request) {
	tools := map[string][]Tool{"tools": s.tools}
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusOK, tools)
		return
	}
	req, ok := parseRPC(body)
	if !ok {
		writeJSON(w, http.StatusOK, tools)
		return
	}
	if req.Method != methodToolsList {
		writeJSON(w, http.StatusOK, rpcError(req.ID, codeMethodNotFound, "Method not found", "Unknown method: "+req.Method))
		return
	}
	writeJSON(w, http.StatusOK, rpcResult(req.ID, tools))
}

// CallTool handles POST /mcp/v1/tools/call. Protocol errors are JSON-RPC errors, denials are
// tool results flagged with isError and execution failures are server errors carrying the outcome.
func (s *Server) CallTool(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusOK, rpcError(nil, codeParseError, "Parse error", err.Error()))
		return
	}

	var (
		id     json.RawMessage
		params ToolCallParams
	)
	if req, ok := parseRPC(body); ok {
		id = req.ID
		if req.Method != methodToolsCall {
			writeJSON(w, http.StatusOK, rpcError(id, codeMethodNotFound, "Method not found", "Unknown method: "+req.Method))
			return
		}
		if len(req.Params) == 0 || bytes.Equal(req.Params, nullID) {
			writeJSON(w, http.StatusOK, rpcError(id, codeInvalidParams, "Invalid params", "Missing params"))
			return
		}
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeJSON(w, http.StatusOK, rpcError(id, codeInvalidParams, "Invalid params", err.Error()))
			return
		}
	} else {
		var bare struct {
			ToolCallParams
			ID json.RawMessage `json:"id,omitempty"`
		}
		if err := json.Unmarshal(body, &bare); err != nil {
			writeJSON(w, http.StatusOK, rpcError(nil, codeParseError, "Parse error", err.Error()))
			return
		}
		params = bare.ToolCallParams
		id = bare.ID
		if len(id) == 0 {
			id, _ = json.Marshal(uuid.NewString())
		}
	}

	if params.Name == "" {
		writeJSON(w, http.StatusOK, rpcError(id, codeInvalidParams, "Invalid params", "Missing tool name"))
		return
	}
	if params.Name != ToolIssueTBNB {
		writeJSON(w, http.StatusOK, rpcError(id, codeMethodNotFound, "Method not found", "Unknown tool: "+params.Name))
		return
	}

	args, err := decodeArguments(s.issueSchema, params.Arguments)
	if err != nil {
		log.Info(ctx, "invalid tool arguments", "tool", params.Name, "err", err)
		writeJSON(w, http.StatusOK, rpcError(id, codeInvalidParams, "Invalid params", err.Error()))
		return
	}

	outcome := s.distribution.Issue(ctx, args.request())
	resp := outcomeResponse(outcome)
	switch outcome.Status {
	case domain.StatusIssued:
		writeJSON(w, http.StatusOK, rpcResult(id, toolResult(resp, false)))
	case domain.StatusFailedExecution, domain.StatusDeniedLookupUnavailable:
		writeJSON(w, http.StatusOK, rpcError(id, codeServerError, "Server error", resp))
	default:
		writeJSON(w, http.StatusOK, rpcResult(id, toolResult(resp, true)))
	}
}

func toolResult(v any, isError bool) ToolResult {
	text, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		text = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return ToolResult{
		Content: []ToolContent{{Type: "text", Text: string(text)}},
		IsError: isError,
	}
}
