package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	core "tabpool-backend/core/payment_job"
	"tabpool-backend/middleware"
)

// maxMessageBytes caps one JSON-RPC message.
const maxMessageBytes = 1 << 20

type jsonRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type jsonRPCErrorResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Error   *jsonRPCError `json:"error"`
}

type httpCallerKey struct{}

// httpCaller holds the caller of an HTTP transport request. It is present,
// possibly empty, for every HTTP call so tools never fall back to the
// server wallet on that transport.
type httpCaller struct {
	id core.Identity
}

func withHTTPCaller(ctx context.Context, id core.Identity) context.Context {
	return context.WithValue(ctx, httpCallerKey{}, httpCaller{id: id})
}

// walletFor returns the identity a tool call acts as.
func (s *MCPServer) walletFor(ctx context.Context) core.Identity {
	if c, ok := ctx.Value(httpCallerKey{}).(httpCaller); ok {
		return c.id
	}
	return s.wallet
}

// HTTPHandler serves single JSON-RPC messages over POST. Mount it behind
// middleware.APIAuth; calls act as the authenticated wallet.
func (s *MCPServer) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeRPCError(w, http.StatusMethodNotAllowed, nil, -32600, "use POST", nil)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
		if err != nil {
			writeRPCError(w, http.StatusBadRequest, nil, -32700, "failed to read request body", err.Error())
			return
		}
		body = bytes.TrimSpace(body)
		if len(body) == 0 {
			writeRPCError(w, http.StatusBadRequest, nil, -32600, "empty request body", nil)
			return
		}
		if !json.Valid(body) {
			writeRPCError(w, http.StatusBadRequest, nil, -32700, "invalid JSON", nil)
			return
		}

		caller, _ := middleware.CallerFrom(r.Context())
		resp := s.mcpServer.HandleMessage(withHTTPCaller(r.Context(), caller), body)
		if resp == nil {
			// notifications carry no response
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.logger.Warnw("encode MCP response", "error", err)
		}
	})
}

func writeRPCError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(jsonRPCErrorResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &jsonRPCError{Code: code, Message: message, Data: data},
	})
}
