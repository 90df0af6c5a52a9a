package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      int              `json:"id"`
	Result  *json.RawMessage `json:"result,omitempty"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func initializeRequest() jsonRPCRequest {
	return jsonRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "initialize",
		Params: map[string]any{
			"protocolVersion": "2024-11-05",
			"clientInfo":      map[string]any{"name": "resolution-test", "version": "0.0.0"},
			"capabilities":    map[string]any{},
		},
	}
}

func withBuildInfo(t *testing.T) {
	prevVersion, prevCommit, prevDate := Version, BuildCommit, BuildDate
	Version, BuildCommit, BuildDate = "test", "commit123", "2026-01-01"
	t.Cleanup(func() {
		Version, BuildCommit, BuildDate = prevVersion, prevCommit, prevDate
	})
}

func decodeResult(t *testing.T, resp jsonRPCResponse) map[string]any {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("rpc error: %v", resp.Error.Message)
	}
	if resp.Result == nil {
		t.Fatal("rpc response missing result")
	}
	var result map[string]any
	if err := json.Unmarshal(*resp.Result, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	return result
}

func hasTool(result map[string]any, name string) bool {
	tools, _ := result["tools"].([]any)
	for _, tool := range tools {
		if m, ok := tool.(map[string]any); ok && m["name"] == name {
			return true
		}
	}
	return false
}

func TestMCPHTTPTransport(t *testing.T) {
	withBuildInfo(t)
	h := newHarness(t)

	addr := pickFreeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.server.ServeHTTP(ctx, addr) }()
	waitForHTTP(t, addr, 5*time.Second)

	result := decodeResult(t, sendJSONRPC(t, addr, initializeRequest()))
	serverInfo := result["serverInfo"].(map[string]any)
	if serverInfo["version"] != "test" {
		t.Fatalf("unexpected version: %v", serverInfo["version"])
	}
	if _, ok := result["capabilities"].(map[string]any)["tools"]; !ok {
		t.Fatal("expected tools capability")
	}

	tools := decodeResult(t, sendJSONRPC(t, addr, jsonRPCRequest{JSONRPC: "2.0", ID: 2, Method: "tools/list"}))
	if !hasTool(tools, "resolution_get_plan") {
		t.Fatalf("expected resolution_get_plan in %v", tools)
	}
}

func TestMCPWebSocketTransport(t *testing.T) {
	withBuildInfo(t)
	h := newHarness(t)

	addr := pickFreeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = h.server.ServeWebSocket(ctx, addr) }()

	ws := dialWebSocket(t, fmt.Sprintf("ws://%s/mcp", addr), 5*time.Second)
	defer func() { _ = ws.Close() }()

	if err := ws.WriteJSON(initializeRequest()); err != nil {
		t.Fatalf("write initialize: %v", err)
	}
	var initResp jsonRPCResponse
	if err := ws.ReadJSON(&initResp); err != nil {
		t.Fatalf("read initialize: %v", err)
	}
	decodeResult(t, initResp)

	if err := ws.WriteJSON(jsonRPCRequest{JSONRPC: "2.0", ID: 2, Method: "tools/list"}); err != nil {
		t.Fatalf("write tools/list: %v", err)
	}
	var toolsResp jsonRPCResponse
	if err := ws.ReadJSON(&toolsResp); err != nil {
		t.Fatalf("read tools/list: %v", err)
	}
	if !hasTool(decodeResult(t, toolsResp), "resolution_fairness_report") {
		t.Fatal("expected resolution_fairness_report tool")
	}
}

func TestServeHTTPReturnsCanceled(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.server.ServeHTTP(ctx, "127.0.0.1:0"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func pickFreeAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()
	return addr
}

func waitForHTTP(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf("http://%s/health", addr)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not become healthy at %s", url)
}

func dialWebSocket(t *testing.T, url string, timeout time.Duration) *websocket.Conn {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			return ws
		}
		if time.Now().After(deadline) {
			t.Fatalf("websocket dial: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func sendJSONRPC(t *testing.T, addr string, req jsonRPCRequest) jsonRPCResponse {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	url := fmt.Sprintf("http://%s/mcp", addr)
	httpResp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("http post: %v", err)
	}
	defer httpResp.Body.Close() //nolint:errcheck // best-effort close on read body

	var resp jsonRPCResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}
