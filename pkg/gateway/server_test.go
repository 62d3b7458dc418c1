package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kartikay/folio/pkg/agent"
	"github.com/kartikay/folio/pkg/coretools"
	"github.com/kartikay/folio/pkg/profile"
	"github.com/kartikay/folio/pkg/scheduler"
	"github.com/kartikay/folio/pkg/toolexecutor"
)

type recordingObserver struct {
	mu          sync.Mutex
	requests    []string
	connections int
}

func (o *recordingObserver) ObserveGatewayRequest(method string, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requests = append(o.requests, method)
}

func (o *recordingObserver) SetGatewayConnections(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connections = n
}

type harness struct {
	secret   string
	server   *Server
	ts       *httptest.Server
	tasks    *scheduler.Service
	observer *recordingObserver
}

func newHarness(t *testing.T, secret string) *harness {
	t.Helper()

	profiles, err := profile.NewStore("")
	require.NoError(t, err)

	tools := toolexecutor.New()
	require.NoError(t, coretools.RegisterCoreTools(tools, coretools.Options{Profiles: profiles}))

	approvals := toolexecutor.NewPendingApprovals()
	tools.SetApprovalManager(toolexecutor.NewApprovalManager(approvals))

	manager := agent.NewManager(agent.ManagerConfig{})
	store, err := scheduler.NewFileStore(filepath.Join(t.TempDir(), "tasks.json"))
	require.NoError(t, err)
	tasks, err := scheduler.NewService(scheduler.Options{Store: store, Dispatch: manager.Dispatch})
	require.NoError(t, err)
	require.NoError(t, tasks.Start(context.Background()))
	t.Cleanup(func() { _ = tasks.Stop() })
	manager.SetScheduler(tasks)

	observer := &recordingObserver{}
	server, err := NewServer(Config{
		SharedSecret: secret,
		Tools:        tools,
		Approvals:    approvals,
		Tasks:        tasks,
		Sessions:     manager,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("folio_up 1\n"))
		}),
		Observer: observer,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	return &harness{secret: secret, server: server, ts: ts, tasks: tasks, observer: observer}
}

func (h *harness) rpc(t *testing.T, method string, params map[string]interface{}) RPCResponse {
	t.Helper()

	body, err := json.Marshal(RPCRequest{ID: "1", Method: method, Params: params})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, h.ts.URL+"/rpc", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(secretHeader, h.secret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(h.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	return conn
}

func authenticate(t *testing.T, conn *websocket.Conn, secret string) {
	t.Helper()

	var challenge AuthChallenge
	require.NoError(t, conn.ReadJSON(&challenge))
	require.Equal(t, "auth.challenge", challenge.Event)

	require.NoError(t, conn.WriteJSON(AuthResponse{Method: "auth.response", Signature: Sign(secret, challenge.Challenge)}))

	var result AuthResult
	require.NoError(t, conn.ReadJSON(&result))
	require.True(t, result.Success, result.Message)
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)

	_, err = NewServer(Config{Port: -1})
	assert.Error(t, err)
}

func TestServer_Healthz(t *testing.T) {
	h := newHarness(t, "")

	resp, err := http.Get(h.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	metrics, err := http.Get(h.ts.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestServer_RPCRequiresSecret(t *testing.T) {
	h := newHarness(t, "s3cret")

	resp, err := http.Post(h.ts.URL+"/rpc", "application/json", strings.NewReader(`{"id":"1","method":"tools.list"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	get, err := http.Get(h.ts.URL + "/rpc")
	require.NoError(t, err)
	defer get.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, get.StatusCode)
}

func TestServer_ToolsList(t *testing.T) {
	h := newHarness(t, "s3cret")

	resp := h.rpc(t, "tools.list", nil)
	require.Nil(t, resp.Error)

	tools := resp.Result.([]interface{})
	byName := map[string]map[string]interface{}{}
	for _, raw := range tools {
		tool := raw.(map[string]interface{})
		byName[tool["name"].(string)] = tool
	}

	require.Contains(t, byName, "scheduleTask")
	require.Contains(t, byName, "getResume")
	assert.Equal(t, true, byName["getResume"]["requiresConfirmation"])
	assert.Equal(t, false, byName["scheduleTask"]["requiresConfirmation"])
	assert.NotNil(t, byName["scheduleTask"]["inputSchema"])
}

func TestServer_ScheduleListCancel(t *testing.T) {
	h := newHarness(t, "s3cret")

	resp := h.rpc(t, "tools.call", map[string]interface{}{
		"tool":       "scheduleTask",
		"sessionKey": "alice",
		"args": map[string]interface{}{
			"description": "follow up",
			"when":        map[string]interface{}{"type": "delayed", "delayInSeconds": 3600},
		},
	})
	require.Nil(t, resp.Error)
	result := resp.Result.(map[string]interface{})
	assert.Equal(t, true, result["success"])
	assert.Equal(t, `Task scheduled for type "delayed" : 3600`, result["output"])

	tasks := h.tasks.List("alice")
	require.Len(t, tasks, 1)

	listed := h.rpc(t, "tasks.list", map[string]interface{}{"sessionKey": "alice"})
	require.Nil(t, listed.Error)
	assert.Len(t, listed.Result.([]interface{}), 1)

	canceled := h.rpc(t, "tasks.cancel", map[string]interface{}{"taskId": tasks[0].ID})
	require.Nil(t, canceled.Error)
	assert.Empty(t, h.tasks.List(""))

	again := h.rpc(t, "tasks.cancel", map[string]interface{}{"taskId": tasks[0].ID})
	require.NotNil(t, again.Error)
	assert.Equal(t, InvalidParams, again.Error.Code)
}

func TestServer_ToolsCallErrors(t *testing.T) {
	h := newHarness(t, "")

	missing := h.rpc(t, "tools.call", map[string]interface{}{})
	require.NotNil(t, missing.Error)
	assert.Equal(t, InvalidParams, missing.Error.Code)

	unknown := h.rpc(t, "tools.call", map[string]interface{}{"tool": "nope"})
	require.Nil(t, unknown.Error)
	result := unknown.Result.(map[string]interface{})
	assert.Equal(t, false, result["success"])
	assert.Equal(t, string(toolexecutor.ErrorKindToolNotFound), result["kind"])
}

func TestServer_ChatWithoutRunner(t *testing.T) {
	h := newHarness(t, "")

	resp := h.rpc(t, "chat.send", map[string]interface{}{"message": "hi"})
	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "no model provider configured")

	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	assert.Contains(t, h.observer.requests, "chat.send")
}

func TestServer_WebSocketRequiresAuth(t *testing.T) {
	h := newHarness(t, "s3cret")
	conn := h.dial(t)

	var challenge AuthChallenge
	require.NoError(t, conn.ReadJSON(&challenge))

	require.NoError(t, conn.WriteJSON(RPCRequest{ID: "1", Method: "tools.list"}))

	var resp RPCResponse
	require.NoError(t, conn.ReadJSON(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, AuthenticationRequired, resp.Error.Code)
}

func TestServer_WebSocketApprovalFlow(t *testing.T) {
	h := newHarness(t, "s3cret")
	conn := h.dial(t)
	authenticate(t, conn, "s3cret")

	require.NoError(t, conn.WriteJSON(RPCRequest{
		ID:     "call",
		Method: "tools.call",
		Params: map[string]interface{}{"tool": "getResume"},
	}))

	var approvalID string
	for approvalID == "" {
		var frame map[string]interface{}
		require.NoError(t, conn.ReadJSON(&frame))
		if frame["event"] == "tool.approval_request" {
			data := frame["data"].(map[string]interface{})
			assert.Equal(t, "getResume", data["tool"])
			approvalID = data["approval_id"].(string)
		}
	}

	require.NoError(t, conn.WriteJSON(RPCRequest{
		ID:     "approve",
		Method: "tools.approve",
		Params: map[string]interface{}{"approvalId": approvalID, "approved": true},
	}))

	var call RPCResponse
	for call.ID != "call" {
		call = RPCResponse{}
		require.NoError(t, conn.ReadJSON(&call))
	}

	require.Nil(t, call.Error)
	result := call.Result.(map[string]interface{})
	assert.Equal(t, true, result["success"])
	assert.Contains(t, result["output"], profile.Default().Name)
}

func TestServer_PublishTaskEvent(t *testing.T) {
	h := newHarness(t, "")
	conn := h.dial(t)

	var hello AuthResult
	require.NoError(t, conn.ReadJSON(&hello))
	require.True(t, hello.Success)

	h.server.PublishTaskEvent(scheduler.Event{Action: scheduler.EventActionAdded, TaskID: "t1", AgentID: "alice"})

	var msg EventMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "task.added", msg.Event)
	assert.Equal(t, StreamTypeTask, msg.Stream)
	assert.Equal(t, "alice", msg.AgentID)
	assert.Equal(t, int64(1), msg.Seq)

	h.observer.mu.Lock()
	defer h.observer.mu.Unlock()
	assert.Equal(t, 1, h.observer.connections)
}

func TestServer_StartStop(t *testing.T) {
	h := newHarness(t, "")

	srv := h.server
	srv.config.Host = "127.0.0.1"
	srv.config.Port = 0
	require.NoError(t, srv.Start())
	require.NotEmpty(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx))
}
