package gateway

import (
	"context"
	"encoding/json"
	"io"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"canvaschat/internal/domain"
	"canvaschat/internal/infra/config"
)

// --- test helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAuth() Authenticator {
	return NewStaticTokenAuth([]config.TokenConfig{
		{Token: "test-token", UserID: "u1", Name: "tester"},
		{Token: "other-token", UserID: "u2", Name: "other"},
	})
}

func startTestServer(t *testing.T, register func(*Server)) *Server {
	t.Helper()
	srv := NewServer(newTestAuth(), "127.0.0.1:0", testLogger())
	if register != nil {
		register(srv)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		if err := srv.Start(ctx); err != nil {
			t.Logf("gateway: %v", err)
		}
	}()

	deadline := time.Now().Add(3 * time.Second)
	for srv.BoundAddr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start in time")
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Cleanup(func() {
		srv.Stop(context.Background())
	})

	return srv
}

func dialWS(t *testing.T, addr, token string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws://"+addr+"/ws?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

// rpc sends one request and reads frames until its response, returning
// the response and the events received before it.
func rpc(t *testing.T, ws *websocket.Conn, id uint64, method string, payload any) (Frame, []Frame) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req := Frame{Type: FrameTypeRequest, ID: id, Method: method}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		req.Payload = raw
	}
	if err := wsjson.Write(ctx, ws, req); err != nil {
		t.Fatalf("write: %v", err)
	}

	var events []Frame
	for {
		var f Frame
		if err := wsjson.Read(ctx, ws, &f); err != nil {
			t.Fatalf("read %s: %v", method, err)
		}
		if f.Type == FrameTypeEvent {
			events = append(events, f)
			continue
		}
		if f.ID == id {
			return f, events
		}
	}
}

func eventTypes(frames []Frame) []domain.EventType {
	var out []domain.EventType
	for _, f := range frames {
		var e domain.Event
		if err := json.Unmarshal(f.Payload, &e); err == nil {
			out = append(out, e.Type)
		}
	}
	return out
}

// --- tests ---

func TestServerLifecycle(t *testing.T) {
	srv := startTestServer(t, nil)

	if srv.BoundAddr() == "" {
		t.Fatal("BoundAddr is empty")
	}
	if err := srv.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestServerAuthReject(t *testing.T) {
	srv := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, _, err := websocket.Dial(ctx, "ws://"+srv.BoundAddr()+"/ws?token=bad-token", nil)
	if err == nil {
		t.Fatal("expected auth rejection")
	}
}

func TestServerBearerHeader(t *testing.T) {
	srv := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws://"+srv.BoundAddr()+"/ws", &websocket.DialOptions{
		HTTPHeader: map[string][]string{"Authorization": {"Bearer test-token"}},
	})
	if err != nil {
		t.Fatalf("dial with bearer token: %v", err)
	}
	ws.Close(websocket.StatusNormalClosure, "")
}

func TestServerRPCRoundtrip(t *testing.T) {
	srv := startTestServer(t, func(s *Server) {
		s.RegisterHandler("echo", func(_ context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error) {
			if call.Client.UserID != "u1" || call.Session == nil {
				t.Errorf("call = %+v", call)
			}
			return payload, nil
		})
	})

	ws := dialWS(t, srv.BoundAddr(), "test-token")
	resp, _ := rpc(t, ws, 1, "echo", map[string]string{"msg": "hello"})

	if resp.Type != FrameTypeResponse {
		t.Errorf("type = %q", resp.Type)
	}
	if resp.Error != "" {
		t.Errorf("error = %q", resp.Error)
	}
	if string(resp.Payload) != `{"msg":"hello"}` {
		t.Errorf("payload = %s", resp.Payload)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	srv := startTestServer(t, nil)

	ws := dialWS(t, srv.BoundAddr(), "test-token")
	resp, _ := rpc(t, ws, 2, "nonexistent", nil)

	if resp.Error == "" {
		t.Error("expected error for unknown method")
	}
	if resp.Code != string(domain.CodeRPCMethodNotFound) {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestServerHandlerErrorCode(t *testing.T) {
	srv := startTestServer(t, func(s *Server) {
		s.RegisterHandler("fail", func(context.Context, *Call, json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`{"partial":true}`), domain.NewDomainError("Test.Fail", domain.ErrQuotaExceeded, "")
		})
	})

	ws := dialWS(t, srv.BoundAddr(), "test-token")
	resp, _ := rpc(t, ws, 1, "fail", nil)

	if resp.Code != string(domain.CodeQuotaExceeded) {
		t.Errorf("code = %q, want %s", resp.Code, domain.CodeQuotaExceeded)
	}
	if resp.Payload != nil {
		t.Errorf("payload should be dropped on error, got %s", resp.Payload)
	}
}

func TestServerSessionEventsStayOnConnection(t *testing.T) {
	srv := startTestServer(t, func(s *Server) {
		RegisterDefaultHandlers(s, HandlerDeps{Logger: testLogger()})
	})

	a := dialWS(t, srv.BoundAddr(), "test-token")
	b := dialWS(t, srv.BoundAddr(), "test-token")

	resp, events := rpc(t, a, 1, "canvas.open", map[string]string{"message_id": "m1"})
	if resp.Error != "" {
		t.Fatalf("canvas.open: %s", resp.Error)
	}
	if got := eventTypes(events); len(got) != 1 || got[0] != domain.EventCanvasActivated {
		t.Errorf("events on a = %v", got)
	}

	// b never sees a's canvas: its own state is closed and no event is pending.
	resp, events = rpc(t, b, 1, "canvas.state", nil)
	if len(events) != 0 {
		t.Errorf("b received %v", eventTypes(events))
	}
	var st canvasStateResponse
	if err := json.Unmarshal(resp.Payload, &st); err != nil {
		t.Fatal(err)
	}
	if st.Canvas.ActiveMessageID != "" {
		t.Errorf("b canvas = %+v", st.Canvas)
	}
}

func TestServerSyncHandlersKeepOrder(t *testing.T) {
	var mu sync.Mutex
	var seen []uint64
	srv := startTestServer(t, func(s *Server) {
		s.RegisterHandler("step", func(_ context.Context, _ *Call, payload json.RawMessage) (json.RawMessage, error) {
			var n uint64
			json.Unmarshal(payload, &n)
			mu.Lock()
			seen = append(seen, n)
			mu.Unlock()
			return payload, nil
		})
	})

	ws := dialWS(t, srv.BoundAddr(), "test-token")
	ctx := context.Background()
	for i := uint64(1); i <= 20; i++ {
		raw, _ := json.Marshal(i)
		if err := wsjson.Write(ctx, ws, Frame{Type: FrameTypeRequest, ID: i, Method: "step", Payload: raw}); err != nil {
			t.Fatal(err)
		}
	}
	resp, _ := rpc(t, ws, 21, "step", 21)
	if resp.Error != "" {
		t.Fatal(resp.Error)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, n := range seen {
		if n != uint64(i+1) {
			t.Fatalf("handled out of order: %v", seen)
		}
	}
}

func TestServerConcurrentClients(t *testing.T) {
	srv := startTestServer(t, func(s *Server) {
		s.RegisterAsyncHandler("ping", func(context.Context, *Call, json.RawMessage) (json.RawMessage, error) {
			return json.RawMessage(`"pong"`), nil
		})
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			ws, _, err := websocket.Dial(ctx, "ws://"+srv.BoundAddr()+"/ws?token=test-token", nil)
			if err != nil {
				t.Errorf("dial: %v", err)
				return
			}
			defer ws.Close(websocket.StatusNormalClosure, "")

			req := Frame{Type: FrameTypeRequest, ID: uint64(id), Method: "ping"}
			if err := wsjson.Write(ctx, ws, req); err != nil {
				return
			}
			var resp Frame
			if err := wsjson.Read(ctx, ws, &resp); err != nil || string(resp.Payload) != `"pong"` {
				t.Errorf("client %d: %+v, %v", id, resp, err)
			}
		}(i)
	}
	wg.Wait()

	if _, total := srv.Connections(); total != 5 {
		t.Errorf("total connections = %d, want 5", total)
	}
}

func TestServerDisconnect(t *testing.T) {
	srv := startTestServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws://"+srv.BoundAddr()+"/ws?token=test-token", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	ws.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(2 * time.Second)
	for {
		active, total := srv.Connections()
		if active == 0 && total == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("connections = %d/%d after disconnect", active, total)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestServerOriginPatterns(t *testing.T) {
	srv := NewServer(NoAuth{}, "", testLogger(), WithAllowedOrigins([]string{"https://chat.example.com"}))
	patterns := srv.originPatterns()
	if patterns[len(patterns)-1] != "chat.example.com" {
		t.Errorf("patterns = %v", patterns)
	}

	srv = NewServer(NoAuth{}, "", testLogger(), WithAllowedOrigins([]string{"*"}))
	if got := srv.originPatterns(); len(got) != 1 || got[0] != "*" {
		t.Errorf("wildcard patterns = %v", got)
	}
}

func TestSendResponseClosesSlowClient(t *testing.T) {
	accepted := make(chan *websocket.Conn, 1)
	release := make(chan struct{})
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
		<-release
	}))
	defer hs.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	client, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(hs.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close(websocket.StatusNormalClosure, "")

	srv := NewServer(NoAuth{}, "", testLogger())
	srv.sendTimeout = 20 * time.Millisecond
	cc := &clientConn{ws: <-accepted, sendCh: make(chan Frame, 1), done: make(chan struct{})}
	cc.sendCh <- Frame{Type: FrameTypeEvent}

	start := time.Now()
	srv.sendResponse(cc, 7, json.RawMessage(`"late"`), nil)
	if waited := time.Since(start); waited > time.Second {
		t.Fatalf("sendResponse blocked for %v", waited)
	}

	_, _, err = client.Read(ctx)
	var ce websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.StatusTryAgainLater {
		t.Fatalf("client read err = %v, want close %v", err, websocket.StatusTryAgainLater)
	}
}
