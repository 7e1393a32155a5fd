// Package gateway exposes the chat flows and the page-session canvas state
// over a WebSocket RPC connection, plus a few REST routes.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"canvaschat/internal/domain"
	"canvaschat/internal/infra/middleware"
	"canvaschat/internal/usecase/canvas"
)

// DefaultSendTimeout bounds how long an RPC response waits for room in a
// connection's outbound queue before the connection is dropped.
const DefaultSendTimeout = 5 * time.Second

// Call is the connection an RPC request arrived on.
type Call struct {
	Client  *ClientInfo
	Session *canvas.Session
}

// RPCHandler handles a single RPC method call.
type RPCHandler func(ctx context.Context, call *Call, payload json.RawMessage) (json.RawMessage, error)

type route struct {
	handler RPCHandler
	async   bool
}

// clientConn tracks a single WebSocket connection.
type clientConn struct {
	call      *Call
	ws        *websocket.Conn
	sendCh    chan Frame // buffered outbound queue
	done      chan struct{}
	closeOnce sync.Once
}

// Server is the WebSocket gateway. Every connection is one page session
// and receives the events of that session only.
type Server struct {
	clients    sync.Map // session id -> *clientConn
	auth       Authenticator
	handlersMu sync.RWMutex
	handlers   map[string]route
	logger     *slog.Logger
	addr       string
	httpSrv    *http.Server
	boundMu    sync.RWMutex
	boundAddr  string
	httpRoutes []httpRoute // additional HTTP routes

	origins     []string
	rateLimit   middleware.RateLimitConfig
	canvasWidth float64
	sendTimeout time.Duration
	activeConns atomic.Int64
	totalConns  atomic.Int64
}

type httpRoute struct {
	pattern string
	handler http.HandlerFunc
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the browser origins accepted for CORS and the
// WebSocket handshake. Localhost is always accepted.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithRateLimit limits HTTP requests, upgrades included, per client IP.
func WithRateLimit(cfg middleware.RateLimitConfig) Option {
	return func(s *Server) { s.rateLimit = cfg }
}

// WithCanvasWidth sets the initial canvas width of new sessions.
func WithCanvasWidth(w float64) Option {
	return func(s *Server) { s.canvasWidth = w }
}

// NewServer creates a gateway server.
func NewServer(auth Authenticator, addr string, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		auth:        auth,
		handlers:    make(map[string]route),
		logger:      logger,
		addr:        addr,
		canvasWidth: domain.CanvasDefaultWidth,
		sendTimeout: DefaultSendTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterHandler adds an RPC handler for the given method name. Handlers
// registered this way run on the connection's read loop, one at a time, so
// a session sees its requests applied in the order they were sent.
func (s *Server) RegisterHandler(method string, handler RPCHandler) {
	s.register(method, route{handler: handler})
}

// RegisterAsyncHandler adds an RPC handler that runs in its own goroutine.
// Use it for calls that wait on the network.
func (s *Server) RegisterAsyncHandler(method string, handler RPCHandler) {
	s.register(method, route{handler: handler, async: true})
}

func (s *Server) register(method string, r route) {
	s.handlersMu.Lock()
	s.handlers[method] = r
	s.handlersMu.Unlock()
}

// RegisterHTTPRoute adds an HTTP handler to the gateway's mux.
// Must be called before Start().
func (s *Server) RegisterHTTPRoute(pattern string, handler http.HandlerFunc) {
	s.httpRoutes = append(s.httpRoutes, httpRoute{pattern: pattern, handler: handler})
}

// Connections returns the number of open connections and of connections
// accepted since start.
func (s *Server) Connections() (active, total int64) {
	return s.activeConns.Load(), s.totalConns.Load()
}

// Handler returns the gateway's HTTP handler with its middleware applied.
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	for _, route := range s.httpRoutes {
		mux.HandleFunc(route.pattern, route.handler)
	}

	var h http.Handler = mux
	h = middleware.RateLimit(ctx, s.rateLimit)(h)
	if len(s.origins) > 0 {
		h = middleware.CORS(s.origins)(h)
	}
	return middleware.SecurityHeaders(h)
}

// Start begins accepting WebSocket connections. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.boundMu.Lock()
	s.boundAddr = listener.Addr().String()
	s.httpSrv = &http.Server{Handler: s.Handler(ctx), ReadHeaderTimeout: 10 * time.Second}
	srv := s.httpSrv
	s.boundMu.Unlock()

	s.logger.Info("gateway started", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("gateway serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the gateway server.
func (s *Server) Stop(ctx context.Context) error {
	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.closeOnce.Do(func() { close(cc.done) })
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		return true
	})

	s.boundMu.RLock()
	srv := s.httpSrv
	s.boundMu.RUnlock()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
	return nil
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string {
	s.boundMu.RLock()
	defer s.boundMu.RUnlock()
	return s.boundAddr
}

// originPatterns converts configured origins to the host patterns the
// WebSocket handshake matches against.
func (s *Server) originPatterns() []string {
	patterns := []string{
		"localhost",
		"localhost:*",
		"127.0.0.1",
		"127.0.0.1:*",
		"[::1]",
		"[::1]:*",
	}
	for _, o := range s.origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	clientInfo, err := s.auth.Authenticate(requestToken(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	sessionID := ulid.Make().String()
	session := canvas.NewSession(sessionID, s.canvasWidth, s.logger.With("session_id", sessionID))
	cc := &clientConn{
		call:   &Call{Client: clientInfo, Session: session},
		ws:     ws,
		sendCh: make(chan Frame, 64),
		done:   make(chan struct{}),
	}
	unsub := session.Subscribe(func(_ context.Context, event domain.Event) {
		s.forward(cc, event)
	})
	s.clients.Store(sessionID, cc)
	s.activeConns.Add(1)
	s.totalConns.Add(1)

	s.logger.Info("gateway client connected", "session_id", sessionID, "client", clientInfo.Name)

	go s.writeLoop(cc)

	// Read loop (blocking).
	s.readLoop(r.Context(), cc)

	// Cleanup.
	unsub()
	session.Close(context.Background())
	cc.closeOnce.Do(func() { close(cc.done) })
	s.clients.Delete(sessionID)
	s.activeConns.Add(-1)
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("gateway client disconnected", "session_id", sessionID)
}

func (s *Server) forward(cc *clientConn, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	select {
	case <-cc.done:
	case cc.sendCh <- Frame{Type: FrameTypeEvent, Payload: payload}:
	default:
		s.logger.Warn("gateway: dropped event for slow client", "event", event.Type)
	}
}

func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		var frame Frame
		err := wsjson.Read(ctx, cc.ws, &frame)
		if err != nil {
			return // connection closed or error
		}

		if frame.Type != FrameTypeRequest {
			continue
		}

		s.handlersMu.RLock()
		rt, ok := s.handlers[frame.Method]
		s.handlersMu.RUnlock()
		switch {
		case !ok:
			s.sendResponse(cc, frame.ID, nil, fmt.Errorf("%w: %s", domain.ErrRPCMethodNotFound, frame.Method))
		case rt.async:
			go s.dispatchRPC(ctx, cc, rt.handler, frame)
		default:
			s.dispatchRPC(ctx, cc, rt.handler, frame)
		}
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(ctx, cc.ws, frame)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatchRPC(ctx context.Context, cc *clientConn, handler RPCHandler, req Frame) {
	result, err := handler(ctx, cc.call, req.Payload)
	if err != nil && ctx.Err() == nil {
		s.logger.Debug("rpc failed", "method", req.Method, "session_id", cc.call.Session.ID(), "error", err)
	}
	s.sendResponse(cc, req.ID, result, err)
}

func (s *Server) sendResponse(cc *clientConn, id uint64, result json.RawMessage, err error) {
	resp := Frame{
		Type:    FrameTypeResponse,
		ID:      id,
		Payload: result,
	}
	if err != nil {
		resp.Payload = nil
		resp.Error = err.Error()
		resp.Code = string(domain.ErrorCodeOf(err))
	}
	// A response is never dropped: a client that cannot drain its queue is
	// disconnected so it sees a closed socket instead of a missing reply.
	timer := time.NewTimer(s.sendTimeout)
	defer timer.Stop()
	select {
	case <-cc.done:
	case cc.sendCh <- resp:
	case <-timer.C:
		s.logger.Warn("gateway: closing slow client", "frame_id", id)
		go cc.ws.Close(websocket.StatusTryAgainLater, "client too slow")
	}
}
